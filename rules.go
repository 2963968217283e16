package patchweaver

import (
	"errors"
	"regexp"
	"strings"
)

// Rule is one declared, named text transformation: a matcher plus an action.
// Apply returns the transformed text, or the typed failure for this rule
// (*PatternNotFoundError when the matcher is absent,
// *UnbalancedDelimiterError when delimiter counting runs off the end of the
// text). Rules never abort the pipeline; the pipeline records the failure and
// moves on.
type Rule interface {
	Name() string
	Apply(text string) (string, error)
}

// ReplaceRule replaces a literal substring. The occurrence policy is declared
// per rule: only the first occurrence by default, every occurrence when All
// is set.
type ReplaceRule struct {
	RuleName string
	Find     string
	With     string // empty deletes the match
	All      bool
}

func (r ReplaceRule) Name() string { return r.RuleName }

func (r ReplaceRule) Apply(text string) (string, error) {
	idx := strings.Index(text, r.Find)
	if r.Find == "" || idx < 0 {
		return text, &PatternNotFoundError{Rule: r.RuleName, Pattern: r.Find}
	}
	if r.All {
		return strings.ReplaceAll(text, r.Find, r.With), nil
	}
	return text[:idx] + r.With + text[idx+len(r.Find):], nil
}

// RegexRule applies a regular expression substitution. Template supports
// capture-group references in regexp.Expand syntax ($1, ${name}).
type RegexRule struct {
	RuleName string
	Pattern  *regexp.Regexp
	Template string
	All      bool
}

func (r RegexRule) Name() string { return r.RuleName }

func (r RegexRule) Apply(text string) (string, error) {
	m := r.Pattern.FindStringSubmatchIndex(text)
	if m == nil {
		return text, &PatternNotFoundError{Rule: r.RuleName, Pattern: r.Pattern.String()}
	}
	if r.All {
		return r.Pattern.ReplaceAllString(text, r.Template), nil
	}
	expanded := r.Pattern.ExpandString(nil, r.Template, text, m)
	return text[:m[0]] + string(expanded) + text[m[1]:], nil
}

// InsertRule inserts literal text immediately after a literal anchor, or
// immediately before it when Before is set. The anchor itself is preserved.
type InsertRule struct {
	RuleName string
	Anchor   string
	Text     string
	Before   bool
}

func (r InsertRule) Name() string { return r.RuleName }

func (r InsertRule) Apply(text string) (string, error) {
	idx := strings.Index(text, r.Anchor)
	if r.Anchor == "" || idx < 0 {
		return text, &PatternNotFoundError{Rule: r.RuleName, Pattern: r.Anchor}
	}
	at := idx + len(r.Anchor)
	if r.Before {
		at = idx
	}
	return text[:at] + r.Text + text[at:], nil
}

// WrapRule locates a literal anchor, scans forward to the block's opening
// delimiter, extracts the balanced block, and replaces the whole
// anchor-through-closing-delimiter span with Prefix + body + Suffix.
type WrapRule struct {
	RuleName   string
	Anchor     string
	Delims     Delimiters
	Prefix     string
	Suffix     string
	SkipQuotes bool // ignore delimiters inside quoted runs while scanning
}

func (r WrapRule) Name() string { return r.RuleName }

func (r WrapRule) Apply(text string) (string, error) {
	span, body, err := anchoredBlock(text, r.RuleName, r.Anchor, r.Delims, r.SkipQuotes)
	if err != nil {
		return text, err
	}
	return text[:span.Start] + r.Prefix + body + r.Suffix + text[span.End:], nil
}

// MoveRule extracts an anchor-through-closing-delimiter block and relocates
// it: after (or before) the destination anchor To, or to the end of the text
// when To is empty.
type MoveRule struct {
	RuleName   string
	Anchor     string
	Delims     Delimiters
	To         string
	Before     bool
	SkipQuotes bool
}

func (r MoveRule) Name() string { return r.RuleName }

func (r MoveRule) Apply(text string) (string, error) {
	span, _, err := anchoredBlock(text, r.RuleName, r.Anchor, r.Delims, r.SkipQuotes)
	if err != nil {
		return text, err
	}
	block := text[span.Start:span.End]
	rest := text[:span.Start] + text[span.End:]
	if r.To == "" {
		return rest + block, nil
	}
	idx := strings.Index(rest, r.To)
	if idx < 0 {
		return text, &PatternNotFoundError{Rule: r.RuleName, Pattern: r.To}
	}
	at := idx + len(r.To)
	if r.Before {
		at = idx
	}
	return rest[:at] + block + rest[at:], nil
}

// ScopedRule confines an inner rule to the region after the Nth occurrence of
// Marker, up to the next occurrence or the end of the text. Sibling regions
// sharing the same marker are untouched, so per-region edits do not bleed
// into each other.
type ScopedRule struct {
	RuleName   string
	Marker     string
	Occurrence int // 1-based
	Rule       Rule
}

func (r ScopedRule) Name() string {
	if r.RuleName != "" {
		return r.RuleName
	}
	return r.Rule.Name()
}

func (r ScopedRule) Apply(text string) (string, error) {
	n := r.Occurrence
	if n < 1 {
		n = 1
	}
	at := nthIndex(text, r.Marker, n)
	if r.Marker == "" || at < 0 {
		return text, &PatternNotFoundError{Rule: r.Name(), Pattern: r.Marker}
	}
	begin := at + len(r.Marker)
	end := len(text)
	if next := strings.Index(text[begin:], r.Marker); next >= 0 {
		end = begin + next
	}
	region, err := r.Rule.Apply(text[begin:end])
	if err != nil {
		return text, err
	}
	return text[:begin] + region + text[end:], nil
}

// EnsureRule wraps a rule with an already-applied marker: when Marker is
// present in the current text the pipeline reports the rule as satisfied and
// skips it, instead of warning about a missed target. This replaces probing
// the text for evidence of earlier runs.
type EnsureRule struct {
	Marker string
	Rule   Rule
}

func (r EnsureRule) Name() string { return r.Rule.Name() }

func (r EnsureRule) Apply(text string) (string, error) { return r.Rule.Apply(text) }

// Satisfied reports whether the marker is already present in text.
func (r EnsureRule) Satisfied(text string) bool {
	return r.Marker != "" && strings.Contains(text, r.Marker)
}

// IsRuleMiss reports whether err is a recoverable per-rule failure, as
// opposed to an I/O or script error.
func IsRuleMiss(err error) bool {
	var notFound *PatternNotFoundError
	var unbalanced *UnbalancedDelimiterError
	return errors.As(err, &notFound) || errors.As(err, &unbalanced)
}

// anchoredBlock finds the literal anchor, then the first opening delimiter at
// or after it, and matches the balanced block. The returned span covers
// anchor through closing delimiter inclusive; body is the text between the
// delimiters.
func anchoredBlock(text, rule, anchor string, d Delimiters, skipQuotes bool) (Span, string, error) {
	idx := strings.Index(text, anchor)
	if anchor == "" || idx < 0 {
		return Span{}, "", &PatternNotFoundError{Rule: rule, Pattern: anchor}
	}
	rel := strings.IndexByte(text[idx+len(anchor):], d.Open)
	if rel < 0 {
		return Span{}, "", &PatternNotFoundError{Rule: rule, Pattern: anchor + string(d.Open)}
	}
	start := idx + len(anchor) + rel + 1
	var opts []ExtractOption
	if skipQuotes {
		opts = append(opts, SkipQuoted('"', '\''))
	}
	block, err := ExtractBlock(text, start, d, opts...)
	if err != nil {
		var unbalanced *UnbalancedDelimiterError
		if errors.As(err, &unbalanced) {
			unbalanced.Rule = rule
		}
		return Span{}, "", err
	}
	return Span{Start: idx, End: block.Close + 1}, block.Body, nil
}

// nthIndex returns the byte offset of the n-th occurrence of sub in text
// (1-based), or -1 when there are fewer than n occurrences.
func nthIndex(text, sub string, n int) int {
	if sub == "" {
		return -1
	}
	at := 0
	for i := 0; i < n; i++ {
		j := strings.Index(text[at:], sub)
		if j < 0 {
			return -1
		}
		at += j
		if i < n-1 {
			at += len(sub)
		}
	}
	return at
}
