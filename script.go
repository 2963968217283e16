package patchweaver

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Script is a parsed patch script: a target path and the ordered rules to
// apply to it. Order is significant; later rules see earlier rules' output.
type Script struct {
	Target string
	Rules  []Rule
}

type scriptDoc struct {
	Target string     `yaml:"target"`
	Rules  []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	Name    string       `yaml:"name"`
	Ensure  string       `yaml:"ensure"`
	Scope   *scopeSpec   `yaml:"scope"`
	Replace *replaceSpec `yaml:"replace"`
	Regex   *regexSpec   `yaml:"regex"`
	Insert  *insertSpec  `yaml:"insert"`
	Wrap    *wrapSpec    `yaml:"wrap"`
	Move    *moveSpec    `yaml:"move"`
	Delete  *deleteSpec  `yaml:"delete"`
}

type scopeSpec struct {
	Marker     string `yaml:"marker"`
	Occurrence int    `yaml:"occurrence"`
}

type replaceSpec struct {
	Find string `yaml:"find"`
	With string `yaml:"with"`
	All  bool   `yaml:"all"`
}

type regexSpec struct {
	Pattern  string `yaml:"pattern"`
	Template string `yaml:"template"`
	All      bool   `yaml:"all"`
}

type insertSpec struct {
	After  string `yaml:"after"`
	Before string `yaml:"before"`
	Text   string `yaml:"text"`
}

type wrapSpec struct {
	Anchor     string `yaml:"anchor"`
	Open       string `yaml:"open"`
	Close      string `yaml:"close"`
	Prefix     string `yaml:"prefix"`
	Suffix     string `yaml:"suffix"`
	SkipQuotes bool   `yaml:"skip_quotes"`
}

type moveSpec struct {
	Anchor     string `yaml:"anchor"`
	Open       string `yaml:"open"`
	Close      string `yaml:"close"`
	To         string `yaml:"to"`
	Before     bool   `yaml:"before"`
	SkipQuotes bool   `yaml:"skip_quotes"`
}

type deleteSpec struct {
	Find    string `yaml:"find"`
	Pattern string `yaml:"pattern"`
	All     bool   `yaml:"all"`
}

// LoadScript reads and parses a patch script from disk.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	script, err := ParseScript(data)
	if err != nil {
		var serr *ScriptError
		if errors.As(err, &serr) {
			serr.Path = path
		}
		return nil, err
	}
	return script, nil
}

// ParseScript parses a YAML patch script. Unknown fields, missing names,
// missing or ambiguous actions, and invalid regex patterns are all
// *ScriptError: a script either loads completely or not at all.
func ParseScript(data []byte) (*Script, error) {
	var doc scriptDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, &ScriptError{Index: -1, Message: err.Error()}
	}
	if len(doc.Rules) == 0 {
		return nil, &ScriptError{Index: -1, Message: "script declares no rules"}
	}

	script := &Script{Target: doc.Target}
	for i, spec := range doc.Rules {
		rule, err := spec.build(i)
		if err != nil {
			return nil, err
		}
		script.Rules = append(script.Rules, rule)
	}
	return script, nil
}

func (spec ruleSpec) build(index int) (Rule, error) {
	fail := func(format string, args ...any) error {
		return &ScriptError{Index: index, Rule: spec.Name, Message: fmt.Sprintf(format, args...)}
	}
	if spec.Name == "" {
		return nil, fail("rule has no name")
	}

	actions := 0
	for _, present := range []bool{
		spec.Replace != nil, spec.Regex != nil, spec.Insert != nil,
		spec.Wrap != nil, spec.Move != nil, spec.Delete != nil,
	} {
		if present {
			actions++
		}
	}
	if actions == 0 {
		return nil, fail("rule declares no action")
	}
	if actions > 1 {
		return nil, fail("rule declares %d actions, want exactly one", actions)
	}

	var rule Rule
	switch {
	case spec.Replace != nil:
		if spec.Replace.Find == "" {
			return nil, fail("replace.find must not be empty")
		}
		rule = ReplaceRule{RuleName: spec.Name, Find: spec.Replace.Find, With: spec.Replace.With, All: spec.Replace.All}

	case spec.Regex != nil:
		re, err := compileRulePattern(spec.Regex.Pattern)
		if err != nil {
			return nil, fail("regex.pattern: %v", err)
		}
		rule = RegexRule{RuleName: spec.Name, Pattern: re, Template: spec.Regex.Template, All: spec.Regex.All}

	case spec.Insert != nil:
		if (spec.Insert.After == "") == (spec.Insert.Before == "") {
			return nil, fail("insert needs exactly one of after/before")
		}
		anchor, before := spec.Insert.After, false
		if spec.Insert.Before != "" {
			anchor, before = spec.Insert.Before, true
		}
		rule = InsertRule{RuleName: spec.Name, Anchor: anchor, Text: spec.Insert.Text, Before: before}

	case spec.Wrap != nil:
		if spec.Wrap.Anchor == "" {
			return nil, fail("wrap.anchor must not be empty")
		}
		delims, err := parseDelims(spec.Wrap.Open, spec.Wrap.Close)
		if err != nil {
			return nil, fail("wrap: %v", err)
		}
		rule = WrapRule{
			RuleName: spec.Name, Anchor: spec.Wrap.Anchor, Delims: delims,
			Prefix: spec.Wrap.Prefix, Suffix: spec.Wrap.Suffix, SkipQuotes: spec.Wrap.SkipQuotes,
		}

	case spec.Move != nil:
		if spec.Move.Anchor == "" {
			return nil, fail("move.anchor must not be empty")
		}
		delims, err := parseDelims(spec.Move.Open, spec.Move.Close)
		if err != nil {
			return nil, fail("move: %v", err)
		}
		rule = MoveRule{
			RuleName: spec.Name, Anchor: spec.Move.Anchor, Delims: delims,
			To: spec.Move.To, Before: spec.Move.Before, SkipQuotes: spec.Move.SkipQuotes,
		}

	case spec.Delete != nil:
		if (spec.Delete.Find == "") == (spec.Delete.Pattern == "") {
			return nil, fail("delete needs exactly one of find/pattern")
		}
		if spec.Delete.Find != "" {
			rule = ReplaceRule{RuleName: spec.Name, Find: spec.Delete.Find, All: spec.Delete.All}
		} else {
			re, err := compileRulePattern(spec.Delete.Pattern)
			if err != nil {
				return nil, fail("delete.pattern: %v", err)
			}
			rule = RegexRule{RuleName: spec.Name, Pattern: re, All: spec.Delete.All}
		}
	}

	if spec.Scope != nil {
		if spec.Scope.Marker == "" {
			return nil, fail("scope.marker must not be empty")
		}
		if spec.Scope.Occurrence < 0 {
			return nil, fail("scope.occurrence must not be negative")
		}
		rule = ScopedRule{Marker: spec.Scope.Marker, Occurrence: spec.Scope.Occurrence, Rule: rule}
	}
	if spec.Ensure != "" {
		rule = EnsureRule{Marker: spec.Ensure, Rule: rule}
	}
	return rule, nil
}

// parseDelims converts the script's open/close strings into a delimiter
// pair. Both default to braces; each must be a single byte.
func parseDelims(open, close string) (Delimiters, error) {
	if open == "" && close == "" {
		return Braces, nil
	}
	if len(open) != 1 || len(close) != 1 {
		return Delimiters{}, fmt.Errorf("open/close must each be a single character, got %q and %q", open, close)
	}
	return Delimiters{Open: open[0], Close: close[0]}, nil
}

func compileRulePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern must not be empty")
	}
	return regexp.Compile(pattern)
}
