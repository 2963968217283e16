package patchweaver

import (
	"fmt"
	"strings"
)

// Position represents a position in the source text.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number
}

// String returns a string representation of the position.
func (p Position) String() string {
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

// PositionAt converts a byte offset into a line/column Position within text.
// Offsets past the end of text report the position just after the last byte.
func PositionAt(text string, offset int) Position {
	if offset > len(text) {
		offset = len(text)
	}
	line, col := 1, 1
	for i := 0; i < offset; i++ {
		if text[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return Position{Line: line, Column: col}
}

// PatternNotFoundError reports that a rule's matcher did not occur in the
// current text. It is recovered per rule: the pipeline records a miss and
// continues.
type PatternNotFoundError struct {
	Rule    string // name of the rule whose matcher failed
	Pattern string // the literal, regex or anchor that was searched for
}

// Error implements the error interface.
func (e *PatternNotFoundError) Error() string {
	return fmt.Sprintf("rule %q: target %s not found", e.Rule, clipPattern(e.Pattern))
}

// UnbalancedDelimiterError reports that delimiter counting reached the end of
// the text before nesting depth returned to zero. It aborts only the
// offending rule; the text is left unchanged for that step.
type UnbalancedDelimiterError struct {
	Rule    string   // name of the rule, empty when raised outside a rule
	Open    byte     // opening delimiter
	Close   byte     // closing delimiter
	Start   Position // where scanning began
	Depth   int      // nesting depth remaining at end of text
	Context string   // surrounding content, if available
}

// Error implements the error interface.
func (e *UnbalancedDelimiterError) Error() string {
	msg := fmt.Sprintf("unbalanced %q: %d unclosed at end of text (scan started at %s)",
		string(e.Open), e.Depth, e.Start)
	if e.Rule != "" {
		msg = fmt.Sprintf("rule %q: %s", e.Rule, msg)
	}
	if e.Context != "" {
		msg += "\nContext: " + e.Context
	}
	return msg
}

// ScriptError reports a malformed patch script. Script errors are fatal at
// load time; they never occur during a run.
type ScriptError struct {
	Path    string // script path, empty when parsed from memory
	Index   int    // 0-based rule index, -1 for document-level problems
	Rule    string // rule name, if one was declared
	Message string
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	where := "script"
	if e.Path != "" {
		where = e.Path
	}
	if e.Index >= 0 {
		if e.Rule != "" {
			return fmt.Sprintf("%s: rule %d (%q): %s", where, e.Index, e.Rule, e.Message)
		}
		return fmt.Sprintf("%s: rule %d: %s", where, e.Index, e.Message)
	}
	return fmt.Sprintf("%s: %s", where, e.Message)
}

// clipPattern shortens long matcher text for diagnostics.
func clipPattern(pattern string) string {
	const limit = 48
	pattern = strings.ReplaceAll(pattern, "\n", `\n`)
	if len(pattern) > limit {
		pattern = pattern[:limit] + "..."
	}
	return fmt.Sprintf("%q", pattern)
}

// extractContext extracts a snippet of text around the given position for
// diagnostics. It tries to include a few lines before and after.
func extractContext(content string, pos Position) string {
	if content == "" {
		return ""
	}

	lines := strings.Split(content, "\n")
	if pos.Line > len(lines) {
		return content // Fallback if position is out of range
	}

	startLine := max(0, pos.Line-3)
	endLine := min(len(lines)-1, pos.Line+1)

	var contextBuilder strings.Builder
	for i := startLine; i <= endLine; i++ {
		lineNum := i + 1
		if lineNum == pos.Line {
			// Highlight the error line
			contextBuilder.WriteString(fmt.Sprintf("-> %d: %s\n", lineNum, lines[i]))
			if pos.Column <= len(lines[i])+1 {
				contextBuilder.WriteString(strings.Repeat(" ", pos.Column+5) + "^\n")
			}
		} else {
			contextBuilder.WriteString(fmt.Sprintf("   %d: %s\n", lineNum, lines[i]))
		}
	}

	return contextBuilder.String()
}
