package patchweaver

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// RuleStatus is the outcome of attempting one rule.
type RuleStatus int

const (
	// StatusApplied means the rule matched and the text was rewritten.
	StatusApplied RuleStatus = iota
	// StatusSatisfied means the rule's ensure marker was already present,
	// so the rule was skipped without a warning.
	StatusSatisfied
	// StatusMissed means the rule's matcher did not occur in the text.
	StatusMissed
	// StatusFailed means the rule aborted, e.g. on unbalanced delimiters.
	StatusFailed
)

// String returns the status as a lowercase word.
func (s RuleStatus) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusSatisfied:
		return "satisfied"
	case StatusMissed:
		return "missed"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalJSON encodes the status as its string form.
func (s RuleStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the string form produced by MarshalJSON.
func (s *RuleStatus) UnmarshalJSON(data []byte) error {
	var word string
	if err := json.Unmarshal(data, &word); err != nil {
		return err
	}
	switch word {
	case "applied":
		*s = StatusApplied
	case "satisfied":
		*s = StatusSatisfied
	case "missed":
		*s = StatusMissed
	case "failed":
		*s = StatusFailed
	default:
		return fmt.Errorf("unknown rule status %q", word)
	}
	return nil
}

// RuleResult records the outcome of one rule within a run.
type RuleResult struct {
	Rule   string     `json:"rule"`
	Status RuleStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
}

// Report is the first-class record of one pipeline run: which rules fired,
// which were already satisfied, and exactly which version of the text the run
// started from and produced.
type Report struct {
	RunID        string       `json:"run_id"`
	Path         string       `json:"path,omitempty"`
	InputDigest  string       `json:"input_digest"`
	OutputDigest string       `json:"output_digest,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	Results      []RuleResult `json:"results"`
	Diff         string       `json:"diff,omitempty"`
}

// Result returns the recorded outcome for the named rule.
func (r *Report) Result(rule string) (RuleResult, bool) {
	for _, res := range r.Results {
		if res.Rule == rule {
			return res, true
		}
	}
	return RuleResult{}, false
}

// Applied lists the rules that rewrote the text, in order.
func (r *Report) Applied() []string { return r.withStatus(StatusApplied) }

// Missed lists the rules whose matcher was absent, in order.
func (r *Report) Missed() []string { return r.withStatus(StatusMissed) }

// Satisfied lists the rules skipped because their ensure marker was already
// present, in order.
func (r *Report) Satisfied() []string { return r.withStatus(StatusSatisfied) }

// Changed reports whether the run produced different text than it consumed.
func (r *Report) Changed() bool {
	return r.OutputDigest != "" && r.OutputDigest != r.InputDigest
}

// Clean reports whether every rule either applied or was already satisfied.
func (r *Report) Clean() bool {
	for _, res := range r.Results {
		if res.Status == StatusMissed || res.Status == StatusFailed {
			return false
		}
	}
	return true
}

// WriteJSON persists the report, pretty-printed, for audit trails.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func (r *Report) withStatus(s RuleStatus) []string {
	var names []string
	for _, res := range r.Results {
		if res.Status == s {
			names = append(names, res.Rule)
		}
	}
	return names
}
