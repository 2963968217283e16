package patchweaver

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event is a progress notification emitted while a pipeline runs.
type Event interface{ isEvent() }

// RuleAppliedEvent is emitted after a rule rewrote the text.
type RuleAppliedEvent struct {
	Rule string
}

func (RuleAppliedEvent) isEvent() {}

// RuleSatisfiedEvent is emitted when a rule's ensure marker was already
// present and the rule was skipped.
type RuleSatisfiedEvent struct {
	Rule   string
	Marker string
}

func (RuleSatisfiedEvent) isEvent() {}

// RuleMissedEvent is emitted when a rule's matcher was absent. The text is
// unchanged for that step.
type RuleMissedEvent struct {
	Rule   string
	Reason string
}

func (RuleMissedEvent) isEvent() {}

// RuleFailedEvent is emitted when a rule aborted, e.g. on unbalanced
// delimiters. The text is unchanged for that step.
type RuleFailedEvent struct {
	Rule string
	Err  error
}

func (RuleFailedEvent) isEvent() {}

// EventSink receives pipeline events.
type EventSink interface {
	OnEvent(ev Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(ev Event)

func (f EventSinkFunc) OnEvent(ev Event) { f(ev) }

// NewPipeline builds a pipeline over rules in their declared order.
func NewPipeline(rules []Rule, opts ...func(*Pipeline)) *Pipeline {
	p := &Pipeline{rules: rules, policy: MissContinue}
	for _, o := range opts {
		o(p)
	}
	return p
}

// WithMissPolicy sets how the pipeline reacts to a missed rule.
func WithMissPolicy(policy MissPolicy) func(*Pipeline) {
	return func(p *Pipeline) { p.policy = policy }
}

// WithSink directs progress events to s.
func WithSink(s EventSink) func(*Pipeline) {
	return func(p *Pipeline) { p.sink = s }
}

// Run threads src through every rule in declared order and returns the final
// snapshot plus the run report. A failed rule leaves the text unchanged for
// that step; under MissContinue the pipeline still advances, under MissFail
// it stops at the first miss or failure. Run never returns an error: rule
// outcomes are data, recorded in the report.
func (p *Pipeline) Run(src SourceText) (SourceText, *Report) {
	report := &Report{
		RunID:       uuid.NewString(),
		Path:        src.Path(),
		InputDigest: src.Digest(),
		StartedAt:   time.Now(),
	}

	text := src.Text()
	for _, rule := range p.rules {
		if ensure, ok := rule.(EnsureRule); ok && ensure.Satisfied(text) {
			report.Results = append(report.Results, RuleResult{
				Rule:   rule.Name(),
				Status: StatusSatisfied,
				Reason: "marker " + clipPattern(ensure.Marker) + " already present",
			})
			p.emit(RuleSatisfiedEvent{Rule: rule.Name(), Marker: ensure.Marker})
			continue
		}

		out, err := rule.Apply(text)
		if err == nil {
			text = out
			report.Results = append(report.Results, RuleResult{Rule: rule.Name(), Status: StatusApplied})
			p.emit(RuleAppliedEvent{Rule: rule.Name()})
			continue
		}

		var unbalanced *UnbalancedDelimiterError
		if errors.As(err, &unbalanced) {
			report.Results = append(report.Results, RuleResult{
				Rule:   rule.Name(),
				Status: StatusFailed,
				Reason: err.Error(),
			})
			p.emit(RuleFailedEvent{Rule: rule.Name(), Err: err})
		} else {
			report.Results = append(report.Results, RuleResult{
				Rule:   rule.Name(),
				Status: StatusMissed,
				Reason: err.Error(),
			})
			p.emit(RuleMissedEvent{Rule: rule.Name(), Reason: err.Error()})
		}
		if p.policy == MissFail {
			break
		}
	}

	final := src.WithText(text)
	report.OutputDigest = final.Digest()
	report.FinishedAt = time.Now()
	return final, report
}

func (p *Pipeline) emit(ev Event) {
	if p.sink != nil {
		p.sink.OnEvent(ev)
	}
}
