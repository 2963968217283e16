package patchweaver

// MissPolicy controls how the pipeline reacts to a rule whose matcher is
// absent from the current text.
type MissPolicy int

const (
	MissContinue MissPolicy = iota // record a warning and advance to the next rule
	MissFail                       // stop the run at the first miss or failure
)

// Pipeline applies an ordered list of rules to one loaded text, producing a
// final text plus a per-rule report. A run is strictly sequential; the
// running text is exclusively owned by the pipeline for the run's duration.
type Pipeline struct {
	rules  []Rule
	policy MissPolicy
	sink   EventSink
}
