// Package outcome records the terminal outcome of each test run.
package outcome

// Phase is a stage of a test's lifecycle.
type Phase string

// Lifecycle phases. Only PhaseCall outcomes are recorded.
const (
	PhaseSetup    Phase = "setup"
	PhaseCall     Phase = "call"
	PhaseTeardown Phase = "teardown"
)

// Outcome tokens produced by the Go test adapter. Hosts may report others;
// outcomes are opaque strings compared only against Passed.
const (
	Passed  = "passed"
	Failed  = "failed"
	Skipped = "skipped"
)

// Ledger maps test identifiers to their call-phase outcome.
type Ledger struct {
	results map[string]string
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{results: make(map[string]string)}
}

// Record stores outcome for id if phase is the call phase. A later call
// report for the same id overwrites the earlier one.
func (l *Ledger) Record(id string, phase Phase, outcome string) {
	if phase != PhaseCall {
		return
	}
	l.results[id] = outcome
}

// Lookup returns the recorded outcome for id.
func (l *Ledger) Lookup(id string) (string, bool) {
	o, ok := l.results[id]
	return o, ok
}

// Len returns the number of recorded tests.
func (l *Ledger) Len() int { return len(l.results) }

// Reset forgets every outcome.
func (l *Ledger) Reset() { clear(l.results) }
