// Package session owns the state of one test run and performs the
// run-finish actions: write the report, guard against regressions, store
// the new counts.
//
// A Session is driven by a single goroutine following the host lifecycle:
// Start, then Discover and Report as events arrive, then Finish.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/honors/internal/cache"
	"github.com/roach88/honors/internal/guard"
	"github.com/roach88/honors/internal/index"
	"github.com/roach88/honors/internal/outcome"
	"github.com/roach88/honors/internal/render"
)

// Options are the user-configurable run-finish actions.
type Options struct {
	// ReportPath is where the Markdown report is written. Empty disables it.
	ReportPath string
	// FailOnRegression fails the run if any constraint lost honoring tests.
	FailOnRegression bool
	// StoreCounts persists this run's counts as the next baseline.
	StoreCounts bool
}

// StoredCounts is the cache entry under cache.CountsKey.
type StoredCounts struct {
	RunID  string         `json:"run_id,omitempty"`
	Counts guard.Snapshot `json:"counts"`
}

// StoredRun identifies a stored baseline.
type StoredRun struct {
	RunID string `json:"run_id"`
}

// Warning is a non-fatal problem attached to one test.
type Warning struct {
	Test    string `json:"test"`
	Message string `json:"message"`
}

// Result describes what Finish did. Reported is false when the exit status
// suppressed every finish action. Baseline identifies the run that stored
// Previous, if a stored snapshot was loaded.
type Result struct {
	RunID      string                `json:"run_id"`
	Status     ExitStatus            `json:"status"`
	Reported   bool                  `json:"reported"`
	ReportPath string                `json:"report_path,omitempty"`
	Counts     guard.Snapshot        `json:"counts"`
	Previous   guard.Snapshot        `json:"previous"`
	Baseline   *StoredRun            `json:"baseline,omitempty"`
	Changes    []guard.Change        `json:"changes"`
	Stored     bool                  `json:"stored"`
	Warnings   []Warning             `json:"warnings,omitempty"`
	Groups     []render.GroupSummary `json:"groups"`
}

// Session holds the Association Index and Outcome Ledger for one run.
type Session struct {
	idx    *index.Index
	ledger *outcome.Ledger
	cache  cache.Cache
	logger *slog.Logger
	runIDs RunIDGenerator
	runID  string
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithRunIDs sets the run ID source. The default generates UUIDv7s.
func WithRunIDs(gen RunIDGenerator) Option {
	return func(s *Session) {
		s.runIDs = gen
	}
}

// New returns a session that reads and writes count snapshots through c.
// c may be nil when neither FailOnRegression nor StoreCounts is used.
func New(c cache.Cache, opts ...Option) *Session {
	s := &Session{
		idx:    index.New(),
		ledger: outcome.NewLedger(),
		cache:  c,
		logger: slog.Default(),
		runIDs: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start clears any state left by a previous run and assigns a new run ID.
func (s *Session) Start() {
	s.idx.Reset()
	s.ledger.Reset()
	s.runID = s.runIDs.Generate()
	s.logger.Debug("run starting", "run_id", s.runID)
}

// RunID returns the identifier assigned by the last Start.
func (s *Session) RunID() string { return s.runID }

// Discover registers test under every constraint it declares honoring.
// A *index.TypeViolationError is returned unchanged and must abort the run.
func (s *Session) Discover(test *index.Test, constraints ...any) error {
	if err := s.idx.Register(test, constraints...); err != nil {
		return err
	}
	s.logger.Debug("test discovered", "test", test.ID, "constraints", len(constraints))
	return nil
}

// Report records a phase outcome for the test with the given id.
func (s *Session) Report(id string, phase outcome.Phase, result string) {
	s.ledger.Record(id, phase, result)
}

// Index returns the session's association index.
func (s *Session) Index() *index.Index { return s.idx }

// Ledger returns the session's outcome ledger.
func (s *Session) Ledger() *outcome.Ledger { return s.ledger }

// Finish performs the run-finish actions in order: render the report,
// compare against the stored baseline, store the new counts. Nothing
// happens unless status.ShouldReport(). A *guard.RegressionError aborts
// before the new counts are stored.
func (s *Session) Finish(ctx context.Context, opts Options, status ExitStatus) (*Result, error) {
	res := &Result{RunID: s.runID, Status: status}
	if !status.ShouldReport() {
		s.logger.Info("skipping honors report", "status", status.String())
		return res, nil
	}
	res.Reported = true

	warn := func(test *index.Test, message string) {
		s.logger.Warn(message, "test", test.ID)
		res.Warnings = append(res.Warnings, Warning{Test: test.ID, Message: message})
	}
	if opts.ReportPath != "" {
		if err := render.WriteFile(opts.ReportPath, render.Markdown(s.idx, s.ledger, warn)); err != nil {
			return res, err
		}
		res.ReportPath = opts.ReportPath
		s.logger.Info("honors report written", "path", opts.ReportPath)
	} else {
		// Still walk the report so missing outcomes are surfaced.
		for range render.Markdown(s.idx, s.ledger, warn) {
		}
	}
	res.Groups = render.Summary(s.idx, s.ledger)

	res.Counts = guard.Summarize(s.idx)
	previous, baseline, err := s.previous(ctx, opts)
	if err != nil {
		return res, err
	}
	res.Previous, res.Baseline = previous, baseline
	res.Changes = guard.Diff(previous, res.Counts)

	if opts.FailOnRegression {
		if err := guard.Compare(previous, res.Counts); err != nil {
			s.logger.Error("honored constraint regression", "error", err)
			return res, err
		}
	}

	if opts.StoreCounts {
		if s.cache == nil {
			return res, fmt.Errorf("store counts: no cache configured")
		}
		stored := StoredCounts{RunID: s.runID, Counts: res.Counts}
		if err := cache.SetJSON(ctx, s.cache, cache.CountsKey, stored); err != nil {
			return res, fmt.Errorf("store counts: %w", err)
		}
		res.Stored = true
		s.logger.Info("honors counts stored", "run_id", s.runID, "constraints", len(res.Counts))
	}
	return res, nil
}

func (s *Session) previous(ctx context.Context, opts Options) (guard.Snapshot, *StoredRun, error) {
	if s.cache == nil {
		if opts.FailOnRegression {
			return nil, nil, fmt.Errorf("load counts: no cache configured")
		}
		return guard.Snapshot{}, nil, nil
	}
	stored, ok, err := LoadCounts(ctx, s.cache)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return stored.Counts, nil, nil
	}
	return stored.Counts, &StoredRun{RunID: stored.RunID}, nil
}

// LoadCounts reads the stored baseline. A missing entry yields an empty
// snapshot and ok == false.
func LoadCounts(ctx context.Context, c cache.Cache) (StoredCounts, bool, error) {
	stored := StoredCounts{Counts: guard.Snapshot{}}
	ok, err := cache.GetJSON(ctx, c, cache.CountsKey, &stored)
	if err != nil {
		return StoredCounts{}, false, fmt.Errorf("load counts: %w", err)
	}
	if stored.Counts == nil {
		stored.Counts = guard.Snapshot{}
	}
	return stored, ok, nil
}
