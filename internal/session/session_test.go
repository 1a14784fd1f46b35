package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/honors/constraint"
	"github.com/roach88/honors/internal/cache"
	"github.com/roach88/honors/internal/guard"
	"github.com/roach88/honors/internal/index"
	"github.com/roach88/honors/internal/outcome"
	"github.com/roach88/honors/internal/render"
)

var (
	someControls = constraint.NewEnum("SomeControls", "Some things are here.",
		constraint.Member{Name: "spam", Value: "Spam"},
		constraint.Member{Name: "eggs", Value: "Eggs"},
	)
	spam = someControls.Must("spam")
	eggs = someControls.Must("eggs")
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSession(t *testing.T, c cache.Cache, ids ...string) *Session {
	t.Helper()
	if len(ids) == 0 {
		ids = []string{"run-1", "run-2", "run-3"}
	}
	s := New(c, WithLogger(discard()), WithRunIDs(NewFixedGenerator(ids...)))
	s.Start()
	return s
}

// populate registers n passing tests honoring v.
func populate(t *testing.T, s *Session, v constraint.Value, n int) {
	t.Helper()
	for i := range n {
		id := constraint.Key(v) + "/" + string(rune('a'+i))
		require.NoError(t, s.Discover(&index.Test{ID: id, Name: id}, v))
		s.Report(id, outcome.PhaseCall, outcome.Passed)
	}
}

func TestExitStatus_ShouldReport(t *testing.T) {
	tests := []struct {
		status ExitStatus
		want   bool
	}{
		{OK, true},
		{TestsFailed, true},
		{Interrupted, false},
		{InternalError, false},
		{UsageError, false},
		{NoTestsCollected, false},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.ShouldReport())
		})
	}
	assert.Equal(t, "unknown", ExitStatus(99).String())
}

func TestStart_ResetsState(t *testing.T) {
	s := newSession(t, nil)
	populate(t, s, spam, 2)
	assert.Equal(t, "run-1", s.RunID())

	s.Start()

	assert.Equal(t, 0, s.Index().Len())
	assert.Equal(t, 0, s.Ledger().Len())
	assert.Equal(t, "run-2", s.RunID())
}

func TestDiscover_TypeViolation(t *testing.T) {
	s := newSession(t, nil)

	err := s.Discover(&index.Test{ID: "pkg.TestBad"}, spam, 42)

	var violation *index.TypeViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, 0, s.Index().Len())
}

func TestReport_OnlyCallPhase(t *testing.T) {
	s := newSession(t, nil)
	s.Report("pkg.TestA", outcome.PhaseSetup, "failed")
	s.Report("pkg.TestA", outcome.PhaseTeardown, "failed")

	_, ok := s.Ledger().Lookup("pkg.TestA")
	assert.False(t, ok)
}

func TestFinish_GatedByStatus(t *testing.T) {
	for _, status := range []ExitStatus{Interrupted, InternalError, UsageError, NoTestsCollected} {
		t.Run(status.String(), func(t *testing.T) {
			c := cache.NewMemory()
			s := newSession(t, c)
			populate(t, s, spam, 1)
			path := filepath.Join(t.TempDir(), "honors.md")

			res, err := s.Finish(context.Background(), Options{ReportPath: path, FailOnRegression: true, StoreCounts: true}, status)
			require.NoError(t, err)

			assert.False(t, res.Reported)
			assert.NoFileExists(t, path)
			_, ok, _ := c.Get(context.Background(), cache.CountsKey)
			assert.False(t, ok, "counts must not be stored")
		})
	}
}

func TestFinish_NoOptionsIsNoop(t *testing.T) {
	s := newSession(t, nil)
	populate(t, s, spam, 1)

	res, err := s.Finish(context.Background(), Options{}, OK)
	require.NoError(t, err)

	assert.True(t, res.Reported)
	assert.Empty(t, res.ReportPath)
	assert.False(t, res.Stored)
	assert.Equal(t, guard.Snapshot{"SomeControls.spam": 1}, res.Counts)
	assert.Equal(t, guard.Snapshot{}, res.Previous)
}

func TestFinish_WritesReport(t *testing.T) {
	s := newSession(t, nil)
	populate(t, s, spam, 1)
	path := filepath.Join(t.TempDir(), "honors.md")

	res, err := s.Finish(context.Background(), Options{ReportPath: path}, TestsFailed)
	require.NoError(t, err)

	assert.Equal(t, path, res.ReportPath)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# SomeControls - Some things are here.\n")
	assert.Contains(t, string(data), "## spam: Spam\n")
}

func TestFinish_MissingOutcomeWarns(t *testing.T) {
	s := newSession(t, nil)
	require.NoError(t, s.Discover(&index.Test{ID: "pkg.TestNeverRan", Name: "TestNeverRan"}, spam))

	res, err := s.Finish(context.Background(), Options{}, OK)
	require.NoError(t, err)

	assert.Equal(t, []Warning{{Test: "pkg.TestNeverRan", Message: render.MissingOutcome}}, res.Warnings)
}

func TestFinish_StoresCounts(t *testing.T) {
	c := cache.NewMemory()
	s := newSession(t, c)
	populate(t, s, spam, 2)
	populate(t, s, eggs, 1)

	res, err := s.Finish(context.Background(), Options{StoreCounts: true}, OK)
	require.NoError(t, err)
	assert.True(t, res.Stored)

	stored, ok, err := LoadCounts(context.Background(), c)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-1", stored.RunID)
	assert.Equal(t, guard.Snapshot{"SomeControls.spam": 2, "SomeControls.eggs": 1}, stored.Counts)
}

func TestFinish_RegressionAcrossRuns(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory()
	s := newSession(t, c)

	populate(t, s, spam, 10)
	populate(t, s, eggs, 10)
	_, err := s.Finish(ctx, Options{StoreCounts: true}, OK)
	require.NoError(t, err)

	s.Start()
	populate(t, s, spam, 9)
	populate(t, s, eggs, 8)
	res, err := s.Finish(ctx, Options{FailOnRegression: true, StoreCounts: true}, OK)

	var regression *guard.RegressionError
	require.ErrorAs(t, err, &regression)
	assert.Equal(t, []string{
		"Constraint 'SomeControls.eggs' honorers count dropped from 10 to 8",
		"Constraint 'SomeControls.spam' honorers count dropped from 10 to 9",
	}, regression.Messages)
	assert.False(t, res.Stored)

	stored, _, err := LoadCounts(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "run-1", stored.RunID, "baseline is kept after a regression")
	assert.Equal(t, 10, stored.Counts["SomeControls.spam"])
}

func TestFinish_GrowthIsNotARegression(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory()
	require.NoError(t, cache.SetJSON(ctx, c, cache.CountsKey, StoredCounts{RunID: "old", Counts: guard.Snapshot{"SomeControls.spam": 1}}))

	s := newSession(t, c)
	populate(t, s, spam, 2)
	populate(t, s, eggs, 1)

	res, err := s.Finish(ctx, Options{FailOnRegression: true}, OK)
	require.NoError(t, err)
	assert.Equal(t, guard.Snapshot{"SomeControls.spam": 1}, res.Previous)
	assert.Equal(t, &StoredRun{RunID: "old"}, res.Baseline)
	assert.Equal(t, []guard.Change{
		{Key: "SomeControls.eggs", Previous: 0, Current: 1},
		{Key: "SomeControls.spam", Previous: 1, Current: 2},
	}, res.Changes)
}

func TestFinish_FirstRunHasEmptyBaseline(t *testing.T) {
	s := newSession(t, cache.NewMemory())
	populate(t, s, spam, 1)

	res, err := s.Finish(context.Background(), Options{FailOnRegression: true}, OK)
	require.NoError(t, err)
	assert.Empty(t, res.Previous)
	assert.Nil(t, res.Baseline)
}

func TestFinish_NoCache(t *testing.T) {
	s := newSession(t, nil)
	populate(t, s, spam, 1)

	_, err := s.Finish(context.Background(), Options{StoreCounts: true}, OK)
	assert.ErrorContains(t, err, "no cache configured")

	_, err = s.Finish(context.Background(), Options{FailOnRegression: true}, OK)
	assert.ErrorContains(t, err, "no cache configured")
}

type failingCache struct{ *cache.Memory }

func (failingCache) Set(context.Context, string, []byte) error { return errors.New("disk full") }

func TestFinish_StoreError(t *testing.T) {
	s := newSession(t, failingCache{cache.NewMemory()})
	populate(t, s, spam, 1)

	_, err := s.Finish(context.Background(), Options{StoreCounts: true}, OK)
	assert.ErrorContains(t, err, "disk full")
}

func TestFinish_ReportError(t *testing.T) {
	s := newSession(t, nil)

	_, err := s.Finish(context.Background(), Options{ReportPath: filepath.Join(t.TempDir(), "missing", "r.md")}, OK)
	assert.Error(t, err)
}

func TestUUIDv7Generator(t *testing.T) {
	a := UUIDv7Generator{}.Generate()
	b := UUIDv7Generator{}.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestFixedGenerator_Exhausted(t *testing.T) {
	g := NewFixedGenerator("only")
	assert.Equal(t, "only", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}
