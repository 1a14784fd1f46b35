// Package gotest drives a session from a go test -json event stream.
//
// Tests announce the constraints they honor by logging a marker line (see
// package honors). The adapter picks markers out of each test's output,
// resolves them to constraint values and registers the test; terminal
// pass, fail and skip events become call-phase outcomes.
package gotest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/honors/constraint"
	"github.com/roach88/honors/internal/index"
	"github.com/roach88/honors/internal/marker"
	"github.com/roach88/honors/internal/outcome"
	"github.com/roach88/honors/internal/session"
	"github.com/roach88/honors/internal/testjson"
)

// MarkerError reports a marker that could not be decoded or whose group
// definitions are invalid.
type MarkerError struct {
	Test string
	Err  error
}

func (e *MarkerError) Error() string {
	return fmt.Sprintf("bad honors marker in %s: %v", e.Test, e.Err)
}

func (e *MarkerError) Unwrap() error { return e.Err }

// Stats summarizes what the adapter saw.
type Stats struct {
	Packages        int `json:"packages"`
	Tests           int `json:"tests"`
	Passed          int `json:"passed"`
	Failed          int `json:"failed"`
	Skipped         int `json:"skipped"`
	Honoring        int `json:"honoring"`
	Markers         int `json:"markers"`
	BuildFailures   int `json:"build_failures"`
	PackageFailures int `json:"package_failures"`
	Malformed       int `json:"malformed_lines"`
}

type testKey struct {
	pkg  string
	name string
}

// Adapter translates events into Session calls. It is not safe for
// concurrent use.
type Adapter struct {
	session *session.Session
	catalog *constraint.Catalog
	logger  *slog.Logger

	partial  map[testKey]*strings.Builder
	tests    map[testKey]*index.Test
	packages map[string]*pkgState
	pkgOrder []string
	stats    Stats
}

type pkgState struct {
	tests       int
	failed      int
	buildFailed bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = l
	}
}

// New returns an adapter feeding s. Serialized keys in markers are resolved
// through c; groups a marker defines that c does not know are added to it.
func New(s *session.Session, c *constraint.Catalog, opts ...Option) *Adapter {
	a := &Adapter{
		session:  s,
		catalog:  c,
		logger:   slog.Default(),
		partial:  make(map[testKey]*strings.Builder),
		tests:    make(map[testKey]*index.Test),
		packages: make(map[string]*pkgState),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Consume reads the whole stream from r. The returned error is non-nil only
// for programmer misuse or an unreadable stream; cancellation is reported
// through the Interrupted status.
func (a *Adapter) Consume(ctx context.Context, r io.Reader) (session.ExitStatus, error) {
	malformed, err := testjson.Stream(ctx, r, a.Handle)
	a.stats.Malformed += malformed
	if malformed > 0 {
		a.logger.Warn("skipped lines that are not test events", "count", malformed)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return a.Status(ctxErr), nil
		}
		return session.InternalError, err
	}
	if err := a.Flush(); err != nil {
		return session.InternalError, err
	}
	return a.Status(nil), nil
}

// Handle processes one event.
func (a *Adapter) Handle(e testjson.TestEvent) error {
	pkg := a.pkg(e.Package)

	switch {
	case e.Action == testjson.ActionOutput:
		if e.Test == "" {
			if isBuildFailure(e.Output) {
				pkg.buildFailed = true
			}
			return nil
		}
		return a.output(testKey{e.Package, e.Test}, e.Output)

	case e.Action == testjson.ActionBuildFail:
		pkg.buildFailed = true
		return nil

	case e.Terminal():
		if e.Test == "" {
			return a.packageDone(e, pkg)
		}
		key := testKey{e.Package, e.Test}
		if err := a.flushTest(key); err != nil {
			return err
		}
		result := outcomeOf(e.Action)
		a.session.Report(testID(e.Package, e.Test), outcome.PhaseCall, result)
		pkg.tests++
		a.stats.Tests++
		switch result {
		case outcome.Passed:
			a.stats.Passed++
		case outcome.Failed:
			pkg.failed++
			a.stats.Failed++
		case outcome.Skipped:
			a.stats.Skipped++
		}
	}
	return nil
}

func (a *Adapter) packageDone(e testjson.TestEvent, pkg *pkgState) error {
	if e.FailedBuild != "" {
		pkg.buildFailed = true
	}
	if e.Action != testjson.ActionFail {
		return nil
	}
	// Package-level results describe setup, never a test's call phase.
	a.session.Report(e.Package, outcome.PhaseSetup, outcome.Failed)
	switch {
	case pkg.buildFailed:
		a.stats.BuildFailures++
		a.logger.Error("package failed to build", "package", e.Package)
	case pkg.failed == 0:
		a.stats.PackageFailures++
		a.logger.Warn("package failed outside any test", "package", e.Package)
	}
	return nil
}

// output appends a chunk of test output. test2json splits very long lines
// across events, so a line is only inspected once its newline arrives.
func (a *Adapter) output(key testKey, chunk string) error {
	buf, ok := a.partial[key]
	if !ok {
		buf = &strings.Builder{}
		a.partial[key] = buf
	}
	buf.WriteString(chunk)

	text := buf.String()
	last := strings.LastIndexByte(text, '\n')
	if last < 0 {
		return nil
	}
	buf.Reset()
	buf.WriteString(text[last+1:])

	for line := range strings.Lines(text[:last+1]) {
		if err := a.line(key, line); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) flushTest(key testKey) error {
	buf, ok := a.partial[key]
	if !ok {
		return nil
	}
	delete(a.partial, key)
	if buf.Len() == 0 {
		return nil
	}
	return a.line(key, buf.String())
}

// Flush processes output left without a trailing newline, as happens when
// a stream is cut short.
func (a *Adapter) Flush() error {
	for key := range a.partial {
		if err := a.flushTest(key); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) line(key testKey, line string) error {
	p, ok, err := marker.Find(line)
	if !ok {
		return nil
	}
	id := testID(key.pkg, key.name)
	if err != nil {
		return &MarkerError{Test: id, Err: err}
	}
	a.stats.Markers++

	if err := a.adopt(id, p.Groups); err != nil {
		return err
	}
	constraints := make([]any, 0, len(p.Honors))
	for _, raw := range p.Honors {
		constraints = append(constraints, a.resolve(marker.Decode(raw)))
	}

	test := a.test(key, p.Doc)
	if err := a.session.Discover(test, constraints...); err != nil {
		return err
	}
	a.logger.Debug("honors marker", "test", id, "constraints", len(constraints))
	return nil
}

func (a *Adapter) adopt(id string, defs []marker.GroupDef) error {
	for _, def := range defs {
		g, err := def.Build()
		if err != nil {
			return &MarkerError{Test: id, Err: err}
		}
		if _, err := a.catalog.Adopt(g); err != nil {
			return err
		}
	}
	return nil
}

// resolve maps a decoded marker entry to a constraint value. Entries that
// do not name a known constraint are returned unchanged so that
// registration rejects them.
func (a *Adapter) resolve(entry any) any {
	key, ok := entry.(string)
	if !ok {
		return entry
	}
	if v, ok := a.catalog.Lookup(key); ok {
		return v
	}
	return entry
}

func (a *Adapter) test(key testKey, doc string) *index.Test {
	t, ok := a.tests[key]
	if !ok {
		t = &index.Test{ID: testID(key.pkg, key.name), Name: key.name}
		a.tests[key] = t
		a.stats.Honoring++
	}
	if t.Doc == "" {
		t.Doc = doc
	}
	return t
}

func (a *Adapter) pkg(name string) *pkgState {
	if p, ok := a.packages[name]; ok {
		return p
	}
	p := &pkgState{}
	a.packages[name] = p
	a.pkgOrder = append(a.pkgOrder, name)
	a.stats.Packages++
	return p
}

// Status derives the run's exit status. ctxErr is the error of the context
// that governed the run, if any.
func (a *Adapter) Status(ctxErr error) session.ExitStatus {
	switch {
	case ctxErr != nil:
		return session.Interrupted
	case a.stats.BuildFailures > 0 || a.anyBuildFailed():
		return session.Interrupted
	case a.stats.Tests == 0 && a.stats.PackageFailures == 0:
		return session.NoTestsCollected
	case a.stats.Failed > 0 || a.stats.PackageFailures > 0:
		return session.TestsFailed
	default:
		return session.OK
	}
}

func (a *Adapter) anyBuildFailed() bool {
	for _, name := range a.pkgOrder {
		if a.packages[name].buildFailed {
			return true
		}
	}
	return false
}

// Stats returns counters for the events seen so far.
func (a *Adapter) Stats() Stats { return a.stats }

func testID(pkg, test string) string {
	return pkg + "." + test
}

func outcomeOf(action string) string {
	switch action {
	case testjson.ActionPass:
		return outcome.Passed
	case testjson.ActionFail:
		return outcome.Failed
	default:
		return outcome.Skipped
	}
}

func isBuildFailure(output string) bool {
	return strings.Contains(output, "[build failed]") || strings.Contains(output, "[setup failed]")
}
