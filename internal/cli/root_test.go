package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/honors/constraint"
	"github.com/roach88/honors/constraint/iso27001"
	"github.com/roach88/honors/internal/marker"
	"github.com/roach88/honors/internal/testjson"
)

const pkgPath = "example.com/svc"

// isolate runs the test in an empty working directory with no user config
// and no HONORS_* overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HOME", dir)
	for _, key := range []string{
		"HONORS_REPORT", "HONORS_FAIL_ON_REGRESSION", "HONORS_STORE_COUNTS",
		"HONORS_CATALOG", "HONORS_CACHE", "HONORS_CACHE_DIR",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return dir
}

type result struct {
	stdout string
	stderr string
	err    error
}

func (r result) code() int { return GetExitCode(r.err) }

// execute runs the root command with args and stdin.
func execute(t *testing.T, stdin io.Reader, args ...string) result {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	err := cmd.ExecuteContext(context.Background())
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

// events builds a go test -json stream.
type events struct {
	t     *testing.T
	lines []string
}

func newEvents(t *testing.T) *events {
	return &events{t: t}
}

func (e *events) add(ev testjson.TestEvent) *events {
	e.t.Helper()
	if ev.Package == "" {
		ev.Package = pkgPath
	}
	data, err := json.Marshal(ev)
	require.NoError(e.t, err)
	e.lines = append(e.lines, string(data))
	return e
}

func (e *events) action(action, test string) *events {
	return e.add(testjson.TestEvent{Action: action, Test: test})
}

func (e *events) mark(test, doc string, values ...constraint.Value) *events {
	e.t.Helper()
	line, err := marker.Encode(marker.New(doc, values))
	require.NoError(e.t, err)
	return e.add(testjson.TestEvent{Action: testjson.ActionOutput, Test: test, Output: "    svc_test.go:10: " + line + "\n"})
}

func (e *events) output(test, text string) *events {
	return e.add(testjson.TestEvent{Action: testjson.ActionOutput, Test: test, Output: text})
}

// honoring adds a test that honors values and finishes with action.
func (e *events) honoring(test, action string, values ...constraint.Value) *events {
	return e.action(testjson.ActionRun, test).
		mark(test, test+" keeps labels intact.", values...).
		action(action, test)
}

func (e *events) String() string {
	return strings.Join(e.lines, "\n") + "\n"
}

func (e *events) reader() io.Reader {
	return strings.NewReader(e.String())
}

func (e *events) file(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.json")
	require.NoError(t, os.WriteFile(path, []byte(e.String()), 0o644))
	return path
}

func passingRun(t *testing.T) *events {
	return newEvents(t).
		action(testjson.ActionStart, "").
		honoring("TestLabels", testjson.ActionPass, iso27001.A_7_2_2).
		action(testjson.ActionPass, "")
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "honors", cmd.Use)
	assert.Contains(t, cmd.Long, "honors.Mark")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"report", "run", "counts", "catalog"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "command %s should exist", name)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestFinishFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"report", "run"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		for _, flag := range []string{"report", "fail-on-regression", "store-counts", "catalog", "cache", "cache-path"} {
			assert.NotNil(t, sub.Flags().Lookup(flag), "%s --%s", name, flag)
		}
		assert.Equal(t, "sqlite", sub.Flags().Lookup("cache").DefValue)
		assert.Equal(t, ".honors_cache", sub.Flags().Lookup("cache-path").DefValue)
	}
}

func TestInvalidFormat(t *testing.T) {
	isolate(t)

	res := execute(t, strings.NewReader(""), "report", "--format", "yaml")

	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), `invalid format "yaml"`)
	assert.Equal(t, ExitCommandError, res.code())
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}

	newLogger(buf, false).Info("hidden")
	assert.Empty(t, buf.String())

	newLogger(buf, true).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}
