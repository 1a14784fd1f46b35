package session

// ExitStatus is the overall outcome of a test run as reported by the host.
type ExitStatus int

const (
	// OK means every test passed.
	OK ExitStatus = iota
	// TestsFailed means the run completed but some tests failed.
	TestsFailed
	// Interrupted means the run was cancelled or could not collect tests.
	Interrupted
	// InternalError means the host itself failed.
	InternalError
	// UsageError means the host was invoked incorrectly.
	UsageError
	// NoTestsCollected means no tests ran at all.
	NoTestsCollected
)

var statusNames = map[ExitStatus]string{
	OK:               "ok",
	TestsFailed:      "tests_failed",
	Interrupted:      "interrupted",
	InternalError:    "internal_error",
	UsageError:       "usage_error",
	NoTestsCollected: "no_tests_collected",
}

func (s ExitStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// ShouldReport reports whether a run that ended with s completed well
// enough for its report and regression check to mean anything.
func (s ExitStatus) ShouldReport() bool {
	return s == OK || s == TestsFailed
}

// MarshalText implements encoding.TextMarshaler.
func (s ExitStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
