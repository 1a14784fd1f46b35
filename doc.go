// Package honors lets tests declare which documented constraints they
// provide evidence for.
//
// A test calls Mark with the constraint values it honors:
//
//	// TestLabelsSurviveExport checks that classification labels are kept
//	// when records are exported.
//	func TestLabelsSurviveExport(t *testing.T) {
//		honors.Mark(t, iso27001.A_7_2_2)
//		...
//	}
//
// Mark logs a marker line that the honors command picks up from the
// go test -json stream:
//
//	go test -json ./... | honors report --report honors.md
//
// The first line of the test function's doc comment becomes the
// explanation shown in the report.
//
// A test is only registered once Mark runs. Call it first in the test body:
// a test that fails, skips or panics before reaching Mark leaves no marker,
// and with --fail-on-regression its constraints count as dropped.
package honors
