package honors

import (
	"runtime"
	"testing"

	"github.com/roach88/honors/constraint"
	"github.com/roach88/honors/internal/marker"
)

// Mark records that the running test honors constraints. It may be called
// more than once; repeated declarations accumulate. A nil constraint fails
// the test immediately.
func Mark(t testing.TB, constraints ...constraint.Value) {
	t.Helper()
	for i, c := range constraints {
		if c == nil {
			t.Fatalf("honors.Mark: constraint %d is nil", i)
			return
		}
	}
	if len(constraints) == 0 {
		return
	}

	var doc string
	if _, file, line, ok := runtime.Caller(1); ok {
		doc = docs.lookup(file, line, t.Name())
	}

	text, err := marker.Encode(marker.New(doc, constraints))
	if err != nil {
		t.Fatalf("honors.Mark: %v", err)
		return
	}
	t.Log(text)
}
