package testutil

import "testing"

// step runs fn as a subtest named "<keyword> <desc>", so `go test -v` prints
// a scenario as its sequence of steps.
func step(t *testing.T, keyword, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run(keyword+" "+desc, fn)
}

func Given(t *testing.T, desc string, fn func(t *testing.T)) { t.Helper(); step(t, "Given", desc, fn) }

func When(t *testing.T, desc string, fn func(t *testing.T)) { t.Helper(); step(t, "When", desc, fn) }

func Then(t *testing.T, desc string, fn func(t *testing.T)) { t.Helper(); step(t, "Then", desc, fn) }

// And continues the previous step. It fails the scenario outright when the
// step fails, since later steps depend on the state it built.
func And(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	if !t.Run("And "+desc, fn) {
		t.FailNow()
	}
}
