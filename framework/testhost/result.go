package testhost

import (
	"fmt"
	"strings"
)

// Results is the outcome of an entire test run.
type Results struct {
	Tests    []TestResult
	Failures []TestResult
}

// TestResult is the outcome of a single test scope.
type TestResult struct {
	TestID TestID
	Errors []error
}

// OK returns true if no test failed.
func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// Failed returns true if the test reported at least one error.
func (r TestResult) Failed() bool {
	return len(r.Errors) != 0
}

// TestID is the path of names from the top-level test scope down to a particular test.
type TestID []string

func (t TestID) String() string {
	return strings.Join(t, "/")
}

// Plus returns a new TestID for a child scope. The receiver is not modified.
func (t TestID) Plus(name string) TestID {
	return append(append(TestID(nil), t...), name)
}

type TestFailure struct {
	ID  TestID
	Err error
}

func (f TestFailure) Error() string {
	return fmt.Sprintf("[%s]: %s", f.ID, f.Err)
}
