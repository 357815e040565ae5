package mocha

import (
	"strings"

	"github.com/ejones/mocha-test-harness/framework/helpers"
)

// RecordTest is a test case whose outcome was already decided by mocha.
type RecordTest struct {
	Record
}

// Name is the test title as mocha reported it.
func (rt RecordTest) Name() string {
	return rt.Title
}

// FailureMessage is the title followed by a newline and the detail lines concatenated as-is.
func (rt RecordTest) FailureMessage() string {
	return rt.Title + "\n" + strings.Join(rt.Detail, "")
}

// Run succeeds for a passing record. For a failing one it reports FailureMessage and stops
// the test. Contexts that implement helpers.FailureReporter get the message through
// ReportFailure, so that no Go stacktrace is attached to it.
func (rt RecordTest) Run(t helpers.TestContext) {
	if rt.Status == StatusPass {
		return
	}
	if r, ok := t.(helpers.FailureReporter); ok {
		r.ReportFailure(rt.FailureMessage())
	} else {
		t.Errorf("%s", rt.FailureMessage())
	}
	t.FailNow()
}
