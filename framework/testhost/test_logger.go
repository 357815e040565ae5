package testhost

import (
	"io"
	"strings"

	"github.com/ejones/mocha-test-harness/framework"
	"github.com/ejones/mocha-test-harness/framework/helpers"

	"github.com/fatih/color"
)

var consoleTestErrorColor = color.New(color.FgYellow)              //nolint:gochecknoglobals
var consoleTestFailedColor = color.New(color.FgRed)                //nolint:gochecknoglobals
var consoleTestSkippedColor = color.New(color.Faint, color.FgBlue) //nolint:gochecknoglobals
var consoleDebugOutputColor = color.New(color.Faint)               //nolint:gochecknoglobals
var allTestsPassedColor = color.New(color.FgGreen)                 //nolint:gochecknoglobals

// TestLogger receives status information about each test as the run progresses, and gets a
// chance to produce a final report with EndLog.
type TestLogger interface {
	TestStarted(id TestID)
	TestError(id TestID, err error)
	TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput)
	TestSkipped(id TestID, reason string)
	EndLog(results Results) error
}

type nullTestLogger struct{}

func (n nullTestLogger) TestStarted(TestID)                                        {}
func (n nullTestLogger) TestError(TestID, error)                                   {}
func (n nullTestLogger) TestFinished(TestID, TestResult, framework.CapturedOutput) {}
func (n nullTestLogger) TestSkipped(TestID, string)                                {}
func (n nullTestLogger) EndLog(Results) error                                      { return nil }

// ConsoleTestLogger writes human-readable progress to a terminal.
type ConsoleTestLogger struct {
	DebugOutputOnFailure bool
	DebugOutputOnSuccess bool

	// Out is where progress is written; nil means color.Output (standard output).
	Out io.Writer

	// ErrOut is where the failure summary is written; nil means color.Error (standard error).
	ErrOut io.Writer
}

func (c ConsoleTestLogger) out() io.Writer {
	return helpers.IfElse[io.Writer](c.Out == nil, color.Output, c.Out)
}

func (c ConsoleTestLogger) errOut() io.Writer {
	return helpers.IfElse[io.Writer](c.ErrOut == nil, color.Error, c.ErrOut)
}

func (c ConsoleTestLogger) TestStarted(id TestID) {
	helpers.MustFprintf(c.out(), "[%s]\n", id)
}

func (c ConsoleTestLogger) TestError(id TestID, err error) {
	for _, line := range strings.Split(strings.TrimRight(err.Error(), "\n"), "\n") {
		_, _ = consoleTestErrorColor.Fprintf(c.out(), "  %s\n", line)
	}
}

func (c ConsoleTestLogger) TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput) {
	failed := result.Failed()
	if failed {
		_, _ = consoleTestFailedColor.Fprintf(c.out(), "  FAILED: %s\n", id)
	}
	if len(debugOutput) > 0 &&
		((failed && c.DebugOutputOnFailure) || (!failed && c.DebugOutputOnSuccess)) {
		_, _ = consoleDebugOutputColor.Fprintln(c.out(), debugOutput.ToString("    DEBUG "))
	}
}

func (c ConsoleTestLogger) TestSkipped(id TestID, reason string) {
	if reason == "" {
		_, _ = consoleTestSkippedColor.Fprintf(c.out(), "  SKIPPED: %s\n", id)
	} else {
		_, _ = consoleTestSkippedColor.Fprintf(c.out(), "  SKIPPED: %s (%s)\n", id, reason)
	}
}

// EndLog prints the overall summary: a success line, or the list of failed tests.
func (c ConsoleTestLogger) EndLog(results Results) error {
	if results.OK() {
		_, _ = allTestsPassedColor.Fprintf(c.out(), "All tests passed (%d)\n", countLeafTests(results))
		return nil
	}
	_, _ = consoleTestFailedColor.Fprintf(c.errOut(), "FAILED TESTS (%d):\n", len(results.Failures))
	for _, f := range results.Failures {
		_, _ = consoleTestFailedColor.Fprintf(c.errOut(), "  * %s\n", f.TestID)
	}
	return nil
}

// MultiTestLogger forwards every event to each of Loggers in turn.
type MultiTestLogger struct {
	Loggers []TestLogger
}

func (m *MultiTestLogger) TestStarted(id TestID) {
	for _, l := range m.Loggers {
		l.TestStarted(id)
	}
}

func (m *MultiTestLogger) TestError(id TestID, err error) {
	for _, l := range m.Loggers {
		l.TestError(id, err)
	}
}

func (m *MultiTestLogger) TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput) {
	for _, l := range m.Loggers {
		l.TestFinished(id, result, debugOutput)
	}
}

func (m *MultiTestLogger) TestSkipped(id TestID, reason string) {
	for _, l := range m.Loggers {
		l.TestSkipped(id, reason)
	}
}

// EndLog calls EndLog on every logger, and returns the first error encountered.
func (m *MultiTestLogger) EndLog(results Results) error {
	var firstErr error
	for _, l := range m.Loggers {
		if err := l.EndLog(results); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// countLeafTests counts the tests that have no subtests. Scopes that only group other tests
// (a location, the root) are not interesting to a user reading the summary.
func countLeafTests(results Results) int {
	count := 0
	for i, r := range results.Tests {
		if len(r.TestID) == 0 {
			continue
		}
		isParent := false
		for _, other := range results.Tests[:i] {
			if len(other.TestID) > len(r.TestID) && TestID(other.TestID[:len(r.TestID)]).String() == r.TestID.String() {
				isParent = true
				break
			}
		}
		if !isParent {
			count++
		}
	}
	return count
}
