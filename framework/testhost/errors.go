package testhost

import (
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"strings"
)

// A test scope can fail for two kinds of reasons. Go code running in the scope can call Errorf,
// usually through a testify assertion; that failure is an ErrorWithStacktrace pointing at the
// Go code. Or the scope can relay a result that an external test runner already decided, with
// ReportFailure; that failure is a plain error holding the runner's own text, because the
// location that matters is in the runner's output and not in the Go code that relayed it.

// ErrorWithStacktrace is a failure reported by Go code, with the calls that led to it.
type ErrorWithStacktrace struct {
	Message    string
	Stacktrace []StacktraceInfo
}

// StacktraceInfo is one frame of an ErrorWithStacktrace.
type StacktraceInfo struct {
	FileName string
	Package  string
	Function string
	Line     int
}

func (e ErrorWithStacktrace) Error() string { return e.Message }

func (s StacktraceInfo) String() string {
	packageName := strings.TrimPrefix(s.Package, rootPackageName()+"/")
	return fmt.Sprintf("%s.%s (%s:%d)", packageName, s.Function, s.FileName, s.Line)
}

// testify prefixes its messages with its own "Error Trace:" block, which duplicates ours.
var testifyTracePrefixRegex = regexp.MustCompile(`^(?s:\s*Error Trace:.*\sError:\s*)`)

// assertionFailure builds the error recorded by Errorf.
func assertionFailure(err error, stacktrace []StacktraceInfo) error {
	message := err.Error()
	if strings.Contains(message, "Error Trace:") {
		message = strings.TrimSpace(testifyTracePrefixRegex.ReplaceAllLiteralString(message, ""))
	}
	if len(stacktrace) == 0 {
		return errors.New(message)
	}
	return ErrorWithStacktrace{Message: message, Stacktrace: stacktrace}
}

// relayedFailure builds the error recorded by ReportFailure. The message is kept byte for byte,
// including leading and trailing whitespace.
func relayedFailure(message string) error {
	return errors.New(message)
}

// callerFilter decides which frames go into the stacktrace of an assertion failure.
type callerFilter struct {
	// keepFramework includes frames from this package; only its own tests want them.
	keepFramework bool
	// helpers are full function names registered with T.Helper.
	helpers []string
}

// capture walks the stack of the current goroutine up to the testhost.Run that started the test
// run. skip is the number of frames above capture's caller to leave out.
func (f callerFilter) capture(skip int) []StacktraceInfo {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip+2, pcs) // 0 is runtime.Callers, 1 is capture
	frames := runtime.CallersFrames(pcs[:n])
	framework := currentPackageName()

	trace := []StacktraceInfo{}
	for {
		frame, more := frames.Next()
		if frame.Function == "" {
			break
		}
		packageName, functionName := parsePackageAndFunctionName(frame.Function)
		if packageName == framework && functionName == "Run" {
			break
		}
		if f.keeps(frame.Function, packageName == framework) {
			trace = append(trace, StacktraceInfo{
				FileName: frame.File[strings.LastIndex(frame.File, "/")+1:],
				Package:  packageName,
				Function: functionName,
				Line:     frame.Line,
			})
		}
		if !more {
			break
		}
	}
	return trace
}

func (f callerFilter) keeps(fullFunctionName string, inFramework bool) bool {
	if inFramework && !f.keepFramework {
		return false
	}
	for _, h := range f.helpers {
		if h == fullFunctionName {
			return false
		}
	}
	return true
}

func currentPackageName() string {
	pc, _, _, ok := runtime.Caller(0)
	if !ok {
		return "?"
	}
	f := runtime.FuncForPC(pc)
	if f == nil {
		return "?"
	}
	packageName, _ := parsePackageAndFunctionName(f.Name())
	return packageName
}

// rootPackageName is the module path, which is trimmed from package names in stacktraces.
func rootPackageName() string {
	p := currentPackageName()
	return strings.Join(strings.Split(p, "/")[0:3], "/")
}

func parsePackageAndFunctionName(fullName string) (string, string) {
	lastSlash := strings.LastIndex(fullName, "/")
	firstDotAfterSlash := strings.Index(fullName[lastSlash+1:], ".")
	packageName := fullName[0 : lastSlash+firstDotAfterSlash+1]
	functionName := fullName[len(packageName)+1:]
	return packageName, functionName
}
