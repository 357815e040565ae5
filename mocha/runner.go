package mocha

import (
	"bufio"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/ejones/mocha-test-harness/framework/helpers"
	"github.com/ejones/mocha-test-harness/framework/opt"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// Reporter is the mocha reporter whose output ParseRecords understands.
const Reporter = "tap"

// LaunchOption customizes how the mocha process is started.
type LaunchOption = helpers.ConfigOption[exec.Cmd]

// WithDir sets the working directory of the process.
func WithDir(dir string) LaunchOption {
	return helpers.ConfigOptionFunc[exec.Cmd](func(cmd *exec.Cmd) error {
		cmd.Dir = dir
		return nil
	})
}

// WithEnv adds "NAME=value" entries to the environment the process inherits.
func WithEnv(vars ...string) LaunchOption {
	return helpers.ConfigOptionFunc[exec.Cmd](func(cmd *exec.Cmd) error {
		if cmd.Env == nil {
			cmd.Env = os.Environ()
		}
		cmd.Env = append(cmd.Env, vars...)
		return nil
	})
}

// WithStderr sends the process's standard error to w. By default it is discarded.
func WithStderr(w io.Writer) LaunchOption {
	return helpers.ConfigOptionFunc[exec.Cmd](func(cmd *exec.Cmd) error {
		cmd.Stderr = w
		return nil
	})
}

// Runner starts mocha(1) processes.
type Runner struct {
	// Executable is the path to the mocha script.
	Executable string

	// Options are passed through as command-line flags.
	Options Options

	Loggers ldlog.Loggers
}

// CommandLine returns the full argument vector for running mocha on target: the executable, the
// TAP reporter selection, the configured options, then the target if there is one. Without a
// target, mocha falls back to its own default of ./test.
func (r *Runner) CommandLine(target opt.Maybe[string]) []string {
	argv := []string{r.Executable, "--reporter", Reporter}
	argv = append(argv, r.Options.Args()...)
	if target.IsDefined() {
		argv = append(argv, target.Value())
	}
	return argv
}

// Start launches mocha and returns its standard output as a line stream. The caller must Close
// the stream. An error is returned only if the process could not be started; a nonzero exit
// status is normal when tests fail, so it is not reported.
func (r *Runner) Start(target opt.Maybe[string], launchOptions ...LaunchOption) (*Lines, error) {
	argv := r.CommandLine(target)
	r.Loggers.Infof("Running %s", strings.Join(argv, " "))

	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec
	if err := helpers.ApplyOptions(cmd, launchOptions...); err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &Lines{LineReader: NewLineReader(stdout), cmd: cmd}, nil
}

// LineSource is a stream of text lines, each including its trailing newline if it had one.
type LineSource interface {
	// Next advances to the next line, returning false at the end of the stream or on an error.
	Next() bool
	// Line returns the line that Next advanced to.
	Line() string
	// Err returns the error that stopped the stream, if it was anything other than end-of-file.
	Err() error
	Close() error
}

// LineReader is a LineSource over any io.Reader.
type LineReader struct {
	reader *bufio.Reader
	closer io.Closer
	line   string
	err    error
	done   bool
	atEOF  bool
}

// NewLineReader creates a LineReader. If r is also an io.Closer, Close closes it.
func NewLineReader(r io.Reader) *LineReader {
	closer, _ := r.(io.Closer)
	return &LineReader{reader: bufio.NewReader(r), closer: closer}
}

func (l *LineReader) Next() bool {
	if l.done {
		return false
	}
	line, err := l.reader.ReadString('\n')
	if err != nil {
		l.done = true
		if errors.Is(err, io.EOF) {
			l.atEOF = true
		} else {
			l.err = err
		}
		if line == "" {
			l.line = ""
			return false
		}
	}
	l.line = line
	return true
}

func (l *LineReader) Line() string { return l.line }

func (l *LineReader) Err() error { return l.err }

func (l *LineReader) Close() error {
	l.done = true
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// Lines is the standard output of a running mocha process.
type Lines struct {
	*LineReader
	cmd    *exec.Cmd
	closed bool
}

// Close waits for the process to exit. Unless the output was read up to end-of-file, the process
// is killed first; a read error leaves it running otherwise. The exit status is not reported.
func (l *Lines) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	l.LineReader.done = true
	if !l.LineReader.atEOF && l.cmd.Process != nil {
		_ = l.cmd.Process.Kill()
	}
	err := l.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
