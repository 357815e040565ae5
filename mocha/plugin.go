package mocha

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/ejones/mocha-test-harness/framework/opt"
	"github.com/ejones/mocha-test-harness/framework/testhost"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

var errNotConfigured = errors.New("mocha plugin was used before Configure")

// Plugin connects mocha to the testhost framework.
//
// Usage: create it with NewPlugin, call RegisterFlags before parsing the command line, optionally
// LoadOptionsFile, then Configure with the locations that were asked for. After that, the host
// calls LoadTests for every location it discovers.
type Plugin struct {
	// Wrapper, if set, is used instead of the wrapper named by the wrapper-func option.
	Wrapper WrapperFunc

	// LaunchOptions are applied to every mocha process, before any the wrapper passes.
	LaunchOptions []LaunchOption

	Loggers ldlog.Loggers

	options    *OptionSet
	runner     *Runner
	dispatcher *Dispatcher
	baseDir    string
}

// NewPlugin creates a Plugin whose option defaults are taken from the environment through
// lookupEnv (normally os.LookupEnv).
func NewPlugin(lookupEnv LookupEnvFunc) *Plugin {
	return &Plugin{options: NewOptionSet(lookupEnv)}
}

// Options gives access to the plugin's option values.
func (p *Plugin) Options() *OptionSet {
	return p.options
}

// RegisterFlags declares the -mocha-* flags on fs.
func (p *Plugin) RegisterFlags(fs *flag.FlagSet) {
	p.options.RegisterFlags(fs)
}

// LoadOptionsFile reads option values from a YAML file. See OptionSet.LoadFile.
func (p *Plugin) LoadOptionsFile(path string) error {
	return p.options.LoadFile(path)
}

// Configure prepares the plugin to load tests for targets. An empty list of targets means
// mocha's default test directory.
func (p *Plugin) Configure(targets []string) error {
	wrapper := p.Wrapper
	if wrapper == nil {
		w, err := LookupWrapper(p.options.Get(KeyWrapperFunc).StringValue())
		if err != nil {
			return err
		}
		wrapper = w
	}

	executable := p.options.Get(KeyBin).StringValue()
	if strings.ContainsRune(executable, os.PathSeparator) || strings.ContainsRune(executable, '/') {
		// relative paths must not depend on the directory the process is launched in
		abs, err := filepath.Abs(executable)
		if err != nil {
			return err
		}
		executable = abs
	}
	if p.options.Get(KeyAutoInstall).BoolValue() {
		installer := Installer{Loggers: p.Loggers, Output: os.Stderr}
		installDir := opt.FromNonZero(p.options.Get(KeyInstallDir).StringValue()).OrElse(".")
		if err := installer.EnsureInstalled(executable, installDir, "mocha"); err != nil {
			return err
		}
	}

	p.runner = &Runner{
		Executable: executable,
		Options:    p.options.Options(),
		Loggers:    p.Loggers,
	}
	dispatcher, err := NewDispatcher(p.runner, targets, p.wrapLaunchOptions(wrapper), p.Loggers)
	if err != nil {
		return err
	}
	p.dispatcher = dispatcher
	if p.baseDir, err = os.Getwd(); err != nil {
		p.baseDir = ""
	}
	return nil
}

func (p *Plugin) wrapLaunchOptions(wrapper WrapperFunc) WrapperFunc {
	if len(p.LaunchOptions) == 0 {
		return wrapper
	}
	return func(location string, run RunFunc) (RecordIterator, error) {
		return wrapper(location, func(launchOptions ...LaunchOption) (RecordIterator, error) {
			return run(append(append([]LaunchOption(nil), p.LaunchOptions...), launchOptions...)...)
		})
	}
}

// Dispatcher returns the dispatcher created by Configure, or nil before that.
func (p *Plugin) Dispatcher() *Dispatcher {
	return p.dispatcher
}

// CommandLine is the mocha command that will be run for the default location, for display.
func (p *Plugin) CommandLine() []string {
	if p.runner == nil {
		return nil
	}
	return p.runner.CommandLine(opt.None[string]())
}

// LoadTests runs mocha for location if it is one of the outstanding locations, and adds its
// results to t. The location becomes a nested scope per path component, relative to the working
// directory when it is under it, and each mocha test case is a subtest of the innermost one.
// Locations that are not outstanding are ignored. A location whose scope is excluded by the test
// filter is used up without running mocha.
func (p *Plugin) LoadTests(t *testhost.T, location string) {
	names := p.scopeNames(location)
	if p.dispatcher == nil {
		runNested(t, names, func(t *testhost.T) {
			t.Errorf("unable to load tests from %s: %s", location, errNotConfigured)
		})
		return
	}
	if t.Excludes(names...) {
		if p.dispatcher.Discard(location) {
			runNested(t, names, func(*testhost.T) {})
		}
		return
	}
	tests, err := p.dispatcher.Dispatch(location)
	if err == nil && tests == nil {
		return
	}
	entered := false
	runNested(t, names, func(t *testhost.T) {
		entered = true
		if err != nil {
			t.Errorf("unable to load tests from %s: %s", location, err)
			return
		}
		t.Defer(func() { p.closeTests(location, tests) })
		t.Debug("mocha results for %s", location)
		for tests.Next() {
			test := tests.Test()
			t.Run(test.Name(), func(t *testhost.T) { test.Run(t) })
		}
		if err := tests.Err(); err != nil {
			t.Errorf("error reading mocha output for %s: %s", location, err)
		}
	})
	if !entered {
		p.closeTests(location, tests)
	}
}

func (p *Plugin) closeTests(location string, tests *Tests) {
	if err := tests.Close(); err != nil {
		p.Loggers.Warnf("Error stopping mocha for %s: %s", location, err)
	}
}

func runNested(t *testhost.T, names []string, action func(*testhost.T)) {
	if len(names) == 0 {
		action(t)
		return
	}
	t.Run(names[0], func(t *testhost.T) { runNested(t, names[1:], action) })
}

func (p *Plugin) scopeNames(location string) []string {
	name := location
	if p.baseDir != "" {
		if rel, err := filepath.Rel(p.baseDir, location); err == nil && !isOutside(rel) {
			name = rel
		}
	}
	var names []string
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if part != "" {
			names = append(names, part)
		}
	}
	if len(names) == 0 {
		return []string{location}
	}
	return names
}

// isOutside is true for a relative path that leads out of its base directory.
func isOutside(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
