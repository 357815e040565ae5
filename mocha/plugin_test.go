package mocha

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ejones/mocha-test-harness/framework/testhost"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	th "github.com/launchdarkly/go-test-helpers/v2"
	m "github.com/launchdarkly/go-test-helpers/v2/matchers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlugin(t *testing.T, env map[string]string, args ...string) *Plugin {
	p := NewPlugin(envMap(env))
	p.Loggers = ldlog.NewDisabledLoggers()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	p.RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return p
}

// scopeName is how a location outside the working directory appears in test IDs.
func scopeName(location string) string {
	return strings.TrimPrefix(filepath.ToSlash(location), "/")
}

// testIDsUnder lists, in completion order, the IDs of prefix and of the tests inside it.
func testIDsUnder(results testhost.Results, prefix string) []string {
	var ret []string
	for _, r := range results.Tests {
		if id := r.TestID.String(); id == prefix || strings.HasPrefix(id, prefix+"/") {
			ret = append(ret, id)
		}
	}
	return ret
}

func failureMessages(results testhost.Results) map[string][]string {
	ret := make(map[string][]string)
	for _, f := range results.Failures {
		for _, e := range f.Errors {
			ret[f.TestID.String()] = append(ret[f.TestID.String()], e.Error())
		}
	}
	return ret
}

func TestPluginLoadTests(t *testing.T) {
	dir := t.TempDir()
	fake := newFakeMocha(t, dir, "ok 1 adds\nnot ok 2 subtracts\n  AssertionError: 1 == 2\n", 1)
	location := filepath.Join(dir, "tests")
	p := newTestPlugin(t, map[string]string{"TEST_HARNESS_MOCHA_REQUIRE": "should"},
		"-mocha-bin", fake.path, "-mocha-bail")
	require.NoError(t, p.Configure([]string{location}))
	assert.Equal(t, []string{fake.path, "--reporter", "tap", "--require", "should", "--bail"}, p.CommandLine())

	results := testhost.Run(testhost.TestConfiguration{}, func(ht *testhost.T) {
		p.LoadTests(ht, dir)
		p.LoadTests(ht, location)
		p.LoadTests(ht, location)
	})

	name := scopeName(location)
	m.In(t).Assert(testIDsUnder(results, name), m.Items(
		m.Equal(name+"/adds"),
		m.Equal(name+"/subtracts"),
		m.Equal(name),
	))
	assert.Equal(t, map[string][]string{
		name + "/subtracts": {"subtracts\n  AssertionError: 1 == 2\n"},
	}, failureMessages(results))
	assert.Equal(t, []string{"--reporter", "tap", "--require", "should", "--bail", location}, fake.args(t))
}

func TestPluginLoadTestsReportsLaunchFailure(t *testing.T) {
	dir := t.TempDir()
	location := filepath.Join(dir, "tests")
	p := newTestPlugin(t, nil, "-mocha-bin", filepath.Join(dir, "missing-mocha"))
	require.NoError(t, p.Configure([]string{location}))

	results := testhost.Run(testhost.TestConfiguration{}, func(ht *testhost.T) {
		p.LoadTests(ht, location)
	})

	require.Len(t, results.Failures, 1)
	assert.Equal(t, scopeName(location), results.Failures[0].TestID.String())
	require.Len(t, results.Failures[0].Errors, 1)
	assert.Contains(t, results.Failures[0].Errors[0].Error(), "unable to load tests from "+location+": ")
}

func TestPluginNamesLocationsRelativeToWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	fake := newFakeMocha(t, dir, "ok 1 a\n", 0)
	cwd, err := os.Getwd()
	require.NoError(t, err)
	location := filepath.Join(cwd, "testdata")

	p := newTestPlugin(t, nil, "-mocha-bin", fake.path)
	require.NoError(t, p.Configure([]string{"testdata"}))

	results := testhost.Run(testhost.TestConfiguration{}, func(ht *testhost.T) {
		p.LoadTests(ht, location)
	})
	assert.Equal(t, []string{"testdata/a", "testdata"}, testIDsUnder(results, "testdata"))
}

func TestPluginWrappers(t *testing.T) {
	t.Run("named by option", func(t *testing.T) {
		dir := t.TempDir()
		fake := newFakeMocha(t, dir, "ok 1 a\nnot ok 2 b\n", 1)
		p := newTestPlugin(t, map[string]string{"TEST_HARNESS_MOCHA_WRAPPER_FUNC": "failures-only"},
			"-mocha-bin", fake.path)
		require.NoError(t, p.Configure([]string{"/x"}))

		results := testhost.Run(testhost.TestConfiguration{}, func(ht *testhost.T) {
			p.LoadTests(ht, "/x")
		})
		assert.Equal(t, []string{"x/b", "x"}, testIDsUnder(results, "x"))
	})

	t.Run("unknown name", func(t *testing.T) {
		p := newTestPlugin(t, nil, "-mocha-wrapper-func", "nope")
		assert.ErrorIs(t, p.Configure(nil), ErrUnknownWrapper)
	})

	t.Run("set programmatically", func(t *testing.T) {
		p := newTestPlugin(t, nil, "-mocha-wrapper-func", "nope")
		p.Wrapper = func(string, RunFunc) (RecordIterator, error) {
			return Records(Record{Status: StatusPass, Title: "from wrapper"}), nil
		}
		require.NoError(t, p.Configure([]string{"/x"}))

		results := testhost.Run(testhost.TestConfiguration{}, func(ht *testhost.T) {
			p.LoadTests(ht, "/x")
		})
		assert.Equal(t, []string{"x/from wrapper", "x"}, testIDsUnder(results, "x"))
	})

	t.Run("plugin launch options come first", func(t *testing.T) {
		dir := t.TempDir()
		fake := newFakeMochaScript(t, dir, "", `echo "ok 1 $A-$B"`)
		p := newTestPlugin(t, nil, "-mocha-bin", fake.path)
		p.LaunchOptions = []LaunchOption{WithEnv("A=plugin", "B=plugin")}
		p.Wrapper = func(_ string, run RunFunc) (RecordIterator, error) {
			return run(WithEnv("B=wrapper"))
		}
		require.NoError(t, p.Configure([]string{"/x"}))

		results := testhost.Run(testhost.TestConfiguration{}, func(ht *testhost.T) {
			p.LoadTests(ht, "/x")
		})
		assert.Equal(t, []string{"x/plugin-wrapper", "x"}, testIDsUnder(results, "x"))
	})

	t.Run("wrapper error", func(t *testing.T) {
		p := newTestPlugin(t, nil)
		p.Wrapper = func(string, RunFunc) (RecordIterator, error) { return nil, errors.New("no thanks") }
		require.NoError(t, p.Configure([]string{"/x"}))

		results := testhost.Run(testhost.TestConfiguration{}, func(ht *testhost.T) {
			p.LoadTests(ht, "/x")
		})
		assert.Equal(t, map[string][]string{
			"x": {"unable to load tests from /x: no thanks"},
		}, failureMessages(results))
	})
}

func TestPluginOptionsFile(t *testing.T) {
	p := newTestPlugin(t, nil, "-mocha-ui", "tdd")
	require.NoError(t, p.LoadOptionsFile("testdata/options.yaml"))
	assert.Equal(t, ldvalue.String("tdd"), p.Options().Get(KeyUI))
	assert.Equal(t, ldvalue.Bool(true), p.Options().Get(KeyBail))
}

func TestPluginAutoInstallSkipsExistingExecutable(t *testing.T) {
	dir := t.TempDir()
	fake := newFakeMocha(t, dir, "", 0)
	p := newTestPlugin(t, nil, "-mocha-bin", fake.path, "-mocha-auto-install", "-mocha-install-dir", dir)
	require.NoError(t, p.Configure(nil))
	assert.False(t, th.FilePathExists(filepath.Join(dir, "node_modules")))
	assert.True(t, p.Dispatcher().IsDefault())
}

func TestPluginNotConfigured(t *testing.T) {
	p := NewPlugin(nil)
	results := testhost.Run(testhost.TestConfiguration{}, func(ht *testhost.T) {
		p.LoadTests(ht, "/x")
	})
	assert.False(t, results.OK())
	assert.Nil(t, p.CommandLine())
}

type closeTracker struct {
	RecordIterator
	closed *bool
}

func (c closeTracker) Close() error {
	*c.closed = true
	return c.RecordIterator.Close()
}

func TestPluginLoadTestsWithFilteredLocation(t *testing.T) {
	t.Run("excluded location does not start mocha", func(t *testing.T) {
		dir := t.TempDir()
		fake := newFakeMocha(t, dir, "ok 1 adds\n", 0)
		location := filepath.Join(dir, "tests")
		p := newTestPlugin(t, nil, "-mocha-bin", fake.path)
		require.NoError(t, p.Configure([]string{location}))

		var filters testhost.RegexFilters
		require.NoError(t, filters.MustMatch.Set("adds"))
		results := testhost.Run(testhost.TestConfiguration{Filter: filters.Match}, func(ht *testhost.T) {
			p.LoadTests(ht, location)
		})

		assert.True(t, results.OK())
		assert.Len(t, testIDsUnder(results, scopeName(location)), 0)
		assert.False(t, fake.ran())
		assert.Len(t, p.Dispatcher().Outstanding(), 0)
	})

	t.Run("mocha is stopped if the location scope does not run", func(t *testing.T) {
		dir := t.TempDir()
		fake := newFakeMocha(t, dir, "ok 1 adds\n", 0)
		location := filepath.Join(dir, "tests")
		p := newTestPlugin(t, nil, "-mocha-bin", fake.path)
		started, closed := false, false
		p.Wrapper = func(_ string, run RunFunc) (RecordIterator, error) {
			records, err := run()
			if err != nil {
				return nil, err
			}
			started = true
			return closeTracker{RecordIterator: records, closed: &closed}, nil
		}
		require.NoError(t, p.Configure([]string{location}))

		// accepts each top-level scope the first time it is asked about it, and then rejects it
		asked := make(map[string]bool)
		filter := func(id testhost.TestID) bool {
			if len(id) != 1 {
				return true
			}
			seen := asked[id.String()]
			asked[id.String()] = true
			return !seen
		}
		results := testhost.Run(testhost.TestConfiguration{Filter: filter}, func(ht *testhost.T) {
			p.LoadTests(ht, location)
		})

		assert.True(t, results.OK())
		assert.True(t, started)
		assert.True(t, closed)
		assert.Len(t, p.Dispatcher().Outstanding(), 0)
	})
}

func TestPluginScopeNames(t *testing.T) {
	p := &Plugin{baseDir: filepath.Join("/", "work")}
	assert.Equal(t, []string{"..fixtures", "a"}, p.scopeNames(filepath.Join("/", "work", "..fixtures", "a")))
	assert.Equal(t, []string{"test", "unit"}, p.scopeNames(filepath.Join("/", "work", "test", "unit")))
	assert.Equal(t, []string{"."}, p.scopeNames(filepath.Join("/", "work")))
	assert.Equal(t, []string{"elsewhere", "x"}, p.scopeNames(filepath.Join("/", "elsewhere", "x")))
	assert.Equal(t, []string{"workshop"}, p.scopeNames(filepath.Join("/", "workshop")))
}
