package main

import (
	"bufio"
	_ "embed" // this is required in order for go:embed to work
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"

	"github.com/ejones/mocha-test-harness/framework/testhost"
	"github.com/ejones/mocha-test-harness/mocha"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

//go:embed VERSION
var versionString string // comes from the VERSION file which we update for each release

func main() {
	fmt.Printf("mocha-test-harness v%s\n", strings.TrimSpace(versionString))

	plugin := mocha.NewPlugin(os.LookupEnv)
	var params commandParams
	if !params.Read(os.Args, plugin) {
		os.Exit(1)
	}

	results, err := run(params, plugin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !results.OK() {
		os.Exit(1)
	}
}

func run(params commandParams, plugin *mocha.Plugin) (*testhost.Results, error) {
	if params.skipFile != "" {
		if err := loadSuppressions(&params); err != nil {
			return nil, err
		}
	}

	plugin.Loggers = makeLoggers(params)
	if params.configFile != "" {
		if err := plugin.LoadOptionsFile(params.configFile); err != nil {
			return nil, err
		}
	}
	if err := plugin.Configure(params.locations); err != nil {
		return nil, err
	}

	var testLogger testhost.TestLogger
	consoleLogger := testhost.ConsoleTestLogger{
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	if params.jUnitFile == "" {
		testLogger = consoleLogger
	} else {
		properties := map[string]string{
			"tests.harness.version": strings.TrimSpace(versionString),
			"tests.runner.command":  strings.Join(plugin.CommandLine(), " "),
		}
		testLogger = &testhost.MultiTestLogger{Loggers: []testhost.TestLogger{
			consoleLogger,
			testhost.NewJUnitTestLogger(params.jUnitFile, "mocha: ", properties, params.filters),
		}}
	}

	testhost.PrintFilterDescription(os.Stdout, params.filters)

	results := testhost.Run(
		testhost.TestConfiguration{Filter: params.filters.Match, TestLogger: testLogger},
		func(t *testhost.T) { discoverTests(t, plugin, params.locations) },
	)

	fmt.Println()
	if err := testLogger.EndLog(results); err != nil {
		return nil, fmt.Errorf("error writing log: %v", err)
	}

	if params.recordFailures != "" {
		if err := recordFailures(params.recordFailures, results); err != nil {
			return nil, err
		}
	}

	return &results, nil
}

func makeLoggers(params commandParams) ldlog.Loggers {
	var loggers ldlog.Loggers
	loggers.SetBaseLogger(log.New(os.Stderr, "[mocha] ", log.LstdFlags))
	switch {
	case params.debugAll:
		loggers.SetMinLevel(ldlog.Debug)
	case params.debug:
		loggers.SetMinLevel(ldlog.Info)
	default:
		loggers.SetMinLevel(ldlog.Warn)
	}
	return loggers
}

func recordFailures(path string, results testhost.Results) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create suppression file: %v", err)
	}
	for _, test := range results.Failures {
		fmt.Fprintln(f, test.TestID)
	}
	return f.Close()
}

func loadSuppressions(params *commandParams) error {
	file, err := os.Open(params.skipFile)
	if err != nil {
		return fmt.Errorf("cannot open provided suppression file: %v", err)
	}
	defer func() { _ = file.Close() }()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		// Ignore blank lines
		if strings.TrimSpace(line) == "" {
			continue
		}
		escaped := regexp.QuoteMeta(line)
		if err := params.filters.MustNotMatch.Set(escaped); err != nil {
			return fmt.Errorf("cannot parse suppression: %v", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("while processing suppression file: %v", err)
	}
	return nil
}
