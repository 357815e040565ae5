package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ejones/mocha-test-harness/framework/testhost"
	"github.com/ejones/mocha-test-harness/mocha"
)

type commandParams struct {
	filters        testhost.RegexFilters
	debug          bool
	debugAll       bool
	jUnitFile      string
	configFile     string
	recordFailures string
	skipFile       string
	locations      []string
}

func (c *commandParams) Read(args []string, plugin *mocha.Plugin) bool {
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] [location ...]\n", fs.Name())
		fs.PrintDefaults()
	}
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")
	fs.StringVar(&c.jUnitFile, "junit", "", "write JUnit XML output to the specified path")
	fs.StringVar(&c.configFile, "config", "", "read mocha options from the specified YAML file")
	fs.StringVar(&c.recordFailures, "record-failures", "", "record failed test IDs to the given file")
	fs.StringVar(&c.skipFile, "skip-from", "", "skip tests whose IDs are listed in the given file")
	plugin.RegisterFlags(fs)

	if err := fs.Parse(args[1:]); err != nil {
		if err != flag.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
		}
		return false
	}
	c.locations = fs.Args()
	return true
}
