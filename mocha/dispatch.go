package mocha

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ejones/mocha-test-harness/framework/helpers"
	"github.com/ejones/mocha-test-harness/framework/opt"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"golang.org/x/exp/slices"
)

// RunFunc runs mocha for the location being dispatched and returns its parsed output.
type RunFunc func(launchOptions ...LaunchOption) (RecordIterator, error)

// WrapperFunc is called for each dispatched location with a function that runs mocha for it.
// It may change how the process is launched, transform or filter the records, or not run
// mocha at all.
type WrapperFunc func(location string, run RunFunc) (RecordIterator, error)

// IdentityWrapper just runs mocha.
func IdentityWrapper(_ string, run RunFunc) (RecordIterator, error) {
	return run()
}

// NormalizeLocation makes a path absolute and cleans it, so that it can be compared with other
// normalized paths.
func NormalizeLocation(path string) (string, error) {
	return filepath.Abs(path)
}

// Dispatcher decides which locations mocha runs for. It is created with the locations the user
// asked for, and hands each of them out once: the first Dispatch of a location claims it and
// runs mocha, and later requests for the same location get nothing.
//
// With no locations at all the dispatcher is in default mode: its only location is the current
// directory, and mocha is run without a target so that it uses its own default test directory.
type Dispatcher struct {
	runner      *Runner
	wrapper     WrapperFunc
	loggers     ldlog.Loggers
	isDefault   bool
	outstanding []string
	lock        sync.Mutex
}

// NewDispatcher creates a Dispatcher for targets, which are normalized with NormalizeLocation.
// A nil wrapper means IdentityWrapper.
func NewDispatcher(runner *Runner, targets []string, wrapper WrapperFunc, loggers ldlog.Loggers) (*Dispatcher, error) {
	isDefault := len(targets) == 0
	if isDefault {
		targets = []string{"."}
	}
	outstanding := make([]string, 0, len(targets))
	for _, target := range targets {
		location, err := NormalizeLocation(target)
		if err != nil {
			return nil, fmt.Errorf("invalid test location %q: %w", target, err)
		}
		if !slices.Contains(outstanding, location) {
			outstanding = append(outstanding, location)
		}
	}
	if wrapper == nil {
		wrapper = IdentityWrapper
	}
	return &Dispatcher{
		runner:      runner,
		wrapper:     wrapper,
		loggers:     loggers,
		isDefault:   isDefault,
		outstanding: outstanding,
	}, nil
}

// IsDefault is true if the dispatcher was created without targets.
func (d *Dispatcher) IsDefault() bool {
	return d.isDefault
}

// Outstanding returns the locations that have not been dispatched yet, in their original order.
func (d *Dispatcher) Outstanding() []string {
	d.lock.Lock()
	defer d.lock.Unlock()
	return helpers.CopyOf(d.outstanding)
}

func (d *Dispatcher) claim(location string) bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	i := slices.Index(d.outstanding, location)
	if i < 0 {
		return false
	}
	d.outstanding = slices.Delete(d.outstanding, i, i+1)
	return true
}

// Discard claims location without running mocha for it, for a location whose tests will not be
// run at all. It reports whether location was outstanding.
func (d *Dispatcher) Discard(location string) bool {
	if !d.claim(location) {
		return false
	}
	d.loggers.Debugf("Not running mocha for %s", location)
	return true
}

// Dispatch runs mocha for location if it is still outstanding, and returns its test cases. It
// returns nil and no error if the location is not one of the outstanding ones. The location is
// claimed before mocha starts, so a launch failure still uses up the claim.
func (d *Dispatcher) Dispatch(location string) (*Tests, error) {
	if !d.claim(location) {
		return nil, nil
	}
	d.loggers.Debugf("Dispatching %s", location)

	target := opt.Some(location)
	if d.isDefault {
		target = opt.None[string]()
	}
	run := func(launchOptions ...LaunchOption) (RecordIterator, error) {
		lines, err := d.runner.Start(target, launchOptions...)
		if err != nil {
			return nil, err
		}
		return ParseRecords(lines), nil
	}

	records, err := d.wrapper(location, run)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = Records()
	}
	return &Tests{records: records}, nil
}

// Tests is the sequence of test cases produced by one dispatched location. A nil *Tests is an
// empty sequence.
type Tests struct {
	records RecordIterator
	current RecordTest
}

func (t *Tests) Next() bool {
	if t == nil || !t.records.Next() {
		return false
	}
	t.current = RecordTest{Record: t.records.Record()}
	return true
}

// Test returns the test case that Next advanced to.
func (t *Tests) Test() RecordTest { return t.current }

func (t *Tests) Err() error {
	if t == nil {
		return nil
	}
	return t.records.Err()
}

// Close releases the underlying mocha process.
func (t *Tests) Close() error {
	if t == nil {
		return nil
	}
	return t.records.Close()
}
