package mocha

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ErrUnknownWrapper is returned by LookupWrapper for a name that was never registered.
var ErrUnknownWrapper = errors.New("unknown wrapper")

var (
	wrappersLock sync.RWMutex                   //nolint:gochecknoglobals
	wrappers     = make(map[string]WrapperFunc) //nolint:gochecknoglobals
)

func init() { //nolint:gochecknoinits
	RegisterWrapper("identity", IdentityWrapper)
	RegisterWrapper("failures-only", FailuresOnlyWrapper)
}

// RegisterWrapper makes a wrapper available by name to the wrapper-func option. Registering a
// name again replaces the earlier wrapper.
func RegisterWrapper(name string, wrapper WrapperFunc) {
	if wrapper == nil {
		panic("mocha: RegisterWrapper wrapper is nil")
	}
	wrappersLock.Lock()
	defer wrappersLock.Unlock()
	wrappers[name] = wrapper
}

// LookupWrapper finds a registered wrapper. The empty name means IdentityWrapper.
func LookupWrapper(name string) (WrapperFunc, error) {
	if name == "" {
		return IdentityWrapper, nil
	}
	wrappersLock.RLock()
	defer wrappersLock.RUnlock()
	if w, ok := wrappers[name]; ok {
		return w, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownWrapper, name)
}

// WrapperNames lists the registered wrappers in alphabetical order.
func WrapperNames() []string {
	wrappersLock.RLock()
	defer wrappersLock.RUnlock()
	names := maps.Keys(wrappers)
	slices.Sort(names)
	return names
}

// FailuresOnlyWrapper runs mocha and drops passing records, for when only the failures are of
// interest.
func FailuresOnlyWrapper(_ string, run RunFunc) (RecordIterator, error) {
	records, err := run()
	if err != nil {
		return nil, err
	}
	return FilterRecords(records, func(r Record) bool { return r.Status == StatusFail }), nil
}
