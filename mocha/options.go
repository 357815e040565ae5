package mocha

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// OptionKind determines how an option's value is parsed and how it is passed to mocha.
type OptionKind int

const (
	// StringOption values are passed as "--flag VALUE".
	StringOption OptionKind = iota
	// BoolOption values are passed as "--flag" when true, and not at all when false.
	BoolOption
	// ListOption values are passed as "--flag ITEM" once for each item.
	ListOption
)

// Option keys.
const (
	KeyWrapperFunc = "wrapper-func"
	KeyRequire     = "require"
	KeyUI          = "ui"
	KeyGrep        = "grep"
	KeyInvert      = "invert"
	KeyTimeout     = "timeout"
	KeySlow        = "slow"
	KeyBail        = "bail"
	KeyRecursive   = "recursive"
	KeyGlobals     = "globals"
	KeyIgnoreLeaks = "ignore-leaks"
	KeyCompilers   = "compilers"
	KeyBin         = "bin"
	KeyInstallDir  = "install-dir"
	KeyAutoInstall = "auto-install"
)

// FlagPrefix is prepended to option keys to form the host's command-line flag names.
const FlagPrefix = "mocha-"

// EnvVarPrefix is prepended to the transformed flag name to form the name of the environment
// variable that supplies an option's default.
const EnvVarPrefix = "TEST_HARNESS_"

// DefaultExecutable is where npm puts the mocha script for a local install.
const DefaultExecutable = "node_modules/.bin/mocha"

// ErrUnknownOption is returned for option keys that are not in OptionDefs.
var ErrUnknownOption = errors.New("unknown mocha option")

// OptionDef describes one entry of the configuration surface.
type OptionDef struct {
	Key  string
	Kind OptionKind

	// RunnerFlag is the mocha(1) flag the option is passed through as. Options that configure
	// the plugin itself have none.
	RunnerFlag string

	Metavar string
	Usage   string
	Default ldvalue.Value
}

// OptionDefs lists every option, in the order their arguments appear on mocha's command line.
var OptionDefs = []OptionDef{ //nolint:gochecknoglobals
	{Key: KeyWrapperFunc, Kind: StringOption, Metavar: "NAME",
		Usage: "name of a registered wrapper that is called with each location and a function that runs mocha(1) for it"},
	{Key: KeyRequire, Kind: ListOption, RunnerFlag: "--require", Metavar: "NAME",
		Usage: "require the given module (repeatable)"},
	{Key: KeyUI, Kind: StringOption, RunnerFlag: "--ui", Metavar: "NAME",
		Usage: "specify user-interface (bdd|tdd|exports)"},
	{Key: KeyGrep, Kind: StringOption, RunnerFlag: "--grep", Metavar: "PATTERN",
		Usage: "only run tests matching <pattern>"},
	{Key: KeyInvert, Kind: BoolOption, RunnerFlag: "--invert",
		Usage: "inverts --grep matches"},
	{Key: KeyTimeout, Kind: StringOption, RunnerFlag: "--timeout", Metavar: "MS",
		Usage: "set test-case timeout in milliseconds [2000]"},
	{Key: KeySlow, Kind: StringOption, RunnerFlag: "--slow", Metavar: "MS",
		Usage: "'slow' test threshold in milliseconds [75]"},
	{Key: KeyBail, Kind: BoolOption, RunnerFlag: "--bail",
		Usage: "bail after first test failure"},
	{Key: KeyRecursive, Kind: BoolOption, RunnerFlag: "--recursive",
		Usage: "include sub directories"},
	{Key: KeyGlobals, Kind: StringOption, RunnerFlag: "--globals", Metavar: "NAMES",
		Usage: "allow the given comma-delimited global [names]"},
	{Key: KeyIgnoreLeaks, Kind: BoolOption, RunnerFlag: "--ignore-leaks",
		Usage: "ignore global variable leaks"},
	{Key: KeyCompilers, Kind: StringOption, RunnerFlag: "--compilers", Metavar: "<ext>:<module>,...",
		Usage: "use the given module(s) to compile files"},
	{Key: KeyBin, Kind: StringOption, Metavar: "PATH", Default: ldvalue.String(DefaultExecutable),
		Usage: "path to the mocha executable"},
	{Key: KeyInstallDir, Kind: StringOption, Metavar: "DIR", Default: ldvalue.String("."),
		Usage: "directory in which to run 'npm install mocha' when auto-install is enabled"},
	{Key: KeyAutoInstall, Kind: BoolOption,
		Usage: "install mocha with npm if the executable is missing"},
}

// LookupOptionDef finds an option by key.
func LookupOptionDef(key string) (OptionDef, bool) {
	i := slices.IndexFunc(OptionDefs, func(def OptionDef) bool { return def.Key == key })
	if i < 0 {
		return OptionDef{}, false
	}
	return OptionDefs[i], true
}

// FlagName is the host command-line flag for the option.
func (def OptionDef) FlagName() string {
	return FlagPrefix + def.Key
}

// EnvVarName is the environment variable that supplies a default for the given flag: the flag
// name upper-cased, with every character other than a letter or digit replaced by an underscore,
// after EnvVarPrefix. For instance, "mocha-ignore-leaks" becomes TEST_HARNESS_MOCHA_IGNORE_LEAKS.
func EnvVarName(flagName string) string {
	var b strings.Builder
	b.WriteString(EnvVarPrefix)
	for _, ch := range strings.ToUpper(flagName) {
		if (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			b.WriteRune(ch)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Options is the configuration mapping passed to mocha(1): option key to value. A value is a
// string, a number, a boolean, or an array of strings/numbers.
type Options map[string]ldvalue.Value

// Args converts the mapping to command-line arguments, in OptionDefs order. True booleans produce
// just the flag; arrays produce the flag once per item; strings and numbers produce the flag and
// the value. False, null, empty strings and empty arrays produce nothing. Keys that are not runner
// options are ignored.
func (o Options) Args() []string {
	var args []string
	for _, def := range OptionDefs {
		if def.RunnerFlag == "" {
			continue
		}
		args = appendOptionArgs(args, def.RunnerFlag, o[def.Key])
	}
	return args
}

func appendOptionArgs(args []string, flagName string, value ldvalue.Value) []string {
	switch value.Type() {
	case ldvalue.BoolType:
		if value.BoolValue() {
			args = append(args, flagName)
		}
	case ldvalue.StringType:
		if value.StringValue() != "" {
			args = append(args, flagName, value.StringValue())
		}
	case ldvalue.NumberType:
		args = append(args, flagName, scalarString(value))
	case ldvalue.ArrayType:
		for i := 0; i < value.Count(); i++ {
			args = append(args, flagName, scalarString(value.GetByIndex(i)))
		}
	}
	return args
}

func scalarString(value ldvalue.Value) string {
	switch value.Type() {
	case ldvalue.StringType:
		return value.StringValue()
	case ldvalue.NumberType:
		if value.IsInt() {
			return strconv.Itoa(value.IntValue())
		}
		return strconv.FormatFloat(value.Float64Value(), 'f', -1, 64)
	case ldvalue.BoolType:
		return strconv.FormatBool(value.BoolValue())
	default:
		return value.JSONString()
	}
}

// coerce checks that a value is acceptable for the option's kind, converting where there is an
// obvious conversion (a number for a string option, a single string for a list option).
func (def OptionDef) coerce(value ldvalue.Value) (ldvalue.Value, error) {
	switch def.Kind {
	case BoolOption:
		if value.Type() == ldvalue.BoolType {
			return value, nil
		}
	case StringOption:
		switch value.Type() {
		case ldvalue.StringType:
			return value, nil
		case ldvalue.NumberType:
			return ldvalue.String(scalarString(value)), nil
		}
	case ListOption:
		switch value.Type() {
		case ldvalue.StringType, ldvalue.NumberType:
			return ldvalue.ArrayOf(ldvalue.String(scalarString(value))), nil
		case ldvalue.ArrayType:
			items := make([]ldvalue.Value, 0, value.Count())
			for i := 0; i < value.Count(); i++ {
				item := value.GetByIndex(i)
				if item.Type() != ldvalue.StringType && item.Type() != ldvalue.NumberType {
					return ldvalue.Null(), fmt.Errorf("list items must be strings, got %s", item.JSONString())
				}
				items = append(items, ldvalue.String(scalarString(item)))
			}
			return ldvalue.ArrayOf(items...), nil
		}
	}
	return ldvalue.Null(), fmt.Errorf("unsupported value %s", value.JSONString())
}

// LookupEnvFunc has the signature of os.LookupEnv.
type LookupEnvFunc func(name string) (string, bool)

type optionSource int

const (
	sourceDefault optionSource = iota
	sourceFile
	sourceEnv
	sourceFlag
)

// optionValue is the current value of one option. It implements flag.Value.
type optionValue struct {
	def    OptionDef
	value  ldvalue.Value
	source optionSource
}

func (v *optionValue) String() string {
	if v == nil || v.value.IsNull() {
		return ""
	}
	if v.value.Type() == ldvalue.ArrayType {
		items := make([]string, 0, v.value.Count())
		for i := 0; i < v.value.Count(); i++ {
			items = append(items, scalarString(v.value.GetByIndex(i)))
		}
		return strings.Join(items, ",")
	}
	return scalarString(v.value)
}

// Set is called by the flag package. Values given on the command line replace anything that
// came from the environment or a file; repeated list flags accumulate.
func (v *optionValue) Set(s string) error {
	switch v.def.Kind {
	case BoolOption:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		v.value = ldvalue.Bool(b)
	case ListOption:
		var items []ldvalue.Value
		if v.source == sourceFlag {
			for i := 0; i < v.value.Count(); i++ {
				items = append(items, v.value.GetByIndex(i))
			}
		}
		v.value = ldvalue.ArrayOf(append(items, ldvalue.String(s))...)
	default:
		v.value = ldvalue.String(s)
	}
	v.source = sourceFlag
	return nil
}

func (v *optionValue) IsBoolFlag() bool {
	return v.def.Kind == BoolOption
}

func (v *optionValue) setFromEnv(s string) {
	switch v.def.Kind {
	case BoolOption:
		b, err := strconv.ParseBool(s)
		if err != nil {
			// the variable is present, and that is what enables a switch
			b = true
		}
		v.value = ldvalue.Bool(b)
	case ListOption:
		var items []ldvalue.Value
		for _, item := range strings.Split(s, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, ldvalue.String(item))
			}
		}
		v.value = ldvalue.ArrayOf(items...)
	default:
		v.value = ldvalue.String(s)
	}
	v.source = sourceEnv
}

// OptionSet holds the resolved value of every option in OptionDefs. Precedence, highest first:
// command-line flag, environment variable, options file, built-in default.
type OptionSet struct {
	values []*optionValue
}

// NewOptionSet creates an OptionSet with defaults, overridden by whatever lookupEnv finds. A nil
// lookupEnv means the environment is not consulted.
func NewOptionSet(lookupEnv LookupEnvFunc) *OptionSet {
	s := &OptionSet{}
	for _, def := range OptionDefs {
		v := &optionValue{def: def, value: def.Default}
		if lookupEnv != nil {
			if envValue, ok := lookupEnv(EnvVarName(def.FlagName())); ok {
				v.setFromEnv(envValue)
			}
		}
		s.values = append(s.values, v)
	}
	return s
}

func (s *OptionSet) lookup(key string) *optionValue {
	for _, v := range s.values {
		if v.def.Key == key {
			return v
		}
	}
	return nil
}

// RegisterFlags declares a flag for every option on fs.
func (s *OptionSet) RegisterFlags(fs *flag.FlagSet) {
	for _, v := range s.values {
		usage := v.def.Usage
		if v.def.Metavar != "" {
			usage = fmt.Sprintf("`%s`: %s", v.def.Metavar, usage)
		}
		usage += fmt.Sprintf(" (env %s)", EnvVarName(v.def.FlagName()))
		fs.Var(v, v.def.FlagName(), usage)
	}
}

// Get returns the current value of an option, or a null value if the key is unknown or unset.
func (s *OptionSet) Get(key string) ldvalue.Value {
	if v := s.lookup(key); v != nil {
		return v.value
	}
	return ldvalue.Null()
}

// Set assigns an option programmatically, with the same precedence as a command-line flag.
func (s *OptionSet) Set(key string, value ldvalue.Value) error {
	v := s.lookup(key)
	if v == nil {
		return fmt.Errorf("%w %q", ErrUnknownOption, key)
	}
	coerced, err := v.def.coerce(value)
	if err != nil {
		return fmt.Errorf("option %q: %w", key, err)
	}
	v.value = coerced
	v.source = sourceFlag
	return nil
}

// LoadFile reads option values from a YAML document whose top-level keys are option keys, for
// example:
//
//	require: [should]
//	timeout: 5000
//	bail: true
//
// Values from the file only apply to options that were not given by a flag or the environment.
func (s *OptionSet) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read options file: %w", err)
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid options file %s: %w", path, err)
	}
	keys := maps.Keys(raw)
	slices.Sort(keys)
	for _, key := range keys {
		v := s.lookup(key)
		if v == nil {
			return fmt.Errorf("%w %q in %s", ErrUnknownOption, key, path)
		}
		value := ldvalue.CopyArbitraryValue(raw[key])
		if value.IsNull() {
			continue
		}
		coerced, err := v.def.coerce(value)
		if err != nil {
			return fmt.Errorf("option %q in %s: %w", key, path, err)
		}
		if v.source <= sourceFile {
			v.value = coerced
			v.source = sourceFile
		}
	}
	return nil
}

// Options returns the configuration mapping for mocha(1): every runner option that has a value.
func (s *OptionSet) Options() Options {
	ret := make(Options)
	for _, v := range s.values {
		if v.def.RunnerFlag != "" && !v.value.IsNull() {
			ret[v.def.Key] = v.value
		}
	}
	return ret
}
