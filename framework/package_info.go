// Package framework contains the low-level pieces of the test harness that are not specific to
// any one external test runner. The base package contains shared types such as Logger; the test
// scope model lives in the subpackage testhost.
//
// The general model is:
//
// 1. A host test framework, similar to Go's testing package but run as application code, owns a
// tree of test scopes and accumulates their results.
//
// 2. Plugins are asked about each requested location in turn. A plugin that recognizes a location
// produces test cases for it, typically by running some other tool and adapting its output.
//
// 3. Results are reported through pluggable test loggers (console, JUnit XML).
package framework
