// Package testhost contains a test framework that is similar to Go's testing package, but is run
// as regular Go application code rather than Go tests. Test cases produced by plugins (for
// instance, results adapted from an external test runner) are run inside its scopes, and their
// outcomes are reported through TestLogger implementations.
package testhost
