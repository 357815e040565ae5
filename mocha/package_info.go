// Package mocha runs the Node.js test framework Mocha as an external process and turns its TAP
// output into test cases for the testhost framework.
//
// The pieces, from the bottom up:
//
//   - Runner builds the mocha(1) command line from Options and starts the process, exposing its
//     standard output as a stream of Lines.
//   - ParseRecords reads such a stream and produces Records: one per TAP result line, along with
//     the indented detail lines that follow it.
//   - Dispatcher owns the set of locations that were requested on the command line. Each of them
//     is handed to mocha exactly once, however many times the host asks about it.
//   - RecordTest adapts a Record to a test case that passes or fails.
//   - Plugin ties these to the host: it registers the command-line flags, resolves configuration
//     and loads the tests for a location into a testhost.T.
package mocha
