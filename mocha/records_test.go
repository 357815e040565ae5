package mocha

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseString(t *testing.T, s string) []Record {
	records, err := CollectRecords(ParseRecords(NewLineReader(strings.NewReader(s))))
	require.NoError(t, err)
	return records
}

func TestParseRecords(t *testing.T) {
	t.Run("pass followed by failure with detail", func(t *testing.T) {
		records := parseString(t, "ok 1 title A\nnot ok 2 title B\n  detail line\n")
		assert.Equal(t, []Record{
			{Status: StatusPass, Title: "title A"},
			{Status: StatusFail, Title: "title B", Detail: []string{"  detail line\n"}},
		}, records)
	})

	t.Run("no result lines", func(t *testing.T) {
		assert.Len(t, parseString(t, ""), 0)
		assert.Len(t, parseString(t, "1..0\n# tests 0\n"), 0)
	})

	t.Run("detail before the first result line is dropped", func(t *testing.T) {
		records := parseString(t, "  stray output\n\tmore\nok 1 first\n")
		assert.Equal(t, []Record{{Status: StatusPass, Title: "first"}}, records)
	})

	t.Run("blank lines count as detail", func(t *testing.T) {
		records := parseString(t, "not ok 1 broken\n  Error: no\n\n  at x\n")
		require.Len(t, records, 1)
		assert.Equal(t, []string{"  Error: no\n", "\n", "  at x\n"}, records[0].Detail)
	})

	t.Run("final line without newline", func(t *testing.T) {
		records := parseString(t, "ok 1 a\nnot ok 2 b")
		assert.Equal(t, []Record{
			{Status: StatusPass, Title: "a"},
			{Status: StatusFail, Title: "b"},
		}, records)
	})

	t.Run("non-result lines are ignored", func(t *testing.T) {
		records := parseString(t, "TAP version 13\n1..2\nok 1 a\n# comment\nBail out!\nok 2 b\n  detail\n")
		assert.Equal(t, []Record{
			{Status: StatusPass, Title: "a"},
			{Status: StatusPass, Title: "b", Detail: []string{"  detail\n"}},
		}, records)
	})

	t.Run("lines that do not fit the result syntax are ignored", func(t *testing.T) {
		records := parseString(t, "ok 1\nokay 2 no\nnot  ok 3 no\nok 4 yes\n")
		assert.Equal(t, []Record{{Status: StatusPass, Title: "yes"}}, records)
	})

	t.Run("title keeps interior whitespace", func(t *testing.T) {
		records := parseString(t, "ok 1 Math  should\tadd\r\n")
		assert.Equal(t, []Record{{Status: StatusPass, Title: "Math  should\tadd"}}, records)
	})
}

func TestParseRecordsFromMochaOutput(t *testing.T) {
	f, err := os.Open("testdata/simple_suite.tap")
	require.NoError(t, err)

	records, err := CollectRecords(ParseRecords(NewLineReader(f)))
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{Status: StatusPass, Title: "Math should be consistent"},
		{Status: StatusFail, Title: "Math should be inconsistent", Detail: []string{
			"  AssertionError: 1 == 2\n",
			"      at Context.<anonymous> (test/simple_suite/test.js:8:12)\n",
		}},
	}, records)
}

func TestParseRecordsFromEmptySuite(t *testing.T) {
	f, err := os.Open("testdata/empty_suite.tap")
	require.NoError(t, err)

	records, err := CollectRecords(ParseRecords(NewLineReader(f)))
	require.NoError(t, err)
	assert.Len(t, records, 0)
}

type countingLines struct {
	lines    []string
	consumed int
	closed   bool
}

func (c *countingLines) Next() bool {
	if c.consumed >= len(c.lines) {
		return false
	}
	c.consumed++
	return true
}

func (c *countingLines) Line() string { return c.lines[c.consumed-1] }
func (c *countingLines) Err() error   { return nil }
func (c *countingLines) Close() error { c.closed = true; return nil }

func TestParseRecordsReadsOnlyAsFarAsNeeded(t *testing.T) {
	src := &countingLines{lines: []string{"ok 1 a\n", "  d\n", "ok 2 b\n", "ok 3 c\n", "ok 4 d\n"}}
	stream := ParseRecords(src)

	require.True(t, stream.Next())
	assert.Equal(t, "a", stream.Record().Title)
	assert.Equal(t, 3, src.consumed)

	require.True(t, stream.Next())
	assert.Equal(t, "b", stream.Record().Title)
	assert.Equal(t, 4, src.consumed)

	require.NoError(t, stream.Close())
	assert.True(t, src.closed)
}

func TestParseRecordsReportsReadError(t *testing.T) {
	boom := errors.New("boom")
	reader := io.MultiReader(strings.NewReader("ok 1 a\n"), iotest.ErrReader(boom))
	stream := ParseRecords(NewLineReader(reader))

	require.True(t, stream.Next())
	assert.Equal(t, "a", stream.Record().Title)
	assert.False(t, stream.Next())
	assert.Equal(t, boom, stream.Err())
}

func TestLineReader(t *testing.T) {
	lr := NewLineReader(strings.NewReader("one\n\nthree"))
	var lines []string
	for lr.Next() {
		lines = append(lines, lr.Line())
	}
	assert.Equal(t, []string{"one\n", "\n", "three"}, lines)
	assert.NoError(t, lr.Err())
	assert.False(t, lr.Next())
	assert.NoError(t, lr.Close())
}

func TestRecordIterators(t *testing.T) {
	pass := Record{Status: StatusPass, Title: "a"}
	fail := Record{Status: StatusFail, Title: "b"}

	t.Run("Records", func(t *testing.T) {
		records, err := CollectRecords(Records(pass, fail))
		require.NoError(t, err)
		assert.Equal(t, []Record{pass, fail}, records)

		empty := Records()
		assert.False(t, empty.Next())
		assert.Equal(t, Record{}, empty.Record())
	})

	t.Run("FilterRecords", func(t *testing.T) {
		records, err := CollectRecords(FilterRecords(Records(pass, fail, pass),
			func(r Record) bool { return r.Status == StatusFail }))
		require.NoError(t, err)
		assert.Equal(t, []Record{fail}, records)
	})
}
