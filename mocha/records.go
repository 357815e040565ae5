package mocha

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Status is the outcome of one test case.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// Record is one test result parsed from TAP output.
type Record struct {
	Status Status
	Title  string

	// Detail holds the indented lines that followed the result line, verbatim, including their
	// leading whitespace and trailing newlines. Mocha writes the error and stack trace of a failed
	// test here.
	Detail []string
}

// RecordIterator is a lazy sequence of Records.
type RecordIterator interface {
	Next() bool
	Record() Record
	Err() error
	Close() error
}

var resultLineRegex = regexp.MustCompile(`^((?:not )?ok)\s+(\S+)\s+(.+)`)

// RecordStream parses TAP output into Records as it is read. It holds back each record until
// the next result line or the end of input, since only then are its detail lines known.
//
// Lines that start with whitespace are detail for the most recent result line, and are dropped
// if there is none yet. Any other line that is not a result line (the "1..N" plan, "# tests"
// comments, bail-out notices) is ignored.
type RecordStream struct {
	src     LineSource
	pending *Record
	current Record
}

// ParseRecords creates a RecordStream reading from src. Closing the stream closes src.
func ParseRecords(src LineSource) *RecordStream {
	return &RecordStream{src: src}
}

func (s *RecordStream) Next() bool {
	for s.src.Next() {
		line := s.src.Line()
		if startsWithSpace(line) {
			if s.pending != nil {
				s.pending.Detail = append(s.pending.Detail, line)
			}
			continue
		}
		m := resultLineRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		next := &Record{Status: StatusPass, Title: strings.TrimRight(m[3], "\r")}
		if m[1] != "ok" {
			next.Status = StatusFail
		}
		prev := s.pending
		s.pending = next
		if prev != nil {
			s.current = *prev
			return true
		}
	}
	if s.pending != nil {
		s.current = *s.pending
		s.pending = nil
		return true
	}
	return false
}

func (s *RecordStream) Record() Record { return s.current }

func (s *RecordStream) Err() error { return s.src.Err() }

func (s *RecordStream) Close() error { return s.src.Close() }

func startsWithSpace(line string) bool {
	r, size := utf8.DecodeRuneInString(line)
	return size > 0 && unicode.IsSpace(r)
}

type recordSlice struct {
	records []Record
	index   int
}

// Records returns an iterator over a fixed list of records.
func Records(records ...Record) RecordIterator {
	return &recordSlice{records: records, index: -1}
}

func (s *recordSlice) Next() bool {
	if s.index+1 >= len(s.records) {
		s.index = len(s.records)
		return false
	}
	s.index++
	return true
}

func (s *recordSlice) Record() Record {
	if s.index < 0 || s.index >= len(s.records) {
		return Record{}
	}
	return s.records[s.index]
}

func (s *recordSlice) Err() error   { return nil }
func (s *recordSlice) Close() error { return nil }

type filteredRecords struct {
	RecordIterator
	keep func(Record) bool
}

// FilterRecords returns an iterator that skips the records of source for which keep is false.
func FilterRecords(source RecordIterator, keep func(Record) bool) RecordIterator {
	return &filteredRecords{RecordIterator: source, keep: keep}
}

func (f *filteredRecords) Next() bool {
	for f.RecordIterator.Next() {
		if f.keep(f.RecordIterator.Record()) {
			return true
		}
	}
	return false
}

// CollectRecords reads an iterator to the end and closes it.
func CollectRecords(it RecordIterator) ([]Record, error) {
	var ret []Record
	for it.Next() {
		ret = append(ret, it.Record())
	}
	err := it.Err()
	if closeErr := it.Close(); err == nil {
		err = closeErr
	}
	return ret, err
}
