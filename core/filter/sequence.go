package filter

import (
	"bufio"
	"bytes"
	"io"
)

// sliceSequence yields records from an in-memory slice.
type sliceSequence struct {
	records []string
	pos     int
}

func (s *sliceSequence) Next() (string, error) {
	if s.pos >= len(s.records) {
		return "", io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

func (s *sliceSequence) Close() error {
	s.pos = len(s.records)
	return nil
}

// emptySequence is an exhausted sequence.
type emptySequence struct{}

func (emptySequence) Next() (string, error) { return "", io.EOF }
func (emptySequence) Close() error          { return nil }

// scanSequence splits a byte stream into records on a separator,
// tracking whether the record most recently produced had one.
type scanSequence struct {
	scanner *bufio.Scanner
	src     io.Closer
	term    bool
	closed  bool
}

func newScanSequence(r io.Reader, sep string) *scanSequence {
	seq := &scanSequence{term: true}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(splitOn(sep, &seq.term))
	seq.scanner = scanner

	if c, ok := r.(io.Closer); ok {
		seq.src = c
	}
	return seq
}

func (s *scanSequence) Next() (string, error) {
	if s.closed {
		return "", io.EOF
	}
	if s.scanner.Scan() {
		return s.scanner.Text(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// Terminated implements Terminator.
func (s *scanSequence) Terminated() bool { return s.term }

func (s *scanSequence) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.src != nil {
		return s.src.Close()
	}
	return nil
}

// splitOn returns a bufio.SplitFunc that splits on an arbitrary separator
// string, dropping the separator from the returned tokens. A trailing
// partial record is yielded without its separator; term records, per
// token, whether the separator was present so writers can put the stream
// back together byte for byte.
func splitOn(sep string, term *bool) bufio.SplitFunc {
	sepBytes := []byte(sep)
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if i := bytes.Index(data, sepBytes); i >= 0 {
			*term = true
			return i + len(sepBytes), data[:i], nil
		}
		if atEOF {
			*term = false
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

// drain consumes seq to exhaustion, passing every record to fn. A nil fn
// discards records. The sequence is closed afterwards.
func drain(seq Sequence, fn func(string) error) error {
	defer seq.Close()
	for {
		rec, err := seq.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if fn != nil {
			if err := fn(rec); err != nil {
				return err
			}
		}
	}
}
