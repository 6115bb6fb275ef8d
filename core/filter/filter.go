package filter

import "errors"

// DefaultSeparator is the record separator used when callers pass "".
const DefaultSeparator = "\n"

var (
	// ErrCommandNotFound is the error resulting if an executable could
	// not be resolved against the search path.
	ErrCommandNotFound = errors.New("command not found")
	// ErrInvalidSource is the error resulting if a redirect-in target
	// does not exist or cannot be opened.
	ErrInvalidSource = errors.New("invalid input source")
	// ErrWrite is the error resulting if draining a filter into a
	// redirect target failed.
	ErrWrite = errors.New("write failed")
	// ErrBrokenPipe is reported when a producer keeps writing after its
	// consumer closed. It is not fatal to the rest of the pipeline.
	ErrBrokenPipe = errors.New("broken pipe")
	// ErrExhausted is the error resulting if a process-backed filter is
	// driven a second time; a terminated process cannot be re-driven.
	ErrExhausted = errors.New("filter already driven")
)

// Sequence is a pull-based lazy sequence of records.
//
// Next returns io.EOF once the sequence is exhausted. Close releases any
// underlying resources; it is safe to call more than once.
type Sequence interface {
	Next() (string, error)
	Close() error
}

// Terminator is implemented by sequences that know whether the record
// last returned by Next was followed by the separator in the underlying
// stream.
type Terminator interface {
	Terminated() bool
}

// Terminated reports whether the record just yielded by seq carried a
// trailing separator in its source. Writers use this to reproduce the
// source byte stream exactly instead of forcing a separator onto an
// unterminated tail. Sequences that synthesize records rather than split
// a stream always terminate them.
func Terminated(seq Sequence) bool {
	if t, ok := seq.(Terminator); ok {
		return t.Terminated()
	}
	return true
}

// Filter is a composable node that produces a lazy sequence of records,
// optionally fed by an upstream Filter.
//
// A filter with no input is a source. The downstream filter holds a
// reference to its upstream but does not own its lifetime; in-memory
// upstreams may be shared and re-driven.
type Filter interface {
	// Input returns the upstream filter, nil for sources.
	Input() Filter
	// SetInput attaches an upstream filter.
	SetInput(Filter)
	// Produce starts the filter and returns its record sequence, split
	// on sep ("" means DefaultSeparator). Driving a filter transitively
	// drives its whole input chain, spawning OS processes as needed.
	Produce(sep string) (Sequence, error)
}

// Base carries the upstream reference shared by every filter variant.
type Base struct {
	in Filter
}

// Input implements Filter.Input.
func (b *Base) Input() Filter { return b.in }

// SetInput implements Filter.SetInput.
func (b *Base) SetInput(f Filter) { b.in = f }

// Pipe wires src's output into dst's input and returns dst. Driving dst
// transitively drives src.
func Pipe(src, dst Filter) Filter {
	dst.SetInput(src)
	return dst
}

func separatorOrDefault(sep string) string {
	if sep == "" {
		return DefaultSeparator
	}
	return sep
}
