package filter

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// Echo is a literal source producing records from an in-memory slice.
// It is fully restartable: every Produce yields a fresh sequence.
type Echo struct {
	Base
	records []string
}

// NewEcho creates a literal source yielding records in order.
func NewEcho(records ...string) *Echo {
	return &Echo{records: records}
}

// Produce implements Filter.Produce.
func (e *Echo) Produce(string) (Sequence, error) {
	return &sliceSequence{records: e.records}, nil
}

// Cat is a source producing the records of one or more files in order.
type Cat struct {
	Base
	fs    afero.Fs
	paths []string
}

// NewCat creates a file source. Files are opened lazily, in order, when the
// sequence reaches them.
func NewCat(fs afero.Fs, paths ...string) *Cat {
	return &Cat{fs: fs, paths: paths}
}

// Produce implements Filter.Produce.
func (c *Cat) Produce(sep string) (Sequence, error) {
	return &catSequence{fs: c.fs, paths: c.paths, sep: separatorOrDefault(sep)}, nil
}

type catSequence struct {
	fs    afero.Fs
	paths []string
	sep   string
	cur   Sequence
	term  bool
}

func (s *catSequence) Next() (string, error) {
	for {
		if s.cur == nil {
			if len(s.paths) == 0 {
				return "", io.EOF
			}
			fd, err := s.fs.Open(s.paths[0])
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrInvalidSource, err)
			}
			s.paths = s.paths[1:]
			s.cur = newScanSequence(fd, s.sep)
		}

		rec, err := s.cur.Next()
		if err == io.EOF {
			if cerr := s.cur.Close(); cerr != nil {
				return "", cerr
			}
			s.cur = nil
			continue
		}
		s.term = Terminated(s.cur)
		return rec, err
	}
}

// Terminated implements Terminator.
func (s *catSequence) Terminated() bool { return s.term }

func (s *catSequence) Close() error {
	s.paths = nil
	if s.cur != nil {
		cur := s.cur
		s.cur = nil
		return cur.Close()
	}
	return nil
}

// Concat produces the full sequence of each operand in order, never
// interleaving.
type Concat struct {
	Base
	filters []Filter
}

// NewConcat composes filters into one ordered sequence: the first operand
// is fully exhausted before the second starts, and so on.
func NewConcat(filters ...Filter) *Concat {
	return &Concat{filters: filters}
}

// Produce implements Filter.Produce.
func (c *Concat) Produce(sep string) (Sequence, error) {
	return &concatSequence{filters: c.filters, sep: sep}, nil
}

type concatSequence struct {
	filters []Filter
	sep     string
	cur     Sequence
	term    bool
}

func (s *concatSequence) Next() (string, error) {
	for {
		if s.cur == nil {
			if len(s.filters) == 0 {
				return "", io.EOF
			}
			cur, err := s.filters[0].Produce(s.sep)
			if err != nil {
				return "", err
			}
			s.filters = s.filters[1:]
			s.cur = cur
		}

		rec, err := s.cur.Next()
		if err == io.EOF {
			if cerr := s.cur.Close(); cerr != nil {
				return "", cerr
			}
			s.cur = nil
			continue
		}
		s.term = Terminated(s.cur)
		return rec, err
	}
}

// Terminated implements Terminator.
func (s *concatSequence) Terminated() bool { return s.term }

func (s *concatSequence) Close() error {
	s.filters = nil
	if s.cur != nil {
		cur := s.cur
		s.cur = nil
		return cur.Close()
	}
	return nil
}

// Glob is a source producing the path names matching a glob pattern.
// Relative patterns resolve against dir. The order is sorted so a given
// filesystem state always yields the same sequence.
type Glob struct {
	Base
	fs      afero.Fs
	dir     string
	pattern string
}

// NewGlob creates a pattern-expansion source.
func NewGlob(fs afero.Fs, dir, pattern string) *Glob {
	return &Glob{fs: fs, dir: dir, pattern: pattern}
}

// Produce implements Filter.Produce.
func (g *Glob) Produce(string) (Sequence, error) {
	pattern := g.pattern
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(g.dir, pattern)
	}

	matches, err := afero.Glob(g.fs, pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return &sliceSequence{records: matches}, nil
}

// Tee passes its input through unchanged while writing every record to a
// side file. Side-file failures are reported through onError but never halt
// the primary sequence.
type Tee struct {
	Base
	fs      afero.Fs
	path    string
	onError func(error)
}

// NewTee creates a fan-out filter duplicating its input into path.
// onError may be nil.
func NewTee(fs afero.Fs, path string, onError func(error)) *Tee {
	return &Tee{fs: fs, path: path, onError: onError}
}

// Produce implements Filter.Produce.
func (t *Tee) Produce(sep string) (Sequence, error) {
	if t.Input() == nil {
		return emptySequence{}, nil
	}
	in, err := t.Input().Produce(sep)
	if err != nil {
		return nil, err
	}

	side, err := t.fs.Create(t.path)
	if err != nil {
		t.report(err)
		side = nil
	}
	return &teeSequence{in: in, side: side, sep: separatorOrDefault(sep), report: t.report}, nil
}

func (t *Tee) report(err error) {
	if t.onError != nil {
		t.onError(err)
	}
}

type teeSequence struct {
	in     Sequence
	side   afero.File
	sep    string
	report func(error)
}

func (s *teeSequence) Next() (string, error) {
	rec, err := s.in.Next()
	if err != nil {
		return rec, err
	}
	if s.side != nil {
		out := rec
		if Terminated(s.in) {
			out += s.sep
		}
		if _, werr := io.WriteString(s.side, out); werr != nil {
			s.report(werr)
			s.side.Close()
			s.side = nil
		}
	}
	return rec, nil
}

// Terminated implements Terminator.
func (s *teeSequence) Terminated() bool { return Terminated(s.in) }

func (s *teeSequence) Close() error {
	if s.side != nil {
		s.side.Close()
		s.side = nil
	}
	return s.in.Close()
}

// Void consumes and discards its input. Driving it drains the upstream
// pipeline without retaining output.
type Void struct {
	Base
}

// NewVoid creates a discard sink.
func NewVoid() *Void { return &Void{} }

// Produce implements Filter.Produce. The upstream chain is fully drained
// before the (empty) sequence is returned.
func (v *Void) Produce(sep string) (Sequence, error) {
	if v.Input() == nil {
		return emptySequence{}, nil
	}
	in, err := v.Input().Produce(sep)
	if err != nil {
		return nil, err
	}
	if err := drain(in, nil); err != nil {
		return nil, err
	}
	return emptySequence{}, nil
}
