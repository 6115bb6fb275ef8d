package filter

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

// Reader is a source producing records from an already open stream.
// Unlike Echo it is one-shot: the stream cannot be rewound.
type Reader struct {
	Base
	r    io.Reader
	used bool
}

// NewReader creates a source reading records from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Produce implements Filter.Produce.
func (r *Reader) Produce(sep string) (Sequence, error) {
	if r.used {
		return nil, ErrExhausted
	}
	r.used = true
	return newScanSequence(r.r, separatorOrDefault(sep)), nil
}

// RedirectInPath attaches the file at path as f's input, replacing any
// previous input. The path must be openable now, not at drive time.
func RedirectInPath(fs afero.Fs, f Filter, path string) error {
	fd, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	fd.Close()

	f.SetInput(NewCat(fs, path))
	return nil
}

// RedirectInReader attaches an open stream as f's input, replacing any
// previous input.
func RedirectInReader(f Filter, r io.Reader) {
	f.SetInput(NewReader(r))
}

// RedirectOut drives f to exhaustion and writes every record it produces
// to target, truncating unless appendMode is set. Any I/O failure during
// the drain is returned wrapping ErrWrite.
func RedirectOut(fs afero.Fs, f Filter, target string, appendMode bool, sep string) error {
	sep = separatorOrDefault(sep)

	flags := os.O_WRONLY | os.O_CREATE
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	fd, err := fs.OpenFile(target, flags, 0644)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	seq, err := f.Produce(sep)
	if err != nil {
		fd.Close()
		return err
	}

	drainErr := drain(seq, func(rec string) error {
		if Terminated(seq) {
			rec += sep
		}
		if _, err := io.WriteString(fd, rec); err != nil {
			return fmt.Errorf("%w: %v", ErrWrite, err)
		}
		return nil
	})
	closeErr := fd.Close()

	if drainErr != nil {
		return drainErr
	}
	if closeErr != nil {
		return fmt.Errorf("%w: %v", ErrWrite, closeErr)
	}
	return nil
}
