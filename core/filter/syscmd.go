package filter

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pipeshell/pipeshell/core/proc"
)

// Resolver locates an executable by name, returning its path or an error
// wrapping ErrCommandNotFound.
type Resolver func(name string) (string, error)

// SystemCommand is a filter backed by one external OS process. Its pipes
// are opened lazily, exactly once, at first drive; the process is spawned
// and tracked through a proc.Controller.
//
// The zero value is not usable; construct with NewSystemCommand. Optional
// fields may be set any time before the first Produce.
type SystemCommand struct {
	Base

	// Dir is the working directory for the process. Empty means the
	// calling process's directory.
	Dir string
	// Env gives the process environment; nil inherits.
	Env []string
	// Umask is applied inside the spawn critical section, -1 leaves it.
	Umask int
	// Resolver resolves bare command names against a search path. Names
	// containing a path separator bypass it.
	Resolver Resolver
	// Stderr receives the process's standard error; nil discards it.
	Stderr io.Writer
	// OnError receives out-of-band reports, notably ErrBrokenPipe when
	// the child stops reading before upstream is exhausted.
	OnError func(error)

	ctl     *proc.Controller
	name    string
	args    []string
	job     *proc.Job
	started bool
}

// NewSystemCommand creates a filter that will run name with args under ctl.
func NewSystemCommand(ctl *proc.Controller, name string, args ...string) *SystemCommand {
	return &SystemCommand{
		ctl:   ctl,
		name:  name,
		args:  args,
		Umask: -1,
	}
}

// Job returns the job backing this command, nil before the first drive.
func (c *SystemCommand) Job() *proc.Job {
	return c.job
}

// String returns the invocation description.
func (c *SystemCommand) String() string {
	return strings.Join(append([]string{c.name}, c.args...), " ")
}

// Produce implements Filter.Produce. The executable is resolved, the pipe
// pair is created, and the process is spawned under the fork lock. If an
// upstream filter is attached a pump goroutine copies its records into the
// process's stdin, closing the write end at upstream EOF.
//
// A terminated process cannot be re-driven: a second Produce returns
// ErrExhausted.
func (c *SystemCommand) Produce(sep string) (Sequence, error) {
	if c.started {
		return nil, ErrExhausted
	}
	sep = separatorOrDefault(sep)

	path := c.name
	if c.Resolver != nil && !strings.Contains(path, "/") {
		resolved, err := c.Resolver(path)
		if err != nil {
			return nil, err
		}
		path = resolved
	}

	cmd := exec.Command(path, c.args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stderr = c.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	var upstream Sequence
	var stdin io.WriteCloser
	if c.Input() != nil {
		if upstream, err = c.Input().Produce(sep); err != nil {
			return nil, err
		}
		if stdin, err = cmd.StdinPipe(); err != nil {
			upstream.Close()
			return nil, err
		}
	}

	c.started = true
	c.job = c.ctl.Schedule(cmd)
	if c.Umask >= 0 {
		c.job.SetUmask(c.Umask)
	}

	if err := c.ctl.Start(c.job); err != nil {
		if upstream != nil {
			upstream.Close()
		}
		return nil, err
	}

	var pump *errgroup.Group
	if upstream != nil {
		pump = &errgroup.Group{}
		pump.Go(func() error {
			return pumpInto(upstream, stdin, sep, c.OnError)
		})
	}

	return &processSequence{
		scan: newScanSequence(stdout, sep),
		ctl:  c.ctl,
		job:  c.job,
		pump: pump,
	}, nil
}

// pumpInto copies records from in to w, restoring the separator after
// each record that carried one in the source so the child reads the
// upstream byte stream unchanged, and closes w once in is exhausted so
// the child sees EOF on stdin. A write failure means the child stopped
// reading; that is reported, not raised, so a killed job's pump exits
// cleanly.
func pumpInto(in Sequence, w io.WriteCloser, sep string, report func(error)) error {
	defer w.Close()
	defer in.Close()

	for {
		rec, err := in.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if Terminated(in) {
			rec += sep
		}
		if _, err := io.WriteString(w, rec); err != nil {
			if report != nil {
				report(fmt.Errorf("%w: %v", ErrBrokenPipe, err))
			}
			return nil
		}
	}
}

// processSequence reads a process's stdout, reaping the job at EOF.
type processSequence struct {
	scan *scanSequence
	ctl  *proc.Controller
	job  *proc.Job
	pump *errgroup.Group
	done bool
}

func (s *processSequence) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}

	rec, err := s.scan.Next()
	switch {
	case err == nil:
		return rec, nil
	case err == io.EOF, errors.Is(err, os.ErrClosed):
		s.finish()
		return "", io.EOF
	default:
		return "", err
	}
}

// Terminated implements Terminator.
func (s *processSequence) Terminated() bool { return s.scan.Terminated() }

// finish waits for the pump to drain and reaps the process, moving the job
// to StatusTerminated.
func (s *processSequence) finish() {
	s.done = true
	if s.pump != nil {
		s.pump.Wait()
	}
	s.ctl.Wait(s.job)
}

// Close cancels the job if it is still running and reaps it.
func (s *processSequence) Close() error {
	if s.done {
		return nil
	}
	_ = s.ctl.Terminate(s.job)
	s.scan.Close()
	s.finish()
	return nil
}
