package filter

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipeshell/pipeshell/core/proc"
)

func newTestCommandController(t *testing.T) *proc.Controller {
	t.Helper()
	ctl := proc.NewControllerWithRegistry(proc.NewRegistry(), nil)
	t.Cleanup(func() {
		ctl.WaitAll()
		ctl.Close()
	})
	return ctl
}

func TestSystemCommandProducesOutput(t *testing.T) {
	ctl := newTestCommandController(t)

	echo := NewSystemCommand(ctl, "echo", "hello", "world")
	assert.Equal(t, []string{"hello world"}, collect(t, echo, ""))

	job := echo.Job()
	require.NotNil(t, job)
	assert.Equal(t, proc.StatusTerminated, job.Status())
	assert.Equal(t, 0, job.Result().ExitCode)
}

func TestSystemCommandEchoPipedToWc(t *testing.T) {
	ctl := newTestCommandController(t)

	echo := NewSystemCommand(ctl, "echo", "hi")
	wc := NewSystemCommand(ctl, "wc")
	Pipe(echo, wc)

	records := collect(t, wc, "")
	require.Len(t, records, 1)
	// 1 line, 1 word, 3 bytes for "hi\n"; spacing varies by platform.
	assert.Equal(t, []string{"1", "1", "3"}, strings.Fields(records[0]))

	results := ctl.WaitAll()
	assert.Len(t, results, 2)
	for _, res := range results {
		assert.Equal(t, 0, res.ExitCode)
	}
}

func TestSystemCommandPipeIsByteTransparent(t *testing.T) {
	ctl := newTestCommandController(t)

	// printf emits no trailing newline; the downstream byte count must
	// not grow by a separator the producer never wrote.
	pr := NewSystemCommand(ctl, "printf", "a")
	wc := NewSystemCommand(ctl, "wc", "-c")
	Pipe(pr, wc)

	records := collect(t, wc, "")
	require.Len(t, records, 1)
	assert.Equal(t, "1", strings.TrimSpace(records[0]))
}

func TestSystemCommandPipeKeepsInteriorSeparators(t *testing.T) {
	ctl := newTestCommandController(t)

	pr := NewSystemCommand(ctl, "printf", "a\\nb")
	wc := NewSystemCommand(ctl, "wc", "-c")
	Pipe(pr, wc)

	records := collect(t, wc, "")
	require.Len(t, records, 1)
	assert.Equal(t, "3", strings.TrimSpace(records[0]))
}

func TestSystemCommandInMemoryUpstream(t *testing.T) {
	ctl := newTestCommandController(t)

	wc := NewSystemCommand(ctl, "wc", "-l")
	Pipe(NewEcho("a", "b", "c"), wc)

	records := collect(t, wc, "")
	require.Len(t, records, 1)
	assert.Equal(t, "3", strings.TrimSpace(records[0]))
}

func TestSystemCommandIsNotRestartable(t *testing.T) {
	ctl := newTestCommandController(t)

	echo := NewSystemCommand(ctl, "echo", "once")
	collect(t, echo, "")

	_, err := echo.Produce("")
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestSystemCommandResolverFailure(t *testing.T) {
	ctl := newTestCommandController(t)

	cmd := NewSystemCommand(ctl, "no-such-command")
	cmd.Resolver = func(name string) (string, error) {
		return "", fmt.Errorf("%w: %s", ErrCommandNotFound, name)
	}

	_, err := cmd.Produce("")
	assert.ErrorIs(t, err, ErrCommandNotFound)
}

func TestSystemCommandSpawnFailure(t *testing.T) {
	ctl := newTestCommandController(t)

	cmd := NewSystemCommand(ctl, "/does/not/exist")
	_, err := cmd.Produce("")
	assert.ErrorIs(t, err, proc.ErrSpawnFailed)

	// The failed job is still accounted for by the controller.
	results := ctl.WaitAll()
	require.Len(t, results, 1)
	for _, res := range results {
		assert.ErrorIs(t, res.Err, proc.ErrNeverStarted)
	}
}

func TestSystemCommandTerminateEndsSequence(t *testing.T) {
	ctl := newTestCommandController(t)

	sleep := NewSystemCommand(ctl, "sleep", "30")
	seq, err := sleep.Produce("")
	require.NoError(t, err)
	defer seq.Close()

	go func() {
		time.Sleep(100 * time.Millisecond)
		ctl.Terminate(sleep.Job())
	}()

	_, err = seq.Next()
	assert.Equal(t, io.EOF, err)

	res := sleep.Job().Result()
	assert.True(t, res.Signaled)
}

func TestSystemCommandBrokenPipeReported(t *testing.T) {
	ctl := newTestCommandController(t)

	// Enough upstream data to overflow the pipe buffer after head exits.
	records := make([]string, 20000)
	for i := range records {
		records[i] = strings.Repeat("x", 32)
	}

	head := NewSystemCommand(ctl, "head", "-n", "1")
	reports := make(chan error, 1)
	head.OnError = func(err error) {
		select {
		case reports <- err:
		default:
		}
	}
	Pipe(NewEcho(records...), head)

	got := collect(t, head, "")
	assert.Equal(t, []string{records[0]}, got)

	select {
	case err := <-reports:
		assert.ErrorIs(t, err, ErrBrokenPipe)
	case <-time.After(5 * time.Second):
		t.Fatal("broken pipe never reported")
	}
}

func TestSystemCommandRedirectIn(t *testing.T) {
	ctl := newTestCommandController(t)
	fs := afero.NewOsFs()

	path := filepath.Join(t.TempDir(), "in.txt")
	require.NoError(t, afero.WriteFile(fs, path, []byte("1\n2\n3\n"), 0644))

	wc := NewSystemCommand(ctl, "wc", "-l")
	require.NoError(t, RedirectInPath(fs, wc, path))

	records := collect(t, wc, "")
	require.Len(t, records, 1)
	assert.Equal(t, "3", strings.TrimSpace(records[0]))
}

func TestSystemCommandRedirectOut(t *testing.T) {
	ctl := newTestCommandController(t)
	fs := afero.NewOsFs()
	path := filepath.Join(t.TempDir(), "out.txt")

	echo := NewSystemCommand(ctl, "echo", "written")
	require.NoError(t, RedirectOut(fs, echo, path, false, ""))

	got, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "written\n", string(got))
}

func TestSystemCommandCloseTerminatesJob(t *testing.T) {
	ctl := newTestCommandController(t)

	sleep := NewSystemCommand(ctl, "sleep", "30")
	seq, err := sleep.Produce("")
	require.NoError(t, err)

	require.NoError(t, seq.Close())
	assert.Equal(t, proc.StatusTerminated, sleep.Job().Status())
}
