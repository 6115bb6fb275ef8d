package filter

import (
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect drains a filter into a slice.
func collect(t *testing.T, f Filter, sep string) []string {
	t.Helper()

	seq, err := f.Produce(sep)
	require.NoError(t, err)
	defer seq.Close()

	var out []string
	for {
		rec, err := seq.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func TestEchoYieldsRecordsInOrder(t *testing.T) {
	e := NewEcho("a", "b", "c")
	assert.Equal(t, []string{"a", "b", "c"}, collect(t, e, ""))
}

func TestEchoIsRestartable(t *testing.T) {
	e := NewEcho("x", "y")
	assert.Equal(t, []string{"x", "y"}, collect(t, e, ""))
	assert.Equal(t, []string{"x", "y"}, collect(t, e, ""))
}

func TestConcatPreservesTotalOrder(t *testing.T) {
	c := NewConcat(NewEcho("a", "b", "c"), NewEcho("d", "e"))
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, collect(t, c, ""))
}

func TestConcatOfConcats(t *testing.T) {
	c := NewConcat(
		NewConcat(NewEcho("1"), NewEcho("2")),
		NewEcho("3"),
	)
	assert.Equal(t, []string{"1", "2", "3"}, collect(t, c, ""))
}

func TestConcatEmpty(t *testing.T) {
	assert.Empty(t, collect(t, NewConcat(), ""))
}

func TestPipeAttachesInput(t *testing.T) {
	src := NewEcho("a")
	tee := NewTee(afero.NewMemMapFs(), "/side.txt", nil)

	got := Pipe(src, tee)
	assert.Same(t, Filter(tee), got)
	assert.Same(t, Filter(src), tee.Input())
}

func TestCatReadsFilesInOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.txt", []byte("1\n2\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/b.txt", []byte("3\n"), 0644))

	c := NewCat(fs, "/a.txt", "/b.txt")
	assert.Equal(t, []string{"1", "2", "3"}, collect(t, c, ""))
}

func TestCatMissingFile(t *testing.T) {
	c := NewCat(afero.NewMemMapFs(), "/missing.txt")

	seq, err := c.Produce("")
	require.NoError(t, err)
	defer seq.Close()

	_, err = seq.Next()
	assert.ErrorIs(t, err, ErrInvalidSource)
}

func TestCatCustomSeparator(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/csv.txt", []byte("a,b,c"), 0644))

	c := NewCat(fs, "/csv.txt")
	assert.Equal(t, []string{"a", "b", "c"}, collect(t, c, ","))
}

func TestGlobSortedAndDeterministic(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, name := range []string{"/work/c.log", "/work/a.log", "/work/b.log", "/work/skip.txt"} {
		require.NoError(t, afero.WriteFile(fs, name, nil, 0644))
	}

	g := NewGlob(fs, "/work", "*.log")
	want := []string{"/work/a.log", "/work/b.log", "/work/c.log"}
	assert.Equal(t, want, collect(t, g, ""))
	// Restartable and stable for the same filesystem state.
	assert.Equal(t, want, collect(t, g, ""))
}

func TestGlobAbsolutePattern(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/hosts", nil, 0644))

	g := NewGlob(fs, "/somewhere/else", "/etc/h*")
	assert.Equal(t, []string{"/etc/hosts"}, collect(t, g, ""))
}

func TestTeeDuplicatesToSideFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	tee := NewTee(fs, "/side.txt", nil)
	Pipe(NewEcho("a", "b"), tee)

	assert.Equal(t, []string{"a", "b"}, collect(t, tee, ""))

	side, err := afero.ReadFile(fs, "/side.txt")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(side))
}

func TestTeeSideFailureDoesNotHaltPrimary(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())

	var reported error
	tee := NewTee(fs, "/side.txt", func(err error) { reported = err })
	Pipe(NewEcho("a", "b"), tee)

	assert.Equal(t, []string{"a", "b"}, collect(t, tee, ""))
	assert.Error(t, reported)
}

func TestVoidDrainsUpstream(t *testing.T) {
	fs := afero.NewMemMapFs()
	tee := NewTee(fs, "/side.txt", nil)
	Pipe(NewEcho("x", "y"), tee)

	void := NewVoid()
	Pipe(tee, void)

	assert.Empty(t, collect(t, void, ""))

	// The upstream side effect proves the chain was driven.
	side, err := afero.ReadFile(fs, "/side.txt")
	require.NoError(t, err)
	assert.Equal(t, "x\ny\n", string(side))
}

func TestRedirectOutTruncates(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/out.txt", []byte("stale content\n"), 0644))

	require.NoError(t, RedirectOut(fs, NewEcho("a", "b"), "/out.txt", false, ""))

	got, err := afero.ReadFile(fs, "/out.txt")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(got))
}

func TestRedirectOutAppendTwice(t *testing.T) {
	fs := afero.NewMemMapFs()

	require.NoError(t, RedirectOut(fs, NewEcho("x", "y"), "/out.txt", true, ""))
	require.NoError(t, RedirectOut(fs, NewEcho("x", "y"), "/out.txt", true, ""))

	got, err := afero.ReadFile(fs, "/out.txt")
	require.NoError(t, err)
	assert.Equal(t, "x\ny\nx\ny\n", string(got))
}

func TestRedirectInPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in.txt", []byte("1\n2\n"), 0644))

	tee := NewTee(fs, "/side.txt", nil)
	require.NoError(t, RedirectInPath(fs, tee, "/in.txt"))
	assert.Equal(t, []string{"1", "2"}, collect(t, tee, ""))
}

func TestRedirectInMissingPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	tee := NewTee(fs, "/side.txt", nil)

	err := RedirectInPath(fs, tee, "/missing.txt")
	assert.ErrorIs(t, err, ErrInvalidSource)
}

func TestReaderSplitsStream(t *testing.T) {
	r := NewReader(strings.NewReader("a\nb\nc"))
	assert.Equal(t, []string{"a", "b", "c"}, collect(t, r, ""))
}

func TestReaderIsOneShot(t *testing.T) {
	r := NewReader(strings.NewReader("a\n"))
	collect(t, r, "")

	_, err := r.Produce("")
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestSplitOnMultiByteSeparator(t *testing.T) {
	r := NewReader(strings.NewReader("a--b--c"))
	assert.Equal(t, []string{"a", "b", "c"}, collect(t, r, "--"))
}

func TestTerminatedTracksSource(t *testing.T) {
	seq, err := NewReader(strings.NewReader("a\nb")).Produce("")
	require.NoError(t, err)
	defer seq.Close()

	rec, err := seq.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", rec)
	assert.True(t, Terminated(seq))

	rec, err = seq.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", rec)
	assert.False(t, Terminated(seq))

	// Synthesized records always count as terminated.
	echo, err := NewEcho("a").Produce("")
	require.NoError(t, err)
	defer echo.Close()
	echo.Next()
	assert.True(t, Terminated(echo))
}

func TestRedirectOutKeepsUnterminatedTail(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in.txt", []byte("a\nb"), 0644))

	require.NoError(t, RedirectOut(fs, NewCat(fs, "/in.txt"), "/out.txt", false, ""))

	got, err := afero.ReadFile(fs, "/out.txt")
	require.NoError(t, err)
	assert.Equal(t, "a\nb", string(got))
}

func TestTeeSideFileKeepsUnterminatedTail(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in.txt", []byte("a\nb"), 0644))

	tee := NewTee(fs, "/side.txt", nil)
	Pipe(NewCat(fs, "/in.txt"), tee)
	assert.Equal(t, []string{"a", "b"}, collect(t, tee, ""))

	side, err := afero.ReadFile(fs, "/side.txt")
	require.NoError(t, err)
	assert.Equal(t, "a\nb", string(side))
}
