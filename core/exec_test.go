package core

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipeshell/pipeshell/core/filter"
)

func newLookupFs(t *testing.T) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/bin/ls", []byte("#!"), 0755))
	require.NoError(t, afero.WriteFile(fsys, "/usr/bin/ls", []byte("#!"), 0755))
	require.NoError(t, afero.WriteFile(fsys, "/usr/bin/curl", []byte("#!"), 0755))
	require.NoError(t, afero.WriteFile(fsys, "/bin/README", []byte("text"), 0644))
	return fsys
}

func TestLookPathSearchesInOrder(t *testing.T) {
	fsys := newLookupFs(t)

	path, err := LookPath(fsys, []string{"/bin", "/usr/bin"}, "/", "ls")
	require.NoError(t, err)
	assert.Equal(t, "/bin/ls", path)

	path, err = LookPath(fsys, []string{"/bin", "/usr/bin"}, "/", "curl")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/curl", path)
}

func TestLookPathSkipsNonExecutables(t *testing.T) {
	fsys := newLookupFs(t)

	_, err := LookPath(fsys, []string{"/bin"}, "/", "README")
	assert.ErrorIs(t, err, filter.ErrCommandNotFound)
}

func TestLookPathMissing(t *testing.T) {
	fsys := newLookupFs(t)

	_, err := LookPath(fsys, []string{"/bin", "/usr/bin"}, "/", "nope")
	assert.ErrorIs(t, err, filter.ErrCommandNotFound)
}

func TestLookPathSlashBypassesSearch(t *testing.T) {
	fsys := newLookupFs(t)

	path, err := LookPath(fsys, nil, "/", "/usr/bin/ls")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/ls", path)
}

func TestLookPathRelativeResolvesAgainstDir(t *testing.T) {
	fsys := newLookupFs(t)

	path, err := LookPath(fsys, nil, "/usr", "bin/ls")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/ls", path)

	_, err = LookPath(fsys, nil, "/etc", "bin/ls")
	assert.ErrorIs(t, err, filter.ErrCommandNotFound)
}
