package core

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pipeshell/pipeshell/core/config"
)

const envPath = "PATH"

// Context holds the per-shell state the engine reads: working directory,
// directory stack, umask, search path, and debug flag.
//
// The engine only reads a Context. Navigation (cd/pushd/popd) and other
// mutators belong to outer collaborators that own it.
type Context struct {
	// Dir is the current working directory used to resolve relative
	// paths.
	Dir string
	// DirStack is the LIFO stack behind pushd/popd. The engine never
	// touches it.
	DirStack []string
	// Umask is the octal creation mask for spawned processes, -1 to
	// inherit the caller's.
	Umask int
	// Path is the ordered executable search path.
	Path []string
	// Debug turns on diagnostic notifications.
	Debug bool
}

// NewContext creates a context from the calling process's environment.
func NewContext() *Context {
	dir, err := os.Getwd()
	if err != nil {
		dir = "/"
	}
	return &Context{
		Dir:   dir,
		Umask: -1,
		Path:  filepath.SplitList(os.Getenv(envPath)),
	}
}

// NewContextFromConfig creates a context taking the search path, umask and
// debug flag from cfg. The working directory still comes from the calling
// process.
func NewContextFromConfig(cfg *config.Configuration) (*Context, error) {
	umask, err := cfg.UmaskBits()
	if err != nil {
		return nil, err
	}

	ctx := NewContext()
	ctx.Path = cfg.SearchPath
	ctx.Umask = umask
	ctx.Debug = cfg.Debug
	return ctx, nil
}

// Resolve makes path absolute against the working directory.
func (c *Context) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir, path)
}

// PathString renders the search path in $PATH form.
func (c *Context) PathString() string {
	return strings.Join(c.Path, string(os.PathListSeparator))
}
