package core

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/pipeshell/pipeshell/core/filter"
)

func findExecutable(fsys afero.Fs, file string) error {
	d, err := fsys.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0111 != 0 {
		return nil
	}
	return fs.ErrPermission
}

// LookPath searches for an executable named file in the directories of the
// search path. If file contains a slash, it is tried directly relative to
// dir and the path is not consulted. The result is an absolute path or a
// path relative to the current directory.
func LookPath(fsys afero.Fs, path []string, dir, file string) (string, error) {
	if strings.Contains(file, "/") {
		target := file
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, target)
		}
		if err := findExecutable(fsys, target); err != nil {
			return "", fmt.Errorf("%w: %s: %v", filter.ErrCommandNotFound, file, err)
		}
		return target, nil
	}

	for _, dir := range path {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(fsys, candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", filter.ErrCommandNotFound, file)
}
