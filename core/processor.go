package core

import (
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/pipeshell/pipeshell/core/filter"
	"github.com/pipeshell/pipeshell/core/logger"
	"github.com/pipeshell/pipeshell/core/proc"
)

// CommandProcessor is the engine's front door. It constructs filter graphs
// from named requests and resolves executables through an explicit command
// registry populated once by scanning the context's search path.
type CommandProcessor struct {
	// Separator is the record separator handed to Produce by callers
	// that drive through the processor.
	Separator string
	// Stderr receives the standard error of spawned commands.
	Stderr io.Writer

	ctx      *Context
	fsys     afero.Fs
	ctl      *proc.Controller
	log      *logger.SessionLogger
	registry map[string]string
}

// NewCommandProcessor creates a processor for ctx. A nil fsys uses the OS
// filesystem; a nil log discards diagnostics. The processor owns a fresh
// controller registered with the default registry.
func NewCommandProcessor(ctx *Context, fsys afero.Fs, log *logger.SessionLogger) *CommandProcessor {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if log == nil {
		log = logger.NewNopRecorder().Sessionless()
	}
	log.Debug = log.Debug || ctx.Debug

	p := &CommandProcessor{
		Separator: filter.DefaultSeparator,
		ctx:       ctx,
		fsys:      fsys,
		ctl:       proc.NewController(log),
		log:       log,
	}
	p.ScanPath()
	return p
}

// ScanPath rebuilds the command registry from the search path. The first
// directory containing a name wins, matching shell lookup order.
func (p *CommandProcessor) ScanPath() {
	registry := make(map[string]string)
	for _, dir := range p.ctx.Path {
		entries, err := afero.ReadDir(p.fsys, dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			mode := entry.Mode()
			if entry.IsDir() || mode&0111 == 0 {
				continue
			}
			if _, ok := registry[entry.Name()]; !ok {
				registry[entry.Name()] = filepath.Join(dir, entry.Name())
			}
		}
	}
	p.registry = registry
}

// Commands returns the sorted names in the command registry.
func (p *CommandProcessor) Commands() []string {
	names := make([]string, 0, len(p.registry))
	for name := range p.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve finds the executable behind name: registry lookup for bare
// names, direct probing for anything containing a slash.
func (p *CommandProcessor) Resolve(name string) (string, error) {
	if !strings.Contains(name, "/") {
		if path, ok := p.registry[name]; ok {
			return path, nil
		}
	}
	return LookPath(p.fsys, p.ctx.Path, p.ctx.Dir, name)
}

// Command builds a process-backed filter for name. The name must resolve
// now; resolution also re-runs at first drive so a command replaced on
// disk between construction and drive is picked up.
func (p *CommandProcessor) Command(name string, args ...string) (*filter.SystemCommand, error) {
	if _, err := p.Resolve(name); err != nil {
		return nil, err
	}

	cmd := filter.NewSystemCommand(p.ctl, name, args...)
	cmd.Dir = p.ctx.Dir
	cmd.Umask = p.ctx.Umask
	cmd.Resolver = p.Resolve
	cmd.Stderr = p.Stderr
	cmd.OnError = func(err error) {
		p.log.BrokenPipe(cmd.String(), err)
	}
	p.log.Debugf("command: %s", cmd.String())
	return cmd, nil
}

// Echo builds a literal source.
func (p *CommandProcessor) Echo(records ...string) *filter.Echo {
	return filter.NewEcho(records...)
}

// Cat builds a file source, resolving each path against the working
// directory.
func (p *CommandProcessor) Cat(paths ...string) *filter.Cat {
	resolved := make([]string, len(paths))
	for i, path := range paths {
		resolved[i] = p.ctx.Resolve(path)
	}
	return filter.NewCat(p.fsys, resolved...)
}

// Glob builds a pattern-expansion source rooted at the working directory.
func (p *CommandProcessor) Glob(pattern string) *filter.Glob {
	return filter.NewGlob(p.fsys, p.ctx.Dir, pattern)
}

// Tee builds a fan-out filter whose side file failures go to the log.
func (p *CommandProcessor) Tee(path string) *filter.Tee {
	resolved := p.ctx.Resolve(path)
	return filter.NewTee(p.fsys, resolved, func(err error) {
		p.log.TeeFailed(resolved, err)
	})
}

// Void builds a discard sink.
func (p *CommandProcessor) Void() *filter.Void {
	return filter.NewVoid()
}

// Concat composes filters into one ordered sequence.
func (p *CommandProcessor) Concat(filters ...filter.Filter) *filter.Concat {
	return filter.NewConcat(filters...)
}

// RedirectIn attaches the file at path as f's input.
func (p *CommandProcessor) RedirectIn(f filter.Filter, path string) error {
	return filter.RedirectInPath(p.fsys, f, p.ctx.Resolve(path))
}

// RedirectOut drives f into the file at path.
func (p *CommandProcessor) RedirectOut(f filter.Filter, path string, appendMode bool) error {
	return filter.RedirectOut(p.fsys, f, p.ctx.Resolve(path), appendMode, p.Separator)
}

// Controller exposes the job table owner for this processor.
func (p *CommandProcessor) Controller() *proc.Controller {
	return p.ctl
}

// WaitAll drains every job the processor's controller owns.
func (p *CommandProcessor) WaitAll() map[int]proc.Result {
	return p.ctl.WaitAll()
}

// Close drains outstanding jobs and deregisters the controller.
func (p *CommandProcessor) Close() error {
	return p.ctl.Close()
}
