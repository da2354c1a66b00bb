package script

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/specialistvlad/anda/internal/ctxlog"
	"github.com/specialistvlad/anda/internal/paths"
	"github.com/specialistvlad/anda/internal/proc"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
)

func init() {
	resolve.AllowSet = true
	resolve.AllowGlobalReassign = true
	resolve.AllowRecursion = true
}

// Bindings are the named values passed into an embedded script. Pointer
// values are written back after the script completes successfully; other
// values are read-only.
type Bindings map[string]any

// Runtime executes hooks. It is safe to reuse across projects.
type Runtime struct {
	runner    proc.Runner
	client    *http.Client
	endpoints Endpoints
}

// NewRuntime creates a runtime whose sh() builtin and shell hooks run
// through runner.
func NewRuntime(runner proc.Runner) *Runtime {
	return &Runtime{
		runner:    runner,
		client:    NewHTTPClient(30 * time.Second),
		endpoints: DefaultEndpoints(),
	}
}

// Close releases idle HTTP connections.
func (rt *Runtime) Close() {
	rt.client.CloseIdleConnections()
}

// exec runs an embedded script on its own locked OS thread and waits for it.
func (rt *Runtime) exec(ctx context.Context, path string, bindings Bindings) error {
	errc := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		errc <- rt.execLocked(ctx, path, bindings)
	}()
	return <-errc
}

func (rt *Runtime) execLocked(ctx context.Context, path string, bindings Bindings) error {
	logger := ctxlog.FromContext(ctx)

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script %s: %w", path, err)
	}

	predeclared := rt.builtins(ctx)
	predeclared["script_path"] = starlark.String(path)
	values := make(map[string]starlark.Value, len(bindings))
	for name, v := range bindings {
		sv, err := toStarlark(v)
		if err != nil {
			return fmt.Errorf("binding %s: %w", name, err)
		}
		values[name] = sv
		predeclared[name] = sv
	}

	thread := &starlark.Thread{
		Name:  path,
		Print: func(_ *starlark.Thread, msg string) { logger.Info(msg) },
		Load:  newLoader(filepath.Dir(path), predeclared),
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel("interrupted")
		case <-done:
		}
	}()

	globals, err := starlark.ExecFile(thread, path, src, predeclared)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", proc.ErrCancelled, path)
		}
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return fmt.Errorf("script %s failed: %s", path, evalErr.Backtrace())
		}
		return fmt.Errorf("script %s failed: %w", path, err)
	}

	for name, target := range bindings {
		v, ok := globals[name]
		if !ok {
			v = values[name]
		}
		if err := readBack(v, target); err != nil {
			return fmt.Errorf("script %s: binding %s: %w", path, name, err)
		}
	}
	logger.Debug("Script finished.")
	return nil
}

// newLoader resolves load() statements relative to the calling script's
// directory first and then below the XDG data directories. Each module is
// executed once per run.
func newLoader(dir string, predeclared starlark.StringDict) func(*starlark.Thread, string) (starlark.StringDict, error) {
	type entry struct {
		globals starlark.StringDict
		err     error
	}
	cache := map[string]*entry{}

	var load func(*starlark.Thread, string) (starlark.StringDict, error)
	load = func(thread *starlark.Thread, module string) (starlark.StringDict, error) {
		path, err := resolveModule(dir, module)
		if err != nil {
			return nil, err
		}
		if e, ok := cache[path]; ok {
			if e == nil {
				return nil, fmt.Errorf("cycle in load graph at %s", module)
			}
			return e.globals, e.err
		}
		cache[path] = nil

		src, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		child := &starlark.Thread{Name: path, Print: thread.Print, Load: load}
		globals, err := starlark.ExecFile(child, path, src, predeclared)
		cache[path] = &entry{globals: globals, err: err}
		return globals, err
	}
	return load
}

func resolveModule(dir, module string) (string, error) {
	if filepath.IsAbs(module) {
		return module, nil
	}
	local := filepath.Join(dir, module)
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}
	path, err := paths.FindScript(module)
	if err != nil {
		return "", fmt.Errorf("cannot load %s: not found next to the script or in the script library", module)
	}
	return path, nil
}
