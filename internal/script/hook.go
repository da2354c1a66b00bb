// Package script runs build hooks: shell scripts through sh, and embedded
// Starlark scripts with named bindings that are read back after the script
// completes.
package script

import (
	"context"
	"path/filepath"

	"github.com/specialistvlad/anda/internal/ctxlog"
	"github.com/specialistvlad/anda/internal/proc"
)

// Extension marks a hook as an embedded script.
const Extension = ".star"

// Kind is the execution strategy of a Hook.
type Kind int

const (
	// Shell hooks run as `sh -c <path>`.
	Shell Kind = iota
	// Embedded hooks run in the Starlark interpreter.
	Embedded
)

func (k Kind) String() string {
	if k == Embedded {
		return "embedded"
	}
	return "shell"
}

// KindOf picks the strategy for path from its extension.
func KindOf(path string) Kind {
	if filepath.Ext(path) == Extension {
		return Embedded
	}
	return Shell
}

// Hook is a script bound to the runtime that executes it.
type Hook struct {
	Path string
	Kind Kind

	rt *Runtime
}

// NewHook returns the hook for path. The strategy is decided here, once.
func (rt *Runtime) NewHook(path string) *Hook {
	return &Hook{Path: path, Kind: KindOf(path), rt: rt}
}

// Run executes the hook. Shell hooks ignore bindings; embedded hooks get
// them as predeclared names plus script_path.
func (h *Hook) Run(ctx context.Context, bindings Bindings) error {
	ctx = ctxlog.With(ctx, "script", h.Path)
	ctxlog.FromContext(ctx).Info("Running script.", "kind", h.Kind)

	switch h.Kind {
	case Embedded:
		return h.rt.exec(ctx, h.Path, bindings)
	default:
		return h.rt.runner.Run(ctx, proc.ShellCommand(h.Path))
	}
}
