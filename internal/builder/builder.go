package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/specialistvlad/anda/internal/ctxlog"
	"github.com/specialistvlad/anda/internal/dag"
	"github.com/specialistvlad/anda/internal/manifest"
	"github.com/specialistvlad/anda/internal/proc"
	"github.com/specialistvlad/anda/internal/rpm"
	"github.com/specialistvlad/anda/internal/script"
	"github.com/specialistvlad/anda/internal/vcs"
)

// Version is stamped into container image labels.
var Version = "dev"

// Options configure a Builder.
type Options struct {
	// TargetDir receives every artifact.
	TargetDir string
	// ManifestPath is the root manifest. Relative paths of the manifest are
	// resolved against its directory.
	ManifestPath string
	// Out receives the build summary.
	Out   io.Writer
	Color bool
}

// Builder executes build requests against a manifest.
type Builder struct {
	targetDir    string
	manifestPath string
	baseDir      string
	out          io.Writer
	color        bool

	runner  proc.Runner
	scripts *script.Runtime
	store   *Storage

	now        func() time.Time
	head       func(dir string) (vcs.Commit, error)
	newBackend func(rpm.Builder, *rpm.Options, proc.Runner) (rpm.Backend, error)
}

// New creates a Builder. External commands run through runner and hooks
// through scripts.
func New(opts Options, runner proc.Runner, scripts *script.Runtime) *Builder {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Builder{
		targetDir:    opts.TargetDir,
		manifestPath: opts.ManifestPath,
		baseDir:      filepath.Dir(opts.ManifestPath),
		out:          out,
		color:        opts.Color,
		runner:       runner,
		scripts:      scripts,
		store:        NewStorage(),
		now:          time.Now,
		head:         vcs.Head,
		newBackend:   rpm.New,
	}
}

// Artifacts returns everything built so far.
func (b *Builder) Artifacts() []Artifact {
	return b.store.List()
}

// Build runs req against m. Projects are built sequentially and the first
// failure stops the run.
func (b *Builder) Build(ctx context.Context, m *manifest.Manifest, req Request) error {
	logger := ctxlog.FromContext(ctx)

	names, err := b.selectProjects(m, req)
	if err != nil {
		return err
	}

	target, err := filepath.Abs(b.targetDir)
	if err != nil {
		return err
	}
	if err := os.Setenv(EnvTargetDir, target); err != nil {
		return err
	}
	if err := os.Setenv(EnvConfigPath, b.manifestPath); err != nil {
		return err
	}

	logger.Debug("Build started.", "projects", len(names), "package", req.Package)
	var buildErr error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			buildErr = fmt.Errorf("%w: build of %s not started", proc.ErrCancelled, name)
			break
		}
		fmt.Fprintf(b.out, "Building project: %s\n", name)
		if err := b.buildProject(ctx, m, name, m.Projects[name], req); err != nil {
			buildErr = err
			break
		}
	}

	if len(b.store.List()) > 0 {
		if err := b.store.WriteJSON(b.targetDir); err != nil {
			buildErr = errors.Join(buildErr, err)
		}
	}
	return buildErr
}

func (b *Builder) selectProjects(m *manifest.Manifest, req Request) ([]string, error) {
	if req.All {
		names, err := manifest.Select(m)
		if err != nil {
			return nil, err
		}
		return buildOrder(m, names)
	}
	if req.Project == "" {
		return nil, errors.New("no project specified")
	}
	name, _, ok := m.Lookup(req.Project)
	if !ok {
		return nil, fmt.Errorf("project not found: %s", req.Project)
	}
	return []string{name}, nil
}

// buildOrder places every selected project after the selected projects it
// depends on. Dependencies outside the selection are ignored.
func buildOrder(m *manifest.Manifest, names []string) ([]string, error) {
	g := dag.New()
	for _, n := range names {
		g.AddNode(n)
	}
	selected := make(map[string]bool, len(names))
	for _, n := range names {
		selected[n] = true
	}
	for _, n := range names {
		for _, dep := range m.Projects[n].Depends {
			target, _, ok := m.Lookup(dep)
			if !ok || !selected[target] || target == n {
				continue
			}
			if err := g.AddEdge(target, n); err != nil {
				return nil, err
			}
		}
	}
	order, err := g.Order()
	if err != nil {
		return nil, fmt.Errorf("cannot order projects: %w", err)
	}
	return order, nil
}

// resolve makes a manifest path absolute against the manifest directory.
func (b *Builder) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(b.baseDir, path)
}
