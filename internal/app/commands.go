package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mattn/go-isatty"
	"github.com/specialistvlad/anda/internal/builder"
	"github.com/specialistvlad/anda/internal/ci"
	"github.com/specialistvlad/anda/internal/manifest"
	"github.com/specialistvlad/anda/internal/publish"
	"github.com/specialistvlad/anda/internal/script"
	"github.com/specialistvlad/anda/internal/specedit"
	"gopkg.in/yaml.v3"
)

// Build runs a build request against the manifest.
func (a *App) Build(ctx context.Context, req builder.Request) error {
	ctx = a.Context(ctx)
	m, err := a.Manifest(ctx)
	if err != nil {
		return err
	}
	path, err := a.manifestPath()
	if err != nil {
		return err
	}
	b := builder.New(builder.Options{
		TargetDir:    a.config.TargetDir,
		ManifestPath: path,
		Out:          a.outW,
		Color:        a.config.Color,
	}, a.runner, a.scripts)
	return b.Build(ctx, m, req)
}

// ListEntry is one project as printed by List.
type ListEntry struct {
	Name   string            `json:"name" yaml:"name"`
	Alias  []string          `json:"alias,omitempty" yaml:"alias,omitempty"`
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// List prints every project. The text format is one `name (alias, ...)`
// line per project; json and yaml print the entries as documents.
func (a *App) List(ctx context.Context, format string) error {
	m, err := a.Manifest(ctx)
	if err != nil {
		return err
	}
	entries := make([]ListEntry, 0, len(m.Projects))
	for _, name := range m.Names() {
		p := m.Projects[name]
		entries = append(entries, ListEntry{Name: name, Alias: p.Alias, Labels: p.Labels})
	}

	switch format {
	case "", "text":
		for _, e := range entries {
			if len(e.Alias) > 0 {
				fmt.Fprintf(a.outW, "%s (%s)\n", e.Name, strings.Join(e.Alias, ", "))
			} else {
				fmt.Fprintln(a.outW, e.Name)
			}
		}
	case "json":
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(a.outW, string(data))
	case "yaml":
		enc := yaml.NewEncoder(a.outW)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	return nil
}

// Clean removes the target directory. A missing directory is not an error.
func (a *App) Clean(ctx context.Context) error {
	fmt.Fprintln(a.outW, "Cleaning up build directory")
	if err := os.RemoveAll(a.config.TargetDir); err != nil {
		return fmt.Errorf("failed to clean %s: %w", a.config.TargetDir, err)
	}
	a.logger.Debug("Target directory removed.", "dir", a.config.TargetDir)
	return nil
}

// CI prints the build matrix for the projects touched by the HEAD commit.
// Outside a repository the matrix is empty.
func (a *App) CI(ctx context.Context) error {
	m, err := a.Manifest(ctx)
	if err != nil {
		return err
	}
	path, err := a.manifestPath()
	if err != nil {
		return err
	}
	changed, err := a.changedFiles(filepath.Dir(path))
	if err != nil {
		a.logger.Debug("No changed files available.", "error", err)
		changed = nil
	}

	selected, err := manifest.Select(m)
	if err != nil {
		return err
	}
	scoped := &manifest.Manifest{Config: m.Config, Projects: map[string]*manifest.Project{}}
	for _, name := range selected {
		scoped.Projects[name] = m.Projects[name]
	}

	line, err := ci.Format(ci.Matrix(scoped, changed))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.outW, line)
	return nil
}

// UpdateRequest selects the projects whose update scripts run.
type UpdateRequest struct {
	Labels   map[string]string
	Filters  []map[string]string
	Excludes []map[string]string
}

// Update runs the update script of every selected project. The script sees
// the project's spec file as `rpm`, written back when modified, and the
// project labels overlaid with req.Labels as `labels`. A failing project is
// logged and skipped.
func (a *App) Update(ctx context.Context, req UpdateRequest) error {
	ctx = a.Context(ctx)
	m, err := a.Manifest(ctx)
	if err != nil {
		return err
	}
	names, err := manifest.Select(m)
	if err != nil {
		return err
	}
	path, err := a.manifestPath()
	if err != nil {
		return err
	}
	base := filepath.Dir(path)

	var ran, failed int
	for _, name := range names {
		p := m.Projects[name]
		if p.Update == "" || !manifest.MatchFilters(p.Labels, req.Filters, req.Excludes) {
			continue
		}
		ran++
		if err := a.updateProject(ctx, base, name, p, req.Labels); err != nil {
			failed++
			a.logger.Warn("Update failed.", "project", name, "error", err)
		}
	}
	a.logger.Info("Update finished.", "projects", ran, "failed", failed)
	return nil
}

func (a *App) updateProject(ctx context.Context, base, name string, p *manifest.Project, extra map[string]string) error {
	labels := maps.Clone(p.Labels)
	if labels == nil {
		labels = map[string]string{}
	}
	maps.Copy(labels, extra)
	bindings := script.Bindings{"labels": labels}

	var spec *specedit.Spec
	if p.Rpm != nil && p.Rpm.Spec != "" {
		var err error
		spec, err = specedit.Open(ctx, name, resolve(base, p.Rpm.Spec))
		if err != nil {
			return err
		}
		bindings["rpm"] = spec
	}

	if err := a.scripts.NewHook(resolve(base, p.Update)).Run(ctx, bindings); err != nil {
		return err
	}
	if spec != nil && spec.Changed() {
		return spec.Write()
	}
	return nil
}

// RunScripts runs scripts in order with labels bound, stopping at the first
// failure.
func (a *App) RunScripts(ctx context.Context, scripts []string, labels map[string]string) error {
	if len(scripts) == 0 {
		return errors.New("no scripts specified")
	}
	ctx = a.Context(ctx)
	for _, s := range scripts {
		if err := a.scripts.NewHook(s).Run(ctx, script.Bindings{"labels": maps.Clone(labels)}); err != nil {
			return fmt.Errorf("script %s: %w", s, err)
		}
	}
	return nil
}

// Publish uploads the target directory. A progress bar is drawn on stderr
// when it is a terminal.
func (a *App) Publish(ctx context.Context, opts publish.Options) error {
	ctx = a.Context(ctx)
	if opts.Progress == nil && isatty.IsTerminal(os.Stderr.Fd()) {
		opts.Progress = os.Stderr
	}
	client, err := a.uploader(ctx, opts)
	if err != nil {
		return err
	}
	keys, err := publish.New(client, opts).Publish(ctx, a.config.TargetDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.outW, "Published %d files to s3://%s\n", len(keys), opts.Bucket)
	return nil
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
