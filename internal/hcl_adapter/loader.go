// Package hcl_adapter loads anda manifests written in HCL into the
// format-agnostic manifest model.
package hcl_adapter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/anda/internal/ctxlog"
	"github.com/specialistvlad/anda/internal/fsutil"
	"github.com/specialistvlad/anda/internal/manifest"
)

// Loader reads a root manifest and every nested manifest below it.
type Loader struct {
	// FileName is the name nested manifests must have.
	FileName string
}

// NewLoader creates a new HCL manifest loader.
func NewLoader() *Loader {
	return &Loader{FileName: manifest.FileName}
}

// Load reads the manifest at path, merges every nested manifest found under
// its directory, derives aliases and validates the result. Relative paths in
// the manifest are resolved against the directory of path.
func (l *Loader) Load(ctx context.Context, path string) (*manifest.Manifest, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Reading manifest.", "path", path)

	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", manifest.ErrNoManifest, path)
		}
		return nil, manifest.Invalid(path, err)
	}

	base := filepath.Dir(path)
	env, err := Environment(filepath.Join(base, ".env"))
	if err != nil {
		return nil, manifest.Invalid(path, err)
	}
	evalCtx := NewEvalContext(env)
	parser := hclparse.NewParser()

	root, err := decodeFile(parser, path, src, evalCtx)
	if err != nil {
		return nil, err
	}

	exists := relativeExists(base)
	declared := make(map[string]bool, len(root.Projects))
	for name := range root.Projects {
		declared[name] = true
	}

	files, err := fsutil.FindFilesNamed(base, l.FileName)
	if err != nil {
		return nil, fmt.Errorf("failed to find nested manifests in %s: %w", base, err)
	}
	rootAbs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return nil, err
		}
		if abs == rootAbs {
			continue
		}
		rel, err := filepath.Rel(base, filepath.Dir(file))
		if err != nil {
			return nil, err
		}
		logger.Debug("Loading nested manifest.", "path", file, "prefix", rel)

		data, err := os.ReadFile(file)
		if err != nil {
			return nil, manifest.Invalid(file, err)
		}
		nested, err := decodeFile(parser, file, data, evalCtx)
		if err != nil {
			return nil, err
		}
		skipped := root.Merge(manifest.Prefix(nested, filepath.ToSlash(rel), exists), declared)
		for _, name := range skipped {
			logger.Warn("Nested project shadowed by root manifest.", "project", name, "path", file)
		}
	}

	root.ClearEmptyPaths()
	manifest.GenerateAliases(root)

	warnings, err := manifest.Check(root, exists)
	for _, w := range warnings {
		logger.Warn(w)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("Manifest loaded.", "projects", len(root.Projects), "nested_files", len(files))
	return root, nil
}

// LoadString decodes a single manifest from memory. No nested discovery,
// prefixing or validation is performed.
func LoadString(src, filename string) (*manifest.Manifest, error) {
	env, err := Environment("")
	if err != nil {
		return nil, err
	}
	m, err := decodeFile(hclparse.NewParser(), filename, []byte(src), NewEvalContext(env))
	if err != nil {
		return nil, err
	}
	m.ClearEmptyPaths()
	manifest.GenerateAliases(m)
	return m, nil
}

func decodeFile(parser *hclparse.Parser, filename string, src []byte, evalCtx *hcl.EvalContext) (*manifest.Manifest, error) {
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, &manifest.InvalidManifestError{
			Path:   filename,
			Reason: fmt.Sprintf("failed to parse HCL file: %s", diags.Error()),
			Err:    diags,
		}
	}
	m, diags := decodeBody(file.Body, evalCtx)
	if diags.HasErrors() {
		return nil, &manifest.InvalidManifestError{
			Path:   filename,
			Reason: fmt.Sprintf("failed to decode HCL file: %s", diags.Error()),
			Err:    diags,
		}
	}
	return m, nil
}

func relativeExists(base string) manifest.ExistsFunc {
	return func(p string) bool {
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		return manifest.FileExists(p)
	}
}
