package app

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/anda/internal/fsutil"
	"github.com/specialistvlad/anda/internal/hcl_adapter"
	"github.com/specialistvlad/anda/internal/manifest"
)

// ConfirmFunc asks the user a yes/no question.
type ConfirmFunc func(question string) bool

// Init scans dir for spec files and Dockerfiles and prints a manifest
// describing them. Every spec file becomes a project named after it; all
// Dockerfiles are collected as images of one "docker" project. confirm is
// asked before each file is added; nil accepts everything.
func (a *App) Init(ctx context.Context, dir string, confirm ConfirmFunc) error {
	if confirm == nil {
		confirm = func(string) bool { return true }
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	files, err := fsutil.Find(dir, func(rel string, d fs.DirEntry) bool {
		return isSpec(rel) || isDockerfile(rel)
	})
	if err != nil {
		return err
	}

	m := manifest.New()
	var docker *manifest.Docker
	for _, f := range files {
		rel, err := filepath.Rel(dir, f)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch {
		case isSpec(rel):
			if !confirm(fmt.Sprintf("Add spec file `%s` to manifest?", rel)) {
				continue
			}
			name := strings.TrimSuffix(path.Base(rel), ".spec")
			m.Projects[name] = &manifest.Project{Rpm: &manifest.RpmBuild{Spec: rel}}
			a.logger.Debug("Found spec file.", "path", rel, "project", name)
		case isDockerfile(rel):
			if !confirm(fmt.Sprintf("Add Dockerfile `%s` to manifest?", rel)) {
				continue
			}
			if docker == nil {
				docker = &manifest.Docker{Images: map[string]*manifest.DockerImage{}}
				m.Projects["docker"] = &manifest.Project{Docker: docker}
			}
			tag := fmt.Sprintf("docker-%d", len(docker.Images)+1)
			docker.Images[tag] = &manifest.DockerImage{Dockerfile: rel}
			a.logger.Debug("Found Dockerfile.", "path", rel, "image", tag)
		}
	}

	_, err = a.outW.Write(hcl_adapter.Encode(m))
	return err
}

func isSpec(rel string) bool {
	return path.Ext(rel) == ".spec"
}

func isDockerfile(rel string) bool {
	return path.Base(rel) == "Dockerfile" || path.Ext(rel) == ".dockerfile"
}
