// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package manifest

import (
	"slices"
	"sort"
)

// FileName is the well-known name of nested manifest files.
const FileName = "anda.hcl"

// Manifest is the root container for all projects loaded from one or more
// anda.hcl files.
type Manifest struct {
	Projects map[string]*Project
	Config   Config
}

// Config holds the settings of the optional top-level `config` block.
type Config struct {
	MockConfig   string
	StripPrefix  string
	StripSuffix  string
	ProjectRegex string
}

// Project is one named buildable unit.
type Project struct {
	Rpm     *RpmBuild
	Podman  *Docker
	Docker  *Docker
	Flatpak *Flatpak

	PreScript  string
	PostScript string
	Update     string
	Scripts    []string

	Env     map[string]string
	Alias   []string
	Labels  map[string]string
	Arches  []string
	Depends []string
}

// BuildMode selects how an RPM project is described.
type BuildMode string

const (
	// ModeStandard builds from a spec file.
	ModeStandard BuildMode = "standard"
	// ModeCargo builds a crate named by Package; no spec file is required.
	ModeCargo BuildMode = "cargo"
)

// RpmBuild describes how a project produces RPM packages.
type RpmBuild struct {
	Spec       string
	Sources    string
	Package    string
	Mode       BuildMode
	PreScript  string
	PostScript string
	EnableSCM  bool
	ExtraRepos []string
	SCMOpts    map[string]string
	Config     map[string]string
	MockConfig string
	PluginOpts map[string]string
	Macros     *OrderedMap
	Opts       map[string]string
}

// Docker describes the container images of a docker or podman section,
// keyed by image tag.
type Docker struct {
	Images map[string]*DockerImage
}

// DockerImage is a single image entry.
type DockerImage struct {
	Dockerfile string
	Import     string
	TagLatest  bool
	Context    string
	Version    string
}

// Flatpak describes a Flatpak build.
type Flatpak struct {
	Manifest   string
	PreScript  string
	PostScript string
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{Projects: map[string]*Project{}}
}

// Names returns the project names in sorted order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Projects))
	for name := range m.Projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetProject looks up a project by name, falling back to its aliases.
func (m *Manifest) GetProject(key string) (*Project, bool) {
	_, p, ok := m.Lookup(key)
	return p, ok
}

// Lookup is GetProject that also returns the canonical project name.
func (m *Manifest) Lookup(key string) (string, *Project, bool) {
	if p, ok := m.Projects[key]; ok {
		return key, p, true
	}
	for _, name := range m.Names() {
		p := m.Projects[name]
		if slices.Contains(p.Alias, key) {
			return name, p, true
		}
	}
	return "", nil, false
}

// Merge folds the projects of other into m. Keys are already fully qualified.
// Names in keep are never replaced and are returned as skipped; for any other
// name the last write wins.
func (m *Manifest) Merge(other *Manifest, keep map[string]bool) (skipped []string) {
	if m.Projects == nil {
		m.Projects = map[string]*Project{}
	}
	for _, name := range other.Names() {
		if keep[name] {
			skipped = append(skipped, name)
			continue
		}
		m.Projects[name] = other.Projects[name]
	}
	return skipped
}

// HasBuild reports whether the project declares any build mechanism.
func (p *Project) HasBuild() bool {
	return p.Rpm != nil || p.Docker != nil || p.Podman != nil || p.Flatpak != nil || len(p.Scripts) > 0
}

// EffectiveMode returns the build mode, defaulting to ModeStandard.
func (r *RpmBuild) EffectiveMode() BuildMode {
	if r.Mode == "" {
		return ModeStandard
	}
	return r.Mode
}
