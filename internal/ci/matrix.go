// Package ci computes the build matrix for continuous integration: which
// projects were touched by the last commit, and for which architectures.
package ci

import (
	"path"
	"strings"

	"github.com/goccy/go-json"
	"github.com/specialistvlad/anda/internal/manifest"
)

// DefaultArches are used for projects that do not list their own.
var DefaultArches = []string{"x86_64", "aarch64"}

// Entry is one job of the matrix.
type Entry struct {
	Pkg  string `json:"pkg"`
	Arch string `json:"arch"`
}

// Matrix returns one entry per architecture for every project whose
// directory (its name without strip_suffix) contains a changed file.
// Projects with SCM builds always use DefaultArches. Entries are ordered by
// project name.
func Matrix(m *manifest.Manifest, changed []string) []Entry {
	dirs := make(map[string]struct{}, len(changed))
	for _, f := range changed {
		dirs[path.Dir(f)] = struct{}{}
	}

	entries := []Entry{}
	for _, name := range m.Names() {
		p := m.Projects[name]
		dir := name
		if m.Config.StripSuffix != "" {
			dir = strings.TrimSuffix(name, m.Config.StripSuffix)
		}
		if _, ok := dirs[dir]; !ok {
			continue
		}

		arches := p.Arches
		if len(arches) == 0 || (p.Rpm != nil && p.Rpm.EnableSCM) {
			arches = DefaultArches
		}
		for _, arch := range arches {
			entries = append(entries, Entry{Pkg: name, Arch: arch})
		}
	}
	return entries
}

// Format renders entries as the `build_matrix=<json>` line consumed by CI
// workflows.
func Format(entries []Entry) (string, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return "build_matrix=" + string(data), nil
}
