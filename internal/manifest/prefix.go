package manifest

import (
	"os"
	"path/filepath"
)

// Default script and directory names filled in for nested projects when the
// file exists next to the nested manifest.
const (
	DefaultRpmPreScript  = "rpm_pre.star"
	DefaultRpmPostScript = "rpm_post.star"
	DefaultSources       = "."
	DefaultUpdateScript  = "update.star"
	DefaultPreScript     = "pre.star"
	DefaultPostScript    = "post.star"
)

// ExistsFunc reports whether a path exists on disk.
type ExistsFunc func(path string) bool

// FileExists is the ExistsFunc backed by os.Stat.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Prefix rewrites a nested manifest found in directory prefix (relative to
// the root manifest's directory): project names become "prefix/name" and
// every path-valued field is made relative to the root. Aliases are
// regenerated on the result. m is not modified.
func Prefix(m *Manifest, prefix string, exists ExistsFunc) *Manifest {
	if exists == nil {
		exists = FileExists
	}
	out := &Manifest{Projects: make(map[string]*Project, len(m.Projects)), Config: m.Config}

	for name, src := range m.Projects {
		p := src.clone()

		if p.Rpm != nil {
			if p.Rpm.Spec != "" {
				p.Rpm.Spec = filepath.Join(prefix, p.Rpm.Spec)
			}
			p.Rpm.PreScript = prefixPath(prefix, p.Rpm.PreScript, DefaultRpmPreScript, exists)
			p.Rpm.PostScript = prefixPath(prefix, p.Rpm.PostScript, DefaultRpmPostScript, exists)
			p.Rpm.Sources = prefixPath(prefix, p.Rpm.Sources, DefaultSources, exists)
		}
		p.Update = prefixPath(prefix, p.Update, DefaultUpdateScript, exists)
		p.PreScript = prefixPath(prefix, p.PreScript, DefaultPreScript, exists)
		p.PostScript = prefixPath(prefix, p.PostScript, DefaultPostScript, exists)

		for i, s := range p.Scripts {
			p.Scripts[i] = filepath.Join(prefix, s)
		}

		out.Projects[filepath.Join(prefix, name)] = p
	}

	GenerateAliases(out)
	return out
}

// prefixPath handles one optional path attribute. Unset attributes only take
// the default when it exists on disk; attributes set to "" take the default
// unconditionally. The HCL decoder reports "set to empty" as EmptyPath.
func prefixPath(prefix, value, def string, exists ExistsFunc) string {
	switch value {
	case "":
		candidate := filepath.Join(prefix, def)
		if exists(candidate) {
			return candidate
		}
		return ""
	case EmptyPath:
		return filepath.Join(prefix, def)
	default:
		return filepath.Join(prefix, value)
	}
}

// EmptyPath marks a path attribute that was explicitly set to "" in the
// manifest, as opposed to omitted.
const EmptyPath = "\x00"

func (p *Project) clone() *Project {
	c := *p
	if p.Rpm != nil {
		r := *p.Rpm
		r.Macros = p.Rpm.Macros.Clone()
		r.ExtraRepos = append([]string(nil), p.Rpm.ExtraRepos...)
		c.Rpm = &r
	}
	c.Scripts = append([]string(nil), p.Scripts...)
	c.Alias = append([]string(nil), p.Alias...)
	return &c
}

// ClearEmptyPaths turns EmptyPath markers that were not consumed by Prefix
// (root-level projects) back into unset paths.
func (m *Manifest) ClearEmptyPaths() {
	reset := func(s *string) {
		if *s == EmptyPath {
			*s = ""
		}
	}
	for _, p := range m.Projects {
		reset(&p.PreScript)
		reset(&p.PostScript)
		reset(&p.Update)
		if p.Rpm != nil {
			reset(&p.Rpm.PreScript)
			reset(&p.Rpm.PostScript)
			reset(&p.Rpm.Sources)
		}
	}
}
