package manifest

import (
	"slices"
	"strings"
)

// GenerateAliases applies the strip_prefix / strip_suffix rules: every project
// whose name changes after stripping gets the stripped name appended to its
// aliases. Running it again adds nothing.
func GenerateAliases(m *Manifest) {
	if m.Config.StripPrefix == "" && m.Config.StripSuffix == "" {
		return
	}
	for name, p := range m.Projects {
		stripped := m.Config.StripName(name)
		if stripped == name || slices.Contains(p.Alias, stripped) {
			continue
		}
		p.Alias = append(p.Alias, stripped)
	}
}

// StripName removes the configured prefix, then the configured suffix.
func (c Config) StripName(name string) string {
	if c.StripPrefix != "" {
		name = strings.TrimPrefix(name, c.StripPrefix)
	}
	if c.StripSuffix != "" {
		name = strings.TrimSuffix(name, c.StripSuffix)
	}
	return name
}
