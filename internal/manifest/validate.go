package manifest

import (
	"fmt"
	"regexp"
	"sort"
)

// Check lints a merged manifest. Every violation is collected and returned
// as a *MultipleError; projects without any build mechanism only produce a
// warning.
func Check(m *Manifest, exists ExistsFunc) (warnings []string, err error) {
	if exists == nil {
		exists = FileExists
	}
	var errs []error
	violation := func(project, format string, args ...any) {
		errs = append(errs, &ViolationError{Project: project, Reason: fmt.Sprintf(format, args...)})
	}

	if m.Config.ProjectRegex != "" {
		if _, rerr := regexp.Compile(m.Config.ProjectRegex); rerr != nil {
			errs = append(errs, fmt.Errorf("config.project_regex: %w", rerr))
		}
	}

	for _, name := range m.Names() {
		p := m.Projects[name]

		if r := p.Rpm; r != nil {
			switch r.EffectiveMode() {
			case ModeStandard:
				if r.Spec == "" {
					violation(name, "rpm.spec is required")
				} else if !exists(r.Spec) {
					violation(name, "spec file %s does not exist", r.Spec)
				}
			case ModeCargo:
				if r.Package == "" {
					violation(name, "rpm.package is required in cargo mode")
				}
			default:
				violation(name, "unknown rpm.mode %q", r.Mode)
			}
		}

		for _, section := range []struct {
			kind string
			d    *Docker
		}{{"docker", p.Docker}, {"podman", p.Podman}} {
			if section.d == nil {
				continue
			}
			if len(section.d.Images) == 0 {
				violation(name, "%s section declares no images", section.kind)
				continue
			}
			tags := make([]string, 0, len(section.d.Images))
			for tag := range section.d.Images {
				tags = append(tags, tag)
			}
			sort.Strings(tags)
			for _, tag := range tags {
				img := section.d.Images[tag]
				if img.Dockerfile == "" && img.Import == "" {
					violation(name, "%s image %s needs a dockerfile or an import", section.kind, tag)
				}
			}
		}

		for _, dep := range p.Depends {
			if _, ok := m.GetProject(dep); !ok {
				violation(name, "depends on unknown project %s", dep)
			}
		}

		if !p.HasBuild() {
			warnings = append(warnings, fmt.Sprintf("project %s declares no build manifest", name))
		}
	}

	if len(errs) > 0 {
		return warnings, &MultipleError{Errors: errs}
	}
	return warnings, nil
}

// Select returns the names of the projects matched by config.project_regex,
// in name order. Without a regex every project is selected.
func Select(m *Manifest) ([]string, error) {
	names := m.Names()
	if m.Config.ProjectRegex == "" {
		return names, nil
	}
	re, err := regexp.Compile(m.Config.ProjectRegex)
	if err != nil {
		return nil, &InvalidManifestError{Reason: "config.project_regex: " + err.Error(), Err: err}
	}
	selected := names[:0]
	for _, n := range names {
		if re.MatchString(n) {
			selected = append(selected, n)
		}
	}
	return selected, nil
}
