package builder

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/anda/internal/rpm"
)

// PackageKind selects which sections of a project are built.
type PackageKind string

const (
	KindAll     PackageKind = "all"
	KindRpm     PackageKind = "rpm"
	KindDocker  PackageKind = "docker"
	KindPodman  PackageKind = "podman"
	KindFlatpak PackageKind = "flatpak"
)

// ParsePackageKind converts a command line value. The empty string selects
// every kind.
func ParsePackageKind(s string) (PackageKind, error) {
	switch k := PackageKind(strings.ToLower(s)); k {
	case "":
		return KindAll, nil
	case KindAll, KindRpm, KindDocker, KindPodman, KindFlatpak:
		return k, nil
	default:
		return "", fmt.Errorf("unknown package kind %q", s)
	}
}

// Label is the human-readable name used in build summaries.
func (k PackageKind) Label() string {
	switch k {
	case KindRpm:
		return "RPM"
	case KindDocker:
		return "Docker image"
	case KindPodman:
		return "Podman image"
	case KindFlatpak:
		return "flatpak"
	default:
		return string(k)
	}
}

func (k PackageKind) isAll() bool {
	return k == KindAll || k == ""
}

func (k PackageKind) wants(other PackageKind) bool {
	return k.isAll() || k == other
}

// RpmFlags are the RPM settings given on the command line.
type RpmFlags struct {
	Builder    rpm.Builder
	MockConfig string
	// Macros are "name value" definitions.
	Macros    []string
	Repos     []string
	Target    string
	NoMirrors bool
}

// Request describes one build invocation.
type Request struct {
	// All builds every project selected by config.project_regex.
	All bool
	// Project names the single project to build, by name or alias.
	Project string
	Package PackageKind
	Rpm     RpmFlags
}

// ProjectError reports the project and lifecycle phase a build failed in.
type ProjectError struct {
	Project string
	Phase   string
	Err     error
}

func (e *ProjectError) Error() string {
	return fmt.Sprintf("project %s: %s: %v", e.Project, e.Phase, e.Err)
}

func (e *ProjectError) Unwrap() error { return e.Err }

// Phase names used in ProjectError.
const (
	PhasePreScript  = "pre-script"
	PhaseBuild      = "build"
	PhasePostScript = "post-script"
	PhaseScripts    = "scripts"
)
