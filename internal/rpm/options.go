// Package rpm drives the external tools that turn a spec file into source
// and binary RPM packages.
package rpm

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/anda/internal/manifest"
)

// Builder selects the backend used for RPM builds.
type Builder string

const (
	// BuilderMock builds inside a mock chroot.
	BuilderMock Builder = "mock"
	// BuilderRpmbuild builds directly on the host.
	BuilderRpmbuild Builder = "rpmbuild"
)

// ParseBuilder converts a command line value into a Builder. The empty
// string selects mock.
func ParseBuilder(s string) (Builder, error) {
	switch strings.ToLower(s) {
	case "", "mock":
		return BuilderMock, nil
	case "rpmbuild":
		return BuilderRpmbuild, nil
	default:
		return "", fmt.Errorf("unknown rpm builder %q (expected mock or rpmbuild)", s)
	}
}

func (b Builder) String() string { return string(b) }

// Options are the settings shared by every backend. Slices keep the order
// in which entries were added, and flags are emitted in that order.
type Options struct {
	MockConfig string
	Target     string
	Sources    string
	ResultDir  string
	ExtraRepos []string
	With       []string
	Without    []string
	Macros     *manifest.OrderedMap
	NoMirror   bool
	ConfigOpts []string
	SCMEnable  bool
	SCMOpts    []string
	PluginOpts []string
}

// NewOptions returns Options writing results below resultDir.
func NewOptions(resultDir string) *Options {
	return &Options{ResultDir: resultDir, Macros: manifest.NewOrderedMap()}
}

// DefMacro defines a macro, replacing an earlier value in place.
func (o *Options) DefMacro(name, value string) {
	if o.Macros == nil {
		o.Macros = manifest.NewOrderedMap()
	}
	o.Macros.Set(name, value)
}

// AddRepo adds an extra repository for build dependencies.
func (o *Options) AddRepo(repo string) {
	o.ExtraRepos = append(o.ExtraRepos, repo)
}

// AddConfigOpt adds a backend configuration option in key=value form.
func (o *Options) AddConfigOpt(opt string) {
	o.ConfigOpts = append(o.ConfigOpts, opt)
}

// ParseMacro splits a command line macro definition of the form
// "name value" at the first space.
func ParseMacro(def string) (name, value string, err error) {
	name, value, ok := strings.Cut(strings.TrimSpace(def), " ")
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid macro definition %q (expected \"name value\")", def)
	}
	return name, strings.TrimSpace(value), nil
}

func (o *Options) macroArgs() []string {
	var args []string
	for _, k := range o.Macros.Keys() {
		v, _ := o.Macros.Get(k)
		args = append(args, "-D", k+" "+v)
	}
	return args
}

func (o *Options) withArgs() []string {
	var args []string
	for _, w := range o.With {
		args = append(args, "--with", w)
	}
	for _, w := range o.Without {
		args = append(args, "--without", w)
	}
	return args
}

// SourcePath returns Sources as an absolute path. An empty Sources means the
// working directory.
func (o *Options) SourcePath() string {
	dir := o.Sources
	if dir == "" {
		dir = "."
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}
