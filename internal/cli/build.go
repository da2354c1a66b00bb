package cli

import (
	"context"

	"github.com/specialistvlad/anda/internal/app"
	"github.com/specialistvlad/anda/internal/builder"
	"github.com/specialistvlad/anda/internal/rpm"
)

// BuildCmd builds one project or all of them.
type BuildCmd struct {
	Project string `arg:"" optional:"" help:"Project to build, by name or alias."`
	All     bool   `short:"a" help:"Build all projects."`
	Package string `short:"p" enum:"all,rpm,docker,podman,flatpak" default:"all" help:"Artifact format to build (${enum})."`

	RpmBuilder string   `short:"b" enum:"mock,rpmbuild" default:"mock" help:"RPM builder backend (${enum})."`
	RpmMacro   []string `short:"D" sep:"none" help:"Define an RPM macro as \"name value\". Repeatable." placeholder:"MACRO"`
	RpmTarget  string   `help:"Target passed to mock or rpmbuild, for cross compilation."`
	MockConfig string   `short:"m" help:"Mock configuration to build with." placeholder:"CONFIG"`
	ExtraRepos []string `short:"R" sep:"none" help:"Extra repository for build dependencies. Repeatable." placeholder:"URL"`
	NoMirrors  bool     `help:"Set mirrored=False in the mock configuration."`
	NoPTY      bool     `name:"no-pty" help:"Stream build output through pipes instead of a pseudo-terminal."`
}

func (c *BuildCmd) Run(ctx context.Context, a *app.App) error {
	if c.Project == "" && !c.All {
		return usageError("no project specified: pass a project name or --all")
	}
	kind, err := builder.ParsePackageKind(c.Package)
	if err != nil {
		return usageError(err.Error())
	}
	rb, err := rpm.ParseBuilder(c.RpmBuilder)
	if err != nil {
		return usageError(err.Error())
	}
	for _, def := range c.RpmMacro {
		if _, _, err := rpm.ParseMacro(def); err != nil {
			return usageError(err.Error())
		}
	}

	return a.Build(ctx, builder.Request{
		All:     c.All,
		Project: c.Project,
		Package: kind,
		Rpm: builder.RpmFlags{
			Builder:    rb,
			MockConfig: c.MockConfig,
			Macros:     c.RpmMacro,
			Repos:      c.ExtraRepos,
			Target:     c.RpmTarget,
			NoMirrors:  c.NoMirrors,
		},
	})
}
