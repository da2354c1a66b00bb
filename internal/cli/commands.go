package cli

import (
	"context"

	"github.com/specialistvlad/anda/internal/app"
	"github.com/specialistvlad/anda/internal/manifest"
	"github.com/specialistvlad/anda/internal/publish"
)

// ListCmd prints the projects of the manifest.
type ListCmd struct {
	Output string `short:"o" enum:"text,json,yaml" default:"text" help:"Output format (${enum})."`
}

func (c *ListCmd) Run(ctx context.Context, a *app.App) error {
	return a.List(ctx, c.Output)
}

// CleanCmd removes the target directory.
type CleanCmd struct{}

func (c *CleanCmd) Run(ctx context.Context, a *app.App) error {
	return a.Clean(ctx)
}

// InitCmd scans a directory and prints a manifest for it.
type InitCmd struct {
	Path string `arg:"" optional:"" default:"." help:"Directory to scan." type:"path"`
	Yes  bool   `short:"y" help:"Add every file found without asking."`
}

func (c *InitCmd) Run(ctx context.Context, a *app.App, streams *Streams) error {
	var ask app.ConfirmFunc
	if !c.Yes {
		ask = confirm(streams)
	}
	return a.Init(ctx, c.Path, ask)
}

// CICmd prints the build matrix.
type CICmd struct{}

func (c *CICmd) Run(ctx context.Context, a *app.App) error {
	return a.CI(ctx)
}

// UpdateCmd runs update scripts.
type UpdateCmd struct {
	Labels   []string `short:"l" sep:"none" help:"Labels passed to the scripts as k=v,... Repeatable." placeholder:"LABELS"`
	Filters  []string `short:"f" sep:"none" help:"Only update projects whose labels match all of k=v,... Repeat for alternatives." placeholder:"FILTER"`
	Excludes []string `short:"e" sep:"none" help:"Skip projects whose labels match all of k=v,... Repeat for alternatives. Overrides --filters." placeholder:"FILTER"`
}

func (c *UpdateCmd) Run(ctx context.Context, a *app.App) error {
	labels, err := manifest.ParseLabels(c.Labels)
	if err != nil {
		return usageError(err.Error())
	}
	filters, err := manifest.ParseFilters(c.Filters)
	if err != nil {
		return usageError(err.Error())
	}
	excludes, err := manifest.ParseFilters(c.Excludes)
	if err != nil {
		return usageError(err.Error())
	}
	return a.Update(ctx, app.UpdateRequest{Labels: labels, Filters: filters, Excludes: excludes})
}

// RunCmd runs scripts outside of any project.
type RunCmd struct {
	Scripts []string `arg:"" help:"Scripts to run, in order." type:"path"`
	Labels  string   `short:"l" help:"Labels passed to the scripts as k=v,..." placeholder:"LABELS"`
}

func (c *RunCmd) Run(ctx context.Context, a *app.App) error {
	labels, err := manifest.ParseKV(c.Labels)
	if err != nil {
		return usageError(err.Error())
	}
	return a.RunScripts(ctx, c.Scripts, labels)
}

// PublishCmd uploads the build directory.
type PublishCmd struct {
	Bucket   string `env:"ANDA_S3_BUCKET" required:"" help:"Destination bucket."`
	Endpoint string `env:"ANDA_S3_ENDPOINT" help:"Endpoint of an S3-compatible service." placeholder:"URL"`
	Prefix   string `help:"Key prefix for every uploaded object."`
	Region   string `env:"ANDA_S3_REGION" help:"Bucket region."`
}

func (c *PublishCmd) Run(ctx context.Context, a *app.App) error {
	return a.Publish(ctx, publish.Options{
		Bucket:   c.Bucket,
		Endpoint: c.Endpoint,
		Prefix:   c.Prefix,
		Region:   c.Region,
	})
}
