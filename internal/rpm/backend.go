package rpm

import (
	"context"
	"fmt"

	"github.com/specialistvlad/anda/internal/proc"
)

// Backend turns a spec file into packages. Every method returns the paths of
// the files it copied into the result directory.
type Backend interface {
	// BuildSRPM builds the source package only.
	BuildSRPM(ctx context.Context, spec string) ([]string, error)
	// BuildRPM rebuilds binary packages from a source package.
	BuildRPM(ctx context.Context, srpm string) ([]string, error)
	// Build produces both source and binary packages.
	Build(ctx context.Context, spec string) ([]string, error)
}

// New returns the backend for builder. Commands are executed through runner.
func New(builder Builder, opts *Options, runner proc.Runner) (Backend, error) {
	if opts == nil {
		return nil, fmt.Errorf("rpm options are required")
	}
	switch builder {
	case BuilderMock, "":
		return &Mock{opts: opts, runner: runner}, nil
	case BuilderRpmbuild:
		return &Rpmbuild{opts: opts, runner: runner}, nil
	default:
		return nil, fmt.Errorf("unknown rpm builder %q", builder)
	}
}
