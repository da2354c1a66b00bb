package rpm

import (
	"context"
	"os/exec"

	"github.com/specialistvlad/anda/internal/ctxlog"
	"github.com/specialistvlad/anda/internal/proc"
)

// Rpmbuild builds packages directly on the host with rpmbuild(8).
type Rpmbuild struct {
	opts   *Options
	runner proc.Runner
}

func (r *Rpmbuild) command(phase, spec string, defines ...string) *exec.Cmd {
	o := r.opts
	var args []string
	if o.Target != "" {
		args = append(args, "--target", o.Target)
	}
	args = append(args, o.withArgs()...)
	args = append(args, o.macroArgs()...)
	args = append(args, phase, spec)
	for _, d := range defines {
		args = append(args, "--define", d)
	}
	return exec.Command("rpmbuild", args...)
}

// BuildSRPM runs rpmbuild -br.
func (r *Rpmbuild) BuildSRPM(ctx context.Context, spec string) ([]string, error) {
	ctxlog.FromContext(ctx).Info("Building source RPM with rpmbuild.", "spec", spec)
	return stage(ctx, r.runner, r.opts.ResultDir, func(tmp string) *exec.Cmd {
		return r.command("-br", spec,
			"_sourcedir "+r.opts.SourcePath(),
			"_srcrpmdir "+tmp,
		)
	})
}

// BuildRPM runs rpmbuild -bb. The argument is the spec file: rpmbuild
// builds binaries from the spec and the source directory, not from a source
// package.
func (r *Rpmbuild) BuildRPM(ctx context.Context, spec string) ([]string, error) {
	ctxlog.FromContext(ctx).Info("Building RPMs with rpmbuild.", "spec", spec)
	return stage(ctx, r.runner, r.opts.ResultDir, func(tmp string) *exec.Cmd {
		return r.command("-bb", spec,
			"_sourcedir "+r.opts.SourcePath(),
			"_rpmdir "+tmp,
		)
	})
}

// Build runs rpmbuild -ba, producing source and binary packages in one pass.
func (r *Rpmbuild) Build(ctx context.Context, spec string) ([]string, error) {
	ctxlog.FromContext(ctx).Info("Building RPMs with rpmbuild.", "spec", spec)
	return stage(ctx, r.runner, r.opts.ResultDir, func(tmp string) *exec.Cmd {
		return r.command("-ba", spec,
			"_sourcedir "+r.opts.SourcePath(),
			"_srcrpmdir "+tmp,
			"_rpmdir "+tmp,
		)
	})
}
