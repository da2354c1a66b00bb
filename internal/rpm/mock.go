package rpm

import (
	"context"
	"fmt"
	"os/exec"
	"slices"
	"strings"

	"github.com/specialistvlad/anda/internal/ctxlog"
	"github.com/specialistvlad/anda/internal/proc"
)

// Mock builds packages in a chroot managed by mock(1).
type Mock struct {
	opts   *Options
	runner proc.Runner
}

func (m *Mock) args() []string {
	o := m.opts
	var args []string
	if o.MockConfig != "" {
		args = append(args, "-r", o.MockConfig)
	}
	args = append(args, "--verbose")
	if o.Target != "" {
		args = append(args, "--target", o.Target)
	}
	for _, repo := range o.ExtraRepos {
		args = append(args, "-a", repo)
	}
	args = append(args, o.withArgs()...)
	args = append(args, o.macroArgs()...)
	if o.NoMirror {
		args = append(args, "--config-opts", "mirrored=False")
	}
	for _, opt := range o.ConfigOpts {
		args = append(args, "--config-opts", opt)
	}
	if o.SCMEnable {
		args = append(args, "--scm-enable")
	}
	for _, opt := range o.SCMOpts {
		args = append(args, "--scm-option", opt)
	}
	for _, opt := range o.PluginOpts {
		args = append(args, "--plugin-option", opt)
	}
	return args
}

// BuildSRPM runs mock --buildsrpm.
func (m *Mock) BuildSRPM(ctx context.Context, spec string) ([]string, error) {
	ctxlog.FromContext(ctx).Info("Building source RPM with mock.", "spec", spec)
	return stage(ctx, m.runner, m.opts.ResultDir, func(tmp string) *exec.Cmd {
		args := m.args()
		args = append(args, "--buildsrpm", "--spec", spec, "--sources", m.opts.SourcePath())
		args = append(args, "--resultdir", tmp, "--enable-network")
		return exec.Command("mock", args...)
	})
}

// BuildRPM runs mock --rebuild on srpm.
func (m *Mock) BuildRPM(ctx context.Context, srpm string) ([]string, error) {
	ctxlog.FromContext(ctx).Info("Rebuilding RPMs with mock.", "srpm", srpm)
	return stage(ctx, m.runner, m.opts.ResultDir, func(tmp string) *exec.Cmd {
		args := m.args()
		args = append(args, "--rebuild", srpm, "--enable-network", "--resultdir", tmp)
		return exec.Command("mock", args...)
	})
}

// Build builds the source package, then rebuilds the first source package
// it produced.
func (m *Mock) Build(ctx context.Context, spec string) ([]string, error) {
	srpms, err := m.BuildSRPM(ctx, spec)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(srpms, func(p string) bool { return strings.HasSuffix(p, SourceSuffix) })
	if i < 0 {
		return srpms, fmt.Errorf("mock produced no source package for %s", spec)
	}
	rpms, err := m.BuildRPM(ctx, srpms[i])
	if err != nil {
		return srpms, err
	}
	out := srpms
	for _, p := range rpms {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out, nil
}
