package builder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/specialistvlad/anda/internal/ctxlog"
	"github.com/specialistvlad/anda/internal/manifest"
	"github.com/specialistvlad/anda/internal/rpm"
	"github.com/specialistvlad/anda/internal/script"
)

// buildRPM builds the rpm section of a project and refreshes the local
// repository metadata.
func (b *Builder) buildRPM(ctx context.Context, m *manifest.Manifest, name string, r *manifest.RpmBuild, flags RpmFlags) error {
	logger := ctxlog.FromContext(ctx)

	opts, err := b.rpmOptions(ctx, m, r, flags)
	if err != nil {
		return err
	}
	builder := flags.Builder
	if builder == "" {
		builder = rpm.BuilderMock
	}
	bindings := script.Bindings{"opts": opts, "rpm_builder": &builder}

	if r.PreScript != "" {
		if err := b.hook(r.PreScript).Run(ctx, bindings); err != nil {
			return fmt.Errorf("rpm pre-script: %w", err)
		}
	}

	repoDir := filepath.Join(b.targetDir, "rpm")
	fmt.Fprintf(b.out, "Building RPMs in %s\n", repoDir)

	var produced []string
	if r.EffectiveMode() == manifest.ModeCargo {
		produced, err = rpm.BuildCargo(ctx, b.runner, opts, r.Package)
	} else {
		var backend rpm.Backend
		backend, err = b.newBackend(builder, opts, b.runner)
		if err != nil {
			return err
		}
		produced, err = backend.Build(ctx, b.resolve(r.Spec))
	}
	for _, path := range produced {
		b.store.Add(name, path, KindRpm)
	}
	if err != nil {
		return err
	}

	if err := b.runner.Run(ctx, exec.Command("createrepo_c", "--quiet", "--update", repoDir)); err != nil {
		return fmt.Errorf("failed to update repository metadata: %w", err)
	}
	logger.Debug("Repository metadata updated.", "dir", repoDir)

	if r.PostScript != "" {
		if err := b.hook(r.PostScript).Run(ctx, bindings); err != nil {
			return fmt.Errorf("rpm post-script: %w", err)
		}
	}
	return nil
}

// rpmOptions assembles backend options from the rpm section, the global
// config and the command line, in that order.
func (b *Builder) rpmOptions(ctx context.Context, m *manifest.Manifest, r *manifest.RpmBuild, flags RpmFlags) (*rpm.Options, error) {
	logger := ctxlog.FromContext(ctx)
	opts := rpm.NewOptions(b.targetDir)

	if r.Sources != "" {
		opts.Sources = b.resolve(r.Sources)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		opts.Sources = cwd
	}

	opts.NoMirror = flags.NoMirrors
	opts.DefMacro("_disable_source_fetch", "0")
	opts.AddConfigOpt("external_buildrequires=True")
	opts.SCMEnable = r.EnableSCM
	opts.SCMOpts = keyValues(r.SCMOpts)
	opts.ConfigOpts = append(opts.ConfigOpts, keyValues(r.Config)...)
	opts.PluginOpts = keyValues(r.PluginOpts)
	opts.ExtraRepos = append(opts.ExtraRepos, r.ExtraRepos...)
	for _, k := range r.Macros.Keys() {
		v, _ := r.Macros.Get(k)
		opts.DefMacro(k, v)
	}
	opts.With = splitList(r.Opts["with"])
	opts.Without = splitList(r.Opts["without"])

	opts.MockConfig = firstNonEmpty(flags.MockConfig, r.MockConfig, m.Config.MockConfig)

	repoDir := filepath.Join(b.targetDir, "rpm")
	if info, err := os.Stat(filepath.Join(repoDir, "repodata")); err == nil && info.IsDir() {
		abs, err := filepath.Abs(repoDir)
		if err != nil {
			return nil, err
		}
		opts.AddRepo("file://" + abs)
	} else {
		logger.Debug("No local repository metadata found, skipping.", "dir", repoDir)
	}

	opts.Target = flags.Target
	for _, repo := range flags.Repos {
		opts.AddRepo(repo)
	}
	for _, def := range flags.Macros {
		k, v, err := rpm.ParseMacro(def)
		if err != nil {
			return nil, err
		}
		opts.DefMacro(k, v)
	}

	b.defineGitMacros(ctx, opts)
	return opts, nil
}

// defineGitMacros sets %autogitversion, %autogitcommit and %autogitdate from
// the repository containing the manifest.
func (b *Builder) defineGitMacros(ctx context.Context, opts *rpm.Options) {
	date := b.now().UTC().Format("20060102")
	version, commit := date, "unknown"
	if head, err := b.head(b.baseDir); err == nil {
		version = date + "." + head.Short(8)
		commit = head.Hash
	} else {
		ctxlog.FromContext(ctx).Debug("No git metadata available.", "error", err)
	}
	opts.DefMacro("autogitversion", version)
	opts.DefMacro("autogitcommit", commit)
	opts.DefMacro("autogitdate", date)
}

func keyValues(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+m[k])
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
