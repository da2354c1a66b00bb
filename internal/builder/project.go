package builder

import (
	"context"

	"github.com/specialistvlad/anda/internal/ctxlog"
	"github.com/specialistvlad/anda/internal/manifest"
	"github.com/specialistvlad/anda/internal/script"
)

// buildProject runs the lifecycle of one project. The canonical name travels
// with the project so errors and artifacts never need a reverse lookup.
func (b *Builder) buildProject(ctx context.Context, m *manifest.Manifest, name string, p *manifest.Project, req Request) error {
	ctx = ctxlog.With(ctx, "project", name)
	logger := ctxlog.FromContext(ctx)
	fail := func(phase string, err error) error {
		return &ProjectError{Project: name, Phase: phase, Err: err}
	}

	if err := ApplyEnv(p.Env); err != nil {
		return fail(PhasePreScript, err)
	}

	if p.PreScript != "" {
		if err := b.hook(p.PreScript).Run(ctx, nil); err != nil {
			return fail(PhasePreScript, err)
		}
	}

	if req.Package.wants(KindRpm) {
		if p.Rpm != nil {
			if err := b.buildRPM(ctx, m, name, p.Rpm, req.Rpm); err != nil {
				return fail(PhaseBuild, err)
			}
		} else if req.Package == KindRpm {
			logger.Warn("No RPM build defined for project.")
		}
	}

	if req.Package.wants(KindFlatpak) && p.Flatpak != nil {
		logger.Warn("Flatpak builds are not supported, skipping.", "manifest", p.Flatpak.Manifest)
	}

	for _, oci := range []struct {
		kind    PackageKind
		section *manifest.Docker
	}{
		{KindPodman, p.Podman},
		{KindDocker, p.Docker},
	} {
		if !req.Package.wants(oci.kind) {
			continue
		}
		if oci.section == nil {
			if req.Package == oci.kind {
				logger.Warn("No image build defined for project.", "engine", oci.kind)
			}
			continue
		}
		if err := b.buildImages(ctx, name, oci.kind, oci.section); err != nil {
			return fail(PhaseBuild, err)
		}
	}

	b.store.Describe(ctx)
	b.store.Summarize(ctx, b.out, name, b.color)

	if p.PostScript != "" {
		if err := b.hook(p.PostScript).Run(ctx, nil); err != nil {
			return fail(PhasePostScript, err)
		}
	}

	if req.Package.isAll() && len(p.Scripts) > 0 {
		logger.Info("Running build scripts.", "count", len(p.Scripts))
		for _, s := range p.Scripts {
			labels := copyLabels(p.Labels)
			if err := b.hook(s).Run(ctx, script.Bindings{"labels": labels}); err != nil {
				return fail(PhaseScripts, err)
			}
		}
	}
	return nil
}

func (b *Builder) hook(path string) *script.Hook {
	return b.scripts.NewHook(b.resolve(path))
}

func copyLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}
