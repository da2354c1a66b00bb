package builder

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/specialistvlad/anda/internal/ctxlog"
	"github.com/specialistvlad/anda/internal/manifest"
)

// VersionLabel is attached to every image built by anda.
const VersionLabel = "dev.anda.version"

// buildImages builds or imports every image of a docker/podman section with
// the engine named by kind. The recorded artifacts are image references.
func (b *Builder) buildImages(ctx context.Context, project string, kind PackageKind, d *manifest.Docker) error {
	tags := make([]string, 0, len(d.Images))
	for tag := range d.Images {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		img := d.Images[tag]
		refs, cmd := b.imageCommand(string(kind), tag, img)
		ctxlog.FromContext(ctx).Info("Building image.", "engine", kind, "tag", refs[0])
		if err := b.runner.Run(ctx, cmd); err != nil {
			return fmt.Errorf("image %s: %w", tag, err)
		}
		for _, ref := range refs {
			b.store.Add(project, ref, kind)
		}
	}
	return nil
}

// imageCommand returns the references an image entry produces and the
// engine command producing them.
func (b *Builder) imageCommand(engine, tag string, img *manifest.DockerImage) ([]string, *exec.Cmd) {
	version := img.Version
	if version == "" {
		version = "latest"
	}
	refs := []string{tag + ":" + version}
	if img.TagLatest && version != "latest" {
		refs = append(refs, tag+":latest")
	}

	if img.Import != "" {
		return refs[:1], exec.Command(engine, "import", b.resolve(img.Import), refs[0])
	}

	buildCtx := img.Context
	if buildCtx == "" {
		buildCtx = "."
	}
	// Remote contexts such as git URLs are passed through.
	if !strings.Contains(buildCtx, "://") {
		buildCtx = b.resolve(buildCtx)
	}
	args := []string{"build", buildCtx, "-f", b.resolve(img.Dockerfile)}
	for _, ref := range refs {
		args = append(args, "-t", ref)
	}
	args = append(args, "--label", VersionLabel+"="+Version)
	cmd := exec.Command(engine, args...)
	cmd.Env = append(cmd.Environ(), "DOCKER_BUILDKIT=1")
	return refs, cmd
}
