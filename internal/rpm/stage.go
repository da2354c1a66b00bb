package rpm

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/anda/internal/ctxlog"
	"github.com/specialistvlad/anda/internal/proc"
)

// Package file suffixes and the result subdirectories they are sorted into.
const (
	SourceSuffix = ".src.rpm"
	BinarySuffix = ".rpm"

	SourceDir = "rpm/srpm"
	BinaryDir = "rpm/rpms"
)

// stage runs the command produced by build against a fresh temporary
// directory and copies the packages found there into resultDir. The
// temporary directory is removed on every path.
func stage(ctx context.Context, runner proc.Runner, resultDir string, build func(tmp string) *exec.Cmd) ([]string, error) {
	tmp, err := os.MkdirTemp("", "anda-rpm-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := runner.Run(ctx, build(tmp)); err != nil {
		return nil, err
	}
	return collect(ctx, tmp, resultDir)
}

// collect walks dir and copies every package into its category below
// resultDir, returning the destination paths in walk order.
func collect(ctx context.Context, dir, resultDir string) ([]string, error) {
	logger := ctxlog.FromContext(ctx)
	var produced []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		var sub string
		switch {
		case strings.HasSuffix(name, SourceSuffix):
			sub = SourceDir
		case strings.HasSuffix(name, BinarySuffix):
			sub = BinaryDir
		default:
			return nil
		}
		dst := filepath.Join(resultDir, filepath.FromSlash(sub), name)
		if err := copyFile(path, dst); err != nil {
			return err
		}
		logger.Debug("Collected package.", "src", path, "dst", dst)
		produced = append(produced, dst)
		return nil
	})
	if err != nil {
		return produced, fmt.Errorf("failed to collect packages from %s: %w", dir, err)
	}
	return produced, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// BuildCargo builds a crate from the workspace in opts.Sources and packages
// it with cargo-generate-rpm.
func BuildCargo(ctx context.Context, runner proc.Runner, opts *Options, pkg string) ([]string, error) {
	ctxlog.FromContext(ctx).Info("Building RPM with cargo.", "package", pkg)
	build := exec.Command("cargo", "build", "--release", "--package", pkg)
	build.Dir = opts.Sources
	if err := runner.Run(ctx, build); err != nil {
		return nil, err
	}
	return stage(ctx, runner, opts.ResultDir, func(tmp string) *exec.Cmd {
		cmd := exec.Command("cargo", "generate-rpm", "--package", pkg, "--output", tmp)
		cmd.Dir = opts.Sources
		return cmd
	})
}
