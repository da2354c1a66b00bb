package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/specialistvlad/anda/internal/ctxlog"
	"github.com/specialistvlad/anda/internal/manifest"
	"github.com/specialistvlad/anda/internal/proc"
	"github.com/specialistvlad/anda/internal/publish"
	"github.com/specialistvlad/anda/internal/script"
	"github.com/specialistvlad/anda/internal/vcs"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	config  *Config
	loader  manifest.Loader
	runner  proc.Runner
	scripts *script.Runtime

	changedFiles func(dir string) ([]string, error)
	uploader     func(ctx context.Context, opts publish.Options) (publish.Uploader, error)

	once     sync.Once
	manifest *manifest.Manifest
	loadErr  error
}

// Option customizes an App.
type Option func(*App)

// WithRunner replaces the process runner, e.g. with a recording fake.
func WithRunner(r proc.Runner) Option {
	return func(a *App) { a.runner = r }
}

// WithUploader replaces the S3 client used by Publish.
func WithUploader(u publish.Uploader) Option {
	return func(a *App) {
		a.uploader = func(context.Context, publish.Options) (publish.Uploader, error) { return u, nil }
	}
}

// NewApp is the constructor for the main application. Command output goes
// to outW and log records to logW.
func NewApp(outW, logW io.Writer, cfg *Config, loader manifest.Loader, opts ...Option) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")

	executor := proc.NewExecutor(outW, cfg.UsePTY)
	executor.Color = cfg.Color

	a := &App{
		outW:         outW,
		logger:       logger,
		config:       cfg,
		loader:       loader,
		runner:       executor,
		changedFiles: vcs.ChangedFiles,
		uploader: func(ctx context.Context, o publish.Options) (publish.Uploader, error) {
			return publish.NewClient(ctx, o)
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.scripts = script.NewRuntime(a.runner)
	return a
}

// Context returns ctx carrying the application logger.
func (a *App) Context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// Close releases resources held by the script runtime.
func (a *App) Close() {
	a.scripts.Close()
}

// Manifest loads the manifest on first use and returns the cached result
// afterwards.
func (a *App) Manifest(ctx context.Context) (*manifest.Manifest, error) {
	a.once.Do(func() {
		a.logger.Debug("Loading manifest.", "path", a.config.ManifestPath)
		a.manifest, a.loadErr = a.loader.Load(a.Context(ctx), a.config.ManifestPath)
		if a.loadErr == nil {
			a.logger.Debug("Manifest loaded.", "projects", len(a.manifest.Projects))
		}
	})
	return a.manifest, a.loadErr
}

func (a *App) manifestPath() (string, error) {
	path, err := filepath.Abs(a.config.ManifestPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve manifest path: %w", err)
	}
	return path, nil
}
