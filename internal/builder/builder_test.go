package builder

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/anda/internal/dag"
	"github.com/specialistvlad/anda/internal/manifest"
	"github.com/specialistvlad/anda/internal/proc"
	"github.com/specialistvlad/anda/internal/rpm"
	"github.com/specialistvlad/anda/internal/script"
	"github.com/specialistvlad/anda/internal/testutil"
	"github.com/specialistvlad/anda/internal/vcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	builder rpm.Builder
	opts    *rpm.Options
	specs   []string
	err     error
}

func (f *fakeBackend) BuildSRPM(ctx context.Context, spec string) ([]string, error) {
	return f.Build(ctx, spec)
}

func (f *fakeBackend) BuildRPM(ctx context.Context, srpm string) ([]string, error) {
	return f.Build(ctx, srpm)
}

func (f *fakeBackend) Build(_ context.Context, spec string) ([]string, error) {
	f.specs = append(f.specs, spec)
	if f.err != nil {
		return nil, f.err
	}
	name := strings.TrimSuffix(filepath.Base(spec), ".spec")
	path := filepath.Join(f.opts.ResultDir, "rpm", "rpms", name+"-1.0-1.x86_64.rpm")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return []string{path}, os.WriteFile(path, []byte("not really an rpm"), 0o644)
}

type harness struct {
	dir     string
	out     *testutil.SafeBuffer
	runner  *testutil.FakeRunner
	backend *fakeBackend
	builder *Builder
}

func newHarness(t *testing.T, files map[string]string) *harness {
	t.Helper()
	t.Setenv(EnvTargetDir, "")
	t.Setenv(EnvConfigPath, "")
	dir := testutil.WriteFiles(t, files)
	h := &harness{
		dir:     dir,
		out:     &testutil.SafeBuffer{},
		runner:  &testutil.FakeRunner{},
		backend: &fakeBackend{},
	}
	h.builder = New(Options{
		TargetDir:    filepath.Join(dir, "anda-build"),
		ManifestPath: filepath.Join(dir, "anda.hcl"),
		Out:          h.out,
	}, h.runner, script.NewRuntime(h.runner))
	h.builder.now = func() time.Time { return time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC) }
	h.builder.head = func(string) (vcs.Commit, error) {
		return vcs.Commit{Hash: "0123456789abcdef0123456789abcdef01234567"}, nil
	}
	h.builder.newBackend = func(b rpm.Builder, opts *rpm.Options, _ proc.Runner) (rpm.Backend, error) {
		h.backend.builder = b
		h.backend.opts = opts
		return h.backend, nil
	}
	return h
}

func rpmProject(spec string) *manifest.Project {
	return &manifest.Project{Rpm: &manifest.RpmBuild{Spec: spec}}
}

func TestBuild_RpmLifecycle(t *testing.T) {
	// Arrange
	t.Setenv("ANDA_BUILDER_TEST_ENV", "")
	h := newHarness(t, map[string]string{
		"hello/hello.spec": "Name: hello\n",
		"hello/rpm_pre.star": `
opts["macros"]["from_script"] = "1"
rpm_builder = "rpmbuild"
`,
	})
	m := manifest.New()
	m.Config.MockConfig = "global-cfg"
	macros := manifest.NewOrderedMap()
	macros.Set("zeta", "1")
	macros.Set("alpha", "2")
	m.Projects["hello"] = &manifest.Project{
		PreScript:  "hello/pre.sh",
		PostScript: "hello/post.sh",
		Env:        map[string]string{"ANDA_BUILDER_TEST_ENV": "set"},
		Rpm: &manifest.RpmBuild{
			Spec:       "hello/hello.spec",
			PreScript:  "hello/rpm_pre.star",
			MockConfig: "project-cfg",
			Macros:     macros,
			Config:     map[string]string{"root": "x"},
			Opts:       map[string]string{"with": "docs, tests", "without": "check"},
		},
	}

	// Act
	err := h.builder.Build(context.Background(), m, Request{Project: "hello", Package: KindAll})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "set", os.Getenv("ANDA_BUILDER_TEST_ENV"))
	assert.Equal(t, filepath.Join(h.dir, "anda-build"), os.Getenv(EnvTargetDir))
	assert.Equal(t, filepath.Join(h.dir, "anda.hcl"), os.Getenv(EnvConfigPath))

	assert.Equal(t, []string{filepath.Join(h.dir, "hello", "hello.spec")}, h.backend.specs)
	assert.Equal(t, rpm.BuilderRpmbuild, h.backend.builder)

	opts := h.backend.opts
	assert.Equal(t, "project-cfg", opts.MockConfig)
	assert.Equal(t, []string{"docs", "tests"}, opts.With)
	assert.Equal(t, []string{"check"}, opts.Without)
	assert.Equal(t, []string{"external_buildrequires=True", "root=x"}, opts.ConfigOpts)
	assert.Equal(t, []string{
		"_disable_source_fetch", "zeta", "alpha",
		"autogitversion", "autogitcommit", "autogitdate", "from_script",
	}, opts.Macros.Keys())
	v, _ := opts.Macros.Get("autogitversion")
	assert.Equal(t, "20240309.01234567", v)

	repoDir := filepath.Join(h.dir, "anda-build", "rpm")
	want := [][]string{
		{"sh", "-c", filepath.Join(h.dir, "hello", "pre.sh")},
		{"createrepo_c", "--quiet", "--update", repoDir},
		{"sh", "-c", filepath.Join(h.dir, "hello", "post.sh")},
	}
	if diff := cmp.Diff(want, h.runner.Commands()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}

	rpmPath := filepath.Join(repoDir, "rpms", "hello-1.0-1.x86_64.rpm")
	assert.Contains(t, h.out.String(), "Built RPM: "+rpmPath+"\n")
	assert.FileExists(t, filepath.Join(h.dir, "anda-build", ArtifactsFile))

	arts := h.builder.Artifacts()
	require.Len(t, arts, 1)
	assert.Equal(t, "hello", arts[0].Project)
	assert.NotEmpty(t, arts[0].Blake3)
}

func TestBuild_FailureStopsTheRun(t *testing.T) {
	h := newHarness(t, map[string]string{"a.spec": "", "b.spec": ""})
	failure := &proc.ExitError{Cmdline: "mock --buildsrpm", Status: 1, Program: "mock"}
	h.backend.err = failure
	m := manifest.New()
	m.Projects["a"] = rpmProject("a.spec")
	m.Projects["b"] = rpmProject("b.spec")

	err := h.builder.Build(context.Background(), m, Request{All: true, Package: KindRpm})

	var perr *ProjectError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "a", perr.Project)
	assert.Equal(t, PhaseBuild, perr.Phase)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, "project a: build: command failed with status 1: mock --buildsrpm", err.Error())
	assert.Len(t, h.backend.specs, 1)
	assert.Empty(t, h.runner.Commands())
}

func TestBuild_PreScriptFailureNamesPhase(t *testing.T) {
	h := newHarness(t, nil)
	h.runner.OnRun = func(*exec.Cmd) error { return errors.New("exit 1") }
	m := manifest.New()
	m.Projects["a"] = &manifest.Project{PreScript: "pre.sh", Rpm: &manifest.RpmBuild{Spec: "a.spec"}}

	err := h.builder.Build(context.Background(), m, Request{Project: "a"})

	var perr *ProjectError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, PhasePreScript, perr.Phase)
	assert.Empty(t, h.backend.specs)
}

func TestRpmOptions_RepositoriesAndCommandLine(t *testing.T) {
	h := newHarness(t, map[string]string{"anda-build/rpm/repodata/repomd.xml": ""})
	m := manifest.New()
	r := &manifest.RpmBuild{Spec: "a.spec", ExtraRepos: []string{"https://repo.example.com"}, Sources: "src"}

	opts, err := h.builder.rpmOptions(context.Background(), m, r, RpmFlags{
		MockConfig: "cli-cfg",
		Repos:      []string{"https://cli.example.com"},
		Macros:     []string{"dist .fc40"},
		Target:     "aarch64",
		NoMirrors:  true,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://repo.example.com",
		"file://" + filepath.Join(h.dir, "anda-build", "rpm"),
		"https://cli.example.com",
	}, opts.ExtraRepos)
	assert.Equal(t, "cli-cfg", opts.MockConfig)
	assert.Equal(t, "aarch64", opts.Target)
	assert.True(t, opts.NoMirror)
	assert.Equal(t, filepath.Join(h.dir, "src"), opts.Sources)
	dist, ok := opts.Macros.Get("dist")
	assert.True(t, ok)
	assert.Equal(t, ".fc40", dist)

	_, err = h.builder.rpmOptions(context.Background(), m, r, RpmFlags{Macros: []string{"broken"}})
	assert.Error(t, err)
}

func TestRpmOptions_GitMacrosWithoutRepository(t *testing.T) {
	h := newHarness(t, nil)
	h.builder.head = func(string) (vcs.Commit, error) { return vcs.Commit{}, vcs.ErrNoRepository }
	m := manifest.New()
	m.Config.MockConfig = "global-cfg"

	opts, err := h.builder.rpmOptions(context.Background(), m, &manifest.RpmBuild{Spec: "a.spec"}, RpmFlags{})

	require.NoError(t, err)
	get := func(k string) string { v, _ := opts.Macros.Get(k); return v }
	assert.Equal(t, "20240309", get("autogitversion"))
	assert.Equal(t, "unknown", get("autogitcommit"))
	assert.Equal(t, "20240309", get("autogitdate"))
	assert.Equal(t, "global-cfg", opts.MockConfig)
	assert.NotEmpty(t, opts.Sources)
}

func TestBuild_ContainerImages(t *testing.T) {
	h := newHarness(t, nil)
	m := manifest.New()
	m.Projects["web"] = &manifest.Project{
		Docker: &manifest.Docker{Images: map[string]*manifest.DockerImage{
			"ghcr.io/x/web": {Dockerfile: "web/Containerfile", Context: "web", Version: "1.2", TagLatest: true},
		}},
		Podman: &manifest.Docker{Images: map[string]*manifest.DockerImage{
			"ghcr.io/x/base": {Import: "base.tar"},
		}},
	}

	err := h.builder.Build(context.Background(), m, Request{Project: "web"})

	require.NoError(t, err)
	want := [][]string{
		{"podman", "import", filepath.Join(h.dir, "base.tar"), "ghcr.io/x/base:latest"},
		{
			"docker", "build", filepath.Join(h.dir, "web"),
			"-f", filepath.Join(h.dir, "web", "Containerfile"),
			"-t", "ghcr.io/x/web:1.2", "-t", "ghcr.io/x/web:latest",
			"--label", VersionLabel + "=" + Version,
		},
	}
	if diff := cmp.Diff(want, h.runner.Commands()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, h.out.String(), "Built Docker image: ghcr.io/x/web:1.2\n")
	assert.Contains(t, h.out.String(), "Built Docker image: ghcr.io/x/web:latest\n")
	assert.Contains(t, h.out.String(), "Built Podman image: ghcr.io/x/base:latest\n")
}

func TestBuild_ScriptsGetLabelsOnlyForAllKinds(t *testing.T) {
	h := newHarness(t, map[string]string{
		"gen.star": `sh("echo " + labels["branch"])`,
	})
	m := manifest.New()
	m.Projects["gen"] = &manifest.Project{
		Scripts: []string{"gen.star"},
		Labels:  map[string]string{"branch": "f40"},
	}

	require.NoError(t, h.builder.Build(context.Background(), m, Request{Project: "gen", Package: KindRpm}))
	assert.Empty(t, h.runner.Commands())

	require.NoError(t, h.builder.Build(context.Background(), m, Request{Project: "gen", Package: KindAll}))
	assert.Equal(t, [][]string{{"sh", "-c", "echo f40"}}, h.runner.Commands())
}

func TestBuild_ProjectSelection(t *testing.T) {
	h := newHarness(t, nil)
	m := manifest.New()
	m.Projects["foo-bin"] = &manifest.Project{Alias: []string{"foo"}}

	assert.NoError(t, h.builder.Build(context.Background(), m, Request{Project: "foo"}))
	assert.Contains(t, h.out.String(), "Building project: foo-bin\n")

	err := h.builder.Build(context.Background(), m, Request{Project: "nope"})
	assert.EqualError(t, err, "project not found: nope")

	err = h.builder.Build(context.Background(), m, Request{})
	assert.EqualError(t, err, "no project specified")
}

func TestParsePackageKind(t *testing.T) {
	k, err := ParsePackageKind("")
	require.NoError(t, err)
	assert.Equal(t, KindAll, k)

	k, err = ParsePackageKind("Podman")
	require.NoError(t, err)
	assert.Equal(t, KindPodman, k)

	_, err = ParsePackageKind("deb")
	assert.Error(t, err)
}

func TestBuild_AllFollowsDependencies(t *testing.T) {
	h := newHarness(t, nil)
	m := manifest.New()
	m.Projects["app"] = &manifest.Project{Depends: []string{"lib"}}
	m.Projects["lib-core"] = &manifest.Project{Alias: []string{"lib"}}
	m.Projects["extra"] = &manifest.Project{}

	require.NoError(t, h.builder.Build(context.Background(), m, Request{All: true}))
	out := h.out.String()
	assert.Less(t, strings.Index(out, "Building project: lib-core\n"), strings.Index(out, "Building project: app\n"))
	assert.Less(t, strings.Index(out, "Building project: extra\n"), strings.Index(out, "Building project: lib-core\n"))
}

func TestBuild_AllRejectsDependencyCycle(t *testing.T) {
	h := newHarness(t, nil)
	m := manifest.New()
	m.Projects["a"] = &manifest.Project{Depends: []string{"b"}}
	m.Projects["b"] = &manifest.Project{Depends: []string{"a"}}

	err := h.builder.Build(context.Background(), m, Request{All: true})
	require.Error(t, err)
	var cycle *dag.CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "b"}, cycle.Nodes)
	assert.Empty(t, h.out.String())
}
