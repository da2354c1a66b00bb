package script

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/specialistvlad/anda/internal/proc"
	"github.com/specialistvlad/anda/internal/rpm"
	"github.com/specialistvlad/anda/internal/specedit"
	"github.com/specialistvlad/anda/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, name, src string) string {
	t.Helper()
	dir := testutil.WriteFiles(t, map[string]string{name: src})
	return filepath.Join(dir, name)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Embedded, KindOf("pkg/update.star"))
	assert.Equal(t, Shell, KindOf("pkg/pre.sh"))
	assert.Equal(t, Shell, KindOf("pkg/pre"))
}

func TestShellHook_RunsThroughRunner(t *testing.T) {
	runner := &testutil.FakeRunner{}
	rt := NewRuntime(runner)

	require.NoError(t, rt.NewHook("scripts/pre.sh").Run(context.Background(), nil))

	assert.Equal(t, [][]string{{"sh", "-c", "scripts/pre.sh"}}, runner.Commands())
}

func TestEmbeddedHook_ReadsBackBindings(t *testing.T) {
	// Arrange
	path := writeScript(t, "rpm_pre.star", `
opts["macros"]["vendor"] = "anda"
opts["with"].append("docs")
opts["no_mirror"] = True
rpm_builder = "rpmbuild"
print("configured", script_path)
`)
	opts := rpm.NewOptions("out")
	opts.DefMacro("dist", ".fc40")
	builder := rpm.BuilderMock
	rt := NewRuntime(&testutil.FakeRunner{})

	// Act
	err := rt.NewHook(path).Run(context.Background(), Bindings{
		"opts":        opts,
		"rpm_builder": &builder,
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, rpm.BuilderRpmbuild, builder)
	assert.Equal(t, []string{"dist", "vendor"}, opts.Macros.Keys())
	assert.Equal(t, []string{"docs"}, opts.With)
	assert.True(t, opts.NoMirror)
	assert.Equal(t, "out", opts.ResultDir)
}

func TestEmbeddedHook_FailureLeavesBindingsUntouched(t *testing.T) {
	path := writeScript(t, "pre.star", `
rpm_builder = "rpmbuild"
fail("nope")
`)
	builder := rpm.BuilderMock
	rt := NewRuntime(&testutil.FakeRunner{})

	err := rt.NewHook(path).Run(context.Background(), Bindings{"rpm_builder": &builder})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
	assert.Equal(t, rpm.BuilderMock, builder)
}

func TestEmbeddedHook_UpdatesSpec(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"hello.spec": "Version: 1.0\nRelease: 2%{?dist}\nSource0: old.tar.gz\n",
		"update.star": `
ver = find("tag_name\": \"v([\\d.]+)", '{"tag_name": "v1.2"}', 1)
rpm.version(ver)
rpm.source(0, "hello-%s.tar.gz" % ver)
rpm.f = rpm.f + "# " + labels["branch"] + "\n"
`,
	})
	spec, err := specedit.Open(context.Background(), "hello", filepath.Join(dir, "hello.spec"))
	require.NoError(t, err)
	rt := NewRuntime(&testutil.FakeRunner{})

	err = rt.NewHook(filepath.Join(dir, "update.star")).Run(context.Background(), Bindings{
		"rpm":    spec,
		"labels": map[string]string{"branch": "f40"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Version: 1.2\nRelease: 1%{?dist}\nSource0: hello-1.2.tar.gz\n# f40\n", spec.Text())
	assert.True(t, spec.Changed())
}

func TestBuiltins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name": "hello", "versions": [1, 2]}`))
	}))
	defer srv.Close()
	t.Setenv("ANDA_SCRIPT_TEST", "yes")

	path := writeScript(t, "check.star", `
doc = json(get(url))
result["name"] = doc["name"]
result["count"] = str(len(doc["versions"]))
result["env"] = env("ANDA_SCRIPT_TEST")
result["missing"] = str(env("ANDA_SCRIPT_MISSING"))
result["sub"] = sub("v(\\d+)", "$1", "v1 v2")
result["tmpl"] = template("on ${env.ANDA_SCRIPT_TEST}")
`)
	result := map[string]string{}
	rt := NewRuntime(&testutil.FakeRunner{})

	err := rt.NewHook(path).Run(context.Background(), Bindings{
		"url":    srv.URL,
		"result": &result,
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"name":    "hello",
		"count":   "2",
		"env":     "yes",
		"missing": "None",
		"sub":     "1 2",
		"tmpl":    "on yes",
	}, result)
}

func TestRegistryBuiltins(t *testing.T) {
	var auth string
	mux := http.NewServeMux()
	reply := func(pattern, body string) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/repos/") {
				auth = r.Header.Get("Authorization")
			}
			_, _ = w.Write([]byte(body))
		})
	}
	reply("/repos/o/r/releases/latest", `{"tag_name": "v1.2.0"}`)
	reply("/repos/o/r/tags", `[{"name": "v1.3.0"}, {"name": "v1.2.0"}]`)
	reply("/repos/o/r/commits/HEAD", `{"sha": "abc123"}`)
	reply("/api/v4/projects/42/releases/", `[{"tag_name": "2.0"}]`)
	reply("/api/v4/projects/42/repository/tags", `[{"name": "2.1"}]`)
	reply("/api/v4/projects/42/repository/branches/main", `{"commit": {"id": "def456"}}`)
	reply("/pypi/requests/json", `{"info": {"version": "2.31.0"}}`)
	reply("/api/v1/crates/serde", `{"crate": {"max_stable_version": "1.0.1", "max_version": "1.1.0-rc", "newest_version": "1.1.0-rc"}}`)
	reply("/left-pad/latest", `{"version": "1.3.0"}`)
	reply("/mirror/pypi/stale/json", `{"info": {}}`)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	t.Setenv("GITHUB_TOKEN", "secret")

	path := writeScript(t, "update.star", `
result["gh"] = gh("o/r")
result["gh_tag"] = gh_tag("o/r")
result["gh_commit"] = gh_commit("o/r")
result["gitlab"] = gitlab(host, "42")
result["gitlab_tag"] = gitlab_tag(host, "42")
result["gitlab_commit"] = gitlab_commit(host, "42", "main")
result["pypi"] = pypi("requests")
result["crates"] = crates("serde")
result["crates_max"] = crates_max("serde")
result["crates_newest"] = crates_newest("serde")
result["npm"] = npm("left-pad")
result["get_json"] = get_json(base + "/repos/o/r/commits/HEAD")["sha"]
result["date"] = str(len(date()))
`)
	result := map[string]string{}
	rt := NewRuntime(&testutil.FakeRunner{})
	rt.endpoints = Endpoints{GitHub: srv.URL, GitLabScheme: "http", PyPI: srv.URL, Crates: srv.URL, NPM: srv.URL}

	err := rt.NewHook(path).Run(context.Background(), Bindings{
		"host":   strings.TrimPrefix(srv.URL, "http://"),
		"base":   srv.URL,
		"result": &result,
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"gh":            "v1.2.0",
		"gh_tag":        "v1.3.0",
		"gh_commit":     "abc123",
		"gitlab":        "2.0",
		"gitlab_tag":    "2.1",
		"gitlab_commit": "def456",
		"pypi":          "2.31.0",
		"crates":        "1.0.1",
		"crates_max":    "1.1.0-rc",
		"crates_newest": "1.1.0-rc",
		"npm":           "1.3.0",
		"get_json":      "abc123",
		"date":          "8",
	}, result)
	assert.Equal(t, "Bearer secret", auth)

	rt.endpoints.PyPI = srv.URL + "/mirror"
	bad := writeScript(t, "bad.star", `pypi("stale")`)
	err = rt.NewHook(bad).Run(context.Background(), nil)
	assert.ErrorContains(t, err, "no json[info][version] in response")
}

func TestBuiltinSh_PropagatesFailure(t *testing.T) {
	failure := errors.New("boom")
	runner := &testutil.FakeRunner{OnRun: func(*exec.Cmd) error { return failure }}
	path := writeScript(t, "post.star", `sh("createrepo_c .")`)

	err := NewRuntime(runner).NewHook(path).Run(context.Background(), nil)

	require.Error(t, err)
	assert.Equal(t, [][]string{{"sh", "-c", "createrepo_c ."}}, runner.Commands())
}

func TestLoad_ResolvesNextToScript(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"lib.star":  "def double(x):\n    return x * 2\n",
		"main.star": "load(\"lib.star\", \"double\")\nout = double(\"ab\")\n",
	})
	out := ""

	err := NewRuntime(&testutil.FakeRunner{}).NewHook(filepath.Join(dir, "main.star")).Run(context.Background(), Bindings{"out": &out})

	require.NoError(t, err)
	assert.Equal(t, "abab", out)
}

func TestEmbeddedHook_Cancelled(t *testing.T) {
	path := writeScript(t, "spin.star", `
def spin():
    n = 0
    while True:
        n += 1
spin()
`)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := NewRuntime(&testutil.FakeRunner{}).NewHook(path).Run(ctx, nil)

	assert.ErrorIs(t, err, proc.ErrCancelled)
}

func TestEmbeddedHook_MissingFile(t *testing.T) {
	err := NewRuntime(&testutil.FakeRunner{}).NewHook(filepath.Join(t.TempDir(), "absent.star")).Run(context.Background(), nil)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
