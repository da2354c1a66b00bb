package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAliases_StripSuffix(t *testing.T) {
	m := New()
	m.Config.StripSuffix = "-bin"
	m.Projects["foo-bin"] = &Project{}
	m.Projects["bar"] = &Project{}

	GenerateAliases(m)

	require.Equal(t, []string{"foo"}, m.Projects["foo-bin"].Alias)
	require.Empty(t, m.Projects["bar"].Alias)

	byAlias, ok := m.GetProject("foo")
	require.True(t, ok)
	byName, ok := m.GetProject("foo-bin")
	require.True(t, ok)
	require.Same(t, byName, byAlias)
}

func TestGenerateAliases_Idempotent(t *testing.T) {
	m := New()
	m.Config.StripPrefix = "prefix-"
	m.Config.StripSuffix = "-nightly"
	m.Projects["prefix-foo-nightly"] = &Project{Alias: []string{"custom"}}

	GenerateAliases(m)
	GenerateAliases(m)

	require.Equal(t, []string{"custom", "foo"}, m.Projects["prefix-foo-nightly"].Alias)
}

func TestLookup_ReturnsCanonicalName(t *testing.T) {
	m := New()
	m.Projects["rust-foo"] = &Project{Alias: []string{"foo"}}

	name, p, ok := m.Lookup("foo")
	require.True(t, ok)
	require.Equal(t, "rust-foo", name)
	require.Same(t, m.Projects["rust-foo"], p)

	_, _, ok = m.Lookup("missing")
	require.False(t, ok)
}

func TestPrefix_RewritesNamesAndPaths(t *testing.T) {
	nested := New()
	nested.Projects["x"] = &Project{
		Rpm:     &RpmBuild{Spec: "s.spec", Sources: "src"},
		Scripts: []string{"gen.star"},
	}

	out := Prefix(nested, "d", func(string) bool { return false })

	require.Len(t, out.Projects, 1)
	p, ok := out.Projects["d/x"]
	require.True(t, ok)
	assert.Equal(t, "d/s.spec", p.Rpm.Spec)
	assert.Equal(t, "d/src", p.Rpm.Sources)
	assert.Equal(t, []string{"d/gen.star"}, p.Scripts)
	assert.Empty(t, p.PreScript)
	assert.Empty(t, p.Rpm.PreScript)

	// The input is left untouched.
	assert.Equal(t, "s.spec", nested.Projects["x"].Rpm.Spec)
}

func TestPrefix_DefaultsOnlyWhenPresent(t *testing.T) {
	present := map[string]bool{
		"pkg/rpm_pre.star": true,
		"pkg/update.star":  true,
		"pkg":              true,
	}
	nested := New()
	nested.Projects["x"] = &Project{
		Rpm:        &RpmBuild{Spec: "x.spec"},
		PostScript: EmptyPath,
	}

	out := Prefix(nested, "pkg", func(p string) bool { return present[p] })
	p := out.Projects["pkg/x"]

	assert.Equal(t, "pkg/rpm_pre.star", p.Rpm.PreScript)
	assert.Empty(t, p.Rpm.PostScript)
	assert.Equal(t, "pkg", p.Rpm.Sources)
	assert.Equal(t, "pkg/update.star", p.Update)
	assert.Empty(t, p.PreScript)
	// Explicitly empty attributes take the default even if it is missing.
	assert.Equal(t, "pkg/post.star", p.PostScript)
}

func TestMerge_SameNameInDifferentDirectories(t *testing.T) {
	root := New()
	root.Projects["anda"] = &Project{}

	for _, dir := range []string{"a", "b"} {
		nested := New()
		nested.Projects["core"] = &Project{Rpm: &RpmBuild{Spec: "core.spec"}}
		assert.Empty(t, root.Merge(Prefix(nested, dir, func(string) bool { return false }), nil))
	}

	require.Equal(t, []string{"a/core", "anda", "b/core"}, root.Names())
	assert.Equal(t, "a/core.spec", root.Projects["a/core"].Rpm.Spec)
	assert.Equal(t, "b/core.spec", root.Projects["b/core"].Rpm.Spec)
}

func TestMerge_KeptNamesAreNotReplaced(t *testing.T) {
	root := New()
	root.Projects["a/core"] = &Project{Scripts: []string{"root.sh"}}
	root.Projects["a/other"] = &Project{Scripts: []string{"first.sh"}}
	keep := map[string]bool{"a/core": true}

	nested := New()
	nested.Projects["a/core"] = &Project{Scripts: []string{"a/nested.sh"}}
	nested.Projects["a/other"] = &Project{Scripts: []string{"a/second.sh"}}

	skipped := root.Merge(nested, keep)
	assert.Equal(t, []string{"a/core"}, skipped)
	assert.Equal(t, []string{"root.sh"}, root.Projects["a/core"].Scripts)
	assert.Equal(t, []string{"a/second.sh"}, root.Projects["a/other"].Scripts)
}

func TestCheck_SpecFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	spec := filepath.Join(dir, "anda.spec")
	require.NoError(t, os.WriteFile(spec, []byte("Name: anda\n"), 0o644))

	m := New()
	m.Projects["anda"] = &Project{Rpm: &RpmBuild{Spec: spec, Mode: ModeStandard}}

	warnings, err := Check(m, nil)
	require.NoError(t, err)
	require.Empty(t, warnings)

	require.NoError(t, os.Remove(spec))
	_, err = Check(m, nil)
	require.Error(t, err)

	var multi *MultipleError
	require.True(t, errors.As(err, &multi))
	require.Len(t, multi.Errors, 1)
	var v *ViolationError
	require.True(t, errors.As(multi.Errors[0], &v))
	require.Equal(t, "anda", v.Project)
}

func TestCheck_AccumulatesViolations(t *testing.T) {
	m := New()
	m.Projects["img"] = &Project{Docker: &Docker{Images: map[string]*DockerImage{
		"ghcr.io/x/y": {Context: "."},
	}}}
	m.Projects["empty-podman"] = &Project{Podman: &Docker{}}
	m.Projects["dep"] = &Project{Scripts: []string{"a.star"}, Depends: []string{"ghost"}}
	m.Projects["crate"] = &Project{Rpm: &RpmBuild{Mode: ModeCargo}}
	m.Projects["nothing"] = &Project{}

	warnings, err := Check(m, func(string) bool { return true })

	require.Equal(t, []string{"project nothing declares no build manifest"}, warnings)
	var multi *MultipleError
	require.True(t, errors.As(err, &multi))

	got := make([]string, 0, len(multi.Errors))
	for _, e := range multi.Errors {
		got = append(got, e.Error())
	}
	want := []string{
		"project crate: rpm.package is required in cargo mode",
		"project dep: depends on unknown project ghost",
		"project empty-podman: podman section declares no images",
		"project img: docker image ghcr.io/x/y needs a dockerfile or an import",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("violations mismatch (-want +got):\n%s", diff)
	}
}

func TestCheck_NoBuildIsOnlyAWarning(t *testing.T) {
	m := New()
	m.Projects["meta"] = &Project{Labels: map[string]string{"nightly": "1"}}

	warnings, err := Check(m, nil)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
}

func TestSelect_ProjectRegex(t *testing.T) {
	m := New()
	for _, n := range []string{"rust/foo", "python/bar", "rust/baz"} {
		m.Projects[n] = &Project{}
	}

	all, err := Select(m)
	require.NoError(t, err)
	require.Len(t, all, 3)

	m.Config.ProjectRegex = "^rust/"
	got, err := Select(m)
	require.NoError(t, err)
	require.Equal(t, []string{"rust/baz", "rust/foo"}, got)

	m.Config.ProjectRegex = "("
	_, err = Select(m)
	var inv *InvalidManifestError
	require.ErrorAs(t, err, &inv)
}

func TestParseKV(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    map[string]string
		wantErr bool
	}{
		{name: "single", input: "foo=bar", want: map[string]string{"foo": "bar"}},
		{name: "first equals wins", input: "foo=bar=baz", want: map[string]string{"foo": "bar=baz"}},
		{name: "multiple", input: "foo=bar,baz=qux", want: map[string]string{"foo": "bar", "baz": "qux"}},
		{name: "blank items", input: "a=1,, ", want: map[string]string{"a": "1"}},
		{name: "missing equals", input: "a=1,b", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseKV(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestMatchFilters(t *testing.T) {
	filters, err := ParseFilters([]string{"a=1,b=2", "c=3"})
	require.NoError(t, err)
	excludes, err := ParseFilters([]string{"nightly=1"})
	require.NoError(t, err)

	assert.True(t, MatchFilters(map[string]string{"a": "1", "b": "2"}, filters, nil))
	assert.True(t, MatchFilters(map[string]string{"c": "3"}, filters, nil))
	assert.False(t, MatchFilters(map[string]string{"a": "1"}, filters, nil))
	assert.False(t, MatchFilters(map[string]string{"c": "3", "nightly": "1"}, filters, excludes))
	assert.True(t, MatchFilters(map[string]string{}, nil, excludes))
}

func TestOrderedMap_KeepsInsertionOrder(t *testing.T) {
	o := NewOrderedMap()
	o.Set("z", "1")
	o.Set("a", "2")
	o.Set("z", "3")
	o.Set("m", "4")
	o.Delete("a")

	require.Equal(t, []string{"z", "m"}, o.Keys())
	v, ok := o.Get("z")
	require.True(t, ok)
	require.Equal(t, "3", v)

	c := o.Clone()
	c.Set("new", "5")
	require.Equal(t, 2, o.Len())
}
