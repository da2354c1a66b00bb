package script

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"go.starlark.net/starlark"
)

// Endpoints are the base URLs of the upstream services queried by update
// scripts.
type Endpoints struct {
	GitHub       string
	// GitLabScheme is prepended to the domain given to the gitlab helpers.
	GitLabScheme string
	PyPI         string
	Crates       string
	NPM          string
}

// DefaultEndpoints returns the public service URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		GitHub:       "https://api.github.com",
		GitLabScheme: "https",
		PyPI:         "https://pypi.org",
		Crates:       "https://crates.io",
		NPM:          "https://registry.npmjs.org",
	}
}

const defaultGitLab = "gitlab.com"

// registryBuiltins returns the helpers that look up the latest upstream
// version of a project:
//
//	gh(repo), gh_tag(repo), gh_commit(repo)
//	gitlab([domain,] id), gitlab_tag([domain,] id), gitlab_commit([domain,] id, branch)
//	pypi(name), crates(name), crates_max(name), crates_newest(name), npm(name)
//	get_json(url)
//
// GitHub requests carry GITHUB_TOKEN as a bearer token when it is set.
func (rt *Runtime) registryBuiltins(ctx context.Context) map[string]builtinFunc {
	e := rt.endpoints

	github := func(suffix string, path ...any) builtinFunc {
		return rt.query(ctx, 1, 1, func(a []string) string {
			return e.GitHub + "/repos/" + a[0] + suffix
		}, githubHeader, path...)
	}
	gitlab := func(suffix string, path ...any) builtinFunc {
		return rt.query(ctx, 1, 2, func(a []string) string {
			domain, id := defaultGitLab, a[0]
			if a[1] != "" {
				domain, id = a[0], a[1]
			}
			return e.GitLabScheme + "://" + domain + "/api/v4/projects/" + id + suffix
		}, nil, path...)
	}
	crate := func(field string) builtinFunc {
		return rt.query(ctx, 1, 1, func(a []string) string {
			return e.Crates + "/api/v1/crates/" + a[0]
		}, nil, "crate", field)
	}

	gitlabCommit := rt.query(ctx, 2, 3, func(a []string) string {
		domain, id, branch := defaultGitLab, a[0], a[1]
		if a[2] != "" {
			domain, id, branch = a[0], a[1], a[2]
		}
		return e.GitLabScheme + "://" + domain + "/api/v4/projects/" + id + "/repository/branches/" + branch
	}, nil, "commit", "id")
	pypi := rt.query(ctx, 1, 1, func(a []string) string {
		return e.PyPI + "/pypi/" + a[0] + "/json"
	}, nil, "info", "version")
	npm := rt.query(ctx, 1, 1, func(a []string) string {
		return e.NPM + "/" + a[0] + "/latest"
	}, nil, "version")
	getJSON := func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var url string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &url); err != nil {
			return nil, err
		}
		doc, err := rt.fetchJSON(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		return fromJSON(doc), nil
	}

	return map[string]builtinFunc{
		"gh":            github("/releases/latest", "tag_name"),
		"gh_tag":        github("/tags", 0, "name"),
		"gh_commit":     github("/commits/HEAD", "sha"),
		"gitlab":        gitlab("/releases/", 0, "tag_name"),
		"gitlab_tag":    gitlab("/repository/tags", 0, "name"),
		"gitlab_commit": gitlabCommit,
		"pypi":          pypi,
		"crates":        crate("max_stable_version"),
		"crates_max":    crate("max_version"),
		"crates_newest": crate("newest_version"),
		"npm":           npm,
		"get_json":      getJSON,
	}
}

// query builds a builtin taking between minArgs and maxArgs string arguments. It
// fetches the JSON document at url(args) and returns the string found at path,
// where string elements are object keys and int elements are array indexes.
// Omitted optional arguments are passed to url as "".
func (rt *Runtime) query(ctx context.Context, minArgs, maxArgs int, url func(args []string) string, header func() http.Header, path ...any) builtinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		vals := make([]string, maxArgs)
		ptrs := make([]any, maxArgs)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, minArgs, ptrs...); err != nil {
			return nil, err
		}
		target := url(vals)
		var h http.Header
		if header != nil {
			h = header()
		}
		doc, err := rt.fetchJSON(ctx, target, h)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		v, err := dig(doc, path)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", b.Name(), target, err)
		}
		return starlark.String(v), nil
	}
}

func (rt *Runtime) fetchJSON(ctx context.Context, url string, header http.Header) (any, error) {
	body, err := fetch(ctx, rt.client, url, header)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("invalid json from %s: %w", url, err)
	}
	return doc, nil
}

func githubHeader() http.Header {
	h := http.Header{"Accept": {"application/vnd.github+json"}}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// dig walks doc along path and returns the string at its end.
func dig(doc any, path []any) (string, error) {
	cur := doc
	for i, step := range path {
		var ok bool
		switch step := step.(type) {
		case string:
			var obj map[string]any
			if obj, ok = cur.(map[string]any); ok {
				cur, ok = obj[step]
			}
		case int:
			var arr []any
			if arr, ok = cur.([]any); ok && step < len(arr) {
				cur = arr[step]
			} else {
				ok = false
			}
		}
		if !ok {
			return "", fmt.Errorf("no %s in response", renderPath(path[:i+1]))
		}
	}
	s, ok := cur.(string)
	if !ok {
		return "", fmt.Errorf("%s is not a string", renderPath(path))
	}
	return s, nil
}

func renderPath(path []any) string {
	var b strings.Builder
	b.WriteString("json")
	for _, step := range path {
		fmt.Fprintf(&b, "[%v]", step)
	}
	return b.String()
}
