package script

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/specialistvlad/anda/internal/hcl_adapter"
	"github.com/specialistvlad/anda/internal/proc"
	"go.starlark.net/starlark"
)

type builtinFunc func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

// builtins returns the predeclared functions available to every script.
func (rt *Runtime) builtins(ctx context.Context) starlark.StringDict {
	fns := map[string]builtinFunc{
		"env":      builtinEnv,
		"find":     builtinFind,
		"sub":      builtinSub,
		"json":     builtinJSON,
		"template": builtinTemplate,
		"date":     builtinDate,
		"get": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var url string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &url); err != nil {
				return nil, err
			}
			body, err := fetch(ctx, rt.client, url, nil)
			if err != nil {
				return nil, err
			}
			return starlark.String(body), nil
		},
		"sh": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var cmd string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &cmd); err != nil {
				return nil, err
			}
			if err := rt.runner.Run(ctx, proc.ShellCommand(cmd)); err != nil {
				return nil, err
			}
			return starlark.None, nil
		},
	}

	for name, fn := range rt.registryBuiltins(ctx) {
		fns[name] = fn
	}

	out := make(starlark.StringDict, len(fns))
	for name, fn := range fns {
		out[name] = starlark.NewBuiltin(name, fn)
	}
	return out
}

// env(name) returns the variable's value or None.
func builtinEnv(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	if v, ok := os.LookupEnv(name); ok {
		return starlark.String(v), nil
	}
	return starlark.None, nil
}

// find(regex, text, group=0) returns the group of the first match.
func builtinFind(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, text string
	group := 0
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "regex", &pattern, "text", &text, "group?", &group); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("can't match regex %q", pattern)
	}
	if group < 0 || group >= len(m) {
		return nil, fmt.Errorf("regex %q has no group %d", pattern, group)
	}
	return starlark.String(m[group]), nil
}

// sub(regex, repl, text) replaces every match; repl may use $1 references.
func builtinSub(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, repl, text string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "regex", &pattern, "repl", &repl, "text", &text); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return starlark.String(re.ReplaceAllString(text, repl)), nil
}

// json(text) decodes a JSON document into Starlark values.
func builtinJSON(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &text); err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	return fromJSON(doc), nil
}

// date() returns the current UTC date as YYYYMMDD.
func builtinDate(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return starlark.String(time.Now().UTC().Format("20060102")), nil
}

// template(text) renders an HCL template against the environment, e.g.
// template("v${env.VERSION}").
func builtinTemplate(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &text); err != nil {
		return nil, err
	}
	env, err := hcl_adapter.Environment("")
	if err != nil {
		return nil, err
	}
	out, err := hcl_adapter.RenderTemplate(text, hcl_adapter.NewEvalContext(env))
	if err != nil {
		return nil, err
	}
	return starlark.String(out), nil
}

func fromJSON(v any) starlark.Value {
	switch v := v.(type) {
	case nil:
		return starlark.None
	case bool:
		return starlark.Bool(v)
	case float64:
		if v == float64(int64(v)) {
			return starlark.MakeInt64(int64(v))
		}
		return starlark.Float(v)
	case string:
		return starlark.String(v)
	case []any:
		vals := make([]starlark.Value, 0, len(v))
		for _, item := range v {
			vals = append(vals, fromJSON(item))
		}
		return starlark.NewList(vals)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := starlark.NewDict(len(v))
		for _, k := range keys {
			_ = d.SetKey(starlark.String(k), fromJSON(v[k]))
		}
		return d
	default:
		return starlark.String(fmt.Sprint(v))
	}
}
