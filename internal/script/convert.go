package script

import (
	"fmt"
	"sort"

	"github.com/specialistvlad/anda/internal/manifest"
	"github.com/specialistvlad/anda/internal/rpm"
	"github.com/specialistvlad/anda/internal/specedit"
	"go.starlark.net/starlark"
)

// toStarlark converts a binding into a Starlark value.
func toStarlark(v any) (starlark.Value, error) {
	switch v := v.(type) {
	case nil:
		return starlark.None, nil
	case string:
		return starlark.String(v), nil
	case *string:
		return starlark.String(*v), nil
	case bool:
		return starlark.Bool(v), nil
	case *bool:
		return starlark.Bool(*v), nil
	case int:
		return starlark.MakeInt(v), nil
	case []string:
		return stringList(v), nil
	case *[]string:
		return stringList(*v), nil
	case map[string]string:
		return stringDict(v), nil
	case *map[string]string:
		return stringDict(*v), nil
	case rpm.Builder:
		return starlark.String(v), nil
	case *rpm.Builder:
		return starlark.String(*v), nil
	case *rpm.Options:
		return optionsDict(v), nil
	case *specedit.Spec:
		return &specValue{spec: v}, nil
	case starlark.Value:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported binding type %T", v)
	}
}

// readBack stores the final value of a binding into target when target is
// a pointer.
func readBack(v starlark.Value, target any) error {
	switch t := target.(type) {
	case *string:
		s, ok := starlark.AsString(v)
		if !ok {
			return fmt.Errorf("expected string, got %s", v.Type())
		}
		*t = s
	case *bool:
		*t = bool(v.Truth())
	case *[]string:
		l, err := toStringSlice(v)
		if err != nil {
			return err
		}
		*t = l
	case *map[string]string:
		m, err := toStringMap(v)
		if err != nil {
			return err
		}
		*t = m
	case *rpm.Builder:
		s, ok := starlark.AsString(v)
		if !ok {
			return fmt.Errorf("expected string, got %s", v.Type())
		}
		b, err := rpm.ParseBuilder(s)
		if err != nil {
			return err
		}
		*t = b
	case *rpm.Options:
		return readOptions(v, t)
	}
	return nil
}

func stringList(items []string) *starlark.List {
	vals := make([]starlark.Value, 0, len(items))
	for _, s := range items {
		vals = append(vals, starlark.String(s))
	}
	return starlark.NewList(vals)
}

func stringDict(m map[string]string) *starlark.Dict {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d := starlark.NewDict(len(m))
	for _, k := range keys {
		_ = d.SetKey(starlark.String(k), starlark.String(m[k]))
	}
	return d
}

func orderedDict(o *manifest.OrderedMap) *starlark.Dict {
	d := starlark.NewDict(o.Len())
	for _, k := range o.Keys() {
		v, _ := o.Get(k)
		_ = d.SetKey(starlark.String(k), starlark.String(v))
	}
	return d
}

func toStringSlice(v starlark.Value) ([]string, error) {
	if v == starlark.None {
		return nil, nil
	}
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("expected list of strings, got %s", v.Type())
	}
	it := iterable.Iterate()
	defer it.Done()
	var out []string
	var x starlark.Value
	for it.Next(&x) {
		s, ok := starlark.AsString(x)
		if !ok {
			return nil, fmt.Errorf("expected list of strings, found %s", x.Type())
		}
		out = append(out, s)
	}
	return out, nil
}

// toStringMap accepts a dict whose values are strings, numbers or bools.
func toStringMap(v starlark.Value) (map[string]string, error) {
	o, err := toOrderedMap(v)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, o.Len())
	for _, k := range o.Keys() {
		out[k], _ = o.Get(k)
	}
	return out, nil
}

func toOrderedMap(v starlark.Value) (*manifest.OrderedMap, error) {
	out := manifest.NewOrderedMap()
	if v == starlark.None {
		return out, nil
	}
	d, ok := v.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("expected dict, got %s", v.Type())
	}
	for _, item := range d.Items() {
		k, ok := starlark.AsString(item[0])
		if !ok {
			return nil, fmt.Errorf("expected string key, got %s", item[0].Type())
		}
		out.Set(k, plainString(item[1]))
	}
	return out, nil
}

// plainString renders strings without quotes and everything else in its
// Starlark form.
func plainString(v starlark.Value) string {
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return v.String()
}
