package script

import (
	"fmt"
	"sort"

	"github.com/specialistvlad/anda/internal/specedit"
	"go.starlark.net/starlark"
)

// specValue is the `rpm` binding of update scripts:
//
//	rpm.version("1.2.3")
//	rpm.source(0, "https://example.com/x-1.2.3.tar.gz")
//	rpm.f = rpm.f.replace("old", "new")
type specValue struct {
	spec *specedit.Spec
}

var (
	_ starlark.HasAttrs    = (*specValue)(nil)
	_ starlark.HasSetField = (*specValue)(nil)
)

func (v *specValue) String() string        { return fmt.Sprintf("<rpm_spec %s>", v.spec.Path) }
func (v *specValue) Type() string          { return "rpm_spec" }
func (v *specValue) Freeze()               {}
func (v *specValue) Truth() starlark.Bool  { return starlark.True }
func (v *specValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: rpm_spec") }

type specMethod func(s *specedit.Spec, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error

var specMethods = map[string]specMethod{
	"version": func(s *specedit.Spec, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error {
		var ver string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &ver); err != nil {
			return err
		}
		return s.Version(ver)
	},
	"release": func(s *specedit.Spec, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error {
		rel := "1"
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0, &rel); err != nil {
			return err
		}
		return s.Release(rel)
	},
	"define": func(s *specedit.Spec, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error {
		var name, value string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &name, &value); err != nil {
			return err
		}
		return s.Define(name, value)
	},
	"set_global": func(s *specedit.Spec, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error {
		var name, value string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &name, &value); err != nil {
			return err
		}
		return s.Global(name, value)
	},
	"source": func(s *specedit.Spec, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error {
		var i int
		var value string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &i, &value); err != nil {
			return err
		}
		return s.Source(i, value)
	},
}

func (v *specValue) Attr(name string) (starlark.Value, error) {
	if name == "f" {
		return starlark.String(v.spec.Text()), nil
	}
	m, ok := specMethods[name]
	if !ok {
		return nil, nil
	}
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := m(v.spec, b, args, kwargs); err != nil {
			return nil, err
		}
		return starlark.None, nil
	}), nil
}

func (v *specValue) AttrNames() []string {
	names := []string{"f"}
	for name := range specMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (v *specValue) SetField(name string, val starlark.Value) error {
	if name != "f" {
		return starlark.NoSuchAttrError(fmt.Sprintf("rpm_spec has no settable field %q", name))
	}
	s, ok := starlark.AsString(val)
	if !ok {
		return fmt.Errorf("rpm_spec.f must be a string, got %s", val.Type())
	}
	v.spec.SetText(s)
	return nil
}
