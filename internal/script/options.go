package script

import (
	"fmt"

	"github.com/specialistvlad/anda/internal/rpm"
	"go.starlark.net/starlark"
)

// optionsDict exposes rpm.Options to scripts as a dict, e.g.
//
//	opts["macros"]["dist"] = ".fc40"
//	opts["with"].append("docs")
func optionsDict(o *rpm.Options) *starlark.Dict {
	d := starlark.NewDict(13)
	set := func(k string, v starlark.Value) { _ = d.SetKey(starlark.String(k), v) }
	set("mock_config", starlark.String(o.MockConfig))
	set("target", starlark.String(o.Target))
	set("sources", starlark.String(o.Sources))
	set("result_dir", starlark.String(o.ResultDir))
	set("extra_repos", stringList(o.ExtraRepos))
	set("with", stringList(o.With))
	set("without", stringList(o.Without))
	set("macros", orderedDict(o.Macros))
	set("no_mirror", starlark.Bool(o.NoMirror))
	set("config_opts", stringList(o.ConfigOpts))
	set("scm_enable", starlark.Bool(o.SCMEnable))
	set("scm_opts", stringList(o.SCMOpts))
	set("plugin_opts", stringList(o.PluginOpts))
	return d
}

// readOptions copies a dict produced by optionsDict (possibly modified) back
// into o. Keys the script removed leave the field unchanged.
func readOptions(v starlark.Value, o *rpm.Options) error {
	d, ok := v.(*starlark.Dict)
	if !ok {
		return fmt.Errorf("expected dict, got %s", v.Type())
	}
	get := func(k string) (starlark.Value, bool) {
		val, found, _ := d.Get(starlark.String(k))
		return val, found
	}

	for _, f := range []struct {
		key string
		dst *string
	}{
		{"mock_config", &o.MockConfig},
		{"target", &o.Target},
		{"sources", &o.Sources},
		{"result_dir", &o.ResultDir},
	} {
		if val, ok := get(f.key); ok {
			*f.dst = plainString(val)
		}
	}
	for _, f := range []struct {
		key string
		dst *[]string
	}{
		{"extra_repos", &o.ExtraRepos},
		{"with", &o.With},
		{"without", &o.Without},
		{"config_opts", &o.ConfigOpts},
		{"scm_opts", &o.SCMOpts},
		{"plugin_opts", &o.PluginOpts},
	} {
		if val, ok := get(f.key); ok {
			l, err := toStringSlice(val)
			if err != nil {
				return fmt.Errorf("%s: %w", f.key, err)
			}
			*f.dst = l
		}
	}
	if val, ok := get("no_mirror"); ok {
		o.NoMirror = bool(val.Truth())
	}
	if val, ok := get("scm_enable"); ok {
		o.SCMEnable = bool(val.Truth())
	}
	if val, ok := get("macros"); ok {
		m, err := toOrderedMap(val)
		if err != nil {
			return fmt.Errorf("macros: %w", err)
		}
		o.Macros = m
	}
	return nil
}
