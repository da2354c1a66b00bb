package hcl_adapter

import (
	"sort"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/specialistvlad/anda/internal/manifest"
	"github.com/zclconf/go-cty/cty"
)

// Encode renders a manifest as HCL source. Empty fields are omitted and map
// fields are written in their block form.
func Encode(m *manifest.Manifest) []byte {
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	cfg := m.Config
	if cfg != (manifest.Config{}) {
		body := root.AppendNewBlock("config", nil).Body()
		setString(body, "mock_config", cfg.MockConfig)
		setString(body, "strip_prefix", cfg.StripPrefix)
		setString(body, "strip_suffix", cfg.StripSuffix)
		setString(body, "project_regex", cfg.ProjectRegex)
		root.AppendNewline()
	}

	for i, name := range m.Names() {
		if i > 0 {
			root.AppendNewline()
		}
		encodeProject(root.AppendNewBlock("project", []string{name}).Body(), m.Projects[name])
	}
	return f.Bytes()
}

func encodeProject(body *hclwrite.Body, p *manifest.Project) {
	setString(body, "pre_script", p.PreScript)
	setString(body, "post_script", p.PostScript)
	setString(body, "update", p.Update)
	setList(body, "scripts", p.Scripts)
	setList(body, "alias", p.Alias)
	setList(body, "arches", p.Arches)
	setList(body, "depends", p.Depends)
	appendMapBlock(body, "env", p.Env)
	appendMapBlock(body, "labels", p.Labels)

	if r := p.Rpm; r != nil {
		rb := body.AppendNewBlock("rpm", nil).Body()
		setString(rb, "spec", r.Spec)
		setString(rb, "sources", r.Sources)
		setString(rb, "package", r.Package)
		setString(rb, "mode", string(r.Mode))
		setString(rb, "pre_script", r.PreScript)
		setString(rb, "post_script", r.PostScript)
		if r.EnableSCM {
			rb.SetAttributeValue("enable_scm", cty.True)
		}
		setList(rb, "extra_repos", r.ExtraRepos)
		setString(rb, "mock_config", r.MockConfig)
		appendMapBlock(rb, "scm_opts", r.SCMOpts)
		appendMapBlock(rb, "config", r.Config)
		appendMapBlock(rb, "plugin_opts", r.PluginOpts)
		appendMapBlock(rb, "opts", r.Opts)
		if r.Macros.Len() > 0 {
			mb := rb.AppendNewBlock("macros", nil).Body()
			for _, k := range r.Macros.Keys() {
				v, _ := r.Macros.Get(k)
				mb.SetAttributeValue(k, cty.StringVal(v))
			}
		}
	}

	encodeDocker(body, "docker", p.Docker)
	encodeDocker(body, "podman", p.Podman)

	if fp := p.Flatpak; fp != nil {
		fb := body.AppendNewBlock("flatpak", nil).Body()
		fb.SetAttributeValue("manifest", cty.StringVal(fp.Manifest))
		setString(fb, "pre_script", fp.PreScript)
		setString(fb, "post_script", fp.PostScript)
	}
}

func encodeDocker(body *hclwrite.Body, kind string, d *manifest.Docker) {
	if d == nil {
		return
	}
	db := body.AppendNewBlock(kind, nil).Body()
	tags := make([]string, 0, len(d.Images))
	for tag := range d.Images {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		img := d.Images[tag]
		ib := db.AppendNewBlock("image", []string{tag}).Body()
		setString(ib, "dockerfile", img.Dockerfile)
		setString(ib, "import", img.Import)
		if img.TagLatest {
			ib.SetAttributeValue("tag_latest", cty.True)
		}
		setString(ib, "context", img.Context)
		setString(ib, "version", img.Version)
	}
}

func setString(body *hclwrite.Body, name, value string) {
	if value == "" || value == manifest.EmptyPath {
		return
	}
	body.SetAttributeValue(name, cty.StringVal(value))
}

func setList(body *hclwrite.Body, name string, values []string) {
	if len(values) == 0 {
		return
	}
	vals := make([]cty.Value, 0, len(values))
	for _, v := range values {
		vals = append(vals, cty.StringVal(v))
	}
	body.SetAttributeValue(name, cty.ListVal(vals))
}

func appendMapBlock(body *hclwrite.Body, name string, m map[string]string) {
	if len(m) == 0 {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b := body.AppendNewBlock(name, nil).Body()
	for _, k := range keys {
		b.SetAttributeValue(k, cty.StringVal(m[k]))
	}
}
