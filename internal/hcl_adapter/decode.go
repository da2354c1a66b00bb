package hcl_adapter

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/anda/internal/manifest"
)

var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "project", LabelNames: []string{"name"}},
		{Type: "config"},
	},
}

var configSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "mock_config"},
		{Name: "strip_prefix"},
		{Name: "strip_suffix"},
		{Name: "project_regex"},
	},
}

// Map-valued fields may be written as an attribute or as a block, so they
// appear in both lists of their schema.
var projectSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "pre_script"},
		{Name: "post_script"},
		{Name: "update"},
		{Name: "scripts"},
		{Name: "alias"},
		{Name: "arches"},
		{Name: "depends"},
		{Name: "env"},
		{Name: "labels"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "rpm"},
		{Type: "docker"},
		{Type: "podman"},
		{Type: "flatpak"},
		{Type: "env"},
		{Type: "labels"},
	},
}

var rpmSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "spec"},
		{Name: "sources"},
		{Name: "package"},
		{Name: "mode"},
		{Name: "pre_script"},
		{Name: "post_script"},
		{Name: "enable_scm"},
		{Name: "extra_repos"},
		{Name: "mock_config"},
		{Name: "scm_opts"},
		{Name: "config"},
		{Name: "plugin_opts"},
		{Name: "macros"},
		{Name: "opts"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "scm_opts"},
		{Type: "config"},
		{Type: "plugin_opts"},
		{Type: "macros"},
		{Type: "opts"},
	},
}

var dockerSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "image", LabelNames: []string{"tag"}},
	},
}

var imageSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "dockerfile"},
		{Name: "import"},
		{Name: "tag_latest"},
		{Name: "context"},
		{Name: "version"},
	},
}

var flatpakSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "manifest", Required: true},
		{Name: "pre_script"},
		{Name: "post_script"},
	},
}

// decodeBody translates the body of one manifest file. Unknown top-level
// attributes are tolerated; inside blocks the schema is strict.
func decodeBody(body hcl.Body, evalCtx *hcl.EvalContext) (*manifest.Manifest, hcl.Diagnostics) {
	content, _, diags := body.PartialContent(fileSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	m := manifest.New()
	seenConfig := false
	for _, block := range content.Blocks {
		switch block.Type {
		case "config":
			if seenConfig {
				diags = append(diags, duplicateBlock(block, "config"))
				continue
			}
			seenConfig = true
			cfg, cdiags := decodeConfig(block.Body, evalCtx)
			diags = append(diags, cdiags...)
			m.Config = cfg
		case "project":
			name := block.Labels[0]
			if _, exists := m.Projects[name]; exists {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate project",
					Detail:   fmt.Sprintf("A project named %q was already declared in this file.", name),
					Subject:  &block.DefRange,
				})
				continue
			}
			p, pdiags := decodeProject(block.Body, evalCtx)
			diags = append(diags, pdiags...)
			if p != nil {
				m.Projects[name] = p
			}
		}
	}
	return m, diags
}

func decodeConfig(body hcl.Body, evalCtx *hcl.EvalContext) (manifest.Config, hcl.Diagnostics) {
	var cfg manifest.Config
	content, diags := body.Content(configSchema)
	if diags.HasErrors() {
		return cfg, diags
	}
	var d hcl.Diagnostics
	cfg.MockConfig, d = stringAttr(content.Attributes, "mock_config", evalCtx)
	diags = append(diags, d...)
	cfg.StripPrefix, d = stringAttr(content.Attributes, "strip_prefix", evalCtx)
	diags = append(diags, d...)
	cfg.StripSuffix, d = stringAttr(content.Attributes, "strip_suffix", evalCtx)
	diags = append(diags, d...)
	cfg.ProjectRegex, d = stringAttr(content.Attributes, "project_regex", evalCtx)
	diags = append(diags, d...)
	return cfg, diags
}

func decodeProject(body hcl.Body, evalCtx *hcl.EvalContext) (*manifest.Project, hcl.Diagnostics) {
	content, diags := body.Content(projectSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	p := &manifest.Project{}
	attrs := content.Attributes
	var d hcl.Diagnostics

	p.PreScript, d = pathAttr(attrs, "pre_script", evalCtx)
	diags = append(diags, d...)
	p.PostScript, d = pathAttr(attrs, "post_script", evalCtx)
	diags = append(diags, d...)
	p.Update, d = pathAttr(attrs, "update", evalCtx)
	diags = append(diags, d...)
	p.Scripts, d = stringListAttr(attrs, "scripts", evalCtx)
	diags = append(diags, d...)
	p.Alias, d = stringListAttr(attrs, "alias", evalCtx)
	diags = append(diags, d...)
	p.Arches, d = stringListAttr(attrs, "arches", evalCtx)
	diags = append(diags, d...)
	p.Depends, d = stringListAttr(attrs, "depends", evalCtx)
	diags = append(diags, d...)

	env, d := mapField(content, "env", evalCtx)
	diags = append(diags, d...)
	p.Env = toMap(env)
	labels, d := mapField(content, "labels", evalCtx)
	diags = append(diags, d...)
	p.Labels = toMap(labels)
	if p.Labels == nil {
		p.Labels = map[string]string{}
	}

	for _, block := range content.Blocks {
		switch block.Type {
		case "rpm":
			if p.Rpm != nil {
				diags = append(diags, duplicateBlock(block, "rpm"))
				continue
			}
			p.Rpm, d = decodeRpm(block.Body, evalCtx)
			diags = append(diags, d...)
		case "docker", "podman":
			target := &p.Docker
			if block.Type == "podman" {
				target = &p.Podman
			}
			if *target != nil {
				diags = append(diags, duplicateBlock(block, block.Type))
				continue
			}
			*target, d = decodeDocker(block.Body, evalCtx)
			diags = append(diags, d...)
		case "flatpak":
			if p.Flatpak != nil {
				diags = append(diags, duplicateBlock(block, "flatpak"))
				continue
			}
			p.Flatpak, d = decodeFlatpak(block.Body, evalCtx)
			diags = append(diags, d...)
		}
	}
	return p, diags
}

func decodeRpm(body hcl.Body, evalCtx *hcl.EvalContext) (*manifest.RpmBuild, hcl.Diagnostics) {
	content, diags := body.Content(rpmSchema)
	if diags.HasErrors() {
		return nil, diags
	}
	attrs := content.Attributes
	r := &manifest.RpmBuild{}
	var d hcl.Diagnostics

	r.Spec, d = stringAttr(attrs, "spec", evalCtx)
	diags = append(diags, d...)
	r.Sources, d = pathAttr(attrs, "sources", evalCtx)
	diags = append(diags, d...)
	r.Package, d = stringAttr(attrs, "package", evalCtx)
	diags = append(diags, d...)
	mode, d := stringAttr(attrs, "mode", evalCtx)
	diags = append(diags, d...)
	r.Mode = manifest.BuildMode(mode)
	r.PreScript, d = pathAttr(attrs, "pre_script", evalCtx)
	diags = append(diags, d...)
	r.PostScript, d = pathAttr(attrs, "post_script", evalCtx)
	diags = append(diags, d...)
	r.EnableSCM, d = boolAttr(attrs, "enable_scm", evalCtx)
	diags = append(diags, d...)
	r.ExtraRepos, d = stringListAttr(attrs, "extra_repos", evalCtx)
	diags = append(diags, d...)
	r.MockConfig, d = stringAttr(attrs, "mock_config", evalCtx)
	diags = append(diags, d...)

	for _, field := range []struct {
		name string
		dst  *map[string]string
	}{
		{"scm_opts", &r.SCMOpts},
		{"config", &r.Config},
		{"plugin_opts", &r.PluginOpts},
		{"opts", &r.Opts},
	} {
		o, d := mapField(content, field.name, evalCtx)
		diags = append(diags, d...)
		*field.dst = toMap(o)
	}
	macros, d := mapField(content, "macros", evalCtx)
	diags = append(diags, d...)
	if macros.Len() > 0 {
		r.Macros = macros
	}
	return r, diags
}

func decodeDocker(body hcl.Body, evalCtx *hcl.EvalContext) (*manifest.Docker, hcl.Diagnostics) {
	content, diags := body.Content(dockerSchema)
	if diags.HasErrors() {
		return nil, diags
	}
	d := &manifest.Docker{Images: map[string]*manifest.DockerImage{}}
	for _, block := range content.Blocks {
		tag := block.Labels[0]
		if _, exists := d.Images[tag]; exists {
			diags = append(diags, duplicateBlock(block, "image "+tag))
			continue
		}
		img, idiags := decodeImage(block.Body, evalCtx)
		diags = append(diags, idiags...)
		if img != nil {
			d.Images[tag] = img
		}
	}
	return d, diags
}

func decodeImage(body hcl.Body, evalCtx *hcl.EvalContext) (*manifest.DockerImage, hcl.Diagnostics) {
	content, diags := body.Content(imageSchema)
	if diags.HasErrors() {
		return nil, diags
	}
	attrs := content.Attributes
	img := &manifest.DockerImage{}
	var d hcl.Diagnostics
	img.Dockerfile, d = stringAttr(attrs, "dockerfile", evalCtx)
	diags = append(diags, d...)
	img.Import, d = stringAttr(attrs, "import", evalCtx)
	diags = append(diags, d...)
	img.TagLatest, d = boolAttr(attrs, "tag_latest", evalCtx)
	diags = append(diags, d...)
	img.Context, d = stringAttr(attrs, "context", evalCtx)
	diags = append(diags, d...)
	img.Version, d = stringAttr(attrs, "version", evalCtx)
	diags = append(diags, d...)
	return img, diags
}

func decodeFlatpak(body hcl.Body, evalCtx *hcl.EvalContext) (*manifest.Flatpak, hcl.Diagnostics) {
	content, diags := body.Content(flatpakSchema)
	if diags.HasErrors() {
		return nil, diags
	}
	f := &manifest.Flatpak{}
	var d hcl.Diagnostics
	f.Manifest, d = stringAttr(content.Attributes, "manifest", evalCtx)
	diags = append(diags, d...)
	f.PreScript, d = stringAttr(content.Attributes, "pre_script", evalCtx)
	diags = append(diags, d...)
	f.PostScript, d = stringAttr(content.Attributes, "post_script", evalCtx)
	diags = append(diags, d...)
	return f, diags
}

// mapField reads a map-valued field from either its attribute or its block
// form. Declaring both, or the block twice, is an error.
func mapField(content *hcl.BodyContent, name string, evalCtx *hcl.EvalContext) (*manifest.OrderedMap, hcl.Diagnostics) {
	var found *hcl.Block
	var diags hcl.Diagnostics
	for _, block := range content.Blocks {
		if block.Type != name {
			continue
		}
		if found != nil {
			diags = append(diags, duplicateBlock(block, name))
			continue
		}
		found = block
	}

	attr, hasAttr := content.Attributes[name]
	switch {
	case hasAttr && found != nil:
		return manifest.NewOrderedMap(), append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Conflicting definitions",
			Detail:   fmt.Sprintf("%q is defined both as an argument and as a block.", name),
			Subject:  &found.DefRange,
		})
	case hasAttr:
		o, d := mapExpr(attr.Expr, evalCtx)
		return o, append(diags, d...)
	case found != nil:
		o, d := mapBody(found.Body, evalCtx)
		return o, append(diags, d...)
	default:
		return manifest.NewOrderedMap(), diags
	}
}

func duplicateBlock(block *hcl.Block, name string) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  "Duplicate \"" + name + "\" block",
		Detail:   "Only one \"" + name + "\" block is allowed.",
		Subject:  &block.DefRange,
	}
}
