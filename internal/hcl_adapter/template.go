package hcl_adapter

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// RenderTemplate evaluates an HCL string template such as "hello ${env.USER}"
// against evalCtx.
func RenderTemplate(tmpl string, evalCtx *hcl.EvalContext) (string, error) {
	expr, diags := hclsyntax.ParseTemplate([]byte(tmpl), "<template>", hcl.InitialPos)
	if diags.HasErrors() {
		return "", fmt.Errorf("failed to parse template: %w", diags)
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return "", fmt.Errorf("failed to evaluate template: %w", diags)
	}
	s, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", fmt.Errorf("template did not produce a string: %w", err)
	}
	if s.IsNull() {
		return "", nil
	}
	return s.AsString(), nil
}
