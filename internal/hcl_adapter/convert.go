package hcl_adapter

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/anda/internal/manifest"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// stringAttr evaluates an optional string attribute. A missing attribute or a
// null value yields "".
func stringAttr(attrs hcl.Attributes, name string, evalCtx *hcl.EvalContext) (string, hcl.Diagnostics) {
	attr, ok := attrs[name]
	if !ok {
		return "", nil
	}
	val, diags := attr.Expr.Value(evalCtx)
	if diags.HasErrors() {
		return "", diags
	}
	s, err := wildString(val)
	if err != nil {
		return "", hcl.Diagnostics{typeDiag(attr, "a string", err)}
	}
	return s, nil
}

// pathAttr is stringAttr for path-valued attributes. An attribute set to ""
// is reported as manifest.EmptyPath so that nested-manifest prefixing can
// tell it apart from an omitted one.
func pathAttr(attrs hcl.Attributes, name string, evalCtx *hcl.EvalContext) (string, hcl.Diagnostics) {
	s, diags := stringAttr(attrs, name, evalCtx)
	if _, set := attrs[name]; set && s == "" && !diags.HasErrors() {
		return manifest.EmptyPath, diags
	}
	return s, diags
}

func boolAttr(attrs hcl.Attributes, name string, evalCtx *hcl.EvalContext) (bool, hcl.Diagnostics) {
	attr, ok := attrs[name]
	if !ok {
		return false, nil
	}
	val, diags := attr.Expr.Value(evalCtx)
	if diags.HasErrors() {
		return false, diags
	}
	if val.IsNull() {
		return false, nil
	}
	b, err := convert.Convert(val, cty.Bool)
	if err != nil {
		return false, hcl.Diagnostics{typeDiag(attr, "a bool", err)}
	}
	return b.True(), nil
}

func stringListAttr(attrs hcl.Attributes, name string, evalCtx *hcl.EvalContext) ([]string, hcl.Diagnostics) {
	attr, ok := attrs[name]
	if !ok {
		return nil, nil
	}
	val, diags := attr.Expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}
	list, err := convert.Convert(val, cty.List(cty.String))
	if err != nil {
		return nil, hcl.Diagnostics{typeDiag(attr, "a list of strings", err)}
	}
	out := make([]string, 0, list.LengthInt())
	for it := list.ElementIterator(); it.Next(); {
		_, v := it.Element()
		if v.IsNull() {
			continue
		}
		out = append(out, v.AsString())
	}
	return out, nil
}

// wildString coerces a primitive value to a string: numbers and bools are
// formatted, null becomes "". Collections are rejected.
func wildString(val cty.Value) (string, error) {
	if val.IsNull() {
		return "", nil
	}
	if !val.IsKnown() {
		return "", fmt.Errorf("value is not known")
	}
	if !val.Type().IsPrimitiveType() {
		return "", fmt.Errorf("expected string, number, bool or null, got %s", val.Type().FriendlyName())
	}
	s, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", err
	}
	return s.AsString(), nil
}

// mapExpr decodes the attribute form of a map field (`labels = { ... }`).
// Literal objects keep their source order; any other expression is
// evaluated and its keys sorted.
func mapExpr(expr hcl.Expression, evalCtx *hcl.EvalContext) (*manifest.OrderedMap, hcl.Diagnostics) {
	out := manifest.NewOrderedMap()

	if pairs, diags := hcl.ExprMap(expr); !diags.HasErrors() {
		var all hcl.Diagnostics
		for _, pair := range pairs {
			key, diags := pair.Key.Value(evalCtx)
			all = append(all, diags...)
			if diags.HasErrors() {
				continue
			}
			val, diags := pair.Value.Value(evalCtx)
			all = append(all, diags...)
			if diags.HasErrors() {
				continue
			}
			k, err := wildString(key)
			if err != nil {
				all = append(all, exprDiag(pair.Key, "Invalid map key", err))
				continue
			}
			v, err := wildString(val)
			if err != nil {
				all = append(all, exprDiag(pair.Value, "Invalid map value", err))
				continue
			}
			out.Set(k, v)
		}
		return out, all
	}

	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return out, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, hcl.Diagnostics{exprDiag(expr, "Invalid map", fmt.Errorf("expected an object, got %s", val.Type().FriendlyName()))}
	}
	vals := val.AsValueMap()
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := wildString(vals[k])
		if err != nil {
			return nil, hcl.Diagnostics{exprDiag(expr, "Invalid map value", fmt.Errorf("%s: %w", k, err))}
		}
		out.Set(k, v)
	}
	return out, nil
}

// mapBody decodes the block form of a map field (`labels { ... }`),
// keeping the attributes in source order.
func mapBody(body hcl.Body, evalCtx *hcl.EvalContext) (*manifest.OrderedMap, hcl.Diagnostics) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	sorted := make([]*hcl.Attribute, 0, len(attrs))
	for _, a := range attrs {
		sorted = append(sorted, a)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Range.Start.Byte < sorted[j].Range.Start.Byte
	})

	out := manifest.NewOrderedMap()
	for _, attr := range sorted {
		val, vdiags := attr.Expr.Value(evalCtx)
		diags = append(diags, vdiags...)
		if vdiags.HasErrors() {
			continue
		}
		s, err := wildString(val)
		if err != nil {
			diags = append(diags, typeDiag(attr, "a string, number, bool or null", err))
			continue
		}
		out.Set(attr.Name, s)
	}
	return out, diags
}

func toMap(o *manifest.OrderedMap) map[string]string {
	if o.Len() == 0 {
		return nil
	}
	m := make(map[string]string, o.Len())
	for _, k := range o.Keys() {
		v, _ := o.Get(k)
		m[k] = v
	}
	return m
}

func typeDiag(attr *hcl.Attribute, want string, err error) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  "Incorrect attribute value type",
		Detail:   fmt.Sprintf("Attribute %q must be %s: %s.", attr.Name, want, err),
		Subject:  attr.Expr.Range().Ptr(),
	}
}

func exprDiag(expr hcl.Expression, summary string, err error) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   err.Error() + ".",
		Subject:  expr.Range().Ptr(),
	}
}
