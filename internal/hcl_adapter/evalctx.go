package hcl_adapter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/joho/godotenv"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// Environment snapshots the variables visible to manifest expressions: the
// entries of an optional dotenv file, overridden by the process environment.
// A missing dotenv file is not an error.
func Environment(dotenvPath string) (map[string]string, error) {
	env := map[string]string{}
	if dotenvPath != "" {
		vars, err := godotenv.Read(dotenvPath)
		switch {
		case err == nil:
			for k, v := range vars {
				env[k] = v
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read %s: %w", dotenvPath, err)
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env, nil
}

// NewEvalContext returns the evaluation context shared by every manifest
// file of one load: the `env(name)` function and the `env` object variable,
// both bound to env.
func NewEvalContext(env map[string]string) *hcl.EvalContext {
	vals := make(map[string]cty.Value, len(env))
	for k, v := range env {
		vals[k] = cty.StringVal(v)
	}
	envObj := cty.EmptyObjectVal
	if len(vals) > 0 {
		envObj = cty.ObjectVal(vals)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": envObj,
		},
		Functions: map[string]function.Function{
			"env": envFunc(env),
		},
	}
}

func envFunc(env map[string]string) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "name", Type: cty.String},
		},
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			key := args[0].AsString()
			v, ok := env[key]
			if !ok {
				return cty.NilVal, fmt.Errorf("environment variable %q is not set", key)
			}
			return cty.StringVal(v), nil
		},
	})
}
