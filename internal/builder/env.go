package builder

import (
	"os"
	"sort"
)

// Process-wide variables exported once per run for hook scripts.
const (
	EnvTargetDir  = "ANDA_TARGET_DIR"
	EnvConfigPath = "ANDA_CONFIG_PATH"
)

// ApplyEnv exports env into the process environment in key order. The
// variables stay set after the project finishes.
func ApplyEnv(env map[string]string) error {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := os.Setenv(k, env[k]); err != nil {
			return err
		}
	}
	return nil
}
