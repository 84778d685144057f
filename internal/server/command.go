package server

import (
	"fmt"
	"os"
	"slices"
)

// BuildEnvironment returns the current process environment extended with env.
// Entries in env override inherited ones because exec uses the last value.
func BuildEnvironment(env map[string]string) []string {
	out := os.Environ()

	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	for _, key := range keys {
		out = append(out, fmt.Sprintf("%s=%s", key, env[key]))
	}

	return out
}
