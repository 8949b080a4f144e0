// ABOUTME: Bounded self-restart config. Ported from attractor/restart.go's
// ABOUTME: RestartConfig/DefaultRestartConfig.
package engine

import "os"
import "strconv"

// RestartConfig bounds how many times a single run may self-restart via a
// ReAct agent's RestartSignal before the executor gives up and fails the
// run outright.
type RestartConfig struct {
	MaxRestarts int
}

// DefaultRestartConfig reads MAX_WORKFLOW_RESTARTS from the environment,
// defaulting to 3 (spec.md §5).
func DefaultRestartConfig() RestartConfig {
	n := 3
	if v := os.Getenv("MAX_WORKFLOW_RESTARTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			n = parsed
		}
	}
	return RestartConfig{MaxRestarts: n}
}
