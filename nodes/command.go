// ABOUTME: The Command node: runs a shell command through a PTY, optionally
// ABOUTME: with sudo credentials injected. Grounded on the Python original's
// ABOUTME: backend/nodes/command/node.py CommandNode.
package nodes

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/flowxcore/engine/engine"
	"github.com/flowxcore/engine/pty"
	"github.com/flowxcore/engine/registry"
)

func init() {
	registry.Register("command", func() engine.NodeHandler { return &CommandHandler{runner: pty.NewRunner()} })
}

// placeholderPattern catches an un-filled-in template like "<api-key>" left
// over from AI-assisted command generation.
var placeholderPattern = regexp.MustCompile(`<[^<>]+>`)

// commandRunner is the seam CommandHandler executes through, satisfied by
// *pty.Runner in production and a fake in tests.
type commandRunner interface {
	Run(ctx context.Context, command string, sudoPassword string, onOutput pty.OutputFunc) (pty.Result, error)
}

type CommandHandler struct {
	runner commandRunner
}

func (h *CommandHandler) Type() string { return "command" }

// Validate unconditionally rejects a locked command: the Python original's
// validate() has no approval escape hatch for node_data.get("locked").
func (h *CommandHandler) Validate(node *engine.Node) engine.ValidationResult {
	var errs []engine.ValidationError

	cmd, _ := node.Data["command"].(string)
	if strings.TrimSpace(cmd) == "" {
		errs = append(errs, engine.ValidationError{NodeID: node.ID, Severity: "CRITICAL", Message: "command is empty"})
	} else if placeholderPattern.MatchString(cmd) {
		errs = append(errs, engine.ValidationError{NodeID: node.ID, Severity: "CRITICAL", Message: "command still contains an unfilled placeholder"})
	}

	if locked, _ := node.Data["locked"].(bool); locked {
		errs = append(errs, engine.ValidationError{NodeID: node.ID, Severity: "CRITICAL", Message: "command is locked and cannot be executed"})
	}

	return engine.ValidationResult{Ready: len(errs) == 0, Errors: errs}
}

func (h *CommandHandler) Mode(*engine.Node) engine.ExecutionMode {
	return engine.ExecutionMode{RequiresPTY: true, Interactive: true}
}

func (h *CommandHandler) WaitFor(*engine.Node, int) engine.WaitStrategy {
	return engine.WaitAll
}

// Execute fails fast with exit_code=126 before ever touching the PTY if the
// node is locked — a second line of defense alongside Validate's CRITICAL
// rejection, for callers that invoke Execute without a prior Validate pass.
func (h *CommandHandler) Execute(ctx context.Context, node *engine.Node, inputs map[string]engine.Delivery, rc *engine.RuntimeContext) (engine.Payload, error) {
	if locked, _ := node.Data["locked"].(bool); locked {
		return engine.Payload{
			Status: engine.StatusFailure,
			Error:  "command is locked",
			Data:   map[string]any{"exit_code": 126},
		}, nil
	}

	cmd, _ := node.Data["command"].(string)
	sudoLock, _ := node.Data["sudoLock"].(bool)

	rc.Emit(engine.NewNodeLogEvent(rc.RunID, node.ID, "\x1b[36m> "+cmd+"\x1b[0m", "info"))

	var password string
	if sudoLock {
		password = rc.Secrets.SudoPassword
		if password == "" {
			return engine.Payload{Status: engine.StatusFailure, Error: "command requires sudo but no sudo password was supplied for this run"}, nil
		}
	}

	result, err := h.runner.Run(ctx, cmd, password, func(chunk string) {
		rc.Emit(engine.NewNodeLogEvent(rc.RunID, node.ID, chunk, "stdout"))
	})
	if err != nil {
		return engine.Payload{Status: engine.StatusFailure, Error: err.Error()}, nil
	}
	if result.ExitCode != 0 {
		return engine.Payload{
			Status: engine.StatusFailure,
			Error:  fmt.Sprintf("command exited %d", result.ExitCode),
			Data:   map[string]any{"exit_code": result.ExitCode, "stdout": result.Stdout},
		}, nil
	}

	return engine.Payload{Status: engine.StatusSuccess, Data: map[string]any{"exit_code": 0, "stdout": result.Stdout}}, nil
}
