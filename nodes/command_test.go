package nodes

import (
	"context"
	"testing"

	"github.com/flowxcore/engine/engine"
	"github.com/flowxcore/engine/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner stands in for *pty.Runner so Execute's sudo/locked gating can
// be exercised without spawning a real shell.
type fakeRunner struct {
	called      bool
	gotCommand  string
	gotPassword string
	result      pty.Result
	err         error
}

func (f *fakeRunner) Run(ctx context.Context, command string, sudoPassword string, onOutput pty.OutputFunc) (pty.Result, error) {
	f.called = true
	f.gotCommand = command
	f.gotPassword = sudoPassword
	return f.result, f.err
}

func TestCommandHandler_ValidateRejectsEmptyCommand(t *testing.T) {
	h := &CommandHandler{}
	node := &engine.Node{ID: "n1", Data: map[string]any{"command": ""}}
	result := h.Validate(node)
	assert.True(t, result.HasCritical())
}

func TestCommandHandler_ValidateRejectsPlaceholder(t *testing.T) {
	h := &CommandHandler{}
	node := &engine.Node{ID: "n1", Data: map[string]any{"command": "curl -H 'Authorization: <api-key>'"}}
	result := h.Validate(node)
	assert.True(t, result.HasCritical())
}

func TestCommandHandler_ValidateRejectsLockedCommand(t *testing.T) {
	h := &CommandHandler{}
	node := &engine.Node{ID: "n1", Data: map[string]any{"command": "rm -rf /tmp/x", "locked": true}}
	result := h.Validate(node)
	assert.True(t, result.HasCritical())
}

func TestCommandHandler_ExecuteFailsFastOnLockedCommand(t *testing.T) {
	runner := &fakeRunner{}
	h := &CommandHandler{runner: runner}
	node := &engine.Node{ID: "n1", Data: map[string]any{"command": "rm -rf /tmp/x", "locked": true}}
	rc := &engine.RuntimeContext{Emit: func(engine.Event) {}}

	payload, err := h.Execute(context.Background(), node, nil, rc)

	require.NoError(t, err)
	assert.Equal(t, engine.StatusFailure, payload.Status)
	assert.Equal(t, 126, payload.Data["exit_code"])
	assert.False(t, runner.called, "locked command must never reach the PTY runner")
}

func TestCommandHandler_ExecuteFailsWithoutSudoPasswordWhenSudoLockSet(t *testing.T) {
	runner := &fakeRunner{}
	h := &CommandHandler{runner: runner}
	node := &engine.Node{ID: "n1", Data: map[string]any{"command": "apt-get update", "sudoLock": true}}
	rc := &engine.RuntimeContext{Emit: func(engine.Event) {}}

	payload, err := h.Execute(context.Background(), node, nil, rc)

	require.NoError(t, err)
	assert.Equal(t, engine.StatusFailure, payload.Status)
	assert.False(t, runner.called, "must not run without a sudo password when sudoLock is set")
}

func TestCommandHandler_ExecutePassesSudoPasswordWhenSudoLockSet(t *testing.T) {
	runner := &fakeRunner{result: pty.Result{ExitCode: 0, Stdout: "ok"}}
	h := &CommandHandler{runner: runner}
	node := &engine.Node{ID: "n1", Data: map[string]any{"command": "apt-get update", "sudoLock": true}}
	rc := &engine.RuntimeContext{
		Emit:    func(engine.Event) {},
		Secrets: engine.Secrets{SudoPassword: "hunter2"},
	}

	payload, err := h.Execute(context.Background(), node, nil, rc)

	require.NoError(t, err)
	assert.Equal(t, engine.StatusSuccess, payload.Status)
	assert.True(t, runner.called)
	assert.Equal(t, "hunter2", runner.gotPassword)
	assert.Equal(t, "apt-get update", runner.gotCommand)
}

func TestCommandHandler_ExecuteIgnoresRequiresSudoLegacyKey(t *testing.T) {
	// requires_sudo was the invented key name; sudoLock is the one the
	// original and the spec actually use, so a node carrying only
	// requires_sudo must run without ever asking for a password.
	runner := &fakeRunner{result: pty.Result{ExitCode: 0}}
	h := &CommandHandler{runner: runner}
	node := &engine.Node{ID: "n1", Data: map[string]any{"command": "echo hi", "requires_sudo": true}}
	rc := &engine.RuntimeContext{Emit: func(engine.Event) {}}

	payload, err := h.Execute(context.Background(), node, nil, rc)

	require.NoError(t, err)
	assert.Equal(t, engine.StatusSuccess, payload.Status)
	assert.Equal(t, "", runner.gotPassword)
}

func TestOrMergeHandler_ForwardsFirstNonSkip(t *testing.T) {
	h := &OrMergeHandler{}
	inputs := map[string]engine.Delivery{
		"a": engine.SkipDelivery(),
		"b": engine.OkDelivery(engine.Payload{Status: engine.StatusSuccess, Data: map[string]any{"x": 1}}),
	}
	p, err := h.Execute(nil, &engine.Node{ID: "m"}, inputs, nil)
	assert.NoError(t, err)
	assert.Equal(t, engine.StatusSuccess, p.Status)
}

func TestOrMergeHandler_SkipsWhenAllParentsSkip(t *testing.T) {
	h := &OrMergeHandler{}
	inputs := map[string]engine.Delivery{"a": engine.SkipDelivery(), "b": engine.SkipDelivery()}
	p, err := h.Execute(nil, &engine.Node{ID: "m"}, inputs, nil)
	assert.NoError(t, err)
	assert.Equal(t, engine.StatusSkipped, p.Status)
}
