// ABOUTME: The ReAct agent node: a bounded think/act loop over the tools
// ABOUTME: registered by upstream tool-provider nodes, able to hand back a
// ABOUTME: restart or stop control signal. Grounded on spec/agents/swarm.go's
// ABOUTME: AgentRunner.RunLoop.
package nodes

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/flowxcore/engine/engine"
	"github.com/flowxcore/engine/llm"
	"github.com/flowxcore/engine/registry"
)

func init() {
	registry.Register("react_agent", func() engine.NodeHandler { return &ReactAgentHandler{} })
}

// ToolExecutor invokes a registered tool by name, returning its textual
// result for the next think step. Wired in by cmd/flowxd at startup once
// the concrete tool implementations (outside this package's scope) are
// known.
type ToolExecutor func(ctx context.Context, rc *engine.RuntimeContext, toolID string, input map[string]any) (string, error)

type ReactAgentHandler struct {
	Client   llm.Client
	Tools    ToolExecutor
	MaxSteps int
}

func defaultMaxSteps() int {
	n := 8
	if v := os.Getenv("REACT_AGENT_MAX_STEPS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	return n
}

func (h *ReactAgentHandler) Type() string { return "react_agent" }

func (h *ReactAgentHandler) Validate(node *engine.Node) engine.ValidationResult {
	prompt, _ := node.Data["system_prompt"].(string)
	if prompt == "" {
		return engine.ValidationResult{Errors: []engine.ValidationError{
			{NodeID: node.ID, Severity: "CRITICAL", Message: "system_prompt is required"},
		}}
	}
	return engine.ValidationResult{Ready: true}
}

func (h *ReactAgentHandler) Mode(*engine.Node) engine.ExecutionMode {
	return engine.ExecutionMode{Interactive: true}
}

func (h *ReactAgentHandler) WaitFor(*engine.Node, int) engine.WaitStrategy {
	return engine.WaitAll
}

func (h *ReactAgentHandler) Execute(ctx context.Context, node *engine.Node, inputs map[string]engine.Delivery, rc *engine.RuntimeContext) (engine.Payload, error) {
	if h.Client == nil {
		return engine.Payload{}, &engine.InfrastructureError{Op: "react_agent.think", Err: fmt.Errorf("no llm.Client configured")}
	}

	prompt, _ := node.Data["system_prompt"].(string)
	maxSteps := h.MaxSteps
	if maxSteps == 0 {
		maxSteps = defaultMaxSteps()
	}

	tools := availableTools(rc)
	transcript := []llm.Message{{Role: "user", Content: summarizeInputs(inputs)}}

	for step := 0; step < maxSteps; step++ {
		select {
		case <-ctx.Done():
			return engine.Payload{}, &engine.ExecutionCancelled{NodeID: node.ID}
		default:
		}

		out, err := h.Client.Think(ctx, prompt, transcript, tools)
		if err != nil {
			return engine.Payload{Status: engine.StatusFailure, Error: err.Error()}, nil
		}

		if len(out.ToolCalls) == 0 {
			return engine.Payload{Status: engine.StatusSuccess, Data: map[string]any{"answer": out.Text, "steps": step + 1}}, nil
		}

		for _, call := range out.ToolCalls {
			if h.Tools == nil {
				return engine.Payload{Status: engine.StatusFailure, Error: "agent requested a tool but no tool executor is configured"}, nil
			}
			result, err := h.Tools(ctx, rc, call.Name, call.Input)
			if err != nil {
				result = "error: " + err.Error()
			}

			switch result {
			case engine.SignalRestart:
				rc.Emit(engine.NewInterruptEvent(rc.RunID, node.ID, rc.RunID, "agent requested restart"))
				return engine.Payload{}, &engine.RestartSignal{}
			case engine.SignalStop:
				rc.Emit(engine.NewInterruptEvent(rc.RunID, node.ID, rc.RunID, "agent requested stop"))
				return engine.Payload{}, &engine.StopSignal{Reason: "agent requested stop"}
			}

			transcript = append(transcript,
				llm.Message{Role: "assistant", ToolUse: &call},
				llm.Message{Role: "tool", Content: result},
			)
		}
	}

	return engine.Payload{Status: engine.StatusFailure, Error: fmt.Sprintf("exceeded %d reasoning steps without a final answer", maxSteps)}, nil
}

func availableTools(rc *engine.RuntimeContext) []llm.ToolSpec {
	raw, _ := rc.State.Get(stateKeyAvailableTools)
	descs, _ := raw.([]toolDescriptor)
	specs := make([]llm.ToolSpec, 0, len(descs))
	for _, d := range descs {
		specs = append(specs, llm.ToolSpec{Name: d.ToolID, Description: d.Description})
	}
	return specs
}

func summarizeInputs(inputs map[string]engine.Delivery) string {
	for _, d := range inputs {
		if !d.IsSkip() {
			return fmt.Sprintf("%v", d.Payload.Data)
		}
	}
	return ""
}
