// ABOUTME: The tool-provider node: declares a capability the ReAct agent may
// ABOUTME: call, wiring it into the run's state bag rather than the
// ABOUTME: dataflow graph. Grounded on spec/agents/tools/registry.go's
// ABOUTME: BuildRegistry aggregation pattern.
package nodes

import (
	"context"
	"fmt"

	"github.com/flowxcore/engine/engine"
	"github.com/flowxcore/engine/registry"
)

func init() {
	registry.Register("tool_provider", func() engine.NodeHandler { return &ToolProviderHandler{} })
}

// toolDescriptor is the shape an agent node reads back out of run state for
// every tool-provider node that targeted it.
type toolDescriptor struct {
	ToolID      string         `json:"tool_id"`
	Description string         `json:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
}

const stateKeyAvailableTools = "available_tools"

type ToolProviderHandler struct{}

func (h *ToolProviderHandler) Type() string { return "tool_provider" }

func (h *ToolProviderHandler) Validate(node *engine.Node) engine.ValidationResult {
	toolID, _ := node.Data["tool_id"].(string)
	if toolID == "" {
		return engine.ValidationResult{Errors: []engine.ValidationError{
			{NodeID: node.ID, Severity: "CRITICAL", Message: "tool_id is required"},
		}}
	}
	return engine.ValidationResult{Ready: true}
}

func (h *ToolProviderHandler) Mode(*engine.Node) engine.ExecutionMode {
	return engine.ExecutionMode{}
}

func (h *ToolProviderHandler) WaitFor(*engine.Node, int) engine.WaitStrategy {
	return engine.WaitAll
}

// Execute registers this node's tool in the run's shared state so that
// whichever ReAct agent node it is wired to can discover it, then forwards
// a success payload naming the registered tool so the edge still
// participates in dataflow for ordering purposes.
func (h *ToolProviderHandler) Execute(_ context.Context, node *engine.Node, _ map[string]engine.Delivery, rc *engine.RuntimeContext) (engine.Payload, error) {
	toolID, _ := node.Data["tool_id"].(string)
	desc, _ := node.Data["description"].(string)
	config, _ := node.Data["config"].(map[string]any)

	existing, _ := rc.State.Get(stateKeyAvailableTools)
	tools, _ := existing.([]toolDescriptor)
	tools = append(tools, toolDescriptor{ToolID: toolID, Description: desc, Config: config})
	rc.State.Set(stateKeyAvailableTools, tools)

	return engine.Payload{Status: engine.StatusSuccess, Data: map[string]any{"registered_tool": fmt.Sprintf("%v", toolID)}}, nil
}
