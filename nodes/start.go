// ABOUTME: The Start node: the unique zero-indegree trigger that seeds a
// ABOUTME: run with its configured initial payload.
package nodes

import (
	"context"

	"github.com/flowxcore/engine/engine"
	"github.com/flowxcore/engine/registry"
)

func init() {
	registry.Register("start", func() engine.NodeHandler { return &StartHandler{} })
}

type StartHandler struct{}

func (h *StartHandler) Type() string { return "start" }

func (h *StartHandler) Validate(node *engine.Node) engine.ValidationResult {
	return engine.ValidationResult{Ready: true}
}

func (h *StartHandler) Mode(*engine.Node) engine.ExecutionMode {
	return engine.ExecutionMode{}
}

func (h *StartHandler) WaitFor(*engine.Node, int) engine.WaitStrategy {
	return engine.WaitAll
}

func (h *StartHandler) Execute(_ context.Context, node *engine.Node, _ map[string]engine.Delivery, _ *engine.RuntimeContext) (engine.Payload, error) {
	data := map[string]any{}
	if node.Data != nil {
		if seed, ok := node.Data["initial_payload"].(map[string]any); ok {
			for k, v := range seed {
				data[k] = v
			}
		}
	}
	return engine.Payload{Status: engine.StatusSuccess, Data: data}, nil
}
