// ABOUTME: The OR-merge (discriminator) node: fires as soon as any one
// ABOUTME: parent delivers, forwarding that parent's payload unchanged.
package nodes

import (
	"context"

	"github.com/flowxcore/engine/engine"
	"github.com/flowxcore/engine/registry"
)

func init() {
	registry.Register("or_merge", func() engine.NodeHandler { return &OrMergeHandler{} })
}

type OrMergeHandler struct{}

func (h *OrMergeHandler) Type() string { return "or_merge" }

func (h *OrMergeHandler) Validate(*engine.Node) engine.ValidationResult {
	return engine.ValidationResult{Ready: true}
}

func (h *OrMergeHandler) Mode(*engine.Node) engine.ExecutionMode {
	return engine.ExecutionMode{}
}

func (h *OrMergeHandler) WaitFor(*engine.Node, int) engine.WaitStrategy {
	return engine.WaitAny
}

func (h *OrMergeHandler) Execute(_ context.Context, _ *engine.Node, inputs map[string]engine.Delivery, _ *engine.RuntimeContext) (engine.Payload, error) {
	for _, d := range inputs {
		if !d.IsSkip() {
			return d.Payload, nil
		}
	}
	return engine.Payload{Status: engine.StatusSkipped}, nil
}
