package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoHandler is a minimal NodeHandler used to exercise the executor
// without depending on any concrete node-type package.
type echoHandler struct {
	typ      string
	wait     WaitStrategy
	fn       func(inputs map[string]Delivery) Payload
}

func (h *echoHandler) Type() string { return h.typ }
func (h *echoHandler) Validate(*Node) ValidationResult { return ValidationResult{Ready: true} }
func (h *echoHandler) Mode(*Node) ExecutionMode { return ExecutionMode{} }
func (h *echoHandler) WaitFor(*Node, int) WaitStrategy {
	if h.wait == "" {
		return WaitAll
	}
	return h.wait
}
func (h *echoHandler) Execute(_ context.Context, node *Node, inputs map[string]Delivery, _ *RuntimeContext) (Payload, error) {
	if h.fn != nil {
		return h.fn(inputs), nil
	}
	return Payload{Status: StatusSuccess, Data: map[string]any{"id": node.ID}}, nil
}

func newTestRegistry() *HandlerRegistry {
	reg := NewHandlerRegistry("")
	reg.Register(&echoHandler{typ: "start"})
	reg.Register(&echoHandler{typ: "ok"})
	reg.Register(&echoHandler{typ: "any", wait: WaitAny})
	reg.Register(&echoHandler{typ: "fail", fn: func(map[string]Delivery) Payload {
		return Payload{Status: StatusFailure, Error: "boom"}
	}})
	return reg
}

func runWithTimeout(t *testing.T, ex *Executor, runID string, input RunInput) (RunOutcome, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return ex.Run(ctx, runID, input)
}

func TestExecutor_LinearChain(t *testing.T) {
	input := RunInput{
		Nodes: []Node{
			{ID: "a", Type: "start"},
			{ID: "b", Type: "ok"},
		},
		Edges: []Edge{{ID: "e1", Source: "a", Target: "b"}},
	}
	ex := NewExecutor(newTestRegistry(), NewEventBus(), nil, DefaultRestartConfig())
	outcome, err := runWithTimeout(t, ex, "run-1", input)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, outcome.Status)
	assert.Equal(t, StatusSuccess, outcome.Results["b"].Status)
}

func TestExecutor_ConditionalEdgeSkipsOnFailure(t *testing.T) {
	input := RunInput{
		Nodes: []Node{
			{ID: "s", Type: "start"},
			{ID: "a", Type: "fail"},
			{ID: "b", Type: "ok"},
		},
		Edges: []Edge{
			{ID: "e0", Source: "s", Target: "a"},
			{ID: "e1", Source: "a", Target: "b", SourceHandle: "conditional"},
		},
	}
	ex := NewExecutor(newTestRegistry(), NewEventBus(), nil, DefaultRestartConfig())
	outcome, err := runWithTimeout(t, ex, "run-2", input)
	require.Error(t, err)
	assert.Equal(t, StatusSkipped, outcome.Results["b"].Status)
}

func TestExecutor_FailureEdgeFiresOnlyOnFailure(t *testing.T) {
	input := RunInput{
		Nodes: []Node{
			{ID: "s", Type: "start"},
			{ID: "a", Type: "fail"},
			{ID: "rescue", Type: "ok"},
		},
		Edges: []Edge{
			{ID: "e0", Source: "s", Target: "a"},
			{ID: "e1", Source: "a", Target: "rescue", Data: map[string]any{"behavior": "failure"}},
		},
	}
	ex := NewExecutor(newTestRegistry(), NewEventBus(), nil, DefaultRestartConfig())
	outcome, err := runWithTimeout(t, ex, "run-3", input)
	require.Error(t, err)
	assert.Equal(t, StatusSuccess, outcome.Results["rescue"].Status)
}

func TestExecutor_AllJoinWaitsForEveryParent(t *testing.T) {
	input := RunInput{
		Nodes: []Node{
			{ID: "a", Type: "start"},
			{ID: "b", Type: "start"},
			{ID: "c", Type: "ok"},
		},
		Edges: []Edge{
			{ID: "e1", Source: "a", Target: "c"},
			{ID: "e2", Source: "b", Target: "c"},
		},
	}
	ex := NewExecutor(newTestRegistry(), NewEventBus(), nil, DefaultRestartConfig())
	outcome, err := runWithTimeout(t, ex, "run-4", input)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, outcome.Results["c"].Status)
}

func TestExecutor_AnyJoinFiresOnFirstArrival(t *testing.T) {
	input := RunInput{
		Nodes: []Node{
			{ID: "a", Type: "start"},
			{ID: "b", Type: "fail"},
			{ID: "c", Type: "any"},
		},
		Edges: []Edge{
			{ID: "e1", Source: "a", Target: "c", Data: map[string]any{"behavior": "always"}},
			{ID: "e2", Source: "b", Target: "c", Data: map[string]any{"behavior": "always"}},
		},
	}
	ex := NewExecutor(newTestRegistry(), NewEventBus(), nil, DefaultRestartConfig())
	outcome, err := runWithTimeout(t, ex, "run-5", input)
	require.Error(t, err) // node "b" itself fails even though c still joins
	assert.Equal(t, StatusSuccess, outcome.Results["c"].Status)
}

func TestExecutor_AllSkippedParentsPropagateSkip(t *testing.T) {
	input := RunInput{
		Nodes: []Node{
			{ID: "s", Type: "start"},
			{ID: "a", Type: "fail"},
			{ID: "b", Type: "ok"},
			{ID: "c", Type: "ok"},
		},
		Edges: []Edge{
			{ID: "e0", Source: "s", Target: "a"},
			{ID: "e1", Source: "a", Target: "b", SourceHandle: "conditional"},
			{ID: "e2", Source: "b", Target: "c"},
		},
	}
	ex := NewExecutor(newTestRegistry(), NewEventBus(), nil, DefaultRestartConfig())
	outcome, err := runWithTimeout(t, ex, "run-6", input)
	require.Error(t, err)
	assert.Equal(t, StatusSkipped, outcome.Results["b"].Status)
	assert.Equal(t, StatusSkipped, outcome.Results["c"].Status)
}

func TestExecutor_RestartSignalBoundedByMaxRestarts(t *testing.T) {
	reg := newTestRegistry()
	attempts := 0
	reg.Register(&echoHandler{typ: "restarter", fn: func(map[string]Delivery) Payload {
		attempts++
		return Payload{Status: StatusFailure, Error: "needs restart"}
	}})
	input := RunInput{
		Nodes: []Node{{ID: "s", Type: "start"}, {ID: "a", Type: "restarter"}, {ID: "b", Type: "ok"}},
		Edges: []Edge{
			{ID: "e0", Source: "s", Target: "a"},
			{ID: "e1", Source: "a", Target: "b", Data: map[string]any{"loop_restart": true}},
		},
	}
	ex := NewExecutor(reg, NewEventBus(), nil, RestartConfig{MaxRestarts: 2})
	_, err := runWithTimeout(t, ex, "run-7", input)
	require.Error(t, err)
	assert.Equal(t, 3, attempts) // initial + 2 restarts
}

func TestEventBus_DropsOnFullBufferWithoutBlocking(t *testing.T) {
	bus := NewEventBus()
	_, ch := bus.Subscribe()
	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Broadcast(NewNodeLogEvent("r", "n", "chunk", "stdout"))
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestEdgeBehavior_Priority(t *testing.T) {
	e := Edge{SourceHandle: "on_error"}
	assert.Equal(t, BehaviorFailure, e.Behavior())

	e2 := Edge{SourceHandle: "on_error", Data: map[string]any{"behavior": "always"}}
	assert.Equal(t, BehaviorAlways, e2.Behavior())

	e3 := Edge{SourceHandle: "out"}
	assert.Equal(t, BehaviorConditional, e3.Behavior())
}

func TestBuildGraph_FiltersConfigNodesAndHandles(t *testing.T) {
	input := RunInput{
		Nodes: []Node{
			{ID: "a", Type: "start"},
			{ID: "v", Type: "vault"},
			{ID: "b", Type: "ok"},
		},
		Edges: []Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "v", Target: "b", SourceHandle: "config"},
		},
	}
	g := BuildGraph(input, DefaultFilterOptions())
	assert.Nil(t, g.Node("v"))
	assert.Equal(t, 1, g.Indegree("b"))
}
