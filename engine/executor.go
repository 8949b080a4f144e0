// ABOUTME: Executor is the push-based dataflow scheduler: one goroutine per
// ABOUTME: node, an inbox of Deliveries per node, ALL/ANY join strategies,
// ABOUTME: SKIP propagation, and crash rehydration from a RunStore.
// ABOUTME: Grounded on the Python original's AsyncGraphExecutor
// ABOUTME: (backend/engine/async_runner.py), with event/restart/panic idioms
// ABOUTME: ported from attractor/engine.go.
package engine

import (
	"context"
	"fmt"
	"sync"
)

// statusRunning is a transient node_status value, never stored as a
// NodeResult's final Status.
const statusRunning Status = "running"

// completion is a broadcastable "this node is done" signal: the channel is
// closed exactly once so any number of children can observe it without
// consuming a value, which is how Go stands in for Python's reusable
// asyncio.Future.
type completion struct {
	done   chan struct{}
	result Payload
}

func newCompletion() *completion {
	return &completion{done: make(chan struct{})}
}

func (c *completion) finish(p Payload) {
	c.result = p
	close(c.done)
}

// Executor runs one Graph to completion, or until cancelled, or until a
// RestartSignal unwinds it.
type Executor struct {
	registry *HandlerRegistry
	bus      *EventBus
	store    RunStore
	restart  RestartConfig
}

// NewExecutor wires a registry, event bus, and run store together. store
// may be nil, in which case no crash-recovery or durable logging occurs
// (useful for validation-only dry runs).
func NewExecutor(registry *HandlerRegistry, bus *EventBus, store RunStore, restart RestartConfig) *Executor {
	return &Executor{registry: registry, bus: bus, store: store, restart: restart}
}

// RunOutcome summarizes a finished Run call.
type RunOutcome struct {
	RunID     string
	Status    Status
	Results   map[string]Payload
	Restarted int
}

// Run executes input's graph under runID, transparently retrying via
// RestartSignal up to restart.MaxRestarts times.
func (ex *Executor) Run(ctx context.Context, runID string, input RunInput) (RunOutcome, error) {
	attempts := 0
	for {
		outcome, err := ex.runOnce(ctx, runID, input)
		var rs *RestartSignal
		if asRestartSignal(err, &rs) {
			attempts++
			if attempts > ex.restart.MaxRestarts {
				return outcome, fmt.Errorf("exceeded max restarts (%d): %w", ex.restart.MaxRestarts, err)
			}
			ex.emit(NewInterruptEvent(runID, rs.TargetNode, runID, fmt.Sprintf("restart attempt %d", attempts)))
			continue
		}
		outcome.Restarted = attempts
		return outcome, err
	}
}

func asRestartSignal(err error, target **RestartSignal) bool {
	if err == nil {
		return false
	}
	rs, ok := err.(*RestartSignal)
	if ok {
		*target = rs
	}
	return ok
}

func (ex *Executor) emit(ev Event) {
	if ex.bus != nil {
		ex.bus.Broadcast(ev)
	}
	if ex.store != nil {
		_ = ex.store.AppendEvent(context.Background(), ev)
	}
}

// ErrNoStartNode is returned by runOnce when the graph has no trigger node
// to seed execution from, per the startup check the Python original's
// AsyncGraphExecutor performs before spawning anything.
var ErrNoStartNode = fmt.Errorf("No valid start node found.")

// runOnce performs a single, non-restarting pass over the graph.
func (ex *Executor) runOnce(ctx context.Context, runID string, input RunInput) (RunOutcome, error) {
	graph := BuildGraph(input, DefaultFilterOptions())

	if len(graph.TriggerNodes()) == 0 {
		if ex.store != nil {
			_ = ex.store.MarkRunStatus(ctx, runID, string(StatusFailure))
		}
		return RunOutcome{RunID: runID, Status: StatusFailure}, ErrNoStartNode
	}

	prior := map[string]NodeResult{}
	if ex.store != nil {
		if loaded, err := ex.store.LoadResults(ctx, runID); err == nil {
			prior = loaded
		}
	}

	rt := &runtime{
		ex:          ex,
		graph:       graph,
		runID:       runID,
		secrets:     input.Secrets,
		state:       NewRunState(),
		completions: make(map[string]*completion),
		inboxes:     make(map[string]chan Delivery),
		results:     make(map[string]Payload),
	}

	for i := range graph.Nodes {
		id := graph.Nodes[i].ID
		rt.completions[id] = newCompletion()
		rt.inboxes[id] = make(chan Delivery, maxIndegree(graph, id))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, len(graph.Nodes))
	var stopOnce sync.Once
	var stopErr error

	for i := range graph.Nodes {
		node := &graph.Nodes[i]
		wg.Add(1)
		go func(node *Node) {
			defer wg.Done()
			if err := rt.runNode(runCtx, node, prior); err != nil {
				switch err.(type) {
				case *RestartSignal, *StopSignal:
					stopOnce.Do(func() { stopErr = err; cancel() })
				default:
					errCh <- err
				}
			}
		}(node)
	}

	wg.Wait()
	close(errCh)

	if stopErr != nil {
		return RunOutcome{RunID: runID, Status: StatusFailure}, stopErr
	}

	var firstErr error
	for err := range errCh {
		if firstErr == nil {
			firstErr = err
		}
	}

	rt.mu.Lock()
	results := rt.results
	rt.mu.Unlock()

	status := StatusSuccess
	if firstErr != nil {
		status = StatusFailure
	}
	if ex.store != nil {
		_ = ex.store.MarkRunStatus(ctx, runID, string(status))
	}

	return RunOutcome{RunID: runID, Status: status, Results: results}, firstErr
}

func maxIndegree(g *Graph, id string) int {
	n := g.Indegree(id)
	if n < 1 {
		return 1
	}
	return n
}

// runtime holds the mutable state of one runOnce call.
type runtime struct {
	ex          *Executor
	graph       *Graph
	runID       string
	secrets     Secrets
	state       *RunState
	completions map[string]*completion
	inboxes     map[string]chan Delivery

	mu      sync.Mutex
	results map[string]Payload
}

// runNode waits for this node's joined inputs, executes it (unless already
// recorded as done in a prior attempt), and fans its outcome out to
// children via their inboxes and this node's completion signal.
func (rt *runtime) runNode(ctx context.Context, node *Node, prior map[string]NodeResult) error {
	handler, err := rt.ex.registry.Resolve(node)
	if err != nil {
		return rt.finishFailure(ctx, node, err)
	}

	parentCount := rt.graph.Indegree(node.ID)
	inputs, skip, err := rt.collectInputs(ctx, node, handler, parentCount)
	if err != nil {
		return err
	}
	if skip {
		return rt.finishSkip(ctx, node)
	}

	if prev, ok := prior[node.ID]; ok && prev.Status == StatusSuccess {
		return rt.finishPayload(ctx, node, prev.Payload)
	}

	v := handler.Validate(node)
	if v.HasCritical() {
		err := &ValidationError{NodeID: node.ID, Severity: "CRITICAL", Message: firstMessage(v.Errors)}
		return rt.finishFailure(ctx, node, err)
	}

	rt.ex.emit(NewNodeStatusEvent(rt.runID, node.ID, statusRunning))

	payload, execErr := rt.safeExecute(ctx, handler, node, inputs)
	if execErr != nil {
		switch execErr.(type) {
		case *RestartSignal, *StopSignal:
			return execErr
		}
		return rt.finishFailure(ctx, node, execErr)
	}

	if rt.ex.store != nil {
		_ = rt.ex.store.RecordResult(ctx, rt.runID, NodeResult{NodeID: node.ID, Status: payload.Status, Payload: payload})
	}

	rt.ex.emit(NewNodeStatusEvent(rt.runID, node.ID, payload.Status))

	if err := rt.finishPayload(ctx, node, payload); err != nil {
		return err
	}
	if payload.Status == StatusFailure {
		return &RuntimeFailure{NodeID: node.ID, Err: fmt.Errorf("%s", payload.Error)}
	}
	return nil
}

// safeExecute wraps a handler's Execute in panic recovery, mirroring
// attractor.Engine's safeExecute.
func (rt *runtime) safeExecute(ctx context.Context, handler NodeHandler, node *Node, inputs map[string]Delivery) (payload Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RuntimeFailure{NodeID: node.ID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	rc := &RuntimeContext{
		RunID:   rt.runID,
		NodeID:  node.ID,
		Secrets: rt.secrets,
		Emit:    rt.ex.emit,
		State:   rt.state,
	}

	p, err := handler.Execute(ctx, node, inputs, rc)
	if err != nil {
		if ctx.Err() != nil {
			return Payload{}, &ExecutionCancelled{NodeID: node.ID}
		}
		switch err.(type) {
		case *RestartSignal, *StopSignal:
			return Payload{}, err
		}
		var rf *RuntimeFailure
		if !asRuntimeFailure(err, &rf) {
			return Payload{Status: StatusFailure, Error: err.Error()}, nil
		}
		return Payload{}, err
	}
	return p, nil
}

func asRuntimeFailure(err error, target **RuntimeFailure) bool {
	rf, ok := err.(*RuntimeFailure)
	if ok {
		*target = rf
	}
	return ok
}

// collectInputs blocks until this node's join strategy is satisfied. ANY
// returns as soon as one non-SKIP delivery arrives; otherwise it waits for
// every parent. It returns skip=true when every parent routed SKIP, under
// either strategy — the Python original's SKIP_BRANCH propagation.
func (rt *runtime) collectInputs(ctx context.Context, node *Node, handler NodeHandler, parentCount int) (map[string]Delivery, bool, error) {
	if parentCount == 0 {
		return map[string]Delivery{}, false, nil
	}

	parents := rt.parentsOf(node.ID)
	strategy := handler.WaitFor(node, parentCount)
	inbox := rt.inboxes[node.ID]

	inputs := make(map[string]Delivery, parentCount)
	received := 0
	nonSkip := 0

	for received < parentCount {
		select {
		case <-ctx.Done():
			return nil, false, &ExecutionCancelled{NodeID: node.ID}
		case d := <-inbox:
			received++
			idx := received - 1
			pid := ""
			if idx < len(parents) {
				pid = parents[idx]
			}
			inputs[pid] = d
			if !d.IsSkip() {
				nonSkip++
				if strategy == WaitAny {
					return inputs, false, nil
				}
			}
		}
	}

	if nonSkip == 0 {
		return inputs, true, nil
	}
	return inputs, false, nil
}

// parentsOf returns the ids of node ids's parents, in graph declaration
// order, used only to label which inbox delivery came from which parent.
func (rt *runtime) parentsOf(id string) []string {
	var parents []string
	for _, e := range rt.graph.Edges {
		if e.Target == id {
			parents = append(parents, e.Source)
		}
	}
	return parents
}

func (rt *runtime) finishPayload(ctx context.Context, node *Node, payload Payload) error {
	rt.mu.Lock()
	rt.results[node.ID] = payload
	rt.mu.Unlock()
	rt.completions[node.ID].finish(payload)
	return rt.route(ctx, node, payload)
}

func (rt *runtime) finishSkip(ctx context.Context, node *Node) error {
	payload := Payload{Status: StatusSkipped}
	rt.mu.Lock()
	rt.results[node.ID] = payload
	rt.mu.Unlock()
	rt.completions[node.ID].finish(payload)
	rt.ex.emit(NewNodeStatusEvent(rt.runID, node.ID, StatusSkipped))
	return rt.routeSkip(ctx, node)
}

func (rt *runtime) finishFailure(ctx context.Context, node *Node, err error) error {
	payload := Payload{Status: StatusFailure, Error: err.Error()}
	rt.mu.Lock()
	rt.results[node.ID] = payload
	rt.mu.Unlock()
	rt.completions[node.ID].finish(payload)
	rt.ex.emit(NewNodeStatusEvent(rt.runID, node.ID, StatusFailure))
	if rt.ex.store != nil {
		_ = rt.ex.store.RecordResult(ctx, rt.runID, NodeResult{NodeID: node.ID, Status: StatusFailure, Payload: payload})
	}
	if routeErr := rt.route(ctx, node, payload); routeErr != nil {
		switch routeErr.(type) {
		case *RestartSignal, *StopSignal:
			return routeErr
		}
	}
	return err
}

// route delivers node's payload to each child according to the outgoing
// edge's resolved behavior: conditional edges fire only on success, failure
// edges only on failure, always edges regardless. Children that don't
// receive a delivery for this parent get SKIP instead, so their join never
// blocks forever.
func (rt *runtime) route(ctx context.Context, node *Node, payload Payload) error {
	for _, e := range rt.graph.OutgoingEdges(node.ID) {
		if e.HasLoopRestart() && payload.Status == StatusFailure {
			return &RestartSignal{TargetNode: e.Target}
		}
		deliver := edgeFires(e.Behavior(), payload.Status)
		rt.send(ctx, e.Target, deliverOrSkip(deliver, payload))
	}
	return nil
}

func (rt *runtime) routeSkip(ctx context.Context, node *Node) error {
	for _, e := range rt.graph.OutgoingEdges(node.ID) {
		rt.send(ctx, e.Target, SkipDelivery())
	}
	return nil
}

func edgeFires(behavior EdgeBehavior, status Status) bool {
	switch behavior {
	case BehaviorAlways:
		return true
	case BehaviorFailure:
		return status == StatusFailure
	default: // conditional
		return status == StatusSuccess
	}
}

func deliverOrSkip(fire bool, payload Payload) Delivery {
	if fire {
		return OkDelivery(payload)
	}
	return SkipDelivery()
}

func (rt *runtime) send(ctx context.Context, targetID string, d Delivery) {
	inbox, ok := rt.inboxes[targetID]
	if !ok {
		return
	}
	select {
	case inbox <- d:
	case <-ctx.Done():
	}
}

func firstMessage(errs []ValidationError) string {
	if len(errs) == 0 {
		return "validation failed"
	}
	return errs[0].Message
}
