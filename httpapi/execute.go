// ABOUTME: Validate/execute/cancel/resume handlers — the run lifecycle
// ABOUTME: surface described by spec.md §6: execute and resume carry the
// ABOUTME: graph in the body, validate strictly, and run to completion
// ABOUTME: synchronously rather than handing back a run id to poll.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/flowxcore/engine/engine"
)

type secretsField struct {
	SudoPassword string `json:"sudo_password,omitempty"`
}

type executeRequest struct {
	Nodes        []engine.Node `json:"nodes"`
	Edges        []engine.Edge `json:"edges"`
	SudoPassword string        `json:"sudo_password,omitempty"`
	Secrets      *secretsField `json:"secrets,omitempty"`
}

// sudoPassword accepts either the top-level sudo_password shorthand or the
// nested secrets.sudo_password form spec.md §6 allows.
func (r executeRequest) sudoPassword() string {
	if r.SudoPassword != "" {
		return r.SudoPassword
	}
	if r.Secrets != nil {
		return r.Secrets.SudoPassword
	}
	return ""
}

// handleValidate implements POST /workflow/validate: pre-flight check over
// the BFS-reachable subgraph from the trigger node(s), never executing
// anything.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	graph := engine.BuildGraph(engine.RunInput{Nodes: req.Nodes, Edges: req.Edges}, engine.DefaultFilterOptions())
	result := engine.ValidateGraph(graph, s.registry)
	writeJSON(w, http.StatusOK, result)
}

// handleExecute implements POST /api/v1/workflow/execute: the graph travels
// in the request body (this is not a lookup by stored workflow id), a
// CRITICAL validation error rejects the run before anything executes, and
// the whole run completes synchronously before the handler responds.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	graph := engine.BuildGraph(engine.RunInput{Nodes: req.Nodes, Edges: req.Edges}, engine.DefaultFilterOptions())
	validation := engine.ValidateGraph(graph, s.registry)
	if validation.HasCritical() {
		writeJSON(w, http.StatusBadRequest, validation)
		return
	}

	runID := ulid.Make().String()
	input := engine.RunInput{
		Nodes:   req.Nodes,
		Edges:   req.Edges,
		Secrets: engine.Secrets{SudoPassword: req.sudoPassword()},
	}

	outcome, logs, err := s.runToCompletion(r.Context(), runID, input, nil)
	if err != nil && outcome.RunID == "" {
		writeError(w, http.StatusConflict, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"thread_id": runID,
		"status":    runStatusString(outcome.Status),
		"logs":      logs,
		"results":   outcome.Results,
	})
}

// handleCancel implements POST /api/v1/workflow/cancel/{thread_id}.
// Idempotent by construction: a run already gone (finished, never existed,
// or cancelled twice) is "ignored" rather than a 404, matching spec.md §4.C
// invariant 6 (every cancel/execute after the first is idempotent).
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "thread_id")
	run, ok := s.lookupRun(runID)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}
	run.cancel()
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

// handleResume implements POST /api/v1/workflow/resume/{thread_id}: loads
// the named workflow, lets the executor's own LoadResults rehydrate the
// completed-only snapshot for thread_id (a crash and an operator-initiated
// resume look identical to the executor), and returns the same response
// shape as execute.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "thread_id")

	var req struct {
		WorkflowID string        `json:"workflowId"`
		Secrets    *secretsField `json:"secrets,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil || req.WorkflowID == "" {
		writeError(w, http.StatusBadRequest, errMissingWorkflowID())
		return
	}

	wf, err := s.workflows.Get(r.Context(), req.WorkflowID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	var sudoPassword string
	if req.Secrets != nil {
		sudoPassword = req.Secrets.SudoPassword
	}
	input := engine.RunInput{
		Nodes:   wf.Nodes,
		Edges:   wf.Edges,
		Secrets: engine.Secrets{SudoPassword: sudoPassword},
	}

	outcome, logs, runErr := s.runToCompletion(r.Context(), runID, input, func(bus *engine.EventBus) {
		bus.Broadcast(engine.Event{
			Type:      engine.EventNodeStatus,
			RunID:     runID,
			NodeID:    "system",
			Timestamp: time.Now(),
			Data:      map[string]any{"nodeId": "system", "status": "resuming"},
		})
	})
	if runErr != nil && outcome.RunID == "" {
		writeError(w, http.StatusConflict, runErr)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"thread_id": runID,
		"status":    runStatusString(outcome.Status),
		"logs":      logs,
		"results":   outcome.Results,
	})
}

func runStatusString(status engine.Status) string {
	if status == engine.StatusSuccess {
		return "completed"
	}
	return "failed"
}

// runToCompletion registers runID in the active-run registry (so
// /ws/workflow and a concurrent cancel can find it), drains its event bus
// into logs for the duration of the run, and blocks until the executor
// returns. A nil outcome.RunID (with a non-nil error) means the run never
// started because runID was already active; any other error is a node
// failure already reflected in outcome.Status, not a transport failure.
func (s *Server) runToCompletion(ctx context.Context, runID string, input engine.RunInput, preRun func(*engine.EventBus)) (engine.RunOutcome, []map[string]any, error) {
	bus := engine.NewEventBus()
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !s.registerRun(runID, cancel, bus) {
		return engine.RunOutcome{}, nil, errAlreadyRunning(runID)
	}
	defer s.unregisterRun(runID)

	subID, events := bus.Subscribe()
	var logs []map[string]any
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range events {
			logs = append(logs, ev.Frame())
		}
	}()

	if preRun != nil {
		preRun(bus)
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	ex := engine.NewExecutor(s.registry, bus, s.store, s.restart)
	outcome, err := ex.Run(runCtx, runID, input)

	bus.Unsubscribe(subID)
	<-drained

	return outcome, logs, err
}
