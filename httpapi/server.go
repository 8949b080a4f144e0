// ABOUTME: Server wires the chi router, active-run registry, and event bus
// ABOUTME: into the HTTP/websocket surface described by spec.md §7.
// ABOUTME: Route naming and run-registry double-start guard are grounded
// ABOUTME: on attractor/server.go's PipelineServer and
// ABOUTME: spec/server/app_state.go's AppState.TryStartAgents pattern.
package httpapi

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flowxcore/engine/engine"
	"github.com/flowxcore/engine/fingerprint"
	"github.com/flowxcore/engine/registry"
	"github.com/flowxcore/engine/store"
)

// activeRun tracks one in-flight execution so /api/v1/workflow/cancel/{thread_id}
// and the event-stream socket can find it.
type activeRun struct {
	cancel context.CancelFunc
	bus    *engine.EventBus
}

// Server holds every dependency the HTTP surface needs.
type Server struct {
	Router chi.Router

	registry  *engine.HandlerRegistry
	store     *store.SQLiteJSONLStore
	workflows store.WorkflowRepository
	restart   engine.RestartConfig
	prober    fingerprint.Prober

	mu   sync.Mutex
	runs map[string]*activeRun
}

// NewServer builds the router and registers every route. manifestWarnings
// (from registry.Build) are reported by /system/info for operator visibility;
// GET /system-info is the distinct spec-mandated host fingerprint endpoint.
func NewServer(reg *engine.HandlerRegistry, st *store.SQLiteJSONLStore, workflows store.WorkflowRepository, restart engine.RestartConfig, manifestWarnings []registry.Warning) *Server {
	s := &Server{
		registry:  reg,
		store:     st,
		workflows: workflows,
		restart:   restart,
		prober:    fingerprint.Local{},
		runs:      make(map[string]*activeRun),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/system/info", s.handleSystemInfo(manifestWarnings))
	r.Get("/system-info", s.handleHostFingerprint)

	r.Route("/workflows", func(wr chi.Router) {
		wr.Get("/", s.handleListWorkflows)
		wr.Post("/", s.handleSaveWorkflow)
		wr.Get("/{id}", s.handleGetWorkflow)
		wr.Delete("/{id}", s.handleDeleteWorkflow)
		wr.Get("/{id}/events", s.handleEventHistory)
	})

	r.Post("/workflow/validate", s.handleValidate)

	r.Route("/api/v1/workflow", func(wr chi.Router) {
		wr.Post("/execute", s.handleExecute)
		wr.Post("/cancel/{thread_id}", s.handleCancel)
		wr.Post("/resume/{thread_id}", s.handleResume)
	})

	r.Get("/ws/workflow", s.handleWorkflowSocket)
	r.Get("/ws/terminal", s.handleTerminalSocket)
	r.Get("/ws", s.handleKeepAliveSocket)

	registry.MountAll(r)

	s.Router = r
	return s
}

// handleHostFingerprint implements GET /system-info.
func (s *Server) handleHostFingerprint(w http.ResponseWriter, r *http.Request) {
	fp, err := s.prober.Probe(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, fp)
}

func (s *Server) handleSystemInfo(warnings []registry.Warning) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"node_types":        s.registry.Types(),
			"max_restarts":      s.restart.MaxRestarts,
			"manifest_warnings": warnings,
		})
	}
}

func (s *Server) registerRun(runID string, cancel context.CancelFunc, bus *engine.EventBus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[runID]; exists {
		return false
	}
	s.runs[runID] = &activeRun{cancel: cancel, bus: bus}
	return true
}

func (s *Server) unregisterRun(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
}

func (s *Server) lookupRun(runID string) (*activeRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	return run, ok
}
