package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowxcore/engine/engine"
	_ "github.com/flowxcore/engine/nodes" // registers start/command/... node types
	"github.com/flowxcore/engine/registry"
	"github.com/flowxcore/engine/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg, warnings := registry.Build(t.TempDir())
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	workflows := store.NewInMemoryWorkflowRepository()
	return NewServer(reg, st, workflows, engine.DefaultRestartConfig(), warnings)
}

func TestHandleExecute_RejectsGraphWithNoTriggerNode(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(map[string]any{
		"nodes": []map[string]any{{"id": "n1", "type": "command", "data": map[string]any{"command": "echo hi"}}},
		"edges": []map[string]any{},
	})

	req := httptest.NewRequest("POST", "/api/v1/workflow/execute", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.handleExecute(w, req)

	require.Equal(t, 400, w.Code)
	var resp engine.GraphValidation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.HasCritical())
}

func TestHandleExecute_RunsValidGraphSynchronouslyAndReturnsThreadID(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(map[string]any{
		"nodes": []map[string]any{
			{"id": "start", "type": "start", "data": map[string]any{}},
			{"id": "cmd", "type": "command", "data": map[string]any{"command": "echo hi"}},
		},
		"edges": []map[string]any{{"source": "start", "target": "cmd"}},
	})

	req := httptest.NewRequest("POST", "/api/v1/workflow/execute", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.handleExecute(w, req)

	require.Equal(t, 200, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["thread_id"])
	require.Contains(t, []any{"completed", "failed"}, resp["status"])
	require.Contains(t, resp, "logs")
	require.Contains(t, resp, "results")
}

// handleCancel reads its run id via chi's URL param, so these two tests go
// through the router rather than calling the handler directly.

func TestHandleCancel_IgnoredForUnknownRun(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("POST", "/api/v1/workflow/cancel/does-not-exist", nil)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "ignored", resp["status"])
}

func TestHandleCancel_SuccessForActiveRun(t *testing.T) {
	s := newTestServer(t)
	cancelled := false
	s.registerRun("run-1", func() { cancelled = true }, engine.NewEventBus())

	req := httptest.NewRequest("POST", "/api/v1/workflow/cancel/run-1", nil)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "success", resp["status"])
	require.True(t, cancelled)
}
