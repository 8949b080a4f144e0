// ABOUTME: The three websocket endpoints: /ws/workflow streams run events,
// ABOUTME: /ws/terminal pipes an interactive PTY session, /ws is a bare
// ABOUTME: keep-alive. gorilla/websocket is promoted from the teacher's
// ABOUTME: transitive dependency to a direct one because SSE (the
// ABOUTME: teacher's own choice in attractor/server.go) cannot carry
// ABOUTME: /ws/terminal's bidirectional keystroke traffic.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flowxcore/engine/pty"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const pingInterval = 25 * time.Second

// handleWorkflowSocket streams a run's events as they're broadcast. The
// client supplies run_id as a query parameter.
func (s *Server) handleWorkflowSocket(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	run, ok := s.lookupRun(runID)
	if !ok {
		http.Error(w, "run not active", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	subID, events := run.bus.Subscribe()
	defer run.bus.Unsubscribe(subID)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev.Frame()); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleTerminalSocket spawns an interactive PTY session and pipes its
// output to the socket while forwarding incoming keystroke/resize frames.
func (s *Server) handleTerminalSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	cols, rows := pty.DefaultSize()
	session, err := pty.NewSession("/bin/bash", cols, rows)
	if err != nil {
		_ = conn.WriteJSON(map[string]any{"error": err.Error()})
		return
	}
	defer session.Close()

	done := make(chan struct{})
	go pumpSessionOutput(conn, session, done)

	for {
		var frame terminalFrame
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		switch frame.Type {
		case "input":
			_, _ = session.Write([]byte(frame.Data))
		case "resize":
			_ = session.Resize(frame.Cols, frame.Rows)
		}
	}
	<-done
}

type terminalFrame struct {
	Type string `json:"type"` // "input" or "resize"
	Data string `json:"data,omitempty"`
	Cols uint16 `json:"cols,omitempty"`
	Rows uint16 `json:"rows,omitempty"`
}

func pumpSessionOutput(conn *websocket.Conn, session *pty.Session, done chan<- struct{}) {
	defer close(done)
	buf := make([]byte, 4096)
	for {
		n, err := session.Read(buf)
		if n > 0 {
			if werr := conn.WriteJSON(terminalFrame{Type: "output", Data: string(buf[:n])}); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// handleKeepAliveSocket is a bare connectivity check clients can hold open
// to detect daemon restarts without subscribing to any particular run.
func (s *Server) handleKeepAliveSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for range ticker.C {
		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			return
		}
	}
}
