// ABOUTME: Event is the wire shape streamed to /ws/workflow subscribers and
// ABOUTME: appended to the run store's event log: exactly three kinds, each
// ABOUTME: carrying a small, fixed data shape.
package engine

import "time"

type EventType string

const (
	// EventNodeStatus reports a node's lifecycle transition: running,
	// success, failure, or skipped.
	EventNodeStatus EventType = "node_status"
	// EventNodeLog carries one chunk of a node's output (command stdout,
	// agent reasoning text) for live display.
	EventNodeLog EventType = "node_log"
	// EventInterrupt marks a break in the run's normal flow: an
	// agent-issued restart/stop control signal, or a restart attempt.
	EventInterrupt EventType = "interrupt"
)

// Event is a single point-in-time fact about a run, broadcast on the
// EventBus and appended to the JSONL event log. RunID/NodeID/Timestamp are
// bookkeeping for the store and run registry; only Type and Data cross the
// wire to a websocket subscriber, via Frame.
type Event struct {
	Type      EventType
	RunID     string
	NodeID    string
	Timestamp time.Time
	Data      map[string]any
}

// Frame is the exact shape streamed over /ws/workflow: {"type":..,"data":..}.
func (e Event) Frame() map[string]any {
	return map[string]any{"type": e.Type, "data": e.Data}
}

// NewNodeStatusEvent reports a node's lifecycle transition.
func NewNodeStatusEvent(runID, nodeID string, status Status) Event {
	return Event{
		Type:      EventNodeStatus,
		RunID:     runID,
		NodeID:    nodeID,
		Timestamp: time.Now(),
		Data:      map[string]any{"nodeId": nodeID, "status": string(status)},
	}
}

// NewNodeLogEvent carries one chunk of a node's streamed output. logType is
// a short tag such as "stdout", "stderr", or "info".
func NewNodeLogEvent(runID, nodeID, log, logType string) Event {
	return Event{
		Type:      EventNodeLog,
		RunID:     runID,
		NodeID:    nodeID,
		Timestamp: time.Now(),
		Data:      map[string]any{"nodeId": nodeID, "log": log, "type": logType},
	}
}

// NewInterruptEvent marks a break in the run's normal flow: an
// agent-requested restart or stop, or a restart attempt. threadID is the
// run id a client resumes against.
func NewInterruptEvent(runID, nodeID, threadID, reason string) Event {
	return Event{
		Type:      EventInterrupt,
		RunID:     runID,
		NodeID:    nodeID,
		Timestamp: time.Now(),
		Data:      map[string]any{"nodeId": nodeID, "thread_id": threadID, "reason": reason},
	}
}
