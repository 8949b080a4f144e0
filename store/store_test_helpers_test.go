package store

import "github.com/flowxcore/engine/engine"

func nodeResultFixture(nodeID string) engine.NodeResult {
	return engine.NodeResult{
		NodeID:  nodeID,
		Status:  engine.StatusSuccess,
		Payload: engine.Payload{Status: engine.StatusSuccess, Data: map[string]any{"ok": true}},
	}
}
