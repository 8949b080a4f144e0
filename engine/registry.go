// ABOUTME: HandlerRegistry resolves a Node to its NodeHandler. Ported from
// ABOUTME: attractor/handlers.go's HandlerRegistry: explicit type match,
// ABOUTME: then a shape heuristic, then a configured default.
package engine

import "fmt"

// HandlerRegistry maps node-type strings to the NodeHandler that implements
// them. Go has no safe dynamic-import equivalent to the Python original's
// importlib-based plugin loader, so this table is always compiled in; the
// registry package layers a manifest-directory scan on top purely for
// metadata validation.
type HandlerRegistry struct {
	handlers map[string]NodeHandler
	fallback string
}

// NewHandlerRegistry returns an empty registry. fallback names the handler
// type used by Resolve when a node's declared type matches nothing and no
// shape heuristic applies; pass "" to require an exact or heuristic match.
func NewHandlerRegistry(fallback string) *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]NodeHandler), fallback: fallback}
}

// Register adds h under h.Type(), overwriting any previous registration for
// that type.
func (r *HandlerRegistry) Register(h NodeHandler) {
	r.handlers[h.Type()] = h
}

// Get returns the handler registered for typ, if any.
func (r *HandlerRegistry) Get(typ string) (NodeHandler, bool) {
	h, ok := r.handlers[typ]
	return h, ok
}

// Types returns every registered node-type string, for manifest
// cross-checking and /system/info reporting.
func (r *HandlerRegistry) Types() []string {
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}

// Resolve finds the handler for a node using explicit-type match first,
// then a data-shape heuristic (a node carrying a "command" field is a
// Command node even if mistyped), then the configured fallback.
func (r *HandlerRegistry) Resolve(node *Node) (NodeHandler, error) {
	if h, ok := r.handlers[node.Type]; ok {
		return h, nil
	}
	if typ := shapeToType(node); typ != "" {
		if h, ok := r.handlers[typ]; ok {
			return h, nil
		}
	}
	if r.fallback != "" {
		if h, ok := r.handlers[r.fallback]; ok {
			return h, nil
		}
	}
	return nil, fmt.Errorf("no handler for node %s (type %q)", node.ID, node.Type)
}

// shapeToType applies attractor's heuristic: infer a node's intended type
// from the shape of its data when the declared type is unregistered.
func shapeToType(node *Node) string {
	if node.Data == nil {
		return ""
	}
	if _, ok := node.Data["command"]; ok {
		return "command"
	}
	if _, ok := node.Data["system_prompt"]; ok {
		return "react_agent"
	}
	if _, ok := node.Data["tool_id"]; ok {
		return "tool_provider"
	}
	if _, ok := node.Data["discriminator"]; ok {
		return "or_merge"
	}
	return ""
}
