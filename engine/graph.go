// ABOUTME: Graph data model — Nodes, Edges, and the configuration-handle filtering invariant.
// ABOUTME: Mirrors the JSON wire shape produced by the graph editor front-end.
package engine

// Node is a single addressable unit of work in a workflow graph.
type Node struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// EdgeBehavior selects when an edge delivers its source's payload downstream.
type EdgeBehavior string

const (
	BehaviorConditional EdgeBehavior = "conditional"
	BehaviorFailure      EdgeBehavior = "failure"
	BehaviorAlways        EdgeBehavior = "always"
)

// Edge connects two nodes. SourceHandle optionally names the output port the
// edge is attached to; Data carries edge-level configuration such as
// "behavior" and "loop_restart".
type Edge struct {
	ID            string         `json:"id"`
	Source        string         `json:"source"`
	Target        string         `json:"target"`
	SourceHandle  string         `json:"sourceHandle,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
}

// Behavior resolves the edge's routing behavior using the priority order:
// explicit edge.Data["behavior"] if recognized, else a handle-name heuristic,
// else the default "conditional". The heuristic set is fixed and documented
// here rather than left open, per spec.md §9's open question: a handle name
// containing "fail" or "error" means failure; one containing "always",
// "force", or "fallback" means always.
func (e *Edge) Behavior() EdgeBehavior {
	if e.Data != nil {
		if raw, ok := e.Data["behavior"]; ok {
			if s, ok := raw.(string); ok {
				switch EdgeBehavior(s) {
				case BehaviorConditional, BehaviorFailure, BehaviorAlways:
					return EdgeBehavior(s)
				case "force":
					return BehaviorAlways
				}
			}
		}
	}

	handle := e.SourceHandle
	if containsAny(handle, "fail", "error") {
		return BehaviorFailure
	}
	if containsAny(handle, "always", "force", "fallback") {
		return BehaviorAlways
	}
	return BehaviorConditional
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if len(sub) > 0 && indexFold(s, sub) >= 0 {
			return true
		}
	}
	return false
}

// indexFold is a tiny case-insensitive substring search so the handle-name
// heuristic doesn't care about "Fail" vs "fail" authored in the editor.
func indexFold(s, sub string) int {
	ls, lsub := toLower(s), toLower(sub)
	n, m := len(ls), len(lsub)
	if m == 0 || m > n {
		if m == 0 {
			return 0
		}
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if ls[i:i+m] == lsub {
			return i
		}
	}
	return -1
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// HasLoopRestart reports whether the edge is marked to trigger a bounded
// full-executor restart instead of a normal delivery.
func (e *Edge) HasLoopRestart() bool {
	if e.Data == nil {
		return false
	}
	v, _ := e.Data["loop_restart"].(bool)
	return v
}

// Secrets bundles values that must never reach the run store or event bus:
// sudo credentials and any per-run API keys. Only ever copied into a
// per-node Context, never serialized.
type Secrets struct {
	SudoPassword string
	Extra        map[string]string
}

// RunInput is the request body accepted by the executor: the graph plus
// optional secrets for this run.
type RunInput struct {
	Nodes   []Node
	Edges   []Edge
	Secrets Secrets
}

// Graph is the filtered, execution-ready view of a RunInput: configuration-only
// nodes and edges have been removed per the filtering invariant (spec.md §3).
type Graph struct {
	Nodes []Node
	Edges []Edge

	byID     map[string]*Node
	children map[string][]*Edge // source id -> outgoing edges
	indegree map[string]int
}

// FilterOptions names the configuration-handle and configuration-node-type
// sets that are stripped before execution. These carry static capability
// wiring only (e.g. tool-provider -> agent grants) and never participate in
// dataflow.
type FilterOptions struct {
	ConfigHandles  map[string]bool
	ConfigNodeType map[string]bool
}

// DefaultFilterOptions returns the configuration sets used when none are
// supplied explicitly: the "config" handle name and the exact node types
// "vault" and "config" (vault / settings nodes in the editor).
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{
		ConfigHandles:  map[string]bool{"config": true},
		ConfigNodeType: map[string]bool{"vault": true, "config": true},
	}
}

// BuildGraph applies the filtering invariant and indexes the result for
// O(1) node lookup, child traversal, and indegree queries.
func BuildGraph(input RunInput, opts FilterOptions) *Graph {
	g := &Graph{
		byID:     make(map[string]*Node),
		children: make(map[string][]*Edge),
		indegree: make(map[string]int),
	}

	for i := range input.Nodes {
		n := input.Nodes[i]
		if opts.ConfigNodeType[n.Type] {
			continue
		}
		g.Nodes = append(g.Nodes, n)
	}
	for i := range g.Nodes {
		g.byID[g.Nodes[i].ID] = &g.Nodes[i]
	}

	for i := range input.Edges {
		e := input.Edges[i]
		if opts.ConfigHandles[e.SourceHandle] {
			continue
		}
		if g.byID[e.Source] == nil || g.byID[e.Target] == nil {
			continue
		}
		g.Edges = append(g.Edges, e)
	}
	for i := range g.Edges {
		e := &g.Edges[i]
		g.children[e.Source] = append(g.children[e.Source], e)
		g.indegree[e.Target]++
	}

	return g
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.byID[id]
}

// OutgoingEdges returns the edges whose source is id, in graph order.
func (g *Graph) OutgoingEdges(id string) []*Edge {
	return g.children[id]
}

// Indegree returns the number of incoming edges for the given node id.
func (g *Graph) Indegree(id string) int {
	return g.indegree[id]
}

// TriggerNodes returns the nodes eligible to seed execution: type is
// start/webhook/cron and indegree is zero.
func (g *Graph) TriggerNodes() []*Node {
	var triggers []*Node
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if !isTriggerType(n.Type) {
			continue
		}
		if g.indegree[n.ID] != 0 {
			continue
		}
		triggers = append(triggers, n)
	}
	return triggers
}

func isTriggerType(t string) bool {
	switch t {
	case "start", "webhook", "cron":
		return true
	default:
		return false
	}
}
