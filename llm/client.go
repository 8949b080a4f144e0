// ABOUTME: Client is the minimal LLM seam the ReAct agent node needs: one
// ABOUTME: think step that may return a tool call or a final answer.
// ABOUTME: Scoped down from the teacher's own multi-provider llm package to
// ABOUTME: just this, since the broader chat/completion product it served
// ABOUTME: is out of this daemon's scope.
package llm

import "context"

// ToolCall is a single tool invocation the model requested.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]any
}

// Message is one turn of the agent's transcript.
type Message struct {
	Role    string // "user", "assistant", "tool"
	Content string
	ToolUse *ToolCall
}

// Step is the model's response to one think call: either one or more tool
// calls to make, or a final text answer when ToolCalls is empty.
type Step struct {
	ToolCalls []ToolCall
	Text      string
}

// ToolSpec describes a callable tool to the model, mirroring the shape
// spec/agents/tools/registry.go builds per tool.Tool.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Client is implemented by a concrete LLM provider adapter.
type Client interface {
	// Think sends the transcript so far plus the available tools and
	// returns the model's next step.
	Think(ctx context.Context, systemPrompt string, transcript []Message, tools []ToolSpec) (Step, error)
}
