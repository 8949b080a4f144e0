// ABOUTME: AnthropicClient talks to Anthropic through the teacher's own
// ABOUTME: github.com/2389-research/mux provider SDK rather than calling
// ABOUTME: anthropic-sdk-go directly, grounded on the teacher's
// ABOUTME: llm/mux_adapter.go MuxAdapter. Each call is wrapped in this
// ABOUTME: package's retryOnRateLimit for 429 retry/backoff.
package llm

import (
	"context"
	"fmt"

	muxllm "github.com/2389-research/mux/llm"
)

// AnthropicClient wraps a mux Anthropic client with a primary model and an
// optional fallback model used when the primary call returns any error
// (including a rate limit that outlasts retryOnRateLimit), mirroring the Python original's primary/
// fallback model pair in backend/app/services/generator.py.
type AnthropicClient struct {
	client        muxllm.Client
	primaryModel  string
	fallbackModel string
	maxTokens     int
}

// NewAnthropicClient builds a client from an API key and model ids. Pass an
// empty fallbackModel to disable fallback.
func NewAnthropicClient(apiKey, primaryModel, fallbackModel string) *AnthropicClient {
	return &AnthropicClient{
		client:        muxllm.NewAnthropicClient(apiKey, ""),
		primaryModel:  primaryModel,
		fallbackModel: fallbackModel,
		maxTokens:     4096,
	}
}

func (c *AnthropicClient) Think(ctx context.Context, systemPrompt string, transcript []Message, tools []ToolSpec) (Step, error) {
	step, err := c.think(ctx, c.primaryModel, systemPrompt, transcript, tools)
	if err != nil && c.fallbackModel != "" {
		return c.think(ctx, c.fallbackModel, systemPrompt, transcript, tools)
	}
	return step, err
}

func (c *AnthropicClient) think(ctx context.Context, model, systemPrompt string, transcript []Message, tools []ToolSpec) (Step, error) {
	req := &muxllm.Request{
		Model:     model,
		System:    systemPrompt,
		MaxTokens: c.maxTokens,
	}
	for _, m := range transcript {
		req.Messages = append(req.Messages, convertMessage(m))
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, muxllm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}

	var resp *muxllm.Response
	err := retryOnRateLimit(ctx, rateLimitRetryPolicy(), func() error {
		var callErr error
		resp, callErr = c.client.CreateMessage(ctx, req)
		return callErr
	})
	if err != nil {
		return Step{}, fmt.Errorf("anthropic think (%s): %w", model, err)
	}

	var step Step
	for _, block := range resp.Content {
		switch block.Type {
		case muxllm.ContentTypeText:
			step.Text += block.Text
		case muxllm.ContentTypeToolUse:
			step.ToolCalls = append(step.ToolCalls, ToolCall{ID: block.ID, Name: block.Name, Input: block.Input})
		}
	}
	return step, nil
}

// convertMessage maps the agent's own role set onto mux's. Tool-result
// turns travel back to the model as a user message, matching how mux's own
// adapter folds ContentToolResult into a user-role message.
func convertMessage(m Message) muxllm.Message {
	role := muxllm.RoleUser
	if m.Role == "assistant" {
		role = muxllm.RoleAssistant
	}
	return muxllm.Message{Role: role, Content: m.Content}
}
