package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockKind discriminates the content block union. Completion content is an
// explicit variant type rather than a duck-typed bag: every consumer switches
// on Kind and handles each case.
type BlockKind string

const (
	// BlockText is plain assistant text.
	BlockText BlockKind = "text"
	// BlockToolUse is a tool invocation requested by the model.
	BlockToolUse BlockKind = "tool_use"
	// BlockToolResult carries a tool's output back to the model.
	BlockToolResult BlockKind = "tool_result"
)

// ContentBlock is one element of a message, discriminated by Kind.
type ContentBlock struct {
	Kind BlockKind `json:"kind"`
	// Text is set for BlockText blocks.
	Text string `json:"text,omitempty"`
	// ID is the tool call id for BlockToolUse and BlockToolResult blocks.
	ID string `json:"id,omitempty"`
	// Name is the tool name for BlockToolUse blocks.
	Name string `json:"name,omitempty"`
	// Input is the tool invocation payload for BlockToolUse blocks.
	Input json.RawMessage `json:"input,omitempty"`
	// IsError marks a failed tool execution on BlockToolResult blocks.
	IsError bool `json:"is_error,omitempty"`
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Kind: BlockText, Text: text}
}

// ToolResultBlock builds a tool result block for the given call id.
func ToolResultBlock(id, content string, isError bool) ContentBlock {
	return ContentBlock{Kind: BlockToolResult, ID: id, Text: content, IsError: isError}
}

// Message is one turn of a conversation.
type Message struct {
	Role   Role
	Blocks []ContentBlock
}

// UserMessage builds a single-text user message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Blocks: []ContentBlock{TextBlock(text)}}
}

// ToolDef describes one tool offered to the model.
type ToolDef struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// CompletionRequest is one model call. Agent, Stage and PromptID tag the
// request so tracing and evaluation can reconstruct which prompt produced
// which output.
type CompletionRequest struct {
	System      string
	Messages    []Message
	Tools       []ToolDef
	MaxTokens   int64
	Temperature float64 // used only when > 0
	Agent       string
	Stage       string
	PromptID    string
}

// Stop reasons reported on a Completion.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
)

// Completion is the model's response to a CompletionRequest.
type Completion struct {
	Blocks       []ContentBlock
	StopReason   string
	InputTokens  int64
	OutputTokens int64
}

// Text concatenates all text blocks in the completion.
func (c *Completion) Text() string {
	var out string
	for _, b := range c.Blocks {
		if b.Kind == BlockText {
			out += b.Text
		}
	}
	return out
}

// ToolUses returns every tool invocation block in the completion.
func (c *Completion) ToolUses() []ContentBlock {
	var out []ContentBlock
	for _, b := range c.Blocks {
		if b.Kind == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// Completer is the model completion capability the orchestrator and
// specialists depend on. Retry on transient overload is the provider
// wrapper's concern; callers treat a returned error as final for the call.
type Completer interface {
	// Complete makes one model call and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	// CompleteStream makes one model call, invoking onDelta for each text
	// fragment as it arrives, and returns the accumulated response.
	CompleteStream(ctx context.Context, req CompletionRequest, onDelta func(string)) (*Completion, error)
}

// Compile-time verification that Client implements Completer.
var _ Completer = (*Client)(nil)

// Complete makes one model call and returns the full response.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.sdk().Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("API call failed: %w", err)
	}

	c.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return convertMessage(resp), nil
}

// CompleteStream makes one streaming model call. Text deltas are forwarded to
// onDelta in arrival order; the accumulated completion is returned at the end.
func (c *Client) CompleteStream(ctx context.Context, req CompletionRequest, onDelta func(string)) (*Completion, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	stream := c.sdk().Messages.NewStreaming(ctx, params)
	var acc anthropic.Message
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return nil, fmt.Errorf("accumulate stream event: %w", err)
		}

		switch variant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := variant.Delta.AsAny().(anthropic.TextDelta); ok && onDelta != nil {
				onDelta(delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("streaming API call failed: %w", err)
	}

	c.tracker.Add(acc.Usage.InputTokens, acc.Usage.OutputTokens)
	return convertMessage(&acc), nil
}

func (c *Client) buildParams(req CompletionRequest) (anthropic.MessageNewParams, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Blocks))
		for _, b := range m.Blocks {
			switch b.Kind {
			case BlockText:
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			case BlockToolUse:
				blocks = append(blocks, anthropic.NewToolUseBlock(b.ID, b.Input, b.Name))
			case BlockToolResult:
				blocks = append(blocks, anthropic.NewToolResultBlock(b.ID, b.Text, b.IsError))
			default:
				return anthropic.MessageNewParams{}, fmt.Errorf("unknown content block kind %q", b.Kind)
			}
		}
		switch m.Role {
		case RoleUser:
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		default:
			return anthropic.MessageNewParams{}, fmt.Errorf("unknown message role %q", m.Role)
		}
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}
	return params, nil
}

func convertTools(defs []ToolDef) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        d.Name,
				Description: anthropic.String(d.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: d.Properties,
					Required:   d.Required,
				},
			},
		})
	}
	return out
}

// convertMessage maps SDK response content onto the ContentBlock union.
func convertMessage(resp *anthropic.Message) *Completion {
	out := &Completion{
		StopReason:   string(resp.StopReason),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Blocks = append(out.Blocks, TextBlock(variant.Text))
		case anthropic.ToolUseBlock:
			out.Blocks = append(out.Blocks, ContentBlock{
				Kind:  BlockToolUse,
				ID:    variant.ID,
				Name:  variant.Name,
				Input: variant.Input,
			})
		}
	}
	return out
}
