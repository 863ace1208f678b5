package api

import (
	"encoding/json"
	"testing"
)

func TestCompletionText(t *testing.T) {
	c := &Completion{Blocks: []ContentBlock{
		TextBlock("Hello "),
		{Kind: BlockToolUse, ID: "t1", Name: "query_health_data", Input: json.RawMessage(`{}`)},
		TextBlock("world"),
	}}

	if got := c.Text(); got != "Hello world" {
		t.Errorf("Text = %q", got)
	}
	if got := len(c.ToolUses()); got != 1 {
		t.Errorf("ToolUses = %d, want 1", got)
	}
}

func TestBuildParamsRejectsUnknownKind(t *testing.T) {
	c := &Client{}
	_, err := c.buildParams(CompletionRequest{
		Messages: []Message{{Role: RoleUser, Blocks: []ContentBlock{{Kind: "thinking"}}}},
	})
	if err == nil {
		t.Fatal("expected error for unknown block kind")
	}
}

func TestBuildParamsDefaults(t *testing.T) {
	c := &Client{}
	params, err := c.buildParams(CompletionRequest{
		System:   "be brief",
		Messages: []Message{UserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if params.MaxTokens != 8192 {
		t.Errorf("MaxTokens = %d, want 8192 default", params.MaxTokens)
	}
	if len(params.System) != 1 || params.System[0].Text != "be brief" {
		t.Errorf("system prompt not set")
	}
	if len(params.Messages) != 1 {
		t.Errorf("messages = %d, want 1", len(params.Messages))
	}
}
