package ai

import (
	"context"
	"encoding/json"
)

// Message roles exchanged with the model.
const (
	RoleUser  = "user"
	RoleModel = "model"
	RoleTool  = "tool"
)

// Schema types understood by the Gemini function-calling API.
const (
	TypeObject  = "OBJECT"
	TypeString  = "STRING"
	TypeInteger = "INTEGER"
	TypeNumber  = "NUMBER"
	TypeArray   = "ARRAY"
)

// Schema describes a tool parameter shape. It is the model's only
// documentation of the argument types.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// ToolDef declares a callable tool to the model.
type ToolDef struct {
	Name        string
	Description string
	Parameters  *Schema
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

// ToolResult carries a serialized tool outcome back to the model, tagged
// with the originating call's identifier so parallel calls stay correlated.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
}

// Message is one entry in the conversation sent to the model.
type Message struct {
	Role       string
	Text       string
	ToolCalls  []ToolCall
	ToolResult *ToolResult
}

// Request is a single model round-trip: instructions, prior messages, and
// the tool catalog on offer.
type Request struct {
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDef
}

// Reply is what the model produced: either final text, or one or more tool
// calls to execute.
type Reply struct {
	Text      string
	ToolCalls []ToolCall
}

// ChatModel generates a reply for a conversation, optionally requesting
// tool calls. All LLM providers implement this interface.
type ChatModel interface {
	Generate(ctx context.Context, req Request) (Reply, error)
}
