// Package models defines the conversation and tool-call types shared by the agent loop.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role tags a conversational turn.
type Role string

const (
	RoleSystem     Role = "system"
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool_result"
)

// Message is a single turn exchanged with the model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls is only set on assistant turns.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID and Name are only set on tool-result turns.
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// SystemMessage returns a system turn.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage returns a user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage returns an assistant turn, optionally carrying tool calls.
func AssistantMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResultMessage returns the tool-result turn answering the call with the given id.
func ToolResultMessage(callID, toolName, content string) Message {
	return Message{Role: RoleToolResult, Content: content, ToolCallID: callID, Name: toolName}
}

// HasToolCalls reports whether the turn requests tool execution.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// ToolCall is a model-issued request to run a named tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// NewToolCall builds a ToolCall from a structured argument mapping.
// An empty id is replaced by a generated one.
func NewToolCall(id, name string, args map[string]any) ToolCall {
	if id == "" {
		id = "call_" + uuid.NewString()
	}
	raw, err := json.Marshal(args)
	if err != nil || args == nil {
		raw = []byte("{}")
	}
	return ToolCall{ID: id, Name: name, Arguments: raw}
}

// ToolResult is the outcome of executing one ToolCall.
type ToolResult struct {
	CallID   string        `json:"call_id"`
	ToolName string        `json:"tool_name"`
	Success  bool          `json:"success"`
	Output   any           `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// String renders the result as the text folded back into the conversation.
func (r ToolResult) String() string {
	if !r.Success {
		data, err := json.Marshal(map[string]string{"error": r.Error})
		if err != nil {
			return fmt.Sprintf(`{"error":%q}`, r.Error)
		}
		return string(data)
	}

	switch v := r.Output.(type) {
	case nil:
		return "{}"
	case string:
		return v
	case []byte:
		return string(v)
	}

	data, err := json.Marshal(r.Output)
	if err != nil {
		return fmt.Sprintf("%v", r.Output)
	}
	return string(data)
}

// HistoryEntry is the portable form of a user or assistant turn.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolCallRecord is the observability log entry for one executed tool call.
type ToolCallRecord struct {
	Tool      string          `json:"tool"`
	CallID    string          `json:"call_id"`
	Arguments json.RawMessage `json:"args,omitempty"`
	Result    string          `json:"result"`
	Success   bool            `json:"success"`
	Duration  time.Duration   `json:"duration"`
}

// Termination explains why a run stopped.
type Termination string

const (
	TerminationCompleted Termination = "completed"
	TerminationExhausted Termination = "exhausted_iterations"
)

// Run aggregates the transient state of one agent execution.
type Run struct {
	ID           string
	StartedAt    time.Time
	Iterations   int
	Termination  Termination
	FinalContent string
	ToolCalls    []ToolCallRecord
}

// NewRun starts a run with a fresh id.
func NewRun() *Run {
	return &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}
}

// Record appends an executed call to the run's tool-call log.
func (r *Run) Record(rec ToolCallRecord) {
	r.ToolCalls = append(r.ToolCalls, rec)
}
