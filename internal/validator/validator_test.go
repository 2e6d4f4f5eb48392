package validator

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ashutoshrp06/parcel-agent/pkg/models"
)

func TestInputValidator_Validate(t *testing.T) {
	v := NewInputValidatorWithLimits(2, 10)

	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{"valid", "order 2", false},
		{"empty", "", true},
		{"whitespace", "   \n\t", true},
		{"too short", "a", true},
		{"too long", strings.Repeat("x", 11), true},
		{"invalid utf8", string([]byte{0xff, 0xfe, 0xfd}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.query)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.query, err, tt.wantErr)
			}
		})
	}
}

func TestInputValidator_Sanitize(t *testing.T) {
	v := NewInputValidator()

	tests := []struct {
		input    string
		expected string
	}{
		{"  hello   world  ", "hello world"},
		{"From: a@b.com\r\nSubject:  Order\r\n\r\n\r\n\r\nTwo  mugs", "From: a@b.com\nSubject: Order\n\nTwo mugs"},
		{"tab\t\tseparated", "tab separated"},
	}

	for _, tt := range tests {
		if got := v.Sanitize(tt.input); got != tt.expected {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestOutputValidator_Normalize(t *testing.T) {
	v := NewOutputValidator()

	msg := v.Normalize(models.Message{
		Role: models.RoleUser,
		ToolCalls: []models.ToolCall{
			{ID: "", Name: " find_product "},
			{ID: "dup", Name: "a", Arguments: json.RawMessage(`{"x":1}`)},
			{ID: "dup", Name: "b", Arguments: json.RawMessage("  ")},
		},
	})

	if msg.Role != models.RoleAssistant {
		t.Errorf("expected assistant role, got %s", msg.Role)
	}
	if msg.ToolCalls[0].ID == "" || !strings.HasPrefix(msg.ToolCalls[0].ID, "call_") {
		t.Errorf("expected generated id, got %q", msg.ToolCalls[0].ID)
	}
	if msg.ToolCalls[0].Name != "find_product" {
		t.Errorf("expected trimmed name, got %q", msg.ToolCalls[0].Name)
	}
	if msg.ToolCalls[1].ID != "dup" || msg.ToolCalls[2].ID == "dup" {
		t.Errorf("expected duplicate id to be replaced, got %q and %q", msg.ToolCalls[1].ID, msg.ToolCalls[2].ID)
	}
	if string(msg.ToolCalls[2].Arguments) != "{}" {
		t.Errorf("expected empty object args, got %s", msg.ToolCalls[2].Arguments)
	}
}

func TestOutputValidator_NoCalls(t *testing.T) {
	msg := NewOutputValidator().Normalize(models.Message{Content: "done", ToolCalls: []models.ToolCall{}})
	if msg.ToolCalls != nil || msg.HasToolCalls() {
		t.Errorf("expected no tool calls, got %v", msg.ToolCalls)
	}
}
