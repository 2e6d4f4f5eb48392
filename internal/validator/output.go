package validator

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ashutoshrp06/parcel-agent/pkg/models"
	"github.com/google/uuid"
)

// OutputValidator normalises assistant turns decoded from the model so the
// loop can rely on well-formed tool-call ids. Tool names are not checked
// against the registry here; unknown tools are reported back to the model.
type OutputValidator struct{}

func NewOutputValidator() *OutputValidator {
	return &OutputValidator{}
}

// Normalize assigns ids to calls that lack one or reuse one, trims tool
// names and replaces blank arguments with an empty object.
func (v *OutputValidator) Normalize(msg models.Message) models.Message {
	msg.Role = models.RoleAssistant
	if len(msg.ToolCalls) == 0 {
		msg.ToolCalls = nil
		return msg
	}

	seen := make(map[string]bool, len(msg.ToolCalls))
	calls := make([]models.ToolCall, len(msg.ToolCalls))
	for i, call := range msg.ToolCalls {
		call.Name = strings.TrimSpace(call.Name)
		if call.ID == "" || seen[call.ID] {
			call.ID = "call_" + uuid.NewString()
		}
		seen[call.ID] = true

		if len(bytes.TrimSpace(call.Arguments)) == 0 {
			call.Arguments = json.RawMessage("{}")
		}
		calls[i] = call
	}
	msg.ToolCalls = calls
	return msg
}
