// Package conversation holds the ordered message sequence of one agent run.
package conversation

import (
	"strings"

	"github.com/ashutoshrp06/parcel-agent/pkg/models"
)

// State is the append-only message sequence of a single run. It is owned by
// the running loop and is not safe for concurrent use.
type State struct {
	messages []models.Message
}

// Seed builds the initial sequence: the system prompt, then every prior
// user/assistant turn in order, then the new user query. History entries with
// any other role are skipped.
func Seed(systemPrompt string, history []models.HistoryEntry, query string) *State {
	s := &State{
		messages: make([]models.Message, 0, len(history)+2),
	}

	s.Append(models.SystemMessage(systemPrompt))

	for _, h := range history {
		switch normalizeRole(h.Role) {
		case models.RoleUser:
			s.Append(models.UserMessage(h.Content))
		case models.RoleAssistant:
			s.Append(models.AssistantMessage(h.Content))
		}
	}

	s.Append(models.UserMessage(query))
	return s
}

// Append adds msg to the tail.
func (s *State) Append(msg models.Message) {
	s.messages = append(s.messages, msg)
}

// Messages returns a copy of the full sequence.
func (s *State) Messages() []models.Message {
	result := make([]models.Message, len(s.messages))
	copy(result, s.messages)
	return result
}

// Len returns the number of turns.
func (s *State) Len() int {
	return len(s.messages)
}

// LastAssistant returns the most recent assistant turn.
func (s *State) LastAssistant() (models.Message, bool) {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == models.RoleAssistant {
			return s.messages[i], true
		}
	}
	return models.Message{}, false
}

// ExportHistory returns the portable history of the run.
func (s *State) ExportHistory() []models.HistoryEntry {
	return Export(s.messages)
}

// Export keeps user turns and assistant turns that carry no tool calls.
// System prompts, tool-call turns and tool results are re-derived on every
// run and are never exported.
func Export(messages []models.Message) []models.HistoryEntry {
	history := make([]models.HistoryEntry, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case models.RoleUser:
		case models.RoleAssistant:
			if m.HasToolCalls() {
				continue
			}
		default:
			continue
		}
		history = append(history, models.HistoryEntry{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return history
}

func normalizeRole(role string) models.Role {
	return models.Role(strings.ToLower(strings.TrimSpace(role)))
}
