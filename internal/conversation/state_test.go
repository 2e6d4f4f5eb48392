package conversation

import (
	"testing"

	"github.com/ashutoshrp06/parcel-agent/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedOrdersTurns(t *testing.T) {
	history := []models.HistoryEntry{
		{Role: "user", Content: "hi"},
		{Role: " Assistant ", Content: "hello"},
		{Role: "system", Content: "ignored"},
		{Role: "tool", Content: "ignored"},
	}

	s := Seed("sys", history, "order 2 units of SKU 5")
	msgs := s.Messages()

	require.Len(t, msgs, 4)
	assert.Equal(t, models.SystemMessage("sys"), msgs[0])
	assert.Equal(t, models.UserMessage("hi"), msgs[1])
	assert.Equal(t, models.AssistantMessage("hello"), msgs[2])
	assert.Equal(t, models.UserMessage("order 2 units of SKU 5"), msgs[3])
}

func TestSeedThenExportRoundTrip(t *testing.T) {
	cases := [][]models.HistoryEntry{
		nil,
		{{Role: "user", Content: "a"}},
		{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}, {Role: "user", Content: "c"}},
		{{Role: "assistant", Content: "greeting first"}},
	}

	for _, history := range cases {
		s := Seed("sys", history, "q")
		want := append(append([]models.HistoryEntry{}, history...), models.HistoryEntry{Role: "user", Content: "q"})
		assert.Equal(t, want, s.ExportHistory())
	}
}

func TestExportDropsToolTurns(t *testing.T) {
	s := Seed("sys", nil, "find Laptop")
	s.Append(models.AssistantMessage("looking", models.NewToolCall("c1", "find_product", nil)))
	s.Append(models.ToolResultMessage("c1", "find_product", `{"found":true}`))
	s.Append(models.AssistantMessage("Laptop is id 7"))

	assert.Equal(t, []models.HistoryEntry{
		{Role: "user", Content: "find Laptop"},
		{Role: "assistant", Content: "Laptop is id 7"},
	}, s.ExportHistory())
	assert.Equal(t, 5, s.Len())
}

func TestMessagesReturnsCopy(t *testing.T) {
	s := Seed("sys", nil, "q")
	msgs := s.Messages()
	msgs[0].Content = "mutated"

	assert.Equal(t, "sys", s.Messages()[0].Content)
}

func TestLastAssistant(t *testing.T) {
	s := Seed("sys", nil, "q")
	_, ok := s.LastAssistant()
	assert.False(t, ok)

	s.Append(models.AssistantMessage("first"))
	s.Append(models.ToolResultMessage("x", "t", "r"))
	last, ok := s.LastAssistant()
	require.True(t, ok)
	assert.Equal(t, "first", last.Content)
}
