package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ashutoshrp06/parcel-agent/internal/tools"
	"github.com/ashutoshrp06/parcel-agent/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 10, "hello"},
		{"hello world", 5, "hello..."},
		{"", 5, ""},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc..."},
		{"héllo", 2, "h..."},
		{"héllo", 3, "hé..."},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, truncate(tt.input, tt.maxLen), "truncate(%q, %d)", tt.input, tt.maxLen)
	}
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNew_DefaultPromptListsTools(t *testing.T) {
	registry := tools.NewRegistry()
	registry.MustRegister(tools.Spec{Name: "find_product", Description: "Find a product by name."},
		tools.HandlerFunc(func(ctx context.Context, args tools.Args) (any, error) { return nil, nil }))

	model := &scriptedModel{replies: []func([]models.Message) (models.Message, error){
		reply(models.AssistantMessage("ok")),
	}}
	a, err := New(Config{Model: model, Registry: registry})
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "hi", nil)
	require.NoError(t, err)

	system := model.seen[0][0]
	require.Equal(t, models.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "find_product: Find a product by name.")
	assert.Len(t, a.ListTools(), 1)
	assert.Equal(t, DefaultMaxIterations, a.MaxIterations())
}

func TestRun_SanitizesQuery(t *testing.T) {
	model := &scriptedModel{replies: []func([]models.Message) (models.Message, error){
		reply(models.AssistantMessage("ok")),
	}}
	a := newTestAgent(t, model, nil, 0)

	resp, err := a.Run(context.Background(), "  order\t\t2   mugs  ", nil)
	require.NoError(t, err)

	assert.Equal(t, "order 2 mugs", model.seen[0][1].Content)
	require.Len(t, resp.History, 2)
	assert.Equal(t, models.HistoryEntry{Role: "user", Content: "order 2 mugs"}, resp.History[0])
}

type slowModel struct{}

func (slowModel) Invoke(ctx context.Context, msgs []models.Message, specs []tools.Spec) (models.Message, error) {
	<-ctx.Done()
	return models.Message{}, ctx.Err()
}

func TestRun_RunTimeout(t *testing.T) {
	a, err := New(Config{Model: slowModel{}, RunTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "hello", nil)
	assert.ErrorIs(t, err, ErrModel)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type pingModel struct {
	scriptedModel
	err error
}

func (p *pingModel) Ping(ctx context.Context) error { return p.err }

func TestPing(t *testing.T) {
	a := newTestAgent(t, &scriptedModel{}, nil, 0)
	assert.NoError(t, a.Ping(context.Background()), "model without Ping should be reachable")

	a = newTestAgent(t, &pingModel{err: errors.New("refused")}, nil, 0)
	assert.Error(t, a.Ping(context.Background()))
}
