package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashutoshrp06/parcel-agent/internal/conversation"
	"github.com/ashutoshrp06/parcel-agent/internal/tools"
	"github.com/ashutoshrp06/parcel-agent/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel replies from a fixed script and records what it was sent.
type scriptedModel struct {
	mu      sync.Mutex
	replies []func(msgs []models.Message) (models.Message, error)
	seen    [][]models.Message
}

func (m *scriptedModel) Invoke(ctx context.Context, msgs []models.Message, specs []tools.Spec) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := len(m.seen)
	m.seen = append(m.seen, msgs)
	if i >= len(m.replies) {
		return models.Message{}, fmt.Errorf("script exhausted at call %d", i+1)
	}
	return m.replies[i](msgs)
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

func reply(msg models.Message) func([]models.Message) (models.Message, error) {
	return func([]models.Message) (models.Message, error) { return msg, nil }
}

// alwaysCalls never stops requesting tools.
type alwaysCalls struct {
	n    int
	tool string
}

func (m *alwaysCalls) Invoke(ctx context.Context, msgs []models.Message, specs []tools.Spec) (models.Message, error) {
	m.n++
	return models.AssistantMessage("", models.NewToolCall(fmt.Sprintf("c%d", m.n), m.tool, nil)), nil
}

func newTestAgent(t *testing.T, model Model, registry *tools.Registry, maxIter int) *Agent {
	t.Helper()
	if registry == nil {
		registry = tools.NewRegistry()
	}
	a, err := New(Config{
		Model:         model,
		Registry:      registry,
		SystemPrompt:  "You are a test agent.",
		MaxIterations: maxIter,
	})
	require.NoError(t, err)
	return a
}

func lastToolResult(msgs []models.Message) models.Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleToolResult {
			return msgs[i]
		}
	}
	return models.Message{}
}

func TestFindProductScenario(t *testing.T) {
	registry := tools.NewRegistry()
	var calls int
	registry.MustRegister(tools.Spec{
		Name:       "find_product",
		Parameters: []tools.Parameter{{Name: "product_name", Type: tools.TypeString, Required: true}},
	}, tools.HandlerFunc(func(ctx context.Context, args tools.Args) (any, error) {
		calls++
		if strings.EqualFold(args.String("product_name"), "laptop") {
			return map[string]any{"found": true, "product": map[string]any{"id": 7, "name": "Laptop"}}, nil
		}
		return map[string]any{"found": false}, nil
	}))

	model := &scriptedModel{replies: []func([]models.Message) (models.Message, error){
		reply(models.AssistantMessage("", models.NewToolCall("call_a", "find_product", map[string]any{"product_name": "Laptop"}))),
		func(msgs []models.Message) (models.Message, error) {
			res := lastToolResult(msgs)
			if !strings.Contains(res.Content, `"id":7`) {
				return models.AssistantMessage("I could not find it."), nil
			}
			return models.AssistantMessage("Found Laptop with product id 7."), nil
		},
	}}

	var states []LoopState
	a := newTestAgent(t, model, registry, 0)
	resp, err := a.Run(context.Background(), "find product Laptop", nil, WithObserver(func(ev Event) {
		states = append(states, ev.State)
	}))
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, model.calls())
	assert.Contains(t, resp.Response, "7")
	assert.Equal(t, models.TerminationCompleted, resp.Termination)
	assert.Equal(t, 2, resp.Iterations)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "find_product", resp.ToolCalls[0].Tool)
	assert.Equal(t, StateDone, states[len(states)-1])

	second := model.seen[1]
	res := second[len(second)-1]
	assert.Equal(t, models.RoleToolResult, res.Role)
	assert.Equal(t, "call_a", res.ToolCallID)
}

func TestUnknownToolScenario(t *testing.T) {
	model := &scriptedModel{replies: []func([]models.Message) (models.Message, error){
		reply(models.AssistantMessage("", models.NewToolCall("call_d", "delete_product", map[string]any{"product_id": 3}))),
		func(msgs []models.Message) (models.Message, error) {
			return models.AssistantMessage("That failed: " + lastToolResult(msgs).Content), nil
		},
	}}

	a := newTestAgent(t, model, nil, 0)
	resp, err := a.Run(context.Background(), "delete product 3", nil)
	require.NoError(t, err)

	assert.Equal(t, models.TerminationCompleted, resp.Termination)
	assert.Contains(t, resp.Response, "unknown tool: delete_product")
	require.Len(t, resp.ToolCalls, 1)
	assert.False(t, resp.ToolCalls[0].Success)
	assert.Equal(t, `{"error":"unknown tool: delete_product"}`, resp.ToolCalls[0].Result)
}

func TestHistoryContinuationScenario(t *testing.T) {
	registry := tools.NewRegistry()
	registry.MustRegister(tools.Spec{Name: "get_product_by_id"}, tools.HandlerFunc(func(ctx context.Context, args tools.Args) (any, error) {
		return map[string]any{"found": true}, nil
	}))

	model := &scriptedModel{replies: []func([]models.Message) (models.Message, error){
		reply(models.AssistantMessage("checking", models.NewToolCall("", "get_product_by_id", map[string]any{"product_id": 5}))),
		reply(models.AssistantMessage("Ordered 2 units of SKU 5.")),
	}}

	history := []models.HistoryEntry{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}

	a := newTestAgent(t, model, registry, 0)
	resp, err := a.Run(context.Background(), "order 2 units of SKU 5", history)
	require.NoError(t, err)

	assert.Equal(t, []models.HistoryEntry{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "order 2 units of SKU 5"},
		{Role: "assistant", Content: "Ordered 2 units of SKU 5."},
	}, resp.History)

	first := model.seen[0]
	require.Len(t, first, 4)
	assert.Equal(t, models.RoleSystem, first[0].Role)
}

func TestIterationCapExhausts(t *testing.T) {
	for _, limit := range []int{0, 1, 3} {
		t.Run(fmt.Sprintf("cap=%d", limit), func(t *testing.T) {
			model := &alwaysCalls{tool: "noop"}
			registry := tools.NewRegistry()
			registry.MustRegister(tools.Spec{Name: "noop"}, tools.HandlerFunc(func(ctx context.Context, args tools.Args) (any, error) {
				return "ok", nil
			}))

			var last Event
			a := newTestAgent(t, model, registry, limit)
			resp, err := a.Run(context.Background(), "loop forever", nil, WithObserver(func(ev Event) { last = ev }))
			require.NoError(t, err)

			want := limit
			if want <= 0 {
				want = DefaultMaxIterations
			}
			assert.Equal(t, want, model.n)
			assert.Equal(t, want, resp.Iterations)
			assert.Equal(t, models.TerminationExhausted, resp.Termination)
			assert.Equal(t, StateIterationsExhausted, last.State)
			assert.True(t, last.State.Terminal())
			assert.Len(t, resp.ToolCalls, want)
		})
	}
}

func TestBatchResultsKeepCallOrder(t *testing.T) {
	registry := tools.NewRegistry()
	delays := map[string]time.Duration{"A": 30 * time.Millisecond, "B": 0, "C": 10 * time.Millisecond}
	registry.MustRegister(tools.Spec{
		Name:       "wait",
		Parameters: []tools.Parameter{{Name: "label", Type: tools.TypeString, Required: true}},
	}, tools.HandlerFunc(func(ctx context.Context, args tools.Args) (any, error) {
		label := args.String("label")
		time.Sleep(delays[label])
		return label, nil
	}))

	model := &scriptedModel{replies: []func([]models.Message) (models.Message, error){
		reply(models.AssistantMessage("",
			models.NewToolCall("A", "wait", map[string]any{"label": "A"}),
			models.NewToolCall("B", "wait", map[string]any{"label": "B"}),
			models.NewToolCall("C", "wait", map[string]any{"label": "C"}),
		)),
		reply(models.AssistantMessage("done")),
	}}

	a := newTestAgent(t, model, registry, 0)
	_, err := a.Run(context.Background(), "run three", nil)
	require.NoError(t, err)

	msgs := model.seen[1]
	var ids []string
	for _, m := range msgs {
		if m.Role == models.RoleToolResult {
			ids = append(ids, m.ToolCallID)
			assert.Equal(t, m.ToolCallID, m.Content)
		}
	}
	assert.Equal(t, []string{"A", "B", "C"}, ids)
}

func TestFailingToolNeverAbortsRun(t *testing.T) {
	registry := tools.NewRegistry()
	registry.MustRegister(tools.Spec{Name: "broken"}, tools.HandlerFunc(func(ctx context.Context, args tools.Args) (any, error) {
		panic("always")
	}))
	registry.MustRegister(tools.Spec{Name: "erroring"}, tools.HandlerFunc(func(ctx context.Context, args tools.Args) (any, error) {
		return nil, errors.New("always")
	}))

	for _, name := range []string{"broken", "erroring"} {
		t.Run(name, func(t *testing.T) {
			a := newTestAgent(t, &alwaysCalls{tool: name}, registry, 4)
			resp, err := a.Run(context.Background(), "try it", nil)
			require.NoError(t, err)
			assert.Equal(t, models.TerminationExhausted, resp.Termination)
			for _, rec := range resp.ToolCalls {
				assert.False(t, rec.Success)
			}
		})
	}
}

func TestModelFailureIsFatal(t *testing.T) {
	cause := errors.New("upstream 500")
	model := &scriptedModel{replies: []func([]models.Message) (models.Message, error){
		func([]models.Message) (models.Message, error) { return models.Message{}, cause },
	}}

	a := newTestAgent(t, model, nil, 0)
	resp, err := a.Run(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrModel)
	assert.ErrorIs(t, err, cause)
}

func TestCancelledContextStopsBeforeModel(t *testing.T) {
	model := &scriptedModel{}
	a := newTestAgent(t, model, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Run(ctx, "hello", nil)
	assert.ErrorIs(t, err, ErrModel)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, model.calls())
}

func TestEmptyFirstReplyIsDone(t *testing.T) {
	model := &scriptedModel{replies: []func([]models.Message) (models.Message, error){
		reply(models.Message{}),
	}}

	a := newTestAgent(t, model, nil, 0)
	resp, err := a.Run(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "", resp.Response)
	assert.Equal(t, models.TerminationCompleted, resp.Termination)
	assert.Equal(t, 1, resp.Iterations)
}

func TestLoopRunDirect(t *testing.T) {
	model := &scriptedModel{replies: []func([]models.Message) (models.Message, error){
		reply(models.AssistantMessage("hi there")),
	}}
	registry := tools.NewRegistry()
	loop := NewLoop(model, registry, tools.NewInvoker(registry), 0, nil)
	state := conversation.Seed("sys", nil, "hi")
	run := models.NewRun()

	require.NoError(t, loop.Run(context.Background(), state, run, nil))
	assert.Equal(t, 3, state.Len())
	last, ok := state.LastAssistant()
	require.True(t, ok)
	assert.Equal(t, "hi there", last.Content)
	assert.Equal(t, DefaultMaxIterations, loop.MaxIterations())
}

func TestLoopStateStrings(t *testing.T) {
	assert.Equal(t, "AwaitingModel", StateAwaitingModel.String())
	assert.Equal(t, "IterationsExhausted", StateIterationsExhausted.String())
	assert.Equal(t, "Unknown", LoopState(42).String())
	assert.False(t, StateExecutingTools.Terminal())
}
