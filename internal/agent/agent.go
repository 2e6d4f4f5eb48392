// Package agent implements the tool-calling agent loop and its entry point.
package agent

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/ashutoshrp06/parcel-agent/internal/conversation"
	"github.com/ashutoshrp06/parcel-agent/internal/llm"
	"github.com/ashutoshrp06/parcel-agent/internal/tools"
	"github.com/ashutoshrp06/parcel-agent/internal/validator"
	"github.com/ashutoshrp06/parcel-agent/pkg/models"
	"go.uber.org/zap"
)

// Agent seeds a conversation, drives the loop to completion and returns the
// final answer with the exportable history.
type Agent struct {
	model        Model
	registry     *tools.Registry
	loop         *Loop
	systemPrompt string
	runTimeout   time.Duration
	sanitizer    *validator.InputValidator
	modelInfo    string
	logger       *zap.Logger
}

// Config holds agent configuration.
type Config struct {
	Model         Model
	Registry      *tools.Registry
	SystemPrompt  string
	MaxIterations int
	ToolTimeout   time.Duration
	RunTimeout    time.Duration
	ModelInfo     string
	Logger        *zap.Logger
}

// Response is what a run hands back to its caller.
type Response struct {
	Response    string                  `json:"response"`
	History     []models.HistoryEntry   `json:"history"`
	RunID       string                  `json:"run_id"`
	Termination models.Termination      `json:"termination"`
	Iterations  int                     `json:"iterations"`
	ToolCalls   []models.ToolCallRecord `json:"tool_calls,omitempty"`
}

// Pinger is implemented by models that support a reachability check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New creates an agent.
func New(cfg Config) (*Agent, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("agent: model is required")
	}
	if cfg.Registry == nil {
		cfg.Registry = tools.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = llm.BuildSystemPrompt(cfg.Registry.Specs())
	}

	invoker := tools.NewInvoker(cfg.Registry,
		tools.WithTimeout(cfg.ToolTimeout),
		tools.WithLogger(cfg.Logger.Named("tools")))

	return &Agent{
		model:        cfg.Model,
		registry:     cfg.Registry,
		loop:         NewLoop(cfg.Model, cfg.Registry, invoker, cfg.MaxIterations, cfg.Logger),
		systemPrompt: cfg.SystemPrompt,
		runTimeout:   cfg.RunTimeout,
		sanitizer:    validator.NewInputValidator(),
		modelInfo:    cfg.ModelInfo,
		logger:       cfg.Logger,
	}, nil
}

// RunOption customises a single run.
type RunOption func(*runOptions)

type runOptions struct {
	observer Observer
}

// WithObserver streams loop transitions of this run to obs.
func WithObserver(obs Observer) RunOption {
	return func(o *runOptions) { o.observer = obs }
}

// ObserverFrom returns the observer selected by opts, or nil.
func ObserverFrom(opts ...RunOption) Observer {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o.observer
}

// Run answers query given the optional prior history. Only a failing model
// invocation produces an error; tool failures and iteration exhaustion are
// reported through the response.
//
// The query is whitespace-normalised before it is seeded, and the returned
// history carries the normalised text rather than the caller's original.
func (a *Agent) Run(ctx context.Context, query string, history []models.HistoryEntry, opts ...RunOption) (*Response, error) {
	observer := ObserverFrom(opts...)

	if a.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.runTimeout)
		defer cancel()
	}

	run := models.NewRun()
	state := conversation.Seed(a.systemPrompt, history, a.sanitizer.Sanitize(query))

	a.logger.Info("Agent run started",
		zap.String("run_id", run.ID),
		zap.Int("history_turns", len(history)),
		zap.String("query_preview", truncate(query, 80)))

	if err := a.loop.Run(ctx, state, run, observer); err != nil {
		return nil, fmt.Errorf("run %s: %w", run.ID, err)
	}

	a.logger.Info("Agent run finished",
		zap.String("run_id", run.ID),
		zap.String("termination", string(run.Termination)),
		zap.Int("iterations", run.Iterations),
		zap.Int("tool_calls", len(run.ToolCalls)),
		zap.Duration("elapsed", time.Since(run.StartedAt)))

	return &Response{
		Response:    run.FinalContent,
		History:     state.ExportHistory(),
		RunID:       run.ID,
		Termination: run.Termination,
		Iterations:  run.Iterations,
		ToolCalls:   run.ToolCalls,
	}, nil
}

// Ping checks if the model is reachable.
func (a *Agent) Ping(ctx context.Context) error {
	p, ok := a.model.(Pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("model not reachable: %w", err)
	}
	return nil
}

// ListTools returns the advertised tool specs.
func (a *Agent) ListTools() []tools.Spec {
	return a.registry.Specs()
}

// MaxIterations returns the loop's iteration cap.
func (a *Agent) MaxIterations() int {
	return a.loop.MaxIterations()
}

// ModelInfo describes the configured model.
func (a *Agent) ModelInfo() string {
	return a.modelInfo
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
