package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashutoshrp06/parcel-agent/internal/conversation"
	"github.com/ashutoshrp06/parcel-agent/internal/tools"
	"github.com/ashutoshrp06/parcel-agent/pkg/models"
	"go.uber.org/zap"
)

// DefaultMaxIterations bounds the number of model rounds per run.
const DefaultMaxIterations = 10

// ErrModel wraps every model-invocation failure. It is the only error a run
// returns to its caller.
var ErrModel = errors.New("model invocation failed")

// Model produces the next assistant turn for a conversation.
type Model interface {
	Invoke(ctx context.Context, messages []models.Message, specs []tools.Spec) (models.Message, error)
}

// LoopState is a state of the agent loop.
type LoopState int

const (
	StateAwaitingModel LoopState = iota
	StateModelResponded
	StateExecutingTools
	StateDone
	StateIterationsExhausted
)

// String returns a human-readable state name.
func (s LoopState) String() string {
	names := [...]string{
		"AwaitingModel",
		"ModelResponded",
		"ExecutingTools",
		"Done",
		"IterationsExhausted",
	}
	if int(s) >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}

// Terminal reports whether the loop stops in this state.
func (s LoopState) Terminal() bool {
	return s == StateDone || s == StateIterationsExhausted
}

// Event describes one loop transition.
type Event struct {
	State     LoopState
	Iteration int
	Message   *models.Message
	Call      *models.ToolCall
	Result    *models.ToolResult
}

// Observer is notified of every loop transition, synchronously.
type Observer func(Event)

// Loop drives the model through tool-calling rounds until it answers without
// tool calls or the iteration cap is reached.
type Loop struct {
	model         Model
	registry      *tools.Registry
	invoker       *tools.Invoker
	maxIterations int
	logger        *zap.Logger
}

// NewLoop creates a loop. A non-positive maxIterations selects the default.
func NewLoop(model Model, registry *tools.Registry, invoker *tools.Invoker, maxIterations int, logger *zap.Logger) *Loop {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		model:         model,
		registry:      registry,
		invoker:       invoker,
		maxIterations: maxIterations,
		logger:        logger,
	}
}

// MaxIterations returns the configured cap.
func (l *Loop) MaxIterations() int {
	return l.maxIterations
}

// Run advances state until a terminal state. Tool failures are folded into
// the conversation; only model failures are returned.
func (l *Loop) Run(ctx context.Context, state *conversation.State, run *models.Run, obs Observer) error {
	emit := func(ev Event) {
		if obs != nil {
			obs(ev)
		}
	}

	specs := l.registry.Specs()

	for run.Iterations < l.maxIterations {
		iteration := run.Iterations + 1
		emit(Event{State: StateAwaitingModel, Iteration: iteration})

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrModel, err)
		}

		reply, err := l.model.Invoke(ctx, state.Messages(), specs)
		run.Iterations = iteration
		if err != nil {
			l.logger.Error("Model invocation failed",
				zap.String("run_id", run.ID),
				zap.Int("iteration", iteration),
				zap.Error(err))
			return fmt.Errorf("%w: %w", ErrModel, err)
		}

		reply.Role = models.RoleAssistant
		state.Append(reply)
		run.FinalContent = reply.Content
		emit(Event{State: StateModelResponded, Iteration: iteration, Message: &reply})

		if !reply.HasToolCalls() {
			run.Termination = models.TerminationCompleted
			emit(Event{State: StateDone, Iteration: iteration, Message: &reply})
			return nil
		}

		l.logger.Debug("Executing tool batch",
			zap.String("run_id", run.ID),
			zap.Int("iteration", iteration),
			zap.Int("calls", len(reply.ToolCalls)))

		for idx := range reply.ToolCalls {
			call := reply.ToolCalls[idx]
			emit(Event{State: StateExecutingTools, Iteration: iteration, Call: &call})

			result := l.invoker.Invoke(ctx, call, run)
			state.Append(models.ToolResultMessage(call.ID, call.Name, result.String()))

			emit(Event{State: StateExecutingTools, Iteration: iteration, Call: &call, Result: &result})
		}
	}

	run.Termination = models.TerminationExhausted
	l.logger.Warn("Iteration cap reached",
		zap.String("run_id", run.ID),
		zap.Int("max_iterations", l.maxIterations))
	emit(Event{State: StateIterationsExhausted, Iteration: run.Iterations})
	return nil
}
