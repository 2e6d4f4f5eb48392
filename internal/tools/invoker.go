package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ashutoshrp06/parcel-agent/pkg/models"
	"go.uber.org/zap"
)

// Recorder receives one record per invocation.
type Recorder interface {
	Record(rec models.ToolCallRecord)
}

// Invoker executes model-issued tool calls against a Registry. A call never
// fails the caller: unknown tools, invalid arguments, handler errors and
// panics come back as unsuccessful results. The per-call timeout reaches the
// handler through ctx, so it only cuts a call short when the handler honours
// cancellation. A handler that returns the deadline error is reported as
// timed out.
type Invoker struct {
	registry *Registry
	timeout  time.Duration
	logger   *zap.Logger
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithTimeout sets the deadline of every handler's context. Zero disables it.
func WithTimeout(d time.Duration) InvokerOption {
	return func(i *Invoker) { i.timeout = d }
}

// WithLogger sets the invoker's logger.
func WithLogger(l *zap.Logger) InvokerOption {
	return func(i *Invoker) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewInvoker creates an invoker bound to registry.
func NewInvoker(registry *Registry, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		registry: registry,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke runs one call and records the outcome into rec (which may be nil).
func (i *Invoker) Invoke(ctx context.Context, call models.ToolCall, rec Recorder) models.ToolResult {
	start := time.Now()
	result := i.invoke(ctx, call)
	result.CallID = call.ID
	result.ToolName = call.Name
	result.Duration = time.Since(start)

	text := result.String()
	if rec != nil {
		rec.Record(models.ToolCallRecord{
			Tool:      call.Name,
			CallID:    call.ID,
			Arguments: recordedArgs(call.Arguments),
			Result:    text,
			Success:   result.Success,
			Duration:  result.Duration,
		})
	}

	if result.Success {
		i.logger.Info("Tool call succeeded",
			zap.String("tool", call.Name),
			zap.String("call_id", call.ID),
			zap.Duration("duration", result.Duration))
	} else {
		i.logger.Warn("Tool call failed",
			zap.String("tool", call.Name),
			zap.String("call_id", call.ID),
			zap.String("error", result.Error),
			zap.Duration("duration", result.Duration))
	}

	return result
}

func (i *Invoker) invoke(ctx context.Context, call models.ToolCall) models.ToolResult {
	handler, spec, ok := i.registry.Lookup(call.Name)
	if !ok {
		return failure(fmt.Sprintf("unknown tool: %s", call.Name))
	}

	args, err := DecodeArgs(call.Arguments)
	if err != nil {
		return failure(fmt.Sprintf("invalid arguments: %v", err))
	}

	args, err = ValidateArgs(spec, args)
	if err != nil {
		return failure(fmt.Sprintf("invalid arguments: %v", err))
	}

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	output, err := safeExecute(ctx, handler, args)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return failure(fmt.Sprintf("%s timed out: %v", call.Name, err))
		}
		return failure(err.Error())
	}

	return models.ToolResult{Success: true, Output: output}
}

func safeExecute(ctx context.Context, handler Handler, args Args) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return handler.Execute(ctx, args)
}

// recordedArgs keeps the log marshalable when the model sent broken JSON.
func recordedArgs(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || json.Valid(raw) {
		return raw
	}
	quoted, err := json.Marshal(string(raw))
	if err != nil {
		return nil
	}
	return quoted
}

func failure(msg string) models.ToolResult {
	return models.ToolResult{Success: false, Error: msg}
}
