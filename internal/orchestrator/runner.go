package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/scenariq/scenariq/internal/core"
	"github.com/scenariq/scenariq/internal/logging"
)

// Handler carries out one action for a specific capability tag
type Handler func(ctx context.Context, e *core.Executor, action core.RecommendedAction) (string, error)

// LocalRunner dispatches actions to in-process handlers keyed by the
// executor's capabilities. Executors without a dedicated handler get the
// default acknowledgement handler, so automated flow never blocks on a
// missing integration.
type LocalRunner struct {
	handlers map[string]Handler
	fallback Handler
	timeout  time.Duration
	log      *logging.Logger
}

// DefaultExecutionTimeout bounds a single executor invocation
const DefaultExecutionTimeout = 30 * time.Second

// NewLocalRunner creates a runner with the default acknowledgement handler
func NewLocalRunner(timeout time.Duration, log *logging.Logger) *LocalRunner {
	if timeout <= 0 {
		timeout = DefaultExecutionTimeout
	}
	if log == nil {
		log = logging.New(logging.INFO, nil)
	}
	r := &LocalRunner{
		handlers: make(map[string]Handler),
		timeout:  timeout,
		log:      log,
	}
	r.fallback = func(ctx context.Context, e *core.Executor, action core.RecommendedAction) (string, error) {
		return fmt.Sprintf("executor %s acknowledged action %q", e.Name, action.Name), nil
	}
	return r
}

// RegisterHandler binds a handler to a capability tag
func (r *LocalRunner) RegisterHandler(capability string, h Handler) {
	r.handlers[capability] = h
}

// Execute runs the action through the first capability with a registered
// handler, falling back to acknowledgement. The invocation gets a bounded
// timeout regardless of the caller's context.
func (r *LocalRunner) Execute(ctx context.Context, e *core.Executor, action core.RecommendedAction) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	handler := r.fallback
	for _, tag := range e.Capabilities {
		if h, ok := r.handlers[tag]; ok {
			handler = h
			break
		}
	}

	start := time.Now()
	output, err := handler(ctx, e, action)
	if err != nil {
		r.log.Warn("execution of %q via %s failed after %s: %v", action.Name, e.ID, time.Since(start), err)
		return "", err
	}

	r.log.Info("executed %q via %s in %s", action.Name, e.ID, time.Since(start))
	return output, nil
}
