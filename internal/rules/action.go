package rules

import (
	"context"
	"fmt"
	"time"
)

// Handler is a caller-supplied action implementation. Parameters arrive in
// the order declared on the action.
type Handler func(ctx context.Context, params ...any) error

// ActionContext holds the handlers an evaluation pass may dispatch to.
// Rules reference handlers by action type; the mapping from type to
// handler name is fixed in handlerNames.
type ActionContext struct {
	handlers map[string]Handler
}

// NewActionContext returns an empty action context.
func NewActionContext() *ActionContext {
	return &ActionContext{handlers: make(map[string]Handler)}
}

// Register installs a handler under the given name, replacing any previous
// registration.
func (c *ActionContext) Register(name string, h Handler) {
	c.handlers[name] = h
}

// actionSpec fixes the handler name and parameter arity for each known
// action type.
type actionSpec struct {
	handlerName string
	minParams   int
}

var handlerNames = map[string]actionSpec{
	"setPositionSize":    {handlerName: "setPositionSize", minParams: 1},
	"reducePositionSize": {handlerName: "reducePositionSize", minParams: 1},
	"notify":             {handlerName: "notify", minParams: 1},
	"log":                {handlerName: "log", minParams: 1},
	"alert":              {handlerName: "alert", minParams: 1},
}

// Clock abstracts waiting so that delayed actions can run instantly under
// test. Sleep returns early with the context error when the context is
// cancelled before the delay elapses.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NewRealClock returns a Clock backed by the wall clock.
func NewRealClock() Clock {
	return realClock{}
}

// Executor dispatches actions to their handlers, honoring each action's
// scheduling delay.
type Executor struct {
	clock Clock
}

// NewExecutor returns an executor using the given clock; nil selects the
// wall clock.
func NewExecutor(clock Clock) *Executor {
	if clock == nil {
		clock = NewRealClock()
	}
	return &Executor{clock: clock}
}

// Execute waits out the action's delay in place, then invokes the matching
// handler. Missing handlers, unknown action types and absent required
// parameters all yield an ActionError; handler failures are returned as-is.
func (e *Executor) Execute(ctx context.Context, action Action, actionCtx *ActionContext) error {
	spec, ok := handlerNames[action.Type]
	if !ok {
		return &ActionError{ActionType: action.Type, Reason: "unknown action type"}
	}
	if actionCtx == nil {
		return &ActionError{ActionType: action.Type, Reason: "no action context"}
	}
	handler, ok := actionCtx.handlers[spec.handlerName]
	if !ok {
		return &ActionError{
			ActionType: action.Type,
			Reason:     fmt.Sprintf("no handler registered for %q", spec.handlerName),
		}
	}
	if len(action.Parameters) < spec.minParams {
		return &ActionError{
			ActionType: action.Type,
			Reason:     fmt.Sprintf("requires at least %d parameter(s), got %d", spec.minParams, len(action.Parameters)),
		}
	}

	if delay := action.Delay(); delay > 0 {
		if err := e.clock.Sleep(ctx, delay); err != nil {
			return err
		}
	}

	return handler(ctx, action.Parameters...)
}
