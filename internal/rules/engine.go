package rules

import (
	"context"
	"sort"
)

// Event types emitted through Hooks.OnEvent.
const (
	EventRuleMatched    = "ruleMatched"
	EventActionExecuted = "actionExecuted"
	EventError          = "error"
)

// Event is one observability notification from an evaluation pass.
type Event struct {
	Type   string
	RuleID string
	Action string
	Err    error
}

// Logger receives structured notifications during evaluation. Any method
// set may be left as a no-op by implementations.
type Logger interface {
	RuleMatched(rule Rule)
	ActionExecuted(rule Rule, action Action)
	Error(rule Rule, err error)
}

// Hooks bundles the optional observers for an evaluation pass. Both fields
// may be nil.
type Hooks struct {
	OnEvent func(Event)
	Logger  Logger
}

func (h *Hooks) emit(ev Event) {
	if h != nil && h.OnEvent != nil {
		h.OnEvent(ev)
	}
}

func (h *Hooks) ruleMatched(rule Rule) {
	if h != nil && h.Logger != nil {
		h.Logger.RuleMatched(rule)
	}
	h.emit(Event{Type: EventRuleMatched, RuleID: rule.ID})
}

func (h *Hooks) actionExecuted(rule Rule, action Action) {
	if h != nil && h.Logger != nil {
		h.Logger.ActionExecuted(rule, action)
	}
	h.emit(Event{Type: EventActionExecuted, RuleID: rule.ID, Action: action.Type})
}

func (h *Hooks) failed(rule Rule, err error) {
	if h != nil && h.Logger != nil {
		h.Logger.Error(rule, err)
	}
	h.emit(Event{Type: EventError, RuleID: rule.ID, Err: err})
}

// ruleState tracks a rule through one evaluation pass.
type ruleState int

const (
	statePending ruleState = iota
	stateSkipped
	stateNotMatched
	stateCompleted
	stateFailed
)

// Engine evaluates rule sets against context data. An Engine is stateless
// across passes and safe to reuse.
type Engine struct {
	executor *Executor
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock substitutes the clock used for delayed actions.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		e.executor = NewExecutor(clock)
	}
}

// NewEngine returns an engine with the wall clock unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{executor: NewExecutor(nil)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs one pass over the rule set.
//
// Disabled rules are dropped up front and never reach the hooks. The
// remaining rules run lowest priority tier first so that a high-priority
// rule's side effects land last and win; ties keep their declared order.
// A rule's dependencies always run before it regardless of tier, and the
// rule is skipped when a dependency is missing from the set, disabled, or
// did not match. The first evaluation or action error stops the pass and
// is returned.
func (e *Engine) Evaluate(ctx context.Context, set *RuleSet, contextData map[string]any, actionCtx *ActionContext, hooks *Hooks) error {
	if set == nil || len(set.Rules) == 0 {
		return nil
	}

	byID := make(map[string]*Rule, len(set.Rules))
	for i := range set.Rules {
		byID[set.Rules[i].ID] = &set.Rules[i]
	}

	if cycle := findCycle(set.Rules, byID); cycle != nil {
		return &CyclicDependencyError{RuleIDs: cycle}
	}

	enabled := make([]*Rule, 0, len(set.Rules))
	for i := range set.Rules {
		if set.Rules[i].Enabled {
			enabled = append(enabled, &set.Rules[i])
		}
	}

	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority.rank() < enabled[j].Priority.rank()
	})

	// Emit each rule after its dependencies so chains execute in order even
	// across priority tiers.
	order := make([]*Rule, 0, len(enabled))
	emitted := make(map[string]bool, len(enabled))
	var emit func(r *Rule)
	emit = func(r *Rule) {
		if emitted[r.ID] {
			return
		}
		emitted[r.ID] = true
		for _, depID := range r.Dependencies {
			if dep, ok := byID[depID]; ok && dep.Enabled {
				emit(dep)
			}
		}
		order = append(order, r)
	}
	for _, r := range enabled {
		emit(r)
	}

	states := make(map[string]ruleState, len(order))

	for _, rule := range order {
		if err := ctx.Err(); err != nil {
			return err
		}

		if skip := e.dependenciesUnmet(rule, byID, states); skip {
			states[rule.ID] = stateSkipped
			continue
		}

		matched, err := EvaluateCondition(rule.Conditions, contextData)
		if err != nil {
			states[rule.ID] = stateFailed
			hooks.failed(*rule, err)
			return err
		}
		if !matched {
			states[rule.ID] = stateNotMatched
			continue
		}

		hooks.ruleMatched(*rule)

		for _, action := range rule.Actions {
			if err := e.executor.Execute(ctx, action, actionCtx); err != nil {
				states[rule.ID] = stateFailed
				hooks.failed(*rule, err)
				return err
			}
			hooks.actionExecuted(*rule, action)
		}

		states[rule.ID] = stateCompleted
	}

	return nil
}

// dependenciesUnmet reports whether a rule must be skipped: a dependency
// that does not resolve, is disabled, or did not complete with a match.
func (e *Engine) dependenciesUnmet(rule *Rule, byID map[string]*Rule, states map[string]ruleState) bool {
	for _, depID := range rule.Dependencies {
		dep, ok := byID[depID]
		if !ok || !dep.Enabled {
			return true
		}
		if states[depID] != stateCompleted {
			return true
		}
	}
	return false
}

// findCycle detects a dependency cycle over the whole rule set, returning
// the rule IDs along the cycle or nil. Detection runs before any rule is
// evaluated.
func findCycle(ruleList []Rule, byID map[string]*Rule) []string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	colors := make(map[string]int, len(ruleList))

	var stack []string
	var visit func(id string) []string
	visit = func(id string) []string {
		rule, ok := byID[id]
		if !ok {
			return nil
		}
		switch colors[id] {
		case visiting:
			// Trim the stack to the cycle entry point.
			for i, onStack := range stack {
				if onStack == id {
					return append(append([]string{}, stack[i:]...), id)
				}
			}
			return []string{id, id}
		case done:
			return nil
		}

		colors[id] = visiting
		stack = append(stack, id)
		for _, depID := range rule.Dependencies {
			if cycle := visit(depID); cycle != nil {
				return cycle
			}
		}
		stack = stack[:len(stack)-1]
		colors[id] = done
		return nil
	}

	for _, rule := range ruleList {
		if cycle := visit(rule.ID); cycle != nil {
			return cycle
		}
	}
	return nil
}
