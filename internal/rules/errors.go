package rules

import (
	"fmt"
	"strings"
)

// EvaluationError reports a condition that could not be evaluated, such as
// an unrecognized operator or an invalid regular expression.
type EvaluationError struct {
	Operator string
	Field    string
	Reason   string
}

func (e *EvaluationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("condition evaluation failed for field %q (operator %q): %s", e.Field, e.Operator, e.Reason)
	}
	return fmt.Sprintf("condition evaluation failed (operator %q): %s", e.Operator, e.Reason)
}

// ActionError reports an action that could not be executed: no matching
// handler in the action context, an unknown action type, or a missing
// required parameter.
type ActionError struct {
	ActionType string
	Reason     string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %q failed: %s", e.ActionType, e.Reason)
}

// CyclicDependencyError reports a dependency cycle in a rule set. The
// engine detects cycles before evaluating any rule rather than looping or
// silently skipping.
type CyclicDependencyError struct {
	RuleIDs []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic rule dependency: %s", strings.Join(e.RuleIDs, " -> "))
}
