// Package rules provides a rule engine for trading alerts: simple and
// compound conditions evaluated against caller-supplied context data,
// priority-ordered execution with dependency chains, and actions dispatched
// to caller-registered handlers, optionally after a scheduling delay.
package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Priority is the coarse ordering tier for a rule. Higher-priority rules
// execute after lower-priority ones within an evaluation pass so that their
// side effects win when several rules target the same context field.
type Priority string

const (
	PriorityHigh Priority = "high"
	PriorityLow  Priority = "low"
	// PriorityNone is the unset tier, ordered between low and high.
	PriorityNone Priority = ""
)

// rank maps a priority to its execution order: low first, unset next,
// high last (last write wins).
func (p Priority) rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityHigh:
		return 2
	default:
		return 1
	}
}

func validPriority(p Priority) bool {
	return p == PriorityHigh || p == PriorityLow || p == PriorityNone
}

// Condition is either a simple field/operator/value predicate or a
// compound AND/OR tree. Exactly one of {Field+Operator, And, Or} should be
// populated; Validate enforces this.
type Condition struct {
	Field    string `json:"field,omitempty" yaml:"field,omitempty"`
	Operator string `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`

	And []Condition `json:"and,omitempty" yaml:"and,omitempty"`
	Or  []Condition `json:"or,omitempty" yaml:"or,omitempty"`
}

// IsCompound reports whether the condition is an AND/OR group.
func (c Condition) IsCompound() bool {
	return len(c.And) > 0 || len(c.Or) > 0
}

// Action is one action descriptor: a type resolved to a handler on the
// action context, ordered parameters, and an optional execution delay.
type Action struct {
	Type       string `json:"type" yaml:"type"`
	Parameters []any  `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	// ExecuteAtMillis defers execution by the given duration. The delay is
	// awaited in place: the evaluation pass does not advance to the next
	// rule until the action has fired.
	ExecuteAtMillis int64 `json:"executeAt,omitempty" yaml:"executeAt,omitempty"`
}

// Delay returns the scheduling delay as a duration; zero means immediate.
func (a Action) Delay() time.Duration {
	return time.Duration(a.ExecuteAtMillis) * time.Millisecond
}

// Metadata carries rule provenance.
type Metadata struct {
	Version   string `json:"version,omitempty" yaml:"version,omitempty"`
	CreatedBy string `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
	CreatedAt string `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// Rule is one rule of a rule set.
//
// A rule with Dependencies is only evaluated after all listed rule IDs
// have completed evaluation in the same pass; it is skipped when a
// dependency did not match or does not resolve to any rule in the set.
type Rule struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Description  string    `json:"description,omitempty" yaml:"description,omitempty"`
	Type         string    `json:"type,omitempty" yaml:"type,omitempty"`
	Enabled      bool      `json:"enabled" yaml:"enabled"`
	Conditions   Condition `json:"conditions" yaml:"conditions"`
	Actions      []Action  `json:"actions,omitempty" yaml:"actions,omitempty"`
	Priority     Priority  `json:"priority,omitempty" yaml:"priority,omitempty"`
	Dependencies []string  `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Metadata     Metadata  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// RuleSet is the top-level rule file structure.
type RuleSet struct {
	Rules []Rule `json:"rules" yaml:"rules"`
}

// NewRuleSet validates a slice of rules and returns them as a set. All
// invariants are checked: non-empty unique IDs, valid priority tier,
// recognizable condition operators, non-empty action types and
// non-negative delays.
func NewRuleSet(ruleList []Rule) (*RuleSet, error) {
	seen := make(map[string]struct{}, len(ruleList))

	for i, rule := range ruleList {
		if rule.ID == "" {
			return nil, fmt.Errorf("rule %d (%s): ID cannot be empty", i, rule.Name)
		}
		if _, dup := seen[rule.ID]; dup {
			return nil, fmt.Errorf("rule %d (%s): duplicate rule ID %q", i, rule.Name, rule.ID)
		}
		seen[rule.ID] = struct{}{}

		if !validPriority(rule.Priority) {
			return nil, fmt.Errorf("rule %d (%s): invalid priority %q (must be 'high', 'low' or unset)", i, rule.Name, rule.Priority)
		}

		if err := validateCondition(rule.Conditions); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rule.Name, err)
		}

		for j, action := range rule.Actions {
			if action.Type == "" {
				return nil, fmt.Errorf("rule %d (%s): action %d has no type", i, rule.Name, j)
			}
			if action.ExecuteAtMillis < 0 {
				return nil, fmt.Errorf("rule %d (%s): action %d has negative executeAt", i, rule.Name, j)
			}
		}
	}

	return &RuleSet{Rules: ruleList}, nil
}

// validateCondition checks a condition tree recursively. A compound node
// must not also carry a simple predicate, and a simple node must use a
// recognized operator.
func validateCondition(c Condition) error {
	if len(c.And) > 0 && len(c.Or) > 0 {
		return fmt.Errorf("condition cannot combine 'and' and 'or' at the same level")
	}

	if c.IsCompound() {
		if c.Field != "" || c.Operator != "" {
			return fmt.Errorf("compound condition cannot also carry field/operator")
		}
		for _, sub := range append(append([]Condition{}, c.And...), c.Or...) {
			if err := validateCondition(sub); err != nil {
				return err
			}
		}
		return nil
	}

	if c.Operator == "" {
		return fmt.Errorf("condition has no operator")
	}
	if !knownOperator(c.Operator) {
		return fmt.Errorf("unknown operator %q", c.Operator)
	}
	if c.Field == "" {
		return fmt.Errorf("condition with operator %q has no field", c.Operator)
	}
	return nil
}

// LoadYAML parses and validates a YAML rule file.
func LoadYAML(data []byte) (*RuleSet, error) {
	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rules (check syntax, indentation, and field names): %w", err)
	}
	return NewRuleSet(set.Rules)
}

// LoadJSON parses and validates a JSON rule file. Both a bare rule array
// and a {"rules": [...]} wrapper are accepted.
func LoadJSON(data []byte) (*RuleSet, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var ruleList []Rule
		if err := json.Unmarshal(data, &ruleList); err != nil {
			return nil, fmt.Errorf("failed to parse JSON rules: %w", err)
		}
		return NewRuleSet(ruleList)
	}

	var set RuleSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse JSON rules: %w", err)
	}
	return NewRuleSet(set.Rules)
}

// LoadFromFile loads rules from a filesystem path, selecting the format by
// extension (.yaml/.yml or .json).
func LoadFromFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var set *RuleSet
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		set, err = LoadYAML(data)
	case ".json":
		set, err = LoadJSON(data)
	default:
		return nil, fmt.Errorf("unsupported rules file extension %q (expected .yaml, .yml or .json)", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rules from %q: %w", path, err)
	}
	return set, nil
}
