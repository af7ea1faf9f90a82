package rules

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `rules:
  - id: size-cap
    name: Position size cap
    description: Cap position size on large accounts
    type: risk
    enabled: true
    priority: high
    conditions:
      and:
        - field: account.balance
          operator: ">="
          value: 25000
        - field: symbol
          operator: in
          value: [AAPL, MSFT]
    actions:
      - type: setPositionSize
        parameters: [100]
        executeAt: 500
    metadata:
      version: "1"
      createdBy: risk-team
  - id: notify-fill
    name: Notify on fill
    enabled: false
    dependencies: [size-cap]
    conditions:
      field: filled
      operator: "=="
      value: true
    actions:
      - type: notify
        parameters: ["order filled"]
`

func TestLoadYAML(t *testing.T) {
	set, err := LoadYAML([]byte(sampleYAML))
	require.NoError(t, err)
	require.Len(t, set.Rules, 2)

	first := set.Rules[0]
	assert.Equal(t, "size-cap", first.ID)
	assert.Equal(t, PriorityHigh, first.Priority)
	assert.True(t, first.Enabled)
	require.Len(t, first.Conditions.And, 2)
	assert.Equal(t, ">=", first.Conditions.And[0].Operator)
	require.Len(t, first.Actions, 1)
	assert.Equal(t, "setPositionSize", first.Actions[0].Type)
	assert.Equal(t, 500*time.Millisecond, first.Actions[0].Delay())
	assert.Equal(t, "risk-team", first.Metadata.CreatedBy)

	second := set.Rules[1]
	assert.False(t, second.Enabled)
	assert.Equal(t, []string{"size-cap"}, second.Dependencies)
	assert.Equal(t, PriorityNone, second.Priority)
}

func TestLoadJSON(t *testing.T) {
	wrapped := `{"rules":[{"id":"r1","name":"r1","enabled":true,"conditions":{"field":"price","operator":">","value":100}}]}`
	set, err := LoadJSON([]byte(wrapped))
	require.NoError(t, err)
	require.Len(t, set.Rules, 1)
	assert.Equal(t, "r1", set.Rules[0].ID)

	bare := `[{"id":"r2","name":"r2","enabled":true,"conditions":{"field":"price","operator":"<","value":50}}]`
	set, err = LoadJSON([]byte(bare))
	require.NoError(t, err)
	require.Len(t, set.Rules, 1)
	assert.Equal(t, "r2", set.Rules[0].ID)
}

func TestLoadYAML_InvalidSyntax(t *testing.T) {
	_, err := LoadYAML([]byte("rules:\n  - id: [unclosed"))
	assert.Error(t, err)
}

func TestNewRuleSet_Validation(t *testing.T) {
	valid := func() Rule {
		return Rule{
			ID: "r1", Name: "rule one", Enabled: true,
			Conditions: Condition{Field: "price", Operator: OpGreater, Value: 1},
			Actions:    []Action{{Type: "notify", Parameters: []any{"hi"}}},
		}
	}

	tests := []struct {
		name    string
		mutate  func([]Rule) []Rule
		wantErr string
	}{
		{"empty id", func(rs []Rule) []Rule { rs[0].ID = ""; return rs }, "ID cannot be empty"},
		{"duplicate id", func(rs []Rule) []Rule { return append(rs, valid()) }, "duplicate rule ID"},
		{"invalid priority", func(rs []Rule) []Rule { rs[0].Priority = "urgent"; return rs }, "invalid priority"},
		{"unknown operator", func(rs []Rule) []Rule { rs[0].Conditions.Operator = "~="; return rs }, "unknown operator"},
		{"missing operator", func(rs []Rule) []Rule { rs[0].Conditions.Operator = ""; return rs }, "no operator"},
		{"missing field", func(rs []Rule) []Rule { rs[0].Conditions.Field = ""; return rs }, "no field"},
		{"action without type", func(rs []Rule) []Rule { rs[0].Actions[0].Type = ""; return rs }, "no type"},
		{"negative delay", func(rs []Rule) []Rule { rs[0].Actions[0].ExecuteAtMillis = -1; return rs }, "negative executeAt"},
		{
			"mixed and/or",
			func(rs []Rule) []Rule {
				rs[0].Conditions = Condition{
					And: []Condition{{Field: "a", Operator: OpEqual, Value: 1}},
					Or:  []Condition{{Field: "b", Operator: OpEqual, Value: 2}},
				}
				return rs
			},
			"cannot combine",
		},
		{
			"compound with field",
			func(rs []Rule) []Rule {
				rs[0].Conditions = Condition{
					Field: "a", Operator: OpEqual,
					And: []Condition{{Field: "b", Operator: OpEqual, Value: 2}},
				}
				return rs
			},
			"compound condition",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRuleSet(tt.mutate([]Rule{valid()}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	set, err := NewRuleSet([]Rule{valid()})
	require.NoError(t, err)
	assert.Len(t, set.Rules, 1)
}

func TestNewRuleSet_ZeroActionsAllowed(t *testing.T) {
	set, err := NewRuleSet([]Rule{{
		ID: "gate", Name: "gate", Enabled: true,
		Conditions: Condition{Field: "ready", Operator: OpEqual, Value: true},
	}})
	require.NoError(t, err)
	assert.Empty(t, set.Rules[0].Actions)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(sampleYAML), 0o644))

	set, err := LoadFromFile(yamlPath)
	require.NoError(t, err)
	assert.Len(t, set.Rules, 2)

	jsonPath := filepath.Join(dir, "rules.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"rules":[]}`), 0o644))
	set, err = LoadFromFile(jsonPath)
	require.NoError(t, err)
	assert.Empty(t, set.Rules)

	_, err = LoadFromFile(filepath.Join(dir, "rules.toml"))
	assert.Error(t, err)

	_, err = LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
