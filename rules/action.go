package rules

import (
	"encoding/json"
	"math"

	"github.com/rotisserie/eris"
)

// ActionType names the adjustment a rule applies when its condition holds
type ActionType string

const (
	ActionAddAmount       ActionType = "add_amount"
	ActionMultiplyPercent ActionType = "multiply_percent"
	ActionDiscountPercent ActionType = "discount_percent"
	ActionSetMinimum      ActionType = "set_minimum"
	ActionSetMaximum      ActionType = "set_maximum"
)

// Action is the closed set of adjustments a rule can make to the accumulator.
// Implementations live in this package only.
type Action interface {
	Type() ActionType
	// Operand is the numeric value stored alongside the action type
	Operand() float64
	apply(result, base float64) float64
}

// AddAmount adds a fixed amount to the accumulator
type AddAmount struct{ Amount float64 }

// MultiplyPercent adds Percent of the condition field's own value to the
// accumulator.
//
// NOTE: the base is the raw value of the rule's condition field, not the
// running total. Stored rule sets are priced against this, so a "5% of
// value" rule stays 5% of the insured value whatever earlier rules did.
// Do not change it to use the accumulator.
type MultiplyPercent struct{ Percent float64 }

// DiscountPercent scales the accumulator down by Percent
type DiscountPercent struct{ Percent float64 }

// SetMinimum raises the accumulator to Floor when it is below it
type SetMinimum struct{ Floor float64 }

// SetMaximum lowers the accumulator to Ceiling when it is above it
type SetMaximum struct{ Ceiling float64 }

func (AddAmount) Type() ActionType       { return ActionAddAmount }
func (MultiplyPercent) Type() ActionType { return ActionMultiplyPercent }
func (DiscountPercent) Type() ActionType { return ActionDiscountPercent }
func (SetMinimum) Type() ActionType      { return ActionSetMinimum }
func (SetMaximum) Type() ActionType      { return ActionSetMaximum }

func (a AddAmount) Operand() float64       { return a.Amount }
func (a MultiplyPercent) Operand() float64 { return a.Percent }
func (a DiscountPercent) Operand() float64 { return a.Percent }
func (a SetMinimum) Operand() float64      { return a.Floor }
func (a SetMaximum) Operand() float64      { return a.Ceiling }

func (a AddAmount) apply(result, _ float64) float64 {
	return result + a.Amount
}

func (a MultiplyPercent) apply(result, base float64) float64 {
	return result + base*a.Percent/100
}

func (a DiscountPercent) apply(result, _ float64) float64 {
	return result * (1 - a.Percent/100)
}

func (a SetMinimum) apply(result, _ float64) float64 {
	return math.Max(result, a.Floor)
}

func (a SetMaximum) apply(result, _ float64) float64 {
	return math.Min(result, a.Ceiling)
}

// NewAction builds the action variant for a stored type/value pair
func NewAction(t ActionType, value float64) (Action, error) {
	switch t {
	case ActionAddAmount:
		return AddAmount{Amount: value}, nil
	case ActionMultiplyPercent:
		return MultiplyPercent{Percent: value}, nil
	case ActionDiscountPercent:
		return DiscountPercent{Percent: value}, nil
	case ActionSetMinimum:
		return SetMinimum{Floor: value}, nil
	case ActionSetMaximum:
		return SetMaximum{Ceiling: value}, nil
	}
	return nil, eris.Errorf("unknown action type %q", t)
}

// ruleWire is the flat form of a Rule used on the wire, in rule set files
// and in storage rows.
type ruleWire struct {
	ID                string     `json:"id" yaml:"id"`
	ConditionField    string     `json:"conditionField" yaml:"conditionField"`
	ConditionOperator Operator   `json:"conditionOperator" yaml:"conditionOperator"`
	ConditionValue    string     `json:"conditionValue" yaml:"conditionValue"`
	ActionType        ActionType `json:"actionType" yaml:"actionType"`
	ActionValue       float64    `json:"actionValue" yaml:"actionValue"`
	SortOrder         int        `json:"sortOrder" yaml:"sortOrder"`
}

func (w ruleWire) rule() (Rule, error) {
	action, err := NewAction(w.ActionType, w.ActionValue)
	if err != nil {
		return Rule{}, err
	}
	return Rule{
		ID:                w.ID,
		ConditionField:    w.ConditionField,
		ConditionOperator: w.ConditionOperator,
		ConditionValue:    w.ConditionValue,
		Action:            action,
		SortOrder:         w.SortOrder,
	}, nil
}

func (r Rule) wire() ruleWire {
	w := ruleWire{
		ID:                r.ID,
		ConditionField:    r.ConditionField,
		ConditionOperator: r.ConditionOperator,
		ConditionValue:    r.ConditionValue,
		SortOrder:         r.SortOrder,
	}
	if r.Action != nil {
		w.ActionType = r.Action.Type()
		w.ActionValue = r.Action.Operand()
	}
	return w
}

// MarshalJSON flattens the action into actionType and actionValue
func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.wire())
}

// UnmarshalJSON rejects unknown action types
func (r *Rule) UnmarshalJSON(data []byte) error {
	var w ruleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	rule, err := w.rule()
	if err != nil {
		return err
	}
	*r = rule
	return nil
}
