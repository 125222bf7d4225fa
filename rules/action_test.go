package rules

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewAction(t *testing.T) {
	tests := []struct {
		typ  ActionType
		want Action
	}{
		{ActionAddAmount, AddAmount{Amount: 7}},
		{ActionMultiplyPercent, MultiplyPercent{Percent: 7}},
		{ActionDiscountPercent, DiscountPercent{Percent: 7}},
		{ActionSetMinimum, SetMinimum{Floor: 7}},
		{ActionSetMaximum, SetMaximum{Ceiling: 7}},
	}

	for _, tt := range tests {
		got, err := NewAction(tt.typ, 7)
		if err != nil {
			t.Fatalf("NewAction(%s) failed: %v", tt.typ, err)
		}
		if got != tt.want {
			t.Errorf("NewAction(%s) = %#v, want %#v", tt.typ, got, tt.want)
		}
		if got.Type() != tt.typ || got.Operand() != 7 {
			t.Errorf("%#v reports type %s operand %v", got, got.Type(), got.Operand())
		}
	}

	if _, err := NewAction("surcharge", 1); err == nil {
		t.Error("NewAction() with unknown type should return error")
	}
}

func TestActionApply(t *testing.T) {
	tests := []struct {
		action Action
		result float64
		base   float64
		want   float64
	}{
		{AddAmount{Amount: 25}, 100, 0, 125},
		{MultiplyPercent{Percent: 5}, 100, 6000, 400},
		{DiscountPercent{Percent: 10}, 200, 0, 180},
		{DiscountPercent{Percent: 100}, 200, 0, 0},
		{SetMinimum{Floor: 100}, 50, 0, 100},
		{SetMinimum{Floor: 100}, 150, 0, 150},
		{SetMaximum{Ceiling: 100}, 150, 0, 100},
		{SetMaximum{Ceiling: 100}, 50, 0, 50},
	}

	for _, tt := range tests {
		if got := tt.action.apply(tt.result, tt.base); got != tt.want {
			t.Errorf("%#v.apply(%v, %v) = %v, want %v", tt.action, tt.result, tt.base, got, tt.want)
		}
	}
}

func TestRuleJSON(t *testing.T) {
	in := `{"id":"r1","conditionField":"value","conditionOperator":">","conditionValue":"1000","actionType":"add_amount","actionValue":50,"sortOrder":3}`

	var r Rule
	if err := json.Unmarshal([]byte(in), &r); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if r.Action != (AddAmount{Amount: 50}) {
		t.Errorf("Action = %#v, want AddAmount{50}", r.Action)
	}
	if r.ID != "r1" || r.ConditionOperator != OpGreater || r.SortOrder != 3 {
		t.Errorf("Rule = %+v", r)
	}

	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(out), `"actionType":"add_amount"`) || !strings.Contains(string(out), `"actionValue":50`) {
		t.Errorf("Marshal = %s, want flattened action", out)
	}
}

func TestRuleJSONUnknownAction(t *testing.T) {
	var r Rule
	err := json.Unmarshal([]byte(`{"conditionField":"x","actionType":"surcharge","actionValue":1}`), &r)
	if err == nil {
		t.Fatal("Unmarshal with unknown action type should return error")
	}
	if !strings.Contains(err.Error(), "surcharge") {
		t.Errorf("error %q should name the action type", err)
	}
}
