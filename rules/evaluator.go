package rules

import (
	"cmp"
	"encoding/json"
	"slices"
)

// Step records what one rule did during a traced evaluation. Before and
// After hold the raw accumulator, which may leave the finite range part way
// through a run; JSON encodes such values as null.
type Step struct {
	RuleID    string     `json:"ruleId"`
	SortOrder int        `json:"sortOrder"`
	Field     string     `json:"field"`
	Action    ActionType `json:"action"`
	Matched   bool       `json:"matched"`
	Before    float64    `json:"before"`
	After     float64    `json:"after"`
}

// Evaluate applies rules in ascending SortOrder to an accumulator starting
// at zero and returns the final value.
//
// It is a total function: missing fields, unparseable numbers and unknown
// operators make a condition false, and the result is always finite: a
// NaN or infinite accumulator is folded to 0 once all rules have run.
func Evaluate(rules []Rule, values Values) float64 {
	result, _ := evaluate(rules, values, false)
	return result
}

// Trace evaluates like Evaluate and also reports every rule's effect in
// evaluation order
func Trace(rules []Rule, values Values) (float64, []Step) {
	return evaluate(rules, values, true)
}

func evaluate(rules []Rule, values Values, trace bool) (float64, []Step) {
	ordered := Ordered(rules)

	var steps []Step
	if trace {
		steps = make([]Step, 0, len(ordered))
	}

	result := 0.0
	for _, rule := range ordered {
		before := result
		raw, present := values[rule.ConditionField]

		matched := rule.Action != nil && matches(rule.ConditionOperator, raw, present, rule.ConditionValue)
		if matched {
			result = rule.Action.apply(result, finite(numberValue(raw)))
		}

		if trace {
			step := Step{
				RuleID:    rule.ID,
				SortOrder: rule.SortOrder,
				Field:     rule.ConditionField,
				Matched:   matched,
				Before:    before,
				After:     result,
			}
			if rule.Action != nil {
				step.Action = rule.Action.Type()
			}
			steps = append(steps, step)
		}
	}

	return finite(result), steps
}

func (s Step) MarshalJSON() ([]byte, error) {
	type step Step
	return json.Marshal(struct {
		step
		Before *float64 `json:"before"`
		After  *float64 `json:"after"`
	}{step(s), finitePtr(s.Before), finitePtr(s.After)})
}

func finitePtr(f float64) *float64 {
	if finite(f) != f {
		return nil
	}
	return &f
}

// Ordered returns a copy of rules sorted by SortOrder. Rules sharing a
// SortOrder keep their relative order.
func Ordered(rules []Rule) []Rule {
	out := slices.Clone(rules)
	slices.SortStableFunc(out, func(a, b Rule) int {
		return cmp.Compare(a.SortOrder, b.SortOrder)
	})
	return out
}
