package automation

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/rotisserie/eris"
)

// costLimit bounds the work one preview expression may do
const costLimit = 1000000

// ConditionResult reports one condition's outcome in a preview
type ConditionResult struct {
	ConditionID string   `json:"conditionId"`
	Field       string   `json:"field"`
	Operator    Operator `json:"operator"`
	Value       string   `json:"value"`
	Matched     bool     `json:"matched"`
}

// PreviewResult is the outcome of testing a workflow's conditions against a
// sample record. No actions are run.
type PreviewResult struct {
	Matched    bool              `json:"matched"`
	Expression string            `json:"expression"`
	Conditions []ConditionResult `json:"conditions"`
}

// Previewer compiles workflow conditions to CEL and evaluates them against
// sample records. Records are exposed to expressions as two maps: text, the
// string form of every present field, and number, the fields with a numeric
// reading. Safe for concurrent use.
type Previewer struct {
	env *cel.Env
}

// NewPreviewer creates the CEL environment used for previews
func NewPreviewer() (*Previewer, error) {
	env, err := cel.NewEnv(
		cel.Variable("text", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("number", cel.MapType(cel.StringType, cel.DoubleType)),
	)
	if err != nil {
		return nil, eris.Wrap(err, "create CEL environment")
	}
	return &Previewer{env: env}, nil
}

// Preview evaluates w's conditions against record. A field missing from the
// record makes its condition false.
func (p *Previewer) Preview(w *Workflow, record map[string]any) (*PreviewResult, error) {
	vars := recordVars(record)
	conditions := orderedConditions(w.Conditions)

	res := &PreviewResult{
		Expression: Expression(w),
		Conditions: make([]ConditionResult, 0, len(conditions)),
	}
	for _, c := range conditions {
		ok, err := p.eval(conditionExpr(c), vars)
		if err != nil {
			return nil, eris.Wrapf(err, "condition %s", c.ID)
		}
		res.Conditions = append(res.Conditions, ConditionResult{
			ConditionID: c.ID,
			Field:       c.Field,
			Operator:    c.Operator,
			Value:       c.Value,
			Matched:     ok,
		})
	}

	matched, err := p.eval(res.Expression, vars)
	if err != nil {
		return nil, eris.Wrap(err, "workflow conditions")
	}
	res.Matched = matched
	return res, nil
}

// Check compiles w's conditions without evaluating them
func (p *Previewer) Check(w *Workflow) error {
	_, err := p.compile(Expression(w))
	return err
}

func (p *Previewer) compile(expr string) (cel.Program, error) {
	ast, issues := p.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, eris.Wrapf(issues.Err(), "compile %q", expr)
	}
	prg, err := p.env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, eris.Wrap(err, "program creation")
	}
	return prg, nil
}

func (p *Previewer) eval(expr string, vars map[string]any) (bool, error) {
	prg, err := p.compile(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(vars)
	if err != nil {
		return false, eris.Wrapf(err, "evaluate %q", expr)
	}
	matched, _ := out.Value().(bool)
	return matched, nil
}

// Expression returns the CEL source for w's conditions. A workflow without
// conditions always matches.
func Expression(w *Workflow) string {
	conditions := orderedConditions(w.Conditions)
	if len(conditions) == 0 {
		return "true"
	}

	join := " && "
	if w.Match == MatchAny {
		join = " || "
	}

	parts := make([]string, len(conditions))
	for i, c := range conditions {
		parts[i] = "(" + conditionExpr(c) + ")"
	}
	return strings.Join(parts, join)
}

func conditionExpr(c Condition) string {
	key := strconv.Quote(c.Field)
	want := strconv.Quote(c.Value)

	switch c.Operator {
	case OpEqual, OpNotEqual:
		return fmt.Sprintf("%s in text && text[%s] %s %s", key, key, celOperator(c.Operator), want)
	case OpContains:
		return fmt.Sprintf("%s in text && text[%s].contains(%s)", key, key, want)
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		f, err := strconv.ParseFloat(strings.TrimSpace(c.Value), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return "false"
		}
		return fmt.Sprintf("%s in number && number[%s] %s %s", key, key, celOperator(c.Operator), doubleLiteral(f))
	}
	return "false"
}

func celOperator(op Operator) string {
	if op == OpEqual {
		return "=="
	}
	return string(op)
}

// doubleLiteral formats f so CEL parses it as a double, not an int
func doubleLiteral(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func orderedConditions(conditions []Condition) []Condition {
	out := slices.Clone(conditions)
	slices.SortStableFunc(out, func(a, b Condition) int {
		return cmp.Compare(a.SortOrder, b.SortOrder)
	})
	return out
}

// recordVars splits a record into the text and number maps expressions see
func recordVars(record map[string]any) map[string]any {
	text := make(map[string]string, len(record))
	number := make(map[string]float64, len(record))

	for k, v := range record {
		if v == nil {
			continue
		}
		switch x := v.(type) {
		case string:
			text[k] = x
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
				number[k] = f
			}
		case bool:
			text[k] = strconv.FormatBool(x)
		case float64:
			text[k] = strconv.FormatFloat(x, 'f', -1, 64)
			if !math.IsNaN(x) && !math.IsInf(x, 0) {
				number[k] = x
			}
		case int:
			text[k] = strconv.Itoa(x)
			number[k] = float64(x)
		case int64:
			text[k] = strconv.FormatInt(x, 10)
			number[k] = float64(x)
		default:
			text[k] = fmt.Sprint(x)
		}
	}

	return map[string]any{"text": text, "number": number}
}
