package rules

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

const (
	maxNameLength  = 200
	maxFields      = 200
	maxRules       = 500
	maxIdentLength = 100
)

var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Problem is one validation failure, addressed by a path such as "rules[2].conditionField"
type Problem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError collects every problem found in a rule set
type ValidationError struct {
	Problems []Problem `json:"problems"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Path + ": " + p.Message
	}
	return "invalid rule set: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(path, format string, args ...any) {
	e.Problems = append(e.Problems, Problem{Path: path, Message: fmt.Sprintf(format, args...)})
}

// ValidateRuleSet checks a rule set before it is saved. It returns a
// *ValidationError listing every problem, or nil.
func ValidateRuleSet(rs *RuleSet) error {
	verr := &ValidationError{}

	name := strings.TrimSpace(rs.Name)
	if name == "" {
		verr.add("name", "name is required")
	} else if len(name) > maxNameLength {
		verr.add("name", "name is %d characters, maximum is %d", len(name), maxNameLength)
	}

	if len(rs.Fields) > maxFields {
		verr.add("fields", "rule set has %d fields, maximum is %d", len(rs.Fields), maxFields)
	}
	if len(rs.Rules) > maxRules {
		verr.add("rules", "rule set has %d rules, maximum is %d", len(rs.Rules), maxRules)
	}

	fieldsByName := make(map[string]Field, len(rs.Fields))
	fieldIDs := make(map[string]bool, len(rs.Fields))
	for i, f := range rs.Fields {
		path := fmt.Sprintf("fields[%d]", i)
		checkUniqueID(verr, fieldIDs, path+".id", f.ID)
		if err := validateIdentifier(f.Name); err != nil {
			verr.add(path+".name", "%v", err)
		} else if _, dup := fieldsByName[f.Name]; dup {
			verr.add(path+".name", "duplicate field name %q", f.Name)
		} else {
			fieldsByName[f.Name] = f
		}

		if !f.Type.Valid() {
			verr.add(path+".type", "unknown field type %q (must be one of: number, text, select, boolean, date)", f.Type)
		}
		if f.Type == FieldSelect && len(f.Options) == 0 {
			verr.add(path+".options", "select field %q needs at least one option", f.Name)
		}
		if f.Type != FieldSelect && len(f.Options) > 0 {
			verr.add(path+".options", "options are only allowed on select fields")
		}
	}

	ruleIDs := make(map[string]bool, len(rs.Rules))
	for i, r := range rs.Rules {
		path := fmt.Sprintf("rules[%d]", i)
		checkUniqueID(verr, ruleIDs, path+".id", r.ID)
		if r.ConditionField == "" {
			verr.add(path+".conditionField", "condition field is required")
		} else if _, ok := fieldsByName[r.ConditionField]; !ok {
			verr.add(path+".conditionField", "unknown field %q", r.ConditionField)
		}

		if !r.ConditionOperator.Valid() {
			verr.add(path+".conditionOperator", "unknown operator %q (must be one of: =, >, <, >=, <=, contains)", r.ConditionOperator)
		} else if r.ConditionOperator.Numeric() && math.IsNaN(parseNumber(r.ConditionValue)) {
			verr.add(path+".conditionValue", "operator %s needs a numeric value, got %q", r.ConditionOperator, r.ConditionValue)
		}

		if r.Action == nil {
			verr.add(path+".actionType", "action is required")
		} else if v := r.Action.Operand(); math.IsNaN(v) || math.IsInf(v, 0) {
			verr.add(path+".actionValue", "action value must be a finite number")
		}
	}

	if len(verr.Problems) > 0 {
		return verr
	}
	return nil
}

// checkUniqueID records id in seen. Empty IDs are assigned on save.
func checkUniqueID(verr *ValidationError, seen map[string]bool, path, id string) {
	if id == "" {
		return
	}
	if seen[id] {
		verr.add(path, "duplicate id %q", id)
		return
	}
	seen[id] = true
}

// validateIdentifier checks a field name: 1-100 characters matching ^[a-zA-Z_][a-zA-Z0-9_]*$
func validateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > maxIdentLength {
		return fmt.Errorf("identifier length %d exceeds maximum of %d characters", len(name), maxIdentLength)
	}
	if !validIdentifier.MatchString(name) {
		return fmt.Errorf("%q must start with a letter or underscore, followed by letters, digits, or underscores", name)
	}
	return nil
}
