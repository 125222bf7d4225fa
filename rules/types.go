package rules

import "time"

// FieldType controls how a field is rendered and how its value is coerced
type FieldType string

const (
	FieldNumber  FieldType = "number"
	FieldText    FieldType = "text"
	FieldSelect  FieldType = "select"
	FieldBoolean FieldType = "boolean"
	FieldDate    FieldType = "date"
)

// Valid reports whether t is one of the known field types
func (t FieldType) Valid() bool {
	switch t {
	case FieldNumber, FieldText, FieldSelect, FieldBoolean, FieldDate:
		return true
	}
	return false
}

// Field is one input the end user supplies at evaluation time
type Field struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Label     string    `json:"label"`
	Type      FieldType `json:"type"`
	Required  bool      `json:"required"`
	Options   []string  `json:"options,omitempty"`
	SortOrder int       `json:"sortOrder"`
}

// Operator compares a runtime value against a rule's condition value
type Operator string

const (
	OpEqual        Operator = "="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpContains     Operator = "contains"
)

// Valid reports whether op is one of the supported operators
func (op Operator) Valid() bool {
	switch op {
	case OpEqual, OpGreater, OpLess, OpGreaterEqual, OpLessEqual, OpContains:
		return true
	}
	return false
}

// Numeric reports whether op compares both sides as numbers
func (op Operator) Numeric() bool {
	switch op {
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		return true
	}
	return false
}

// Rule is one conditional adjustment to the running result.
// Rules are applied in ascending SortOrder.
type Rule struct {
	ID                string
	ConditionField    string
	ConditionOperator Operator
	ConditionValue    string
	Action            Action
	SortOrder         int
}

// Values maps field names to the values supplied for one evaluation
type Values map[string]any

// Metadata is the descriptive part of a rule set
type Metadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
	ResultLabel string   `json:"resultLabel"`
	WarningText string   `json:"warningText"`
}

// RuleSet is a named collection of fields and rules persisted as one unit
type RuleSet struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
	Metadata
	Fields    []Field   `json:"fields"`
	Rules     []Rule    `json:"rules"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RuleSetSummary is the listing view of a rule set
type RuleSetSummary struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
	Metadata
	FieldCount int       `json:"fieldCount"`
	RuleCount  int       `json:"ruleCount"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the rule set
func (rs *RuleSet) Clone() *RuleSet {
	if rs == nil {
		return nil
	}
	out := *rs
	out.Categories = cloneStrings(rs.Categories)
	out.Fields = make([]Field, len(rs.Fields))
	for i, f := range rs.Fields {
		f.Options = cloneStrings(f.Options)
		out.Fields[i] = f
	}
	out.Rules = make([]Rule, len(rs.Rules))
	copy(out.Rules, rs.Rules)
	return &out
}

// Summary returns the listing view of the rule set
func (rs *RuleSet) Summary() RuleSetSummary {
	meta := rs.Metadata
	meta.Categories = cloneStrings(rs.Categories)
	return RuleSetSummary{
		ID:         rs.ID,
		Owner:      rs.Owner,
		Metadata:   meta,
		FieldCount: len(rs.Fields),
		RuleCount:  len(rs.Rules),
		CreatedAt:  rs.CreatedAt,
		UpdatedAt:  rs.UpdatedAt,
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
