package automation

import "time"

// TriggerType is the record event that starts a workflow
type TriggerType string

const (
	TriggerRecordCreated TriggerType = "record_created"
	TriggerRecordUpdated TriggerType = "record_updated"
	TriggerStatusChanged TriggerType = "status_changed"
	TriggerFieldChanged  TriggerType = "field_changed"
	TriggerDateReached   TriggerType = "date_reached"
)

// Valid reports whether t is a known trigger type
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerRecordCreated, TriggerRecordUpdated, TriggerStatusChanged, TriggerFieldChanged, TriggerDateReached:
		return true
	}
	return false
}

// Entity is the kind of agency record a trigger watches
type Entity string

const (
	EntityClient     Entity = "client"
	EntityPolicy     Entity = "policy"
	EntityRenewal    Entity = "renewal"
	EntityCollection Entity = "collection"
	EntityLead       Entity = "lead"
	EntityTask       Entity = "task"
)

// Valid reports whether e is a known entity
func (e Entity) Valid() bool {
	switch e {
	case EntityClient, EntityPolicy, EntityRenewal, EntityCollection, EntityLead, EntityTask:
		return true
	}
	return false
}

// Trigger describes when a workflow fires.
//
// Config carries trigger-specific settings:
//   - field_changed: "field" (required)
//   - status_changed: "from" and "to" (optional)
//   - date_reached: "field" (required) and "offsetDays" (optional integer)
type Trigger struct {
	Type   TriggerType       `json:"type"`
	Entity Entity            `json:"entity"`
	Config map[string]string `json:"config,omitempty"`
}

// Operator compares a record field against a condition value
type Operator string

const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpContains     Operator = "contains"
)

// Valid reports whether op is a supported condition operator
func (op Operator) Valid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpGreater, OpLess, OpGreaterEqual, OpLessEqual, OpContains:
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

// Condition is one filter on the triggering record
type Condition struct {
	ID        string   `json:"id"`
	Field     string   `json:"field"`
	Operator  Operator `json:"operator"`
	Value     string   `json:"value"`
	SortOrder int      `json:"sortOrder"`
}

// Match combines a workflow's conditions
type Match string

const (
	MatchAll Match = "all"
	MatchAny Match = "any"
)

// Workflow is a stored automation: a trigger, the conditions the record must
// meet, and the actions to take. Workflows are stored but never executed here.
type Workflow struct {
	ID          string      `json:"id"`
	Owner       string      `json:"owner"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Active      bool        `json:"active"`
	Match       Match       `json:"match"`
	Trigger     Trigger     `json:"trigger"`
	Conditions  []Condition `json:"conditions"`
	Actions     []Step      `json:"actions"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Summary is the listing view of a workflow
type Summary struct {
	ID             string    `json:"id"`
	Owner          string    `json:"owner"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Active         bool      `json:"active"`
	Trigger        Trigger   `json:"trigger"`
	ConditionCount int       `json:"conditionCount"`
	ActionCount    int       `json:"actionCount"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
