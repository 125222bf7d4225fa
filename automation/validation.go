package automation

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	maxNameLength  = 200
	maxConditions  = 50
	maxActions     = 20
	maxFieldLength = 100
)

var validField = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var priorities = map[string]bool{"": true, "low": true, "normal": true, "high": true, "urgent": true}

var webhookMethods = map[string]bool{"": true, "POST": true, "PUT": true, "PATCH": true}

// Problem is one validation failure, addressed by a path such as "actions[0].params.title"
type Problem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError collects every problem found in a workflow
type ValidationError struct {
	Problems []Problem `json:"problems"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Path + ": " + p.Message
	}
	return "invalid workflow: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(path, format string, args ...any) {
	e.Problems = append(e.Problems, Problem{Path: path, Message: fmt.Sprintf(format, args...)})
}

// Validate checks a workflow before it is stored. It returns a
// *ValidationError listing every problem, or nil.
func Validate(w *Workflow) error {
	v := &ValidationError{}

	name := strings.TrimSpace(w.Name)
	if name == "" {
		v.add("name", "name is required")
	} else if len(name) > maxNameLength {
		v.add("name", "name is %d characters, maximum is %d", len(name), maxNameLength)
	}

	switch w.Match {
	case MatchAll, MatchAny, "":
	default:
		v.add("match", "unknown match %q (must be all or any)", w.Match)
	}

	validateTrigger(v, w.Trigger)

	if len(w.Conditions) > maxConditions {
		v.add("conditions", "workflow has %d conditions, maximum is %d", len(w.Conditions), maxConditions)
	}
	for i, c := range w.Conditions {
		path := fmt.Sprintf("conditions[%d]", i)
		checkID(v, path+".id", c.ID)
		checkField(v, path+".field", c.Field)
		if !c.Operator.Valid() {
			v.add(path+".operator", "unknown operator %q (must be one of: =, !=, >, <, >=, <=, contains)", c.Operator)
		} else if c.Operator.Numeric() {
			if f, err := strconv.ParseFloat(strings.TrimSpace(c.Value), 64); err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				v.add(path+".value", "operator %s needs a numeric value, got %q", c.Operator, c.Value)
			}
		}
	}

	if len(w.Actions) == 0 {
		v.add("actions", "at least one action is required")
	} else if len(w.Actions) > maxActions {
		v.add("actions", "workflow has %d actions, maximum is %d", len(w.Actions), maxActions)
	}
	for i, s := range w.Actions {
		path := fmt.Sprintf("actions[%d]", i)
		checkID(v, path+".id", s.ID)
		if s.Action == nil {
			v.add(path+".type", "action type is required")
			continue
		}
		s.Action.validate(v, path+".params")
	}

	if len(v.Problems) > 0 {
		return v
	}
	return nil
}

// checkID accepts an empty ID or a UUID, the form stored IDs take
func checkID(v *ValidationError, path, id string) {
	if id == "" {
		return
	}
	if _, err := uuid.Parse(id); err != nil {
		v.add(path, "id %q is not a UUID", id)
	}
}

func validateTrigger(v *ValidationError, t Trigger) {
	if !t.Type.Valid() {
		v.add("trigger.type", "unknown trigger %q", t.Type)
	}
	if !t.Entity.Valid() {
		v.add("trigger.entity", "unknown entity %q", t.Entity)
	}

	switch t.Type {
	case TriggerFieldChanged:
		checkField(v, "trigger.config.field", t.Config["field"])
	case TriggerDateReached:
		checkField(v, "trigger.config.field", t.Config["field"])
		if days, ok := t.Config["offsetDays"]; ok {
			if _, err := strconv.Atoi(days); err != nil {
				v.add("trigger.config.offsetDays", "offsetDays must be an integer, got %q", days)
			}
		}
	}
}

func checkField(v *ValidationError, path, field string) {
	switch {
	case field == "":
		v.add(path, "field is required")
	case len(field) > maxFieldLength:
		v.add(path, "field name exceeds maximum of %d characters", maxFieldLength)
	case !validField.MatchString(field):
		v.add(path, "%q must start with a letter or underscore, followed by letters, digits, or underscores", field)
	}
}

func required(v *ValidationError, path, value string) {
	if strings.TrimSpace(value) == "" {
		v.add(path, "is required")
	}
}

func (a CreateTask) validate(v *ValidationError, path string) {
	required(v, path+".title", a.Title)
	if a.DueInDays < 0 {
		v.add(path+".dueInDays", "dueInDays cannot be negative")
	}
	if !priorities[a.Priority] {
		v.add(path+".priority", "unknown priority %q (must be one of: low, normal, high, urgent)", a.Priority)
	}
}

func (a SendEmail) validate(v *ValidationError, path string) {
	required(v, path+".to", a.To)
	required(v, path+".subject", a.Subject)
}

func (a SendNotification) validate(v *ValidationError, path string) {
	required(v, path+".recipient", a.Recipient)
	required(v, path+".message", a.Message)
}

func (a UpdateField) validate(v *ValidationError, path string) {
	checkField(v, path+".field", a.Field)
}

func (a CallWebhook) validate(v *ValidationError, path string) {
	u, err := url.Parse(a.URL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.add(path+".url", "url must be an absolute http or https URL")
	}
	if !webhookMethods[strings.ToUpper(a.Method)] {
		v.add(path+".method", "unsupported method %q (must be POST, PUT or PATCH)", a.Method)
	}
}
