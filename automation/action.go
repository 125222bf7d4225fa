package automation

import (
	"cmp"
	"encoding/json"
	"slices"

	"github.com/rotisserie/eris"
)

// ActionType names what a workflow step does
type ActionType string

const (
	ActionCreateTask       ActionType = "create_task"
	ActionSendEmail        ActionType = "send_email"
	ActionSendNotification ActionType = "send_notification"
	ActionUpdateField      ActionType = "update_field"
	ActionCallWebhook      ActionType = "call_webhook"
)

// Action is the closed set of workflow actions, each with its own params
type Action interface {
	Type() ActionType
	validate(v *ValidationError, path string)
}

// CreateTask opens a task for a user, due DueInDays after the trigger
type CreateTask struct {
	Title     string `json:"title"`
	Assignee  string `json:"assignee,omitempty"`
	DueInDays int    `json:"dueInDays,omitempty"`
	Priority  string `json:"priority,omitempty"`
}

// SendEmail sends a templated email; To may be an address or a record field reference
type SendEmail struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body,omitempty"`
}

// SendNotification posts an in-app notification
type SendNotification struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// UpdateField sets a field on the triggering record
type UpdateField struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// CallWebhook sends the record to an external URL
type CallWebhook struct {
	URL    string `json:"url"`
	Method string `json:"method,omitempty"`
}

func (CreateTask) Type() ActionType       { return ActionCreateTask }
func (SendEmail) Type() ActionType        { return ActionSendEmail }
func (SendNotification) Type() ActionType { return ActionSendNotification }
func (UpdateField) Type() ActionType      { return ActionUpdateField }
func (CallWebhook) Type() ActionType      { return ActionCallWebhook }

// Step is one ordered action of a workflow.
// In JSON it is {"id", "type", "params", "sortOrder"}.
type Step struct {
	ID        string
	Action    Action
	SortOrder int
}

type stepWire struct {
	ID        string          `json:"id"`
	Type      ActionType      `json:"type"`
	Params    json.RawMessage `json:"params"`
	SortOrder int             `json:"sortOrder"`
}

// DecodeAction builds the action variant for t from its JSON params
func DecodeAction(t ActionType, params []byte) (Action, error) {
	var a Action
	switch t {
	case ActionCreateTask:
		a = &CreateTask{}
	case ActionSendEmail:
		a = &SendEmail{}
	case ActionSendNotification:
		a = &SendNotification{}
	case ActionUpdateField:
		a = &UpdateField{}
	case ActionCallWebhook:
		a = &CallWebhook{}
	default:
		return nil, eris.Errorf("unknown action type %q", t)
	}

	if len(params) > 0 && string(params) != "null" {
		if err := json.Unmarshal(params, a); err != nil {
			return nil, eris.Wrapf(err, "decode %s params", t)
		}
	}
	return deref(a), nil
}

// deref turns the pointer used for decoding back into a value variant
func deref(a Action) Action {
	switch v := a.(type) {
	case *CreateTask:
		return *v
	case *SendEmail:
		return *v
	case *SendNotification:
		return *v
	case *UpdateField:
		return *v
	case *CallWebhook:
		return *v
	}
	return a
}

// EncodeParams returns the JSON params of an action
func EncodeParams(a Action) ([]byte, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

func (s Step) MarshalJSON() ([]byte, error) {
	w := stepWire{ID: s.ID, SortOrder: s.SortOrder, Params: json.RawMessage("{}")}
	if s.Action != nil {
		params, err := EncodeParams(s.Action)
		if err != nil {
			return nil, err
		}
		w.Type = s.Action.Type()
		w.Params = params
	}
	return json.Marshal(w)
}

func (s *Step) UnmarshalJSON(data []byte) error {
	var w stepWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	action, err := DecodeAction(w.Type, w.Params)
	if err != nil {
		return err
	}
	*s = Step{ID: w.ID, Action: action, SortOrder: w.SortOrder}
	return nil
}

func orderedSteps(steps []Step) []Step {
	out := slices.Clone(steps)
	slices.SortStableFunc(out, func(a, b Step) int {
		return cmp.Compare(a.SortOrder, b.SortOrder)
	})
	return out
}
