package automation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepJSONRoundTrip(t *testing.T) {
	in := `{"id":"s1","type":"create_task","params":{"title":"Call client","assignee":"sam","dueInDays":3,"priority":"high"},"sortOrder":2}`

	var step Step
	require.NoError(t, json.Unmarshal([]byte(in), &step))
	assert.Equal(t, "s1", step.ID)
	assert.Equal(t, 2, step.SortOrder)
	assert.Equal(t, CreateTask{Title: "Call client", Assignee: "sam", DueInDays: 3, Priority: "high"}, step.Action)

	out, err := json.Marshal(step)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestDecodeActionVariants(t *testing.T) {
	tests := []struct {
		typ    ActionType
		params string
		want   Action
	}{
		{ActionSendEmail, `{"to":"{{client.email}}","subject":"Renewal due"}`, SendEmail{To: "{{client.email}}", Subject: "Renewal due"}},
		{ActionSendNotification, `{"recipient":"owner","message":"New lead"}`, SendNotification{Recipient: "owner", Message: "New lead"}},
		{ActionUpdateField, `{"field":"status","value":"contacted"}`, UpdateField{Field: "status", Value: "contacted"}},
		{ActionCallWebhook, `{"url":"https://hooks.example.com/x","method":"POST"}`, CallWebhook{URL: "https://hooks.example.com/x", Method: "POST"}},
		{ActionCreateTask, `null`, CreateTask{}},
	}

	for _, tt := range tests {
		got, err := DecodeAction(tt.typ, []byte(tt.params))
		require.NoError(t, err, tt.typ)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.typ, got.Type())
	}
}

func TestDecodeActionErrors(t *testing.T) {
	_, err := DecodeAction("send_fax", []byte(`{}`))
	assert.ErrorContains(t, err, "send_fax")

	_, err = DecodeAction(ActionCreateTask, []byte(`{"dueInDays":"soon"}`))
	assert.Error(t, err)

	var step Step
	assert.Error(t, json.Unmarshal([]byte(`{"type":"","params":{}}`), &step))
}

func TestEncodeParams(t *testing.T) {
	b, err := EncodeParams(UpdateField{Field: "stage", Value: "won"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"field":"stage","value":"won"}`, string(b))

	b, err = EncodeParams(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))
}
