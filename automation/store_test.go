package automation

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 2, 15, 4, 5, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store := NewStore(mock)
	store.now = func() time.Time { return fixedNow }
	return store, mock
}

func workflowRows(id string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "owner", "name", "description", "active", "match",
		"trigger_type", "trigger_entity", "trigger_config", "created_at", "updated_at",
	}).AddRow(id, "agent-1", "Renewal reminder", "", true, "all",
		"date_reached", "renewal", []byte(`{"field":"expiration_date"}`), fixedNow, fixedNow)
}

func TestStoreCreate(t *testing.T) {
	store, mock := newMockStore(t)
	w := renewalWorkflow()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO workflows").
		WithArgs(pgxmock.AnyArg(), "agent-1", "Renewal reminder", "", false, "all",
			"date_reached", "renewal", pgxmock.AnyArg(), fixedNow, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO workflow_conditions").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "premium", ">", "1000", 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO workflow_conditions").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "status", "!=", "cancelled", 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO workflow_actions").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "create_task", pgxmock.AnyArg(), 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO workflow_actions").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "send_email", pgxmock.AnyArg(), 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	stored, err := store.Create(context.Background(), "agent-1", w)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, "agent-1", stored.Owner)
	assert.Equal(t, fixedNow, stored.CreatedAt)
	for _, c := range stored.Conditions {
		assert.NotEmpty(t, c.ID)
	}
	for _, s := range stored.Actions {
		assert.NotEmpty(t, s.ID)
	}
	assert.Empty(t, w.ID, "Create must not modify its argument")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// uuidArg matches any UUID other than the ones listed
type uuidArg struct{ not []string }

func (a uuidArg) Match(v any) bool {
	id, ok := v.(string)
	if !ok {
		return false
	}
	if _, err := uuid.Parse(id); err != nil {
		return false
	}
	return !slices.Contains(a.not, id)
}

func TestStoreCreateIssuesChildIDs(t *testing.T) {
	store, mock := newMockStore(t)
	copied := "5f0c6b9e-8f51-4d8e-9a55-3c2f1d7b8a10"
	w := renewalWorkflow()
	w.Conditions = w.Conditions[:1]
	w.Conditions[0].ID = copied
	w.Actions = w.Actions[:1]
	w.Actions[0].ID = "a1"

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO workflows").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO workflow_conditions").
		WithArgs(uuidArg{not: []string{copied}}, pgxmock.AnyArg(), "premium", ">", "1000", 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO workflow_actions").
		WithArgs(uuidArg{}, pgxmock.AnyArg(), "create_task", pgxmock.AnyArg(), 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	stored, err := store.Create(context.Background(), "agent-1", w)
	require.NoError(t, err)
	assert.NotEqual(t, copied, stored.Conditions[0].ID)
	assert.NotEqual(t, "a1", stored.Actions[0].ID)
	assert.Equal(t, copied, w.Conditions[0].ID, "Create must not modify its argument")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCreateRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO workflows").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO workflow_conditions").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := store.Create(context.Background(), "agent-1", renewalWorkflow())
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGet(t *testing.T) {
	store, mock := newMockStore(t)
	mock.MatchExpectationsInOrder(false)
	id := "5f0c6b9e-8f51-4d8e-9a55-3c2f1d7b8a10"

	mock.ExpectQuery("FROM workflows").WithArgs(id).WillReturnRows(workflowRows(id))
	mock.ExpectQuery("FROM workflow_conditions").WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "field", "operator", "value", "sort_order"}).
			AddRow("c1", "premium", ">", "1000", 0).
			AddRow("c2", "status", "!=", "cancelled", 1))
	mock.ExpectQuery("FROM workflow_actions").WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "action_type", "params", "sort_order"}).
			AddRow("a1", "create_task", []byte(`{"title":"Review renewal","dueInDays":7}`), 0))

	w, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, w.ID)
	assert.True(t, w.Active)
	assert.Equal(t, MatchAll, w.Match)
	assert.Equal(t, Trigger{Type: TriggerDateReached, Entity: EntityRenewal, Config: map[string]string{"field": "expiration_date"}}, w.Trigger)
	require.Len(t, w.Conditions, 2)
	assert.Equal(t, OpNotEqual, w.Conditions[1].Operator)
	require.Len(t, w.Actions, 1)
	assert.Equal(t, CreateTask{Title: "Review renewal", DueInDays: 7}, w.Actions[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.MatchExpectationsInOrder(false)
	id := "5f0c6b9e-8f51-4d8e-9a55-3c2f1d7b8a10"

	mock.ExpectQuery("FROM workflows").WithArgs(id).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM workflow_conditions").WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "field", "operator", "value", "sort_order"}))
	mock.ExpectQuery("FROM workflow_actions").WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "action_type", "params", "sort_order"}))

	_, err := store.Get(context.Background(), id)
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestStoreInvalidIDIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "not-a-uuid")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(store.Delete(ctx, "not-a-uuid"), ErrNotFound))
	assert.True(t, errors.Is(store.SetActive(ctx, "not-a-uuid", true), ErrNotFound))

	w := renewalWorkflow()
	w.ID = "not-a-uuid"
	_, err = store.Replace(ctx, w)
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreList(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM workflows w").WithArgs("agent-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "owner", "name", "description", "active", "trigger_type", "trigger_entity", "trigger_config",
			"conditions", "actions", "created_at", "updated_at",
		}).
			AddRow("w1", "agent-1", "New lead follow-up", "", true, "record_created", "lead", []byte(`{}`), 1, 2, fixedNow, fixedNow).
			AddRow("w2", "agent-1", "Status change", "", false, "status_changed", "policy", []byte(`{"to":"lapsed"}`), 0, 1, fixedNow, fixedNow))

	sums, err := store.List(context.Background(), "agent-1")
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, 2, sums[0].ActionCount)
	assert.Nil(t, sums[0].Trigger.Config)
	assert.Equal(t, "lapsed", sums[1].Trigger.Config["to"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreReplace(t *testing.T) {
	store, mock := newMockStore(t)
	id := "5f0c6b9e-8f51-4d8e-9a55-3c2f1d7b8a10"
	w := renewalWorkflow()
	w.ID = id
	w.Actions = w.Actions[:1]
	w.Conditions = nil

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE workflows").
		WithArgs("Renewal reminder", "", false, "all", "date_reached", "renewal", pgxmock.AnyArg(), fixedNow, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM workflow_conditions").WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("DELETE FROM workflow_actions").WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("INSERT INTO workflow_actions").
		WithArgs(pgxmock.AnyArg(), id, "create_task", pgxmock.AnyArg(), 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	mock.ExpectQuery("FROM workflows").WithArgs(id).WillReturnRows(workflowRows(id))
	mock.ExpectQuery("FROM workflow_conditions").WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "field", "operator", "value", "sort_order"}))
	mock.ExpectQuery("FROM workflow_actions").WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "action_type", "params", "sort_order"}).
			AddRow("a1", "create_task", []byte(`{"title":"Review renewal"}`), 0))
	mock.MatchExpectationsInOrder(false)

	got, err := store.Replace(context.Background(), w)
	require.NoError(t, err)
	assert.Empty(t, got.Conditions)
	assert.Len(t, got.Actions, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreReplaceMissing(t *testing.T) {
	store, mock := newMockStore(t)
	w := renewalWorkflow()
	w.ID = "5f0c6b9e-8f51-4d8e-9a55-3c2f1d7b8a10"

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE workflows").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	_, err := store.Replace(context.Background(), w)
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreDeleteAndSetActive(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	id := "5f0c6b9e-8f51-4d8e-9a55-3c2f1d7b8a10"

	mock.ExpectExec("UPDATE workflows SET active").WithArgs(true, fixedNow, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM workflows").WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM workflows").WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, store.SetActive(ctx, id, true))
	require.NoError(t, store.Delete(ctx, id))
	assert.True(t, errors.Is(store.Delete(ctx, id), ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
