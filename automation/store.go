package automation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/liamcoop/ratebook/internal/db"
)

// ErrNotFound is returned when a workflow ID does not exist
var ErrNotFound = errors.New("workflow not found")

const (
	insertWorkflowSQL = `
		INSERT INTO workflows (id, owner, name, description, active, match, trigger_type, trigger_entity, trigger_config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	updateWorkflowSQL = `
		UPDATE workflows
		SET name = $1, description = $2, active = $3, match = $4, trigger_type = $5, trigger_entity = $6, trigger_config = $7, updated_at = $8
		WHERE id = $9`
	getWorkflowSQL = `
		SELECT id, owner, name, description, active, match, trigger_type, trigger_entity, trigger_config, created_at, updated_at
		FROM workflows
		WHERE id = $1`
	listWorkflowsSQL = `
		SELECT w.id, w.owner, w.name, w.description, w.active, w.trigger_type, w.trigger_entity, w.trigger_config,
			(SELECT COUNT(*) FROM workflow_conditions c WHERE c.workflow_id = w.id),
			(SELECT COUNT(*) FROM workflow_actions a WHERE a.workflow_id = w.id),
			w.created_at, w.updated_at
		FROM workflows w
		WHERE $1 = '' OR w.owner = $1
		ORDER BY w.updated_at DESC, w.id ASC`
	deleteWorkflowSQL = `DELETE FROM workflows WHERE id = $1`
	setActiveSQL      = `UPDATE workflows SET active = $1, updated_at = $2 WHERE id = $3`

	insertConditionSQL = `
		INSERT INTO workflow_conditions (id, workflow_id, field, operator, value, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)`
	listConditionsSQL = `
		SELECT id, field, operator, value, sort_order
		FROM workflow_conditions
		WHERE workflow_id = $1
		ORDER BY sort_order ASC`
	clearConditionsSQL = `DELETE FROM workflow_conditions WHERE workflow_id = $1`

	insertActionSQL = `
		INSERT INTO workflow_actions (id, workflow_id, action_type, params, sort_order)
		VALUES ($1, $2, $3, $4, $5)`
	listActionsSQL = `
		SELECT id, action_type, params, sort_order
		FROM workflow_actions
		WHERE workflow_id = $1
		ORDER BY sort_order ASC`
	clearActionsSQL = `DELETE FROM workflow_actions WHERE workflow_id = $1`
)

// Store persists workflows in Postgres through a pgx pool. Conditions and
// actions are replaced together with their workflow.
type Store struct {
	pool db.Pool
	now  func() time.Time
}

// NewStore creates a workflow store on pool
func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts w with new IDs, for the workflow and every condition and
// action, and returns the stored workflow
func (s *Store) Create(ctx context.Context, owner string, w *Workflow) (*Workflow, error) {
	stored := prepare(w)
	stored.ID = uuid.NewString()
	stored.Owner = owner
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt

	config, err := encodeConfig(stored.Trigger.Config)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "workflows: begin create")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, insertWorkflowSQL,
		stored.ID, stored.Owner, stored.Name, stored.Description, stored.Active, string(stored.Match),
		string(stored.Trigger.Type), string(stored.Trigger.Entity), config, stored.CreatedAt, stored.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "workflows: insert workflow")
	}
	if err := insertChildren(ctx, tx, stored); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "workflows: commit create")
	}
	return stored, nil
}

// Replace overwrites the stored workflow w.ID, including its conditions and
// actions, which get new IDs. Owner and CreatedAt are not changed.
func (s *Store) Replace(ctx context.Context, w *Workflow) (*Workflow, error) {
	if _, err := uuid.Parse(w.ID); err != nil {
		return nil, eris.Wrapf(ErrNotFound, "replace workflow %s", w.ID)
	}

	stored := prepare(w)
	stored.UpdatedAt = s.now()

	config, err := encodeConfig(stored.Trigger.Config)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "workflows: begin replace")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, updateWorkflowSQL,
		stored.Name, stored.Description, stored.Active, string(stored.Match),
		string(stored.Trigger.Type), string(stored.Trigger.Entity), config, stored.UpdatedAt, stored.ID)
	if err != nil {
		return nil, eris.Wrap(err, "workflows: update workflow")
	}
	if tag.RowsAffected() == 0 {
		return nil, eris.Wrapf(ErrNotFound, "replace workflow %s", stored.ID)
	}

	if _, err := tx.Exec(ctx, clearConditionsSQL, stored.ID); err != nil {
		return nil, eris.Wrap(err, "workflows: clear conditions")
	}
	if _, err := tx.Exec(ctx, clearActionsSQL, stored.ID); err != nil {
		return nil, eris.Wrap(err, "workflows: clear actions")
	}
	if err := insertChildren(ctx, tx, stored); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "workflows: commit replace")
	}
	return s.Get(ctx, stored.ID)
}

func insertChildren(ctx context.Context, tx pgx.Tx, w *Workflow) error {
	for _, c := range w.Conditions {
		_, err := tx.Exec(ctx, insertConditionSQL, c.ID, w.ID, c.Field, string(c.Operator), c.Value, c.SortOrder)
		if err != nil {
			return eris.Wrapf(err, "workflows: insert condition %s", c.ID)
		}
	}
	for _, step := range w.Actions {
		params, err := EncodeParams(step.Action)
		if err != nil {
			return eris.Wrapf(err, "workflows: encode action %s", step.ID)
		}
		var actionType string
		if step.Action != nil {
			actionType = string(step.Action.Type())
		}
		if _, err := tx.Exec(ctx, insertActionSQL, step.ID, w.ID, actionType, params, step.SortOrder); err != nil {
			return eris.Wrapf(err, "workflows: insert action %s", step.ID)
		}
	}
	return nil
}

// Get loads a workflow with its conditions and actions. The three reads run
// concurrently.
func (s *Store) Get(ctx context.Context, id string) (*Workflow, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, eris.Wrapf(ErrNotFound, "get workflow %s", id)
	}

	var (
		w          Workflow
		conditions []Condition
		steps      []Step
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.getWorkflow(gctx, id, &w)
	})
	g.Go(func() (err error) {
		conditions, err = s.listConditions(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		steps, err = s.listActions(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	w.Conditions = conditions
	w.Actions = steps
	return &w, nil
}

func (s *Store) getWorkflow(ctx context.Context, id string, w *Workflow) error {
	var match, triggerType, entity string
	var config []byte
	err := s.pool.QueryRow(ctx, getWorkflowSQL, id).Scan(
		&w.ID, &w.Owner, &w.Name, &w.Description, &w.Active, &match,
		&triggerType, &entity, &config, &w.CreatedAt, &w.UpdatedAt)
	if eris.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "get workflow %s", id)
	}
	if err != nil {
		return eris.Wrap(err, "workflows: get workflow")
	}

	w.Match = Match(match)
	w.Trigger = Trigger{Type: TriggerType(triggerType), Entity: Entity(entity)}
	w.Trigger.Config, err = decodeConfig(config)
	return err
}

func (s *Store) listConditions(ctx context.Context, id string) ([]Condition, error) {
	rows, err := s.pool.Query(ctx, listConditionsSQL, id)
	if err != nil {
		return nil, eris.Wrap(err, "workflows: list conditions")
	}
	defer rows.Close()

	conditions := []Condition{}
	for rows.Next() {
		var c Condition
		var op string
		if err := rows.Scan(&c.ID, &c.Field, &op, &c.Value, &c.SortOrder); err != nil {
			return nil, eris.Wrap(err, "workflows: scan condition")
		}
		c.Operator = Operator(op)
		conditions = append(conditions, c)
	}
	return conditions, eris.Wrap(rows.Err(), "workflows: iterate conditions")
}

func (s *Store) listActions(ctx context.Context, id string) ([]Step, error) {
	rows, err := s.pool.Query(ctx, listActionsSQL, id)
	if err != nil {
		return nil, eris.Wrap(err, "workflows: list actions")
	}
	defer rows.Close()

	steps := []Step{}
	for rows.Next() {
		var step Step
		var actionType string
		var params []byte
		if err := rows.Scan(&step.ID, &actionType, &params, &step.SortOrder); err != nil {
			return nil, eris.Wrap(err, "workflows: scan action")
		}
		if step.Action, err = DecodeAction(ActionType(actionType), params); err != nil {
			return nil, eris.Wrapf(err, "workflows: action %s", step.ID)
		}
		steps = append(steps, step)
	}
	return steps, eris.Wrap(rows.Err(), "workflows: iterate actions")
}

// List returns workflow summaries, newest first. An empty owner lists all.
func (s *Store) List(ctx context.Context, owner string) ([]Summary, error) {
	rows, err := s.pool.Query(ctx, listWorkflowsSQL, owner)
	if err != nil {
		return nil, eris.Wrap(err, "workflows: list")
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		var triggerType, entity string
		var config []byte
		if err := rows.Scan(&sum.ID, &sum.Owner, &sum.Name, &sum.Description, &sum.Active,
			&triggerType, &entity, &config, &sum.ConditionCount, &sum.ActionCount,
			&sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "workflows: scan summary")
		}
		sum.Trigger = Trigger{Type: TriggerType(triggerType), Entity: Entity(entity)}
		if sum.Trigger.Config, err = decodeConfig(config); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "workflows: iterate")
}

// Delete removes a workflow; its conditions and actions cascade
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return eris.Wrapf(ErrNotFound, "delete workflow %s", id)
	}
	tag, err := s.pool.Exec(ctx, deleteWorkflowSQL, id)
	if err != nil {
		return eris.Wrap(err, "workflows: delete")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "delete workflow %s", id)
	}
	return nil
}

// SetActive switches a workflow on or off
func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	if _, err := uuid.Parse(id); err != nil {
		return eris.Wrapf(ErrNotFound, "set active %s", id)
	}
	tag, err := s.pool.Exec(ctx, setActiveSQL, active, s.now(), id)
	if err != nil {
		return eris.Wrap(err, "workflows: set active")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "set active %s", id)
	}
	return nil
}

// prepare copies w for storage, defaulting the match. Conditions and actions
// are rewritten on every save and get new IDs each time.
func prepare(w *Workflow) *Workflow {
	stored := *w
	if stored.Match == "" {
		stored.Match = MatchAll
	}
	stored.Conditions = orderedConditions(w.Conditions)
	for i := range stored.Conditions {
		stored.Conditions[i].ID = uuid.NewString()
	}
	stored.Actions = orderedSteps(w.Actions)
	for i := range stored.Actions {
		stored.Actions[i].ID = uuid.NewString()
	}
	if w.Trigger.Config != nil {
		stored.Trigger.Config = make(map[string]string, len(w.Trigger.Config))
		for k, v := range w.Trigger.Config {
			stored.Trigger.Config[k] = v
		}
	}
	return &stored
}

func encodeConfig(config map[string]string) ([]byte, error) {
	if config == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(config)
	return b, eris.Wrap(err, "workflows: encode trigger config")
}

func decodeConfig(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var config map[string]string
	if err := json.Unmarshal(raw, &config); err != nil {
		return nil, eris.Wrap(err, "workflows: decode trigger config")
	}
	if len(config) == 0 {
		return nil, nil
	}
	return config, nil
}
