package rules

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// dialect holds the statements and list encoding that differ between the
// SQL backends. Lists (categories, select options) are stored as native
// arrays in Postgres and as JSON text in SQLite.
type dialect struct {
	name         string
	insertSet    string
	updateSet    string
	clearFields  string
	clearRules   string
	insertField  string
	insertRule   string
	getSet       string
	listFields   string
	listRules    string
	listSets     string
	deleteSet    string
	encodeList   func([]string) any
	decodeList   func(*[]string) any
	deleteChilds bool
}

// sqlRuleSetStore is the database/sql implementation shared by the
// Postgres and SQLite stores. Save runs in one transaction.
type sqlRuleSetStore struct {
	db *sql.DB
	d  dialect
}

// DB returns the underlying connection pool
func (s *sqlRuleSetStore) DB() *sql.DB {
	return s.db
}

// Save inserts or fully replaces a rule set
func (s *sqlRuleSetStore) Save(ctx context.Context, owner string, rs *RuleSet) (string, error) {
	stored := prepareForSave(owner, rs)
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrapf(err, "%s: begin save", s.d.name)
	}
	defer tx.Rollback() //nolint:errcheck

	if stored.ID == "" {
		stored.ID = uuid.NewString()
		_, err = tx.ExecContext(ctx, s.d.insertSet,
			stored.ID, stored.Owner, stored.Name, stored.Description, s.d.encodeList(stored.Categories),
			stored.ResultLabel, stored.WarningText, now, now)
		if err != nil {
			return "", eris.Wrapf(err, "%s: insert rule set", s.d.name)
		}
	} else {
		res, err := tx.ExecContext(ctx, s.d.updateSet,
			stored.Owner, stored.Name, stored.Description, s.d.encodeList(stored.Categories),
			stored.ResultLabel, stored.WarningText, now, stored.ID)
		if err != nil {
			return "", eris.Wrapf(err, "%s: update rule set", s.d.name)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return "", eris.Wrapf(err, "%s: rows affected", s.d.name)
		}
		if n == 0 {
			return "", eris.Wrapf(ErrNotFound, "save rule set %s", stored.ID)
		}

		if _, err := tx.ExecContext(ctx, s.d.clearFields, stored.ID); err != nil {
			return "", eris.Wrapf(err, "%s: clear fields", s.d.name)
		}
		if _, err := tx.ExecContext(ctx, s.d.clearRules, stored.ID); err != nil {
			return "", eris.Wrapf(err, "%s: clear rules", s.d.name)
		}
	}

	for _, f := range stored.Fields {
		_, err := tx.ExecContext(ctx, s.d.insertField,
			f.ID, stored.ID, f.Name, f.Label, string(f.Type), f.Required, s.d.encodeList(f.Options), f.SortOrder)
		if err != nil {
			return "", eris.Wrapf(err, "%s: insert field %s", s.d.name, f.Name)
		}
	}

	for _, r := range stored.Rules {
		w := r.wire()
		_, err := tx.ExecContext(ctx, s.d.insertRule,
			w.ID, stored.ID, w.ConditionField, string(w.ConditionOperator), w.ConditionValue,
			string(w.ActionType), w.ActionValue, w.SortOrder)
		if err != nil {
			return "", eris.Wrapf(err, "%s: insert rule %s", s.d.name, w.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", eris.Wrapf(err, "%s: commit save", s.d.name)
	}
	return stored.ID, nil
}

// Load reads a rule set with its fields and rules
func (s *sqlRuleSetStore) Load(ctx context.Context, id string) (*RuleSet, error) {
	var rs RuleSet
	var categories []string
	err := s.db.QueryRowContext(ctx, s.d.getSet, id).Scan(
		&rs.ID,
		&rs.Owner,
		&rs.Name,
		&rs.Description,
		s.d.decodeList(&categories),
		&rs.ResultLabel,
		&rs.WarningText,
		&rs.CreatedAt,
		&rs.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "load rule set %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "%s: get rule set", s.d.name)
	}
	if len(categories) > 0 {
		rs.Categories = categories
	}

	if rs.Fields, err = s.loadFields(ctx, id); err != nil {
		return nil, err
	}
	if rs.Rules, err = s.loadRules(ctx, id); err != nil {
		return nil, err
	}
	return &rs, nil
}

func (s *sqlRuleSetStore) loadFields(ctx context.Context, id string) ([]Field, error) {
	rows, err := s.db.QueryContext(ctx, s.d.listFields, id)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: list fields", s.d.name)
	}
	defer rows.Close()

	fields := []Field{}
	for rows.Next() {
		var f Field
		var options []string
		if err := rows.Scan(&f.ID, &f.Name, &f.Label, &f.Type, &f.Required, s.d.decodeList(&options), &f.SortOrder); err != nil {
			return nil, eris.Wrapf(err, "%s: scan field", s.d.name)
		}
		if len(options) > 0 {
			f.Options = options
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "%s: iterate fields", s.d.name)
	}
	return fields, nil
}

func (s *sqlRuleSetStore) loadRules(ctx context.Context, id string) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx, s.d.listRules, id)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: list rules", s.d.name)
	}
	defer rows.Close()

	rules := []Rule{}
	for rows.Next() {
		var w ruleWire
		if err := rows.Scan(&w.ID, &w.ConditionField, &w.ConditionOperator, &w.ConditionValue,
			&w.ActionType, &w.ActionValue, &w.SortOrder); err != nil {
			return nil, eris.Wrapf(err, "%s: scan rule", s.d.name)
		}
		r, err := w.rule()
		if err != nil {
			return nil, eris.Wrapf(err, "%s: rule %s", s.d.name, w.ID)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "%s: iterate rules", s.d.name)
	}
	return rules, nil
}

// List returns rule set summaries, newest first
func (s *sqlRuleSetStore) List(ctx context.Context, owner string) ([]RuleSetSummary, error) {
	rows, err := s.db.QueryContext(ctx, s.d.listSets, owner)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: list rule sets", s.d.name)
	}
	defer rows.Close()

	out := []RuleSetSummary{}
	for rows.Next() {
		var sum RuleSetSummary
		var categories []string
		if err := rows.Scan(&sum.ID, &sum.Owner, &sum.Name, &sum.Description, s.d.decodeList(&categories),
			&sum.ResultLabel, &sum.WarningText, &sum.FieldCount, &sum.RuleCount,
			&sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, eris.Wrapf(err, "%s: scan rule set", s.d.name)
		}
		if len(categories) > 0 {
			sum.Categories = categories
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "%s: iterate rule sets", s.d.name)
	}
	return out, nil
}

// Delete removes a rule set with its fields and rules
func (s *sqlRuleSetStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "%s: begin delete", s.d.name)
	}
	defer tx.Rollback() //nolint:errcheck

	if s.d.deleteChilds {
		if _, err := tx.ExecContext(ctx, s.d.clearFields, id); err != nil {
			return eris.Wrapf(err, "%s: delete fields", s.d.name)
		}
		if _, err := tx.ExecContext(ctx, s.d.clearRules, id); err != nil {
			return eris.Wrapf(err, "%s: delete rules", s.d.name)
		}
	}

	res, err := tx.ExecContext(ctx, s.d.deleteSet, id)
	if err != nil {
		return eris.Wrapf(err, "%s: delete rule set", s.d.name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "%s: rows affected", s.d.name)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "delete rule set %s", id)
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrapf(err, "%s: commit delete", s.d.name)
	}
	return nil
}
