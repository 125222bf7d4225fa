package rules

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteRuleSetStore implements RuleSetStore on a local SQLite file, for
// single-user installs and development.
type SQLiteRuleSetStore struct {
	sqlRuleSetStore
}

var sqliteDialect = dialect{
	name: "sqlite",
	insertSet: `
		INSERT INTO rule_sets (id, owner, name, description, categories, result_label, warning_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	updateSet: `
		UPDATE rule_sets
		SET owner = ?, name = ?, description = ?, categories = ?, result_label = ?, warning_text = ?, updated_at = ?
		WHERE id = ?`,
	clearFields: `DELETE FROM rule_set_fields WHERE rule_set_id = ?`,
	clearRules:  `DELETE FROM rule_set_rules WHERE rule_set_id = ?`,
	insertField: `
		INSERT INTO rule_set_fields (id, rule_set_id, name, label, type, required, options, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	insertRule: `
		INSERT INTO rule_set_rules (id, rule_set_id, condition_field, condition_operator, condition_value, action_type, action_value, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	getSet: `
		SELECT id, owner, name, description, categories, result_label, warning_text, created_at, updated_at
		FROM rule_sets
		WHERE id = ?`,
	listFields: `
		SELECT id, name, label, type, required, options, sort_order
		FROM rule_set_fields
		WHERE rule_set_id = ?
		ORDER BY sort_order ASC`,
	listRules: `
		SELECT id, condition_field, condition_operator, condition_value, action_type, action_value, sort_order
		FROM rule_set_rules
		WHERE rule_set_id = ?
		ORDER BY sort_order ASC`,
	listSets: `
		SELECT rs.id, rs.owner, rs.name, rs.description, rs.categories, rs.result_label, rs.warning_text,
			(SELECT COUNT(*) FROM rule_set_fields f WHERE f.rule_set_id = rs.id),
			(SELECT COUNT(*) FROM rule_set_rules r WHERE r.rule_set_id = rs.id),
			rs.created_at, rs.updated_at
		FROM rule_sets rs
		WHERE ?1 = '' OR rs.owner = ?1
		ORDER BY rs.updated_at DESC, rs.id ASC`,
	deleteSet:    `DELETE FROM rule_sets WHERE id = ?`,
	encodeList:   func(v []string) any { return jsonList{v: &v} },
	decodeList:   func(v *[]string) any { return jsonList{v: v} },
	deleteChilds: true,
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS rule_sets (
	id           TEXT PRIMARY KEY,
	owner        TEXT NOT NULL DEFAULT '',
	name         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	categories   TEXT NOT NULL DEFAULT '[]',
	result_label TEXT NOT NULL DEFAULT '',
	warning_text TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS rule_set_fields (
	id          TEXT NOT NULL,
	rule_set_id TEXT NOT NULL REFERENCES rule_sets(id),
	name        TEXT NOT NULL,
	label       TEXT NOT NULL DEFAULT '',
	type        TEXT NOT NULL,
	required    BOOLEAN NOT NULL DEFAULT 0,
	options     TEXT NOT NULL DEFAULT '[]',
	sort_order  INTEGER NOT NULL,
	PRIMARY KEY (rule_set_id, id)
);

CREATE TABLE IF NOT EXISTS rule_set_rules (
	id                 TEXT NOT NULL,
	rule_set_id        TEXT NOT NULL REFERENCES rule_sets(id),
	condition_field    TEXT NOT NULL,
	condition_operator TEXT NOT NULL,
	condition_value    TEXT NOT NULL DEFAULT '',
	action_type        TEXT NOT NULL,
	action_value       REAL NOT NULL,
	sort_order         INTEGER NOT NULL,
	PRIMARY KEY (rule_set_id, id)
);

CREATE INDEX IF NOT EXISTS idx_rule_sets_owner ON rule_sets(owner);
CREATE INDEX IF NOT EXISTS idx_rule_set_fields_order ON rule_set_fields(rule_set_id, sort_order);
CREATE INDEX IF NOT EXISTS idx_rule_set_rules_order ON rule_set_rules(rule_set_id, sort_order);
`

// NewSQLiteRuleSetStore opens a SQLite database at dsn and configures WAL mode
func NewSQLiteRuleSetStore(dsn string) (*SQLiteRuleSetStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteRuleSetStore{sqlRuleSetStore{db: db, d: sqliteDialect}}, nil
}

// Migrate creates the rule set tables if they do not exist
func (s *SQLiteRuleSetStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// DB returns the underlying database handle
func (s *SQLiteRuleSetStore) DB() *sql.DB {
	return s.db
}

// Close closes the database
func (s *SQLiteRuleSetStore) Close() error {
	return s.db.Close()
}

// jsonList stores a string list as a JSON array in a TEXT column
type jsonList struct {
	v *[]string
}

func (l jsonList) Value() (driver.Value, error) {
	if l.v == nil || *l.v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(*l.v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l jsonList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l.v = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return eris.Errorf("sqlite: cannot scan %T into string list", src)
	}
	return json.Unmarshal(raw, l.v)
}
