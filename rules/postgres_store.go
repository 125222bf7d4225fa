package rules

import (
	"database/sql"

	"github.com/lib/pq"
)

// PostgresRuleSetStore implements RuleSetStore backed by PostgreSQL.
// Fields and rules are removed with their set through ON DELETE CASCADE.
type PostgresRuleSetStore struct {
	sqlRuleSetStore
}

var postgresDialect = dialect{
	name: "postgres",
	insertSet: `
		INSERT INTO rule_sets (id, owner, name, description, categories, result_label, warning_text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	updateSet: `
		UPDATE rule_sets
		SET owner = $1, name = $2, description = $3, categories = $4, result_label = $5, warning_text = $6, updated_at = $7
		WHERE id = $8`,
	clearFields: `DELETE FROM rule_set_fields WHERE rule_set_id = $1`,
	clearRules:  `DELETE FROM rule_set_rules WHERE rule_set_id = $1`,
	insertField: `
		INSERT INTO rule_set_fields (id, rule_set_id, name, label, type, required, options, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	insertRule: `
		INSERT INTO rule_set_rules (id, rule_set_id, condition_field, condition_operator, condition_value, action_type, action_value, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	getSet: `
		SELECT id, owner, name, description, categories, result_label, warning_text, created_at, updated_at
		FROM rule_sets
		WHERE id = $1`,
	listFields: `
		SELECT id, name, label, type, required, options, sort_order
		FROM rule_set_fields
		WHERE rule_set_id = $1
		ORDER BY sort_order ASC`,
	listRules: `
		SELECT id, condition_field, condition_operator, condition_value, action_type, action_value, sort_order
		FROM rule_set_rules
		WHERE rule_set_id = $1
		ORDER BY sort_order ASC`,
	listSets: `
		SELECT rs.id, rs.owner, rs.name, rs.description, rs.categories, rs.result_label, rs.warning_text,
			(SELECT COUNT(*) FROM rule_set_fields f WHERE f.rule_set_id = rs.id),
			(SELECT COUNT(*) FROM rule_set_rules r WHERE r.rule_set_id = rs.id),
			rs.created_at, rs.updated_at
		FROM rule_sets rs
		WHERE $1 = '' OR rs.owner = $1
		ORDER BY rs.updated_at DESC, rs.id ASC`,
	deleteSet: `DELETE FROM rule_sets WHERE id = $1`,
	encodeList: func(v []string) any {
		if v == nil {
			v = []string{}
		}
		return pq.Array(v)
	},
	decodeList: func(v *[]string) any { return pq.Array(v) },
}

// NewPostgresRuleSetStore creates a store on an open lib/pq connection pool
func NewPostgresRuleSetStore(db *sql.DB) *PostgresRuleSetStore {
	return &PostgresRuleSetStore{sqlRuleSetStore{db: db, d: postgresDialect}}
}
