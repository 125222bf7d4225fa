package rules

import (
	"github.com/google/uuid"
)

// Session is the editable state of one rule set while it is being authored.
// Appends take their SortOrder from per-list counters that only move
// forward, so removing an entry never renumbers the others.
//
// A Session belongs to a single caller and is not safe for concurrent use.
type Session struct {
	id        string
	owner     string
	meta      Metadata
	fields    []Field
	rules     []Rule
	nextField int
	nextRule  int
}

// NewSession starts an empty authoring session
func NewSession(owner string, meta Metadata) *Session {
	return &Session{owner: owner, meta: meta}
}

// OpenSession resumes editing a stored rule set. New entries are ordered
// after the highest stored SortOrder.
func OpenSession(rs *RuleSet) *Session {
	set := rs.Clone()
	s := &Session{
		id:     set.ID,
		owner:  set.Owner,
		meta:   set.Metadata,
		fields: set.Fields,
		rules:  Ordered(set.Rules),
	}
	for _, f := range s.fields {
		s.nextField = max(s.nextField, f.SortOrder+1)
	}
	for _, r := range s.rules {
		s.nextRule = max(s.nextRule, r.SortOrder+1)
	}
	return s
}

// ID is the stored rule set this session edits, empty for a new set
func (s *Session) ID() string { return s.id }

// Metadata returns the session's rule set metadata
func (s *Session) Metadata() Metadata { return s.meta }

// SetMetadata replaces the rule set metadata
func (s *Session) SetMetadata(meta Metadata) {
	meta.Categories = cloneStrings(meta.Categories)
	s.meta = meta
}

// AddField appends a field and returns it with its ID and SortOrder assigned
func (s *Session) AddField(f Field) Field {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.Options = cloneStrings(f.Options)
	f.SortOrder = s.nextField
	s.nextField++
	s.fields = append(s.fields, f)
	return f
}

// RemoveField drops the field with the given ID. Rules referring to it are
// left alone; they simply stop matching.
func (s *Session) RemoveField(id string) bool {
	for i, f := range s.fields {
		if f.ID == id {
			s.fields = append(s.fields[:i], s.fields[i+1:]...)
			return true
		}
	}
	return false
}

// AddRule appends a rule and returns it with its ID and SortOrder assigned
func (s *Session) AddRule(r Rule) Rule {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.SortOrder = s.nextRule
	s.nextRule++
	s.rules = append(s.rules, r)
	return r
}

// RemoveRule drops the rule with the given ID
func (s *Session) RemoveRule(id string) bool {
	for i, r := range s.rules {
		if r.ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Fields returns the session's fields in arrival order
func (s *Session) Fields() []Field {
	return s.Snapshot().Fields
}

// Rules returns the session's rules in evaluation order
func (s *Session) Rules() []Rule {
	return Ordered(s.rules)
}

// Snapshot copies the session into a RuleSet ready to be saved
func (s *Session) Snapshot() *RuleSet {
	rs := &RuleSet{
		ID:       s.id,
		Owner:    s.owner,
		Metadata: s.meta,
		Fields:   s.fields,
		Rules:    s.rules,
	}
	return rs.Clone()
}

// Run is the builder's test run: it evaluates the current rules against values
func (s *Session) Run(values Values) float64 {
	return Evaluate(s.rules, values)
}

// Trace is Run with a per-rule breakdown
func (s *Session) Trace(values Values) (float64, []Step) {
	return Trace(s.rules, values)
}

// Validate checks the current state as it would be checked on save
func (s *Session) Validate() error {
	return ValidateRuleSet(s.Snapshot())
}
