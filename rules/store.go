package rules

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when a rule set ID does not exist
var ErrNotFound = errors.New("rule set not found")

// RuleSetStore persists rule sets. A save always replaces the whole set:
// metadata, fields and rules.
type RuleSetStore interface {
	// Save creates the set when rs.ID is empty, otherwise replaces the stored
	// set with that ID. It returns the set ID.
	Save(ctx context.Context, owner string, rs *RuleSet) (string, error)

	// Load returns the set with fields and rules ordered by SortOrder
	Load(ctx context.Context, id string) (*RuleSet, error)

	// List returns the summaries of an owner's sets, most recently updated first.
	// An empty owner lists every set.
	List(ctx context.Context, owner string) ([]RuleSetSummary, error)

	// Delete removes a set with its fields and rules
	Delete(ctx context.Context, id string) error
}

// InMemoryRuleSetStore implements RuleSetStore using an in-memory map.
// Safe for concurrent use.
type InMemoryRuleSetStore struct {
	sets map[string]*RuleSet
	mu   sync.RWMutex
}

// NewInMemoryRuleSetStore creates an empty in-memory store
func NewInMemoryRuleSetStore() *InMemoryRuleSetStore {
	return &InMemoryRuleSetStore{
		sets: make(map[string]*RuleSet),
	}
}

// Save stores a copy of rs. CreatedAt is kept across replacements.
func (s *InMemoryRuleSetStore) Save(_ context.Context, owner string, rs *RuleSet) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := prepareForSave(owner, rs)
	now := time.Now().UTC()
	stored.UpdatedAt = now

	if rs.ID == "" {
		stored.ID = uuid.NewString()
		stored.CreatedAt = now
	} else {
		existing, ok := s.sets[rs.ID]
		if !ok {
			return "", eris.Wrapf(ErrNotFound, "save rule set %s", rs.ID)
		}
		stored.CreatedAt = existing.CreatedAt
	}

	s.sets[stored.ID] = stored
	return stored.ID, nil
}

// Load returns a copy of the stored set
func (s *InMemoryRuleSetStore) Load(_ context.Context, id string) (*RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs, ok := s.sets[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "load rule set %s", id)
	}
	return rs.Clone(), nil
}

// List returns summaries ordered by UpdatedAt, newest first
func (s *InMemoryRuleSetStore) List(_ context.Context, owner string) ([]RuleSetSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RuleSetSummary, 0, len(s.sets))
	for _, rs := range s.sets {
		if owner != "" && rs.Owner != owner {
			continue
		}
		out = append(out, rs.Summary())
	}
	slices.SortFunc(out, func(a, b RuleSetSummary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Delete removes a set
func (s *InMemoryRuleSetStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sets[id]; !ok {
		return eris.Wrapf(ErrNotFound, "delete rule set %s", id)
	}
	delete(s.sets, id)
	return nil
}

// prepareForSave copies rs for storage: fields and rules are put in
// SortOrder and missing child IDs are filled in.
func prepareForSave(owner string, rs *RuleSet) *RuleSet {
	stored := rs.Clone()
	stored.Owner = owner
	stored.Name = strings.TrimSpace(stored.Name)
	slices.SortStableFunc(stored.Fields, func(a, b Field) int {
		return a.SortOrder - b.SortOrder
	})
	stored.Rules = Ordered(stored.Rules)
	for i := range stored.Fields {
		if stored.Fields[i].ID == "" {
			stored.Fields[i].ID = uuid.NewString()
		}
	}
	for i := range stored.Rules {
		if stored.Rules[i].ID == "" {
			stored.Rules[i].ID = uuid.NewString()
		}
	}
	return stored
}
