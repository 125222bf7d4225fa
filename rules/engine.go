package rules

import (
	"context"

	"github.com/rotisserie/eris"
)

// Calculation is the outcome of running a stored rule set
type Calculation struct {
	RuleSetID   string  `json:"ruleSetId"`
	Result      float64 `json:"result"`
	ResultLabel string  `json:"resultLabel,omitempty"`
	WarningText string  `json:"warningText,omitempty"`
	Trace       []Step  `json:"trace"`
}

// Engine fronts a RuleSetStore with validation and a cache, and runs the
// evaluator on stored sets. Safe for concurrent use.
type Engine struct {
	store RuleSetStore
	cache RuleSetCache
}

// NewEngine creates an engine. A nil cache disables caching.
func NewEngine(store RuleSetStore, cache RuleSetCache) *Engine {
	return &Engine{store: store, cache: cache}
}

// Save validates rs and persists it as a full replace. The saved set is
// evicted from the cache so the next read sees it.
func (en *Engine) Save(ctx context.Context, owner string, rs *RuleSet) (string, error) {
	if err := ValidateRuleSet(rs); err != nil {
		return "", err
	}

	id, err := en.store.Save(ctx, owner, rs)
	if err != nil {
		return "", err
	}

	if en.cache != nil {
		en.cache.Invalidate(id)
	}
	return id, nil
}

// Load returns a stored set, from the cache when possible
func (en *Engine) Load(ctx context.Context, id string) (*RuleSet, error) {
	if en.cache != nil {
		if rs, ok := en.cache.Get(id); ok {
			return rs, nil
		}
	}

	rs, err := en.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	if en.cache != nil {
		en.cache.Set(rs)
	}
	return rs, nil
}

// List returns an owner's rule set summaries
func (en *Engine) List(ctx context.Context, owner string) ([]RuleSetSummary, error) {
	return en.store.List(ctx, owner)
}

// Delete removes a set from the store and the cache
func (en *Engine) Delete(ctx context.Context, id string) error {
	if err := en.store.Delete(ctx, id); err != nil {
		return err
	}
	if en.cache != nil {
		en.cache.Invalidate(id)
	}
	return nil
}

// Calculate evaluates the stored set id against values
func (en *Engine) Calculate(ctx context.Context, id string, values Values) (*Calculation, error) {
	rs, err := en.Load(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "calculate %s", id)
	}

	result, trace := Trace(rs.Rules, values)
	return &Calculation{
		RuleSetID:   rs.ID,
		Result:      result,
		ResultLabel: rs.ResultLabel,
		WarningText: rs.WarningText,
		Trace:       trace,
	}, nil
}
