package rules

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// countingStore records how often Load reaches the backing store
type countingStore struct {
	RuleSetStore
	mu    sync.Mutex
	loads int
}

func (s *countingStore) Load(ctx context.Context, id string) (*RuleSet, error) {
	s.mu.Lock()
	s.loads++
	s.mu.Unlock()
	return s.RuleSetStore.Load(ctx, id)
}

func (s *countingStore) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

func newTestEngine() (*Engine, *countingStore) {
	store := &countingStore{RuleSetStore: NewInMemoryRuleSetStore()}
	return NewEngine(store, NewInMemoryRuleSetCache(DefaultCacheConfig())), store
}

func premiumSet() *RuleSet {
	return &RuleSet{
		Metadata: Metadata{Name: "Equine mortality", ResultLabel: "Annual premium", WarningText: "Quote only"},
		Fields:   []Field{{Name: "value", Type: FieldNumber}},
		Rules: []Rule{
			{ConditionField: "value", ConditionOperator: OpGreater, ConditionValue: "1000", Action: AddAmount{Amount: 50}, SortOrder: 0},
			{ConditionField: "value", ConditionOperator: OpGreater, ConditionValue: "5000", Action: MultiplyPercent{Percent: 5}, SortOrder: 1},
		},
	}
}

func TestEngineCalculate(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	id, err := engine.Save(ctx, "agent-1", premiumSet())
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	calc, err := engine.Calculate(ctx, id, Values{"value": 6000})
	if err != nil {
		t.Fatalf("Calculate() failed: %v", err)
	}
	if calc.Result != 350 {
		t.Errorf("Result = %v, want 350", calc.Result)
	}
	if calc.RuleSetID != id || calc.ResultLabel != "Annual premium" || calc.WarningText != "Quote only" {
		t.Errorf("Calculation = %+v", calc)
	}
	if len(calc.Trace) != 2 || !calc.Trace[1].Matched {
		t.Errorf("Trace = %+v", calc.Trace)
	}
}

func TestEngineCalculateUnknownSet(t *testing.T) {
	engine, _ := newTestEngine()
	if _, err := engine.Calculate(context.Background(), "missing", Values{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Calculate() error = %v, want ErrNotFound", err)
	}
}

func TestEngineSaveRejectsInvalid(t *testing.T) {
	engine, store := newTestEngine()
	rs := premiumSet()
	rs.Name = ""

	_, err := engine.Save(context.Background(), "agent-1", rs)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Save() error = %v, want *ValidationError", err)
	}

	sums, _ := store.List(context.Background(), "")
	if len(sums) != 0 {
		t.Error("an invalid set should not be stored")
	}
}

func TestEngineLoadUsesCache(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()

	id, err := engine.Save(ctx, "agent-1", premiumSet())
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := engine.Calculate(ctx, id, Values{"value": 6000}); err != nil {
			t.Fatalf("Calculate() failed: %v", err)
		}
	}
	if n := store.loadCount(); n != 1 {
		t.Errorf("store loads = %d, want 1", n)
	}
}

func TestEngineSaveInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	id, err := engine.Save(ctx, "agent-1", premiumSet())
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := engine.Load(ctx, id); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	updated := premiumSet()
	updated.ID = id
	updated.Rules[0].Action = AddAmount{Amount: 75}
	if _, err := engine.Save(ctx, "agent-1", updated); err != nil {
		t.Fatalf("Save() replace failed: %v", err)
	}

	calc, err := engine.Calculate(ctx, id, Values{"value": 2000})
	if err != nil {
		t.Fatalf("Calculate() failed: %v", err)
	}
	if calc.Result != 75 {
		t.Errorf("Result = %v after replace, want 75", calc.Result)
	}
}

func TestEngineDeleteInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	id, err := engine.Save(ctx, "agent-1", premiumSet())
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := engine.Load(ctx, id); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err := engine.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := engine.Load(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() after Delete() error = %v, want ErrNotFound", err)
	}
}

func TestEngineWithoutCache(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{RuleSetStore: NewInMemoryRuleSetStore()}
	engine := NewEngine(store, nil)

	id, err := engine.Save(ctx, "agent-1", premiumSet())
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	engine.Load(ctx, id)
	engine.Load(ctx, id)
	if n := store.loadCount(); n != 2 {
		t.Errorf("store loads = %d, want 2", n)
	}

	sums, err := engine.List(ctx, "agent-1")
	if err != nil || len(sums) != 1 {
		t.Errorf("List() = %v, %v", sums, err)
	}
}

func TestEngineConcurrentCalculate(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	id, err := engine.Save(ctx, "agent-1", premiumSet())
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			calc, err := engine.Calculate(ctx, id, Values{"value": 6000})
			if err != nil {
				t.Errorf("Calculate() failed: %v", err)
				return
			}
			if calc.Result != 350 {
				t.Errorf("Result = %v, want 350", calc.Result)
			}
		}()
	}
	wg.Wait()
}
