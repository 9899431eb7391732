package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/scenariq/scenariq/internal/core"
)

// testDB opens a migrated in-memory database
func testDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := testDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate should be a no-op: %v", err)
	}
}

func TestDecisionStore_CreateAndGet(t *testing.T) {
	db := testDB(t)
	store := NewDecisionStore(db)
	ctx := context.Background()

	d := &core.Decision{
		ID:           "dec-1",
		ActionID:     "act-1",
		SimulationID: "sim-1",
		ActionName:   "Hedge downside",
		Status:       core.DecisionPending,
	}
	if err := store.Create(ctx, d); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, "dec-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != core.DecisionPending {
		t.Errorf("wrong status: %s", got.Status)
	}
	if got.Attempt != 1 {
		t.Errorf("attempt should default to 1, got %d", got.Attempt)
	}
	if got.ActionName != "Hedge downside" {
		t.Errorf("wrong action name: %q", got.ActionName)
	}
}

func TestDecisionStore_GetMissing(t *testing.T) {
	db := testDB(t)
	store := NewDecisionStore(db)

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, core.ErrDecisionNotFound) {
		t.Errorf("expected ErrDecisionNotFound, got %v", err)
	}
}

func TestDecisionStore_DuplicateAttempt(t *testing.T) {
	db := testDB(t)
	store := NewDecisionStore(db)
	ctx := context.Background()

	first := &core.Decision{ID: "dec-1", ActionID: "a", SimulationID: "s", Status: core.DecisionPending}
	if err := store.Create(ctx, first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	dup := &core.Decision{ID: "dec-2", ActionID: "a", SimulationID: "s", Status: core.DecisionPending}
	err := store.Create(ctx, dup)
	if !errors.Is(err, core.ErrDuplicateRecord) {
		t.Errorf("expected ErrDuplicateRecord for same attempt, got %v", err)
	}

	retry := &core.Decision{ID: "dec-3", ActionID: "a", SimulationID: "s", Status: core.DecisionPending, Attempt: 2}
	if err := store.Create(ctx, retry); err != nil {
		t.Errorf("second attempt should insert cleanly: %v", err)
	}
}

func TestDecisionStore_CompareAndSetStatus(t *testing.T) {
	db := testDB(t)
	store := NewDecisionStore(db)
	ctx := context.Background()

	store.Create(ctx, &core.Decision{
		ID: "dec-1", ActionID: "a", SimulationID: "s", Status: core.DecisionPending,
	})

	ok, err := store.CompareAndSetStatus(ctx, "dec-1", core.DecisionPending, core.DecisionApproved)
	if err != nil {
		t.Fatalf("CAS failed: %v", err)
	}
	if !ok {
		t.Fatal("first CAS should win")
	}

	// Second transition from PENDING must lose
	ok, err = store.CompareAndSetStatus(ctx, "dec-1", core.DecisionPending, core.DecisionRejected)
	if err != nil {
		t.Fatalf("CAS failed: %v", err)
	}
	if ok {
		t.Error("CAS from stale status should lose")
	}

	got, _ := store.Get(ctx, "dec-1")
	if got.Status != core.DecisionApproved {
		t.Errorf("status should be APPROVED, got %s", got.Status)
	}
}

func TestDecisionStore_ConcurrentCAS(t *testing.T) {
	db := testDB(t)
	store := NewDecisionStore(db)
	ctx := context.Background()

	store.Create(ctx, &core.Decision{
		ID: "dec-1", ActionID: "a", SimulationID: "s", Status: core.DecisionPending,
	})

	const attempts = 10
	wins := make(chan bool, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.CompareAndSetStatus(ctx, "dec-1", core.DecisionPending, core.DecisionApproved)
			if err != nil {
				t.Errorf("CAS error: %v", err)
				return
			}
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for ok := range wins {
		if ok {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("exactly one concurrent CAS should win, got %d", winners)
	}
}

func TestDecisionStore_RecordExecution(t *testing.T) {
	db := testDB(t)
	store := NewDecisionStore(db)
	ctx := context.Background()

	store.Create(ctx, &core.Decision{
		ID: "dec-1", ActionID: "a", SimulationID: "s", Status: core.DecisionApproved,
	})

	err := store.RecordExecution(ctx, "dec-1", core.DecisionFailed, "exec-9", "boom: connection refused")
	if err != nil {
		t.Fatalf("RecordExecution failed: %v", err)
	}

	got, _ := store.Get(ctx, "dec-1")
	if got.Status != core.DecisionFailed {
		t.Errorf("wrong status: %s", got.Status)
	}
	if got.ExecutionResult != "boom: connection refused" {
		t.Errorf("error message must be captured verbatim, got %q", got.ExecutionResult)
	}
	if got.ExecutedAt == nil {
		t.Error("executed_at should be set")
	}

	// Non-terminal status is rejected
	err = store.RecordExecution(ctx, "dec-1", core.DecisionPending, "", "")
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for non-terminal status, got %v", err)
	}
}

func TestDecisionStore_Executed(t *testing.T) {
	db := testDB(t)
	store := NewDecisionStore(db)
	ctx := context.Background()

	store.Create(ctx, &core.Decision{
		ID: "dec-1", ActionID: "a", SimulationID: "s", Status: core.DecisionCompleted,
	})
	store.Create(ctx, &core.Decision{
		ID: "dec-2", ActionID: "b", SimulationID: "s", Status: core.DecisionPending,
	})
	store.Create(ctx, &core.Decision{
		ID: "dec-3", ActionID: "c", SimulationID: "s", Status: core.DecisionFailed,
	})

	done, err := store.Executed(ctx, "a", "s")
	if err != nil {
		t.Fatalf("Executed failed: %v", err)
	}
	if !done {
		t.Error("action a should count as executed")
	}

	done, _ = store.Executed(ctx, "b", "s")
	if done {
		t.Error("pending action b should not count as executed")
	}

	// Failed attempts leave room for an explicit retry
	done, _ = store.Executed(ctx, "c", "s")
	if done {
		t.Error("failed action c should not block a retry")
	}
}

func TestDecisionStore_List(t *testing.T) {
	db := testDB(t)
	store := NewDecisionStore(db)
	ctx := context.Background()

	store.Create(ctx, &core.Decision{ID: "d1", ActionID: "a", SimulationID: "s1", Status: core.DecisionPending})
	store.Create(ctx, &core.Decision{ID: "d2", ActionID: "b", SimulationID: "s1", Status: core.DecisionCompleted})
	store.Create(ctx, &core.Decision{ID: "d3", ActionID: "c", SimulationID: "s2", Status: core.DecisionPending})

	pending, err := store.List(ctx, core.DecisionPending, "", 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("expected 2 pending, got %d", len(pending))
	}

	s1, _ := store.List(ctx, "", "s1", 0)
	if len(s1) != 2 {
		t.Errorf("expected 2 for sim s1, got %d", len(s1))
	}
}

func TestSimulationStore_RoundTrip(t *testing.T) {
	db := testDB(t)
	store := NewSimulationStore(db)
	ctx := context.Background()

	result := &core.SimulationResult{
		ID:   "sim-1",
		Name: "Q4 revenue",
		Type: core.SimulationTypeRevenue,
		Scenarios: []core.Scenario{
			{ID: "expected", Name: "expected", Probability: 0.8, Metrics: map[string]interface{}{"value": 100.0}},
		},
		Metrics: core.AggregateMetrics{
			ExpectedValue: 100,
			RecommendedActions: []core.RecommendedAction{
				{ActionID: "a1", Name: "act", SuccessProbability: 0.8, ConfidenceScore: 0.9, RiskLevel: core.RiskLow},
			},
		},
	}

	if err := store.Insert(ctx, result); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.Get(ctx, "sim-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "Q4 revenue" || got.Type != core.SimulationTypeRevenue {
		t.Errorf("wrong result: %+v", got)
	}
	if len(got.Scenarios) != 1 || len(got.Metrics.RecommendedActions) != 1 {
		t.Errorf("nested data lost: %+v", got)
	}

	// Immutable: a second insert with the same id fails
	if err := store.Insert(ctx, result); !errors.Is(err, core.ErrDuplicateRecord) {
		t.Errorf("expected ErrDuplicateRecord, got %v", err)
	}
}
