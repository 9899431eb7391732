// Package discovery implements executor registration, capability matching,
// and weighted multi-factor scoring.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/scenariq/scenariq/internal/core"
	"github.com/scenariq/scenariq/internal/storage"
)

// Registry manages registered executors. Executors are registered once and
// treated as read-only during matching; only the reliability counters change.
type Registry struct {
	db        *storage.DB
	executors map[string]*core.Executor
	nextSeq   int64
	mu        sync.RWMutex
}

// NewRegistry creates an executor registry
func NewRegistry(db *storage.DB) *Registry {
	return &Registry{
		db:        db,
		executors: make(map[string]*core.Executor),
		nextSeq:   1,
	}
}

// Register adds or updates an executor. New executors receive a monotonic
// registration sequence number; re-registration keeps the original one so
// tie-breaking stays stable.
func (r *Registry) Register(ctx context.Context, e *core.Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == "" {
		return fmt.Errorf("%w: executor ID is required", core.ErrInvalidInput)
	}

	if existing, ok := r.executors[e.ID]; ok {
		e.Seq = existing.Seq
		e.RegisteredAt = existing.RegisteredAt
		e.TotalCalls = existing.TotalCalls
		e.SuccessCalls = existing.SuccessCalls
	} else {
		e.Seq = r.nextSeq
		r.nextSeq++
		e.RegisteredAt = time.Now()
	}

	r.executors[e.ID] = e
	return r.persist(ctx, e)
}

// Unregister removes an executor
func (r *Registry) Unregister(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.executors[id]; !ok {
		return fmt.Errorf("%w: %s", core.ErrExecutorNotFound, id)
	}
	delete(r.executors, id)

	_, err := r.db.Conn().ExecContext(ctx, "DELETE FROM executors WHERE id = ?", id)
	return err
}

// Get retrieves an executor by ID
func (r *Registry) Get(id string) (*core.Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.executors[id]
	return e, ok
}

// GetAll returns all registered executors in registration order
func (r *Registry) GetAll() []*core.Executor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executors := make([]*core.Executor, 0, len(r.executors))
	for _, e := range r.executors {
		executors = append(executors, e)
	}
	sort.Slice(executors, func(i, j int) bool {
		return executors[i].Seq < executors[j].Seq
	})
	return executors
}

// GetByCapability returns executors declaring the given capability tag,
// in registration order
func (r *Registry) GetByCapability(tag string) []*core.Executor {
	var out []*core.Executor
	for _, e := range r.GetAll() {
		if e.HasCapability(tag) {
			out = append(out, e)
		}
	}
	return out
}

// RecordCall updates an executor's reliability counters after an execution
func (r *Registry) RecordCall(ctx context.Context, id string, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.executors[id]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrExecutorNotFound, id)
	}

	e.TotalCalls++
	if success {
		e.SuccessCalls++
	}

	return r.persist(ctx, e)
}

// Load loads executors from the database
func (r *Registry) Load(ctx context.Context) error {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, name, capabilities, expertise, description,
		       total_calls, success_calls, seq, registered_at
		FROM executors
		ORDER BY seq
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	r.mu.Lock()
	defer r.mu.Unlock()

	for rows.Next() {
		var e core.Executor
		var capJSON, expJSON string

		err := rows.Scan(
			&e.ID, &e.Name, &capJSON, &expJSON, &e.Description,
			&e.TotalCalls, &e.SuccessCalls, &e.Seq, &e.RegisteredAt,
		)
		if err != nil {
			continue
		}

		json.Unmarshal([]byte(capJSON), &e.Capabilities)
		json.Unmarshal([]byte(expJSON), &e.Expertise)

		r.executors[e.ID] = &e
		if e.Seq >= r.nextSeq {
			r.nextSeq = e.Seq + 1
		}
	}

	return rows.Err()
}

// persist saves an executor. Caller holds the lock.
func (r *Registry) persist(ctx context.Context, e *core.Executor) error {
	capJSON, _ := json.Marshal(e.Capabilities)
	expJSON, _ := json.Marshal(e.Expertise)

	_, err := r.db.Conn().ExecContext(ctx, `
		INSERT OR REPLACE INTO executors
		(id, name, capabilities, expertise, description, total_calls, success_calls, seq, registered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.Name, string(capJSON), string(expJSON), e.Description,
		e.TotalCalls, e.SuccessCalls, e.Seq, e.RegisteredAt,
	)
	return err
}

// Stats returns registry counters
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{
		TotalExecutors: len(r.executors),
		ByCapability:   make(map[string]int),
	}
	for _, e := range r.executors {
		for _, c := range e.Capabilities {
			stats.ByCapability[c]++
		}
	}
	return stats
}

// RegistryStats contains registry statistics
type RegistryStats struct {
	TotalExecutors int            `json:"total_executors"`
	ByCapability   map[string]int `json:"by_capability"`
}
