package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/scenariq/scenariq/internal/core"
)

// SimulationStore persists canonical simulation results. Results are
// immutable: there is insert and read, no update.
type SimulationStore struct {
	db *DB
}

// NewSimulationStore creates a simulation result store
func NewSimulationStore(db *DB) *SimulationStore {
	return &SimulationStore{db: db}
}

// Insert stores a simulation result
func (s *SimulationStore) Insert(ctx context.Context, result *core.SimulationResult) error {
	if result.ID == "" {
		return fmt.Errorf("%w: simulation id", core.ErrMissingRequired)
	}

	scenariosJSON, _ := json.Marshal(result.Scenarios)
	metricsJSON, _ := json.Marshal(result.Metrics)
	rawJSON, _ := json.Marshal(result.RawResult)

	query := `
		INSERT INTO simulation_results
		(id, name, simulation_type, scenarios, metrics, raw_result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Conn().ExecContext(ctx, query,
		string(result.ID), result.Name, string(result.Type),
		string(scenariosJSON), string(metricsJSON), string(rawJSON), result.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: simulation %s", core.ErrDuplicateRecord, result.ID)
		}
		return fmt.Errorf("insert simulation result: %w", err)
	}
	return nil
}

// Get retrieves a simulation result by ID
func (s *SimulationStore) Get(ctx context.Context, id core.SimulationID) (*core.SimulationResult, error) {
	row := s.db.Conn().QueryRowContext(ctx, `
		SELECT id, name, simulation_type, scenarios, metrics, raw_result, created_at
		FROM simulation_results WHERE id = ?
	`, string(id))

	var result core.SimulationResult
	var resultID, simType, scenariosJSON, metricsJSON string
	var rawJSON sql.NullString

	err := row.Scan(&resultID, &result.Name, &simType, &scenariosJSON, &metricsJSON, &rawJSON, &result.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	result.ID = core.SimulationID(resultID)
	result.Type = core.SimulationType(simType)
	json.Unmarshal([]byte(scenariosJSON), &result.Scenarios)
	json.Unmarshal([]byte(metricsJSON), &result.Metrics)
	if rawJSON.Valid && rawJSON.String != "null" {
		json.Unmarshal([]byte(rawJSON.String), &result.RawResult)
	}
	return &result, nil
}

// List returns recent simulation results, newest first
func (s *SimulationStore) List(ctx context.Context, limit int) ([]*core.SimulationResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id FROM simulation_results ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []core.SimulationID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, core.SimulationID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]*core.SimulationResult, 0, len(ids))
	for _, id := range ids {
		r, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}
