// Package learning persists the append-only execution history that biases
// future executor scoring, plus a short-lived working context.
package learning

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scenariq/scenariq/internal/core"
	"github.com/scenariq/scenariq/internal/storage"
)

// Store is the append-only record of past executions. Records are never
// updated or deleted; they are a feedback channel, not a system of record
// for decisions.
type Store struct {
	db *storage.DB
}

// NewStore creates a learning store
func NewStore(db *storage.DB) *Store {
	return &Store{db: db}
}

// Append writes a new learning record. ID and CreatedAt are filled in when
// absent.
func (s *Store) Append(ctx context.Context, r *core.LearningRecord) error {
	if r.ActionName == "" {
		return fmt.Errorf("%w: action name", core.ErrMissingRequired)
	}
	if r.ExecutorID == "" {
		return fmt.Errorf("%w: executor id", core.ErrMissingRequired)
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO learning_records
		(id, action_name, category, simulation_type, executor_id, success, success_probability, confidence_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.ActionName, r.Category, string(r.SimulationType), r.ExecutorID,
		boolToInt(r.Success), r.SuccessProbability, r.ConfidenceScore, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append learning record: %w", err)
	}
	return nil
}

// Query returns records whose action name contains the pattern as a
// substring, newest first. simType narrows to one simulation type when set;
// limit <= 0 means no limit.
func (s *Store) Query(ctx context.Context, actionNamePattern string, simType core.SimulationType, limit int) ([]*core.LearningRecord, error) {
	query := `
		SELECT id, action_name, category, simulation_type, executor_id, success, success_probability, confidence_score, created_at
		FROM learning_records
		WHERE action_name LIKE '%' || ? || '%'
	`
	args := []interface{}{actionNamePattern}

	if simType != "" {
		query += " AND simulation_type = ?"
		args = append(args, string(simType))
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query learning records: %w", err)
	}
	defer rows.Close()

	var records []*core.LearningRecord
	for rows.Next() {
		var r core.LearningRecord
		var simTypeStr string
		var success int

		err := rows.Scan(&r.ID, &r.ActionName, &r.Category, &simTypeStr, &r.ExecutorID,
			&success, &r.SuccessProbability, &r.ConfidenceScore, &r.CreatedAt)
		if err != nil {
			return nil, err
		}

		r.SimulationType = core.SimulationType(simTypeStr)
		r.Success = success == 1
		records = append(records, &r)
	}

	return records, rows.Err()
}

// CountByExecutor returns total and successful executions for one executor
func (s *Store) CountByExecutor(ctx context.Context, executorID string) (total, successes int64, err error) {
	row := s.db.Conn().QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(success), 0)
		FROM learning_records
		WHERE executor_id = ?
	`, executorID)

	if err := row.Scan(&total, &successes); err != nil {
		return 0, 0, err
	}
	return total, successes, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
