package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scenariq/scenariq/internal/core"
)

// DecisionStore persists decision records. Status transitions go through
// CompareAndSetStatus so the state machine's optimistic concurrency holds
// across processes, not just within one.
type DecisionStore struct {
	db *DB
}

// NewDecisionStore creates a decision store
func NewDecisionStore(db *DB) *DecisionStore {
	return &DecisionStore{db: db}
}

// Create inserts a new decision. The (action, simulation, attempt) triple is
// unique; inserting a duplicate returns ErrDuplicateRecord.
func (s *DecisionStore) Create(ctx context.Context, d *core.Decision) error {
	if d.ID == "" {
		return fmt.Errorf("%w: decision id", core.ErrMissingRequired)
	}
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	if d.Attempt == 0 {
		d.Attempt = 1
	}

	query := `
		INSERT INTO decisions
		(id, action_id, simulation_id, action_name, status, automated, attempt,
		 executed_by, execution_result, created_at, updated_at, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Conn().ExecContext(ctx, query,
		d.ID, d.ActionID, string(d.SimulationID), d.ActionName, string(d.Status),
		boolToInt(d.Automated), d.Attempt, d.ExecutedBy, d.ExecutionResult,
		d.CreatedAt, d.UpdatedAt, d.ExecutedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: decision for action %s attempt %d", core.ErrDuplicateRecord, d.ActionID, d.Attempt)
		}
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// Get retrieves a decision by ID
func (s *DecisionStore) Get(ctx context.Context, id string) (*core.Decision, error) {
	row := s.db.Conn().QueryRowContext(ctx, selectDecision+" WHERE id = ?", id)
	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrDecisionNotFound
	}
	return d, err
}

// List returns decisions filtered by status and/or simulation ID; empty
// filters match everything. Newest first.
func (s *DecisionStore) List(ctx context.Context, status core.DecisionStatus, simulationID core.SimulationID, limit int) ([]*core.Decision, error) {
	query := selectDecision + " WHERE 1=1"
	var args []interface{}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	if simulationID != "" {
		query += " AND simulation_id = ?"
		args = append(args, string(simulationID))
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*core.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// CompareAndSetStatus atomically moves a decision from one status to another.
// Returns false when the decision was not in the expected status — the loser
// of a concurrent transition sees false, never a double execution.
func (s *DecisionStore) CompareAndSetStatus(ctx context.Context, id string, from, to core.DecisionStatus) (bool, error) {
	res, err := s.db.Conn().ExecContext(ctx,
		"UPDATE decisions SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(to), time.Now(), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("cas status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RecordExecution finalizes an executed decision: terminal status, executor,
// and the execution result (the error message verbatim on failure).
func (s *DecisionStore) RecordExecution(ctx context.Context, id string, status core.DecisionStatus, executedBy, result string) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: execution must end in a terminal status, got %s", core.ErrInvalidInput, status)
	}
	now := time.Now()
	res, err := s.db.Conn().ExecContext(ctx, `
		UPDATE decisions
		SET status = ?, executed_by = ?, execution_result = ?, executed_at = ?, updated_at = ?
		WHERE id = ?
	`, string(status), executedBy, result, now, now, id)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrDecisionNotFound
	}
	return nil
}

// Executed reports whether any attempt for (actionID, simulationID) already
// completed successfully. Backs the at-most-once guard; FAILED attempts do
// not count, since an explicit retry may run the action again.
func (s *DecisionStore) Executed(ctx context.Context, actionID string, simulationID core.SimulationID) (bool, error) {
	var count int
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM decisions
		WHERE action_id = ? AND simulation_id = ? AND status = 'COMPLETED'
	`, actionID, string(simulationID)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// LatestAttempt returns the highest attempt number recorded for
// (actionID, simulationID), 0 when none exists
func (s *DecisionStore) LatestAttempt(ctx context.Context, actionID string, simulationID core.SimulationID) (int, error) {
	var attempt sql.NullInt64
	err := s.db.Conn().QueryRowContext(ctx,
		"SELECT MAX(attempt) FROM decisions WHERE action_id = ? AND simulation_id = ?",
		actionID, string(simulationID),
	).Scan(&attempt)
	if err != nil {
		return 0, err
	}
	return int(attempt.Int64), nil
}

const selectDecision = `
	SELECT id, action_id, simulation_id, action_name, status, automated, attempt,
	       executed_by, execution_result, created_at, updated_at, executed_at
	FROM decisions
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDecision(row rowScanner) (*core.Decision, error) {
	var d core.Decision
	var simulationID, status string
	var automated int
	var executedAt sql.NullTime

	err := row.Scan(
		&d.ID, &d.ActionID, &simulationID, &d.ActionName, &status, &automated,
		&d.Attempt, &d.ExecutedBy, &d.ExecutionResult, &d.CreatedAt, &d.UpdatedAt, &executedAt,
	)
	if err != nil {
		return nil, err
	}

	d.SimulationID = core.SimulationID(simulationID)
	d.Status = core.DecisionStatus(status)
	d.Automated = automated == 1
	if executedAt.Valid {
		t := executedAt.Time
		d.ExecutedAt = &t
	}
	return &d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint violation"))
}
