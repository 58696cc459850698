package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vovakirdan/snapnest-relay/internal/store"
)

// ==== CallStore implementation ====

// CreateCall creates a new call.
func (s *SQLiteStore) CreateCall(ctx context.Context, call *store.Call) error {
	query := `
		INSERT INTO calls (id, initiator_id, callee_id, status, end_reason, created_at, answered_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		call.ID,
		call.InitiatorID,
		call.CalleeID,
		string(call.Status),
		call.EndReason,
		call.CreatedAt,
		call.AnsweredAt,
		call.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

// UpdateCall updates an existing call.
func (s *SQLiteStore) UpdateCall(ctx context.Context, call *store.Call) error {
	query := `
		UPDATE calls
		SET status = ?, end_reason = ?, answered_at = ?, ended_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		string(call.Status),
		call.EndReason,
		call.AnsweredAt,
		call.EndedAt,
		call.ID,
	)
	if err != nil {
		return fmt.Errorf("update call: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("call %s: %w", call.ID, store.ErrNotFound)
	}
	return nil
}

// GetCall retrieves a call by ID.
func (s *SQLiteStore) GetCall(ctx context.Context, id string) (*store.Call, error) {
	query := `
		SELECT id, initiator_id, callee_id, status, end_reason, created_at, answered_at, ended_at
		FROM calls
		WHERE id = ?
	`
	call, err := scanCall(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("call %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query call: %w", err)
	}
	return call, nil
}

// ListCalls lists the most recent calls a user took part in.
func (s *SQLiteStore) ListCalls(ctx context.Context, userID int64, limit int) ([]*store.Call, error) {
	query := `
		SELECT id, initiator_id, callee_id, status, end_reason, created_at, answered_at, ended_at
		FROM calls
		WHERE initiator_id = ? OR callee_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, userID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	calls := make([]*store.Call, 0)
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		calls = append(calls, call)
	}

	return calls, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (*store.Call, error) {
	var call store.Call
	var status string
	var answeredAt, endedAt sql.NullTime

	if err := row.Scan(
		&call.ID,
		&call.InitiatorID,
		&call.CalleeID,
		&status,
		&call.EndReason,
		&call.CreatedAt,
		&answeredAt,
		&endedAt,
	); err != nil {
		return nil, err
	}

	call.Status = store.CallStatus(status)
	if answeredAt.Valid {
		call.AnsweredAt = &answeredAt.Time
	}
	if endedAt.Valid {
		call.EndedAt = &endedAt.Time
	}
	return &call, nil
}
