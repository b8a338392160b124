package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// storedTimeLayout is fixed-width so lexicographic order on the stored
// text matches chronological order.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Operation records one control invocation this tool issued against the
// host scheduler. Detail carries the diagnostic snippet for failures.
type Operation struct {
	ID        string
	Op        string
	TaskName  string
	OK        bool
	Detail    string
	Duration  time.Duration
	CreatedAt time.Time
}

// Snapshot records aggregate counts of one periodic listing.
type Snapshot struct {
	ID          string
	Total       int
	PythonTotal int
	CreatedAt   time.Time
}

// NewID returns a random 128-bit identifier encoded as lowercase hex.
// Falls back to a timestamp string if the random source fails.
func NewID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("%d", time.Now().UTC().UnixNano())
}

// InsertOperation appends one operation record and prunes beyond retention.
func (s *Store) InsertOperation(ctx context.Context, op *Operation) error {
	if op.ID == "" {
		op.ID = NewID()
	}
	op.CreatedAt = time.Now().UTC()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO operations (id, op, task_name, ok, detail, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, op.ID, op.Op, op.TaskName, boolToInt(op.OK), op.Detail,
		op.Duration.Milliseconds(), op.CreatedAt.Format(storedTimeLayout))
	if err != nil {
		return fmt.Errorf("insert operation: %w", err)
	}
	return s.pruneOperations(ctx)
}

// ListOperations returns the most recent operations, optionally filtered by
// task name, newest first.
func (s *Store) ListOperations(ctx context.Context, taskName string, limit, offset int) ([]*Operation, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, op, task_name, ok, detail, duration_ms, created_at
		FROM operations
	`
	args := []any{}
	if taskName != "" {
		query += ` WHERE task_name = ?`
		args = append(args, taskName)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		var (
			op         Operation
			ok         int
			detail     sql.NullString
			durationMS int64
			createdAt  string
		)
		if err := rows.Scan(&op.ID, &op.Op, &op.TaskName, &ok, &detail, &durationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op.OK = ok != 0
		op.Detail = detail.String
		op.Duration = time.Duration(durationMS) * time.Millisecond
		op.CreatedAt = mustParseTime(createdAt)
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ops, nil
}

// pruneOperations drops records beyond the retention window, oldest first.
func (s *Store) pruneOperations(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
		DELETE FROM operations
		WHERE id IN (
			SELECT id FROM operations
			ORDER BY created_at DESC
			LIMIT -1 OFFSET ?
		)
	`, s.Retention)
	if err != nil {
		return fmt.Errorf("prune operations: %w", err)
	}
	return nil
}

// InsertSnapshot appends one listing snapshot and prunes beyond retention.
func (s *Store) InsertSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap.ID == "" {
		snap.ID = NewID()
	}
	snap.CreatedAt = time.Now().UTC()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO snapshots (id, total, python_total, created_at)
		VALUES (?, ?, ?, ?)
	`, snap.ID, snap.Total, snap.PythonTotal, snap.CreatedAt.Format(storedTimeLayout))
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE id IN (
			SELECT id FROM snapshots
			ORDER BY created_at DESC
			LIMIT -1 OFFSET ?
		)
	`, s.Retention)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}

// ListSnapshots returns the most recent snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, total, python_total, created_at
		FROM snapshots
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		var (
			snap      Snapshot
			createdAt string
		)
		if err := rows.Scan(&snap.ID, &snap.Total, &snap.PythonTotal, &createdAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.CreatedAt = mustParseTime(createdAt)
		snaps = append(snaps, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snaps, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func mustParseTime(value string) time.Time {
	t, err := time.Parse(storedTimeLayout, value)
	if err != nil {
		panic(fmt.Sprintf("invalid stored time %q: %v", value, err))
	}
	return t
}
