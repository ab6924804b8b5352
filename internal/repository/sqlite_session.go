package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/tempo/internal/db"
	"github.com/alexanderramin/tempo/internal/domain"
)

const sessionColumns = `id, owner_kind, owner_id, started_at, ended_at`

// SQLiteSessionRepo implements SessionRepo using a SQLite database.
type SQLiteSessionRepo struct {
	db db.DBTX
}

// NewSQLiteSessionRepo creates a new SQLiteSessionRepo.
func NewSQLiteSessionRepo(db db.DBTX) *SQLiteSessionRepo {
	return &SQLiteSessionRepo{db: db}
}

func (r *SQLiteSessionRepo) Create(ctx context.Context, s *domain.Session) error {
	query := `INSERT INTO work_sessions (id, owner_kind, owner_id, started_at, ended_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		string(s.OwnerKind),
		s.OwnerID,
		formatTime(s.StartedAt),
		nullableTimeToString(s.EndedAt),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("inserting work session: %w", err)
	}
	return nil
}

func (r *SQLiteSessionRepo) GetOpen(ctx context.Context, ref domain.OwnerRef) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM work_sessions
		WHERE owner_kind = ? AND owner_id = ? AND ended_at IS NULL`
	s, err := scanSession(r.db.QueryRowContext(ctx, query, string(ref.Kind), ref.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("open session for %s: %w", ref, ErrNotFound)
		}
		return nil, err
	}
	return &s, nil
}

// Close sets ended_at on a still-open session. Closing twice reports ErrNotFound.
func (r *SQLiteSessionRepo) Close(ctx context.Context, id string, endedAt time.Time) error {
	query := `UPDATE work_sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, formatTime(endedAt), id)
	if err != nil {
		return fmt.Errorf("closing work session: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("open session %s", id))
}

func (r *SQLiteSessionRepo) ListByOwner(ctx context.Context, ref domain.OwnerRef) ([]domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM work_sessions
		WHERE owner_kind = ? AND owner_id = ? ORDER BY started_at, rowid`
	rows, err := r.db.QueryContext(ctx, query, string(ref.Kind), ref.ID)
	if err != nil {
		return nil, fmt.Errorf("listing sessions by owner: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

func (r *SQLiteSessionRepo) ListByKind(ctx context.Context, kind domain.OwnerKind) ([]domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM work_sessions
		WHERE owner_kind = ? ORDER BY owner_id, started_at, rowid`
	rows, err := r.db.QueryContext(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("listing sessions by kind: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

func scanSessions(rows *sql.Rows) ([]domain.Session, error) {
	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

func scanSession(row rowScanner) (domain.Session, error) {
	var s domain.Session
	var kind, startedAt string
	var endedAt sql.NullString

	if err := row.Scan(&s.ID, &kind, &s.OwnerID, &startedAt, &endedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, err
		}
		return s, fmt.Errorf("scanning work session: %w", err)
	}
	s.OwnerKind = domain.OwnerKind(kind)

	var err error
	if s.StartedAt, err = parseTime(startedAt, "started_at"); err != nil {
		return s, err
	}
	if s.EndedAt, err = parseNullableTime(endedAt, "ended_at"); err != nil {
		return s, err
	}
	return s, nil
}
