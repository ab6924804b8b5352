package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexanderramin/tempo/internal/db"
	"github.com/alexanderramin/tempo/internal/domain"
)

const ownerColumns = `kind, id, name, parent_id, is_completed, completed_at, hours_worked, created_at, updated_at`

// SQLiteOwnerRepo implements OwnerRepo using a SQLite database.
type SQLiteOwnerRepo struct {
	db db.DBTX
}

// NewSQLiteOwnerRepo creates a new SQLiteOwnerRepo.
func NewSQLiteOwnerRepo(db db.DBTX) *SQLiteOwnerRepo {
	return &SQLiteOwnerRepo{db: db}
}

func (r *SQLiteOwnerRepo) Create(ctx context.Context, o *domain.Owner) error {
	query := `INSERT INTO owners (` + ownerColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		string(o.Kind),
		o.ID,
		o.Name,
		nullableString(o.ParentID),
		boolToInt(o.IsCompleted),
		nullableTimeToString(o.CompletedAt),
		o.HoursWorked,
		formatTime(o.CreatedAt),
		formatTime(o.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting owner: %w", err)
	}
	return nil
}

func (r *SQLiteOwnerRepo) Get(ctx context.Context, ref domain.OwnerRef) (*domain.Owner, error) {
	query := `SELECT ` + ownerColumns + ` FROM owners WHERE kind = ? AND id = ?`
	o, err := scanOwner(r.db.QueryRowContext(ctx, query, string(ref.Kind), ref.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("owner %s: %w", ref, ErrNotFound)
		}
		return nil, err
	}
	return o, nil
}

func (r *SQLiteOwnerRepo) List(ctx context.Context, kind domain.OwnerKind) ([]*domain.Owner, error) {
	query := `SELECT ` + ownerColumns + ` FROM owners WHERE kind = ? ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("listing owners: %w", err)
	}
	defer rows.Close()

	var owners []*domain.Owner
	for rows.Next() {
		o, err := scanOwner(rows)
		if err != nil {
			return nil, err
		}
		owners = append(owners, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating owners: %w", err)
	}
	return owners, nil
}

func (r *SQLiteOwnerRepo) ListSubtaskIDs(ctx context.Context, taskID string) ([]string, error) {
	query := `SELECT id FROM owners WHERE kind = 'subtask' AND parent_id = ? ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("listing subtasks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning subtask id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subtasks: %w", err)
	}
	return ids, nil
}

func (r *SQLiteOwnerRepo) Update(ctx context.Context, o *domain.Owner) error {
	query := `UPDATE owners SET name = ?, parent_id = ?, is_completed = ?, completed_at = ?,
		hours_worked = ?, updated_at = ?
		WHERE kind = ? AND id = ?`
	res, err := r.db.ExecContext(ctx, query,
		o.Name,
		nullableString(o.ParentID),
		boolToInt(o.IsCompleted),
		nullableTimeToString(o.CompletedAt),
		o.HoursWorked,
		formatTime(o.UpdatedAt),
		string(o.Kind),
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("updating owner: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("owner %s", o.Ref()))
}

func (r *SQLiteOwnerRepo) Delete(ctx context.Context, ref domain.OwnerRef) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM owners WHERE kind = ? AND id = ?`, string(ref.Kind), ref.ID)
	if err != nil {
		return fmt.Errorf("deleting owner: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("owner %s", ref))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOwner(row rowScanner) (*domain.Owner, error) {
	var o domain.Owner
	var kind string
	var parentID, completedAt sql.NullString
	var isCompleted int
	var createdAt, updatedAt string

	if err := row.Scan(&kind, &o.ID, &o.Name, &parentID, &isCompleted, &completedAt,
		&o.HoursWorked, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning owner: %w", err)
	}

	o.Kind = domain.OwnerKind(kind)
	o.ParentID = parentID.String
	o.IsCompleted = isCompleted != 0

	var err error
	if o.CompletedAt, err = parseNullableTime(completedAt, "completed_at"); err != nil {
		return nil, err
	}
	if o.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &o, nil
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
