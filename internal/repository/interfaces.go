package repository

import (
	"context"
	"errors"
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
)

// ErrNotFound is returned when a row lookup matches nothing.
var ErrNotFound = errors.New("not found")

type OwnerRepo interface {
	Create(ctx context.Context, o *domain.Owner) error
	Get(ctx context.Context, ref domain.OwnerRef) (*domain.Owner, error)
	List(ctx context.Context, kind domain.OwnerKind) ([]*domain.Owner, error)
	ListSubtaskIDs(ctx context.Context, taskID string) ([]string, error)
	Update(ctx context.Context, o *domain.Owner) error
	Delete(ctx context.Context, ref domain.OwnerRef) error
}

type SessionRepo interface {
	Create(ctx context.Context, s *domain.Session) error
	GetOpen(ctx context.Context, ref domain.OwnerRef) (*domain.Session, error)
	Close(ctx context.Context, id string, endedAt time.Time) error
	ListByOwner(ctx context.Context, ref domain.OwnerRef) ([]domain.Session, error)
	ListByKind(ctx context.Context, kind domain.OwnerKind) ([]domain.Session, error)
}
