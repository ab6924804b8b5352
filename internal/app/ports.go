package app

import (
	"context"
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
)

// SessionStore is the durable system of record for sessions. Every failure
// is either a *domain.NetworkError (retryable) or a *domain.ApplicationError.
type SessionStore interface {
	StartSession(ctx context.Context, owner domain.OwnerRef) (*domain.Session, error)
	PauseSession(ctx context.Context, owner domain.OwnerRef) (*domain.Session, error)
	GetOwner(ctx context.Context, owner domain.OwnerRef) (*domain.Owner, error)
	ListOwners(ctx context.Context, kind domain.OwnerKind) ([]*domain.Owner, error)
}

// TaskCompleter is the task update path used when a task is completed.
type TaskCompleter interface {
	CompleteTask(ctx context.Context, taskID string, completedAt time.Time, hoursWorked float64) (*domain.Owner, error)
}

// BeaconChannel sends a request that must survive process teardown. No
// delivery confirmation is available.
type BeaconChannel interface {
	SendBestEffort(endpoint string, payload []byte)
}

// LocalStorage is small durable key/value storage on the client side.
type LocalStorage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}
