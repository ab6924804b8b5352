package service

import (
	"context"

	"github.com/alexanderramin/tempo/internal/app"
	"github.com/alexanderramin/tempo/internal/domain"
)

// SessionStoreService is the system of record served over HTTP: the session
// store operations, the task completion path and the minimal owner CRUD the
// surrounding application needs to seed owners.
type SessionStoreService interface {
	app.SessionStore
	app.TaskCompleter

	CreateOwner(ctx context.Context, o *domain.Owner) error
	DeleteOwner(ctx context.Context, ref domain.OwnerRef) error
}
