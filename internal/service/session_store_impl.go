package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/tempo/internal/db"
	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/repository"
	"github.com/alexanderramin/tempo/internal/telemetry"
	"github.com/google/uuid"
)

type sessionStore struct {
	uow      db.UnitOfWork
	now      func() time.Time
	observer telemetry.UseCaseObserver
}

// NewSessionStore returns the SQLite-backed system of record. Each operation
// runs in its own transaction.
func NewSessionStore(uow db.UnitOfWork, observers ...telemetry.UseCaseObserver) SessionStoreService {
	return &sessionStore{
		uow:      uow,
		now:      func() time.Time { return time.Now().UTC() },
		observer: telemetry.OrNoop(observers),
	}
}

// NewSessionStoreWithClock is NewSessionStore with an injected clock.
func NewSessionStoreWithClock(uow db.UnitOfWork, now func() time.Time, observers ...telemetry.UseCaseObserver) SessionStoreService {
	s := NewSessionStore(uow, observers...).(*sessionStore)
	s.now = now
	return s
}

func (s *sessionStore) StartSession(ctx context.Context, ref domain.OwnerRef) (session *domain.Session, err error) {
	done := telemetry.Track(ctx, s.observer, "store-start", map[string]any{"owner": ref.String()})
	defer func() { done(err) }()

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		owners := repository.NewSQLiteOwnerRepo(tx)
		sessions := repository.NewSQLiteSessionRepo(tx)

		owner, err := owners.Get(ctx, ref)
		if err != nil {
			return err
		}
		if owner.IsCompleted {
			return fmt.Errorf("task %s: %w", ref.ID, domain.ErrOwnerCompleted)
		}

		open, err := sessions.GetOpen(ctx, ref)
		if err == nil {
			session = open
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		now := s.now()
		session = &domain.Session{
			ID:        uuid.New().String(),
			OwnerID:   ref.ID,
			OwnerKind: ref.Kind,
			StartedAt: now,
		}
		if err := sessions.Create(ctx, session); err != nil {
			return err
		}
		owner.UpdatedAt = now
		return owners.Update(ctx, owner)
	})
	if err != nil {
		return nil, classify("start", err)
	}
	return session, nil
}

func (s *sessionStore) PauseSession(ctx context.Context, ref domain.OwnerRef) (session *domain.Session, err error) {
	done := telemetry.Track(ctx, s.observer, "store-pause", map[string]any{"owner": ref.String()})
	defer func() { done(err) }()

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		owners := repository.NewSQLiteOwnerRepo(tx)
		sessions := repository.NewSQLiteSessionRepo(tx)

		owner, err := owners.Get(ctx, ref)
		if err != nil {
			return err
		}
		open, err := sessions.GetOpen(ctx, ref)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", ref, domain.ErrNoOpenSession)
		}
		if err != nil {
			return err
		}

		now := s.now()
		if err := open.Close(now); err != nil {
			return err
		}
		if err := sessions.Close(ctx, open.ID, *open.EndedAt); err != nil {
			return err
		}
		owner.UpdatedAt = now
		if err := owners.Update(ctx, owner); err != nil {
			return err
		}
		session = open
		return nil
	})
	if err != nil {
		return nil, classify("pause", err)
	}
	return session, nil
}

func (s *sessionStore) GetOwner(ctx context.Context, ref domain.OwnerRef) (owner *domain.Owner, err error) {
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		owner, err = loadOwner(ctx, tx, ref)
		return err
	})
	if err != nil {
		return nil, classify("get owner", err)
	}
	return owner, nil
}

func (s *sessionStore) ListOwners(ctx context.Context, kind domain.OwnerKind) (list []*domain.Owner, err error) {
	if !domain.ValidOwnerKinds[kind] {
		return nil, &domain.ApplicationError{Op: "list owners", Code: domain.CodeInvalidRequest,
			Message: fmt.Sprintf("unknown owner kind %q", kind)}
	}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		owners := repository.NewSQLiteOwnerRepo(tx)
		sessions := repository.NewSQLiteSessionRepo(tx)

		list, err = owners.List(ctx, kind)
		if err != nil {
			return err
		}
		all, err := sessions.ListByKind(ctx, kind)
		if err != nil {
			return err
		}
		byOwner := make(map[string][]domain.Session, len(list))
		for _, sess := range all {
			byOwner[sess.OwnerID] = append(byOwner[sess.OwnerID], sess)
		}
		for _, o := range list {
			o.Sessions = byOwner[o.ID]
			if kind == domain.OwnerTask {
				if o.SubtaskIDs, err = owners.ListSubtaskIDs(ctx, o.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, classify("list owners", err)
	}
	return list, nil
}

func (s *sessionStore) CompleteTask(ctx context.Context, taskID string, completedAt time.Time, hoursWorked float64) (owner *domain.Owner, err error) {
	done := telemetry.Track(ctx, s.observer, "store-complete", map[string]any{
		"task":         taskID,
		"hours_worked": hoursWorked,
	})
	defer func() { done(err) }()

	ref := domain.OwnerRef{Kind: domain.OwnerTask, ID: taskID}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		owners := repository.NewSQLiteOwnerRepo(tx)
		task, err := owners.Get(ctx, ref)
		if err != nil {
			return err
		}
		if err := task.MarkCompleted(completedAt.UTC(), hoursWorked); err != nil {
			return err
		}
		if err := owners.Update(ctx, task); err != nil {
			return err
		}
		owner, err = loadOwner(ctx, tx, ref)
		return err
	})
	if err != nil {
		return nil, classify("complete task", err)
	}
	return owner, nil
}

func (s *sessionStore) CreateOwner(ctx context.Context, o *domain.Owner) error {
	if !domain.ValidOwnerKinds[o.Kind] {
		return &domain.ApplicationError{Op: "create owner", Code: domain.CodeInvalidRequest,
			Message: fmt.Sprintf("unknown owner kind %q", o.Kind)}
	}
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	now := s.now()
	o.CreatedAt = now
	o.UpdatedAt = now

	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		owners := repository.NewSQLiteOwnerRepo(tx)
		if o.Kind == domain.OwnerSubtask {
			if o.ParentID == "" {
				return &domain.ApplicationError{Op: "create owner", Code: domain.CodeInvalidRequest,
					Message: "subtask requires a parent task"}
			}
			if _, err := owners.Get(ctx, domain.OwnerRef{Kind: domain.OwnerTask, ID: o.ParentID}); err != nil {
				return err
			}
		}
		return owners.Create(ctx, o)
	})
	return classify("create owner", err)
}

func (s *sessionStore) DeleteOwner(ctx context.Context, ref domain.OwnerRef) error {
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return repository.NewSQLiteOwnerRepo(tx).Delete(ctx, ref)
	})
	return classify("delete owner", err)
}

// loadOwner assembles the full owner record: row, sessions and, for tasks,
// subtask ids.
func loadOwner(ctx context.Context, tx db.DBTX, ref domain.OwnerRef) (*domain.Owner, error) {
	owners := repository.NewSQLiteOwnerRepo(tx)
	owner, err := owners.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if owner.Sessions, err = repository.NewSQLiteSessionRepo(tx).ListByOwner(ctx, ref); err != nil {
		return nil, err
	}
	if ref.Kind == domain.OwnerTask {
		if owner.SubtaskIDs, err = owners.ListSubtaskIDs(ctx, ref.ID); err != nil {
			return nil, err
		}
	}
	return owner, nil
}

// classify turns every store failure into an ApplicationError. The store is
// local to the server, so nothing it reports is a network condition.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *domain.ApplicationError
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.ApplicationError{Op: op, Code: domain.CodeOwnerNotFound,
			Message: err.Error(), Err: domain.ErrOwnerNotFound}
	}
	code := domain.ErrorCode(err)
	return &domain.ApplicationError{Op: op, Code: code, Message: err.Error(), Err: err}
}
