package testutil

import (
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/google/uuid"
)

// FixedNow is the reference instant used by fixtures that need stable times.
var FixedNow = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

type OwnerOption func(*domain.Owner)

func WithName(name string) OwnerOption {
	return func(o *domain.Owner) {
		o.Name = name
	}
}

func WithParent(taskID string) OwnerOption {
	return func(o *domain.Owner) {
		o.ParentID = taskID
	}
}

func WithSubtasks(ids ...string) OwnerOption {
	return func(o *domain.Owner) {
		o.SubtaskIDs = ids
	}
}

func WithCompleted(at time.Time, hours float64) OwnerOption {
	return func(o *domain.Owner) {
		o.IsCompleted = true
		o.CompletedAt = &at
		o.HoursWorked = hours
	}
}

// WithClosedSession appends a closed session of the given length.
func WithClosedSession(start time.Time, d time.Duration) OwnerOption {
	return func(o *domain.Owner) {
		end := start.Add(d)
		o.Sessions = append(o.Sessions, domain.Session{
			ID:        uuid.New().String(),
			OwnerID:   o.ID,
			OwnerKind: o.Kind,
			StartedAt: start,
			EndedAt:   &end,
		})
	}
}

// WithOpenSession appends an open session started at start.
func WithOpenSession(start time.Time) OwnerOption {
	return func(o *domain.Owner) {
		o.Sessions = append(o.Sessions, domain.Session{
			ID:        uuid.New().String(),
			OwnerID:   o.ID,
			OwnerKind: o.Kind,
			StartedAt: start,
		})
	}
}

// NewTestOwner builds an owner of the given kind. Options run in order, so
// session options should follow any option that changes ID or Kind.
func NewTestOwner(kind domain.OwnerKind, id string, opts ...OwnerOption) *domain.Owner {
	if id == "" {
		id = uuid.New().String()
	}
	o := &domain.Owner{
		ID:        id,
		Kind:      kind,
		Name:      string(kind) + " " + id,
		CreatedAt: FixedNow.Add(-24 * time.Hour),
		UpdatedAt: FixedNow.Add(-24 * time.Hour),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func NewTestTask(id string, opts ...OwnerOption) *domain.Owner {
	return NewTestOwner(domain.OwnerTask, id, opts...)
}

func NewTestSubtask(id, taskID string, opts ...OwnerOption) *domain.Owner {
	return NewTestOwner(domain.OwnerSubtask, id, append([]OwnerOption{WithParent(taskID)}, opts...)...)
}

func NewTestEmployee(id string, opts ...OwnerOption) *domain.Owner {
	return NewTestOwner(domain.OwnerEmployee, id, opts...)
}
