// Package contract holds the wire types shared by the HTTP API and its
// client.
package contract

import (
	"fmt"
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
)

type SessionDTO struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	OwnerKind string     `json:"owner_kind"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// OwnerDTO is an owner with its full session history. ElapsedHours is
// derived and ignored on input.
type OwnerDTO struct {
	ID           string       `json:"id"`
	Kind         string       `json:"kind"`
	Name         string       `json:"name"`
	ParentID     string       `json:"parent_id,omitempty"`
	SubtaskIDs   []string     `json:"subtask_ids,omitempty"`
	Sessions     []SessionDTO `json:"sessions"`
	IsCompleted  bool         `json:"is_completed"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	HoursWorked  float64      `json:"hours_worked"`
	ElapsedHours float64      `json:"elapsed_hours"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type OwnerList struct {
	Owners []OwnerDTO `json:"owners"`
}

// CreateOwnerRequest seeds an owner record.
type CreateOwnerRequest struct {
	ID       string `json:"id" binding:"required"`
	Kind     string `json:"kind" binding:"required"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

type CompleteTaskRequest struct {
	CompletedAt time.Time `json:"completed_at" binding:"required"`
	HoursWorked float64   `json:"hours_worked"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func FromSession(s domain.Session) SessionDTO {
	return SessionDTO{
		ID:        s.ID,
		OwnerID:   s.OwnerID,
		OwnerKind: string(s.OwnerKind),
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
	}
}

func (d SessionDTO) ToDomain() domain.Session {
	return domain.Session{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		OwnerKind: domain.OwnerKind(d.OwnerKind),
		StartedAt: d.StartedAt,
		EndedAt:   d.EndedAt,
	}
}

func FromOwner(o *domain.Owner) OwnerDTO {
	d := OwnerDTO{
		ID:           o.ID,
		Kind:         string(o.Kind),
		Name:         o.Name,
		ParentID:     o.ParentID,
		SubtaskIDs:   o.SubtaskIDs,
		Sessions:     make([]SessionDTO, 0, len(o.Sessions)),
		IsCompleted:  o.IsCompleted,
		CompletedAt:  o.CompletedAt,
		HoursWorked:  o.HoursWorked,
		ElapsedHours: o.ElapsedHours(),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
	for _, s := range o.Sessions {
		d.Sessions = append(d.Sessions, FromSession(s))
	}
	return d
}

func (d OwnerDTO) ToDomain() (*domain.Owner, error) {
	kind, err := domain.ParseOwnerKind(d.Kind)
	if err != nil {
		return nil, fmt.Errorf("owner %s: %w", d.ID, err)
	}
	o := &domain.Owner{
		ID:          d.ID,
		Kind:        kind,
		Name:        d.Name,
		ParentID:    d.ParentID,
		SubtaskIDs:  d.SubtaskIDs,
		IsCompleted: d.IsCompleted,
		CompletedAt: d.CompletedAt,
		HoursWorked: d.HoursWorked,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	for _, s := range d.Sessions {
		o.Sessions = append(o.Sessions, s.ToDomain())
	}
	return o, nil
}

func (r CreateOwnerRequest) ToDomain() (*domain.Owner, error) {
	kind, err := domain.ParseOwnerKind(r.Kind)
	if err != nil {
		return nil, err
	}
	if kind == domain.OwnerSubtask && r.ParentID == "" {
		return nil, fmt.Errorf("subtask %s: parent_id is required", r.ID)
	}
	name := r.Name
	if name == "" {
		name = r.ID
	}
	return &domain.Owner{ID: r.ID, Kind: kind, Name: name, ParentID: r.ParentID}, nil
}
