package domain

import (
	"fmt"
	"strings"
	"time"
)

// Owner is anything that accrues tracked work time: a task, a subtask or an
// employee. Sessions are kept in chronological (insertion) order.
type Owner struct {
	ID       string
	Kind     OwnerKind
	Name     string
	ParentID string // subtasks only: the owning task

	// SubtaskIDs is populated for tasks by the store read path.
	SubtaskIDs []string

	Sessions []Session

	IsCompleted bool
	CompletedAt *time.Time
	HoursWorked float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwnerRef identifies an owner across kinds.
type OwnerRef struct {
	Kind OwnerKind
	ID   string
}

func (r OwnerRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// ParseOwnerRef parses the "kind:id" form produced by OwnerRef.String.
func ParseOwnerRef(s string) (OwnerRef, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return OwnerRef{}, fmt.Errorf("invalid owner reference %q: expected kind:id", s)
	}
	k, err := ParseOwnerKind(kind)
	if err != nil {
		return OwnerRef{}, err
	}
	return OwnerRef{Kind: k, ID: id}, nil
}

func (o *Owner) Ref() OwnerRef {
	return OwnerRef{Kind: o.Kind, ID: o.ID}
}

// OpenSession returns the owner's open session, or nil.
func (o *Owner) OpenSession() *Session {
	for i := len(o.Sessions) - 1; i >= 0; i-- {
		if o.Sessions[i].IsOpen() {
			return &o.Sessions[i]
		}
	}
	return nil
}

func (o *Owner) HasOpenSession() bool {
	return o.OpenSession() != nil
}

// Elapsed sums closed sessions only. The open session is deliberately left
// out until it closes.
func (o *Owner) Elapsed() time.Duration {
	var total time.Duration
	for _, s := range o.Sessions {
		total += s.Duration()
	}
	return total
}

// ElapsedHours is Elapsed expressed in hours.
func (o *Owner) ElapsedHours() float64 {
	return o.Elapsed().Hours()
}

// TotalWorkedHours reports the closed-session total for kinds that carry one.
// Employees do not.
func (o *Owner) TotalWorkedHours() (float64, bool) {
	if o.Kind == OwnerEmployee {
		return 0, false
	}
	return o.ElapsedHours(), true
}

// RunningFor is the live "currently running" value for display. It is zero
// when no session is open.
func (o *Owner) RunningFor(now time.Time) time.Duration {
	open := o.OpenSession()
	if open == nil || now.Before(open.StartedAt) {
		return 0
	}
	return now.Sub(open.StartedAt)
}

// CheckInvariants verifies at most one open session and that every closed
// session ends no earlier than it started.
func (o *Owner) CheckInvariants() error {
	open := 0
	for _, s := range o.Sessions {
		if s.IsOpen() {
			open++
			continue
		}
		if s.EndedAt.Before(s.StartedAt) {
			return fmt.Errorf("session %s ends before it starts", s.ID)
		}
	}
	if open > 1 {
		return fmt.Errorf("owner %s has %d open sessions", o.Ref(), open)
	}
	return nil
}

// MarkCompleted records task completion with the billable hours total.
func (o *Owner) MarkCompleted(at time.Time, hoursWorked float64) error {
	if o.Kind != OwnerTask {
		return fmt.Errorf("%s %s: %w", o.Kind, o.ID, ErrNotCompletable)
	}
	if o.IsCompleted {
		return fmt.Errorf("task %s: %w", o.ID, ErrOwnerCompleted)
	}
	o.IsCompleted = true
	o.CompletedAt = &at
	o.HoursWorked = hoursWorked
	o.UpdatedAt = at
	return nil
}

// Clone returns a deep copy so callers can never mutate a shared snapshot.
func (o *Owner) Clone() *Owner {
	if o == nil {
		return nil
	}
	c := *o
	if o.SubtaskIDs != nil {
		c.SubtaskIDs = append([]string(nil), o.SubtaskIDs...)
	}
	if o.Sessions != nil {
		c.Sessions = make([]Session, len(o.Sessions))
		for i, s := range o.Sessions {
			c.Sessions[i] = s.Clone()
		}
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
