package domain

import "time"

// PendingAction is a start or pause accepted locally whose store call has not
// been confirmed yet.
type PendingAction struct {
	Seq      uint64
	Kind     ActionKind
	Owner    OwnerRef
	IssuedAt time.Time
}
