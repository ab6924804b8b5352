package domain

import "time"

// Session is one stretch of tracked work. EndedAt is nil while the session
// is open.
type Session struct {
	ID        string
	OwnerID   string
	OwnerKind OwnerKind
	StartedAt time.Time
	EndedAt   *time.Time
}

func (s Session) IsOpen() bool {
	return s.EndedAt == nil
}

// Duration is zero for an open session.
func (s Session) Duration() time.Duration {
	if s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Close ends the session at the given instant. An end earlier than the start
// (clock skew between devices) is clamped to the start.
func (s *Session) Close(at time.Time) error {
	if s.EndedAt != nil {
		return ErrSessionClosed
	}
	if at.Before(s.StartedAt) {
		at = s.StartedAt
	}
	s.EndedAt = &at
	return nil
}

func (s Session) Clone() Session {
	if s.EndedAt != nil {
		t := *s.EndedAt
		s.EndedAt = &t
	}
	return s
}
