package tracker

import (
	"fmt"

	"github.com/alexanderramin/tempo/internal/domain"
)

// Outcome is how a command settled.
type Outcome int

const (
	// OutcomeNoop: the precondition did not hold (start with a session
	// already open, pause with none open). Nothing changed.
	OutcomeNoop Outcome = iota
	// OutcomeConfirmed: the store accepted the command and the registry
	// holds the authoritative session.
	OutcomeConfirmed
	// OutcomeQueued: the store was unreachable. The optimistic state stays
	// and the command waits in the pending queue.
	OutcomeQueued
	// OutcomeRolledBack: the store rejected the command and the owner was
	// restored to its pre-command sessions.
	OutcomeRolledBack
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoop:
		return "noop"
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeQueued:
		return "queued"
	case OutcomeRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Command is one start or pause request.
type Command struct {
	Action domain.ActionKind
	Owner  domain.OwnerRef
}

func (c Command) String() string {
	return string(c.Action) + " " + c.Owner.String()
}

// Result reports a settled command. Session is the session the command
// opened or closed (for a no-op start, the session already running). Err is
// a *domain.NetworkError for queued commands and a *domain.ApplicationError
// for rolled-back ones.
type Result struct {
	Command Command
	Outcome Outcome
	Session *domain.Session
	Err     error
}
