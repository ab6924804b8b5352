package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrOwnerNotFound indicates the store has no owner with the given reference.
	ErrOwnerNotFound = errors.New("owner not found")

	// ErrNoOpenSession indicates a pause for an owner without a running session.
	ErrNoOpenSession = errors.New("no open session")

	// ErrOwnerCompleted indicates a write against a task that is already completed.
	ErrOwnerCompleted = errors.New("owner already completed")

	// ErrNotCompletable indicates completion was requested for a non-task owner.
	ErrNotCompletable = errors.New("owner kind cannot be completed")

	// ErrSessionClosed indicates an attempt to close a session twice.
	ErrSessionClosed = errors.New("session already closed")
)

// NetworkError means the request could not complete: connectivity loss,
// timeout or a transient server failure. It is always retryable.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network unavailable: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ApplicationError means the store rejected the request for business reasons.
// Retrying cannot succeed.
type ApplicationError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ApplicationError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, msg, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *ApplicationError) Unwrap() error { return e.Err }

func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func IsApplicationError(err error) bool {
	var ae *ApplicationError
	return errors.As(err, &ae)
}

// Error codes shared by the HTTP API and its client.
const (
	CodeOwnerNotFound  = "owner_not_found"
	CodeNoOpenSession  = "no_open_session"
	CodeOwnerCompleted = "owner_completed"
	CodeNotCompletable = "not_completable"
	CodeInvalidRequest = "invalid_request"
	CodeInternal       = "internal"
)

var codeSentinels = map[string]error{
	CodeOwnerNotFound:  ErrOwnerNotFound,
	CodeNoOpenSession:  ErrNoOpenSession,
	CodeOwnerCompleted: ErrOwnerCompleted,
	CodeNotCompletable: ErrNotCompletable,
}

// ErrorCode maps a domain error onto its wire code.
func ErrorCode(err error) string {
	for code, sentinel := range codeSentinels {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	var ae *ApplicationError
	if errors.As(err, &ae) && ae.Code != "" {
		return ae.Code
	}
	return CodeInternal
}

// SentinelForCode is the inverse of ErrorCode for known codes.
func SentinelForCode(code string) error {
	return codeSentinels[code]
}
