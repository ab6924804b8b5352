package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexanderramin/tempo/internal/domain"
)

// ErrAwaitingReplay is the network cause attached to commands that were
// queued because earlier commands for the same owner are still waiting to
// be replayed.
var ErrAwaitingReplay = errors.New("earlier actions for this owner await replay")

// ErrNoCompleter is returned by Complete when the engine has no task update
// path configured.
var ErrNoCompleter = errors.New("no task completer configured")

// IsRetryable reports whether err leaves the command eligible for replay.
// Context expiry counts as a network failure: the store never answered.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if domain.IsNetworkError(err) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// classify normalizes any store failure into exactly one of the two error
// kinds callers branch on.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ne *domain.NetworkError
	if errors.As(err, &ne) {
		return err
	}
	var ae *domain.ApplicationError
	if errors.As(err, &ae) {
		return err
	}
	if IsRetryable(err) {
		return &domain.NetworkError{Op: op, Err: err}
	}
	return &domain.ApplicationError{Op: op, Code: domain.ErrorCode(err), Err: err}
}

func wrapf(err error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
