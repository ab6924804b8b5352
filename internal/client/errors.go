package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/alexanderramin/tempo/internal/contract"
	"github.com/alexanderramin/tempo/internal/domain"
)

// ErrForcedOffline is the cause attached to calls made while the client is
// switched offline by hand.
var ErrForcedOffline = errors.New("client switched offline")

// retryableStatus reports server answers that mean "try again later"
// rather than "no".
func retryableStatus(code int) bool {
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

func statusError(op string, status int, body []byte) error {
	if retryableStatus(status) {
		return &domain.NetworkError{Op: op, Err: fmt.Errorf("server returned %d", status)}
	}
	var resp contract.ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Code == "" {
		resp.Code = domain.CodeInternal
		resp.Message = fmt.Sprintf("server returned %d", status)
	}
	return &domain.ApplicationError{
		Op:      op,
		Code:    resp.Code,
		Message: resp.Message,
		Err:     domain.SentinelForCode(resp.Code),
	}
}
