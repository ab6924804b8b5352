package httpapi

import (
	"errors"
	"net/http"

	"github.com/alexanderramin/tempo/internal/contract"
	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/gin-gonic/gin"
)

var codeStatus = map[string]int{
	domain.CodeOwnerNotFound:  http.StatusNotFound,
	domain.CodeNoOpenSession:  http.StatusConflict,
	domain.CodeOwnerCompleted: http.StatusConflict,
	domain.CodeNotCompletable: http.StatusBadRequest,
	domain.CodeInvalidRequest: http.StatusBadRequest,
}

func writeError(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	msg := err.Error()
	var ae *domain.ApplicationError
	if errors.As(err, &ae) && ae.Message != "" {
		msg = ae.Message
	}
	c.AbortWithStatusJSON(status, contract.ErrorResponse{Code: code, Message: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, contract.ErrorResponse{
		Code:    domain.CodeInvalidRequest,
		Message: msg,
	})
}
