package httpapi

import (
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/unitledger/pkg/ledger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const genericFailureMessage = "something went wrong, please try again"

var (
	errMalformedRequest = errors.New("malformed request")
	errUnauthenticated  = errors.New("missing or invalid session")
	errNoUnitAccount    = errors.New("no unit account linked to this user")
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respondOK(ctx *gin.Context, message string, data any) {
	ctx.JSON(http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func (server *Server) respondError(ctx *gin.Context, err error) {
	status, message := server.describeError(ctx, err)
	ctx.JSON(status, envelope{Success: false, Message: message})
}

func (server *Server) abortWithError(ctx *gin.Context, err error) {
	status, message := server.describeError(ctx, err)
	ctx.AbortWithStatusJSON(status, envelope{Success: false, Message: message})
}

// describeError maps err to a status code and a caller-safe message. Only
// unexpected errors are logged, and their detail never reaches the caller.
func (server *Server) describeError(ctx *gin.Context, err error) (int, string) {
	switch {
	case errors.Is(err, errMalformedRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized, errUnauthenticated.Error()
	case errors.Is(err, errNoUnitAccount):
		return http.StatusNotFound, errNoUnitAccount.Error()
	case errors.Is(err, ledger.ErrPermissionDenied):
		return http.StatusForbidden, ledger.ErrPermissionDenied.Error()
	}
	switch ledger.KindOf(err) {
	case ledger.KindNotFound:
		return http.StatusNotFound, err.Error()
	case ledger.KindInsufficientFunds, ledger.KindInvalidRequest:
		return http.StatusBadRequest, err.Error()
	case ledger.KindDuplicate:
		return http.StatusConflict, err.Error()
	case ledger.KindUnauthorized:
		return http.StatusUnauthorized, err.Error()
	default:
		server.logger.Error("request failed",
			zap.String("method", ctx.Request.Method),
			zap.String("route", ctx.FullPath()),
			zap.Error(err),
		)
		return http.StatusInternalServerError, genericFailureMessage
	}
}
