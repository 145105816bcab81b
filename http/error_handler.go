// Package http exposes the management and authorization services over a
// chi-routed HTTP API.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/volaas/volauth/kit/platform/errors"
)

// statusCode maps platform error codes onto HTTP status codes.
var statusCode = map[string]int{
	errors.EInternal:           http.StatusInternalServerError,
	errors.ENotFound:           http.StatusNotFound,
	errors.EConflict:           http.StatusConflict,
	errors.EInvalid:            http.StatusBadRequest,
	errors.EPreconditionFailed: http.StatusPreconditionFailed,
	errors.EUnavailable:        http.StatusServiceUnavailable,
	errors.EForbidden:          http.StatusForbidden,
}

// ErrorHandler writes platform errors to responses as JSON bodies with
// the platform code in a header.
type ErrorHandler struct {
	log *zap.Logger
}

// NewErrorHandler returns an error handler logging through log.
func NewErrorHandler(log *zap.Logger) ErrorHandler {
	return ErrorHandler{log: log}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HandleHTTPError writes err to w. A nil err writes nothing.
func (h ErrorHandler) HandleHTTPError(ctx context.Context, err error, w http.ResponseWriter) {
	if err == nil {
		return
	}

	code := errors.ErrorCode(err)
	status, ok := statusCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status == http.StatusInternalServerError {
		h.log.Error("api internal error", zap.Error(err))
	}

	body, mErr := json.Marshal(errorBody{
		Code:    code,
		Message: err.Error(),
	})
	if mErr != nil {
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Platform-Error-Code", code)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func invalidErr(msg string, err error) *errors.Error {
	return &errors.Error{
		Code: errors.EInvalid,
		Msg:  msg,
		Err:  err,
	}
}

func encodeResponse(ctx context.Context, w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
