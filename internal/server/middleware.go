package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/schiavigomme/hertz-invoicer/internal/common"
)

// HeaderRequestID carries the caller-supplied trace id. A fresh one is
// minted when the header is absent.
const HeaderRequestID = "X-Request-ID"

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail pairs a machine-readable code with the operator-facing
// message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RequestID propagates or mints the trace id and mirrors it on the
// response so log lines can be tied back to the call.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), id))
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger writes one structured line per request.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", common.RequestIDFromContext(c.Request.Context()))
	}
}

// ErrorHandler turns errors attached by handlers into the standard
// envelope. Handlers call c.Error and return; nothing else writes error
// bodies.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status := statusFromError(err)
		c.JSON(status, ErrorResponse{
			Success: false,
			Error:   detailFromError(err, status),
		})
	}
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func detailFromError(err error, status int) ErrorDetail {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return ErrorDetail{Code: appErr.Code, Message: appErr.Message}
	}
	switch status {
	case http.StatusNotFound:
		return ErrorDetail{Code: "NOT_FOUND", Message: err.Error()}
	case http.StatusConflict:
		return ErrorDetail{Code: "CONFLICT", Message: err.Error()}
	case http.StatusBadRequest:
		return ErrorDetail{Code: "INVALID_REQUEST", Message: err.Error()}
	}
	// Internal detail stays in the logs.
	return ErrorDetail{Code: "INTERNAL", Message: "an unexpected error occurred"}
}
