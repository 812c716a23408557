package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	mdmerrors "github.com/david-crosby/Jamf-Monitor/internal/errors"
	"github.com/david-crosby/Jamf-Monitor/internal/model"
	"go.uber.org/zap"
)

// ErrorCode represents application-specific error codes.
type ErrorCode string

const (
	ErrorCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrorCodeInvalidThreshold   ErrorCode = "INVALID_THRESHOLD"
	ErrorCodeDeviceNotFound     ErrorCode = "DEVICE_NOT_FOUND"
	ErrorCodeUpstreamAuth       ErrorCode = "UPSTREAM_AUTH_FAILED"
	ErrorCodeUpstreamTimeout    ErrorCode = "UPSTREAM_TIMEOUT"
	ErrorCodeUpstreamError      ErrorCode = "UPSTREAM_ERROR"
	ErrorCodeInternalError      ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse represents the standard error response format.
type ErrorResponse struct {
	Status    string    `json:"status"`
	ErrorCode ErrorCode `json:"error_code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// ErrorWriter maps evaluation errors to HTTP responses.
type ErrorWriter struct {
	logger *zap.Logger
}

// NewErrorWriter creates a new error writer.
func NewErrorWriter(logger *zap.Logger) *ErrorWriter {
	return &ErrorWriter{logger: logger}
}

// HandleError writes the HTTP response matching a typed evaluation error.
func (e *ErrorWriter) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := r.Header.Get("X-Request-ID")
	statusCode, errorCode := classifyError(err)

	if statusCode >= http.StatusInternalServerError {
		e.logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID),
			zap.Error(err))
	}

	e.WriteErrorResponse(w, statusCode, errorCode, err.Error(), requestID)
}

func classifyError(err error) (int, ErrorCode) {
	var thresholdErr *model.InvalidThresholdError
	var upstreamErr *mdmerrors.UpstreamError

	switch {
	case errors.Is(err, mdmerrors.ErrDeviceNotFound):
		return http.StatusNotFound, ErrorCodeDeviceNotFound
	case errors.As(err, &thresholdErr):
		return http.StatusBadRequest, ErrorCodeInvalidThreshold
	case errors.Is(err, mdmerrors.ErrAuthUnavailable), mdmerrors.IsRetryableAuth(err):
		return http.StatusBadGateway, ErrorCodeUpstreamAuth
	case mdmerrors.IsTimeout(err):
		return http.StatusGatewayTimeout, ErrorCodeUpstreamTimeout
	case errors.As(err, &upstreamErr):
		return http.StatusBadGateway, ErrorCodeUpstreamError
	default:
		return http.StatusInternalServerError, ErrorCodeInternalError
	}
}

// WriteErrorResponse writes a JSON error response.
func (e *ErrorWriter) WriteErrorResponse(w http.ResponseWriter, statusCode int, errorCode ErrorCode, message, requestID string) {
	resp := ErrorResponse{
		Status:    "error",
		ErrorCode: errorCode,
		Message:   message,
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		e.logger.Error("Failed to encode error response", zap.Error(err))
	}
}
