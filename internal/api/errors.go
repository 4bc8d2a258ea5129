package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/MJE43/minigames/internal/analysis"
	"github.com/MJE43/minigames/internal/games"
	"github.com/MJE43/minigames/internal/session"
	"github.com/MJE43/minigames/internal/store"
)

// ErrorBuilder helps construct structured errors with context.
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]any
	requestID string
	cause     error
}

// NewError creates a new error builder.
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (eb *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds the request ID to the error.
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// WithCause records the underlying error.
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	eb.cause = err
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

// Build creates the final APIError.
func (eb *ErrorBuilder) Build() APIError {
	ctx := eb.context
	if len(ctx) == 0 {
		ctx = nil
	}
	return APIError{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   ctx,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ErrorHandler writes and logs error responses.
type ErrorHandler struct {
	logger *log.Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger *log.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// classify maps a domain error to an HTTP status and error type.
func classify(err error) (int, string) {
	var apiErr APIError
	switch {
	case errors.As(err, &apiErr):
		return http.StatusBadRequest, apiErr.Type
	case errors.Is(err, games.ErrInvalidLotteryConfig),
		errors.Is(err, games.ErrInvalidRaceConfig),
		errors.Is(err, analysis.ErrInvalidRequest),
		errors.Is(err, store.ErrUnknownGame):
		return http.StatusBadRequest, ErrTypeValidation
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, ErrTypeSessionNotFound
	case errors.Is(err, games.ErrCardNotFound):
		return http.StatusNotFound, ErrTypeCardNotFound
	case errors.Is(err, games.ErrRaceInProgress), errors.Is(err, games.ErrRaceFinished):
		return http.StatusConflict, ErrTypeInvalidState
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable, ErrTypeServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, ErrTypeTimeout
	default:
		return http.StatusInternalServerError, ErrTypeInternal
	}
}

// HandleError maps err to a status and writes it.
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	status, errType := classify(err)

	var apiErr APIError
	if !errors.As(err, &apiErr) {
		message := err.Error()
		if status == http.StatusInternalServerError {
			message = "Internal server error"
		}
		apiErr = NewError(errType, message).
			WithRequestID(middleware.GetReqID(r.Context())).
			WithContext("path", r.URL.Path).
			WithContext("method", r.Method).
			WithCause(err).
			Build()
	}

	eh.logError(r, apiErr, status)
	eh.writeErrorResponse(w, status, apiErr)
}

// HandleValidationError reports a bad request field.
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, field, message string) {
	apiErr := NewError(ErrTypeValidation, fmt.Sprintf("Validation failed: %s", message)).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("field", field).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method).
		Build()

	eh.logError(r, apiErr, http.StatusBadRequest)
	eh.writeErrorResponse(w, http.StatusBadRequest, apiErr)
}

// HandleStatus writes an error with an explicit status.
func (eh *ErrorHandler) HandleStatus(w http.ResponseWriter, r *http.Request, status int, errType, message string) {
	apiErr := NewError(errType, message).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("path", r.URL.Path).
		Build()

	eh.logError(r, apiErr, status)
	eh.writeErrorResponse(w, status, apiErr)
}

func (eh *ErrorHandler) logError(r *http.Request, apiErr APIError, status int) {
	category := GetErrorCategory(apiErr.Type)
	entry := eh.logger.WithFields(log.Fields{
		"type":       apiErr.Type,
		"category":   category,
		"status":     status,
		"request_id": apiErr.RequestID,
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote_ip":  r.RemoteAddr,
	})
	if cause, ok := apiErr.Context["cause"]; ok {
		entry = entry.WithField("cause", cause)
	}

	switch {
	case status >= 500:
		entry.Error(apiErr.Message)
	case category == CategoryValidation:
		entry.Warn(apiErr.Message)
	default:
		entry.Info(apiErr.Message)
	}
}

func (eh *ErrorHandler) writeErrorResponse(w http.ResponseWriter, status int, apiErr APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Minigames-Version", Version)
	w.Header().Set("X-Error-Type", apiErr.Type)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(apiErr.Type)))
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(apiErr); err != nil {
		eh.logger.WithError(err).Error("Failed to encode error response")
	}
}

// RecoveryHandler turns panics into structured 500 responses.
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				requestID := middleware.GetReqID(r.Context())
				eh.logger.WithFields(log.Fields{
					"request_id": requestID,
					"path":       r.URL.Path,
					"method":     r.Method,
					"panic":      fmt.Sprintf("%v", rvr),
				}).Error("Panic recovered")

				apiErr := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					WithContext("path", r.URL.Path).
					WithContext("method", r.Method).
					Build()
				eh.writeErrorResponse(w, http.StatusInternalServerError, apiErr)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
