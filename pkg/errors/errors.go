// Package errors defines the sentinel errors shared by the indexing and
// retrieval packages and an AppError type that carries an HTTP status code
// for the search service.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrStorageUnavailable = errors.New("index storage unavailable")
	ErrDuplicateDocID     = errors.New("duplicate document id")
	ErrConcurrentWrite    = errors.New("another writer session is open")
	ErrEmptyDocument      = errors.New("document has no indexable content")
	ErrNotCommitted       = errors.New("index has no committed snapshot")
	ErrWriterClosed       = errors.New("writer session already closed")
	ErrQuerySyntax        = errors.New("query syntax error")
	ErrInvalidLimit       = errors.New("invalid result limit")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTimeout            = errors.New("operation timed out")
	ErrInternal           = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error returned by the engine to the status code the
// search service responds with.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrQuerySyntax), errors.Is(err, ErrInvalidLimit), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicateDocID), errors.Is(err, ErrConcurrentWrite):
		return http.StatusConflict
	case errors.Is(err, ErrNotCommitted), errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
