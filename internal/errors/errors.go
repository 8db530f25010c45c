package errors

import (
	"errors"
	"fmt"
)

type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("code=%d, message=%s, error=%v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("code=%d, message=%s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Code returns the business code carried by err, or ErrInternalServer when
// err is not an AppError.
func Code(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternalServer
}

// Is reports whether err carries the given business code.
func Is(err error, code int) bool {
	return Code(err) == code
}

// QuotaError carries the plan, count and limit that caused a denial so the
// caller can render a machine-readable reason.
type QuotaError struct {
	Plan   string
	Count  int
	Limit  int
	Reason string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("code=%d, plan=%s, count=%d, limit=%d, reason=%s",
		ErrQuotaExceeded, e.Plan, e.Count, e.Limit, e.Reason)
}

func NewQuotaExceeded(plan string, count, limit int, reason string) *QuotaError {
	return &QuotaError{Plan: plan, Count: count, Limit: limit, Reason: reason}
}

// Common errors
var (
	ErrEmptyInput         = New(ErrInvalidParam, "input text must not be empty")
	ErrUserMissing        = New(ErrUserNotFound, "user record not found")
	ErrPlanMissing        = New(ErrPlanNotFound, "meal plan not found")
	ErrRequestCancelled   = New(ErrCancelled, "request cancelled or deadline exceeded")
	ErrUnparseableOutput  = New(ErrParse, "model output could not be interpreted")
	ErrGenerationGaveUp   = New(ErrGenerationFailed, "plan generation failed after repair and fallback")
	ErrEmbeddingRejected  = New(ErrEmbeddingService, "embedding service rejected the request")
	ErrIndexUnavailable   = New(ErrIndexService, "vector index unavailable")
	ErrLLMUnavailable     = New(ErrLLMService, "language model service unavailable")
)
