package response

import (
	stderrors "errors"
	"net/http"

	apperrors "github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/errors"
)

// Response is the uniform envelope for every API reply.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(data interface{}) Response {
	return Response{Code: apperrors.Success, Message: "ok", Data: data}
}

func Error(code int, message string) Response {
	return Response{Code: code, Message: message}
}

// QuotaDenied carries the machine-readable quota details alongside the code.
func QuotaDenied(qe *apperrors.QuotaError) Response {
	return Response{
		Code:    apperrors.ErrQuotaExceeded,
		Message: "meal plan limit reached",
		Data: map[string]interface{}{
			"plan":   qe.Plan,
			"count":  qe.Count,
			"limit":  qe.Limit,
			"reason": qe.Reason,
		},
	}
}

// FromError maps a service error to HTTP status and envelope. Internal detail
// never leaks; the message is always safe to display.
func FromError(err error) (int, Response) {
	var qe *apperrors.QuotaError
	if stderrors.As(err, &qe) {
		return http.StatusForbidden, QuotaDenied(qe)
	}

	code := apperrors.Code(err)
	switch code {
	case apperrors.ErrInvalidParam, apperrors.ErrBadRequest:
		return http.StatusBadRequest, Error(code, safeMessage(err, "invalid request"))
	case apperrors.ErrUserNotFound, apperrors.ErrPlanNotFound, apperrors.ErrNotFound:
		return http.StatusNotFound, Error(code, safeMessage(err, "not found"))
	case apperrors.ErrCancelled:
		// Client went away or the deadline passed; 499 in nginx convention.
		return 499, Error(code, "request cancelled")
	case apperrors.ErrQuotaExceeded, apperrors.ErrSubscriptionEnded:
		return http.StatusForbidden, Error(code, safeMessage(err, "limit reached"))
	case apperrors.ErrEmbeddingService, apperrors.ErrIndexService, apperrors.ErrLLMService:
		return http.StatusBadGateway, Error(code, "an upstream service is unavailable, please retry later")
	default:
		return http.StatusInternalServerError, Error(code, "something went wrong, please try again")
	}
}

// safeMessage surfaces the AppError message, which is written for users, and
// hides everything else.
func safeMessage(err error, fallback string) string {
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
