package errors

// Business status codes returned to callers alongside HTTP status.
const (
	Success = 200

	// Client errors (4000 series)
	ErrBadRequest   = 4000
	ErrInvalidParam = 4001
	ErrUnauthorized = 4010
	ErrForbidden    = 4030
	ErrNotFound     = 4040
	ErrConflict     = 4090
	ErrCancelled    = 4990

	// Server errors (5000 series)
	ErrInternalServer   = 5000
	ErrLLMService       = 5001
	ErrDatabase         = 5002
	ErrCache            = 5003
	ErrEmbeddingService = 5004
	ErrIndexService     = 5005
	ErrParse            = 5006
	ErrGenerationFailed = 5007

	// Business errors (6000 series)
	ErrUserNotFound      = 6002
	ErrPlanNotFound      = 6005
	ErrQuotaExceeded     = 6007
	ErrSubscriptionEnded = 6009
)
