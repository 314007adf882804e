package room

type ErrorCode string

const (
	ErrorCodeValidation   ErrorCode = "validation_error"
	ErrorCodeUnauthorized ErrorCode = "unauthorized"
	ErrorCodeForbidden    ErrorCode = "forbidden"
	ErrorCodeNotFound     ErrorCode = "not_found"
	ErrorCodeConflict     ErrorCode = "conflict"
	ErrorCodeRateLimited  ErrorCode = "rate_limited"
	ErrorCodeStore        ErrorCode = "store_unavailable"
	ErrorCodeInternal     ErrorCode = "internal_error"
)

// ReasonNoControl marks a Forbidden error caused by another user holding
// exclusive control of the room's AI tutor.
const ReasonNoControl = "NO_CONTROL"

type Error struct {
	Code    ErrorCode
	Message string
	// Reason is a machine-readable sub-code (currently only NO_CONTROL);
	// Details carries payload the client branches on, e.g. the active
	// controllerUserId.
	Reason  string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
