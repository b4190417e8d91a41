package cardtable

import "fmt"

// Error is a structured error with an associated HTTP status.
type Error struct {
	HTTP    int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %v", e.Code, e.Message)
}

var (
	// ErrBatchConflict is returned when a batch loses a serialization race
	// against a concurrent batch and nothing was committed. The whole batch
	// may be retried as-is.
	ErrBatchConflict error = &Error{
		HTTP:    409,
		Code:    "BatchConflict",
		Message: "batch conflicted with a concurrent update, retry",
	}

	// ErrUnauthorized is returned when no valid session accompanies a request.
	ErrUnauthorized error = &Error{
		HTTP:    401,
		Code:    "Unauthorized",
		Message: "sign in first",
	}
)
