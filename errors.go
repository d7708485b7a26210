package b2

import (
	"fmt"
	"net/http"
	"time"
)

// Error codes B2 commonly returns in APIError.Code.
const (
	CodeBadRequest       = "bad_request"
	CodeUnauthorized     = "unauthorized"
	CodeBadAuthToken     = "bad_auth_token"
	CodeExpiredAuthToken = "expired_auth_token"
	CodeCapExceeded      = "cap_exceeded"
	CodeNotFound         = "not_found"
)

// APIError is a non-2xx response from B2.
type APIError struct {
	Op      string `json:"-"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`

	// RetryAfter is the delay requested through the Retry-After
	// header, zero when the server sent none.
	RetryAfter time.Duration `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("b2 %s: %d %s: %s", e.Op, e.Status, e.Code, e.Message)
}

// IsUnauthorized reports whether the server rejected the call's token.
func (e *APIError) IsUnauthorized() bool { return e.Status == http.StatusUnauthorized }

// Temporary reports whether retrying the same call later may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusRequestTimeout ||
		e.Status == http.StatusTooManyRequests ||
		e.Status >= http.StatusInternalServerError
}

// AuthorizationError means an operation that needs an account session
// ran before AuthorizeAccount succeeded. No request was sent.
type AuthorizationError struct {
	Op string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("b2 %s: not authorized, call AuthorizeAccount first", e.Op)
}

// ValidationError means an argument failed a local precondition. No
// request was sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("b2: invalid %s: %s", e.Field, e.Reason)
}
