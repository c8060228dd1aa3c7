package twitter

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/types"
)

// ErrUserNotFound is returned when a handle resolves to no user. The
// caller treats it like an empty timeline, not a permanent failure.
var ErrUserNotFound = errors.New("twitter: user not found")

// APIError is a non-2xx response from the provider, carrying whatever
// rate-limit metadata the response headers held.
type APIError struct {
	StatusCode int
	Message    string
	RateLimit  *types.RateLimitInfo
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter: API error %d: %s", e.StatusCode, e.Message)
}

// IsRateLimit reports whether this is a 429 response.
func (e *APIError) IsRateLimit() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsValidation reports whether this is the provider's username-format
// rejection: a 400 whose message says the handle "does not match" the
// allowed pattern. Never retried.
func (e *APIError) IsValidation() bool {
	return e.StatusCode == http.StatusBadRequest && strings.Contains(e.Message, "does not match")
}
