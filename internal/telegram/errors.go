package telegram

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyFile is returned when getFile yields no downloadable path.
var ErrEmptyFile = errors.New("telegram: file has no download path")

// APIError is a failed Bot API call as reported by Telegram.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram: %s: %d %s (retry after %s)", e.Method, e.Code, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram: %s: %d %s", e.Method, e.Code, e.Description)
}

// IsSelfDestructing reports whether err says the media cannot be resent
// because it is a disappearing (view once / timed) attachment.
func IsSelfDestructing(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if strings.Contains(apiErr.Description, "SelfDestructing") {
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Description), "selfdestruct")
}

// RetryAfter extracts the flood-wait hint from err.
func RetryAfter(err error) (time.Duration, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter, true
	}
	return 0, false
}
