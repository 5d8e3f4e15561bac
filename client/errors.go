package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingCredentials is returned by New when the account code or subscription key is empty.
var ErrMissingCredentials = errors.New("ARC account code and subscription key are required")

// APIError is returned when the ARC service answers with a non-2xx status.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s returned HTTP status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s returned HTTP status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether err is an APIError caused by rejected credentials.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden)
}
