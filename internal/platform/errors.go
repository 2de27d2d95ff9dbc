package platform

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrAuthentication is returned when the platform rejects the credential
	ErrAuthentication = errors.New("platform authentication failed")

	// ErrAuthorization is returned when the credential is valid but lacks access
	ErrAuthorization = errors.New("platform access denied")

	// ErrNotFound is returned when a resource does not exist
	ErrNotFound = errors.New("platform resource not found")

	// ErrAmbiguous is returned when a resource cannot be resolved to a single match
	ErrAmbiguous = errors.New("platform resource resolution ambiguous")

	// ErrRateLimited is returned when the platform throttles the credential
	ErrRateLimited = errors.New("platform rate limit exceeded")

	// ErrServer is returned when the platform reports a server-side failure
	ErrServer = errors.New("platform server error")

	// ErrUnsupportedPage is returned when a page is not a recognizable review page
	ErrUnsupportedPage = errors.New("page is not a supported review page")
)

// APIError wraps a platform API failure with request context. The Err field
// carries the mapped sentinel so callers can branch with errors.Is.
type APIError struct {
	Platform   Platform
	StatusCode int
	Message    string
	URL        string
	Method     string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s api error: %s (status: %d, method: %s, url: %s): %v",
			e.Platform, e.Message, e.StatusCode, e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("%s api error: %s (status: %d, method: %s, url: %s)",
		e.Platform, e.Message, e.StatusCode, e.Method, e.URL)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// AuthorizationError is a 403 with the platform's own denial payload kept
// verbatim. Deployments gate access in too many distinct ways to interpret
// the payload; surfacing it unmodified is the only honest diagnostic.
type AuthorizationError struct {
	Platform   Platform
	StatusCode int
	Body       string
	URL        string
}

func (e *AuthorizationError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	if msg == "" {
		return fmt.Sprintf("%s denied access (status: %d, url: %s)", e.Platform, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("%s denied access (status: %d, url: %s): %s", e.Platform, e.StatusCode, e.URL, msg)
}

func (e *AuthorizationError) Unwrap() error {
	return ErrAuthorization
}

// AmbiguousResolutionError is returned when a lookup that must produce one
// match produces several and no disambiguation rule settles it. It fails
// loud instead of guessing.
type AmbiguousResolutionError struct {
	Platform   Platform
	Resource   string
	Name       string
	Candidates []string
}

func (e *AmbiguousResolutionError) Error() string {
	return fmt.Sprintf("%s %s %q matches multiple candidates: %s",
		e.Platform, e.Resource, e.Name, strings.Join(e.Candidates, ", "))
}

func (e *AmbiguousResolutionError) Unwrap() error {
	return ErrAmbiguous
}

// NewAPIError builds an APIError from an HTTP response status, mapping the
// status to the matching sentinel.
func NewAPIError(platform Platform, method, url string, statusCode int, message string) *APIError {
	return &APIError{
		Platform:   platform,
		StatusCode: statusCode,
		Message:    message,
		URL:        url,
		Method:     method,
		Err:        MapStatusError(statusCode),
	}
}

// MapStatusError maps an HTTP status code to the matching sentinel error,
// or nil when no sentinel applies.
func MapStatusError(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrAuthentication
	case http.StatusForbidden:
		return ErrAuthorization
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return ErrServer
	default:
		return nil
	}
}

// IsAuthError checks if an error is an authentication or authorization error
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthentication) || errors.Is(err, ErrAuthorization)
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryableError checks if an error is worth retrying
func IsRetryableError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServer)
}
