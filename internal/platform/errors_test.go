package platform

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNewAPIErrorMapping(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusUnauthorized, ErrAuthentication},
		{http.StatusForbidden, ErrAuthorization},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusInternalServerError, ErrServer},
		{http.StatusBadGateway, ErrServer},
	}

	for _, tt := range tests {
		err := NewAPIError(PlatformGitHub, http.MethodGet, "https://x", tt.status, "boom")
		if !errors.Is(err, tt.sentinel) {
			t.Errorf("status %d: expected %v classification", tt.status, tt.sentinel)
		}
	}

	// Unmapped statuses still produce a usable APIError.
	err := NewAPIError(PlatformGitHub, http.MethodGet, "https://x", http.StatusTeapot, "odd")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTeapot {
		t.Errorf("unexpected error %v", err)
	}
}

func TestAuthorizationErrorKeepsBody(t *testing.T) {
	raw := `{"typeKey":"ProjectDoesNotExistException","message":"`
	err := &AuthorizationError{
		Platform:   PlatformAzureDevOps,
		StatusCode: 403,
		Body:       raw + `"}`,
		URL:        "https://dev.azure.com/org/_apis/projects",
	}

	if !errors.Is(err, ErrAuthorization) {
		t.Error("AuthorizationError must unwrap to ErrAuthorization")
	}
	if !IsAuthError(err) {
		t.Error("IsAuthError must cover authorization errors")
	}

	wrapped := fmt.Errorf("fetch failed: %w", err)
	var authz *AuthorizationError
	if !errors.As(wrapped, &authz) {
		t.Fatal("AuthorizationError must survive wrapping")
	}
	if authz.Body == "" {
		t.Error("raw denial body must be preserved")
	}
}

func TestAuthenticationDistinctFromAuthorization(t *testing.T) {
	authn := NewAPIError(PlatformGitLab, http.MethodGet, "https://x", http.StatusUnauthorized, "")
	authz := NewAPIError(PlatformGitLab, http.MethodGet, "https://x", http.StatusForbidden, "")

	if errors.Is(authn, ErrAuthorization) {
		t.Error("401 must not classify as authorization failure")
	}
	if errors.Is(authz, ErrAuthentication) {
		t.Error("403 must not classify as authentication failure")
	}
}

func TestIsRetryableError(t *testing.T) {
	if IsRetryableError(NewAPIError(PlatformGitHub, http.MethodGet, "u", http.StatusNotFound, "")) {
		t.Error("404 is not retryable")
	}
	if !IsRetryableError(NewAPIError(PlatformGitHub, http.MethodGet, "u", http.StatusServiceUnavailable, "")) {
		t.Error("503 is retryable")
	}
	if !IsRetryableError(fmt.Errorf("wrapped: %w", ErrRateLimited)) {
		t.Error("rate limiting is retryable")
	}
}
