package themesdk

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"
)

var (
	ErrNoBaseURL     = errors.New("themesdk: base url missing")
	ErrNoAccessToken = errors.New("themesdk: access token missing")
	ErrNoThemeID     = errors.New("themesdk: theme id missing")
	ErrEmptyKey      = errors.New("themesdk: asset key missing")
)

// APIError is the error body returned by the theme API.
type APIError struct {
	StatusCode int `json:"-"`
	Errors     any `json:"errors"`
}

func (e *APIError) Error() string {
	if e.Errors == nil {
		return fmt.Sprintf("api error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api error: %d %v", e.StatusCode, e.Errors)
}

// IsNotFound reports whether err is an API error for a missing resource.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// handleAPIError is a helper function that handles the common error pattern
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	// got a response, but api returned an error
	if resp != nil && resp.Response != nil && resp.StatusCode >= http.StatusBadRequest {
		apiErr, ok := resp.ErrorResult().(*APIError)
		if !ok || apiErr == nil {
			apiErr = &APIError{}
		}
		apiErr.StatusCode = resp.StatusCode
		return fmt.Errorf("%s: %w", operation, apiErr)
	}

	if requestErr != nil {
		return fmt.Errorf("http request error: %s: %w", operation, requestErr)
	}

	return nil
}
