package search

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResponse is returned when the upstream body is missing or cannot be parsed.
	ErrEmptyResponse = errors.New("empty response from search backend")

	// ErrUnsupportedIntent is returned when a resolved intent cannot be turned into a page.
	ErrUnsupportedIntent = errors.New("search intent not supported")

	// ErrNoResolver is returned when free text is selected but no resolver is configured.
	ErrNoResolver = errors.New("no resolver configured")
)

// NetworkError wraps transport failures and non-2xx upstream answers.
type NetworkError struct {
	Op         string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Op, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
