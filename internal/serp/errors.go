package serp

import (
	"errors"
	"fmt"
)

var (
	// ErrNoResults is returned when a query yields zero results and the
	// caller asked for that to be an error.
	ErrNoResults = errors.New("serp: no results")
	// ErrInvalidQuery is returned for a blank name or a malformed language.
	ErrInvalidQuery = errors.New("serp: invalid query")
	// ErrUnknownProvider is returned by New for an unregistered name.
	ErrUnknownProvider = errors.New("serp: unknown provider")
)

// NetworkError means the provider could not be reached at all.
type NetworkError struct {
	Provider string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("serp: %s unreachable: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProviderError means the provider answered but not with results: a
// non-2xx status or a bot challenge page.
type ProviderError struct {
	Provider   string
	StatusCode int
	Reason     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("serp: %s returned %d: %s", e.Provider, e.StatusCode, e.Reason)
}

// ParseError means the provider's body could not be read as a result page.
type ParseError struct {
	Provider string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("serp: parse %s response: %v", e.Provider, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
