package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnsupportedHost = errors.New("unsupported market host")
)

// FetchError reports a failed data acquisition by a collaborator.
type FetchError struct {
	Op  string
	URL string
	Err error
}

func (e *FetchError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("fetch %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// CompletionCause classifies a completion failure.
type CompletionCause string

const (
	CauseAuthentication CompletionCause = "authentication"
	CauseRateLimit      CompletionCause = "rate_limit"
	CauseTransport      CompletionCause = "transport"
	CauseUnknown        CompletionCause = "unknown"
)

// CompletionError reports a failed call to the text-generation backend.
type CompletionError struct {
	Cause CompletionCause
	Err   error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed (%s): %v", e.Cause, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// CauseForStatus maps an HTTP status code to a completion cause.
func CauseForStatus(status int) CompletionCause {
	switch status {
	case 401, 403:
		return CauseAuthentication
	case 429:
		return CauseRateLimit
	default:
		return CauseUnknown
	}
}

// SchemaError reports a document that violates a hard invariant of the
// analysis result.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: %s: %s", e.Field, e.Reason)
}
