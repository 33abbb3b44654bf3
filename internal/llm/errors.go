package llm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
)

var (
	ErrMissingAPIKey      = errors.New("missing API key")
	ErrUnsupportedContent = errors.New("content mode not supported by provider")
)

type ErrUnsupportedProvider struct {
	Provider domain.ProviderID
}

func (e ErrUnsupportedProvider) Error() string {
	return fmt.Sprintf("unsupported LLM provider: %s", e.Provider)
}

// TransportError means the request never produced an HTTP response.
type TransportError struct {
	Provider domain.ProviderID
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError is a non-2xx response. ProviderMessage is taken from the
// JSON error body when the provider sent one.
type HTTPStatusError struct {
	Provider        domain.ProviderID
	Code            int
	Status          string
	ProviderMessage string
}

func (e *HTTPStatusError) Error() string {
	msg := e.ProviderMessage
	if msg == "" {
		msg = e.Status
	}
	if msg == "" {
		msg = http.StatusText(e.Code)
	}
	return fmt.Sprintf("%s API returned status %d: %s", e.Provider, e.Code, msg)
}

// ParseError carries provider output the normalizer could not turn into JSON.
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse provider output: %v (raw: %s)", e.Err, truncate(e.Text, 200))
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError means a required field is missing after normalization or
// on an incoming edit.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FatalProviderError is a permanent mismatch (wrong model, wrong project) that
// retrying cannot fix.
type FatalProviderError struct {
	Provider domain.ProviderID
	Err      error
}

func (e *FatalProviderError) Error() string {
	return fmt.Sprintf("%s: permanent provider error: %v", e.Provider, e.Err)
}

func (e *FatalProviderError) Unwrap() error { return e.Err }

func statusError(provider domain.ProviderID, code int, status, message string) error {
	err := &HTTPStatusError{Provider: provider, Code: code, Status: status, ProviderMessage: message}
	if code == http.StatusNotFound {
		return &FatalProviderError{Provider: provider, Err: err}
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
