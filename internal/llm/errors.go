package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransport marks network failures and unexpected endpoint replies.
	ErrTransport = errors.New("transport error")
	// ErrEmptyResponse marks replies that carry no usable text.
	ErrEmptyResponse = errors.New("empty response")
	// ErrQuotaExceeded marks billing or quota rejections (HTTP 402 and equivalents).
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrAllProvidersExhausted is returned when primary and fallback both failed.
	ErrAllProvidersExhausted = errors.New("all providers exhausted")
	// ErrMalformedOutput marks model output that could not be decoded into the expected shape.
	ErrMalformedOutput = errors.New("malformed output")
)

// ProviderError is a classified failure of a single provider call.
type ProviderError struct {
	Provider string
	Model    string
	Status   int
	Kind     error
	Err      error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Provider)
	if e.Model != "" {
		fmt.Fprintf(&b, " (%s)", e.Model)
	}
	fmt.Fprintf(&b, ": %v", e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *ProviderError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewProviderError builds a classified provider error.
func NewProviderError(provider, model string, kind error, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Model: model, Status: status, Kind: kind, Err: err}
}

// Classify returns the taxonomy sentinel matched by err, defaulting to ErrTransport.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrQuotaExceeded):
		return ErrQuotaExceeded
	case errors.Is(err, ErrEmptyResponse):
		return ErrEmptyResponse
	default:
		return ErrTransport
	}
}

// Attempt records one call made by the fallback policy.
type Attempt struct {
	Provider  string
	Model     string
	MaxTokens int
	Err       error
}

// ExhaustedError carries the attempt chain of a failed Generate call.
type ExhaustedError struct {
	Role     string
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s/%s max_tokens=%d: %v", a.Provider, a.Model, a.MaxTokens, a.Err))
	}
	prefix := ErrAllProvidersExhausted.Error()
	if e.Role != "" {
		prefix = e.Role + ": " + prefix
	}
	if len(parts) == 0 {
		return prefix
	}
	return prefix + " [" + strings.Join(parts, "; ") + "]"
}

// Is reports ErrAllProvidersExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllProvidersExhausted
}

// Unwrap exposes every attempt error for errors.Is/As.
func (e *ExhaustedError) Unwrap() []error {
	out := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			out = append(out, a.Err)
		}
	}
	return out
}
