package generation

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrTransientProvider  = errors.New("transient provider failure")
	ErrGenerationFailed   = errors.New("image generation failed")
	ErrGenerationRejected = errors.New("image generation rejected")
	ErrImageNotFound      = errors.New("product image not found")
	ErrMissingCredentials = errors.New("no generation credentials configured")
)

// ProviderError describes one failed provider call. Kind is either
// ErrTransientProvider or ErrGenerationRejected.
type ProviderError struct {
	Kind       error
	StatusCode int
	Code       string
	Reason     string
	RetryAfter time.Duration
	// Ambiguous marks timeouts where the provider may already have billed
	// the request.
	Ambiguous bool
	Err       error
}

func (e *ProviderError) Error() string {
	msg := e.Kind.Error()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Code != "" {
		msg += " [" + e.Code + "]"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func (e *ProviderError) Transient() bool {
	return errors.Is(e.Kind, ErrTransientProvider)
}

func transient(status int, reason string, err error) *ProviderError {
	return &ProviderError{Kind: ErrTransientProvider, StatusCode: status, Reason: reason, Err: err}
}

func rejected(status int, code, reason string) *ProviderError {
	return &ProviderError{Kind: ErrGenerationRejected, StatusCode: status, Code: code, Reason: reason}
}
