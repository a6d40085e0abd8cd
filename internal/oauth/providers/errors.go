package providers

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownProvider reports a name outside the supported set.
	ErrUnknownProvider = errors.New("providers: unknown provider")
	// ErrProviderDisabled reports a supported provider that is switched off.
	ErrProviderDisabled = errors.New("providers: provider not enabled")
)

// ConfigError names the credentials a provider is missing.
type ConfigError struct {
	Provider string
	Missing  []string
	Err      error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("providers: %s misconfigured: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("providers: %s missing credentials: %s", e.Provider, strings.Join(e.Missing, ", "))
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ErrorKind classifies a provider failure.
type ErrorKind string

const (
	// KindNetwork: the request never produced a response.
	KindNetwork ErrorKind = "network"
	// KindStatus: the provider answered with a non-2xx status.
	KindStatus ErrorKind = "status"
	// KindProtocol: a 2xx response carrying an OAuth error field.
	KindProtocol ErrorKind = "protocol"
	// KindMalformed: the payload could not be decoded or lacks required data.
	KindMalformed ErrorKind = "malformed"
)

// Failure is the detail shared by provider errors. Code and Description
// hold the provider's own error payload when there is one.
type Failure struct {
	Provider    string
	Kind        ErrorKind
	Status      int
	Code        string
	Description string
	Err         error
}

func (f *Failure) describe(op string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s failed (%s", f.Provider, op, f.Kind)
	if f.Status != 0 {
		fmt.Fprintf(&b, ", status %d", f.Status)
	}
	b.WriteString(")")
	if f.Code != "" {
		fmt.Fprintf(&b, ": %s", f.Code)
		if f.Description != "" {
			fmt.Fprintf(&b, " - %s", f.Description)
		}
	} else if f.Description != "" {
		fmt.Fprintf(&b, ": %s", f.Description)
	}
	if f.Err != nil {
		fmt.Fprintf(&b, ": %v", f.Err)
	}
	return b.String()
}

// TokenExchangeError reports a failed code exchange or refresh.
type TokenExchangeError struct{ Failure }

func (e *TokenExchangeError) Error() string { return e.describe("token exchange") }
func (e *TokenExchangeError) Unwrap() error { return e.Err }

// ProfileError reports a failure to obtain or decode the identity.
type ProfileError struct{ Failure }

func (e *ProfileError) Error() string { return e.describe("profile") }
func (e *ProfileError) Unwrap() error { return e.Err }

// NewProfileError is a shorthand for adapters.
func NewProfileError(provider string, kind ErrorKind, format string, args ...any) *ProfileError {
	return &ProfileError{Failure{Provider: provider, Kind: kind, Description: fmt.Sprintf(format, args...)}}
}

// AsFailure extracts the Failure from either provider error type.
func AsFailure(err error) (*Failure, bool) {
	var te *TokenExchangeError
	if errors.As(err, &te) {
		return &te.Failure, true
	}
	var pe *ProfileError
	if errors.As(err, &pe) {
		return &pe.Failure, true
	}
	return nil, false
}
