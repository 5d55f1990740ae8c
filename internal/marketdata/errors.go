package marketdata

import (
	"errors"
	"fmt"
)

// ErrNotSupported reports that a provider does not implement a capability.
// Callers probe with errors.Is; it is a caller-visible outcome, not a
// degradation, so it never triggers mock substitution.
var ErrNotSupported = errors.New("operation not supported by provider")

// UnsupportedProviderError reports an unrecognized provider discriminator.
// This is a caller bug and must not fall through to mock data.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported provider: %q", e.Provider)
}

// ConfigError reports a misconfiguration such as a missing API key. It is
// surfaced before any network call and never masked with mock data; hiding
// a misconfiguration behind demo data would bury an operational problem.
type ConfigError struct {
	Provider string
	Message  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// NewConfigError builds a ConfigError for a provider.
func NewConfigError(provider, message string) *ConfigError {
	return &ConfigError{Provider: provider, Message: message}
}

// notSupported wraps ErrNotSupported with the provider and operation name.
func notSupported(provider, op string) error {
	return fmt.Errorf("%s does not implement %s: %w", provider, op, ErrNotSupported)
}
