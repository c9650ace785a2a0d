package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration indicates missing or inconsistent configuration.
	// This is the only error class allowed to halt startup outright.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnregisteredProvider indicates a provider identifier outside the
	// registered set was used
	ErrUnregisteredProvider = errors.New("unregistered provider")

	// ErrNoProvidersRegistered indicates the adapter registry is empty
	ErrNoProvidersRegistered = errors.New("no providers registered")

	// ErrMissingCapability indicates the active provider does not support
	// the requested operation
	ErrMissingCapability = errors.New("provider does not support this capability")

	// ErrAuthorization indicates an OAuth state or signature failure.
	// Callers surface it as a generic "invalid or expired" message.
	ErrAuthorization = errors.New("authorization invalid or expired")

	// ErrNotConnected indicates the tenant has no connection for the provider
	ErrNotConnected = errors.New("provider not connected")

	// ErrDecryptionFailed indicates a stored credential could not be
	// decrypted under any configured key
	ErrDecryptionFailed = errors.New("credential decryption failed")
)

// UpstreamError wraps a non-2xx response from an ESP's own API.
// The upstream status code is preserved so callers can map 401/403/404.
type UpstreamError struct {
	Provider   Provider
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

// IsUpstreamError extracts an UpstreamError from an error chain.
func IsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
