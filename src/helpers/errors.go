package helpers

import (
	"errors"
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type BackboneError struct {
	Message string
	Cause   error
}

func (e *BackboneError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BackboneError) Unwrap() error {
	return e.Cause
}

// -----------------------------------------------------------------------------

// CredentialError - stored gateway credentials missing or undecryptable for a
// channel. Surfaced immediately, never retried.
type CredentialError struct{ BackboneError }

// TokenError - malformed, expired or wrong-type platform token. Always an
// authentication failure to the caller.
type TokenError struct{ BackboneError }

// ConnectionError - a single websocket connection failed on send. Isolated
// and converted into a disconnect, never propagated.
type ConnectionError struct{ BackboneError }

// -----------------------------------------------------------------------------

// GatewayError - non-success envelope or transport failure from the brokerage
// gateway. Auth marks login rejections and invalidated session tokens, which
// must never be cached or retried blindly; everything else is transient.
type GatewayError struct {
	Code        string
	Description string
	Auth        bool
	Cause       error
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway error %s: %s", e.Code, e.Description)
	}
	if e.Cause != nil {
		return fmt.Sprintf("gateway error: %s: %v", e.Description, e.Cause)
	}
	return fmt.Sprintf("gateway error: %s", e.Description)
}

func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------

func NewCredentialError(msg string, cause error) *CredentialError {
	return &CredentialError{BackboneError{Message: msg, Cause: cause}}
}

func NewTokenError(msg string, cause error) *TokenError {
	return &TokenError{BackboneError{Message: msg, Cause: cause}}
}

func NewConnectionError(msg string, cause error) *ConnectionError {
	return &ConnectionError{BackboneError{Message: msg, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// IsGatewayAuth reports whether err is a gateway authentication failure
// (login rejected, session token invalidated upstream).
func IsGatewayAuth(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Auth
}

// -----------------------------------------------------------------------------

// IsAuthFailure reports whether err should surface as a 401-equivalent:
// credential, token or gateway-auth errors.
func IsAuthFailure(err error) bool {
	var ce *CredentialError
	var te *TokenError
	return errors.As(err, &ce) || errors.As(err, &te) || IsGatewayAuth(err)
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts fn up to maxRetries times with exponential
// backoff. Authentication failures abort immediately; retrying a rejected
// login only locks accounts.
func RetryWithBackoff(maxRetries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if IsAuthFailure(err) {
			return err
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}
		time.Sleep(baseDelay * (1 << attempt))
	}

	return lastErr
}
