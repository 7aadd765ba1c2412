package llm

import "errors"

// Failure describes a transport-level fault from an LLM backend: network
// errors, HTTP 5xx responses, and deadline expiry. Providers surface these
// instead of raw SDK errors so that callers can decide on retry policy
// without knowing which backend is in use.
//
// The provider itself never retries — the orchestrator owns that decision.
type Failure struct {
	// Transient indicates the fault is likely to clear on its own
	// (timeouts, connection resets, 5xx).
	Transient bool

	// Retryable indicates an immediate retry of the same request is sane.
	Retryable bool

	// Message is a neutral description safe to log. It must not contain
	// request content.
	Message string
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return "llm: " + f.Message
}

// IsRetryable reports whether err is (or wraps) a retryable [Failure].
func IsRetryable(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Retryable
}
