package domain

import (
	"errors"
	"fmt"
)

// Failure taxonomy shared by every provider adapter. Adapters classify raw
// vendor responses into one of these sentinels; only the orchestrator decides
// what is retried and what is surfaced.
var (
	ErrValidation         = errors.New("invalid request")
	ErrAuth               = errors.New("provider credentials missing or rejected")
	ErrTransient          = errors.New("transient provider failure")
	ErrModerationRejected = errors.New("rejected by provider safety filter")
	ErrArtifactMissing    = errors.New("provider reported success without a usable artifact")
)

// ProviderError attaches vendor context to one of the sentinel errors above.
// Body holds the raw vendor response for logging; Error() never includes it,
// so wrapped messages stay safe to echo in logs at any level.
type ProviderError struct {
	Provider   string
	Kind       error
	StatusCode int
	Detail     string
	Body       string
}

func (e *ProviderError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, msg, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *ProviderError) Unwrap() error { return e.Kind }
