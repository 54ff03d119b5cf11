package interfaces

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a referenced row that does not exist. Callers that can
// substitute a default (e.g. the stranger relationship) check for it with
// errors.Is.
var ErrNotFound = errors.New("not found")

// ErrConflict reports a uniqueness violation, such as a duplicate turn
// sequence. The same operation must not be retried with the same key.
var ErrConflict = errors.New("conflict")

// ProviderError wraps a failure from an external provider (embedding, LLM,
// vector index). The core propagates these without inline retries; backoff
// policy belongs to the calling orchestration layer.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
