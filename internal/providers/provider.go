// Package providers implements the env/file/exec secret providers (spec
// component C4): the resolve(refs) -> values contract, per-ref vs
// provider-scoped error discrimination, and bounded-concurrency batching
// across providers.
package providers

import (
	"context"
	"errors"
	"fmt"

	"aureuma/secrets-gateway/internal/secretref"
)

// Value is a resolved secret value: either a plain string (the common
// case) or, for sibling-ref targets whose expectedResolvedValue is
// string-or-object, a decoded JSON object (e.g. a Google service-account
// key document).
type Value = any

// Provider resolves a batch of refs that all share one (source, provider)
// pair. Implementations must key their returned map by Ref.Key(), must
// resolve every ref present in refs, and must err as a *ScopedError when
// the failure applies to the whole batch (so the caller need not retry
// per-ref) rather than returning partial results with per-ref errors
// embedded — per-ref failures are instead reported via Result.Errors.
type Provider interface {
	Resolve(ctx context.Context, refs []secretref.Ref) (Result, error)
}

// Result is one provider batch call's outcome: values for refs that
// resolved, and per-ref errors (keyed by Ref.Key()) for refs that didn't.
// A ref key appears in at most one of the two maps.
type Result struct {
	Values map[string]Value
	Errors map[string]error
}

func newResult() Result {
	return Result{Values: map[string]Value{}, Errors: map[string]error{}}
}

// ScopedError marks a failure that invalidates an entire batch — a
// misconfigured provider (missing file, rejected command, untrusted path)
// rather than a single ref's resolution failing. The caller (the batching
// layer in batch.go) fails every ref in the batch without attempting a
// per-ref fallback when it sees this type.
type ScopedError struct {
	Provider string
	Err      error
}

func (e *ScopedError) Error() string {
	return fmt.Sprintf("provider %q misconfigured: %v", e.Provider, e.Err)
}

func (e *ScopedError) Unwrap() error { return e.Err }

// NewScopedError wraps err as a ScopedError for the named provider alias.
func NewScopedError(provider string, err error) *ScopedError {
	return &ScopedError{Provider: provider, Err: err}
}

// ResolutionError marks a single ref's failure to resolve: missing env var,
// missing JSON pointer, or a per-id exec error. A provider timeout is a
// ScopedError instead. It is distinct from resolver.ShapeMismatchError,
// which fires after a value is obtained but doesn't match what the caller
// expected.
type ResolutionError struct {
	RefKey string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.RefKey, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

var (
	// ErrProviderNotConfigured is returned when a batch names a provider
	// alias for which no provider configuration exists.
	ErrProviderNotConfigured = errors.New("providers: provider alias not configured")
)
