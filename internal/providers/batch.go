package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"aureuma/secrets-gateway/internal/secretref"
)

// Limits bounds the batching layer's fan-out, mirroring the defaults named
// in the concurrency model: a global cap on simultaneous provider
// invocations, a per-provider batch size, and a per-provider request byte
// budget. MaxBatchBytes is carried here but nothing reads it: batches are
// split by MaxRefsPerProvider only, and no byte budget is enforced.
type Limits struct {
	MaxProviderConcurrency int
	MaxRefsPerProvider     int
	MaxBatchBytes          int
}

// DefaultLimits matches the values named in the concurrency model.
var DefaultLimits = Limits{
	MaxProviderConcurrency: 4,
	MaxRefsPerProvider:     512,
	MaxBatchBytes:          262144,
}

// Registry maps a provider alias to the Provider instance that serves it.
type Registry map[string]Provider

// BatchKey groups refs that must be resolved together: same source and
// same provider alias.
type BatchKey struct {
	Source   secretref.Source
	Provider string
}

// GroupBySourceAndProvider partitions refs into batches keyed by
// (source, provider) and splits any group larger than limits.MaxRefsPerProvider
// into multiple sequential batches of at most that size, since a single
// provider call must not exceed the configured batch size.
func GroupBySourceAndProvider(refs []secretref.Ref, limits Limits) map[BatchKey][][]secretref.Ref {
	maxPerBatch := limits.MaxRefsPerProvider
	if maxPerBatch <= 0 {
		maxPerBatch = DefaultLimits.MaxRefsPerProvider
	}
	grouped := make(map[BatchKey][]secretref.Ref)
	for _, r := range refs {
		key := BatchKey{Source: r.Source, Provider: r.Provider}
		grouped[key] = append(grouped[key], r)
	}
	out := make(map[BatchKey][][]secretref.Ref, len(grouped))
	for key, group := range grouped {
		for len(group) > 0 {
			n := len(group)
			if n > maxPerBatch {
				n = maxPerBatch
			}
			out[key] = append(out[key], group[:n])
			group = group[n:]
		}
	}
	return out
}

// ResolveAll resolves every ref across every (source, provider) batch,
// bounded by limits.MaxProviderConcurrency concurrent provider invocations.
// A ScopedError from one batch fails every ref in that batch without
// per-ref retry; any other per-call error triggers a per-ref fallback
// (still bounded by the same semaphore) so one unlucky id doesn't sink its
// whole batch.
func ResolveAll(ctx context.Context, reg Registry, refs []secretref.Ref, limits Limits) (Result, error) {
	maxConc := limits.MaxProviderConcurrency
	if maxConc <= 0 {
		maxConc = DefaultLimits.MaxProviderConcurrency
	}
	sem := semaphore.NewWeighted(int64(maxConc))

	batches := GroupBySourceAndProvider(refs, limits)
	final := newResult()
	var mu sync.Mutex
	var wg sync.WaitGroup
	var firstScopedErr error

	merge := func(r Result) {
		mu.Lock()
		defer mu.Unlock()
		for k, v := range r.Values {
			final.Values[k] = v
		}
		for k, v := range r.Errors {
			final.Errors[k] = v
		}
	}

	for key, groups := range batches {
		provider, ok := reg[key.Provider]
		if !ok {
			mu.Lock()
			for _, group := range groups {
				for _, ref := range group {
					final.Errors[ref.Key()] = fmt.Errorf("%w: %q", ErrProviderNotConfigured, key.Provider)
				}
			}
			mu.Unlock()
			continue
		}
		for _, group := range groups {
			group := group
			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				for _, ref := range group {
					final.Errors[ref.Key()] = err
				}
				mu.Unlock()
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)

				result, err := provider.Resolve(ctx, group)
				var scoped *ScopedError
				if errors.As(err, &scoped) {
					mu.Lock()
					if firstScopedErr == nil {
						firstScopedErr = err
					}
					for _, ref := range group {
						final.Errors[ref.Key()] = err
					}
					mu.Unlock()
					return
				}
				if err != nil {
					// Non-scoped error from the batch call itself: fall back
					// to resolving each ref in the group individually so one
					// ref's problem doesn't sink its batch-mates.
					perRef := resolveSequentially(ctx, provider, group)
					merge(perRef)
					return
				}
				merge(result)
			}()
		}
	}
	wg.Wait()
	return final, nil
}

// resolveSequentially re-invokes provider once per ref, recording whatever
// error or value each individual call produces. Used as the per-ref
// fallback when a batch call fails for a reason that isn't provider-scoped.
func resolveSequentially(ctx context.Context, provider Provider, refs []secretref.Ref) Result {
	out := newResult()
	for _, ref := range refs {
		r, err := provider.Resolve(ctx, []secretref.Ref{ref})
		if err != nil {
			out.Errors[ref.Key()] = err
			continue
		}
		for k, v := range r.Values {
			out.Values[k] = v
		}
		for k, v := range r.Errors {
			out.Errors[k] = v
		}
	}
	return out
}
