package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/portalnetwork/bridge/internal/codec"
	"github.com/portalnetwork/bridge/internal/gossip"
	"github.com/portalnetwork/bridge/internal/provider"
	"github.com/portalnetwork/bridge/types"
)

// errUnitSkipped marks a unit with no content to gossip, e.g. an empty
// beacon slot. The unit resolves cleanly.
var errUnitSkipped = errors.New("unit skipped")

// PairSource turns a work unit into the content pairs that represent it.
// Implementations must be safe for concurrent use.
type PairSource interface {
	Pairs(ctx context.Context, unit types.WorkUnit) ([]gossip.Item, error)
}

// providerSource is the normal pipeline stage: fetch records from a
// provider, derive content pairs from each. Unavailable fetches are retried
// with backoff before the unit is given up on; Corrupt fetches and
// derivation failures are permanent.
type providerSource struct {
	provider provider.Provider

	attempts     int
	timeout      time.Duration
	retryWaitMin time.Duration

	// skipNotFound resolves NotFound units with no content instead of
	// failing them. Latest mode sets it: the head has already been
	// observed past the slot, so NotFound means the slot is empty.
	skipNotFound bool
}

// SourceOptions tune the fetch stage of a provider-backed source.
type SourceOptions struct {
	RetryAttempts  int
	AttemptTimeout time.Duration
	SkipNotFound   bool
	// RetryWaitMin seeds the fetch backoff. Zero selects a default.
	RetryWaitMin time.Duration
}

func NewProviderSource(p provider.Provider, opts SourceOptions) (PairSource, error) {
	if p == nil {
		return nil, errors.New("source needs a provider")
	}
	if opts.RetryAttempts <= 0 {
		return nil, errors.New("source retry attempts must be positive")
	}
	if opts.AttemptTimeout <= 0 {
		return nil, errors.New("source attempt timeout must be positive")
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = 500 * time.Millisecond
	}
	return &providerSource{
		provider:     p,
		attempts:     opts.RetryAttempts,
		timeout:      opts.AttemptTimeout,
		retryWaitMin: opts.RetryWaitMin,
		skipNotFound: opts.SkipNotFound,
	}, nil
}

func (s *providerSource) Pairs(ctx context.Context, unit types.WorkUnit) ([]gossip.Item, error) {
	records, err := s.fetch(ctx, unit)
	if err != nil {
		return nil, err
	}

	var items []gossip.Item
	for _, rec := range records {
		pairs, err := codec.Derive(rec)
		if err != nil {
			return nil, fmt.Errorf("derive %s: %w", unit, err)
		}
		for _, pair := range pairs {
			items = append(items, gossip.Item{Key: pair.Key, Value: pair.Value})
		}
	}
	return items, nil
}

func (s *providerSource) fetch(ctx context.Context, unit types.WorkUnit) ([]types.Record, error) {
	var records []types.Record
	op := func() error {
		fctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		recs, err := s.provider.Fetch(fctx, unit)
		if err == nil {
			records = recs
			return nil
		}
		switch {
		case errors.Is(err, provider.ErrCorrupt):
			return backoff.Permanent(err)
		case errors.Is(err, provider.ErrNotFound) && s.skipNotFound:
			return backoff.Permanent(errUnitSkipped)
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retryWaitMin
	policy := backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(s.attempts-1)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, errUnitSkipped) {
			return nil, errUnitSkipped
		}
		return nil, fmt.Errorf("fetch %s: %w", unit, err)
	}
	return records, nil
}
