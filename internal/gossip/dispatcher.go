package gossip

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/semaphore"

	"github.com/portalnetwork/bridge/libs/log"
	"github.com/portalnetwork/bridge/types"
)

// OutcomeKind is the terminal state of one submitted content item.
type OutcomeKind uint8

const (
	// Delivered: an overlay client accepted the content.
	Delivered OutcomeKind = iota + 1
	// Rejected: the overlay refused the content as invalid. Not retried.
	Rejected
	// Exhausted: the retry budget was spent on transport failures. The
	// run does not abort on a single exhausted item; the orchestrator
	// counts them against its threshold.
	Exhausted
)

func (k OutcomeKind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case Rejected:
		return "rejected"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// Item is one content pair queued for delivery.
type Item struct {
	Key   types.ContentKey
	Value types.ContentValue
}

// Outcome is the terminal result for one item, reported in submission
// order.
type Outcome struct {
	Key      types.ContentKey
	Kind     OutcomeKind
	Attempts int
	// Reason is set for Rejected and Exhausted outcomes.
	Reason string
}

// Options bound the dispatcher's concurrency and retry behavior.
type Options struct {
	// Concurrency bounds items in flight at once, independent of how many
	// work units are being processed upstream. This decoupling of provider
	// read rate from overlay absorption rate is the primary backpressure
	// mechanism.
	Concurrency int
	// RetryAttempts bounds delivery attempts per item.
	RetryAttempts int
	// AttemptTimeout bounds each individual gossip attempt.
	AttemptTimeout time.Duration
	// LargeValueThreshold is the value size above which an item is offered
	// by reference where the client supports it, and counted against the
	// residency bound.
	LargeValueThreshold int
	// LargeValueResidency bounds how many large values may be in flight at
	// once.
	LargeValueResidency int
	// RetryWaitMin seeds the exponential backoff. Zero selects a default
	// suitable for production; tests shrink it.
	RetryWaitMin time.Duration
}

// Dispatcher delivers content pairs to the overlay with bounded concurrency,
// per-item retry with jittered exponential backoff, and a residency bound on
// large values. Safe for concurrent Submit calls from multiple units.
type Dispatcher struct {
	logger   log.Logger
	clients  *clientList
	pool     *ants.Pool
	largeSem *semaphore.Weighted
	opts     Options
}

func NewDispatcher(logger log.Logger, clients []Client, opts Options) (*Dispatcher, error) {
	if len(clients) == 0 {
		return nil, errors.New("dispatcher needs at least one overlay client")
	}
	if opts.Concurrency <= 0 {
		return nil, errors.New("dispatch concurrency must be positive")
	}
	if opts.RetryAttempts <= 0 {
		return nil, errors.New("retry attempts must be positive")
	}
	if opts.LargeValueResidency <= 0 {
		return nil, errors.New("large value residency must be positive")
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = 500 * time.Millisecond
	}

	// Blocking pool: Submit applies backpressure instead of growing an
	// unbounded queue.
	pool, err := ants.NewPool(opts.Concurrency,
		ants.WithPreAlloc(true),
		ants.WithNonblocking(false),
		ants.WithPanicHandler(func(v interface{}) {
			logger.Error("gossip worker panicked", "panic", v)
		}),
	)
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		logger:   logger,
		clients:  newClientList(clients),
		pool:     pool,
		largeSem: semaphore.NewWeighted(int64(opts.LargeValueResidency)),
		opts:     opts,
	}, nil
}

// Close releases the worker pool. Pending Submit calls must have returned.
func (d *Dispatcher) Close() {
	d.pool.Release()
}

// Submit delivers a batch and blocks until every item reaches a terminal
// state, returning per-item outcomes in submission order. Items are
// delivered independently and unordered within the batch. Submit never
// fails the batch wholesale; a cancelled context surfaces as Exhausted
// outcomes for items that could not complete.
func (d *Dispatcher) Submit(ctx context.Context, items []Item) []Outcome {
	outcomes := make([]Outcome, len(items))

	var wg sync.WaitGroup
	for i := range items {
		i := i
		item := items[i]
		wg.Add(1)
		err := d.pool.Submit(func() {
			defer wg.Done()
			outcomes[i] = d.deliver(ctx, item)
		})
		if err != nil {
			// pool released mid-run
			outcomes[i] = Outcome{Key: item.Key, Kind: Exhausted, Reason: err.Error()}
			wg.Done()
		}
	}
	wg.Wait()
	return outcomes
}

func (d *Dispatcher) deliver(ctx context.Context, item Item) Outcome {
	large := d.opts.LargeValueThreshold > 0 && len(item.Value) >= d.opts.LargeValueThreshold
	if large {
		if err := d.largeSem.Acquire(ctx, 1); err != nil {
			return Outcome{Key: item.Key, Kind: Exhausted, Attempts: 0, Reason: err.Error()}
		}
		defer d.largeSem.Release(1)
	}

	attempts := 0
	operation := func() error {
		attempts++
		client := d.clients.Pick()

		attemptCtx := ctx
		if d.opts.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, d.opts.AttemptTimeout)
			defer cancel()
		}

		err := d.send(attemptCtx, client, item, large)
		switch {
		case err == nil:
			return nil
		case IsRejection(err):
			// content-level refusal, pointless to retry
			return backoff.Permanent(err)
		case ctx.Err() != nil:
			return backoff.Permanent(err)
		default:
			d.logger.Debug("gossip attempt failed",
				"key", item.Key, "client", client.String(), "attempt", attempts, "err", err)
			return err
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.opts.RetryWaitMin
	// RandomizationFactor keeps its default for jitter.
	policy := backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(d.opts.RetryAttempts-1)), ctx)

	err := backoff.Retry(operation, policy)
	switch {
	case err == nil:
		return Outcome{Key: item.Key, Kind: Delivered, Attempts: attempts}
	case IsRejection(err):
		return Outcome{Key: item.Key, Kind: Rejected, Attempts: attempts, Reason: err.Error()}
	default:
		return Outcome{Key: item.Key, Kind: Exhausted, Attempts: attempts, Reason: err.Error()}
	}
}

// send pushes one item to one client. Large values are offered by reference
// first when the client supports it; everything else is gossiped directly.
func (d *Dispatcher) send(ctx context.Context, client Client, item Item, large bool) error {
	if large {
		if offerer, ok := client.(Offerer); ok {
			return offerer.OfferContent(ctx, item.Key, item.Value)
		}
	}
	return client.GossipContent(ctx, item.Key, item.Value)
}
