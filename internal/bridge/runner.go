package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/creachadair/taskgroup"
	"golang.org/x/sync/semaphore"

	"github.com/portalnetwork/bridge/internal/codec"
	"github.com/portalnetwork/bridge/internal/enumerator"
	"github.com/portalnetwork/bridge/internal/gossip"
	"github.com/portalnetwork/bridge/internal/provider"
	"github.com/portalnetwork/bridge/libs/log"
	"github.com/portalnetwork/bridge/types"
)

// ThresholdError aborts a run once too many units have spent their retry
// budget without delivering all their content.
type ThresholdError struct {
	Exhausted int
	Threshold int
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("aborted: %d units exhausted their retry budget (threshold %d)",
		e.Exhausted, e.Threshold)
}

// UnitFailureError reports units that failed hard (corrupt archive data,
// malformed records). The run continued past them, but the checkpoint
// cannot advance beyond the first failed unit and the process must exit
// non-zero.
type UnitFailureError struct {
	Failed []types.WorkUnit
}

func (e *UnitFailureError) Error() string {
	return fmt.Sprintf("%d units failed, first %s", len(e.Failed), e.Failed[0])
}

// Summary counts the outcomes of one run.
type Summary struct {
	// Processed counts units that fully resolved, including exhausted ones.
	Processed int
	// Exhausted counts resolved units with at least one undelivered pair.
	Exhausted int
	// Failed counts units that failed hard and block the checkpoint.
	Failed    int
	Delivered int
	Rejected  int
}

type unitStatus uint8

const (
	unitInFlight unitStatus = iota
	unitResolved
	unitFailed
)

type unitEntry struct {
	unit   types.WorkUnit
	status unitStatus
}

// Runner drives the pipeline for one mode instance: enumerate work units,
// fetch and transform each into content pairs, dispatch them to the
// overlay, and commit checkpoints strictly in enumeration order.
//
// Up to Lookahead units are processed concurrently, but a unit's checkpoint
// only commits once every unit before it has resolved, so a crash never
// resumes past a gap. The Runner is the checkpoint store's single writer.
type Runner struct {
	logger     log.Logger
	enum       enumerator.Enumerator
	source     PairSource
	dispatcher *gossip.Dispatcher
	store      *CheckpointStore
	metrics    *Metrics

	subnetwork types.Subnetwork
	mode       string
	lookahead  int
	// threshold aborts the run once this many units are exhausted. Zero
	// disables the abort.
	threshold int

	mtx      sync.Mutex
	stopEnum context.CancelFunc
	// ledger holds admitted units from ledgerBase onward; units are
	// addressed by absolute index, and the committed prefix is trimmed
	// periodically so an infinite follow stays bounded.
	ledger        []*unitEntry
	ledgerBase    int
	commitFrom    int
	stopping      bool
	overThreshold bool
	storeErr      error
	failed        []types.WorkUnit
	lastCommitted *types.WorkUnit
	summary       Summary
}

// RunnerOptions configure a Runner's concurrency and failure policy.
type RunnerOptions struct {
	Lookahead          int
	ExhaustedThreshold int
}

func NewRunner(
	logger log.Logger,
	enum enumerator.Enumerator,
	source PairSource,
	dispatcher *gossip.Dispatcher,
	store *CheckpointStore,
	metrics *Metrics,
	subnetwork types.Subnetwork,
	mode string,
	opts RunnerOptions,
) (*Runner, error) {
	if enum == nil || source == nil || dispatcher == nil || store == nil {
		return nil, errors.New("runner needs an enumerator, a source, a dispatcher and a store")
	}
	if opts.Lookahead <= 0 {
		return nil, errors.New("runner lookahead must be positive")
	}
	if opts.ExhaustedThreshold < 0 {
		return nil, errors.New("runner exhausted threshold can't be negative")
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Runner{
		logger:     logger,
		enum:       enum,
		source:     source,
		dispatcher: dispatcher,
		store:      store,
		metrics:    metrics,
		subnetwork: subnetwork,
		mode:       mode,
		lookahead:  opts.Lookahead,
		threshold:  opts.ExhaustedThreshold,
	}, nil
}

// Run executes the pipeline until the enumeration finishes, the context is
// cancelled, or the exhausted-unit threshold is crossed. Cancellation stops
// issuing new units; units already in flight finish, hit their retry
// budgets, and commit their contiguous checkpoint prefix before Run
// returns. Cancellation itself is a clean exit.
//
// Crossing the threshold likewise stops enumeration but awaits in-flight
// units, so the committed checkpoint reflects all contiguously resolved
// work.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("starting run", "mode", r.mode, "subnetwork", r.subnetwork)

	sem := semaphore.NewWeighted(int64(r.lookahead))
	g := taskgroup.New(nil)

	// enumCtx additionally cancels when a worker trips the threshold, so
	// a follow-mode Next suspended on its poll timer wakes up.
	enumCtx, enumCancel := context.WithCancel(ctx)
	defer enumCancel()
	r.mtx.Lock()
	r.stopEnum = enumCancel
	r.mtx.Unlock()

	var enumErr error
	for {
		if r.shouldStop() {
			break
		}
		unit, err := r.enum.Next(enumCtx)
		if err != nil {
			if !errors.Is(err, enumerator.ErrDone) && enumCtx.Err() == nil {
				enumErr = err
			}
			break
		}
		if err := sem.Acquire(enumCtx, 1); err != nil {
			break
		}
		idx := r.admit(unit)
		// Detached from run cancellation: in-flight units run to
		// completion, bounded by their own attempt timeouts.
		unitCtx := context.WithoutCancel(ctx)
		g.Go(func() error {
			defer sem.Release(1)
			r.process(unitCtx, idx, unit)
			return nil
		})
	}
	_ = g.Wait()

	r.mtx.Lock()
	summary := r.summary
	failed := append([]types.WorkUnit(nil), r.failed...)
	last := r.lastCommitted
	overThreshold := r.overThreshold
	storeErr := r.storeErr
	r.mtx.Unlock()

	checkpoint := "none"
	if last != nil {
		checkpoint = last.String()
	}
	r.logger.Info("run finished",
		"processed", summary.Processed,
		"delivered", summary.Delivered,
		"rejected", summary.Rejected,
		"exhausted", summary.Exhausted,
		"failed", summary.Failed,
		"checkpoint", checkpoint)

	switch {
	case storeErr != nil:
		return storeErr
	case enumErr != nil:
		return enumErr
	case overThreshold:
		return &ThresholdError{Exhausted: summary.Exhausted, Threshold: r.threshold}
	case len(failed) > 0:
		return &UnitFailureError{Failed: failed}
	}
	return nil
}

// Summary returns the outcome counts accumulated so far.
func (r *Runner) Summary() Summary {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.summary
}

// LastCommitted returns the last durably committed unit, or nil.
func (r *Runner) LastCommitted() *types.WorkUnit {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.lastCommitted == nil {
		return nil
	}
	u := *r.lastCommitted
	return &u
}

func (r *Runner) stoppingLocked() {
	r.stopping = true
	if r.stopEnum != nil {
		r.stopEnum()
	}
}

func (r *Runner) shouldStop() bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.stopping
}

func (r *Runner) admit(unit types.WorkUnit) int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.ledger = append(r.ledger, &unitEntry{unit: unit})
	return r.ledgerBase + len(r.ledger) - 1
}

type unitResult struct {
	exhausted bool
	delivered int
	rejected  int
}

func (r *Runner) process(ctx context.Context, idx int, unit types.WorkUnit) {
	start := time.Now()
	items, err := r.source.Pairs(ctx, unit)
	r.metrics.FetchDuration.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, errUnitSkipped):
		r.logger.Debug("no content for unit", "unit", unit)
		r.resolve(idx, unitResult{})
		return
	case errors.Is(err, provider.ErrCorrupt), errors.Is(err, codec.ErrMalformedRecord):
		r.logger.Error("unit failed", "unit", unit, "err", err)
		r.fail(idx, unit)
		return
	case err != nil:
		// Transient provider failure that outlived the fetch retry
		// budget. The unit is abandoned but the run continues.
		r.logger.Error("unit abandoned", "unit", unit, "err", err)
		r.resolve(idx, unitResult{exhausted: true})
		return
	}

	start = time.Now()
	outcomes := r.dispatcher.Submit(ctx, items)
	r.metrics.DispatchDuration.Observe(time.Since(start).Seconds())

	var res unitResult
	for _, outcome := range outcomes {
		switch outcome.Kind {
		case gossip.Delivered:
			res.delivered++
		case gossip.Rejected:
			res.rejected++
			r.logger.Error("content rejected",
				"unit", unit, "key", outcome.Key, "reason", outcome.Reason)
		case gossip.Exhausted:
			res.exhausted = true
			r.logger.Error("content undelivered",
				"unit", unit, "key", outcome.Key, "attempts", outcome.Attempts, "reason", outcome.Reason)
		}
	}
	r.resolve(idx, res)
}

func (r *Runner) resolve(idx int, res unitResult) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.ledger[idx-r.ledgerBase].status = unitResolved
	r.summary.Processed++
	r.summary.Delivered += res.delivered
	r.summary.Rejected += res.rejected
	r.metrics.UnitsProcessed.Add(1)
	r.metrics.PairsDelivered.Add(float64(res.delivered))
	r.metrics.PairsRejected.Add(float64(res.rejected))
	if res.exhausted {
		r.summary.Exhausted++
		r.metrics.UnitsExhausted.Add(1)
		if r.threshold > 0 && r.summary.Exhausted >= r.threshold {
			r.overThreshold = true
			r.stoppingLocked()
		}
	}
	r.commitLocked()
}

func (r *Runner) fail(idx int, unit types.WorkUnit) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.ledger[idx-r.ledgerBase].status = unitFailed
	r.failed = append(r.failed, unit)
	r.summary.Failed++
	// Units before the failed one still commit.
	r.commitLocked()
}

// commitLocked advances the checkpoint over the contiguous prefix of
// resolved units. A failed unit blocks the prefix permanently: resuming
// past it would leave a gap in the overlay.
func (r *Runner) commitLocked() {
	var last *types.WorkUnit
	for r.commitFrom < r.ledgerBase+len(r.ledger) {
		entry := r.ledger[r.commitFrom-r.ledgerBase]
		if entry.status != unitResolved {
			break
		}
		last = &entry.unit
		r.commitFrom++
	}
	if last == nil {
		return
	}
	cp := r.enum.Checkpoint(*last)
	if err := r.store.Save(r.subnetwork, r.mode, cp); err != nil {
		r.logger.Error("checkpoint commit failed", "unit", *last, "err", err)
		r.storeErr = fmt.Errorf("commit checkpoint at %s: %w", *last, err)
		r.stoppingLocked()
		return
	}
	r.lastCommitted = last
	r.metrics.CheckpointHeight.Set(float64(last.Number))
	r.trimLedgerLocked()
}

// trimLedgerLocked drops entries below the commit point once enough have
// accumulated. Only the base shifts; absolute indices held by in-flight
// units stay valid.
func (r *Runner) trimLedgerLocked() {
	n := r.commitFrom - r.ledgerBase
	if n < 4*r.lookahead {
		return
	}
	r.ledger = append([]*unitEntry(nil), r.ledger[n:]...)
	r.ledgerBase = r.commitFrom
}
