package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/portalnetwork/bridge/types"
)

// Provider error classes. Callers branch with errors.Is; the orchestrator
// retries Unavailable, treats NotFound as "no data yet" (latest mode) or a
// unit failure (backfill), and always fails the unit on Corrupt.
var (
	// ErrUnavailable reports a transport-level failure: the provider could
	// not be reached or timed out.
	ErrUnavailable = errors.New("provider unavailable")
	// ErrNotFound reports that the provider has not (yet) produced the
	// requested unit.
	ErrNotFound = errors.New("not found")
	// ErrCorrupt reports that decoded bytes failed their integrity check.
	// Corrupt data fails the unit; it is never silently substituted.
	ErrCorrupt = errors.New("corrupt data")
)

// Provider is a polymorphic source of decoded records for one subnetwork.
// Given a work unit it produces every record the codec needs for that unit:
// one for block, slot and snapshot units, one per block for epoch units.
//
// Providers must be safe for concurrent Fetch calls; the orchestrator
// fetches several units in parallel. Providers do not rate-limit; aggregate
// fan-out is the orchestrator's concurrency policy.
type Provider interface {
	Fetch(ctx context.Context, unit types.WorkUnit) ([]types.Record, error)
}

func fetchErr(class error, unit types.WorkUnit, format string, args ...interface{}) error {
	return fmt.Errorf("fetch %s: %s: %w", unit, fmt.Sprintf(format, args...), class)
}
