package codec

import (
	"errors"
	"fmt"

	"github.com/portalnetwork/bridge/types"
)

const (
	// EpochSize is the number of consecutive blocks covered by one archive
	// epoch.
	EpochSize = 8192

	// PeriodSlots is the number of beacon slots per sync-committee period.
	PeriodSlots = 8192

	// MaxChunkSize bounds the plaintext size of one snapshot chunk so every
	// content value stays within the network's maximum.
	MaxChunkSize = 1 << 20
)

// ErrMalformedRecord classifies all derivation failures: a malformed or
// incomplete provider record must fail the whole work unit, never yield a
// partial pair set.
var ErrMalformedRecord = errors.New("malformed provider record")

// Pair is one derived (content key, content value) pair.
type Pair struct {
	Key   types.ContentKey
	Value types.ContentValue
}

// Derive maps a decoded provider record to the full set of content pairs
// representing it in the target subnetwork. The transform is pure and
// deterministic; on error no pairs are returned.
func Derive(rec types.Record) ([]Pair, error) {
	switch r := rec.(type) {
	case *types.BlockRecord:
		return HistoryPairs(r)
	case *types.BeaconBlockRecord:
		return BeaconPairs(r)
	case *types.StateDiffRecord:
		return StateDiffPairs(r)
	case *types.StateSnapshotRecord:
		return SnapshotPairs(r)
	}
	return nil, fmt.Errorf("%w: unsupported record kind %T", ErrMalformedRecord, rec)
}
