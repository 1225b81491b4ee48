package provider

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/portalnetwork/bridge/types"
)

const headerCacheSize = 512

// ExecutionProvider serves state work units from a trusted execution-layer
// node: per-block state diffs for single-range mode and full snapshots for
// snapshot mode. Header lookups are cached so fetch-stage retries and
// overlapping lookahead do not re-hit the RPC for the same block.
//
// Safe for concurrent Fetch calls: the underlying HTTP client and the LRU
// cache are both concurrency-safe, and there is no other shared state.
type ExecutionProvider struct {
	rpc     *rpcClient
	headers *lru.Cache[uint64, types.Hash]
}

func NewExecutionProvider(endpoint string, attemptTimeout time.Duration) (*ExecutionProvider, error) {
	headers, err := lru.New[uint64, types.Hash](headerCacheSize)
	if err != nil {
		return nil, err
	}
	return &ExecutionProvider{
		rpc:     newRPCClient(endpoint, attemptTimeout),
		headers: headers,
	}, nil
}

func (p *ExecutionProvider) Fetch(ctx context.Context, unit types.WorkUnit) ([]types.Record, error) {
	switch unit.Kind {
	case types.UnitBlock:
		rec, err := p.fetchStateDiff(ctx, unit.Number)
		if err != nil {
			return nil, err
		}
		return []types.Record{rec}, nil
	case types.UnitSnapshot:
		rec, err := p.fetchSnapshot(ctx, unit.Number)
		if err != nil {
			return nil, err
		}
		return []types.Record{rec}, nil
	}
	return nil, fetchErr(ErrNotFound, unit, "execution provider serves block and snapshot units only")
}

// BlockHash fetches (and caches) the canonical block hash at a height.
func (p *ExecutionProvider) BlockHash(ctx context.Context, number uint64) (types.Hash, error) {
	if hash, ok := p.headers.Get(number); ok {
		return hash, nil
	}

	var header struct {
		Hash string `json:"hash"`
	}
	err := p.rpc.call(ctx, "eth_getBlockByNumber", &header, hexUint(number), false)
	if err != nil {
		return types.Hash{}, err
	}
	hash, err := parseHash(header.Hash)
	if err != nil {
		return types.Hash{}, fmt.Errorf("block %d: %v: %w", number, err, ErrCorrupt)
	}
	p.headers.Add(number, hash)
	return hash, nil
}

type accountDiffJSON struct {
	AddressHash string `json:"addressHash"`
	Before      string `json:"before"`
	After       string `json:"after"`
}

func (p *ExecutionProvider) fetchStateDiff(ctx context.Context, number uint64) (*types.StateDiffRecord, error) {
	unit := types.WorkUnit{Kind: types.UnitBlock, Number: number}

	// The block must exist before its diff is meaningful; this also warms
	// the header cache for neighboring units.
	if _, err := p.BlockHash(ctx, number); err != nil {
		return nil, err
	}

	var diff struct {
		BlockNumber string            `json:"blockNumber"`
		Accounts    []accountDiffJSON `json:"accounts"`
	}
	if err := p.rpc.call(ctx, "statediff_getDiff", &diff, hexUint(number)); err != nil {
		return nil, err
	}

	rec := &types.StateDiffRecord{BlockNumber: number}
	for i, acct := range diff.Accounts {
		addrHash, err := parseHash(acct.AddressHash)
		if err != nil {
			return nil, fetchErr(ErrCorrupt, unit, "account %d: %v", i, err)
		}
		before, err := parseHexBytes(acct.Before)
		if err != nil {
			return nil, fetchErr(ErrCorrupt, unit, "account %d before: %v", i, err)
		}
		after, err := parseHexBytes(acct.After)
		if err != nil {
			return nil, fetchErr(ErrCorrupt, unit, "account %d after: %v", i, err)
		}
		rec.Accounts = append(rec.Accounts, types.AccountDiff{
			AddressHash: addrHash,
			Before:      before,
			After:       after,
		})
	}
	return rec, nil
}

func (p *ExecutionProvider) fetchSnapshot(ctx context.Context, height uint64) (*types.StateSnapshotRecord, error) {
	unit := types.WorkUnit{Kind: types.UnitSnapshot, Number: height}

	var snapshot struct {
		Height string `json:"height"`
		Data   string `json:"data"`
	}
	if err := p.rpc.call(ctx, "statediff_getSnapshot", &snapshot, hexUint(height)); err != nil {
		return nil, err
	}
	data, err := parseHexBytes(snapshot.Data)
	if err != nil {
		return nil, fetchErr(ErrCorrupt, unit, "snapshot data: %v", err)
	}
	return &types.StateSnapshotRecord{Height: height, Data: data}, nil
}

func hexUint(n uint64) string { return "0x" + strconv.FormatUint(n, 16) }

func parseHexBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

func parseHash(s string) (types.Hash, error) {
	bz, err := parseHexBytes(s)
	if err != nil {
		return types.Hash{}, err
	}
	var h types.Hash
	if len(bz) != len(h) {
		return types.Hash{}, fmt.Errorf("hash is %d bytes, want %d", len(bz), len(h))
	}
	copy(h[:], bz)
	return h, nil
}
