package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/portalnetwork/bridge/types"
)

// ConsensusProvider serves beacon slot work units from a consensus-layer
// node's REST API. A missed request for a slot the chain has not produced
// yet surfaces as ErrNotFound, which latest mode reads as "no new data yet"
// rather than a hard failure.
//
// Safe for concurrent Fetch calls.
type ConsensusProvider struct {
	rpc         *rpcClient
	periodSlots uint64
}

func NewConsensusProvider(endpoint string, periodSlots uint64, attemptTimeout time.Duration) *ConsensusProvider {
	return &ConsensusProvider{
		rpc:         newRPCClient(endpoint, attemptTimeout),
		periodSlots: periodSlots,
	}
}

func (p *ConsensusProvider) Fetch(ctx context.Context, unit types.WorkUnit) ([]types.Record, error) {
	if unit.Kind != types.UnitSlot {
		return nil, fetchErr(ErrNotFound, unit, "consensus provider serves slot units only")
	}

	rec, err := p.fetchBeaconBlock(ctx, unit.Number)
	if err != nil {
		return nil, err
	}
	return []types.Record{rec}, nil
}

// HeadSlot returns the highest slot the provider has seen. The latest-mode
// enumerator polls this between emissions.
func (p *ConsensusProvider) HeadSlot(ctx context.Context) (uint64, error) {
	var resp struct {
		Data struct {
			Header struct {
				Message struct {
					Slot string `json:"slot"`
				} `json:"message"`
			} `json:"header"`
		} `json:"data"`
	}
	if err := p.rpc.get(ctx, "/eth/v1/beacon/headers/head", &resp); err != nil {
		return 0, err
	}
	slot, err := strconv.ParseUint(resp.Data.Header.Message.Slot, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("head slot %q: %v: %w", resp.Data.Header.Message.Slot, err, ErrCorrupt)
	}
	return slot, nil
}

func (p *ConsensusProvider) fetchBeaconBlock(ctx context.Context, slot uint64) (*types.BeaconBlockRecord, error) {
	unit := types.WorkUnit{Kind: types.UnitSlot, Number: slot}

	var resp struct {
		Data struct {
			Root  string `json:"root"`
			Block string `json:"block"` // base64 SSZ
		} `json:"data"`
	}
	if err := p.rpc.get(ctx, fmt.Sprintf("/eth/v2/beacon/blocks/%d", slot), &resp); err != nil {
		return nil, err
	}

	root, err := parseHash(resp.Data.Root)
	if err != nil {
		return nil, fetchErr(ErrCorrupt, unit, "block root: %v", err)
	}
	block, err := base64.StdEncoding.DecodeString(resp.Data.Block)
	if err != nil {
		return nil, fetchErr(ErrCorrupt, unit, "block payload: %v", err)
	}

	rec := &types.BeaconBlockRecord{Slot: slot, Root: root, Block: block}

	// A slot that opens a sync-committee period also needs that period's
	// light-client update.
	if slot%p.periodSlots == 0 {
		update, err := p.fetchLightClientUpdate(ctx, slot/p.periodSlots)
		if err != nil {
			return nil, err
		}
		rec.Update = update
	}
	return rec, nil
}

func (p *ConsensusProvider) fetchLightClientUpdate(ctx context.Context, period uint64) ([]byte, error) {
	var resp struct {
		Data []struct {
			Update string `json:"update"` // base64 SSZ
		} `json:"data"`
	}
	path := fmt.Sprintf("/eth/v1/beacon/light_client/updates?start_period=%d&count=1", period)
	if err := p.rpc.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no light-client update for period %d: %w", period, ErrNotFound)
	}
	update, err := base64.StdEncoding.DecodeString(resp.Data[0].Update)
	if err != nil {
		return nil, fmt.Errorf("light-client update for period %d: %v: %w", period, err, ErrCorrupt)
	}
	return update, nil
}
