package bridge

import (
	"fmt"
	"time"

	dbm "github.com/tendermint/tm-db"

	"github.com/portalnetwork/bridge/config"
	"github.com/portalnetwork/bridge/internal/codec"
	"github.com/portalnetwork/bridge/internal/enumerator"
	"github.com/portalnetwork/bridge/internal/gossip"
	"github.com/portalnetwork/bridge/internal/provider"
	"github.com/portalnetwork/bridge/libs/log"
)

// Setup builds the full pipeline for the configured mode: checkpoint store,
// enumerator resumed from any saved checkpoint, provider, pair source,
// dispatcher, runner. The caller owns the database handle.
func Setup(logger log.Logger, cfg *config.Config, db dbm.DB, metrics *Metrics) (*Runner, error) {
	if err := cfg.ValidateBasic(); err != nil {
		return nil, err
	}
	mode, err := cfg.ParsedMode()
	if err != nil {
		return nil, err
	}
	subnetwork := mode.Subnetwork()

	store := NewCheckpointStore(db)
	checkpoint, err := store.Load(subnetwork, mode.String())
	if err != nil {
		return nil, err
	}
	if checkpoint != nil && checkpoint.LastUnit != nil {
		logger.Info("resuming from checkpoint", "unit", *checkpoint.LastUnit)
	}

	var (
		enum   enumerator.Enumerator
		source PairSource
	)
	srcOpts := SourceOptions{
		RetryAttempts:  cfg.RetryAttempts,
		AttemptTimeout: cfg.AttemptTimeout,
	}

	switch mode.Kind {
	case config.ModeE2HS:
		seed := cfg.RandomSeed
		if mode.Randomize {
			seed = shuffleSeed(seed)
			logger.Info("epoch shuffle seed", "seed", seed)
		}
		enum, err = enumerator.NewE2HS(mode.Lo, mode.Hi, codec.EpochSize,
			mode.Randomize, seed, checkpoint)
		if err != nil {
			return nil, err
		}
		reader := provider.NewFileEpochReader(cfg.ArchiveDir)
		source, err = NewProviderSource(provider.NewArchiveProvider(reader), srcOpts)

	case config.ModeLatest:
		consensus := provider.NewConsensusProvider(cfg.ConsensusEndpoint,
			codec.PeriodSlots, cfg.AttemptTimeout)
		enum = enumerator.NewLatest(logger.With("module", "enumerator"), consensus,
			cfg.PollInterval, cfg.Lookback, cfg.RetryAttempts, checkpoint)
		srcOpts.SkipNotFound = true
		source, err = NewProviderSource(consensus, srcOpts)

	case config.ModeSingle:
		enum, err = enumerator.NewSingle(mode.Lo, mode.Hi, checkpoint)
		if err != nil {
			return nil, err
		}
		execution, eerr := provider.NewExecutionProvider(cfg.ExecutionEndpoint, cfg.AttemptTimeout)
		if eerr != nil {
			return nil, eerr
		}
		source, err = NewProviderSource(execution, srcOpts)

	case config.ModeSnapshot:
		enum, err = enumerator.NewSnapshot(mode.Height, checkpoint)
		if err != nil {
			return nil, err
		}
		execution, eerr := provider.NewExecutionProvider(cfg.ExecutionEndpoint, cfg.AttemptTimeout)
		if eerr != nil {
			return nil, eerr
		}
		source, err = NewProviderSource(execution, srcOpts)

	case config.ModeTest:
		var entries int
		source, entries, err = LoadTestFile(mode.File)
		if err != nil {
			return nil, err
		}
		enum, err = enumerator.NewTest(entries, checkpoint)

	default:
		return nil, fmt.Errorf("unknown mode kind %v", mode.Kind)
	}
	if err != nil {
		return nil, err
	}

	clients := make([]gossip.Client, 0, len(cfg.OverlayEndpoints))
	for _, endpoint := range cfg.OverlayEndpoints {
		clients = append(clients, gossip.NewJSONRPCClient(endpoint, subnetwork, cfg.AttemptTimeout))
	}
	dispatcher, err := gossip.NewDispatcher(logger.With("module", "gossip"), clients, gossip.Options{
		Concurrency:         cfg.DispatchConcurrency,
		RetryAttempts:       cfg.RetryAttempts,
		AttemptTimeout:      cfg.AttemptTimeout,
		LargeValueThreshold: cfg.LargeValueThreshold,
		LargeValueResidency: cfg.LargeValueResidency,
	})
	if err != nil {
		return nil, err
	}

	return NewRunner(logger.With("module", "bridge"), enum, source, dispatcher, store,
		metrics, subnetwork, mode.String(), RunnerOptions{
			Lookahead:          cfg.Lookahead,
			ExhaustedThreshold: cfg.ExhaustedThreshold,
		})
}

// shuffleSeed returns the configured shuffle seed, deriving one from the
// clock when it is zero. The derived seed is meant to be logged so a run
// can be reproduced.
func shuffleSeed(configured int64) int64 {
	if configured != 0 {
		return configured
	}
	return time.Now().UnixNano()
}
