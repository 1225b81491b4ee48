package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	dbm "github.com/tendermint/tm-db"

	"github.com/portalnetwork/bridge/config"
	"github.com/portalnetwork/bridge/internal/bridge"
	"github.com/portalnetwork/bridge/libs/log"
	"github.com/portalnetwork/bridge/libs/service"
)

// MakeRunCommand constructs the command that executes one bridge run in the
// configured mode.
func MakeRunCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bridge in the configured mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			runLogger, err := log.NewDefaultLogger(conf.LogFormat, conf.LogLevel)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(conf.DataDir, 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			db, err := dbm.NewGoLevelDB("bridge", conf.DataDir)
			if err != nil {
				return fmt.Errorf("open checkpoint database: %w", err)
			}
			defer db.Close()

			metrics := bridge.NopMetrics()
			if conf.Prometheus {
				metrics = bridge.PrometheusMetrics("portal")
				srv := bridge.NewMetricsServer(runLogger.With("module", "metrics"), conf.PrometheusListenAddr)
				if err := srv.Start(cmd.Context()); err != nil {
					return err
				}
				// a signal stops the server through the command context; a
				// completed run has to stop it here or Wait never returns
				defer func() {
					if err := srv.Stop(); err != nil && !errors.Is(err, service.ErrAlreadyStopped) {
						runLogger.Error("stopping metrics server", "err", err)
					}
					srv.Wait()
				}()
			}

			runner, err := bridge.Setup(runLogger, conf, db, metrics)
			if err != nil {
				return err
			}
			return runner.Run(cmd.Context())
		},
	}
	AddRunFlags(cmd, conf)
	return cmd
}

// AddRunFlags exposes every run-relevant config field as a flag; viper binds
// them back onto the config in the root command's PersistentPreRunE.
func AddRunFlags(cmd *cobra.Command, conf *config.Config) {
	cmd.Flags().String("mode", conf.Mode,
		"mode selector: e2hs:<lo>-<hi>[:random] | latest | single:r<lo>-<hi> | snapshot:<height> | test:<file>")
	cmd.Flags().Int64("random-seed", conf.RandomSeed, "seed for the randomized epoch traversal (0 = from clock)")
	cmd.Flags().String("execution-endpoint", conf.ExecutionEndpoint, "execution-layer JSON-RPC URL")
	cmd.Flags().String("consensus-endpoint", conf.ConsensusEndpoint, "consensus-layer REST URL")
	cmd.Flags().String("archive-dir", conf.ArchiveDir, "directory holding e2hs epoch files")
	cmd.Flags().StringSlice("overlay-endpoints", conf.OverlayEndpoints, "portal client JSON-RPC URLs gossip fans out across")
	cmd.Flags().Int("dispatch-concurrency", conf.DispatchConcurrency, "max concurrently in-flight content items")
	cmd.Flags().Int("lookahead", conf.Lookahead, "max concurrently processed work units")
	cmd.Flags().Int("retry-attempts", conf.RetryAttempts, "delivery and fetch attempts per item")
	cmd.Flags().Int("exhausted-threshold", conf.ExhaustedThreshold, "abort after this many units exhaust their retry budget (0 = never)")
	cmd.Flags().Duration("poll-interval", conf.PollInterval, "head poll cadence in latest mode")
	cmd.Flags().Uint64("lookback", conf.Lookback, "slots behind head that latest mode starts from without a checkpoint")
	cmd.Flags().Duration("attempt-timeout", conf.AttemptTimeout, "timeout per provider fetch and per gossip attempt")
	cmd.Flags().Int("large-value-threshold", conf.LargeValueThreshold, "bytes above which a value is offered by reference")
	cmd.Flags().Int("large-value-residency", conf.LargeValueResidency, "max large values resident in the dispatcher")
	cmd.Flags().String("data-dir", conf.DataDir, "directory for the checkpoint database")
	cmd.Flags().Bool("prometheus", conf.Prometheus, "serve prometheus metrics")
	cmd.Flags().String("prometheus-listen-addr", conf.PrometheusListenAddr, "prometheus listen address")
}
