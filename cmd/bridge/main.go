package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/portalnetwork/bridge/cmd/bridge/commands"
	"github.com/portalnetwork/bridge/config"
	"github.com/portalnetwork/bridge/internal/bridge"
	"github.com/portalnetwork/bridge/libs/cli"
	"github.com/portalnetwork/bridge/libs/log"
)

func main() {
	conf := config.DefaultConfig()
	logger, err := log.NewDefaultLogger(conf.LogFormat, conf.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	rcmd := commands.RootCommand(conf, logger)
	rcmd.AddCommand(
		commands.MakeRunCommand(conf, logger),
		commands.VersionCmd,
	)

	cmd := cli.PrepareBaseCmd(rcmd, "BRIDGE", os.ExpandEnv(filepath.Join("$HOME", ".bridge")))
	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes the run-abort classes from plain configuration or
// provider failures. Zero is reserved for completion and external
// cancellation, which Run reports as success.
func exitCode(err error) int {
	var threshold *bridge.ThresholdError
	var failure *bridge.UnitFailureError
	switch {
	case errors.As(err, &threshold):
		return 2
	case errors.As(err, &failure):
		return 3
	}
	return 1
}
