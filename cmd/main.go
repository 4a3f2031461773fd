package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	opsuite "github.com/ethereum-optimism/infra/op-suite"
	"github.com/ethereum-optimism/infra/op-suite/flags"
	"github.com/ethereum-optimism/infra/op-suite/runner"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-suite"
	app.Usage = "Parallel test suite runner"
	app.Description = "op-suite lists the tests of an interface executable and runs each of them in its own process"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.ExitErrHandler = handleExitErr

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func handleExitErr(c *cli.Context, err error) {
	if err == nil {
		return
	}
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		cli.HandleExitCoder(exitErr)
		return
	}
	msg := err.Error()
	if runner.IsInternal(err) {
		// Internal errors carry the stack of where they were raised.
		msg = fmt.Sprintf("%+v", err)
	}
	cli.HandleExitCoder(cli.Exit(msg, opsuite.ExitCode(err)))
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	cfg, err := opsuite.NewConfig(ctx, log)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, opsuite.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config", "config", cfg)

	svc, err := opsuite.New(ctx.Context, cfg, Version, closeApp)
	if err != nil {
		return nil, opsuite.NewRuntimeError(fmt.Errorf("failed to create op-suite: %w", err))
	}

	return svc, nil
}
