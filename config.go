package opsuite

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/op-suite/flags"
	"github.com/ethereum-optimism/infra/op-suite/types"
)

// Config holds the application configuration
type Config struct {
	Interface          string          // Path of the interface executable
	InterfaceParameter json.RawMessage // Passed unchanged to the interface executable
	Files              []string        // Test files, in run order
	Options            types.RegisterOptions
	Parallel           int  // Maximum number of concurrent test processes
	RunUnstable        bool // Run tests marked unstable instead of skipping them
	KillSubProcesses   bool // Test processes kill the processes they spawned
	Reporters          []string
	NoColor            bool
	LogDir             string        // Directory to store test logs
	RunInterval        time.Duration // Interval between test runs
	RunOnce            bool          // Indicates if the service should exit after one test run
	ProgressInterval   time.Duration // Interval between progress updates
	Metrics            opmetrics.CLIConfig
	Out                io.Writer // Where console reporters print
	Log                log.Logger
}

// NewConfig creates a new Config from cli context. Values from the config
// file apply to the flags not set on the command line.
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	cfg := &Config{
		Interface:        ctx.String(flags.Interface.Name),
		Files:            ctx.StringSlice(flags.Files.Name),
		Parallel:         ctx.Int(flags.Parallel.Name),
		RunUnstable:      ctx.Bool(flags.RunUnstable.Name),
		KillSubProcesses: ctx.Bool(flags.KillSubProcesses.Name),
		Reporters:        ctx.StringSlice(flags.Reporters.Name),
		NoColor:          ctx.Bool(flags.NoColor.Name),
		LogDir:           ctx.String(flags.LogDir.Name),
		RunInterval:      ctx.Duration(flags.RunInterval.Name),
		ProgressInterval: ctx.Duration(flags.ProgressInterval.Name),
		Options: types.RegisterOptions{
			Timeout:        ctx.Duration(flags.Timeout.Name),
			ListingTimeout: ctx.Duration(flags.ListingTimeout.Name),
			SlowThreshold:  ctx.Duration(flags.Slow.Name),
			GraceTime:      ctx.Duration(flags.GraceTime.Name),
			Attempts:       ctx.Int(flags.Attempts.Name),
		},
		Metrics: opmetrics.ReadCLIConfig(ctx),
		Out:     os.Stdout,
		Log:     log,
	}
	if param := ctx.String(flags.InterfaceParameter.Name); param != "" {
		cfg.InterfaceParameter = json.RawMessage(param)
	}

	if path := ctx.String(flags.Config.Name); path != "" {
		fc, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		fc.apply(cfg, ctx.IsSet)
	}

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolve validates the config and makes its paths absolute.
func (c *Config) resolve() error {
	if c.Interface == "" {
		return errors.New("interface executable is required")
	}
	if len(c.Files) == 0 {
		return errors.New("at least one test file is required")
	}
	if len(c.InterfaceParameter) > 0 && !json.Valid(c.InterfaceParameter) {
		return fmt.Errorf("interface parameter is not valid JSON: %s", c.InterfaceParameter)
	}
	if c.Parallel < 1 {
		return fmt.Errorf("parallel must be at least 1, got %d", c.Parallel)
	}
	if c.Options.Attempts < 1 {
		return fmt.Errorf("attempts must be at least 1, got %d", c.Options.Attempts)
	}
	if err := flags.ValidateReporters(c.Reporters); err != nil {
		return err
	}

	// A bare name is looked up in PATH when the interface is spawned.
	if strings.ContainsRune(c.Interface, filepath.Separator) {
		abs, err := filepath.Abs(c.Interface)
		if err != nil {
			return fmt.Errorf("failed to resolve absolute path for interface '%s': %w", c.Interface, err)
		}
		c.Interface = abs
	}

	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	logDir, err := filepath.Abs(c.LogDir)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", c.LogDir, err)
	}
	c.LogDir = logDir

	c.RunOnce = c.RunInterval == 0
	return nil
}
