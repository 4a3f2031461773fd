package flags

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/op-suite/reporting"
	"github.com/ethereum-optimism/infra/op-suite/types"
)

const EnvVarPrefix = "OP_SUITE"

var (
	Interface = &cli.StringFlag{
		Name:    "interface",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "INTERFACE"),
		Usage:   "Path to the interface executable that lists and runs the tests",
	}
	Files = &cli.StringSliceFlag{
		Name:    "files",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FILES"),
		Usage:   "Test files to list and run, in order (eg. 'arith,strings')",
	}
	InterfaceParameter = &cli.StringFlag{
		Name:    "interface-parameter",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "INTERFACE_PARAMETER"),
		Usage:   "JSON value passed unchanged to the interface executable",
	}
	Config = &cli.StringFlag{
		Name:    "config",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG"),
		Usage:   "Path to a YAML or TOML config file. Flags set on the command line take precedence.",
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   types.DefaultTimeout,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TIMEOUT"),
		Usage:   "Default timeout of a test attempt. Set to 0 to disable.",
	}
	ListingTimeout = &cli.DurationFlag{
		Name:    "listing-timeout",
		Value:   types.DefaultListingTimeout,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LISTING_TIMEOUT"),
		Usage:   "Timeout for listing the tests of one file. Set to 0 to disable.",
	}
	Slow = &cli.DurationFlag{
		Name:    "slow",
		Value:   types.DefaultSlowThreshold,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SLOW"),
		Usage:   "Duration above which a test is reported as slow",
	}
	GraceTime = &cli.DurationFlag{
		Name:    "grace-time",
		Value:   types.DefaultGraceTime,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "GRACE_TIME"),
		Usage:   "Time a test process gets to run its after hooks before it is killed. Set to 0 to kill immediately.",
	}
	Attempts = &cli.IntFlag{
		Name:    "attempts",
		Value:   types.DefaultAttempts,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ATTEMPTS"),
		Usage:   "Number of times a failing test is attempted before it is reported as failed",
		Action: func(_ *cli.Context, v int) error {
			if v < 1 {
				return fmt.Errorf("attempts must be at least 1, got %d", v)
			}
			return nil
		},
	}
	Parallel = &cli.IntFlag{
		Name:    "parallel",
		Value:   1,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PARALLEL"),
		Usage:   "Maximum number of test processes running at the same time",
		Action: func(_ *cli.Context, v int) error {
			if v < 1 {
				return fmt.Errorf("parallel must be at least 1, got %d", v)
			}
			return nil
		},
	}
	RunUnstable = &cli.BoolFlag{
		Name:    "run-unstable",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_UNSTABLE"),
		Usage:   "Run tests marked unstable instead of skipping them",
	}
	KillSubProcesses = &cli.BoolFlag{
		Name:    "kill-subprocesses",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "KILL_SUBPROCESSES"),
		Usage:   "Make test processes kill the processes they spawned before exiting",
	}
	Reporters = &cli.StringSliceFlag{
		Name:    "reporters",
		Value:   cli.NewStringSlice(reporting.Spec),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPORTERS"),
		Usage:   "Reporters to print to, one or more of: " + strings.Join(reporting.Names, ", "),
		Action: func(_ *cli.Context, names []string) error {
			return ValidateReporters(names)
		},
	}
	NoColor = &cli.BoolFlag{
		Name:    "no-color",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "NO_COLOR"),
		Usage:   "Disable colors in console reporters",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOGDIR"),
		Usage:   "Directory to store test logs written by the files reporter",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	ProgressInterval = &cli.DurationFlag{
		Name:    "progress-interval",
		Value:   30 * time.Second,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROGRESS_INTERVAL"),
		Usage:   "Interval between progress updates of the progress reporter",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	Interface,
	Files,
	InterfaceParameter,
	Config,
	Timeout,
	ListingTimeout,
	Slow,
	GraceTime,
	Attempts,
	Parallel,
	RunUnstable,
	KillSubProcesses,
	Reporters,
	NoColor,
	LogDir,
	RunInterval,
	ProgressInterval,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

// CheckRequired returns an error if a required flag is missing. The
// interface and the files may come from the config file instead, so they
// are checked once the config is loaded.
func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}

// ValidateReporters returns an error for names no reporter answers to.
func ValidateReporters(names []string) error {
	for _, name := range names {
		if !slices.Contains(reporting.Names, name) {
			return fmt.Errorf("reporters must be one of %s, got %q", strings.Join(reporting.Names, ", "), name)
		}
	}
	return nil
}
