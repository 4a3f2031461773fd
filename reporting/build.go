// Package reporting provides the reporters a run can print to, and builds
// the decorated chain each of them needs.
package reporting

import (
	"fmt"
	"io"
	"os"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-suite/logging"
	"github.com/ethereum-optimism/infra/op-suite/metrics"
	"github.com/ethereum-optimism/infra/op-suite/reporter"
)

// Reporter names accepted by Build.
const (
	Spec     = "spec"
	TeamCity = "teamcity"
	JSON     = "json"
	Summary  = "summary"
	Progress = "progress"
	Files    = "files"
	Metrics  = "metrics"
)

// Names lists every reporter Build knows.
var Names = []string{Spec, TeamCity, JSON, Summary, Progress, Files, Metrics}

// Options configures the reporters built by Build.
type Options struct {
	Out              io.Writer
	NoColor          bool
	Log              log.Logger
	Clock            clock.Clock
	ProgressInterval time.Duration
	// LogDir and RunID locate the files written by the files reporter.
	LogDir string
	RunID  string
}

// Build returns a reporter feeding each named reporter, wrapped in the
// decorators it expects: sequential reporters get a Serializer, suite
// markers and durations, the others just durations.
func Build(names []string, opts Options) (reporter.Reporter, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Log == nil {
		opts.Log = log.New()
	}

	var reporters []reporter.Reporter
	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case Spec:
			reporters = append(reporters, sequential(NewSpecReporter(opts.Out, opts.NoColor)))
		case TeamCity:
			reporters = append(reporters, sequential(NewTeamCityReporter(opts.Out)))
		case JSON:
			reporters = append(reporters, NewJSONReporter(opts.Out))
		case Summary:
			reporters = append(reporters, reporter.NewTimer(NewSummaryReporter(opts.Out, "TEST RESULTS", opts.NoColor)))
		case Progress:
			reporters = append(reporters, NewProgressReporter(opts.Log.New("component", "progress"), opts.Clock, opts.ProgressInterval))
		case Files:
			fl, err := logging.NewFileLogger(opts.LogDir, opts.RunID)
			if err != nil {
				return nil, fmt.Errorf("failed to create file logger: %w", err)
			}
			reporters = append(reporters, reporter.NewTimer(fl))
		case Metrics:
			reporters = append(reporters, reporter.NewTimer(metrics.NewReporter()))
		default:
			return nil, fmt.Errorf("unknown reporter %q", name)
		}
	}
	return reporter.NewCombined(reporters...), nil
}

func sequential(r reporter.Reporter) reporter.Reporter {
	return reporter.NewSerializer(reporter.NewSuiteMarker(reporter.NewTimer(r)))
}
