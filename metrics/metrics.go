package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethereum-optimism/infra/op-suite/reporter"
	"github.com/ethereum-optimism/infra/op-suite/types"
)

const (
	MetricsNamespace = "opsuite"
)

var (
	Debug                = true
	nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	testsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "tests_total",
		Help:      "Count of finished tests by result",
	}, []string{
		"result",
	})

	testRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "test_retries_total",
		Help:      "Count of test attempts that were retried",
	})

	testDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "test_duration_seconds",
		Help:      "Duration of test bodies",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{
		"result",
	})

	testsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "tests_running",
		Help:      "Number of tests currently running",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of test runs by outcome",
	}, []string{
		"outcome",
	})

	runDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of the last test run",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordRun records the outcome of a whole run.
func RecordRun(outcome string, duration time.Duration) {
	runsTotal.WithLabelValues(outcome).Inc()
	runDuration.Set(duration.Seconds())
}

// Reporter turns the message stream into test metrics.
type Reporter struct {
	reporter.Base

	mu      sync.Mutex
	running map[string]bool
}

var _ reporter.Reporter = (*Reporter)(nil)

func NewReporter() *Reporter {
	return &Reporter{running: make(map[string]bool)}
}

func (r *Reporter) GotMessage(test types.TestPath, msg types.Message, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := test.Key()
	switch msg.Type {
	case types.MessageStart:
		if !msg.Skipped {
			r.running[key] = true
			testsRunning.Inc()
		}
	case types.MessageRetry:
		testRetriesTotal.Inc()
	case types.MessageFinish:
		if r.running[key] {
			delete(r.running, key)
			testsRunning.Dec()
		}
		testsTotal.WithLabelValues(string(msg.Result)).Inc()
		if msg.Duration != nil {
			testDuration.WithLabelValues(string(msg.Result)).Observe(msg.Duration.Seconds())
		}
	}
	return nil
}

func (r *Reporter) RegistrationFailed(err error, _ time.Time) error {
	RecordErrorDetails("listing", err)
	return nil
}
