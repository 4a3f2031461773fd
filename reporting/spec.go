package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-suite/reporter"
	"github.com/ethereum-optimism/infra/op-suite/types"
)

type failure struct {
	test   types.TestPath
	result types.Result
	output []string
}

// SpecReporter prints a nested transcript of the run, one line per suite
// and test, followed by the details of every failed test. It expects the
// sequential stream of a Serializer with suite markers and durations.
type SpecReporter struct {
	out    io.Writer
	colors palette

	mu       sync.Mutex
	started  time.Time
	output   map[string][]string
	failures []failure
	counts   map[types.Result]int
}

var _ reporter.Reporter = (*SpecReporter)(nil)

func NewSpecReporter(out io.Writer, noColor bool) *SpecReporter {
	return &SpecReporter{
		out:    out,
		colors: palette{disabled: noColor},
		output: make(map[string][]string),
		counts: make(map[types.Result]int),
	}
}

func (s *SpecReporter) RegisterTests(_ []types.TestPath, _ types.RegisterOptions, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = at
	return nil
}

func (s *SpecReporter) RegistrationFailed(err error, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.printf("%s\n%s\n", s.colors.red("Failed to list tests:"), err)
}

func (s *SpecReporter) GotMessage(test types.TestPath, msg types.Message, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := test.Key()
	switch msg.Type {
	case types.MessageSuiteStart:
		if len(test.Path) == 0 {
			return s.printf("\n%s\n", s.colors.bold(test.File))
		}
		return s.printf("%s%s\n", indent(len(test.Path)), test.Name())
	case types.MessageStdout, types.MessageStderr, types.MessageBreadcrumb:
		s.output[key] = append(s.output[key], msg.Data)
	case types.MessageError:
		if msg.Error != nil {
			line := msg.Error.Message
			if msg.Error.Stack != "" {
				line += "\n" + msg.Error.Stack
			}
			s.output[key] = append(s.output[key], line)
		}
	case types.MessageTimeout:
		s.output[key] = append(s.output[key], "Test timed out")
	case types.MessageRetry:
		delete(s.output, key)
		return s.printf("%s%s\n", indent(len(test.Path)),
			s.colors.yellow(fmt.Sprintf("↻ %s (%s, retrying)", test.Name(), msg.Result)))
	case types.MessageFinish:
		s.counts[msg.Result]++
		output := s.output[key]
		delete(s.output, key)
		if msg.Result.Failed() || msg.Result == types.ResultAborted {
			s.failures = append(s.failures, failure{test: test, result: msg.Result, output: output})
		}
		return s.printf("%s%s\n", indent(len(test.Path)), s.testLine(test, msg, len(s.failures)))
	}
	return nil
}

func (s *SpecReporter) testLine(test types.TestPath, msg types.Message, failures int) string {
	name := test.Name()
	switch msg.Result {
	case types.ResultSuccess:
		line := s.colors.green("✓") + " " + s.colors.faint(name)
		if msg.Duration != nil && (msg.Slow || msg.HalfSlow) {
			d := fmt.Sprintf(" (%s)", formatDuration(*msg.Duration))
			if msg.Slow {
				d = s.colors.red(d)
			} else {
				d = s.colors.yellow(d)
			}
			line += d
		}
		return line
	case types.ResultSkipped:
		return s.colors.cyan("- " + name)
	case types.ResultTimeout:
		return s.colors.red(fmt.Sprintf("%d) %s (timed out)", failures, name))
	case types.ResultAborted:
		return s.colors.red(fmt.Sprintf("%d) %s (aborted)", failures, name))
	default:
		return s.colors.red(fmt.Sprintf("%d) %s", failures, name))
	}
}

func (s *SpecReporter) Done(at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	passed := s.counts[types.ResultSuccess]
	failed := s.counts[types.ResultFailure] + s.counts[types.ResultTimeout] + s.counts[types.ResultAborted]
	fmt.Fprintf(&b, "\n%s %s\n", s.colors.green(fmt.Sprintf("%d passing", passed)),
		s.colors.faint("("+formatDuration(at.Sub(s.started))+")"))
	if n := s.counts[types.ResultSkipped]; n > 0 {
		fmt.Fprintln(&b, s.colors.cyan(fmt.Sprintf("%d pending", n)))
	}
	if failed > 0 {
		fmt.Fprintln(&b, s.colors.red(fmt.Sprintf("%d failing", failed)))
	}
	for i, f := range s.failures {
		fmt.Fprintf(&b, "\n%d) %s\n", i+1, f.test)
		fmt.Fprintf(&b, "   %s\n", s.colors.red(string(f.result)))
		for _, line := range f.output {
			for _, l := range strings.Split(line, "\n") {
				fmt.Fprintf(&b, "     %s\n", l)
			}
		}
	}
	return s.printf("%s", b.String())
}

func (s *SpecReporter) printf(format string, args ...any) error {
	_, err := fmt.Fprintf(s.out, format, args...)
	return err
}
