package reporting

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-suite/reporter"
	"github.com/ethereum-optimism/infra/op-suite/types"
)

type summaryRow struct {
	test     types.TestPath
	result   types.Result
	duration *time.Duration
	retries  int
}

// SummaryReporter prints a table of every test result when the run is done.
type SummaryReporter struct {
	out     io.Writer
	title   string
	noColor bool

	mu      sync.Mutex
	started time.Time
	order   []string
	rows    map[string]*summaryRow
}

var _ reporter.Reporter = (*SummaryReporter)(nil)

func NewSummaryReporter(out io.Writer, title string, noColor bool) *SummaryReporter {
	return &SummaryReporter{
		out:     out,
		title:   title,
		noColor: noColor,
		rows:    make(map[string]*summaryRow),
	}
}

func (s *SummaryReporter) RegisterTests(tests []types.TestPath, _ types.RegisterOptions, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = at
	for _, test := range tests {
		key := test.Key()
		if _, ok := s.rows[key]; !ok {
			s.order = append(s.order, key)
			s.rows[key] = &summaryRow{test: test}
		}
	}
	return nil
}

func (s *SummaryReporter) RegistrationFailed(error, time.Time) error {
	return nil
}

func (s *SummaryReporter) GotMessage(test types.TestPath, msg types.Message, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[test.Key()]
	if !ok {
		return nil
	}
	switch msg.Type {
	case types.MessageRetry:
		row.retries++
	case types.MessageFinish:
		row.result = msg.Result
		row.duration = msg.Duration
	}
	return nil
}

func (s *SummaryReporter) Done(at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.out, s.render(at.Sub(s.started)))
	return err
}

func (s *SummaryReporter) render(elapsed time.Duration) string {
	var buf bytes.Buffer
	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.SetTitle(s.title)
	t.AppendHeader(table.Row{"FILE", "TEST", "DURATION", "RETRIES", "RESULT"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "FILE", AutoMerge: true},
		{Name: "TEST", WidthMax: 120, WidthMaxEnforcer: text.WrapSoft},
		{Name: "DURATION", Align: text.AlignRight},
		{Name: "RETRIES", Align: text.AlignRight},
	})

	counts := make(map[types.Result]int)
	for _, key := range s.order {
		row := s.rows[key]
		result := row.result
		if result == "" {
			result = "not run"
		}
		counts[row.result]++
		duration := ""
		if row.duration != nil {
			duration = formatDuration(*row.duration)
		}
		t.AppendRow(table.Row{
			row.test.File,
			strings.Join(row.test.Path, " > "),
			duration,
			row.retries,
			strings.ToUpper(string(result)),
		})
	}

	failed := counts[types.ResultFailure] + counts[types.ResultTimeout] + counts[types.ResultAborted]
	if !s.noColor {
		switch {
		case failed > 0:
			t.SetStyle(table.StyleColoredBlackOnRedWhite)
		case counts[types.ResultSkipped] > 0:
			t.SetStyle(table.StyleColoredBlackOnYellowWhite)
		default:
			t.SetStyle(table.StyleColoredBlackOnGreenWhite)
		}
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d passed, %d failed, %d skipped", counts[types.ResultSuccess], failed, counts[types.ResultSkipped]),
		formatDuration(elapsed),
		"",
		overallResult(failed, len(s.order)-counts[""]),
	})
	t.Render()
	return buf.String()
}

func overallResult(failed, finished int) string {
	switch {
	case failed > 0:
		return "FAIL"
	case finished == 0:
		return "NONE"
	default:
		return "PASS"
	}
}
