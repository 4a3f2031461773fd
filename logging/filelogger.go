// Package logging keeps the output of every test of a run in log files.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/ethereum-optimism/infra/op-suite/reporter"
	"github.com/ethereum-optimism/infra/op-suite/types"
)

const (
	RunDirectoryPrefix = "testrun-" // Standardized prefix for run directories
	AllLogsFilename    = "all.log"
	SummaryFilename    = "summary.log"
)

// AsyncFile provides non-blocking file writing capabilities
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes
func NewAsyncFile(path string) (*AsyncFile, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100), // Buffer channel to reduce blocking
	}

	af.wg.Add(1)
	go af.processQueue()

	return af, nil
}

// Write queues data to be written asynchronously
func (af *AsyncFile) Write(data []byte) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return fmt.Errorf("async file is closed")
	}

	// Make a copy of the data to avoid race conditions
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	af.queue <- dataCopy
	return nil
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil {
			// Log the error but continue processing
			fmt.Fprintf(os.Stderr, "Error writing to file: %v\n", err)
		}
	}
}

// Close stops the async writer and closes the file
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	// Wait for all writes to complete
	af.wg.Wait()
	return af.file.Close()
}

// testLog is what the FileLogger keeps about a test until it finishes.
type testLog struct {
	started  time.Time
	attempts int
	lines    []string
}

// FileLogger is a reporter that writes one log file per test under
// <baseDir>/testrun-<runID>/{passed,failed,skipped}, every finished test to
// all.log, and a short summary to summary.log when the run is done.
type FileLogger struct {
	baseDir string
	logDir  string
	runID   string

	mu      sync.Mutex
	allLogs *AsyncFile
	tests   map[string]*testLog
	results map[types.Result][]types.TestPath
	started time.Time
}

var _ reporter.Reporter = (*FileLogger)(nil)

// NewFileLogger creates a new FileLogger with given configuration
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	for _, dir := range []string{
		logDir,
		filepath.Join(logDir, "passed"),
		filepath.Join(logDir, "failed"),
		filepath.Join(logDir, "skipped"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	allLogs, err := NewAsyncFile(filepath.Join(logDir, AllLogsFilename))
	if err != nil {
		return nil, err
	}

	return &FileLogger{
		baseDir: baseDir,
		logDir:  logDir,
		runID:   runID,
		allLogs: allLogs,
		tests:   make(map[string]*testLog),
		results: make(map[types.Result][]types.TestPath),
	}, nil
}

// GetRunID returns the current runID
func (l *FileLogger) GetRunID() string {
	return l.runID
}

// GetBaseDir returns the directory of this run's logs
func (l *FileLogger) GetBaseDir() string {
	return l.logDir
}

// GetAllLogsFile returns the path to the all logs file
func (l *FileLogger) GetAllLogsFile() string {
	return filepath.Join(l.logDir, AllLogsFilename)
}

// GetSummaryFile returns the path to the summary file
func (l *FileLogger) GetSummaryFile() string {
	return filepath.Join(l.logDir, SummaryFilename)
}

// TestLogFile returns where the log of test goes for the given result.
func (l *FileLogger) TestLogFile(test types.TestPath, result types.Result) string {
	return filepath.Join(l.logDir, resultDir(result), safeFilename(test.String())+".log")
}

func (l *FileLogger) RegisterTests(tests []types.TestPath, _ types.RegisterOptions, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = at
	return nil
}

func (l *FileLogger) RegistrationFailed(err error, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	content := fmt.Sprintf("Run: %s\nTime: %s\nFailed to list tests:\n%s\n", l.runID, at.Format(time.RFC3339), err)
	if err := os.WriteFile(l.GetSummaryFile(), []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}
	return l.allLogs.Close()
}

func (l *FileLogger) GotMessage(test types.TestPath, msg types.Message, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := test.Key()
	t, ok := l.tests[key]
	if !ok {
		t = &testLog{started: at, attempts: 1}
		l.tests[key] = t
	}

	switch msg.Type {
	case types.MessageStdout:
		t.lines = append(t.lines, stripansi.Strip(msg.Data))
	case types.MessageStderr:
		t.lines = append(t.lines, "[stderr] "+stripansi.Strip(msg.Data))
	case types.MessageBreadcrumb:
		t.lines = append(t.lines, "[breadcrumb] "+msg.Data)
	case types.MessageError:
		if msg.Error != nil {
			t.lines = append(t.lines, "[error] "+msg.Error.Message)
			if msg.Error.Stack != "" {
				t.lines = append(t.lines, indentText(msg.Error.Stack, "  "))
			}
		}
	case types.MessageTimeout:
		t.lines = append(t.lines, "[timeout] test timed out")
	case types.MessageRetry:
		t.lines = append(t.lines, fmt.Sprintf("[retry] attempt %d ended with %s", t.attempts, msg.Result))
		t.attempts++
	case types.MessageFinish:
		delete(l.tests, key)
		l.results[msg.Result] = append(l.results[msg.Result], test)
		return l.writeTest(test, t, msg, at)
	}
	return nil
}

func (l *FileLogger) writeTest(test types.TestPath, t *testLog, msg types.Message, at time.Time) error {
	var content strings.Builder

	fmt.Fprintf(&content, "\n")
	fmt.Fprintf(&content, "┌─────────────────────────────────────────────────────────────────────┐\n")
	fmt.Fprintf(&content, "│ TEST: %-61s │\n", truncateString(test.String(), 61))
	fmt.Fprintf(&content, "├─────────────────────────────────────────────────────────────────────┤\n")
	fmt.Fprintf(&content, "│ Result:   %-57s │\n", msg.Result)
	fmt.Fprintf(&content, "│ Attempts: %-57d │\n", t.attempts)
	if msg.Duration != nil {
		fmt.Fprintf(&content, "│ Duration: %-57s │\n", msg.Duration.String())
	}
	if msg.Code != nil {
		fmt.Fprintf(&content, "│ Exit:     %-57d │\n", *msg.Code)
	}
	if msg.Signal != "" {
		fmt.Fprintf(&content, "│ Signal:   %-57s │\n", msg.Signal)
	}
	fmt.Fprintf(&content, "│ Time:     %-57s │\n", at.Format(time.RFC3339))
	fmt.Fprintf(&content, "└─────────────────────────────────────────────────────────────────────┘\n\n")
	if len(t.lines) > 0 {
		fmt.Fprintf(&content, "OUTPUT:\n")
		fmt.Fprintf(&content, "~~~~~~~\n")
		fmt.Fprintf(&content, "%s\n", indentText(strings.Join(t.lines, "\n"), "  "))
	}

	if err := os.WriteFile(l.TestLogFile(test, msg.Result), []byte(content.String()), 0644); err != nil {
		return fmt.Errorf("failed to write test log file: %w", err)
	}
	return l.allLogs.Write([]byte(content.String()))
}

func (l *FileLogger) Done(at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var content strings.Builder
	fmt.Fprintf(&content, "Run:      %s\n", l.runID)
	fmt.Fprintf(&content, "Duration: %s\n", at.Sub(l.started))
	for _, result := range []types.Result{
		types.ResultSuccess, types.ResultFailure, types.ResultTimeout, types.ResultAborted, types.ResultSkipped,
	} {
		fmt.Fprintf(&content, "%-9s %d\n", string(result)+":", len(l.results[result]))
	}
	for _, result := range []types.Result{types.ResultFailure, types.ResultTimeout, types.ResultAborted} {
		for _, test := range l.results[result] {
			fmt.Fprintf(&content, "  %s [%s] %s\n", test, result, l.TestLogFile(test, result))
		}
	}

	if err := os.WriteFile(l.GetSummaryFile(), []byte(content.String()), 0644); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}
	return l.allLogs.Close()
}

func resultDir(result types.Result) string {
	switch result {
	case types.ResultSuccess:
		return "passed"
	case types.ResultSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// safeFilename converts a string to a safe filename by replacing problematic characters
func safeFilename(s string) string {
	return strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		"...", "",
	).Replace(s)
}

// indentText adds indentation to each line of text for better readability
func indentText(text, indent string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = indent + line
		}
	}
	return strings.Join(lines, "\n")
}

// truncateString truncates a string to the specified max length
// and adds an ellipsis if needed
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
