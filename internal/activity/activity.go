// Package activity persists the workflow history feed to a plain text file.
// Dashboards read it with Tail; writers append one line per workflow event.
package activity

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Kind labels the workflow action an entry records.
type Kind string

const (
	KindStageAdvanced        Kind = "stage_advanced"
	KindFeedbackSubmitted    Kind = "feedback_submitted"
	KindExecutionFinished    Kind = "execution_finished"
	KindVerificationApproved Kind = "verification_approved"
)

// Log appends workflow history entries to a single file.
type Log struct {
	path  string
	mu    sync.Mutex
	clock func() time.Time
}

// Option customizes the log.
type Option func(*Log)

// WithClock injects a deterministic clock for tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Log) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// New creates an activity log writing to the provided path.
func New(path string, opts ...Option) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("activity: ensure log dir: %w", err)
	}
	l := &Log{path: path, clock: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// Path returns the file backing this log.
func (l *Log) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Record appends one entry. Write failures are swallowed: history is an
// observability aid, never a reason to fail the workflow action itself.
func (l *Log) Record(kind Kind, requestID, message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf("%s %-22s %s %s\n",
		l.clock().Format(time.RFC3339),
		string(kind),
		strings.TrimSpace(requestID),
		strings.TrimSpace(message),
	)
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line)
}

// Tail returns up to maxLines of the most recent entries plus the total
// number of recorded lines.
func (l *Log) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	total := len(lines)
	if total == 0 {
		return nil, 0
	}
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	return lines, total
}
