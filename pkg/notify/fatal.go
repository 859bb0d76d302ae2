package notify

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// FatalTracker records a marker file when a cycle dies so later failures
// do not re-alert, and so the next clean cycle can send a one-time
// recovery notification.
type FatalTracker struct {
	path string
}

func NewFatalTracker(path string) *FatalTracker {
	return &FatalTracker{path: path}
}

// Record stores the failure message. When a marker is already pending the
// caller should skip re-alerting; Record reports whether this failure is
// the first one.
func (t *FatalTracker) Record(message string) bool {
	if t.path == "" {
		return true
	}
	first := !t.Pending()
	err := os.WriteFile(t.path, []byte(strings.TrimSpace(message)+"\n"), 0644)
	if err != nil {
		logrus.Errorf("error writing fatal error marker %s: %v", t.path, err)
	}
	return first
}

func (t *FatalTracker) Pending() bool {
	if t.path == "" {
		return false
	}
	_, err := os.Stat(t.path)
	return err == nil
}

// Message returns the recorded failure message, if any.
func (t *FatalTracker) Message() string {
	b, err := os.ReadFile(t.path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func (t *FatalTracker) Clear() error {
	if t.path == "" || !t.Pending() {
		return nil
	}
	err := os.Remove(t.path)
	if err != nil {
		return fmt.Errorf("error clearing fatal error marker %s: %w", t.path, err)
	}
	return nil
}
