// Package dashboard maintains the vault's Dashboard.md summary artifact.
//
// The dashboard is single-writer by design: this system has no central
// lock service, so instead of a lock the configured writer token names the
// one role allowed to append. A Writer created with any other role refuses
// to write with ErrNotDashboardWriter, which keeps concurrent orchestrator
// and watcher processes from interleaving partial markdown.
package dashboard

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tbonner/vaultd/internal/errors"
)

const (
	activityHeader = "## Recent Activity"
	emptyActivity  = "*No recent activity*"
)

// Writer appends activity lines to the dashboard file.
type Writer struct {
	path  string
	role  string // this instance's role
	token string // the designated writer role from configuration
	now   func() time.Time
}

// NewWriter creates a Writer for the dashboard at path. role identifies
// this instance; token is the configured writer role. Writes succeed only
// when they match.
func NewWriter(path, role, token string) *Writer {
	return &Writer{path: path, role: role, token: token, now: time.Now}
}

// HoldsToken reports whether this instance is the designated writer.
func (w *Writer) HoldsToken() bool {
	return w.role != "" && w.role == w.token
}

// Init writes a fresh dashboard skeleton if none exists. Only the token
// holder may scaffold it.
func (w *Writer) Init() error {
	if !w.HoldsToken() {
		return errors.ErrNotDashboardWriter
	}
	if _, err := os.Stat(w.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("dashboard: stat: %w", err)
	}

	content := fmt.Sprintf(`# Dashboard

Vault status overview. Maintained by the %q role; do not edit the
Recent Activity section by hand.

%s

%s
`, w.token, activityHeader, emptyActivity)

	if err := os.WriteFile(w.path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("dashboard: write: %w", err)
	}
	return nil
}

// Record inserts an activity line at the top of the Recent Activity
// section, replacing the empty placeholder if present. Refused unless this
// instance holds the writer token.
func (w *Writer) Record(action, details string) error {
	if !w.HoldsToken() {
		return errors.ErrNotDashboardWriter
	}

	data, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("dashboard: read: %w", err)
	}
	content := string(data)

	entry := fmt.Sprintf("- [%s] %s: %s", w.now().Format("2006-01-02 15:04"), action, details)

	switch {
	case strings.Contains(content, emptyActivity):
		content = strings.Replace(content, emptyActivity, entry, 1)
	case strings.Contains(content, activityHeader):
		content = strings.Replace(content, activityHeader, activityHeader+"\n"+entry, 1)
	default:
		content = strings.TrimRight(content, "\n") + "\n\n" + activityHeader + "\n" + entry + "\n"
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("dashboard: write: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("dashboard: replace: %w", err)
	}
	return nil
}
