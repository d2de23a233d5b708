// Package audit provides the append-only activity log: one JSONL file per
// date under the vault's Logs directory, one entry per attempted stage
// transition regardless of outcome. Entries are write-once and never
// mutated after append, so the logs double as the system's history of
// record for quarantines and operator-facing failures.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tbonner/vaultd/internal/event"
)

// Statuses recorded with each entry.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusDropped = "dropped"
)

// Entry is one audit log line.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Status    string    `json:"status"`
}

// Log appends activity entries to daily JSONL files.
// Safe for concurrent use within a process; each line is a single
// O_APPEND write, which POSIX keeps atomic for writes of this size.
type Log struct {
	dir string
	mu  sync.Mutex
	now func() time.Time // injectable for tests
}

// NewLog creates a Log writing under the given directory.
func NewLog(dir string) *Log {
	return &Log{dir: dir, now: time.Now}
}

// Append writes one entry to today's log file.
func (l *Log) Append(action, details, status string) error {
	if action == "" {
		return fmt.Errorf("audit: action is required")
	}
	if status == "" {
		status = StatusSuccess
	}

	now := l.now()
	entry := Entry{
		Timestamp: now.UTC(),
		Action:    action,
		Details:   details,
		Status:    status,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("audit: create log directory: %w", err)
	}

	f, err := os.OpenFile(l.fileFor(now), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("audit: open log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("audit: append log: %w", err)
	}
	return f.Close()
}

// Read returns all entries for a given date, oldest first. Returns nil if
// no log exists for that date.
func (l *Log) Read(date time.Time) ([]Entry, error) {
	f, err := os.Open(l.fileFor(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("audit: open log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: scan log: %w", err)
	}
	return entries, nil
}

func (l *Log) fileFor(date time.Time) string {
	return filepath.Join(l.dir, date.Format("2006-01-02")+".json")
}

// Subscribe attaches the log to an event bus so every published transition,
// dedup drop, and pass summary lands in the daily log without the
// publisher knowing about auditing.
func (l *Log) Subscribe(bus *event.Bus) {
	bus.Subscribe(event.EventTypeTransition, func(e event.Event) {
		te, ok := e.(event.TransitionEvent)
		if !ok {
			return
		}
		details := fmt.Sprintf("item %s: %s -> %s", te.ItemID, te.From, te.To)
		if te.Detail != "" {
			details += ": " + te.Detail
		}
		_ = l.Append("transition", details, te.Status)
	})
	bus.Subscribe(event.EventTypeDedup, func(e event.Event) {
		de, ok := e.(event.DedupEvent)
		if !ok {
			return
		}
		_ = l.Append("dedup", fmt.Sprintf("item %s dropped, hash %s held by %s", de.ItemID, de.Hash, de.OriginalID), StatusDropped)
	})
	bus.Subscribe(event.EventTypePassCompleted, func(e event.Event) {
		pe, ok := e.(event.PassCompletedEvent)
		if !ok {
			return
		}
		_ = l.Append("pass", fmt.Sprintf(
			"admitted=%d deduped=%d claimed=%d completed=%d requeued=%d quarantined=%d expired=%d",
			pe.Admitted, pe.Deduped, pe.Claimed, pe.Completed, pe.Requeued, pe.Quarantined, pe.Expired,
		), StatusSuccess)
	})
}
