package audit

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tbonner/vaultd/internal/event"
)

func TestAppendAndRead(t *testing.T) {
	l := NewLog(t.TempDir())

	if err := l.Append("transition", "item a: Inbox -> Needs_Action", StatusSuccess); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Append("dedup", "item b dropped", StatusDropped); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := l.Read(time.Now())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Action != "transition" || entries[0].Status != StatusSuccess {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Action != "dedup" || entries[1].Status != StatusDropped {
		t.Errorf("entry 1 = %+v", entries[1])
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestLogFileIsKeyedByDate(t *testing.T) {
	dir := t.TempDir()
	l := NewLog(dir)

	fixed := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	if err := l.Append("pass", "summary", StatusSuccess); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "2026-08-26.json")); err != nil {
		t.Errorf("expected dated log file: %v", err)
	}

	entries, err := l.Read(fixed)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Read(date) returned %d entries, want 1", len(entries))
	}
}

func TestReadMissingDate(t *testing.T) {
	l := NewLog(t.TempDir())
	entries, err := l.Read(time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if entries != nil {
		t.Errorf("got %v, want nil for missing date", entries)
	}
}

func TestAppendRequiresAction(t *testing.T) {
	l := NewLog(t.TempDir())
	if err := l.Append("", "details", StatusSuccess); err == nil {
		t.Error("Append with empty action should fail")
	}
}

func TestConcurrentAppend(t *testing.T) {
	l := NewLog(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Append("transition", "x", StatusSuccess); err != nil {
				t.Errorf("Append: %v", err)
			}
		}()
	}
	wg.Wait()

	entries, err := l.Read(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 25 {
		t.Errorf("got %d entries, want 25", len(entries))
	}
}

func TestSubscribeRecordsBusTraffic(t *testing.T) {
	l := NewLog(t.TempDir())
	bus := event.NewBus()
	l.Subscribe(bus)

	bus.Publish(event.NewTransitionEvent("item-1", "In_Progress", "Done", "success", ""))
	bus.Publish(event.NewDedupEvent("item-2", "h1", "item-1"))
	bus.Publish(event.NewPassCompletedEvent(1, 1, 1, 1, 0, 0, 0))

	entries, err := l.Read(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	var actions []string
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	joined := strings.Join(actions, ",")
	if joined != "transition,dedup,pass" {
		t.Errorf("actions = %s, want transition,dedup,pass", joined)
	}
}
