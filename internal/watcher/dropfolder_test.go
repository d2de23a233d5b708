package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tbonner/vaultd/internal/vault"
)

func testTime(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
}

// settledDropFolder returns a DropFolder whose clock is far enough ahead
// that every file counts as settled.
func settledDropFolder(t *testing.T, dir string) *DropFolder {
	t.Helper()
	d := NewDropFolder(dir, nil)
	d.now = func() time.Time { return time.Now().Add(time.Minute) }
	return d
}

func TestDetectNewReportsEachFileOnce(t *testing.T) {
	dir := t.TempDir()
	dropFile(t, dir, "a.pdf", "alpha")
	dropFile(t, dir, "b.csv", "beta")
	d := settledDropFolder(t, dir)

	items, err := d.DetectNew(context.Background())
	if err != nil {
		t.Fatalf("DetectNew: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("detected %d items, want 2", len(items))
	}
	for _, item := range items {
		if item.Kind != vault.KindFileDrop {
			t.Errorf("kind = %s, want file_drop", item.Kind)
		}
	}

	again, err := d.DetectNew(context.Background())
	if err != nil {
		t.Fatalf("DetectNew again: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second scan detected %d items, want 0", len(again))
	}
}

func TestDetectNewSkipsUnsettledFiles(t *testing.T) {
	dir := t.TempDir()
	dropFile(t, dir, "half-written.pdf", "partial")
	d := NewDropFolder(dir, nil) // real clock: file just written, inside settle window

	items, err := d.DetectNew(context.Background())
	if err != nil {
		t.Fatalf("DetectNew: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("detected %d items, want 0 while unsettled", len(items))
	}
	if !d.hasPending() {
		t.Error("hasPending = false, want true for skipped file")
	}
}

func TestDetectNewIgnoresHiddenAndDirs(t *testing.T) {
	dir := t.TempDir()
	dropFile(t, dir, ".DS_Store", "junk")
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	d := settledDropFolder(t, dir)

	items, err := d.DetectNew(context.Background())
	if err != nil {
		t.Fatalf("DetectNew: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("detected %d items, want 0", len(items))
	}
}

func TestPriorityFromName(t *testing.T) {
	tests := []struct {
		name string
		want vault.Priority
	}{
		{"URGENT-payroll.xlsx", vault.PriorityHigh},
		{"fix-asap.txt", vault.PriorityHigh},
		{"invoice-march.pdf", vault.PriorityMedium},
		{"holiday-photo.png", vault.PriorityNormal},
	}
	for _, tt := range tests {
		if got := priorityFor(tt.name); got != tt.want {
			t.Errorf("priorityFor(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestRunDepositsDroppedFile(t *testing.T) {
	dir := t.TempDir()
	dropFile(t, dir, "preexisting.txt", "was here before the watcher")
	d := settledDropFolder(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deposited := make(chan Item, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx, func(item Item) error {
			deposited <- item
			return nil
		})
	}()

	// Initial scan picks up the pre-existing file.
	select {
	case item := <-deposited:
		if filepath.Base(item.Source) != "preexisting.txt" {
			t.Errorf("source = %s", item.Source)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("initial scan never deposited")
	}

	// A file dropped while watching is picked up from the event.
	dropFile(t, dir, "live-drop.txt", "arrived during the watch")
	select {
	case item := <-deposited:
		if filepath.Base(item.Source) != "live-drop.txt" {
			t.Errorf("source = %s", item.Source)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("live drop never deposited")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
