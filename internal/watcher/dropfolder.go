package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tbonner/vaultd/internal/logging"
	"github.com/tbonner/vaultd/internal/vault"
)

// settleDelay is how long a file must sit unmodified before it is picked
// up, so half-written drops are not ingested.
const settleDelay = 2 * time.Second

// debounceWindow batches the event bursts editors and copies produce.
const debounceWindow = 200 * time.Millisecond

// DropFolder watches a directory for new files. It is a Producer: DetectNew
// scans for settled files not yet reported, and Run drives the scan from
// fsnotify events so drops are picked up without polling.
type DropFolder struct {
	dir string
	log *logging.Logger

	mu   sync.Mutex
	seen map[string]struct{}

	// now is replaceable for tests.
	now func() time.Time
}

// NewDropFolder creates a DropFolder over dir.
func NewDropFolder(dir string, log *logging.Logger) *DropFolder {
	if log == nil {
		log = logging.Nop()
	}
	return &DropFolder{
		dir:  dir,
		log:  log,
		seen: make(map[string]struct{}),
		now:  time.Now,
	}
}

// Dir returns the watched directory.
func (d *DropFolder) Dir() string { return d.dir }

// DetectNew scans the drop directory for settled files not previously
// reported. Hidden files and subdirectories are ignored.
func (d *DropFolder) DetectNew(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("scan drop folder: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var items []Item
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(d.dir, name)
		if _, ok := d.seen[path]; ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if d.now().Sub(info.ModTime()) < settleDelay {
			// Still being written, pick it up on the next scan.
			continue
		}

		d.seen[path] = struct{}{}
		items = append(items, Item{
			Source:   path,
			Kind:     vault.KindFileDrop,
			Priority: priorityFor(name),
		})
	}
	return items, nil
}

// Describe renders the item body with the file's category and suggested
// actions.
func (d *DropFolder) Describe(item Item) string {
	var size int64
	if info, err := os.Stat(item.Source); err == nil {
		size = info.Size()
	}
	return DescribeFile(filepath.Base(item.Source), size, d.now(), item.Note)
}

// Run watches the drop folder until ctx is cancelled, calling deposit for
// each newly detected item. An initial scan picks up files that were
// dropped while nothing was watching.
func (d *DropFolder) Run(ctx context.Context, deposit func(Item) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("drop folder watch: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(d.dir); err != nil {
		return fmt.Errorf("drop folder watch %s: %w", d.dir, err)
	}

	d.log.Info("watching drop folder", "dir", d.dir)

	// The settle delay means a freshly dropped file is skipped by the scan
	// its own event triggers, so keep rescanning until quiet.
	rescan := time.NewTimer(debounceWindow)
	defer rescan.Stop()

	scan := func() {
		items, err := d.DetectNew(ctx)
		if err != nil {
			d.log.Warn("drop folder scan failed", "error", err)
			return
		}
		for _, item := range items {
			if err := deposit(item); err != nil {
				d.log.Error("deposit failed", "source", item.Source, "error", err)
			}
		}
		if d.hasPending() {
			// Files inside the settle window were skipped, come back.
			rescan.Reset(settleDelay + debounceWindow)
		}
	}
	scan()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			rescan.Reset(settleDelay + debounceWindow)

		case <-rescan.C:
			scan()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.log.Warn("drop folder watcher error", "error", err)
		}
	}
}

// hasPending reports whether any unreported file sits in the drop folder,
// settled or not.
func (d *DropFolder) hasPending() bool {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if _, ok := d.seen[filepath.Join(d.dir, name)]; !ok {
			return true
		}
	}
	return false
}

// priorityFor infers priority from the file name.
func priorityFor(name string) vault.Priority {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "urgent") || strings.Contains(lower, "asap") {
		return vault.PriorityHigh
	}
	if strings.Contains(lower, "invoice") || strings.Contains(lower, "contract") {
		return vault.PriorityMedium
	}
	return vault.PriorityNormal
}
