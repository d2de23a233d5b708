// Package dedup implements the content-hash ledger that keeps duplicate
// inputs out of the pipeline.
//
// The ledger is an append-only JSONL file mapping each admitted content
// hash to the id of the item that first produced it. Admission is a
// check-then-append under an flock(2) critical section, so concurrent
// watcher and orchestrator processes sharing the vault get
// first-writer-wins semantics: for a given hash, at most one item is ever
// admitted past Intake.
package dedup

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tbonner/vaultd/internal/errors"
)

// Entry is one ledger line: a content hash and the item that owns it.
type Entry struct {
	Hash      string    `json:"hash"`
	ItemID    string    `json:"item_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Ledger records content hashes already admitted into the pipeline.
// Safe for concurrent use across goroutines and processes.
type Ledger struct {
	path string
	lock *FileLock
}

// NewLedger creates a Ledger backed by the given JSONL file. The parent
// directory is created if missing.
func NewLedger(path string) (*Ledger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dedup: create ledger directory: %w", err)
	}
	return &Ledger{
		path: path,
		lock: NewFileLock(dir),
	}, nil
}

// Admit registers a content hash for an item. If the hash is already
// present, it returns the id of the surviving original wrapped with
// ErrDuplicateContent; the caller drops the duplicate.
func (l *Ledger) Admit(hash, itemID string) (string, error) {
	if hash == "" {
		return "", fmt.Errorf("dedup: empty content hash")
	}
	if itemID == "" {
		return "", fmt.Errorf("dedup: empty item id")
	}

	if err := l.lock.Lock(); err != nil {
		return "", fmt.Errorf("dedup: %w", err)
	}
	defer func() { _ = l.lock.Unlock() }()

	existing, err := l.scan(hash)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, fmt.Errorf("dedup: hash %s held by %s: %w", hash, existing, errors.ErrDuplicateContent)
	}

	line, err := json.Marshal(Entry{Hash: hash, ItemID: itemID, Timestamp: time.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("dedup: marshal entry: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("dedup: open ledger: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("dedup: append ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("dedup: close ledger: %w", err)
	}
	return itemID, nil
}

// Seen reports whether a content hash has already been admitted, and by
// which item.
func (l *Ledger) Seen(hash string) (string, bool, error) {
	if err := l.lock.Lock(); err != nil {
		return "", false, fmt.Errorf("dedup: %w", err)
	}
	defer func() { _ = l.lock.Unlock() }()

	id, err := l.scan(hash)
	if err != nil {
		return "", false, err
	}
	return id, id != "", nil
}

// Len returns the number of admitted hashes.
func (l *Ledger) Len() (int, error) {
	if err := l.lock.Lock(); err != nil {
		return 0, fmt.Errorf("dedup: %w", err)
	}
	defer func() { _ = l.lock.Unlock() }()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("dedup: open ledger: %w", err)
	}
	defer func() { _ = f.Close() }()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			count++
		}
	}
	return count, scanner.Err()
}

// scan searches the ledger for a hash. Caller must hold the lock.
// Malformed lines are skipped rather than failing the whole scan.
func (l *Ledger) scan(hash string) (string, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("dedup: open ledger: %w", err)
	}
	defer func() { _ = f.Close() }()

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
		if entry.Hash == hash {
			return entry.ItemID, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("dedup: scan ledger: %w", err)
	}
	return "", nil
}

// HashReader computes the sha256 content hash of a stream.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("dedup: hash content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile computes the sha256 content hash of a file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("dedup: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return HashReader(f)
}

// HashBytes computes the sha256 content hash of a byte slice.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
