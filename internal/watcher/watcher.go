// Package watcher turns external activity into vault records.
//
// Producers detect new work (dropped files, messages) and describe it; the
// Intake deposits the described work into the Inbox stage, copying payload
// artifacts into Files/ and stamping the content hash used downstream for
// dedup. Producers never write past Inbox: admission into Needs_Action is
// the orchestrator's job, where the dedup gate runs.
package watcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tbonner/vaultd/internal/dedup"
	"github.com/tbonner/vaultd/internal/logging"
	"github.com/tbonner/vaultd/internal/vault"
)

// Item is one piece of detected work, not yet in the vault.
type Item struct {
	// Source is the absolute path of the detected artifact, or empty for
	// items with no file payload.
	Source string

	Kind     vault.Kind
	Priority vault.Priority

	// Note carries producer-specific context included in the record body.
	Note string
}

// Producer detects new work and renders it for the record body.
type Producer interface {
	// DetectNew returns items that appeared since the previous call.
	// An item returned once is not returned again.
	DetectNew(ctx context.Context) ([]Item, error)

	// Describe renders the item as the markdown body of its vault record.
	Describe(item Item) string
}

// Intake deposits detected items into the Inbox stage.
type Intake struct {
	store *vault.Store
	log   *logging.Logger
}

// NewIntake creates an Intake over the given store.
func NewIntake(store *vault.Store, log *logging.Logger) *Intake {
	if log == nil {
		log = logging.Nop()
	}
	return &Intake{store: store, log: log}
}

// Deposit writes one detected item into Inbox. File payloads are copied
// into Files/ first so the record survives the source being deleted, and
// the content hash is stamped for the dedup gate.
func (in *Intake) Deposit(item Item, body string) (vault.Ref, *vault.Record, error) {
	kind := item.Kind
	if kind == "" {
		kind = vault.KindManual
	}
	priority := item.Priority
	if priority == "" {
		priority = vault.PriorityNormal
	}

	rec := vault.NewRecord(kind, priority)
	rec.Body = body

	if item.Source != "" {
		copied, err := in.copyArtifact(item.Source)
		if err != nil {
			return vault.Ref{}, nil, err
		}
		rec.Payload = filepath.Join(vault.FilesDir, filepath.Base(copied))

		hash, err := dedup.HashFile(copied)
		if err != nil {
			return vault.Ref{}, nil, fmt.Errorf("hash artifact: %w", err)
		}
		rec.ContentHash = hash
	} else {
		rec.ContentHash = dedup.HashBytes([]byte(body))
	}

	ref, err := in.store.WriteNew(vault.StageInbox, "", rec)
	if err != nil {
		return vault.Ref{}, nil, err
	}

	in.log.Info("item deposited", "id", rec.ID, "kind", kind, "source", item.Source)
	return ref, rec, nil
}

// copyArtifact copies a source file into Files/, suffixing the name on
// collision so a re-dropped file never overwrites an earlier artifact.
func (in *Intake) copyArtifact(source string) (string, error) {
	src, err := os.Open(source)
	if err != nil {
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	defer src.Close()

	dest, err := in.collisionFreePath(filepath.Base(source))
	if err != nil {
		return "", err
	}

	dst, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dest)
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	return dest, nil
}

// collisionFreePath finds an unused name under Files/ by appending -1, -2
// and so on before the extension.
func (in *Intake) collisionFreePath(name string) (string, error) {
	dir := in.store.FilesPath()
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := filepath.Join(dir, name)
	for i := 1; ; i++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		} else if err != nil {
			return "", fmt.Errorf("copy artifact: %w", err)
		}
		if i > 10000 {
			return "", fmt.Errorf("copy artifact: no free name for %s", name)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, i, ext))
	}
}
