package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tbonner/vaultd/internal/errors"
	"github.com/tbonner/vaultd/internal/logging"
)

// Auxiliary directories under the vault root that are not lifecycle stages.
const (
	// FilesDir holds copied payload artifacts.
	FilesDir = "Files"

	// LogsDir holds the daily append-only audit logs.
	LogsDir = "Logs"

	// DashboardFile is the single-writer summary artifact.
	DashboardFile = "Dashboard.md"

	// dedupDir holds the content-hash ledger.
	dedupDir = ".dedup"
)

// Ref locates a record within the store. Worker is set only for records in
// the In_Progress stage, which is namespaced per worker identity.
type Ref struct {
	Stage  Stage
	Worker string
	Name   string // file name, "<id>.md"
}

// ID returns the record id encoded in the ref's file name.
func (r Ref) ID() string {
	return strings.TrimSuffix(r.Name, ".md")
}

// String renders the ref as a stage-relative path for logs and errors.
func (r Ref) String() string {
	if r.Worker != "" {
		return filepath.Join(string(r.Stage), r.Worker, r.Name)
	}
	return filepath.Join(string(r.Stage), r.Name)
}

// Store is the vault-backed item store. All mutation goes through rename
// operations so concurrent processes sharing the vault observe each change
// atomically.
type Store struct {
	root string
	log  *logging.Logger
}

// NewStore creates a Store rooted at the given vault directory.
func NewStore(root string, log *logging.Logger) *Store {
	if log == nil {
		log = logging.Nop()
	}
	return &Store{root: root, log: log}
}

// Root returns the vault root directory.
func (s *Store) Root() string {
	return s.root
}

// Init creates the stage directories and auxiliary folders. Safe to call on
// an existing vault.
func (s *Store) Init() error {
	dirs := []string{FilesDir, LogsDir, dedupDir}
	for _, stage := range Stages() {
		dirs = append(dirs, string(stage))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(filepath.Join(s.root, dir), 0o755); err != nil {
			return fmt.Errorf("init vault: %w", err)
		}
	}
	return nil
}

// StageDir returns the absolute directory for a stage. For In_Progress,
// worker must identify the private sub-location.
func (s *Store) StageDir(stage Stage, worker string) string {
	if stage == StageInProgress && worker != "" {
		return filepath.Join(s.root, string(stage), worker)
	}
	return filepath.Join(s.root, string(stage))
}

// FilesPath returns the artifact directory.
func (s *Store) FilesPath() string {
	return filepath.Join(s.root, FilesDir)
}

// LogsPath returns the audit log directory.
func (s *Store) LogsPath() string {
	return filepath.Join(s.root, LogsDir)
}

// DashboardPath returns the dashboard file path.
func (s *Store) DashboardPath() string {
	return filepath.Join(s.root, DashboardFile)
}

// LedgerPath returns the dedup ledger file path.
func (s *Store) LedgerPath() string {
	return filepath.Join(s.root, dedupDir, "ledger.jsonl")
}

// path resolves a ref to an absolute file path.
func (s *Store) path(ref Ref) string {
	return filepath.Join(s.StageDir(ref.Stage, ref.Worker), ref.Name)
}

// List returns refs for every record in a stage, sorted by file name.
// For In_Progress, pass the worker whose sub-location to list, or use
// ListClaimed to list across all workers.
func (s *Store) List(stage Stage, worker string) ([]Ref, error) {
	dir := s.StageDir(stage, worker)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", stage, err)
	}

	var refs []Ref
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		refs = append(refs, Ref{Stage: stage, Worker: worker, Name: entry.Name()})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

// Workers returns the worker identities that currently hold a private
// In_Progress sub-location.
func (s *Store) Workers() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, string(StageInProgress)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list workers: %w", err)
	}

	var workers []string
	for _, entry := range entries {
		if entry.IsDir() {
			workers = append(workers, entry.Name())
		}
	}
	sort.Strings(workers)
	return workers, nil
}

// ListClaimed returns refs for every claimed record across all workers.
func (s *Store) ListClaimed() ([]Ref, error) {
	workers, err := s.Workers()
	if err != nil {
		return nil, err
	}

	var all []Ref
	for _, worker := range workers {
		refs, err := s.List(StageInProgress, worker)
		if err != nil {
			return nil, err
		}
		all = append(all, refs...)
	}
	return all, nil
}

// Read loads and parses the record at ref.
func (s *Store) Read(ref Ref) (*Record, error) {
	data, err := os.ReadFile(s.path(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s: %w", ref, errors.ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}

	rec, err := UnmarshalRecord(data)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	return rec, nil
}

// WriteNew persists a record into a stage. It fails with ErrConflict if a
// record with the same id already exists there, using O_EXCL so two
// producers depositing the same id cannot both succeed.
func (s *Store) WriteNew(stage Stage, worker string, rec *Record) (Ref, error) {
	ref := Ref{Stage: stage, Worker: worker, Name: rec.Filename()}

	data, err := rec.Marshal()
	if err != nil {
		return Ref{}, err
	}

	dir := s.StageDir(stage, worker)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Ref{}, fmt.Errorf("write %s: %w", ref, err)
	}

	f, err := os.OpenFile(s.path(ref), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return Ref{}, fmt.Errorf("write %s: %w", ref, errors.ErrConflict)
		}
		return Ref{}, fmt.Errorf("write %s: %w", ref, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return Ref{}, fmt.Errorf("write %s: %w", ref, err)
	}
	if err := f.Close(); err != nil {
		return Ref{}, fmt.Errorf("write %s: %w", ref, err)
	}

	s.log.Debug("record written", "ref", ref.String(), "id", rec.ID)
	return ref, nil
}

// Update rewrites the record at ref in place. The write goes to a temporary
// file first and is renamed over the original, so readers never observe a
// partial record.
func (s *Store) Update(ref Ref, rec *Record) error {
	if rec.ID != ref.ID() {
		return fmt.Errorf("update %s: record id %s does not match ref", ref, rec.ID)
	}

	target := s.path(ref)
	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("update %s: %w", ref, errors.ErrNotFound)
		}
		return fmt.Errorf("update %s: %w", ref, err)
	}

	data, err := rec.Marshal()
	if err != nil {
		return err
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("update %s: %w", ref, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("update %s: %w", ref, err)
	}
	return nil
}

// Move relocates a record to another stage, enforcing the lifecycle graph.
// The relocation is a single rename: all-or-nothing, and a missing source
// surfaces as ErrNotFound so callers can detect lost races.
func (s *Store) Move(ref Ref, to Stage, worker string) (Ref, error) {
	if !CanTransition(ref.Stage, to) {
		return Ref{}, fmt.Errorf("move %s to %s: %w", ref, to, errors.ErrInvalidTransition)
	}

	dest := Ref{Stage: to, Worker: worker, Name: ref.Name}
	if err := s.AtomicRelocate(s.path(ref), s.path(dest)); err != nil {
		return Ref{}, fmt.Errorf("move %s to %s: %w", ref, to, err)
	}

	s.log.Debug("record moved", "from", ref.String(), "to", dest.String())
	return dest, nil
}

// Remove deletes the record at ref. Used only for dropped duplicates;
// lifecycle transitions always move, never delete.
func (s *Store) Remove(ref Ref) error {
	if err := os.Remove(s.path(ref)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", ref, errors.ErrNotFound)
		}
		return fmt.Errorf("remove %s: %w", ref, err)
	}
	return nil
}

// AtomicRelocate renames source to dest, creating dest's parent directory
// as needed. Rename on a single filesystem is atomic; a missing source maps
// to ErrNotFound. Never assume cross-volume atomicity: the vault must live
// on one filesystem.
func (s *Store) AtomicRelocate(source, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("relocate: %w", err)
	}
	if err := os.Rename(source, dest); err != nil {
		if os.IsNotExist(err) {
			return errors.ErrNotFound
		}
		return fmt.Errorf("relocate: %w", err)
	}
	return nil
}
