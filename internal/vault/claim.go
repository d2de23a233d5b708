package vault

import (
	"fmt"
	"time"

	"github.com/tbonner/vaultd/internal/errors"
)

// Claim attempts to take exclusive ownership of a record in the shared
// Needs_Action stage by renaming it into the worker's private In_Progress
// sub-location. The rename is atomic at the filesystem level and fails when
// the source no longer exists, so exactly one claimant succeeds per record.
//
// Losing the race is not an error condition: callers receive
// ErrAlreadyClaimed, log it at debug level, and move on. There is no
// ordering guarantee among simultaneous claimants.
//
// On success the record's owner and claimed_at fields are stamped. That
// write happens after the rename, inside the worker-private location, so a
// crash between the two leaves a claimed-but-unstamped record that the
// stale sweep recovers by file mtime.
func (s *Store) Claim(ref Ref, worker string) (Ref, error) {
	if worker == "" {
		return Ref{}, fmt.Errorf("claim %s: worker identity is required", ref)
	}
	if ref.Stage != StageNeedsAction {
		return Ref{}, fmt.Errorf("claim %s: only %s records are claimable: %w",
			ref, StageNeedsAction, errors.ErrInvalidTransition)
	}

	dest := Ref{Stage: StageInProgress, Worker: worker, Name: ref.Name}
	if err := s.AtomicRelocate(s.path(ref), s.path(dest)); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return Ref{}, fmt.Errorf("claim %s: %w", ref, errors.ErrAlreadyClaimed)
		}
		return Ref{}, fmt.Errorf("claim %s: %w", ref, err)
	}

	rec, err := s.Read(dest)
	if err != nil {
		return dest, fmt.Errorf("claim %s: stamp owner: %w", ref, err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	rec.Owner = worker
	rec.ClaimedAt = &now
	if err := s.Update(dest, rec); err != nil {
		return dest, fmt.Errorf("claim %s: stamp owner: %w", ref, err)
	}

	s.log.Debug("claim won", "ref", dest.String(), "worker", worker)
	return dest, nil
}

// Release returns a claimed record to the shared stage for re-claim,
// clearing its ownership stamp. Used by retry handling and the stale-claim
// sweep.
func (s *Store) Release(ref Ref) (Ref, error) {
	if ref.Stage != StageInProgress {
		return Ref{}, fmt.Errorf("release %s: not a claimed record: %w", ref, errors.ErrInvalidTransition)
	}

	rec, err := s.Read(ref)
	if err != nil {
		return Ref{}, err
	}
	rec.Owner = ""
	rec.ClaimedAt = nil
	if err := s.Update(ref, rec); err != nil {
		return Ref{}, err
	}

	return s.Move(ref, StageNeedsAction, "")
}
