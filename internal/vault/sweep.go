package vault

import (
	"os"
	"time"
)

// SweepResult reports what a stale-claim sweep did.
type SweepResult struct {
	Requeued    []Ref
	Quarantined []Ref
}

// SweepStaleClaims recovers records abandoned by crashed workers. A claim
// is stale when its age exceeds staleAfter, judged by the record's
// claimed_at stamp with file mtime as fallback. Stale records with attempts
// below the ceiling go back to Needs_Action for re-claim; the rest go to
// Quarantine for human triage.
//
// This is the sole re-delivery mechanism, so everything downstream of a
// claim must tolerate seeing the same record twice.
func (s *Store) SweepStaleClaims(now time.Time, staleAfter time.Duration, ceiling int) (SweepResult, error) {
	var result SweepResult

	refs, err := s.ListClaimed()
	if err != nil {
		return result, err
	}

	for _, ref := range refs {
		rec, err := s.Read(ref)
		if err != nil {
			s.log.Warn("sweep: unreadable claimed record", "ref", ref.String(), "error", err)
			continue
		}

		claimedAt := rec.ClaimedAt
		if claimedAt == nil {
			if info, err := os.Stat(s.path(ref)); err == nil {
				t := info.ModTime()
				claimedAt = &t
			}
		}
		if claimedAt == nil || now.Sub(*claimedAt) < staleAfter {
			continue
		}

		if rec.Attempts >= ceiling {
			rec.LastError = "claim abandoned with retry ceiling exhausted"
			rec.Owner = ""
			rec.ClaimedAt = nil
			if err := s.Update(ref, rec); err != nil {
				s.log.Warn("sweep: update before quarantine", "ref", ref.String(), "error", err)
				continue
			}
			moved, err := s.Move(ref, StageQuarantine, "")
			if err != nil {
				s.log.Warn("sweep: quarantine stale claim", "ref", ref.String(), "error", err)
				continue
			}
			result.Quarantined = append(result.Quarantined, moved)
			s.log.Info("stale claim quarantined", "ref", moved.String(), "attempts", rec.Attempts)
			continue
		}

		rec.Attempts++
		if err := s.Update(ref, rec); err != nil {
			s.log.Warn("sweep: bump attempts", "ref", ref.String(), "error", err)
			continue
		}
		moved, err := s.Release(ref)
		if err != nil {
			s.log.Warn("sweep: release stale claim", "ref", ref.String(), "error", err)
			continue
		}
		result.Requeued = append(result.Requeued, moved)
		s.log.Info("stale claim requeued", "ref", moved.String(), "attempts", rec.Attempts, "was_owner", rec.Owner)
	}

	return result, nil
}

// StageCounts returns the number of records in each stage. Claimed records
// are counted across all worker sub-locations.
func (s *Store) StageCounts() (map[Stage]int, error) {
	counts := make(map[Stage]int, len(Stages()))
	for _, stage := range Stages() {
		if stage == StageInProgress {
			refs, err := s.ListClaimed()
			if err != nil {
				return nil, err
			}
			counts[stage] = len(refs)
			continue
		}
		refs, err := s.List(stage, "")
		if err != nil {
			return nil, err
		}
		counts[stage] = len(refs)
	}
	return counts, nil
}
