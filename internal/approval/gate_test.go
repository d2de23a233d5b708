package approval

import (
	"testing"
	"time"

	"github.com/tbonner/vaultd/internal/errors"
	"github.com/tbonner/vaultd/internal/vault"
)

func newTestGate(t *testing.T) (*Gate, *vault.Store) {
	t.Helper()
	store := vault.NewStore(t.TempDir(), nil)
	if err := store.Init(); err != nil {
		t.Fatalf("init store: %v", err)
	}
	return NewGate(store, nil), store
}

func TestSubmitLandsPending(t *testing.T) {
	gate, store := newTestGate(t)

	ref, rec, err := gate.Submit(SubmitRequest{
		ActionType:    "send_email",
		Justification: "weekly report to the client",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ref.Stage != vault.StagePendingApproval {
		t.Fatalf("stage = %s, want %s", ref.Stage, vault.StagePendingApproval)
	}

	got, err := store.Read(ref)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Decision != vault.DecisionPending {
		t.Errorf("decision = %q, want pending", got.Decision)
	}
	if got.ActionType != "send_email" {
		t.Errorf("action type = %q", got.ActionType)
	}
	if got.Expiry == nil {
		t.Fatal("expiry not stamped")
	}
	wantExpiry := rec.CreatedAt.Add(DefaultTTL)
	if !got.Expiry.Equal(wantExpiry) {
		t.Errorf("expiry = %v, want %v", got.Expiry, wantExpiry)
	}
}

func TestSubmitRequiresActionType(t *testing.T) {
	gate, _ := newTestGate(t)
	if _, _, err := gate.Submit(SubmitRequest{}); err == nil {
		t.Fatal("expected error for empty action type")
	}
}

func TestApproveMovesToApproved(t *testing.T) {
	gate, store := newTestGate(t)

	_, rec, err := gate.Submit(SubmitRequest{ActionType: "post_message"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	moved, err := gate.Approve(rec.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if moved.Stage != vault.StageApproved {
		t.Fatalf("stage = %s, want %s", moved.Stage, vault.StageApproved)
	}

	got, err := store.Read(moved)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Decision != vault.DecisionApproved {
		t.Errorf("decision = %q, want approved", got.Decision)
	}

	pending, err := gate.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending count = %d, want 0", len(pending))
	}
}

func TestRejectRequiresReason(t *testing.T) {
	gate, _ := newTestGate(t)

	_, rec, err := gate.Submit(SubmitRequest{ActionType: "delete_files"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := gate.Reject(rec.ID, ""); !errors.Is(err, errors.ErrReasonRequired) {
		t.Fatalf("err = %v, want ErrReasonRequired", err)
	}

	pending, err := gate.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending count = %d, want 1 (reasonless reject must not move the request)", len(pending))
	}
}

func TestRejectStampsReason(t *testing.T) {
	gate, store := newTestGate(t)

	_, rec, err := gate.Submit(SubmitRequest{ActionType: "delete_files"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	moved, err := gate.Reject(rec.ID, "too destructive")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if moved.Stage != vault.StageRejected {
		t.Fatalf("stage = %s, want %s", moved.Stage, vault.StageRejected)
	}

	got, err := store.Read(moved)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Decision != vault.DecisionRejected {
		t.Errorf("decision = %q, want rejected", got.Decision)
	}
	if got.DecisionReason != "too destructive" {
		t.Errorf("reason = %q", got.DecisionReason)
	}
}

func TestDecisionOnUnknownID(t *testing.T) {
	gate, _ := newTestGate(t)
	if _, err := gate.Approve("no-such-id"); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("Approve err = %v, want ErrNotFound", err)
	}
	if _, err := gate.Reject("no-such-id", "whatever"); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("Reject err = %v, want ErrNotFound", err)
	}
}

func TestHoldClaimedItem(t *testing.T) {
	gate, store := newTestGate(t)

	rec := vault.NewRecord(vault.KindMessage, vault.PriorityNormal)
	ref, err := store.WriteNew(vault.StageNeedsAction, "", rec)
	if err != nil {
		t.Fatalf("WriteNew: %v", err)
	}
	claimed, err := store.Claim(ref, "worker-1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}

	held, err := gate.Hold(claimed, "send_email", "reply drafted by engine", time.Hour)
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}
	if held.Stage != vault.StagePendingApproval {
		t.Fatalf("stage = %s, want %s", held.Stage, vault.StagePendingApproval)
	}

	got, err := store.Read(held)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Decision != vault.DecisionPending {
		t.Errorf("decision = %q, want pending", got.Decision)
	}
	if got.ActionType != "send_email" {
		t.Errorf("action type = %q", got.ActionType)
	}
	if got.Expiry == nil {
		t.Error("expiry not stamped")
	}
}

func TestSweepExpiredRejectsWithReason(t *testing.T) {
	gate, store := newTestGate(t)

	_, fresh, err := gate.Submit(SubmitRequest{ActionType: "post_message", TTL: 48 * time.Hour})
	if err != nil {
		t.Fatalf("Submit fresh: %v", err)
	}
	_, stale, err := gate.Submit(SubmitRequest{ActionType: "send_email", TTL: 24 * time.Hour})
	if err != nil {
		t.Fatalf("Submit stale: %v", err)
	}

	// One hour past the stale request's expiry, still inside the fresh one's.
	now := stale.CreatedAt.Add(25 * time.Hour)
	rejected, err := gate.SweepExpired(now)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if len(rejected) != 1 {
		t.Fatalf("rejected count = %d, want 1", len(rejected))
	}

	got, err := store.Read(rejected[0])
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.ID != stale.ID {
		t.Errorf("rejected id = %s, want %s", got.ID, stale.ID)
	}
	if got.Decision != vault.DecisionRejected {
		t.Errorf("decision = %q, want rejected", got.Decision)
	}
	if got.DecisionReason != vault.DecisionReasonExpired {
		t.Errorf("reason = %q, want %q", got.DecisionReason, vault.DecisionReasonExpired)
	}

	pending, err := gate.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID() != fresh.ID {
		t.Errorf("pending after sweep = %v, want only %s", pending, fresh.ID)
	}
}

// A reviewer can decide a request in the window between the sweep reading
// it and moving it. The sweep must lose that race cleanly: skip the
// request and leave the reviewer's copy as the only one.
func TestSweepSkipsRequestDecidedMidSweep(t *testing.T) {
	gate, store := newTestGate(t)

	_, rec, err := gate.Submit(SubmitRequest{ActionType: "send_email", TTL: time.Hour})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	refs, err := gate.Pending()
	if err != nil || len(refs) != 1 {
		t.Fatalf("Pending refs = %v, err %v", refs, err)
	}
	stale := refs[0]
	read, err := store.Read(stale)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	// The reviewer decides while the sweep holds the stale ref.
	approved, err := gate.Approve(rec.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if _, ok := gate.rejectExpired(stale, read); ok {
		t.Fatal("sweep rejected a request the reviewer already decided")
	}

	// Exactly one copy remains, at the reviewer's destination.
	for _, stage := range []vault.Stage{vault.StagePendingApproval, vault.StageRejected} {
		got, err := store.List(stage, "")
		if err != nil {
			t.Fatalf("List %s: %v", stage, err)
		}
		if len(got) != 0 {
			t.Errorf("%s holds %d records, want 0", stage, len(got))
		}
	}
	final, err := store.Read(approved)
	if err != nil {
		t.Fatalf("Read approved: %v", err)
	}
	if final.Decision != vault.DecisionApproved {
		t.Errorf("decision = %q, want approved", final.Decision)
	}
}
