// Package approval implements the human-in-the-loop checkpoint for
// sensitive actions.
//
// The gate never decides anything itself: a submitted request always lands
// in Pending_Approval, and the decision is expressed purely as a file move
// by the human reviewer (to Approved or Rejected), observed by the
// orchestrator on its next poll. The gate's own Approve/Reject methods
// exist for the CLI convenience commands and perform the same move the
// reviewer would, stamping the decision fields once the move has landed.
//
// Undecided requests do not live forever: SweepExpired auto-rejects any
// request whose expiry elapsed, recording the reason "expired". A manual
// rejection with no reason is invalid; an expiry rejection defaults its
// reason.
package approval

import (
	"fmt"
	"time"

	"github.com/tbonner/vaultd/internal/errors"
	"github.com/tbonner/vaultd/internal/logging"
	"github.com/tbonner/vaultd/internal/vault"
)

// DefaultTTL is how long a request waits for a decision before the expiry
// sweep rejects it.
const DefaultTTL = 24 * time.Hour

// Gate manages approval requests in the vault's Pending_Approval stage.
type Gate struct {
	store *vault.Store
	log   *logging.Logger
}

// NewGate creates a Gate over the given store.
func NewGate(store *vault.Store, log *logging.Logger) *Gate {
	if log == nil {
		log = logging.Nop()
	}
	return &Gate{store: store, log: log}
}

// SubmitRequest describes a sensitive action awaiting approval.
type SubmitRequest struct {
	ActionType    string
	Justification string
	Priority      vault.Priority
	Body          string
	TTL           time.Duration // zero means DefaultTTL
}

// Submit creates a new approval request. It always lands in
// Pending_Approval with a pending decision; nothing is ever auto-approved.
func (g *Gate) Submit(req SubmitRequest) (vault.Ref, *vault.Record, error) {
	if req.ActionType == "" {
		return vault.Ref{}, nil, fmt.Errorf("approval: action type is required")
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	priority := req.Priority
	if priority == "" {
		priority = vault.PriorityHigh
	}

	rec := vault.NewRecord(vault.KindApprovalRequest, priority)
	expiry := rec.CreatedAt.Add(ttl)
	rec.ActionType = req.ActionType
	rec.Justification = req.Justification
	rec.Expiry = &expiry
	rec.Decision = vault.DecisionPending
	rec.Body = req.Body

	ref, err := g.store.WriteNew(vault.StagePendingApproval, "", rec)
	if err != nil {
		return vault.Ref{}, nil, err
	}

	g.log.Info("approval request submitted", "id", rec.ID, "action_type", req.ActionType, "expiry", expiry)
	return ref, rec, nil
}

// Hold moves an already-claimed record into Pending_Approval, stamping the
// approval fields. Used when the reasoning engine classifies a claimed
// item's action as sensitive.
func (g *Gate) Hold(ref vault.Ref, actionType, justification string, ttl time.Duration) (vault.Ref, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	rec, err := g.store.Read(ref)
	if err != nil {
		return vault.Ref{}, err
	}

	expiry := time.Now().UTC().Truncate(time.Second).Add(ttl)
	rec.ActionType = actionType
	rec.Justification = justification
	rec.Expiry = &expiry
	rec.Decision = vault.DecisionPending
	if err := g.store.Update(ref, rec); err != nil {
		return vault.Ref{}, err
	}

	moved, err := g.store.Move(ref, vault.StagePendingApproval, "")
	if err != nil {
		return vault.Ref{}, err
	}
	g.log.Info("item held for approval", "id", rec.ID, "action_type", actionType)
	return moved, nil
}

// Pending returns refs for every request awaiting a decision.
func (g *Gate) Pending() ([]vault.Ref, error) {
	return g.store.List(vault.StagePendingApproval, "")
}

// Approve moves the request to Approved, where the orchestrator will
// execute it, then stamps the approved decision.
//
// Pending_Approval has two movers, the human reviewer and the expiry
// sweep, so every decision moves first and stamps at the destination.
// A lost race surfaces as ErrNotFound instead of a second copy of the
// record at the old location.
func (g *Gate) Approve(id string) (vault.Ref, error) {
	ref, rec, err := g.findPending(id)
	if err != nil {
		return vault.Ref{}, err
	}

	moved, err := g.store.Move(ref, vault.StageApproved, "")
	if err != nil {
		return vault.Ref{}, err
	}

	rec.Decision = vault.DecisionApproved
	if err := g.store.Update(moved, rec); err != nil {
		return vault.Ref{}, err
	}
	g.log.Info("request approved", "id", id)
	return moved, nil
}

// Reject moves the request to Rejected, then stamps the rejected decision
// and reason. A manual rejection without a reason is invalid. Move-first
// ordering, see Approve.
func (g *Gate) Reject(id, reason string) (vault.Ref, error) {
	if reason == "" {
		return vault.Ref{}, fmt.Errorf("approval: reject %s: %w", id, errors.ErrReasonRequired)
	}

	ref, rec, err := g.findPending(id)
	if err != nil {
		return vault.Ref{}, err
	}

	moved, err := g.store.Move(ref, vault.StageRejected, "")
	if err != nil {
		return vault.Ref{}, err
	}

	rec.Decision = vault.DecisionRejected
	rec.DecisionReason = reason
	if err := g.store.Update(moved, rec); err != nil {
		return vault.Ref{}, err
	}
	g.log.Info("request rejected", "id", id, "reason", reason)
	return moved, nil
}

// SweepExpired auto-rejects every pending request whose expiry has elapsed,
// with the decision reason "expired". Returns the newly rejected refs.
func (g *Gate) SweepExpired(now time.Time) ([]vault.Ref, error) {
	refs, err := g.Pending()
	if err != nil {
		return nil, err
	}

	var rejected []vault.Ref
	for _, ref := range refs {
		rec, err := g.store.Read(ref)
		if err != nil {
			g.log.Warn("expiry sweep: unreadable request", "ref", ref.String(), "error", err)
			continue
		}
		if !rec.IsExpired(now) {
			continue
		}

		moved, ok := g.rejectExpired(ref, rec)
		if !ok {
			continue
		}
		rejected = append(rejected, moved)
		g.log.Info("request expired", "id", rec.ID, "expiry", rec.Expiry)
	}
	return rejected, nil
}

// rejectExpired moves one expired request to Rejected and stamps the
// decision at the destination. Move-first ordering, see Approve: a
// reviewer deciding the request mid-sweep wins the rename, the move
// fails with ErrNotFound, and the sweep skips it rather than recreating
// a copy at the old location.
func (g *Gate) rejectExpired(ref vault.Ref, rec *vault.Record) (vault.Ref, bool) {
	moved, err := g.store.Move(ref, vault.StageRejected, "")
	if errors.Is(err, errors.ErrNotFound) {
		g.log.Debug("expiry sweep: request decided elsewhere", "ref", ref.String())
		return vault.Ref{}, false
	}
	if err != nil {
		g.log.Warn("expiry sweep: move to Rejected", "ref", ref.String(), "error", err)
		return vault.Ref{}, false
	}

	rec.Decision = vault.DecisionRejected
	rec.DecisionReason = vault.DecisionReasonExpired
	if err := g.store.Update(moved, rec); err != nil {
		g.log.Warn("expiry sweep: stamp decision", "ref", moved.String(), "error", err)
	}
	return moved, true
}

// findPending locates a pending request by record id.
func (g *Gate) findPending(id string) (vault.Ref, *vault.Record, error) {
	refs, err := g.Pending()
	if err != nil {
		return vault.Ref{}, nil, err
	}
	for _, ref := range refs {
		if ref.ID() != id {
			continue
		}
		rec, err := g.store.Read(ref)
		if err != nil {
			return vault.Ref{}, nil, err
		}
		return ref, rec, nil
	}
	return vault.Ref{}, nil, fmt.Errorf("approval: request %s: %w", id, errors.ErrNotFound)
}
