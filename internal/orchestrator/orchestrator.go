// Package orchestrator drives the vault through repeated passes.
//
// Each pass runs, in order: intake with dedup, execution of approved
// actions, claim-and-dispatch of actionable items, the approval expiry
// sweep, and the stale-claim sweep. Approved work runs before new claims
// so a human decision is never left waiting behind fresh intake.
//
// The loop is crash-tolerant rather than crash-free: every mutation is a
// rename, so a pass dying mid-flight leaves each item in exactly one
// stage and the next pass (here or in another process) picks up where it
// left off. No per-item failure aborts a pass; the only failure that
// stops the loop is an authentication error from the engine, which no
// amount of retrying fixes.
package orchestrator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tbonner/vaultd/internal/approval"
	"github.com/tbonner/vaultd/internal/audit"
	"github.com/tbonner/vaultd/internal/dashboard"
	"github.com/tbonner/vaultd/internal/dedup"
	"github.com/tbonner/vaultd/internal/engine"
	"github.com/tbonner/vaultd/internal/errors"
	"github.com/tbonner/vaultd/internal/event"
	"github.com/tbonner/vaultd/internal/logging"
	"github.com/tbonner/vaultd/internal/vault"
)

// Options configures an Orchestrator.
type Options struct {
	// Worker names this instance's private In_Progress sub-location.
	Worker string

	// StaleAfter is the claim age beyond which the sweep assumes the
	// owning worker died.
	StaleAfter time.Duration

	// AttemptCeiling is how many attempts an item gets before quarantine.
	AttemptCeiling int

	// ApprovalTTL is how long pending approval requests wait before the
	// expiry sweep rejects them.
	ApprovalTTL time.Duration
}

// Summary reports what one pass did.
type Summary struct {
	Admitted    int
	Deduped     int
	Claimed     int
	Completed   int
	HeldForOK   int
	Requeued    int
	Quarantined int
	Expired     int
}

// Orchestrator wires the store, ledger, gate, and engine into the
// coordination loop.
type Orchestrator struct {
	store  *vault.Store
	ledger *dedup.Ledger
	gate   *approval.Gate
	eng    engine.Engine
	audit  *audit.Log
	dash   *dashboard.Writer
	bus    *event.Bus
	log    *logging.Logger
	opts   Options

	// now is replaceable for tests.
	now func() time.Time
}

// New creates an Orchestrator. The audit log, dashboard, and bus are
// optional; nil disables them.
func New(store *vault.Store, ledger *dedup.Ledger, gate *approval.Gate, eng engine.Engine,
	auditLog *audit.Log, dash *dashboard.Writer, bus *event.Bus, log *logging.Logger, opts Options) *Orchestrator {

	if log == nil {
		log = logging.Nop()
	}
	if bus == nil {
		bus = event.NewBus()
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 30 * time.Minute
	}
	if opts.AttemptCeiling < 1 {
		opts.AttemptCeiling = 3
	}
	if opts.ApprovalTTL <= 0 {
		opts.ApprovalTTL = approval.DefaultTTL
	}
	if opts.Worker == "" {
		opts.Worker = "worker"
	}

	return &Orchestrator{
		store:  store,
		ledger: ledger,
		gate:   gate,
		eng:    eng,
		audit:  auditLog,
		dash:   dash,
		bus:    bus,
		log:    log.WithWorker(opts.Worker),
		opts:   opts,
		now:    time.Now,
	}
}

// Bus returns the event bus passes publish on.
func (o *Orchestrator) Bus() *event.Bus { return o.bus }

// Run executes passes every interval until ctx is cancelled. It returns
// early only for authentication failures, which need operator attention.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration) error {
	o.log.Info("orchestration loop started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		summary, err := o.RunOnce(ctx)
		if err != nil {
			if errors.IsAuth(err) {
				o.log.Error("halting: engine authentication failed", "error", err)
				if o.audit != nil {
					_ = o.audit.Append("halt", err.Error(), audit.StatusError)
				}
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.log.Error("pass failed", "error", err)
			if o.audit != nil {
				_ = o.audit.Append("pass", err.Error(), audit.StatusError)
			}
		} else {
			o.log.Debug("pass completed",
				"admitted", summary.Admitted, "deduped", summary.Deduped,
				"claimed", summary.Claimed, "completed", summary.Completed,
				"requeued", summary.Requeued, "quarantined", summary.Quarantined,
				"expired", summary.Expired)
		}

		select {
		case <-ctx.Done():
			o.log.Info("orchestration loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single pass.
func (o *Orchestrator) RunOnce(ctx context.Context) (Summary, error) {
	var sum Summary

	if err := o.intakePass(ctx, &sum); err != nil {
		return sum, err
	}
	if err := o.approvedPass(ctx, &sum); err != nil {
		return sum, err
	}
	if err := o.dispatchPass(ctx, &sum); err != nil {
		return sum, err
	}
	o.expiryPass(&sum)
	o.stalePass(&sum)

	o.bus.Publish(event.NewPassCompletedEvent(
		sum.Admitted, sum.Deduped, sum.Claimed, sum.Completed,
		sum.Requeued, sum.Quarantined, sum.Expired))
	return sum, nil
}

// intakePass admits Inbox items into Needs_Action, dropping duplicates
// through the content-hash ledger.
func (o *Orchestrator) intakePass(ctx context.Context, sum *Summary) error {
	refs, err := o.store.List(vault.StageInbox, "")
	if err != nil {
		return err
	}

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := o.store.Read(ref)
		if err != nil {
			o.log.Warn("intake: unreadable record", "ref", ref.String(), "error", err)
			continue
		}
		if rec.ContentHash == "" {
			// No payload and no body means there is nothing meaningful to
			// dedup on, so fall back to the unique id.
			basis := rec.Body
			if basis == "" {
				basis = rec.ID
			}
			rec.ContentHash = dedup.HashBytes([]byte(basis))
			if err := o.store.Update(ref, rec); err != nil {
				o.log.Warn("intake: stamp hash", "ref", ref.String(), "error", err)
				continue
			}
		}

		original, err := o.ledger.Admit(rec.ContentHash, rec.ID)
		switch {
		case errors.Is(err, errors.ErrDuplicateContent) && original == rec.ID:
			// The ledger already names this record: a prior pass admitted it
			// and stopped before the move. Finish the admission, never drop
			// a record as a duplicate of itself.
			o.log.Debug("intake: resuming interrupted admission", "id", rec.ID)
		case errors.Is(err, errors.ErrDuplicateContent):
			o.bus.Publish(event.NewDedupEvent(rec.ID, rec.ContentHash, original))
			o.log.Debug("intake: duplicate dropped", "id", rec.ID, "original", original)
			if err := o.store.Remove(ref); err != nil {
				o.log.Warn("intake: remove duplicate", "ref", ref.String(), "error", err)
			}
			sum.Deduped++
			continue
		case err != nil:
			o.log.Warn("intake: ledger admit", "ref", ref.String(), "error", err)
			continue
		}

		if _, err := o.store.Move(ref, vault.StageNeedsAction, ""); err != nil {
			o.log.Warn("intake: admit to Needs_Action", "ref", ref.String(), "error", err)
			continue
		}
		o.bus.Publish(event.NewTransitionEvent(rec.ID,
			string(vault.StageInbox), string(vault.StageNeedsAction), audit.StatusSuccess, "admitted"))
		sum.Admitted++
	}
	return nil
}

// approvedPass executes actions a human has approved. These run before any
// new claims so decisions are acted on promptly.
func (o *Orchestrator) approvedPass(ctx context.Context, sum *Summary) error {
	refs, err := o.store.List(vault.StageApproved, "")
	if err != nil {
		return err
	}

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := o.store.Read(ref)
		if err != nil {
			o.log.Warn("approved: unreadable record", "ref", ref.String(), "error", err)
			continue
		}

		outcome, err := o.invoke(ctx, rec)
		if err != nil {
			if errors.IsAuth(err) {
				return err
			}
			if errors.IsClassification(err) {
				o.quarantine(ref, rec, err.Error(), sum)
				continue
			}
			o.log.Warn("approved: dispatch", "ref", ref.String(), "error", err)
			continue
		}

		switch outcome.Class {
		case engine.ClassSuccess:
			o.complete(ref, rec, outcome.Summary, sum)

		case engine.ClassTransient:
			rec.Attempts++
			rec.LastError = outcome.Detail
			if rec.Attempts >= o.opts.AttemptCeiling {
				o.quarantine(ref, rec, outcome.Detail, sum)
				continue
			}
			if err := o.store.Update(ref, rec); err != nil {
				o.log.Warn("approved: record attempt", "ref", ref.String(), "error", err)
				continue
			}
			if _, err := o.store.Move(ref, vault.StageNeedsAction, ""); err != nil {
				o.log.Warn("approved: requeue", "ref", ref.String(), "error", err)
				continue
			}
			sum.Requeued++

		default:
			// needs-approval from an already approved item makes no sense,
			// and permanent failures are not retried.
			o.quarantine(ref, rec, outcome.Detail, sum)
		}
	}
	return nil
}

// dispatchPass claims actionable items and runs the engine on each.
func (o *Orchestrator) dispatchPass(ctx context.Context, sum *Summary) error {
	refs, err := o.store.List(vault.StageNeedsAction, "")
	if err != nil {
		return err
	}

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}

		claimed, err := o.store.Claim(ref, o.opts.Worker)
		if errors.Is(err, errors.ErrAlreadyClaimed) {
			o.bus.Publish(event.NewClaimLostEvent(ref.ID(), o.opts.Worker))
			o.log.Debug("claim lost", "ref", ref.String())
			continue
		}
		if err != nil {
			o.log.Warn("claim failed", "ref", ref.String(), "error", err)
			continue
		}
		sum.Claimed++

		rec, err := o.store.Read(claimed)
		if err != nil {
			o.log.Warn("dispatch: unreadable record", "ref", claimed.String(), "error", err)
			continue
		}

		if err := o.dispatch(ctx, claimed, rec, sum); err != nil {
			if errors.IsAuth(err) {
				return err
			}
			o.log.Warn("dispatch failed", "ref", claimed.String(), "error", err)
		}
	}
	return nil
}

// dispatch runs the engine for one claimed item and routes the outcome.
func (o *Orchestrator) dispatch(ctx context.Context, ref vault.Ref, rec *vault.Record, sum *Summary) error {
	outcome, err := o.invoke(ctx, rec)
	if err != nil {
		if errors.IsClassification(err) {
			o.quarantine(ref, rec, err.Error(), sum)
			return nil
		}
		return err
	}

	switch outcome.Class {
	case engine.ClassSuccess:
		o.complete(ref, rec, outcome.Summary, sum)
		return nil

	case engine.ClassNeedsApproval:
		held, err := o.gate.Hold(ref, outcome.ActionType, outcome.Justification, o.opts.ApprovalTTL)
		if err != nil {
			return err
		}
		o.bus.Publish(event.NewTransitionEvent(rec.ID,
			string(vault.StageInProgress), string(vault.StagePendingApproval),
			audit.StatusSuccess, "awaiting approval: "+outcome.ActionType))
		o.log.Info("held for approval", "id", rec.ID, "ref", held.String(), "action", outcome.ActionType)
		sum.HeldForOK++
		return nil

	case engine.ClassTransient:
		rec.Attempts++
		rec.LastError = outcome.Detail
		if rec.Attempts >= o.opts.AttemptCeiling {
			o.quarantine(ref, rec, outcome.Detail, sum)
			return nil
		}
		if err := o.store.Update(ref, rec); err != nil {
			return err
		}
		if _, err := o.store.Release(ref); err != nil {
			return err
		}
		o.bus.Publish(event.NewTransitionEvent(rec.ID,
			string(vault.StageInProgress), string(vault.StageNeedsAction),
			audit.StatusError, outcome.Detail))
		sum.Requeued++
		return nil

	default:
		o.quarantine(ref, rec, outcome.Detail, sum)
		return nil
	}
}

// invoke runs the engine with short in-pass retries for transient
// failures, so one rate-limited moment does not burn a whole attempt.
func (o *Orchestrator) invoke(ctx context.Context, rec *vault.Record) (*engine.Outcome, error) {
	var outcome *engine.Outcome

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	err := backoff.Retry(func() error {
		out, err := o.eng.Process(ctx, engine.Request{Record: rec, WorkDir: o.store.Root()})
		if err != nil {
			return backoff.Permanent(err)
		}
		outcome = out
		if out.Class == engine.ClassTransient {
			return errors.NewTransientError("engine invocation", errors.New(out.Detail))
		}
		return nil
	}, policy)

	if err != nil && outcome == nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return nil, err
	}
	// Retries exhausted on a transient outcome: hand it back as such.
	return outcome, nil
}

// complete moves a finished item to Done.
func (o *Orchestrator) complete(ref vault.Ref, rec *vault.Record, summary string, sum *Summary) {
	done, err := o.store.Move(ref, vault.StageDone, "")
	if err != nil {
		o.log.Warn("complete: move to Done", "ref", ref.String(), "error", err)
		return
	}
	o.bus.Publish(event.NewTransitionEvent(rec.ID,
		string(ref.Stage), string(vault.StageDone), audit.StatusSuccess, summary))
	o.recordDashboard("completed", rec.ID+": "+summary)
	o.log.Info("item completed", "id", rec.ID, "ref", done.String())
	sum.Completed++
}

// quarantine parks a failed item for human triage.
func (o *Orchestrator) quarantine(ref vault.Ref, rec *vault.Record, detail string, sum *Summary) {
	rec.LastError = detail
	if err := o.store.Update(ref, rec); err != nil {
		o.log.Warn("quarantine: record error", "ref", ref.String(), "error", err)
	}
	if _, err := o.store.Move(ref, vault.StageQuarantine, ""); err != nil {
		o.log.Warn("quarantine: move", "ref", ref.String(), "error", err)
		return
	}
	o.bus.Publish(event.NewTransitionEvent(rec.ID,
		string(ref.Stage), string(vault.StageQuarantine), audit.StatusError, detail))
	o.recordDashboard("quarantined", rec.ID+": "+detail)
	o.log.Warn("item quarantined", "id", rec.ID, "detail", detail)
	sum.Quarantined++
}

// expiryPass auto-rejects approval requests whose decision window closed.
func (o *Orchestrator) expiryPass(sum *Summary) {
	rejected, err := o.gate.SweepExpired(o.now())
	if err != nil {
		o.log.Warn("expiry sweep failed", "error", err)
		return
	}
	for _, ref := range rejected {
		o.bus.Publish(event.NewTransitionEvent(ref.ID(),
			string(vault.StagePendingApproval), string(vault.StageRejected),
			audit.StatusDropped, "expired"))
	}
	sum.Expired += len(rejected)
}

// stalePass requeues or quarantines claims whose workers went quiet.
func (o *Orchestrator) stalePass(sum *Summary) {
	result, err := o.store.SweepStaleClaims(o.now(), o.opts.StaleAfter, o.opts.AttemptCeiling)
	if err != nil {
		o.log.Warn("stale-claim sweep failed", "error", err)
		return
	}
	for _, ref := range result.Requeued {
		o.bus.Publish(event.NewTransitionEvent(ref.ID(),
			string(vault.StageInProgress), string(vault.StageNeedsAction),
			audit.StatusError, "stale claim requeued"))
	}
	for _, ref := range result.Quarantined {
		o.bus.Publish(event.NewTransitionEvent(ref.ID(),
			string(vault.StageInProgress), string(vault.StageQuarantine),
			audit.StatusError, "attempt ceiling reached"))
	}
	sum.Requeued += len(result.Requeued)
	sum.Quarantined += len(result.Quarantined)
}

// recordDashboard appends a dashboard line when this instance holds the
// writer token.
func (o *Orchestrator) recordDashboard(action, details string) {
	if o.dash == nil || !o.dash.HoldsToken() {
		return
	}
	if err := o.dash.Record(action, details); err != nil {
		o.log.Warn("dashboard update failed", "error", err)
	}
}
