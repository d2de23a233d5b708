package vault

// Stage identifies one lifecycle state. The stage name is also the
// directory name under the vault root, so the stage value and the record's
// physical location are the same fact.
type Stage string

const (
	// StageInbox holds freshly deposited items awaiting dedup.
	StageInbox Stage = "Inbox"

	// StageNeedsAction is the shared claimable queue.
	StageNeedsAction Stage = "Needs_Action"

	// StageInProgress holds claimed items, namespaced per worker:
	// In_Progress/<worker>/<id>.md.
	StageInProgress Stage = "In_Progress"

	// StagePendingApproval holds sensitive actions awaiting a human decision.
	StagePendingApproval Stage = "Pending_Approval"

	// StageApproved holds human-approved actions awaiting execution.
	StageApproved Stage = "Approved"

	// StageRejected is terminal: the human declined, or the request expired.
	StageRejected Stage = "Rejected"

	// StageDone is terminal: the action completed successfully.
	StageDone Stage = "Done"

	// StageQuarantine is terminal: retry ceiling exceeded or a non-retryable
	// failure. Requires human triage.
	StageQuarantine Stage = "Quarantine"
)

// Stages lists every stage in lifecycle order.
func Stages() []Stage {
	return []Stage{
		StageInbox,
		StageNeedsAction,
		StageInProgress,
		StagePendingApproval,
		StageApproved,
		StageRejected,
		StageDone,
		StageQuarantine,
	}
}

// String returns the stage's directory name.
func (s Stage) String() string {
	return string(s)
}

// IsTerminal reports whether the stage is a final state.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageRejected || s == StageQuarantine
}

// legalTransitions is the lifecycle graph. A transition absent from this
// table is rejected with ErrInvalidTransition regardless of who requests it.
var legalTransitions = map[Stage][]Stage{
	StageInbox:       {StageNeedsAction},
	StageNeedsAction: {StageInProgress, StageQuarantine},
	StageInProgress: {
		StagePendingApproval, // action classified as sensitive
		StageDone,            // auto-processable action succeeded
		StageNeedsAction,     // retryable failure or stale-claim requeue
		StageQuarantine,
	},
	StagePendingApproval: {StageApproved, StageRejected, StageQuarantine},
	StageApproved: {
		StageDone,
		StageNeedsAction, // retryable failure during execution
		StageQuarantine,
	},
}

// CanTransition reports whether the lifecycle graph permits moving a record
// from one stage to another. Terminal stages have no outgoing edges.
func CanTransition(from, to Stage) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
