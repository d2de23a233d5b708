package vault

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Stage }{
		{StageInbox, StageNeedsAction},
		{StageNeedsAction, StageInProgress},
		{StageInProgress, StagePendingApproval},
		{StageInProgress, StageDone},
		{StageInProgress, StageNeedsAction},
		{StageInProgress, StageQuarantine},
		{StagePendingApproval, StageApproved},
		{StagePendingApproval, StageRejected},
		{StageApproved, StageDone},
		{StageApproved, StageNeedsAction},
		{StageApproved, StageQuarantine},
	}
	for _, tr := range allowed {
		if !CanTransition(tr.from, tr.to) {
			t.Errorf("CanTransition(%s, %s) = false, want true", tr.from, tr.to)
		}
	}

	denied := []struct{ from, to Stage }{
		{StageInbox, StageDone},             // skips dedup and claim
		{StageInbox, StageInProgress},       // skips Needs_Action
		{StageNeedsAction, StageDone},       // skips claim
		{StageNeedsAction, StageApproved},   // skips the gate
		{StagePendingApproval, StageDone},   // skips the human decision
		{StageDone, StageNeedsAction},       // terminal stages have no exits
		{StageRejected, StageApproved},      //
		{StageQuarantine, StageNeedsAction}, //
	}
	for _, tr := range denied {
		if CanTransition(tr.from, tr.to) {
			t.Errorf("CanTransition(%s, %s) = true, want false", tr.from, tr.to)
		}
	}
}

func TestTerminalStages(t *testing.T) {
	for _, stage := range Stages() {
		terminal := stage == StageDone || stage == StageRejected || stage == StageQuarantine
		if stage.IsTerminal() != terminal {
			t.Errorf("%s.IsTerminal() = %v, want %v", stage, stage.IsTerminal(), terminal)
		}
		if terminal && len(legalTransitions[stage]) != 0 {
			t.Errorf("terminal stage %s has outgoing transitions", stage)
		}
	}
}
