// Package engine defines the contract with the external reasoning engine
// and an implementation that shells out to a CLI.
//
// The engine is deliberately opaque: it receives a prompt describing one
// vault item and replies with a verdict line. Everything else about how it
// reasons is outside this system's concern. The verdict contract is a
// single "RESULT:" line in the output:
//
//	RESULT: done
//	RESULT: needs-approval action=<type> justification=<text>
//	RESULT: error <detail>
//
// Output with no parseable RESULT line is a classification failure and the
// item is quarantined rather than guessed at.
package engine

import (
	"context"

	"github.com/tbonner/vaultd/internal/vault"
)

// Class is the outcome classification of one engine invocation.
type Class string

const (
	// ClassSuccess means the item was fully handled.
	ClassSuccess Class = "success"

	// ClassNeedsApproval means the engine wants to perform a sensitive
	// action and is asking for a human decision first.
	ClassNeedsApproval Class = "needs-approval"

	// ClassTransient means the attempt failed in a way that may succeed
	// on retry, such as a timeout or rate limit.
	ClassTransient Class = "transient-error"

	// ClassPermanent means the attempt failed and retrying will not help.
	ClassPermanent Class = "permanent-error"
)

// Request carries one vault item to the reasoning engine.
type Request struct {
	Record *vault.Record

	// Prompt overrides the prompt built from the record. Optional.
	Prompt string

	// WorkDir is the directory the engine runs in, normally the vault root
	// so the engine can read referenced artifacts.
	WorkDir string
}

// Outcome is the classified result of one engine invocation.
type Outcome struct {
	Class Class

	// Summary is the engine's free-text account of what it did.
	Summary string

	// ActionType and Justification are set only for needs-approval
	// outcomes and describe the action awaiting a decision.
	ActionType    string
	Justification string

	// Detail carries the failure description for error classes.
	Detail string
}

// Engine processes vault items. Process returns a classified Outcome for
// anything that counts as "the engine answered", including transient and
// permanent failures. Errors are reserved for conditions the orchestrator
// must treat specially: AuthError (halt the loop) and ClassificationError
// (quarantine without retry).
type Engine interface {
	Process(ctx context.Context, req Request) (*Outcome, error)
}
