// Package event defines event types for decoupling vaultd components.
// The orchestrator publishes one event per attempted stage transition;
// the audit log and dashboard writer subscribe without the orchestrator
// depending on either.
package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "item.transitioned", "item.deduped")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// TransitionEvent is emitted for every attempted stage transition,
// successful or not.
type TransitionEvent struct {
	baseEvent
	ItemID string
	From   string
	To     string
	Status string // "success" or "error"
	Detail string
}

// EventTypeTransition is the event type string for TransitionEvent.
const EventTypeTransition = "item.transitioned"

// NewTransitionEvent creates a TransitionEvent.
func NewTransitionEvent(itemID, from, to, status, detail string) TransitionEvent {
	return TransitionEvent{
		baseEvent: newBaseEvent(EventTypeTransition),
		ItemID:    itemID,
		From:      from,
		To:        to,
		Status:    status,
		Detail:    detail,
	}
}

// DedupEvent is emitted when an intake item is dropped as a duplicate.
type DedupEvent struct {
	baseEvent
	ItemID     string
	Hash       string
	OriginalID string // the surviving item that first produced the hash
}

// EventTypeDedup is the event type string for DedupEvent.
const EventTypeDedup = "item.deduped"

// NewDedupEvent creates a DedupEvent.
func NewDedupEvent(itemID, hash, originalID string) DedupEvent {
	return DedupEvent{
		baseEvent:  newBaseEvent(EventTypeDedup),
		ItemID:     itemID,
		Hash:       hash,
		OriginalID: originalID,
	}
}

// ClaimLostEvent is emitted when a worker loses a claim race. Debug-level
// information only; losing a race is a normal outcome.
type ClaimLostEvent struct {
	baseEvent
	ItemID string
	Worker string
}

// EventTypeClaimLost is the event type string for ClaimLostEvent.
const EventTypeClaimLost = "claim.lost"

// NewClaimLostEvent creates a ClaimLostEvent.
func NewClaimLostEvent(itemID, worker string) ClaimLostEvent {
	return ClaimLostEvent{
		baseEvent: newBaseEvent(EventTypeClaimLost),
		ItemID:    itemID,
		Worker:    worker,
	}
}

// PassCompletedEvent is emitted at the end of each orchestration pass with
// summary counts.
type PassCompletedEvent struct {
	baseEvent
	Admitted    int
	Deduped     int
	Claimed     int
	Completed   int
	Requeued    int
	Quarantined int
	Expired     int
}

// EventTypePassCompleted is the event type string for PassCompletedEvent.
const EventTypePassCompleted = "pass.completed"

// NewPassCompletedEvent creates a PassCompletedEvent.
func NewPassCompletedEvent(admitted, deduped, claimed, completed, requeued, quarantined, expired int) PassCompletedEvent {
	return PassCompletedEvent{
		baseEvent:   newBaseEvent(EventTypePassCompleted),
		Admitted:    admitted,
		Deduped:     deduped,
		Claimed:     claimed,
		Completed:   completed,
		Requeued:    requeued,
		Quarantined: quarantined,
		Expired:     expired,
	}
}
