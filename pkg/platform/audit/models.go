package audit

import (
	"context"
	"time"

	id "entrypass/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers records of what was actually sent to a
	// destination authority. These are retained for as long as snapshots are.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers failures and routine activity useful for
	// debugging. These can be sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. It never carries
// profile field values, only identifiers and outcome codes.
type Event struct {
	Category    EventCategory    `json:"category"`
	Timestamp   time.Time        `json:"timestamp"`
	UserID      id.UserID        `json:"user_id"`
	Destination id.DestinationID `json:"destination,omitempty"`
	// Subject is the identifier the action applies to (snapshot or entity ID).
	Subject   string `json:"subject,omitempty"`
	Action    string `json:"action"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Device    string `json:"device,omitempty"`
}

type AuditEvent string

const (
	EventEntrySubmitted    AuditEvent = "entry_submitted"
	EventEntrySuperseded   AuditEvent = "entry_superseded"
	EventSubmissionFailed  AuditEvent = "submission_failed"
	EventEntityDeleted     AuditEvent = "entity_deleted"
	EventValidationBlocked AuditEvent = "validation_blocked"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventEntrySubmitted:  CategoryCompliance,
	EventEntrySuperseded: CategoryCompliance,
	EventEntityDeleted:   CategoryCompliance,

	EventSubmissionFailed:  CategoryOperations,
	EventValidationBlocked: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. Implementations: memory, postgres, kafka.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}
