package models

import "time"

// EventType names a status notification emitted by the engine.
type EventType string

const (
	EventEnrollmentApproved   EventType = "ENROLLMENT_APPROVED"
	EventEnrollmentDenied     EventType = "ENROLLMENT_DENIED"
	EventEnrollmentWaitlisted EventType = "ENROLLMENT_WAITLISTED"
	EventEnrollmentPromoted   EventType = "ENROLLMENT_PROMOTED"
	EventEnrollmentCancelled  EventType = "ENROLLMENT_CANCELLED"
	EventChangeApproved       EventType = "SCHEDULE_CHANGE_APPROVED"
	EventChangeDenied         EventType = "SCHEDULE_CHANGE_DENIED"
	EventChangeCompleted      EventType = "SCHEDULE_CHANGE_COMPLETED"
	EventChangeCancelled      EventType = "SCHEDULE_CHANGE_CANCELLED"
	EventChangeOverdue        EventType = "SCHEDULE_CHANGE_OVERDUE"
	EventChangeEscalated      EventType = "SCHEDULE_CHANGE_ESCALATED"
)

// Event is handed to the notification component; delivery is not the engine's concern.
type Event struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	EntityID   string            `json:"entityId"`
	StudentID  string            `json:"studentId"`
	SectionID  string            `json:"sectionId,omitempty"`
	Status     string            `json:"status"`
	Reason     string            `json:"reason,omitempty"`
	Recipient  string            `json:"recipient,omitempty"`
	RequestID  string            `json:"requestId,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}
