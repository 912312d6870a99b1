package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionEnrollmentSubmit   = "ENROLLMENT_SUBMIT"
	AuditActionEnrollmentDecision = "ENROLLMENT_DECISION"
	AuditActionEnrollmentPromote  = "ENROLLMENT_PROMOTE"
	AuditActionEnrollmentWithdraw = "ENROLLMENT_WITHDRAW"
	AuditActionSeatDrop           = "SEAT_DROP"
	AuditActionChangeSubmit       = "SCHEDULE_CHANGE_SUBMIT"
	AuditActionChangeReview       = "SCHEDULE_CHANGE_REVIEW"
	AuditActionChangeComplete     = "SCHEDULE_CHANGE_COMPLETE"
	AuditActionChangeCancel       = "SCHEDULE_CHANGE_CANCEL"
	AuditActionChangeEscalate     = "SCHEDULE_CHANGE_ESCALATE"
	AuditActionCapacityUpdate     = "SECTION_CAPACITY_UPDATE"
	AuditActionAllocationRun      = "ENROLLMENT_ALLOCATION_RUN"
	AuditActionSLASweep           = "SCHEDULE_CHANGE_SWEEP"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
