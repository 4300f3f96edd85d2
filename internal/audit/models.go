package audit

import (
	"time"

	id "biomatch/pkg/domain"
)

// Event is emitted from domain logic to capture template lifecycle actions.
// Keep it transport-agnostic so stores and sinks can fan out.
//
// Match attempts are NOT events: they are the synchronous, fail-closed audit
// records written by the workflows themselves (internal/biometric/store/attempt).
// Events cover everything else worth an audit trail.
type Event struct {
	Timestamp  time.Time
	TenantID   id.TenantID
	SubjectID  id.SubjectID
	TemplateID id.TemplateID
	Action     string
	Modality   string
	Reason     string
	DeviceID   string
}

// Lifecycle actions emitted by the engine.
const (
	EventEnrollmentCompleted = "enrollment_completed"
	EventEnrollmentRejected  = "enrollment_rejected"
	EventTemplateDeactivated = "template_deactivated"
	EventTemplateReactivated = "template_reactivated"
	EventTemplateDeleted     = "template_deleted"
)
