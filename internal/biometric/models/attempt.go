package models

import (
	"time"

	id "biomatch/pkg/domain"
)

// MatchMode distinguishes 1:1 verification from 1:N identification.
type MatchMode string

const (
	ModeVerification   MatchMode = "verification"
	ModeIdentification MatchMode = "identification"
)

// Decision is the outcome of a match attempt.
type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
)

// MatchAttempt is the append-only audit record of one verification or
// identification call. Exactly one attempt is written per call, regardless of
// outcome; liveness and extraction failures are recorded as rejections with a
// reason code, never dropped. Enrollment is a distinct lifecycle event and
// writes no attempt.
type MatchAttempt struct {
	ID               id.AttemptID   `json:"id"`
	TenantID         id.TenantID    `json:"tenant_id"`
	Modality         Modality       `json:"modality"`
	Mode             MatchMode      `json:"mode"`
	ClaimedSubjectID *id.SubjectID  `json:"claimed_subject_id,omitempty"`
	MatchedSubjectID *id.SubjectID  `json:"matched_subject_id,omitempty"`
	MatchedTemplate  *id.TemplateID `json:"matched_template_id,omitempty"`
	Confidence       float64        `json:"confidence"`
	Decision         Decision       `json:"decision"`
	Reason           string         `json:"reason,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
	Device           DeviceMeta     `json:"device,omitempty"`
}

// NewAttempt builds the common attempt envelope; workflows fill in outcome
// fields before appending.
func NewAttempt(tenantID id.TenantID, modality Modality, mode MatchMode, device DeviceMeta, now time.Time) *MatchAttempt {
	return &MatchAttempt{
		ID:        id.NewAttemptID(),
		TenantID:  tenantID,
		Modality:  modality,
		Mode:      mode,
		Decision:  DecisionRejected,
		Timestamp: now,
		Device:    device,
	}
}
