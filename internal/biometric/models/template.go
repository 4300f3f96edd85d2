package models

import (
	"time"

	id "biomatch/pkg/domain"
	dErrors "biomatch/pkg/domain-errors"
)

// BiometricTemplate is the aggregate for one enrolled biometric sample.
//
// Invariants:
//   - A template belongs to exactly one subject within exactly one tenant.
//   - FeatureVector is opaque to the engine; only the matcher interprets it,
//     and it is never mutated in place. Re-enrollment creates a new template.
//   - Deleted templates are excluded from every operation; inactive templates
//     are excluded from matching but remain visible for history.
//   - Quality is recorded once, at enrollment time.
//
// The set of active, non-deleted templates for (tenant, subject, modality) is
// what verification matches against; the active, non-deleted set for
// (tenant, modality) is what identification searches.
type BiometricTemplate struct {
	ID            id.TemplateID `json:"id"`
	TenantID      id.TenantID   `json:"tenant_id"`
	SubjectID     id.SubjectID  `json:"subject_id"`
	Modality      Modality      `json:"modality"`
	FeatureVector []byte        `json:"-"`
	Quality       float64       `json:"quality"`
	Active        bool          `json:"active"`
	Deleted       bool          `json:"-"`
	EnrolledAt    time.Time     `json:"enrolled_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Device        DeviceMeta    `json:"device,omitempty"`
}

// NewTemplate constructs an active template, validating construction-time
// invariants.
func NewTemplate(tenantID id.TenantID, subjectID id.SubjectID, modality Modality, vector []byte, quality float64, device DeviceMeta, now time.Time) (*BiometricTemplate, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "template requires a tenant")
	}
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "template requires a subject")
	}
	if len(vector) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "template requires a feature vector")
	}
	if quality < 0 || quality > 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "quality must be within [0,1]")
	}
	return &BiometricTemplate{
		ID:            id.NewTemplateID(),
		TenantID:      tenantID,
		SubjectID:     subjectID,
		Modality:      modality,
		FeatureVector: vector,
		Quality:       quality,
		Active:        true,
		EnrolledAt:    now,
		UpdatedAt:     now,
		Device:        device,
	}, nil
}

// Matchable reports whether the template participates in verification and
// identification.
func (t *BiometricTemplate) Matchable() bool {
	return t.Active && !t.Deleted
}

// CanDeactivate checks the active → inactive transition.
func (t *BiometricTemplate) CanDeactivate() error {
	if t.Deleted {
		return dErrors.New(dErrors.CodeInvariantViolation, "template is deleted")
	}
	if !t.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "template is already inactive")
	}
	return nil
}

// ApplyDeactivation flips the template to inactive. Call CanDeactivate first.
func (t *BiometricTemplate) ApplyDeactivation(now time.Time) {
	t.Active = false
	t.UpdatedAt = now
}

// CanReactivate checks the inactive → active transition.
func (t *BiometricTemplate) CanReactivate() error {
	if t.Deleted {
		return dErrors.New(dErrors.CodeInvariantViolation, "template is deleted")
	}
	if t.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "template is already active")
	}
	return nil
}

// ApplyReactivation flips the template back to active. Call CanReactivate first.
func (t *BiometricTemplate) ApplyReactivation(now time.Time) {
	t.Active = true
	t.UpdatedAt = now
}

// ApplyDeletion soft-deletes the template. Deletion is terminal; the engine
// never purges rows, retention is an external policy.
func (t *BiometricTemplate) ApplyDeletion(now time.Time) {
	t.Deleted = true
	t.Active = false
	t.UpdatedAt = now
}
