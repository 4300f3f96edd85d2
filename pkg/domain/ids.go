// Package domain defines the typed identifiers shared across the engine.
//
// IDs are distinct uuid-backed types so a SubjectID can never be passed where
// a TenantID is expected. Parsing enforces the trust-boundary invariant that
// IDs are valid, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "biomatch/pkg/domain-errors"
)

type (
	// TenantID identifies the tenant that owns templates and attempts.
	TenantID uuid.UUID
	// SubjectID identifies an enrolled person within a tenant.
	SubjectID uuid.UUID
	// TemplateID identifies a single stored biometric template.
	TemplateID uuid.UUID
	// AttemptID identifies one audited match attempt.
	AttemptID uuid.UUID
)

func (id TenantID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id SubjectID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id TemplateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AttemptID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

func (id TenantID) String() string   { return uuid.UUID(id).String() }
func (id SubjectID) String() string  { return uuid.UUID(id).String() }
func (id TemplateID) String() string { return uuid.UUID(id).String() }
func (id AttemptID) String() string  { return uuid.UUID(id).String() }

// NewTemplateID mints a fresh template identifier.
func NewTemplateID() TemplateID { return TemplateID(uuid.New()) }

// NewAttemptID mints a fresh attempt identifier.
func NewAttemptID() AttemptID { return AttemptID(uuid.New()) }

func parse(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return parsed, nil
}

// ParseTenantID validates and converts a raw string into a TenantID.
func ParseTenantID(raw string) (TenantID, error) {
	parsed, err := parse(raw)
	if err != nil {
		return TenantID{}, err
	}
	return TenantID(parsed), nil
}

// ParseSubjectID validates and converts a raw string into a SubjectID.
func ParseSubjectID(raw string) (SubjectID, error) {
	parsed, err := parse(raw)
	if err != nil {
		return SubjectID{}, err
	}
	return SubjectID(parsed), nil
}

// ParseTemplateID validates and converts a raw string into a TemplateID.
func ParseTemplateID(raw string) (TemplateID, error) {
	parsed, err := parse(raw)
	if err != nil {
		return TemplateID{}, err
	}
	return TemplateID(parsed), nil
}
