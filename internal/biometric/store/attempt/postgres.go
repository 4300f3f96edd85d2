package attempt

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"biomatch/internal/biometric/models"
	id "biomatch/pkg/domain"
)

// Schema is the audit table. Append-only at the application layer; deployment
// can additionally revoke UPDATE/DELETE from the engine's database role.
const Schema = `
CREATE TABLE IF NOT EXISTS match_attempts (
	id                 UUID PRIMARY KEY,
	tenant_id          UUID NOT NULL,
	modality           TEXT NOT NULL,
	mode               TEXT NOT NULL,
	claimed_subject_id UUID,
	matched_subject_id UUID,
	matched_template_id UUID,
	confidence         DOUBLE PRECISION NOT NULL,
	decision           TEXT NOT NULL,
	reason             TEXT NOT NULL DEFAULT '',
	occurred_at        TIMESTAMPTZ NOT NULL,
	device_id          TEXT NOT NULL DEFAULT '',
	device_type        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_attempts_tenant_time
	ON match_attempts (tenant_id, occurred_at DESC);
`

// Postgres stores attempts in PostgreSQL through database/sql, mirroring the
// audit store layer this package descends from.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a Postgres attempt store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Append(ctx context.Context, a *models.MatchAttempt) error {
	var claimed, matchedSubject, matchedTemplate any
	if a.ClaimedSubjectID != nil {
		claimed = uuid.UUID(*a.ClaimedSubjectID)
	}
	if a.MatchedSubjectID != nil {
		matchedSubject = uuid.UUID(*a.MatchedSubjectID)
	}
	if a.MatchedTemplate != nil {
		matchedTemplate = uuid.UUID(*a.MatchedTemplate)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO match_attempts (
			id, tenant_id, modality, mode,
			claimed_subject_id, matched_subject_id, matched_template_id,
			confidence, decision, reason, occurred_at, device_id, device_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.UUID(a.ID), uuid.UUID(a.TenantID), string(a.Modality), string(a.Mode),
		claimed, matchedSubject, matchedTemplate,
		a.Confidence, string(a.Decision), a.Reason, a.Timestamp,
		a.Device.DeviceID, a.Device.DeviceType,
	)
	if err != nil {
		return fmt.Errorf("append match attempt: %w", err)
	}
	return nil
}

func (s *Postgres) ListByTenant(ctx context.Context, tenantID id.TenantID, limit int) ([]*models.MatchAttempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, modality, mode,
			claimed_subject_id, matched_subject_id, matched_template_id,
			confidence, decision, reason, occurred_at, device_id, device_type
		FROM match_attempts
		WHERE tenant_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2`,
		uuid.UUID(tenantID), normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list attempts by tenant: %w", err)
	}
	defer rows.Close()
	return collectAttempts(rows)
}

func (s *Postgres) ListBySubject(ctx context.Context, tenantID id.TenantID, subjectID id.SubjectID, limit int) ([]*models.MatchAttempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, modality, mode,
			claimed_subject_id, matched_subject_id, matched_template_id,
			confidence, decision, reason, occurred_at, device_id, device_type
		FROM match_attempts
		WHERE tenant_id = $1 AND (claimed_subject_id = $2 OR matched_subject_id = $2)
		ORDER BY occurred_at DESC
		LIMIT $3`,
		uuid.UUID(tenantID), uuid.UUID(subjectID), normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list attempts by subject: %w", err)
	}
	defer rows.Close()
	return collectAttempts(rows)
}

// normalizeLimit keeps audit listings bounded even when callers pass zero.
func normalizeLimit(limit int) int {
	const defaultLimit = 100
	if limit <= 0 || limit > defaultLimit {
		return defaultLimit
	}
	return limit
}

func collectAttempts(rows *sql.Rows) ([]*models.MatchAttempt, error) {
	var out []*models.MatchAttempt
	for rows.Next() {
		var a models.MatchAttempt
		var attemptID, tenantID uuid.UUID
		var modality, mode, decision string
		var claimed, matchedSubject, matchedTemplate uuid.NullUUID

		err := rows.Scan(
			&attemptID, &tenantID, &modality, &mode,
			&claimed, &matchedSubject, &matchedTemplate,
			&a.Confidence, &decision, &a.Reason, &a.Timestamp,
			&a.Device.DeviceID, &a.Device.DeviceType,
		)
		if err != nil {
			return nil, fmt.Errorf("scan match attempt: %w", err)
		}

		a.ID = id.AttemptID(attemptID)
		a.TenantID = id.TenantID(tenantID)
		a.Modality = models.Modality(modality)
		a.Mode = models.MatchMode(mode)
		a.Decision = models.Decision(decision)
		if claimed.Valid {
			subject := id.SubjectID(claimed.UUID)
			a.ClaimedSubjectID = &subject
		}
		if matchedSubject.Valid {
			subject := id.SubjectID(matchedSubject.UUID)
			a.MatchedSubjectID = &subject
		}
		if matchedTemplate.Valid {
			template := id.TemplateID(matchedTemplate.UUID)
			a.MatchedTemplate = &template
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match attempts: %w", err)
	}
	return out, nil
}
