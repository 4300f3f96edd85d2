package template

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"biomatch/internal/biometric/models"
	id "biomatch/pkg/domain"
	"biomatch/pkg/platform/sentinel"
)

// Schema is the table this store reads and writes. Applied by migrations in
// deployment; integration tests execute it directly.
const Schema = `
CREATE TABLE IF NOT EXISTS biometric_templates (
	id             UUID PRIMARY KEY,
	tenant_id      UUID NOT NULL,
	subject_id     UUID NOT NULL,
	modality       TEXT NOT NULL,
	feature_vector BYTEA NOT NULL,
	quality        DOUBLE PRECISION NOT NULL,
	active         BOOLEAN NOT NULL,
	deleted        BOOLEAN NOT NULL DEFAULT FALSE,
	enrolled_at    TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	device_id      TEXT NOT NULL DEFAULT '',
	device_type    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_templates_subject
	ON biometric_templates (tenant_id, subject_id, modality)
	WHERE NOT deleted;
CREATE INDEX IF NOT EXISTS idx_templates_tenant_modality
	ON biometric_templates (tenant_id, modality)
	WHERE active AND NOT deleted;
`

// Postgres stores templates in PostgreSQL via pgx.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a Postgres template store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const templateColumns = `id, tenant_id, subject_id, modality, feature_vector, quality, active, deleted, enrolled_at, updated_at, device_id, device_type`

func (s *Postgres) Insert(ctx context.Context, t *models.BiometricTemplate) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO biometric_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.TenantID, t.SubjectID, string(t.Modality), t.FeatureVector, t.Quality,
		t.Active, t.Deleted, t.EnrolledAt, t.UpdatedAt, t.Device.DeviceID, t.Device.DeviceType,
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, tenantID id.TenantID, templateID id.TemplateID) (*models.BiometricTemplate, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM biometric_templates
		WHERE id = $1 AND tenant_id = $2 AND NOT deleted`,
		templateID, tenantID,
	)
	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("template %s: %w", templateID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find template: %w", err)
	}
	return t, nil
}

func (s *Postgres) ListBySubject(ctx context.Context, tenantID id.TenantID, subjectID id.SubjectID, modality models.Modality, matchableOnly bool) ([]*models.BiometricTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM biometric_templates
		WHERE tenant_id = $1 AND subject_id = $2 AND modality = $3 AND NOT deleted`
	if matchableOnly {
		query += ` AND active`
	}
	query += ` ORDER BY enrolled_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, tenantID, subjectID, string(modality))
	if err != nil {
		return nil, fmt.Errorf("list templates by subject: %w", err)
	}
	defer rows.Close()
	return collectTemplates(rows)
}

func (s *Postgres) ListByTenant(ctx context.Context, tenantID id.TenantID, modality models.Modality) ([]*models.BiometricTemplate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+templateColumns+`
		FROM biometric_templates
		WHERE tenant_id = $1 AND modality = $2 AND active AND NOT deleted
		ORDER BY enrolled_at ASC, id ASC`,
		tenantID, string(modality),
	)
	if err != nil {
		return nil, fmt.Errorf("list templates by tenant: %w", err)
	}
	defer rows.Close()
	return collectTemplates(rows)
}

// SetActive flips the active flag. The WHERE clause carries the transition
// precondition so the validate-and-mutate is atomic at the database.
func (s *Postgres) SetActive(ctx context.Context, tenantID id.TenantID, templateID id.TemplateID, active bool, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE biometric_templates
		SET active = $1, updated_at = $2
		WHERE id = $3 AND tenant_id = $4 AND NOT deleted AND active = $5`,
		active, now, templateID, tenantID, !active,
	)
	if err != nil {
		return fmt.Errorf("set template active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.explainMissedUpdate(ctx, tenantID, templateID)
	}
	return nil
}

func (s *Postgres) SoftDelete(ctx context.Context, tenantID id.TenantID, templateID id.TemplateID, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE biometric_templates
		SET deleted = TRUE, active = FALSE, updated_at = $1
		WHERE id = $2 AND tenant_id = $3 AND NOT deleted`,
		now, templateID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("soft delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("template %s: %w", templateID, sentinel.ErrNotFound)
	}
	return nil
}

// explainMissedUpdate distinguishes "no such template" from "wrong state" for
// a zero-row SetActive.
func (s *Postgres) explainMissedUpdate(ctx context.Context, tenantID id.TenantID, templateID id.TemplateID) error {
	if _, err := s.FindByID(ctx, tenantID, templateID); err != nil {
		return err
	}
	return fmt.Errorf("template %s: %w", templateID, sentinel.ErrInvalidState)
}

func scanTemplate(row pgx.Row) (*models.BiometricTemplate, error) {
	var t models.BiometricTemplate
	var modality string
	err := row.Scan(
		&t.ID, &t.TenantID, &t.SubjectID, &modality, &t.FeatureVector, &t.Quality,
		&t.Active, &t.Deleted, &t.EnrolledAt, &t.UpdatedAt, &t.Device.DeviceID, &t.Device.DeviceType,
	)
	if err != nil {
		return nil, err
	}
	t.Modality = models.Modality(modality)
	return &t, nil
}

func collectTemplates(rows pgx.Rows) ([]*models.BiometricTemplate, error) {
	var out []*models.BiometricTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return out, nil
}
