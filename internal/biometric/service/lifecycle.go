package service

import (
	"context"
	"errors"

	"biomatch/internal/audit"
	"biomatch/internal/biometric/models"
	id "biomatch/pkg/domain"
	dErrors "biomatch/pkg/domain-errors"
	"biomatch/pkg/platform/sentinel"
	"biomatch/pkg/requestcontext"
)

// ListTemplates returns the subject's non-deleted templates, inactive ones
// included. Feature vectors stay inside the engine; callers only see
// metadata.
func (e *Engine) ListTemplates(ctx context.Context, tenantID id.TenantID, subjectID id.SubjectID, modality models.Modality) ([]*models.BiometricTemplate, error) {
	if tenantID.IsNil() || subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant and subject are required")
	}
	templates, err := e.templates.ListBySubject(ctx, tenantID, subjectID, modality, false)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list subject templates")
	}
	return templates, nil
}

// DeactivateTemplate removes a template from matching without deleting it.
func (e *Engine) DeactivateTemplate(ctx context.Context, tenantID id.TenantID, templateID id.TemplateID) error {
	return e.setTemplateActive(ctx, tenantID, templateID, false, audit.EventTemplateDeactivated)
}

// ReactivateTemplate returns an inactive template to matching.
func (e *Engine) ReactivateTemplate(ctx context.Context, tenantID id.TenantID, templateID id.TemplateID) error {
	return e.setTemplateActive(ctx, tenantID, templateID, true, audit.EventTemplateReactivated)
}

func (e *Engine) setTemplateActive(ctx context.Context, tenantID id.TenantID, templateID id.TemplateID, active bool, action string) error {
	template, err := e.templates.FindByID(ctx, tenantID, templateID)
	if err != nil {
		return mapTemplateError(err)
	}

	now := requestcontext.Now(ctx)
	if err := e.templates.SetActive(ctx, tenantID, templateID, active, now); err != nil {
		return mapTemplateError(err)
	}

	e.emitLifecycle(ctx, audit.Event{
		Timestamp:  now,
		TenantID:   tenantID,
		SubjectID:  template.SubjectID,
		TemplateID: templateID,
		Action:     action,
		Modality:   string(template.Modality),
	})
	return nil
}

// DeleteTemplate soft-deletes a template. Deletion is terminal: the template
// disappears from every read and can never be reactivated.
func (e *Engine) DeleteTemplate(ctx context.Context, tenantID id.TenantID, templateID id.TemplateID) error {
	template, err := e.templates.FindByID(ctx, tenantID, templateID)
	if err != nil {
		return mapTemplateError(err)
	}

	now := requestcontext.Now(ctx)
	if err := e.templates.SoftDelete(ctx, tenantID, templateID, now); err != nil {
		return mapTemplateError(err)
	}

	e.emitLifecycle(ctx, audit.Event{
		Timestamp:  now,
		TenantID:   tenantID,
		SubjectID:  template.SubjectID,
		TemplateID: templateID,
		Action:     audit.EventTemplateDeleted,
		Modality:   string(template.Modality),
	})
	return nil
}

// ListAttempts returns the tenant's match attempts newest-first, optionally
// filtered to one subject.
func (e *Engine) ListAttempts(ctx context.Context, tenantID id.TenantID, subjectID *id.SubjectID, limit int) ([]*models.MatchAttempt, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant is required")
	}
	var (
		attempts []*models.MatchAttempt
		err      error
	)
	if subjectID != nil {
		attempts, err = e.attempts.ListBySubject(ctx, tenantID, *subjectID, limit)
	} else {
		attempts, err = e.attempts.ListByTenant(ctx, tenantID, limit)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list match attempts")
	}
	return attempts, nil
}

// mapTemplateError converts store sentinels into coded errors for the API
// boundary. Invalid state transitions surface as conflicts.
func mapTemplateError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "template not found")
	case errors.Is(err, sentinel.ErrInvalidState), dErrors.HasCode(err, dErrors.CodeInvariantViolation):
		return dErrors.Wrap(err, dErrors.CodeConflict, "template state does not allow this transition")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "template store failure")
	}
}
