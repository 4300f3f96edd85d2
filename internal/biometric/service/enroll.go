package service

import (
	"context"
	"fmt"
	"time"

	"biomatch/internal/audit"
	"biomatch/internal/biometric/models"
	id "biomatch/pkg/domain"
	dErrors "biomatch/pkg/domain-errors"
	"biomatch/pkg/requestcontext"
)

// EnrollRequest carries one enrollment call.
type EnrollRequest struct {
	TenantID        id.TenantID
	SubjectID       id.SubjectID
	Modality        models.Modality
	Sample          models.RawSample
	RequireLiveness bool
}

// EnrollResult reports the persisted template. The feature vector never
// leaves the engine.
type EnrollResult struct {
	TemplateID id.TemplateID `json:"template_id"`
	Quality    float64       `json:"quality"`
	EnrolledAt time.Time     `json:"enrolled_at"`
}

// Enroll registers a new template for a subject.
//
// Pipeline: liveness (if requested) -> extraction -> quality gate ->
// duplicate scan -> insert. The duplicate scan and insert run under a
// per-(tenant, subject, modality) mutex so concurrent enrollments cannot both
// pass the check against a stale template set. Enrollment writes no
// MatchAttempt; it emits lifecycle audit events instead.
func (e *Engine) Enroll(ctx context.Context, req EnrollRequest) (*EnrollResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Enroll")
	defer span.End()

	if req.TenantID.IsNil() || req.SubjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant and subject are required")
	}
	if len(req.Sample) == 0 {
		return nil, dErrors.New(models.CodeInvalidSample, "sample must not be empty")
	}

	result, err := e.enroll(ctx, req)
	if err != nil {
		e.recordEnrollment(ctx, req, models.ReasonFor(err))
		return nil, err
	}
	e.recordEnrollment(ctx, req, "completed")
	return result, nil
}

func (e *Engine) enroll(ctx context.Context, req EnrollRequest) (*EnrollResult, error) {
	if req.RequireLiveness {
		if err := e.checkLiveness(ctx, req.Sample, req.Modality); err != nil {
			return nil, err
		}
	}

	features, err := e.extractor.Extract(ctx, req.Sample, req.Modality)
	if err != nil {
		return nil, err
	}

	policy, err := e.policies.PolicyFor(ctx, req.TenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load tenant policy")
	}
	if features.Quality < policy.EnrollMinQuality {
		return nil, dErrors.Newf(models.CodeLowQuality, "sample quality %.2f below enrollment minimum %.2f", features.Quality, policy.EnrollMinQuality)
	}

	key := enrollKey(req.TenantID, req.SubjectID, req.Modality)
	e.enrollLocks.Lock(key)
	defer e.enrollLocks.Unlock(key)

	existing, err := e.templates.ListBySubject(ctx, req.TenantID, req.SubjectID, req.Modality, true)
	if err != nil {
		return nil, dErrors.Wrap(err, models.CodePersistenceFailure, "load subject templates")
	}
	for _, t := range existing {
		score, err := e.scorer.Score(features.Vector, t.FeatureVector)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "score enrolled template")
		}
		if score >= policy.DuplicateThreshold {
			return nil, dErrors.Newf(models.CodeDuplicateEnrollment, "sample matches enrolled template %s with similarity %.2f", t.ID, score)
		}
	}

	now := requestcontext.Now(ctx)
	template, err := models.NewTemplate(req.TenantID, req.SubjectID, req.Modality, features.Vector, features.Quality, deviceFrom(ctx), now)
	if err != nil {
		return nil, err
	}
	if err := e.templates.Insert(ctx, template); err != nil {
		return nil, dErrors.Wrap(err, models.CodePersistenceFailure, "persist template")
	}

	e.emitLifecycle(ctx, audit.Event{
		Timestamp:  now,
		TenantID:   req.TenantID,
		SubjectID:  req.SubjectID,
		TemplateID: template.ID,
		Action:     audit.EventEnrollmentCompleted,
		Modality:   string(req.Modality),
	})
	return &EnrollResult{TemplateID: template.ID, Quality: template.Quality, EnrolledAt: template.EnrolledAt}, nil
}

func (e *Engine) recordEnrollment(ctx context.Context, req EnrollRequest, outcome string) {
	if e.metrics != nil {
		e.metrics.RecordEnrollment(string(req.Modality), outcome)
	}
	if outcome != "completed" {
		e.emitLifecycle(ctx, audit.Event{
			Timestamp: requestcontext.Now(ctx),
			TenantID:  req.TenantID,
			SubjectID: req.SubjectID,
			Action:    audit.EventEnrollmentRejected,
			Modality:  string(req.Modality),
			Reason:    outcome,
		})
	}
}

func enrollKey(tenantID id.TenantID, subjectID id.SubjectID, modality models.Modality) string {
	return fmt.Sprintf("%s|%s|%s", tenantID, subjectID, modality)
}
