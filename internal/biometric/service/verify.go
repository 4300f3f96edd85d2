package service

import (
	"context"
	"time"

	"biomatch/internal/biometric/models"
	id "biomatch/pkg/domain"
	dErrors "biomatch/pkg/domain-errors"
	"biomatch/pkg/requestcontext"
)

// VerifyRequest carries one 1:1 verification call against a claimed subject.
type VerifyRequest struct {
	TenantID        id.TenantID
	SubjectID       id.SubjectID
	Modality        models.Modality
	Sample          models.RawSample
	RequireLiveness bool
}

// VerifyResult is the outcome of a verification. MatchedTemplateID names the
// best-scoring template even when the decision is rejected.
type VerifyResult struct {
	Decision          models.Decision `json:"decision"`
	Confidence        float64         `json:"confidence"`
	MatchedTemplateID *id.TemplateID  `json:"matched_template_id,omitempty"`
	AttemptID         id.AttemptID    `json:"attempt_id"`
}

// Verify compares a sample against the claimed subject's enrolled templates.
//
// Exactly one MatchAttempt is written per call: failures past input
// validation are recorded as rejections with a reason code, and an attempt
// that cannot be written fails the whole call (fail-closed).
func (e *Engine) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Verify")
	defer span.End()

	if req.TenantID.IsNil() || req.SubjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant and subject are required")
	}
	if len(req.Sample) == 0 {
		return nil, dErrors.New(models.CodeInvalidSample, "sample must not be empty")
	}

	start := time.Now()
	attempt := models.NewAttempt(req.TenantID, req.Modality, models.ModeVerification, deviceFrom(ctx), requestcontext.Now(ctx))
	attempt.ClaimedSubjectID = &req.SubjectID

	if req.RequireLiveness {
		if err := e.checkLiveness(ctx, req.Sample, req.Modality); err != nil {
			return nil, e.rejectAttempt(ctx, attempt, err)
		}
	}

	features, err := e.extractor.Extract(ctx, req.Sample, req.Modality)
	if err != nil {
		return nil, e.rejectAttempt(ctx, attempt, err)
	}

	policy, err := e.policies.PolicyFor(ctx, req.TenantID)
	if err != nil {
		return nil, e.rejectAttempt(ctx, attempt, dErrors.Wrap(err, dErrors.CodeInternal, "load tenant policy"))
	}

	templates, err := e.templates.ListBySubject(ctx, req.TenantID, req.SubjectID, req.Modality, true)
	if err != nil {
		return nil, e.rejectAttempt(ctx, attempt, dErrors.Wrap(err, models.CodePersistenceFailure, "load subject templates"))
	}
	if len(templates) == 0 {
		return nil, e.rejectAttempt(ctx, attempt, dErrors.New(models.CodeNoEnrolledTemplate, "subject has no matchable template for this modality"))
	}

	// Templates arrive ordered by enrollment time; strict comparison keeps
	// the first-enumerated template on ties.
	best := templates[0]
	bestScore := -1.0
	for _, t := range templates {
		score, err := e.scorer.Score(features.Vector, t.FeatureVector)
		if err != nil {
			return nil, e.rejectAttempt(ctx, attempt, dErrors.Wrap(err, dErrors.CodeInternal, "score enrolled template"))
		}
		if score > bestScore {
			best, bestScore = t, score
		}
	}

	attempt.Confidence = bestScore
	attempt.MatchedTemplate = &best.ID
	attempt.MatchedSubjectID = &best.SubjectID
	if bestScore >= policy.VerifyThreshold {
		attempt.Decision = models.DecisionAccepted
	} else {
		attempt.Decision = models.DecisionRejected
		attempt.Reason = "below_threshold"
	}

	if err := e.appendAttempt(ctx, attempt); err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.RecordVerification(string(req.Modality), string(attempt.Decision), start)
	}

	return &VerifyResult{
		Decision:          attempt.Decision,
		Confidence:        bestScore,
		MatchedTemplateID: &best.ID,
		AttemptID:         attempt.ID,
	}, nil
}
