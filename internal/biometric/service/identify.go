package service

import (
	"context"
	"time"

	"biomatch/internal/biometric/models"
	id "biomatch/pkg/domain"
	dErrors "biomatch/pkg/domain-errors"
	"biomatch/pkg/requestcontext"
)

// IdentifyRequest carries one 1:N identification call. MinConfidence may
// raise (never lower) the tenant's search threshold; MaxResults may lower
// (never raise) the tenant's result cap.
type IdentifyRequest struct {
	TenantID        id.TenantID
	Modality        models.Modality
	Sample          models.RawSample
	MinConfidence   float64
	MaxResults      int
	RequireLiveness bool
}

// IdentifyMatch is one ranked candidate.
type IdentifyMatch struct {
	SubjectID  id.SubjectID  `json:"subject_id"`
	TemplateID id.TemplateID `json:"template_id"`
	Score      float64       `json:"score"`
}

// IdentifyResult holds the ranked candidates. An empty Matches list is a
// valid outcome, not an error; Decision is rejected when nothing passed the
// threshold.
type IdentifyResult struct {
	Decision  models.Decision `json:"decision"`
	Matches   []IdentifyMatch `json:"matches"`
	AttemptID id.AttemptID    `json:"attempt_id"`
}

// Identify searches the tenant's matchable templates for the sample.
//
// Exactly one MatchAttempt is written per call. The attempt records the top
// candidate even when its score falls below the threshold, so a rejected
// search still names the closest template.
func (e *Engine) Identify(ctx context.Context, req IdentifyRequest) (*IdentifyResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Identify")
	defer span.End()

	if req.TenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant is required")
	}
	if len(req.Sample) == 0 {
		return nil, dErrors.New(models.CodeInvalidSample, "sample must not be empty")
	}
	if req.MinConfidence < 0 || req.MinConfidence > 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "min_confidence must be within [0,1]")
	}

	start := time.Now()
	attempt := models.NewAttempt(req.TenantID, req.Modality, models.ModeIdentification, deviceFrom(ctx), requestcontext.Now(ctx))

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

	threshold := policy.SearchThreshold
	if req.MinConfidence > threshold {
		threshold = req.MinConfidence
	}
	limit := policy.MaxSearchResults
	if req.MaxResults > 0 && req.MaxResults < limit {
		limit = req.MaxResults
	}
	if limit > models.HardMaxSearchResults {
		limit = models.HardMaxSearchResults
	}

	found, err := e.searcher.Search(ctx, req.TenantID, req.Modality, features.Vector, threshold, limit)
	if err != nil {
		return nil, e.rejectAttempt(ctx, attempt, err)
	}

	if found.Best != nil {
		attempt.Confidence = found.Best.Score
		attempt.MatchedTemplate = &found.Best.Template.ID
		attempt.MatchedSubjectID = &found.Best.Template.SubjectID
	}
	if len(found.Matches) > 0 {
		attempt.Decision = models.DecisionAccepted
	} else {
		attempt.Decision = models.DecisionRejected
		attempt.Reason = "no_match"
	}

	if err := e.appendAttempt(ctx, attempt); err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.RecordIdentification(string(req.Modality), string(attempt.Decision), found.Scanned, start)
	}

	matches := make([]IdentifyMatch, 0, len(found.Matches))
	for _, c := range found.Matches {
		matches = append(matches, IdentifyMatch{
			SubjectID:  c.Template.SubjectID,
			TemplateID: c.Template.ID,
			Score:      c.Score,
		})
	}
	return &IdentifyResult{Decision: attempt.Decision, Matches: matches, AttemptID: attempt.ID}, nil
}
