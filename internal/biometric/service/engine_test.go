package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"biomatch/internal/audit"
	"biomatch/internal/biometric/extractor"
	"biomatch/internal/biometric/index"
	"biomatch/internal/biometric/liveness"
	"biomatch/internal/biometric/matcher"
	"biomatch/internal/biometric/models"
	"biomatch/internal/biometric/policy"
	"biomatch/internal/biometric/store/attempt"
	"biomatch/internal/biometric/store/template"
	"biomatch/internal/biometric/vector"
	id "biomatch/pkg/domain"
	dErrors "biomatch/pkg/domain-errors"
	"biomatch/pkg/requestcontext"
)

// sampleExtractor maps sample bytes to fixed features so tests control the
// exact similarity scores the workflows see.
type sampleExtractor struct {
	features map[string]extractor.Features
}

func (s *sampleExtractor) Extract(_ context.Context, sample models.RawSample, _ models.Modality) (extractor.Features, error) {
	f, ok := s.features[string(sample)]
	if !ok {
		return extractor.Features{}, dErrors.New(models.CodeNoSubjectDetected, "no subject detected in sample")
	}
	return f, nil
}

func (s *sampleExtractor) add(t *testing.T, sample string, values []float64, quality float64) {
	t.Helper()
	encoded, err := vector.Encode(values)
	if err != nil {
		t.Fatalf("encode vector: %v", err)
	}
	s.features[sample] = extractor.Features{Vector: encoded, Quality: quality}
}

type EngineSuite struct {
	suite.Suite

	templates *template.InMemory
	attempts  *attempt.InMemory
	policies  *policy.InMemory
	events    *audit.InMemory
	samples   *sampleExtractor
	engine    *Engine

	tenant  id.TenantID
	subject id.SubjectID
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.templates = template.NewInMemory()
	s.attempts = attempt.NewInMemory()
	s.policies = policy.NewInMemory()
	s.events = audit.NewInMemory()
	s.samples = &sampleExtractor{features: make(map[string]extractor.Features)}
	s.engine = New(
		s.templates,
		s.attempts,
		s.policies,
		s.samples,
		index.NewLinear(s.templates, matcher.NewCosine(), 0),
		matcher.NewCosine(),
		WithLiveness(liveness.NewDouble()),
		WithAuditPublisher(s.events),
	)
	s.tenant = id.TenantID(uuid.New())
	s.subject = id.SubjectID(uuid.New())
}

func (s *EngineSuite) enroll(subject id.SubjectID, sample string) *EnrollResult {
	result, err := s.engine.Enroll(context.Background(), EnrollRequest{
		TenantID:  s.tenant,
		SubjectID: subject,
		Modality:  models.ModalityFace,
		Sample:    models.RawSample(sample),
	})
	s.Require().NoError(err)
	return result
}

func (s *EngineSuite) tenantAttempts() []*models.MatchAttempt {
	attempts, err := s.attempts.ListByTenant(context.Background(), s.tenant, 0)
	s.Require().NoError(err)
	return attempts
}

func (s *EngineSuite) TestEnrollThenVerifyAccepted() {
	s.samples.add(s.T(), "enroll", []float64{1, 0}, 0.9)
	// cos = 0.6 against the enrolled vector, so the rescaled score is 0.80.
	s.samples.add(s.T(), "probe", []float64{0.6, 0.8}, 0.9)

	enrolled := s.enroll(s.subject, "enroll")
	s.InDelta(0.9, enrolled.Quality, 1e-9)

	result, err := s.engine.Verify(context.Background(), VerifyRequest{
		TenantID:  s.tenant,
		SubjectID: s.subject,
		Modality:  models.ModalityFace,
		Sample:    models.RawSample("probe"),
	})
	s.Require().NoError(err)
	s.Equal(models.DecisionAccepted, result.Decision)
	s.InDelta(0.80, result.Confidence, 1e-9)
	s.Require().NotNil(result.MatchedTemplateID)
	s.Equal(enrolled.TemplateID, *result.MatchedTemplateID)

	attempts := s.tenantAttempts()
	s.Require().Len(attempts, 1)
	s.Equal(models.ModeVerification, attempts[0].Mode)
	s.Equal(models.DecisionAccepted, attempts[0].Decision)
	s.Require().NotNil(attempts[0].ClaimedSubjectID)
	s.Equal(s.subject, *attempts[0].ClaimedSubjectID)
}

func (s *EngineSuite) TestEnrollWritesNoAttemptButEmitsEvent() {
	s.samples.add(s.T(), "enroll", []float64{1, 0}, 0.9)

	at := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), at)
	enrolled, err := s.engine.Enroll(ctx, EnrollRequest{
		TenantID:  s.tenant,
		SubjectID: s.subject,
		Modality:  models.ModalityFace,
		Sample:    models.RawSample("enroll"),
	})
	s.Require().NoError(err)
	s.True(at.Equal(enrolled.EnrolledAt))

	s.Empty(s.tenantAttempts())

	events := s.events.Events()
	s.Require().Len(events, 1)
	s.Equal(audit.EventEnrollmentCompleted, events[0].Action)
	s.Equal(enrolled.TemplateID, events[0].TemplateID)
	s.Equal(s.subject, events[0].SubjectID)
}

func (s *EngineSuite) TestEnrollSameSampleTwiceIsDuplicate() {
	s.samples.add(s.T(), "enroll", []float64{1, 0}, 0.9)
	s.enroll(s.subject, "enroll")

	_, err := s.engine.Enroll(context.Background(), EnrollRequest{
		TenantID:  s.tenant,
		SubjectID: s.subject,
		Modality:  models.ModalityFace,
		Sample:    models.RawSample("enroll"),
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, models.CodeDuplicateEnrollment))

	templates, err := s.templates.ListBySubject(context.Background(), s.tenant, s.subject, models.ModalityFace, true)
	s.Require().NoError(err)
	s.Len(templates, 1)

	events := s.events.Events()
	s.Require().Len(events, 2)
	s.Equal(audit.EventEnrollmentRejected, events[1].Action)
	s.Equal(string(models.CodeDuplicateEnrollment), events[1].Reason)
}

func (s *EngineSuite) TestConcurrentEnrollmentsSerializePerSubject() {
	s.samples.add(s.T(), "enroll", []float64{1, 0}, 0.9)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.engine.Enroll(context.Background(), EnrollRequest{
				TenantID:  s.tenant,
				SubjectID: s.subject,
				Modality:  models.ModalityFace,
				Sample:    models.RawSample("enroll"),
			})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	var completed, duplicates int
	for _, err := range errs {
		switch {
		case err == nil:
			completed++
		case dErrors.HasCode(err, models.CodeDuplicateEnrollment):
			duplicates++
		default:
			s.Failf("unexpected enrollment error", "%v", err)
		}
	}
	s.Equal(1, completed)
	s.Equal(workers-1, duplicates)

	templates, err := s.templates.ListBySubject(context.Background(), s.tenant, s.subject, models.ModalityFace, true)
	s.Require().NoError(err)
	s.Len(templates, 1)
}

func (s *EngineSuite) TestEnrollBelowQualityMinimum() {
	s.samples.add(s.T(), "grainy", []float64{1, 0}, 0.4)

	_, err := s.engine.Enroll(context.Background(), EnrollRequest{
		TenantID:  s.tenant,
		SubjectID: s.subject,
		Modality:  models.ModalityFace,
		Sample:    models.RawSample("grainy"),
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, models.CodeLowQuality))
	s.Empty(s.tenantAttempts())
}

func (s *EngineSuite) TestEnrollSpoofedSampleFailsLiveness() {
	_, err := s.engine.Enroll(context.Background(), EnrollRequest{
		TenantID:        s.tenant,
		SubjectID:       s.subject,
		Modality:        models.ModalityFace,
		Sample:          models.RawSample("spoof:photo-of-a-photo"),
		RequireLiveness: true,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, models.CodeLivenessFailed))
	s.Empty(s.tenantAttempts())
}

func (s *EngineSuite) TestVerifyWithoutEnrollmentIsAudited() {
	s.samples.add(s.T(), "probe", []float64{1, 0}, 0.9)

	_, err := s.engine.Verify(context.Background(), VerifyRequest{
		TenantID:  s.tenant,
		SubjectID: s.subject,
		Modality:  models.ModalityFace,
		Sample:    models.RawSample("probe"),
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, models.CodeNoEnrolledTemplate))

	attempts := s.tenantAttempts()
	s.Require().Len(attempts, 1)
	s.Equal(models.DecisionRejected, attempts[0].Decision)
	s.Equal(string(models.CodeNoEnrolledTemplate), attempts[0].Reason)
}

func (s *EngineSuite) TestVerifySpoofedSampleIsAudited() {
	s.samples.add(s.T(), "enroll", []float64{1, 0}, 0.9)
	s.enroll(s.subject, "enroll")

	_, err := s.engine.Verify(context.Background(), VerifyRequest{
		TenantID:        s.tenant,
		SubjectID:       s.subject,
		Modality:        models.ModalityFace,
		Sample:          models.RawSample("spoof:replay"),
		RequireLiveness: true,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, models.CodeLivenessFailed))

	attempts := s.tenantAttempts()
	s.Require().Len(attempts, 1)
	s.Equal(string(models.CodeLivenessFailed), attempts[0].Reason)
}

func (s *EngineSuite) TestVerifyStricterPolicyRejectsSameScore() {
	strict := models.DefaultPolicy()
	strict.VerifyThreshold = 0.85
	strict.DuplicateThreshold = 0.95
	s.Require().NoError(s.policies.Set(s.tenant, strict))

	s.samples.add(s.T(), "enroll", []float64{1, 0}, 0.9)
	s.samples.add(s.T(), "probe", []float64{0.6, 0.8}, 0.9) // scores 0.80

	enrolled := s.enroll(s.subject, "enroll")
	result, err := s.engine.Verify(context.Background(), VerifyRequest{
		TenantID:  s.tenant,
		SubjectID: s.subject,
		Modality:  models.ModalityFace,
		Sample:    models.RawSample("probe"),
	})
	s.Require().NoError(err)
	s.Equal(models.DecisionRejected, result.Decision)
	s.InDelta(0.80, result.Confidence, 1e-9)

	// The best template is still named on rejection.
	s.Require().NotNil(result.MatchedTemplateID)
	s.Equal(enrolled.TemplateID, *result.MatchedTemplateID)
	attempts := s.tenantAttempts()
	s.Require().Len(attempts, 1)
	s.Require().NotNil(attempts[0].MatchedTemplate)
	s.Equal(enrolled.TemplateID, *attempts[0].MatchedTemplate)
}

func (s *EngineSuite) TestIdentifyRanksAndTruncates() {
	s.samples.add(s.T(), "a", []float64{1, 0}, 0.9)
	s.samples.add(s.T(), "b", []float64{1, 1}, 0.9)
	s.samples.add(s.T(), "c", []float64{-1, 0}, 0.9)
	s.samples.add(s.T(), "probe", []float64{1, 0.01}, 0.9)

	subjectA := id.SubjectID(uuid.New())
	subjectB := id.SubjectID(uuid.New())
	subjectC := id.SubjectID(uuid.New())
	s.enroll(subjectA, "a")
	s.enroll(subjectB, "b")
	s.enroll(subjectC, "c")

	result, err := s.engine.Identify(context.Background(), IdentifyRequest{
		TenantID: s.tenant,
		Modality: models.ModalityFace,
		Sample:   models.RawSample("probe"),
	})
	s.Require().NoError(err)
	s.Equal(models.DecisionAccepted, result.Decision)
	s.Require().Len(result.Matches, 2)
	s.Equal(subjectA, result.Matches[0].SubjectID)
	s.Equal(subjectB, result.Matches[1].SubjectID)
	s.True(result.Matches[0].Score >= result.Matches[1].Score)

	capped, err := s.engine.Identify(context.Background(), IdentifyRequest{
		TenantID:   s.tenant,
		Modality:   models.ModalityFace,
		Sample:     models.RawSample("probe"),
		MaxResults: 1,
	})
	s.Require().NoError(err)
	s.Len(capped.Matches, 1)
}

func (s *EngineSuite) TestIdentifyEmptyResultStillAuditsBestCandidate() {
	s.samples.add(s.T(), "s1-enroll", []float64{1, 0}, 0.9)
	// cos(probe, s2) = -0.4 -> score 0.30; cos(probe, s1) = 0 -> score 0.50.
	s.samples.add(s.T(), "s2-enroll", []float64{0.916515138991168, -0.4}, 0.9)
	s.samples.add(s.T(), "s2-probe", []float64{0, 1}, 0.9)

	s1 := s.enroll(s.subject, "s1-enroll")
	s2 := id.SubjectID(uuid.New())
	s.enroll(s2, "s2-enroll")

	result, err := s.engine.Identify(context.Background(), IdentifyRequest{
		TenantID: s.tenant,
		Modality: models.ModalityFace,
		Sample:   models.RawSample("s2-probe"),
	})
	s.Require().NoError(err)
	s.Equal(models.DecisionRejected, result.Decision)
	s.Empty(result.Matches)

	attempts := s.tenantAttempts()
	s.Require().Len(attempts, 1)
	s.Equal(models.ModeIdentification, attempts[0].Mode)
	s.Equal(models.DecisionRejected, attempts[0].Decision)
	s.Require().NotNil(attempts[0].MatchedTemplate)
	s.Equal(s1.TemplateID, *attempts[0].MatchedTemplate)
	s.InDelta(0.50, attempts[0].Confidence, 1e-9)
}

func (s *EngineSuite) TestIdentifyMinConfidenceRaisesThreshold() {
	s.samples.add(s.T(), "enroll", []float64{1, 0}, 0.9)
	s.samples.add(s.T(), "probe", []float64{0.6, 0.8}, 0.9) // scores 0.80

	s.enroll(s.subject, "enroll")

	loose, err := s.engine.Identify(context.Background(), IdentifyRequest{
		TenantID: s.tenant,
		Modality: models.ModalityFace,
		Sample:   models.RawSample("probe"),
	})
	s.Require().NoError(err)
	s.Len(loose.Matches, 1)

	strict, err := s.engine.Identify(context.Background(), IdentifyRequest{
		TenantID:      s.tenant,
		Modality:      models.ModalityFace,
		Sample:        models.RawSample("probe"),
		MinConfidence: 0.9,
	})
	s.Require().NoError(err)
	s.Empty(strict.Matches)
	s.Equal(models.DecisionRejected, strict.Decision)
}

func (s *EngineSuite) TestIdentifyNeverCrossesTenants() {
	s.samples.add(s.T(), "enroll", []float64{1, 0}, 0.9)
	s.samples.add(s.T(), "probe", []float64{1, 0}, 0.9)

	other := id.TenantID(uuid.New())
	_, err := s.engine.Enroll(context.Background(), EnrollRequest{
		TenantID:  other,
		SubjectID: id.SubjectID(uuid.New()),
		Modality:  models.ModalityFace,
		Sample:    models.RawSample("enroll"),
	})
	s.Require().NoError(err)

	result, err := s.engine.Identify(context.Background(), IdentifyRequest{
		TenantID: s.tenant,
		Modality: models.ModalityFace,
		Sample:   models.RawSample("probe"),
	})
	s.Require().NoError(err)
	s.Empty(result.Matches)
	s.Equal(models.DecisionRejected, result.Decision)
}

func (s *EngineSuite) TestTemplateLifecycle() {
	ctx := context.Background()
	s.samples.add(s.T(), "enroll", []float64{1, 0}, 0.9)
	s.samples.add(s.T(), "probe", []float64{1, 0}, 0.9)
	enrolled := s.enroll(s.subject, "enroll")

	s.Require().NoError(s.engine.DeactivateTemplate(ctx, s.tenant, enrolled.TemplateID))

	_, err := s.engine.Verify(ctx, VerifyRequest{
		TenantID:  s.tenant,
		SubjectID: s.subject,
		Modality:  models.ModalityFace,
		Sample:    models.RawSample("probe"),
	})
	s.True(dErrors.HasCode(err, models.CodeNoEnrolledTemplate), "inactive templates never match")

	listed, err := s.engine.ListTemplates(ctx, s.tenant, s.subject, models.ModalityFace)
	s.Require().NoError(err)
	s.Require().Len(listed, 1, "inactive templates stay visible")
	s.False(listed[0].Active)

	err = s.engine.DeactivateTemplate(ctx, s.tenant, enrolled.TemplateID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "double deactivation conflicts")

	s.Require().NoError(s.engine.ReactivateTemplate(ctx, s.tenant, enrolled.TemplateID))
	result, err := s.engine.Verify(ctx, VerifyRequest{
		TenantID:  s.tenant,
		SubjectID: s.subject,
		Modality:  models.ModalityFace,
		Sample:    models.RawSample("probe"),
	})
	s.Require().NoError(err)
	s.Equal(models.DecisionAccepted, result.Decision)

	s.Require().NoError(s.engine.DeleteTemplate(ctx, s.tenant, enrolled.TemplateID))
	listed, err = s.engine.ListTemplates(ctx, s.tenant, s.subject, models.ModalityFace)
	s.Require().NoError(err)
	s.Empty(listed, "deleted templates disappear from every read")

	err = s.engine.ReactivateTemplate(ctx, s.tenant, enrolled.TemplateID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "deletion is terminal")

	var actions []string
	for _, e := range s.events.Events() {
		actions = append(actions, e.Action)
	}
	s.Equal([]string{
		audit.EventEnrollmentCompleted,
		audit.EventTemplateDeactivated,
		audit.EventTemplateReactivated,
		audit.EventTemplateDeleted,
	}, actions)
}

func (s *EngineSuite) TestLifecycleIsTenantScoped() {
	s.samples.add(s.T(), "enroll", []float64{1, 0}, 0.9)
	enrolled := s.enroll(s.subject, "enroll")

	err := s.engine.DeleteTemplate(context.Background(), id.TenantID(uuid.New()), enrolled.TemplateID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *EngineSuite) TestListAttemptsFiltersBySubject() {
	ctx := context.Background()
	s.samples.add(s.T(), "enroll", []float64{1, 0}, 0.9)
	s.samples.add(s.T(), "probe", []float64{1, 0}, 0.9)
	s.enroll(s.subject, "enroll")

	_, err := s.engine.Verify(ctx, VerifyRequest{
		TenantID:  s.tenant,
		SubjectID: s.subject,
		Modality:  models.ModalityFace,
		Sample:    models.RawSample("probe"),
	})
	s.Require().NoError(err)

	stranger := id.SubjectID(uuid.New())
	_, err = s.engine.Verify(ctx, VerifyRequest{
		TenantID:  s.tenant,
		SubjectID: stranger,
		Modality:  models.ModalityFace,
		Sample:    models.RawSample("probe"),
	})
	s.Require().Error(err)

	all, err := s.engine.ListAttempts(ctx, s.tenant, nil, 0)
	s.Require().NoError(err)
	s.Len(all, 2)

	mine, err := s.engine.ListAttempts(ctx, s.tenant, &s.subject, 0)
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Equal(models.DecisionAccepted, mine[0].Decision)
}
