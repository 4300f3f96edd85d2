//go:build integration

package attempt_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"

	"biomatch/internal/biometric/models"
	"biomatch/internal/biometric/store/attempt"
	id "biomatch/pkg/domain"
	"biomatch/pkg/testutil/containers"
)

type PostgresAttemptSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	db       *sql.DB
	store    *attempt.Postgres
}

func TestPostgresAttemptSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAttemptSuite))
}

func (s *PostgresAttemptSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())

	db, err := sql.Open("postgres", s.postgres.URL)
	s.Require().NoError(err)
	s.db = db
	s.T().Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(attempt.Schema)
	s.Require().NoError(err)
	s.store = attempt.NewPostgres(db)
}

func (s *PostgresAttemptSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "match_attempts"))
}

func (s *PostgresAttemptSuite) TestRoundTripWithNullableFields() {
	ctx := context.Background()
	tenant := id.TenantID(uuid.New())
	subject := id.SubjectID(uuid.New())
	templateID := id.NewTemplateID()
	now := time.Now().UTC().Truncate(time.Microsecond)

	accepted := models.NewAttempt(tenant, models.ModalityFace, models.ModeVerification,
		models.DeviceMeta{DeviceID: "phone-1", DeviceType: "mobile"}, now)
	accepted.ClaimedSubjectID = &subject
	accepted.MatchedSubjectID = &subject
	accepted.MatchedTemplate = &templateID
	accepted.Confidence = 0.91
	accepted.Decision = models.DecisionAccepted

	rejected := models.NewAttempt(tenant, models.ModalityVoice, models.ModeIdentification, models.DeviceMeta{}, now.Add(time.Second))
	rejected.Reason = "no_subject_detected"

	s.Require().NoError(s.store.Append(ctx, accepted))
	s.Require().NoError(s.store.Append(ctx, rejected))

	listed, err := s.store.ListByTenant(ctx, tenant, 10)
	s.Require().NoError(err)
	s.Require().Len(listed, 2)

	s.Equal(rejected.ID, listed[0].ID, "newest first")
	s.Nil(listed[0].ClaimedSubjectID)
	s.Nil(listed[0].MatchedTemplate)
	s.Equal("no_subject_detected", listed[0].Reason)

	s.Equal(accepted.ID, listed[1].ID)
	s.Require().NotNil(listed[1].MatchedTemplate)
	s.Equal(templateID, *listed[1].MatchedTemplate)
	s.Equal(models.DecisionAccepted, listed[1].Decision)
	s.InDelta(0.91, listed[1].Confidence, 1e-9)
}

func (s *PostgresAttemptSuite) TestListBySubject() {
	ctx := context.Background()
	tenant := id.TenantID(uuid.New())
	subject := id.SubjectID(uuid.New())
	now := time.Now().UTC()

	mine := models.NewAttempt(tenant, models.ModalityFace, models.ModeVerification, models.DeviceMeta{}, now)
	mine.ClaimedSubjectID = &subject
	other := models.NewAttempt(tenant, models.ModalityFace, models.ModeVerification, models.DeviceMeta{}, now)

	s.Require().NoError(s.store.Append(ctx, mine))
	s.Require().NoError(s.store.Append(ctx, other))

	listed, err := s.store.ListBySubject(ctx, tenant, subject, 10)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(mine.ID, listed[0].ID)
}
