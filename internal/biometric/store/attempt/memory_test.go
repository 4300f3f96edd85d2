package attempt

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biomatch/internal/biometric/models"
	id "biomatch/pkg/domain"
)

func newAttempt(tenant id.TenantID, at time.Time) *models.MatchAttempt {
	return models.NewAttempt(tenant, models.ModalityFace, models.ModeVerification, models.DeviceMeta{}, at)
}

func TestAppendAndListByTenant(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	tenant := id.TenantID(uuid.New())
	other := id.TenantID(uuid.New())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first := newAttempt(tenant, now)
	second := newAttempt(tenant, now.Add(time.Minute))
	foreign := newAttempt(other, now)
	for _, a := range []*models.MatchAttempt{first, second, foreign} {
		require.NoError(t, store.Append(ctx, a))
	}

	listed, err := store.ListByTenant(ctx, tenant, 10)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, second.ID, listed[0].ID, "newest first")
	assert.Equal(t, first.ID, listed[1].ID)
}

func TestListBySubjectMatchesClaimedAndMatched(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	tenant := id.TenantID(uuid.New())
	subject := id.SubjectID(uuid.New())
	now := time.Now()

	claimed := newAttempt(tenant, now)
	claimed.ClaimedSubjectID = &subject

	matched := newAttempt(tenant, now.Add(time.Second))
	matched.Mode = models.ModeIdentification
	matched.MatchedSubjectID = &subject

	unrelated := newAttempt(tenant, now.Add(2*time.Second))

	for _, a := range []*models.MatchAttempt{claimed, matched, unrelated} {
		require.NoError(t, store.Append(ctx, a))
	}

	listed, err := store.ListBySubject(ctx, tenant, subject, 10)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, matched.ID, listed[0].ID)
	assert.Equal(t, claimed.ID, listed[1].ID)
}

func TestLimitCapsResults(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	tenant := id.TenantID(uuid.New())
	now := time.Now()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, newAttempt(tenant, now.Add(time.Duration(i)*time.Second))))
	}

	listed, err := store.ListByTenant(ctx, tenant, 3)
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}

func TestAppendStoresCopy(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	tenant := id.TenantID(uuid.New())

	a := newAttempt(tenant, time.Now())
	require.NoError(t, store.Append(ctx, a))
	a.Decision = models.DecisionAccepted

	listed, err := store.ListByTenant(ctx, tenant, 1)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, models.DecisionRejected, listed[0].Decision)
}
