package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "biomatch/pkg/domain"
)

func TestInMemoryCollectsEvents(t *testing.T) {
	sink := NewInMemory()
	tenant := id.TenantID(uuid.New())

	err := sink.Emit(context.Background(), Event{
		TenantID: tenant,
		Action:   EventEnrollmentCompleted,
		Modality: "face",
	})
	require.NoError(t, err)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventEnrollmentCompleted, events[0].Action)
	assert.Equal(t, tenant, events[0].TenantID)
	assert.False(t, events[0].Timestamp.IsZero(), "missing timestamps are filled in")
}

func TestInMemoryKeepsExplicitTimestamp(t *testing.T) {
	sink := NewInMemory()
	at := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, sink.Emit(context.Background(), Event{
		TenantID:  id.TenantID(uuid.New()),
		Action:    EventTemplateDeleted,
		Timestamp: at,
	}))

	events := sink.Events()
	require.Len(t, events, 1)
	assert.True(t, at.Equal(events[0].Timestamp))
}

func TestEventsReturnsSnapshot(t *testing.T) {
	sink := NewInMemory()
	require.NoError(t, sink.Emit(context.Background(), Event{Action: EventTemplateDeactivated}))

	snapshot := sink.Events()
	snapshot[0].Action = "mutated"

	assert.Equal(t, EventTemplateDeactivated, sink.Events()[0].Action)
}
