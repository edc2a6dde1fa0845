package audit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEvent_Defaults(t *testing.T) {
	event := &Event{EventType: EventTypePositionPersisted, Symbol: "SOL/USDT"}

	assert.Equal(t, uuid.Nil, event.ID)
	assert.True(t, event.OccurredAt.IsZero())
}

func TestLogger_LogWithoutDatabaseStillAssignsIDAndTime(t *testing.T) {
	logger := NewLogger(nil, nil, true)

	event := &Event{EventType: EventTypePositionPersisted, Symbol: "SOL/USDT", Detail: map[string]interface{}{"amount": 1.5}}
	logger.Log(context.Background(), event)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.False(t, event.OccurredAt.IsZero())
}

func TestLogger_DisabledIsNoop(t *testing.T) {
	logger := NewLogger(nil, nil, false)
	logger.Log(context.Background(), &Event{EventType: EventTypeOrderPlaced})
}

func TestLogger_QueryWithoutDatabaseReturnsNil(t *testing.T) {
	logger := NewLogger(nil, nil, true)
	events, err := logger.Query(context.Background(), QueryFilters{Limit: 10})
	assert.NoError(t, err)
	assert.Nil(t, events)
}

func TestEventTypesAreUniqueAndNonEmpty(t *testing.T) {
	types := []EventType{
		EventTypePositionLoaded,
		EventTypePositionPersisted,
		EventTypePositionReconciled,
		EventTypePositionEvicted,
		EventTypeProtectionMissing,
		EventTypeDuplicateBuyBlocked,
		EventTypeOrderPlaced,
		EventTypeOrderFilled,
		EventTypeGatewayTransient,
		EventTypeConfigUpdated,
	}

	seen := make(map[EventType]bool)
	for _, et := range types {
		assert.False(t, seen[et], "duplicate event type: %s", et)
		assert.NotEmpty(t, string(et))
		seen[et] = true
	}
}
