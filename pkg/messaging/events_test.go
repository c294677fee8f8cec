package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent_ConsumerCanDecodePayload(t *testing.T) {
	payload := MovementRecordedEvent{
		MovementID: "m-1",
		BatchID:    "b-1",
		ProductID:  "p-1",
		Type:       "output",
		Quantity:   40,
		NewStock:   60,
	}

	event, err := NewEvent(EventMovementRecorded, "inventory-service", "req-123", payload)
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventMovementRecorded, event.Type)
	assert.Equal(t, "req-123", event.CorrelationID)

	var decoded MovementRecordedEvent
	require.NoError(t, event.UnmarshalData(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestCorrelationID_FlowsThroughContext(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "req-456")
	assert.Equal(t, "req-456", getCorrelationID(ctx))

	// An unstamped context yields an empty correlation ID, not a panic.
	assert.Empty(t, getCorrelationID(context.Background()))
}
