package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Catalog events
	EventCategoryCreated = "catalog.category.created"
	EventCategoryDeleted = "catalog.category.deleted"
	EventProductCreated  = "catalog.product.created"
	EventProductUpdated  = "catalog.product.updated"
	EventProductDeleted  = "catalog.product.deleted"

	// Ledger events
	EventBatchCreated     = "inventory.batch.created"
	EventMovementRecorded = "inventory.movement.recorded"
	EventMovementDeleted  = "inventory.movement.deleted"
	EventBatchDepleted    = "inventory.batch.depleted"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// BatchCreatedEvent is published when a new lot is opened, either explicitly
// or implicitly by the first input movement.
type BatchCreatedEvent struct {
	BatchID        string `json:"batch_id"`
	ProductID      string `json:"product_id"`
	Number         int    `json:"number"`
	ExpirationDate string `json:"expiration_date"`
}

// MovementRecordedEvent is published after a movement has been committed
// together with its stock effect.
type MovementRecordedEvent struct {
	MovementID string `json:"movement_id"`
	BatchID    string `json:"batch_id"`
	ProductID  string `json:"product_id"`
	Type       string `json:"type"`
	Quantity   int    `json:"quantity"`
	NewStock   int    `json:"new_stock"`
}

// MovementDeletedEvent is published when a movement is removed and its stock
// effect reversed.
type MovementDeletedEvent struct {
	MovementID string `json:"movement_id"`
	BatchID    string `json:"batch_id"`
	Type       string `json:"type"`
	Quantity   int    `json:"quantity"`
	NewStock   int    `json:"new_stock"`
}

// BatchDepletedEvent is published when an output drives a batch's stock to
// zero; the batch is retired logically but remains queryable.
type BatchDepletedEvent struct {
	BatchID   string `json:"batch_id"`
	ProductID string `json:"product_id"`
	Number    int    `json:"number"`
}
