package events

import (
	"context"

	"github.com/pharmastock/pharmastock-backend/internal/inventory/repository"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
	"github.com/pharmastock/pharmastock-backend/pkg/messaging"
)

// InventoryEventPublisher publishes inventory-related events. A nil
// publisher is valid and drops everything, so the service layer never has
// to care whether the broker is wired.
type InventoryEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}

	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishCategoryChanged publishes a category lifecycle event
// (created or deleted)
func (p *InventoryEventPublisher) PublishCategoryChanged(ctx context.Context, eventType, categoryID, name string) {
	if p == nil {
		return
	}

	data := map[string]string{"category_id": categoryID, "name": name}
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.WithError(err).Error().Str("category_id", categoryID).Msg("failed to publish category event")
	}
}

// PublishProductChanged publishes a product lifecycle event
// (created, updated or deleted)
func (p *InventoryEventPublisher) PublishProductChanged(ctx context.Context, eventType, productID, name string) {
	if p == nil {
		return
	}

	data := map[string]string{"product_id": productID, "name": name}
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.WithError(err).Error().Str("product_id", productID).Msg("failed to publish product event")
	}
}

// PublishBatchCreated publishes a batch created event
func (p *InventoryEventPublisher) PublishBatchCreated(ctx context.Context, batch *repository.Batch) {
	if p == nil {
		return
	}

	data := messaging.BatchCreatedEvent{
		BatchID:        batch.ID,
		ProductID:      batch.ProductID,
		Number:         batch.Number,
		ExpirationDate: batch.ExpirationDate.Format("2006-01-02"),
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchCreated, data); err != nil {
		p.logger.WithError(err).Error().Str("batch_id", batch.ID).Msg("failed to publish batch created event")
	}
}

// PublishMovementRecorded publishes a movement recorded event
func (p *InventoryEventPublisher) PublishMovementRecorded(ctx context.Context, movement *repository.Movement, productID string, newStock int) {
	if p == nil {
		return
	}

	data := messaging.MovementRecordedEvent{
		MovementID: movement.ID,
		BatchID:    movement.BatchID,
		ProductID:  productID,
		Type:       movement.Type,
		Quantity:   movement.Quantity,
		NewStock:   newStock,
	}

	if err := p.publisher.Publish(ctx, messaging.EventMovementRecorded, data); err != nil {
		p.logger.WithError(err).Error().Str("movement_id", movement.ID).Msg("failed to publish movement recorded event")
	}
}

// PublishMovementDeleted publishes a movement deleted event
func (p *InventoryEventPublisher) PublishMovementDeleted(ctx context.Context, movement *repository.Movement, newStock int) {
	if p == nil {
		return
	}

	data := messaging.MovementDeletedEvent{
		MovementID: movement.ID,
		BatchID:    movement.BatchID,
		Type:       movement.Type,
		Quantity:   movement.Quantity,
		NewStock:   newStock,
	}

	if err := p.publisher.Publish(ctx, messaging.EventMovementDeleted, data); err != nil {
		p.logger.WithError(err).Error().Str("movement_id", movement.ID).Msg("failed to publish movement deleted event")
	}
}

// PublishBatchDepleted publishes a batch depleted event when an output
// drives a batch's stock to zero
func (p *InventoryEventPublisher) PublishBatchDepleted(ctx context.Context, batch *repository.Batch) {
	if p == nil {
		return
	}

	data := messaging.BatchDepletedEvent{
		BatchID:   batch.ID,
		ProductID: batch.ProductID,
		Number:    batch.Number,
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchDepleted, data); err != nil {
		p.logger.WithError(err).Error().Str("batch_id", batch.ID).Msg("failed to publish batch depleted event")
	}
}
