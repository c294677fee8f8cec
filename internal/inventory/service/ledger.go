package service

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pharmastock/pharmastock-backend/internal/inventory/events"
	"github.com/pharmastock/pharmastock-backend/internal/inventory/repository"
	"github.com/pharmastock/pharmastock-backend/pkg/database"
	"github.com/pharmastock/pharmastock-backend/pkg/errors"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
)

// LedgerService owns batches and their movement logs. Every stock change
// goes through a transaction that locks the batch row, so concurrent
// operations on the same batch serialize while other batches run freely.
type LedgerService struct {
	db        *database.DB
	batches   *repository.BatchRepository
	movements *repository.MovementRepository
	products  *repository.ProductRepository
	events    *events.InventoryEventPublisher
	logger    *logger.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	db *database.DB,
	batches *repository.BatchRepository,
	movements *repository.MovementRepository,
	products *repository.ProductRepository,
	eventPublisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *LedgerService {
	return &LedgerService{
		db:        db,
		batches:   batches,
		movements: movements,
		products:  products,
		events:    eventPublisher,
		logger:    log,
	}
}

// acquireTimeout bounds how long a transaction waits on a batch row lock,
// so callers stuck behind a long-running transaction fail fast instead of
// queueing indefinitely.
func acquireTimeout(ctx context.Context, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(ctx, `SET LOCAL lock_timeout = '5s'`)
	return err
}

// errLotRaced marks a first-input batch insert that lost the race with a
// concurrent first input for the same lot. The aborted transaction is
// retried once; the second pass locks the winner's row.
var errLotRaced = stderrors.New("lot created concurrently")

// CreateBatchInput is the input for explicitly opening a batch
type CreateBatchInput struct {
	ProductID      string    `json:"productId" validate:"required,uuid4"`
	Number         int       `json:"number" validate:"required,gt=0"`
	ExpirationDate time.Time `json:"expirationDate" validate:"required"`
}

// CreateBatch opens an empty batch for a product. Stock starts at zero and
// only input movements raise it.
func (s *LedgerService) CreateBatch(ctx context.Context, input *CreateBatchInput) (*repository.Batch, error) {
	product, err := s.products.GetByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	batch := &repository.Batch{
		ProductID:      product.ID,
		Number:         input.Number,
		ExpirationDate: input.ExpirationDate,
		Stock:          0,
	}

	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, err
	}

	s.events.PublishBatchCreated(ctx, batch)
	s.logger.WithBatchID(batch.ID).Info().Str("product_id", batch.ProductID).Int("number", batch.Number).Msg("batch created")
	return batch, nil
}

// GetBatch gets a batch by ID
func (s *LedgerService) GetBatch(ctx context.Context, id string) (*repository.Batch, error) {
	return s.batches.GetByID(ctx, id)
}

// ListBatches lists all batches with product expansion
func (s *LedgerService) ListBatches(ctx context.Context) ([]*repository.BatchWithProduct, error) {
	return s.batches.List(ctx)
}

// ListBatchesByProduct lists a product's batches
func (s *LedgerService) ListBatchesByProduct(ctx context.Context, productID string) ([]*repository.Batch, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.batches.ListByProduct(ctx, productID)
}

// UpdateBatchInput corrects a batch's lot number or expiration date
type UpdateBatchInput struct {
	Number         *int       `json:"number,omitempty" validate:"omitempty,gt=0"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
}

// UpdateBatch corrects batch metadata. Stock is never writable here.
func (s *LedgerService) UpdateBatch(ctx context.Context, id string, input *UpdateBatchInput) (*repository.Batch, error) {
	batch, err := s.batches.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Number != nil {
		batch.Number = *input.Number
	}
	if input.ExpirationDate != nil {
		batch.ExpirationDate = *input.ExpirationDate
	}

	if err := s.batches.Update(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// DeleteBatch removes a batch with no recorded movements
func (s *LedgerService) DeleteBatch(ctx context.Context, id string) error {
	count, err := s.movements.CountByBatch(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.Conflict("batch has recorded movements")
	}
	return s.batches.Delete(ctx, id)
}

// RecordInputInput is the input for recording stock arriving. When the lot
// number is new for the product, a batch is created implicitly and the
// expiration date is required.
type RecordInputInput struct {
	ProductID   string     `json:"productId" validate:"required,uuid4"`
	BatchNumber int        `json:"batchNumber" validate:"required,gt=0"`
	Quantity    int        `json:"quantity" validate:"required,gt=0"`
	Caducation  *time.Time `json:"caducation,omitempty"`
}

// RecordInput appends an input movement, creating the batch on first use
// of a lot number.
func (s *LedgerService) RecordInput(ctx context.Context, input *RecordInputInput) (*repository.Movement, *repository.Batch, error) {
	if input.Quantity <= 0 {
		return nil, nil, errors.Validation(map[string]string{"quantity": "quantity must be greater than zero"})
	}

	product, err := s.products.GetByID(ctx, input.ProductID)
	if err != nil {
		return nil, nil, err
	}
	if !product.Active {
		return nil, nil, errors.Validation(map[string]string{"productId": "product is inactive"})
	}

	var movement *repository.Movement
	var batch *repository.Batch
	var created bool

	attempt := func() error {
		movement, batch, created = nil, nil, false

		return s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
			if err := acquireTimeout(ctx, tx); err != nil {
				return err
			}

			var err error
			batch, err = s.batches.GetByLotForUpdate(ctx, tx, product.ID, input.BatchNumber)
			if errors.Is(err, errors.ErrNotFound) {
				if input.Caducation == nil {
					return errors.Validation(map[string]string{"caducation": "expiration date is required for a new batch"})
				}
				batch = &repository.Batch{
					ProductID:      product.ID,
					Number:         input.BatchNumber,
					ExpirationDate: *input.Caducation,
					Stock:          0,
				}
				if err := s.batches.CreateTx(ctx, tx, batch); err != nil {
					// FOR UPDATE cannot lock a row that does not exist yet,
					// so a concurrent first input for the same lot may win
					// the insert. The loser retries against the winner's
					// batch instead of surfacing the unique violation.
					if errors.Is(err, errors.ErrConflict) {
						return errLotRaced
					}
					return err
				}
				created = true
			} else if err != nil {
				return err
			}

			movement = &repository.Movement{
				BatchID:  batch.ID,
				Type:     repository.MovementTypeInput,
				Quantity: input.Quantity,
			}
			if err := s.movements.CreateTx(ctx, tx, movement); err != nil {
				return err
			}

			batch.Stock += input.Quantity
			return s.batches.SetStockTx(ctx, tx, batch.ID, batch.Stock)
		})
	}

	err = attempt()
	if errors.Is(err, errLotRaced) {
		err = attempt()
	}
	if errors.Is(err, errLotRaced) {
		err = errors.Conflict("a batch with this lot number already exists for the product")
	}
	if err != nil {
		return nil, nil, err
	}

	if created {
		s.events.PublishBatchCreated(ctx, batch)
	}
	s.events.PublishMovementRecorded(ctx, movement, batch.ProductID, batch.Stock)
	s.logger.WithBatchID(batch.ID).Info().
		Str("movement_id", movement.ID).
		Int("quantity", input.Quantity).
		Int("stock", batch.Stock).
		Msg("input recorded")

	return movement, batch, nil
}

// RecordOutputInput is the input for recording stock leaving a batch
type RecordOutputInput struct {
	BatchID  string `json:"batchId" validate:"required,uuid4"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

// RecordOutput appends an output movement. The quantity may never exceed
// the batch's current stock.
func (s *LedgerService) RecordOutput(ctx context.Context, input *RecordOutputInput) (*repository.Movement, *repository.Batch, error) {
	if input.Quantity <= 0 {
		return nil, nil, errors.Validation(map[string]string{"quantity": "quantity must be greater than zero"})
	}

	var movement *repository.Movement
	var batch *repository.Batch

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := acquireTimeout(ctx, tx); err != nil {
			return err
		}

		var err error
		batch, err = s.batches.GetForUpdate(ctx, tx, input.BatchID)
		if err != nil {
			return err
		}

		if input.Quantity > batch.Stock {
			return errors.InsufficientStock(input.Quantity, batch.Stock)
		}

		movement = &repository.Movement{
			BatchID:  batch.ID,
			Type:     repository.MovementTypeOutput,
			Quantity: input.Quantity,
		}
		if err := s.movements.CreateTx(ctx, tx, movement); err != nil {
			return err
		}

		batch.Stock -= input.Quantity
		return s.batches.SetStockTx(ctx, tx, batch.ID, batch.Stock)
	})
	if err != nil {
		return nil, nil, err
	}

	s.events.PublishMovementRecorded(ctx, movement, batch.ProductID, batch.Stock)
	if batch.Stock == 0 {
		s.events.PublishBatchDepleted(ctx, batch)
	}
	s.logger.WithBatchID(batch.ID).Info().
		Str("movement_id", movement.ID).
		Int("quantity", input.Quantity).
		Int("stock", batch.Stock).
		Msg("output recorded")

	return movement, batch, nil
}

// ListMovements lists movements of one type with expansion, newest first
func (s *LedgerService) ListMovements(ctx context.Context, movementType string) ([]*repository.MovementDetail, error) {
	return s.movements.List(ctx, movementType)
}

// DeleteMovement removes a movement and reverses its stock effect. The
// remaining log is replayed in order; if the running balance would dip
// below zero at any point, the deletion is refused.
func (s *LedgerService) DeleteMovement(ctx context.Context, id, movementType string) error {
	target, err := s.movements.GetByID(ctx, id, movementType)
	if err != nil {
		return err
	}

	var batch *repository.Batch

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := acquireTimeout(ctx, tx); err != nil {
			return err
		}

		var err error
		batch, err = s.batches.GetForUpdate(ctx, tx, target.BatchID)
		if err != nil {
			return err
		}

		log, err := s.movements.ListByBatchTx(ctx, tx, batch.ID)
		if err != nil {
			return err
		}

		finalStock, ok := replayWithout(log, target.ID)
		if !ok {
			return errors.Conflict("removing this movement would leave the batch with negative stock")
		}

		if err := s.movements.DeleteTx(ctx, tx, target.ID); err != nil {
			return err
		}

		batch.Stock = finalStock
		return s.batches.SetStockTx(ctx, tx, batch.ID, finalStock)
	})
	if err != nil {
		return err
	}

	s.events.PublishMovementDeleted(ctx, target, batch.Stock)
	s.logger.WithBatchID(batch.ID).Info().
		Str("movement_id", target.ID).
		Int("stock", batch.Stock).
		Msg("movement deleted")

	return nil
}

// replayWithout replays a batch's movement log in ledger order, skipping
// one movement, and reports the final balance. ok is false when any prefix
// of the replayed log goes negative.
func replayWithout(log []*repository.Movement, excludeID string) (finalStock int, ok bool) {
	balance := 0
	for _, m := range log {
		if m.ID == excludeID {
			continue
		}
		switch m.Type {
		case repository.MovementTypeInput:
			balance += m.Quantity
		case repository.MovementTypeOutput:
			balance -= m.Quantity
		}
		if balance < 0 {
			return 0, false
		}
	}
	return balance, true
}
