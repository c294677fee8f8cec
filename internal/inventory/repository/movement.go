package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmastock/pharmastock-backend/pkg/database"
	"github.com/pharmastock/pharmastock-backend/pkg/errors"
)

// Movement types
const (
	MovementTypeInput  = "input"
	MovementTypeOutput = "output"
)

// Movement is one append-only entry in a batch's movement log.
type Movement struct {
	ID        string    `db:"id" json:"id"`
	BatchID   string    `db:"batch_id" json:"batchId"`
	Type      string    `db:"type" json:"type"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// MovementDetail is a movement joined with its batch and product for
// list views and recent activity.
type MovementDetail struct {
	Movement
	BatchNumber int    `db:"batch_number" json:"batchNumber"`
	ProductID   string `db:"product_id" json:"productId"`
	ProductName string `db:"product_name" json:"productName"`
}

// MovementRepository handles movement persistence
type MovementRepository struct {
	db *database.DB
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db *database.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// CreateTx appends a movement inside an open transaction. The caller holds
// the batch row lock and updates the derived stock in the same transaction.
func (r *MovementRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, movement *Movement) error {
	if movement.ID == "" {
		movement.ID = uuid.New().String()
	}

	query := `
		INSERT INTO movements (id, batch_id, type, quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err := tx.QueryRowxContext(ctx, query,
		movement.ID, movement.BatchID, movement.Type, movement.Quantity,
	).Scan(&movement.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a movement by ID, optionally constrained to a type so that
// the input and output endpoints cannot address each other's entries.
func (r *MovementRepository) GetByID(ctx context.Context, id, movementType string) (*Movement, error) {
	var movement Movement
	var err error
	if movementType == "" {
		err = r.db.GetContext(ctx, &movement, `SELECT * FROM movements WHERE id = $1`, id)
	} else {
		err = r.db.GetContext(ctx, &movement, `SELECT * FROM movements WHERE id = $1 AND type = $2`, id, movementType)
	}
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("movement")
		}
		return nil, err
	}
	return &movement, nil
}

// ListByBatchTx loads a batch's full movement log in ledger order
// (created_at, then id as tiebreaker) inside an open transaction.
// This is the order replayed when a movement is deleted.
func (r *MovementRepository) ListByBatchTx(ctx context.Context, tx *sqlx.Tx, batchID string) ([]*Movement, error) {
	var movements []*Movement
	query := `SELECT * FROM movements WHERE batch_id = $1 ORDER BY created_at, id`
	if err := tx.SelectContext(ctx, &movements, query, batchID); err != nil {
		return nil, err
	}
	return movements, nil
}

// DeleteTx removes a movement inside an open transaction. The caller has
// already replayed the remaining log and verified it stays non-negative.
func (r *MovementRepository) DeleteTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM movements WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("movement")
	}

	return nil
}

// List lists movements of one type with batch and product expansion,
// newest first.
func (r *MovementRepository) List(ctx context.Context, movementType string) ([]*MovementDetail, error) {
	var movements []*MovementDetail
	query := `
		SELECT m.*, b.number AS batch_number, p.id AS product_id, p.name AS product_name
		FROM movements m
		JOIN batches b ON b.id = m.batch_id
		JOIN products p ON p.id = b.product_id
		WHERE m.type = $1
		ORDER BY m.created_at DESC, m.id DESC
	`
	if err := r.db.SelectContext(ctx, &movements, query, movementType); err != nil {
		return nil, err
	}
	return movements, nil
}

// ListSince loads all movements created at or after the cutoff, oldest
// first. Used to build the daily movement series.
func (r *MovementRepository) ListSince(ctx context.Context, cutoff time.Time) ([]*Movement, error) {
	var movements []*Movement
	query := `SELECT * FROM movements WHERE created_at >= $1 ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &movements, query, cutoff); err != nil {
		return nil, err
	}
	return movements, nil
}

// ListRecent loads the most recent movements with expansion, newest first
func (r *MovementRepository) ListRecent(ctx context.Context, limit int) ([]*MovementDetail, error) {
	var movements []*MovementDetail
	query := `
		SELECT m.*, b.number AS batch_number, p.id AS product_id, p.name AS product_name
		FROM movements m
		JOIN batches b ON b.id = m.batch_id
		JOIN products p ON p.id = b.product_id
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $1
	`
	if err := r.db.SelectContext(ctx, &movements, query, limit); err != nil {
		return nil, err
	}
	return movements, nil
}

// CountByBatch returns the number of movements recorded against a batch
func (r *MovementRepository) CountByBatch(ctx context.Context, batchID string) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM movements WHERE batch_id = $1`
	if err := r.db.GetContext(ctx, &count, query, batchID); err != nil {
		return 0, err
	}
	return count, nil
}

// CountSince counts movements of one type created at or after the cutoff
func (r *MovementRepository) CountSince(ctx context.Context, movementType string, cutoff time.Time) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM movements WHERE type = $1 AND created_at >= $2`
	if err := r.db.GetContext(ctx, &count, query, movementType, cutoff); err != nil {
		return 0, err
	}
	return count, nil
}
