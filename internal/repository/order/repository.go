package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/grubline/fulfillment_service/internal/domain/models"
	internalErrors "github.com/grubline/fulfillment_service/internal/lib/errors"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

const pgUniqueViolation = "23505"

type Repository struct {
	log logger.Logger
	db  *sqlx.DB
}

func NewRepository(log logger.Logger, db *sqlx.DB) *Repository {
	return &Repository{
		log: log,
		db:  db,
	}
}

func (or *Repository) Order(ctx context.Context, orderUUID uuid.UUID) (*models.Order, error) {
	const op = "repository.order.Order"

	const query = `
		SELECT uuid, buyer_uuid, buyer_name, status, total_cents, applied_event_ids, version
			FROM "order"
			WHERE uuid = $1
	`

	row := or.db.QueryRowContext(ctx, query, orderUUID)

	var (
		order      models.Order
		appliedIDs []string
	)
	if err := row.Scan(
		&order.OrderUUID,
		&order.BuyerUUID,
		&order.BuyerName,
		&order.Status,
		&order.TotalCents,
		pq.Array(&appliedIDs),
		&order.Version,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internalErrors.ErrOrderNotFound
		}
		or.log.Error(op, logger.String("scan order error", err.Error()))
		return nil, fmt.Errorf("%s: scan error: %w", op, err)
	}

	order.AppliedEventIDs = make([]uuid.UUID, 0, len(appliedIDs))
	for _, id := range appliedIDs {
		eventUUID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("%s: parse applied event id: %w", op, err)
		}
		order.AppliedEventIDs = append(order.AppliedEventIDs, eventUUID)
	}

	return &order, nil
}

// Create inserts a freshly submitted order together with its outbound events
// in a single transaction. A duplicate order uuid maps to ErrOrderAlreadyExists
// so the caller can treat redelivered submissions as replays.
func (or *Repository) Create(ctx context.Context, order *models.Order, outbound []models.EventEnvelope) (err error) {
	const op = "repository.order.Create"

	tx, err := or.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		or.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: begin transaction: %w", op, err)
	}

	defer func() {
		if err != nil {
			if rollBackErr := tx.Rollback(); rollBackErr != nil {
				err = errors.Join(err, fmt.Errorf("%s: rollback transaction: %w", op, rollBackErr))
			}
		}
	}()

	const orderQuery = `
		INSERT INTO "order" (uuid, buyer_uuid, buyer_name, status, total_cents, applied_event_ids, version)
			VALUES ($1, $2, $3, $4, $5, $6, 1)
	`

	if _, err = tx.ExecContext(ctx, orderQuery,
		order.OrderUUID,
		order.BuyerUUID,
		order.BuyerName,
		order.Status,
		order.TotalCents,
		pq.Array(appliedIDsToStrings(order.AppliedEventIDs)),
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return internalErrors.ErrOrderAlreadyExists
		}
		or.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: order execute statement: %w", op, err)
	}

	if err = insertOutbox(ctx, tx, order.OrderUUID, outbound); err != nil {
		or.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		or.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: commit transaction: %w", op, err)
	}

	order.Version = 1

	return nil
}

// Save persists the mutated aggregate and its outbound events atomically.
// The version predicate is the read-check-write guard: zero affected rows
// means another writer got in between the load and this save, and the caller
// must re-run from a fresh load.
func (or *Repository) Save(ctx context.Context, order *models.Order, outbound []models.EventEnvelope) (err error) {
	const op = "repository.order.Save"

	tx, err := or.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		or.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: begin transaction: %w", op, err)
	}

	defer func() {
		if err != nil {
			if rollBackErr := tx.Rollback(); rollBackErr != nil {
				err = errors.Join(err, fmt.Errorf("%s: rollback transaction: %w", op, rollBackErr))
			}
		}
	}()

	const saveQuery = `
		UPDATE "order"
			SET status = $1,
				total_cents = $2,
				applied_event_ids = $3,
				version = version + 1
			WHERE uuid = $4 AND version = $5
	`

	result, err := tx.ExecContext(ctx, saveQuery,
		order.Status,
		order.TotalCents,
		pq.Array(appliedIDsToStrings(order.AppliedEventIDs)),
		order.OrderUUID,
		order.Version,
	)
	if err != nil {
		or.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: execute statement: %w", op, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		or.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}

	if affected == 0 {
		return internalErrors.ErrConflict
	}

	if err = insertOutbox(ctx, tx, order.OrderUUID, outbound); err != nil {
		or.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		or.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: commit transaction: %w", op, err)
	}

	order.Version++

	return nil
}

func (or *Repository) OrdersByUUIDs(ctx context.Context, UUIDs []uuid.UUID) (map[uuid.UUID]models.Order, error) {
	const op = "repository.order.OrdersByUUIDs"

	ordersMap := make(map[uuid.UUID]models.Order, len(UUIDs))

	const query = `
		SELECT uuid, buyer_uuid, buyer_name, status, total_cents, version
			FROM "order"
			WHERE uuid = ANY($1)
	`

	rows, err := or.db.QueryContext(ctx, query, pq.Array(UUIDs))
	if err != nil {
		or.log.Error(op, logger.String("error", err.Error()))
		return nil, fmt.Errorf("%s: execute statement: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var order models.Order
		if err = rows.Scan(
			&order.OrderUUID,
			&order.BuyerUUID,
			&order.BuyerName,
			&order.Status,
			&order.TotalCents,
			&order.Version,
		); err != nil {
			or.log.Error(op, logger.String("scan order error", err.Error()))
			return nil, fmt.Errorf("%s: scan error: %w", op, err)
		}
		ordersMap[order.OrderUUID] = order
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	if len(ordersMap) == 0 {
		return nil, internalErrors.ErrOrderNotFound
	}

	return ordersMap, nil
}

// insertOutbox queues outbound envelopes in the caller's transaction so they
// only become visible together with the state change that produced them.
func insertOutbox(ctx context.Context, tx *sql.Tx, orderUUID uuid.UUID, outbound []models.EventEnvelope) error {
	const outboxQuery = `INSERT INTO "outbox" (order_uuid, event_type, payload) VALUES ($1, $2, $3)`

	for _, envelope := range outbound {
		payload, err := json.Marshal(envelope)
		if err != nil {
			return fmt.Errorf("marshal outbox envelope: %w", err)
		}

		if _, err = tx.ExecContext(ctx, outboxQuery, orderUUID, envelope.Type, payload); err != nil {
			return fmt.Errorf("outbox insert error: %w", err)
		}
	}

	return nil
}

func appliedIDsToStrings(ids []uuid.UUID) []string {
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		result = append(result, id.String())
	}
	return result
}
