package delivery

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/grubline/fulfillment_service/internal/domain/models"
	internalErrors "github.com/grubline/fulfillment_service/internal/lib/errors"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

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

func (dr *Repository) Create(ctx context.Context, assignment *models.DeliveryAssignment) error {
	const op = "repository.delivery.Create"

	const query = `
		INSERT INTO delivery_assignment
			(id, order_uuid, restaurant_lat, restaurant_lon, customer_lat, customer_lon,
			 distance_km, fee_cents, status, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
	`

	if _, err := dr.db.ExecContext(ctx, query,
		assignment.ID,
		assignment.OrderUUID,
		assignment.RestaurantCoord.Lat,
		assignment.RestaurantCoord.Lon,
		assignment.CustomerCoord.Lat,
		assignment.CustomerCoord.Lon,
		assignment.DistanceKm,
		assignment.FeeCents,
		assignment.Status,
	); err != nil {
		dr.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: execute statement: %w", op, err)
	}

	assignment.Version = 1

	return nil
}

func (dr *Repository) ByUUID(ctx context.Context, id uuid.UUID) (*models.DeliveryAssignment, error) {
	const op = "repository.delivery.ByUUID"

	const query = `
		SELECT id, order_uuid, restaurant_lat, restaurant_lon, customer_lat, customer_lon,
			   distance_km, fee_cents, status, version
			FROM delivery_assignment
			WHERE id = $1
	`

	row := dr.db.QueryRowContext(ctx, query, id)

	var assignment models.DeliveryAssignment
	if err := row.Scan(
		&assignment.ID,
		&assignment.OrderUUID,
		&assignment.RestaurantCoord.Lat,
		&assignment.RestaurantCoord.Lon,
		&assignment.CustomerCoord.Lat,
		&assignment.CustomerCoord.Lon,
		&assignment.DistanceKm,
		&assignment.FeeCents,
		&assignment.Status,
		&assignment.Version,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internalErrors.ErrDeliveryNotFound
		}
		dr.log.Error(op, logger.String("scan error", err.Error()))
		return nil, fmt.Errorf("%s: scan error: %w", op, err)
	}

	return &assignment, nil
}

// Save persists the assignment's status together with the outbound envelope
// announcing it. Distance and fee are a binding quote and are never updated.
func (dr *Repository) Save(ctx context.Context, assignment *models.DeliveryAssignment, outbound []models.EventEnvelope) (err error) {
	const op = "repository.delivery.Save"

	tx, err := dr.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		dr.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: begin transaction: %w", op, err)
	}

	defer func() {
		if err != nil {
			if rollBackErr := tx.Rollback(); rollBackErr != nil {
				err = errors.Join(err, fmt.Errorf("%s: rollback transaction: %w", op, rollBackErr))
			}
		}
	}()

	const query = `
		UPDATE delivery_assignment
			SET status = $1, version = version + 1
			WHERE id = $2 AND version = $3
	`

	result, err := tx.ExecContext(ctx, query, assignment.Status, assignment.ID, assignment.Version)
	if err != nil {
		dr.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: execute statement: %w", op, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if affected == 0 {
		return internalErrors.ErrConflict
	}

	const outboxQuery = `INSERT INTO "outbox" (order_uuid, event_type, payload) VALUES ($1, $2, $3)`

	for _, envelope := range outbound {
		payload, marshalErr := json.Marshal(envelope)
		if marshalErr != nil {
			err = fmt.Errorf("%s: marshal outbox envelope: %w", op, marshalErr)
			return err
		}

		if _, err = tx.ExecContext(ctx, outboxQuery, assignment.OrderUUID, envelope.Type, payload); err != nil {
			dr.log.Error(op, logger.String("outbox insert error", err.Error()))
			return fmt.Errorf("%s: outbox insert error: %w", op, err)
		}
	}

	if err = tx.Commit(); err != nil {
		dr.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: commit transaction: %w", op, err)
	}

	assignment.Version++

	return nil
}
