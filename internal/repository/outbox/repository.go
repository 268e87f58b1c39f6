package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/grubline/fulfillment_service/internal/domain/models"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

const fetchLimit = 100

type Repository struct {
	db *sqlx.DB

	log logger.Logger
}

func New(log logger.Logger, db *sqlx.DB) *Repository {
	return &Repository{db: db, log: log}
}

// Enqueue queues a single envelope outside of an aggregate transaction. Used
// by the inbound edges (webhook, cancel endpoint) to push events into the
// same at-least-once pipeline the services consume from.
func (or *Repository) Enqueue(ctx context.Context, orderUUID uuid.UUID, envelope models.EventEnvelope) error {
	const op = "repository.outbox.Enqueue"

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("%s: marshal envelope: %w", op, err)
	}

	const query = `INSERT INTO "outbox" (order_uuid, event_type, payload) VALUES ($1, $2, $3)`

	if _, err = or.db.ExecContext(ctx, query, orderUUID, envelope.Type, payload); err != nil {
		or.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return nil
}

func (or *Repository) FetchUnprocessedMessages(ctx context.Context) ([]models.OutBoxMessage, error) {
	const op = "repository.outbox.FetchUnprocessedMessages"

	const query = `
		SELECT id, order_uuid, event_type, payload
			FROM "outbox"
			ORDER BY id
			LIMIT $1
	`

	rows, err := or.db.QueryContext(ctx, query, fetchLimit)
	if err != nil {
		or.log.Error(op, logger.String("error", err.Error()))
		return nil, fmt.Errorf("%s: execute statement: %w", op, err)
	}
	defer rows.Close()

	var messages []models.OutBoxMessage
	for rows.Next() {
		var msg models.OutBoxMessage
		if err = rows.Scan(&msg.ID, &msg.OrderUUID, &msg.EventType, &msg.Payload); err != nil {
			or.log.Error(op, logger.String("scan error", err.Error()))
			return nil, fmt.Errorf("%s: scan error: %w", op, err)
		}
		messages = append(messages, msg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return messages, nil
}

func (or *Repository) Delete(ctx context.Context, ids []int) error {
	const op = "repository.outbox.Delete"

	if len(ids) == 0 {
		return nil
	}

	const query = `DELETE FROM "outbox" WHERE id = ANY($1)`

	if _, err := or.db.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		or.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return nil
}
