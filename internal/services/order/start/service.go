// Package start creates the order aggregate when the submission event
// arrives. It is the only handler that writes a new order row.
package start

import (
	"context"
	"errors"
	"fmt"

	"github.com/grubline/fulfillment_service/internal/domain/models"
	internalErrors "github.com/grubline/fulfillment_service/internal/lib/errors"
	"github.com/grubline/fulfillment_service/internal/metrics"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

type orderCreator interface {
	Create(ctx context.Context, order *models.Order, outbound []models.EventEnvelope) error
}

type Service struct {
	log      logger.Logger
	registry *metrics.Registry

	orderCreator orderCreator
}

func New(log logger.Logger, registry *metrics.Registry, orderCreator orderCreator) *Service {
	return &Service{
		log:          log,
		registry:     registry,
		orderCreator: orderCreator,
	}
}

// Handle builds a Submitted aggregate from the submission payload. A
// redelivered submission hits the unique order constraint and is treated as a
// replay, not a failure.
func (s *Service) Handle(ctx context.Context, envelope models.EventEnvelope) error {
	const op = "services.order.start.Handle"

	var payload models.OrderSubmittedPayload
	if err := envelope.DecodePayload(&payload); err != nil {
		return fmt.Errorf("%s: %w: %s", op, internalErrors.ErrUnknownEventType, err.Error())
	}

	order := models.NewOrder(payload.OrderUUID, payload.BuyerUUID, payload.BuyerName)
	order.AppliedEventIDs = append(order.AppliedEventIDs, envelope.EventUUID)

	submitted, err := models.NewEnvelope(models.OrderStatusChanged, models.StatusChangedPayload{
		OrderUUID: order.OrderUUID,
		Status:    order.Status,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = s.orderCreator.Create(ctx, order, []models.EventEnvelope{submitted}); err != nil {
		if errors.Is(err, internalErrors.ErrOrderAlreadyExists) {
			s.registry.Duplicates.Inc()
			s.log.DebugContext(ctx, op,
				logger.String("order_uuid", order.OrderUUID.String()),
				logger.String("skipped", "order already created"),
			)
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.InfoContext(ctx, op,
		logger.String("order_uuid", order.OrderUUID.String()),
		logger.String("buyer_name", order.BuyerName),
	)

	return nil
}
