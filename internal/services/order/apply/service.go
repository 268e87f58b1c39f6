// Package apply hosts the handler behind every status-transition event: load
// the aggregate, fold the envelope through the state machine, persist the
// result together with the implied outbound events.
package apply

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/grubline/fulfillment_service/internal/domain/models"
	"github.com/grubline/fulfillment_service/internal/metrics"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

type orderGetter interface {
	Order(ctx context.Context, orderUUID uuid.UUID) (*models.Order, error)
}

type orderSaver interface {
	Save(ctx context.Context, order *models.Order, outbound []models.EventEnvelope) error
}

type Service struct {
	log      logger.Logger
	registry *metrics.Registry

	orderGetter orderGetter
	orderSaver  orderSaver
}

func New(log logger.Logger, registry *metrics.Registry, orderGetter orderGetter, orderSaver orderSaver) *Service {
	return &Service{
		log:         log,
		registry:    registry,
		orderGetter: orderGetter,
		orderSaver:  orderSaver,
	}
}

// Handle processes one transition event. On a save conflict the error
// surfaces unchanged so the dispatcher re-runs the whole method from a fresh
// load; nothing is persisted on any failure path.
func (s *Service) Handle(ctx context.Context, envelope models.EventEnvelope) error {
	const op = "services.order.apply.Handle"

	orderUUID, err := envelope.OrderUUID()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	order, err := s.orderGetter.Order(ctx, orderUUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if order.HasApplied(envelope.EventUUID) {
		s.registry.Duplicates.Inc()
		s.log.DebugContext(ctx, op,
			logger.String("order_uuid", orderUUID.String()),
			logger.String("event_uuid", envelope.EventUUID.String()),
			logger.String("skipped", "event already applied"),
		)
		return nil
	}

	ledgerBefore := len(order.AppliedEventIDs)

	outbound, err := order.Apply(envelope)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// Apply treats a cancellation of a terminal order as a replay; there is
	// nothing to persist then.
	if len(order.AppliedEventIDs) == ledgerBefore {
		s.registry.Duplicates.Inc()
		return nil
	}

	if err = s.orderSaver.Save(ctx, order, outbound); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.InfoContext(ctx, op,
		logger.String("order_uuid", orderUUID.String()),
		logger.String("event_type", string(envelope.Type)),
		logger.String("status", order.Status.String()),
	)

	return nil
}
