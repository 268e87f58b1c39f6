// Package delivery manages delivery assignments: a binding distance/fee quote
// computed once at creation, and a small Assigned -> EnRoute -> Delivered
// lifecycle whose completion folds back into the order via an outbound event.
package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/grubline/fulfillment_service/internal/domain/models"
	"github.com/grubline/fulfillment_service/internal/geo"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

type deliveryCreator interface {
	Create(ctx context.Context, assignment *models.DeliveryAssignment) error
}

type deliveryGetter interface {
	ByUUID(ctx context.Context, id uuid.UUID) (*models.DeliveryAssignment, error)
}

type deliverySaver interface {
	Save(ctx context.Context, assignment *models.DeliveryAssignment, outbound []models.EventEnvelope) error
}

type Service struct {
	log      logger.Logger
	schedule geo.FeeSchedule

	deliveryCreator deliveryCreator
	deliveryGetter  deliveryGetter
	deliverySaver   deliverySaver
}

func New(
	log logger.Logger,
	schedule geo.FeeSchedule,
	deliveryCreator deliveryCreator,
	deliveryGetter deliveryGetter,
	deliverySaver deliverySaver,
) *Service {
	return &Service{
		log:             log,
		schedule:        schedule,
		deliveryCreator: deliveryCreator,
		deliveryGetter:  deliveryGetter,
		deliverySaver:   deliverySaver,
	}
}

func (s *Service) Create(ctx context.Context, orderUUID uuid.UUID, restaurant, customer geo.Coord) (*models.DeliveryAssignment, error) {
	const op = "services.delivery.Create"

	assignment := models.NewDeliveryAssignment(orderUUID, restaurant, customer, s.schedule)

	if err := s.deliveryCreator.Create(ctx, assignment); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.InfoContext(ctx, op,
		logger.String("order_uuid", orderUUID.String()),
		logger.Float64("distance_km", assignment.DistanceKm),
		logger.Int("fee_cents", int(assignment.FeeCents)),
	)

	return assignment, nil
}

// Dispatch puts the assignment en route and queues the DeliveryDispatched
// event that drives the order to Delivering.
func (s *Service) Dispatch(ctx context.Context, id uuid.UUID) (*models.DeliveryAssignment, error) {
	const op = "services.delivery.Dispatch"

	assignment, err := s.deliveryGetter.ByUUID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	dispatched, err := assignment.MarkEnRoute()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = s.deliverySaver.Save(ctx, assignment, []models.EventEnvelope{dispatched}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return assignment, nil
}

// Complete finishes the assignment and queues the DeliveryCompleted event
// that drives the order from Delivering to Delivered.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, deliveredAt time.Time) (*models.DeliveryAssignment, error) {
	const op = "services.delivery.Complete"

	assignment, err := s.deliveryGetter.ByUUID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	completed, err := assignment.MarkDelivered(deliveredAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = s.deliverySaver.Save(ctx, assignment, []models.EventEnvelope{completed}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.InfoContext(ctx, op,
		logger.String("order_uuid", assignment.OrderUUID.String()),
		logger.String("status", assignment.Status.String()),
	)

	return assignment, nil
}
