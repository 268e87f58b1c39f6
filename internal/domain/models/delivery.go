package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/grubline/fulfillment_service/internal/geo"
	internalErrors "github.com/grubline/fulfillment_service/internal/lib/errors"
)

type DeliveryStatus int

const (
	UndefinedDeliveryStatus DeliveryStatus = iota
	DeliveryStatusAssigned
	DeliveryStatusEnRoute
	DeliveryStatusDelivered
)

var deliveryStatusNames = map[DeliveryStatus]string{
	DeliveryStatusAssigned:  "Assigned",
	DeliveryStatusEnRoute:   "EnRoute",
	DeliveryStatusDelivered: "Delivered",
}

func (s DeliveryStatus) String() string {
	if name, ok := deliveryStatusNames[s]; ok {
		return name
	}
	return "Undefined"
}

// DeliveryAssignment tracks one delivery independently of the order it
// references. Distance and fee are a binding quote computed once at creation
// and never recalculated.
type DeliveryAssignment struct {
	ID              uuid.UUID      `json:"id"`
	OrderUUID       uuid.UUID      `json:"order_uuid"`
	RestaurantCoord geo.Coord      `json:"restaurant_coord"`
	CustomerCoord   geo.Coord      `json:"customer_coord"`
	DistanceKm      float64        `json:"distance_km"`
	FeeCents        int64          `json:"delivery_fee_cents"`
	Status          DeliveryStatus `json:"status"`
	Version         int64          `json:"-"`
}

func NewDeliveryAssignment(orderUUID uuid.UUID, restaurant, customer geo.Coord, schedule geo.FeeSchedule) *DeliveryAssignment {
	distance := geo.DistanceKm(restaurant, customer)

	return &DeliveryAssignment{
		ID:              uuid.New(),
		OrderUUID:       orderUUID,
		RestaurantCoord: restaurant,
		CustomerCoord:   customer,
		DistanceKm:      distance,
		FeeCents:        schedule.FeeFor(distance),
		Status:          DeliveryStatusAssigned,
	}
}

// MarkEnRoute moves the assignment onto the road and returns the
// DeliveryDispatched event for the order pipeline.
func (d *DeliveryAssignment) MarkEnRoute() (EventEnvelope, error) {
	if d.Status != DeliveryStatusAssigned {
		return EventEnvelope{}, fmt.Errorf("%w: current status %s",
			internalErrors.ErrDeliveryNotAssigned, d.Status)
	}

	d.Status = DeliveryStatusEnRoute

	return NewEnvelope(DeliveryDispatched, OrderRefPayload{OrderUUID: d.OrderUUID})
}

// MarkDelivered finishes the assignment and returns the DeliveryCompleted
// event that folds the result back into the order aggregate.
func (d *DeliveryAssignment) MarkDelivered(deliveredAt time.Time) (EventEnvelope, error) {
	if d.Status != DeliveryStatusEnRoute {
		return EventEnvelope{}, fmt.Errorf("%w: current status %s",
			internalErrors.ErrDeliveryNotEnRoute, d.Status)
	}

	d.Status = DeliveryStatusDelivered

	return NewEnvelope(DeliveryCompleted, DeliveryCompletedPayload{
		OrderUUID:   d.OrderUUID,
		DeliveredAt: deliveredAt,
	})
}
