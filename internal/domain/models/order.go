package models

import (
	"fmt"

	"github.com/google/uuid"

	internalErrors "github.com/grubline/fulfillment_service/internal/lib/errors"
)

// Order is the fulfillment aggregate. Status moves exclusively through Apply,
// which enforces the transition table and the applied-event ledger. Version is
// the optimistic concurrency token checked by the repository on save.
type Order struct {
	OrderUUID       uuid.UUID   `json:"order_uuid"`
	BuyerUUID       uuid.UUID   `json:"buyer_uuid"`
	BuyerName       string      `json:"buyer_name"`
	Status          OrderStatus `json:"status"`
	TotalCents      int64       `json:"total_cents"`
	AppliedEventIDs []uuid.UUID `json:"-"`
	Version         int64       `json:"-"`
}

func NewOrder(orderUUID, buyerUUID uuid.UUID, buyerName string) *Order {
	return &Order{
		OrderUUID: orderUUID,
		BuyerUUID: buyerUUID,
		BuyerName: buyerName,
		Status:    OrderStatusSubmitted,
	}
}

// HasApplied reports whether the event id is already in the ledger.
func (o *Order) HasApplied(eventUUID uuid.UUID) bool {
	for _, applied := range o.AppliedEventIDs {
		if applied == eventUUID {
			return true
		}
	}
	return false
}

// Apply folds one inbound envelope into the order.
//
// A duplicate event id is a silent no-op: current status is kept, nothing is
// re-emitted. A cancellation of an already terminal order is likewise a no-op
// replay, not an error. An event whose target status is not reachable from
// the current one fails with IllegalTransitionError and leaves the order
// untouched. On success the status is mutated, the event id is recorded and
// the outbound envelopes implied by the new status are returned.
func (o *Order) Apply(envelope EventEnvelope) ([]EventEnvelope, error) {
	if o.HasApplied(envelope.EventUUID) {
		return nil, nil
	}

	target, ok := TargetStatus(envelope.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", internalErrors.ErrUnknownEventType, envelope.Type)
	}

	if target == OrderStatusCancelled && o.Status.IsTerminal() {
		return nil, nil
	}

	if !o.Status.CanTransition(target) {
		return nil, internalErrors.NewIllegalTransitionError(
			o.Status.String(), target.String(), string(envelope.Type),
		)
	}

	if envelope.Type == StockConfirmed {
		var payload StockConfirmedPayload
		if err := envelope.DecodePayload(&payload); err != nil {
			return nil, err
		}
		o.TotalCents = payload.TotalCents
	}

	o.Status = target
	o.AppliedEventIDs = append(o.AppliedEventIDs, envelope.EventUUID)

	return o.outboundEvents()
}

// outboundEvents builds the integration events the freshly entered status
// implies. Every accepted transition announces the status change; some
// statuses additionally request work from a downstream service.
func (o *Order) outboundEvents() ([]EventEnvelope, error) {
	statusChanged, err := NewEnvelope(OrderStatusChanged, StatusChangedPayload{
		OrderUUID: o.OrderUUID,
		Status:    o.Status,
	})
	if err != nil {
		return nil, err
	}

	outbound := []EventEnvelope{statusChanged}

	switch o.Status {
	case OrderStatusStockConfirmed:
		paymentReq, err := NewEnvelope(PaymentRequested, PaymentRequestedPayload{
			OrderUUID:  o.OrderUUID,
			BuyerUUID:  o.BuyerUUID,
			BuyerName:  o.BuyerName,
			TotalCents: o.TotalCents,
		})
		if err != nil {
			return nil, err
		}
		outbound = append(outbound, paymentReq)
	case OrderStatusReadyForDelivery:
		deliveryReq, err := NewEnvelope(DeliveryRequested, OrderRefPayload{OrderUUID: o.OrderUUID})
		if err != nil {
			return nil, err
		}
		outbound = append(outbound, deliveryReq)
	}

	return outbound, nil
}
