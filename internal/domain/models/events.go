package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

// Inbound integration events. Each one resolves to the order status it tries
// to drive the aggregate into; see targetStatuses.
const (
	OrderSubmitted      EventType = "ORDER_SUBMITTED"
	OrderStarted        EventType = "ORDER_STARTED"
	StockConfirmed      EventType = "STOCK_CONFIRMED"
	PaymentSucceeded    EventType = "PAYMENT_SUCCEEDED"
	PaymentFailed       EventType = "PAYMENT_FAILED"
	PreparationStarted  EventType = "PREPARATION_STARTED"
	KitchenOrderReady   EventType = "KITCHEN_ORDER_READY"
	DeliveryDispatched  EventType = "DELIVERY_DISPATCHED"
	DeliveryCompleted   EventType = "DELIVERY_COMPLETED"
	CustomerConfirmed   EventType = "CUSTOMER_CONFIRMED"
	OrderCancelled      EventType = "ORDER_CANCELLED"
)

// Outbound integration events emitted as side effects of accepted transitions.
const (
	OrderStatusChanged EventType = "ORDER_STATUS_CHANGED"
	PaymentRequested   EventType = "PAYMENT_REQUESTED"
	DeliveryRequested  EventType = "DELIVERY_REQUESTED"
)

// targetStatuses maps an inbound event type to the status it implies.
// OrderSubmitted is absent: it creates the aggregate instead of moving it.
var targetStatuses = map[EventType]OrderStatus{
	OrderStarted:       OrderStatusAwaitingValidation,
	StockConfirmed:     OrderStatusStockConfirmed,
	PaymentSucceeded:   OrderStatusPaid,
	PaymentFailed:      OrderStatusCancelled,
	PreparationStarted: OrderStatusPreparing,
	KitchenOrderReady:  OrderStatusReadyForDelivery,
	DeliveryDispatched: OrderStatusDelivering,
	DeliveryCompleted:  OrderStatusDelivered,
	CustomerConfirmed:  OrderStatusCompleted,
	OrderCancelled:     OrderStatusCancelled,
}

// TargetStatus resolves an inbound event type to the status it requests.
func TargetStatus(t EventType) (OrderStatus, bool) {
	status, ok := targetStatuses[t]
	return status, ok
}

// EventEnvelope is the immutable unit the transport carries. EventUUID is the
// idempotence key; CreatedAt is informational and carries no ordering
// guarantee.
type EventEnvelope struct {
	EventUUID uuid.UUID       `json:"event_uuid"`
	Type      EventType       `json:"event_type"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType EventType, payload any) (EventEnvelope, error) {
	bytes, err := json.Marshal(payload)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return EventEnvelope{
		EventUUID: uuid.New(),
		Type:      eventType,
		CreatedAt: time.Now().UTC(),
		Payload:   bytes,
	}, nil
}

func (e EventEnvelope) DecodePayload(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// OrderUUID extracts the order reference every payload in this pipeline
// carries. It doubles as the transport partition key.
func (e EventEnvelope) OrderUUID() (uuid.UUID, error) {
	var ref struct {
		OrderUUID uuid.UUID `json:"order_uuid"`
	}
	if err := e.DecodePayload(&ref); err != nil {
		return uuid.Nil, err
	}
	return ref.OrderUUID, nil
}

type OrderSubmittedPayload struct {
	OrderUUID uuid.UUID `json:"order_uuid"`
	BuyerUUID uuid.UUID `json:"buyer_uuid"`
	BuyerName string    `json:"buyer_name"`
}

type OrderStartedPayload struct {
	OrderUUID uuid.UUID `json:"order_uuid"`
	UserUUID  uuid.UUID `json:"user_uuid"`
}

type StockConfirmedPayload struct {
	OrderUUID  uuid.UUID `json:"order_uuid"`
	BuyerUUID  uuid.UUID `json:"buyer_uuid"`
	BuyerName  string    `json:"buyer_name"`
	TotalCents int64     `json:"total_cents"`
}

type PaymentResultPayload struct {
	OrderUUID         uuid.UUID `json:"order_uuid"`
	ProviderReference string    `json:"provider_reference"`
}

// OrderRefPayload covers the events whose payload is just the order reference.
type OrderRefPayload struct {
	OrderUUID uuid.UUID `json:"order_uuid"`
}

type DeliveryCompletedPayload struct {
	OrderUUID   uuid.UUID `json:"order_uuid"`
	DeliveredAt time.Time `json:"delivered_at"`
}

type StatusChangedPayload struct {
	OrderUUID uuid.UUID   `json:"order_uuid"`
	Status    OrderStatus `json:"status"`
}

type PaymentRequestedPayload struct {
	OrderUUID  uuid.UUID `json:"order_uuid"`
	BuyerUUID  uuid.UUID `json:"buyer_uuid"`
	BuyerName  string    `json:"buyer_name"`
	TotalCents int64     `json:"total_cents"`
}

// OutBoxMessage is a pending outbound envelope persisted in the same
// transaction as the state change it announces.
type OutBoxMessage struct {
	ID        int             `json:"id"`
	OrderUUID uuid.UUID       `json:"order_uuid"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}
