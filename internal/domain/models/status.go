package models

import (
	"encoding/json"
	"fmt"

	internalErrors "github.com/grubline/fulfillment_service/internal/lib/errors"
)

type OrderStatus int

const (
	UndefinedStatus OrderStatus = iota
	OrderStatusSubmitted
	OrderStatusAwaitingValidation
	OrderStatusStockConfirmed
	OrderStatusPaid
	OrderStatusPreparing
	OrderStatusReadyForDelivery
	OrderStatusDelivering
	OrderStatusDelivered
	OrderStatusCompleted
	OrderStatusCancelled
)

var statusNames = map[OrderStatus]string{
	OrderStatusSubmitted:          "Submitted",
	OrderStatusAwaitingValidation: "AwaitingValidation",
	OrderStatusStockConfirmed:     "StockConfirmed",
	OrderStatusPaid:               "Paid",
	OrderStatusPreparing:          "Preparing",
	OrderStatusReadyForDelivery:   "ReadyForDelivery",
	OrderStatusDelivering:         "Delivering",
	OrderStatusDelivered:          "Delivered",
	OrderStatusCompleted:          "Completed",
	OrderStatusCancelled:          "Cancelled",
}

// transitions is the explicit table of allowed forward moves. Anything absent
// is illegal. Cancellation is an override handled by CanTransition, not listed
// per row.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusSubmitted:          {OrderStatusAwaitingValidation},
	OrderStatusAwaitingValidation: {OrderStatusStockConfirmed},
	OrderStatusStockConfirmed:     {OrderStatusPaid},
	OrderStatusPaid:               {OrderStatusPreparing},
	OrderStatusPreparing:          {OrderStatusReadyForDelivery},
	OrderStatusReadyForDelivery:   {OrderStatusDelivering},
	OrderStatusDelivering:         {OrderStatusDelivered},
	OrderStatusDelivered:          {OrderStatusCompleted},
}

func (s OrderStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Undefined"
}

func (s OrderStatus) Validate() error {
	if _, ok := statusNames[s]; !ok {
		return fmt.Errorf("%w: %d", internalErrors.ErrUndefinedStatus, int(s))
	}
	return nil
}

// IsTerminal reports whether the status has no outbound transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransition reports whether requested is reachable from s. Cancelled is
// reachable from every non-terminal status; everything else must appear in
// the transition table.
func (s OrderStatus) CanTransition(requested OrderStatus) bool {
	if requested == OrderStatusCancelled {
		return !s.IsTerminal()
	}

	for _, next := range transitions[s] {
		if next == requested {
			return true
		}
	}

	return false
}

func (s OrderStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}

	for status, statusName := range statusNames {
		if statusName == name {
			*s = status
			return nil
		}
	}

	return fmt.Errorf("%w: %q", internalErrors.ErrUndefinedStatus, name)
}
