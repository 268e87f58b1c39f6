package errors

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrOrderAlreadyExists     = errors.New("order already exists")
	ErrDeliveryNotFound       = errors.New("delivery assignment not found")
	ErrDeliveryNotAssigned    = errors.New("delivery assignment is not in Assigned status")
	ErrDeliveryNotEnRoute     = errors.New("delivery assignment is not in EnRoute status")
	ErrUnknownEventType       = errors.New("unknown event type")
	ErrConflict               = errors.New("concurrent modification conflict")
	ErrUnauthenticatedWebhook = errors.New("webhook signature verification failed")
	ErrUndefinedStatus        = errors.New("undefined order status")
)

// IllegalTransitionError is returned when an event implies a status that is
// not reachable from the order's current status. Replaying the same event can
// never succeed, so the dispatcher treats it as terminal.
type IllegalTransitionError struct {
	From      string
	To        string
	EventType string
}

func NewIllegalTransitionError(from, to, eventType string) *IllegalTransitionError {
	return &IllegalTransitionError{From: from, To: to, EventType: eventType}
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s (event %s)", e.From, e.To, e.EventType)
}

// IsIllegalTransition reports whether err wraps an IllegalTransitionError.
func IsIllegalTransition(err error) bool {
	var target *IllegalTransitionError
	return errors.As(err, &target)
}
