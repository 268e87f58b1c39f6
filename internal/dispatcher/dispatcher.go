// Package dispatcher routes inbound integration events to the handler
// registered for their type and owns the error policy of the pipeline: what
// is retried, what is acknowledged and dropped, and how concurrent events for
// one order are serialized.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grubline/fulfillment_service/internal/domain/models"
	internalErrors "github.com/grubline/fulfillment_service/internal/lib/errors"
	"github.com/grubline/fulfillment_service/internal/metrics"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

// Outcome tells the transport what to do with the envelope after Dispatch.
type Outcome int

const (
	// OutcomeAck acknowledges the envelope. Used for success and for failures
	// that can never succeed on replay (illegal transition, schema drift).
	OutcomeAck Outcome = iota
	// OutcomeRetry leaves the envelope unacknowledged so the at-least-once
	// transport redelivers it.
	OutcomeRetry
)

type HandlerFunc func(ctx context.Context, envelope models.EventEnvelope) error

type Dispatcher struct {
	log      logger.Logger
	registry *metrics.Registry

	handlers map[models.EventType]HandlerFunc
	orders   *keyedMutex

	handlerTimeout time.Duration
	maxAttempts    int
}

func New(log logger.Logger, registry *metrics.Registry, handlerTimeout time.Duration, maxAttempts int) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Dispatcher{
		log:            log,
		registry:       registry,
		handlers:       make(map[models.EventType]HandlerFunc),
		orders:         newKeyedMutex(),
		handlerTimeout: handlerTimeout,
		maxAttempts:    maxAttempts,
	}
}

func (d *Dispatcher) Register(eventType models.EventType, handler HandlerFunc) {
	d.handlers[eventType] = handler
}

// Dispatch runs the handler registered for the envelope's type under the
// per-order lock and a deadline. A save conflict re-runs the whole handler
// from a fresh load, bounded by maxAttempts. The returned error classifies
// via Classify; Dispatch itself never panics the worker on a bad envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, envelope models.EventEnvelope) error {
	const op = "dispatcher.Dispatch"

	handler, ok := d.handlers[envelope.Type]
	if !ok {
		d.registry.UnknownEvents.Inc()
		d.log.WarnContext(ctx, op,
			logger.String("event_uuid", envelope.EventUUID.String()),
			logger.String("event_type", string(envelope.Type)),
			logger.String("error", "no handler registered"),
		)
		return fmt.Errorf("%s: %w: %s", op, internalErrors.ErrUnknownEventType, envelope.Type)
	}

	orderUUID, err := envelope.OrderUUID()
	if err != nil {
		d.registry.UnknownEvents.Inc()
		d.log.WarnContext(ctx, op, logger.String("malformed payload", err.Error()))
		return fmt.Errorf("%s: %w: %s", op, internalErrors.ErrUnknownEventType, err.Error())
	}

	d.orders.lock(orderUUID)
	defer d.orders.unlock(orderUUID)

	started := time.Now()
	defer func() {
		d.registry.HandleLatencySec.Observe(time.Since(started).Seconds())
	}()

	for attempt := 1; ; attempt++ {
		err = d.runHandler(ctx, handler, envelope)
		if !errors.Is(err, internalErrors.ErrConflict) {
			break
		}

		d.registry.Conflicts.Inc()
		if attempt == d.maxAttempts {
			break
		}

		d.log.DebugContext(ctx, op,
			logger.String("order_uuid", orderUUID.String()),
			logger.Int("attempt", attempt),
			logger.String("retrying after conflict", err.Error()),
		)
	}

	switch {
	case err == nil:
		d.registry.Applied.Inc()
		return nil
	case internalErrors.IsIllegalTransition(err):
		d.registry.IllegalTransitions.Inc()
		d.log.WarnContext(ctx, op,
			logger.String("order_uuid", orderUUID.String()),
			logger.String("event_type", string(envelope.Type)),
			logger.String("rejected", err.Error()),
		)
		return fmt.Errorf("%s: %w", op, err)
	default:
		d.log.ErrorContext(ctx, op,
			logger.String("order_uuid", orderUUID.String()),
			logger.String("event_type", string(envelope.Type)),
			logger.String("error", err.Error()),
		)
		return fmt.Errorf("%s: %w", op, err)
	}
}

// runHandler bounds one attempt by the configured timeout. The handler's
// persistence is all-or-nothing, so hitting the deadline leaves the stored
// order exactly as it was and the envelope safe to re-run.
func (d *Dispatcher) runHandler(ctx context.Context, handler HandlerFunc, envelope models.EventEnvelope) error {
	ctx, cancel := context.WithTimeout(ctx, d.handlerTimeout)
	defer cancel()

	return handler(ctx, envelope)
}

// Classify maps a Dispatch error to the transport action.
//
// Illegal transitions and unknown event types are acknowledged: replaying
// them can never succeed without external correction. A missing order is
// retried because the creating event may simply not have arrived yet.
// Everything else (conflict budget exhausted, deadline, infrastructure) is
// retried by redelivery.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeAck
	case errors.Is(err, internalErrors.ErrUnknownEventType):
		return OutcomeAck
	case internalErrors.IsIllegalTransition(err):
		return OutcomeAck
	case errors.Is(err, internalErrors.ErrOrderAlreadyExists):
		return OutcomeAck
	default:
		return OutcomeRetry
	}
}
