package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/grubline/fulfillment_service/internal/domain/models"
	internalErrors "github.com/grubline/fulfillment_service/internal/lib/errors"
	"github.com/grubline/fulfillment_service/internal/metrics"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

func testDispatcher(t *testing.T, maxAttempts int) *Dispatcher {
	t.Helper()

	return New(
		logger.NewSlogLogger(logger.EnvLocal),
		metrics.NewRegistry(),
		time.Second,
		maxAttempts,
	)
}

func testEnvelope(t *testing.T, eventType models.EventType) models.EventEnvelope {
	t.Helper()

	envelope, err := models.NewEnvelope(eventType, models.OrderRefPayload{OrderUUID: uuid.New()})
	require.NoError(t, err)

	return envelope
}

func TestDispatchUnknownEventType(t *testing.T) {
	d := testDispatcher(t, 3)

	err := d.Dispatch(context.Background(), testEnvelope(t, models.EventType("NOT_A_THING")))

	require.ErrorIs(t, err, internalErrors.ErrUnknownEventType)
	require.Equal(t, OutcomeAck, Classify(err))
}

func TestDispatchMalformedPayload(t *testing.T) {
	d := testDispatcher(t, 3)
	d.Register(models.OrderCancelled, func(context.Context, models.EventEnvelope) error {
		t.Fatal("handler must not run for a malformed payload")
		return nil
	})

	envelope := models.EventEnvelope{
		EventUUID: uuid.New(),
		Type:      models.OrderCancelled,
		Payload:   json.RawMessage(`[]`),
	}

	err := d.Dispatch(context.Background(), envelope)

	require.ErrorIs(t, err, internalErrors.ErrUnknownEventType)
	require.Equal(t, OutcomeAck, Classify(err))
}

func TestDispatchRetriesConflictUpToBudget(t *testing.T) {
	d := testDispatcher(t, 3)

	calls := 0
	d.Register(models.OrderCancelled, func(context.Context, models.EventEnvelope) error {
		calls++
		return internalErrors.ErrConflict
	})

	err := d.Dispatch(context.Background(), testEnvelope(t, models.OrderCancelled))

	require.ErrorIs(t, err, internalErrors.ErrConflict)
	require.Equal(t, 3, calls)
	require.Equal(t, OutcomeRetry, Classify(err))
}

func TestDispatchConflictThenSuccess(t *testing.T) {
	d := testDispatcher(t, 3)

	calls := 0
	d.Register(models.OrderCancelled, func(context.Context, models.EventEnvelope) error {
		calls++
		if calls == 1 {
			return internalErrors.ErrConflict
		}
		return nil
	})

	err := d.Dispatch(context.Background(), testEnvelope(t, models.OrderCancelled))

	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestDispatchIllegalTransitionSurfaces(t *testing.T) {
	d := testDispatcher(t, 3)

	d.Register(models.PaymentSucceeded, func(context.Context, models.EventEnvelope) error {
		return internalErrors.NewIllegalTransitionError("Submitted", "Paid", string(models.PaymentSucceeded))
	})

	err := d.Dispatch(context.Background(), testEnvelope(t, models.PaymentSucceeded))

	require.True(t, internalErrors.IsIllegalTransition(err))
	require.Equal(t, OutcomeAck, Classify(err))
}

func TestClassify(t *testing.T) {
	tCases := []struct {
		name     string
		err      error
		expected Outcome
	}{
		{name: "success", err: nil, expected: OutcomeAck},
		{name: "unknown event type", err: internalErrors.ErrUnknownEventType, expected: OutcomeAck},
		{name: "illegal transition", err: internalErrors.NewIllegalTransitionError("Paid", "Submitted", "X"), expected: OutcomeAck},
		{name: "order already exists", err: internalErrors.ErrOrderAlreadyExists, expected: OutcomeAck},
		{name: "order not found waits for submission", err: internalErrors.ErrOrderNotFound, expected: OutcomeRetry},
		{name: "conflict budget exhausted", err: internalErrors.ErrConflict, expected: OutcomeRetry},
		{name: "deadline", err: context.DeadlineExceeded, expected: OutcomeRetry},
		{name: "infrastructure", err: errors.New("connection refused"), expected: OutcomeRetry},
	}

	for _, tCase := range tCases {
		t.Run(tCase.name, func(t *testing.T) {
			require.Equal(t, tCase.expected, Classify(tCase.err))
		})
	}
}
