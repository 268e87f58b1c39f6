package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/grubline/fulfillment_service/internal/domain/models"
	internalErrors "github.com/grubline/fulfillment_service/internal/lib/errors"
	"github.com/grubline/fulfillment_service/internal/metrics"
	"github.com/grubline/fulfillment_service/internal/services/order/apply"
	"github.com/grubline/fulfillment_service/internal/services/order/start"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

// memoryStore is an in-memory stand-in for the order repository with the same
// optimistic concurrency and uniqueness semantics.
type memoryStore struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]models.Order
	outbound []models.EventEnvelope
}

func newMemoryStore() *memoryStore {
	return &memoryStore{orders: make(map[uuid.UUID]models.Order)}
}

func cloneOrder(o models.Order) models.Order {
	o.AppliedEventIDs = append([]uuid.UUID(nil), o.AppliedEventIDs...)
	return o
}

func (m *memoryStore) Order(_ context.Context, orderUUID uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.orders[orderUUID]
	if !ok {
		return nil, internalErrors.ErrOrderNotFound
	}

	order := cloneOrder(stored)
	return &order, nil
}

func (m *memoryStore) Create(_ context.Context, order *models.Order, outbound []models.EventEnvelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[order.OrderUUID]; ok {
		return internalErrors.ErrOrderAlreadyExists
	}

	order.Version = 1
	m.orders[order.OrderUUID] = cloneOrder(*order)
	m.outbound = append(m.outbound, outbound...)

	return nil
}

func (m *memoryStore) Save(_ context.Context, order *models.Order, outbound []models.EventEnvelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.orders[order.OrderUUID]
	if !ok {
		return internalErrors.ErrOrderNotFound
	}
	if stored.Version != order.Version {
		return internalErrors.ErrConflict
	}

	order.Version++
	m.orders[order.OrderUUID] = cloneOrder(*order)
	m.outbound = append(m.outbound, outbound...)

	return nil
}

func (m *memoryStore) outboundTypes() []models.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()

	types := make([]models.EventType, 0, len(m.outbound))
	for _, e := range m.outbound {
		types = append(types, e.Type)
	}
	return types
}

func sagaDispatcher(t *testing.T, store *memoryStore) *Dispatcher {
	t.Helper()

	log := logger.NewSlogLogger(logger.EnvLocal)
	registry := metrics.NewRegistry()

	d := New(log, registry, time.Second, 3)

	startSvc := start.New(log, registry, store)
	applySvc := apply.New(log, registry, store, store)

	d.Register(models.OrderSubmitted, startSvc.Handle)
	for _, eventType := range []models.EventType{
		models.OrderStarted,
		models.StockConfirmed,
		models.PaymentSucceeded,
		models.PaymentFailed,
		models.PreparationStarted,
		models.KitchenOrderReady,
		models.DeliveryDispatched,
		models.DeliveryCompleted,
		models.CustomerConfirmed,
		models.OrderCancelled,
	} {
		d.Register(eventType, applySvc.Handle)
	}

	return d
}

func TestSagaHappyPath(t *testing.T) {
	store := newMemoryStore()
	d := sagaDispatcher(t, store)
	ctx := context.Background()

	orderUUID := uuid.New()
	ref := models.OrderRefPayload{OrderUUID: orderUUID}

	submit, err := models.NewEnvelope(models.OrderSubmitted, models.OrderSubmittedPayload{
		OrderUUID: orderUUID,
		BuyerUUID: uuid.New(),
		BuyerName: "linh",
	})
	require.NoError(t, err)
	require.NoError(t, d.Dispatch(ctx, submit))

	// Redelivered submission is acknowledged as a replay.
	require.NoError(t, d.Dispatch(ctx, submit))

	steps := []struct {
		eventType models.EventType
		payload   any
		expected  models.OrderStatus
	}{
		{models.OrderStarted, ref, models.OrderStatusAwaitingValidation},
		{models.StockConfirmed, models.StockConfirmedPayload{OrderUUID: orderUUID, TotalCents: 2550}, models.OrderStatusStockConfirmed},
		{models.PaymentSucceeded, models.PaymentResultPayload{OrderUUID: orderUUID}, models.OrderStatusPaid},
		{models.PreparationStarted, ref, models.OrderStatusPreparing},
		{models.KitchenOrderReady, ref, models.OrderStatusReadyForDelivery},
		{models.DeliveryDispatched, ref, models.OrderStatusDelivering},
		{models.DeliveryCompleted, models.DeliveryCompletedPayload{OrderUUID: orderUUID, DeliveredAt: time.Now().UTC()}, models.OrderStatusDelivered},
		{models.CustomerConfirmed, ref, models.OrderStatusCompleted},
	}

	for _, step := range steps {
		envelope, err := models.NewEnvelope(step.eventType, step.payload)
		require.NoError(t, err)
		require.NoError(t, d.Dispatch(ctx, envelope))

		stored, err := store.Order(ctx, orderUUID)
		require.NoError(t, err)
		require.Equal(t, step.expected, stored.Status, string(step.eventType))

		// The transport redelivers; the second pass must change nothing.
		require.NoError(t, d.Dispatch(ctx, envelope))
		replayed, err := store.Order(ctx, orderUUID)
		require.NoError(t, err)
		require.Equal(t, step.expected, replayed.Status)
		require.Equal(t, stored.Version, replayed.Version)
	}

	final, err := store.Order(ctx, orderUUID)
	require.NoError(t, err)
	require.Equal(t, int64(2550), final.TotalCents)

	types := store.outboundTypes()
	require.Contains(t, types, models.PaymentRequested)
	require.Contains(t, types, models.DeliveryRequested)
	// One status announcement per accepted transition plus the submission.
	statusChanges := 0
	for _, eventType := range types {
		if eventType == models.OrderStatusChanged {
			statusChanges++
		}
	}
	require.Equal(t, len(steps)+1, statusChanges)
}

func TestSagaFailedPaymentCancelsOrder(t *testing.T) {
	store := newMemoryStore()
	d := sagaDispatcher(t, store)
	ctx := context.Background()

	orderUUID := uuid.New()
	ref := models.OrderRefPayload{OrderUUID: orderUUID}

	for _, step := range []struct {
		eventType models.EventType
		payload   any
	}{
		{models.OrderSubmitted, models.OrderSubmittedPayload{OrderUUID: orderUUID, BuyerUUID: uuid.New(), BuyerName: "linh"}},
		{models.OrderStarted, ref},
		{models.StockConfirmed, models.StockConfirmedPayload{OrderUUID: orderUUID, TotalCents: 1800}},
		{models.PaymentFailed, models.PaymentResultPayload{OrderUUID: orderUUID}},
	} {
		envelope, err := models.NewEnvelope(step.eventType, step.payload)
		require.NoError(t, err)
		require.NoError(t, d.Dispatch(ctx, envelope))
	}

	stored, err := store.Order(ctx, orderUUID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCancelled, stored.Status)

	// A late kitchen event against the cancelled order is rejected for good.
	late, err := models.NewEnvelope(models.KitchenOrderReady, ref)
	require.NoError(t, err)

	err = d.Dispatch(ctx, late)
	require.True(t, internalErrors.IsIllegalTransition(err))
	require.Equal(t, OutcomeAck, Classify(err))

	unchanged, err := store.Order(ctx, orderUUID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCancelled, unchanged.Status)
}

func TestSagaEventForUnknownOrderIsRetried(t *testing.T) {
	store := newMemoryStore()
	d := sagaDispatcher(t, store)
	ctx := context.Background()

	envelope, err := models.NewEnvelope(models.OrderStarted, models.OrderRefPayload{OrderUUID: uuid.New()})
	require.NoError(t, err)

	err = d.Dispatch(ctx, envelope)
	require.ErrorIs(t, err, internalErrors.ErrOrderNotFound)
	require.Equal(t, OutcomeRetry, Classify(err))
}
