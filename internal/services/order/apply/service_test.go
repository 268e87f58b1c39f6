package apply

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/grubline/fulfillment_service/internal/domain/models"
	internalErrors "github.com/grubline/fulfillment_service/internal/lib/errors"
	"github.com/grubline/fulfillment_service/internal/metrics"
	mock_repository "github.com/grubline/fulfillment_service/internal/repository/mocks"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

func newService(t *testing.T) (*Service, *mock_repository.MockOrderRepository) {
	t.Helper()

	ctl := gomock.NewController(t)
	t.Cleanup(ctl.Finish)

	repo := mock_repository.NewMockOrderRepository(ctl)
	svc := New(logger.NewSlogLogger(logger.EnvLocal), metrics.NewRegistry(), repo, repo)

	return svc, repo
}

func storedOrder(status models.OrderStatus) *models.Order {
	return &models.Order{
		OrderUUID: uuid.New(),
		BuyerUUID: uuid.New(),
		BuyerName: "linh",
		Status:    status,
		Version:   2,
	}
}

func envelopeFor(t *testing.T, eventType models.EventType, orderUUID uuid.UUID) models.EventEnvelope {
	t.Helper()

	envelope, err := models.NewEnvelope(eventType, models.OrderRefPayload{OrderUUID: orderUUID})
	require.NoError(t, err)

	return envelope
}

func TestHandleAppliesTransition(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	order := storedOrder(models.OrderStatusAwaitingValidation)
	envelope, err := models.NewEnvelope(models.StockConfirmed, models.StockConfirmedPayload{
		OrderUUID:  order.OrderUUID,
		TotalCents: 2550,
	})
	require.NoError(t, err)

	repo.EXPECT().Order(gomock.Any(), order.OrderUUID).Return(order, nil)
	repo.EXPECT().
		Save(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, saved *models.Order, outbound []models.EventEnvelope) error {
			require.Equal(t, models.OrderStatusStockConfirmed, saved.Status)
			require.Equal(t, int64(2550), saved.TotalCents)
			require.Contains(t, saved.AppliedEventIDs, envelope.EventUUID)
			// StockConfirmed announces the change and requests payment.
			require.Len(t, outbound, 2)
			require.Equal(t, models.OrderStatusChanged, outbound[0].Type)
			require.Equal(t, models.PaymentRequested, outbound[1].Type)
			return nil
		})

	require.NoError(t, svc.Handle(ctx, envelope))
}

func TestHandleDuplicateEventSkipsSave(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	order := storedOrder(models.OrderStatusPaid)
	envelope := envelopeFor(t, models.PreparationStarted, order.OrderUUID)
	order.AppliedEventIDs = []uuid.UUID{envelope.EventUUID}

	repo.EXPECT().Order(gomock.Any(), order.OrderUUID).Return(order, nil)

	require.NoError(t, svc.Handle(ctx, envelope))
	require.Equal(t, models.OrderStatusPaid, order.Status)
}

func TestHandleCancelOnTerminalSkipsSave(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	order := storedOrder(models.OrderStatusCompleted)
	envelope := envelopeFor(t, models.OrderCancelled, order.OrderUUID)

	repo.EXPECT().Order(gomock.Any(), order.OrderUUID).Return(order, nil)

	require.NoError(t, svc.Handle(ctx, envelope))
	require.Equal(t, models.OrderStatusCompleted, order.Status)
}

func TestHandleIllegalTransition(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	order := storedOrder(models.OrderStatusSubmitted)
	envelope := envelopeFor(t, models.PaymentSucceeded, order.OrderUUID)

	repo.EXPECT().Order(gomock.Any(), order.OrderUUID).Return(order, nil)

	err := svc.Handle(ctx, envelope)
	require.True(t, internalErrors.IsIllegalTransition(err))
	require.Equal(t, models.OrderStatusSubmitted, order.Status)
}

func TestHandleOrderNotFound(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	orderUUID := uuid.New()
	envelope := envelopeFor(t, models.OrderStarted, orderUUID)

	repo.EXPECT().Order(gomock.Any(), orderUUID).Return(nil, internalErrors.ErrOrderNotFound)

	err := svc.Handle(ctx, envelope)
	require.ErrorIs(t, err, internalErrors.ErrOrderNotFound)
}

func TestHandleConflictSurfaces(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	order := storedOrder(models.OrderStatusSubmitted)
	envelope := envelopeFor(t, models.OrderStarted, order.OrderUUID)

	repo.EXPECT().Order(gomock.Any(), order.OrderUUID).Return(order, nil)
	repo.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(internalErrors.ErrConflict)

	err := svc.Handle(ctx, envelope)
	require.ErrorIs(t, err, internalErrors.ErrConflict)
}
