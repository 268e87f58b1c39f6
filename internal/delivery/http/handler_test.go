package fulfillment_http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/grubline/fulfillment_service/internal/domain/models"
	"github.com/grubline/fulfillment_service/internal/geo"
	internalErrors "github.com/grubline/fulfillment_service/internal/lib/errors"
	"github.com/grubline/fulfillment_service/internal/metrics"
	"github.com/grubline/fulfillment_service/internal/webhook"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

const testWebhookSecret = "test-secret"

type stubOrderGetter struct {
	orderByUUID   func(ctx context.Context, orderUUID uuid.UUID) (*models.Order, error)
	ordersByUUIDs func(ctx context.Context, UUIDs []uuid.UUID) ([]models.Order, error)
}

func (s *stubOrderGetter) OrderByUUID(ctx context.Context, orderUUID uuid.UUID) (*models.Order, error) {
	return s.orderByUUID(ctx, orderUUID)
}

func (s *stubOrderGetter) OrdersByUUIDs(ctx context.Context, UUIDs []uuid.UUID) ([]models.Order, error) {
	return s.ordersByUUIDs(ctx, UUIDs)
}

type stubDeliveryService struct {
	create   func(ctx context.Context, orderUUID uuid.UUID, restaurant, customer geo.Coord) (*models.DeliveryAssignment, error)
	dispatch func(ctx context.Context, id uuid.UUID) (*models.DeliveryAssignment, error)
	complete func(ctx context.Context, id uuid.UUID, deliveredAt time.Time) (*models.DeliveryAssignment, error)
}

func (s *stubDeliveryService) Create(ctx context.Context, orderUUID uuid.UUID, restaurant, customer geo.Coord) (*models.DeliveryAssignment, error) {
	return s.create(ctx, orderUUID, restaurant, customer)
}

func (s *stubDeliveryService) Dispatch(ctx context.Context, id uuid.UUID) (*models.DeliveryAssignment, error) {
	return s.dispatch(ctx, id)
}

func (s *stubDeliveryService) Complete(ctx context.Context, id uuid.UUID, deliveredAt time.Time) (*models.DeliveryAssignment, error) {
	return s.complete(ctx, id, deliveredAt)
}

type recordingSink struct {
	enqueued []models.EventEnvelope
	err      error
}

func (r *recordingSink) Enqueue(_ context.Context, _ uuid.UUID, envelope models.EventEnvelope) error {
	if r.err != nil {
		return r.err
	}
	r.enqueued = append(r.enqueued, envelope)
	return nil
}

func newTestHandler(orderGetter OrderGetter, deliveryService DeliveryService, sink EventSink) http.Handler {
	log := logger.NewSlogLogger(logger.EnvLocal)

	h := NewHandler(
		log,
		orderGetter,
		deliveryService,
		webhook.NewAdapter(log, testWebhookSecret),
		sink,
		metrics.NewRegistry().Handler(),
	)

	return h.InitRoutes()
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestOrderByUUID(t *testing.T) {
	stored := &models.Order{
		OrderUUID: uuid.New(),
		BuyerUUID: uuid.New(),
		BuyerName: "linh",
		Status:    models.OrderStatusPaid,
	}

	getter := &stubOrderGetter{
		orderByUUID: func(_ context.Context, orderUUID uuid.UUID) (*models.Order, error) {
			if orderUUID == stored.OrderUUID {
				return stored, nil
			}
			return nil, internalErrors.ErrOrderNotFound
		},
	}

	router := newTestHandler(getter, &stubDeliveryService{}, &recordingSink{})

	t.Run("found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/order/"+stored.OrderUUID.String(), nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var got models.Order
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Equal(t, stored.OrderUUID, got.OrderUUID)
		require.Equal(t, models.OrderStatusPaid, got.Status)
	})

	t.Run("not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/order/"+uuid.NewString(), nil))

		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid uuid", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/order/not-a-uuid", nil))

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCancelOrderEnqueuesEvent(t *testing.T) {
	sink := &recordingSink{}
	router := newTestHandler(&stubOrderGetter{}, &stubDeliveryService{}, sink)

	orderUUID := uuid.New()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/order/"+orderUUID.String()+"/cancel", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, sink.enqueued, 1)
	require.Equal(t, models.OrderCancelled, sink.enqueued[0].Type)

	enqueuedOrder, err := sink.enqueued[0].OrderUUID()
	require.NoError(t, err)
	require.Equal(t, orderUUID, enqueuedOrder)
}

func TestPaymentWebhook(t *testing.T) {
	sink := &recordingSink{}
	router := newTestHandler(&stubOrderGetter{}, &stubDeliveryService{}, sink)

	body := []byte(fmt.Sprintf(`{"order_uuid":%q,"success":true,"provider_reference":"pay_789"}`, uuid.New()))

	t.Run("authenticated callback is accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook/payment", bytes.NewReader(body))
		req.Header.Set(webhook.SignatureHeader, signBody(body))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, sink.enqueued, 1)
		require.Equal(t, models.PaymentSucceeded, sink.enqueued[0].Type)
	})

	t.Run("bad signature is refused", func(t *testing.T) {
		before := len(sink.enqueued)

		req := httptest.NewRequest(http.MethodPost, "/webhook/payment", bytes.NewReader(body))
		req.Header.Set(webhook.SignatureHeader, "deadbeef")

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Len(t, sink.enqueued, before)
	})
}

func TestCreateDelivery(t *testing.T) {
	svc := &stubDeliveryService{
		create: func(_ context.Context, orderUUID uuid.UUID, restaurant, customer geo.Coord) (*models.DeliveryAssignment, error) {
			return models.NewDeliveryAssignment(orderUUID, restaurant, customer,
				geo.FeeSchedule{BaseCents: 200, PerKmCents: 50}), nil
		},
	}
	router := newTestHandler(&stubOrderGetter{}, svc, &recordingSink{})

	t.Run("created", func(t *testing.T) {
		body := fmt.Sprintf(`{
			"order_uuid": %q,
			"restaurant_lat": 10.0, "restaurant_lon": 106.0,
			"customer_lat": 10.05, "customer_lon": 106.05
		}`, uuid.New())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/delivery/", bytes.NewReader([]byte(body))))

		require.Equal(t, http.StatusCreated, rec.Code)

		var response DeliveryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		require.Equal(t, "Assigned", response.Status)
		require.Equal(t, int64(600), response.FeeCents)
		require.InDelta(t, 7.80, response.DistanceKm, 0.01)
	})

	t.Run("latitude out of range", func(t *testing.T) {
		body := fmt.Sprintf(`{
			"order_uuid": %q,
			"restaurant_lat": 95.0, "restaurant_lon": 106.0,
			"customer_lat": 10.05, "customer_lon": 106.05
		}`, uuid.New())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/delivery/", bytes.NewReader([]byte(body))))

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDispatchDeliveryConflict(t *testing.T) {
	svc := &stubDeliveryService{
		dispatch: func(context.Context, uuid.UUID) (*models.DeliveryAssignment, error) {
			return nil, internalErrors.ErrDeliveryNotAssigned
		},
	}
	router := newTestHandler(&stubOrderGetter{}, svc, &recordingSink{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/delivery/"+uuid.NewString()+"/dispatch", nil))

	require.Equal(t, http.StatusConflict, rec.Code)
}
