package fulfillment_http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/grubline/fulfillment_service/internal/domain/models"
	"github.com/grubline/fulfillment_service/internal/geo"
	"github.com/grubline/fulfillment_service/internal/lib/identity"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

type OrderGetter interface {
	OrderByUUID(ctx context.Context, orderUUID uuid.UUID) (*models.Order, error)
	OrdersByUUIDs(ctx context.Context, UUIDs []uuid.UUID) ([]models.Order, error)
}

type DeliveryService interface {
	Create(ctx context.Context, orderUUID uuid.UUID, restaurant, customer geo.Coord) (*models.DeliveryAssignment, error)
	Dispatch(ctx context.Context, id uuid.UUID) (*models.DeliveryAssignment, error)
	Complete(ctx context.Context, id uuid.UUID, deliveredAt time.Time) (*models.DeliveryAssignment, error)
}

type WebhookAdapter interface {
	Translate(body []byte, signature string) (models.EventEnvelope, error)
}

// EventSink pushes an envelope into the at-least-once pipeline.
type EventSink interface {
	Enqueue(ctx context.Context, orderUUID uuid.UUID, envelope models.EventEnvelope) error
}

type Handler struct {
	log logger.Logger

	orderGetter     OrderGetter
	deliveryService DeliveryService
	webhookAdapter  WebhookAdapter
	eventSink       EventSink
	metricsHandler  http.Handler
}

func NewHandler(
	log logger.Logger,
	orderGetter OrderGetter,
	deliveryService DeliveryService,
	webhookAdapter WebhookAdapter,
	eventSink EventSink,
	metricsHandler http.Handler,
) *Handler {
	return &Handler{
		log:             log,
		orderGetter:     orderGetter,
		deliveryService: deliveryService,
		webhookAdapter:  webhookAdapter,
		eventSink:       eventSink,
		metricsHandler:  metricsHandler,
	}
}

func (h *Handler) InitRoutes() http.Handler {
	mux := chi.NewRouter()

	mux.Use(identity.Middleware)

	mux.Route("/order", func(r chi.Router) {
		r.Get("/{uuid}", h.orderByUUID)
		r.Post("/{uuid}/cancel", h.cancelOrder)
	})

	mux.Get("/orders", h.ordersByUUIDs)

	mux.Route("/delivery", func(r chi.Router) {
		r.Post("/", h.createDelivery)
		r.Post("/{uuid}/dispatch", h.dispatchDelivery)
		r.Post("/{uuid}/complete", h.completeDelivery)
	})

	mux.Post("/webhook/payment", h.paymentWebhook)

	mux.Method(http.MethodGet, "/metrics", h.metricsHandler)

	return mux
}
