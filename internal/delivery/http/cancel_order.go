package fulfillment_http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/grubline/fulfillment_service/internal/domain/models"
	httpresponse "github.com/grubline/fulfillment_service/internal/lib/http"
	"github.com/grubline/fulfillment_service/internal/lib/identity"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

// cancelOrder injects an OrderCancelled event into the pipeline instead of
// mutating the order in-line: cancellation goes through the same state
// machine, ledger and per-order serialization as every other transition.
func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	const op = "delivery.http.cancel_order.cancelOrder"

	orderUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, errInvalidOrderUUID.Error(), http.StatusBadRequest)
		return
	}

	envelope, err := models.NewEnvelope(models.OrderCancelled, models.OrderRefPayload{OrderUUID: orderUUID})
	if err != nil {
		h.log.Error(op, logger.String("failed to build envelope", err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err = h.eventSink.Enqueue(r.Context(), orderUUID, envelope); err != nil {
		h.log.Error(op, logger.String("failed to enqueue event", err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	who := identity.FromContext(r.Context())
	h.log.InfoContext(r.Context(), op,
		logger.String("order_uuid", orderUUID.String()),
		logger.String("requested_by", who.UserUUID()),
	)

	writeJSON(w, h.log, op, http.StatusAccepted, httpresponse.H{
		"order_uuid": orderUUID.String(),
		"event_uuid": envelope.EventUUID.String(),
	})
}
