package fulfillment_http

import (
	"errors"
	"io"
	"net/http"

	internalErrors "github.com/grubline/fulfillment_service/internal/lib/errors"
	httpresponse "github.com/grubline/fulfillment_service/internal/lib/http"
	"github.com/grubline/fulfillment_service/internal/webhook"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

// paymentWebhook receives the provider callback. Per the provider contract
// the response is 200 once the callback is authenticated and queued; the
// actual order transition happens asynchronously. Anything but 200 triggers
// the provider's own retries, so only authentication failures refuse receipt.
func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "delivery.http.webhook.paymentWebhook"

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	envelope, err := h.webhookAdapter.Translate(body, r.Header.Get(webhook.SignatureHeader))
	if err != nil {
		if errors.Is(err, internalErrors.ErrUnauthenticatedWebhook) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		h.log.Error(op, logger.String("failed to translate webhook", err.Error()))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	orderUUID, err := envelope.OrderUUID()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err = h.eventSink.Enqueue(r.Context(), orderUUID, envelope); err != nil {
		h.log.Error(op, logger.String("failed to enqueue event", err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, op, http.StatusOK, httpresponse.H{"received": true})
}
