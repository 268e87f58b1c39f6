package fulfillment_http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	internalErrors "github.com/grubline/fulfillment_service/internal/lib/errors"
	httpresponse "github.com/grubline/fulfillment_service/internal/lib/http"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

type OrdersByUUIDsRequest struct {
	UUIDs []string `json:"uuids"`
}

var (
	errEmptyOrderIDs    = errors.New("no order ids passed")
	errInvalidOrderUUID = errors.New("invalid order_uuid")
)

func (r *OrdersByUUIDsRequest) validate() error {
	if len(r.UUIDs) == 0 {
		return errEmptyOrderIDs
	}

	for _, orderUUID := range r.UUIDs {
		if _, err := uuid.Parse(orderUUID); err != nil {
			return errInvalidOrderUUID
		}
	}

	return nil
}

func (r *OrdersByUUIDsRequest) toServiceRepresentation() []uuid.UUID {
	result := make([]uuid.UUID, 0, len(r.UUIDs))

	for _, orderUUID := range r.UUIDs {
		result = append(result, uuid.MustParse(orderUUID))
	}

	return result
}

func (h *Handler) ordersByUUIDs(w http.ResponseWriter, r *http.Request) {
	const op = "delivery.http.get_order.ordersByUUIDs"

	var request OrdersByUUIDsRequest

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.log.Error(op, logger.String("failed to decode request", err.Error()))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := request.validate(); err != nil {
		h.log.Error(op, logger.String("failed to validate request", err.Error()))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	orders, err := h.orderGetter.OrdersByUUIDs(r.Context(), request.toServiceRepresentation())
	if err != nil {
		h.log.Error(op, logger.String("failed to get orders", err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, op, http.StatusOK, httpresponse.H{"orders": orders})
}

func (h *Handler) orderByUUID(w http.ResponseWriter, r *http.Request) {
	const op = "delivery.http.get_order.orderByUUID"

	orderUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, errInvalidOrderUUID.Error(), http.StatusBadRequest)
		return
	}

	order, err := h.orderGetter.OrderByUUID(r.Context(), orderUUID)
	if err != nil {
		if errors.Is(err, internalErrors.ErrOrderNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.log.Error(op, logger.String("failed to get order", err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, op, http.StatusOK, order)
}

func writeJSON(w http.ResponseWriter, log logger.Logger, op string, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error(op, logger.String("failed to encode response", err.Error()))
	}
}
