package fulfillment_http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/grubline/fulfillment_service/internal/domain/models"
	"github.com/grubline/fulfillment_service/internal/geo"
	internalErrors "github.com/grubline/fulfillment_service/internal/lib/errors"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

var validate = validator.New()

type CreateDeliveryRequest struct {
	OrderUUID     string  `json:"order_uuid" validate:"required,uuid"`
	RestaurantLat float64 `json:"restaurant_lat" validate:"min=-90,max=90"`
	RestaurantLon float64 `json:"restaurant_lon" validate:"min=-180,max=180"`
	CustomerLat   float64 `json:"customer_lat" validate:"min=-90,max=90"`
	CustomerLon   float64 `json:"customer_lon" validate:"min=-180,max=180"`
}

type DeliveryResponse struct {
	ID            string  `json:"id"`
	OrderUUID     string  `json:"order_uuid"`
	RestaurantLat float64 `json:"restaurant_lat"`
	RestaurantLon float64 `json:"restaurant_lon"`
	CustomerLat   float64 `json:"customer_lat"`
	CustomerLon   float64 `json:"customer_lon"`
	DistanceKm    float64 `json:"distance_km"`
	FeeCents      int64   `json:"delivery_fee_cents"`
	Status        string  `json:"status"`
}

func toDeliveryResponse(a *models.DeliveryAssignment) DeliveryResponse {
	return DeliveryResponse{
		ID:            a.ID.String(),
		OrderUUID:     a.OrderUUID.String(),
		RestaurantLat: a.RestaurantCoord.Lat,
		RestaurantLon: a.RestaurantCoord.Lon,
		CustomerLat:   a.CustomerCoord.Lat,
		CustomerLon:   a.CustomerCoord.Lon,
		DistanceKm:    a.DistanceKm,
		FeeCents:      a.FeeCents,
		Status:        a.Status.String(),
	}
}

func (h *Handler) createDelivery(w http.ResponseWriter, r *http.Request) {
	const op = "delivery.http.delivery.createDelivery"

	var request CreateDeliveryRequest

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.log.Error(op, logger.String("failed to decode request", err.Error()))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := validate.Struct(&request); err != nil {
		h.log.Error(op, logger.String("failed to validate request", err.Error()))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	assignment, err := h.deliveryService.Create(
		r.Context(),
		uuid.MustParse(request.OrderUUID),
		geo.Coord{Lat: request.RestaurantLat, Lon: request.RestaurantLon},
		geo.Coord{Lat: request.CustomerLat, Lon: request.CustomerLon},
	)
	if err != nil {
		h.log.Error(op, logger.String("failed to create delivery", err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, op, http.StatusCreated, toDeliveryResponse(assignment))
}

func (h *Handler) dispatchDelivery(w http.ResponseWriter, r *http.Request) {
	const op = "delivery.http.delivery.dispatchDelivery"

	id, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "invalid delivery id", http.StatusBadRequest)
		return
	}

	assignment, err := h.deliveryService.Dispatch(r.Context(), id)
	if err != nil {
		h.writeDeliveryError(w, op, err)
		return
	}

	writeJSON(w, h.log, op, http.StatusOK, toDeliveryResponse(assignment))
}

func (h *Handler) completeDelivery(w http.ResponseWriter, r *http.Request) {
	const op = "delivery.http.delivery.completeDelivery"

	id, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "invalid delivery id", http.StatusBadRequest)
		return
	}

	assignment, err := h.deliveryService.Complete(r.Context(), id, time.Now().UTC())
	if err != nil {
		h.writeDeliveryError(w, op, err)
		return
	}

	writeJSON(w, h.log, op, http.StatusOK, toDeliveryResponse(assignment))
}

func (h *Handler) writeDeliveryError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, internalErrors.ErrDeliveryNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, internalErrors.ErrDeliveryNotAssigned),
		errors.Is(err, internalErrors.ErrDeliveryNotEnRoute):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.Error(op, logger.String("error", err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
