// Package webhook translates the payment provider's asynchronous callback
// into a canonical integration event. Authentication happens before any event
// is constructed: an unsigned or tampered callback can never reach the
// dispatcher.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/grubline/fulfillment_service/internal/domain/models"
	internalErrors "github.com/grubline/fulfillment_service/internal/lib/errors"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

// SignatureHeader carries the provider's hex-encoded HMAC-SHA256 of the raw
// request body.
const SignatureHeader = "X-Payment-Signature"

type Adapter struct {
	log    logger.Logger
	secret []byte
}

func NewAdapter(log logger.Logger, secret string) *Adapter {
	return &Adapter{
		log:    log,
		secret: []byte(secret),
	}
}

type paymentCallback struct {
	OrderUUID         uuid.UUID `json:"order_uuid"`
	Success           bool      `json:"success"`
	ProviderReference string    `json:"provider_reference"`
}

// Translate authenticates the callback and maps it to PaymentSucceeded or
// PaymentFailed. On a bad signature it returns ErrUnauthenticatedWebhook and
// no envelope.
func (a *Adapter) Translate(body []byte, signature string) (models.EventEnvelope, error) {
	const op = "webhook.Adapter.Translate"

	if !a.verify(body, signature) {
		a.log.Warn(op, logger.String("rejected", "signature mismatch"))
		return models.EventEnvelope{}, internalErrors.ErrUnauthenticatedWebhook
	}

	var callback paymentCallback
	if err := json.Unmarshal(body, &callback); err != nil {
		return models.EventEnvelope{}, fmt.Errorf("%s: decode callback: %w", op, err)
	}

	eventType := models.PaymentSucceeded
	if !callback.Success {
		eventType = models.PaymentFailed
	}

	envelope, err := models.NewEnvelope(eventType, models.PaymentResultPayload{
		OrderUUID:         callback.OrderUUID,
		ProviderReference: callback.ProviderReference,
	})
	if err != nil {
		return models.EventEnvelope{}, fmt.Errorf("%s: %w", op, err)
	}

	return envelope, nil
}

func (a *Adapter) verify(body []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, a.secret)
	mac.Write(body)

	return hmac.Equal(mac.Sum(nil), expected)
}
