package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/berniyo/paypack-portal/pkg/httpx"
	"github.com/berniyo/paypack-portal/pkg/slogx"
)

// Webhook event names.
const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventPaymentCancelled = "payment.cancelled"
)

// WebhookPayload is the provider notification body.
type WebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
	Timestamp string `json:"timestamp"`
}

// WebhookHandler acknowledges provider notifications. Events are logged only;
// the provider stays the system of record.
type WebhookHandler struct {
	Now func() time.Time
}

func (h *WebhookHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var payload WebhookPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes)).Decode(&payload); err != nil {
		log.Warn("unreadable webhook", "error", err)
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "Failed to process webhook",
			"message": err.Error(),
		})
		return
	}

	log = log.With(
		"event", payload.Event,
		"transaction_id", payload.Data.ID,
		"status", payload.Data.Status,
		"timestamp", payload.Timestamp,
	)

	switch payload.Event {
	case EventPaymentCompleted:
		log.Info("payment completed")
	case EventPaymentFailed:
		log.Info("payment failed")
	case EventPaymentCancelled:
		log.Info("payment cancelled")
	default:
		log.Warn("unknown webhook event")
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Webhook processed successfully",
	})
}

// HandleProbe lets the provider verify the endpoint is reachable.
func (h *WebhookHandler) HandleProbe(w http.ResponseWriter, r *http.Request) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message":   "Paypack webhook endpoint",
		"status":    "active",
		"timestamp": now().UTC().Format(time.RFC3339Nano),
	})
}
