package http

import (
	"errors"
	"net/http"

	"github.com/berniyo/paypack-portal/internal/paypack"
	"github.com/berniyo/paypack-portal/internal/poller"
	"github.com/berniyo/paypack-portal/internal/session"
	"github.com/berniyo/paypack-portal/pkg/httpx"
	"github.com/berniyo/paypack-portal/pkg/slogx"
)

// SessionHandler answers one poll of a browser-held payment session. The
// elapsed time comes from the signed token, so the server keeps no state
// between polls.
type SessionHandler struct {
	Sessions     *session.Manager
	Transactions TransactionService
	Thresholds   poller.Thresholds
}

type sessionResponse struct {
	TransactionID string `json:"transaction_id"`
	Reference     string `json:"reference,omitempty"`
	Flow          string `json:"flow,omitempty"`
	poller.Snapshot
	Transaction *paypack.TransactionView `json:"transaction,omitempty"`
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	claims, err := h.Sessions.Parse(r.PathValue("token"))
	if err != nil {
		if errors.Is(err, session.ErrExpired) {
			httpx.WriteError(w, http.StatusGone, "Payment session expired. Please start a new payment.")
			return
		}
		log.Info("rejected poll session", "error", err)
		httpx.WriteError(w, http.StatusBadRequest, "Invalid payment session")
		return
	}

	elapsed := h.Sessions.Elapsed(claims)
	observed := poller.StatusPending
	var view *paypack.TransactionView

	// Past the hard stop nothing is polled; the session only offers a retry.
	if elapsed < h.Thresholds.HardStop {
		v, err := h.Transactions.PaymentStatus(r.Context(), claims.TransactionID)
		switch {
		case err == nil:
			view = v
			observed = poller.FromTransaction(v.Status)
		case errors.Is(err, paypack.ErrTransactionNotFound):
			log.Debug("transaction not ready", "transaction_id", claims.TransactionID)
		default:
			log.Warn("payment status check failed", "transaction_id", claims.TransactionID, "error", err)
		}
	}

	httpx.WriteJSON(w, http.StatusOK, sessionResponse{
		TransactionID: claims.TransactionID,
		Reference:     claims.Reference,
		Flow:          claims.Flow,
		Snapshot:      poller.Evaluate(h.Thresholds, elapsed, observed),
		Transaction:   view,
	})
}
