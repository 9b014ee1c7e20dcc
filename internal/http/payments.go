package http

import (
	"net/http"
	"net/url"

	"github.com/berniyo/paypack-portal/internal/payment"
	"github.com/berniyo/paypack-portal/internal/session"
	"github.com/berniyo/paypack-portal/pkg/httpx"
	"github.com/berniyo/paypack-portal/pkg/slogx"
)

// PaymentHandler serves the cash-in, cash-out and generic payment forms.
type PaymentHandler struct {
	Payments PaymentService
	Sessions *session.Manager
}

type initiatedResponse struct {
	Success bool `json:"success"`
	*payment.Initiated

	// SessionToken resumes polling through GET /v1/sessions/{token}.
	SessionToken string `json:"session_token,omitempty"`
	StatusURL    string `json:"status_url,omitempty"`
}

func (h *PaymentHandler) HandleCashIn(w http.ResponseWriter, r *http.Request) {
	form, ok := h.readForm(w, r)
	if !ok {
		return
	}
	amount, err := payment.ParseAmount(form.Get("amount"))
	if err != nil {
		writeFailure(w, r, "Cashin failed", err)
		return
	}

	out, err := h.Payments.CashIn(r.Context(), payment.CashInRequest{
		Amount: amount,
		Phone:  form.Get("customer_phone"),
	})
	if err != nil {
		writeFailure(w, r, "Cashin failed", err)
		return
	}
	h.respond(w, r, out, "cashin")
}

func (h *PaymentHandler) HandleCashOut(w http.ResponseWriter, r *http.Request) {
	form, ok := h.readForm(w, r)
	if !ok {
		return
	}
	amount, err := payment.ParseAmount(form.Get("amount"))
	if err != nil {
		writeFailure(w, r, "Cashout failed", err)
		return
	}

	out, err := h.Payments.CashOut(r.Context(), payment.CashOutRequest{
		Amount: amount,
		Phone:  form.Get("customer_phone"),
		Method: form.Get("withdrawal_method"),
	})
	if err != nil {
		writeFailure(w, r, "Cashout failed", err)
		return
	}
	h.respond(w, r, out, "cashout")
}

func (h *PaymentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	form, ok := h.readForm(w, r)
	if !ok {
		return
	}
	amount, err := payment.ParseAmount(form.Get("amount"))
	if err != nil {
		writeFailure(w, r, "Payment failed", err)
		return
	}

	out, err := h.Payments.CreatePayment(r.Context(), payment.PaymentRequest{
		Amount:      amount,
		Currency:    form.Get("currency"),
		Description: form.Get("description"),
		Email:       form.Get("customer_email"),
		Phone:       form.Get("customer_phone"),
	})
	if err != nil {
		writeFailure(w, r, "Payment failed", err)
		return
	}
	h.respond(w, r, out, "payment")
}

func (h *PaymentHandler) readForm(w http.ResponseWriter, r *http.Request) (url.Values, bool) {
	form, err := formValues(w, r)
	if err != nil {
		slogx.FromContext(r.Context()).Info("unreadable payment form", "error", err)
		httpx.WriteError(w, http.StatusBadRequest, "Please fill in all required fields")
		return nil, false
	}
	return form, true
}

// respond returns the accepted payment together with a signed poll session.
// A signing failure is logged; the payment itself already went through.
func (h *PaymentHandler) respond(w http.ResponseWriter, r *http.Request, out *payment.Initiated, flow string) {
	resp := initiatedResponse{Success: true, Initiated: out}

	if h.Sessions != nil {
		token, _, err := h.Sessions.Issue(out.TransactionID, out.Reference, flow)
		if err != nil {
			slogx.FromContext(r.Context()).Error("issue poll session", "error", err, "transaction_id", out.TransactionID)
		} else {
			resp.SessionToken = token
			resp.StatusURL = "/v1/sessions/" + token
		}
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}
