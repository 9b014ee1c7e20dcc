package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/berniyo/paypack-portal/internal/paypack"
	"github.com/berniyo/paypack-portal/pkg/httpx"
	"github.com/berniyo/paypack-portal/pkg/slogx"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100

	listWarning = "Unable to fetch transactions from Paypack API. This may be due to network issues or API limitations."
)

// TransactionHandler serves status, cancellation and listing.
type TransactionHandler struct {
	Transactions TransactionService
}

type transactionEnvelope struct {
	Transaction *paypack.TransactionView `json:"transaction"`
	Success     bool                     `json:"success"`
}

// HandleGet returns {transaction, success} for the payment details view.
func (h *TransactionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.PathValue("ref"))

	view, err := h.Transactions.PaymentStatus(r.Context(), ref)
	if err != nil {
		var apiErr *paypack.APIError
		switch {
		case errors.Is(err, paypack.ErrTransactionNotFound):
			httpx.WriteError(w, http.StatusNotFound, "Payment not found")
		case errors.As(err, &apiErr):
			httpx.WriteJSON(w, providerStatus(apiErr), errorResponse{
				Error:      "Failed to fetch payment: " + apiErr.Message,
				StatusCode: apiErr.StatusCode,
			})
		default:
			slogx.FromContext(r.Context()).Error("fetch payment", "error", err, "ref", ref)
			httpx.WriteError(w, http.StatusInternalServerError, "An unexpected error occurred while fetching payment status")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, transactionEnvelope{Transaction: view, Success: true})
}

// HandleStatus returns the bare Transaction View, the shape browsers poll.
func (h *TransactionHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.PathValue("ref"))

	view, err := h.Transactions.PaymentStatus(r.Context(), ref)
	if err != nil {
		var apiErr *paypack.APIError
		if errors.As(err, &apiErr) {
			httpx.WriteJSON(w, providerStatus(apiErr), errorResponse{Error: apiErr.Message, Code: apiErr.Code})
			return
		}
		slogx.FromContext(r.Context()).Error("fetch payment status", "error", err, "ref", ref)
		httpx.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, view)
}

func (h *TransactionHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.PathValue("ref"))

	view, err := h.Transactions.CancelPayment(r.Context(), ref)
	if err != nil {
		writeFailure(w, r, "Cancel failed", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, transactionEnvelope{Transaction: view, Success: true})
}

type pagination struct {
	CurrentPage  int `json:"current_page"`
	TotalPages   int `json:"total_pages"`
	TotalItems   int `json:"total_items"`
	ItemsPerPage int `json:"items_per_page"`
}

type listFilters struct {
	Status string `json:"status,omitempty"`
}

type listResponse struct {
	Transactions []paypack.TransactionView `json:"transactions"`
	Pagination   pagination                `json:"pagination"`
	Filters      listFilters               `json:"filters"`
	Success      bool                      `json:"success"`
	Warning      string                    `json:"warning,omitempty"`
}

// HandleList pages through the events feed. An upstream failure still
// answers 200 with an empty page and a warning.
func (h *TransactionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := positiveInt(q.Get("page"), 1)
	limit := min(positiveInt(q.Get("limit"), defaultPageSize), maxPageSize)
	status := strings.TrimSpace(q.Get("status"))

	result, err := h.Transactions.ListPayments(r.Context(), paypack.ListParams{
		Limit:    limit,
		Offset:   (page - 1) * limit,
		Status:   status,
		FromDate: q.Get("from_date"),
		ToDate:   q.Get("to_date"),
	})
	if err != nil {
		slogx.FromContext(r.Context()).Warn("list transactions", "error", err)
		httpx.WriteJSON(w, http.StatusOK, listResponse{
			Transactions: []paypack.TransactionView{},
			Pagination:   pagination{CurrentPage: 1, TotalPages: 1, ItemsPerPage: limit},
			Filters:      listFilters{Status: status},
			Success:      true,
			Warning:      listWarning,
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, listResponse{
		Transactions: result.Payments,
		Pagination: pagination{
			CurrentPage:  page,
			TotalPages:   (result.Total + limit - 1) / limit,
			TotalItems:   result.Total,
			ItemsPerPage: limit,
		},
		Filters: listFilters{Status: status},
		Success: true,
	})
}

func positiveInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	return n
}
