package http

import (
	"errors"
	"net/http"

	"github.com/berniyo/paypack-portal/internal/payment"
	"github.com/berniyo/paypack-portal/internal/paypack"
	"github.com/berniyo/paypack-portal/pkg/httpx"
	"github.com/berniyo/paypack-portal/pkg/slogx"
)

const unexpectedMessage = "An unexpected error occurred. Please try again."

type errorResponse struct {
	Error      string `json:"error"`
	Field      string `json:"field,omitempty"`
	Code       string `json:"code,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

// writeFailure maps a payment flow error onto a response. Validation errors
// become 400, provider errors keep their status with prefix prepended, and
// anything else is a generic 500.
func writeFailure(w http.ResponseWriter, r *http.Request, prefix string, err error) {
	log := slogx.FromContext(r.Context())

	var verr *payment.ValidationError
	if errors.As(err, &verr) {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Message, Field: verr.Field})
		return
	}

	var apiErr *paypack.APIError
	if errors.As(err, &apiErr) {
		log.Warn("provider request failed", "error", err, "status", apiErr.StatusCode, "code", apiErr.Code)
		httpx.WriteJSON(w, providerStatus(apiErr), errorResponse{
			Error: prefix + ": " + apiErr.Message,
			Code:  apiErr.Code,
		})
		return
	}

	log.Error("unexpected failure", "error", err)
	httpx.WriteError(w, http.StatusInternalServerError, unexpectedMessage)
}

// providerStatus keeps provider status codes that are errors and turns
// anything else into a bad gateway.
func providerStatus(e *paypack.APIError) int {
	if e.StatusCode >= 400 && e.StatusCode <= 599 {
		return e.StatusCode
	}
	return http.StatusBadGateway
}
