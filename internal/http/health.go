package http

import (
	"net/http"
	"time"

	"github.com/berniyo/paypack-portal/pkg/httpx"
)

type HealthChecks struct {
	Config       string `json:"config"`
	ProviderAuth string `json:"provider_auth"`
}

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// LivezHandler always answers 200 while the process runs.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler reports 503 while configuration is incomplete. Provider
// credentials are fetched lazily, so a cold token cache is not a failure.
func ReadyzHandler(startTime time.Time, version string, configErr error, tokens TokenStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &HealthChecks{Config: "ok", ProviderAuth: "not authenticated"}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if configErr != nil {
			checks.Config = "error: " + configErr.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
		if tokens != nil && tokens.IsAuthenticated() {
			checks.ProviderAuth = "authenticated"
		}

		httpx.WriteJSON(w, statusCode, HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
