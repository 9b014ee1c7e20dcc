package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/berniyo/paypack-portal/internal/payment"
	"github.com/berniyo/paypack-portal/internal/paypack"
	"github.com/berniyo/paypack-portal/internal/poller"
	"github.com/berniyo/paypack-portal/internal/session"
	"github.com/berniyo/paypack-portal/pkg/httpx"
	"github.com/berniyo/paypack-portal/pkg/slogx"
)

// PaymentService initiates payments from validated forms.
type PaymentService interface {
	CashIn(ctx context.Context, req payment.CashInRequest) (*payment.Initiated, error)
	CashOut(ctx context.Context, req payment.CashOutRequest) (*payment.Initiated, error)
	CreatePayment(ctx context.Context, req payment.PaymentRequest) (*payment.Initiated, error)
}

// TransactionService reads and cancels provider transactions.
type TransactionService interface {
	PaymentStatus(ctx context.Context, ref string) (*paypack.TransactionView, error)
	ListPayments(ctx context.Context, params paypack.ListParams) (*paypack.TransactionPage, error)
	CancelPayment(ctx context.Context, transactionID string) (*paypack.TransactionView, error)
}

// TokenStatus reports whether provider credentials are cached.
type TokenStatus interface {
	IsAuthenticated() bool
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	Payments     PaymentService
	Transactions TransactionService
	Sessions     *session.Manager
	Tokens       TokenStatus
	Thresholds   poller.Thresholds

	// ConfigErr is set when required configuration is missing. Payment
	// routes then answer 500 instead of reaching the provider.
	ConfigErr error
}

func NewRouter(buildVersion string, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		Thresholds:   poller.DefaultThresholds(),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerPayments()
	r.registerTransactions()
	r.registerSessions()
	r.registerWebhooks()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerPayments() {
	h := &PaymentHandler{
		Payments: r.Payments,
		Sessions: r.Sessions,
	}

	// Each of these pushes a prompt to a phone, so they share the tight limit.
	for pattern, fn := range map[string]http.HandlerFunc{
		"POST /v1/cashin":   h.HandleCashIn,
		"POST /v1/cashout":  h.HandleCashOut,
		"POST /v1/payments": h.HandleCreate,
	} {
		r.Mux.Handle(pattern,
			httpx.Chain(fn,
				r.requireConfigured(),
				httpx.RateLimitByIP(httpx.PaymentLimit),
			),
		)
	}
}

func (r *Router) registerTransactions() {
	h := &TransactionHandler{Transactions: r.Transactions}

	r.Mux.Handle("GET /v1/payments/{ref}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			r.requireConfigured(),
			httpx.RateLimitByIP(httpx.StatusLimit),
		),
	)
	r.Mux.Handle("GET /v1/payments/{ref}/status",
		httpx.Chain(http.HandlerFunc(h.HandleStatus),
			r.requireConfigured(),
			httpx.RateLimitByIP(httpx.StatusLimit),
		),
	)
	r.Mux.Handle("POST /v1/payments/{ref}/cancel",
		httpx.Chain(http.HandlerFunc(h.HandleCancel),
			r.requireConfigured(),
			httpx.RateLimitByIP(httpx.PaymentLimit),
		),
	)
	r.Mux.Handle("GET /v1/transactions",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			r.requireConfigured(),
			httpx.RateLimitByIP(httpx.StatusLimit),
		),
	)
}

func (r *Router) registerSessions() {
	h := &SessionHandler{
		Sessions:     r.Sessions,
		Transactions: r.Transactions,
		Thresholds:   r.Thresholds,
	}

	r.Mux.Handle("GET /v1/sessions/{token}",
		httpx.Chain(h,
			r.requireConfigured(),
			httpx.RateLimitByIP(httpx.StatusLimit),
		),
	)
}

func (r *Router) registerWebhooks() {
	h := &WebhookHandler{}

	r.Mux.Handle("POST /v1/webhooks/paypack",
		httpx.Chain(http.HandlerFunc(h.HandlePost),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /v1/webhooks/paypack",
		httpx.Chain(http.HandlerFunc(h.HandleProbe),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	// Every other method lands here.
	r.Mux.HandleFunc("/v1/webhooks/paypack", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.ConfigErr, r.Tokens),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

const notConfiguredMessage = "Payment service is not properly configured. Please check environment variables."

// requireConfigured short-circuits provider routes while configuration is
// incomplete.
func (r *Router) requireConfigured() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.ConfigErr != nil || r.Payments == nil || r.Transactions == nil || r.Sessions == nil {
				slogx.FromContext(req.Context()).Error("payment route hit without configuration", "error", r.ConfigErr)
				httpx.WriteError(w, http.StatusInternalServerError, notConfiguredMessage)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
