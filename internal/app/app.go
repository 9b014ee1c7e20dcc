package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/berniyo/paypack-portal/internal/config"
	httpapi "github.com/berniyo/paypack-portal/internal/http"
	"github.com/berniyo/paypack-portal/internal/payment"
	"github.com/berniyo/paypack-portal/internal/paypack"
	"github.com/berniyo/paypack-portal/internal/session"
	"github.com/berniyo/paypack-portal/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags "-X".
var BuildVersion = "v0.1.0"

// Application wires the payment portal together.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	configErr error

	client   *paypack.Client
	payments *payment.Service
	sessions *session.Manager

	server *http.Server
	router *httpapi.Router
}

// New builds the application. Outside production an incomplete configuration
// still starts the server, with payment routes answering 500.
func New(cfg config.Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "paypack-portal",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := cfg.Validate(); err != nil {
		if cfg.IsProd() {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		app.logger.Warn("payment routes disabled", "error", err)
		app.configErr = err
	}

	if err := app.initServices(); err != nil {
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

func (app *Application) initServices() error {
	if cfg := app.cfg; cfg.PaymentsConfigured() {
		client, err := paypack.NewClient(cfg.Paypack(),
			paypack.WithHTTPClient(cfg.HTTPClient()),
			paypack.WithLogger(app.logger),
		)
		if err != nil {
			return fmt.Errorf("failed to initialize paypack client: %w", err)
		}
		app.client = client
		app.payments = payment.NewService(client, payment.WithServiceLogger(app.logger))
	}

	if app.cfg.SessionSecret != "" {
		sessions, err := session.NewManager(app.cfg.SessionSecret, session.WithTTL(app.cfg.SessionTTL))
		if err != nil && !errors.Is(err, session.ErrNoSecret) {
			return fmt.Errorf("failed to initialize sessions: %w", err)
		}
		app.sessions = sessions
	}

	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.logger)

	// Interface fields stay nil unless the concrete service exists.
	if app.payments != nil {
		router.Payments = app.payments
	}
	if app.client != nil {
		router.Transactions = app.client
		router.Tokens = app.client.Tokens()
	}
	router.Sessions = app.sessions
	router.Thresholds = app.cfg.Poll
	router.ConfigErr = app.configErr
	router.ApplyRoutes()

	app.router = router
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// Handler exposes the routed handler, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("paypack portal starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down paypack portal...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
		return err
	}

	if app.client != nil {
		app.client.Tokens().ClearTokens()
	}

	app.logger.Info("paypack portal stopped")
	return nil
}
