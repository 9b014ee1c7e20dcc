package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/berniyo/paypack-portal/internal/paypack"
	"github.com/berniyo/paypack-portal/internal/poller"
	"github.com/berniyo/paypack-portal/internal/session"
)

// Required variables, checked in this order.
const (
	EnvClientID      = "PAYPACK_CLIENT_ID"
	EnvClientSecret  = "PAYPACK_CLIENT_SECRET"
	EnvSessionSecret = "SESSION_SECRET"
)

// MissingError names a required environment variable that is unset.
type MissingError struct {
	Name string
}

func (e *MissingError) Error() string {
	return "Missing required environment variable: " + e.Name
}

type Config struct {
	Env                 string        // Environment (dev, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)

	PaypackBaseURL      string        // Optional (default: https://payments.paypack.rw/api)
	PaypackClientID     string        // Required
	PaypackClientSecret string        // Required
	PaypackEnvironment  string        // Optional: production or sandbox (default: production)
	HTTPTimeout         time.Duration // Outbound request timeout (default: 30s)

	SessionSecret string        // Required: HS256 key for poll-session tokens
	SessionTTL    time.Duration // Optional (default: 15m)

	Poll poller.Thresholds

	CallbackURL    string // Lambda only: where outcomes are posted
	CallbackSecret string // Lambda only: HMAC key for X-Callback-Signature
}

// LoadDotEnv loads variables from the given files, or ./.env when none are
// given. Missing files are skipped; variables already set in the process win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the configuration from the environment. It never fails; call
// Validate to find missing required values.
func Load() Config {
	def := poller.DefaultThresholds()

	return Config{
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),

		PaypackBaseURL:      getEnvOrDefault("PAYPACK_BASE_URL", paypack.DefaultBaseURL),
		PaypackClientID:     strings.TrimSpace(os.Getenv(EnvClientID)),
		PaypackClientSecret: strings.TrimSpace(os.Getenv(EnvClientSecret)),
		PaypackEnvironment:  getEnvOrDefault("PAYPACK_ENVIRONMENT", "production"),
		HTTPTimeout:         getEnvDurationOrDefault("HTTP_TIMEOUT", 30*time.Second),

		SessionSecret: os.Getenv(EnvSessionSecret),
		SessionTTL:    getEnvDurationOrDefault("SESSION_TTL", session.DefaultTTL),

		Poll: poller.Thresholds{
			Tick:        getEnvDurationOrDefault("POLL_TICK", def.Tick),
			Interval:    getEnvDurationOrDefault("POLL_INTERVAL", def.Interval),
			Sending:     getEnvDurationOrDefault("POLL_SENDING", def.Sending),
			SoftTimeout: getEnvDurationOrDefault("POLL_SOFT_TIMEOUT", def.SoftTimeout),
			HardStop:    getEnvDurationOrDefault("POLL_HARD_STOP", def.HardStop),
		},

		CallbackURL:    strings.TrimSpace(os.Getenv("SUBSCRIPTION_CALLBACK_URL")),
		CallbackSecret: os.Getenv("SUBSCRIPTION_CALLBACK_SECRET"),
	}
}

// IsProd reports whether the service runs in production mode.
func (c Config) IsProd() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

// Validate returns a *MissingError for the first required variable that is
// unset, or an error describing inconsistent poll thresholds.
func (c Config) Validate() error {
	if name := c.Missing(); len(name) > 0 {
		return &MissingError{Name: name[0]}
	}
	if c.Poll.SoftTimeout >= c.Poll.HardStop {
		return fmt.Errorf("POLL_SOFT_TIMEOUT (%s) must be shorter than POLL_HARD_STOP (%s)", c.Poll.SoftTimeout, c.Poll.HardStop)
	}
	if c.SessionTTL < c.Poll.HardStop {
		return fmt.Errorf("SESSION_TTL (%s) must cover POLL_HARD_STOP (%s)", c.SessionTTL, c.Poll.HardStop)
	}
	return nil
}

// Missing lists every unset required variable.
func (c Config) Missing() []string {
	var names []string
	if c.PaypackClientID == "" {
		names = append(names, EnvClientID)
	}
	if c.PaypackClientSecret == "" {
		names = append(names, EnvClientSecret)
	}
	if strings.TrimSpace(c.SessionSecret) == "" {
		names = append(names, EnvSessionSecret)
	}
	return names
}

// PaymentsConfigured reports whether the provider credentials are present.
func (c Config) PaymentsConfigured() bool {
	return c.PaypackClientID != "" && c.PaypackClientSecret != ""
}

// RequireProvider returns a *MissingError when a provider credential is unset.
// Entry points that never issue session tokens use it instead of Validate.
func (c Config) RequireProvider() error {
	if c.PaypackClientID == "" {
		return &MissingError{Name: EnvClientID}
	}
	if c.PaypackClientSecret == "" {
		return &MissingError{Name: EnvClientSecret}
	}
	return nil
}

// Paypack returns the provider client configuration.
func (c Config) Paypack() paypack.Config {
	return paypack.Config{
		BaseURL:      c.PaypackBaseURL,
		ClientID:     c.PaypackClientID,
		ClientSecret: c.PaypackClientSecret,
		Environment:  c.PaypackEnvironment,
	}
}

// HTTPClient returns the client used for outbound calls.
func (c Config) HTTPClient() *http.Client {
	return &http.Client{Timeout: c.HTTPTimeout}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

// getEnvDurationOrDefault accepts Go durations ("90s", "5m") or a bare
// integer number of seconds.
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
