package paypack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the production Paypack API root.
	DefaultBaseURL = "https://payments.paypack.rw/api"

	// Currency is the only currency the deployment transacts in.
	Currency = "RWF"

	defaultEnvironment = "production"
	defaultHTTPTimeout = 30 * time.Second

	codeNetworkError = "Network Error"
	codeUnknownError = "Unknown Error"
	codeNotFound     = "NOT_FOUND"
)

// APIError surfaces non-successful responses and transport failures.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypack api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// ErrTransactionNotFound marks a status lookup that matched no events.
var ErrTransactionNotFound = errors.New("transaction not found")

// ErrMissingReference is returned when a creation response carries neither ref nor id.
var ErrMissingReference = errors.New("transaction response missing reference")

// Config holds the settings required to talk to Paypack.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Environment  string // production or sandbox
}

// Client is a Paypack API client that authenticates every call through its TokenManager.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	environment string
	logger      *slog.Logger
	now         func() time.Time

	tokens *TokenManager
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient validates cfg and builds a client with its own token cache.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	clientSecret := strings.TrimSpace(cfg.ClientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("paypack client id and secret are required")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = defaultEnvironment
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		environment: environment,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.tokens = NewTokenManager(c, clientID, clientSecret,
		WithTokenClock(c.now),
		WithTokenLogger(c.logger),
	)
	return c, nil
}

// Tokens exposes the client's credential cache.
func (c *Client) Tokens() *TokenManager { return c.tokens }

// Authorize exchanges client credentials for a token triple without touching the cache.
func (c *Client) Authorize(ctx context.Context, clientID, clientSecret string) (*AuthResponse, error) {
	payload := map[string]string{
		"client_id":     clientID,
		"client_secret": clientSecret,
	}

	var auth AuthResponse
	if err := c.call(ctx, http.MethodPost, "/auth/agents/authorize", "", payload, &auth); err != nil {
		return nil, err
	}
	if auth.Access == "" {
		return nil, errors.New("authorize response missing access token")
	}
	return &auth, nil
}

// RefreshToken mints a new token triple from a refresh token without touching the cache.
func (c *Client) RefreshToken(ctx context.Context, refresh string) (*AuthResponse, error) {
	var auth AuthResponse
	path := "/auth/agents/refresh/" + url.PathEscape(refresh)
	if err := c.call(ctx, http.MethodGet, path, "", nil, &auth); err != nil {
		return nil, err
	}
	if auth.Access == "" {
		return nil, errors.New("refresh response missing access token")
	}
	return &auth, nil
}

// authorized performs an authenticated call with a currently valid access token.
func (c *Client) authorized(ctx context.Context, method, path string, payload, out any) error {
	token, err := c.tokens.ValidAccessToken(ctx)
	if err != nil {
		return err
	}
	return c.call(ctx, method, path, token, payload, out)
}

func (c *Client) call(ctx context.Context, method, path, token string, payload, out any) error {
	start := c.now()
	_, body, err := c.doRequest(ctx, method, path, token, payload)
	c.logRequest(method, path, err == nil, c.now().Sub(start))
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", redactPath(path), err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path, token string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return 0, nil, err
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &APIError{
			StatusCode: http.StatusInternalServerError,
			Code:       codeNetworkError,
			Message:    err.Error(),
			Err:        err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &APIError{
			StatusCode: http.StatusInternalServerError,
			Code:       codeNetworkError,
			Message:    err.Error(),
			Err:        err,
		}
	}

	if resp.StatusCode >= 400 {
		return resp.StatusCode, data, decodeAPIError(resp, data)
	}

	return resp.StatusCode, data, nil
}

func decodeAPIError(resp *http.Response, data []byte) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(data)}

	var eb ErrorBody
	if err := json.Unmarshal(data, &eb); err == nil && (eb.Error != "" || eb.Message != "") {
		apiErr.Code = eb.Error
		apiErr.Message = eb.Message
		return apiErr
	}

	apiErr.Code = codeUnknownError
	apiErr.Message = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	return apiErr
}

func (c *Client) logRequest(method, path string, success bool, took time.Duration) {
	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}
	c.logger.Log(context.Background(), level, "paypack_request",
		"method", method,
		"endpoint", redactPath(path),
		"success", success,
		"duration_ms", took.Milliseconds(),
	)
}

// redactPath hides refresh tokens that travel in the URL path.
func redactPath(path string) string {
	const refreshPrefix = "/auth/agents/refresh/"
	if strings.HasPrefix(path, refreshPrefix) {
		return refreshPrefix + "[redacted]"
	}
	return path
}
