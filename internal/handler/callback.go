package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultCallbackTimeout = 15 * time.Second

// Callback headers. The signature is "t=<unix>,v1=<hex>" where v1 is the
// HMAC-SHA256 of "<unix>.<body>" keyed with the shared secret.
const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderTransaction    = "X-Paypack-Transaction"
	HeaderStatus         = "X-Paypack-Status"
	HeaderSignature      = "X-Callback-Signature"
)

// ErrMissingOutcomeID is returned when an outcome cannot be deduplicated downstream.
var ErrMissingOutcomeID = errors.New("outcome id is required")

// HTTPSCallbackSender posts signed payment outcomes to an HTTPS endpoint.
// Plain HTTP is accepted only for loopback hosts.
type HTTPSCallbackSender struct {
	endpoint   string
	secret     []byte
	httpClient *http.Client
	now        func() time.Time
}

// NewHTTPSCallbackSender builds an HTTPS callback client.
func NewHTTPSCallbackSender(endpoint, secret string, client *http.Client) (*HTTPSCallbackSender, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("callback URL is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid callback URL %q", endpoint)
	}
	if u.Scheme != "https" && !(u.Scheme == "http" && isLoopback(u.Hostname())) {
		return nil, fmt.Errorf("callback URL must use https, got %q", u.Scheme)
	}

	if client == nil {
		client = &http.Client{Timeout: defaultCallbackTimeout}
	}

	return &HTTPSCallbackSender{
		endpoint:   u.String(),
		secret:     []byte(secret),
		httpClient: client,
		now:        time.Now,
	}, nil
}

// Send delivers one outcome. Receivers deduplicate on the Idempotency-Key,
// which is the outcome id, and can route on the transaction and status
// headers without decoding the body.
func (h *HTTPSCallbackSender) Send(ctx context.Context, out Outcome) error {
	if out.ID == "" {
		return ErrMissingOutcomeID
	}

	body, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode outcome %s: %w", out.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultCallbackTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback for outcome %s: %w", out.ID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderIdempotencyKey, out.ID)
	req.Header.Set(HeaderTransaction, out.TransactionID)
	req.Header.Set(HeaderStatus, string(out.Status))
	if len(h.secret) > 0 {
		req.Header.Set(HeaderSignature, Sign(h.secret, h.now(), body))
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver outcome %s: %w", out.ID, err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusConflict:
		// Already recorded under this idempotency key.
		return nil
	case resp.StatusCode >= 300:
		return fmt.Errorf("callback endpoint returned %d for outcome %s: %s", resp.StatusCode, out.ID, strings.TrimSpace(string(detail)))
	}
	return nil
}

// Sign computes the X-Callback-Signature value for body at ts.
func Sign(secret []byte, ts time.Time, body []byte) string {
	stamp := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(stamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return "t=" + stamp + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
