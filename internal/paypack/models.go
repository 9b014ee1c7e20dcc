package paypack

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// UnixTime decodes the absolute Unix-seconds timestamps Paypack sends either as
// a JSON string or as a JSON number.
type UnixTime struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *UnixTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(bytes.Trim(data, `"`))
	if raw == "" {
		return nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("decode unix time %q: %w", raw, err)
	}
	u.Time = time.Unix(int64(secs), 0)
	return nil
}

// MarshalJSON encodes the timestamp back into Unix seconds.
func (u UnixTime) MarshalJSON() ([]byte, error) {
	if u.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(strconv.FormatInt(u.Unix(), 10))
}

// Timestamp decodes the event feed's timestamps. RFC 3339, space-separated
// datetimes and Unix seconds are accepted; empty, null and unparseable values
// decode to the zero time so one odd entry cannot fail a whole feed.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// UnmarshalJSON implements json.Unmarshaler. It never fails.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}
	raw := strings.TrimSpace(string(bytes.Trim(bytes.TrimSpace(data), `"`)))
	if raw == "" || raw == "null" {
		return nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		t.Time = time.Unix(int64(secs), 0).UTC()
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return nil
}

// MarshalJSON encodes the zero time as an empty string and anything else as RFC 3339.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// AuthResponse captures the payload returned by the authorize and refresh endpoints.
type AuthResponse struct {
	Access  string   `json:"access"`
	Refresh string   `json:"refresh"`
	Expires UnixTime `json:"expires"`
}

// ErrorBody is the error envelope Paypack returns on non-2xx responses.
type ErrorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

// TransactionResponse is returned by the cashin and cashout endpoints.
type TransactionResponse struct {
	Ref       string    `json:"ref"`
	ID        string    `json:"id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Amount    float64   `json:"amount"`
	Fee       float64   `json:"fee,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Status is the local view of a transaction's progress.
type Status string

const (
	StatusPending             Status = "pending"
	StatusCompleted           Status = "completed"
	StatusFailed              Status = "failed"
	StatusCancelled           Status = "cancelled"
	StatusInsufficientBalance Status = "insufficient_balance"
)

// Event kinds emitted by the Paypack events feed.
const (
	EventTransactionCreated   = "transaction:created"
	EventTransactionProcessed = "transaction:processed"
)

// EventData is the transaction snapshot embedded in a feed entry.
type EventData struct {
	Ref         string    `json:"ref"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
	Client      string    `json:"client"`
	Kind        string    `json:"kind"`
	CreatedAt   Timestamp `json:"created_at"`
	ProcessedAt Timestamp `json:"processed_at"`
}

// Event is a single entry of the transactions event feed.
type Event struct {
	EventID   string    `json:"event_id"`
	EventKind string    `json:"event_kind"`
	CreatedAt Timestamp `json:"created_at"`
	Data      EventData `json:"data"`
}

// EventFeed is the response of GET /events/transactions.
type EventFeed struct {
	Transactions []Event `json:"transactions"`
	Total        int     `json:"total"`
}

// TransactionView is the derived transaction representation handed to callers.
type TransactionView struct {
	ID            string    `json:"id"`
	Reference     string    `json:"reference"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Status        Status    `json:"status"`
	Description   string    `json:"description"`
	CustomerPhone string    `json:"customer_phone"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TransactionPage is a page of transactions from the events feed.
type TransactionPage struct {
	Payments []TransactionView `json:"payments"`
	Total    int               `json:"total"`
}

// ListParams filters the events feed listing.
type ListParams struct {
	Limit    int
	Offset   int
	Status   string
	FromDate string
	ToDate   string
}
