package paypack

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MapEventStatus translates a feed entry into the local status. Unknown event
// kinds map to pending.
func MapEventStatus(e Event) Status {
	if e.EventKind != EventTransactionProcessed {
		return StatusPending
	}
	switch e.Data.Status {
	case "successful":
		return StatusCompleted
	case "failed":
		// Paypack reports insufficient funds and a user declining the prompt
		// with the same bounced-back status.
		return StatusInsufficientBalance
	default:
		return StatusPending
	}
}

// LatestEvent picks the newest entry by timestamp. Entries with equal or
// missing timestamps keep their feed order.
func LatestEvent(events []Event) (Event, bool) {
	if len(events) == 0 {
		return Event{}, false
	}
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return eventTime(sorted[i]).After(eventTime(sorted[j]))
	})
	return sorted[0], true
}

func eventTime(e Event) time.Time {
	if !e.CreatedAt.IsZero() {
		return e.CreatedAt.Time
	}
	return e.Data.CreatedAt.Time
}

// NewTransactionView builds the caller-facing view of a feed entry.
func NewTransactionView(e Event, fallbackRef string) TransactionView {
	d := e.Data

	id := firstNonEmpty(e.EventID, d.Ref, fallbackRef)
	kind := d.Kind
	if kind == "" {
		kind = "Transaction"
	}

	created := d.CreatedAt.Time
	if created.IsZero() {
		created = e.CreatedAt.Time
	}
	updated := d.ProcessedAt.Time
	if updated.IsZero() {
		updated = e.CreatedAt.Time
	}

	return TransactionView{
		ID:            id,
		Reference:     firstNonEmpty(d.Ref, fallbackRef),
		Amount:        d.Amount,
		Currency:      Currency,
		Status:        MapEventStatus(e),
		Description:   kind + " - " + strconv.FormatFloat(d.Amount, 'f', -1, 64) + " " + Currency,
		CustomerPhone: d.Client,
		CreatedAt:     created,
		UpdatedAt:     updated,
	}
}

// PaymentStatus reconstructs the current state of a transaction from the
// events feed.
func (c *Client) PaymentStatus(ctx context.Context, ref string) (*TransactionView, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, &APIError{StatusCode: http.StatusBadRequest, Code: "BAD_REQUEST", Message: "Transaction ID is required"}
	}

	q := url.Values{}
	q.Set("ref", ref)

	var feed EventFeed
	if err := c.authorized(ctx, http.MethodGet, "/events/transactions?"+q.Encode(), nil, &feed); err != nil {
		return nil, err
	}

	latest, ok := LatestEvent(feed.Transactions)
	if !ok {
		return nil, &APIError{
			StatusCode: http.StatusNotFound,
			Code:       codeNotFound,
			Message:    "Transaction not found",
			Err:        ErrTransactionNotFound,
		}
	}

	view := NewTransactionView(latest, ref)
	return &view, nil
}

// ListPayments lists feed entries with optional filters.
func (c *Client) ListPayments(ctx context.Context, params ListParams) (*TransactionPage, error) {
	q := url.Values{}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		q.Set("offset", strconv.Itoa(params.Offset))
	}
	if params.Status != "" {
		q.Set("status", params.Status)
	}
	if params.FromDate != "" {
		q.Set("from_date", params.FromDate)
	}
	if params.ToDate != "" {
		q.Set("to_date", params.ToDate)
	}

	path := "/events/transactions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var feed EventFeed
	if err := c.authorized(ctx, http.MethodGet, path, nil, &feed); err != nil {
		return nil, err
	}

	page := &TransactionPage{
		Payments: make([]TransactionView, 0, len(feed.Transactions)),
		Total:    feed.Total,
	}
	for _, e := range feed.Transactions {
		page.Payments = append(page.Payments, NewTransactionView(e, ""))
	}
	return page, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
