package paypack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMapEventStatus(t *testing.T) {
	cases := []struct {
		name  string
		event Event
		want  Status
	}{
		{"processed successful", Event{EventKind: EventTransactionProcessed, Data: EventData{Status: "successful"}}, StatusCompleted},
		{"processed failed", Event{EventKind: EventTransactionProcessed, Data: EventData{Status: "failed"}}, StatusInsufficientBalance},
		{"processed other", Event{EventKind: EventTransactionProcessed, Data: EventData{Status: "pending"}}, StatusPending},
		{"created", Event{EventKind: EventTransactionCreated}, StatusPending},
		{"unknown kind", Event{EventKind: "transaction:reversed", Data: EventData{Status: "successful"}}, StatusPending},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, MapEventStatus(tc.event))
		})
	}
}

func TestLatestEventSortsByTimestamp(t *testing.T) {
	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	events := []Event{
		{EventID: "created", EventKind: EventTransactionCreated, CreatedAt: Timestamp{base}},
		{EventID: "processed", EventKind: EventTransactionProcessed, CreatedAt: Timestamp{base.Add(40 * time.Second)}},
	}

	latest, ok := LatestEvent(events)
	require.True(t, ok)
	require.Equal(t, "processed", latest.EventID)
	require.Equal(t, "created", events[0].EventID, "input must not be reordered")

	_, ok = LatestEvent(nil)
	require.False(t, ok)
}

func TestLatestEventKeepsFeedOrderOnTies(t *testing.T) {
	events := []Event{{EventID: "first"}, {EventID: "second"}}
	latest, ok := LatestEvent(events)
	require.True(t, ok)
	require.Equal(t, "first", latest.EventID)
}

func TestNewTransactionView(t *testing.T) {
	created := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	processed := created.Add(time.Minute)
	view := NewTransactionView(Event{
		EventID:   "evt-1",
		EventKind: EventTransactionProcessed,
		CreatedAt: Timestamp{processed},
		Data: EventData{
			Ref:         "ref-1",
			Amount:      1500,
			Status:      "successful",
			Client:      "0788123456",
			Kind:        "CASHIN",
			CreatedAt:   Timestamp{created},
			ProcessedAt: Timestamp{processed},
		},
	}, "fallback")

	require.Equal(t, "evt-1", view.ID)
	require.Equal(t, "ref-1", view.Reference)
	require.Equal(t, "RWF", view.Currency)
	require.Equal(t, StatusCompleted, view.Status)
	require.Equal(t, "CASHIN - 1500 RWF", view.Description)
	require.Equal(t, "0788123456", view.CustomerPhone)
	require.Equal(t, created, view.CreatedAt)
	require.Equal(t, processed, view.UpdatedAt)

	empty := NewTransactionView(Event{}, "fallback")
	require.Equal(t, "fallback", empty.ID)
	require.Equal(t, "fallback", empty.Reference)
	require.Equal(t, "Transaction - 0 RWF", empty.Description)
}

func TestPaymentStatusUsesNewestEvent(t *testing.T) {
	srv := newFakePaypack(t)
	base := time.Now().Add(-time.Minute).UTC()
	srv.feed = EventFeed{Transactions: []Event{
		{EventID: "e1", EventKind: EventTransactionCreated, CreatedAt: Timestamp{base}, Data: EventData{Ref: "ref-9"}},
		{EventID: "e2", EventKind: EventTransactionProcessed, CreatedAt: Timestamp{base.Add(30 * time.Second)}, Data: EventData{Ref: "ref-9", Status: "successful", Amount: 100}},
	}, Total: 2}
	c := newTestClient(t, srv.URL, "secret")

	view, err := c.PaymentStatus(context.Background(), "ref-9")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, view.Status)
	require.Equal(t, "e2", view.ID)

	q, err := url.ParseQuery(srv.lastQuery)
	require.NoError(t, err)
	require.Equal(t, "ref-9", q.Get("ref"))
}

func TestPaymentStatusNotFound(t *testing.T) {
	srv := newFakePaypack(t)
	c := newTestClient(t, srv.URL, "secret")

	_, err := c.PaymentStatus(context.Background(), "missing")
	require.True(t, errors.Is(err, ErrTransactionNotFound))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	require.Equal(t, "NOT_FOUND", apiErr.Code)
}

func TestListPaymentsQuery(t *testing.T) {
	srv := newFakePaypack(t)
	srv.feed = EventFeed{Transactions: []Event{
		{EventID: "e1", EventKind: EventTransactionProcessed, Data: EventData{Ref: "r1", Status: "failed"}},
		{EventID: "e2", EventKind: EventTransactionCreated, Data: EventData{Ref: "r2"}},
	}, Total: 42}
	c := newTestClient(t, srv.URL, "secret")

	page, err := c.ListPayments(context.Background(), ListParams{Limit: 10, Offset: 20, Status: "successful"})
	require.NoError(t, err)
	require.Equal(t, 42, page.Total)
	require.Len(t, page.Payments, 2)
	require.Equal(t, StatusInsufficientBalance, page.Payments[0].Status)
	require.Equal(t, StatusPending, page.Payments[1].Status)

	q, err := url.ParseQuery(srv.lastQuery)
	require.NoError(t, err)
	require.Equal(t, "10", q.Get("limit"))
	require.Equal(t, "20", q.Get("offset"))
	require.Equal(t, "successful", q.Get("status"))
	require.False(t, q.Has("from_date"))
}

func TestPaymentStatusDecodesFeedTimestamps(t *testing.T) {
	srv := newFakePaypack(t)
	srv.rawFeed = `{"transactions":[
		{"event_id":"e1","event_kind":"transaction:created","created_at":"2026-01-02T10:00:00Z",
		 "data":{"ref":"ref-7","amount":500,"client":"0788123456","kind":"CASHIN","created_at":"2026-01-02 10:00:00","processed_at":""}},
		{"event_id":"e2","event_kind":"transaction:processed","created_at":"2026-01-02T10:00:45.123Z",
		 "data":{"ref":"ref-7","amount":500,"status":"successful","client":"0788123456","kind":"CASHIN","created_at":"2026-01-02 10:00:00","processed_at":null}}
	],"total":2}`
	c := newTestClient(t, srv.URL, "secret")

	view, err := c.PaymentStatus(context.Background(), "ref-7")
	require.NoError(t, err)
	require.Equal(t, "e2", view.ID)
	require.Equal(t, StatusCompleted, view.Status)
	require.Equal(t, time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC), view.CreatedAt.UTC())
	// No processed_at: the event timestamp stands in.
	require.Equal(t, time.Date(2026, 1, 2, 10, 0, 45, 123_000_000, time.UTC), view.UpdatedAt.UTC())
}

func TestTimestampUnmarshal(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"rfc3339", `"2026-01-02T10:00:00+02:00"`, time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)},
		{"space separated", `"2026-01-02 10:00:00"`, time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)},
		{"unix string", `"1767348000"`, time.Unix(1767348000, 0)},
		{"unix number", `1767348000`, time.Unix(1767348000, 0)},
		{"empty", `""`, time.Time{}},
		{"null", `null`, time.Time{}},
		{"garbage", `"yesterday"`, time.Time{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &ts))
			require.True(t, tc.want.Equal(ts.Time), "got %s", ts.Time)
		})
	}
}
