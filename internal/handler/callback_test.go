package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/berniyo/paypack-portal/internal/poller"
)

type receivedCallback struct {
	header http.Header
	body   []byte
}

func newCallbackServer(t *testing.T, status int) (*httptest.Server, <-chan receivedCallback) {
	t.Helper()
	got := make(chan receivedCallback, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- receivedCallback{header: r.Header.Clone(), body: body}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, "nope")
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestHTTPSCallbackSenderSignsOutcome(t *testing.T) {
	srv, got := newCallbackServer(t, http.StatusAccepted)

	sender, err := NewHTTPSCallbackSender(srv.URL, "s3cret", srv.Client())
	require.NoError(t, err)
	at := time.Unix(1_767_348_000, 0)
	sender.now = func() time.Time { return at }

	out := Outcome{ID: "out-1", TransactionID: "abc", Reference: "PAY-1", Status: poller.StatusCompleted, Settled: true}
	require.NoError(t, sender.Send(context.Background(), out))

	req := <-got
	require.Equal(t, "out-1", req.header.Get(HeaderIdempotencyKey))
	require.Equal(t, "abc", req.header.Get(HeaderTransaction))
	require.Equal(t, "completed", req.header.Get(HeaderStatus))
	require.Equal(t, Sign([]byte("s3cret"), at, req.body), req.header.Get(HeaderSignature))
	require.Contains(t, req.header.Get(HeaderSignature), "t=1767348000,v1=")

	var decoded Outcome
	require.NoError(t, json.Unmarshal(req.body, &decoded))
	require.Equal(t, out, decoded)
}

func TestHTTPSCallbackSenderWithoutSecretSkipsSignature(t *testing.T) {
	srv, got := newCallbackServer(t, http.StatusOK)

	sender, err := NewHTTPSCallbackSender(srv.URL, "", nil)
	require.NoError(t, err)
	require.NoError(t, sender.Send(context.Background(), Outcome{ID: "out-2"}))

	require.Empty(t, (<-got).header.Get(HeaderSignature))
}

func TestHTTPSCallbackSenderRejectsOutcomeWithoutID(t *testing.T) {
	sender, err := NewHTTPSCallbackSender("https://hooks.example.com/paypack", "", nil)
	require.NoError(t, err)

	require.ErrorIs(t, sender.Send(context.Background(), Outcome{TransactionID: "abc"}), ErrMissingOutcomeID)
}

func TestHTTPSCallbackSenderStatusHandling(t *testing.T) {
	srv, _ := newCallbackServer(t, http.StatusBadGateway)
	sender, err := NewHTTPSCallbackSender(srv.URL, "", nil)
	require.NoError(t, err)
	require.EqualError(t, sender.Send(context.Background(), Outcome{ID: "out-1"}),
		"callback endpoint returned 502 for outcome out-1: nope")

	dup, _ := newCallbackServer(t, http.StatusConflict)
	sender, err = NewHTTPSCallbackSender(dup.URL, "", nil)
	require.NoError(t, err)
	require.NoError(t, sender.Send(context.Background(), Outcome{ID: "out-1"}), "a duplicate delivery is not an error")
}

func TestNewHTTPSCallbackSenderValidatesURL(t *testing.T) {
	for _, bad := range []string{"  ", "http://hooks.example.com/paypack", "ftp://hooks.example.com", "not a url"} {
		_, err := NewHTTPSCallbackSender(bad, "", nil)
		require.Error(t, err, bad)
	}

	_, err := NewHTTPSCallbackSender("http://localhost:8080/hook", "", nil)
	require.NoError(t, err)
}
