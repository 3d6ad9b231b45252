package clearinghouse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hcbs/hcbs/internal/platform/apperr"
)

func newTestClient(serverURL string, retries int) *HTTPClient {
	return NewHTTPClient(Config{
		BaseURL: serverURL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
		Retries: retries,
	}, zerolog.Nop())
}

func TestSubmitClaim_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/claims" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Payer-ID"); got != "payer-1" {
			t.Errorf("expected payer header payer-1, got %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tracking_id":"trk-1","accepted":true}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL, 0).SubmitClaim(context.Background(), "payer-1", []byte("payload"), "X12-837P")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.TrackingID != "trk-1" || !resp.Accepted {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSubmitClaim_RetriesTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"tracking_id":"trk-2","accepted":true}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL, 2).SubmitClaim(context.Background(), "payer-1", []byte("payload"), "X12-837P")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.TrackingID != "trk-2" {
		t.Errorf("expected trk-2, got %s", resp.TrackingID)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestSubmitClaim_BadRequestNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"malformed claim"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).SubmitClaim(context.Background(), "payer-1", []byte("payload"), "X12-837P")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}

	var ie *apperr.IntegrationError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IntegrationError, got %T", err)
	}
	if ie.Retryable {
		t.Error("400 response should not be retryable")
	}
	if ie.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", ie.StatusCode)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestSubmitClaim_ExhaustedRetriesIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 1).SubmitClaim(context.Background(), "payer-1", []byte("payload"), "X12-837P")
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperr.IsRetryable(err) {
		t.Error("exhausted 5xx retries should remain retryable")
	}
}

func TestSubmitBatch_SingleCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/claims/batch" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"batch_id":"bat-1","responses":[{"tracking_id":"trk-1","accepted":true},{"tracking_id":"trk-2","accepted":true}]}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL, 0).SubmitBatch(context.Background(), "payer-1", [][]byte{[]byte("a"), []byte("b")}, "X12-837P")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.BatchID != "bat-1" || len(resp.Responses) != 2 {
		t.Errorf("unexpected batch response: %+v", resp)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("batch should be one HTTP call, got %d", calls)
	}
}
