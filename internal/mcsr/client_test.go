package mcsr

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

const sampleMatches = `{"status":"success","data":[
	{"id":101,"type":2,"forfeited":false,"season":5,"date":1700000000,
	 "result":{"uuid":"aaa","time":612345},
	 "seed":{"bastion":"HOUSING","overworld":"SHIPWRECK"},
	 "players":[{"uuid":"aaa","nickname":"Alpha","country":"br"},{"uuid":"bbb","nickname":"Beta","country":"us"}],
	 "changes":[{"uuid":"aaa","change":14},{"uuid":"bbb","change":-14}],
	 "vod":[]}
]}`

// newFlakyServer answers 429 for the first `limited` requests, then 200 with sampleMatches
func newFlakyServer(t *testing.T, limited int32) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= limited {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleMatches))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestFetchUserMatches_Success(t *testing.T) {
	server, calls := newFlakyServer(t, 0)
	client := NewClient(WithBaseURL(server.URL), WithRetryDelay(0))

	resp, err := client.FetchUserMatches(context.Background(), "Alpha", DefaultFetchParams())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if *calls != 1 {
		t.Errorf("Expected 1 request, got %d", *calls)
	}
	if resp.Status != "success" || len(resp.Data) != 1 {
		t.Fatalf("Unexpected response: %+v", resp)
	}

	m := resp.Data[0]
	if !m.HasID() || *m.ID != 101 {
		t.Errorf("Expected id 101, got %v", m.ID)
	}
	if m.Seed == nil || m.Seed.Bastion != "HOUSING" || m.Seed.Overworld != "SHIPWRECK" {
		t.Errorf("Unexpected seed: %+v", m.Seed)
	}
	if m.WinnerUUID() != "aaa" {
		t.Errorf("Expected winner aaa, got %q", m.WinnerUUID())
	}
	if delta, ok := m.RatingChangeFor("bbb"); !ok || delta != -14 {
		t.Errorf("Expected -14 for bbb, got %d (%v)", delta, ok)
	}
}

func TestFetchUserMatches_RateLimitedBelowBudget(t *testing.T) {
	server, calls := newFlakyServer(t, MaxAttempts-1)
	client := NewClient(WithBaseURL(server.URL), WithRetryDelay(0))

	resp, err := client.FetchUserMatches(context.Background(), "Alpha", DefaultFetchParams())
	if err != nil {
		t.Fatalf("Expected success after %d rate limits, got: %v", MaxAttempts-1, err)
	}
	if len(resp.Data) != 1 {
		t.Errorf("Expected 1 match, got %d", len(resp.Data))
	}
	if *calls != MaxAttempts {
		t.Errorf("Expected %d requests, got %d", MaxAttempts, *calls)
	}
}

func TestFetchUserMatches_RateLimitedExhaustsBudget(t *testing.T) {
	server, calls := newFlakyServer(t, MaxAttempts)
	client := NewClient(WithBaseURL(server.URL), WithRetryDelay(0))

	resp, err := client.FetchUserMatches(context.Background(), "Alpha", DefaultFetchParams())
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("Expected ErrRetriesExhausted, got: %v", err)
	}
	if resp != nil {
		t.Error("Expected nil response when budget is exhausted")
	}
	if *calls != MaxAttempts {
		t.Errorf("Expected %d requests, got %d", MaxAttempts, *calls)
	}
}

func TestFetchUserMatches_OtherStatusFailsImmediately(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRetryDelay(0))
	_, err := client.FetchUserMatches(context.Background(), "ghost", DefaultFetchParams())
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("Expected ErrUnexpectedStatus, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected exactly 1 request, got %d", calls)
	}
}

func TestFetchUserMatches_TransportErrorRetries(t *testing.T) {
	// Server that hijacks and closes the first two connections
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("Server doesn't support hijacking")
				return
			}
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		w.Write([]byte(sampleMatches))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRetryDelay(0))
	resp, err := client.FetchUserMatches(context.Background(), "Alpha", DefaultFetchParams())
	if err != nil {
		t.Fatalf("Expected recovery after transport errors, got: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Errorf("Expected 1 match, got %d", len(resp.Data))
	}
	if calls != 3 {
		t.Errorf("Expected 3 requests, got %d", calls)
	}
}

func TestFetchUserMatches_QueryParameters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/Some%20One/matches" && r.URL.Path != "/users/Some One/matches" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("count") != "10" || q.Get("type") != "2" {
			t.Errorf("Unexpected paging params: %s", r.URL.RawQuery)
		}
		if q.Get("tag") != "rush" || q.Get("season") != "4" {
			t.Errorf("Unexpected filter params: %s", r.URL.RawQuery)
		}
		if _, ok := q["includedecay"]; !ok {
			t.Errorf("Expected includedecay key, got: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"status":"success","data":[]}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	params := FetchParams{Page: 2, Count: 10, Type: 2, Tag: "rush", Season: 4, IncludeDecay: true}
	if _, err := client.FetchUserMatches(context.Background(), "Some One", params); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
}

func TestFetchParams_OmitsUnsetFilters(t *testing.T) {
	q := FetchParams{Count: 50}.Query()
	for _, key := range []string{"type=", "tag=", "season=", "includedecay"} {
		if strings.Contains(q, key) {
			t.Errorf("Expected %q to be omitted, got %s", key, q)
		}
	}
}

func TestFetchUserMatches_CancelledContext(t *testing.T) {
	server, _ := newFlakyServer(t, MaxAttempts)
	client := NewClient(WithBaseURL(server.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.FetchUserMatches(ctx, "Alpha", DefaultFetchParams()); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}
