package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/aluiziolira/go-harvest-apps/config"
	"github.com/jarcoal/httpmock"
)

const testSearchURL = "https://search.example.test/customsearch/v1"

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.SearchURL = testSearchURL
	cfg.EngineID = "engine-1"
	cfg.PageDelay = 0
	return cfg
}

func newMockedFetcher(t *testing.T, cfg *config.Config, responder httpmock.Responder) *Fetcher {
	t.Helper()
	f, err := NewFetcher(cfg, NewMetrics())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testSearchURL, responder)
	f.collector.WithTransport(transport)
	return f
}

func jsonResponder(status int, body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(status, body)
	resp.Header.Set("Content-Type", "application/json")
	return httpmock.ResponderFromResponse(resp)
}

func buildSearchBody(prefix string, n int) string {
	var builder strings.Builder
	builder.WriteString(`{"searchInformation": {"totalResults": "100"}, "items": [`)
	for i := 0; i < n; i++ {
		if i > 0 {
			builder.WriteString(",")
		}
		fmt.Fprintf(&builder, `{"title": "App %d", "link": "https://play.google.com/store/apps/details?id=%s.app%d&hl=en"}`, i, prefix, i)
	}
	builder.WriteString("]}")
	return builder.String()
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: errors.New("Forbidden"), statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: errors.New("Too Many Requests"), statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server error", err: errors.New("Internal Server Error"), statusCode: http.StatusInternalServerError, expected: "other"},
		{name: "decode", err: ErrDecode{Err: errors.New("bad json")}, statusCode: 0, expected: "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestExhaustsKey(t *testing.T) {
	if !exhaustsKey(ErrForbidden{Err: errors.New("x")}) {
		t.Fatalf("forbidden should exhaust the key")
	}
	if !exhaustsKey(fmt.Errorf("wrapped: %w", ErrRateLimited{Err: errors.New("x")})) {
		t.Fatalf("wrapped rate limit should exhaust the key")
	}
	if exhaustsKey(ErrNotFound{Err: errors.New("x")}) {
		t.Fatalf("not found should not exhaust the key")
	}
}

func TestFetcherSendsSearchParams(t *testing.T) {
	cfg := testConfig()
	var got http.Header
	var gotQuery map[string]string

	f := newMockedFetcher(t, cfg, func(req *http.Request) (*http.Response, error) {
		got = req.Header.Clone()
		values := req.URL.Query()
		gotQuery = map[string]string{}
		for _, name := range []string{"key", "cx", "q", "start", "num", "gl"} {
			gotQuery[name] = values.Get(name)
		}
		return httpmock.NewStringResponse(http.StatusOK, buildSearchBody("com.example", 2)), nil
	})

	res := f.Fetch(context.Background(), FetchRequest{Query: `site:x "17 Aug 2024" "1K+" "game"`, Start: 11, Key: "key-A"})
	if res.Outcome != OutcomeOK {
		t.Fatalf("outcome = %v, want ok (err=%v)", res.Outcome, res.Err)
	}
	if len(res.Page.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(res.Page.Items))
	}

	want := map[string]string{
		"key":   "key-A",
		"cx":    "engine-1",
		"q":     `site:x "17 Aug 2024" "1K+" "game"`,
		"start": "11",
		"num":   "10",
		"gl":    "us",
	}
	for name, value := range want {
		if gotQuery[name] != value {
			t.Fatalf("param %s = %q, want %q", name, gotQuery[name], value)
		}
	}
	if ua := got.Get("User-Agent"); ua != cfg.UserAgent {
		t.Fatalf("user agent = %q, want %q", ua, cfg.UserAgent)
	}
}

func TestFetcherOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		outcome  Outcome
		category string
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error": {}}`, outcome: OutcomeRateLimited, category: "rate_limited"},
		{name: "forbidden", status: http.StatusForbidden, body: `{"error": {}}`, outcome: OutcomeRateLimited, category: "forbidden"},
		{name: "server error", status: http.StatusInternalServerError, body: "", outcome: OutcomeFailed, category: "other"},
		{name: "bad request", status: http.StatusBadRequest, body: "", outcome: OutcomeFailed, category: "other"},
		{name: "not found", status: http.StatusNotFound, body: "", outcome: OutcomeFailed, category: "not_found"},
		{name: "malformed body", status: http.StatusOK, body: `{"items": [`, outcome: OutcomeFailed, category: "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMockedFetcher(t, testConfig(), jsonResponder(tt.status, tt.body))

			res := f.Fetch(context.Background(), FetchRequest{Query: "q", Start: 1, Key: "k"})
			if res.Outcome != tt.outcome {
				t.Fatalf("outcome = %v, want %v (err=%v)", res.Outcome, tt.outcome, res.Err)
			}
			if got := errorTypeLabel(res.Err); got != tt.category {
				t.Fatalf("category = %q, want %q", got, tt.category)
			}
			if res.Page != nil {
				t.Fatalf("page should be nil on %v", res.Outcome)
			}
		})
	}
}

func TestFetcherTransportFailure(t *testing.T) {
	f := newMockedFetcher(t, testConfig(), httpmock.NewErrorResponder(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}))

	res := f.Fetch(context.Background(), FetchRequest{Query: "q", Start: 1, Key: "k"})
	if res.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", res.Outcome)
	}
	if got := errorTypeLabel(res.Err); got != "connection" {
		t.Fatalf("category = %q, want connection", got)
	}
}

func TestFetcherEmptyPage(t *testing.T) {
	f := newMockedFetcher(t, testConfig(), jsonResponder(http.StatusOK, `{"kind": "customsearch#search"}`))

	res := f.Fetch(context.Background(), FetchRequest{Query: "q", Start: 91, Key: "k"})
	if res.Outcome != OutcomeOK {
		t.Fatalf("outcome = %v, want ok", res.Outcome)
	}
	if len(res.Page.Items) != 0 {
		t.Fatalf("items = %d, want 0", len(res.Page.Items))
	}
}

func TestFetcherCanceledContext(t *testing.T) {
	f := newMockedFetcher(t, testConfig(), jsonResponder(http.StatusOK, buildSearchBody("x", 1)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := f.Fetch(ctx, FetchRequest{Query: "q", Start: 1, Key: "k"})
	if res.Outcome != OutcomeFailed || !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("got %v / %v, want failed / context.Canceled", res.Outcome, res.Err)
	}
}

func TestErrorMessages(t *testing.T) {
	err := fmt.Errorf("page 11: %w", ErrRateLimited{Err: errors.New("Too Many Requests")})
	if got := err.Error(); got != "page 11: rate_limited: Too Many Requests" {
		t.Fatalf("message = %q", got)
	}
	if got := (ErrDecode{}).Error(); got != "decode" {
		t.Fatalf("message without cause = %q", got)
	}
	if got := errorTypeLabel(errors.New("plain")); got != "other" {
		t.Fatalf("label = %q, want other", got)
	}
}
