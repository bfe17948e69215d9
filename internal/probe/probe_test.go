package probe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/google/go-cmp/cmp"

	"github.com/sagoresarker/cdnprobe/internal/models"
)

var quiet = &log.Logger{Handler: discard.Default, Level: log.DebugLevel}

// FakeHTTPTransport answers by URL and records every request it sees.
type FakeHTTPTransport struct {
	mu       sync.Mutex
	status   map[string]int
	errs     map[string]error
	requests []*http.Request
}

func (txp *FakeHTTPTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	txp.mu.Lock()
	defer txp.mu.Unlock()
	txp.requests = append(txp.requests, req)
	u := req.URL.String()
	if err, ok := txp.errs[u]; ok {
		return nil, err
	}
	code, ok := txp.status[u]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return &http.Response{
		StatusCode: code,
		Body:       io.NopCloser(strings.NewReader("body")),
		Header:     http.Header{},
		Request:    req,
	}, nil
}

func (txp *FakeHTTPTransport) urls() []string {
	txp.mu.Lock()
	defer txp.mu.Unlock()
	var out []string
	for _, req := range txp.requests {
		out = append(out, req.URL.String())
	}
	return out
}

func newProber(txp http.RoundTripper) *Prober {
	client := &http.Client{
		Transport: txp,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return New(time.Second, WithClient(client), WithLogger(quiet))
}

func TestVariantsOrder(t *testing.T) {
	expect := []string{
		"http://example.com",
		"http://www.example.com",
		"https://example.com",
		"https://www.example.com",
	}
	if diff := cmp.Diff(expect, Variants("example.com")); diff != "" {
		t.Fatal(diff)
	}
}

func TestDiscoverStopsAtFirstSuccess(t *testing.T) {
	txp := &FakeHTTPTransport{status: map[string]int{
		"http://example.com":      301,
		"http://www.example.com":  404,
		"https://example.com":     200,
		"https://www.example.com": 200,
	}}
	result := newProber(txp).Discover(context.Background(), "example.com")
	if !result.OK() || result.URL != "https://example.com" {
		t.Fatalf("unexpected result %+v", result)
	}
	expect := []string{"http://example.com", "http://www.example.com", "https://example.com"}
	if diff := cmp.Diff(expect, txp.urls()); diff != "" {
		t.Fatal(diff)
	}
	expectAttempts := []models.Attempt{
		{URL: "http://example.com", StatusCode: 301},
		{URL: "http://www.example.com", StatusCode: 404},
		{URL: "https://example.com", StatusCode: 200},
	}
	if diff := cmp.Diff(expectAttempts, result.Attempts); diff != "" {
		t.Fatal(diff)
	}
}

func TestDiscoverFirstVariant(t *testing.T) {
	txp := &FakeHTTPTransport{status: map[string]int{"http://example.com": 204}}
	result := newProber(txp).Discover(context.Background(), "example.com")
	if result.URL != "http://example.com" || len(txp.urls()) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestDiscoverUnreachable(t *testing.T) {
	txp := &FakeHTTPTransport{
		status: map[string]int{
			"http://example.com":     500,
			"http://www.example.com": 302,
		},
		errs: map[string]error{"https://example.com": errors.New("tls: handshake failure")},
	}
	result := newProber(txp).Discover(context.Background(), "example.com")
	if result.OK() || result.URL != "" {
		t.Fatalf("expected unreachable, got %+v", result)
	}
	if len(result.Attempts) != 4 {
		t.Fatalf("expected four attempts, got %d", len(result.Attempts))
	}
	if result.Attempts[2].StatusCode != 0 || result.Attempts[2].Error == "" {
		t.Fatalf("transport failures must be recorded: %+v", result.Attempts[2])
	}
}

func TestDiscoverSetsNoCacheHeaders(t *testing.T) {
	txp := &FakeHTTPTransport{status: map[string]int{"http://example.com": 200}}
	newProber(txp).Discover(context.Background(), "example.com")
	req := txp.requests[0]
	if req.Header.Get("Pragma") != "no-cache" || req.Header.Get("Cache-Control") != "no-cache" {
		t.Fatal("missing cache-defeating headers")
	}
	if req.Method != http.MethodGet {
		t.Fatalf("unexpected method %s", req.Method)
	}
}

func TestDiscoverCancelled(t *testing.T) {
	txp := &FakeHTTPTransport{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := newProber(txp).Discover(ctx, "example.com")
	if result.OK() || len(txp.urls()) != 0 {
		t.Fatal("a cancelled context must not issue requests")
	}
}

func TestDiscoverRealServerRedirectNotFollowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://elsewhere.example/", http.StatusFound)
	}))
	defer srv.Close()

	p := New(2*time.Second, WithLogger(quiet))
	attempt := p.try(context.Background(), srv.URL)
	if attempt.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %+v", attempt)
	}
}

func TestDiscoverLowerCaseMethod(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusNotImplemented)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(2*time.Second, WithMethod("head"), WithLogger(quiet))
	attempt := p.try(context.Background(), srv.URL)
	if attempt.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for a HEAD request, got %+v", attempt)
	}
}
