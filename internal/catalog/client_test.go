package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"wishbot/internal/session"
	logx "wishbot/pkg/logx"
)

func newTestClient(t *testing.T, endpoint string, retries int) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		Endpoint:       endpoint,
		PageSize:       10,
		RequestTimeout: 100 * time.Millisecond,
		MaxRetries:     retries,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestFetchPageParsesProducts(t *testing.T) {
	var gotPage, gotSize string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPage = r.URL.Query().Get("currentPage")
		gotSize = r.URL.Query().Get("pageSize")
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		if c, err := r.Cookie("sid"); err != nil || c.Value != "abc" {
			t.Errorf("missing session cookie")
		}
		w.Write([]byte(`{"products":[{"productCode":"P1","name":"Tee","price":{"value":499},
			"url":"/p/tee-p1.html",
			"variantOptions":[{"stock":{"stockLevelStatus":"inStock"},
			"variantOptionQualifiers":[{"qualifier":"size","value":"M"}]}]}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	creds := session.Set{"A": "tok", "sid": "abc"}
	products, err := c.FetchPage(context.Background(), creds, 2)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if gotPage != "2" || gotSize != "10" {
		t.Fatalf("query params: page=%s size=%s", gotPage, gotSize)
	}
	if len(products) != 1 || products[0].ProductCode != "P1" {
		t.Fatalf("unexpected products: %+v", products)
	}
}

func TestFetchPageRetriesTimeoutUpToBound(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(400 * time.Millisecond) // longer than the 100ms request timeout
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	_, err := c.FetchPage(context.Background(), session.Set{}, 0)
	if err == nil {
		t.Fatalf("expected error after exhausted retries")
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestFetchPageRetriesNon200(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"products":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 5)
	products, err := c.FetchPage(context.Background(), session.Set{}, 0)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if products != nil && len(products) != 0 {
		t.Fatalf("expected empty page, got %+v", products)
	}
	if hits.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", hits.Load())
	}
}

func TestFetchPageMalformedJSONNoRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"products": [`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 5)
	if _, err := c.FetchPage(context.Background(), session.Set{}, 0); err == nil {
		t.Fatalf("expected decode error")
	}
	if hits.Load() != 1 {
		t.Fatalf("malformed body must not retry, got %d attempts", hits.Load())
	}
}

func TestFetchPageHonorsCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(t, srv.URL, 5)
	if _, err := c.FetchPage(ctx, session.Set{}, 0); err == nil {
		t.Fatalf("expected context error")
	}
}
