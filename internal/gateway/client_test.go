package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quickshop/storefront/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientDeps{
		BaseURL:    server.URL,
		Tokens:     NewTokenStore(),
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	return client, server
}

func TestClientAttachesBearerToken(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	client.Tokens().Set("session-token")

	if _, err := client.FetchCart(context.Background()); err != nil {
		t.Fatalf("FetchCart error: %v", err)
	}
	if gotAuth != "Bearer session-token" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
}

func TestClientFetchCartMapsItems(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cart" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":"i1","productId":"p1","name":"Hoodie","price":2000,"quantity":2}]}`))
	}))

	items, err := client.FetchCart(context.Background())
	if err != nil {
		t.Fatalf("FetchCart error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one item, got %d", len(items))
	}
	if items[0].UnitPrice != 2000 || items[0].Quantity != 2 {
		t.Fatalf("unexpected item mapping: %+v", items[0])
	}
}

func TestClientUnauthorizedClearsToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	client.Tokens().Set("stale-token")

	_, err := client.FetchCart(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, ok := client.Tokens().Token(); ok {
		t.Fatalf("expected token cleared after 401")
	}
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_items","message":"cart contains unknown product"}`))
	}))

	err := client.SyncAddItem(context.Background(), domain.CartItem{ID: "i1", ProductID: "p1", Quantity: 1})
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remoteErr.Code != "invalid_items" || remoteErr.Status != http.StatusBadRequest {
		t.Fatalf("unexpected remote error: %+v", remoteErr)
	}
}

func TestClientServerErrorIsUnavailable(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	err := client.SyncClearCart(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClientShippingOptionsBreakerOpensAfterFailures(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := client.ShippingOptions(ctx); err == nil {
			t.Fatalf("expected failure on call %d", i+1)
		}
	}
	if calls != 3 {
		t.Fatalf("expected three upstream calls, got %d", calls)
	}

	// Breaker is open now; the next call must fail fast without a request.
	if _, err := client.ShippingOptions(ctx); err == nil {
		t.Fatalf("expected open-breaker failure")
	}
	if calls != 3 {
		t.Fatalf("expected no further upstream calls, got %d", calls)
	}
}

func TestClientCreateOrderPrefersOrderNumber(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"order":{"id":"raw-55","orderNumber":"ORD-2041"}}`))
	}))

	id, err := client.CreateOrder(context.Background(), domain.Order{ID: "local"})
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if id != "ORD-2041" {
		t.Fatalf("expected orderNumber preferred, got %q", id)
	}
}

func TestClientCreateOrderEmptyIDIsNotAnError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"order":{}}`))
	}))

	id, err := client.CreateOrder(context.Background(), domain.Order{ID: "local"})
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if id != "" {
		t.Fatalf("expected empty id, got %q", id)
	}
}

func TestClientLoginStoresToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"fresh-token"}`))
	}))

	if err := client.Login(context.Background(), "ada@example.com", "pw"); err != nil {
		t.Fatalf("Login error: %v", err)
	}
	token, ok := client.Tokens().Token()
	if !ok || token != "fresh-token" {
		t.Fatalf("expected stored token, got %q %v", token, ok)
	}
}

func TestClientCalculateShippingRejectsNegativeCost(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"shippingCost":-100}`))
	}))

	_, err := client.CalculateShipping(context.Background(), domain.Address{}, nil, "standard")
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteError for negative cost, got %v", err)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(ClientDeps{}); err == nil {
		t.Fatalf("expected error for missing base URL")
	}
}

func TestClientCartSyncPaths(t *testing.T) {
	type call struct {
		method string
		path   string
	}
	var calls []call
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{method: r.Method, path: r.URL.Path})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))

	ctx := context.Background()
	item := domain.CartItem{ID: "i1", ProductID: "p1", Quantity: 1}
	if err := client.SyncAddItem(ctx, item); err != nil {
		t.Fatalf("SyncAddItem error: %v", err)
	}
	if err := client.SyncUpdateItem(ctx, "i1", 3); err != nil {
		t.Fatalf("SyncUpdateItem error: %v", err)
	}
	if err := client.SyncRemoveItem(ctx, "i1"); err != nil {
		t.Fatalf("SyncRemoveItem error: %v", err)
	}
	if err := client.SyncClearCart(ctx); err != nil {
		t.Fatalf("SyncClearCart error: %v", err)
	}

	want := []call{
		{http.MethodPost, "/cart"},
		{http.MethodPut, "/cart/i1"},
		{http.MethodDelete, "/cart/i1"},
		{http.MethodDelete, "/cart"},
	}
	if len(calls) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(calls))
	}
	for i, c := range calls {
		if c != want[i] {
			t.Errorf("call %d: got %s %s, want %s %s", i, c.method, c.path, want[i].method, want[i].path)
		}
	}
}
