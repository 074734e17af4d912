package idempotency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newCountingHandler(status int, body string) (http.Handler, *int) {
	calls := new(int)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
	return handler, calls
}

func TestMiddlewarePassesThroughWithoutKey(t *testing.T) {
	handler, calls := newCountingHandler(http.StatusCreated, `{"ok":true}`)
	guarded := Middleware(NewMemoryStore())(handler)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/order", nil))
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", rec.Code)
		}
	}
	if *calls != 2 {
		t.Fatalf("expected handler invoked twice, got %d", *calls)
	}
}

func TestMiddlewareReplaysCompletedResponse(t *testing.T) {
	handler, calls := newCountingHandler(http.StatusCreated, `{"orderId":"ORD-1"}`)
	guarded := Middleware(NewMemoryStore())(handler)

	request := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/order", strings.NewReader(`{"confirm":true}`))
		req.Header.Set("Idempotency-Key", "key-1")
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, req)
		return rec
	}

	first := request()
	if first.Code != http.StatusCreated || first.Header().Get(replayHeaderName) != "" {
		t.Fatalf("unexpected first response: %d %q", first.Code, first.Header().Get(replayHeaderName))
	}

	second := request()
	if second.Code != http.StatusCreated {
		t.Fatalf("replay status = %d, want 201", second.Code)
	}
	if second.Header().Get(replayHeaderName) != "true" {
		t.Fatalf("expected replay header on second response")
	}
	if second.Body.String() != `{"orderId":"ORD-1"}` {
		t.Fatalf("replay body mismatch: %s", second.Body.String())
	}
	if *calls != 1 {
		t.Fatalf("expected handler invoked once, got %d", *calls)
	}
}

func TestMiddlewareRejectsKeyReuseForDifferentRequest(t *testing.T) {
	handler, _ := newCountingHandler(http.StatusCreated, `{}`)
	guarded := Middleware(NewMemoryStore())(handler)

	first := httptest.NewRequest(http.MethodPost, "/order", strings.NewReader(`{"a":1}`))
	first.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, first)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first status = %d", rec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/order", strings.NewReader(`{"a":2}`))
	second.Header.Set("Idempotency-Key", "key-1")
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, second)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for fingerprint mismatch, got %d", rec.Code)
	}
}

func TestMiddlewareSkipsUnguardedMethods(t *testing.T) {
	handler, calls := newCountingHandler(http.StatusOK, `{}`)
	guarded := Middleware(NewMemoryStore(), WithMethods(http.MethodPost))(handler)

	req := httptest.NewRequest(http.MethodGet, "/order", nil)
	req.Header.Set("Idempotency-Key", "key-1")
	guarded.ServeHTTP(httptest.NewRecorder(), req)
	guarded.ServeHTTP(httptest.NewRecorder(), req.Clone(req.Context()))

	if *calls != 2 {
		t.Fatalf("expected GET requests unguarded, got %d calls", *calls)
	}
}

func TestMemoryStoreExpiryAllowsReprocessing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	reservation, err := store.Reserve(ctx, "key-1", "fp", base, time.Minute)
	if err != nil || reservation.State != ReservationStateNew {
		t.Fatalf("unexpected first reservation: %+v err %v", reservation, err)
	}
	if err := store.SaveResponse(ctx, "key-1", "fp", Response{Status: 200}, base, time.Minute); err != nil {
		t.Fatalf("SaveResponse error: %v", err)
	}

	replay, err := store.Reserve(ctx, "key-1", "fp", base.Add(30*time.Second), time.Minute)
	if err != nil || replay.State != ReservationStateCompleted {
		t.Fatalf("expected completed reservation, got %+v err %v", replay, err)
	}

	afterExpiry, err := store.Reserve(ctx, "key-1", "fp", base.Add(2*time.Minute), time.Minute)
	if err != nil || afterExpiry.State != ReservationStateNew {
		t.Fatalf("expected expired record replaced, got %+v err %v", afterExpiry, err)
	}
}

func TestMemoryStoreCleanupExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if _, err := store.Reserve(ctx, "key-1", "fp", base, time.Minute); err != nil {
		t.Fatalf("Reserve error: %v", err)
	}
	if _, err := store.Reserve(ctx, "key-2", "fp", base, time.Hour); err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	removed, err := store.CleanupExpired(ctx, base.Add(30*time.Minute), 0)
	if err != nil {
		t.Fatalf("CleanupExpired error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one expired record removed, got %d", removed)
	}
}
