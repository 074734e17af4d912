package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quickshop/storefront/internal/domain"
	"github.com/quickshop/storefront/internal/gateway"
	"github.com/quickshop/storefront/internal/platform/httpx"
	"github.com/quickshop/storefront/internal/platform/pagination"
	"github.com/quickshop/storefront/internal/services"
)

const maxOrderPageSize = 50

// RemoteOrderLookup resolves an order from the upstream API when the local
// archive does not hold it.
type RemoteOrderLookup interface {
	OrderByID(ctx context.Context, orderID string) (domain.Order, error)
}

// OrderHandlers serves placed-order snapshots from the session archive, with
// an optional upstream lookup for orders placed in earlier sessions.
type OrderHandlers struct {
	archive *services.MemoryOrderArchive
	remote  RemoteOrderLookup
}

// NewOrderHandlers constructs handlers over the order archive. remote may be
// nil when no upstream is configured.
func NewOrderHandlers(archive *services.MemoryOrderArchive, remote RemoteOrderLookup) *OrderHandlers {
	return &OrderHandlers{archive: archive, remote: remote}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params, err := pagination.FromRequest(r, pagination.Options{MaxPageSize: maxOrderPageSize})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	params = pagination.Must(params)

	orders := h.archive.List()
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	page, next := slicePage(orders, params.Cursor, params.PageSize)
	nextToken, err := pagination.EncodeToken(next)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to build page token", http.StatusInternalServerError))
		return
	}

	payloads := make([]orderPayload, 0, len(page))
	for _, order := range page {
		payloads = append(payloads, buildOrderPayload(order))
	}
	response := map[string]any{"orders": payloads}
	if nextToken != "" {
		response["nextPageToken"] = nextToken
	}
	writeJSONResponse(w, http.StatusOK, response)
}

// slicePage skips everything up to and including the cursor position and
// returns at most pageSize entries plus the cursor for the following page.
// Orders must already be sorted newest-first with ID as tie-breaker.
func slicePage(orders []domain.Order, cursor pagination.Cursor, pageSize int) ([]domain.Order, pagination.Cursor) {
	start := 0
	if !cursor.IsZero() {
		for i, order := range orders {
			if order.ID == cursor.ID && order.CreatedAt.Equal(cursor.CreatedAt) {
				start = i + 1
				break
			}
		}
	}
	if start >= len(orders) {
		return nil, pagination.Cursor{}
	}

	end := start + pageSize
	if end >= len(orders) {
		return orders[start:], pagination.Cursor{}
	}
	last := orders[end-1]
	return orders[start:end], pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))

	order, ok := h.archive.Get(orderID)
	if !ok && h.remote != nil {
		remote, err := h.remote.OrderByID(ctx, orderID)
		if err == nil {
			order, ok = remote, true
		} else if !errors.Is(err, gateway.ErrNotFound) {
			httpx.WriteError(ctx, w, httpx.NewError("order_lookup_failed", "unable to look up order", http.StatusBadGateway))
			return
		}
	}
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"order": buildOrderPayload(order)})
}
