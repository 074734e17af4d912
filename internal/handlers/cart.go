package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quickshop/storefront/internal/platform/httpx"
	"github.com/quickshop/storefront/internal/services"
)

const maxCartBodySize = 16 * 1024

// CartHandlers exposes the session cart over HTTP.
type CartHandlers struct {
	cart *services.CartStore
}

// NewCartHandlers constructs handlers over the session cart store.
func NewCartHandlers(cart *services.CartStore) *CartHandlers {
	return &CartHandlers{cart: cart}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Patch("/items/{itemID}", h.updateItem)
	r.Delete("/items/{itemID}", h.removeItem)
}

type cartResponse struct {
	Items     []cartItemPayload  `json:"items"`
	Summary   cartSummaryPayload `json:"summary"`
	SyncError string             `json:"syncError,omitempty"`
}

func (h *CartHandlers) buildResponse() cartResponse {
	resp := cartResponse{
		Items:   buildItemPayloads(h.cart.Items()),
		Summary: buildCartSummaryPayload(h.cart.Summary()),
	}
	if err := h.cart.SyncErr(); err != nil {
		resp.SyncError = err.Error()
	}
	return resp
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.buildResponse())
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image"`
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addItemRequest
	if err := decodeJSONBody(r, maxCartBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	err := h.cart.AddItem(ctx, services.Product{
		ID:    req.ProductID,
		Name:  req.Name,
		Price: req.Price,
		Image: req.Image,
	}, req.Quantity)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, h.buildResponse())
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))

	var req updateItemRequest
	if err := decodeJSONBody(r, maxCartBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	if err := h.cart.UpdateQuantity(ctx, itemID, req.Quantity); err != nil {
		writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, h.buildResponse())
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	h.cart.RemoveItem(r.Context(), itemID)
	writeJSONResponse(w, http.StatusOK, h.buildResponse())
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	h.cart.Clear(r.Context())
	writeJSONResponse(w, http.StatusOK, h.buildResponse())
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "cart operation failed", http.StatusInternalServerError))
	}
}
