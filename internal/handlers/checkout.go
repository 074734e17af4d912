package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quickshop/storefront/internal/domain"
	"github.com/quickshop/storefront/internal/platform/httpx"
	"github.com/quickshop/storefront/internal/services"
)

const maxCheckoutBodySize = 32 * 1024

// CheckoutHandlers exposes the checkout flow over HTTP: addresses, shipping
// and payment selection, wizard navigation and order placement.
type CheckoutHandlers struct {
	checkout       *services.CheckoutStore
	wizard         *services.Wizard
	paymentIntents bool
}

// CheckoutOption customises the checkout handlers.
type CheckoutOption func(*CheckoutHandlers)

// WithPaymentIntents toggles the payment-intent endpoint. When disabled the
// route is not mounted and requests to it fall through to the 404 envelope.
func WithPaymentIntents(enabled bool) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.paymentIntents = enabled
	}
}

// NewCheckoutHandlers constructs handlers over the checkout store and its wizard.
func NewCheckoutHandlers(checkout *services.CheckoutStore, wizard *services.Wizard, opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{checkout: checkout, wizard: wizard, paymentIntents: true}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getState)
	r.Put("/shipping-address", h.putShippingAddress)
	r.Put("/billing-address", h.putBillingAddress)
	r.Put("/billing-same", h.putBillingSame)
	r.Get("/shipping-options", h.getShippingOptions)
	r.Put("/shipping-option", h.putShippingOption)
	r.Get("/payment-methods", h.getPaymentMethods)
	r.Put("/payment-method", h.putPaymentMethod)
	r.Put("/card", h.putCard)
	if h.paymentIntents {
		r.Post("/payment-intent", h.postPaymentIntent)
	}
	r.Put("/step", h.putStep)
	r.Post("/order", h.postOrder)
	r.Post("/reset", h.postReset)
}

type checkoutStateResponse struct {
	Step                     string                  `json:"step"`
	ShippingAddress          *addressPayload         `json:"shippingAddress,omitempty"`
	BillingAddress           *addressPayload         `json:"billingAddress,omitempty"`
	UseSameAddressForBilling bool                    `json:"useSameAddressForBilling"`
	ShippingOptions          []shippingOptionPayload `json:"shippingOptions"`
	SelectedShippingOption   *shippingOptionPayload  `json:"selectedShippingOption,omitempty"`
	PaymentMethods           []paymentMethodPayload  `json:"paymentMethods"`
	SelectedPaymentMethod    *paymentMethodPayload   `json:"selectedPaymentMethod,omitempty"`
	PaymentIntentID          string                  `json:"paymentIntentId,omitempty"`
	OrderID                  string                  `json:"orderId,omitempty"`
	Summary                  orderSummaryPayload     `json:"summary"`
	FieldErrors              map[string]string       `json:"fieldErrors,omitempty"`
	Loading                  bool                    `json:"loading"`
}

type orderSummaryPayload struct {
	Subtotal       int64  `json:"subtotal"`
	Shipping       int64  `json:"shipping"`
	Tax            int64  `json:"tax"`
	Total          int64  `json:"total"`
	TotalFormatted string `json:"totalFormatted"`
}

func buildCheckoutStateResponse(state services.CheckoutState) checkoutStateResponse {
	resp := checkoutStateResponse{
		Step:                     string(state.Step),
		UseSameAddressForBilling: state.UseSameAddressForBilling,
		ShippingOptions:          buildShippingOptionPayloads(state.ShippingOptions),
		PaymentMethods:           buildPaymentMethodPayloads(state.PaymentMethods),
		PaymentIntentID:          state.PaymentIntentID,
		OrderID:                  state.OrderID,
		Summary: orderSummaryPayload{
			Subtotal:       state.Summary.Subtotal,
			Shipping:       state.Summary.Shipping,
			Tax:            state.Summary.Tax,
			Total:          state.Summary.Total,
			TotalFormatted: domain.FormatMoney(state.Summary.Total),
		},
		Loading: state.Loading,
	}
	if state.ShippingAddress != nil {
		payload := buildAddressPayload(*state.ShippingAddress)
		resp.ShippingAddress = &payload
	}
	if state.BillingAddress != nil {
		payload := buildAddressPayload(*state.BillingAddress)
		resp.BillingAddress = &payload
	}
	if state.SelectedShippingOption != nil {
		opts := buildShippingOptionPayloads([]domain.ShippingOption{*state.SelectedShippingOption})
		resp.SelectedShippingOption = &opts[0]
	}
	if state.SelectedPaymentMethod != nil {
		methods := buildPaymentMethodPayloads([]domain.PaymentMethod{*state.SelectedPaymentMethod})
		resp.SelectedPaymentMethod = &methods[0]
	}
	if len(state.FieldErrors) > 0 {
		resp.FieldErrors = state.FieldErrors
	}
	return resp
}

func (h *CheckoutHandlers) writeState(w http.ResponseWriter, status int) {
	writeJSONResponse(w, status, buildCheckoutStateResponse(h.checkout.State()))
}

func (h *CheckoutHandlers) getState(w http.ResponseWriter, r *http.Request) {
	h.writeState(w, http.StatusOK)
}

func (h *CheckoutHandlers) putShippingAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addressPayload
	if err := decodeJSONBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	if errs := h.checkout.SetShippingAddress(req.toDomain()); len(errs) > 0 {
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", "shipping address is invalid", http.StatusUnprocessableEntity).
			WithDetails(map[string]any{"fields": errs}))
		return
	}

	h.writeState(w, http.StatusOK)
}

func (h *CheckoutHandlers) putBillingAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addressPayload
	if err := decodeJSONBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	h.checkout.SetBillingAddress(req.toDomain())
	h.writeState(w, http.StatusOK)
}

type billingSameRequest struct {
	Same bool `json:"same"`
}

func (h *CheckoutHandlers) putBillingSame(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req billingSameRequest
	if err := decodeJSONBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	h.checkout.SetSameAddressForBilling(req.Same)
	h.writeState(w, http.StatusOK)
}

func (h *CheckoutHandlers) getShippingOptions(w http.ResponseWriter, r *http.Request) {
	options := h.checkout.FetchShippingOptions(r.Context())
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"shippingOptions": buildShippingOptionPayloads(options),
	})
}

type selectShippingOptionRequest struct {
	OptionID string `json:"optionId"`
}

func (h *CheckoutHandlers) putShippingOption(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req selectShippingOptionRequest
	if err := decodeJSONBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	if err := h.checkout.SelectShippingOption(ctx, req.OptionID); err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	h.writeState(w, http.StatusOK)
}

func (h *CheckoutHandlers) getPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods := h.checkout.FetchPaymentMethods(r.Context())
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"paymentMethods": buildPaymentMethodPayloads(methods),
	})
}

type selectPaymentMethodRequest struct {
	MethodID string `json:"methodId"`
}

func (h *CheckoutHandlers) putPaymentMethod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req selectPaymentMethodRequest
	if err := decodeJSONBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	if err := h.checkout.SelectPaymentMethod(ctx, req.MethodID); err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	h.writeState(w, http.StatusOK)
}

type cardDetailsRequest struct {
	CardNumber string `json:"cardNumber"`
	CardHolder string `json:"cardHolder"`
	ExpiryDate string `json:"expiryDate"`
	CVV        string `json:"cvv"`
}

func (h *CheckoutHandlers) putCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req cardDetailsRequest
	if err := decodeJSONBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	errs := h.checkout.SetCardDetails(domain.CardDetails{
		CardNumber: req.CardNumber,
		CardHolder: req.CardHolder,
		ExpiryDate: req.ExpiryDate,
		CVV:        req.CVV,
	})
	if len(errs) > 0 {
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", "card details are invalid", http.StatusUnprocessableEntity).
			WithDetails(map[string]any{"fields": errs}))
		return
	}

	h.writeState(w, http.StatusOK)
}

func (h *CheckoutHandlers) postPaymentIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	intentID, err := h.checkout.CreatePaymentIntent(ctx)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, map[string]any{"paymentIntentId": intentID})
}

type setStepRequest struct {
	Step string `json:"step"`
}

func (h *CheckoutHandlers) putStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req setStepRequest
	if err := decodeJSONBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	if err := h.wizard.Goto(domain.CheckoutStep(req.Step)); err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	h.writeState(w, http.StatusOK)
}

func (h *CheckoutHandlers) postOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	order, err := h.checkout.PlaceOrder(ctx)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, map[string]any{"order": buildOrderPayload(order)})
}

func (h *CheckoutHandlers) postReset(w http.ResponseWriter, r *http.Request) {
	h.checkout.Reset()
	h.writeState(w, http.StatusOK)
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	var guardErr *services.GuardError
	switch {
	case errors.As(err, &guardErr):
		httpErr := httpx.NewError("step_blocked", guardErr.Error(), http.StatusConflict)
		if len(guardErr.Fields) > 0 {
			httpErr = httpErr.WithDetails(map[string]any{"fields": guardErr.Fields})
		}
		httpx.WriteError(ctx, w, httpErr)
	case errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrShippingAddressRequired),
		errors.Is(err, services.ErrPaymentMethodRequired):
		httpx.WriteError(ctx, w, httpx.NewError("precondition_failed", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderFailed):
		httpx.WriteError(ctx, w, httpx.NewError("order_failed", err.Error(), http.StatusBadGateway))
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "checkout operation failed", http.StatusInternalServerError))
	}
}
