package services

import (
	"context"
	"errors"
	"testing"

	"github.com/quickshop/storefront/internal/domain"
)

type stubCheckoutBackend struct {
	options    []domain.ShippingOption
	optionsErr error

	shippingCost int64
	shippingErr  error

	methods    []domain.PaymentMethod
	methodsErr error

	intentID  string
	intentErr error

	orderID    string
	orderErr   error
	orderCalls int
	lastOrder  domain.Order
	lastAmount int64
}

func (s *stubCheckoutBackend) ShippingOptions(context.Context) ([]domain.ShippingOption, error) {
	return s.options, s.optionsErr
}

func (s *stubCheckoutBackend) CalculateShipping(context.Context, domain.Address, []domain.CartItem, string) (int64, error) {
	return s.shippingCost, s.shippingErr
}

func (s *stubCheckoutBackend) PaymentMethods(context.Context) ([]domain.PaymentMethod, error) {
	return s.methods, s.methodsErr
}

func (s *stubCheckoutBackend) CreatePaymentIntent(_ context.Context, amount int64, _ string) (string, error) {
	s.lastAmount = amount
	return s.intentID, s.intentErr
}

func (s *stubCheckoutBackend) CreateOrder(_ context.Context, order domain.Order) (string, error) {
	s.orderCalls++
	s.lastOrder = order
	return s.orderID, s.orderErr
}

func validShippingAddress() domain.Address {
	return domain.Address{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Address1:   "1 Analytical Way",
		City:       "Springfield",
		State:      "IL",
		PostalCode: "62701",
		Country:    "US",
		Phone:      "555-123-4567",
		Email:      "ada@example.com",
	}
}

func newTestCheckout(t *testing.T, backend CheckoutBackend) (*CheckoutStore, *CartStore, *MemoryOrderArchive) {
	t.Helper()
	cart := newTestCart(t, nil)
	archive := NewMemoryOrderArchive()
	store, err := NewCheckoutStore(CheckoutStoreDeps{
		Cart:        cart,
		Backend:     backend,
		Archive:     archive,
		IDGenerator: func() string { return "LOCAL01" },
	})
	if err != nil {
		t.Fatalf("NewCheckoutStore error: %v", err)
	}
	return store, cart, archive
}

func TestCheckoutStore_SameAddressToggleMirrorsShipping(t *testing.T) {
	store, _, _ := newTestCheckout(t, nil)

	store.SetSameAddressForBilling(false)
	if errs := store.SetShippingAddress(validShippingAddress()); len(errs) != 0 {
		t.Fatalf("unexpected validation errors: %v", errs)
	}
	if state := store.State(); state.BillingAddress != nil {
		t.Fatalf("expected no billing address while mirroring is off")
	}

	store.SetSameAddressForBilling(true)
	state := store.State()
	if state.BillingAddress == nil {
		t.Fatalf("expected billing address mirrored from shipping")
	}
	if *state.BillingAddress != *state.ShippingAddress {
		t.Fatalf("expected billing to deep-equal shipping, got %+v vs %+v", state.BillingAddress, state.ShippingAddress)
	}
}

func TestCheckoutStore_InvalidAddressIsStoredWithFieldErrors(t *testing.T) {
	store, _, _ := newTestCheckout(t, nil)

	addr := validShippingAddress()
	addr.PostalCode = "abcde"
	errs := store.SetShippingAddress(addr)
	if errs["postalCode"] != "Invalid ZIP code format" {
		t.Fatalf("expected ZIP format error, got %v", errs)
	}

	state := store.State()
	if state.ShippingAddress == nil || state.ShippingAddress.PostalCode != "abcde" {
		t.Fatalf("expected invalid address stored for form round-trip")
	}
	if state.FieldErrors["postalCode"] == "" {
		t.Fatalf("expected field error retained in state")
	}
}

func TestCheckoutStore_ShippingOptionsFallbackOnFailure(t *testing.T) {
	backend := &stubCheckoutBackend{optionsErr: errors.New("network down")}
	store, _, _ := newTestCheckout(t, backend)

	options := store.FetchShippingOptions(context.Background())
	if len(options) != 2 {
		t.Fatalf("expected two fallback options, got %d", len(options))
	}
	if options[0].ID != "standard" || options[0].Price != 599 {
		t.Fatalf("expected standard 599 first, got %+v", options[0])
	}
	if options[1].ID != "express" || options[1].Price != 1299 {
		t.Fatalf("expected express 1299 second, got %+v", options[1])
	}

	if err := store.SelectShippingOption(context.Background(), "standard"); err != nil {
		t.Fatalf("expected fallback selection to succeed, got %v", err)
	}
	if state := store.State(); state.SelectedShippingOption == nil || state.SelectedShippingOption.ID != "standard" {
		t.Fatalf("expected standard selected, got %+v", state.SelectedShippingOption)
	}
}

func TestCheckoutStore_SelectShippingAppliesDespiteCalcFailure(t *testing.T) {
	backend := &stubCheckoutBackend{
		options: []domain.ShippingOption{
			{ID: "standard", Name: "Standard Shipping", Price: 599},
		},
		shippingErr: errors.New("calc down"),
	}
	store, cart, _ := newTestCheckout(t, backend)

	ctx := context.Background()
	if err := cart.AddItem(ctx, Product{ID: "p1", Name: "Hoodie", Price: 2000}, 2); err != nil {
		t.Fatalf("AddItem error: %v", err)
	}
	store.SetShippingAddress(validShippingAddress())

	if err := store.SelectShippingOption(ctx, "standard"); err != nil {
		t.Fatalf("SelectShippingOption error: %v", err)
	}

	state := store.State()
	if state.SelectedShippingOption == nil || state.SelectedShippingOption.ID != "standard" {
		t.Fatalf("expected selection applied despite calc failure")
	}
	if state.Summary.Shipping != 599 {
		t.Fatalf("expected list price 599 as fallback cost, got %d", state.Summary.Shipping)
	}
	if state.Summary.Total != 4000+320+599 {
		t.Fatalf("expected total 4919, got %d", state.Summary.Total)
	}
}

func TestCheckoutStore_PaymentMethodsFallbackOnFailure(t *testing.T) {
	backend := &stubCheckoutBackend{methodsErr: errors.New("network down")}
	store, _, _ := newTestCheckout(t, backend)

	methods := store.FetchPaymentMethods(context.Background())
	if len(methods) != 2 {
		t.Fatalf("expected two fallback methods, got %d", len(methods))
	}
	if methods[0].Type != domain.PaymentTypeCreditCard || methods[1].Type != domain.PaymentTypePayPal {
		t.Fatalf("expected credit_card then paypal, got %+v", methods)
	}
}

func TestCheckoutStore_SwitchingMethodClearsCardErrors(t *testing.T) {
	store, _, _ := newTestCheckout(t, nil)
	ctx := context.Background()

	if err := store.SelectPaymentMethod(ctx, "credit_card"); err != nil {
		t.Fatalf("SelectPaymentMethod error: %v", err)
	}
	if errs := store.SetCardDetails(domain.CardDetails{CardNumber: "4111 1111 1111"}); errs["cardNumber"] != "Invalid card number format" {
		t.Fatalf("expected card number format error, got %v", errs)
	}
	if store.FieldErrors()["cardNumber"] == "" {
		t.Fatalf("expected card error recorded")
	}

	if err := store.SelectPaymentMethod(ctx, "paypal"); err != nil {
		t.Fatalf("SelectPaymentMethod error: %v", err)
	}
	if msg := store.FieldErrors()["cardNumber"]; msg != "" {
		t.Fatalf("expected card errors cleared after switching to paypal, got %q", msg)
	}
}

func TestCheckoutStore_CreatePaymentIntentUsesOrderTotal(t *testing.T) {
	backend := &stubCheckoutBackend{intentID: "pi_123"}
	store, cart, _ := newTestCheckout(t, backend)
	ctx := context.Background()

	if err := cart.AddItem(ctx, Product{ID: "p1", Name: "Hoodie", Price: 2000}, 2); err != nil {
		t.Fatalf("AddItem error: %v", err)
	}

	intentID, err := store.CreatePaymentIntent(ctx)
	if err != nil {
		t.Fatalf("CreatePaymentIntent error: %v", err)
	}
	if intentID != "pi_123" {
		t.Fatalf("expected intent pi_123, got %q", intentID)
	}
	if backend.lastAmount != store.Summary().Total {
		t.Fatalf("expected intent amount %d, got %d", store.Summary().Total, backend.lastAmount)
	}
}

func TestCheckoutStore_PlaceOrderEmptyCartFails(t *testing.T) {
	backend := &stubCheckoutBackend{orderID: "SRV-1"}
	store, _, _ := newTestCheckout(t, backend)

	store.SetShippingAddress(validShippingAddress())
	if err := store.SelectPaymentMethod(context.Background(), "paypal"); err != nil {
		t.Fatalf("SelectPaymentMethod error: %v", err)
	}

	_, err := store.PlaceOrder(context.Background())
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if store.Step() == domain.StepConfirmation {
		t.Fatalf("expected no transition to confirmation on precondition failure")
	}
	if backend.orderCalls != 0 {
		t.Fatalf("expected no order submission, got %d", backend.orderCalls)
	}
}

func TestCheckoutStore_PlaceOrderSuccessClearsCart(t *testing.T) {
	backend := &stubCheckoutBackend{orderID: "SRV-1"}
	store, cart, archive := newTestCheckout(t, backend)
	ctx := context.Background()

	if err := cart.AddItem(ctx, Product{ID: "p1", Name: "Hoodie", Price: 2000}, 2); err != nil {
		t.Fatalf("AddItem error: %v", err)
	}
	store.SetShippingAddress(validShippingAddress())
	if err := store.SelectShippingOption(ctx, "standard"); err != nil {
		t.Fatalf("SelectShippingOption error: %v", err)
	}
	if err := store.SelectPaymentMethod(ctx, "credit_card"); err != nil {
		t.Fatalf("SelectPaymentMethod error: %v", err)
	}

	order, err := store.PlaceOrder(ctx)
	if err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}
	if order.ID != "SRV-1" {
		t.Fatalf("expected server order id, got %q", order.ID)
	}
	if store.Step() != domain.StepConfirmation {
		t.Fatalf("expected confirmation step, got %s", store.Step())
	}

	if len(cart.Items()) != 0 {
		t.Fatalf("expected cart emptied after order")
	}
	if summary := cart.Summary(); summary != (domain.CartSummary{}) {
		t.Fatalf("expected zero summary after order, got %+v", summary)
	}

	archived, ok := archive.Get("SRV-1")
	if !ok {
		t.Fatalf("expected order archived")
	}
	if archived.Total != order.Total || len(archived.Items) != 1 {
		t.Fatalf("expected archived snapshot to match order, got %+v", archived)
	}
}

func TestCheckoutStore_PlaceOrderFallsBackToLocalID(t *testing.T) {
	backend := &stubCheckoutBackend{orderID: ""}
	store, cart, _ := newTestCheckout(t, backend)
	ctx := context.Background()

	if err := cart.AddItem(ctx, Product{ID: "p1", Name: "Mug", Price: 1000}, 1); err != nil {
		t.Fatalf("AddItem error: %v", err)
	}
	store.SetShippingAddress(validShippingAddress())
	if err := store.SelectPaymentMethod(ctx, "paypal"); err != nil {
		t.Fatalf("SelectPaymentMethod error: %v", err)
	}

	order, err := store.PlaceOrder(ctx)
	if err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}
	if order.ID != "ORD-LOCAL01" {
		t.Fatalf("expected locally generated order id, got %q", order.ID)
	}
}

func TestCheckoutStore_PlaceOrderFailureKeepsCartAndStep(t *testing.T) {
	backend := &stubCheckoutBackend{orderErr: errors.New("payment declined")}
	store, cart, _ := newTestCheckout(t, backend)
	ctx := context.Background()

	if err := cart.AddItem(ctx, Product{ID: "p1", Name: "Mug", Price: 1000}, 1); err != nil {
		t.Fatalf("AddItem error: %v", err)
	}
	store.SetShippingAddress(validShippingAddress())
	if err := store.SelectPaymentMethod(ctx, "paypal"); err != nil {
		t.Fatalf("SelectPaymentMethod error: %v", err)
	}
	if err := store.setStep(domain.StepReview); err != nil {
		t.Fatalf("setStep error: %v", err)
	}

	_, err := store.PlaceOrder(ctx)
	if !errors.Is(err, ErrOrderFailed) {
		t.Fatalf("expected ErrOrderFailed, got %v", err)
	}
	if store.Step() != domain.StepReview {
		t.Fatalf("expected to stay on review for retry, got %s", store.Step())
	}
	if len(cart.Items()) != 1 {
		t.Fatalf("expected cart untouched after failure")
	}

	backend.orderErr = nil
	backend.orderID = "SRV-2"
	order, err := store.PlaceOrder(ctx)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if order.ID != "SRV-2" {
		t.Fatalf("expected retry order id SRV-2, got %q", order.ID)
	}
}

func TestCheckoutStore_TotalsTrackCartChanges(t *testing.T) {
	store, cart, _ := newTestCheckout(t, nil)
	ctx := context.Background()

	if err := cart.AddItem(ctx, Product{ID: "p1", Name: "Hoodie", Price: 2000}, 2); err != nil {
		t.Fatalf("AddItem error: %v", err)
	}

	summary := store.Summary()
	if summary.Subtotal != 4000 || summary.Tax != 320 {
		t.Fatalf("expected checkout totals to track cart, got %+v", summary)
	}

	cart.Clear(ctx)
	summary = store.Summary()
	if summary.Subtotal != 0 || summary.Tax != 0 || summary.Total != 0 {
		t.Fatalf("expected zero totals after cart clear, got %+v", summary)
	}
}

func TestCheckoutStore_ResetReturnsToShippingStep(t *testing.T) {
	store, _, _ := newTestCheckout(t, nil)
	ctx := context.Background()

	store.SetShippingAddress(validShippingAddress())
	if err := store.SelectPaymentMethod(ctx, "paypal"); err != nil {
		t.Fatalf("SelectPaymentMethod error: %v", err)
	}
	if err := store.setStep(domain.StepReview); err != nil {
		t.Fatalf("setStep error: %v", err)
	}

	store.Reset()

	state := store.State()
	if state.Step != domain.StepShipping {
		t.Fatalf("expected shipping step after reset, got %s", state.Step)
	}
	if state.ShippingAddress != nil || state.SelectedPaymentMethod != nil {
		t.Fatalf("expected checkout fields cleared after reset")
	}
	if !state.UseSameAddressForBilling {
		t.Fatalf("expected billing mirror re-enabled after reset")
	}
}
