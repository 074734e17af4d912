package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/quickshop/storefront/internal/domain"
	"github.com/quickshop/storefront/internal/validation"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input.
	ErrCheckoutInvalidInput = errors.New("checkout store: invalid input")
	// ErrEmptyCart blocks order placement when the cart has no items.
	ErrEmptyCart = errors.New("checkout store: cart is empty")
	// ErrShippingAddressRequired blocks order placement until a complete
	// shipping address is captured.
	ErrShippingAddressRequired = errors.New("checkout store: shipping address required")
	// ErrPaymentMethodRequired blocks order placement until a payment method
	// is selected or a payment intent exists.
	ErrPaymentMethodRequired = errors.New("checkout store: payment method required")
	// ErrOrderFailed wraps a failed order submission. The checkout stays on
	// the review step and the cart is untouched, so the shopper can retry.
	ErrOrderFailed = errors.New("checkout store: order submission failed")
)

// Hardcoded fallbacks served when the remote catalog calls fail. The shopper
// is never blocked on a degraded backend.
var (
	fallbackShippingOptions = []domain.ShippingOption{
		{ID: "standard", Name: "Standard Shipping", Description: "Delivery in 5-7 business days", Price: 599, EstimatedDelivery: "5-7 business days"},
		{ID: "express", Name: "Express Shipping", Description: "Delivery in 2-3 business days", Price: 1299, EstimatedDelivery: "2-3 business days"},
	}
	fallbackPaymentMethods = []domain.PaymentMethod{
		{ID: "credit_card", Type: domain.PaymentTypeCreditCard, Name: "Credit Card", Description: "Pay with Visa, Mastercard, or American Express"},
		{ID: "paypal", Type: domain.PaymentTypePayPal, Name: "PayPal", Description: "Pay with your PayPal account"},
	}
)

// CheckoutStoreDeps wires the cart, backend, archive and pricing rules into a
// checkout store. Cart is required; everything else defaults or degrades.
type CheckoutStoreDeps struct {
	Cart        *CartStore
	Backend     CheckoutBackend
	Archive     OrderArchive
	Pricing     domain.PricingConfig
	Clock       func() time.Time
	Logger      EventLogger
	IDGenerator func() string
}

// CheckoutState is a point-in-time snapshot of the wizard-visible checkout
// state, safe to hand to handlers without holding the store's lock.
type CheckoutState struct {
	Step                     domain.CheckoutStep
	ShippingAddress          *domain.Address
	BillingAddress           *domain.Address
	UseSameAddressForBilling bool
	ShippingOptions          []domain.ShippingOption
	SelectedShippingOption   *domain.ShippingOption
	PaymentMethods           []domain.PaymentMethod
	SelectedPaymentMethod    *domain.PaymentMethod
	CardDetails              domain.CardDetails
	PaymentIntentID          string
	OrderID                  string
	Summary                  domain.OrderSummary
	FieldErrors              map[string]string
	Loading                  bool
}

// CheckoutStore drives the checkout flow for the active session: addresses,
// shipping selection, payment selection and the final order submission. It
// subscribes to the cart so its totals track the live subtotal.
type CheckoutStore struct {
	mu sync.Mutex

	step        domain.CheckoutStep
	shippingTo  *domain.Address
	billingTo   *domain.Address
	sameAddress bool

	shippingOptions []domain.ShippingOption
	selectedOption  *domain.ShippingOption
	shippingCost    int64

	paymentMethods []domain.PaymentMethod
	selectedMethod *domain.PaymentMethod
	cardDetails    domain.CardDetails
	paymentIntent  string

	subtotal    int64
	summary     domain.OrderSummary
	orderID     string
	fieldErrors map[string]string
	loading     bool
	lastErr     error

	cart    *CartStore
	backend CheckoutBackend
	archive OrderArchive
	pricing domain.PricingConfig
	now     func() time.Time
	newID   func() string
	logger  EventLogger
}

// NewCheckoutStore constructs a checkout store in the shipping step and hooks
// it into the cart's change notifications.
func NewCheckoutStore(deps CheckoutStoreDeps) (*CheckoutStore, error) {
	if deps.Cart == nil {
		return nil, fmt.Errorf("%w: cart store is required", ErrCheckoutInvalidInput)
	}
	pricing := deps.Pricing
	if pricing == (domain.PricingConfig{}) {
		pricing = domain.DefaultPricing()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopEventLogger
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	s := &CheckoutStore{
		step:        domain.StepShipping,
		sameAddress: true,
		fieldErrors: map[string]string{},
		cart:        deps.Cart,
		backend:     deps.Backend,
		archive:     deps.Archive,
		pricing:     pricing,
		now:         func() time.Time { return clock().UTC() },
		newID:       idGen,
		logger:      logger,
	}
	s.subtotal = deps.Cart.Summary().Subtotal
	s.recalculateLocked()
	deps.Cart.Subscribe(s.onCartChange)
	return s, nil
}

func (s *CheckoutStore) onCartChange(summary domain.CartSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subtotal = summary.Subtotal
	s.recalculateLocked()
}

// recalculateLocked rebuilds the order summary from the current subtotal and
// shipping selection. Callers must hold the lock.
func (s *CheckoutStore) recalculateLocked() {
	tax := domain.Tax(s.subtotal, s.pricing.TaxRateBps)
	s.summary = domain.OrderSummary{
		Subtotal: s.subtotal,
		Shipping: s.shippingCost,
		Tax:      tax,
		Total:    s.subtotal + s.shippingCost + tax,
	}
}

// State returns a deep snapshot of the checkout-visible state.
func (s *CheckoutStore) State() CheckoutState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := CheckoutState{
		Step:                     s.step,
		ShippingAddress:          domain.CloneAddress(s.shippingTo),
		BillingAddress:           domain.CloneAddress(s.billingTo),
		UseSameAddressForBilling: s.sameAddress,
		CardDetails:              s.cardDetails,
		PaymentIntentID:          s.paymentIntent,
		OrderID:                  s.orderID,
		Summary:                  s.summary,
		FieldErrors:              map[string]string{},
		Loading:                  s.loading,
	}
	for k, v := range s.fieldErrors {
		state.FieldErrors[k] = v
	}
	state.ShippingOptions = append([]domain.ShippingOption{}, s.shippingOptions...)
	state.PaymentMethods = append([]domain.PaymentMethod{}, s.paymentMethods...)
	if s.selectedOption != nil {
		opt := *s.selectedOption
		state.SelectedShippingOption = &opt
	}
	if s.selectedMethod != nil {
		method := *s.selectedMethod
		state.SelectedPaymentMethod = &method
	}
	return state
}

// Step returns the current wizard step.
func (s *CheckoutStore) Step() domain.CheckoutStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Summary returns the current order totals.
func (s *CheckoutStore) Summary() domain.OrderSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Loading reports whether a remote checkout call is in flight.
func (s *CheckoutStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last recorded checkout error, nil when the last operation
// succeeded.
func (s *CheckoutStore) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// FieldErrors returns a copy of the current field->message validation map.
func (s *CheckoutStore) FieldErrors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	for k, v := range s.fieldErrors {
		out[k] = v
	}
	return out
}

// SetShippingAddress validates and stores the shipping address. The address is
// stored even when invalid so the form round-trips; the returned map carries
// the per-field messages and is empty when the section is valid. When billing
// mirrors shipping, the billing address is updated in the same critical
// section.
func (s *CheckoutStore) SetShippingAddress(addr domain.Address) map[string]string {
	errs := validation.ValidateShippingAddress(validation.ShippingAddressInput{
		FirstName:  addr.FirstName,
		LastName:   addr.LastName,
		Address1:   addr.Address1,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      addr.Phone,
		Email:      addr.Email,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.shippingTo = domain.CloneAddress(&addr)
	if s.sameAddress {
		s.billingTo = domain.CloneAddress(&addr)
	}
	s.replaceAddressErrorsLocked(errs)
	return errs
}

// SetBillingAddress stores a distinct billing address and turns off the
// mirror flag.
func (s *CheckoutStore) SetBillingAddress(addr domain.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sameAddress = false
	s.billingTo = domain.CloneAddress(&addr)
}

// SetSameAddressForBilling toggles billing mirroring. Enabling it copies the
// current shipping address immediately.
func (s *CheckoutStore) SetSameAddressForBilling(same bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sameAddress = same
	if same {
		s.billingTo = domain.CloneAddress(s.shippingTo)
	}
}

// FetchShippingOptions returns the available shipping services. Options are
// fetched once and cached; a failed fetch serves the hardcoded fallback list
// and records the error.
func (s *CheckoutStore) FetchShippingOptions(ctx context.Context) []domain.ShippingOption {
	s.mu.Lock()
	if len(s.shippingOptions) > 0 {
		cached := append([]domain.ShippingOption{}, s.shippingOptions...)
		s.mu.Unlock()
		return cached
	}
	s.loading = true
	s.mu.Unlock()

	var options []domain.ShippingOption
	var err error
	if s.backend != nil {
		options, err = s.backend.ShippingOptions(ctx)
	}
	if err != nil || len(options) == 0 {
		options = fallbackShippingOptions
	}

	s.mu.Lock()
	s.loading = false
	s.shippingOptions = append([]domain.ShippingOption{}, options...)
	s.lastErr = err
	result := append([]domain.ShippingOption{}, s.shippingOptions...)
	s.mu.Unlock()

	if err != nil {
		s.logger(ctx, "checkout.shipping_options_fallback", map[string]any{"error": err.Error()})
	}
	return result
}

// SelectShippingOption applies a shipping choice and asks the backend for the
// address-aware cost. The selection is applied even when the remote
// calculation fails; the option's list price is used instead.
func (s *CheckoutStore) SelectShippingOption(ctx context.Context, optionID string) error {
	optionID = strings.TrimSpace(optionID)
	if optionID == "" {
		return fmt.Errorf("%w: shipping option id is required", ErrCheckoutInvalidInput)
	}

	options := s.FetchShippingOptions(ctx)
	var selected *domain.ShippingOption
	for i := range options {
		if options[i].ID == optionID {
			selected = &options[i]
			break
		}
	}
	if selected == nil {
		return fmt.Errorf("%w: unknown shipping option %s", ErrCheckoutInvalidInput, optionID)
	}

	s.mu.Lock()
	addr := domain.CloneAddress(s.shippingTo)
	s.loading = true
	s.mu.Unlock()

	cost := selected.Price
	var calcErr error
	if s.backend != nil && addr != nil {
		if remote, err := s.backend.CalculateShipping(ctx, *addr, s.cart.Items(), selected.ID); err != nil {
			calcErr = err
		} else {
			cost = remote
		}
	}

	s.mu.Lock()
	s.loading = false
	opt := *selected
	s.selectedOption = &opt
	s.shippingCost = cost
	s.lastErr = calcErr
	s.recalculateLocked()
	s.mu.Unlock()

	if calcErr != nil {
		s.logger(ctx, "checkout.shipping_calc_fallback", map[string]any{
			"option": selected.ID,
			"error":  calcErr.Error(),
		})
	}
	return nil
}

// FetchPaymentMethods returns the available payment methods, serving the
// hardcoded fallback list when the backend call fails.
func (s *CheckoutStore) FetchPaymentMethods(ctx context.Context) []domain.PaymentMethod {
	s.mu.Lock()
	if len(s.paymentMethods) > 0 {
		cached := append([]domain.PaymentMethod{}, s.paymentMethods...)
		s.mu.Unlock()
		return cached
	}
	s.loading = true
	s.mu.Unlock()

	var methods []domain.PaymentMethod
	var err error
	if s.backend != nil {
		methods, err = s.backend.PaymentMethods(ctx)
	}
	if err != nil || len(methods) == 0 {
		methods = fallbackPaymentMethods
	}

	s.mu.Lock()
	s.loading = false
	s.paymentMethods = append([]domain.PaymentMethod{}, methods...)
	s.lastErr = err
	result := append([]domain.PaymentMethod{}, s.paymentMethods...)
	s.mu.Unlock()

	if err != nil {
		s.logger(ctx, "checkout.payment_methods_fallback", map[string]any{"error": err.Error()})
	}
	return result
}

// SelectPaymentMethod records the shopper's payment choice. Switching away
// from the card method clears the card field errors so stale messages do not
// outlive the form.
func (s *CheckoutStore) SelectPaymentMethod(ctx context.Context, methodID string) error {
	methodID = strings.TrimSpace(methodID)
	if methodID == "" {
		return fmt.Errorf("%w: payment method id is required", ErrCheckoutInvalidInput)
	}

	methods := s.FetchPaymentMethods(ctx)
	var selected *domain.PaymentMethod
	for i := range methods {
		if methods[i].ID == methodID {
			selected = &methods[i]
			break
		}
	}
	if selected == nil {
		return fmt.Errorf("%w: unknown payment method %s", ErrCheckoutInvalidInput, methodID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	method := *selected
	s.selectedMethod = &method
	if method.Type != domain.PaymentTypeCreditCard {
		s.clearCardErrorsLocked()
	}
	return nil
}

// SetCardDetails validates and stores the credit card form values. Like the
// address setter, values are stored even when invalid.
func (s *CheckoutStore) SetCardDetails(card domain.CardDetails) map[string]string {
	errs := validation.ValidateCard(validation.CardInput{
		CardNumber: card.CardNumber,
		CardHolder: card.CardHolder,
		ExpiryDate: card.ExpiryDate,
		CVV:        card.CVV,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cardDetails = card
	s.replaceCardErrorsLocked(errs)
	return errs
}

// CreatePaymentIntent asks the backend to open a payment intent for the
// current order total in USD and caches the intent id.
func (s *CheckoutStore) CreatePaymentIntent(ctx context.Context) (string, error) {
	if s.backend == nil {
		return "", fmt.Errorf("%w: no payment backend configured", ErrCheckoutInvalidInput)
	}

	s.mu.Lock()
	amount := s.summary.Total
	s.loading = true
	s.mu.Unlock()

	intentID, err := s.backend.CreatePaymentIntent(ctx, amount, "usd")

	s.mu.Lock()
	s.loading = false
	if err == nil {
		s.paymentIntent = intentID
	}
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger(ctx, "checkout.payment_intent_failed", map[string]any{"error": err.Error()})
		return "", fmt.Errorf("checkout store: create payment intent: %w", err)
	}
	return intentID, nil
}

// PlaceOrder snapshots the cart and checkout state into an order and submits
// it. On success the order is archived, the step advances to confirmation and
// the cart is cleared. On failure the step and cart are left untouched so the
// shopper can retry from the review screen. When the backend reports success
// without an order id, a locally generated one is substituted.
func (s *CheckoutStore) PlaceOrder(ctx context.Context) (domain.Order, error) {
	items := s.cart.Items()

	s.mu.Lock()
	if len(items) == 0 {
		s.lastErr = ErrEmptyCart
		s.mu.Unlock()
		return domain.Order{}, ErrEmptyCart
	}
	if s.shippingTo == nil {
		s.lastErr = ErrShippingAddressRequired
		s.mu.Unlock()
		return domain.Order{}, ErrShippingAddressRequired
	}
	if s.selectedMethod == nil && strings.TrimSpace(s.paymentIntent) == "" {
		s.lastErr = ErrPaymentMethodRequired
		s.mu.Unlock()
		return domain.Order{}, ErrPaymentMethodRequired
	}

	order := domain.Order{
		Items:           domain.CloneItems(items),
		ShippingAddress: *s.shippingTo,
		Subtotal:        s.summary.Subtotal,
		Tax:             s.summary.Tax,
		Shipping:        s.summary.Shipping,
		Total:           s.summary.Total,
		Status:          "confirmed",
		CreatedAt:       s.now(),
		Email:           s.shippingTo.Email,
	}
	if s.billingTo != nil {
		order.BillingAddress = *s.billingTo
	} else {
		order.BillingAddress = *s.shippingTo
	}
	if s.selectedOption != nil {
		order.ShippingMethod = *s.selectedOption
	}
	if s.selectedMethod != nil {
		order.PaymentMethod = s.selectedMethod.ID
	}
	s.loading = true
	s.mu.Unlock()

	var remoteID string
	var err error
	if s.backend != nil {
		remoteID, err = s.backend.CreateOrder(ctx, order)
	}

	if err != nil {
		s.mu.Lock()
		s.loading = false
		s.lastErr = fmt.Errorf("%w: %v", ErrOrderFailed, err)
		failure := s.lastErr
		s.mu.Unlock()

		s.logger(ctx, "checkout.order_failed", map[string]any{"error": err.Error()})
		return domain.Order{}, failure
	}

	order.ID = strings.TrimSpace(remoteID)
	if order.ID == "" {
		order.ID = "ORD-" + s.newID()
	}

	s.mu.Lock()
	s.loading = false
	s.orderID = order.ID
	s.step = domain.StepConfirmation
	s.lastErr = nil
	s.mu.Unlock()

	if s.archive != nil {
		s.archive.Save(order)
	}
	s.cart.Clear(ctx)

	s.logger(ctx, "checkout.order_placed", map[string]any{
		"order_id": order.ID,
		"total":    order.Total,
	})
	return order, nil
}

// Reset clears every checkout field back to the initial shipping step. The
// cart is untouched.
func (s *CheckoutStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = domain.StepShipping
	s.shippingTo = nil
	s.billingTo = nil
	s.sameAddress = true
	s.shippingOptions = nil
	s.selectedOption = nil
	s.shippingCost = 0
	s.paymentMethods = nil
	s.selectedMethod = nil
	s.cardDetails = domain.CardDetails{}
	s.paymentIntent = ""
	s.orderID = ""
	s.fieldErrors = map[string]string{}
	s.lastErr = nil
	s.recalculateLocked()
}

// setStep is the wizard's hook for moving between steps. Guard evaluation
// lives in the wizard; the store only refuses unknown steps.
func (s *CheckoutStore) setStep(step domain.CheckoutStep) error {
	if !step.Valid() {
		return fmt.Errorf("%w: unknown step %q", ErrCheckoutInvalidInput, step)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = step
	return nil
}

var addressFieldKeys = []string{
	validation.FieldFirstName, validation.FieldLastName, validation.FieldAddress1,
	validation.FieldCity, validation.FieldState, validation.FieldPostalCode,
	validation.FieldCountry, validation.FieldPhone, validation.FieldEmail,
}

var cardFieldKeys = []string{
	validation.FieldCardNumber, validation.FieldCardHolder,
	validation.FieldExpiryDate, validation.FieldCVV,
}

func (s *CheckoutStore) replaceAddressErrorsLocked(errs map[string]string) {
	for _, key := range addressFieldKeys {
		delete(s.fieldErrors, key)
	}
	for k, v := range errs {
		s.fieldErrors[k] = v
	}
}

func (s *CheckoutStore) replaceCardErrorsLocked(errs map[string]string) {
	s.clearCardErrorsLocked()
	for k, v := range errs {
		s.fieldErrors[k] = v
	}
}

func (s *CheckoutStore) clearCardErrorsLocked() {
	for _, key := range cardFieldKeys {
		delete(s.fieldErrors, key)
	}
}
