package domain

import (
	"time"
)

// CartItem is one line item in the shopper's cart. Monetary amounts across the
// domain are integer cents.
type CartItem struct {
	ID        string
	ProductID string
	Name      string
	UnitPrice int64
	Quantity  int
	Image     string
}

// CartSummary holds the totals derived from the full item list. It is never
// stored independently; every cart mutation recomputes it.
type CartSummary struct {
	Subtotal int64
	Tax      int64
	Shipping int64
	Total    int64
}

// Address is used for both shipping and billing. Address2 and Phone are the
// only fields a complete address may leave empty.
type Address struct {
	FirstName  string
	LastName   string
	Address1   string
	Address2   string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
	Email      string
}

// ShippingOption is one deliverable service level offered at checkout.
type ShippingOption struct {
	ID                string
	Name              string
	Description       string
	Price             int64
	EstimatedDelivery string
}

// PaymentMethodType enumerates the supported payment instruments.
type PaymentMethodType string

const (
	// PaymentTypeCreditCard requires companion CardDetails before review.
	PaymentTypeCreditCard PaymentMethodType = "credit_card"
	// PaymentTypePayPal defers collection to the provider.
	PaymentTypePayPal PaymentMethodType = "paypal"
)

// PaymentMethod describes a way to pay, as advertised by the backend or the
// hardcoded fallback list.
type PaymentMethod struct {
	ID          string
	Type        PaymentMethodType
	Name        string
	Description string
}

// CardDetails carries the raw credit card form fields. CardNumber may contain
// display spacing; validators strip it.
type CardDetails struct {
	CardNumber string
	CardHolder string
	ExpiryDate string
	CVV        string
}

// CheckoutStep names one state of the linear checkout wizard.
type CheckoutStep string

const (
	StepShipping     CheckoutStep = "shipping"
	StepPayment      CheckoutStep = "payment"
	StepReview       CheckoutStep = "review"
	StepConfirmation CheckoutStep = "confirmation"
)

// Ordinal returns the position of the step in the wizard sequence, or -1 for
// an unknown step.
func (s CheckoutStep) Ordinal() int {
	switch s {
	case StepShipping:
		return 0
	case StepPayment:
		return 1
	case StepReview:
		return 2
	case StepConfirmation:
		return 3
	}
	return -1
}

// Valid reports whether the step is one of the four wizard states.
func (s CheckoutStep) Valid() bool { return s.Ordinal() >= 0 }

// OrderSummary mirrors CartSummary but with shipping driven by the selected
// shipping option rather than the flat-fee rule.
type OrderSummary struct {
	Subtotal int64
	Shipping int64
	Tax      int64
	Total    int64
}

// Order is the write-once snapshot emitted when an order is placed.
type Order struct {
	ID              string
	Items           []CartItem
	ShippingAddress Address
	BillingAddress  Address
	ShippingMethod  ShippingOption
	PaymentMethod   string
	Subtotal        int64
	Tax             int64
	Shipping        int64
	Total           int64
	Status          string
	CreatedAt       time.Time
	Email           string
}

// CloneItems returns a defensive copy of a line item slice.
func CloneItems(items []CartItem) []CartItem {
	if len(items) == 0 {
		return []CartItem{}
	}
	dup := make([]CartItem, len(items))
	copy(dup, items)
	return dup
}

// CloneAddress returns a copy of the address behind a fresh pointer.
func CloneAddress(addr *Address) *Address {
	if addr == nil {
		return nil
	}
	dup := *addr
	return &dup
}
