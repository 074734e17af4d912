// Package services owns the in-memory state containers behind the storefront
// session: the cart store, the checkout store, the wizard controller that
// sequences the checkout steps, and the order archive backing the
// confirmation screen. Stores are dependency-injected, never ambient; the
// whole package assumes one active shopper session.
package services

import (
	"context"

	"github.com/quickshop/storefront/internal/domain"
)

// Product is the add-to-cart input: the catalog data needed to build a line
// item.
type Product struct {
	ID    string
	Name  string
	Price int64
	Image string
}

// CartBackend mirrors local cart mutations onto the remote API. Every method
// is best-effort: stores apply the local change first and degrade to an error
// flag when the sync fails.
type CartBackend interface {
	FetchCart(ctx context.Context) ([]domain.CartItem, error)
	SyncAddItem(ctx context.Context, item domain.CartItem) error
	SyncUpdateItem(ctx context.Context, itemID string, quantity int) error
	SyncRemoveItem(ctx context.Context, itemID string) error
	SyncClearCart(ctx context.Context) error
}

// CheckoutBackend is the capability shape the checkout store needs from the
// remote API. Reads carry documented fallbacks; CreateOrder failures are
// retryable and never clear the cart.
type CheckoutBackend interface {
	ShippingOptions(ctx context.Context) ([]domain.ShippingOption, error)
	CalculateShipping(ctx context.Context, addr domain.Address, items []domain.CartItem, optionID string) (int64, error)
	PaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error)
	CreatePaymentIntent(ctx context.Context, amount int64, currency string) (string, error)
	CreateOrder(ctx context.Context, order domain.Order) (string, error)
}

// OrderArchive persists per-order snapshots keyed by order id so the
// confirmation screen can render without a round trip.
type OrderArchive interface {
	Save(order domain.Order)
	Get(orderID string) (domain.Order, bool)
}

// EventLogger is the structured event hook injected into stores.
type EventLogger func(ctx context.Context, event string, fields map[string]any)

func noopEventLogger(context.Context, string, map[string]any) {}
