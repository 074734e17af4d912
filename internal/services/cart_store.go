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
)

var (
	// ErrCartInvalidInput indicates the caller supplied invalid input.
	ErrCartInvalidInput = errors.New("cart store: invalid input")
	// ErrCartSyncFailed is the error flag raised when a best-effort remote
	// sync fails. The local mutation is applied regardless.
	ErrCartSyncFailed = errors.New("cart store: remote sync failed")
)

// CartStoreDeps wires the optional backend and pricing rules for the cart.
type CartStoreDeps struct {
	Backend     CartBackend
	Pricing     domain.PricingConfig
	Clock       func() time.Time
	Logger      EventLogger
	IDGenerator func() string
}

// CartStore owns the session's line items and the summary derived from them.
// Items and summary mutate atomically under one lock, so readers never
// observe them out of sync.
type CartStore struct {
	mu      sync.Mutex
	items   []domain.CartItem
	summary domain.CartSummary
	loading bool
	syncErr error

	subscribers []func(domain.CartSummary)

	backend CartBackend
	pricing domain.PricingConfig
	now     func() time.Time
	newID   func() string
	logger  EventLogger
}

// NewCartStore constructs an empty cart store, defaulting the clock, logger,
// pricing rules and ID generator when unset.
func NewCartStore(deps CartStoreDeps) *CartStore {
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

	return &CartStore{
		items:   []domain.CartItem{},
		summary: domain.Summarize(nil, pricing),
		backend: deps.Backend,
		pricing: pricing,
		now:     func() time.Time { return clock().UTC() },
		newID:   idGen,
		logger:  logger,
	}
}

// Subscribe registers a hook invoked synchronously after every mutation with
// the freshly derived summary. Used by the checkout store to keep its tax and
// totals in step with the cart subtotal.
func (s *CartStore) Subscribe(fn func(domain.CartSummary)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Items returns a copy of the current line items.
func (s *CartStore) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneItems(s.items)
}

// Summary returns the totals derived from the current item list.
func (s *CartStore) Summary() domain.CartSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Loading reports whether a remote cart call is in flight.
func (s *CartStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// SyncErr returns the current remote-sync error flag, nil when the last sync
// succeeded or no backend is configured.
func (s *CartStore) SyncErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncErr
}

// Load fetches the persisted cart from the backend, replacing local state.
// On failure the store initialises an empty cart and raises the sync flag so
// the shopper can keep going.
func (s *CartStore) Load(ctx context.Context) {
	if s.backend == nil {
		return
	}

	s.setLoading(true)
	items, err := s.backend.FetchCart(ctx)
	s.setLoading(false)

	s.mu.Lock()
	if err != nil {
		s.items = []domain.CartItem{}
		s.syncErr = fmt.Errorf("%w: load: %v", ErrCartSyncFailed, err)
	} else {
		for i := range items {
			if strings.TrimSpace(items[i].ID) == "" {
				items[i].ID = s.newID()
			}
		}
		s.items = domain.CloneItems(items)
		s.syncErr = nil
	}
	s.summary = domain.Summarize(s.items, s.pricing)
	summary := s.summary
	subs := append([]func(domain.CartSummary){}, s.subscribers...)
	s.mu.Unlock()

	if err != nil {
		s.logger(ctx, "cart.load_failed", map[string]any{"error": err.Error()})
	}
	notify(subs, summary)
}

// AddItem appends a new line item, or merges into an existing line when the
// product is already in the cart. The local mutation always lands; a failed
// remote sync only raises the error flag.
func (s *CartStore) AddItem(ctx context.Context, product Product, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be greater than zero", ErrCartInvalidInput)
	}
	if strings.TrimSpace(product.ID) == "" {
		return fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if product.Price < 0 {
		return fmt.Errorf("%w: price must be non-negative", ErrCartInvalidInput)
	}

	s.mu.Lock()
	var target domain.CartItem
	merged := false
	for i := range s.items {
		if s.items[i].ProductID == product.ID {
			s.items[i].Quantity += quantity
			target = s.items[i]
			merged = true
			break
		}
	}
	if !merged {
		target = domain.CartItem{
			ID:        s.newID(),
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  quantity,
			Image:     product.Image,
		}
		s.items = append(s.items, target)
	}
	s.summary = domain.Summarize(s.items, s.pricing)
	summary := s.summary
	subs := append([]func(domain.CartSummary){}, s.subscribers...)
	s.mu.Unlock()

	notify(subs, summary)
	s.sync(ctx, "cart.add_sync_failed", func(ctx context.Context, b CartBackend) error {
		return b.SyncAddItem(ctx, target)
	})
	return nil
}

// UpdateQuantity replaces an item's quantity. A non-positive quantity is
// explicitly rejected and leaves the item list untouched.
func (s *CartStore) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be greater than zero", ErrCartInvalidInput)
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return fmt.Errorf("%w: item id is required", ErrCartInvalidInput)
	}

	s.mu.Lock()
	found := false
	for i := range s.items {
		if s.items[i].ID == itemID {
			s.items[i].Quantity = quantity
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return fmt.Errorf("%w: item %s not in cart", ErrCartInvalidInput, itemID)
	}
	s.summary = domain.Summarize(s.items, s.pricing)
	summary := s.summary
	subs := append([]func(domain.CartSummary){}, s.subscribers...)
	s.mu.Unlock()

	notify(subs, summary)
	s.sync(ctx, "cart.update_sync_failed", func(ctx context.Context, b CartBackend) error {
		return b.SyncUpdateItem(ctx, itemID, quantity)
	})
	return nil
}

// RemoveItem filters the item out of the cart. A missing item is a no-op,
// not an error.
func (s *CartStore) RemoveItem(ctx context.Context, itemID string) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return
	}

	s.mu.Lock()
	found := false
	filtered := s.items[:0]
	for _, item := range s.items {
		if item.ID == itemID {
			found = true
			continue
		}
		filtered = append(filtered, item)
	}
	s.items = filtered
	if !found {
		s.mu.Unlock()
		return
	}
	s.summary = domain.Summarize(s.items, s.pricing)
	summary := s.summary
	subs := append([]func(domain.CartSummary){}, s.subscribers...)
	s.mu.Unlock()

	notify(subs, summary)
	s.sync(ctx, "cart.remove_sync_failed", func(ctx context.Context, b CartBackend) error {
		return b.SyncRemoveItem(ctx, itemID)
	})
}

// Clear empties the cart and resets the summary to its zero state.
func (s *CartStore) Clear(ctx context.Context) {
	s.mu.Lock()
	s.items = []domain.CartItem{}
	s.summary = domain.Summarize(nil, s.pricing)
	summary := s.summary
	subs := append([]func(domain.CartSummary){}, s.subscribers...)
	s.mu.Unlock()

	notify(subs, summary)
	s.sync(ctx, "cart.clear_sync_failed", func(ctx context.Context, b CartBackend) error {
		return b.SyncClearCart(ctx)
	})
}

func (s *CartStore) sync(ctx context.Context, event string, call func(context.Context, CartBackend) error) {
	if s.backend == nil {
		return
	}

	s.setLoading(true)
	err := call(ctx, s.backend)
	s.setLoading(false)

	s.mu.Lock()
	if err != nil {
		s.syncErr = fmt.Errorf("%w: %v", ErrCartSyncFailed, err)
	} else {
		s.syncErr = nil
	}
	s.mu.Unlock()

	if err != nil {
		s.logger(ctx, event, map[string]any{"error": err.Error()})
	}
}

func (s *CartStore) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func notify(subs []func(domain.CartSummary), summary domain.CartSummary) {
	for _, fn := range subs {
		fn(summary)
	}
}
