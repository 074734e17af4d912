package services

import (
	"sync"

	"github.com/quickshop/storefront/internal/domain"
)

// MemoryOrderArchive keeps per-order snapshots in process memory, keyed by
// order id, so the confirmation screen renders without a backend round trip.
type MemoryOrderArchive struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

// NewMemoryOrderArchive returns an empty archive.
func NewMemoryOrderArchive() *MemoryOrderArchive {
	return &MemoryOrderArchive{orders: map[string]domain.Order{}}
}

// Save stores a snapshot of the order. Saving twice with the same id
// overwrites, matching the write-once intent of placed orders.
func (a *MemoryOrderArchive) Save(order domain.Order) {
	if order.ID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	order.Items = domain.CloneItems(order.Items)
	a.orders[order.ID] = order
}

// Get returns the archived order and whether it exists. The returned order's
// items are a copy; callers may mutate freely.
func (a *MemoryOrderArchive) Get(orderID string) (domain.Order, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	order, ok := a.orders[orderID]
	if !ok {
		return domain.Order{}, false
	}
	order.Items = domain.CloneItems(order.Items)
	return order, true
}

// List returns every archived order. Ordering is unspecified.
func (a *MemoryOrderArchive) List() []domain.Order {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]domain.Order, 0, len(a.orders))
	for _, order := range a.orders {
		order.Items = domain.CloneItems(order.Items)
		out = append(out, order)
	}
	return out
}
