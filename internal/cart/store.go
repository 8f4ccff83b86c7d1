// Package cart holds the client-side shopping cart. The cart is an ordered list
// of line items, mirrored into durable storage after every mutation and
// rehydrated from it at startup.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kvstore"
	"github.com/shopspring/decimal"
)

// StorageKey is the key the cart owns in durable storage.
const StorageKey = "cart"

// Listener receives the committed line items after each mutation.
type Listener func(items []domain.LineItem)

type Store struct {
	mu      sync.RWMutex
	items   []domain.LineItem
	storage kvstore.Store

	// raw is the snapshot last persisted or loaded.
	raw string

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// NewStore rehydrates the cart from storage. A missing or undecodable snapshot
// yields an empty cart.
func NewStore(ctx context.Context, storage kvstore.Store) *Store {
	s := &Store{
		storage:   storage,
		listeners: make(map[int]Listener),
	}
	if err := s.Reload(ctx); err != nil {
		log.Printf("cart rehydrate error: %v \n", err)
	}
	return s
}

// Reload replaces in-memory state with the stored snapshot and notifies
// listeners. A snapshot identical to the one this store last wrote or read is
// skipped. On a storage error the current state is kept and the error
// returned. The lock is held across the read so a concurrent commit cannot be
// overwritten by an older snapshot.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	raw, err := s.storage.Get(ctx, StorageKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		raw, err = "", nil
	}
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("load cart: %w", err)
	}
	if raw == s.raw {
		s.mu.Unlock()
		return nil
	}

	var items []domain.LineItem
	if raw != "" {
		items, err = decodeSnapshot(raw)
		if err != nil {
			log.Printf("discarding stored cart: %v \n", err)
			items = nil
		}
	}
	s.items = items
	s.raw = raw
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

// Add increments the quantity of an existing line or appends a new one with
// quantity 1, snapshotting the product's name, price and image.
func (s *Store) Add(ctx context.Context, p domain.Product) error {
	return s.commit(ctx, func(items []domain.LineItem) ([]domain.LineItem, bool) {
		if i := indexOf(items, p.ID); i >= 0 {
			items[i].Quantity++
			return items, true
		}
		return append(items, domain.NewLineItem(p)), true
	})
}

// Remove deletes the line for productID. Absent ids are a no-op.
func (s *Store) Remove(ctx context.Context, productID domain.ProductID) error {
	return s.commit(ctx, func(items []domain.LineItem) ([]domain.LineItem, bool) {
		return removeAt(items, indexOf(items, productID))
	})
}

// SetQuantity replaces the quantity of a line. quantity <= 0 removes it.
func (s *Store) SetQuantity(ctx context.Context, productID domain.ProductID, quantity int) error {
	return s.commit(ctx, func(items []domain.LineItem) ([]domain.LineItem, bool) {
		i := indexOf(items, productID)
		if quantity <= 0 {
			return removeAt(items, i)
		}
		if i < 0 || items[i].Quantity == quantity {
			return items, false
		}
		items[i].Quantity = quantity
		return items, true
	})
}

// SetQuantityText applies a quantity typed by the user. Input that is not a
// whole number (including NaN and infinities) leaves the cart untouched.
func (s *Store) SetQuantityText(ctx context.Context, productID domain.ProductID, raw string) error {
	q, ok := parseQuantity(raw)
	if !ok {
		return nil
	}
	return s.SetQuantity(ctx, productID, q)
}

func (s *Store) Clear(ctx context.Context) error {
	return s.commit(ctx, func([]domain.LineItem) ([]domain.LineItem, bool) {
		return nil, true
	})
}

// LineItems returns a copy of the cart in insertion order.
func (s *Store) LineItems() []domain.LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Total is recomputed from the line items on every call.
func (s *Store) Total() decimal.Decimal {
	return domain.Total(s.LineItems())
}

// Count is the number of units across all lines.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, item := range s.items {
		n += item.Quantity
	}
	return n
}

// Subscribe registers l to run after every committed mutation. The returned
// function removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		delete(s.listeners, id)
	}
}

// commit applies mutate under the lock and, if it changed anything, persists
// the full snapshot before notifying listeners. A failed write leaves the
// in-memory state applied.
func (s *Store) commit(ctx context.Context, mutate func([]domain.LineItem) ([]domain.LineItem, bool)) error {
	s.mu.Lock()
	items, changed := mutate(s.items)
	if !changed {
		s.mu.Unlock()
		return nil
	}
	s.items = items
	snapshot := s.snapshotLocked()
	err := s.persist(ctx, snapshot)
	s.mu.Unlock()

	if err != nil {
		log.Printf("cart persist error: %v \n", err)
	}
	s.notify(snapshot)
	return err
}

// persist runs with s.mu held.
func (s *Store) persist(ctx context.Context, items []domain.LineItem) error {
	raw, err := encodeSnapshot(items)
	if err != nil {
		return err
	}
	if err := s.storage.Set(ctx, StorageKey, raw); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	s.raw = raw
	return nil
}

func (s *Store) notify(items []domain.LineItem) {
	s.lmu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.lmu.Unlock()

	for _, l := range listeners {
		l(clone(items))
	}
}

func (s *Store) snapshotLocked() []domain.LineItem {
	return clone(s.items)
}

func clone(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	copy(out, items)
	return out
}

func indexOf(items []domain.LineItem, id domain.ProductID) int {
	for i := range items {
		if items[i].ProductID == id {
			return i
		}
	}
	return -1
}

func removeAt(items []domain.LineItem, i int) ([]domain.LineItem, bool) {
	if i < 0 {
		return items, false
	}
	return append(items[:i], items[i+1:]...), true
}

func parseQuantity(raw string) (int, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}
