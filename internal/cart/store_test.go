package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kvstore"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStorage struct {
	m      sync.RWMutex
	values map[string]string
	getErr error
	setErr error
	sets   int
}

func newMockStorage() *mockStorage {
	return &mockStorage{values: make(map[string]string)}
}

func (m *mockStorage) Get(_ context.Context, key string) (string, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", kvstore.ErrNotFound
	}
	return v, nil
}

func (m *mockStorage) Set(_ context.Context, key, value string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *mockStorage) Remove(_ context.Context, key string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.values, key)
	return nil
}

func (m *mockStorage) Close() error { return nil }

// blockingGetStorage reads the stored value, then parks the first armed Get
// until release is closed.
type blockingGetStorage struct {
	*mockStorage
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (b *blockingGetStorage) Get(ctx context.Context, key string) (string, error) {
	v, err := b.mockStorage.Get(ctx, key)
	if b.armed.CompareAndSwap(true, false) {
		close(b.entered)
		<-b.release
	}
	return v, err
}

var decimalComparer = cmp.Comparer(func(x, y decimal.Decimal) bool { return x.Equal(y) })

func product(id string, price int64) domain.Product {
	return domain.Product{ID: domain.ProductID(id), Name: "product " + id, Price: decimal.NewFromInt(price)}
}

func randomProduct() domain.Product {
	return domain.Product{
		ID:       domain.ProductID(gofakeit.UUID()),
		Name:     gofakeit.ProductName(),
		Price:    decimal.NewFromFloat(gofakeit.Price(1, 100)).Round(2),
		ImageURL: gofakeit.URL(),
	}
}

func quantities(items []domain.LineItem) map[domain.ProductID]int {
	out := make(map[domain.ProductID]int, len(items))
	for _, item := range items {
		out[item.ProductID] = item.Quantity
	}
	return out
}

func TestStore_AddScenario(t *testing.T) {
	ctx := context.Background()
	s := NewStore(ctx, kvstore.NewMemoryStore())

	require.NoError(t, s.Add(ctx, product("1", 10)))
	require.NoError(t, s.Add(ctx, product("1", 10)))
	require.NoError(t, s.Add(ctx, product("2", 5)))

	items := s.LineItems()
	require.Len(t, items, 2)
	assert.Equal(t, domain.ProductID("1"), items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, domain.ProductID("2"), items[1].ProductID)
	assert.Equal(t, 1, items[1].Quantity)
	assert.True(t, decimal.NewFromInt(25).Equal(s.Total()))
	assert.Equal(t, 3, s.Count())
}

func TestStore_AddSameProductMerges(t *testing.T) {
	ctx := context.Background()

	for _, n := range []int{1, 2, 7, 50} {
		t.Run(fmt.Sprintf("%d adds", n), func(t *testing.T) {
			s := NewStore(ctx, kvstore.NewMemoryStore())
			p := randomProduct()
			for i := 0; i < n; i++ {
				require.NoError(t, s.Add(ctx, p))
			}

			items := s.LineItems()
			require.Len(t, items, 1)
			assert.Equal(t, n, items[0].Quantity)
		})
	}
}

func TestStore_AddKeepsPriceSnapshot(t *testing.T) {
	ctx := context.Background()
	s := NewStore(ctx, kvstore.NewMemoryStore())

	require.NoError(t, s.Add(ctx, product("1", 10)))
	// the catalog price changed; the cart keeps the add-time price
	require.NoError(t, s.Add(ctx, product("1", 99)))

	items := s.LineItems()
	require.Len(t, items, 1)
	assert.Equal(t, "10", items[0].UnitPrice.String())
	assert.Equal(t, "20", s.Total().String())
}

func TestStore_Remove(t *testing.T) {
	ctx := context.Background()
	s := NewStore(ctx, kvstore.NewMemoryStore())
	require.NoError(t, s.Add(ctx, product("1", 10)))
	require.NoError(t, s.Add(ctx, product("2", 5)))
	require.NoError(t, s.Add(ctx, product("3", 1)))

	require.NoError(t, s.Remove(ctx, "2"))
	assert.Equal(t, map[domain.ProductID]int{"1": 1, "3": 1}, quantities(s.LineItems()))
	assert.Equal(t, domain.ProductID("3"), s.LineItems()[1].ProductID)

	// absent id is a no-op
	require.NoError(t, s.Remove(ctx, "404"))
	assert.Len(t, s.LineItems(), 2)
}

func TestStore_SetQuantity(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		id       domain.ProductID
		quantity int
		want     map[domain.ProductID]int
	}{
		{name: "replace quantity: ok", id: "1", quantity: 5, want: map[domain.ProductID]int{"1": 5, "2": 1}},
		{name: "zero removes", id: "1", quantity: 0, want: map[domain.ProductID]int{"2": 1}},
		{name: "negative removes", id: "2", quantity: -3, want: map[domain.ProductID]int{"1": 2}},
		{name: "unknown id: no-op", id: "9", quantity: 4, want: map[domain.ProductID]int{"1": 2, "2": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(ctx, kvstore.NewMemoryStore())
			require.NoError(t, s.Add(ctx, product("1", 10)))
			require.NoError(t, s.Add(ctx, product("1", 10)))
			require.NoError(t, s.Add(ctx, product("2", 5)))

			require.NoError(t, s.SetQuantity(ctx, tt.id, tt.quantity))
			assert.Equal(t, tt.want, quantities(s.LineItems()))
		})
	}
}

func TestStore_SetQuantityNonPositiveEqualsRemove(t *testing.T) {
	ctx := context.Background()

	for _, q := range []int{0, -1, -100} {
		viaSet := NewStore(ctx, kvstore.NewMemoryStore())
		viaRemove := NewStore(ctx, kvstore.NewMemoryStore())
		for _, s := range []*Store{viaSet, viaRemove} {
			require.NoError(t, s.Add(ctx, product("1", 3)))
			require.NoError(t, s.Add(ctx, product("2", 4)))
		}

		require.NoError(t, viaSet.SetQuantity(ctx, "1", q))
		require.NoError(t, viaRemove.Remove(ctx, "1"))

		assert.Empty(t, cmp.Diff(viaRemove.LineItems(), viaSet.LineItems(), decimalComparer))
		assert.True(t, viaRemove.Total().Equal(viaSet.Total()))
	}
}

func TestStore_SetQuantityText(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		raw  string
		want map[domain.ProductID]int
	}{
		{name: "integer text: ok", raw: "4", want: map[domain.ProductID]int{"1": 4}},
		{name: "whole float text: ok", raw: " 3.0 ", want: map[domain.ProductID]int{"1": 3}},
		{name: "zero text removes", raw: "0", want: map[domain.ProductID]int{}},
		{name: "NaN: no-op", raw: "NaN", want: map[domain.ProductID]int{"1": 2}},
		{name: "fraction: no-op", raw: "2.5", want: map[domain.ProductID]int{"1": 2}},
		{name: "infinity: no-op", raw: "+Inf", want: map[domain.ProductID]int{"1": 2}},
		{name: "empty: no-op", raw: "", want: map[domain.ProductID]int{"1": 2}},
		{name: "letters: no-op", raw: "two", want: map[domain.ProductID]int{"1": 2}},
		{name: "overflow: no-op", raw: "1e30", want: map[domain.ProductID]int{"1": 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := newMockStorage()
			s := NewStore(ctx, storage)
			require.NoError(t, s.Add(ctx, product("1", 10)))
			require.NoError(t, s.Add(ctx, product("1", 10)))
			setsBefore := storage.sets

			require.NoError(t, s.SetQuantityText(ctx, "1", tt.raw))
			assert.Equal(t, tt.want, quantities(s.LineItems()))

			if tt.want["1"] == 2 {
				assert.Equal(t, setsBefore, storage.sets, "rejected input must not persist")
			}
		})
	}
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	storage := newMockStorage()
	s := NewStore(ctx, storage)
	require.NoError(t, s.Add(ctx, product("1", 10)))
	require.NoError(t, s.Add(ctx, product("2", 5)))

	require.NoError(t, s.Clear(ctx))

	assert.Empty(t, s.LineItems())
	assert.True(t, s.Total().IsZero())
	assert.Equal(t, "[]", storage.values[StorageKey])
}

func TestStore_TotalTracksMutations(t *testing.T) {
	ctx := context.Background()
	s := NewStore(ctx, kvstore.NewMemoryStore())

	products := make([]domain.Product, 5)
	for i := range products {
		products[i] = randomProduct()
		require.NoError(t, s.Add(ctx, products[i]))
	}
	require.NoError(t, s.Add(ctx, products[0]))
	require.NoError(t, s.SetQuantity(ctx, products[1].ID, 4))
	require.NoError(t, s.Remove(ctx, products[2].ID))

	want := products[0].Price.Mul(decimal.NewFromInt(2)).
		Add(products[1].Price.Mul(decimal.NewFromInt(4))).
		Add(products[3].Price).
		Add(products[4].Price)
	assert.True(t, want.Equal(s.Total()), "want %s, got %s", want, s.Total())

	require.NoError(t, s.Clear(ctx))
	assert.True(t, s.Total().IsZero())
}

func TestStore_PersistsEveryMutation(t *testing.T) {
	ctx := context.Background()
	storage := newMockStorage()
	s := NewStore(ctx, storage)

	require.NoError(t, s.Add(ctx, product("1", 10)))
	assert.JSONEq(t, `[{"id":1,"name":"product 1","price":"10","quantity":1}]`, storage.values[StorageKey])

	require.NoError(t, s.SetQuantity(ctx, "1", 3))
	assert.JSONEq(t, `[{"id":1,"name":"product 1","price":"10","quantity":3}]`, storage.values[StorageKey])

	require.NoError(t, s.Remove(ctx, "1"))
	assert.JSONEq(t, `[]`, storage.values[StorageKey])
	assert.Equal(t, 3, storage.sets)
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	storage := kvstore.NewMemoryStore()
	s := NewStore(ctx, storage)

	for i := 0; i < 6; i++ {
		p := randomProduct()
		require.NoError(t, s.Add(ctx, p))
		if i%2 == 0 {
			require.NoError(t, s.Add(ctx, p))
		}
	}

	reloaded := NewStore(ctx, storage)

	assert.Empty(t, cmp.Diff(s.LineItems(), reloaded.LineItems(), decimalComparer))
}

func TestStore_Rehydrate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		stored string
		want   map[domain.ProductID]int
	}{
		{name: "valid snapshot: ok", stored: `[{"id":1,"name":"a","price":2.5,"quantity":2},{"id":"x","name":"b","price":"1","quantity":1}]`, want: map[domain.ProductID]int{"1": 2, "x": 1}},
		{name: "malformed json: empty", stored: `[{"id":1,`, want: map[domain.ProductID]int{}},
		{name: "not an array: empty", stored: `{"id":1}`, want: map[domain.ProductID]int{}},
		{name: "zero quantity: empty", stored: `[{"id":1,"price":1,"quantity":0}]`, want: map[domain.ProductID]int{}},
		{name: "duplicate ids: empty", stored: `[{"id":1,"price":1,"quantity":1},{"id":"1","price":1,"quantity":1}]`, want: map[domain.ProductID]int{}},
		{name: "negative price: empty", stored: `[{"id":1,"price":-1,"quantity":1}]`, want: map[domain.ProductID]int{}},
		{name: "null: empty", stored: `null`, want: map[domain.ProductID]int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := newMockStorage()
			storage.values[StorageKey] = tt.stored

			s := NewStore(ctx, storage)
			assert.Equal(t, tt.want, quantities(s.LineItems()))
		})
	}
}

func TestStore_RehydrateMissing(t *testing.T) {
	s := NewStore(context.Background(), newMockStorage())
	assert.Empty(t, s.LineItems())
	assert.True(t, s.Total().IsZero())
}

func TestStore_PersistFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	storage := newMockStorage()
	s := NewStore(ctx, storage)
	storage.setErr = errors.New("disk full")

	err := s.Add(ctx, product("1", 10))
	require.ErrorContains(t, err, "disk full")

	assert.Equal(t, map[domain.ProductID]int{"1": 1}, quantities(s.LineItems()))
	_, stored := storage.values[StorageKey]
	assert.False(t, stored)
}

func TestStore_ReloadStorageErrorKeepsState(t *testing.T) {
	ctx := context.Background()
	storage := newMockStorage()
	s := NewStore(ctx, storage)
	require.NoError(t, s.Add(ctx, product("1", 10)))

	storage.getErr = errors.New("connection refused")
	err := s.Reload(ctx)

	require.ErrorContains(t, err, "connection refused")
	assert.Len(t, s.LineItems(), 1)
}

func TestStore_ReloadPicksUpForeignWrite(t *testing.T) {
	ctx := context.Background()
	storage := kvstore.NewMemoryStore()
	s := NewStore(ctx, storage)
	other := NewStore(ctx, storage)

	require.NoError(t, other.Add(ctx, product("5", 2)))
	require.NoError(t, s.Reload(ctx))

	assert.Equal(t, map[domain.ProductID]int{"5": 1}, quantities(s.LineItems()))
}

func TestStore_ReloadSkipsOwnSnapshot(t *testing.T) {
	ctx := context.Background()
	storage := kvstore.NewMemoryStore()
	s := NewStore(ctx, storage)

	var notified int
	s.Subscribe(func([]domain.LineItem) { notified++ })

	require.NoError(t, s.Add(ctx, product("1", 10)))
	require.NoError(t, s.Reload(ctx))
	require.NoError(t, s.Reload(ctx))
	assert.Equal(t, 1, notified)

	other := NewStore(ctx, storage)
	require.NoError(t, other.Add(ctx, product("2", 3)))
	require.NoError(t, s.Reload(ctx))
	assert.Equal(t, 2, notified)
	assert.Equal(t, map[domain.ProductID]int{"1": 1, "2": 1}, quantities(s.LineItems()))
}

func TestStore_ReloadDoesNotLoseConcurrentCommit(t *testing.T) {
	ctx := context.Background()
	storage := &blockingGetStorage{
		mockStorage: newMockStorage(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	s := NewStore(ctx, storage)
	require.NoError(t, s.Add(ctx, product("1", 10)))
	storage.armed.Store(true)

	reloaded := make(chan error, 1)
	go func() { reloaded <- s.Reload(ctx) }()
	<-storage.entered

	added := make(chan error, 1)
	go func() { added <- s.Add(ctx, product("2", 5)) }()
	time.Sleep(20 * time.Millisecond)
	close(storage.release)

	require.NoError(t, <-reloaded)
	require.NoError(t, <-added)
	require.NoError(t, s.Add(ctx, product("3", 1)))

	want := map[domain.ProductID]int{"1": 1, "2": 1, "3": 1}
	assert.Equal(t, want, quantities(s.LineItems()))
	assert.Equal(t, want, quantities(NewStore(ctx, storage.mockStorage).LineItems()))
}

func TestStore_LineItemsIsACopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore(ctx, kvstore.NewMemoryStore())
	require.NoError(t, s.Add(ctx, product("1", 10)))

	items := s.LineItems()
	items[0].Quantity = 99

	assert.Equal(t, 1, s.LineItems()[0].Quantity)
}

func TestStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	s := NewStore(ctx, kvstore.NewMemoryStore())

	var got [][]domain.LineItem
	unsubscribe := s.Subscribe(func(items []domain.LineItem) {
		got = append(got, items)
	})

	require.NoError(t, s.Add(ctx, product("1", 10)))
	require.NoError(t, s.Remove(ctx, "404")) // no-op: no notification
	require.NoError(t, s.SetQuantity(ctx, "1", 3))

	unsubscribe()
	require.NoError(t, s.Clear(ctx))

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0][0].Quantity)
	assert.Equal(t, 3, got[1][0].Quantity)
}

func TestStore_SubscriberMayReadStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore(ctx, kvstore.NewMemoryStore())

	var total decimal.Decimal
	s.Subscribe(func([]domain.LineItem) { total = s.Total() })

	require.NoError(t, s.Add(ctx, product("1", 10)))
	assert.Equal(t, "10", total.String())
}

func TestStore_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	s := NewStore(ctx, kvstore.NewMemoryStore())
	p := product("1", 1)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Add(ctx, p)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.LineItems()[0].Quantity)
}
