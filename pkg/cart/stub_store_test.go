package cart

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

type stubStore struct {
	txMu   sync.Mutex
	mu     sync.Mutex
	carts  map[string]Cart
	items  map[string]Item
	nextID int

	// racingItem simulates a concurrent transaction that committed the same slot:
	// InsertItem fails on it and it becomes visible once the failing transaction rolls back.
	racingItem *Item
	countCalls   int
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{carts: map[string]Cart{}, items: map[string]Item{}}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	store.txMu.Lock()
	defer store.txMu.Unlock()
	store.mu.Lock()
	cartSnapshot := make(map[string]Cart, len(store.carts))
	for key, value := range store.carts {
		cartSnapshot[key] = value
	}
	itemSnapshot := make(map[string]Item, len(store.items))
	for key, value := range store.items {
		itemSnapshot[key] = value
	}
	store.mu.Unlock()

	if err := fn(ctx, store); err != nil {
		store.mu.Lock()
		store.carts = cartSnapshot
		store.items = itemSnapshot
		if store.racingItem != nil {
			store.items[store.racingItem.ID] = *store.racingItem
			store.racingItem = nil
		}
		store.mu.Unlock()
		return err
	}
	return nil
}

func (store *stubStore) FindActiveCart(ctx context.Context, identity Identity, now time.Time) (Cart, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	var newest Cart
	found := false
	for _, candidate := range store.carts {
		if candidate.Identity != identity || candidate.Status != StatusActive || !now.Before(candidate.ExpiresAt) {
			continue
		}
		if !found || candidate.CreatedAt.After(newest.CreatedAt) {
			newest = candidate
			found = true
		}
	}
	if !found {
		return Cart{}, ErrNotFound
	}
	return newest, nil
}

func (store *stubStore) CreateCart(ctx context.Context, cart Cart) (Cart, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.nextID++
	cart.ID = fmt.Sprintf("cart-%d", store.nextID)
	store.carts[cart.ID] = cart
	return cart, nil
}

func (store *stubStore) GetCart(ctx context.Context, cartID string) (Cart, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	found, ok := store.carts[cartID]
	if !ok {
		return Cart{}, ErrNotFound
	}
	return found, nil
}

func (store *stubStore) UpdateCartStatus(ctx context.Context, cartID string, from Status, to Status, at time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	found, ok := store.carts[cartID]
	if !ok || found.Status != from {
		return ErrNotFound
	}
	found.Status = to
	found.UpdatedAt = at
	store.carts[cartID] = found
	return nil
}

func (store *stubStore) TouchCart(ctx context.Context, cartID string, at time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	found, ok := store.carts[cartID]
	if !ok {
		return ErrNotFound
	}
	found.UpdatedAt = at
	store.carts[cartID] = found
	return nil
}

func (store *stubStore) FindItemBySlot(ctx context.Context, cartID string, slot Slot) (Item, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, item := range store.items {
		if item.CartID == cartID && item.Slot == slot {
			return item, nil
		}
	}
	return Item{}, ErrNotFound
}

func (store *stubStore) InsertItem(ctx context.Context, item Item) (Item, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.racingItem != nil && store.racingItem.CartID == item.CartID && store.racingItem.Slot == item.Slot {
		return Item{}, ErrDuplicateItem
	}
	for _, existing := range store.items {
		if existing.CartID == item.CartID && existing.Slot == item.Slot {
			return Item{}, ErrDuplicateItem
		}
	}
	store.items[item.ID] = item
	return item, nil
}

func (store *stubStore) GetItem(ctx context.Context, itemID string) (Item, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	item, ok := store.items[itemID]
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

func (store *stubStore) UpdateItem(ctx context.Context, itemID string, update ItemUpdate, at time.Time) (Item, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	item, ok := store.items[itemID]
	if !ok {
		return Item{}, ErrNotFound
	}
	item = update.Apply(item)
	item.UpdatedAt = at
	store.items[itemID] = item
	return item, nil
}

func (store *stubStore) DeleteItem(ctx context.Context, itemID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.items[itemID]; !ok {
		return ErrNotFound
	}
	delete(store.items, itemID)
	return nil
}

func (store *stubStore) DeleteItems(ctx context.Context, cartID string) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	var removed int64
	for key, item := range store.items {
		if item.CartID == cartID {
			delete(store.items, key)
			removed++
		}
	}
	return removed, nil
}

func (store *stubStore) ListItems(ctx context.Context, cartID string) ([]Item, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	result := make([]Item, 0)
	for _, item := range store.items {
		if item.CartID == cartID {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(left, right int) bool {
		if result[left].AddedAt.Equal(result[right].AddedAt) {
			return result[left].ID < result[right].ID
		}
		return result[left].AddedAt.Before(result[right].AddedAt)
	})
	return result, nil
}

func (store *stubStore) CountItems(ctx context.Context, cartID string) (int64, error) {
	items, err := store.ListItems(ctx, cartID)
	store.mu.Lock()
	store.countCalls++
	store.mu.Unlock()
	return int64(len(items)), err
}

func (store *stubStore) ReassignItems(ctx context.Context, fromCartID string, toCartID string, at time.Time) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	var moved int64
	for key, item := range store.items {
		if item.CartID == fromCartID {
			item.CartID = toCartID
			item.UpdatedAt = at
			store.items[key] = item
			moved++
		}
	}
	return moved, nil
}

type memoryCountCache struct {
	mu          sync.Mutex
	counts      map[string]int64
	invalidated []string
}

func newMemoryCountCache() *memoryCountCache {
	return &memoryCountCache{counts: map[string]int64{}}
}

func (cache *memoryCountCache) Get(ctx context.Context, cartID string) (int64, bool, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	count, ok := cache.counts[cartID]
	return count, ok, nil
}

func (cache *memoryCountCache) Set(ctx context.Context, cartID string, count int64) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.counts[cartID] = count
	return nil
}

func (cache *memoryCountCache) Invalidate(ctx context.Context, cartIDs ...string) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	for _, cartID := range cartIDs {
		delete(cache.counts, cartID)
		cache.invalidated = append(cache.invalidated, cartID)
	}
	return nil
}
