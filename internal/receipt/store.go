package receipt

import (
	"fmt"
	"sort"
	"sync"
)

// Store holds the session's review table. The orchestrator appends to it
// after a batch settles; the user edits and deletes rows through it.
type Store interface {
	// Add appends items to the table
	Add(items []*Item) error

	// List returns all items in insertion order
	List() ([]*Item, error)

	// Get retrieves an item by ID
	Get(id string) (*Item, error)

	// Update applies a field-level patch to an item
	Update(id string, patch ItemPatch) error

	// Delete removes an item
	Delete(id string) error

	// Reset clears the table
	Reset() error

	// Close releases store resources
	Close() error
}

// MemoryStore is the default Store: the review table lives only for the
// session, like the original application's table state.
type MemoryStore struct {
	mu    sync.Mutex
	order []string
	items map[string]*Item
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*Item),
	}
}

// Add appends items to the table
func (m *MemoryStore) Add(items []*Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		if _, exists := m.items[item.ID]; exists {
			return fmt.Errorf("duplicate item id: %s", item.ID)
		}
		copied := *item
		m.items[item.ID] = &copied
		m.order = append(m.order, item.ID)
	}
	return nil
}

// List returns copies of all items in insertion order
func (m *MemoryStore) List() ([]*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]*Item, 0, len(m.order))
	for _, id := range m.order {
		copied := *m.items[id]
		items = append(items, &copied)
	}
	return items, nil
}

// Get retrieves a copy of an item by ID
func (m *MemoryStore) Get(id string) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("item not found: %s", id)
	}
	copied := *item
	return &copied, nil
}

// Update applies a field-level patch to an item
func (m *MemoryStore) Update(id string, patch ItemPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return fmt.Errorf("item not found: %s", id)
	}
	item.apply(patch)
	return nil
}

// Delete removes an item
func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("item not found: %s", id)
	}
	delete(m.items, id)
	for i, orderedID := range m.order {
		if orderedID == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Reset clears the table
func (m *MemoryStore) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*Item)
	m.order = nil
	return nil
}

// Close is a no-op for the memory store
func (m *MemoryStore) Close() error {
	return nil
}

// sortByID orders items by their timestamp-prefixed IDs, which restores
// insertion order for stores that do not keep one.
func sortByID(items []*Item) {
	sort.Slice(items, func(a, b int) bool {
		return items[a].ID < items[b].ID
	})
}
