package receipt

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const itemBucket = "items"

// BoltStore persists the review table to a bbolt file so a session
// survives a restart. Enabled with the --db flag; memory is the default.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the database file
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(itemBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Add appends items to the table
func (b *BoltStore) Add(items []*Item) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(itemBucket))
		for _, item := range items {
			if bucket.Get([]byte(item.ID)) != nil {
				return fmt.Errorf("duplicate item id: %s", item.ID)
			}
			data, err := json.Marshal(item)
			if err != nil {
				return fmt.Errorf("marshaling item: %w", err)
			}
			if err := bucket.Put([]byte(item.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns all items, ordered by their timestamp-prefixed IDs
func (b *BoltStore) List() ([]*Item, error) {
	items := make([]*Item, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(itemBucket))
		return bucket.ForEach(func(k, v []byte) error {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("unmarshaling item: %w", err)
			}
			items = append(items, &item)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortByID(items)
	return items, nil
}

// Get retrieves an item by ID
func (b *BoltStore) Get(id string) (*Item, error) {
	var item *Item
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(itemBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("item not found: %s", id)
		}
		return json.Unmarshal(data, &item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Update applies a field-level patch to an item
func (b *BoltStore) Update(id string, patch ItemPatch) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(itemBucket))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("item not found: %s", id)
		}
		var item Item
		if err := json.Unmarshal(data, &item); err != nil {
			return fmt.Errorf("unmarshaling item: %w", err)
		}
		item.apply(patch)
		updated, err := json.Marshal(&item)
		if err != nil {
			return fmt.Errorf("marshaling item: %w", err)
		}
		return bucket.Put([]byte(id), updated)
	})
}

// Delete removes an item
func (b *BoltStore) Delete(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(itemBucket))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("item not found: %s", id)
		}
		return bucket.Delete([]byte(id))
	})
}

// Reset clears the table
func (b *BoltStore) Reset() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(itemBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(itemBucket))
		return err
	})
}

// Close closes the database
func (b *BoltStore) Close() error {
	return b.db.Close()
}
