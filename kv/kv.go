// ABOUTME: BadgerDB-backed page snapshot cache
// ABOUTME: Alternative to the SQLite cache, usable on disk or fully in memory
package kv

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v3"
)

const pagePrefix = "page/"

// Cache stores list pages under "page/<resource>/<query key>".
type Cache struct {
	db *badger.DB
}

// Open opens a badger store at dir. An empty dir keeps everything in memory.
func Open(dir string) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}
	return &Cache{db: db}, nil
}

func pageKey(resource, key string) []byte {
	return []byte(pagePrefix + resource + "/" + key)
}

func (c *Cache) SavePage(ctx context.Context, resource, key string, data []byte) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pageKey(resource, key), data)
	})
}

// LoadPage returns nil when no page is stored.
func (c *Cache) LoadPage(ctx context.Context, resource, key string) ([]byte, error) {
	var result []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pageKey(resource, key))
		if err != nil {
			return err
		}
		result, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return result, err
}

// Keys lists the stored page keys for resource.
func (c *Cache) Keys(resource string) ([]string, error) {
	prefix := []byte(pagePrefix + resource + "/")
	var keys []string
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return keys, err
}

// Clear drops every stored page.
func (c *Cache) Clear(ctx context.Context) error {
	return c.db.DropPrefix([]byte(pagePrefix))
}

func (c *Cache) Close() error {
	return c.db.Close()
}
