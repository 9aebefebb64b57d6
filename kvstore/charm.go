// ABOUTME: Charm KV engine for the document store, synced to a charm server
// ABOUTME: Writes are applied locally and pushed with a single Sync per batch
package kvstore

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/charm/kv"
	"github.com/dgraph-io/badger/v3"
)

const (
	// DefaultCharmHost is the self-hosted 2389 research server.
	DefaultCharmHost = "charm.2389.dev"

	// CharmAppName names the charm KV database.
	CharmAppName = "leadsync"
)

// CharmKV wraps charm's KV. Charm has no multi-key transaction, so Apply
// writes each op and then syncs once; a failure part way leaves the earlier
// writes in place.
type CharmKV struct {
	kv       *kv.KV
	autoSync bool
	mu       sync.RWMutex
}

// OpenCharm opens the charm KV database against host.
func OpenCharm(host string, autoSync bool) (*CharmKV, error) {
	if host == "" {
		host = DefaultCharmHost
	}
	// Set charm host before opening KV
	_ = os.Setenv("CHARM_HOST", host)

	db, err := kv.OpenWithDefaults(CharmAppName)
	if err != nil {
		return nil, fmt.Errorf("failed to open charm kv: %w", err)
	}

	c := &CharmKV{kv: db, autoSync: autoSync}

	// Sync on startup to pull remote changes
	if autoSync {
		_ = db.Sync()
	}
	return c, nil
}

func (c *CharmKV) Get(key []byte) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, err := c.kv.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return value, err
}

func (c *CharmKV) Scan(prefix []byte, fn func(key, value []byte) error) error {
	c.mu.RLock()
	keys, err := c.kv.Keys()
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}

	for _, key := range keys {
		if !hasPrefix(key, prefix) {
			continue
		}
		value, err := c.Get(key)
		if err != nil {
			return err
		}
		if value == nil {
			continue
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (c *CharmKV) Apply(ops []Op) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, op := range ops {
		var err error
		if op.Value == nil {
			err = c.kv.Delete(op.Key)
		} else {
			err = c.kv.Set(op.Key, op.Value)
		}
		if err != nil {
			return err
		}
	}

	if c.autoSync {
		_ = c.kv.Sync()
	}
	return nil
}

// Sync pulls and pushes changes with the charm server.
func (c *CharmKV) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kv.Sync()
}

// Close is a no-op: charm/kv does not expose Close and the underlying
// BadgerDB is released on process exit.
func (c *CharmKV) Close() error {
	return nil
}
