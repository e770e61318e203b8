package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/starford/itemdesk/internal/apperr"
	"github.com/starford/itemdesk/internal/itemstore"
	"github.com/starford/itemdesk/internal/snapshot"
	"github.com/starford/itemdesk/internal/storage"
)

// redisPrefix namespaces itemdesk keys in a shared Redis.
const redisPrefix = "itemdesk:"

// Items bundles an opened storage backend, the slot holding the
// collection and the store loaded from it.
type Items struct {
	Provider storage.Provider
	Slot     *snapshot.Slot
	Store    *itemstore.Store
}

// OpenStorage opens the backend selected by cfg.Driver.
func OpenStorage(ctx context.Context, cfg StorageConfig) (storage.Provider, error) {
	switch cfg.Driver {
	case DriverFile:
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		fs, err := storage.NewFS(cfg.Path)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		db, err := storage.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case DriverRedis:
		rdb, err := storage.DialRedis(ctx, cfg.RedisAddr, redisPrefix)
		if err != nil {
			return nil, err
		}
		return rdb, nil
	case DriverMemory:
		return storage.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// OpenItems opens storage and loads the item store from the configured slot.
func OpenItems(ctx context.Context, cfg StorageConfig, opts ...itemstore.Option) (*Items, error) {
	provider, err := OpenStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	slot := snapshot.NewSlot(provider, cfg.Key)
	store, err := itemstore.Open(ctx, slot, opts...)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}
	return &Items{Provider: provider, Slot: slot, Store: store}, nil
}

// Ping checks that the backend answers. An empty slot is healthy.
func (i *Items) Ping(ctx context.Context) error {
	_, err := i.Provider.Get(ctx, i.Slot.Key())
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return nil
}

// Close releases the storage backend.
func (i *Items) Close() error {
	return i.Provider.Close()
}
