package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/starford/itemdesk/internal/apperr"
	"github.com/starford/itemdesk/internal/checksum"
	"github.com/starford/itemdesk/internal/models"
	"github.com/starford/itemdesk/internal/storage"
)

// DefaultKey is the storage key the collection lives under.
const DefaultKey = "items"

// Slot binds the collection to one key of a storage provider.
// It remembers the checksum of the last snapshot it read or wrote.
type Slot struct {
	store storage.Provider
	key   string

	mu      sync.Mutex
	lastSum string
}

// NewSlot returns a Slot for key (DefaultKey when empty).
func NewSlot(store storage.Provider, key string) *Slot {
	if key == "" {
		key = DefaultKey
	}
	return &Slot{store: store, key: key}
}

// Key returns the storage key.
func (s *Slot) Key() string { return s.key }

// Load reads and decodes the slot. A slot that was never written loads as
// an empty collection.
func (s *Slot) Load(ctx context.Context) ([]models.Item, error) {
	data, err := s.store.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.remember(nil)
			return []models.Item{}, nil
		}
		return nil, fmt.Errorf("snapshot: load %s: %w", s.key, err)
	}
	items, err := Decode(data)
	if err != nil {
		return nil, err
	}
	s.remember(data)
	return items, nil
}

// Save encodes items and overwrites the slot.
func (s *Slot) Save(ctx context.Context, items []models.Item) error {
	data, err := Encode(items)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("snapshot: save %s: %w", s.key, err)
	}
	s.remember(data)
	return nil
}

// Checksum returns the checksum of the last snapshot read or written,
// or "" if the slot was empty.
func (s *Slot) Checksum() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSum
}

// IsCurrent reports whether data matches the last snapshot this Slot read
// or wrote. The watcher uses it to skip the process's own writes.
func (s *Slot) IsCurrent(data []byte) bool {
	return checksum.Sum(data) == s.Checksum()
}

func (s *Slot) remember(data []byte) {
	sum := ""
	if data != nil {
		sum = checksum.Sum(data)
	}
	s.mu.Lock()
	s.lastSum = sum
	s.mu.Unlock()
}
