// Package itemstore holds the ordered item collection, applies the
// create/update/delete rules, and persists the whole collection after every
// mutation.
package itemstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/itemdesk/internal/apperr"
	"github.com/starford/itemdesk/internal/models"
)

// Loader reads the persisted collection.
type Loader interface {
	Load(ctx context.Context) ([]models.Item, error)
}

// Saver persists the full collection. It is called synchronously by every
// mutating Store method.
type Saver interface {
	Save(ctx context.Context, items []models.Item) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, items []models.Item) error

func (f SaverFunc) Save(ctx context.Context, items []models.Item) error { return f(ctx, items) }

// Persister is a Loader that can also save, such as *snapshot.Slot.
type Persister interface {
	Loader
	Saver
}

// ChangeKind names a collection change.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeUpdated  ChangeKind = "updated"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeReloaded ChangeKind = "reloaded"
)

// Change is delivered to the OnChange hook after a mutation is persisted.
// Item is zero for ChangeReloaded.
type Change struct {
	Kind ChangeKind
	Item models.Item
}

// Store is the in-memory item collection. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	items  []models.Item
	lastID int64

	// emitMu is taken before mu is released so hooks see changes in
	// commit order.
	emitMu sync.Mutex

	now      func() time.Time
	loader   Loader
	saver    Saver
	onChange func(Change)
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSaver sets the persistence callback.
func WithSaver(sv Saver) Option {
	return func(s *Store) { s.saver = sv }
}

// WithLoader sets the source used by Reload.
func WithLoader(l Loader) Option {
	return func(s *Store) { s.loader = l }
}

// WithOnChange registers a hook called after each persisted change.
// The hook runs outside the store lock, in commit order. It may read the
// store but must not mutate it.
func WithOnChange(fn func(Change)) Option {
	return func(s *Store) { s.onChange = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithItems seeds the collection without persisting it.
func WithItems(items []models.Item) Option {
	return func(s *Store) { s.setItems(items) }
}

// New creates a Store. Without WithSaver mutations stay in memory.
func New(opts ...Option) *Store {
	s := &Store{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads the collection from p and returns a Store that saves back to it.
func Open(ctx context.Context, p Persister, opts ...Option) (*Store, error) {
	items, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("itemstore: open: %w", err)
	}
	all := append([]Option{WithLoader(p), WithSaver(p), WithItems(items)}, opts...)
	return New(all...), nil
}

// Add validates f and appends a new item.
func (s *Store) Add(ctx context.Context, f Fields) (models.Item, error) {
	f = f.normalize()
	if err := f.Validate(); err != nil {
		return models.Item{}, err
	}

	s.mu.Lock()
	now := s.timestamp()
	it := models.Item{
		ID:          s.nextID(now),
		Name:        f.Name,
		Description: f.Description,
		Priority:    f.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	next := append(s.snapshot(), it)
	if err := s.persist(ctx, next); err != nil {
		s.mu.Unlock()
		return models.Item{}, err
	}
	s.items = next
	s.lastID = it.ID
	s.logger.Debug("item added", slog.Int64("id", it.ID))
	s.unlockAndEmit(Change{Kind: ChangeCreated, Item: it})
	return it, nil
}

// Update validates f and replaces the mutable fields of item id.
// A missing id is a no-op: found is false and err is nil.
func (s *Store) Update(ctx context.Context, id int64, f Fields) (item models.Item, found bool, err error) {
	f = f.normalize()
	if err := f.Validate(); err != nil {
		return models.Item{}, false, err
	}

	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return models.Item{}, false, nil
	}
	next := s.snapshot()
	it := next[idx]
	it.Name = f.Name
	it.Description = f.Description
	it.Priority = f.Priority
	it.UpdatedAt = laterThan(s.timestamp(), it.UpdatedAt)
	next[idx] = it
	if err := s.persist(ctx, next); err != nil {
		s.mu.Unlock()
		return models.Item{}, true, err
	}
	s.items = next
	s.logger.Debug("item updated", slog.Int64("id", id))
	s.unlockAndEmit(Change{Kind: ChangeUpdated, Item: it})
	return it, true, nil
}

// Remove deletes item id. A missing id is a no-op and nothing is written.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return false, nil
	}
	removed := s.items[idx]
	next := make([]models.Item, 0, len(s.items)-1)
	next = append(next, s.items[:idx]...)
	next = append(next, s.items[idx+1:]...)
	if err := s.persist(ctx, next); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.items = next
	s.logger.Debug("item removed", slog.Int64("id", id))
	s.unlockAndEmit(Change{Kind: ChangeDeleted, Item: removed})
	return true, nil
}

// Get returns item id or an error wrapping apperr.ErrNotFound.
func (s *Store) Get(id int64) (models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return models.Item{}, fmt.Errorf("item %d: %w", id, apperr.ErrNotFound)
	}
	return s.items[idx], nil
}

// All returns a copy of the collection in insertion order.
func (s *Store) All() []models.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

// Len returns the number of items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Reload replaces the in-memory collection with the persisted one. The
// write lock is held across the read so no mutation lands in between.
func (s *Store) Reload(ctx context.Context) error {
	if s.loader == nil {
		return fmt.Errorf("itemstore: reload: no loader configured")
	}
	s.mu.Lock()
	items, err := s.loader.Load(ctx)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("itemstore: reload: %w", err)
	}
	s.setItems(items)
	s.logger.Info("items reloaded", slog.Int("count", len(s.items)))
	s.unlockAndEmit(Change{Kind: ChangeReloaded})
	return nil
}

// Replace validates items as a whole collection and persists them in place
// of the current one. Used by import.
func (s *Store) Replace(ctx context.Context, items []models.Item) error {
	if err := CheckCollection(items); err != nil {
		return err
	}
	next := append([]models.Item(nil), items...)

	s.mu.Lock()
	if err := s.persist(ctx, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.setItems(next)
	s.unlockAndEmit(Change{Kind: ChangeReloaded})
	return nil
}

// CheckCollection verifies the collection invariants: positive unique ids,
// valid fields and updatedAt not before createdAt.
func CheckCollection(items []models.Item) error {
	seen := make(map[int64]struct{}, len(items))
	for i, it := range items {
		if it.ID <= 0 {
			return fmt.Errorf("item %d: id must be positive: %w", i, apperr.ErrInvalid)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("item %d: duplicate id %d: %w", i, it.ID, apperr.ErrInvalid)
		}
		seen[it.ID] = struct{}{}
		if err := (Fields{Name: it.Name, Description: it.Description, Priority: it.Priority}).normalize().Validate(); err != nil {
			return fmt.Errorf("item %d (id %d): %w", i, it.ID, err)
		}
		if it.UpdatedAt.Before(it.CreatedAt) {
			return fmt.Errorf("item %d (id %d): updatedAt before createdAt: %w", i, it.ID, apperr.ErrInvalid)
		}
	}
	return nil
}

// persist must be called with s.mu held.
func (s *Store) persist(ctx context.Context, next []models.Item) error {
	if s.saver == nil {
		return nil
	}
	if err := s.saver.Save(ctx, next); err != nil {
		return fmt.Errorf("itemstore: persist: %w", err)
	}
	return nil
}

// unlockAndEmit releases s.mu, which the caller holds, and delivers c.
func (s *Store) unlockAndEmit(c Change) {
	if s.onChange == nil {
		s.mu.Unlock()
		return
	}
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()
	s.onChange(c)
}

// setItems must be called with s.mu held (or before the Store is shared).
func (s *Store) setItems(items []models.Item) {
	s.items = append([]models.Item(nil), items...)
	s.lastID = 0
	for _, it := range s.items {
		if it.ID > s.lastID {
			s.lastID = it.ID
		}
	}
}

func (s *Store) snapshot() []models.Item {
	out := make([]models.Item, len(s.items), len(s.items)+1)
	copy(out, s.items)
	return out
}

func (s *Store) indexOf(id int64) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// nextID derives the id from the creation time in milliseconds, bumped past
// the largest id seen so ids stay unique and increasing.
func (s *Store) nextID(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	return id
}

// laterThan returns now, or prev plus one millisecond if now is not after prev.
func laterThan(now, prev time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Millisecond)
}
