// Package testutil provides shared test helpers for storage backends,
// slots and time.
package testutil

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/itemdesk/internal/snapshot"
	"github.com/starford/itemdesk/internal/storage"
)

// TestSQLite creates a temporary SQLite provider that is automatically cleaned up.
func TestSQLite(t *testing.T) *storage.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "itemdesk-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := storage.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestFS creates a temporary data directory with a file provider.
func TestFS(t *testing.T) *storage.FS {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return fs
}

// MemorySlot returns a slot over a fresh in-memory provider.
func MemorySlot(t *testing.T) *snapshot.Slot {
	t.Helper()
	return snapshot.NewSlot(storage.NewMemory(), "")
}

// Clock is a deterministic time source. Every Now call returns the current
// time and then advances it by Step.
//
// Safe for concurrent use.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewClock starts at 2024-05-01 12:00 UTC and advances one second per call.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), step: time.Second}
}

// Now returns the current time and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// SetStep changes the advance per call. Zero freezes the clock.
func (c *Clock) SetStep(d time.Duration) {
	c.mu.Lock()
	c.step = d
	c.mu.Unlock()
}
