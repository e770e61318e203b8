// Package watcher reloads the item store when its slot file is changed by
// another process.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/itemdesk/internal/apperr"
	"github.com/starford/itemdesk/internal/snapshot"
	"github.com/starford/itemdesk/internal/storage"
)

// DefaultDebounce coalesces the burst of events an atomic rename produces.
const DefaultDebounce = 150 * time.Millisecond

// Reloader re-reads persisted state. *itemstore.Store satisfies it.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ReloadCallback is called after a watcher-driven reload.
type ReloadCallback func(key string)

// Watcher ties a file provider, the slot it backs and the store to reload.
type Watcher struct {
	fs       *storage.FS
	slot     *snapshot.Slot
	store    Reloader
	logger   *slog.Logger
	debounce time.Duration
	onReload ReloadCallback
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithOnReload registers a callback run after each reload.
func WithOnReload(cb ReloadCallback) Option {
	return func(w *Watcher) { w.onReload = cb }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New returns a Watcher. Call Run to start it.
func New(fs *storage.FS, slot *snapshot.Slot, store Reloader, opts ...Option) *Watcher {
	w := &Watcher{
		fs:       fs,
		slot:     slot,
		store:    store,
		logger:   slog.Default(),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches the provider directory until ctx is cancelled. The slot's own
// writes are recognised by checksum and ignored.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// The directory is watched rather than the file so that atomic
	// rename-over writes keep being seen.
	if err := fw.Add(w.fs.Root()); err != nil {
		return err
	}

	w.logger.Info("watcher: started", slog.String("root", w.fs.Root()), slog.String("key", w.slot.Key()))

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			fire = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("watcher: stopped")
			return nil

		case <-fire:
			w.check(ctx)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			key, ok := w.fs.KeyForPath(ev.Name)
			if !ok || key != w.slot.Key() {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("watcher: slot event", slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// check reloads the store if the slot differs from what it last saw.
func (w *Watcher) check(ctx context.Context) {
	data, err := w.fs.Get(ctx, w.slot.Key())
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		if w.slot.Checksum() == "" {
			return
		}
	case err != nil:
		w.logger.Warn("watcher: read failed", slog.String("error", err.Error()))
		return
	case w.slot.IsCurrent(data):
		return
	}

	if err := w.store.Reload(ctx); err != nil {
		w.logger.Warn("watcher: reload failed", slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: reloaded", slog.String("key", w.slot.Key()))
	if w.onReload != nil {
		w.onReload(w.slot.Key())
	}
}
