// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package changefeed

import (
	"context"
	"log/slog"
	"sync"
)

// FetchFunc loads the complete list, e.g. the first page of an admin inbox
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// LiveList keeps the last full fetch of a table-backed list. A publish marks it
// stale before Publish returns. A refetch only makes it fresh again when no
// publish landed while the fetch was running.
type LiveList[T any] struct {
	table  string
	fetch  FetchFunc[T]
	logger *slog.Logger

	mu    sync.RWMutex
	items []T
	fresh bool
	gen   uint64
	dirty uint64 // bumped by every invalidate
}

func NewLiveList[T any](table string, fetch FetchFunc[T], logger *slog.Logger) *LiveList[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveList[T]{
		table:  table,
		fetch:  fetch,
		logger: logger.With("component", "livelist", "table", table),
	}
}

// Snapshot returns the last fetched items and whether they are still current
func (l *LiveList[T]) Snapshot() ([]T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out, l.fresh
}

// Generation counts successful refetches
func (l *LiveList[T]) Generation() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gen
}

func (l *LiveList[T]) invalidate() {
	l.mu.Lock()
	l.fresh = false
	l.dirty++
	l.mu.Unlock()
}

// Refresh refetches the whole list
func (l *LiveList[T]) Refresh(ctx context.Context) error {
	l.mu.RLock()
	seen := l.dirty
	l.mu.RUnlock()

	items, err := l.fetch(ctx)
	if err != nil {
		l.logger.Error("refetch failed", "error", err)
		return err
	}

	l.mu.Lock()
	l.items = items
	l.fresh = l.dirty == seen
	l.gen++
	l.mu.Unlock()
	return nil
}

// Run fetches once, then refetches on every event for the table until ctx ends.
// Refetch errors are logged and the loop keeps waiting for the next event.
// The list is left stale when Run returns.
func (l *LiveList[T]) Run(ctx context.Context, hub *Hub) error {
	unhook := hub.OnPublish(l.table, l.invalidate)
	defer unhook()
	defer l.invalidate()

	events, cancel := hub.Subscribe(l.table)
	defer cancel()

	_ = l.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return nil
			}
			_ = l.Refresh(ctx)
		}
	}
}
