// Package storage persists accepted news items and caches enrichment results.
package storage

import (
	"github.com/IshaanNene/NewsGoat/internal/types"
)

// Storage is the interface for all storage backends.
type Storage interface {
	// Store persists a batch of items.
	Store(items []*types.NewsItem) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// Discard drops every item. It backs storage.type "none".
type Discard struct{}

func (Discard) Name() string                        { return "none" }
func (Discard) Store(items []*types.NewsItem) error { return nil }
func (Discard) Close() error                        { return nil }
