// Package store provides the durable key-value store behind room
// persistence. Snapshots are written under keys derived from the room id
// ("doc:<roomID>").
package store

import "context"

// KV is the storage contract the persistence scheduler consumes.
type KV interface {
	// Get returns the stored value, or nil with no error when the key has
	// never been written.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// DocKey derives the storage key for a room's snapshot.
func DocKey(roomID string) string { return "doc:" + roomID }
