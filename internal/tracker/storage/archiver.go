package storage

import (
	"context"
	"time"
)

// SnapshotPrefix is the key prefix of archived store snapshots.
const SnapshotPrefix = "snapshots/"

// Archiver stores snapshot documents in an object store.
type Archiver interface {
	// CheckBucket makes sure the target bucket exists, creating it if needed.
	CheckBucket(ctx context.Context) error

	// Put uploads data under key as a JSON object.
	Put(ctx context.Context, key string, data []byte) error
}

// SnapshotKey returns the object key of a snapshot taken at t.
func SnapshotKey(t time.Time) string {
	return SnapshotPrefix + t.UTC().Format(time.RFC3339) + ".json"
}
