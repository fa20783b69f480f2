// Package statuscache stores short-lived snapshots of series progress
// for the admin introspection API, backed by the same
// pluggable Cache abstraction the teacher connector used for DICOMweb
// response caching. Adapted from
// internal/cache/{cache,memory,redis}.go: the interface and both
// backends are unchanged in shape, only the key scheme and the stored
// value's meaning moved from query-result bytes to progress snapshots.
package statuscache

import (
	"context"
	"time"
)

// Cache stores opaque byte values behind string keys with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// SeriesKey builds the cache key for one series' progress snapshot.
func SeriesKey(pacsName, seriesInstanceUID string) string {
	return "series:" + pacsName + ":" + seriesInstanceUID
}

// AssociationKey builds the cache key for one association's snapshot.
// Store has no method that reads or writes association snapshots.
func AssociationKey(associationID string) string {
	return "association:" + associationID
}
