// internal/domain/post/store.go
package post

import "context"

// Store is the key-value persistence the bot runs on: flat string hashes plus
// sorted sets scored by creation time. Calls are independent; there are no
// transactions across them.
type Store interface {
	// GetFields returns an empty map when the key does not exist.
	GetFields(ctx context.Context, key string) (map[string]string, error)
	SetFields(ctx context.Context, key string, fields map[string]string) error

	AddToIndex(ctx context.Context, index, member string, score int64) error
	RemoveFromIndex(ctx context.Context, index, member string) error
	// ScanIndex lists members ordered by ascending score.
	ScanIndex(ctx context.Context, index string) ([]string, error)
	IndexContains(ctx context.Context, index, member string) (bool, error)

	// ScanKeys lists hash keys with the given prefix.
	ScanKeys(ctx context.Context, prefix string) ([]string, error)
}

// BulkIndexRemover is implemented by stores that can drop a member from
// several indexes in one round trip.
type BulkIndexRemover interface {
	RemoveFromIndexes(ctx context.Context, indexes []string, member string) error
}
