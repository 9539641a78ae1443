package repo

import (
	"context"

	"gorm.io/gorm"
)

// ErrNotFound is returned by every KV implementation for a missing key.
var ErrNotFound = gorm.ErrRecordNotFound

// KV is a namespaced byte store. Implementations must be safe for concurrent
// use.
type KV interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace, key string) error
	DeleteNamespace(ctx context.Context, namespace string) error
}
