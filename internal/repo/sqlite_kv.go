package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-storefront-client/internal/domain"
)

// SQLiteKV stores entries in the kv_entries table.
type SQLiteKV struct {
	db *gorm.DB
}

// NewSQLiteKV wraps a migrated database handle.
func NewSQLiteKV(db *gorm.DB) *SQLiteKV { return &SQLiteKV{db: db} }

// Get returns the stored value or ErrNotFound.
func (s *SQLiteKV) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var e domain.KVEntry
	err := s.db.WithContext(ctx).
		Where(map[string]any{"namespace": namespace, "key": key}).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(e.Value), nil
}

// Set upserts the value.
func (s *SQLiteKV) Set(ctx context.Context, namespace, key string, value []byte) error {
	e := domain.KVEntry{
		Namespace: namespace,
		Key:       key,
		Value:     string(value),
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
}

// Delete removes the key; deleting a missing key is not an error.
func (s *SQLiteKV) Delete(ctx context.Context, namespace, key string) error {
	return s.db.WithContext(ctx).
		Where(map[string]any{"namespace": namespace, "key": key}).
		Delete(&domain.KVEntry{}).Error
}

// DeleteNamespace removes every key of namespace.
func (s *SQLiteKV) DeleteNamespace(ctx context.Context, namespace string) error {
	return s.db.WithContext(ctx).
		Where("namespace = ?", namespace).
		Delete(&domain.KVEntry{}).Error
}

// Close releases the underlying connection pool.
func (s *SQLiteKV) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
