// Package domain defines the data shapes exchanged with the remote storefront
// API and the persistence model of the client-side key-value store. Shapes
// that cross a trust boundary (remote payloads, fallback snapshots) implement
// Normalize and/or Validate so callers never handle an unchecked value.
package domain

import "time"

// KVEntry is one record of the durable key-value store. Every persisted
// client-side key (credentials, guest session, fallback collections) is a row
// keyed by (namespace, key) holding a canonical JSON value.
type KVEntry struct {
	Namespace string    `gorm:"type:varchar(64);primaryKey"`
	Key       string    `gorm:"type:varchar(191);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

// TableName implements the GORM tabler interface.
func (KVEntry) TableName() string { return "kv_entries" }

// Normalizer is implemented by shapes that canonicalize themselves after
// decoding (clamping, recomputing derived fields).
type Normalizer interface {
	Normalize()
}

// Validator is implemented by shapes that can reject a structurally decoded
// but semantically invalid value.
type Validator interface {
	Validate() error
}

// Check normalizes v and then validates it, for whichever of the two
// interfaces v implements.
func Check(v any) error {
	if n, ok := v.(Normalizer); ok {
		n.Normalize()
	}
	if c, ok := v.(Validator); ok {
		return c.Validate()
	}
	return nil
}
