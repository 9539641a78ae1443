package services

import (
	"time"

	"github.com/tbourn/go-storefront-client/internal/bus"
	"github.com/tbourn/go-storefront-client/internal/cache"
	"github.com/tbourn/go-storefront-client/internal/repo"
	"github.com/tbourn/go-storefront-client/internal/transport"
)

// Deps are the collaborators shared by the resource-backed services.
type Deps struct {
	Client *transport.Client
	// KV is the durable store holding the local copies.
	KV       repo.KV
	Bus      *bus.Bus
	Identity Identity
	// SnapshotReads also persists successful remote reads locally.
	SnapshotReads bool
	// Now is the clock of every cache; nil means time.Now.
	Now func() time.Time
}

func (d Deps) cacheOptions() []cache.Option {
	if d.Now == nil {
		return nil
	}
	return []cache.Option{cache.WithClock(d.Now)}
}
