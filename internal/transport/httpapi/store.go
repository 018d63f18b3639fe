package httpapi

import (
	"sync/atomic"
	"time"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/persistence/indexdb"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/persistence/snapshot"
)

// Current is the world the API answers from. It is replaced wholesale on
// every reload and never mutated afterwards.
type Current struct {
	Path     string
	Snap     snapshot.Snapshot
	Revision indexdb.Revision
	LoadedAt time.Time
}

// Store publishes the latest Current to concurrent handlers.
type Store struct {
	p atomic.Pointer[Current]
}

func (s *Store) Load() *Current { return s.p.Load() }

func (s *Store) Set(c *Current) { s.p.Store(c) }
