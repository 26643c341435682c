// Package conn owns the lifecycle of a backend connection: establish,
// health-check, tear down. Fallback policy after a failed connect belongs to
// the adapter layer, never to the managers themselves.
package conn

import (
	"context"
	"sync"
	"time"

	"github.com/bruce-robotics/bruce-acceptor/types"
)

const (
	// DialTimeout bounds a remote handshake.
	DialTimeout = 10 * time.Second
	// ProbeTimeout bounds a liveness round-trip.
	ProbeTimeout = 5 * time.Second
)

// Manager owns one backend connection.
//
// Connect establishes the backend-specific session; any sub-step failure
// returns an error and leaves state Disconnected. Disconnect is idempotent.
// IsAlive issues a cheap round-trip probe; on failure the manager transitions
// to Degraded and the owner must Connect again before issuing commands.
type Manager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsAlive(ctx context.Context) bool
	State() types.ConnectionState
	LastUpdate() time.Time
}

// state is the mutex-guarded state block shared by the manager
// implementations. Every transition updates the last-update timestamp.
type state struct {
	mu         sync.Mutex
	current    types.ConnectionState
	lastUpdate time.Time
}

func newState() state {
	return state{current: types.ConnectionDisconnected}
}

func (s *state) set(st types.ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = st
	s.lastUpdate = time.Now()
}

func (s *state) get() types.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *state) last() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdate
}
