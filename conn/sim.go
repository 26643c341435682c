package conn

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/bruce-robotics/bruce-acceptor/types"
)

// connectDelay mimics the establishment latency of a real backend so the
// stand-in behaves plausibly under the same orchestration.
const connectDelay = 100 * time.Millisecond

// SimManager is the configured-simulation stand-in: connects unconditionally
// and stays alive until disconnected. It carries no real session.
type SimManager struct {
	log   log.Logger
	state state
}

func NewSimManager(logger log.Logger) *SimManager {
	if logger == nil {
		logger = log.New()
	}
	return &SimManager{
		log:   logger.New("conn", "sim"),
		state: newState(),
	}
}

func (m *SimManager) Connect(ctx context.Context) error {
	m.state.set(types.ConnectionConnecting)
	select {
	case <-time.After(connectDelay):
	case <-ctx.Done():
		m.state.set(types.ConnectionDisconnected)
		return ctx.Err()
	}
	m.state.set(types.ConnectionConnected)
	m.log.Info("simulated backend connected")
	return nil
}

func (m *SimManager) Disconnect() error {
	m.state.set(types.ConnectionDisconnected)
	return nil
}

func (m *SimManager) IsAlive(ctx context.Context) bool {
	return m.state.get() == types.ConnectionConnected
}

func (m *SimManager) State() types.ConnectionState { return m.state.get() }
func (m *SimManager) LastUpdate() time.Time        { return m.state.last() }
