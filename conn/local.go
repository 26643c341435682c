package conn

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/bruce-robotics/bruce-acceptor/types"
)

// LocalManager manages a local-process backend. "Connecting" here means
// verifying the working directory exists and, when a probe binary is
// configured (e.g. gazebo), that it resolves on PATH.
type LocalManager struct {
	workDir     string
	probeBinary string
	log         log.Logger
	state       state
}

// NewLocalManager creates a manager rooted at workDir. probeBinary may be
// empty to skip the binary check.
func NewLocalManager(workDir, probeBinary string, logger log.Logger) *LocalManager {
	if logger == nil {
		logger = log.New()
	}
	return &LocalManager{
		workDir:     workDir,
		probeBinary: probeBinary,
		log:         logger.New("conn", "local", "workdir", workDir),
		state:       newState(),
	}
}

func (m *LocalManager) Connect(ctx context.Context) error {
	m.state.set(types.ConnectionConnecting)

	if m.workDir != "" {
		info, err := os.Stat(m.workDir)
		if err != nil || !info.IsDir() {
			m.state.set(types.ConnectionDisconnected)
			return errors.Errorf("working directory %q is not usable", m.workDir)
		}
	}

	if m.probeBinary != "" {
		probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
		defer cancel()
		out, err := exec.CommandContext(probeCtx, "which", m.probeBinary).Output()
		if err != nil {
			m.state.set(types.ConnectionDisconnected)
			return errors.Wrapf(err, "%s is not installed", m.probeBinary)
		}
		m.log.Info("probe binary resolved", "binary", m.probeBinary, "path", strings.TrimSpace(string(out)))
	}

	m.state.set(types.ConnectionConnected)
	m.log.Info("local backend connected")
	return nil
}

// Disconnect is a no-op release; safe to call repeatedly.
func (m *LocalManager) Disconnect() error {
	m.state.set(types.ConnectionDisconnected)
	return nil
}

// IsAlive re-checks the working directory. A local backend only degrades if
// its workspace disappears underneath it.
func (m *LocalManager) IsAlive(ctx context.Context) bool {
	if m.state.get() != types.ConnectionConnected {
		return false
	}
	if m.workDir != "" {
		if info, err := os.Stat(m.workDir); err != nil || !info.IsDir() {
			m.state.set(types.ConnectionDegraded)
			return false
		}
	}
	m.state.set(types.ConnectionConnected)
	return true
}

func (m *LocalManager) State() types.ConnectionState { return m.state.get() }
func (m *LocalManager) LastUpdate() time.Time        { return m.state.last() }
