package conn

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"

	"github.com/bruce-robotics/bruce-acceptor/types"
)

const probeCommand = "echo connection-test"
const probeReply = "connection-test"

// SSHManager manages an authenticated shell session against a remote robot.
type SSHManager struct {
	cfg types.ConnectionConfig
	log log.Logger

	state state

	mu     sync.Mutex
	client *ssh.Client
}

// NewSSHManager creates a manager for the given remote descriptor. No
// connection is attempted until Connect.
func NewSSHManager(cfg types.ConnectionConfig, logger log.Logger) *SSHManager {
	if cfg.Timeout == 0 {
		cfg.Timeout = DialTimeout
	}
	if logger == nil {
		logger = log.New()
	}
	return &SSHManager{
		cfg:   cfg,
		log:   logger.New("conn", "ssh", "host", cfg.Host),
		state: newState(),
	}
}

// Connect dials the remote host, authenticates, and confirms the shell is
// responsive with a trivial echo round-trip. Failure at any sub-step leaves
// the manager Disconnected; it never falls back to a substitute mode.
func (m *SSHManager) Connect(ctx context.Context) error {
	m.state.set(types.ConnectionConnecting)

	clientCfg := &ssh.ClientConfig{
		User:            m.cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(m.cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // robots live on a trusted bench network
		Timeout:         m.cfg.Timeout,
	}

	addr := m.cfg.Addr()
	m.log.Info("dialing remote shell", "addr", addr)

	client, err := ssh.Dial("tcp", addr, clientCfg)
	if err != nil {
		m.state.set(types.ConnectionDisconnected)
		return errors.Wrapf(err, "ssh dial %s failed", addr)
	}

	// Handshake succeeded; confirm the shell actually answers.
	out, err := runWithTimeout(ctx, client, probeCommand, ProbeTimeout)
	if err != nil || strings.TrimSpace(out) != probeReply {
		client.Close()
		m.state.set(types.ConnectionDisconnected)
		if err == nil {
			err = errors.Errorf("unexpected probe reply %q", strings.TrimSpace(out))
		}
		return errors.Wrap(err, "shell probe failed")
	}

	m.mu.Lock()
	m.client = client
	m.mu.Unlock()
	m.state.set(types.ConnectionConnected)
	m.log.Info("remote shell connected", "addr", addr)
	return nil
}

// Disconnect releases the session. Safe to call when already disconnected.
func (m *SSHManager) Disconnect() error {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.mu.Unlock()

	if client != nil {
		if err := client.Close(); err != nil {
			m.log.Warn("error closing ssh client", "err", err)
		}
	}
	m.state.set(types.ConnectionDisconnected)
	return nil
}

// IsAlive issues a short echo probe. On failure the manager transitions to
// Degraded; callers must reconnect before issuing further commands.
func (m *SSHManager) IsAlive(ctx context.Context) bool {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	if client == nil || m.state.get() != types.ConnectionConnected {
		return false
	}

	out, err := runWithTimeout(ctx, client, "echo alive", ProbeTimeout)
	if err != nil || strings.TrimSpace(out) != "alive" {
		m.log.Warn("liveness probe failed", "err", err)
		m.state.set(types.ConnectionDegraded)
		return false
	}
	m.state.set(types.ConnectionConnected)
	return true
}

func (m *SSHManager) State() types.ConnectionState { return m.state.get() }
func (m *SSHManager) LastUpdate() time.Time        { return m.state.last() }

// Client returns the live ssh client, or nil when disconnected. The command
// executor resolves the client through this accessor so a reconnect is picked
// up transparently.
func (m *SSHManager) Client() *ssh.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}

// runWithTimeout runs one command on a fresh session, closing the session
// forcibly when the bound expires so the call never blocks unbounded.
func runWithTimeout(ctx context.Context, client *ssh.Client, command string, timeout time.Duration) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", errors.Wrap(err, "open session")
	}

	type reply struct {
		out []byte
		err error
	}
	done := make(chan reply, 1)
	go func() {
		out, err := session.CombinedOutput(command)
		done <- reply{out, err}
	}()

	select {
	case r := <-done:
		session.Close()
		return string(r.out), r.err
	case <-time.After(timeout):
		session.Close()
		return "", errors.Errorf("probe %q timed out after %s", command, timeout)
	case <-ctx.Done():
		session.Close()
		return "", ctx.Err()
	}
}
