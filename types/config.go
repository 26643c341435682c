package types

import (
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-]*[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9\-]*[a-zA-Z0-9])?)*$`)

// ConnectionConfig describes how to reach a remote-session backend.
type ConnectionConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

// PlatformConfig describes one platform entry in platforms.yaml.
type PlatformConfig struct {
	Kind               BackendKind       `yaml:"kind"`
	Name               string            `yaml:"name"`
	Enabled            bool              `yaml:"enabled"`
	Simulation         bool              `yaml:"simulation"`          // configured stand-in backend, no real side effects
	FallbackSimulation bool              `yaml:"fallback_simulation"` // permit one simulated retry after a failed real connect
	Connection         ConnectionConfig  `yaml:"connection"`
	WorkDir            string            `yaml:"workdir"`
	StatusProcesses    []string          `yaml:"status_processes"`
	LongRunning        []string          `yaml:"long_running"`
	Variables          map[string]string `yaml:"variables"`
}

// Validate checks a platform entry for structural problems. Remote platforms
// need a reachable host descriptor; local platforms need a working directory.
func (p *PlatformConfig) Validate(id string) error {
	switch p.Kind {
	case BackendRobot, BackendGazebo:
	default:
		return errors.Errorf("platform [%s] has unknown kind %q", id, p.Kind)
	}
	if p.Name == "" {
		return errors.Errorf("platform [%s] name is missing", id)
	}
	if p.Kind == BackendRobot && !p.Simulation {
		c := p.Connection
		if c.Host == "" {
			return errors.Errorf("platform [%s] ssh host is missing", id)
		}
		if net.ParseIP(c.Host) == nil && !hostnameRegex.MatchString(c.Host) {
			return errors.Errorf("platform [%s] invalid host %q", id, c.Host)
		}
		if c.Port != 0 && !validPort(c.Port) {
			return errors.Errorf("platform [%s] invalid port %d", id, c.Port)
		}
		if c.Username == "" {
			return errors.Errorf("platform [%s] ssh username is missing", id)
		}
	}
	return nil
}

// Addr returns the dial address, defaulting the port to 22.
func (c ConnectionConfig) Addr() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

func validPort(port int) bool {
	return port >= 1 && port <= 65535
}

// PlatformsConfig is the top-level shape of platforms.yaml.
type PlatformsConfig struct {
	Platforms map[string]*PlatformConfig `yaml:"platforms"`
}

// Validate checks every configured platform.
func (c *PlatformsConfig) Validate() error {
	if len(c.Platforms) == 0 {
		return errors.New("no platforms configured")
	}
	for id, p := range c.Platforms {
		if p == nil {
			return errors.Errorf("platform [%s] is empty", id)
		}
		if err := p.Validate(id); err != nil {
			return err
		}
	}
	return nil
}
