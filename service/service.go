// Package service hosts the long-running HTTP surfaces: the platform API,
// the health endpoint and the Prometheus metrics endpoint.
package service

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum/log"

	"github.com/bruce-robotics/bruce-acceptor/metrics"
	"github.com/bruce-robotics/bruce-acceptor/registry"
	"github.com/bruce-robotics/bruce-acceptor/runner"
	"github.com/bruce-robotics/bruce-acceptor/store"
)

const (
	HealthzHost = "0.0.0.0"
	HealthzPort = "8080"

	MetricsHost = "0.0.0.0"
	MetricsPort = "7300"

	APIHost = "0.0.0.0"
	APIPort = "8000"
)

type Service struct {
	Healthz *HealthzServer
	Metrics *MetricsServer
	API     *APIServer

	apiAddr string
}

// Config selects the listen addresses. Zero values fall back to the package
// defaults.
type Config struct {
	APIHost string
	APIPort string
}

func New(cfg Config, reg *registry.Registry, run *runner.CrossPlatformRunner, st *store.Store, logger log.Logger) *Service {
	host, port := cfg.APIHost, cfg.APIPort
	if host == "" {
		host = APIHost
	}
	if port == "" {
		port = APIPort
	}
	return &Service{
		Healthz: &HealthzServer{},
		Metrics: &MetricsServer{},
		API:     NewAPIServer(reg, run, st, logger),
		apiAddr: net.JoinHostPort(host, port),
	}
}

func (s *Service) Start(ctx context.Context) {
	log.Info("service starting")

	go func() {
		addr := net.JoinHostPort(HealthzHost, HealthzPort)
		log.Info("starting healthz server", "addr", addr)
		if err := s.Healthz.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("error starting healthz server", "err", err)
			metrics.RecordError("service")
		}
	}()

	go func() {
		addr := net.JoinHostPort(MetricsHost, MetricsPort)
		log.Info("starting metrics server", "addr", addr)
		if err := s.Metrics.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("error starting metrics server", "err", err)
			metrics.RecordError("service")
		}
	}()

	go func() {
		log.Info("starting api server", "addr", s.apiAddr)
		if err := s.API.Start(ctx, s.apiAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("error starting api server", "err", err)
			metrics.RecordError("service")
		}
	}()

	log.Info("service started")
}

func (s *Service) Shutdown() {
	log.Info("service shutting down")

	_ = s.API.Shutdown()
	log.Info("api stopped")

	_ = s.Healthz.Shutdown()
	log.Info("healthz stopped")

	_ = s.Metrics.Shutdown()
	log.Info("metrics stopped")

	log.Info("service stopped")
}
