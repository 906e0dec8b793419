package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/log"

	"github.com/Aswintechie/ttnn-performance-dashboard/metrics"
)

const (
	DefaultHost        = "0.0.0.0"
	DefaultHealthzPort = 8080
	DefaultMetricsPort = 7300
)

type Config struct {
	Host        string
	HealthzPort int
	MetricsPort int
	Log         log.Logger
}

type Service struct {
	Healthz *HealthzServer
	Metrics *MetricsServer

	cfg Config
	log log.Logger
}

func New(cfg Config) *Service {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	return &Service{
		Healthz: &HealthzServer{log: cfg.Log},
		Metrics: &MetricsServer{},
		cfg:     cfg,
		log:     cfg.Log,
	}
}

func (s *Service) HealthzAddr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.HealthzPort))
}

func (s *Service) MetricsAddr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.MetricsPort))
}

func (s *Service) Start(ctx context.Context) {
	s.log.Info("service starting")

	go func() {
		addr := s.HealthzAddr()
		s.log.Info("starting healthz server", "addr", addr)
		if err := s.Healthz.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("error starting healthz server", "err", err)
			metrics.RecordErrorDetails("healthz_server", err)
		}
	}()

	go func() {
		addr := s.MetricsAddr()
		s.log.Info("starting metrics server", "addr", addr)
		if err := s.Metrics.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("error starting metrics server", "err", err)
			metrics.RecordErrorDetails("metrics_server", err)
		}
	}()

	s.log.Info("service started")
}

func (s *Service) Shutdown() {
	s.log.Info("service shutting down")

	_ = s.Healthz.Shutdown()
	s.log.Info("healthz stopped")

	_ = s.Metrics.Shutdown()
	s.log.Info("metrics stopped")

	s.log.Info("service stopped")
}
