// Package grpc serves the gRPC health protocol for load balancers and orchestrators.
package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/example/foodhall/pkg/config"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// OpsServer marks the service SERVING only while every registered check passes.
type OpsServer struct {
	config  *config.Config
	logger  *zap.Logger
	health  *health.Server
	server  *grpc.Server
	service string

	mu       sync.Mutex
	checks   map[string]Check
	interval time.Duration
}

func NewOpsServer(cfg *config.Config, logger *zap.Logger) *OpsServer {
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &OpsServer{
		config:   cfg,
		logger:   logger.Named("ops-server"),
		health:   hs,
		server:   srv,
		service:  cfg.Server.Name,
		checks:   map[string]Check{},
		interval: 15 * time.Second,
	}
}

func (s *OpsServer) AddCheck(name string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// Refresh runs every check once and publishes the combined status.
func (s *OpsServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	s.mu.Lock()
	checks := make(map[string]Check, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	s.mu.Unlock()

	status := healthpb.HealthCheckResponse_SERVING
	for name, check := range checks {
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := check(cctx)
		cancel()
		if err != nil {
			s.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.service, status)
	return status
}

// Start serves until Stop is called, refreshing health in the background.
func (s *OpsServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.GRPC.Host, s.config.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.Refresh(ctx)
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Refresh(ctx)
			}
		}
	}()

	s.logger.Info("Ops server started", zap.String("address", addr))
	return s.server.Serve(lis)
}

func (s *OpsServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
