package gameserver

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// BrokerServiceName is the health service name reported for the broker.
const BrokerServiceName = "duelbroker.Broker"

// AdminServer serves the standard gRPC health protocol for the broker.
type AdminServer struct {
	addr   string
	logger *zap.Logger
	server *grpc.Server
	health *health.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewAdminServer creates an AdminServer for addr. Both the overall and the
// broker service start as NOT_SERVING.
//
// Precondition: logger must be non-nil.
func NewAdminServer(addr string, logger *zap.Logger) *AdminServer {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(BrokerServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &AdminServer{
		addr:   addr,
		logger: logger,
		server: srv,
		health: hs,
	}
}

// Listen binds the admin address. Start calls it if it has not been called.
func (a *AdminServer) Listen() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return nil
	}
	lis, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.addr, err)
	}
	a.listener = lis
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (a *AdminServer) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Start serves health checks until Stop. It blocks.
func (a *AdminServer) Start() error {
	if err := a.Listen(); err != nil {
		return err
	}
	a.mu.Lock()
	lis := a.listener
	a.mu.Unlock()

	a.logger.Info("admin gRPC server listening", zap.String("addr", lis.Addr().String()))
	if err := a.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serving admin gRPC: %w", err)
	}
	return nil
}

// SetServing flips the reported status of the broker and the server overall.
func (a *AdminServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	a.health.SetServingStatus("", status)
	a.health.SetServingStatus(BrokerServiceName, status)
	a.logger.Info("health status changed", zap.Stringer("status", status))
}

// Stop reports NOT_SERVING to watchers and stops the gRPC server.
func (a *AdminServer) Stop() {
	a.health.Shutdown()
	a.server.GracefulStop()
}
