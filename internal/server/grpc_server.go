package server

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/oggyb/campusknot/internal/config"
)

// GRPCServer is the admin endpoint: health checks and reflection.
type GRPCServer struct {
	server          *grpc.Server
	addr            string
	shutdownTimeout time.Duration
	log             *slog.Logger
}

const defaultGRPCShutdownTimeout = 5 * time.Second

// NewGRPCServer builds a gRPC server and registers all provided services
func NewGRPCServer(cfg config.GRPCConfig, log *slog.Logger, registrars ...Registrar) *GRPCServer {
	s := grpc.NewServer()

	for _, r := range registrars {
		r.Register(s)
	}

	// enable reflection for easier debugging with grpcurl
	reflection.Register(s)

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultGRPCShutdownTimeout
	}
	return &GRPCServer{server: s, addr: net.JoinHostPort(cfg.Host, cfg.Port), shutdownTimeout: timeout, log: log}
}

// ListenAndServe listens on the configured address and blocks serving.
func (s *GRPCServer) ListenAndServe() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(lis)
}

// Serve blocks serving on lis until Stop.
func (s *GRPCServer) Serve(lis net.Listener) error {
	s.log.Info("starting gRPC server", "addr", lis.Addr().String())
	if err := s.server.Serve(lis); err != nil {
		return fmt.Errorf("grpc server: %w", err)
	}
	return nil
}

// Stop drains open RPCs and stops the server. Streams still open after the
// shutdown timeout (health Watch, for one) are cut.
func (s *GRPCServer) Stop() {
	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.shutdownTimeout):
		s.log.Warn("gRPC graceful stop timed out, forcing", "timeout", s.shutdownTimeout)
		s.server.Stop()
		<-done
	}
	s.log.Info("gRPC server stopped")
}
