package server_test

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/oggyb/campusknot/internal/config"
	"github.com/oggyb/campusknot/internal/logger"
	"github.com/oggyb/campusknot/internal/server"
)

func dialBuf(t *testing.T, lis *bufconn.Listener) healthpb.HealthClient {
	t.Helper()
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func TestHealthRegistrar_FollowsPing(t *testing.T) {
	var failing atomic.Bool
	hr := server.NewHealthRegistrar(func(context.Context) error {
		if failing.Load() {
			return errors.New("db down")
		}
		return nil
	}, time.Hour)

	srv := server.NewGRPCServer(config.GRPCConfig{}, logger.Discard(), hr)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client := dialBuf(t, lis)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, hr.Check(ctx))
	res, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, res.GetStatus())

	failing.Store(true)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, hr.Check(ctx))
	res, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, res.GetStatus())
}

func TestGRPCServer_StopCutsOpenWatch(t *testing.T) {
	hr := server.NewHealthRegistrar(func(context.Context) error { return nil }, time.Hour)
	srv := server.NewGRPCServer(config.GRPCConfig{ShutdownTimeout: 100 * time.Millisecond}, logger.Discard(), hr)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()

	client := dialBuf(t, lis)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := client.Watch(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	_, err = stream.Recv()
	require.NoError(t, err)

	stopped := make(chan struct{})
	go func() {
		srv.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop hung on an open Watch stream")
	}
}

func TestHTTPServer_ShutdownStopsStart(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := server.NewHTTPServer(config.HTTPConfig{Host: "127.0.0.1", Port: "0", ShutdownTimeout: time.Second}, gin.New(), logger.Discard())
	assert.Equal(t, "127.0.0.1:0", srv.Addr())

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	require.Eventually(t, func() bool {
		return srv.Shutdown(context.Background()) == nil
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}
