package api

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestGRPCHealthMirrorsCheck(t *testing.T) {
	var failing atomic.Bool
	check := func(context.Context) error {
		if failing.Load() {
			return errors.New("db down")
		}
		return nil
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := NewGRPCHealthServer(check, 20*time.Millisecond, nil)
	go func() { _ = srv.Serve(ctx, lis) }()
	defer srv.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	waitFor := func(want healthpb.HealthCheckResponse_ServingStatus) {
		t.Helper()
		deadline := time.Now().Add(3 * time.Second)
		for {
			resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: HealthServiceName})
			if err == nil && resp.Status == want {
				return
			}
			if time.Now().After(deadline) {
				t.Fatalf("status never became %v (last %v, err %v)", want, resp, err)
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

	waitFor(healthpb.HealthCheckResponse_SERVING)
	failing.Store(true)
	waitFor(healthpb.HealthCheckResponse_NOT_SERVING)
}
