// waddlebot-reputation runs the reputation scoring service described in
// spec.md §4.3 as a gRPC server: RecordEvent/GetScore, backed by
// pkg/reputation.Engine over Postgres.
package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/waddlebot/core/pkg/authn"
	"github.com/waddlebot/core/pkg/config"
	"github.com/waddlebot/core/pkg/reputation"
	reprpc "github.com/waddlebot/core/pkg/reputation/rpc"
	"github.com/waddlebot/core/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("waddlebot-reputation: load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.NewClient(ctx, storage.Config{DatabaseURL: cfg.DatabaseURL, ReadReplicaURL: cfg.ReadReplicaURL})
	if err != nil {
		log.Fatalf("waddlebot-reputation: connect storage: %v", err)
	}
	defer db.Close()

	engine := reputation.NewEngine(db.Reputation, nil)
	verifier := authn.NewTokenVerifier(cfg.SecretKey)
	impl := reprpc.NewServer(engine, verifier)

	grpcServer := grpc.NewServer()
	reprpc.RegisterService(grpcServer, impl)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	addr := os.Getenv("REPUTATION_ADDR")
	if addr == "" {
		addr = ":9090"
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("waddlebot-reputation: listen on %s: %v", addr, err)
	}

	go func() {
		<-ctx.Done()
		log.Println("waddlebot-reputation: shutting down")
		grpcServer.GracefulStop()
	}()

	log.Printf("waddlebot-reputation: listening on %s", addr)
	if err := grpcServer.Serve(lis); err != nil {
		log.Fatalf("waddlebot-reputation: serve: %v", err)
	}
}
