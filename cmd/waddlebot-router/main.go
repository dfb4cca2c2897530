// waddlebot-router is the router module's composition root: it wires
// storage, session, rate-limit, reserved-command, reputation-rpc, and
// dispatch collaborators into a router.Router, an action-pusher worker pool,
// an overlay broadcaster, and exposes them over the REST API described in
// spec.md §6.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/waddlebot/core/pkg/actionpush"
	"github.com/waddlebot/core/pkg/api"
	"github.com/waddlebot/core/pkg/authn"
	"github.com/waddlebot/core/pkg/command"
	"github.com/waddlebot/core/pkg/config"
	"github.com/waddlebot/core/pkg/healthz"
	"github.com/waddlebot/core/pkg/overlay"
	"github.com/waddlebot/core/pkg/ratelimit"
	reprpc "github.com/waddlebot/core/pkg/reputation/rpc"
	"github.com/waddlebot/core/pkg/router"
	"github.com/waddlebot/core/pkg/session"
	"github.com/waddlebot/core/pkg/storage"
	"github.com/waddlebot/core/pkg/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("waddlebot-router: load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.NewClient(ctx, storage.Config{DatabaseURL: cfg.DatabaseURL, ReadReplicaURL: cfg.ReadReplicaURL})
	if err != nil {
		log.Fatalf("waddlebot-router: connect storage: %v", err)
	}
	defer db.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("waddlebot-router: parse REDIS_URL: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	sessions := session.NewManager(redisClient, session.DefaultTTL)
	limiter := ratelimit.New(redisClient, nil)
	reserved, err := command.LoadReservedTable()
	if err != nil {
		log.Fatalf("waddlebot-router: load reserved command table: %v", err)
	}

	repClient, err := reprpc.Dial(reservedAddr(os.Getenv("REPUTATION_ADDR")))
	if err != nil {
		log.Fatalf("waddlebot-router: dial reputation service: %v", err)
	}
	defer repClient.Close()

	verifier := authn.NewTokenVerifier(cfg.SecretKey)
	issuer := authn.NewTokenIssuer(cfg.SecretKey, 5*time.Minute)

	httpDispatcher := router.NewHTTPDispatcher(http.DefaultClient, func() (string, error) {
		return issuer.Issue("waddlebot-router")
	})
	grpcDispatcher := router.NewGRPCDispatcher()

	dispatchers := map[storage.Transport]router.Dispatcher{
		storage.TransportContainer:   httpDispatcher,
		storage.TransportREST:        httpDispatcher,
		storage.TransportLambda:      httpDispatcher,
		storage.TransportGCPFunction: httpDispatcher,
		storage.TransportOpenWhisk:   httpDispatcher,
		storage.TransportGRPC:        grpcDispatcher,
	}

	producer := stream.NewProducer(redisClient)
	actionPusher := actionpush.NewPusher(producer)

	rtr := router.New(router.Config{
		DefaultRateLimit: ratelimit.Limit{Count: int64(cfg.DefaultRateLimitPerMinute), Window: time.Minute},
		EntityCacheTTL:   cfg.EntityCacheTTL,
	}, router.Deps{
		Entities:    db.Entities,
		Commands:    db.Commands,
		Sessions:    sessions,
		Limiter:     limiter,
		Reserved:    reserved,
		Dispatchers: dispatchers,
		Reputation:  repClient,
		DLQ:         producer,
		Actions:     actionPusher,
	})

	checker := healthz.NewChecker(2 * time.Second)
	checker.Register("database", func(ctx context.Context) error {
		return db.Pool().Ping(ctx)
	})
	checker.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})

	server := api.NewServer(rtr, db.Commands, verifier, checker)
	server.SetResponseCorrelation(sessions, actionPusher)

	// Action pusher: consumes events:actions and dispatches to each
	// platform's moderation/chat-reply client, per spec.md §4.1/§4.3.
	actionWorker := actionpush.NewWorker(map[string]actionpush.PlatformActionClient{
		"twitch":  actionpush.NewHTTPActionClient(http.DefaultClient, os.Getenv("TWITCH_ACTION_URL")),
		"discord": actionpush.NewHTTPActionClient(http.DefaultClient, os.Getenv("DISCORD_ACTION_URL")),
		"slack":   actionpush.NewHTTPActionClient(http.DefaultClient, os.Getenv("SLACK_ACTION_URL")),
	}, nil)
	actionPool := stream.NewPool(redisClient, stream.Config{
		StreamKey:     actionpush.ActionStream,
		Group:         "action-pushers",
		Consumer:      "waddlebot-router",
		BatchSize:     int64(cfg.StreamBatchSize),
		BlockTime:     cfg.StreamBlockTime,
		MaxConcurrent: cfg.StreamConsumerCount,
		MaxRetries:    int64(cfg.StreamMaxRetries),
		DLQStreamKey:  stream.StreamKey("events:dlq", actionpush.ActionStream),
	}, cfg.StreamConsumerCount, actionWorker.Handle, nil)

	// Overlay broadcaster: fans events:responses out to subscribed
	// browser-source clients over WebSocket.
	hub := overlay.NewHub(nil)
	overlayConsumer := overlay.NewConsumer(hub, "response")
	overlayPool := stream.NewPool(redisClient, stream.Config{
		StreamKey:     "events:responses",
		Group:         "overlay",
		Consumer:      "waddlebot-router",
		BatchSize:     int64(cfg.StreamBatchSize),
		BlockTime:     cfg.StreamBlockTime,
		MaxConcurrent: cfg.StreamConsumerCount,
		MaxRetries:    int64(cfg.StreamMaxRetries),
		DLQStreamKey:  stream.StreamKey("events:dlq", "events:responses"),
	}, cfg.StreamConsumerCount, overlayConsumer.Handle, nil)

	mux := http.NewServeMux()
	mux.Handle("/overlay/ws", overlay.ServeWS(hub))
	overlayServer := &http.Server{Addr: ":" + os.Getenv("OVERLAY_PORT"), Handler: mux}
	if overlayServer.Addr == ":" {
		overlayServer.Addr = ":8081"
	}

	if cfg.StreamPipelineEnabled {
		actionPool.Start(ctx)
		defer actionPool.Stop()
		overlayPool.Start(ctx)
		defer overlayPool.Stop()
	}

	go func() {
		if err := overlayServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("waddlebot-router: overlay server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		overlayServer.Shutdown(shutdownCtx)
	}()

	addr := fmt.Sprintf(":%d", cfg.ModulePort)
	log.Printf("waddlebot-router: listening on %s", addr)
	if err := server.Start(ctx, addr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("waddlebot-router: server: %v", err)
	}
}

func reservedAddr(addr string) string {
	if addr == "" {
		return "localhost:9090"
	}
	return addr
}
