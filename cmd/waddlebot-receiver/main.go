// waddlebot-receiver is the trigger-receiver composition root from spec.md
// §4.4: it opens the Discord gateway connection, reconciles Twitch IRC and
// Kick Pusher chat connections against the routing table, and serves the
// Slack, Kick, Twitch EventSub, and YouTube PubSubHubbub webhooks — the only
// process that actually publishes normalized platform events onto
// events:inbound. Each platform starts only when its credentials are
// configured in the environment.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/waddlebot/core/pkg/config"
	"github.com/waddlebot/core/pkg/envelope"
	"github.com/waddlebot/core/pkg/healthz"
	"github.com/waddlebot/core/pkg/receivers"
	"github.com/waddlebot/core/pkg/receivers/discord"
	"github.com/waddlebot/core/pkg/receivers/twitch"
	"github.com/waddlebot/core/pkg/storage"
	"github.com/waddlebot/core/pkg/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("waddlebot-receiver: load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.NewClient(ctx, storage.Config{DatabaseURL: cfg.DatabaseURL, ReadReplicaURL: cfg.ReadReplicaURL})
	if err != nil {
		log.Fatalf("waddlebot-receiver: connect storage: %v", err)
	}
	defer db.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("waddlebot-receiver: parse REDIS_URL: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	producer := stream.NewProducer(redisClient)
	publisher := receivers.NewStreamPublisher(producer, "events:inbound")
	logger := slog.Default()

	mux := http.NewServeMux()

	checker := healthz.NewChecker(2 * time.Second)
	checker.Register("database", func(ctx context.Context) error { return db.Pool().Ping(ctx) })
	checker.Register("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	mux.HandleFunc("/healthz", healthz.LivenessHandler())
	mux.HandleFunc("/readyz", checker.ReadinessHandler())

	if creds := cfg.Platform["discord"]; creds.BotToken != "" {
		rec, err := discord.NewReceiver(creds.BotToken, publisher, logger)
		if err != nil {
			log.Fatalf("waddlebot-receiver: build discord receiver: %v", err)
		}
		if err := rec.Open(); err != nil {
			log.Fatalf("waddlebot-receiver: open discord gateway: %v", err)
		}
		defer rec.Close()
		log.Print("waddlebot-receiver: discord gateway connected")
	}

	if creds := cfg.Platform["slack"]; creds.WebhookSecret != "" && creds.BotToken != "" {
		startSlack(mux, creds, publisher, logger)
		log.Print("waddlebot-receiver: slack events webhook registered")
	}

	if creds := cfg.Platform["kick"]; creds.WebhookSecret != "" {
		kickChannels := receivers.NewChannelSet(envelope.PlatformKick, db.Entities, logger)
		go kickChannels.Run(ctx)
		startKickWebhook(mux, creds, kickChannels, publisher, logger)
		go runKickChat(ctx, kickChannels, publisher, logger)
		log.Print("waddlebot-receiver: kick webhook and chat reconciliation started")
	}

	if creds := cfg.Platform["youtube"]; creds.ClientID != "" {
		youtubeChannels := receivers.NewChannelSet(envelope.PlatformYouTube, db.Entities, logger)
		go youtubeChannels.Run(ctx)
		startYouTubeWebhook(mux, youtubeChannels, publisher, logger)
		log.Print("waddlebot-receiver: youtube pubsubhubbub webhook registered")
	}

	if creds := cfg.Platform["twitch"]; creds.ClientID != "" && creds.ClientSecret != "" {
		tokens := twitch.NewTokenManager(db.Tokens, creds.ClientID, creds.ClientSecret, logger)
		rec := twitch.NewReceiver(tokens, creds.WebhookSecret, publisher, logger)
		startTwitchWebhook(mux, rec, logger)
		log.Print("waddlebot-receiver: twitch eventsub webhook registered")

		if creds.BotLogin != "" && creds.AccountID != "" {
			twitchChannels := receivers.NewChannelSet(envelope.PlatformTwitch, db.Entities, logger)
			go twitchChannels.Run(ctx)
			go runTwitchChat(ctx, rec, creds, twitchChannels, publisher, logger)
			log.Print("waddlebot-receiver: twitch irc chat reconciliation started")
		}
	}

	addr := fmt.Sprintf(":%d", cfg.ModulePort)
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("waddlebot-receiver: listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("waddlebot-receiver: server: %v", err)
	}
}
