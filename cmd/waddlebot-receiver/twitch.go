package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/waddlebot/core/pkg/config"
	"github.com/waddlebot/core/pkg/receivers"
	"github.com/waddlebot/core/pkg/receivers/twitch"
)

// startTwitchWebhook registers the Twitch EventSub notification callback,
// grounded on the original twitch_module's POST /eventsub/webhook route.
func startTwitchWebhook(mux *http.ServeMux, rec *twitch.Receiver, log *slog.Logger) {
	mux.HandleFunc("/eventsub/webhook", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		challenge, err := rec.EventSub.HandleNotification(
			r.Context(),
			r.Header.Get("Twitch-Eventsub-Message-Id"),
			r.Header.Get("Twitch-Eventsub-Message-Timestamp"),
			r.Header.Get("Twitch-Eventsub-Message-Signature"),
			body,
		)
		if err != nil {
			log.WarnContext(r.Context(), "twitch eventsub notification rejected", "error", err)
			http.Error(w, "invalid notification", http.StatusForbidden)
			return
		}
		if challenge != "" {
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(challenge))
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

// runTwitchChat dials one IRC connection as the configured bot and keeps it
// joined to every channel in channels, reconciling newly attached channels
// on the existing connection rather than reconnecting per channel.
func runTwitchChat(ctx context.Context, rec *twitch.Receiver, creds config.PlatformCredentials, channels *receivers.ChannelSet, publisher receivers.Publisher, log *slog.Logger) {
	accessToken, err := rec.Tokens.AccessToken(ctx, creds.AccountID)
	if err != nil {
		log.ErrorContext(ctx, "waddlebot-receiver: twitch chat token unavailable", "error", err)
		return
	}

	client, err := twitch.Dial(ctx, creds.BotLogin, accessToken, publisher, log)
	if err != nil {
		log.ErrorContext(ctx, "waddlebot-receiver: dial twitch irc", "error", err)
		return
	}
	defer client.Close()

	joined := make(map[string]bool)
	joinNew := func() {
		for _, ch := range channels.Channels() {
			if joined[ch.ChannelID] {
				continue
			}
			if err := client.Join(ch.ChannelID); err != nil {
				log.WarnContext(ctx, "waddlebot-receiver: join twitch channel failed", "channel", ch.ChannelID, "error", err)
				continue
			}
			joined[ch.ChannelID] = true
		}
	}
	joinNew()

	go func() {
		ticker := time.NewTicker(receivers.DefaultChannelRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				joinNew()
			}
		}
	}()

	if err := client.Run(ctx); err != nil && ctx.Err() == nil {
		log.ErrorContext(ctx, "waddlebot-receiver: twitch irc connection dropped", "error", err)
	}
}
