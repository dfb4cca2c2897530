package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/waddlebot/core/pkg/config"
	"github.com/waddlebot/core/pkg/envelope"
	"github.com/waddlebot/core/pkg/receivers"
	"github.com/waddlebot/core/pkg/receivers/kick"
)

// startKickWebhook registers the Kick event webhook, grounded on the
// original kick_module_flask's POST /webhook/kick route and its
// X-Kick-Signature header.
func startKickWebhook(mux *http.ServeMux, creds config.PlatformCredentials, channels *receivers.ChannelSet, publisher receivers.Publisher, log *slog.Logger) {
	rec := kick.NewWebhookReceiver(creds.WebhookSecret, publisher, log)

	mux.HandleFunc("/webhook/kick", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		var peek struct {
			BroadcasterUserID string `json:"broadcaster_user_id"`
		}
		_ = json.Unmarshal(body, &peek)

		entityID := resolveKickEntityID(channels, peek.BroadcasterUserID)
		if err := rec.HandleEvent(r.Context(), entityID, r.Header.Get("X-Kick-Signature"), body); err != nil {
			log.WarnContext(r.Context(), "kick webhook rejected", "error", err)
			http.Error(w, "invalid webhook", http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

// resolveKickEntityID maps a broadcaster_user_id to the entity_id already
// attached in the routing table, falling back to a self-referential
// server_id/channel_id pair for broadcasters not yet attached anywhere.
func resolveKickEntityID(channels *receivers.ChannelSet, broadcasterUserID string) string {
	for _, ch := range channels.Channels() {
		if ch.ChannelID == broadcasterUserID {
			return ch.EntityID
		}
	}
	return envelope.EntityID(envelope.PlatformKick, broadcasterUserID, broadcasterUserID)
}

// runKickChat dials one Pusher chat connection per attached chatroom
// (Kick, unlike Twitch IRC, gives each chatroom its own socket subscription)
// and reconciles newly discovered channels every refresh interval.
//
// The channel_id stored in the routing table is used directly as Kick's
// chatroomID: storage carries no dedicated chatroom-id column, so this
// assumes the operator attaches entities using the chatroom id.
func runKickChat(ctx context.Context, channels *receivers.ChannelSet, publisher receivers.Publisher, log *slog.Logger) {
	var mu sync.Mutex
	dialed := make(map[string]context.CancelFunc)

	dialNew := func() {
		mu.Lock()
		defer mu.Unlock()
		for _, ch := range channels.Channels() {
			if _, ok := dialed[ch.ChannelID]; ok {
				continue
			}
			chCtx, cancel := context.WithCancel(ctx)
			dialed[ch.ChannelID] = cancel
			go runKickChatroom(chCtx, ch.ChannelID, ch.ServerID, ch.ChannelID, publisher, log)
		}
	}

	dialNew()
	ticker := time.NewTicker(receivers.DefaultChannelRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dialNew()
		}
	}
}

func runKickChatroom(ctx context.Context, chatroomID, serverID, channelID string, publisher receivers.Publisher, log *slog.Logger) {
	client, err := kick.Dial(ctx, chatroomID, serverID, channelID, publisher, log)
	if err != nil {
		log.ErrorContext(ctx, "waddlebot-receiver: dial kick chatroom", "chatroom_id", chatroomID, "error", err)
		return
	}
	defer client.Close()

	if err := client.Run(ctx); err != nil && ctx.Err() == nil {
		log.ErrorContext(ctx, "waddlebot-receiver: kick chatroom connection dropped", "chatroom_id", chatroomID, "error", err)
	}
}
