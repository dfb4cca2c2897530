package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/waddlebot/core/pkg/config"
	"github.com/waddlebot/core/pkg/envelope"
	"github.com/waddlebot/core/pkg/receivers"
	"github.com/waddlebot/core/pkg/receivers/slack"
)

// startSlack registers the Slack Events API webhook. The entity_id a given
// notification belongs to isn't known until the body is parsed, so the
// handler peeks team_id/event.channel out of the raw JSON before handing the
// body to slack.Receiver.HandleEvent.
func startSlack(mux *http.ServeMux, creds config.PlatformCredentials, publisher receivers.Publisher, log *slog.Logger) {
	client := slack.NewClient(creds.BotToken)
	rec := slack.NewReceiver(creds.WebhookSecret, client, publisher, log)

	mux.HandleFunc("/webhooks/slack/events", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		var peek struct {
			TeamID string `json:"team_id"`
			Event  struct {
				Channel string `json:"channel"`
			} `json:"event"`
		}
		_ = json.Unmarshal(body, &peek)
		entityID := envelope.EntityID(envelope.PlatformSlack, peek.TeamID, peek.Event.Channel)

		challenge, err := rec.HandleEvent(r.Context(), entityID, r.Header.Get("X-Slack-Request-Timestamp"), r.Header.Get("X-Slack-Signature"), body)
		if err != nil {
			log.WarnContext(r.Context(), "slack event rejected", "error", err)
			http.Error(w, "invalid request", http.StatusUnauthorized)
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
