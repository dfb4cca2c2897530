package main

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/waddlebot/core/pkg/envelope"
	"github.com/waddlebot/core/pkg/receivers"
	"github.com/waddlebot/core/pkg/receivers/youtube"
)

// startYouTubeWebhook registers the PubSubHubbub (un)subscribe verification
// GET and the notification POST for every channel currently attached in the
// routing table.
//
// Dynamic live-chat polling (pkg/receivers/youtube.Poller) is deliberately
// not started here: a Poller needs the live broadcast's liveChatID, which
// requires a YouTube Data API videos.list lookup the routing table's
// server_id/channel_id pair does not carry. See DESIGN.md.
func startYouTubeWebhook(mux *http.ServeMux, channels *receivers.ChannelSet, publisher receivers.Publisher, log *slog.Logger) {
	mux.HandleFunc("/webhooks/youtube", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			q := r.URL.Query()
			challenge, ok := youtube.VerifyChallenge(q.Get("hub.mode"), q.Get("hub.topic"), q.Get("hub.challenge"), attachedChannelIDs(channels))
			if !ok {
				http.Error(w, "invalid subscription verification", http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(challenge))
		case http.MethodPost:
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "read body", http.StatusBadRequest)
				return
			}
			videoID, channelID, title, err := youtube.ParseNotification(body)
			if err != nil {
				log.WarnContext(r.Context(), "youtube notification parse failed", "error", err)
				http.Error(w, "invalid notification", http.StatusBadRequest)
				return
			}
			publishVideoNotification(r, channels, publisher, videoID, channelID, title, log)
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func attachedChannelIDs(channels *receivers.ChannelSet) []string {
	var ids []string
	for _, ch := range channels.Channels() {
		ids = append(ids, ch.ChannelID)
	}
	return ids
}

// publishVideoNotification normalizes a PubSubHubbub video notification into
// an envelope for every entity attached to channelID; the router treats it
// like any other unknown-typed event carrying the new video's metadata.
func publishVideoNotification(r *http.Request, channels *receivers.ChannelSet, publisher receivers.Publisher, videoID, channelID, title string, log *slog.Logger) {
	for _, ch := range channels.Channels() {
		if ch.ChannelID != channelID {
			continue
		}
		env := &envelope.Envelope{
			EventID:   "yt-video:" + videoID,
			EventType: envelope.EventTypeUnknown,
			Platform:  envelope.PlatformYouTube,
			EntityID:  ch.EntityID,
			ServerID:  ch.ServerID,
			ChannelID: ch.ChannelID,
			UserID:    channelID,
			Timestamp: time.Now().UTC(),
			Metadata: map[string]any{
				"video_id": videoID,
				"title":    title,
			},
		}
		if err := publisher.Publish(r.Context(), ch.EntityID, env); err != nil {
			log.ErrorContext(r.Context(), "waddlebot-receiver: publish youtube video notification failed", "entity_id", ch.EntityID, "error", err)
		}
	}
}
