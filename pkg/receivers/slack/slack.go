// Package slack implements the Slack trigger receiver from spec.md §4.4:
// Events API webhook ingest (signed), normalization to envelope.Envelope,
// and outbound chat posting via the Block Kit API.
package slack

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goslack "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/waddlebot/core/pkg/envelope"
	"github.com/waddlebot/core/pkg/receivers"
)

// MaxSigningTimestampSkew bounds how stale an X-Slack-Request-Timestamp may
// be before a request is rejected, per Slack's own signing-secret guidance.
const MaxSigningTimestampSkew = 5 * time.Minute

// Client wraps the slack-go SDK for outbound chat actions, grounded on the
// teacher's Slack notification client.
type Client struct {
	api    *goslack.Client
	logger *slog.Logger
}

// NewClient builds a Client authenticated with a bot token.
func NewClient(token string) *Client {
	return &Client{api: goslack.New(token), logger: slog.Default().With("component", "receivers.slack")}
}

// PostMessage sends a plain-text message to channelID, optionally as a
// threaded reply.
func (c *Client) PostMessage(ctx context.Context, channelID, text, threadTS string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := []goslack.MsgOption{goslack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, goslack.MsgOptionTS(threadTS))
	}
	if _, _, err := c.api.PostMessageContext(ctx, channelID, opts...); err != nil {
		return fmt.Errorf("receivers/slack: chat.postMessage: %w", err)
	}
	return nil
}

// VerifySignature checks Slack's X-Slack-Signature header per their signing
// secret scheme: `v0:timestamp:body` HMAC-SHA256'd with the signing secret,
// constant-time compared, and a skew bound on the timestamp to reject
// replays. This is the platform-specific form of the generic webhook
// verification contract in spec.md §4.4.
func VerifySignature(signingSecret, timestamp, body, signatureHeader string) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if d := time.Since(time.Unix(ts, 0)); d > MaxSigningTimestampSkew || d < -MaxSigningTimestampSkew {
		return false
	}

	base := "v0:" + timestamp + ":" + body
	mac := hmac.New(sha256.New, []byte(signingSecret))
	mac.Write([]byte(base))
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signatureHeader)) == 1
}

// Normalize maps a Slack Events API inner event to the canonical envelope.
// Unrecognized event types map to EventTypeUnknown with the raw event
// preserved in metadata.raw, per spec.md §4.4.
func Normalize(entityID string, innerEvent slackevents.EventsAPIInnerEvent) *envelope.Envelope {
	env := &envelope.Envelope{
		Platform:  envelope.PlatformSlack,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]any{},
	}

	switch ev := innerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		env.EventType = envelope.EventTypeChatMessage
		env.UserID = ev.User
		env.Message = ev.Text
		env.ChannelID = ev.Channel
		env.EventID = ev.ClientMsgID
	case *slackevents.AppMentionEvent:
		env.EventType = envelope.EventTypeAppMention
		env.UserID = ev.User
		env.Message = ev.Text
		env.ChannelID = ev.Channel
		env.EventID = ev.ClientMsgID
	default:
		env.EventType = envelope.EventTypeUnknown
		env.Metadata["raw"] = innerEvent
	}

	if env.EventID == "" {
		env.EventID = entityID + ":" + strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return env
}

// Receiver wires an events-API webhook handler to a Publisher.
type Receiver struct {
	signingSecret string
	client        *Client
	publisher     receivers.Publisher
	log           *slog.Logger
}

// NewReceiver builds a Receiver.
func NewReceiver(signingSecret string, client *Client, publisher receivers.Publisher, log *slog.Logger) *Receiver {
	if log == nil {
		log = slog.Default()
	}
	return &Receiver{signingSecret: signingSecret, client: client, publisher: publisher, log: log}
}

// HandleEvent verifies the signature, parses the Events API envelope, and
// (for url_verification) returns the challenge to echo; otherwise it
// normalizes and publishes the inner event and returns "".
func (r *Receiver) HandleEvent(ctx context.Context, entityID, timestamp, signature string, body []byte) (challenge string, err error) {
	if !VerifySignature(r.signingSecret, timestamp, string(body), signature) {
		return "", fmt.Errorf("receivers/slack: invalid signature")
	}

	outer, err := slackevents.ParseEvent(body, slackevents.OptionNoVerifyToken())
	if err != nil {
		return "", fmt.Errorf("receivers/slack: parse event: %w", err)
	}

	if outer.Type == slackevents.URLVerification {
		var uv slackevents.EventsAPIURLVerificationEvent
		if err := json.Unmarshal(body, &uv); err != nil {
			return "", fmt.Errorf("receivers/slack: parse url_verification: %w", err)
		}
		return uv.Challenge, nil
	}

	env := Normalize(entityID, outer.InnerEvent)
	if err := r.publisher.Publish(ctx, entityID, env); err != nil {
		return "", fmt.Errorf("receivers/slack: publish: %w", err)
	}
	return "", nil
}
