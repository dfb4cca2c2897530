// Package twitch implements the Twitch trigger receiver from spec.md §4.4:
// an IRC chat connection, EventSub webhook ingest, and an OAuth token
// manager that refreshes a stored token on demand when it nears expiry,
// grounded on the action pusher's token manager.
package twitch

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	ircmsg "github.com/ergochat/irc-go/ircmsg"

	"github.com/waddlebot/core/pkg/envelope"
	"github.com/waddlebot/core/pkg/receivers"
)

const ircAddr = "irc.chat.twitch.tv:6697"

// ChatClient is a single-channel-set Twitch IRC chat connection. It
// authenticates with an OAuth token and relays PRIVMSG lines as chat
// message envelopes.
type ChatClient struct {
	conn      net.Conn
	reader    *bufio.Reader
	botLogin  string
	publisher receivers.Publisher
	log       *slog.Logger
}

// Dial connects and authenticates to Twitch IRC as botLogin using
// accessToken, the raw bearer token: Dial itself adds the "oauth:" prefix
// in the PASS line, so callers pass the token without it.
func Dial(ctx context.Context, botLogin, accessToken string, publisher receivers.Publisher, log *slog.Logger) (*ChatClient, error) {
	if log == nil {
		log = slog.Default()
	}
	dialer := &tls.Dialer{Config: &tls.Config{MinVersion: tls.VersionTLS12}}
	conn, err := dialer.DialContext(ctx, "tcp", ircAddr)
	if err != nil {
		return nil, fmt.Errorf("receivers/twitch: dial irc: %w", err)
	}

	c := &ChatClient{
		conn:      conn,
		reader:    bufio.NewReader(conn),
		botLogin:  strings.ToLower(botLogin),
		publisher: publisher,
		log:       log,
	}

	for _, line := range []string{
		"CAP REQ :twitch.tv/tags twitch.tv/commands",
		"PASS oauth:" + accessToken,
		"NICK " + c.botLogin,
	} {
		if err := c.send(line); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return c, nil
}

// Join joins channel (without the leading "#").
func (c *ChatClient) Join(channel string) error {
	return c.send("JOIN #" + strings.ToLower(channel))
}

// Say sends a chat message to channel.
func (c *ChatClient) Say(channel, text string) error {
	return c.send(fmt.Sprintf("PRIVMSG #%s :%s", strings.ToLower(channel), text))
}

func (c *ChatClient) send(line string) error {
	_, err := fmt.Fprintf(c.conn, "%s\r\n", line)
	return err
}

// Close closes the underlying connection.
func (c *ChatClient) Close() error { return c.conn.Close() }

// Run reads lines until ctx is cancelled or the connection closes,
// responding to PING and publishing normalized PRIVMSG envelopes.
func (c *ChatClient) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("receivers/twitch: read: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		msg, err := ircmsg.ParseLine(line)
		if err != nil {
			c.log.WarnContext(ctx, "unparseable irc line", "line", line, "error", err)
			continue
		}

		switch msg.Command {
		case "PING":
			c.send("PONG :" + strings.Join(msg.Params, " "))
		case "PRIVMSG":
			env := normalizePrivmsg(msg)
			if env == nil {
				continue
			}
			if err := c.publisher.Publish(ctx, env.EntityID, env); err != nil {
				c.log.ErrorContext(ctx, "publish failed", "entity_id", env.EntityID, "error", err)
			}
		}
	}
}

func normalizePrivmsg(msg ircmsg.Message) *envelope.Envelope {
	if len(msg.Params) < 2 {
		return nil
	}
	channel := strings.TrimPrefix(msg.Params[0], "#")
	text := msg.Params[1]

	login := ""
	if msg.Source != "" {
		login = strings.SplitN(msg.Source, "!", 2)[0]
	}

	userID := string(msg.Tags["user-id"])
	displayName := string(msg.Tags["display-name"])
	msgID := string(msg.Tags["id"])

	entityID := envelope.EntityID(envelope.PlatformTwitch, channel, channel)
	return &envelope.Envelope{
		EventID:     msgID,
		EventType:   envelope.EventTypeChatMessage,
		Platform:    envelope.PlatformTwitch,
		EntityID:    entityID,
		ServerID:    channel,
		ChannelID:   channel,
		UserID:      userID,
		Username:    login,
		DisplayName: displayName,
		Message:     text,
		Timestamp:   time.Now().UTC(),
	}
}
