package twitch

import (
	"context"
	"log/slog"

	"github.com/waddlebot/core/pkg/receivers"
)

// Receiver composes the chat, EventSub, and token-refresh pieces of the
// Twitch adapter behind one entrypoint.
type Receiver struct {
	Tokens   *TokenManager
	EventSub *EventSubReceiver
	log      *slog.Logger
}

// NewReceiver builds a Receiver.
func NewReceiver(tokens *TokenManager, eventSubSecret string, publisher receivers.Publisher, log *slog.Logger) *Receiver {
	if log == nil {
		log = slog.Default()
	}
	return &Receiver{
		Tokens:   tokens,
		EventSub: NewEventSubReceiver(eventSubSecret, publisher, log),
		log:      log,
	}
}

// ConnectChat dials and authenticates an IRC chat connection as botLogin
// using the managed token for accountID, then runs it until ctx is done.
func (r *Receiver) ConnectChat(ctx context.Context, botLogin, accountID string, channels []string, publisher receivers.Publisher) error {
	accessToken, err := r.Tokens.AccessToken(ctx, accountID)
	if err != nil {
		return err
	}

	client, err := Dial(ctx, botLogin, accessToken, publisher, r.log)
	if err != nil {
		return err
	}
	defer client.Close()

	for _, ch := range channels {
		if err := client.Join(ch); err != nil {
			return err
		}
	}
	return client.Run(ctx)
}
