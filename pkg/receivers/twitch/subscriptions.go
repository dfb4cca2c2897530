package twitch

import (
	"fmt"

	"github.com/nicklaw5/helix/v2"
)

// DefaultEventSubTypes are the EventSub subscription types the router
// registers for every attached Twitch channel, per spec.md §4.4.
var DefaultEventSubTypes = []string{
	"channel.follow",
	"channel.subscribe",
	"channel.subscription.gift",
	"channel.subscription.message",
	"channel.cheer",
	"channel.raid",
	"stream.online",
	"stream.offline",
}

// SubscriptionManager registers EventSub webhook subscriptions against the
// Helix API on behalf of attached broadcasters.
type SubscriptionManager struct {
	client      *helix.Client
	callbackURL string
	secret      string
}

// NewSubscriptionManager builds a SubscriptionManager. callbackURL is the
// publicly reachable webhook endpoint EventSub will POST notifications to.
func NewSubscriptionManager(clientID, clientSecret, appAccessToken, callbackURL, secret string) (*SubscriptionManager, error) {
	client, err := helix.NewClient(&helix.Options{
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		AppAccessToken: appAccessToken,
	})
	if err != nil {
		return nil, fmt.Errorf("receivers/twitch: helix client: %w", err)
	}
	return &SubscriptionManager{client: client, callbackURL: callbackURL, secret: secret}, nil
}

// Subscribe registers DefaultEventSubTypes for broadcasterUserID, skipping
// any that already exist. Returns the first registration error, if any,
// after attempting the rest.
func (m *SubscriptionManager) Subscribe(broadcasterUserID string) error {
	var firstErr error
	for _, subType := range DefaultEventSubTypes {
		condition := helix.EventSubCondition{BroadcasterUserID: broadcasterUserID}
		if subType == "channel.raid" {
			condition = helix.EventSubCondition{FromBroadcasterUserID: broadcasterUserID}
		}

		_, err := m.client.CreateEventSubSubscription(&helix.EventSubSubscription{
			Type:      subType,
			Version:   "1",
			Condition: condition,
			Transport: helix.EventSubTransport{
				Method:   "webhook",
				Callback: m.callbackURL,
				Secret:   m.secret,
			},
		})
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("receivers/twitch: subscribe %s for %s: %w", subType, broadcasterUserID, err)
		}
	}
	return firstErr
}
