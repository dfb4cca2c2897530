package reputation

// DefaultWeights are the compiled-in event-name → signed-float weights used
// when no (community_id, event_name) override row exists, grounded on the
// reputation module's DEFAULT_WEIGHTS table.
var DefaultWeights = map[string]float64{
	"chat_message":        0.01,
	"command_usage":       -0.1,
	"giveaway_entry":      -1.0,
	"follow":              1.0,
	"subscription":        5.0,
	"subscription_tier2":  10.0,
	"subscription_tier3":  20.0,
	"gift_subscription":   3.0,
	"donation_per_dollar": 1.0,
	"cheer_per_100bits":   1.0,
	"raid":                2.0,
	"boost":               5.0,
	"warn":                -25.0,
	"timeout":             -50.0,
	"kick":                -75.0,
	"ban":                 -200.0,
}

// DefaultWeight returns the compiled-in weight for eventName, or 0 if none
// is defined (an unrecognized event name contributes no score change).
func DefaultWeight(eventName string) float64 {
	return DefaultWeights[eventName]
}

// ModerationEventNames are the event kinds spec.md §4.3 step 7 treats as
// moderation events eligible for escalation scheduling.
var ModerationEventNames = map[string]bool{
	"warn":    true,
	"timeout": true,
	"kick":    true,
	"ban":     true,
}

// EventName maps a router envelope event_type (and, for subscriptions, its
// tier metadata) to the event_name key the weight table and DefaultWeights
// are keyed on. Event types with no reputation meaning (reaction,
// member_join/leave, voice_join/leave, file_share, app_mention,
// channel_join, host) map to themselves and resolve to a zero weight via
// DefaultWeight.
//
// command_usage and giveaway_entry have no corresponding envelope event_type
// — the router passes them directly as eventName when scoring a command
// dispatch, bypassing this mapping.
func EventName(eventType string, meta map[string]any) string {
	switch eventType {
	case "chatMessage":
		return "chat_message"
	case "subscription", "resub":
		if tier, ok := metadataFloat(meta, "tier"); ok {
			switch int(tier) {
			case 2:
				return "subscription_tier2"
			case 3:
				return "subscription_tier3"
			}
		}
		return "subscription"
	case "donation":
		return "donation_per_dollar"
	case "cheer":
		return "cheer_per_100bits"
	case "subgift":
		return "gift_subscription"
	default:
		return eventType
	}
}

func metadataFloat(meta map[string]any, key string) (float64, bool) {
	if meta == nil {
		return 0, false
	}
	switch v := meta[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
