package youtube

import (
	"encoding/xml"
	"fmt"

	"github.com/waddlebot/core/pkg/receivers"
)

// TopicURL builds the PubSubHubbub topic URL YouTube expects for a
// channel's upload/stream feed.
func TopicURL(channelID string) string {
	return "https://www.youtube.com/xml/feeds/videos.xml?channel_id=" + channelID
}

// feedNotification is the Atom payload PubSubHubbub POSTs on a new/updated
// video, trimmed to the fields the router cares about.
type feedNotification struct {
	XMLName xml.Name `xml:"feed"`
	Entry   struct {
		VideoID   string `xml:"videoId"`
		ChannelID string `xml:"channelId"`
		Title     string `xml:"title"`
	} `xml:"entry"`
}

// VerifyChallenge echoes the PubSubHubbub subscribe/unsubscribe challenge
// for a topic matching one of the attached channel IDs.
func VerifyChallenge(mode, topic, challenge string, channelIDs []string) (string, bool) {
	return receivers.PubSubHubbubChallenge(mode, topic, challenge, func(t string) bool {
		for _, id := range channelIDs {
			if t == TopicURL(id) {
				return true
			}
		}
		return false
	})
}

// ParseNotification decodes a PubSubHubbub feed notification body into the
// (videoID, channelID, title) it announces.
func ParseNotification(body []byte) (videoID, channelID, title string, err error) {
	var feed feedNotification
	if err := xml.Unmarshal(body, &feed); err != nil {
		return "", "", "", fmt.Errorf("receivers/youtube: parse feed notification: %w", err)
	}
	return feed.Entry.VideoID, feed.Entry.ChannelID, feed.Entry.Title, nil
}
