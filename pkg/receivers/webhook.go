package receivers

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// VerifyHMACSHA256 checks a hex-encoded HMAC-SHA256 signature of body
// against secret, in constant time, per spec.md §4.4 "Webhook verification"
// and §6 "Webhook signing".
func VerifyHMACSHA256(secret, body []byte, signatureHex string) bool {
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := mac.Sum(nil)
	return subtle.ConstantTimeCompare(sig, expected) == 1
}

// PubSubHubbubChallenge echoes the hub.challenge query parameter for a
// WebSub/PubSubHubbub (un)subscribe verification request, per spec.md §4.4
// "Subscription verification". verifyTopic is called with the hub.topic
// value and must return true for the challenge to be echoed.
func PubSubHubbubChallenge(mode, topic, challenge string, verifyTopic func(topic string) bool) (string, bool) {
	if mode != "subscribe" && mode != "unsubscribe" {
		return "", false
	}
	if !verifyTopic(topic) {
		return "", false
	}
	return challenge, true
}
