// Package actionpush implements the action-pusher leg of the pipeline
// described in spec.md's architecture diagram ("Action pusher (gRPC)") and
// §4.3 step 7: the reputation engine's moderation/escalation side effects
// are published onto the events:actions stream rather than called
// synchronously, so a slow or down platform API never blocks score
// recording — "policy-enforcement failures ... enqueue to a retry queue"
// (spec.md §4.3 Failure model) is exactly what a stream-backed producer
// with the existing DLQ-on-max-retries consumer (pkg/stream) already gives
// us for free.
//
// Grounded on pkg/stream.Producer/Worker (the same consumer-group/DLQ shape
// used by the router's inbound pipeline) and pkg/reputation/policy.go's
// Notifier/Scheduler interfaces, which this package implements.
package actionpush

import (
	"context"
	"fmt"
	"time"

	"github.com/waddlebot/core/pkg/envelope"
	"github.com/waddlebot/core/pkg/reputation"
	"github.com/waddlebot/core/pkg/stream"
)

// ActionStream is the stream key prefix action requests publish to, per
// spec.md §4.1's "events:actions — router / workflow → action pushers".
const ActionStream = "events:actions"

// ActionKind distinguishes the side effects published to ActionStream: the
// two policy enforcement raises (moderation, escalation) and the router's
// chat reply.
type ActionKind string

const (
	ActionModeration ActionKind = "moderation"
	ActionEscalation ActionKind = "escalation"
	ActionChatReply  ActionKind = "chat_reply"
)

// ActionRequest is the wire payload published to ActionStream. It is a
// superset covering all three ActionKinds; fields not relevant to Kind are
// left zero.
type ActionRequest struct {
	Kind        ActionKind      `json:"kind"`
	Platform    string          `json:"platform,omitempty"`
	CommunityID string          `json:"community_id"`
	UserID      string          `json:"user_id"`
	EntityID    string          `json:"entity_id,omitempty"`
	EventName   string          `json:"event_name,omitempty"`
	Score       int             `json:"score,omitempty"`
	Steps       []time.Duration `json:"steps,omitempty"`
	Message     string          `json:"message,omitempty"`
}

// StreamNotifier implements reputation.Notifier by publishing a moderation
// ActionRequest onto ActionStream. A single physical stream backs the
// whole logical "events:actions" per spec.md §4.1 (the way pkg/stream.Pool
// consumes a single Config.StreamKey); entity_id travels in the envelope
// itself rather than in the stream key.
type StreamNotifier struct {
	producer *stream.Producer
}

// NewStreamNotifier builds a StreamNotifier over producer.
func NewStreamNotifier(producer *stream.Producer) *StreamNotifier {
	return &StreamNotifier{producer: producer}
}

func (n *StreamNotifier) NotifyModeration(ctx context.Context, req reputation.ModerationRequest) error {
	platform, _, _, _ := envelope.SplitEntityID(req.EntityID)
	action := ActionRequest{
		Kind:        ActionModeration,
		Platform:    string(platform),
		CommunityID: req.CommunityID,
		UserID:      req.UserID,
		EntityID:    req.EntityID,
		EventName:   req.EventName,
		Score:       req.Score,
	}
	eventID := fmt.Sprintf("modreq-%s-%s", req.CommunityID, req.UserID)
	if err := n.producer.Publish(ctx, ActionStream, eventID, action); err != nil {
		return fmt.Errorf("actionpush: publish moderation request: %w", err)
	}
	return nil
}

// StreamScheduler implements reputation.Scheduler the same way, for
// escalation requests.
type StreamScheduler struct {
	producer *stream.Producer
}

// NewStreamScheduler builds a StreamScheduler over producer.
func NewStreamScheduler(producer *stream.Producer) *StreamScheduler {
	return &StreamScheduler{producer: producer}
}

func (s *StreamScheduler) ScheduleEscalation(ctx context.Context, req reputation.EscalationRequest) error {
	action := ActionRequest{
		Kind:        ActionEscalation,
		CommunityID: req.CommunityID,
		UserID:      req.UserID,
		EventName:   req.EventName,
		Steps:       req.Steps,
	}
	eventID := fmt.Sprintf("escreq-%s-%s-%d", req.CommunityID, req.UserID, time.Now().UnixNano())
	if err := s.producer.Publish(ctx, ActionStream, eventID, action); err != nil {
		return fmt.Errorf("actionpush: publish escalation request: %w", err)
	}
	return nil
}

// Pusher publishes an arbitrary ActionRequest onto ActionStream. Unlike
// StreamNotifier/StreamScheduler, which each implement one narrow
// reputation.go interface, Pusher is for callers that already have a fully
// formed ActionRequest in hand — the router's synchronous chat-reply
// scheduling (spec.md §4.2 step 9) being the first of these.
type Pusher struct {
	producer *stream.Producer
}

// NewPusher builds a Pusher over producer.
func NewPusher(producer *stream.Producer) *Pusher {
	return &Pusher{producer: producer}
}

// Push publishes req onto the single ActionStream under a generated
// "action-<kind>-<nanos>" event ID. The stream key is not derived from
// req.EntityID; entity_id travels in the payload, as with StreamNotifier.
func (p *Pusher) Push(ctx context.Context, req ActionRequest) error {
	eventID := fmt.Sprintf("action-%s-%d", req.Kind, time.Now().UnixNano())
	if err := p.producer.Publish(ctx, ActionStream, eventID, req); err != nil {
		return fmt.Errorf("actionpush: publish %s request: %w", req.Kind, err)
	}
	return nil
}

// PushChatReply is a convenience wrapper building the ActionChatReply
// ActionRequest the router schedules when a module's response carries
// response_action == "chat" (spec.md §4.2 step 9).
func (p *Pusher) PushChatReply(ctx context.Context, entityID, userID, message string) error {
	platform, _, _, _ := envelope.SplitEntityID(entityID)
	return p.Push(ctx, ActionRequest{
		Kind:     ActionChatReply,
		Platform: string(platform),
		UserID:   userID,
		EntityID: entityID,
		Message:  message,
	})
}
