package api

import "github.com/waddlebot/core/pkg/envelope"

// EventRequest is the body of POST /api/v1/router/events, per spec.md §6's
// "Event envelope JSON (inbound, canonical)".
type EventRequest struct {
	EventID     string         `json:"event_id"`
	EventType   string         `json:"event_type"`
	Platform    string         `json:"platform"`
	EntityID    string         `json:"entity_id"`
	ServerID    string         `json:"server_id,omitempty"`
	ChannelID   string         `json:"channel_id,omitempty"`
	UserID      string         `json:"user_id"`
	Username    string         `json:"username"`
	DisplayName string         `json:"display_name,omitempty"`
	Message     string         `json:"message,omitempty"`
	Timestamp   string         `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (r EventRequest) toEnvelope() (*envelope.Envelope, error) {
	ts, err := parseTimestamp(r.Timestamp)
	if err != nil {
		return nil, err
	}
	return &envelope.Envelope{
		EventID:     r.EventID,
		EventType:   envelope.EventType(r.EventType),
		Platform:    envelope.Platform(r.Platform),
		EntityID:    r.EntityID,
		ServerID:    r.ServerID,
		ChannelID:   r.ChannelID,
		UserID:      r.UserID,
		Username:    r.Username,
		DisplayName: r.DisplayName,
		Message:     r.Message,
		Timestamp:   ts,
		Metadata:    r.Metadata,
	}, nil
}

// BatchEventRequest is the body of POST /api/v1/router/events/batch.
type BatchEventRequest struct {
	Events []EventRequest `json:"events"`
}

// ResponseCallbackRequest is the body of POST /api/v1/router/responses, per
// spec.md §6: "module callback; body {session_id, execution_id, success,
// response_action, response_data, error}".
type ResponseCallbackRequest struct {
	SessionID      string         `json:"session_id"`
	ExecutionID    string         `json:"execution_id"`
	Success        bool           `json:"success"`
	ResponseAction string         `json:"response_action,omitempty"`
	ResponseData   map[string]any `json:"response_data,omitempty"`
	Error          string         `json:"error,omitempty"`
}
