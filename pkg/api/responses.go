package api

import "github.com/waddlebot/core/pkg/router"

// EventResponse is the reply to a single-event ingest, per spec.md §6:
// "returns {success, session_id, action}".
type EventResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
	Action    string `json:"action,omitempty"`
	Error     string `json:"error,omitempty"`
}

func toEventResponse(r router.Result) EventResponse {
	return EventResponse{
		Success:   r.Success(),
		SessionID: r.SessionID,
		Action:    r.Action,
		Error:     r.Error,
	}
}

// CommandResponse mirrors one active command record for GET
// /api/v1/router/commands.
type CommandResponse struct {
	ID           int64  `json:"id"`
	Command      string `json:"command"`
	Prefix       string `json:"prefix"`
	Description  string `json:"description"`
	Transport    string `json:"transport"`
	TriggerType  string `json:"trigger_type"`
	AuthRequired bool   `json:"auth_required"`
	IsActive     bool   `json:"is_active"`
}

// MetricsResponse is the point-in-time snapshot for GET
// /api/v1/router/metrics.
type MetricsResponse struct {
	EventsReceived    int64            `json:"events_received"`
	EventsCompleted   int64            `json:"events_completed"`
	EventsRejected    int64            `json:"events_rejected"`
	EventsRateLimited int64            `json:"events_rate_limited"`
	EventsFailed      int64            `json:"events_failed"`
	StateCounts       map[string]int64 `json:"state_counts"`
}
