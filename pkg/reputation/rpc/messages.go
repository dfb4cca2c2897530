// Package rpc implements the reputation service's gRPC surface from
// spec.md §6 ("Reputation service (gRPC minimum)"). No .proto compiler is
// available in this environment, so the wire messages below are plain
// JSON-tagged Go structs carried over grpc-go with the JSON codec in
// codec.go, and the ServiceDesc in service.go is hand-authored in place of
// protoc-gen-go-grpc output.
package rpc

// RecordEventRequest is the RecordEvent request payload.
type RecordEventRequest struct {
	Token          string         `json:"token"`
	CommunityID    string         `json:"community_id"`
	UserID         string         `json:"user_id"`
	Platform       string         `json:"platform"`
	PlatformUserID string         `json:"platform_user_id"`
	EntityID       string         `json:"entity_id"`
	EventID        string         `json:"event_id"`
	EventType      string         `json:"event_type"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// RecordEventResponse is the RecordEvent response payload.
type RecordEventResponse struct {
	Success      bool    `json:"success"`
	Message      string  `json:"message,omitempty"`
	Error        string  `json:"error,omitempty"`
	NewScore     int     `json:"new_score,omitempty"`
	Tier         string  `json:"tier,omitempty"`
	DeltaApplied float64 `json:"delta_applied,omitempty"`
}

// GetScoreRequest is the GetScore request payload.
type GetScoreRequest struct {
	Token       string `json:"token"`
	CommunityID string `json:"community_id"`
	UserID      string `json:"user_id"`
}

// GetScoreResponse is the GetScore response payload.
type GetScoreResponse struct {
	Success bool   `json:"success"`
	Score   int    `json:"score"`
	Label   string `json:"label,omitempty"`
	Error   string `json:"error,omitempty"`
}
