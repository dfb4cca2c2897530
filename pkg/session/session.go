// Package session implements the router's conversation-window session, per
// spec.md §3: "session_id: opaque token created by the router on first event
// from a (entity_id, user_id) pair in a conversation window." Sessions are
// Redis-backed so every router process shares the same view and a restart
// loses nothing but the TTL countdown. Grounded on the teacher's
// pkg/session manager shape (create/get/update/list), generalized from an
// in-memory map to a JSON-encoded Redis string keyed by the (entity_id,
// user_id) pair instead of conversation messages.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is the session window length, per spec.md §3.
const DefaultTTL = 3600 * time.Second

// ErrNotFound is returned when no session exists for a key; an expired
// session returns ErrNotFound as well once Redis reaps it.
var ErrNotFound = errors.New("session: not found")

// Session holds the state the router needs to correlate a command's
// response and track its interaction module, per spec.md §3.
type Session struct {
	SessionID         string    `json:"session_id"`
	EntityID          string    `json:"entity_id"`
	UserID            string    `json:"user_id"`
	CorrelationID     string    `json:"correlation_id"`
	InteractionModule string    `json:"interaction_module,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Manager resolves and mints sessions against Redis.
type Manager struct {
	client *redis.Client
	ttl    time.Duration
}

// NewManager builds a session Manager. ttl <= 0 uses DefaultTTL.
func NewManager(client *redis.Client, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{client: client, ttl: ttl}
}

func key(entityID, userID string) string {
	return fmt.Sprintf("session:%s:%s", entityID, userID)
}

// idKey indexes a session by its opaque session_id alone, so the response
// callback (spec.md §4.2 step 9, POST /api/v1/router/responses) — which
// carries only session_id/execution_id, not entity_id/user_id — can resolve
// back to the waiting session.
func idKey(sessionID string) string {
	return fmt.Sprintf("session:id:%s", sessionID)
}

// Resolve implements spec.md §4.2 step 2: look up the session for
// (entityID, userID); if absent or expired, mint a new one. Either way, the
// TTL is refreshed on return ("refreshed on each event").
func (m *Manager) Resolve(ctx context.Context, entityID, userID string) (Session, error) {
	k := key(entityID, userID)

	raw, err := m.client.Get(ctx, k).Bytes()
	if err == nil {
		var s Session
		if jsonErr := json.Unmarshal(raw, &s); jsonErr == nil {
			if expErr := m.client.Expire(ctx, k, m.ttl).Err(); expErr != nil {
				return Session{}, fmt.Errorf("session: refresh ttl: %w", expErr)
			}
			if expErr := m.client.Expire(ctx, idKey(s.SessionID), m.ttl).Err(); expErr != nil && !errors.Is(expErr, redis.Nil) {
				return Session{}, fmt.Errorf("session: refresh id ttl: %w", expErr)
			}
			return s, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return Session{}, fmt.Errorf("session: get %q: %w", k, err)
	}

	s := Session{
		SessionID:     uuid.NewString(),
		EntityID:      entityID,
		UserID:        userID,
		CorrelationID: uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
	}
	if err := m.save(ctx, k, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Get returns the current session for (entityID, userID) without minting a
// new one, returning ErrNotFound if absent or expired.
func (m *Manager) Get(ctx context.Context, entityID, userID string) (Session, error) {
	raw, err := m.client.Get(ctx, key(entityID, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("session: get: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("session: decode: %w", err)
	}
	return s, nil
}

// GetByID resolves a session by its opaque session_id alone, for the
// response callback at POST /api/v1/router/responses (spec.md §4.2 step 9),
// which carries session_id/execution_id but not the (entity_id, user_id)
// pair the primary key is built from.
func (m *Manager) GetByID(ctx context.Context, sessionID string) (Session, error) {
	raw, err := m.client.Get(ctx, idKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("session: get by id: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("session: decode: %w", err)
	}
	return s, nil
}

// SetInteractionModule records which module is handling the session's
// in-flight command, so a later response callback (spec.md §4.2 step 9) can
// be matched back to it.
func (m *Manager) SetInteractionModule(ctx context.Context, entityID, userID, module string) error {
	s, err := m.Get(ctx, entityID, userID)
	if err != nil {
		return err
	}
	s.InteractionModule = module
	return m.save(ctx, key(entityID, userID), s)
}

// save writes the session under both its (entityID, userID) primary key and
// its session_id secondary index, keeping both TTLs in lockstep.
func (m *Manager) save(ctx context.Context, k string, s Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := m.client.Set(ctx, k, raw, m.ttl).Err(); err != nil {
		return fmt.Errorf("session: set %q: %w", k, err)
	}
	if err := m.client.Set(ctx, idKey(s.SessionID), raw, m.ttl).Err(); err != nil {
		return fmt.Errorf("session: set id index %q: %w", s.SessionID, err)
	}
	return nil
}

// Delete removes a session outright, together with its session_id index,
// closing the conversation window before its TTL runs out.
func (m *Manager) Delete(ctx context.Context, entityID, userID string) error {
	s, err := m.Get(ctx, entityID, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := m.client.Del(ctx, key(entityID, userID)).Err(); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	if err == nil {
		if delErr := m.client.Del(ctx, idKey(s.SessionID)).Err(); delErr != nil {
			return fmt.Errorf("session: delete id index: %w", delErr)
		}
	}
	return nil
}
