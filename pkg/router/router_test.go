package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waddlebot/core/pkg/envelope"
	"github.com/waddlebot/core/pkg/ratelimit"
	reprpc "github.com/waddlebot/core/pkg/reputation/rpc"
	"github.com/waddlebot/core/pkg/session"
	"github.com/waddlebot/core/pkg/storage"
)

type fakeEntities struct{ communityID string }

func (f fakeEntities) CommunityID(ctx context.Context, entityID string) (string, error) {
	return f.communityID, nil
}

type fakeCommands struct {
	byPrefix map[string]storage.Command
	events   map[string][]storage.Command
}

func (f fakeCommands) Lookup(ctx context.Context, prefix, command, entityID string) (storage.Command, error) {
	c, ok := f.byPrefix[prefix+command]
	if !ok {
		return storage.Command{}, storage.ErrNotFound
	}
	return c, nil
}

func (f fakeCommands) EventTriggered(ctx context.Context, eventType, entityID string) ([]storage.Command, error) {
	return f.events[eventType], nil
}

type fakeSessions struct{ modules map[string]string }

func (f *fakeSessions) Resolve(ctx context.Context, entityID, userID string) (session.Session, error) {
	return session.Session{SessionID: "sess-1", EntityID: entityID, UserID: userID, CorrelationID: "corr-1"}, nil
}

func (f *fakeSessions) SetInteractionModule(ctx context.Context, entityID, userID, module string) error {
	if f.modules == nil {
		f.modules = make(map[string]string)
	}
	f.modules[entityID+":"+userID] = module
	return nil
}

type fakeLimiter struct{ allow bool }

func (f fakeLimiter) Allow(ctx context.Context, key string, lim ratelimit.Limit) (bool, error) {
	return f.allow, nil
}

type fakeDispatcher struct {
	resp DispatchResponse
	err  error
}

func (f fakeDispatcher) Dispatch(ctx context.Context, cmd storage.Command, req DispatchRequest) (DispatchResponse, error) {
	return f.resp, f.err
}

type fakeReputation struct {
	calls []*reprpc.RecordEventRequest
}

func (f *fakeReputation) RecordEvent(ctx context.Context, req *reprpc.RecordEventRequest) (*reprpc.RecordEventResponse, error) {
	f.calls = append(f.calls, req)
	return &reprpc.RecordEventResponse{Success: true}, nil
}

type fakeDLQ struct {
	published []string
}

func (f *fakeDLQ) Publish(ctx context.Context, streamKey, eventID string, payload any) error {
	f.published = append(f.published, eventID)
	return nil
}

type fakeActions struct {
	calls []struct{ entityID, userID, message string }
}

func (f *fakeActions) PushChatReply(ctx context.Context, entityID, userID, message string) error {
	f.calls = append(f.calls, struct{ entityID, userID, message string }{entityID, userID, message})
	return nil
}

func baseEnvelope() *envelope.Envelope {
	return &envelope.Envelope{
		EventID:   "evt-1",
		EventType: envelope.EventTypeChatMessage,
		Platform:  envelope.PlatformTwitch,
		EntityID:  envelope.EntityID(envelope.PlatformTwitch, "channel", "123"),
		ServerID:  "channel",
		ChannelID: "123",
		UserID:    "user-1",
		Username:  "friend",
		Message:   "!help",
		Timestamp: time.Now(),
	}
}

func TestProcessEventRejectsInvalidEnvelope(t *testing.T) {
	dlq := &fakeDLQ{}
	r := New(Config{}, Deps{
		Entities: fakeEntities{},
		Commands: fakeCommands{},
		Sessions: &fakeSessions{},
		DLQ:      dlq,
	})

	env := baseEnvelope()
	env.UserID = ""

	result := r.ProcessEvent(context.Background(), env)
	assert.Equal(t, StateRejected, result.State)
	assert.Contains(t, dlq.published, "evt-1")
}

func TestProcessEventNoCommandMatchCompletes(t *testing.T) {
	env := baseEnvelope()
	env.Message = "just chatting"

	r := New(Config{}, Deps{
		Entities: fakeEntities{communityID: "comm-1"},
		Commands: fakeCommands{},
		Sessions: &fakeSessions{},
	})

	result := r.ProcessEvent(context.Background(), env)
	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, "none", result.Action)
}

func TestProcessEventDispatchesMatchedCommand(t *testing.T) {
	cmd := storage.Command{Command: "help", Prefix: "!", Transport: storage.TransportContainer, TimeoutMS: 1000}
	dispatcher := fakeDispatcher{resp: DispatchResponse{Success: true, ResponseAction: "chat"}}

	r := New(Config{}, Deps{
		Entities:    fakeEntities{communityID: "comm-1"},
		Commands:    fakeCommands{byPrefix: map[string]storage.Command{"!help": cmd}},
		Sessions:    &fakeSessions{},
		Limiter:     fakeLimiter{allow: true},
		Dispatchers: map[storage.Transport]Dispatcher{storage.TransportContainer: dispatcher},
	})

	result := r.ProcessEvent(context.Background(), baseEnvelope())
	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, "chat", result.Action)
}

func TestProcessEventSchedulesChatReplyOnChatAction(t *testing.T) {
	cmd := storage.Command{Command: "help", Prefix: "!", Transport: storage.TransportContainer, TimeoutMS: 1000}
	dispatcher := fakeDispatcher{resp: DispatchResponse{
		Success:        true,
		ResponseAction: "chat",
		ResponseData:   map[string]any{"message": "usage: !help <topic>"},
	}}
	actions := &fakeActions{}

	r := New(Config{}, Deps{
		Entities:    fakeEntities{communityID: "comm-1"},
		Commands:    fakeCommands{byPrefix: map[string]storage.Command{"!help": cmd}},
		Sessions:    &fakeSessions{},
		Limiter:     fakeLimiter{allow: true},
		Dispatchers: map[storage.Transport]Dispatcher{storage.TransportContainer: dispatcher},
		Actions:     actions,
	})

	env := baseEnvelope()
	result := r.ProcessEvent(context.Background(), env)

	assert.Equal(t, StateCompleted, result.State)
	require.Len(t, actions.calls, 1)
	assert.Equal(t, env.EntityID, actions.calls[0].entityID)
	assert.Equal(t, env.UserID, actions.calls[0].userID)
	assert.Equal(t, "usage: !help <topic>", actions.calls[0].message)
}

func TestProcessEventSkipsChatReplyOnNonChatAction(t *testing.T) {
	cmd := storage.Command{Command: "ban", Prefix: "!", Transport: storage.TransportContainer, TimeoutMS: 1000}
	dispatcher := fakeDispatcher{resp: DispatchResponse{Success: true, ResponseAction: "moderation"}}
	actions := &fakeActions{}

	r := New(Config{}, Deps{
		Entities:    fakeEntities{communityID: "comm-1"},
		Commands:    fakeCommands{byPrefix: map[string]storage.Command{"!ban": cmd}},
		Sessions:    &fakeSessions{},
		Limiter:     fakeLimiter{allow: true},
		Dispatchers: map[storage.Transport]Dispatcher{storage.TransportContainer: dispatcher},
		Actions:     actions,
	})

	env := baseEnvelope()
	env.Message = "!ban"
	r.ProcessEvent(context.Background(), env)

	assert.Empty(t, actions.calls)
}

func TestProcessEventRateLimitedSkipsDispatch(t *testing.T) {
	cmd := storage.Command{Command: "help", Prefix: "!", Transport: storage.TransportContainer, TimeoutMS: 1000}
	dispatcher := fakeDispatcher{resp: DispatchResponse{Success: true}}

	r := New(Config{}, Deps{
		Entities:    fakeEntities{communityID: "comm-1"},
		Commands:    fakeCommands{byPrefix: map[string]storage.Command{"!help": cmd}},
		Sessions:    &fakeSessions{},
		Limiter:     fakeLimiter{allow: false},
		Dispatchers: map[storage.Transport]Dispatcher{storage.TransportContainer: dispatcher},
	})

	result := r.ProcessEvent(context.Background(), baseEnvelope())
	assert.Equal(t, StateRateLimited, result.State)
}

func TestProcessEventReservedCommandSkipsDispatch(t *testing.T) {
	cmd := storage.Command{Command: "ban", Prefix: "!", Transport: storage.TransportContainer, TimeoutMS: 1000}
	dispatcher := fakeDispatcher{resp: DispatchResponse{Success: true}}

	r := New(Config{}, Deps{
		Entities:    fakeEntities{communityID: "comm-1"},
		Commands:    fakeCommands{byPrefix: map[string]storage.Command{"!ban": cmd}},
		Sessions:    &fakeSessions{},
		Limiter:     fakeLimiter{allow: true},
		Reserved:    alwaysReserved{},
		Dispatchers: map[storage.Transport]Dispatcher{storage.TransportContainer: dispatcher},
	})

	env := baseEnvelope()
	env.Message = "!ban troll"
	result := r.ProcessEvent(context.Background(), env)
	assert.Equal(t, StateRejected, result.State)
}

type alwaysReserved struct{}

func (alwaysReserved) IsReserved(platform, command string) bool { return true }

func TestProcessEventUnauthorizedCommand(t *testing.T) {
	cmd := storage.Command{Command: "help", Prefix: "!", Transport: storage.TransportContainer, TimeoutMS: 1000, AuthRequired: true}

	r := New(Config{}, Deps{
		Entities:   fakeEntities{communityID: "comm-1"},
		Commands:   fakeCommands{byPrefix: map[string]storage.Command{"!help": cmd}},
		Sessions:   &fakeSessions{},
		Limiter:    fakeLimiter{allow: true},
		Authorizer: denyAllAuthorizer{},
	})

	result := r.ProcessEvent(context.Background(), baseEnvelope())
	assert.Equal(t, StateUnauthorized, result.State)
}

type denyAllAuthorizer struct{}

func (denyAllAuthorizer) Authorize(ctx context.Context, env *envelope.Envelope, cmd storage.Command) (bool, error) {
	return false, nil
}

func TestProcessEventAsyncDispatchSetsAwaitingResponse(t *testing.T) {
	cmd := storage.Command{Command: "help", Prefix: "!", Transport: storage.TransportContainer, TimeoutMS: 1000, ModuleID: "mod-1"}
	dispatcher := fakeDispatcher{resp: DispatchResponse{Async: true}}
	sessions := &fakeSessions{}

	r := New(Config{}, Deps{
		Entities:    fakeEntities{communityID: "comm-1"},
		Commands:    fakeCommands{byPrefix: map[string]storage.Command{"!help": cmd}},
		Sessions:    sessions,
		Limiter:     fakeLimiter{allow: true},
		Dispatchers: map[storage.Transport]Dispatcher{storage.TransportContainer: dispatcher},
	})

	result := r.ProcessEvent(context.Background(), baseEnvelope())
	assert.Equal(t, StateAwaitingResponse, result.State)
	assert.Equal(t, "mod-1", sessions.modules["twitch:channel:123:user-1"])
}

func TestProcessEventEmitsReputation(t *testing.T) {
	rep := &fakeReputation{}
	r := New(Config{ReputationToken: "tok"}, Deps{
		Entities:   fakeEntities{communityID: "comm-1"},
		Commands:   fakeCommands{},
		Sessions:   &fakeSessions{},
		Reputation: rep,
	})

	env := baseEnvelope()
	env.Message = "hello"
	r.ProcessEvent(context.Background(), env)

	require.Len(t, rep.calls, 1)
	assert.Equal(t, "comm-1", rep.calls[0].CommunityID)
	assert.Equal(t, "tok", rep.calls[0].Token)
	assert.Equal(t, "chatMessage", rep.calls[0].EventType)
}

func TestProcessBatchRejectsOversize(t *testing.T) {
	r := New(Config{}, Deps{Entities: fakeEntities{}, Commands: fakeCommands{}, Sessions: &fakeSessions{}})

	envs := make([]*envelope.Envelope, MaxBatchSize+1)
	for i := range envs {
		envs[i] = baseEnvelope()
	}

	_, err := r.ProcessBatch(context.Background(), envs)
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestProcessBatchPreservesOrder(t *testing.T) {
	r := New(Config{}, Deps{Entities: fakeEntities{communityID: "comm-1"}, Commands: fakeCommands{}, Sessions: &fakeSessions{}})

	envs := make([]*envelope.Envelope, 5)
	for i := range envs {
		e := baseEnvelope()
		e.EventID = "evt-" + string(rune('a'+i))
		e.Message = "just chatting"
		envs[i] = e
	}

	results, err := r.ProcessBatch(context.Background(), envs)
	require.NoError(t, err)
	require.Len(t, results, 5)
	for _, res := range results {
		assert.Equal(t, StateCompleted, res.State)
	}
}
