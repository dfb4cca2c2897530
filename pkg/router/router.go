// Package router implements the dispatcher core described in spec.md §4.2:
// normalize/validate, session resolve, entity/community resolve, command
// detection, rate-limit check, reserved-command check, authorization,
// transport dispatch, response correlation, reputation side-effect
// emission, and activity audit.
//
// Grounded on the teacher's pkg/agent/base_agent.go: a thin orchestrator
// delegating each pipeline step to a narrow collaborator interface, mapping
// context.DeadlineExceeded/context.Canceled to typed terminal states instead
// of bubbling raw errors.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/waddlebot/core/pkg/aaa"
	"github.com/waddlebot/core/pkg/cache"
	"github.com/waddlebot/core/pkg/command"
	"github.com/waddlebot/core/pkg/envelope"
	"github.com/waddlebot/core/pkg/ratelimit"
	reprpc "github.com/waddlebot/core/pkg/reputation/rpc"
	"github.com/waddlebot/core/pkg/session"
	"github.com/waddlebot/core/pkg/storage"
)

// EntityResolver resolves an entity_id to the community_id it belongs to.
type EntityResolver interface {
	CommunityID(ctx context.Context, entityID string) (string, error)
}

// CommandLookup resolves command records, per spec.md §4.2 step 4.
type CommandLookup interface {
	Lookup(ctx context.Context, prefix, command, entityID string) (storage.Command, error)
	EventTriggered(ctx context.Context, eventType, entityID string) ([]storage.Command, error)
}

// SessionResolver mints or refreshes the conversation-window session, per
// spec.md §4.2 step 2.
type SessionResolver interface {
	Resolve(ctx context.Context, entityID, userID string) (session.Session, error)
	SetInteractionModule(ctx context.Context, entityID, userID, module string) error
}

// RateLimiter enforces the namespaced per-(user, command) budget, per
// spec.md §4.2 step 5.
type RateLimiter interface {
	Allow(ctx context.Context, key string, lim ratelimit.Limit) (bool, error)
}

// ReservedChecker answers whether a command conflicts with a platform's own
// built-in moderation commands, per spec.md §4.2 step 6.
type ReservedChecker interface {
	IsReserved(platform, command string) bool
}

// ReputationEmitter emits the reputation side-effect raised by step 10.
type ReputationEmitter interface {
	RecordEvent(ctx context.Context, req *reprpc.RecordEventRequest) (*reprpc.RecordEventResponse, error)
}

// DLQPublisher appends a rejected or failed event to a dead-letter stream.
type DLQPublisher interface {
	Publish(ctx context.Context, streamKey, eventID string, payload any) error
}

// ActionPusher schedules the chat-reply send spec.md §4.2 step 9 requires
// when a module's response carries response_action == "chat": "the router
// records success/failure and, if the response action is chat, schedules a
// send via the appropriate action pusher."
type ActionPusher interface {
	PushChatReply(ctx context.Context, entityID, userID, message string) error
}

// DefaultRateLimit is the fallback per-(user, command) budget when a
// command record does not override it, per spec.md §4.2 step 5.
var DefaultRateLimit = ratelimit.Limit{Count: 60, Window: time.Minute}

// DefaultEntityCacheTTL caches entity_id -> community_id resolutions, per
// spec.md §4.2 step 3.
const DefaultEntityCacheTTL = 600 * time.Second

// DefaultMaxConcurrent bounds concurrent dispatches within one ProcessBatch
// call and, for a stream-consuming caller, within one poll batch.
const DefaultMaxConcurrent = 16

// DefaultPrefixes are the command prefixes recognized absent a
// platform-specific override, per spec.md §4.2 step 4.
var DefaultPrefixes = []string{"!", "#"}

// DefaultInboundDLQStream is the dead-letter stream for events rejected at
// step 1, per spec.md §4.1's "events:dlq:<stream>" naming.
const DefaultInboundDLQStream = "events:dlq:events:inbound"

// Config tunes a Router's pipeline defaults.
type Config struct {
	Prefixes         []string
	DefaultRateLimit ratelimit.Limit
	EntityCacheTTL   time.Duration
	MaxConcurrent    int
	InboundDLQStream string
	ReputationToken  string
}

func (c Config) withDefaults() Config {
	if len(c.Prefixes) == 0 {
		c.Prefixes = DefaultPrefixes
	}
	if c.DefaultRateLimit.Count == 0 {
		c.DefaultRateLimit = DefaultRateLimit
	}
	if c.EntityCacheTTL <= 0 {
		c.EntityCacheTTL = DefaultEntityCacheTTL
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.InboundDLQStream == "" {
		c.InboundDLQStream = DefaultInboundDLQStream
	}
	return c
}

// Deps bundles every collaborator the Router's pipeline calls out to.
// Dispatchers, Reputation, and DLQ may be nil, in which case that step is
// skipped (useful for a router that only scores events and never dispatches
// commands, or for tests exercising one slice of the pipeline).
type Deps struct {
	Entities    EntityResolver
	Commands    CommandLookup
	Sessions    SessionResolver
	Limiter     RateLimiter
	Reserved    ReservedChecker
	Authorizer  Authorizer
	Dispatchers map[storage.Transport]Dispatcher
	Reputation  ReputationEmitter
	DLQ         DLQPublisher
	Actions     ActionPusher
	Audit       *aaa.Logger
	Log         *slog.Logger
}

// Router is the dispatcher core of spec.md §4.2.
type Router struct {
	cfg  Config
	deps Deps

	entityCache *cache.Cache[string, string]
	log         *slog.Logger
	audit       *aaa.Logger
}

// New builds a Router. Commands, Sessions, and Entities are required;
// every other Deps field degrades gracefully when nil.
func New(cfg Config, deps Deps) *Router {
	cfg = cfg.withDefaults()
	if deps.Reserved == nil {
		deps.Reserved = noReservedCommands{}
	}
	if deps.Authorizer == nil {
		deps.Authorizer = AllowAllAuthorizer{}
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Audit == nil {
		deps.Audit = aaa.WithLogger(deps.Log)
	}
	return &Router{
		cfg:         cfg,
		deps:        deps,
		entityCache: cache.New[string, string](cfg.EntityCacheTTL),
		log:         deps.Log,
		audit:       deps.Audit,
	}
}

type noReservedCommands struct{}

func (noReservedCommands) IsReserved(platform, command string) bool { return false }

// ProcessEvent runs the full spec.md §4.2 pipeline for one envelope.
func (r *Router) ProcessEvent(ctx context.Context, env *envelope.Envelope) Result {
	if err := env.Validate(); err != nil {
		r.toDLQ(ctx, env, err)
		r.audit.Audit(ctx, "router", env.UserID, "process_event", aaa.ResultFailure, "",
			map[string]any{"state": string(StateRejected), "reason": err.Error()})
		return Result{State: StateRejected, Error: err.Error()}
	}

	sess, err := r.deps.Sessions.Resolve(ctx, env.EntityID, env.UserID)
	if err != nil {
		r.log.ErrorContext(ctx, "router: session resolve failed", "entity_id", env.EntityID, "error", err)
		return Result{State: StateFailed, Error: err.Error()}
	}

	communityID, err := r.resolveCommunity(ctx, env.EntityID)
	if err != nil {
		r.log.WarnContext(ctx, "router: community resolve failed", "entity_id", env.EntityID, "error", err)
	}

	commands := r.detectCommands(ctx, env)

	state := StateReceived
	action := "none"
	for _, cmd := range commands {
		cmdState, cmdAction := r.routeCommand(ctx, env, sess, communityID, cmd)
		state = cmdState
		if cmdAction != "" {
			action = cmdAction
		}
	}
	if len(commands) == 0 {
		state = StateCompleted
	}

	r.emitReputation(ctx, env, communityID)

	r.audit.Audit(ctx, "router", env.UserID, "process_event", resultForState(state), sess.CorrelationID,
		map[string]any{"state": string(state), "entity_id": env.EntityID})

	return Result{SessionID: sess.SessionID, CorrelationID: sess.CorrelationID, State: state, Action: action}
}

// detectCommands implements spec.md §4.2 step 4: a prefix match takes
// precedence; otherwise fall back to event-triggered command records.
func (r *Router) detectCommands(ctx context.Context, env *envelope.Envelope) []storage.Command {
	prefix, name, _, ok := command.Parse(env.Message, r.cfg.Prefixes)
	if ok {
		cmd, err := r.deps.Commands.Lookup(ctx, prefix, name, env.EntityID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				r.log.WarnContext(ctx, "router: command lookup failed", "command", name, "error", err)
			}
			return nil
		}
		return []storage.Command{cmd}
	}

	cmds, err := r.deps.Commands.EventTriggered(ctx, string(env.EventType), env.EntityID)
	if err != nil {
		r.log.WarnContext(ctx, "router: event-triggered command lookup failed", "event_type", env.EventType, "error", err)
		return nil
	}
	return cmds
}

// routeCommand runs steps 5-9 for one matched command.
func (r *Router) routeCommand(ctx context.Context, env *envelope.Envelope, sess session.Session, communityID string, cmd storage.Command) (State, string) {
	_, _, args, _ := command.Parse(env.Message, r.cfg.Prefixes)

	if r.deps.Reserved.IsReserved(string(env.Platform), cmd.Command) {
		r.auditCommand(ctx, env, sess, cmd, StateRejected, "reserved command")
		return StateRejected, ""
	}

	lim := r.cfg.DefaultRateLimit
	if cmd.RateLimitPerMinute > 0 {
		lim = ratelimit.Limit{Count: int64(cmd.RateLimitPerMinute), Window: time.Minute}
	}
	if r.deps.Limiter != nil {
		rlKey := fmt.Sprintf("router:%s:%s", env.UserID, cmd.Command)
		allowed, err := r.deps.Limiter.Allow(ctx, rlKey, lim)
		if err != nil {
			r.log.WarnContext(ctx, "router: rate limiter unavailable", "error", err)
		} else if !allowed {
			r.auditCommand(ctx, env, sess, cmd, StateRateLimited, "rate limit exceeded")
			return StateRateLimited, ""
		}
	}

	if cmd.AuthRequired {
		ok, err := r.deps.Authorizer.Authorize(ctx, env, cmd)
		if err != nil || !ok {
			r.auditCommand(ctx, env, sess, cmd, StateUnauthorized, "authorization denied")
			return StateUnauthorized, ""
		}
	}

	dispatcher, ok := r.deps.Dispatchers[cmd.Transport]
	if !ok {
		r.log.ErrorContext(ctx, "router: no dispatcher configured for transport", "transport", cmd.Transport)
		r.auditCommand(ctx, env, sess, cmd, StateFailed, "no dispatcher for transport")
		return StateFailed, ""
	}

	timeout := time.Duration(cmd.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := dispatcher.Dispatch(dctx, cmd, DispatchRequest{
		Command:       cmd.Command,
		Args:          args,
		Envelope:      env,
		SessionID:     sess.SessionID,
		CorrelationID: sess.CorrelationID,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			r.auditCommand(ctx, env, sess, cmd, StateTimedOut, err.Error())
			return StateTimedOut, ""
		}
		r.auditCommand(ctx, env, sess, cmd, StateFailed, err.Error())
		return StateFailed, ""
	}

	if resp.Async {
		if err := r.deps.Sessions.SetInteractionModule(ctx, env.EntityID, env.UserID, cmd.ModuleID); err != nil {
			r.log.WarnContext(ctx, "router: failed to record interaction module", "error", err)
		}
		r.auditCommand(ctx, env, sess, cmd, StateAwaitingResponse, "")
		return StateAwaitingResponse, ""
	}
	if !resp.Success {
		r.auditCommand(ctx, env, sess, cmd, StateFailed, resp.Error)
		return StateFailed, ""
	}

	r.auditCommand(ctx, env, sess, cmd, StateCompleted, "")
	r.scheduleChatReply(ctx, env, resp.ResponseAction, resp.ResponseData)
	return StateCompleted, resp.ResponseAction
}

// scheduleChatReply implements the second half of spec.md §4.2 step 9 for
// the synchronous dispatch path: a "chat" response_action carries its text
// in response_data.message.
func (r *Router) scheduleChatReply(ctx context.Context, env *envelope.Envelope, action string, data map[string]any) {
	if action != "chat" || r.deps.Actions == nil {
		return
	}
	message, _ := data["message"].(string)
	if err := r.deps.Actions.PushChatReply(ctx, env.EntityID, env.UserID, message); err != nil {
		r.log.WarnContext(ctx, "router: schedule chat reply failed", "entity_id", env.EntityID, "error", err)
	}
}

func (r *Router) auditCommand(ctx context.Context, env *envelope.Envelope, sess session.Session, cmd storage.Command, state State, reason string) {
	detail := map[string]any{"state": string(state), "command": cmd.Command}
	if reason != "" {
		detail["reason"] = reason
	}
	r.audit.Audit(ctx, "router", env.UserID, "dispatch_command", resultForState(state), sess.CorrelationID, detail)
}

// emitReputation implements spec.md §4.2 step 10: "For enumerated event
// types (or a successful command), emit a reputation event to the engine."
// Emission is attempted for every recognized community regardless of event
// type; the engine's own weight table (spec.md §4.3 step 2) resolves
// unrecognized event names to a zero-weight no-op, so the router does not
// need its own enumeration of "reputation-worthy" event types.
func (r *Router) emitReputation(ctx context.Context, env *envelope.Envelope, communityID string) {
	if r.deps.Reputation == nil || communityID == "" {
		return
	}
	_, err := r.deps.Reputation.RecordEvent(ctx, &reprpc.RecordEventRequest{
		Token:          r.cfg.ReputationToken,
		CommunityID:    communityID,
		UserID:         env.UserID,
		Platform:       string(env.Platform),
		PlatformUserID: env.UserID,
		EntityID:       env.EntityID,
		EventID:        env.EventID,
		EventType:      string(env.EventType),
		Metadata:       env.Metadata,
	})
	if err != nil {
		r.log.WarnContext(ctx, "router: reputation emission failed", "event_id", env.EventID, "error", err)
	}
}

func (r *Router) resolveCommunity(ctx context.Context, entityID string) (string, error) {
	return r.entityCache.GetOrLoad(cache.EntityKey(entityID), func() (string, error) {
		return r.deps.Entities.CommunityID(ctx, entityID)
	})
}

func (r *Router) toDLQ(ctx context.Context, env *envelope.Envelope, reason error) {
	if r.deps.DLQ == nil {
		return
	}
	payload := map[string]any{
		"original_event":  env,
		"failure_reason":  reason.Error(),
		"original_stream": "events:inbound",
	}
	if err := r.deps.DLQ.Publish(ctx, r.cfg.InboundDLQStream, env.EventID, payload); err != nil {
		r.log.ErrorContext(ctx, "router: failed to publish to DLQ", "event_id", env.EventID, "error", err)
	}
}

func resultForState(s State) aaa.Result {
	switch s {
	case StateCompleted, StateAwaitingResponse, StateDispatched, StateAuthorized, StateRateChecked, StateReceived:
		return aaa.ResultSuccess
	case StateRateLimited, StateUnauthorized, StateRejected:
		return aaa.ResultDenied
	case StateTimedOut:
		return aaa.ResultTimeout
	default:
		return aaa.ResultFailure
	}
}
