// Package aaa provides authentication/authorization/audit logging shared
// across every component, per spec.md §4.6. It is a thin wrapper over
// log/slog — the teacher threads a *slog.Logger built with slog.With(...)
// through every constructor rather than reaching for a global logger or a
// third-party structured-logging library, and this package follows the
// same shape, just with a fixed record schema.
package aaa

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/waddlebot/core/pkg/masking"
)

// Kind classifies the audit record, per spec.md §4.6.
type Kind string

const (
	KindAuth   Kind = "AUTH"
	KindAuthz  Kind = "AUTHZ"
	KindAudit  Kind = "AUDIT"
	KindSystem Kind = "SYSTEM"
	KindError  Kind = "ERROR"
)

// Result classifies the outcome of the audited action.
type Result string

const (
	ResultSuccess Result = "SUCCESS"
	ResultFailure Result = "FAILURE"
	ResultDenied  Result = "DENIED"
	ResultTimeout Result = "TIMEOUT"
)

// Record is one AAA audit entry.
type Record struct {
	Kind          Kind
	Actor         string
	Subject       string
	Action        string
	Result        Result
	CorrelationID string
	// Detail carries optional free-form key/value pairs (e.g. error text,
	// rate-limit key). Kept small and scalar — never the full envelope or
	// message body, so logs never become a second copy of chat content.
	Detail map[string]any
}

// Logger emits AAA records through a slog.Logger. The zero value is not
// usable; construct with New.
type Logger struct {
	base   *slog.Logger
	redact *masking.Service
}

// New builds an AAA logger. component names the emitting service (e.g.
// "router", "reputation") and is attached to every record. Every Detail
// value is redacted through pkg/masking before being logged, so an
// OAuth token or webhook secret accidentally passed in Detail never
// reaches the audit trail in cleartext.
func New(component string) *Logger {
	return &Logger{base: slog.Default().With("component", component), redact: masking.NewService()}
}

// WithLogger builds an AAA logger around a pre-configured *slog.Logger,
// letting callers inject additional static attributes (pod ID, version).
func WithLogger(base *slog.Logger) *Logger {
	return &Logger{base: base, redact: masking.NewService()}
}

// Emit writes one audit record. Kind/Result determine the slog level:
// FAILURE/DENIED/TIMEOUT and KindError log at Error/Warn, everything else
// at Info — audit records are never silently dropped by log-level filtering
// in production configurations that keep Info enabled.
func (l *Logger) Emit(ctx context.Context, r Record) {
	attrs := []any{
		"event_type", string(r.Kind),
		"actor", r.Actor,
		"subject", r.Subject,
		"action", r.Action,
		"result", string(r.Result),
		"correlation_id", r.CorrelationID,
	}
	for k, v := range r.Detail {
		if s, ok := v.(string); ok {
			v = l.redact.Mask(s)
		} else {
			v = l.redact.Mask(fmt.Sprint(v))
		}
		attrs = append(attrs, k, v)
	}

	switch {
	case r.Kind == KindError:
		l.base.ErrorContext(ctx, "audit", attrs...)
	case r.Result == ResultFailure || r.Result == ResultTimeout:
		l.base.WarnContext(ctx, "audit", attrs...)
	case r.Result == ResultDenied:
		l.base.WarnContext(ctx, "audit", attrs...)
	default:
		l.base.InfoContext(ctx, "audit", attrs...)
	}
}

// Auth is a convenience wrapper for KindAuth records.
func (l *Logger) Auth(ctx context.Context, actor, subject, action string, result Result, detail map[string]any) {
	l.Emit(ctx, Record{Kind: KindAuth, Actor: actor, Subject: subject, Action: action, Result: result, Detail: detail})
}

// Authz is a convenience wrapper for KindAuthz records.
func (l *Logger) Authz(ctx context.Context, actor, subject, action string, result Result, detail map[string]any) {
	l.Emit(ctx, Record{Kind: KindAuthz, Actor: actor, Subject: subject, Action: action, Result: result, Detail: detail})
}

// Audit is a convenience wrapper for KindAudit records — the router's
// per-command-execution activity trail (spec.md §4.2 step 11).
func (l *Logger) Audit(ctx context.Context, actor, subject, action string, result Result, correlationID string, detail map[string]any) {
	l.Emit(ctx, Record{Kind: KindAudit, Actor: actor, Subject: subject, Action: action, Result: result, CorrelationID: correlationID, Detail: detail})
}

// System is a convenience wrapper for KindSystem records (startup/shutdown).
func (l *Logger) System(ctx context.Context, action string, result Result, detail map[string]any) {
	l.Emit(ctx, Record{Kind: KindSystem, Action: action, Result: result, Detail: detail})
}
