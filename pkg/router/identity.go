package router

import (
	"context"

	"github.com/waddlebot/core/pkg/envelope"
	"github.com/waddlebot/core/pkg/storage"
)

// Authorizer resolves a user's identity and checks it against a command's
// required role/scope, per spec.md §4.2 step 7: "If the command record
// marks auth_required, resolve user identity (via the Identity
// collaborator) and check the required role/scope."
//
// spec.md §6's persisted-state layout names no identity/roles table — the
// Identity collaborator lives outside this module's schema — so Router
// depends on this interface rather than a concrete storage type; deployments
// wire in whatever resolves platform role membership (Discord guild roles,
// Twitch mod lists, an internal identity service).
type Authorizer interface {
	Authorize(ctx context.Context, env *envelope.Envelope, cmd storage.Command) (bool, error)
}

// AllowAllAuthorizer authorizes every auth_required command unconditionally.
// It is the Router's zero-configuration default so auth_required commands
// still dispatch in deployments that have not wired a real Authorizer,
// rather than silently rejecting every such command.
type AllowAllAuthorizer struct{}

func (AllowAllAuthorizer) Authorize(ctx context.Context, env *envelope.Envelope, cmd storage.Command) (bool, error) {
	return true, nil
}
