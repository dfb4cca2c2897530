package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by repository lookups that find no matching row.
var ErrNotFound = errors.New("storage: not found")

// Entity is an operator-registered (platform, server, channel) location,
// mapped to the community_id it belongs to (spec.md §3 Routing table).
type Entity struct {
	EntityID    string
	Platform    string
	ServerID    string
	ChannelID   string
	CommunityID string
}

// EntityRepo provides access to the entities table.
type EntityRepo struct {
	pool *pgxpool.Pool
}

// CommunityID resolves entity_id to the community_id it belongs to, per
// spec.md §4.2 step 3.
func (r *EntityRepo) CommunityID(ctx context.Context, entityID string) (string, error) {
	var communityID string
	err := r.pool.QueryRow(ctx,
		`SELECT community_id FROM entities WHERE entity_id = $1`, entityID,
	).Scan(&communityID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: entity %q", ErrNotFound, entityID)
	}
	if err != nil {
		return "", fmt.Errorf("storage: resolve community for entity %q: %w", entityID, err)
	}
	return communityID, nil
}

// Upsert registers or updates an entity's routing metadata.
func (r *EntityRepo) Upsert(ctx context.Context, e Entity) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO entities (entity_id, platform, server_id, channel_id, community_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (entity_id) DO UPDATE SET
			platform = EXCLUDED.platform,
			server_id = EXCLUDED.server_id,
			channel_id = EXCLUDED.channel_id,
			community_id = EXCLUDED.community_id,
			updated_at = now()
	`, e.EntityID, e.Platform, e.ServerID, e.ChannelID, e.CommunityID)
	if err != nil {
		return fmt.Errorf("storage: upsert entity %q: %w", e.EntityID, err)
	}
	return nil
}

// Gateway is an outbound fan-out target: a platform/server/channel triple a
// community's action pushers post back to (spec.md §3 Routing table).
type Gateway struct {
	ID       int64
	Platform string
	ServerID string
	ChannelID string
	IsActive bool
}

// RoutingRepo resolves community_id to its configured outbound gateways.
type RoutingRepo struct {
	pool *pgxpool.Pool
}

// GatewaysForCommunity returns the active gateways fanning out for communityID.
func (r *RoutingRepo) GatewaysForCommunity(ctx context.Context, communityID string) ([]Gateway, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT g.id, g.platform, g.server_id, g.channel_id, g.is_active
		FROM routing_gateways g
		JOIN gateway_servers gs ON gs.gateway_id = g.id
		WHERE gs.community_id = $1 AND g.is_active
	`, communityID)
	if err != nil {
		return nil, fmt.Errorf("storage: list gateways for community %q: %w", communityID, err)
	}
	defer rows.Close()

	var gateways []Gateway
	for rows.Next() {
		var g Gateway
		if err := rows.Scan(&g.ID, &g.Platform, &g.ServerID, &g.ChannelID, &g.IsActive); err != nil {
			return nil, fmt.Errorf("storage: scan gateway: %w", err)
		}
		gateways = append(gateways, g)
	}
	return gateways, rows.Err()
}

// EntitiesForCommunity lists the entities belonging to communityID, used by
// waddlebotctl's routing inspection.
func (r *RoutingRepo) EntitiesForCommunity(ctx context.Context, communityID string) ([]Entity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT entity_id, platform, server_id, channel_id, community_id
		FROM entities WHERE community_id = $1
	`, communityID)
	if err != nil {
		return nil, fmt.Errorf("storage: list entities for community %q: %w", communityID, err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.EntityID, &e.Platform, &e.ServerID, &e.ChannelID, &e.CommunityID); err != nil {
			return nil, fmt.Errorf("storage: scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// EntitiesByPlatform lists every entity for platform, used by a receiver's
// startup channel discovery (spec.md §4.4).
func (r *EntityRepo) EntitiesByPlatform(ctx context.Context, platform string) ([]Entity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT entity_id, platform, server_id, channel_id, community_id
		FROM entities WHERE platform = $1
	`, platform)
	if err != nil {
		return nil, fmt.Errorf("storage: list entities for platform %q: %w", platform, err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.EntityID, &e.Platform, &e.ServerID, &e.ChannelID, &e.CommunityID); err != nil {
			return nil, fmt.Errorf("storage: scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}
