package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Transport names the dispatch target kind for a Command, per spec.md §3.
type Transport string

const (
	TransportContainer   Transport = "container"
	TransportREST        Transport = "rest"
	TransportGRPC        Transport = "grpc"
	TransportLambda      Transport = "lambda"
	TransportGCPFunction Transport = "gcp_function"
	TransportOpenWhisk   Transport = "openwhisk"
)

// TriggerType distinguishes prefix-invoked commands from event-triggered
// ones, per spec.md §3.
type TriggerType string

const (
	TriggerCommand TriggerType = "command"
	TriggerEvent   TriggerType = "event"
)

// Command is the operator-managed dispatch record described in spec.md §3.
type Command struct {
	ID                 int64
	Command            string
	Prefix             string
	Description        string
	LocationURL        string
	Transport          Transport
	Method             string
	TimeoutMS          int
	AuthRequired       bool
	RateLimitPerMinute int
	Priority           int
	ModuleID           string
	TriggerType        TriggerType
	EventTypes         []string
	EntityID           string // empty means globally visible
	IsActive           bool
	Version            int
}

// CommandRepo provides lookups against the commands table.
type CommandRepo struct {
	pool *pgxpool.Pool
}

const commandColumns = `
	id, command, prefix, description, location_url, transport, method,
	timeout_ms, auth_required, rate_limit_per_minute, priority, module_id,
	trigger_type, event_types, COALESCE(entity_id, ''), is_active, version
`

func scanCommand(row pgx.Row) (Command, error) {
	var c Command
	err := row.Scan(
		&c.ID, &c.Command, &c.Prefix, &c.Description, &c.LocationURL, &c.Transport, &c.Method,
		&c.TimeoutMS, &c.AuthRequired, &c.RateLimitPerMinute, &c.Priority, &c.ModuleID,
		&c.TriggerType, &c.EventTypes, &c.EntityID, &c.IsActive, &c.Version,
	)
	return c, err
}

// Lookup finds the active command matching (prefix, command) visible to
// entityID: an entity-scoped row takes precedence over a global one, per
// spec.md §3's "(prefix, command, entity_id-visibility)" lookup key.
func (r *CommandRepo) Lookup(ctx context.Context, prefix, command, entityID string) (Command, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM commands
		WHERE prefix = $1 AND command = $2 AND is_active
		  AND (entity_id = $3 OR entity_id IS NULL)
		ORDER BY entity_id NULLS LAST
		LIMIT 1
	`, commandColumns), prefix, command, entityID)

	c, err := scanCommand(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Command{}, fmt.Errorf("%w: command %q%q for entity %q", ErrNotFound, prefix, command, entityID)
	}
	if err != nil {
		return Command{}, fmt.Errorf("storage: lookup command %q%q: %w", prefix, command, err)
	}
	return c, nil
}

// EventTriggered lists active commands configured to fire on eventType,
// visible to entityID, per spec.md §4.2 step 4's event-triggered dispatch.
func (r *CommandRepo) EventTriggered(ctx context.Context, eventType, entityID string) ([]Command, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM commands
		WHERE trigger_type = 'event' AND is_active
		  AND $1 = ANY(event_types)
		  AND (entity_id = $2 OR entity_id IS NULL)
	`, commandColumns), eventType, entityID)
	if err != nil {
		return nil, fmt.Errorf("storage: lookup event-triggered commands for %q: %w", eventType, err)
	}
	defer rows.Close()

	var commands []Command
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan command: %w", err)
		}
		commands = append(commands, c)
	}
	return commands, rows.Err()
}

// ListActive returns every active command, used by the
// GET /api/v1/router/commands surface (spec.md §6).
func (r *CommandRepo) ListActive(ctx context.Context) ([]Command, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM commands WHERE is_active`, commandColumns))
	if err != nil {
		return nil, fmt.Errorf("storage: list active commands: %w", err)
	}
	defer rows.Close()

	var commands []Command
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan command: %w", err)
		}
		commands = append(commands, c)
	}
	return commands, rows.Err()
}

// Upsert inserts or updates a command record, keyed by (prefix, command, entity_id).
func (r *CommandRepo) Upsert(ctx context.Context, c Command) error {
	var entityID any
	if c.EntityID != "" {
		entityID = c.EntityID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO commands (
			command, prefix, description, location_url, transport, method,
			timeout_ms, auth_required, rate_limit_per_minute, priority, module_id,
			trigger_type, event_types, entity_id, is_active, version, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16, now())
		ON CONFLICT (prefix, command, COALESCE(entity_id, '')) DO UPDATE SET
			description = EXCLUDED.description,
			location_url = EXCLUDED.location_url,
			transport = EXCLUDED.transport,
			method = EXCLUDED.method,
			timeout_ms = EXCLUDED.timeout_ms,
			auth_required = EXCLUDED.auth_required,
			rate_limit_per_minute = EXCLUDED.rate_limit_per_minute,
			priority = EXCLUDED.priority,
			module_id = EXCLUDED.module_id,
			trigger_type = EXCLUDED.trigger_type,
			event_types = EXCLUDED.event_types,
			is_active = EXCLUDED.is_active,
			version = EXCLUDED.version,
			updated_at = now()
	`, c.Command, c.Prefix, c.Description, c.LocationURL, c.Transport, c.Method,
		c.TimeoutMS, c.AuthRequired, c.RateLimitPerMinute, c.Priority, c.ModuleID,
		c.TriggerType, c.EventTypes, entityID, c.IsActive, c.Version)
	if err != nil {
		return fmt.Errorf("storage: upsert command %q%q: %w", c.Prefix, c.Command, err)
	}
	return nil
}
