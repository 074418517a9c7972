package postgres

import (
	"context"
	"fmt"
	"time"

	livequeue "github.com/omnikit/livequeue"
	"github.com/omnikit/livequeue/cluster"
	"github.com/omnikit/livequeue/id"
)

const instanceColumns = `
	id, hostname, departments, state, is_leader, leader_until, last_seen, created_at`

// RegisterInstance upserts an instance into the registry. Restarting a
// process with the same ID refreshes its record.
func (s *Store) RegisterInstance(ctx context.Context, inst *cluster.Instance) error {
	ts := now()
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = ts
	}
	inst.LastSeen = ts

	_, err := s.pool.Exec(ctx, `
		INSERT INTO livequeue_instances (
			id, hostname, departments, state, is_leader, leader_until, last_seen, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			hostname = EXCLUDED.hostname,
			departments = EXCLUDED.departments,
			state = EXCLUDED.state,
			last_seen = EXCLUDED.last_seen`,
		inst.ID.String(), inst.Hostname, inst.Departments, string(inst.State),
		inst.IsLeader, inst.LeaderUntil, inst.LastSeen, inst.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("livequeue/postgres: register instance: %w", err)
	}
	return nil
}

// DeregisterInstance removes an instance, releasing any leadership it held.
func (s *Store) DeregisterInstance(ctx context.Context, instanceID id.InstanceID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM livequeue_instances WHERE id = $1`,
		instanceID.String(),
	)
	if err != nil {
		return fmt.Errorf("livequeue/postgres: deregister instance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return livequeue.ErrInstanceNotFound
	}
	return nil
}

// HeartbeatInstance refreshes the last-seen timestamp for an instance.
func (s *Store) HeartbeatInstance(ctx context.Context, instanceID id.InstanceID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE livequeue_instances SET last_seen = NOW() WHERE id = $1`,
		instanceID.String(),
	)
	if err != nil {
		return fmt.Errorf("livequeue/postgres: heartbeat instance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return livequeue.ErrInstanceNotFound
	}
	return nil
}

// ListInstances returns all registered instances, oldest first.
func (s *Store) ListInstances(ctx context.Context) ([]*cluster.Instance, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+instanceColumns+` FROM livequeue_instances ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("livequeue/postgres: list instances: %w", err)
	}
	defer rows.Close()

	var out []*cluster.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("livequeue/postgres: iterate instances: %w", err)
	}
	return out, nil
}

// AcquireLeadership attempts to claim the sweep-leader role. A single
// statement: the claim succeeds only when no other instance holds an
// unexpired lease.
func (s *Store) AcquireLeadership(ctx context.Context, instanceID id.InstanceID, ttl time.Duration) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE livequeue_instances
		SET is_leader = TRUE, leader_until = NOW() + make_interval(secs => $2), last_seen = NOW()
		WHERE id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM livequeue_instances
			WHERE is_leader = TRUE AND leader_until >= NOW() AND id <> $1
		  )`,
		instanceID.String(), ttl.Seconds(),
	)
	if err != nil {
		return false, fmt.Errorf("livequeue/postgres: acquire leadership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either another leader is active or the instance is unregistered.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM livequeue_instances WHERE id = $1)`,
			instanceID.String(),
		).Scan(&exists); err != nil {
			return false, fmt.Errorf("livequeue/postgres: check instance: %w", err)
		}
		if !exists {
			return false, livequeue.ErrInstanceNotFound
		}
		return false, nil
	}
	return true, nil
}

// RenewLeadership extends the hold of the current leader. Fails when the
// instance is no longer leader or the lease already expired.
func (s *Store) RenewLeadership(ctx context.Context, instanceID id.InstanceID, ttl time.Duration) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE livequeue_instances
		SET leader_until = NOW() + make_interval(secs => $2), last_seen = NOW()
		WHERE id = $1 AND is_leader = TRUE AND leader_until >= NOW()`,
		instanceID.String(), ttl.Seconds(),
	)
	if err != nil {
		return false, fmt.Errorf("livequeue/postgres: renew leadership: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetLeader returns the active leader, or nil when there is none.
func (s *Store) GetLeader(ctx context.Context) (*cluster.Instance, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+instanceColumns+`
		 FROM livequeue_instances
		 WHERE is_leader = TRUE AND leader_until >= NOW()`,
	)
	inst, err := scanInstance(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("livequeue/postgres: get leader: %w", err)
	}
	return inst, nil
}

// ── scanning ─────────────────────────────────────────────────────

func scanInstance(row rowScanner) (*cluster.Instance, error) {
	var (
		rawID, state string
		inst         cluster.Instance
	)
	err := row.Scan(
		&rawID, &inst.Hostname, &inst.Departments, &state,
		&inst.IsLeader, &inst.LeaderUntil, &inst.LastSeen, &inst.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if inst.ID, err = id.ParseInstanceID(rawID); err != nil {
		return nil, fmt.Errorf("livequeue/postgres: parse instance id %q: %w", rawID, err)
	}
	inst.State = cluster.InstanceState(state)
	return &inst, nil
}
