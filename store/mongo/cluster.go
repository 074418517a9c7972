package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	livequeue "github.com/omnikit/livequeue"
	"github.com/omnikit/livequeue/cluster"
	"github.com/omnikit/livequeue/id"
)

// RegisterInstance upserts an instance into the registry. Restarting a
// process with the same ID refreshes its record.
func (s *Store) RegisterInstance(ctx context.Context, inst *cluster.Instance) error {
	ts := now()
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = ts
	}
	inst.LastSeen = ts

	m := toInstanceModel(inst)
	_, err := s.db.Collection(colInstances).
		ReplaceOne(ctx,
			bson.M{"_id": m.ID},
			m,
			options.Replace().SetUpsert(true),
		)
	if err != nil {
		return fmt.Errorf("livequeue/mongo: register instance: %w", err)
	}
	return nil
}

// DeregisterInstance removes an instance, releasing any leadership it held.
func (s *Store) DeregisterInstance(ctx context.Context, instanceID id.InstanceID) error {
	res, err := s.db.Collection(colInstances).
		DeleteOne(ctx, bson.M{"_id": instanceID.String()})
	if err != nil {
		return fmt.Errorf("livequeue/mongo: deregister instance: %w", err)
	}
	if res.DeletedCount == 0 {
		return livequeue.ErrInstanceNotFound
	}
	return nil
}

// HeartbeatInstance refreshes the last-seen timestamp for an instance.
func (s *Store) HeartbeatInstance(ctx context.Context, instanceID id.InstanceID) error {
	res, err := s.db.Collection(colInstances).
		UpdateOne(ctx,
			bson.M{"_id": instanceID.String()},
			bson.M{"$set": bson.M{"last_seen": now()}},
		)
	if err != nil {
		return fmt.Errorf("livequeue/mongo: heartbeat instance: %w", err)
	}
	if res.MatchedCount == 0 {
		return livequeue.ErrInstanceNotFound
	}
	return nil
}

// ListInstances returns all registered instances, oldest first.
func (s *Store) ListInstances(ctx context.Context) ([]*cluster.Instance, error) {
	cur, err := s.db.Collection(colInstances).
		Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("livequeue/mongo: list instances: %w", err)
	}
	defer cur.Close(ctx)

	var out []*cluster.Instance
	for cur.Next(ctx) {
		var m instanceModel
		if err := cur.Decode(&m); err != nil {
			return nil, fmt.Errorf("livequeue/mongo: decode instance: %w", err)
		}
		inst, err := fromInstanceModel(&m)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("livequeue/mongo: list instances: %w", err)
	}
	return out, nil
}

// AcquireLeadership attempts to claim the sweep-leader role. Three steps:
// clear any expired claim, check whether an active leader remains, then
// claim by flipping is_leader on our own instance document.
func (s *Store) AcquireLeadership(ctx context.Context, instanceID id.InstanceID, ttl time.Duration) (bool, error) {
	ts := now()

	_, err := s.db.Collection(colInstances).
		UpdateMany(ctx,
			bson.M{
				"is_leader":    true,
				"leader_until": bson.M{"$lt": ts},
			},
			bson.M{
				"$set":   bson.M{"is_leader": false},
				"$unset": bson.M{"leader_until": ""},
			},
		)
	if err != nil {
		return false, fmt.Errorf("livequeue/mongo: clear expired leader: %w", err)
	}

	n, err := s.db.Collection(colInstances).
		CountDocuments(ctx, bson.M{
			"is_leader":    true,
			"leader_until": bson.M{"$gte": ts},
			"_id":          bson.M{"$ne": instanceID.String()},
		})
	if err != nil {
		return false, fmt.Errorf("livequeue/mongo: check leader: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	until := ts.Add(ttl)
	res, err := s.db.Collection(colInstances).
		UpdateOne(ctx,
			bson.M{"_id": instanceID.String()},
			bson.M{"$set": bson.M{
				"is_leader":    true,
				"leader_until": until,
				"last_seen":    ts,
			}},
		)
	if err != nil {
		return false, fmt.Errorf("livequeue/mongo: claim leadership: %w", err)
	}
	if res.MatchedCount == 0 {
		return false, livequeue.ErrInstanceNotFound
	}
	return true, nil
}

// RenewLeadership extends the hold of the current leader. Fails when the
// instance is no longer leader or the claim already expired.
func (s *Store) RenewLeadership(ctx context.Context, instanceID id.InstanceID, ttl time.Duration) (bool, error) {
	ts := now()
	res, err := s.db.Collection(colInstances).
		UpdateOne(ctx,
			bson.M{
				"_id":          instanceID.String(),
				"is_leader":    true,
				"leader_until": bson.M{"$gte": ts},
			},
			bson.M{"$set": bson.M{
				"leader_until": ts.Add(ttl),
				"last_seen":    ts,
			}},
		)
	if err != nil {
		return false, fmt.Errorf("livequeue/mongo: renew leadership: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// GetLeader returns the active leader, or nil when there is none.
func (s *Store) GetLeader(ctx context.Context) (*cluster.Instance, error) {
	var m instanceModel
	err := s.db.Collection(colInstances).
		FindOne(ctx, bson.M{
			"is_leader":    true,
			"leader_until": bson.M{"$gte": now()},
		}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("livequeue/mongo: get leader: %w", err)
	}
	return fromInstanceModel(&m)
}
