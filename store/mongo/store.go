// Package mongo implements store.Store on MongoDB. The one-active-inquiry-
// per-room invariant is enforced by a partial unique index on the inquiry
// collection; Migrate must run before the store is used.
//
// Usage:
//
//	client, _ := mongod.Connect(options.Client().ApplyURI(uri))
//	s := mongo.New(client.Database("livequeue"))
//	if err := s.Migrate(ctx); err != nil { ... }
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omnikit/livequeue/cluster"
	"github.com/omnikit/livequeue/inquiry"
	"github.com/omnikit/livequeue/notify"
	"github.com/omnikit/livequeue/room"
	"github.com/omnikit/livequeue/store"
)

// Collection name constants.
const (
	colInquiries = "livequeue_inquiries"
	colRooms     = "livequeue_rooms"
	colNotices   = "livequeue_notices"
	colInstances = "livequeue_instances"
	colCounters  = "livequeue_counters"
)

// Ensure Store implements all subsystem interfaces at compile time.
var (
	_ inquiry.Store = (*Store)(nil)
	_ room.Store    = (*Store)(nil)
	_ notify.Store  = (*Store)(nil)
	_ cluster.Store = (*Store)(nil)
	_ store.Store   = (*Store)(nil)
)

// Store implements the composite store.Store interface backed by MongoDB.
// The caller owns the client lifecycle; Store never closes it.
type Store struct {
	db     *mongod.Database
	logger *slog.Logger

	// subscribePollInterval controls the SubscribeNotice polling cadence.
	subscribePollInterval time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a new MongoDB store on the given database handle.
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		db:                    db,
		logger:                slog.Default(),
		subscribePollInterval: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying database handle for advanced usage.
func (s *Store) DB() *mongod.Database { return s.db }

// Migrate creates indexes for all livequeue collections, including the
// partial unique index the inquiry invariant depends on.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("livequeue/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close is a no-op because the caller owns the client lifecycle.
func (s *Store) Close() error { return nil }

// ── helpers ──────────────────────────────────────────────────────

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments returns true when err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// isDuplicateKey checks if a MongoDB error is a duplicate key violation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "E11000")
}

// activeStatuses are the inquiry statuses that count against the
// one-active-inquiry-per-room invariant.
var activeStatuses = []string{
	string(inquiry.StatusQueued),
	string(inquiry.StatusReady),
	string(inquiry.StatusTaken),
}

// migrationIndexes returns the index definitions for all collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colInquiries: {
			// The invariant: at most one active inquiry per room. Partial
			// so removed inquiries stay for audit without blocking a
			// fresh one.
			{
				Keys: bson.D{{Key: "room_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{
						"status": bson.M{"$in": activeStatuses},
					}),
			},
			// Sweep index: status + department + queued_at.
			{Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "department", Value: 1},
				{Key: "queued_at", Value: 1},
			}},
		},
		colRooms: {
			{Keys: bson.D{{Key: "open", Value: 1}}},
			{Keys: bson.D{{Key: "visitor.id", Value: 1}}},
		},
		colNotices: {
			// Pending notices index for subscribe.
			{Keys: bson.D{
				{Key: "topic", Value: 1},
				{Key: "acked_at", Value: 1},
				{Key: "created_at", Value: 1},
			}},
		},
		colInstances: {
			{Keys: bson.D{{Key: "is_leader", Value: 1}}},
			{Keys: bson.D{{Key: "last_seen", Value: 1}}},
		},
	}
}
