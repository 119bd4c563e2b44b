package sink

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	redisclient "marketscanner/pkg/redis"
)

// EventStore is the Event Sink's external collaborator: an insert-if-
// absent-on-key record store, backed by pkg/redis.Client's SetNX/SetNXBatch
// pipelining rather than a purpose-built SQL schema, matching the teacher's
// use of Redis as the system of record for streaming-derived state.
type EventStore struct {
	client *redisclient.Client
	logger *zap.Logger
	ttl    time.Duration
}

// StoreConfig configures the EventStore's Redis connection.
type StoreConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL bounds how long a dedup key is retained; zero means "forever"
	// (the caller is responsible for key-space growth in that case).
	TTL time.Duration
}

// NewEventStore opens a Redis connection via pkg/redis.NewClient, which
// verifies it with a Ping before returning.
func NewEventStore(ctx context.Context, cfg StoreConfig, logger *zap.Logger) (*EventStore, error) {
	client, err := redisclient.NewClient(redisclient.ClientConfig{
		URL:      "redis://" + cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("event store: failed to connect to redis: %w", err)
	}

	return &EventStore{client: client, logger: logger, ttl: cfg.TTL}, nil
}

// redisKey returns the namespaced key BuildChannelName-style used to back
// the composite (symbol, venue, timeframe, bar_ts) dedup key.
func redisKey(rec EventRecord) string {
	return "marketscanner:event:" + rec.Key()
}

// Insert stores rec with insert-if-absent-on-key semantics (spec §4.9: "set
// if absent on key, else ignore"), using Redis SETNX so two concurrent
// phases racing on the same bar never overwrite each other's record.
// Returns true if rec was newly stored, false if a record already existed
// under that key (the no-op "ignore" branch).
func (s *EventStore) Insert(ctx context.Context, rec EventRecord) (bool, error) {
	ok, err := s.client.SetNX(ctx, redisKey(rec), rec, s.ttl)
	if err != nil {
		s.logger.Error("event store insert failed",
			zap.String("key", rec.Key()), zap.Error(err))
		return false, fmt.Errorf("event store: setnx failed: %w", err)
	}
	if !ok {
		s.logger.Debug("event record already present, ignoring", zap.String("key", rec.Key()))
	}
	return ok, nil
}

// InsertBatch inserts every record in a single pipeline via
// pkg/redis.Client.SetNXBatch, mirroring its PublishBatch's pipelining for
// per-symbol-batch throughput.
func (s *EventStore) InsertBatch(ctx context.Context, recs []EventRecord) (inserted int, err error) {
	if len(recs) == 0 {
		return 0, nil
	}

	items := make(map[string]interface{}, len(recs))
	for _, rec := range recs {
		items[redisKey(rec)] = rec
	}

	inserted, err = s.client.SetNXBatch(ctx, items, s.ttl)
	if err != nil {
		return 0, fmt.Errorf("event store: batch insert failed: %w", err)
	}
	return inserted, nil
}

// Close releases the underlying Redis connection.
func (s *EventStore) Close() error {
	return s.client.Close()
}
