// Package redisstore provides a Redis-backed storage.DocumentStore.
// Documents live in hashes; every write publishes the new state on a
// per-document channel so watchers in any process see it.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmynk/grouporder/internal/storage"
)

// Ensure RedisStore implements storage.DocumentStore
var _ storage.DocumentStore = (*RedisStore)(nil)

const maxTxRetries = 10

// change is the message published on a document's channel.
type change struct {
	Exists    bool   `json:"exists"`
	Data      string `json:"data,omitempty"`
	Revision  int64  `json:"revision"`
	UpdatedAt int64  `json:"updated_at"`
}

// RedisStore implements storage.DocumentStore using Redis
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisStore creates a new Redis-backed document store
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	store := NewRedisStoreWithClient(redis.NewClient(opts))

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return store, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "grouporder:",
		logger: slog.Default(),
	}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + "order:" + id
}

func (s *RedisStore) channel(id string) string {
	return s.prefix + "order-changes:" + id
}

// Create stores a new document unless the key is taken
func (s *RedisStore) Create(ctx context.Context, id string, doc []byte) error {
	key := s.key(id)
	now := time.Now()

	err := s.transact(ctx, key, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", storage.ErrAlreadyExists, id)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"data", string(doc),
				"revision", 1,
				"created_at", now.UnixNano(),
				"updated_at", now.UnixNano(),
			)
			return nil
		})
		return err
	})
	if err != nil {
		return classify("create document", err)
	}

	s.publish(ctx, id, change{Exists: true, Data: string(doc), Revision: 1, UpdatedAt: now.UnixNano()})
	return nil
}

// Get retrieves a document
func (s *RedisStore) Get(ctx context.Context, id string) (storage.Snapshot, error) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return storage.Snapshot{ID: id}, classify("get document", err)
	}
	return snapshotFromHash(id, fields)
}

func snapshotFromHash(id string, fields map[string]string) (storage.Snapshot, error) {
	data, ok := fields["data"]
	if !ok {
		return storage.Snapshot{ID: id}, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	revision, _ := strconv.ParseInt(fields["revision"], 10, 64)
	updatedAt, _ := strconv.ParseInt(fields["updated_at"], 10, 64)
	return storage.Snapshot{
		ID:        id,
		Data:      []byte(data),
		Exists:    true,
		Revision:  revision,
		UpdatedAt: time.Unix(0, updatedAt),
	}, nil
}

// Update overwrites top-level fields of a document
func (s *RedisStore) Update(ctx context.Context, id string, fields map[string]json.RawMessage) error {
	return s.mutate(ctx, id, func(doc []byte) ([]byte, error) {
		return storage.MergeFields(doc, fields)
	})
}

// ArrayUnion appends values to array fields unless already present
func (s *RedisStore) ArrayUnion(ctx context.Context, id string, values map[string][]json.RawMessage) error {
	return s.mutate(ctx, id, func(doc []byte) ([]byte, error) {
		return storage.UnionArrays(doc, values)
	})
}

// mutate is an optimistic read-modify-write guarded by WATCH.
func (s *RedisStore) mutate(ctx context.Context, id string, apply func([]byte) ([]byte, error)) error {
	key := s.key(id)
	var published change

	err := s.transact(ctx, key, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		current, err := snapshotFromHash(id, fields)
		if err != nil {
			return err
		}
		next, err := apply(current.Data)
		if err != nil {
			return fmt.Errorf("apply update: %w", err)
		}

		now := time.Now().UnixNano()
		published = change{Exists: true, Data: string(next), Revision: current.Revision + 1, UpdatedAt: now}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"data", published.Data,
				"revision", published.Revision,
				"updated_at", now,
			)
			return nil
		})
		return err
	})
	if err != nil {
		return classify("update document", err)
	}

	s.publish(ctx, id, published)
	return nil
}

// Delete removes a document
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	key := s.key(id)
	var (
		revision int64
		existed  bool
	)

	err := s.transact(ctx, key, func(tx *redis.Tx) error {
		rev, err := tx.HGet(ctx, key, "revision").Result()
		if err == redis.Nil {
			existed = false
			return nil
		}
		if err != nil {
			return err
		}
		existed = true
		revision, _ = strconv.ParseInt(rev, 10, 64)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	})
	if err != nil {
		return classify("delete document", err)
	}

	if existed {
		s.publish(ctx, id, change{Exists: false, Revision: revision + 1, UpdatedAt: time.Now().UnixNano()})
	}
	return nil
}

// List returns every document, newest first
func (s *RedisStore) List(ctx context.Context) ([]storage.Snapshot, error) {
	type listed struct {
		snap    storage.Snapshot
		created int64
	}
	var all []listed

	prefix := s.key("")
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		fields, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, classify("list documents", err)
		}
		snap, err := snapshotFromHash(strings.TrimPrefix(key, prefix), fields)
		if errors.Is(err, storage.ErrNotFound) {
			continue // deleted between SCAN and HGETALL
		}
		created, _ := strconv.ParseInt(fields["created_at"], 10, 64)
		all = append(all, listed{snap: snap, created: created})
	}
	if err := iter.Err(); err != nil {
		return nil, classify("scan documents", err)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].created != all[j].created {
			return all[i].created > all[j].created
		}
		return all[i].snap.ID < all[j].snap.ID
	})

	snapshots := make([]storage.Snapshot, len(all))
	for i, l := range all {
		snapshots[i] = l.snap
	}
	return snapshots, nil
}

// Watch subscribes to a document's change channel and delivers the
// current state once the subscription is confirmed.
func (s *RedisStore) Watch(ctx context.Context, id string, fn func(storage.Snapshot)) (func(), error) {
	pubsub := s.client.Subscribe(ctx, s.channel(id))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, classify("subscribe", err)
	}

	w := storage.NewWatcher(fn)
	go func() {
		for msg := range pubsub.Channel() {
			var c change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				continue
			}
			snap := storage.Snapshot{
				ID:        id,
				Exists:    c.Exists,
				Revision:  c.Revision,
				UpdatedAt: time.Unix(0, c.UpdatedAt),
			}
			if c.Exists {
				snap.Data = []byte(c.Data)
			}
			w.Offer(snap)
		}
	}()

	current, err := s.Get(ctx, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		w.Stop()
		pubsub.Close()
		return nil, err
	}
	w.Offer(current)

	stop := func() {
		w.Stop()
		pubsub.Close()
	}
	return stop, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) transact(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, key)
		if err == redis.TxFailedErr {
			continue // key changed under us; retry
		}
		return err
	}
	return fmt.Errorf("transaction on %s kept conflicting", key)
}

// publish does not fail the write it follows. Watchers that miss a message
// stay stale until the next change, so a lost one is logged.
func (s *RedisStore) publish(ctx context.Context, id string, c change) {
	payload, err := json.Marshal(c)
	if err == nil {
		err = s.client.Publish(ctx, s.channel(id), payload).Err()
	}
	if err != nil {
		s.logger.Warn("Change notification lost", "doc_id", id, "revision", c.Revision, "error", err)
	}
}

func classify(msg string, err error) error {
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrAlreadyExists) {
		return err
	}
	var rerr redis.Error
	if errors.As(err, &rerr) {
		text := rerr.Error()
		if strings.HasPrefix(text, "NOPERM") || strings.HasPrefix(text, "READONLY") {
			return fmt.Errorf("%s: %w: %v", msg, storage.ErrReadOnly, err)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
