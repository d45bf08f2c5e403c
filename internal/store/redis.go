package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"goflare.io/pace/internal/models"
	"goflare.io/pace/pkg/serialization"
)

const maxTxRetries = 10

// ErrConflict is returned when concurrent writers keep invalidating an update.
var ErrConflict = errors.New("store update conflicted too many times")

// RedisStore keeps the record set as one encoded document under
// "<prefix>:parlays" and updates it with optimistic WATCH/MULTI transactions.
type RedisStore struct {
	client *redis.Client
	key    string
	codec  serialization.Codec
	ids    idFunc
	now    func() time.Time
	logger *zap.Logger
}

// NewRedisStore checks connectivity and returns a RedisStore.
func NewRedisStore(ctx context.Context, client *redis.Client, prefix string, codec serialization.Codec, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "pace"
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{
		client: client,
		key:    prefix + ":parlays",
		codec:  codec,
		ids:    newID,
		now:    time.Now,
		logger: logger.Named("store"),
	}, nil
}

// NewRedisStoreFromURL parses a redis:// URL and connects.
func NewRedisStoreFromURL(ctx context.Context, url, prefix string, codec serialization.Codec, logger *zap.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	s, err := NewRedisStore(ctx, client, prefix, codec, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func (r *RedisStore) decode(data []byte) (*state, error) {
	st := newState()
	if err := r.codec.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decode parlays: %w", err)
	}
	if st.Parlays == nil {
		st.Parlays = make(map[string]*models.Parlay)
	}
	return st, nil
}

func (r *RedisStore) encode(st *state) ([]byte, error) {
	data, err := r.codec.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode parlays: %w", err)
	}
	return data, nil
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisStore) load(ctx context.Context, getter stringGetter) (*state, error) {
	data, err := getter.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return newState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return r.decode(data)
}

func (r *RedisStore) read(ctx context.Context) (*state, error) {
	return r.load(ctx, r.client)
}

// update applies fn to the current document and writes it back, retrying
// when another writer changed the key in between.
func (r *RedisStore) update(ctx context.Context, fn func(*state) error) error {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			st, err := r.load(ctx, tx)
			if err != nil {
				return err
			}
			if err := fn(st); err != nil {
				return err
			}
			data, err := r.encode(st)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, r.key, data, 0)
				return nil
			})
			return err
		}, r.key)
		if errors.Is(err, redis.TxFailedErr) {
			r.logger.Debug("Parlay update conflicted, retrying", zap.Int("attempt", attempt+1))
			continue
		}
		return err
	}
	return ErrConflict
}

func (r *RedisStore) CreateParlay(ctx context.Context, name string) (models.Parlay, error) {
	var p models.Parlay
	id, now := r.ids(), r.now()
	err := r.update(ctx, func(s *state) error {
		var err error
		p, err = s.create(id, name, now)
		return err
	})
	return p, err
}

func (r *RedisStore) ListParlays(ctx context.Context) ([]models.Parlay, error) {
	st, err := r.read(ctx)
	if err != nil {
		return nil, err
	}
	return st.list(), nil
}

func (r *RedisStore) GetParlay(ctx context.Context, id string) (models.Parlay, error) {
	st, err := r.read(ctx)
	if err != nil {
		return models.Parlay{}, err
	}
	p, err := st.parlay(id)
	if err != nil {
		return models.Parlay{}, err
	}
	return clone(p), nil
}

func (r *RedisStore) RenameParlay(ctx context.Context, id, name string) (models.Parlay, error) {
	var p models.Parlay
	err := r.update(ctx, func(s *state) error {
		var err error
		p, err = s.rename(id, name)
		return err
	})
	return p, err
}

func (r *RedisStore) DeleteParlay(ctx context.Context, id string) error {
	return r.update(ctx, func(s *state) error { return s.delete(id) })
}

func (r *RedisStore) ReorderParlays(ctx context.Context, ids []string) error {
	return r.update(ctx, func(s *state) error { return s.reorderParlays(ids) })
}

func (r *RedisStore) AddLeg(ctx context.Context, parlayID string, leg models.Leg) (models.Leg, bool, error) {
	var (
		stored  models.Leg
		created bool
	)
	id := r.ids()
	err := r.update(ctx, func(s *state) error {
		var err error
		stored, created, err = s.addLeg(parlayID, leg, id)
		return err
	})
	return stored, created, err
}

func (r *RedisStore) DeleteLeg(ctx context.Context, parlayID, legID string) error {
	return r.update(ctx, func(s *state) error { return s.deleteLeg(parlayID, legID) })
}

func (r *RedisStore) ReorderLegs(ctx context.Context, parlayID string, legIDs []string) error {
	return r.update(ctx, func(s *state) error { return s.reorderLegs(parlayID, legIDs) })
}

func (r *RedisStore) MoveLeg(ctx context.Context, legID, toParlayID string, toIndex int) (models.Leg, error) {
	var leg models.Leg
	err := r.update(ctx, func(s *state) error {
		var err error
		leg, err = s.moveLeg(legID, toParlayID, toIndex)
		return err
	})
	return leg, err
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
