package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"multibot/internal/session"
)

// Redis persists the session snapshot as a single JSON blob under one
// key, with an optional TTL so an abandoned deployment expires its
// state on its own.
type Redis struct {
	client *redis.Client
	codec  *Codec
	key    string
	ttl    time.Duration
}

func NewRedis(client *redis.Client, codec *Codec, key string, ttl time.Duration) *Redis {
	return &Redis{client: client, codec: codec, key: key, ttl: ttl}
}

func (r *Redis) Load() ([]session.Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read session snapshot from redis: %w", err)
	}
	return r.codec.Decode(data)
}

func (r *Redis) Save(sessions []session.Session) error {
	data, err := r.codec.Encode(sessions)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("cannot write session snapshot to redis: %w", err)
	}
	return nil
}
