package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store keeps per-browser-session state in a Redis hash per session ID.
// Every access refreshes the idle TTL, so a session dies only after the
// configured idle window with no traffic.
type Store struct {
	client  redis.UniversalClient
	prefix  string
	idleTTL time.Duration
}

func NewStore(client redis.UniversalClient, prefix string, idleTTL time.Duration) *Store {
	if prefix == "" {
		prefix = "session"
	}
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Store{client: client, prefix: prefix, idleTTL: idleTTL}
}

func (s *Store) NewID() string { return uuid.NewString() }

// Session binds a session ID to the store so callers don't thread the ID
// through every call.
type Session struct {
	store *Store
	id    string
}

func (s *Store) Session(id string) *Session {
	if id == "" {
		id = s.NewID()
	}
	return &Session{store: s, id: id}
}

func (s *Session) ID() string { return s.id }

// Get returns the value for key, or "" when the key (or the whole session)
// is absent.
func (s *Session) Get(ctx context.Context, key string) (string, error) {
	v, err := s.store.client.HGet(ctx, s.store.key(s.id), key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if err := s.touch(ctx); err != nil {
		return "", err
	}
	return v, nil
}

func (s *Session) Set(ctx context.Context, key, value string) error {
	pipe := s.store.client.TxPipeline()
	pipe.HSet(ctx, s.store.key(s.id), key, value)
	pipe.Expire(ctx, s.store.key(s.id), s.store.idleTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Session) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.store.client.HDel(ctx, s.store.key(s.id), keys...).Err()
}

// Destroy drops the whole session.
func (s *Session) Destroy(ctx context.Context) error {
	return s.store.client.Del(ctx, s.store.key(s.id)).Err()
}

func (s *Session) touch(ctx context.Context) error {
	return s.store.client.Expire(ctx, s.store.key(s.id), s.store.idleTTL).Err()
}

func (s *Store) key(id string) string {
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
