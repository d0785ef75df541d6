package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// sessions as JSON strings plus a per-user index sorted by creation time
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "headcut:", now: time.Now}
}

func (s *RedisStore) sessionKey(id string) string {
	return s.prefix + "session:" + id
}

func (s *RedisStore) userKey(userID int64) string {
	return fmt.Sprintf("%suser:%d:sessions", s.prefix, userID)
}

func (s *RedisStore) Create(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	now := s.now().UTC()
	sess.CreatedAt, sess.UpdatedAt = now, now
	if sess.Status == "" {
		sess.Status = StatusPending
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(sess.ID), data, 0)
		pipe.ZAdd(ctx, s.userKey(sess.UserID), redis.Z{Score: float64(now.UnixNano()), Member: sess.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.rdb.Get(ctx, s.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("corrupt session record: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Update(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetXX(ctx, s.sessionKey(sess.ID), data, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", sess.ID, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", sess.ID, ErrNotFound)
	}
	return nil
}

func (s *RedisStore) Latest(ctx context.Context, userID int64, scenario string) (*Session, error) {
	ids, err := s.rdb.ZRevRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if scenario == "" || sess.Scenario == scenario {
			return sess, nil
		}
	}
	return nil, ErrNotFound
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
