package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"kyro-backend/internal/models"
)

const redisKeyPrefix = "chat_session:"

// RedisStore persists conversation history in Redis so that any replica can resume a
// session. Conversations are re-opened from the stored history on every Get.
type RedisStore struct {
	redis *redis.Client
	open  Opener
	ttl   time.Duration
	now   func() time.Time
}

type redisRecord struct {
	Token     string               `json:"token"`
	CreatedAt time.Time            `json:"created_at"`
	History   []models.ChatMessage `json:"history"`
}

// watchRounds bounds optimistic-lock retries when a key changes under WATCH.
const watchRounds = 3

// NewRedisStore returns a store whose keys expire after ttl of inactivity; ttl <= 0 keeps
// sessions until cleared.
func NewRedisStore(client *redis.Client, open Opener, ttl time.Duration) *RedisStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{redis: client, open: open, ttl: ttl, now: time.Now}
}

func redisKey(id string) string {
	return redisKeyPrefix + HashKey(id)
}

func encodeRecord(rec redisRecord) ([]byte, error) {
	if rec.History == nil {
		rec.History = []models.ChatMessage{}
	}
	return json.Marshal(rec)
}

func decodeRecord(data []byte) (redisRecord, error) {
	var rec redisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return redisRecord{}, fmt.Errorf("corrupt session record: %w", err)
	}
	return rec, nil
}

func (r *RedisStore) load(ctx context.Context, id string) (redisRecord, error) {
	data, err := r.redis.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return redisRecord{}, ErrNotFound
	}
	if err != nil {
		return redisRecord{}, fmt.Errorf("failed to load session: %w", err)
	}
	return decodeRecord(data)
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	rec, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}

	conv, err := r.open(ctx, rec.History)
	if err != nil {
		return nil, fmt.Errorf("failed to reopen conversation: %w", err)
	}

	return &Session{ID: id, Conversation: conv, CreatedAt: rec.CreatedAt, token: rec.Token}, nil
}

// Create claims the key with SETNX; a caller that loses the race resumes the winner's
// session instead.
func (r *RedisStore) Create(ctx context.Context, id string) (*Session, bool, error) {
	rec := redisRecord{Token: uuid.NewString(), CreatedAt: r.now().UTC()}
	data, err := encodeRecord(rec)
	if err != nil {
		return nil, false, err
	}

	// Two rounds: the winner's key can be cleared between our SETNX and GET.
	for round := 0; round < 2; round++ {
		won, err := r.redis.SetNX(ctx, redisKey(id), data, r.ttl).Result()
		if err != nil {
			return nil, false, fmt.Errorf("failed to claim session: %w", err)
		}

		if won {
			conv, err := r.open(ctx, nil)
			if err != nil {
				r.redis.Del(ctx, redisKey(id))
				return nil, false, fmt.Errorf("failed to open conversation: %w", err)
			}
			return &Session{ID: id, Conversation: conv, CreatedAt: rec.CreatedAt, token: rec.Token}, true, nil
		}

		s, err := r.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return s, false, err
	}

	return nil, false, fmt.Errorf("session %s was cleared while being created", HashKey(id)[:12])
}

// ifCurrent runs fn inside a WATCH on s's key, only while the stored record still
// belongs to s. A missing or replaced record is not an error.
func (r *RedisStore) ifCurrent(ctx context.Context, s *Session, fn func(pipe redis.Pipeliner, key string)) error {
	key := redisKey(s.ID)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		rec, err := decodeRecord(data)
		if err != nil {
			return err
		}
		if rec.Token != s.token {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			fn(pipe, key)
			return nil
		})
		return err
	}

	for round := 0; round < watchRounds; round++ {
		err := r.redis.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return redis.TxFailedErr
}

// Save writes the history back only while the key still holds this session, so a
// concurrent clear (or the replacement created after it) is not overwritten by an
// in-flight turn.
func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	data, err := encodeRecord(redisRecord{
		Token:     s.token,
		CreatedAt: s.CreatedAt.UTC(),
		History:   s.Conversation.History(),
	})
	if err != nil {
		return err
	}

	err = r.ifCurrent(ctx, s, func(pipe redis.Pipeliner, key string) {
		pipe.Set(ctx, key, data, r.ttl)
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.redis.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *RedisStore) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.redis.Exists(ctx, redisKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return n > 0, nil
}

func (r *RedisStore) Live(ctx context.Context, s *Session) (bool, error) {
	rec, err := r.load(ctx, s.ID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Token == s.token, nil
}

func (r *RedisStore) Discard(ctx context.Context, s *Session) error {
	err := r.ifCurrent(ctx, s, func(pipe redis.Pipeliner, key string) {
		pipe.Del(ctx, key)
	})
	if err != nil {
		return fmt.Errorf("failed to discard session: %w", err)
	}
	return nil
}
