package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisSessionPrefix = "session:"
	redisSubjectPrefix = "user_sessions:"
)

// touchScript updates a session blob only while the key still exists, so a
// concurrent Delete is never undone, and keeps the stored expiry monotonic
// under interleaved touches. The "exp" field is authoritative; the JSON
// blob may lag it by one write under contention.
var touchScript = redis.NewScript(`
local cur = redis.call("HGET", KEYS[1], "exp")
if not cur then
  return 0
end
local exp = tonumber(ARGV[2])
if tonumber(cur) > exp then
  exp = tonumber(cur)
end
redis.call("HSET", KEYS[1], "data", ARGV[1], "exp", tostring(exp))
redis.call("EXPIREAT", KEYS[1], exp)
return 1
`)

// RedisStore is a Store backed by Redis, for deployments running more than
// one portal instance. Layout mirrors the in-memory store: one hash per
// session plus a per-subject set of session IDs. Redis key TTLs bound
// retention; the embedded expiry is still checked on every read.
type RedisStore struct {
	cfg Config
	rdb redis.UniversalClient
}

// NewRedisStore constructs a RedisStore with the given lifetime policy.
func NewRedisStore(cfg Config, rdb redis.UniversalClient) (*RedisStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rdb == nil {
		return nil, ErrConfig
	}
	return &RedisStore{cfg: cfg, rdb: rdb}, nil
}

// Create allocates a new session.
func (s *RedisStore) Create(ctx context.Context, now time.Time, in CreateInput) (Session, error) {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	sess := Session{
		ID:                 id,
		SubjectID:          in.SubjectID,
		RefreshFingerprint: in.RefreshFingerprint,
		CreatedAt:          now,
		LastActivityAt:     now,
		ExpiresAt:          now.Add(s.cfg.idleTTL(in.RememberMe)),
		RememberMe:         in.RememberMe,
		Device:             in.Device,
	}

	blob, err := json.Marshal(sess)
	if err != nil {
		return Session{}, err
	}

	pipe := s.rdb.TxPipeline()
	key := redisSessionPrefix + id
	subjKey := redisSubjectPrefix + in.SubjectID
	pipe.HSet(ctx, key, "data", blob, "exp", strconv.FormatInt(sess.ExpiresAt.Unix(), 10))
	pipe.ExpireAt(ctx, key, sess.ExpiresAt)
	pipe.SAdd(ctx, subjKey, id)
	// The subject set outlives individual sessions but never the absolute cap.
	pipe.Expire(ctx, subjKey, s.cfg.MaxLifetime)
	if _, err := pipe.Exec(ctx); err != nil {
		return Session{}, fmt.Errorf("session create: %w", err)
	}

	return sess, nil
}

// Get returns the live session. Entries past their embedded expiry are
// removed and reported as expired even if Redis has not evicted them yet.
func (s *RedisStore) Get(ctx context.Context, now time.Time, sessionID string) (Session, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if sess.Expired(now) {
		s.removeEntry(ctx, sess)
		return Session{}, ErrSessionExpired
	}
	return sess, nil
}

// Touch extends the activity window via a guarded script so a concurrent
// delete is never resurrected.
func (s *RedisStore) Touch(ctx context.Context, now time.Time, sessionID string) (Session, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if sess.Expired(now) {
		s.removeEntry(ctx, sess)
		return Session{}, ErrSessionExpired
	}

	sess.LastActivityAt = now
	sess.ExpiresAt = s.cfg.nextExpiry(sess, now)

	blob, err := json.Marshal(sess)
	if err != nil {
		return Session{}, err
	}

	n, err := touchScript.Run(ctx, s.rdb,
		[]string{redisSessionPrefix + sessionID},
		blob, sess.ExpiresAt.Unix(),
	).Int64()
	if err != nil {
		return Session{}, fmt.Errorf("session touch: %w", err)
	}
	if n == 0 {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// Delete removes a session. Idempotent.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	sess, err := s.load(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.removeEntry(ctx, sess)
	return nil
}

// DeleteAllForSubject removes every session owned by subjectID.
func (s *RedisStore) DeleteAllForSubject(ctx context.Context, subjectID string) (int, error) {
	subjKey := redisSubjectPrefix + subjectID
	ids, err := s.rdb.SMembers(ctx, subjKey).Result()
	if err != nil {
		return 0, fmt.Errorf("session delete-all: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.rdb.TxPipeline()
	dels := make([]*redis.IntCmd, 0, len(ids))
	for _, id := range ids {
		dels = append(dels, pipe.Del(ctx, redisSessionPrefix+id))
	}
	pipe.Del(ctx, subjKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("session delete-all: %w", err)
	}

	// Count only sessions that still existed; Redis-evicted entries were
	// already dead.
	count := 0
	for _, d := range dels {
		count += int(d.Val())
	}
	return count, nil
}

func (s *RedisStore) load(ctx context.Context, sessionID string) (Session, error) {
	vals, err := s.rdb.HMGet(ctx, redisSessionPrefix+sessionID, "data", "exp").Result()
	if err != nil {
		return Session{}, fmt.Errorf("session load: %w", err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return Session{}, ErrSessionNotFound
	}

	data, ok := vals[0].(string)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return Session{}, fmt.Errorf("session decode: %w", err)
	}

	// The exp field is authoritative; the blob may lag one concurrent touch.
	if raw, ok := vals[1].(string); ok {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			if exp := time.Unix(unix, 0).UTC(); exp.After(sess.ExpiresAt) {
				sess.ExpiresAt = exp
			}
		}
	}
	return sess, nil
}

func (s *RedisStore) removeEntry(ctx context.Context, sess Session) {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, redisSessionPrefix+sess.ID)
	pipe.SRem(ctx, redisSubjectPrefix+sess.SubjectID, sess.ID)
	_, _ = pipe.Exec(ctx)
}
