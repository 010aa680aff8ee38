package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	// Pin miniredis's clock to the fixed test time so EXPIREAT is not
	// compared against the real wall clock.
	mr.SetTime(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st, err := NewRedisStore(testConfig(), rdb)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	return st, mr
}

func TestRedisStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	st, _ := newRedisStore(t)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sess, err := st.Create(ctx, now, CreateInput{ID: "s1", SubjectID: "u1", RefreshFingerprint: "fp"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := st.Get(ctx, now.Add(time.Minute), "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SubjectID != "u1" || got.RefreshFingerprint != "fp" {
		t.Fatalf("Get returned %+v", got)
	}
	if !got.ExpiresAt.Equal(sess.ExpiresAt) {
		t.Fatalf("ExpiresAt = %v, want %v", got.ExpiresAt, sess.ExpiresAt)
	}

	if _, err := st.Get(ctx, now, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get(missing) = %v, want ErrSessionNotFound", err)
	}
}

func TestRedisStoreExpiryIsEnforcedOnRead(t *testing.T) {
	ctx := context.Background()
	st, _ := newRedisStore(t)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if _, err := st.Create(ctx, now, CreateInput{ID: "s1", SubjectID: "u1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The embedded expiry is checked even before Redis evicts the key.
	late := now.Add(24*time.Hour + time.Second)
	if _, err := st.Get(ctx, late, "s1"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("Get(expired) = %v, want ErrSessionExpired", err)
	}
	if _, err := st.Get(ctx, late, "s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second Get = %v, want ErrSessionNotFound", err)
	}
}

func TestRedisStoreTouchSlidesExpiry(t *testing.T) {
	ctx := context.Background()
	st, _ := newRedisStore(t)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	st.Create(ctx, now, CreateInput{ID: "s1", SubjectID: "u1"})

	later := now.Add(2 * time.Hour)
	touched, err := st.Touch(ctx, later, "s1")
	if err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if want := later.Add(24 * time.Hour); !touched.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", touched.ExpiresAt, want)
	}

	got, err := st.Get(ctx, later, "s1")
	if err != nil {
		t.Fatalf("Get after touch: %v", err)
	}
	if got.ExpiresAt.Before(touched.ExpiresAt) {
		t.Fatalf("stored expiry regressed: %v < %v", got.ExpiresAt, touched.ExpiresAt)
	}
}

func TestRedisStoreTouchDoesNotResurrectDeleted(t *testing.T) {
	ctx := context.Background()
	st, mr := newRedisStore(t)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	st.Create(ctx, now, CreateInput{ID: "s1", SubjectID: "u1"})

	// Simulate a delete landing between load and script execution.
	mr.Del(redisSessionPrefix + "s1")

	if _, err := st.Touch(ctx, now.Add(time.Minute), "s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Touch after delete = %v, want ErrSessionNotFound", err)
	}
	if mr.Exists(redisSessionPrefix + "s1") {
		t.Fatal("touch resurrected a deleted session")
	}
}

func TestRedisStoreDelete(t *testing.T) {
	ctx := context.Background()
	st, mr := newRedisStore(t)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	st.Create(ctx, now, CreateInput{ID: "s1", SubjectID: "u1"})

	if err := st.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if mr.Exists(redisSessionPrefix + "s1") {
		t.Fatal("session key survived delete")
	}
	// The subject index entry goes with it.
	members, _ := mr.SMembers(redisSubjectPrefix + "u1")
	if len(members) != 0 {
		t.Fatalf("subject index still holds %v", members)
	}
	if err := st.Delete(ctx, "s1"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestRedisStoreDeleteAllForSubject(t *testing.T) {
	ctx := context.Background()
	st, _ := newRedisStore(t)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	st.Create(ctx, now, CreateInput{ID: "s1", SubjectID: "u1"})
	st.Create(ctx, now, CreateInput{ID: "s2", SubjectID: "u1"})
	st.Create(ctx, now, CreateInput{ID: "s3", SubjectID: "u2"})

	count, err := st.DeleteAllForSubject(ctx, "u1")
	if err != nil {
		t.Fatalf("DeleteAllForSubject: %v", err)
	}
	if count != 2 {
		t.Fatalf("removed %d sessions, want 2", count)
	}

	if _, err := st.Get(ctx, now, "s3"); err != nil {
		t.Fatalf("unrelated session gone: %v", err)
	}

	count, _ = st.DeleteAllForSubject(ctx, "u1")
	if count != 0 {
		t.Fatalf("second delete-all removed %d, want 0", count)
	}
}
