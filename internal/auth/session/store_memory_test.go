package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	st, err := NewMemoryStore(testConfig())
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sess, err := st.Create(ctx, now, CreateInput{SubjectID: "u1", RefreshFingerprint: "fp"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("Create returned empty session ID")
	}
	if want := now.Add(24 * time.Hour); !sess.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", sess.ExpiresAt, want)
	}

	got, err := st.Get(ctx, now.Add(time.Minute), sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SubjectID != "u1" || got.RefreshFingerprint != "fp" {
		t.Fatalf("Get returned %+v", got)
	}

	if _, err := st.Get(ctx, now, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get(missing) = %v, want ErrSessionNotFound", err)
	}
}

func TestMemoryStoreRememberMeTTL(t *testing.T) {
	ctx := context.Background()
	st, _ := NewMemoryStore(testConfig())

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sess, _ := st.Create(ctx, now, CreateInput{SubjectID: "u1", RememberMe: true})
	if want := now.Add(7 * 24 * time.Hour); !sess.ExpiresAt.Equal(want) {
		t.Fatalf("remember-me ExpiresAt = %v, want %v", sess.ExpiresAt, want)
	}
}

func TestMemoryStoreExpiryIsEnforcedOnRead(t *testing.T) {
	ctx := context.Background()
	st, _ := NewMemoryStore(testConfig())

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sess, _ := st.Create(ctx, now, CreateInput{SubjectID: "u1"})

	late := now.Add(24*time.Hour + time.Second)
	if _, err := st.Get(ctx, late, sess.ID); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("Get(expired) = %v, want ErrSessionExpired", err)
	}
	// The expired entry was removed, so a second read misses entirely.
	if _, err := st.Get(ctx, late, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second Get = %v, want ErrSessionNotFound", err)
	}

	if _, err := st.Touch(ctx, late, "gone"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Touch(gone) = %v, want ErrSessionNotFound", err)
	}
}

func TestMemoryStoreTouchSlidesExpiry(t *testing.T) {
	ctx := context.Background()
	st, _ := NewMemoryStore(testConfig())

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sess, _ := st.Create(ctx, now, CreateInput{SubjectID: "u1"})

	later := now.Add(2 * time.Hour)
	touched, err := st.Touch(ctx, later, sess.ID)
	if err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if !touched.LastActivityAt.Equal(later) {
		t.Fatalf("LastActivityAt = %v, want %v", touched.LastActivityAt, later)
	}
	if want := later.Add(24 * time.Hour); !touched.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", touched.ExpiresAt, want)
	}
}

func TestMemoryStoreTouchNeverRegresses(t *testing.T) {
	ctx := context.Background()
	st, _ := NewMemoryStore(testConfig())

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sess, _ := st.Create(ctx, base, CreateInput{SubjectID: "u1"})

	// Interleave touches at skewed instants from many goroutines; the stored
	// expiry must end at least as far out as the latest touch implies.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(offset time.Duration) {
			defer wg.Done()
			_, _ = st.Touch(ctx, base.Add(offset), sess.ID)
		}(time.Duration(i) * time.Second)
	}
	wg.Wait()

	got, err := st.Get(ctx, base.Add(time.Minute), sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if want := base.Add(49 * time.Second).Add(24 * time.Hour); got.ExpiresAt.Before(want) {
		t.Fatalf("ExpiresAt regressed: %v < %v", got.ExpiresAt, want)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	st, _ := NewMemoryStore(testConfig())

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sess, _ := st.Create(ctx, now, CreateInput{SubjectID: "u1"})

	if err := st.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := st.Get(ctx, now, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get after delete = %v, want ErrSessionNotFound", err)
	}
	// Idempotent.
	if err := st.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestMemoryStoreDeleteAllForSubject(t *testing.T) {
	ctx := context.Background()
	st, _ := NewMemoryStore(testConfig())

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a, _ := st.Create(ctx, now, CreateInput{SubjectID: "u1"})
	b, _ := st.Create(ctx, now, CreateInput{SubjectID: "u1"})
	other, _ := st.Create(ctx, now, CreateInput{SubjectID: "u2"})

	if a.ID == b.ID {
		t.Fatal("two logins produced the same session ID")
	}

	count, err := st.DeleteAllForSubject(ctx, "u1")
	if err != nil {
		t.Fatalf("DeleteAllForSubject: %v", err)
	}
	if count != 2 {
		t.Fatalf("removed %d sessions, want 2", count)
	}

	// The other subject's session is untouched.
	if _, err := st.Get(ctx, now, other.ID); err != nil {
		t.Fatalf("unrelated session gone: %v", err)
	}

	count, _ = st.DeleteAllForSubject(ctx, "u1")
	if count != 0 {
		t.Fatalf("second delete-all removed %d, want 0", count)
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	st, _ := NewMemoryStore(testConfig())

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	st.Create(ctx, now, CreateInput{SubjectID: "u1"})
	st.Create(ctx, now, CreateInput{SubjectID: "u2"})
	live, _ := st.Create(ctx, now.Add(12*time.Hour), CreateInput{SubjectID: "u3"})

	removed := st.Sweep(now.Add(24*time.Hour + time.Second))
	if removed != 2 {
		t.Fatalf("Sweep removed %d, want 2", removed)
	}
	if st.Len() != 1 {
		t.Fatalf("Len = %d, want 1", st.Len())
	}
	if _, err := st.Get(ctx, now.Add(24*time.Hour+time.Second), live.ID); err != nil {
		t.Fatalf("surviving session gone: %v", err)
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	st, _ := NewMemoryStore(testConfig())

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sess, _ := st.Create(ctx, now, CreateInput{SubjectID: "u1"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); _, _ = st.Get(ctx, now, sess.ID) }()
		go func() { defer wg.Done(); _, _ = st.Touch(ctx, now, sess.ID) }()
		go func() { defer wg.Done(); _, _ = st.Create(ctx, now, CreateInput{SubjectID: "u2"}) }()
	}
	wg.Wait()

	// A deleted session stays deleted no matter what raced before.
	if err := st.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := st.Get(ctx, now, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get after delete = %v, want ErrSessionNotFound", err)
	}
}
