package rateguard

import (
	"sync"
	"testing"
	"time"
)

func testGuardConfig() Config {
	return Config{
		Window:            30 * time.Second,
		MaxPerWindow:      30,
		SequenceWindow:    15 * time.Second,
		MaxSameInSequence: 8,
		BurstWindow:       time.Second,
		BurstMax:          5,
		SweepInterval:     time.Minute,
	}
}

func TestVolumeRule(t *testing.T) {
	g, err := New(testGuardConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// 30 requests inside the window are clean; the 31st is flagged. Methods
	// are cycled so only the volume rule can trip.
	methods := []string{"GET", "POST", "PUT", "DELETE"}
	for i := 0; i < 30; i++ {
		v := g.Check(base.Add(time.Duration(i)*500*time.Millisecond), "c1", methods[i%4], "/auth/login")
		if v.Flagged {
			t.Fatalf("request %d flagged: %v", i+1, v.Rule)
		}
	}
	v := g.Check(base.Add(16*time.Second), "c1", "GET", "/auth/login")
	if !v.Flagged || v.Rule != RuleVolume {
		t.Fatalf("31st request verdict = %+v, want VOLUME_EXCEEDED", v)
	}
	if v.RetryAfter <= 0 {
		t.Fatalf("RetryAfter = %v, want > 0", v.RetryAfter)
	}
	if v.EventID == "" {
		t.Fatal("flagged verdict has no event ID")
	}
}

func TestVolumeRuleSpreadTraffic(t *testing.T) {
	g, _ := New(testGuardConfig())

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// 30 requests spread across 31s never fill the 30s window.
	methods := []string{"GET", "POST", "PUT", "DELETE"}
	for i := 0; i < 30; i++ {
		at := base.Add(time.Duration(i) * 31 * time.Second / 29)
		if v := g.Check(at, "c1", methods[i%4], "/auth/validate"); v.Flagged {
			t.Fatalf("request %d flagged: %v", i+1, v.Rule)
		}
	}
}

func TestRepetitionRule(t *testing.T) {
	g, _ := New(testGuardConfig())

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Mixed methods on the same path do not trip the repetition rule.
	for i := 0; i < 8; i++ {
		at := base.Add(time.Duration(i) * 1500 * time.Millisecond)
		if v := g.Check(at, "c1", "GET", "/auth/validate"); v.Flagged {
			t.Fatalf("GET %d flagged: %v", i+1, v.Rule)
		}
		if v := g.Check(at.Add(750*time.Millisecond), "c1", "POST", "/auth/validate"); v.Flagged {
			t.Fatalf("POST %d flagged: %v", i+1, v.Rule)
		}
	}

	g, _ = New(testGuardConfig())
	for i := 0; i < 8; i++ {
		at := base.Add(time.Duration(i) * 1500 * time.Millisecond)
		if v := g.Check(at, "c1", "GET", "/auth/validate"); v.Flagged {
			t.Fatalf("identical request %d flagged early: %v", i+1, v.Rule)
		}
	}
	v := g.Check(base.Add(12*time.Second), "c1", "GET", "/auth/validate")
	if !v.Flagged || v.Rule != RuleRepetition {
		t.Fatalf("9th identical request verdict = %+v, want REPEATED_REQUEST", v)
	}
}

func TestBurstRule(t *testing.T) {
	g, _ := New(testGuardConfig())

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * 100 * time.Millisecond)
		if v := g.Check(at, "c1", "POST", "/auth/login"); v.Flagged {
			t.Fatalf("request %d flagged early: %v", i+1, v.Rule)
		}
	}
	v := g.Check(base.Add(400*time.Millisecond), "c1", "POST", "/auth/login")
	if !v.Flagged || v.Rule != RuleBurst {
		t.Fatalf("5th request inside 1s verdict = %+v, want BURST_DETECTED", v)
	}

	// The same pace with >1s gaps stays clean.
	g, _ = New(testGuardConfig())
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * 1100 * time.Millisecond)
		if v := g.Check(at, "c1", "POST", "/auth/login"); v.Flagged {
			t.Fatalf("paced request %d flagged: %v", i+1, v.Rule)
		}
	}
}

func TestDetectorSelfCorrects(t *testing.T) {
	g, _ := New(testGuardConfig())

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 31; i++ {
		g.Check(base.Add(time.Duration(i)*100*time.Millisecond), "c1", "POST", "/auth/login")
	}
	// Once the window drains, the same client is clean again.
	v := g.Check(base.Add(45*time.Second), "c1", "POST", "/auth/login")
	if v.Flagged {
		t.Fatalf("request after drain flagged: %v", v.Rule)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	g, _ := New(testGuardConfig())

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 31; i++ {
		g.Check(base.Add(time.Duration(i)*100*time.Millisecond), "abuser", "POST", "/auth/login")
	}
	// Another client and another endpoint are unaffected.
	if v := g.Check(base.Add(4*time.Second), "normal", "POST", "/auth/login"); v.Flagged {
		t.Fatalf("other client flagged: %v", v.Rule)
	}
	if v := g.Check(base.Add(4*time.Second), "abuser", "GET", "/auth/validate"); v.Flagged {
		t.Fatalf("other endpoint flagged: %v", v.Rule)
	}
}

func TestEndpointAllowList(t *testing.T) {
	cfg := testGuardConfig()
	cfg.Endpoints = []string{"/auth/login"}
	g, _ := New(cfg)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Unwatched endpoints are exempt no matter the volume.
	for i := 0; i < 100; i++ {
		if v := g.Check(base.Add(time.Duration(i)*time.Millisecond), "c1", "GET", "/courses"); v.Flagged {
			t.Fatalf("exempt endpoint flagged: %v", v.Rule)
		}
	}
	if g.Len() != 0 {
		t.Fatalf("exempt traffic tracked %d keys, want 0", g.Len())
	}

	if !g.Watched("/auth/login") {
		t.Fatal("listed endpoint not watched")
	}
	if g.Watched("/courses") {
		t.Fatal("unlisted endpoint watched")
	}
}

func TestSubscribersAreNotified(t *testing.T) {
	g, _ := New(testGuardConfig())

	var mu sync.Mutex
	var events []Event
	g.Subscribe(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		g.Check(base.Add(time.Duration(i)*50*time.Millisecond), "c1", "POST", "/auth/login")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Rule != RuleBurst || ev.ClientKey != "c1" || ev.URL != "/auth/login" || ev.ID == "" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestSweepDropsIdleKeys(t *testing.T) {
	g, _ := New(testGuardConfig())

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	g.Check(base, "c1", "POST", "/auth/login")
	g.Check(base, "c2", "POST", "/auth/login")

	if removed := g.Sweep(base.Add(time.Minute)); removed != 2 {
		t.Fatalf("Sweep removed %d keys, want 2", removed)
	}
	if g.Len() != 0 {
		t.Fatalf("Len = %d after sweep, want 0", g.Len())
	}
}

func TestConcurrentChecks(t *testing.T) {
	g, _ := New(testGuardConfig())

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				g.Check(base.Add(time.Duration(j)*time.Second), "worker", "POST", "/auth/login")
			}
		}(i)
	}
	wg.Wait()
}
