// Package rateguard flags abusive request bursts against sensitive
// endpoints using sliding windows over recent request timestamps.
//
// The guard is advisory: it reports verdicts and notifies subscribers but
// never blocks on I/O, and its bookkeeping is in-memory and per-process.
// Whether a flagged request is rejected is the caller's decision.
package rateguard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Rule identifies which detection rule flagged a request.
type Rule string

const (
	RuleVolume     Rule = "VOLUME_EXCEEDED"
	RuleRepetition Rule = "REPEATED_REQUEST"
	RuleBurst      Rule = "BURST_DETECTED"
)

// ErrConfig is returned for invalid guard configuration.
var ErrConfig = errors.New("invalid rate guard config")

// Config defines the detection thresholds.
type Config struct {
	// Window and MaxPerWindow drive the volume rule: more than MaxPerWindow
	// requests inside Window flags the overflowing request.
	Window       time.Duration
	MaxPerWindow int

	// SequenceWindow and MaxSameInSequence drive the repetition rule,
	// counting identical (method, url) requests only.
	SequenceWindow    time.Duration
	MaxSameInSequence int

	// BurstWindow and BurstMax drive the burst rule: BurstMax or more
	// requests landing inside BurstWindow flags the latest one.
	BurstWindow time.Duration
	BurstMax    int

	// Endpoints lists the paths the guard watches. Requests to any other
	// path are exempt. An empty list watches everything.
	Endpoints []string

	// SweepInterval controls how often idle per-key histories are dropped.
	SweepInterval time.Duration
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
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

// Validate checks the threshold invariants.
func (c Config) Validate() error {
	if c.Window <= 0 || c.MaxPerWindow <= 0 {
		return ErrConfig
	}
	if c.SequenceWindow <= 0 || c.MaxSameInSequence <= 0 {
		return ErrConfig
	}
	if c.BurstWindow <= 0 || c.BurstMax <= 0 {
		return ErrConfig
	}
	if c.SweepInterval <= 0 {
		return ErrConfig
	}
	return nil
}

func (c Config) retention() time.Duration {
	r := c.Window
	if c.SequenceWindow > r {
		r = c.SequenceWindow
	}
	return r
}

// Event describes one flagged request, delivered to subscribers.
type Event struct {
	ID        string
	At        time.Time
	ClientKey string
	Method    string
	URL       string
	Rule      Rule
}

// Subscriber receives flag events. Calls are synchronous on the request
// path; implementations must be fast and must not block.
type Subscriber func(Event)

// Verdict is the outcome of a single check.
type Verdict struct {
	Flagged bool
	Rule    Rule

	// RetryAfter estimates how long the client should back off before the
	// triggering window has drained. Zero when not flagged.
	RetryAfter time.Duration

	// EventID is set when Flagged, matching the event sent to subscribers.
	EventID string
}

type record struct {
	at     time.Time
	method string
	url    string
}

type history struct {
	records []record
}

// Guard maintains per-(client, endpoint) sliding windows. Safe for
// concurrent use; all operations are O(1) amortized in the window sizes.
type Guard struct {
	cfg     Config
	watched map[string]struct{}

	mu   sync.Mutex
	keys map[string]*history

	subMu sync.RWMutex
	subs  []Subscriber
}

// New constructs a Guard.
func New(cfg Config) (*Guard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Guard{
		cfg:  cfg,
		keys: make(map[string]*history),
	}
	if len(cfg.Endpoints) > 0 {
		g.watched = make(map[string]struct{}, len(cfg.Endpoints))
		for _, e := range cfg.Endpoints {
			g.watched[e] = struct{}{}
		}
	}
	return g, nil
}

// Subscribe registers a subscriber for flag events.
func (g *Guard) Subscribe(s Subscriber) {
	if s == nil {
		return
	}
	g.subMu.Lock()
	g.subs = append(g.subs, s)
	g.subMu.Unlock()
}

// Watched reports whether the guard inspects requests to url.
func (g *Guard) Watched(url string) bool {
	if g.watched == nil {
		return true
	}
	_, ok := g.watched[url]
	return ok
}

// Check evaluates one request and records it. The timestamp is appended
// whether or not the request is flagged, so the detector self-corrects as
// soon as traffic normalizes.
func (g *Guard) Check(now time.Time, clientKey, method, url string) Verdict {
	if !g.Watched(url) {
		return Verdict{}
	}

	key := clientKey + "|" + url
	verdict := g.check(now, key, method, url)

	if verdict.Flagged {
		ev := Event{
			ID:        verdict.EventID,
			At:        now,
			ClientKey: clientKey,
			Method:    method,
			URL:       url,
			Rule:      verdict.Rule,
		}
		g.subMu.RLock()
		subs := g.subs
		g.subMu.RUnlock()
		for _, s := range subs {
			s(ev)
		}
	}
	return verdict
}

func (g *Guard) check(now time.Time, key, method, url string) Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()

	h := g.keys[key]
	if h == nil {
		h = &history{}
		g.keys[key] = h
	}

	h.trim(now.Add(-g.cfg.retention()))

	verdict := Verdict{}
	switch {
	case g.volumeExceeded(h, now):
		verdict = g.flag(RuleVolume, g.volumeRetry(h, now))
	case g.repetitionExceeded(h, now, method, url):
		verdict = g.flag(RuleRepetition, g.cfg.SequenceWindow)
	case g.burstDetected(h, now):
		verdict = g.flag(RuleBurst, g.cfg.BurstWindow)
	}

	h.records = append(h.records, record{at: now, method: method, url: url})
	return verdict
}

func (g *Guard) flag(rule Rule, retryAfter time.Duration) Verdict {
	return Verdict{
		Flagged:    true,
		Rule:       rule,
		RetryAfter: retryAfter,
		EventID:    ulid.Make().String(),
	}
}

// volumeExceeded reports whether the prior request count inside Window has
// already reached MaxPerWindow, so the current request overflows it.
func (g *Guard) volumeExceeded(h *history, now time.Time) bool {
	return h.countSince(now.Add(-g.cfg.Window)) >= g.cfg.MaxPerWindow
}

func (g *Guard) volumeRetry(h *history, now time.Time) time.Duration {
	cutoff := now.Add(-g.cfg.Window)
	for _, r := range h.records {
		if r.at.After(cutoff) {
			return g.cfg.Window - now.Sub(r.at)
		}
	}
	return g.cfg.Window
}

func (g *Guard) repetitionExceeded(h *history, now time.Time, method, url string) bool {
	cutoff := now.Add(-g.cfg.SequenceWindow)
	n := 0
	for i := len(h.records) - 1; i >= 0; i-- {
		r := h.records[i]
		if !r.at.After(cutoff) {
			break
		}
		if r.method == method && r.url == url {
			n++
		}
	}
	return n >= g.cfg.MaxSameInSequence
}

// burstDetected reports whether the current arrival brings the count inside
// BurstWindow to BurstMax or more.
func (g *Guard) burstDetected(h *history, now time.Time) bool {
	return h.countSince(now.Add(-g.cfg.BurstWindow))+1 >= g.cfg.BurstMax
}

// Len reports the number of tracked keys.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.keys)
}

// Sweep drops keys whose entire history has aged out and reports how many
// were removed.
func (g *Guard) Sweep(now time.Time) int {
	cutoff := now.Add(-g.cfg.retention())

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for key, h := range g.keys {
		h.trim(cutoff)
		if len(h.records) == 0 {
			delete(g.keys, key)
			removed++
		}
	}
	return removed
}

// Run sweeps periodically until ctx is cancelled.
func (g *Guard) Run(ctx context.Context) {
	t := time.NewTicker(g.cfg.SweepInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			g.Sweep(now.UTC())
		}
	}
}

func (h *history) trim(cutoff time.Time) {
	i := 0
	for i < len(h.records) && !h.records[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		h.records = append(h.records[:0], h.records[i:]...)
	}
}

func (h *history) countSince(cutoff time.Time) int {
	n := 0
	for i := len(h.records) - 1; i >= 0; i-- {
		if !h.records[i].at.After(cutoff) {
			break
		}
		n++
	}
	return n
}
