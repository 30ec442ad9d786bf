// Package admission gates chat turns per session before any provider work
// is dispatched. The limit is an exact sliding window over message
// timestamps, not a token bucket: a turn is admitted only when fewer than
// maxMessages were admitted in the trailing window.
package admission

import (
	"hash/fnv"
	"sync"
	"time"
)

const (
	defaultWindow      = time.Minute
	defaultMaxMessages = 10
	defaultShards      = 16

	// Sessions idle for longer than this are dropped by the sweep.
	idleTTL = 5 * time.Minute
)

type sessionWindow struct {
	timestamps []time.Time
	lastSeen   time.Time
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]*sessionWindow
}

// SlidingWindowLimiter shards sessions across independent lock tables so
// concurrent sessions never contend while one session's check-then-record
// stays atomic under its shard lock.
type SlidingWindowLimiter struct {
	window      time.Duration
	maxMessages int
	shards      []*shard
	now         func() time.Time
}

type Option func(*SlidingWindowLimiter)

// WithClock injects the time source. Tests use it to drive the window.
func WithClock(now func() time.Time) Option {
	return func(l *SlidingWindowLimiter) { l.now = now }
}

func New(window time.Duration, maxMessages int, opts ...Option) *SlidingWindowLimiter {
	if window <= 0 {
		window = defaultWindow
	}
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	l := &SlidingWindowLimiter{
		window:      window,
		maxMessages: maxMessages,
		shards:      make([]*shard, defaultShards),
		now:         time.Now,
	}
	for i := range l.shards {
		l.shards[i] = &shard{sessions: make(map[string]*sessionWindow)}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records the message and admits it in one step. A rejected call
// records nothing, so probing a full window does not extend the lockout.
func (l *SlidingWindowLimiter) Allow(sessionID string) bool {
	now := l.now()
	sh := l.shardFor(sessionID)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	win, ok := sh.sessions[sessionID]
	if !ok {
		win = &sessionWindow{}
		sh.sessions[sessionID] = win
	}
	win.lastSeen = now

	cutoff := now.Add(-l.window)
	kept := win.timestamps[:0]
	for _, ts := range win.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	win.timestamps = kept

	if len(win.timestamps) >= l.maxMessages {
		return false
	}
	win.timestamps = append(win.timestamps, now)
	return true
}

// StartSweep evicts idle sessions periodically until stop is called.
// Without it the lock table grows with every session id ever seen.
func (l *SlidingWindowLimiter) StartSweep(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = time.Minute
	}
	stopCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
	return func() { close(stopCh) }
}

func (l *SlidingWindowLimiter) sweep() {
	cutoff := l.now().Add(-idleTTL)
	for _, sh := range l.shards {
		sh.mu.Lock()
		for id, win := range sh.sessions {
			if win.lastSeen.Before(cutoff) {
				delete(sh.sessions, id)
			}
		}
		sh.mu.Unlock()
	}
}

func (l *SlidingWindowLimiter) shardFor(sessionID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return l.shards[h.Sum32()%uint32(len(l.shards))]
}

func (l *SlidingWindowLimiter) sessionCount() int {
	var n int
	for _, sh := range l.shards {
		sh.mu.Lock()
		n += len(sh.sessions)
		sh.mu.Unlock()
	}
	return n
}
