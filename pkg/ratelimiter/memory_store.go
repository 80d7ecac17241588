package ratelimiter

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// staleAfter is how long an idle key is kept before cleanup removes it.
const staleAfter = time.Hour

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// MemoryStore is a token bucket per key kept in process memory.
type MemoryStore struct {
	cfg   Config
	every rate.Limit
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]*entry

	cleanupInterval time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger

	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	created atomic.Int64
	removed atomic.Int64
}

// MemoryStoreStats reports bucket counts for monitoring.
type MemoryStoreStats struct {
	BucketsCreated int64
	BucketsRemoved int64
	ActiveBuckets  int
	IsRunning      bool
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often idle buckets are removed.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.cleanupInterval = interval
	}
}

// WithMemoryStoreShutdownTimeout bounds how long Stop waits for a running cleanup.
func WithMemoryStoreShutdownTimeout(timeout time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if timeout > 0 {
			ms.shutdownTimeout = timeout
		}
	}
}

// WithMemoryStoreLogger sets the logger for cleanup events.
func WithMemoryStoreLogger(logger *slog.Logger) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if logger != nil {
			ms.logger = logger
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if now != nil {
			ms.now = now
		}
	}
}

// NewMemoryStore creates a store refilling cfg.Limit tokens per cfg.Window.
// Call Start to enable background cleanup of idle keys.
func NewMemoryStore(cfg Config, opts ...MemoryStoreOption) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ms := &MemoryStore{
		cfg:             cfg,
		every:           rate.Every(cfg.Window / time.Duration(cfg.Limit)),
		now:             time.Now,
		entries:         make(map[string]*entry),
		cleanupInterval: 5 * time.Minute,
		shutdownTimeout: 30 * time.Second,
		logger:          slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms, nil
}

// Allow takes one token from the bucket of key.
func (ms *MemoryStore) Allow(ctx context.Context, key string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	e, ok := ms.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(ms.every, ms.cfg.burst())}
		ms.entries[key] = e
		ms.created.Add(1)
	}
	e.lastAccess = now

	res := Result{Limit: ms.cfg.burst()}
	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); !r.OK() || delay > 0 {
		// Give the token back; a denied request must not consume capacity
		r.CancelAt(now)
		res.retryAfter = delay
	} else {
		res.allowed = true
	}

	tokens := e.limiter.TokensAt(now)
	res.Remaining = max(int(math.Floor(tokens)), 0)
	res.ResetAt = now.Add(ms.refillTime(tokens))
	return res, nil
}

// refillTime is how long the bucket needs to become full again.
func (ms *MemoryStore) refillTime(tokens float64) time.Duration {
	missing := float64(ms.cfg.burst()) - tokens
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / float64(ms.every) * float64(time.Second))
}

// Reset forgets the bucket of key.
func (ms *MemoryStore) Reset(_ context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.entries, key)
	return nil
}

// Start runs the cleanup loop until ctx is cancelled or Stop is called.
// It blocks; run it in a goroutine or use Run.
func (ms *MemoryStore) Start(ctx context.Context) error {
	if ms.cleanupInterval <= 0 {
		return errors.Join(ErrInvalidConfig, errors.New("cleanup interval must be positive"))
	}

	ms.mu.Lock()
	if ms.cancel != nil {
		ms.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, ms.cancel = context.WithCancel(ctx)
	ms.mu.Unlock()

	ms.running.Store(true)
	defer ms.running.Store(false)

	ms.logger.InfoContext(ctx, "rate limiter cleanup started", slog.Duration("interval", ms.cleanupInterval))

	ticker := time.NewTicker(ms.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ms.wg.Add(1)
			ms.removeStale()
			ms.wg.Done()
		}
	}
}

// Stop ends the cleanup loop and waits for a running pass to finish.
func (ms *MemoryStore) Stop() error {
	ms.mu.Lock()
	cancel := ms.cancel
	ms.cancel = nil
	ms.mu.Unlock()
	if cancel == nil {
		return ErrNotStarted
	}
	cancel()

	done := make(chan struct{})
	go func() {
		ms.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ms.logger.Info("rate limiter cleanup stopped")
		return nil
	case <-time.After(ms.shutdownTimeout):
		ms.logger.Warn("rate limiter cleanup did not stop in time", slog.Duration("timeout", ms.shutdownTimeout))
		return ErrShutdownTimeout
	}
}

// Run adapts Start and Stop to errgroup-style supervision. The returned
// function exits cleanly when ctx is cancelled.
func (ms *MemoryStore) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- ms.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = ms.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

func (ms *MemoryStore) removeStale() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	removed := 0
	for key, e := range ms.entries {
		if now.Sub(e.lastAccess) > staleAfter {
			delete(ms.entries, key)
			removed++
		}
	}
	ms.removed.Add(int64(removed))
}

// Stats returns a snapshot of bucket counts.
func (ms *MemoryStore) Stats() MemoryStoreStats {
	ms.mu.Lock()
	active := len(ms.entries)
	ms.mu.Unlock()

	return MemoryStoreStats{
		BucketsCreated: ms.created.Load(),
		BucketsRemoved: ms.removed.Load(),
		ActiveBuckets:  active,
		IsRunning:      ms.running.Load(),
	}
}
