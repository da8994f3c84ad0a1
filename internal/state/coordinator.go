package state

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-heatbridge/internal/neohub"
)

// Defaults for the polling loop.
const (
	// defaultPollInterval is how often the hub is polled when the
	// configuration does not say otherwise.
	defaultPollInterval = 30 * time.Second

	// refreshTimeout bounds a single refresh cycle end to end, including
	// the narrower system-settings fallback call.
	refreshTimeout = 30 * time.Second
)

// Hub is the subset of the hub client the coordinator needs.
type Hub interface {
	GetAllLiveData(ctx context.Context) (*neohub.Snapshot, error)
	GetSystem(ctx context.Context) (*neohub.SystemSettings, error)
}

// Logger defines the logging interface used by the Coordinator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Coordinator polls the hub and maintains the authoritative in-memory
// snapshot every other component reads from.
//
// Published snapshots are treated as immutable: readers receive the current
// pointer and must not modify it. Optimistic mutations build a fresh copy
// and swap the pointer, so a reader holding an old snapshot is never
// affected by a concurrent write.
//
// Refreshes coalesce: while one is running, further Refresh calls return
// ErrRefreshInFlight instead of queueing. A failed refresh keeps the last
// good snapshot so readers degrade to stale data rather than none.
type Coordinator struct {
	hub      Hub
	interval time.Duration
	logger   Logger

	refreshing atomic.Bool

	mu        sync.RWMutex
	snapshot  *neohub.Snapshot
	updatedAt time.Time
	failures  int

	subMu       sync.Mutex
	subscribers []func(*neohub.Snapshot)
}

// NewCoordinator creates a coordinator polling hub every interval.
// A non-positive interval selects the default.
func NewCoordinator(hub Hub, interval time.Duration) *Coordinator {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Coordinator{hub: hub, interval: interval, logger: noopLogger{}}
}

// SetLogger sets the logger for the coordinator.
func (c *Coordinator) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Subscribe registers fn to run after every successful refresh with the
// newly published snapshot. Callbacks run on the refreshing goroutine and
// must not block. Must be called before Run.
func (c *Coordinator) Subscribe(fn func(*neohub.Snapshot)) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Refresh polls the hub once and publishes a new snapshot.
//
// Returns ErrRefreshInFlight when another refresh is already running. On
// hub failure the previous snapshot stays published and the error is
// returned wrapped.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if !c.refreshing.CompareAndSwap(false, true) {
		return ErrRefreshInFlight
	}
	defer c.refreshing.Store(false)

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	snap, err := c.hub.GetAllLiveData(ctx)
	if err != nil {
		c.noteFailure(err)
		return fmt.Errorf("refreshing hub state: %w", err)
	}

	// Some firmware versions omit the system block from the combined
	// response. Fetch it separately rather than publish without it.
	if snap.System == nil {
		sys, err := c.hub.GetSystem(ctx)
		if err != nil {
			c.noteFailure(err)
			return fmt.Errorf("fetching system settings: %w", err)
		}
		snap.System = sys
	}

	c.mu.Lock()
	c.snapshot = snap
	c.updatedAt = time.Now()
	c.failures = 0
	c.mu.Unlock()

	c.logger.Debug("snapshot refreshed", "devices", len(snap.Devices))
	c.notify(snap)
	return nil
}

func (c *Coordinator) noteFailure(err error) {
	c.mu.Lock()
	c.failures++
	n := c.failures
	c.mu.Unlock()
	c.logger.Warn("hub refresh failed", "error", err, "consecutive_failures", n)
}

func (c *Coordinator) notify(snap *neohub.Snapshot) {
	c.subMu.Lock()
	subs := c.subscribers
	c.subMu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

// Run refreshes immediately, then on every tick until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		c.logger.Error("initial refresh failed", "error", err)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil && err != ErrRefreshInFlight {
				// Logged in Refresh; nothing further to do here. The
				// stale snapshot stays published until the hub recovers.
				continue
			}
		}
	}
}

// Snapshot returns the current published snapshot, or nil before the first
// successful refresh. The returned snapshot must be treated as read-only.
func (c *Coordinator) Snapshot() *neohub.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// UpdatedAt reports when the current snapshot was published. The zero time
// means no refresh has succeeded yet.
func (c *Coordinator) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// Failures reports the number of consecutive failed refreshes since the
// last success.
func (c *Coordinator) Failures() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failures
}

// ApplyOptimisticMutation updates the cached state of every device matching
// predicate, without waiting for the next poll. Callers invoke it after the
// hub has acknowledged a command, so reads reflect the change immediately;
// the next refresh replaces the guess with the hub's authoritative values.
//
// The mutation is applied to copies: a new snapshot is built with the
// matching devices cloned and mutated, then swapped in. Returns the number
// of devices mutated; zero with a nil error means nothing matched.
func (c *Coordinator) ApplyOptimisticMutation(predicate func(*neohub.DeviceState) bool, mutator func(*neohub.DeviceState)) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot == nil {
		return 0
	}

	next := *c.snapshot
	next.Devices = make(map[string]*neohub.DeviceState, len(c.snapshot.Devices))
	mutated := 0
	for name, dev := range c.snapshot.Devices {
		if predicate(dev) {
			clone := *dev
			mutator(&clone)
			next.Devices[name] = &clone
			mutated++
		} else {
			next.Devices[name] = dev
		}
	}

	if mutated > 0 {
		c.snapshot = &next
	}
	return mutated
}

// ApplySystemMutation updates cached hub-wide state (away, holiday) the
// same optimistic way ApplyOptimisticMutation updates devices.
func (c *Coordinator) ApplySystemMutation(mutator func(*neohub.LiveFlags)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot == nil || c.snapshot.Live == nil {
		return
	}

	next := *c.snapshot
	live := *c.snapshot.Live
	mutator(&live)
	next.Live = &live
	c.snapshot = &next
}
