package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-heatbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-heatbridge/internal/state"
)

// defaultHealthInterval is how often health is reported when the caller
// does not set one.
const defaultHealthInterval = 30 * time.Second

// staleThreshold marks the hub state degraded when no poll has succeeded
// for this long.
const staleThreshold = 90 * time.Second

// HealthReporter publishes periodic bridge health to MQTT.
type HealthReporter struct {
	clientID  string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	coord     *state.Coordinator

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger Logger
}

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// ClientID identifies this bridge in health messages.
	ClientID string

	// Version is the bridge software version.
	Version string

	// Interval is how often to publish health status. Zero uses the default.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher

	// Coordinator provides poll state for status evaluation.
	Coordinator *state.Coordinator

	// Logger is optional.
	Logger Logger
}

// NewHealthReporter creates a health reporter. Call Start to begin
// reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &HealthReporter{
		clientID:  cfg.ClientID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		coord:     cfg.Coordinator,
		done:      make(chan struct{}),
		logger:    logger,
	}
}

// Start begins periodic health reporting. Call Stop to shut down.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop gracefully stops health reporting. Publishes a final "stopping"
// status before returning. Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		// Best-effort during shutdown, nothing we can do if it fails
		_ = h.publishStatus(HealthStopping, "bridge stopping") //nolint:errcheck
	})
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// reportLoop runs the periodic health reporting.
func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logger.Error("failed to publish initial health", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logger.Error("failed to publish health", "error", err)
			}
		}
	}
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (string, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}

	if h.coord != nil {
		if h.coord.Failures() > 0 {
			return HealthDegraded, "hub polls failing"
		}
		updated := h.coord.UpdatedAt()
		if updated.IsZero() {
			return HealthDegraded, "no hub data yet"
		}
		if time.Since(updated) > staleThreshold {
			return HealthDegraded, "hub state stale"
		}
	}

	return HealthHealthy, ""
}

// publishStatus publishes a health status message (QoS 1, retained).
func (h *HealthReporter) publishStatus(status, reason string) error {
	if h.publisher == nil {
		return nil
	}

	msg := HealthMessage{
		ClientID:      h.clientID,
		Version:       h.version,
		Status:        status,
		Reason:        reason,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Timestamp:     time.Now().UTC(),
	}

	if h.coord != nil {
		msg.PollFailures = h.coord.Failures()
		msg.LastPoll = h.coord.UpdatedAt()
		if snap := h.coord.Snapshot(); snap != nil {
			msg.Devices = len(snap.Devices)
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return h.publisher.Publish(mqtt.Topics{}.Health(), payload, 1, true)
}
