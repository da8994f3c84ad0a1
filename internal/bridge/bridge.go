package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-heatbridge/internal/command"
	"github.com/nerrad567/gray-logic-heatbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-heatbridge/internal/neohub"
	"github.com/nerrad567/gray-logic-heatbridge/internal/schedule"
	"github.com/nerrad567/gray-logic-heatbridge/internal/state"
)

// commandTimeout bounds one dispatched command, hub round-trip included.
const commandTimeout = 15 * time.Second

// Bridge connects the polled hub state to the MQTT surface.
// It handles:
//   - Publishing device state, schedules, and hub-wide state on each poll
//   - Receiving commands over MQTT and dispatching them to the hub
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	coord      *state.Coordinator
	dispatcher Dispatcher
	mqtt       MQTTClient
	recorder   Recorder
	telemetry  Telemetry
	health     *HealthReporter
	qos        byte

	// Published-payload cache for change detection
	stateCache   map[string][]byte
	stateCacheMu sync.Mutex

	// Shutdown coordination
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger Logger
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Dispatcher executes wire-form commands. Satisfied by *command.Handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, req command.Request) (command.Result, error)
}

// Recorder persists temperature samples. Satisfied by *history.Recorder.
// Optional - if nil, the bridge operates without local history.
type Recorder interface {
	Record(ctx context.Context, snap *neohub.Snapshot) (int, error)
}

// Telemetry writes poll-cycle telemetry. Satisfied by *influxdb.Client.
// Optional - if nil, the bridge operates without telemetry.
type Telemetry interface {
	WriteTemperature(device string, current, target, floor float64)
	WriteDeviceStatus(device string, heating, online bool)
	WriteHubStatus(reachable bool, deviceCount, failures int)
}

// Logger is the minimal logging interface the bridge needs.
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

// Options holds configuration for creating a bridge.
type Options struct {
	// Coordinator is the polled hub state. Required.
	Coordinator *state.Coordinator

	// Dispatcher executes incoming commands. Required.
	Dispatcher Dispatcher

	// MQTT is the broker connection. Required.
	MQTT MQTTClient

	// Recorder is optional local history persistence.
	Recorder Recorder

	// Telemetry is optional InfluxDB telemetry.
	Telemetry Telemetry

	// Logger is optional structured logging.
	Logger Logger

	// ClientID identifies this bridge in health messages.
	ClientID string

	// Version is the bridge software version for health messages.
	Version string

	// QoS is the publish QoS for state and ack messages.
	QoS byte

	// HealthInterval is how often health is reported. Zero uses the default.
	HealthInterval time.Duration
}

// New creates a bridge. Call Start to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.Coordinator == nil {
		return nil, fmt.Errorf("bridge: coordinator is required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("bridge: dispatcher is required")
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("bridge: mqtt client is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := &Bridge{
		coord:      opts.Coordinator,
		dispatcher: opts.Dispatcher,
		mqtt:       opts.MQTT,
		recorder:   opts.Recorder,
		telemetry:  opts.Telemetry,
		qos:        opts.QoS,
		stateCache: make(map[string][]byte),
		ctx:        ctx,
		ctxCancel:  cancel,
		logger:     logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		ClientID:    opts.ClientID,
		Version:     opts.Version,
		Interval:    opts.HealthInterval,
		Publisher:   opts.MQTT,
		Coordinator: opts.Coordinator,
		Logger:      logger,
	})

	return b, nil
}

// Start wires the bridge into the coordinator and broker.
// Each completed poll publishes state; incoming command messages are
// dispatched to the hub.
func (b *Bridge) Start(ctx context.Context) error {
	topics := mqtt.Topics{}

	if err := b.mqtt.Subscribe(topics.AllDeviceCommands(), b.qos, b.handleDeviceCommand); err != nil {
		return fmt.Errorf("bridge: subscribing to device commands: %w", err)
	}
	if err := b.mqtt.Subscribe(topics.SystemCommand(), b.qos, b.handleSystemCommand); err != nil {
		return fmt.Errorf("bridge: subscribing to system commands: %w", err)
	}

	b.coord.Subscribe(b.publishSnapshot)

	// Publish whatever state already exists so retained topics are fresh
	// immediately after a restart.
	if snap := b.coord.Snapshot(); snap != nil {
		b.publishSnapshot(snap)
	}

	b.health.Start(ctx)

	b.logger.Info("bridge started",
		"command_topic", topics.AllDeviceCommands(),
		"system_topic", topics.SystemCommand())
	return nil
}

// Stop gracefully shuts down the bridge. In-flight commands are cancelled
// and a final stopping health message is published.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()
		b.health.Stop()
		b.logger.Info("bridge stopped")
	})
}

// publishSnapshot publishes per-device state, schedules, hub-wide state,
// and telemetry for one snapshot. Runs on every coordinator refresh and
// after each acknowledged command.
func (b *Bridge) publishSnapshot(snap *neohub.Snapshot) {
	if snap == nil {
		return
	}

	topics := mqtt.Topics{}
	now := time.Now().UTC()

	for name, dev := range snap.Devices {
		b.publishDevice(topics, name, dev, snap, now)
	}

	b.publishSystem(topics, snap, now)

	if b.telemetry != nil {
		b.telemetry.WriteHubStatus(b.coord.Failures() == 0, len(snap.Devices), b.coord.Failures())
	}

	if b.recorder != nil {
		if _, err := b.recorder.Record(b.ctx, snap); err != nil {
			b.logger.Warn("history record failed", "error", err)
		}
	}
}

func (b *Bridge) publishDevice(topics mqtt.Topics, name string, dev *neohub.DeviceState, snap *neohub.Snapshot, now time.Time) {
	payload := StatePayload{
		DeviceState: dev,
		UpdatedAt:   now,
	}

	if cur, ok := schedule.CurrentLevel(dev.ActiveProfile, dev, snap); ok {
		payload.CurrentLevel = &cur
	}
	if next, ok := schedule.NextLevel(dev.ActiveProfile, dev, snap); ok {
		payload.NextLevel = &next
	}

	if b.publishIfChanged(topics.DeviceState(name), payload, now) {
		sched := SchedulePayload{
			Device:       name,
			Profile:      dev.ActiveProfile,
			CurrentLevel: payload.CurrentLevel,
			NextLevel:    payload.NextLevel,
			UpdatedAt:    now,
		}
		b.publishIfChanged(topics.DeviceSchedule(name), sched, now)
	}

	if b.telemetry != nil && neohub.IsThermostat(dev.DeviceType) && dev.Online {
		b.telemetry.WriteTemperature(name, dev.CurrentTemperature, dev.TargetTemperature, dev.FloorTemperature)
		b.telemetry.WriteDeviceStatus(name, dev.HeatOn, dev.Online)
	}
}

func (b *Bridge) publishSystem(topics mqtt.Topics, snap *neohub.Snapshot, now time.Time) {
	payload := SystemPayload{
		System:    snap.System,
		Live:      snap.Live,
		UpdatedAt: now,
	}
	b.publishIfChanged(topics.SystemState(), payload, now)
}

// publishIfChanged marshals payload and publishes it retained, skipping
// the publish when the body is identical to the last one sent on the
// topic. The UpdatedAt timestamp is excluded from the comparison so an
// unchanged device does not republish every poll.
func (b *Bridge) publishIfChanged(topic string, payload any, now time.Time) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("marshal failed", "topic", topic, "error", err)
		return false
	}

	key := changeKey(body, now)

	b.stateCacheMu.Lock()
	unchanged := bytes.Equal(b.stateCache[topic], key)
	if !unchanged {
		b.stateCache[topic] = key
	}
	b.stateCacheMu.Unlock()

	if unchanged {
		return false
	}

	if err := b.mqtt.Publish(topic, body, b.qos, true); err != nil {
		b.logger.Warn("publish failed", "topic", topic, "error", err)
		// Drop the cache entry so the next cycle retries.
		b.stateCacheMu.Lock()
		delete(b.stateCache, topic)
		b.stateCacheMu.Unlock()
		return false
	}
	return true
}

// changeKey strips the updated_at field from a marshalled payload so
// change detection compares content, not timestamps.
func changeKey(body []byte, now time.Time) []byte {
	stamp, err := json.Marshal(now)
	if err != nil {
		return body
	}
	needle := append([]byte(`"updated_at":`), stamp...)
	return bytes.Replace(body, needle, nil, 1)
}

// handleDeviceCommand processes one message from a device command topic.
func (b *Bridge) handleDeviceCommand(topic string, payload []byte) error {
	device, ok := mqtt.Topics{}.CommandDevice(topic)
	if !ok || device == "" {
		return fmt.Errorf("bridge: not a device command topic: %s", topic)
	}

	var req command.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logger.Warn("invalid command payload", "topic", topic, "error", err)
		return fmt.Errorf("bridge: parsing command: %w", err)
	}

	// The topic is authoritative for the target device.
	req.Device = device

	res := b.dispatch(req)
	b.publishAck(mqtt.Topics{}.DeviceAck(device), res)
	return nil
}

// handleSystemCommand processes one hub-wide command (away, holiday,
// profile management).
func (b *Bridge) handleSystemCommand(topic string, payload []byte) error {
	var req command.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logger.Warn("invalid system command payload", "topic", topic, "error", err)
		return fmt.Errorf("bridge: parsing system command: %w", err)
	}

	res := b.dispatch(req)
	b.publishAck(mqtt.Topics{}.SystemAck(), res)
	return nil
}

// dispatch runs one command against the hub and republishes state so
// optimistic mutations reach the retained topics without waiting for the
// next poll.
func (b *Bridge) dispatch(req command.Request) command.Result {
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	res, err := b.dispatcher.Dispatch(ctx, req)
	if err == nil {
		b.publishSnapshot(b.coord.Snapshot())
	}
	return res
}

// publishAck publishes a command result. Acks are not retained: they are
// events, not state.
func (b *Bridge) publishAck(topic string, res command.Result) {
	body, err := json.Marshal(res)
	if err != nil {
		b.logger.Error("marshal ack failed", "error", err)
		return
	}
	if err := b.mqtt.Publish(topic, body, b.qos, false); err != nil {
		b.logger.Warn("publish ack failed", "topic", topic, "error", err)
	}
}
