package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-heatbridge/internal/command"
	"github.com/nerrad567/gray-logic-heatbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-heatbridge/internal/neohub"
	"github.com/nerrad567/gray-logic-heatbridge/internal/state"
)

type pubRecord struct {
	topic    string
	payload  []byte
	retained bool
}

type fakeMQTT struct {
	mu        sync.Mutex
	published []pubRecord
	handlers  map[string]mqtt.MessageHandler
	connected bool
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{
		handlers:  make(map[string]mqtt.MessageHandler),
		connected: true,
	}
}

func (f *fakeMQTT) Publish(topic string, payload []byte, _ byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, pubRecord{topic: topic, payload: payload, retained: retained})
	return nil
}

func (f *fakeMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeMQTT) IsConnected() bool { return f.connected }

func (f *fakeMQTT) publishesTo(topic string) []pubRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []pubRecord
	for _, p := range f.published {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

type fakeDispatcher struct {
	mu       sync.Mutex
	requests []command.Request
	err      error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, req command.Request) (command.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	res := command.Result{ID: req.ID, Device: req.Device, Action: req.Action, Success: f.err == nil}
	if f.err != nil {
		res.Error = f.err.Error()
	}
	return res, f.err
}

type fakeHub struct {
	mu   sync.Mutex
	snap *neohub.Snapshot
}

func (f *fakeHub) GetAllLiveData(context.Context) (*neohub.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, nil
}

func (f *fakeHub) GetSystem(context.Context) (*neohub.SystemSettings, error) {
	return &neohub.SystemSettings{Format: neohub.FormatSeven}, nil
}

func hubSnapshot() *neohub.Snapshot {
	return &neohub.Snapshot{
		Devices: map[string]*neohub.DeviceState{
			"Lounge": {
				Name:               "Lounge",
				DeviceType:         12,
				Online:             true,
				CurrentTemperature: 19.5,
				TargetTemperature:  21.0,
				HeatOn:             true,
			},
		},
		System: &neohub.SystemSettings{Format: neohub.FormatSeven},
		Live:   &neohub.LiveFlags{},
	}
}

func newTestBridge(t *testing.T) (*Bridge, *fakeMQTT, *fakeDispatcher, *state.Coordinator) {
	t.Helper()

	hub := &fakeHub{snap: hubSnapshot()}
	coord := state.NewCoordinator(hub, time.Minute)
	broker := newFakeMQTT()
	disp := &fakeDispatcher{}

	b, err := New(Options{
		Coordinator: coord,
		Dispatcher:  disp,
		MQTT:        broker,
		ClientID:    "heatbridge-test",
		Version:     "test",
		QoS:         1,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(b.Stop)

	return b, broker, disp, coord
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	if err == nil {
		t.Fatal("New() with no dependencies should error")
	}
}

func TestStartSubscribesToCommandTopics(t *testing.T) {
	b, broker, _, _ := newTestBridge(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	broker.mu.Lock()
	defer broker.mu.Unlock()
	if _, ok := broker.handlers["heatbridge/command/+"]; !ok {
		t.Error("not subscribed to device command topic")
	}
	if _, ok := broker.handlers["heatbridge/system/command"]; !ok {
		t.Error("not subscribed to system command topic")
	}
}

func TestRefreshPublishesRetainedState(t *testing.T) {
	b, broker, _, coord := newTestBridge(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := coord.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	states := broker.publishesTo("heatbridge/state/Lounge")
	if len(states) != 1 {
		t.Fatalf("state published %d times, want 1", len(states))
	}
	if !states[0].retained {
		t.Error("state message not retained")
	}

	var payload StatePayload
	if err := json.Unmarshal(states[0].payload, &payload); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if payload.Name != "Lounge" || payload.TargetTemperature != 21.0 {
		t.Errorf("payload = %+v", payload)
	}

	if len(broker.publishesTo("heatbridge/system/state")) != 1 {
		t.Error("system state not published")
	}
}

func TestUnchangedStateNotRepublished(t *testing.T) {
	b, broker, _, coord := newTestBridge(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := coord.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if err := coord.Refresh(ctx); err != nil {
		t.Fatalf("second Refresh() error = %v", err)
	}

	states := broker.publishesTo("heatbridge/state/Lounge")
	if len(states) != 1 {
		t.Errorf("unchanged state published %d times, want 1", len(states))
	}
}

func TestDeviceCommandDispatchedAndAcked(t *testing.T) {
	b, broker, disp, coord := newTestBridge(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := coord.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	handler := broker.handlers["heatbridge/command/+"]
	payload := []byte(`{"id":"req-1","action":"set_temperature","args":{"temperature":22}}`)
	if err := handler("heatbridge/command/Lounge", payload); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	disp.mu.Lock()
	if len(disp.requests) != 1 {
		t.Fatalf("dispatched %d requests, want 1", len(disp.requests))
	}
	req := disp.requests[0]
	disp.mu.Unlock()

	// The topic overrides any device in the payload.
	if req.Device != "Lounge" || req.Action != "set_temperature" || req.ID != "req-1" {
		t.Errorf("request = %+v", req)
	}

	acks := broker.publishesTo("heatbridge/ack/Lounge")
	if len(acks) != 1 {
		t.Fatalf("ack published %d times, want 1", len(acks))
	}
	if acks[0].retained {
		t.Error("ack should not be retained")
	}

	var res command.Result
	if err := json.Unmarshal(acks[0].payload, &res); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if res.ID != "req-1" || !res.Success {
		t.Errorf("result = %+v", res)
	}
}

func TestMalformedCommandProducesNoAck(t *testing.T) {
	b, broker, disp, _ := newTestBridge(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	handler := broker.handlers["heatbridge/command/+"]
	if err := handler("heatbridge/command/Lounge", []byte("{not json")); err == nil {
		t.Error("handler should reject malformed payload")
	}

	disp.mu.Lock()
	dispatched := len(disp.requests)
	disp.mu.Unlock()
	if dispatched != 0 {
		t.Errorf("dispatched %d requests for malformed payload, want 0", dispatched)
	}
	if len(broker.publishesTo("heatbridge/ack/Lounge")) != 0 {
		t.Error("ack published for malformed payload")
	}
}

func TestSystemCommandAckedOnSystemTopic(t *testing.T) {
	b, broker, _, _ := newTestBridge(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	handler := broker.handlers["heatbridge/system/command"]
	payload := []byte(`{"id":"sys-1","action":"set_away","args":{"away":true}}`)
	if err := handler("heatbridge/system/command", payload); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	acks := broker.publishesTo("heatbridge/system/ack")
	if len(acks) != 1 {
		t.Fatalf("system ack published %d times, want 1", len(acks))
	}
	if !strings.Contains(string(acks[0].payload), `"sys-1"`) {
		t.Errorf("ack payload = %s", acks[0].payload)
	}
}

type fakeTelemetry struct {
	mu           sync.Mutex
	temperatures []string
	hubStatuses  int
}

func (f *fakeTelemetry) WriteTemperature(device string, _, _, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.temperatures = append(f.temperatures, device)
}

func (f *fakeTelemetry) WriteDeviceStatus(string, bool, bool) {}

func (f *fakeTelemetry) WriteHubStatus(bool, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hubStatuses++
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeRecorder) Record(context.Context, *neohub.Snapshot) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return 1, nil
}

func TestTelemetryAndHistoryHooks(t *testing.T) {
	hub := &fakeHub{snap: hubSnapshot()}
	coord := state.NewCoordinator(hub, time.Minute)
	broker := newFakeMQTT()
	telemetry := &fakeTelemetry{}
	recorder := &fakeRecorder{}

	b, err := New(Options{
		Coordinator: coord,
		Dispatcher:  &fakeDispatcher{},
		MQTT:        broker,
		Telemetry:   telemetry,
		Recorder:    recorder,
		QoS:         1,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer b.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := coord.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	telemetry.mu.Lock()
	temps, statuses := telemetry.temperatures, telemetry.hubStatuses
	telemetry.mu.Unlock()
	if len(temps) != 1 || temps[0] != "Lounge" {
		t.Errorf("temperature writes = %v, want [Lounge]", temps)
	}
	if statuses != 1 {
		t.Errorf("hub status writes = %d, want 1", statuses)
	}

	recorder.mu.Lock()
	calls := recorder.calls
	recorder.mu.Unlock()
	if calls != 1 {
		t.Errorf("recorder calls = %d, want 1", calls)
	}
}

func TestHealthDegradedWithoutHubData(t *testing.T) {
	hub := &fakeHub{snap: hubSnapshot()}
	coord := state.NewCoordinator(hub, time.Minute)
	broker := newFakeMQTT()

	reporter := NewHealthReporter(HealthReporterConfig{
		ClientID:    "heatbridge-test",
		Publisher:   broker,
		Coordinator: coord,
	})

	if err := reporter.PublishNow(); err != nil {
		t.Fatalf("PublishNow() error = %v", err)
	}

	health := broker.publishesTo("heatbridge/health")
	if len(health) != 1 {
		t.Fatalf("health published %d times, want 1", len(health))
	}

	var msg HealthMessage
	if err := json.Unmarshal(health[0].payload, &msg); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if msg.Status != HealthDegraded {
		t.Errorf("status = %q, want %q", msg.Status, HealthDegraded)
	}

	// After a successful poll the bridge is healthy.
	if err := coord.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if err := reporter.PublishNow(); err != nil {
		t.Fatalf("second PublishNow() error = %v", err)
	}

	health = broker.publishesTo("heatbridge/health")
	if err := json.Unmarshal(health[1].payload, &msg); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if msg.Status != HealthHealthy {
		t.Errorf("status after poll = %q, want %q", msg.Status, HealthHealthy)
	}
	if msg.Devices != 1 {
		t.Errorf("devices = %d, want 1", msg.Devices)
	}
}
