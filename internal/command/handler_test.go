package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-heatbridge/internal/neohub"
	"github.com/nerrad567/gray-logic-heatbridge/internal/state"
)

// recordingHub records every verb invoked and can fail on demand.
type recordingHub struct {
	calls []string
	err   error
}

func (r *recordingHub) record(verb string) error {
	r.calls = append(r.calls, verb)
	return r.err
}

func (r *recordingHub) SetHold(ctx context.Context, temp float64, hours, minutes int, zones []string) error {
	return r.record("HOLD")
}
func (r *recordingHub) SetTimerHold(ctx context.Context, on bool, minutes int, zones []string) error {
	return r.record("TIMER_HOLD")
}
func (r *recordingHub) SetFrost(ctx context.Context, on bool, zones []string) error {
	if on {
		return r.record("FROST_ON")
	}
	return r.record("FROST_OFF")
}
func (r *recordingHub) SetTargetTemperature(ctx context.Context, temp float64, zones []string) error {
	return r.record("SET_TEMP")
}
func (r *recordingHub) SetCoolTemp(ctx context.Context, temp float64, zones []string) error {
	return r.record("SET_COOL_TEMP")
}
func (r *recordingHub) SetHCMode(ctx context.Context, mode neohub.HCMode, zones []string) error {
	return r.record("SET_HC_MODE")
}
func (r *recordingHub) SetFanSpeed(ctx context.Context, speed string, zones []string) error {
	return r.record("SET_FAN_SPEED")
}
func (r *recordingHub) SetManual(ctx context.Context, on bool, zones []string) error {
	return r.record("MANUAL")
}
func (r *recordingHub) SetTimer(ctx context.Context, on bool, zones []string) error {
	return r.record("TIMER")
}
func (r *recordingHub) SetLock(ctx context.Context, pin string, zones []string) error {
	return r.record("LOCK")
}
func (r *recordingHub) Unlock(ctx context.Context, zones []string) error { return r.record("UNLOCK") }
func (r *recordingHub) Identify(ctx context.Context, zones []string) error {
	return r.record("IDENTIFY_DEV")
}
func (r *recordingHub) RemoveRepeater(ctx context.Context, name string) error {
	return r.record("REMOVE_REPEATER")
}
func (r *recordingHub) SetDiff(ctx context.Context, value int, zones []string) error {
	return r.record("SET_DIFF")
}
func (r *recordingHub) SetPreheat(ctx context.Context, hours int, zones []string) error {
	return r.record("SET_PREHEAT")
}
func (r *recordingHub) SetFrostTemp(ctx context.Context, temp float64, zones []string) error {
	return r.record("SET_FROST")
}
func (r *recordingHub) SetOutputDelay(ctx context.Context, minutes int, zones []string) error {
	return r.record("SET_DELAY")
}
func (r *recordingHub) SetFloorLimit(ctx context.Context, temp float64, zones []string) error {
	return r.record("SET_FLOOR")
}
func (r *recordingHub) SetAway(ctx context.Context, on bool) error { return r.record("AWAY") }
func (r *recordingHub) SetHoliday(ctx context.Context, start, end time.Time) error {
	return r.record("HOLIDAY")
}
func (r *recordingHub) CancelHoliday(ctx context.Context) error {
	return r.record("CANCEL_HOLIDAY")
}
func (r *recordingHub) RenameProfile(ctx context.Context, oldName, newName string) error {
	return r.record("PROFILE_TITLE")
}
func (r *recordingHub) DeleteProfile(ctx context.Context, name string) error {
	return r.record("CLEAR_PROFILE")
}
func (r *recordingHub) StoreProfile(ctx context.Context, name string, info map[string]any) error {
	return r.record("STORE_PROFILE")
}
func (r *recordingHub) StoreTimerProfile(ctx context.Context, name string, info map[string]any) error {
	return r.record("STORE_TIMER_PROFILE")
}

// snapshotHub feeds the coordinator a fixed snapshot.
type snapshotHub struct{ snap *neohub.Snapshot }

func (s *snapshotHub) GetAllLiveData(ctx context.Context) (*neohub.Snapshot, error) {
	clone := *s.snap
	clone.Devices = make(map[string]*neohub.DeviceState, len(s.snap.Devices))
	for name, dev := range s.snap.Devices {
		d := *dev
		clone.Devices[name] = &d
	}
	return &clone, nil
}

func (s *snapshotHub) GetSystem(ctx context.Context) (*neohub.SystemSettings, error) {
	return s.snap.System, nil
}

func commandFixture(t *testing.T) (*Handler, *recordingHub, *state.Coordinator) {
	t.Helper()

	snap := &neohub.Snapshot{
		Devices: map[string]*neohub.DeviceState{
			"Lounge":    {Name: "Lounge", DeviceID: 1, DeviceType: 12, Online: true, TargetTemperature: 20},
			"AirCon":    {Name: "AirCon", DeviceID: 2, DeviceType: 8, Online: true},
			"Plug":      {Name: "Plug", DeviceID: 3, DeviceType: 6, Online: true},
			"Hot Water": {Name: "Hot Water", DeviceID: 4, DeviceType: 2, Online: true, TimeClockMode: true},
			"Repeater":  {Name: "Repeater", DeviceID: 5, DeviceType: 10, Online: true},
		},
		System: &neohub.SystemSettings{Format: neohub.FormatSeven, HeatingLevelsPerDay: 4},
		Live:   &neohub.LiveFlags{},
		Profiles: map[int]*neohub.Profile{
			1: {ID: 1, Name: "Weekday", Days: map[neohub.Weekday]neohub.ProfileDay{
				neohub.Monday: {Heating: []neohub.HeatingLevel{
					{Time: "6:30", Temperature: 19}, {Time: "22:00", Temperature: 16},
				}},
			}},
		},
	}

	coord := state.NewCoordinator(&snapshotHub{snap: snap}, time.Minute)
	if err := coord.Refresh(context.Background()); err != nil {
		t.Fatalf("seeding coordinator: %v", err)
	}

	hub := &recordingHub{}
	return NewHandler(hub, coord), hub, coord
}

func TestSetTargetTemperature(t *testing.T) {
	h, hub, coord := commandFixture(t)

	if err := h.SetTargetTemperature(context.Background(), "Lounge", 21.5); err != nil {
		t.Fatalf("SetTargetTemperature: %v", err)
	}
	if len(hub.calls) != 1 || hub.calls[0] != "SET_TEMP" {
		t.Errorf("hub calls = %v, want [SET_TEMP]", hub.calls)
	}
	if got := coord.Snapshot().Devices["Lounge"].TargetTemperature; got != 21.5 {
		t.Errorf("optimistic target = %v, want 21.5", got)
	}
}

func TestSetTargetTemperatureValidation(t *testing.T) {
	h, hub, _ := commandFixture(t)

	tests := []struct {
		name    string
		device  string
		temp    float64
		wantErr error
	}{
		{"too hot", "Lounge", 36, ErrInvalidArgument},
		{"too cold", "Lounge", 4, ErrInvalidArgument},
		{"unknown device", "Attic", 20, ErrUnknownDevice},
		{"repeater", "Repeater", 20, ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.SetTargetTemperature(context.Background(), tt.device, tt.temp)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
	if len(hub.calls) != 0 {
		t.Errorf("validation failures must not reach the hub, got %v", hub.calls)
	}
}

func TestHubFailureSkipsMutation(t *testing.T) {
	h, hub, coord := commandFixture(t)
	hub.err = neohub.ErrCommandRejected

	err := h.SetTargetTemperature(context.Background(), "Lounge", 22)
	if !errors.Is(err, neohub.ErrCommandRejected) {
		t.Fatalf("got %v, want ErrCommandRejected", err)
	}
	if got := coord.Snapshot().Devices["Lounge"].TargetTemperature; got != 20 {
		t.Errorf("target = %v, want the unmutated 20", got)
	}
}

func TestSetHVACMode(t *testing.T) {
	t.Run("off is standby", func(t *testing.T) {
		h, hub, coord := commandFixture(t)
		if err := h.SetHVACMode(context.Background(), "Lounge", HVACOff); err != nil {
			t.Fatalf("SetHVACMode: %v", err)
		}
		if len(hub.calls) != 1 || hub.calls[0] != "FROST_ON" {
			t.Errorf("hub calls = %v, want [FROST_ON]", hub.calls)
		}
		if !coord.Snapshot().Devices["Lounge"].Standby {
			t.Error("expected standby after hvac off")
		}
	})

	t.Run("cool needs a heat/cool unit", func(t *testing.T) {
		h, _, _ := commandFixture(t)
		if err := h.SetHVACMode(context.Background(), "Lounge", HVACCool); !errors.Is(err, ErrUnsupported) {
			t.Errorf("got %v, want ErrUnsupported", err)
		}
	})

	t.Run("cool on a heat/cool unit", func(t *testing.T) {
		h, hub, coord := commandFixture(t)
		if err := h.SetHVACMode(context.Background(), "AirCon", HVACCool); err != nil {
			t.Fatalf("SetHVACMode: %v", err)
		}
		want := []string{"FROST_OFF", "SET_HC_MODE"}
		if len(hub.calls) != 2 || hub.calls[0] != want[0] || hub.calls[1] != want[1] {
			t.Errorf("hub calls = %v, want %v", hub.calls, want)
		}
		if got := coord.Snapshot().Devices["AirCon"].HCModeState; got != neohub.HCModeCooling {
			t.Errorf("hc mode = %v, want cooling", got)
		}
	})
}

func TestLockPinValidation(t *testing.T) {
	h, hub, coord := commandFixture(t)

	for _, pin := range []string{"", "12345", "12a4", "-123"} {
		if err := h.Lock(context.Background(), "Lounge", pin); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("pin %q: got %v, want ErrInvalidArgument", pin, err)
		}
	}
	if len(hub.calls) != 0 {
		t.Fatalf("invalid pins must not reach the hub, got %v", hub.calls)
	}

	if err := h.Lock(context.Background(), "Lounge", "0042"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	dev := coord.Snapshot().Devices["Lounge"]
	if !dev.LockState || dev.PinNumber != "0042" {
		t.Errorf("lock state = %v pin = %q, want locked with 0042", dev.LockState, dev.PinNumber)
	}
}

func TestSetPlugMode(t *testing.T) {
	h, hub, coord := commandFixture(t)

	if err := h.SetPlugMode(context.Background(), "Plug", PlugManualOn); err != nil {
		t.Fatalf("SetPlugMode: %v", err)
	}
	want := []string{"MANUAL", "TIMER"}
	if len(hub.calls) != 2 || hub.calls[0] != want[0] || hub.calls[1] != want[1] {
		t.Errorf("hub calls = %v, want %v", hub.calls, want)
	}
	dev := coord.Snapshot().Devices["Plug"]
	if !dev.ManualOff || !dev.TimerOn {
		t.Errorf("plug state = %+v, want manual with output on", dev)
	}

	if err := h.SetPlugMode(context.Background(), "Lounge", PlugAuto); !errors.Is(err, ErrUnsupported) {
		t.Errorf("thermostat as plug: got %v, want ErrUnsupported", err)
	}
}

func TestSetAway(t *testing.T) {
	h, _, coord := commandFixture(t)

	if err := h.SetAway(context.Background(), true); err != nil {
		t.Fatalf("SetAway: %v", err)
	}
	snap := coord.Snapshot()
	if !snap.Live.AwayActive {
		t.Error("expected hub-wide away flag")
	}
	if !snap.Devices["Lounge"].Away {
		t.Error("expected thermostat marked away")
	}
	if snap.Devices["Repeater"].Away {
		t.Error("repeaters sit outside away handling")
	}
}

func TestSetPresetBoost(t *testing.T) {
	h, hub, coord := commandFixture(t)

	if err := h.SetPreset(context.Background(), "Lounge", PresetBoost); err != nil {
		t.Fatalf("SetPreset: %v", err)
	}
	if len(hub.calls) != 1 || hub.calls[0] != "HOLD" {
		t.Errorf("hub calls = %v, want [HOLD]", hub.calls)
	}
	dev := coord.Snapshot().Devices["Lounge"]
	if !dev.HoldOn || dev.HoldTemp != 22 {
		t.Errorf("hold = %v temp = %v, want hold at 22", dev.HoldOn, dev.HoldTemp)
	}

	// Timers boost their output, not a temperature.
	hub.calls = nil
	if err := h.SetPreset(context.Background(), "Hot Water", PresetBoost); err != nil {
		t.Fatalf("SetPreset timer: %v", err)
	}
	if len(hub.calls) != 1 || hub.calls[0] != "TIMER_HOLD" {
		t.Errorf("hub calls = %v, want [TIMER_HOLD]", hub.calls)
	}
}

func TestStoreProfileValidation(t *testing.T) {
	h, hub, _ := commandFixture(t)

	err := h.StoreProfile(context.Background(), ProfileDefinition{Name: ""}, StoreUpsert)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty name: got %v, want ErrInvalidArgument", err)
	}

	// Five heating levels on a four-level hub.
	err = h.StoreProfile(context.Background(), ProfileDefinition{
		Name: "Busy",
		Days: map[neohub.Weekday]neohub.ProfileDay{
			neohub.Monday: {Heating: []neohub.HeatingLevel{
				{Time: "06:00", Temperature: 19}, {Time: "08:00", Temperature: 17},
				{Time: "12:00", Temperature: 19}, {Time: "17:00", Temperature: 21},
				{Time: "22:00", Temperature: 16},
			}},
		},
	}, StoreUpsert)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("too many levels: got %v, want ErrInvalidArgument", err)
	}
	if len(hub.calls) != 0 {
		t.Errorf("invalid profiles must not reach the hub, got %v", hub.calls)
	}

	err = h.StoreProfile(context.Background(), ProfileDefinition{
		Name: "Mornings",
		Days: map[neohub.Weekday]neohub.ProfileDay{
			neohub.Monday: {Heating: []neohub.HeatingLevel{
				{Time: "6:30", Temperature: 19}, {Time: "22:00", Temperature: 16},
			}},
		},
	}, StoreUpsert)
	if err != nil {
		t.Fatalf("StoreProfile: %v", err)
	}
	if len(hub.calls) != 1 || hub.calls[0] != "STORE_PROFILE" {
		t.Errorf("hub calls = %v, want [STORE_PROFILE]", hub.calls)
	}
}

func TestStoreProfileModes(t *testing.T) {
	weekday := ProfileDefinition{
		Name: "Weekday",
		Days: map[neohub.Weekday]neohub.ProfileDay{
			neohub.Monday: {Heating: []neohub.HeatingLevel{{Time: "06:30", Temperature: 19}}},
		},
	}
	fresh := weekday
	fresh.Name = "Weekend"

	t.Run("create rejects an existing name", func(t *testing.T) {
		h, hub, _ := commandFixture(t)
		err := h.StoreProfile(context.Background(), weekday, StoreCreate)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("got %v, want ErrInvalidArgument", err)
		}
		if len(hub.calls) != 0 {
			t.Errorf("rejected create must not reach the hub, got %v", hub.calls)
		}
	})

	t.Run("create accepts a new name", func(t *testing.T) {
		h, hub, _ := commandFixture(t)
		if err := h.StoreProfile(context.Background(), fresh, StoreCreate); err != nil {
			t.Fatalf("StoreProfile: %v", err)
		}
		if len(hub.calls) != 1 || hub.calls[0] != "STORE_PROFILE" {
			t.Errorf("hub calls = %v, want [STORE_PROFILE]", hub.calls)
		}
	})

	t.Run("update rejects a missing name", func(t *testing.T) {
		h, hub, _ := commandFixture(t)
		err := h.StoreProfile(context.Background(), fresh, StoreUpdate)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("got %v, want ErrInvalidArgument", err)
		}
		if len(hub.calls) != 0 {
			t.Errorf("rejected update must not reach the hub, got %v", hub.calls)
		}
	})

	t.Run("update accepts an existing name", func(t *testing.T) {
		h, hub, _ := commandFixture(t)
		if err := h.StoreProfile(context.Background(), weekday, StoreUpdate); err != nil {
			t.Fatalf("StoreProfile: %v", err)
		}
		if len(hub.calls) != 1 || hub.calls[0] != "STORE_PROFILE" {
			t.Errorf("hub calls = %v, want [STORE_PROFILE]", hub.calls)
		}
	})

	t.Run("timer names live in their own table", func(t *testing.T) {
		h, _, _ := commandFixture(t)
		timer := ProfileDefinition{
			Name:  "Weekday",
			Timer: true,
			Days: map[neohub.Weekday]neohub.ProfileDay{
				neohub.Monday: {Timer: []neohub.TimerLevel{{TimeOn: "06:30", TimeOff: "08:00"}}},
			},
		}
		// "Weekday" exists as a heating profile only, so a timer create
		// is allowed.
		if err := h.StoreProfile(context.Background(), timer, StoreCreate); err != nil {
			t.Fatalf("StoreProfile: %v", err)
		}
	})

	t.Run("unknown mode rejected", func(t *testing.T) {
		h, _, _ := commandFixture(t)
		err := h.StoreProfile(context.Background(), fresh, StoreMode("replace"))
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("got %v, want ErrInvalidArgument", err)
		}
	})
}

func TestSetCoolTemperature(t *testing.T) {
	h, hub, coord := commandFixture(t)

	if err := h.SetCoolTemperature(context.Background(), "AirCon", 23); err != nil {
		t.Fatalf("SetCoolTemperature: %v", err)
	}
	if len(hub.calls) != 1 || hub.calls[0] != "SET_COOL_TEMP" {
		t.Errorf("hub calls = %v, want [SET_COOL_TEMP]", hub.calls)
	}
	if got := coord.Snapshot().Devices["AirCon"].CoolTemp; got != 23 {
		t.Errorf("optimistic cool temp = %v, want 23", got)
	}

	if err := h.SetCoolTemperature(context.Background(), "Lounge", 23); !errors.Is(err, ErrUnsupported) {
		t.Errorf("heat-only unit: got %v, want ErrUnsupported", err)
	}
	if err := h.SetCoolTemperature(context.Background(), "AirCon", 40); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("out of range: got %v, want ErrInvalidArgument", err)
	}
}

func TestSetTemperatureRoutesToCoolInCoolingMode(t *testing.T) {
	h, hub, coord := commandFixture(t)

	if err := h.SetHVACMode(context.Background(), "AirCon", HVACCool); err != nil {
		t.Fatalf("SetHVACMode: %v", err)
	}
	hub.calls = nil

	if err := h.SetTargetTemperature(context.Background(), "AirCon", 24); err != nil {
		t.Fatalf("SetTargetTemperature: %v", err)
	}
	if len(hub.calls) != 1 || hub.calls[0] != "SET_COOL_TEMP" {
		t.Errorf("hub calls = %v, want [SET_COOL_TEMP]", hub.calls)
	}
	dev := coord.Snapshot().Devices["AirCon"]
	if dev.CoolTemp != 24 {
		t.Errorf("cool temp = %v, want 24", dev.CoolTemp)
	}

	// The heating set point stays where the hub last reported it.
	if dev.TargetTemperature != 0 {
		t.Errorf("heating target = %v, want untouched 0", dev.TargetTemperature)
	}
}

func TestFriendlyProfiles(t *testing.T) {
	h, _, _ := commandFixture(t)

	friendly := h.FriendlyProfiles()
	if len(friendly) != 1 {
		t.Fatalf("friendly profiles = %d, want 1", len(friendly))
	}
	fp := friendly[0]
	if fp.Name != "Weekday" || fp.Timer {
		t.Errorf("profile = %+v, want heating profile Weekday", fp)
	}
	lines := fp.Days["monday"]
	if len(lines) != 2 || lines[0] != "06:30 19.0C" || lines[1] != "22:00 16.0C" {
		t.Errorf("monday lines = %v", lines)
	}
}

func TestDispatch(t *testing.T) {
	h, hub, _ := commandFixture(t)

	res, err := h.Dispatch(context.Background(), Request{
		Device: "Lounge",
		Action: "set_temperature",
		Args:   map[string]any{"temperature": 21.0},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !res.Success || res.ID == "" {
		t.Errorf("result = %+v, want success with an assigned id", res)
	}
	if len(hub.calls) != 1 || hub.calls[0] != "SET_TEMP" {
		t.Errorf("hub calls = %v, want [SET_TEMP]", hub.calls)
	}

	res, err = h.Dispatch(context.Background(), Request{ID: "req-1", Action: "launch"})
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("got %v, want ErrUnknownAction", err)
	}
	if res.Success || res.ID != "req-1" || res.Error == "" {
		t.Errorf("result = %+v, want a correlated failure", res)
	}

	_, err = h.Dispatch(context.Background(), Request{
		Device: "Lounge",
		Action: "set_temperature",
		Args:   map[string]any{},
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("missing argument: got %v, want ErrInvalidArgument", err)
	}
}
