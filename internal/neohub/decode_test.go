package neohub

import (
	"errors"
	"testing"
	"time"
)

func TestPadTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"9:30", "09:30"},
		{"09:30", "09:30"},
		{"24:00", "24:00"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := PadTime(tt.in); got != tt.want {
			t.Errorf("PadTime(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseHoldTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"1:30", 90 * time.Minute},
		{"0:00", 0},
		{"2:05", 2*time.Hour + 5*time.Minute},
		{"garbage", 0},
		{"", 0},
		{"x:y", 0},
	}

	for _, tt := range tests {
		if got := parseHoldTime(tt.in); got != tt.want {
			t.Errorf("parseHoldTime(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDecodeFormat(t *testing.T) {
	tests := []struct {
		raw  int
		want ScheduleFormat
	}{
		{0, FormatZero},
		{1, FormatOne},
		{2, FormatTwo},
		{4, FormatSeven}, // legacy firmware reports 7-day mode as 4
		{7, FormatSeven},
	}

	for _, tt := range tests {
		if got := decodeFormat(tt.raw); got != tt.want {
			t.Errorf("decodeFormat(%d) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestDecodeAllData(t *testing.T) {
	payload := []byte(`{
		"devices": [
			{
				"ZONE_NAME": "Lounge",
				"DEVICE_ID": 1,
				"DEVICE_TYPE": 12,
				"OFFLINE": false,
				"ACTUAL_TEMP": "19.5",
				"SET_TEMP": 21.0,
				"CURRENT_FLOOR_TEMPERATURE": "22.1",
				"HEAT_ON": true,
				"HOLD_ON": true,
				"HOLD_TIME": "1:30",
				"HOLD_TEMP": 23,
				"ACTIVE_PROFILE": 3,
				"WEEKDAY": "Monday",
				"TIME": "9:05",
				"PIN_NUMBER": 1234
			},
			{
				"ZONE_NAME": "Porch",
				"DEVICE_ID": 2,
				"DEVICE_TYPE": 6,
				"OFFLINE": true,
				"TIMER_ON": true
			}
		],
		"system": {
			"CORF": "C",
			"FORMAT": 4,
			"ALT_TIMER_FORMAT": 1,
			"GLOBAL_SYSTEM_TYPE": "HeatOnly",
			"HEATING_LEVELS": 6,
			"TIME_ZONE": "0.0",
			"HUB_VERSION": 2134
		},
		"live": {"HUB_AWAY": true, "HUB_HOLIDAY": false, "HOLIDAY_END": 0},
		"profiles": {
			"3": {
				"name": "Weekday",
				"info": {
					"monday": {
						"wake": ["7:00", "21.0"],
						"leave": ["8:30", 16.0, true],
						"sleep": ["22:00", 18.0]
					}
				}
			}
		},
		"timer_profiles": {
			"7": {
				"name": "Towel Rail",
				"info": {
					"monday": {
						"time1": ["6:30", "7:30"]
					}
				}
			}
		}
	}`)

	snap, warnings, err := decodeAllData(payload)
	if err != nil {
		t.Fatalf("decodeAllData() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}

	lounge := snap.Devices["Lounge"]
	if lounge == nil {
		t.Fatal("Lounge missing from snapshot")
	}
	if !lounge.Online {
		t.Error("Lounge should be online (OFFLINE=false)")
	}
	if lounge.CurrentTemperature != 19.5 {
		t.Errorf("CurrentTemperature = %v, want 19.5 (quoted number)", lounge.CurrentTemperature)
	}
	if lounge.FloorTemperature != 22.1 {
		t.Errorf("FloorTemperature = %v, want 22.1", lounge.FloorTemperature)
	}
	if lounge.HoldTime != 90*time.Minute {
		t.Errorf("HoldTime = %v, want 90m", lounge.HoldTime)
	}
	if lounge.LocalTime != "09:05" {
		t.Errorf("LocalTime = %q, want zero-padded 09:05", lounge.LocalTime)
	}
	if lounge.Weekday != Monday {
		t.Errorf("Weekday = %q, want monday", lounge.Weekday)
	}
	if lounge.PinNumber != "1234" {
		t.Errorf("PinNumber = %q, want 1234 (numeric form)", lounge.PinNumber)
	}

	porch := snap.Devices["Porch"]
	if porch == nil {
		t.Fatal("Porch missing from snapshot")
	}
	if porch.Online {
		t.Error("Porch should be offline")
	}

	if snap.System == nil {
		t.Fatal("system settings missing")
	}
	if snap.System.Format != FormatSeven {
		t.Errorf("Format = %v, want FormatSeven (raw 4)", snap.System.Format)
	}
	if snap.System.AltTimerFormat != FormatOne {
		t.Errorf("AltTimerFormat = %v, want FormatOne", snap.System.AltTimerFormat)
	}
	if snap.System.HeatingLevelsPerDay != 6 {
		t.Errorf("HeatingLevelsPerDay = %d, want 6", snap.System.HeatingLevelsPerDay)
	}
	if snap.System.HubVersion != "2134" {
		t.Errorf("HubVersion = %q, want 2134", snap.System.HubVersion)
	}

	if !snap.Live.AwayActive || snap.Live.HolidayActive {
		t.Errorf("live flags = %+v, want away only", snap.Live)
	}

	profile := snap.Profiles[3]
	if profile == nil {
		t.Fatal("profile 3 missing")
	}
	day := profile.Days[Monday]
	if len(day.Heating) != 3 {
		t.Fatalf("heating levels = %d, want 3", len(day.Heating))
	}
	// Levels are sorted by padded time, so 07:00 comes first.
	if day.Heating[0].Time != "07:00" || day.Heating[0].Temperature != 21.0 {
		t.Errorf("first level = %+v", day.Heating[0])
	}
	if !day.Heating[1].Cold {
		t.Error("08:30 level should carry the deliberate-cold marker")
	}

	timer := snap.TimerProfiles[7]
	if timer == nil || !timer.Timer {
		t.Fatalf("timer profile 7 = %+v", timer)
	}
	levels := timer.Days[Monday].Timer
	if len(levels) != 1 || levels[0].TimeOn != "06:30" || levels[0].TimeOff != "07:30" {
		t.Errorf("timer levels = %+v", levels)
	}
}

func TestDecodeAllDataDuplicateZone(t *testing.T) {
	payload := []byte(`{
		"devices": [
			{"ZONE_NAME": "Hall", "DEVICE_ID": 1, "DEVICE_TYPE": 12, "SET_TEMP": 18.0},
			{"ZONE_NAME": "Hall", "DEVICE_ID": 2, "DEVICE_TYPE": 12, "SET_TEMP": 20.0}
		]
	}`)

	snap, warnings, err := decodeAllData(payload)
	if err != nil {
		t.Fatalf("decodeAllData() error = %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want one duplicate warning", warnings)
	}
	if snap.Devices["Hall"].TargetTemperature != 20.0 {
		t.Errorf("later entry should win, got target %v", snap.Devices["Hall"].TargetTemperature)
	}
}

func TestDecodeAllDataMalformed(t *testing.T) {
	_, _, err := decodeAllData([]byte(`not json`))
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("error = %v, want ErrMalformedResponse", err)
	}
}

func TestDecodeProfileTableOddities(t *testing.T) {
	payload := []byte(`{
		"profiles": {
			"abc": {"name": "skipped"},
			"5": "not an object"
		}
	}`)

	snap, warnings, err := decodeAllData(payload)
	if err != nil {
		t.Fatalf("decodeAllData() error = %v", err)
	}
	if len(warnings) != 2 {
		t.Fatalf("warnings = %v, want non-numeric id + undecodable definition", warnings)
	}
	profile := snap.Profiles[5]
	if profile == nil || !profile.Invalid {
		t.Errorf("profile 5 = %+v, want kept with Invalid set", profile)
	}
}

func TestDecodeSystemDefaults(t *testing.T) {
	system, err := decodeSystem([]byte(`{"CORF": "F", "FORMAT": 1, "HEATING_LEVELS": 5}`))
	if err != nil {
		t.Fatalf("decodeSystem() error = %v", err)
	}
	if system.TemperatureUnit != "F" {
		t.Errorf("unit = %q, want F", system.TemperatureUnit)
	}
	if system.GlobalType != SystemHeatOnly {
		t.Errorf("global type = %q, want default heat-only", system.GlobalType)
	}
	if system.HeatingLevelsPerDay != 4 {
		t.Errorf("levels = %d, want clamp to 4", system.HeatingLevelsPerDay)
	}
}
