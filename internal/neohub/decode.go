package neohub

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// timeLength is the length of a zero-padded HH:MM string.
const timeLength = 5

// PadTime zero-pads an HH:MM string to five characters ("9:30" -> "09:30").
// Hub firmware drops the leading zero for single-digit hours; comparisons
// elsewhere rely on the padded form sorting lexicographically.
func PadTime(s string) string {
	if len(s) == timeLength-1 {
		return "0" + s
	}
	return s
}

// flexFloat decodes a JSON number that some firmware versions send as a
// quoted string ("21.5") and others as a bare number.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parsing number %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

// rawDevice mirrors one entry of the hub's device array.
type rawDevice struct {
	ZoneName     string `json:"ZONE_NAME"`
	DeviceID     int    `json:"DEVICE_ID"`
	DeviceType   int    `json:"DEVICE_TYPE"`
	SerialNumber string `json:"SERIAL_NUMBER"`

	Offline   bool `json:"OFFLINE"`
	Standby   bool `json:"STANDBY"`
	Away      bool `json:"AWAY"`
	Holiday   bool `json:"HOLIDAY"`
	TimerOn   bool `json:"TIMER_ON"`
	ManualOff bool `json:"MANUAL_OFF"`

	HoldOn   bool      `json:"HOLD_ON"`
	HoldTime string    `json:"HOLD_TIME"`
	HoldTemp flexFloat `json:"HOLD_TEMP"`
	HoldCool flexFloat `json:"HOLD_COOL"`

	ActualTemp flexFloat `json:"ACTUAL_TEMP"`
	FloorTemp  flexFloat `json:"CURRENT_FLOOR_TEMPERATURE"`
	SetTemp    flexFloat `json:"SET_TEMP"`
	CoolTemp   flexFloat `json:"COOL_TEMP"`
	FrostTemp  flexFloat `json:"FROST_TEMP"`

	HeatOn        bool `json:"HEAT_ON"`
	CoolOn        bool `json:"COOL_ON"`
	PreheatActive bool `json:"PREHEAT_ACTIVE"`
	LowBattery    bool `json:"LOW_BATTERY"`

	FanSpeed   string `json:"FAN_SPEED"`
	FanControl string `json:"FAN_CONTROL"`
	HCMode     string `json:"HC_MODE"`

	ActiveProfile int    `json:"ACTIVE_PROFILE"`
	TimeClockMode bool   `json:"TIME_CLOCK_MODE"`
	Weekday       string `json:"WEEKDAY"`
	Time          string `json:"TIME"`

	Lock        bool            `json:"LOCK"`
	PinNumber   json.RawMessage `json:"PIN_NUMBER"`
	OutputDelay int             `json:"OUTPUT_DELAY"`
	FloorLimit  flexFloat       `json:"ENG_FLOOR_LIMIT"`
}

// rawSystem mirrors the hub's system settings block.
type rawSystem struct {
	CORF             string          `json:"CORF"`
	Format           int             `json:"FORMAT"`
	AltTimerFormat   int             `json:"ALT_TIMER_FORMAT"`
	GlobalSystemType string          `json:"GLOBAL_SYSTEM_TYPE"`
	HeatingLevels    int             `json:"HEATING_LEVELS"`
	DSTOn            bool            `json:"DST_ON"`
	DSTAuto          bool            `json:"DST_AUTO"`
	TimeZone         flexFloat       `json:"TIME_ZONE"`
	HubType          int             `json:"HUB_TYPE"`
	HubVersion       json.RawMessage `json:"HUB_VERSION"`
}

// rawLive mirrors the hub's transient flags.
type rawLive struct {
	HubAway    bool  `json:"HUB_AWAY"`
	HubHoliday bool  `json:"HUB_HOLIDAY"`
	HolidayEnd int64 `json:"HOLIDAY_END"`
}

// rawAllData is the shape of a GET_ALL_DATA response.
type rawAllData struct {
	Devices        []rawDevice                `json:"devices"`
	System         json.RawMessage            `json:"system"`
	Live           *rawLive                   `json:"live"`
	Profiles       map[string]json.RawMessage `json:"profiles"`
	Profiles0      map[string]json.RawMessage `json:"profiles_0"`
	TimerProfiles  map[string]json.RawMessage `json:"timer_profiles"`
	TimerProfiles0 map[string]json.RawMessage `json:"timer_profiles_0"`
}

// rawProfile mirrors one profile definition. Info maps schedule-day-keys to
// slot maps; each slot is [time, temperature] for heating profiles or
// [time_on, time_off] for timer profiles, with an optional third element
// marking a deliberately cold heating level.
type rawProfile struct {
	Name  string                                `json:"name"`
	Error bool                                  `json:"error"`
	Info  map[string]map[string]json.RawMessage `json:"info"`
}

// decodeAllData converts a raw GET_ALL_DATA payload into a Snapshot.
// The returned warnings describe non-fatal oddities (duplicate zone names,
// undecodable profile slots) the caller should log.
func decodeAllData(payload []byte) (*Snapshot, []string, error) {
	var raw rawAllData
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	var warnings []string

	devices := make(map[string]*DeviceState, len(raw.Devices))
	for i := range raw.Devices {
		dev := decodeDevice(&raw.Devices[i])
		if _, dup := devices[dev.Name]; dup {
			// Names must be unique within one hub; the later entry
			// shadows the earlier one (documented caveat).
			warnings = append(warnings, fmt.Sprintf("duplicate zone name %q, keeping later entry", dev.Name))
		}
		devices[dev.Name] = dev
	}

	snap := &Snapshot{
		Devices: devices,
		Live:    &LiveFlags{},
	}

	if len(raw.System) > 0 && string(raw.System) != "null" {
		system, err := decodeSystem(raw.System)
		if err != nil {
			return nil, warnings, err
		}
		snap.System = system
	}

	if raw.Live != nil {
		snap.Live = &LiveFlags{
			AwayActive:    raw.Live.HubAway,
			HolidayActive: raw.Live.HubHoliday,
		}
		if raw.Live.HolidayEnd > 0 {
			snap.Live.HolidayEnd = time.Unix(raw.Live.HolidayEnd, 0).UTC()
		}
	}

	var err error
	if snap.Profiles, warnings, err = decodeProfileTable(raw.Profiles, false, warnings); err != nil {
		return nil, warnings, err
	}
	if snap.Profiles0, warnings, err = decodeProfileTable(raw.Profiles0, false, warnings); err != nil {
		return nil, warnings, err
	}
	if snap.TimerProfiles, warnings, err = decodeProfileTable(raw.TimerProfiles, true, warnings); err != nil {
		return nil, warnings, err
	}
	if snap.TimerProfiles0, warnings, err = decodeProfileTable(raw.TimerProfiles0, true, warnings); err != nil {
		return nil, warnings, err
	}

	return snap, warnings, nil
}

// decodeDevice converts one raw device entry to a DeviceState.
func decodeDevice(raw *rawDevice) *DeviceState {
	fanControl := FanControlAutomatic
	if raw.FanControl == string(FanControlManual) {
		fanControl = FanControlManual
	}

	return &DeviceState{
		Name:               raw.ZoneName,
		DeviceID:           raw.DeviceID,
		DeviceType:         raw.DeviceType,
		SerialNumber:       raw.SerialNumber,
		Online:             !raw.Offline,
		Standby:            raw.Standby,
		Away:               raw.Away,
		Holiday:            raw.Holiday,
		TimerOn:            raw.TimerOn,
		ManualOff:          raw.ManualOff,
		HoldOn:             raw.HoldOn,
		HoldTime:           parseHoldTime(raw.HoldTime),
		HoldTemp:           float64(raw.HoldTemp),
		HoldCool:           float64(raw.HoldCool),
		CurrentTemperature: float64(raw.ActualTemp),
		FloorTemperature:   float64(raw.FloorTemp),
		TargetTemperature:  float64(raw.SetTemp),
		CoolTemp:           float64(raw.CoolTemp),
		FrostTemp:          float64(raw.FrostTemp),
		HeatOn:             raw.HeatOn,
		CoolOn:             raw.CoolOn,
		PreheatActive:      raw.PreheatActive,
		LowBattery:         raw.LowBattery,
		FanSpeed:           raw.FanSpeed,
		FanControlMode:     fanControl,
		HCModeState:        HCMode(raw.HCMode),
		ActiveProfile:      raw.ActiveProfile,
		TimeClockMode:      raw.TimeClockMode,
		Weekday:            Weekday(strings.ToLower(raw.Weekday)),
		LocalTime:          PadTime(raw.Time),
		LockState:          raw.Lock,
		PinNumber:          decodePIN(raw.PinNumber),
		OutputDelay:        raw.OutputDelay,
		FloorLimit:         float64(raw.FloorLimit),
	}
}

// decodePIN normalises the PIN field, which firmware sends either as a
// number or a string.
func decodePIN(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	return strings.Trim(string(raw), `"`)
}

// parseHoldTime converts the hub's "H:MM" remaining-hold encoding to a
// duration. Malformed values decode to zero rather than failing the poll.
func parseHoldTime(s string) time.Duration {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0
	}
	hours, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0
	}
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
}

// decodeSystem converts the raw system block to SystemSettings.
func decodeSystem(payload []byte) (*SystemSettings, error) {
	var raw rawSystem
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: system settings: %w", ErrMalformedResponse, err)
	}

	unit := "C"
	if strings.EqualFold(raw.CORF, "F") {
		unit = "F"
	}

	globalType := GlobalSystemType(raw.GlobalSystemType)
	if globalType == "" {
		globalType = SystemHeatOnly
	}

	levels := raw.HeatingLevels
	if levels != 4 && levels != 6 {
		levels = 4
	}

	return &SystemSettings{
		TemperatureUnit:     unit,
		GlobalType:          globalType,
		Format:              decodeFormat(raw.Format),
		AltTimerFormat:      decodeFormat(raw.AltTimerFormat),
		HeatingLevelsPerDay: levels,
		DSTEnabled:          raw.DSTOn,
		DSTAuto:             raw.DSTAuto,
		TimezoneOffset:      float64(raw.TimeZone),
		HubType:             raw.HubType,
		HubVersion:          strings.Trim(string(raw.HubVersion), `"`),
	}, nil
}

// decodeFormat maps the hub's raw format value onto a ScheduleFormat.
// Legacy firmware reports 7-day mode as 4.
func decodeFormat(raw int) ScheduleFormat {
	switch raw {
	case 0:
		return FormatZero
	case 1:
		return FormatOne
	case 2:
		return FormatTwo
	default:
		return FormatSeven
	}
}

// decodeProfileTable converts a map of id -> raw profile definitions.
func decodeProfileTable(raw map[string]json.RawMessage, timer bool, warnings []string) (map[int]*Profile, []string, error) {
	out := make(map[int]*Profile, len(raw))
	for key, payload := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping profile with non-numeric id %q", key))
			continue
		}
		profile, w := decodeProfile(id, timer, payload)
		warnings = append(warnings, w...)
		out[id] = profile
	}
	return out, warnings, nil
}

// decodeProfile converts one raw profile definition. Undecodable profiles
// are kept with Invalid set so lookups can treat them as absent without
// failing the whole poll.
func decodeProfile(id int, timer bool, payload []byte) (*Profile, []string) {
	var raw rawProfile
	if err := json.Unmarshal(payload, &raw); err != nil {
		return &Profile{ID: id, Timer: timer, Invalid: true}, []string{
			fmt.Sprintf("profile %d: undecodable definition", id),
		}
	}

	profile := &Profile{
		ID:      id,
		Name:    raw.Name,
		Timer:   timer,
		Invalid: raw.Error,
		Days:    make(map[Weekday]ProfileDay, len(raw.Info)),
	}

	var warnings []string
	for dayKey, slots := range raw.Info {
		day, w := decodeProfileDay(id, timer, slots)
		warnings = append(warnings, w...)
		profile.Days[Weekday(strings.ToLower(dayKey))] = day
	}
	return profile, warnings
}

// decodeProfileDay converts one day's slot map into sorted levels.
func decodeProfileDay(id int, timer bool, slots map[string]json.RawMessage) (ProfileDay, []string) {
	var day ProfileDay
	var warnings []string

	for slot, payload := range slots {
		var fields []json.RawMessage
		if err := json.Unmarshal(payload, &fields); err != nil || len(fields) < 2 {
			warnings = append(warnings, fmt.Sprintf("profile %d: slot %q undecodable", id, slot))
			continue
		}

		timeOn := PadTime(strings.Trim(string(fields[0]), `"`))
		if timer {
			day.Timer = append(day.Timer, TimerLevel{
				TimeOn:  timeOn,
				TimeOff: PadTime(strings.Trim(string(fields[1]), `"`)),
			})
			continue
		}

		var temp flexFloat
		if err := temp.UnmarshalJSON(fields[1]); err != nil {
			warnings = append(warnings, fmt.Sprintf("profile %d: slot %q has non-numeric temperature", id, slot))
			continue
		}
		level := HeatingLevel{Time: timeOn, Temperature: float64(temp)}
		if len(fields) > 2 {
			level.Cold = string(fields[2]) == "true"
		}
		day.Heating = append(day.Heating, level)
	}

	sort.Slice(day.Heating, func(i, j int) bool { return day.Heating[i].Time < day.Heating[j].Time })
	sort.Slice(day.Timer, func(i, j int) bool { return day.Timer[i].TimeOn < day.Timer[j].TimeOn })
	return day, warnings
}
