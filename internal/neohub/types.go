package neohub

import "time"

// ScheduleFormat encodes how many distinct weekday schedules the hub supports.
type ScheduleFormat int

// Schedule format constants.
//
// Older hub firmware reports 7-day mode as raw value 4; the decoder folds
// both encodings onto FormatSeven.
const (
	// FormatZero means no programmable schedule exists.
	FormatZero ScheduleFormat = 0

	// FormatOne is a single universal schedule applied to every day.
	FormatOne ScheduleFormat = 1

	// FormatTwo is a weekday/weekend split (monday and sunday keys).
	FormatTwo ScheduleFormat = 2

	// FormatSeven gives every weekday its own schedule.
	FormatSeven ScheduleFormat = 7
)

// String returns a human-readable format name.
func (f ScheduleFormat) String() string {
	switch f {
	case FormatZero:
		return "non_programmable"
	case FormatOne:
		return "24hr"
	case FormatTwo:
		return "5day_2day"
	case FormatSeven:
		return "7day"
	default:
		return "unknown"
	}
}

// Weekday is a schedule day key as the hub reports it.
type Weekday string

// Weekday constants, in hub order (week starts on Sunday).
const (
	Sunday    Weekday = "sunday"
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
)

// AllWeekdays returns the seven weekday keys in hub order.
func AllWeekdays() []Weekday {
	return []Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}
}

// Next returns the calendar day after d.
func (d Weekday) Next() Weekday {
	days := AllWeekdays()
	for i, day := range days {
		if day == d {
			return days[(i+1)%len(days)]
		}
	}
	return Monday
}

// Previous returns the calendar day before d.
func (d Weekday) Previous() Weekday {
	days := AllWeekdays()
	for i, day := range days {
		if day == d {
			return days[(i+len(days)-1)%len(days)]
		}
	}
	return Sunday
}

// FanControl is the fan regulation mode on HC devices.
type FanControl string

// Fan control constants.
const (
	FanControlManual    FanControl = "Manual"
	FanControlAutomatic FanControl = "Automatic"
)

// GlobalSystemType describes the hub-wide heating/cooling capability.
type GlobalSystemType string

// Global system type constants.
const (
	SystemHeatOnly    GlobalSystemType = "HeatOnly"
	SystemCoolOnly    GlobalSystemType = "CoolOnly"
	SystemHeatOrCool  GlobalSystemType = "HeatOrCool"
	SystemIndependent GlobalSystemType = "Independent"
)

// HCMode is the per-device heat/cool operating mode.
type HCMode string

// HC mode constants.
const (
	HCModeHeating HCMode = "HEATING"
	HCModeCooling HCMode = "COOLING"
	HCModeAuto    HCMode = "AUTO"
	HCModeVent    HCMode = "VENT"
)

// DeviceState is one physical thermostat, timer, plug, sensor or repeater as
// reported by the hub. A fresh set is produced on every poll; command
// handlers publish optimistic copies between polls and the next poll
// overwrites them with authoritative values.
type DeviceState struct {
	Name         string `json:"name"`
	DeviceID     int    `json:"device_id"`
	DeviceType   int    `json:"device_type"`
	SerialNumber string `json:"serial_number"`

	Online    bool `json:"online"`
	Standby   bool `json:"standby"`
	Away      bool `json:"away"`
	Holiday   bool `json:"holiday"`
	TimerOn   bool `json:"timer_on"`
	ManualOff bool `json:"manual_off"`

	HoldOn   bool          `json:"hold_on"`
	HoldTime time.Duration `json:"hold_time"`
	HoldTemp float64       `json:"hold_temp"`
	HoldCool float64       `json:"hold_cool"`

	CurrentTemperature float64 `json:"current_temperature"`
	FloorTemperature   float64 `json:"floor_temperature"`
	TargetTemperature  float64 `json:"target_temperature"`
	CoolTemp           float64 `json:"cool_temp"`
	FrostTemp          float64 `json:"frost_temp"`

	HeatOn        bool `json:"heat_on"`
	CoolOn        bool `json:"cool_on"`
	PreheatActive bool `json:"preheat_active"`
	LowBattery    bool `json:"low_battery"`

	FanSpeed       string     `json:"fan_speed"`
	FanControlMode FanControl `json:"fan_control_mode"`
	HCModeState    HCMode     `json:"hc_mode"`

	// ActiveProfile is the id of the profile the device follows.
	// 0 means the built-in per-device profile.
	ActiveProfile int `json:"active_profile"`

	// TimeClockMode is true for devices running as timers rather than
	// thermostats (plugs, timeclocks).
	TimeClockMode bool `json:"time_clock_mode"`

	// Weekday and LocalTime reflect the hub clock for this device.
	// LocalTime is always zero-padded HH:MM after decoding.
	Weekday   Weekday `json:"weekday"`
	LocalTime string  `json:"local_time"`

	LockState bool   `json:"lock_state"`
	PinNumber string `json:"pin_number"`

	OutputDelay int     `json:"output_delay"`
	FloorLimit  float64 `json:"floor_limit"`
}

// SystemSettings is hub-wide configuration.
type SystemSettings struct {
	TemperatureUnit     string           `json:"temperature_unit"` // "C" or "F"
	GlobalType          GlobalSystemType `json:"global_system_type"`
	Format              ScheduleFormat   `json:"schedule_format"`
	AltTimerFormat      ScheduleFormat   `json:"alt_timer_format"`
	HeatingLevelsPerDay int              `json:"heating_levels_per_day"` // 4 or 6
	DSTEnabled          bool             `json:"dst_enabled"`
	DSTAuto             bool             `json:"dst_auto"`
	TimezoneOffset      float64          `json:"timezone_offset_hours"`
	HubType             int              `json:"hub_type"`
	HubVersion          string           `json:"hub_version"`
}

// LiveFlags is hub-wide transient state.
type LiveFlags struct {
	AwayActive    bool      `json:"away_active"`
	HolidayActive bool      `json:"holiday_active"`
	HolidayEnd    time.Time `json:"holiday_end"`
}

// HeatingLevel is one scheduled heating event within a day.
// Cold marks temperatures below the usable range as deliberate rather than
// unset slots.
type HeatingLevel struct {
	Time        string  `json:"time"`
	Temperature float64 `json:"temperature"`
	Cold        bool    `json:"cold,omitempty"`
}

// TimerLevel is one scheduled on/off pair within a day.
type TimerLevel struct {
	TimeOn  string `json:"time_on"`
	TimeOff string `json:"time_off"`
}

// ProfileDay holds the levels for one schedule-day-key. Exactly one of the
// two slices is populated depending on the profile kind.
type ProfileDay struct {
	Heating []HeatingLevel `json:"heating,omitempty"`
	Timer   []TimerLevel   `json:"timer,omitempty"`
}

// Profile is a named weekly (or folded-weekly) schedule. Profile 0 entries
// are per-device built-in schedules keyed by device id rather than name.
type Profile struct {
	ID    int                    `json:"id"`
	Name  string                 `json:"name"`
	Timer bool                   `json:"timer"`
	Days  map[Weekday]ProfileDay `json:"days"`

	// Invalid marks profiles the hub returned with an error marker.
	// Schedule lookups treat these as absent.
	Invalid bool `json:"invalid,omitempty"`
}

// Snapshot is the atomic unit one poll produces: everything the hub knows,
// decoded. Once published by the state coordinator a snapshot is immutable;
// a concurrent poll or optimistic update swaps in a fresh one, so holders
// of an old pointer simply see stale data.
type Snapshot struct {
	Devices        map[string]*DeviceState `json:"devices"`
	System         *SystemSettings         `json:"system"`
	Live           *LiveFlags              `json:"live"`
	Profiles       map[int]*Profile        `json:"profiles"`
	Profiles0      map[int]*Profile        `json:"profiles_0"`
	TimerProfiles  map[int]*Profile        `json:"timer_profiles"`
	TimerProfiles0 map[int]*Profile        `json:"timer_profiles_0"`
}

// Device type id sets, per the vendor's product code table.
var (
	thermostatTypes = map[int]bool{1: true, 2: true, 7: true, 8: true, 9: true, 11: true, 12: true, 13: true, 15: true, 17: true}
	timerTypes      = map[int]bool{1: true, 2: true, 6: true, 7: true, 8: true, 9: true, 11: true, 12: true, 13: true, 15: true, 17: true}
	plugTypes       = map[int]bool{6: true}
	hcTypes         = map[int]bool{8: true, 11: true}
	repeaterTypes   = map[int]bool{10: true}
)

// IsThermostat reports whether the product code is a thermostat.
func IsThermostat(deviceType int) bool { return thermostatTypes[deviceType] }

// IsTimerCapable reports whether the product code can run in timer mode.
func IsTimerCapable(deviceType int) bool { return timerTypes[deviceType] }

// IsPlug reports whether the product code is a smart plug.
func IsPlug(deviceType int) bool { return plugTypes[deviceType] }

// IsHC reports whether the product code is a heat/cool unit.
func IsHC(deviceType int) bool { return hcTypes[deviceType] }

// IsRepeater reports whether the product code is a mesh repeater.
func IsRepeater(deviceType int) bool { return repeaterTypes[deviceType] }

// SupportsAway reports whether hub-wide away/holiday state applies to the
// device. Repeaters and sensors sit outside away handling.
func SupportsAway(deviceType int) bool {
	return thermostatTypes[deviceType] || timerTypes[deviceType]
}

// SupportsStandby reports whether the device has a standby (frost) mode.
// Plugs are excluded; they use manual off instead.
func SupportsStandby(deviceType int) bool {
	return SupportsAway(deviceType) && !plugTypes[deviceType]
}

// SupportsHold reports whether the device accepts hold overrides.
func SupportsHold(deviceType int) bool {
	return thermostatTypes[deviceType] || timerTypes[deviceType]
}

// SupportsIdentify reports whether the device can flash its display.
func SupportsIdentify(deviceType int) bool {
	return SupportsAway(deviceType) && !plugTypes[deviceType]
}
