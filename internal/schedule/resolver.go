package schedule

import (
	"sort"

	"github.com/nerrad567/gray-logic-heatbridge/internal/neohub"
)

// Level filtering constants.
const (
	// sentinelTime marks an unused schedule slot. Any time at or beyond
	// it is treated as unset; hub payloads are not guaranteed to contain
	// parseable times on all firmware versions.
	sentinelTime = "24:00"

	// minUsableTemp is the lowest temperature a heating level can carry
	// before it is treated as an unset slot, unless the level is marked
	// deliberately cold.
	minUsableTemp = 5.0
)

// Event is one resolved schedule boundary: a time plus either a target
// temperature (heating profiles) or an output state (timer profiles).
type Event struct {
	// Time is the zero-padded HH:MM boundary time.
	Time string `json:"time"`

	// Temperature is the target for heating events.
	Temperature float64 `json:"temperature,omitempty"`

	// On is the output state a timer event switches to.
	On bool `json:"on,omitempty"`

	// Timer distinguishes timer events from heating events.
	Timer bool `json:"timer,omitempty"`
}

// FoldDay maps a weekday onto the schedule-day-key for the given format:
//
//   - FormatOne: every day folds to sunday (single universal schedule)
//   - FormatTwo: saturday/sunday fold to sunday, all others to monday
//   - FormatSeven and anything else: identity
//
// Folding is idempotent: folding an already-folded key returns it unchanged.
func FoldDay(day neohub.Weekday, format neohub.ScheduleFormat) neohub.Weekday {
	switch format {
	case neohub.FormatOne:
		return neohub.Sunday
	case neohub.FormatTwo:
		if day == neohub.Saturday || day == neohub.Sunday {
			return neohub.Sunday
		}
		return neohub.Monday
	default:
		return day
	}
}

// CurrentLevel resolves the schedule level active at the device's current
// local time. The boolean is false when the device has no schedule
// configured anywhere in the fallback chain.
func CurrentLevel(profileID int, dev *neohub.DeviceState, snap *neohub.Snapshot) (Event, bool) {
	return Resolve(profileID, dev, snap, false)
}

// NextLevel resolves the next upcoming schedule level after the device's
// current local time.
func NextLevel(profileID int, dev *neohub.DeviceState, snap *neohub.Snapshot) (Event, bool) {
	return Resolve(profileID, dev, snap, true)
}

// Resolve looks up the active (wantNext false) or next upcoming (wantNext
// true) schedule level for the device.
//
// Timer devices follow timer profiles, all others heating profiles.
// Profile id 0 selects the device's built-in schedule. When the hub-wide
// format is zero, heating lookups short-circuit to "no schedule" while
// timer lookups substitute the alternative timer format.
func Resolve(profileID int, dev *neohub.DeviceState, snap *neohub.Snapshot, wantNext bool) (Event, bool) {
	if dev == nil || snap == nil || snap.System == nil {
		return Event{}, false
	}

	timer := dev.TimeClockMode
	format := snap.System.Format

	var profile *neohub.Profile
	if timer {
		if format == neohub.FormatZero {
			format = snap.System.AltTimerFormat
		}
		if profileID == 0 {
			profile = snap.TimerProfiles0[dev.DeviceID]
		} else {
			profile = snap.TimerProfiles[profileID]
		}
	} else {
		if format == neohub.FormatZero {
			return Event{}, false
		}
		if profileID == 0 {
			profile = snap.Profiles0[dev.DeviceID]
		} else {
			profile = snap.Profiles[profileID]
		}
	}
	if profile == nil || profile.Invalid {
		return Event{}, false
	}

	now := neohub.PadTime(dev.LocalTime)

	events := dayEvents(profile, FoldDay(dev.Weekday, format), timer)
	if wantNext {
		if ev, ok := nextEvent(now, events); ok {
			return ev, true
		}
	} else {
		if ev, ok := currentEvent(now, events); ok {
			return ev, true
		}
	}

	return fallbackEvent(profile, dev.Weekday, format, timer, now, wantNext)
}

// fallbackEvent walks adjacent days when the answer lies outside the
// current one: backwards for current-level, forwards for next-level.
// Walking moves by calendar day and folds each step, which reproduces the
// format-aware adjacency of the folded schedules. A full cycle without
// levels means no schedule exists anywhere.
func fallbackEvent(profile *neohub.Profile, weekday neohub.Weekday, format neohub.ScheduleFormat, timer bool, now string, wantNext bool) (Event, bool) {
	cursor := weekday
	for range 7 {
		if wantNext {
			cursor = cursor.Next()
		} else {
			cursor = cursor.Previous()
		}

		events := dayEvents(profile, FoldDay(cursor, format), timer)
		if len(events) == 0 {
			continue
		}

		last := events[len(events)-1]
		// A timer pair may straddle midnight, leaving its off boundary
		// last in pair order but earliest on the clock. Such a boundary
		// conceptually belongs just after midnight: step past it when it
		// has not been reached yet.
		wrapped := timer && len(events) > 1 && last.Time < events[len(events)-2].Time

		if wantNext {
			if wrapped && now < last.Time {
				return last, true
			}
			return events[0], true
		}

		if wrapped && now < last.Time {
			return events[len(events)-2], true
		}
		return last, true
	}
	return Event{}, false
}

// dayEvents returns the filtered, ordered boundary events for one
// schedule-day-key. Missing days yield an empty list.
func dayEvents(profile *neohub.Profile, day neohub.Weekday, timer bool) []Event {
	levels, ok := profile.Days[day]
	if !ok {
		return nil
	}
	if timer {
		return flattenTimerLevels(filterTimerLevels(levels.Timer))
	}
	return heatingEvents(levels.Heating)
}

// heatingEvents filters and orders heating levels. Sentinel times and
// below-range temperatures (unless deliberately cold) are unset slots.
func heatingEvents(levels []neohub.HeatingLevel) []Event {
	events := make([]Event, 0, len(levels))
	for _, lv := range levels {
		t := neohub.PadTime(lv.Time)
		if t >= sentinelTime {
			continue
		}
		if lv.Temperature < minUsableTemp && !lv.Cold {
			continue
		}
		events = append(events, Event{Time: t, Temperature: lv.Temperature})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Time < events[j].Time })
	return events
}

// filterTimerLevels drops unset and degenerate on/off pairs, sorted by
// switch-on time.
func filterTimerLevels(levels []neohub.TimerLevel) []neohub.TimerLevel {
	out := make([]neohub.TimerLevel, 0, len(levels))
	for _, lv := range levels {
		on := neohub.PadTime(lv.TimeOn)
		off := neohub.PadTime(lv.TimeOff)
		if on >= sentinelTime || on == off {
			continue
		}
		out = append(out, neohub.TimerLevel{TimeOn: on, TimeOff: off})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimeOn < out[j].TimeOn })
	return out
}

// flattenTimerLevels expands each on/off pair into two ordered boundary
// events so timer and heating schedules search identically. Pair order is
// preserved: an off time earlier than its on time signals a pair that
// straddles midnight, which the searches rely on to detect wraparound.
func flattenTimerLevels(levels []neohub.TimerLevel) []Event {
	events := make([]Event, 0, 2*len(levels))
	for _, lv := range levels {
		events = append(events, Event{Time: lv.TimeOn, On: true, Timer: true})
		if lv.TimeOff < sentinelTime {
			events = append(events, Event{Time: lv.TimeOff, On: false, Timer: true})
		}
	}
	return events
}

// currentEvent returns the last event at or before now. The boolean is
// false when now precedes the day's first event, in which case the answer
// lies on the previous folded day.
func currentEvent(now string, events []Event) (Event, bool) {
	var current Event
	found := false
	for _, ev := range events {
		if now < ev.Time {
			break
		}
		current = ev
		found = true
	}
	return current, found
}

// nextEvent returns the first event strictly after now, treating the list
// as circular within the day: an event sorting before its predecessor
// signals a boundary that wrapped past midnight and is therefore upcoming.
func nextEvent(now string, events []Event) (Event, bool) {
	previous := ""
	for _, ev := range events {
		if previous != "" && ev.Time < previous {
			return ev, true
		}
		if now < ev.Time {
			return ev, true
		}
		previous = ev.Time
	}
	return Event{}, false
}
