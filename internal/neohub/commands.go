package neohub

import (
	"context"
	"time"
)

// Device-scoped and hub-scoped command verbs. Each issues one hub call and
// returns once the hub acknowledges it; optimistic cache updates are the
// caller's responsibility and must only happen after a nil return.

// SetHold applies a temperature hold to the named zones for the given
// duration. A zero duration cancels an existing hold.
func (c *Client) SetHold(ctx context.Context, temp float64, hours, minutes int, zones []string) error {
	return c.sendChecked(ctx, map[string]any{
		"HOLD": []any{
			map[string]any{"temp": temp, "hours": hours, "minutes": minutes},
			zones,
		},
	})
}

// SetTimerHold overrides timer output for duration minutes. on selects the
// override direction; zero minutes cancels the override.
func (c *Client) SetTimerHold(ctx context.Context, on bool, minutes int, zones []string) error {
	verb := "TIMER_HOLD_OFF"
	if on {
		verb = "TIMER_HOLD_ON"
	}
	return c.sendChecked(ctx, map[string]any{verb: []any{minutes, zones}})
}

// SetFrost enables or disables standby (frost protection) mode.
func (c *Client) SetFrost(ctx context.Context, on bool, zones []string) error {
	verb := "FROST_OFF"
	if on {
		verb = "FROST_ON"
	}
	return c.sendChecked(ctx, map[string]any{verb: zones})
}

// SetTargetTemperature sets the heating set point.
func (c *Client) SetTargetTemperature(ctx context.Context, temp float64, zones []string) error {
	return c.sendChecked(ctx, map[string]any{"SET_TEMP": []any{temp, zones}})
}

// SetCoolTemp sets the cooling set point on HC devices.
func (c *Client) SetCoolTemp(ctx context.Context, temp float64, zones []string) error {
	return c.sendChecked(ctx, map[string]any{"SET_COOL_TEMP": []any{temp, zones}})
}

// SetHCMode sets the heat/cool operating mode on HC devices.
func (c *Client) SetHCMode(ctx context.Context, mode HCMode, zones []string) error {
	return c.sendChecked(ctx, map[string]any{"SET_HC_MODE": []any{string(mode), zones}})
}

// SetFanSpeed sets the fan speed on HC devices (HIGH, MED, LOW, AUTO, OFF).
func (c *Client) SetFanSpeed(ctx context.Context, speed string, zones []string) error {
	return c.sendChecked(ctx, map[string]any{"SET_FAN_SPEED": []any{speed, zones}})
}

// SetManual switches plug devices between manual and automatic control.
func (c *Client) SetManual(ctx context.Context, on bool, zones []string) error {
	verb := "MANUAL_OFF"
	if on {
		verb = "MANUAL_ON"
	}
	return c.sendChecked(ctx, map[string]any{verb: zones})
}

// SetTimer forces timer output on or off for manually controlled devices.
func (c *Client) SetTimer(ctx context.Context, on bool, zones []string) error {
	verb := "TIMER_OFF"
	if on {
		verb = "TIMER_ON"
	}
	return c.sendChecked(ctx, map[string]any{verb: zones})
}

// SetLock locks the device keypad with a PIN.
func (c *Client) SetLock(ctx context.Context, pin string, zones []string) error {
	return c.sendChecked(ctx, map[string]any{"LOCK": []any{pin, zones}})
}

// Unlock releases the device keypad lock.
func (c *Client) Unlock(ctx context.Context, zones []string) error {
	return c.sendChecked(ctx, map[string]any{"UNLOCK": zones})
}

// Identify flashes the device display for physical identification.
func (c *Client) Identify(ctx context.Context, zones []string) error {
	return c.sendChecked(ctx, map[string]any{"IDENTIFY_DEV": zones})
}

// RemoveRepeater removes a mesh repeater from the hub.
func (c *Client) RemoveRepeater(ctx context.Context, name string) error {
	return c.sendChecked(ctx, map[string]any{"REMOVE_REPEATER": name})
}

// SetDiff sets the switching differential (degrees between switch-on and
// switch-off).
func (c *Client) SetDiff(ctx context.Context, value int, zones []string) error {
	return c.sendChecked(ctx, map[string]any{"SET_DIFF": []any{value, zones}})
}

// SetPreheat sets the maximum preheat period in hours.
func (c *Client) SetPreheat(ctx context.Context, hours int, zones []string) error {
	return c.sendChecked(ctx, map[string]any{"SET_PREHEAT": []any{hours, zones}})
}

// SetFrostTemp sets the frost protection temperature.
func (c *Client) SetFrostTemp(ctx context.Context, temp float64, zones []string) error {
	return c.sendChecked(ctx, map[string]any{"SET_FROST": []any{temp, zones}})
}

// SetOutputDelay sets the output switching delay in minutes.
func (c *Client) SetOutputDelay(ctx context.Context, minutes int, zones []string) error {
	return c.sendChecked(ctx, map[string]any{"SET_DELAY": []any{minutes, zones}})
}

// SetFloorLimit sets the floor sensor limit temperature.
func (c *Client) SetFloorLimit(ctx context.Context, temp float64, zones []string) error {
	return c.sendChecked(ctx, map[string]any{"SET_FLOOR": []any{temp, zones}})
}

// SetAway enables or disables hub-wide away mode.
func (c *Client) SetAway(ctx context.Context, on bool) error {
	verb := "AWAY_OFF"
	if on {
		verb = "AWAY_ON"
	}
	return c.sendChecked(ctx, map[string]any{verb: 0})
}

// SetHoliday schedules hub-wide holiday mode until end.
// The hub expects timestamps as yyyymmddHHMM strings.
func (c *Client) SetHoliday(ctx context.Context, start, end time.Time) error {
	const stamp = "200601021504"
	return c.sendChecked(ctx, map[string]any{
		"HOLIDAY": []any{start.Format(stamp), end.Format(stamp)},
	})
}

// CancelHoliday cancels hub-wide holiday mode.
func (c *Client) CancelHoliday(ctx context.Context) error {
	return c.sendChecked(ctx, map[string]any{"CANCEL_HOLIDAY": 0})
}

// RenameProfile renames a stored profile.
func (c *Client) RenameProfile(ctx context.Context, oldName, newName string) error {
	return c.sendChecked(ctx, map[string]any{"PROFILE_TITLE": []any{oldName, newName}})
}

// DeleteProfile removes a stored profile.
func (c *Client) DeleteProfile(ctx context.Context, name string) error {
	return c.sendChecked(ctx, map[string]any{"CLEAR_PROFILE": name})
}

// StoreProfile creates or replaces a heating profile definition.
// The info layout matches the hub's profile encoding: day key -> slot name
// -> [time, temperature].
func (c *Client) StoreProfile(ctx context.Context, name string, info map[string]any) error {
	return c.sendChecked(ctx, map[string]any{
		"STORE_PROFILE": map[string]any{"name": name, "info": info},
	})
}

// StoreTimerProfile creates or replaces a timer profile definition.
func (c *Client) StoreTimerProfile(ctx context.Context, name string, info map[string]any) error {
	return c.sendChecked(ctx, map[string]any{
		"STORE_TIMER_PROFILE": map[string]any{"name": name, "info": info},
	})
}
