package command

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/nerrad567/gray-logic-heatbridge/internal/neohub"
	"github.com/nerrad567/gray-logic-heatbridge/internal/state"
)

// Validation ranges, matching what the device firmware accepts.
const (
	minTargetTemp = 5.0
	maxTargetTemp = 35.0
	minFrostTemp  = 5.0
	maxFrostTemp  = 17.0
	minDelay      = 0
	maxDelay      = 15
	maxDiff       = 3
	maxPreheat    = 5

	// defaultBoostDuration is how long a boost preset holds for.
	defaultBoostDuration = 2 * time.Hour

	// boostTempLift is added to the current target during a boost hold.
	boostTempLift = 2.0
)

// pinPattern accepts keypad PINs: one to four digits.
var pinPattern = regexp.MustCompile(`^[0-9]{1,4}$`)

// HVACMode is a requested operating mode.
type HVACMode string

// HVAC mode constants.
const (
	HVACOff  HVACMode = "off"
	HVACHeat HVACMode = "heat"
	HVACCool HVACMode = "cool"
	HVACAuto HVACMode = "auto"
)

// Preset is a requested preset state.
type Preset string

// Preset constants.
const (
	PresetHome    Preset = "home"
	PresetStandby Preset = "standby"
	PresetBoost   Preset = "boost"
)

// PlugMode is a requested smart plug operating mode.
type PlugMode string

// Plug mode constants.
const (
	PlugAuto      PlugMode = "auto"
	PlugManualOn  PlugMode = "manual_on"
	PlugManualOff PlugMode = "manual_off"
)

// Hub is the subset of the hub client the handler drives.
type Hub interface {
	SetHold(ctx context.Context, temp float64, hours, minutes int, zones []string) error
	SetTimerHold(ctx context.Context, on bool, minutes int, zones []string) error
	SetFrost(ctx context.Context, on bool, zones []string) error
	SetTargetTemperature(ctx context.Context, temp float64, zones []string) error
	SetCoolTemp(ctx context.Context, temp float64, zones []string) error
	SetHCMode(ctx context.Context, mode neohub.HCMode, zones []string) error
	SetFanSpeed(ctx context.Context, speed string, zones []string) error
	SetManual(ctx context.Context, on bool, zones []string) error
	SetTimer(ctx context.Context, on bool, zones []string) error
	SetLock(ctx context.Context, pin string, zones []string) error
	Unlock(ctx context.Context, zones []string) error
	Identify(ctx context.Context, zones []string) error
	RemoveRepeater(ctx context.Context, name string) error
	SetDiff(ctx context.Context, value int, zones []string) error
	SetPreheat(ctx context.Context, hours int, zones []string) error
	SetFrostTemp(ctx context.Context, temp float64, zones []string) error
	SetOutputDelay(ctx context.Context, minutes int, zones []string) error
	SetFloorLimit(ctx context.Context, temp float64, zones []string) error
	SetAway(ctx context.Context, on bool) error
	SetHoliday(ctx context.Context, start, end time.Time) error
	CancelHoliday(ctx context.Context) error
	RenameProfile(ctx context.Context, oldName, newName string) error
	DeleteProfile(ctx context.Context, name string) error
	StoreProfile(ctx context.Context, name string, info map[string]any) error
	StoreTimerProfile(ctx context.Context, name string, info map[string]any) error
}

// Logger defines the logging interface used by the Handler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Handler validates and executes device commands.
//
// Every operation follows the same discipline: validate arguments and
// device capability against the current snapshot first, issue the hub call,
// and only after the hub acknowledges apply an optimistic mutation so reads
// reflect the change before the next poll.
type Handler struct {
	hub    Hub
	states *state.Coordinator
	logger Logger
}

// NewHandler creates a command handler over hub and states.
func NewHandler(hub Hub, states *state.Coordinator) *Handler {
	return &Handler{hub: hub, states: states, logger: noopLogger{}}
}

// SetLogger sets the logger for the handler.
func (h *Handler) SetLogger(logger Logger) {
	if logger != nil {
		h.logger = logger
	}
}

// device resolves a device name against the current snapshot.
func (h *Handler) device(name string) (*neohub.DeviceState, error) {
	snap := h.states.Snapshot()
	if snap == nil {
		return nil, fmt.Errorf("%w: %s (no snapshot yet)", ErrUnknownDevice, name)
	}
	dev, ok := snap.Devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}
	return dev, nil
}

// mutate applies an optimistic update to one named device.
func (h *Handler) mutate(name string, fn func(*neohub.DeviceState)) {
	h.states.ApplyOptimisticMutation(
		func(d *neohub.DeviceState) bool { return d.Name == name },
		fn,
	)
}

// SetTargetTemperature sets the heating set point.
func (h *Handler) SetTargetTemperature(ctx context.Context, device string, temp float64) error {
	dev, err := h.device(device)
	if err != nil {
		return err
	}
	if !neohub.IsThermostat(dev.DeviceType) {
		return fmt.Errorf("%w: %s is not a thermostat", ErrUnsupported, device)
	}
	if temp < minTargetTemp || temp > maxTargetTemp {
		return fmt.Errorf("%w: temperature %.1f outside %.0f-%.0f", ErrInvalidArgument, temp, minTargetTemp, maxTargetTemp)
	}

	// Heat/cool units in cooling mode take the cooling set point; the
	// heating set point would be ignored until the mode flips back.
	if neohub.IsHC(dev.DeviceType) && dev.HCModeState == neohub.HCModeCooling {
		if err := h.hub.SetCoolTemp(ctx, temp, []string{device}); err != nil {
			return err
		}
		h.mutate(device, func(d *neohub.DeviceState) { d.CoolTemp = temp })
		return nil
	}

	if err := h.hub.SetTargetTemperature(ctx, temp, []string{device}); err != nil {
		return err
	}
	h.mutate(device, func(d *neohub.DeviceState) { d.TargetTemperature = temp })
	return nil
}

// SetCoolTemperature sets the cooling set point on heat/cool units,
// regardless of the current operating mode.
func (h *Handler) SetCoolTemperature(ctx context.Context, device string, temp float64) error {
	dev, err := h.device(device)
	if err != nil {
		return err
	}
	if !neohub.IsHC(dev.DeviceType) {
		return fmt.Errorf("%w: %s cannot cool", ErrUnsupported, device)
	}
	if temp < minTargetTemp || temp > maxTargetTemp {
		return fmt.Errorf("%w: temperature %.1f outside %.0f-%.0f", ErrInvalidArgument, temp, minTargetTemp, maxTargetTemp)
	}

	if err := h.hub.SetCoolTemp(ctx, temp, []string{device}); err != nil {
		return err
	}
	h.mutate(device, func(d *neohub.DeviceState) { d.CoolTemp = temp })
	return nil
}

// SetHold applies a temperature hold for the given duration.
func (h *Handler) SetHold(ctx context.Context, device string, temp float64, duration time.Duration) error {
	dev, err := h.device(device)
	if err != nil {
		return err
	}
	if !neohub.SupportsHold(dev.DeviceType) {
		return fmt.Errorf("%w: %s cannot hold", ErrUnsupported, device)
	}
	if temp < minTargetTemp || temp > maxTargetTemp {
		return fmt.Errorf("%w: temperature %.1f outside %.0f-%.0f", ErrInvalidArgument, temp, minTargetTemp, maxTargetTemp)
	}
	if duration <= 0 || duration > 99*time.Hour {
		return fmt.Errorf("%w: hold duration %s", ErrInvalidArgument, duration)
	}

	hours := int(duration.Hours())
	minutes := int(duration.Minutes()) % 60
	if err := h.hub.SetHold(ctx, temp, hours, minutes, []string{device}); err != nil {
		return err
	}
	h.mutate(device, func(d *neohub.DeviceState) {
		d.HoldOn = true
		d.HoldTemp = temp
		d.HoldTime = duration
		d.TargetTemperature = temp
	})
	return nil
}

// CancelHold releases an active hold. Timer devices release their output
// override instead.
func (h *Handler) CancelHold(ctx context.Context, device string) error {
	dev, err := h.device(device)
	if err != nil {
		return err
	}

	if dev.TimeClockMode {
		if err := h.hub.SetTimerHold(ctx, false, 0, []string{device}); err != nil {
			return err
		}
	} else {
		if err := h.hub.SetHold(ctx, dev.TargetTemperature, 0, 0, []string{device}); err != nil {
			return err
		}
	}
	h.mutate(device, func(d *neohub.DeviceState) {
		d.HoldOn = false
		d.HoldTime = 0
	})
	return nil
}

// SetTimerHold overrides timer output for the given duration.
func (h *Handler) SetTimerHold(ctx context.Context, device string, on bool, duration time.Duration) error {
	dev, err := h.device(device)
	if err != nil {
		return err
	}
	if !dev.TimeClockMode {
		return fmt.Errorf("%w: %s is not in timer mode", ErrUnsupported, device)
	}
	if duration < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidArgument)
	}

	if err := h.hub.SetTimerHold(ctx, on, int(duration.Minutes()), []string{device}); err != nil {
		return err
	}
	h.mutate(device, func(d *neohub.DeviceState) {
		d.HoldOn = duration > 0
		d.HoldTime = duration
		d.TimerOn = on
	})
	return nil
}

// SetHVACMode maps a requested operating mode onto hub verbs. "off" is
// standby (frost protection); the others clear standby and, on heat/cool
// units, switch the operating mode.
func (h *Handler) SetHVACMode(ctx context.Context, device string, mode HVACMode) error {
	dev, err := h.device(device)
	if err != nil {
		return err
	}
	if !neohub.IsThermostat(dev.DeviceType) {
		return fmt.Errorf("%w: %s is not a thermostat", ErrUnsupported, device)
	}

	switch mode {
	case HVACOff:
		if !neohub.SupportsStandby(dev.DeviceType) {
			return fmt.Errorf("%w: %s has no standby mode", ErrUnsupported, device)
		}
		if err := h.hub.SetFrost(ctx, true, []string{device}); err != nil {
			return err
		}
		h.mutate(device, func(d *neohub.DeviceState) { d.Standby = true })
		return nil

	case HVACHeat, HVACCool, HVACAuto:
		if mode != HVACHeat && !neohub.IsHC(dev.DeviceType) {
			return fmt.Errorf("%w: %s cannot cool", ErrUnsupported, device)
		}
		if err := h.hub.SetFrost(ctx, false, []string{device}); err != nil {
			return err
		}
		if neohub.IsHC(dev.DeviceType) {
			hcMode := neohub.HCModeHeating
			switch mode {
			case HVACCool:
				hcMode = neohub.HCModeCooling
			case HVACAuto:
				hcMode = neohub.HCModeAuto
			}
			if err := h.hub.SetHCMode(ctx, hcMode, []string{device}); err != nil {
				return err
			}
			h.mutate(device, func(d *neohub.DeviceState) {
				d.Standby = false
				d.HCModeState = hcMode
			})
			return nil
		}
		h.mutate(device, func(d *neohub.DeviceState) { d.Standby = false })
		return nil

	default:
		return fmt.Errorf("%w: hvac mode %q", ErrInvalidArgument, mode)
	}
}

// SetPreset applies a preset: home returns to the schedule, standby
// enables frost protection, boost holds above the current target (or
// forces timer output on) for a fixed period.
func (h *Handler) SetPreset(ctx context.Context, device string, preset Preset) error {
	dev, err := h.device(device)
	if err != nil {
		return err
	}

	switch preset {
	case PresetHome:
		if dev.HoldOn {
			return h.CancelHold(ctx, device)
		}
		if dev.Standby {
			if err := h.hub.SetFrost(ctx, false, []string{device}); err != nil {
				return err
			}
			h.mutate(device, func(d *neohub.DeviceState) { d.Standby = false })
		}
		return nil

	case PresetStandby:
		if !neohub.SupportsStandby(dev.DeviceType) {
			return fmt.Errorf("%w: %s has no standby mode", ErrUnsupported, device)
		}
		if err := h.hub.SetFrost(ctx, true, []string{device}); err != nil {
			return err
		}
		h.mutate(device, func(d *neohub.DeviceState) { d.Standby = true })
		return nil

	case PresetBoost:
		if dev.TimeClockMode {
			return h.SetTimerHold(ctx, device, true, defaultBoostDuration)
		}
		return h.SetHold(ctx, device, dev.TargetTemperature+boostTempLift, defaultBoostDuration)

	default:
		return fmt.Errorf("%w: preset %q", ErrInvalidArgument, preset)
	}
}

// SetFanMode sets the fan speed on heat/cool units.
func (h *Handler) SetFanMode(ctx context.Context, device, speed string) error {
	dev, err := h.device(device)
	if err != nil {
		return err
	}
	if !neohub.IsHC(dev.DeviceType) {
		return fmt.Errorf("%w: %s has no fan", ErrUnsupported, device)
	}
	switch speed {
	case "HIGH", "MED", "LOW", "AUTO", "OFF":
	default:
		return fmt.Errorf("%w: fan speed %q", ErrInvalidArgument, speed)
	}

	if err := h.hub.SetFanSpeed(ctx, speed, []string{device}); err != nil {
		return err
	}
	h.mutate(device, func(d *neohub.DeviceState) { d.FanSpeed = speed })
	return nil
}

// SetPlugMode switches a smart plug between schedule control and forced
// manual output.
func (h *Handler) SetPlugMode(ctx context.Context, device string, mode PlugMode) error {
	dev, err := h.device(device)
	if err != nil {
		return err
	}
	if !neohub.IsPlug(dev.DeviceType) {
		return fmt.Errorf("%w: %s is not a plug", ErrUnsupported, device)
	}

	switch mode {
	case PlugAuto:
		if err := h.hub.SetManual(ctx, false, []string{device}); err != nil {
			return err
		}
		h.mutate(device, func(d *neohub.DeviceState) { d.ManualOff = false })
		return nil

	case PlugManualOn, PlugManualOff:
		on := mode == PlugManualOn
		if err := h.hub.SetManual(ctx, true, []string{device}); err != nil {
			return err
		}
		if err := h.hub.SetTimer(ctx, on, []string{device}); err != nil {
			return err
		}
		h.mutate(device, func(d *neohub.DeviceState) {
			d.ManualOff = true
			d.TimerOn = on
		})
		return nil

	default:
		return fmt.Errorf("%w: plug mode %q", ErrInvalidArgument, mode)
	}
}

// Lock locks the device keypad with a PIN of one to four digits.
func (h *Handler) Lock(ctx context.Context, device, pin string) error {
	dev, err := h.device(device)
	if err != nil {
		return err
	}
	if neohub.IsPlug(dev.DeviceType) || neohub.IsRepeater(dev.DeviceType) {
		return fmt.Errorf("%w: %s has no keypad", ErrUnsupported, device)
	}
	if !pinPattern.MatchString(pin) {
		return fmt.Errorf("%w: pin must be 1-4 digits", ErrInvalidArgument)
	}

	if err := h.hub.SetLock(ctx, pin, []string{device}); err != nil {
		return err
	}
	h.mutate(device, func(d *neohub.DeviceState) {
		d.LockState = true
		d.PinNumber = pin
	})
	return nil
}

// Unlock releases the device keypad lock.
func (h *Handler) Unlock(ctx context.Context, device string) error {
	if _, err := h.device(device); err != nil {
		return err
	}
	if err := h.hub.Unlock(ctx, []string{device}); err != nil {
		return err
	}
	h.mutate(device, func(d *neohub.DeviceState) {
		d.LockState = false
		d.PinNumber = ""
	})
	return nil
}

// Identify flashes the device display.
func (h *Handler) Identify(ctx context.Context, device string) error {
	dev, err := h.device(device)
	if err != nil {
		return err
	}
	if !neohub.SupportsIdentify(dev.DeviceType) {
		return fmt.Errorf("%w: %s cannot identify", ErrUnsupported, device)
	}
	return h.hub.Identify(ctx, []string{device})
}

// RemoveRepeater removes a mesh repeater from the hub.
func (h *Handler) RemoveRepeater(ctx context.Context, device string) error {
	dev, err := h.device(device)
	if err != nil {
		return err
	}
	if !neohub.IsRepeater(dev.DeviceType) {
		return fmt.Errorf("%w: %s is not a repeater", ErrUnsupported, device)
	}
	return h.hub.RemoveRepeater(ctx, device)
}

// SetFrostTemp sets the frost protection temperature (5-17 degrees).
func (h *Handler) SetFrostTemp(ctx context.Context, device string, temp float64) error {
	dev, err := h.device(device)
	if err != nil {
		return err
	}
	if !neohub.SupportsStandby(dev.DeviceType) {
		return fmt.Errorf("%w: %s has no frost mode", ErrUnsupported, device)
	}
	if temp < minFrostTemp || temp > maxFrostTemp {
		return fmt.Errorf("%w: frost temperature %.1f outside %.0f-%.0f", ErrInvalidArgument, temp, minFrostTemp, maxFrostTemp)
	}

	if err := h.hub.SetFrostTemp(ctx, temp, []string{device}); err != nil {
		return err
	}
	h.mutate(device, func(d *neohub.DeviceState) { d.FrostTemp = temp })
	return nil
}

// SetOutputDelay sets the output switching delay (0-15 minutes).
func (h *Handler) SetOutputDelay(ctx context.Context, device string, minutes int) error {
	if _, err := h.device(device); err != nil {
		return err
	}
	if minutes < minDelay || minutes > maxDelay {
		return fmt.Errorf("%w: delay %d outside %d-%d", ErrInvalidArgument, minutes, minDelay, maxDelay)
	}

	if err := h.hub.SetOutputDelay(ctx, minutes, []string{device}); err != nil {
		return err
	}
	h.mutate(device, func(d *neohub.DeviceState) { d.OutputDelay = minutes })
	return nil
}

// SetSwitchingDifferential sets the degrees between switch-on and
// switch-off (0-3).
func (h *Handler) SetSwitchingDifferential(ctx context.Context, device string, value int) error {
	dev, err := h.device(device)
	if err != nil {
		return err
	}
	if !neohub.IsThermostat(dev.DeviceType) {
		return fmt.Errorf("%w: %s is not a thermostat", ErrUnsupported, device)
	}
	if value < 0 || value > maxDiff {
		return fmt.Errorf("%w: differential %d outside 0-%d", ErrInvalidArgument, value, maxDiff)
	}
	return h.hub.SetDiff(ctx, value, []string{device})
}

// SetPreheatPeriod sets the maximum preheat period (0-5 hours).
func (h *Handler) SetPreheatPeriod(ctx context.Context, device string, hours int) error {
	dev, err := h.device(device)
	if err != nil {
		return err
	}
	if !neohub.IsThermostat(dev.DeviceType) {
		return fmt.Errorf("%w: %s is not a thermostat", ErrUnsupported, device)
	}
	if hours < 0 || hours > maxPreheat {
		return fmt.Errorf("%w: preheat %d outside 0-%d", ErrInvalidArgument, hours, maxPreheat)
	}
	return h.hub.SetPreheat(ctx, hours, []string{device})
}

// SetFloorLimit sets the floor sensor limit temperature.
func (h *Handler) SetFloorLimit(ctx context.Context, device string, temp float64) error {
	dev, err := h.device(device)
	if err != nil {
		return err
	}
	if !neohub.IsThermostat(dev.DeviceType) {
		return fmt.Errorf("%w: %s has no floor sensor", ErrUnsupported, device)
	}
	if err := h.hub.SetFloorLimit(ctx, temp, []string{device}); err != nil {
		return err
	}
	h.mutate(device, func(d *neohub.DeviceState) { d.FloorLimit = temp })
	return nil
}

// SetAway switches hub-wide away mode for every device that honours it.
func (h *Handler) SetAway(ctx context.Context, on bool) error {
	if err := h.hub.SetAway(ctx, on); err != nil {
		return err
	}
	h.states.ApplySystemMutation(func(l *neohub.LiveFlags) { l.AwayActive = on })
	h.states.ApplyOptimisticMutation(
		func(d *neohub.DeviceState) bool { return neohub.SupportsAway(d.DeviceType) },
		func(d *neohub.DeviceState) { d.Away = on },
	)
	return nil
}

// SetHoliday schedules hub-wide holiday mode until end.
func (h *Handler) SetHoliday(ctx context.Context, end time.Time) error {
	now := time.Now()
	if !end.After(now) {
		return fmt.Errorf("%w: holiday end %s is in the past", ErrInvalidArgument, end.Format(time.RFC3339))
	}
	if err := h.hub.SetHoliday(ctx, now, end); err != nil {
		return err
	}
	h.states.ApplySystemMutation(func(l *neohub.LiveFlags) {
		l.HolidayActive = true
		l.HolidayEnd = end
	})
	h.states.ApplyOptimisticMutation(
		func(d *neohub.DeviceState) bool { return neohub.SupportsAway(d.DeviceType) },
		func(d *neohub.DeviceState) { d.Holiday = true },
	)
	return nil
}

// CancelHoliday cancels hub-wide holiday mode.
func (h *Handler) CancelHoliday(ctx context.Context) error {
	if err := h.hub.CancelHoliday(ctx); err != nil {
		return err
	}
	h.states.ApplySystemMutation(func(l *neohub.LiveFlags) {
		l.HolidayActive = false
		l.HolidayEnd = time.Time{}
	})
	h.states.ApplyOptimisticMutation(
		func(d *neohub.DeviceState) bool { return d.Holiday },
		func(d *neohub.DeviceState) { d.Holiday = false },
	)
	return nil
}

// RenameProfile renames a stored profile.
func (h *Handler) RenameProfile(ctx context.Context, oldName, newName string) error {
	if oldName == "" || newName == "" {
		return fmt.Errorf("%w: profile names must be non-empty", ErrInvalidArgument)
	}
	return h.hub.RenameProfile(ctx, oldName, newName)
}

// DeleteProfile removes a stored profile.
func (h *Handler) DeleteProfile(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: profile name must be non-empty", ErrInvalidArgument)
	}
	return h.hub.DeleteProfile(ctx, name)
}
