package command

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Request is a device command in wire form, as received over MQTT or the
// HTTP API. Args carries action-specific parameters.
type Request struct {
	// ID correlates the request with its Result. Assigned if empty.
	ID string `json:"id,omitempty"`

	// Device is the target device name. Hub-wide actions leave it empty.
	Device string `json:"device,omitempty"`

	// Action selects the operation, e.g. "set_temperature".
	Action string `json:"action"`

	// Args holds action parameters, e.g. {"temperature": 21.5}.
	Args map[string]any `json:"args,omitempty"`
}

// Result is the outcome of one dispatched request.
type Result struct {
	ID      string `json:"id"`
	Device  string `json:"device,omitempty"`
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Dispatch validates and executes a wire-form request, returning a
// correlated result. Transport errors and validation errors both surface
// in the result; the returned error mirrors Result.Error for callers that
// prefer it.
func (h *Handler) Dispatch(ctx context.Context, req Request) (Result, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	err := h.execute(ctx, req)
	res := Result{ID: req.ID, Device: req.Device, Action: req.Action, Success: err == nil}
	if err != nil {
		res.Error = err.Error()
		h.logger.Warn("command failed", "id", req.ID, "device", req.Device, "action", req.Action, "error", err)
		return res, err
	}
	h.logger.Info("command executed", "id", req.ID, "device", req.Device, "action", req.Action)
	return res, nil
}

func (h *Handler) execute(ctx context.Context, req Request) error {
	args := argReader{m: req.Args}

	switch req.Action {
	case "set_temperature":
		temp, err := args.float("temperature")
		if err != nil {
			return err
		}
		return h.SetTargetTemperature(ctx, req.Device, temp)

	case "set_cool_temperature":
		temp, err := args.float("temperature")
		if err != nil {
			return err
		}
		return h.SetCoolTemperature(ctx, req.Device, temp)

	case "set_hold":
		temp, err := args.float("temperature")
		if err != nil {
			return err
		}
		minutes, err := args.int("minutes")
		if err != nil {
			return err
		}
		return h.SetHold(ctx, req.Device, temp, time.Duration(minutes)*time.Minute)

	case "cancel_hold":
		return h.CancelHold(ctx, req.Device)

	case "set_timer_hold":
		on, err := args.bool("on")
		if err != nil {
			return err
		}
		minutes, err := args.int("minutes")
		if err != nil {
			return err
		}
		return h.SetTimerHold(ctx, req.Device, on, time.Duration(minutes)*time.Minute)

	case "set_hvac_mode":
		mode, err := args.string("mode")
		if err != nil {
			return err
		}
		return h.SetHVACMode(ctx, req.Device, HVACMode(mode))

	case "set_preset":
		preset, err := args.string("preset")
		if err != nil {
			return err
		}
		return h.SetPreset(ctx, req.Device, Preset(preset))

	case "set_fan_mode":
		speed, err := args.string("speed")
		if err != nil {
			return err
		}
		return h.SetFanMode(ctx, req.Device, speed)

	case "set_plug_mode":
		mode, err := args.string("mode")
		if err != nil {
			return err
		}
		return h.SetPlugMode(ctx, req.Device, PlugMode(mode))

	case "lock":
		pin, err := args.string("pin")
		if err != nil {
			return err
		}
		return h.Lock(ctx, req.Device, pin)

	case "unlock":
		return h.Unlock(ctx, req.Device)

	case "identify":
		return h.Identify(ctx, req.Device)

	case "remove_repeater":
		return h.RemoveRepeater(ctx, req.Device)

	case "set_frost_temperature":
		temp, err := args.float("temperature")
		if err != nil {
			return err
		}
		return h.SetFrostTemp(ctx, req.Device, temp)

	case "set_output_delay":
		minutes, err := args.int("minutes")
		if err != nil {
			return err
		}
		return h.SetOutputDelay(ctx, req.Device, minutes)

	case "set_differential":
		value, err := args.int("value")
		if err != nil {
			return err
		}
		return h.SetSwitchingDifferential(ctx, req.Device, value)

	case "set_preheat":
		hours, err := args.int("hours")
		if err != nil {
			return err
		}
		return h.SetPreheatPeriod(ctx, req.Device, hours)

	case "set_floor_limit":
		temp, err := args.float("temperature")
		if err != nil {
			return err
		}
		return h.SetFloorLimit(ctx, req.Device, temp)

	case "set_away":
		on, err := args.bool("on")
		if err != nil {
			return err
		}
		return h.SetAway(ctx, on)

	case "set_holiday":
		raw, err := args.string("end")
		if err != nil {
			return err
		}
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("%w: end %q is not RFC 3339", ErrInvalidArgument, raw)
		}
		return h.SetHoliday(ctx, end)

	case "cancel_holiday":
		return h.CancelHoliday(ctx)

	case "rename_profile":
		oldName, err := args.string("old_name")
		if err != nil {
			return err
		}
		newName, err := args.string("new_name")
		if err != nil {
			return err
		}
		return h.RenameProfile(ctx, oldName, newName)

	case "delete_profile":
		name, err := args.string("name")
		if err != nil {
			return err
		}
		return h.DeleteProfile(ctx, name)

	case "store_profile":
		var def ProfileDefinition
		encoded, err := json.Marshal(req.Args)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		if err := json.Unmarshal(encoded, &def); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		mode := StoreUpsert
		if raw, ok := req.Args["mode"]; ok {
			s, ok := raw.(string)
			if !ok {
				return fmt.Errorf("%w: %q is not a string", ErrInvalidArgument, "mode")
			}
			mode = StoreMode(s)
		}
		return h.StoreProfile(ctx, def, mode)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
}

// argReader extracts typed values from a JSON-decoded argument map.
type argReader struct {
	m map[string]any
}

func (a argReader) float(key string) (float64, error) {
	v, ok := a.m[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q", ErrInvalidArgument, key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidArgument, key)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidArgument, key)
	}
}

func (a argReader) int(key string) (int, error) {
	f, err := a.float(key)
	if err != nil {
		return 0, err
	}
	n := int(f)
	if float64(n) != f {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidArgument, key)
	}
	return n, nil
}

func (a argReader) string(key string) (string, error) {
	v, ok := a.m[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrInvalidArgument, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is not a string", ErrInvalidArgument, key)
	}
	return s, nil
}

func (a argReader) bool(key string) (bool, error) {
	v, ok := a.m[key]
	if !ok {
		return false, fmt.Errorf("%w: missing %q", ErrInvalidArgument, key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidArgument, key)
	}
	return b, nil
}
