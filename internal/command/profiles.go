package command

import (
	"context"
	"fmt"
	"sort"

	"github.com/nerrad567/gray-logic-heatbridge/internal/neohub"
)

// Slot names the hub expects in stored profile definitions, in day order.
var (
	heatingSlots = []string{"wake", "leave", "return", "sleep", "level5", "level6"}
	timerSlots   = []string{"time1", "time2", "time3", "time4"}
)

// ProfileDefinition is a complete profile as accepted by StoreProfile and
// returned by ProfileDefinitions.
type ProfileDefinition struct {
	ID    int                                  `json:"id,omitempty"`
	Name  string                               `json:"name"`
	Timer bool                                 `json:"timer"`
	Days  map[neohub.Weekday]neohub.ProfileDay `json:"days"`
}

// StoreMode controls how StoreProfile treats the profile name.
type StoreMode string

// Store mode constants.
const (
	// StoreCreate fails if a profile with the name already exists.
	StoreCreate StoreMode = "create"

	// StoreUpdate fails unless a profile with the name already exists.
	StoreUpdate StoreMode = "update"

	// StoreUpsert writes unconditionally. The zero value behaves the same.
	StoreUpsert StoreMode = "upsert"
)

// StoreProfile writes a profile to the hub. The mode decides whether the
// name must be new (create), existing (update) or either (upsert); the
// check runs against the current snapshot before anything reaches the
// hub. The definition's day keys must match the hub's schedule format
// (folded keys for formats one and two); levels beyond the hub's per-day
// allowance are rejected.
func (h *Handler) StoreProfile(ctx context.Context, def ProfileDefinition, mode StoreMode) error {
	if def.Name == "" {
		return fmt.Errorf("%w: profile name must be non-empty", ErrInvalidArgument)
	}
	if len(def.Days) == 0 {
		return fmt.Errorf("%w: profile has no days", ErrInvalidArgument)
	}

	exists := h.profileExists(def.Name, def.Timer)
	switch mode {
	case StoreCreate:
		if exists {
			return fmt.Errorf("%w: profile %q already exists", ErrInvalidArgument, def.Name)
		}
	case StoreUpdate:
		if !exists {
			return fmt.Errorf("%w: profile %q does not exist", ErrInvalidArgument, def.Name)
		}
	case StoreUpsert, "":
	default:
		return fmt.Errorf("%w: store mode %q", ErrInvalidArgument, mode)
	}

	snap := h.states.Snapshot()
	maxLevels := 4
	if snap != nil && snap.System != nil && snap.System.HeatingLevelsPerDay == 6 {
		maxLevels = 6
	}

	info := make(map[string]any, len(def.Days))
	for day, levels := range def.Days {
		if def.Timer {
			if len(levels.Timer) > len(timerSlots) {
				return fmt.Errorf("%w: %s has %d timer levels, max %d", ErrInvalidArgument, day, len(levels.Timer), len(timerSlots))
			}
			slots := make(map[string]any, len(levels.Timer))
			for i, lv := range levels.Timer {
				on, off := neohub.PadTime(lv.TimeOn), neohub.PadTime(lv.TimeOff)
				// An off time of exactly "24:00" is allowed: the hub uses
				// it as the run-to-midnight sentinel. Switching on at or
				// past midnight makes no sense, so on stays strictly below.
				if on >= "24:00" || off > "24:00" {
					return fmt.Errorf("%w: %s slot %d time %q-%q", ErrInvalidArgument, day, i+1, lv.TimeOn, lv.TimeOff)
				}
				slots[timerSlots[i]] = []any{on, off}
			}
			info[string(day)] = slots
			continue
		}

		if len(levels.Heating) > maxLevels {
			return fmt.Errorf("%w: %s has %d heating levels, max %d", ErrInvalidArgument, day, len(levels.Heating), maxLevels)
		}
		slots := make(map[string]any, len(levels.Heating))
		for i, lv := range levels.Heating {
			if lv.Temperature < minTargetTemp || lv.Temperature > maxTargetTemp {
				return fmt.Errorf("%w: %s slot %d temperature %.1f", ErrInvalidArgument, day, i+1, lv.Temperature)
			}
			slots[heatingSlots[i]] = []any{neohub.PadTime(lv.Time), lv.Temperature}
		}
		info[string(day)] = slots
	}

	if def.Timer {
		return h.hub.StoreTimerProfile(ctx, def.Name, info)
	}
	return h.hub.StoreProfile(ctx, def.Name, info)
}

// profileExists reports whether the snapshot holds a named profile of the
// given kind. Built-in per-device profiles (id 0) never match.
func (h *Handler) profileExists(name string, timer bool) bool {
	snap := h.states.Snapshot()
	if snap == nil {
		return false
	}
	table := snap.Profiles
	if timer {
		table = snap.TimerProfiles
	}
	for _, p := range table {
		if !p.Invalid && p.Name == name {
			return true
		}
	}
	return false
}

// ProfileDefinitions dumps every named profile in the current snapshot,
// sorted by id. Built-in per-device profiles (id 0) are excluded.
func (h *Handler) ProfileDefinitions() []ProfileDefinition {
	snap := h.states.Snapshot()
	if snap == nil {
		return nil
	}

	defs := make([]ProfileDefinition, 0, len(snap.Profiles)+len(snap.TimerProfiles))
	for _, p := range snap.Profiles {
		if !p.Invalid {
			defs = append(defs, ProfileDefinition{ID: p.ID, Name: p.Name, Days: p.Days})
		}
	}
	for _, p := range snap.TimerProfiles {
		if !p.Invalid {
			defs = append(defs, ProfileDefinition{ID: p.ID, Name: p.Name, Timer: true, Days: p.Days})
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// FriendlyProfile is a profile rendered for humans: one line per level
// instead of the nested slot structure the hub trades in.
type FriendlyProfile struct {
	ID    int                 `json:"id,omitempty"`
	Name  string              `json:"name"`
	Timer bool                `json:"timer"`
	Days  map[string][]string `json:"days"`
}

// FriendlyProfiles renders every named profile in readable form. Heating
// levels come out as "06:30 19.0C", timer levels as "06:30-08:00".
func (h *Handler) FriendlyProfiles() []FriendlyProfile {
	defs := h.ProfileDefinitions()
	out := make([]FriendlyProfile, 0, len(defs))
	for _, def := range defs {
		fp := FriendlyProfile{
			ID:    def.ID,
			Name:  def.Name,
			Timer: def.Timer,
			Days:  make(map[string][]string, len(def.Days)),
		}
		for day, levels := range def.Days {
			var lines []string
			if def.Timer {
				lines = make([]string, 0, len(levels.Timer))
				for _, lv := range levels.Timer {
					lines = append(lines, fmt.Sprintf("%s-%s", neohub.PadTime(lv.TimeOn), neohub.PadTime(lv.TimeOff)))
				}
			} else {
				lines = make([]string, 0, len(levels.Heating))
				for _, lv := range levels.Heating {
					lines = append(lines, fmt.Sprintf("%s %.1fC", neohub.PadTime(lv.Time), lv.Temperature))
				}
			}
			fp.Days[string(day)] = lines
		}
		out = append(out, fp)
	}
	return out
}
