package api

import (
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-heatbridge/internal/history"
	"github.com/nerrad567/gray-logic-heatbridge/internal/neohub"
	"github.com/nerrad567/gray-logic-heatbridge/internal/schedule"
)

// deviceSummary is one row of the device list response.
type deviceSummary struct {
	Name               string  `json:"name"`
	DeviceType         int     `json:"device_type"`
	Online             bool    `json:"online"`
	Available          bool    `json:"available"`
	Standby            bool    `json:"standby"`
	Away               bool    `json:"away"`
	Holiday            bool    `json:"holiday"`
	HeatOn             bool    `json:"heat_on"`
	TimerOn            bool    `json:"timer_on"`
	CurrentTemperature float64 `json:"current_temperature"`
	TargetTemperature  float64 `json:"target_temperature"`
}

// deviceResponse is the full single-device payload.
type deviceResponse struct {
	*neohub.DeviceState

	Available    bool            `json:"available"`
	CurrentLevel *schedule.Event `json:"current_level,omitempty"`
	NextLevel    *schedule.Event `json:"next_level,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// scheduleResponse carries the resolved schedule boundaries for a device.
type scheduleResponse struct {
	Device       string          `json:"device"`
	Profile      int             `json:"profile"`
	CurrentLevel *schedule.Event `json:"current_level,omitempty"`
	NextLevel    *schedule.Event `json:"next_level,omitempty"`
}

// deviceName extracts and unescapes the device name route parameter.
func deviceName(r *http.Request) string {
	name := chi.URLParam(r, "name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}

// handleListDevices returns summaries for every known device, sorted by
// name.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	snap := s.coord.Snapshot()
	if snap == nil {
		writeUnavailable(w, "no hub data yet")
		return
	}

	summaries := make([]deviceSummary, 0, len(snap.Devices))
	for name, dev := range snap.Devices {
		summaries = append(summaries, deviceSummary{
			Name:               name,
			DeviceType:         dev.DeviceType,
			Online:             dev.Online,
			Available:          s.coord.Device(name).Available(),
			Standby:            dev.Standby,
			Away:               dev.Away,
			Holiday:            dev.Holiday,
			HeatOn:             dev.HeatOn,
			TimerOn:            dev.TimerOn,
			CurrentTemperature: dev.CurrentTemperature,
			TargetTemperature:  dev.TargetTemperature,
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": summaries,
		"count":   len(summaries),
	})
}

// handleGetDevice returns one device's full state and resolved schedule.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	name := deviceName(r)

	snap := s.coord.Snapshot()
	if snap == nil {
		writeUnavailable(w, "no hub data yet")
		return
	}

	dev, ok := snap.Devices[name]
	if !ok {
		writeNotFound(w, "unknown device: "+name)
		return
	}

	resp := deviceResponse{
		DeviceState: dev,
		Available:   s.coord.Device(name).Available(),
		UpdatedAt:   s.coord.UpdatedAt(),
	}
	if cur, ok := schedule.CurrentLevel(dev.ActiveProfile, dev, snap); ok {
		resp.CurrentLevel = &cur
	}
	if next, ok := schedule.NextLevel(dev.ActiveProfile, dev, snap); ok {
		resp.NextLevel = &next
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleGetDeviceSchedule returns the resolved schedule boundaries for
// one device.
func (s *Server) handleGetDeviceSchedule(w http.ResponseWriter, r *http.Request) {
	name := deviceName(r)

	snap := s.coord.Snapshot()
	if snap == nil {
		writeUnavailable(w, "no hub data yet")
		return
	}

	dev, ok := snap.Devices[name]
	if !ok {
		writeNotFound(w, "unknown device: "+name)
		return
	}

	resp := scheduleResponse{
		Device:  name,
		Profile: dev.ActiveProfile,
	}
	if cur, ok := schedule.CurrentLevel(dev.ActiveProfile, dev, snap); ok {
		resp.CurrentLevel = &cur
	}
	if next, ok := schedule.NextLevel(dev.ActiveProfile, dev, snap); ok {
		resp.NextLevel = &next
	}

	writeJSON(w, http.StatusOK, resp)
}

// defaultHistoryWindow is the query range when "since" is not supplied.
const defaultHistoryWindow = 24 * time.Hour

// handleGetDeviceHistory returns recorded temperature samples for one
// device.
//
// Query parameters:
//   - since: RFC3339 start of the range (default: 24 hours ago)
//   - until: RFC3339 end of the range (default: now)
//   - limit: maximum sample count
func (s *Server) handleGetDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "history recording is disabled")
		return
	}

	name := deviceName(r)

	since := time.Now().UTC().Add(-defaultHistoryWindow)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeBadRequest(w, "invalid 'since' timestamp: "+raw)
			return
		}
		since = parsed
	}

	var until time.Time
	if raw := r.URL.Query().Get("until"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeBadRequest(w, "invalid 'until' timestamp: "+raw)
			return
		}
		until = parsed
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "invalid 'limit': "+raw)
			return
		}
		limit = parsed
	}

	samples, err := s.history.History(r.Context(), name, since, until, limit)
	if err != nil {
		if errors.Is(err, history.ErrInvalidRange) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("history query failed", "device", name, "error", err)
		writeInternalError(w, "history query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device":  name,
		"samples": samples,
		"count":   len(samples),
	})
}
