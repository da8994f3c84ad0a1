package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-heatbridge/internal/command"
	"github.com/nerrad567/gray-logic-heatbridge/internal/neohub"
)

// systemResponse is the hub-wide state payload.
type systemResponse struct {
	System    *neohub.SystemSettings `json:"system,omitempty"`
	Live      *neohub.LiveFlags      `json:"live,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// handleGetSystem returns hub-wide settings and live flags.
func (s *Server) handleGetSystem(w http.ResponseWriter, _ *http.Request) {
	snap := s.coord.Snapshot()
	if snap == nil {
		writeUnavailable(w, "no hub data yet")
		return
	}

	writeJSON(w, http.StatusOK, systemResponse{
		System:    snap.System,
		Live:      snap.Live,
		UpdatedAt: s.coord.UpdatedAt(),
	})
}

// handleListProfiles returns the stored heating and timer profiles.
// ?friendly=true swaps the raw slot structure for a readable rendering.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("friendly") == "true" {
		profiles := s.commands.FriendlyProfiles()
		writeJSON(w, http.StatusOK, map[string]any{
			"profiles": profiles,
			"count":    len(profiles),
		})
		return
	}

	profiles := s.commands.ProfileDefinitions()
	writeJSON(w, http.StatusOK, map[string]any{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

// handleCommand dispatches a wire-form command. The target device, if
// any, is named in the request body.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req command.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid command body: "+err.Error())
		return
	}
	s.dispatchCommand(w, r, req)
}

// handleDeviceCommand dispatches a command to the device named in the
// URL. The URL is authoritative: any device in the body is overridden.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	var req command.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid command body: "+err.Error())
		return
	}
	req.Device = deviceName(r)
	s.dispatchCommand(w, r, req)
}

func (s *Server) dispatchCommand(w http.ResponseWriter, r *http.Request, req command.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	res, err := s.commands.Dispatch(ctx, req)
	if err != nil {
		writeJSON(w, commandStatus(err), res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// commandStatus maps a dispatch error to an HTTP status code.
func commandStatus(err error) int {
	switch {
	case errors.Is(err, command.ErrUnknownDevice):
		return http.StatusNotFound
	case errors.Is(err, command.ErrInvalidArgument), errors.Is(err, command.ErrUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, command.ErrUnsupported):
		return http.StatusConflict
	case errors.Is(err, neohub.ErrHubUnreachable), errors.Is(err, neohub.ErrRequestTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
