package bridge

import (
	"time"

	"github.com/nerrad567/gray-logic-heatbridge/internal/neohub"
	"github.com/nerrad567/gray-logic-heatbridge/internal/schedule"
)

// StatePayload is the retained per-device state message.
//
// It embeds the full device state so consumers see every field the hub
// reports, plus the resolved schedule boundaries for the device's active
// profile.
type StatePayload struct {
	*neohub.DeviceState

	CurrentLevel *schedule.Event `json:"current_level,omitempty"`
	NextLevel    *schedule.Event `json:"next_level,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// SchedulePayload is the retained per-device schedule message.
//
// Published separately from state so consumers that only care about
// schedule boundaries (e.g. pre-heat controllers) avoid the full state
// churn.
type SchedulePayload struct {
	Device       string          `json:"device"`
	Profile      int             `json:"profile"`
	CurrentLevel *schedule.Event `json:"current_level,omitempty"`
	NextLevel    *schedule.Event `json:"next_level,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// SystemPayload is the retained hub-wide state message.
type SystemPayload struct {
	System    *neohub.SystemSettings `json:"system,omitempty"`
	Live      *neohub.LiveFlags      `json:"live,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Health status values.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
	HealthStopping = "stopping"
)

// HealthMessage is the periodic bridge health report.
type HealthMessage struct {
	ClientID      string    `json:"client_id"`
	Version       string    `json:"version"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	Devices       int       `json:"devices"`
	LastPoll      time.Time `json:"last_poll,omitempty"`
	PollFailures  int       `json:"poll_failures"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}
