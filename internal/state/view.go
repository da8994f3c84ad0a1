package state

import (
	"time"

	"github.com/nerrad567/gray-logic-heatbridge/internal/neohub"
	"github.com/nerrad567/gray-logic-heatbridge/internal/schedule"
)

// staleAfter is how old a snapshot may grow before devices in it are
// reported unavailable. Three missed polls at the default interval.
const staleAfter = 3 * defaultPollInterval

// DeviceView is a read facade over one named device in the coordinator's
// snapshot. Views are cheap throwaway values; construct one per lookup
// rather than caching it.
type DeviceView struct {
	coord *Coordinator
	name  string
}

// Device returns a view over the named device. The device does not have to
// exist yet; lookups on a missing device report unavailable.
func (c *Coordinator) Device(name string) DeviceView {
	return DeviceView{coord: c, name: name}
}

// DeviceNames returns the names of all devices in the current snapshot.
func (c *Coordinator) DeviceNames() []string {
	snap := c.Snapshot()
	if snap == nil {
		return nil
	}
	names := make([]string, 0, len(snap.Devices))
	for name := range snap.Devices {
		names = append(names, name)
	}
	return names
}

// Name returns the device name the view was created with.
func (v DeviceView) Name() string {
	return v.name
}

// Data returns the device's current state. ErrNoSnapshot before the first
// refresh, ErrDeviceNotFound when the hub does not know the name.
func (v DeviceView) Data() (*neohub.DeviceState, error) {
	snap := v.coord.Snapshot()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	dev, ok := snap.Devices[v.name]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return dev, nil
}

// System returns hub-wide settings, or ErrNoSnapshot before the first
// refresh.
func (v DeviceView) System() (*neohub.SystemSettings, error) {
	snap := v.coord.Snapshot()
	if snap == nil || snap.System == nil {
		return nil, ErrNoSnapshot
	}
	return snap.System, nil
}

// Available reports whether the device exists, is reachable over the mesh
// and the snapshot it came from is fresh enough to trust.
func (v DeviceView) Available() bool {
	dev, err := v.Data()
	if err != nil {
		return false
	}
	if time.Since(v.coord.UpdatedAt()) > staleAfter {
		return false
	}
	return dev.Online
}

// CurrentScheduleLevel resolves the schedule level active now for the
// device's active profile. The boolean is false when the device has no
// usable schedule.
func (v DeviceView) CurrentScheduleLevel() (schedule.Event, bool) {
	// Read the snapshot once so the device and profiles come from the
	// same poll.
	snap := v.coord.Snapshot()
	if snap == nil {
		return schedule.Event{}, false
	}
	dev, ok := snap.Devices[v.name]
	if !ok {
		return schedule.Event{}, false
	}
	return schedule.CurrentLevel(dev.ActiveProfile, dev, snap)
}

// NextScheduleLevel resolves the next upcoming schedule level for the
// device's active profile.
func (v DeviceView) NextScheduleLevel() (schedule.Event, bool) {
	snap := v.coord.Snapshot()
	if snap == nil {
		return schedule.Event{}, false
	}
	dev, ok := snap.Devices[v.name]
	if !ok {
		return schedule.Event{}, false
	}
	return schedule.NextLevel(dev.ActiveProfile, dev, snap)
}
