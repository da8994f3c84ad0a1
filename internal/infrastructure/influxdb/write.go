package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTemperature writes a thermostat temperature sample.
//
// This is the primary telemetry point recorded on every poll cycle.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - device: Zone name as configured on the hub (e.g., "Lounge")
//   - current: Measured air temperature in the hub's configured unit
//   - target: Current set temperature
//   - floor: Floor sensor reading, 0 when the device has no floor probe
//
// Example:
//
//	client.WriteTemperature("Lounge", 19.4, 21.0, 23.1)
func (c *Client) WriteTemperature(device string, current, target, floor float64) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"current": current,
		"target":  target,
	}
	if floor > 0 {
		fields["floor"] = floor
	}

	point := write.NewPoint(
		"temperature",
		map[string]string{
			"device": device,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDeviceStatus writes binary state indicators for a device.
//
// Used for tracking demand and availability over time.
//
// Parameters:
//   - device: Zone name as configured on the hub
//   - heating: Whether the device is currently calling for heat
//   - online: Whether the device is reachable via the hub mesh
func (c *Client) WriteDeviceStatus(device string, heating, online bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_status",
		map[string]string{
			"device": device,
		},
		map[string]interface{}{
			"heating": boolField(heating),
			"online":  boolField(online),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteHubStatus writes a hub connectivity sample.
//
// Recorded once per poll cycle so dashboards can distinguish "no data
// because the hub was down" from "no data because the bridge was down".
//
// Parameters:
//   - reachable: Whether the last poll succeeded
//   - deviceCount: Number of devices reported by the hub
//   - failures: Consecutive poll failures at the time of writing
func (c *Client) WriteHubStatus(reachable bool, deviceCount, failures int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"hub_status",
		map[string]string{},
		map[string]interface{}{
			"reachable":    boolField(reachable),
			"device_count": deviceCount,
			"failures":     failures,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// boolField converts a bool to an integer field value.
//
// InfluxDB stores booleans natively, but integer 0/1 fields graph
// directly without a mapping step in most dashboard tools.
func boolField(v bool) int {
	if v {
		return 1
	}
	return 0
}
