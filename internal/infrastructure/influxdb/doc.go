// Package influxdb provides InfluxDB connectivity for the heat bridge.
//
// It wraps the official influxdb-client-go v2 library with bridge-specific
// patterns for connection management, telemetry writing, and health
// monitoring.
//
// # Purpose
//
// This package handles time-series storage for:
//   - Per-zone temperature samples (current, target, floor)
//   - Device demand and availability indicators
//   - Hub connectivity status
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "home",
//	    Bucket: "heating",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteTemperature("Lounge", 19.4, 21.0, 0)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback. Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config settings (batch_size,
// flush_interval). A 30-second poll across a typical installation produces
// a handful of points per cycle, so one flush interval normally covers a
// whole poll.
package influxdb
