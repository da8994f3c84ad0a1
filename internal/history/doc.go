// Package history records per-device temperature samples to local SQLite.
//
// The recorder writes one row per online thermostat per poll cycle and
// serves range queries for the HTTP API. A retention window keeps the
// database file bounded; RunPruner deletes expired rows on a timer.
//
// InfluxDB (internal/infrastructure/influxdb) covers long-term dashboard
// telemetry; this package exists so a bridge without an InfluxDB instance
// still answers "what did the lounge do overnight".
package history
