// Package state maintains the bridge's authoritative in-memory picture of
// the hub.
//
// A Coordinator polls the hub on a fixed interval and publishes immutable
// snapshots. Reads never touch the network: every consumer (MQTT fan-out,
// HTTP API, telemetry) works from the last published snapshot, which stays
// available through hub outages as stale data. Command handlers apply
// optimistic mutations through a single explicit entry point so interactive
// feedback does not wait for the next poll; the poll then restores the
// hub's authoritative values.
package state
