// Package command validates and executes device commands against the hub.
//
// Every operation follows one discipline: arguments and device capability
// are validated against the current snapshot before any hub call, and the
// cached state is only mutated optimistically after the hub acknowledges.
// A failed or rejected command therefore never corrupts the snapshot.
//
// Dispatch accepts wire-form requests (MQTT payloads, HTTP bodies) and
// routes them to the typed operations, assigning a correlation id when the
// sender did not provide one.
package command
