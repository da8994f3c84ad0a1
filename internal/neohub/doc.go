// Package neohub implements the hub's JSON command protocol.
//
// The hub is the single authority for all thermostat, timer and plug state.
// This package provides:
//   - Two transports: legacy plaintext TCP (zero-terminated frames) and
//     token-authenticated WebSocket
//   - Typed command verbs for every hub operation the bridge uses
//   - A decode step that converts the hub's loosely-typed payloads into
//     explicit structs (DeviceState, SystemSettings, Profile, Snapshot)
//
// Decoding is deliberately defensive: firmware versions disagree on number
// encodings (bare vs quoted), time padding ("9:30" vs "09:30") and the raw
// schedule-format values. Whatever arrives is normalised once here so the
// rest of the bridge works with one canonical shape.
package neohub
