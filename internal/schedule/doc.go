// Package schedule resolves weekly heating and timer profiles against a
// device's current local day and time.
//
// The hub stores schedules in one of four formats: a single universal day,
// a weekday/weekend split, a full seven-day week, or none at all. Lookups
// fold the device's weekday onto the format's schedule-day-key, filter out
// unset slots, then search for the level active now or the next upcoming
// one. When the answer lies outside the current day (early mornings before
// the first boundary, evenings after the last), the resolver walks adjacent
// days until a populated one is found.
//
// All comparisons operate on zero-padded HH:MM strings, which order
// lexicographically the same as clock time. No real calendar is involved:
// the hub reports its own notion of weekday and local time and the resolver
// follows it.
package schedule
