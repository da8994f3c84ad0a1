// Package bridge connects the polled hub state to the MQTT surface.
//
// On every completed poll the bridge publishes, per device, a retained
// state message and a retained resolved-schedule message, plus one
// retained hub-wide state message. Payload change detection (ignoring
// timestamps) keeps an idle installation quiet on the broker.
//
// Commands arrive on per-device command topics and the hub-wide system
// command topic, are dispatched through the command handler, and produce
// an acknowledgement message carrying the request's correlation ID. After
// a successful command the bridge republishes immediately so the
// optimistic state reaches consumers without waiting for the next poll.
//
// Local history recording and InfluxDB telemetry are optional hooks fed
// from the same poll cycle.
package bridge
