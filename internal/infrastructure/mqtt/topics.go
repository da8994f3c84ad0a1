package mqtt

import "fmt"

// Topic prefixes for the bridge's MQTT surface.
//
// All topics use the flat scheme: heatbridge/{category}/{device_or_id}
const (
	// TopicPrefix is the base for all bridge topics.
	TopicPrefix = "heatbridge"

	// TopicPrefixSystem is the base for hub-wide topics.
	TopicPrefixSystem = "heatbridge/system"
)

// Topics provides builders for the bridge's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("lounge")
//	// Returns: "heatbridge/state/lounge"
type Topics struct{}

// DeviceState returns the topic for one device's state updates.
//
// Example: heatbridge/state/lounge
func (Topics) DeviceState(device string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, device)
}

// DeviceCommand returns the topic commands for one device arrive on.
//
// Example: heatbridge/command/lounge
func (Topics) DeviceCommand(device string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, device)
}

// DeviceAck returns the topic command acknowledgements are published to.
//
// Example: heatbridge/ack/lounge
func (Topics) DeviceAck(device string) string {
	return fmt.Sprintf("%s/ack/%s", TopicPrefix, device)
}

// DeviceSchedule returns the topic for one device's resolved schedule
// levels (current and next boundary).
//
// Example: heatbridge/schedule/lounge
func (Topics) DeviceSchedule(device string) string {
	return fmt.Sprintf("%s/schedule/%s", TopicPrefix, device)
}

// Health returns the bridge health topic.
//
// Example: heatbridge/health
func (Topics) Health() string {
	return fmt.Sprintf("%s/health", TopicPrefix)
}

// SystemStatus returns the bridge online/offline status topic, also used
// for the Last Will message.
//
// Example: heatbridge/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// SystemState returns the topic for hub-wide state (away, holiday,
// schedule format).
//
// Example: heatbridge/system/state
func (Topics) SystemState() string {
	return fmt.Sprintf("%s/state", TopicPrefixSystem)
}

// SystemCommand returns the topic hub-wide commands arrive on (away,
// holiday, profile management).
//
// Example: heatbridge/system/command
func (Topics) SystemCommand() string {
	return fmt.Sprintf("%s/command", TopicPrefixSystem)
}

// SystemAck returns the topic hub-wide command acknowledgements are
// published to.
//
// Example: heatbridge/system/ack
func (Topics) SystemAck() string {
	return fmt.Sprintf("%s/ack", TopicPrefixSystem)
}

// AllDeviceCommands returns a pattern matching every device command topic.
//
// Pattern: heatbridge/command/+
func (Topics) AllDeviceCommands() string {
	return fmt.Sprintf("%s/command/+", TopicPrefix)
}

// AllDeviceStates returns a pattern matching every device state topic.
//
// Pattern: heatbridge/state/+
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefix)
}

// AllTopics returns a pattern matching every bridge topic.
// Use with caution - this receives ALL traffic.
//
// Pattern: heatbridge/#
func (Topics) AllTopics() string {
	return "heatbridge/#"
}

// CommandDevice extracts the device name from a device command topic.
// Returns false when the topic is not a device command topic.
func (Topics) CommandDevice(topic string) (string, bool) {
	prefix := TopicPrefix + "/command/"
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return "", false
	}
	return topic[len(prefix):], true
}
