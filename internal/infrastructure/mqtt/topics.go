package mqtt

import "fmt"

// Topic prefixes for the devman MQTT surface.
//
// All topics use the flat scheme: devman/{category}/{family}/{address}.
// Device addresses never contain '/', '+' or '#', so they are safe as
// a single topic level.
const (
	// TopicPrefix is the base for all devman topics.
	TopicPrefix = "devman"

	// TopicPrefixEvents is the base for hot-plug event topics.
	TopicPrefixEvents = "devman/events"

	// TopicPrefixDevices is the base for per-device topics.
	TopicPrefixDevices = "devman/devices"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "devman/system"
)

// Topics provides builders for devman MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	added := topics.Event("added", "usb", "1-2")
//	// Returns: "devman/events/added/usb/1-2"
type Topics struct{}

// Event returns the topic for one hot-plug event.
//
// Example: devman/events/added/pci/00:02.0
func (Topics) Event(kind, family, address string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefixEvents, kind, family, address)
}

// DeviceState returns the topic for a device's registry state.
//
// Example: devman/devices/pci/00:02.0/state
func (Topics) DeviceState(family, address string) string {
	return fmt.Sprintf("%s/%s/%s/state", TopicPrefixDevices, family, address)
}

// SystemStatus returns the system status topic.
//
// Example: devman/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// SystemShutdown returns the shutdown signal topic.
//
// Example: devman/system/shutdown
func (Topics) SystemShutdown() string {
	return fmt.Sprintf("%s/shutdown", TopicPrefixSystem)
}

// AllEvents returns a pattern matching every hot-plug event.
//
// Pattern: devman/events/#
func (Topics) AllEvents() string {
	return TopicPrefixEvents + "/#"
}

// EventsOfKind returns a pattern matching one event kind on every bus.
//
// Pattern: devman/events/added/+/+
func (Topics) EventsOfKind(kind string) string {
	return fmt.Sprintf("%s/%s/+/+", TopicPrefixEvents, kind)
}

// AllDeviceStates returns a pattern matching every device state topic.
//
// Pattern: devman/devices/+/+/state
func (Topics) AllDeviceStates() string {
	return TopicPrefixDevices + "/+/+/state"
}

// AllTopics returns a pattern matching all devman topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: devman/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
