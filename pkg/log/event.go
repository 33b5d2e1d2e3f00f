package log

import (
	"time"
)

// Event represents one ingestion event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// Address is the device address the event concerns.
	Address string `cbor:"2,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"3,keyasint"`

	// DeviceName is the last-seen advertised name, if known.
	DeviceName string `cbor:"4,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Adv         *AdvEvent         `cbor:"5,keyasint,omitempty"` // Raw advertisement
	StateChange *StateChangeEvent `cbor:"6,keyasint,omitempty"` // Coordinator/scanner state
	Error       *ErrorEventData   `cbor:"7,keyasint,omitempty"` // Failures at any point
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryAdvertisement indicates a received advertisement.
	CategoryAdvertisement Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryAdvertisement:
		return "ADVERTISEMENT"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// AdvEvent captures a received advertisement.
// Payloads are summarized by size rather than stored; the capture trace is
// for diagnosing flow, not for replaying packets.
type AdvEvent struct {
	// RSSI is the received signal strength in dBm.
	RSSI int `cbor:"1,keyasint"`

	// ManufacturerDataLen is the total manufacturer data payload size.
	ManufacturerDataLen int `cbor:"2,keyasint,omitempty"`

	// ServiceDataLen is the total service data payload size.
	ServiceDataLen int `cbor:"3,keyasint,omitempty"`

	// ServiceCount is the number of advertised service UUIDs.
	ServiceCount int `cbor:"4,keyasint,omitempty"`

	// Connectable reports whether the peripheral accepts connections.
	Connectable bool `cbor:"5,keyasint,omitempty"`
}

// StateEntity identifies what kind of entity changed state.
type StateEntity uint8

const (
	// EntityCoordinator is a per-device coordinator.
	EntityCoordinator StateEntity = 0
	// EntityScanner is the scan dispatcher.
	EntityScanner StateEntity = 1
	// EntityTracker is the unavailability tracker.
	EntityTracker StateEntity = 2
)

// String returns the entity name.
func (e StateEntity) String() string {
	switch e {
	case EntityCoordinator:
		return "COORDINATOR"
	case EntityScanner:
		return "SCANNER"
	case EntityTracker:
		return "TRACKER"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures a state transition.
type StateChangeEvent struct {
	// Entity that changed state.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the state before the transition.
	OldState string `cbor:"2,keyasint"`

	// NewState is the state after the transition.
	NewState string `cbor:"3,keyasint"`

	// Reason explains why the transition happened (optional).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// ErrorKind classifies an error event.
type ErrorKind uint8

const (
	// ErrorParse is a transient failure of the caller-supplied update
	// function (error return or panic).
	ErrorParse ErrorKind = 0
	// ErrorInvalidUpdate is a contract violation: the update function
	// returned neither data nor an error.
	ErrorInvalidUpdate ErrorKind = 1
	// ErrorListener is a panic inside a registered listener callback.
	ErrorListener ErrorKind = 2
)

// String returns the error kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrorParse:
		return "PARSE"
	case ErrorInvalidUpdate:
		return "INVALID_UPDATE"
	case ErrorListener:
		return "LISTENER"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures an error at any point in the ingestion path.
type ErrorEventData struct {
	// Kind classifies the error.
	Kind ErrorKind `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes where the error occurred (optional).
	Context string `cbor:"3,keyasint,omitempty"`
}

// NewAdvEvent creates an advertisement event.
func NewAdvEvent(address, name string, payload AdvEvent) Event {
	return Event{
		Timestamp:  time.Now(),
		Address:    address,
		Category:   CategoryAdvertisement,
		DeviceName: name,
		Adv:        &payload,
	}
}

// NewStateEvent creates a state-change event.
func NewStateEvent(address string, payload StateChangeEvent) Event {
	return Event{
		Timestamp:   time.Now(),
		Address:     address,
		Category:    CategoryState,
		StateChange: &payload,
	}
}

// NewErrorEvent creates an error event.
func NewErrorEvent(address, name string, payload ErrorEventData) Event {
	return Event{
		Timestamp:  time.Now(),
		Address:    address,
		Category:   CategoryError,
		DeviceName: name,
		Error:      &payload,
	}
}
