package adv

import (
	"strings"
	"time"
)

// TxPowerUnknown is the TxPower value used when the advertisement did not
// include a TX power level.
const TxPowerUnknown = -127

// Advertisement is one received BLE advertisement.
//
// The maps and slices are owned by the producer and must not be mutated
// after the Advertisement has been handed off.
type Advertisement struct {
	// Address is the canonical device address (see NormalizeAddress).
	Address string

	// Name is the advertised local name. Empty if the packet carried none.
	Name string

	// RSSI is the received signal strength in dBm.
	RSSI int

	// TxPower is the advertised TX power level in dBm, or TxPowerUnknown.
	TxPower int

	// ManufacturerData maps a Bluetooth SIG company identifier to its payload.
	ManufacturerData map[uint16][]byte

	// ServiceData maps a service UUID to its payload.
	ServiceData map[string][]byte

	// ServiceUUIDs lists the advertised service UUIDs.
	ServiceUUIDs []string

	// Connectable reports whether the peripheral accepts connections.
	Connectable bool

	// Time is when the advertisement was received. The value carries a
	// monotonic clock reading, so time.Since is safe across wall-clock
	// adjustments.
	Time time.Time
}

// Handler processes one advertisement.
type Handler func(Advertisement)

// Filter reports whether an advertisement matches a condition.
type Filter func(Advertisement) bool

// NormalizeAddress returns the canonical uppercase form of a device address.
func NormalizeAddress(address string) string {
	return strings.ToUpper(strings.TrimSpace(address))
}
