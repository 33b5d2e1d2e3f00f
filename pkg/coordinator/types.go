package coordinator

import (
	"fmt"

	"github.com/blecore/blecore-go/pkg/adv"
)

// EntityKey identifies one logical sub-entity of a physical device.
//
// Key names the measurement or control ("temperature", "battery").
// DeviceID scopes it to a sub-device reachable through the physical
// device; empty means the physical device itself.
//
// EntityKey is a comparable value type and is used as a map key
// throughout the package.
type EntityKey struct {
	Key      string
	DeviceID string
}

// String renders the key for logs and unique IDs.
func (k EntityKey) String() string {
	if k.DeviceID == "" {
		return k.Key
	}
	return fmt.Sprintf("%s@%s", k.Key, k.DeviceID)
}

// DeviceInfo describes a device or sub-device. All fields are optional;
// merges only overwrite what a later update actually carries.
type DeviceInfo struct {
	Name         string
	Manufacturer string
	Model        string
	SWVersion    string
}

// EntityDescription is static metadata for one entity. It rarely changes
// after the entity is first seen.
type EntityDescription struct {
	Key         EntityKey
	Name        string
	DeviceClass string
	Unit        string
	StateClass  string
}

// DataUpdate is the result of parsing one advertisement: partial mappings
// to merge into the coordinator's accumulated state. Any subset of the
// maps may be populated; a nil map means "no new information", never
// "cleared".
//
// The type parameter T is the domain-specific entity value type, fixed
// per coordinator instance.
type DataUpdate[T any] struct {
	// Devices maps a sub-device ID to its descriptor. The empty string
	// keys the physical device itself.
	Devices map[string]DeviceInfo

	// EntityDescriptions maps entity keys to their static metadata.
	EntityDescriptions map[EntityKey]EntityDescription

	// EntityNames maps entity keys to display names.
	EntityNames map[EntityKey]string

	// EntityData maps entity keys to parsed values.
	EntityData map[EntityKey]T
}

// UpdateFunc parses one advertisement into a DataUpdate.
//
// It is supplied by the caller and treated as opaque: it must be
// synchronous and should be fast, since it runs on the shared dispatch
// path. An error return (or a panic, which is recovered) marks the
// device's last update as failed. Returning (nil, nil) is a contract
// violation and is surfaced as ErrInvalidUpdate.
type UpdateFunc[T any] func(a adv.Advertisement) (*DataUpdate[T], error)

// UpdateListener receives each DataUpdate as it is processed. The update
// is nil for an unavailability cycle (the device went silent, no data was
// produced). Listeners must treat the update and all coordinator-exposed
// state as read-only.
type UpdateListener[T any] func(update *DataUpdate[T])
