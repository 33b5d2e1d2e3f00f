package coordinator

import "time"

// Address returns the device address this coordinator owns.
func (c *Coordinator[T]) Address() string {
	return c.address
}

// Name returns the last-seen advertised display name.
func (c *Coordinator[T]) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// Present reports whether the device is currently considered reachable.
func (c *Coordinator[T]) Present() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.present
}

// LastUpdateSuccess reports whether the most recent parse succeeded.
func (c *Coordinator[T]) LastUpdateSuccess() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdateSuccess
}

// Available reports whether the device is available: present and with a
// successful last update.
func (c *Coordinator[T]) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.present && c.lastUpdateSuccess
}

// LastSeen returns the receipt time of the most recent advertisement.
// Diagnostic only; the unavailability tracker owns the actual timeout.
func (c *Coordinator[T]) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// Devices returns a copy of the accumulated device descriptors, keyed by
// sub-device ID (empty string = the physical device).
func (c *Coordinator[T]) Devices() map[string]DeviceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]DeviceInfo, len(c.devices))
	for id, info := range c.devices {
		out[id] = info
	}
	return out
}

// EntityDescriptions returns a copy of the accumulated entity metadata.
func (c *Coordinator[T]) EntityDescriptions() map[EntityKey]EntityDescription {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[EntityKey]EntityDescription, len(c.entityDescriptions))
	for key, desc := range c.entityDescriptions {
		out[key] = desc
	}
	return out
}

// EntityNames returns a copy of the accumulated entity display names.
func (c *Coordinator[T]) EntityNames() map[EntityKey]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[EntityKey]string, len(c.entityNames))
	for key, name := range c.entityNames {
		out[key] = name
	}
	return out
}

// EntityData returns a copy of the accumulated entity values.
func (c *Coordinator[T]) EntityData() map[EntityKey]T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[EntityKey]T, len(c.entityData))
	for key, value := range c.entityData {
		out[key] = value
	}
	return out
}

// GetDevice returns the descriptor for one sub-device ID.
func (c *Coordinator[T]) GetDevice(deviceID string) (DeviceInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.devices[deviceID]
	return info, ok
}

// GetEntityDescription returns the metadata for one entity key.
func (c *Coordinator[T]) GetEntityDescription(key EntityKey) (EntityDescription, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	desc, ok := c.entityDescriptions[key]
	return desc, ok
}

// GetEntityName returns the display name for one entity key.
func (c *Coordinator[T]) GetEntityName(key EntityKey) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.entityNames[key]
	return name, ok
}

// GetEntityData returns the value for one entity key.
func (c *Coordinator[T]) GetEntityData(key EntityKey) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entityData[key]
	return value, ok
}

// ListenerCount returns the number of registered listeners, global and
// keyed. Mostly useful in tests.
func (c *Coordinator[T]) ListenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.listeners)
	for _, group := range c.keyListeners {
		n += len(group)
	}
	return n
}

// Running reports whether the upstream subscriptions are active.
func (c *Coordinator[T]) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelAdvertisements != nil
}
