// Package coordinator turns a stream of raw, partial advertisements for
// one device address into an accumulated logical state snapshot, an
// availability signal, and fan-out notifications for any number of
// consumers.
//
// # Model
//
// A BLE peripheral broadcasts small, partial packets. A caller-supplied
// update function parses each packet into a DataUpdate: four partial maps
// (sub-devices, entity descriptions, entity names, entity data) keyed by
// EntityKey. The Coordinator merges every update into its accumulated
// state key-by-key, last write wins; a later update omitting a key never
// clears it.
//
// # Listeners and lazy start
//
// Consumers subscribe with AddListener or AddEntityKeyListener and are
// handed each DataUpdate as it arrives (nil for an unavailability cycle).
// The Coordinator only holds upstream scan and unavailability
// subscriptions while at least one listener is registered: the first
// listener starts them, removing the last one stops them. The check is
// re-evaluated unconditionally after every add and remove.
//
// # Fault isolation
//
// The update function and every listener run behind a panic boundary. A
// buggy parser marks the device's last update as failed and is logged; a
// panicking listener is logged and delivery continues to the remaining
// listeners. Nothing propagates back into the shared dispatch path.
//
// # Availability
//
// Available is present AND lastUpdateSuccess: a device is unavailable
// while it has gone silent past the unavailability timeout, or while its
// most recent parse failed.
package coordinator
