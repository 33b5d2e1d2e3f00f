// Package adv defines the advertisement value type shared by the scanning
// layer and the coordination core.
//
// An Advertisement is an immutable snapshot of one received BLE broadcast.
// Advertisements are partial: a single packet rarely carries everything a
// device exposes, so consumers accumulate state across many packets (see
// package coordinator).
//
// # Addresses
//
// Device addresses are MAC-like strings ("AA:BB:CC:DD:EE:FF"). All lookups
// use the canonical uppercase form produced by NormalizeAddress; the
// scanning layer normalizes on receipt so downstream code can compare
// addresses directly.
package adv
