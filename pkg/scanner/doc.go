// Package scanner implements the fan-out layer between a raw advertisement
// source and per-device consumers.
//
// A Dispatcher receives advertisements from a Source (the OS-specific scan
// transport, out of scope for this package) and routes each one to every
// callback whose Matcher accepts it. Callbacks are registered with
// RegisterCallback and removed by invoking the returned cancel function.
//
// The Dispatcher also owns an unavailability Tracker: every delivered
// advertisement marks its address as seen, and consumers that registered
// interest via TrackUnavailable are notified once no advertisement has been
// seen for the configured timeout.
//
// # Ordering
//
// Deliveries for a single address are serialized: callbacks never observe
// two advertisements for the same address concurrently or out of arrival
// order. Deliveries for different addresses may interleave.
//
// # Shutdown
//
// Shutdown flips a host-wide teardown flag. Subsequent deliveries are
// dropped, and coordinators consult IsShuttingDown before doing update
// work.
package scanner
