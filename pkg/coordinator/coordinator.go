package coordinator

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/blecore/blecore-go/pkg/adv"
	"github.com/blecore/blecore-go/pkg/log"
)

// AdvertisementRegistrar is the upstream scanning layer: it delivers raw
// advertisements for one device address until the returned cancel function
// is invoked. scanner.Dispatcher satisfies this.
type AdvertisementRegistrar interface {
	RegisterAddressCallback(address string, h adv.Handler) (cancel func(), err error)
}

// UnavailabilityTracker invokes the handler when no advertisement for the
// address has been seen for a configured timeout. scanner.Tracker
// satisfies this.
type UnavailabilityTracker interface {
	TrackUnavailable(address string, handler func(address string)) (cancel func(), err error)
}

// Config configures a Coordinator.
type Config[T any] struct {
	// Address is the device address this coordinator owns. Required.
	Address string

	// UpdateFunc parses advertisements for this device. Required.
	UpdateFunc UpdateFunc[T]

	// Registrar is the upstream scanning layer. Required.
	Registrar AdvertisementRegistrar

	// Tracker is the unavailability tracker. Required.
	Tracker UnavailabilityTracker

	// Logger receives ingestion events. Nil disables capture.
	Logger log.Logger

	// ShuttingDown reports whether the host process is tearing down.
	// Nil means never.
	ShuttingDown func() bool
}

// Coordinator owns the accumulated state for one physical device address,
// merges incoming DataUpdates, manages listener subscriptions, and lazily
// starts and stops the upstream subscriptions based on listener demand.
//
// All methods are safe for concurrent use. Strict arrival-order processing
// per address is provided by the dispatcher's per-address serialization;
// the internal mutex exists because unavailability callbacks arrive on a
// timer goroutine.
type Coordinator[T any] struct {
	mu sync.Mutex

	address      string
	updateFunc   UpdateFunc[T]
	registrar    AdvertisementRegistrar
	tracker      UnavailabilityTracker
	logger       log.Logger
	shuttingDown func() bool

	// Global listeners, in registration order.
	listeners []*listener[T]

	// Keyed listeners, fanned out after the global set, groups in
	// key-insertion order.
	keyListeners map[EntityKey][]*listener[T]
	keyOrder     []EntityKey

	// Upstream subscription handles. Non-nil iff running.
	cancelAdvertisements   func()
	cancelTrackUnavailable func()

	name              string
	present           bool
	lastUpdateSuccess bool
	lastSeen          time.Time

	// Accumulated state. Keys are never evicted.
	devices            map[string]DeviceInfo
	entityDescriptions map[EntityKey]EntityDescription
	entityNames        map[EntityKey]string
	entityData         map[EntityKey]T
}

type listener[T any] struct {
	fn UpdateListener[T]
}

// New creates a Coordinator for cfg.Address. No upstream subscription is
// made until the first listener is added.
func New[T any](cfg Config[T]) (*Coordinator[T], error) {
	address := adv.NormalizeAddress(cfg.Address)
	if address == "" {
		return nil, ErrNoAddress
	}
	if cfg.UpdateFunc == nil {
		return nil, ErrNilUpdateFunc
	}
	if cfg.Registrar == nil {
		return nil, ErrNilRegistrar
	}
	if cfg.Tracker == nil {
		return nil, ErrNilTracker
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}

	return &Coordinator[T]{
		address:            address,
		updateFunc:         cfg.UpdateFunc,
		registrar:          cfg.Registrar,
		tracker:            cfg.Tracker,
		logger:             logger,
		shuttingDown:       cfg.ShuttingDown,
		keyListeners:       make(map[EntityKey][]*listener[T]),
		lastUpdateSuccess:  true,
		devices:            make(map[string]DeviceInfo),
		entityDescriptions: make(map[EntityKey]EntityDescription),
		entityNames:        make(map[EntityKey]string),
		entityData:         make(map[EntityKey]T),
	}, nil
}

// AddListener registers a global listener invoked on every update cycle.
// Registering the first listener starts the upstream subscriptions. The
// returned cancel function removes exactly this listener and re-evaluates
// whether the subscriptions should stop; calling it more than once is a
// no-op.
//
// fn must not be nil.
func (c *Coordinator[T]) AddListener(fn UpdateListener[T]) (cancel func()) {
	if fn == nil {
		panic("coordinator: nil listener")
	}
	l := &listener[T]{fn: fn}

	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.handleListenersChanged()
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, cur := range c.listeners {
				if cur == l {
					c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
					break
				}
			}
			c.handleListenersChanged()
		})
	}
}

// AddEntityKeyListener registers a listener scoped to one EntityKey.
//
// Scoping is declarative only: keyed listeners currently receive every
// update cycle, not just cycles touching their key, and must filter by
// re-reading coordinator state themselves. Consumers rely on that
// behavior, so it is deliberate; narrowing it would be a breaking change.
//
// Lazy start/stop and cancel semantics match AddListener. Removing the
// last listener for a key drops the key's listener set entirely.
func (c *Coordinator[T]) AddEntityKeyListener(fn UpdateListener[T], key EntityKey) (cancel func()) {
	if fn == nil {
		panic("coordinator: nil listener")
	}
	l := &listener[T]{fn: fn}

	c.mu.Lock()
	if _, ok := c.keyListeners[key]; !ok {
		c.keyOrder = append(c.keyOrder, key)
	}
	c.keyListeners[key] = append(c.keyListeners[key], l)
	c.handleListenersChanged()
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			group := c.keyListeners[key]
			for i, cur := range group {
				if cur == l {
					group = append(group[:i], group[i+1:]...)
					break
				}
			}
			if len(group) == 0 {
				delete(c.keyListeners, key)
				for i, cur := range c.keyOrder {
					if cur == key {
						c.keyOrder = append(c.keyOrder[:i], c.keyOrder[i+1:]...)
						break
					}
				}
			} else {
				c.keyListeners[key] = group
			}
			c.handleListenersChanged()
		})
	}
}

// AddEntitiesListener materializes an EntityBinding for every entity key
// the first time it appears in an update's EntityDescriptions. Newly
// constructed bindings are forwarded to sink in one batch per update; a
// key is never announced twice. Internally this is a global listener, so
// it participates in lazy start/stop, and the returned cancel removes it.
func (c *Coordinator[T]) AddEntitiesListener(factory BindingFactory[T], sink AddSink[T]) (cancel func()) {
	if factory == nil || sink == nil {
		panic("coordinator: nil entities listener argument")
	}

	// The materialized-key set is owned by this subscription for its
	// whole lifetime; nothing else may alias it.
	created := make(map[EntityKey]struct{})

	return c.AddListener(func(update *DataUpdate[T]) {
		if update == nil {
			return
		}
		fresh := make([]EntityKey, 0, len(update.EntityDescriptions))
		for key := range update.EntityDescriptions {
			if _, ok := created[key]; ok {
				continue
			}
			created[key] = struct{}{}
			fresh = append(fresh, key)
		}
		if len(fresh) == 0 {
			return
		}
		// Deterministic batch order for testability.
		sort.Slice(fresh, func(i, j int) bool {
			if fresh[i].Key != fresh[j].Key {
				return fresh[i].Key < fresh[j].Key
			}
			return fresh[i].DeviceID < fresh[j].DeviceID
		})
		bindings := make([]*EntityBinding[T], 0, len(fresh))
		for _, key := range fresh {
			bindings = append(bindings, factory(c, key, update.EntityDescriptions[key]))
		}
		sink(bindings)
	})
}

// handleListenersChanged re-evaluates the lazy start/stop state machine.
// It runs unconditionally after every listener mutation and is idempotent.
// Caller must hold mu.
func (c *Coordinator[T]) handleListenersChanged() {
	hasListeners := len(c.listeners) > 0 || len(c.keyListeners) > 0
	running := c.cancelAdvertisements != nil

	switch {
	case running && !hasListeners:
		c.stop()
	case !running && hasListeners:
		c.start()
	}
}

// start subscribes to the upstream scanning layer and the unavailability
// tracker. Caller must hold mu.
func (c *Coordinator[T]) start() {
	cancelAdv, err := c.registrar.RegisterAddressCallback(c.address, c.HandleAdvertisement)
	if err != nil {
		c.logger.Log(log.NewErrorEvent(c.address, c.name, log.ErrorEventData{
			Kind:    log.ErrorParse,
			Message: err.Error(),
			Context: "registering advertisement callback",
		}))
		return
	}
	cancelTrack, err := c.tracker.TrackUnavailable(c.address, c.HandleUnavailable)
	if err != nil {
		cancelAdv()
		c.logger.Log(log.NewErrorEvent(c.address, c.name, log.ErrorEventData{
			Kind:    log.ErrorParse,
			Message: err.Error(),
			Context: "registering unavailability tracking",
		}))
		return
	}

	c.cancelAdvertisements = cancelAdv
	c.cancelTrackUnavailable = cancelTrack

	c.logger.Log(log.NewStateEvent(c.address, log.StateChangeEvent{
		Entity:   log.EntityCoordinator,
		OldState: "STOPPED",
		NewState: "RUNNING",
		Reason:   "listener added",
	}))
}

// stop cancels both upstream subscriptions. Idempotent: handles are nulled
// so a stale handle cannot be invoked twice. Caller must hold mu.
func (c *Coordinator[T]) stop() {
	if c.cancelAdvertisements != nil {
		c.cancelAdvertisements()
		c.cancelAdvertisements = nil
	}
	if c.cancelTrackUnavailable != nil {
		c.cancelTrackUnavailable()
		c.cancelTrackUnavailable = nil
	}

	c.logger.Log(log.NewStateEvent(c.address, log.StateChangeEvent{
		Entity:   log.EntityCoordinator,
		OldState: "RUNNING",
		NewState: "STOPPED",
		Reason:   "no listeners",
	}))
}

// HandleAdvertisement is the sole data mutation entry point, invoked by
// the scanning layer once per raw advertisement for this coordinator's
// address. Failures of the update function never propagate: a buggy
// parser for one device must not crash the dispatch path shared by all
// devices.
func (c *Coordinator[T]) HandleAdvertisement(a adv.Advertisement) {
	c.mu.Lock()
	if a.Time.IsZero() {
		a.Time = time.Now()
	}
	c.lastSeen = a.Time
	c.name = a.Name
	c.present = true
	name := c.name
	c.mu.Unlock()

	// Skip update work during host teardown.
	if c.shuttingDown != nil && c.shuttingDown() {
		return
	}

	update, err := c.runUpdateFunc(a)
	if err == nil && update == nil {
		err = ErrInvalidUpdate
	}

	c.mu.Lock()
	if err != nil {
		wasSuccess := c.lastUpdateSuccess
		c.lastUpdateSuccess = false
		c.mu.Unlock()

		// One error event per failure episode; contract violations are
		// always surfaced.
		kind := log.ErrorParse
		if err == ErrInvalidUpdate {
			kind = log.ErrorInvalidUpdate
		}
		if wasSuccess || kind == log.ErrorInvalidUpdate {
			c.logger.Log(log.NewErrorEvent(c.address, name, log.ErrorEventData{
				Kind:    kind,
				Message: err.Error(),
				Context: "processing advertisement",
			}))
		}
		return
	}

	recovered := !c.lastUpdateSuccess
	c.lastUpdateSuccess = true

	// Merge key-by-key, last write wins. Keys are never removed.
	for id, info := range update.Devices {
		c.devices[id] = info
	}
	for key, desc := range update.EntityDescriptions {
		c.entityDescriptions[key] = desc
	}
	for key, entityName := range update.EntityNames {
		c.entityNames[key] = entityName
	}
	for key, value := range update.EntityData {
		c.entityData[key] = value
	}

	targets := c.snapshotListeners()
	c.mu.Unlock()

	if recovered {
		c.logger.Log(log.NewStateEvent(c.address, log.StateChangeEvent{
			Entity:   log.EntityCoordinator,
			OldState: "FAILING",
			NewState: "OK",
			Reason:   "update processing recovered",
		}))
	}

	c.dispatch(targets, update)
}

// HandleUnavailable is invoked by the unavailability tracker when no
// advertisement has been seen for the configured timeout. It marks the
// device absent and fans out one nil update cycle. Accumulated state is
// not cleared.
func (c *Coordinator[T]) HandleUnavailable(address string) {
	c.mu.Lock()
	c.present = false
	targets := c.snapshotListeners()
	c.mu.Unlock()

	c.logger.Log(log.NewStateEvent(c.address, log.StateChangeEvent{
		Entity:   log.EntityCoordinator,
		OldState: "PRESENT",
		NewState: "ABSENT",
		Reason:   "unavailability timeout",
	}))

	c.dispatch(targets, nil)
}

// runUpdateFunc invokes the caller-supplied update function behind a
// panic boundary.
func (c *Coordinator[T]) runUpdateFunc(a adv.Advertisement) (update *DataUpdate[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			update = nil
			err = fmt.Errorf("update func panicked: %v", r)
		}
	}()
	return c.updateFunc(a)
}

// snapshotListeners returns all listeners in fan-out order: global
// listeners first, then keyed groups in key-insertion order.
// Caller must hold mu.
func (c *Coordinator[T]) snapshotListeners() []*listener[T] {
	targets := make([]*listener[T], 0, len(c.listeners)+len(c.keyListeners))
	targets = append(targets, c.listeners...)
	for _, key := range c.keyOrder {
		targets = append(targets, c.keyListeners[key]...)
	}
	return targets
}

// dispatch delivers update to every listener, isolating panics so one
// failing listener cannot block delivery to the rest.
func (c *Coordinator[T]) dispatch(targets []*listener[T], update *DataUpdate[T]) {
	for _, l := range targets {
		c.invoke(l, update)
	}
}

func (c *Coordinator[T]) invoke(l *listener[T], update *DataUpdate[T]) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Log(log.NewErrorEvent(c.address, c.Name(), log.ErrorEventData{
				Kind:    log.ErrorListener,
				Message: fmt.Sprintf("listener panicked: %v", r),
				Context: "update fan-out",
			}))
		}
	}()
	l.fn(update)
}
