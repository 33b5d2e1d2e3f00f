package scanner

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/blecore/blecore-go/pkg/adv"
	"github.com/blecore/blecore-go/pkg/log"
)

// Matcher selects which advertisements a callback receives.
type Matcher struct {
	// Address restricts delivery to one device address.
	// Empty matches every address.
	Address string
}

func (m Matcher) matches(a adv.Advertisement) bool {
	return m.Address == "" || m.Address == a.Address
}

type callback struct {
	id      string
	matcher Matcher
	handler adv.Handler
}

// Dispatcher routes advertisements from a Source to registered callbacks
// and feeds the unavailability Tracker.
//
// All public methods are safe for concurrent use. Deliveries for a single
// address are serialized; callbacks may register or cancel other callbacks
// from within a delivery.
type Dispatcher struct {
	mu        sync.Mutex
	callbacks []*callback

	// Per-address delivery locks, created on first delivery.
	addrLocks map[string]*sync.Mutex

	tracker      *Tracker
	logger       log.Logger
	capture      bool
	shuttingDown atomic.Bool
}

// NewDispatcher creates a Dispatcher with the given configuration.
// The zero Config gets defaults applied.
func NewDispatcher(cfg Config, logger log.Logger) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Dispatcher{
		addrLocks: make(map[string]*sync.Mutex),
		tracker:   NewTracker(time.Duration(cfg.UnavailableTimeout), logger),
		logger:    logger,
		capture:   cfg.CaptureAdvertisements,
	}, nil
}

// Tracker returns the dispatcher's unavailability tracker.
func (d *Dispatcher) Tracker() *Tracker {
	return d.tracker
}

// RegisterCallback registers a handler for advertisements matching m.
// Handlers are invoked in registration order. The returned cancel function
// removes the registration; calling it more than once is a no-op.
func (d *Dispatcher) RegisterCallback(m Matcher, h adv.Handler) (cancel func(), err error) {
	if h == nil {
		return nil, ErrNilHandler
	}
	m.Address = adv.NormalizeAddress(m.Address)

	cb := &callback{
		id:      uuid.New().String(),
		matcher: m,
		handler: h,
	}

	d.mu.Lock()
	d.callbacks = append(d.callbacks, cb)
	d.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { d.remove(cb.id) }) }, nil
}

// RegisterAddressCallback registers a handler for a single device address.
func (d *Dispatcher) RegisterAddressCallback(address string, h adv.Handler) (cancel func(), err error) {
	if adv.NormalizeAddress(address) == "" {
		return nil, ErrNoAddress
	}
	return d.RegisterCallback(Matcher{Address: address}, h)
}

// CallbackCount returns the number of registered callbacks.
func (d *Dispatcher) CallbackCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.callbacks)
}

// Deliver routes one advertisement to every matching callback and marks
// the address as seen for unavailability tracking. Deliveries after
// Shutdown are dropped.
func (d *Dispatcher) Deliver(a adv.Advertisement) {
	if d.shuttingDown.Load() {
		return
	}
	a.Address = adv.NormalizeAddress(a.Address)
	if a.Address == "" {
		return
	}
	if a.Time.IsZero() {
		a.Time = time.Now()
	}

	// Serialize per address so callbacks see arrival order.
	addrLock := d.lockFor(a.Address)
	addrLock.Lock()
	defer addrLock.Unlock()

	d.tracker.Seen(a.Address)

	if d.capture {
		d.logger.Log(log.NewAdvEvent(a.Address, a.Name, log.AdvEvent{
			RSSI:                a.RSSI,
			ManufacturerDataLen: totalLen16(a.ManufacturerData),
			ServiceDataLen:      totalLen(a.ServiceData),
			ServiceCount:        len(a.ServiceUUIDs),
			Connectable:         a.Connectable,
		}))
	}

	// Snapshot matching handlers so callbacks can mutate registrations.
	d.mu.Lock()
	handlers := make([]adv.Handler, 0, len(d.callbacks))
	for _, cb := range d.callbacks {
		if cb.matcher.matches(a) {
			handlers = append(handlers, cb.handler)
		}
	}
	d.mu.Unlock()

	for _, h := range handlers {
		h(a)
	}
}

// Shutdown flips the host teardown flag and stops the tracker.
// Subsequent deliveries are dropped. Shutdown is idempotent.
func (d *Dispatcher) Shutdown() {
	if d.shuttingDown.Swap(true) {
		return
	}
	d.tracker.Stop()
	d.logger.Log(log.NewStateEvent("", log.StateChangeEvent{
		Entity:   log.EntityScanner,
		OldState: "RUNNING",
		NewState: "STOPPED",
		Reason:   "shutdown",
	}))
}

// IsShuttingDown reports whether Shutdown has been called.
func (d *Dispatcher) IsShuttingDown() bool {
	return d.shuttingDown.Load()
}

func (d *Dispatcher) remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, cb := range d.callbacks {
		if cb.id == id {
			d.callbacks = append(d.callbacks[:i], d.callbacks[i+1:]...)
			return
		}
	}
}

func (d *Dispatcher) lockFor(address string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.addrLocks[address]
	if !ok {
		l = &sync.Mutex{}
		d.addrLocks[address] = l
	}
	return l
}

func totalLen(m map[string][]byte) int {
	var n int
	for _, v := range m {
		n += len(v)
	}
	return n
}

func totalLen16(m map[uint16][]byte) int {
	var n int
	for _, v := range m {
		n += len(v)
	}
	return n
}
