package scanner

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blecore/blecore-go/pkg/adv"
	"github.com/blecore/blecore-go/pkg/log"
)

// Tracker errors.
var (
	ErrNilHandler = errors.New("nil handler")
	ErrNoAddress  = errors.New("empty address")
)

// Tracker notifies registered handlers when a device address has not been
// seen for the configured timeout.
//
// Each registration owns its own timer. The timer is (re)started every
// time Seen is called for the address; when it expires, the handler is
// invoked once with the address. The registration stays active after
// firing, so the handler fires again for every subsequent silent period.
type Tracker struct {
	mu      sync.Mutex
	timeout time.Duration
	logger  log.Logger

	// Registrations by address, in registration order.
	tracks map[string][]*track
}

type track struct {
	id      string
	address string
	handler func(address string)
	timer   *time.Timer

	// expired is set when the timer fired and no advertisement has been
	// seen since. The timer restarts on the next Seen call.
	expired bool
}

// NewTracker creates a Tracker with the given timeout.
// A zero timeout means DefaultUnavailableTimeout.
func NewTracker(timeout time.Duration, logger log.Logger) *Tracker {
	if timeout == 0 {
		timeout = DefaultUnavailableTimeout
	}
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Tracker{
		timeout: timeout,
		logger:  logger,
		tracks:  make(map[string][]*track),
	}
}

// Timeout returns the configured timeout.
func (t *Tracker) Timeout() time.Duration {
	return t.timeout
}

// TrackUnavailable registers a handler invoked when address has not been
// seen for the timeout. The timer starts immediately. The returned cancel
// function removes the registration; calling it more than once is a no-op.
func (t *Tracker) TrackUnavailable(address string, handler func(address string)) (cancel func(), err error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	address = adv.NormalizeAddress(address)
	if address == "" {
		return nil, ErrNoAddress
	}

	tr := &track{
		id:      uuid.New().String(),
		address: address,
		handler: handler,
	}

	t.mu.Lock()
	tr.timer = time.AfterFunc(t.timeout, func() { t.fire(tr) })
	t.tracks[address] = append(t.tracks[address], tr)
	t.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { t.remove(tr) }) }, nil
}

// Seen records that an advertisement for address was received, restarting
// every timer registered for it.
func (t *Tracker) Seen(address string) {
	address = adv.NormalizeAddress(address)

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, tr := range t.tracks[address] {
		tr.expired = false
		tr.timer.Reset(t.timeout)
	}
}

// Stop cancels all registrations. Used on host teardown.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, tracks := range t.tracks {
		for _, tr := range tracks {
			tr.timer.Stop()
		}
	}
	t.tracks = make(map[string][]*track)
}

// fire runs on the timer goroutine when a registration's timeout expires.
func (t *Tracker) fire(tr *track) {
	t.mu.Lock()
	if !t.registered(tr) || tr.expired {
		t.mu.Unlock()
		return
	}
	tr.expired = true
	handler := tr.handler
	t.mu.Unlock()

	t.logger.Log(log.NewStateEvent(tr.address, log.StateChangeEvent{
		Entity:   log.EntityTracker,
		OldState: "PRESENT",
		NewState: "UNAVAILABLE",
		Reason:   "no advertisement within timeout",
	}))

	handler(tr.address)
}

// registered reports whether tr is still in the track table.
// Caller must hold mu.
func (t *Tracker) registered(tr *track) bool {
	for _, cur := range t.tracks[tr.address] {
		if cur.id == tr.id {
			return true
		}
	}
	return false
}

// remove deletes a registration and stops its timer.
func (t *Tracker) remove(tr *track) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr.timer.Stop()
	tracks := t.tracks[tr.address]
	for i, cur := range tracks {
		if cur.id == tr.id {
			t.tracks[tr.address] = append(tracks[:i], tracks[i+1:]...)
			break
		}
	}
	if len(t.tracks[tr.address]) == 0 {
		delete(t.tracks, tr.address)
	}
}
