package scanner

import (
	"testing"
	"time"

	"github.com/blecore/blecore-go/pkg/adv"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return d
}

func mkAdv(address string, rssi int) adv.Advertisement {
	return adv.Advertisement{
		Address: address,
		Name:    "test-device",
		RSSI:    rssi,
		Time:    time.Now(),
	}
}

func TestDispatcherRoutesByAddress(t *testing.T) {
	d := newTestDispatcher(t)

	var got []string
	_, err := d.RegisterAddressCallback("AA:BB:CC:DD:EE:FF", func(a adv.Advertisement) {
		got = append(got, a.Address)
	})
	if err != nil {
		t.Fatalf("RegisterAddressCallback: %v", err)
	}

	d.Deliver(mkAdv("AA:BB:CC:DD:EE:FF", -50))
	d.Deliver(mkAdv("11:22:33:44:55:66", -60))
	d.Deliver(mkAdv("aa:bb:cc:dd:ee:ff", -70)) // normalized to match

	if len(got) != 2 {
		t.Fatalf("received %d advertisements, want 2", len(got))
	}
	for _, addr := range got {
		if addr != "AA:BB:CC:DD:EE:FF" {
			t.Errorf("received address %q, want AA:BB:CC:DD:EE:FF", addr)
		}
	}
}

func TestDispatcherWildcardMatcher(t *testing.T) {
	d := newTestDispatcher(t)

	var count int
	_, err := d.RegisterCallback(Matcher{}, func(adv.Advertisement) { count++ })
	if err != nil {
		t.Fatalf("RegisterCallback: %v", err)
	}

	d.Deliver(mkAdv("AA:BB:CC:DD:EE:FF", -50))
	d.Deliver(mkAdv("11:22:33:44:55:66", -60))

	if count != 2 {
		t.Errorf("wildcard received %d advertisements, want 2", count)
	}
}

func TestDispatcherRegistrationOrder(t *testing.T) {
	d := newTestDispatcher(t)

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		if _, err := d.RegisterAddressCallback("AA:BB:CC:DD:EE:FF", func(adv.Advertisement) {
			order = append(order, i)
		}); err != nil {
			t.Fatalf("RegisterAddressCallback: %v", err)
		}
	}

	d.Deliver(mkAdv("AA:BB:CC:DD:EE:FF", -50))

	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Errorf("delivery order = %v, want [0 1 2]", order)
	}
}

func TestDispatcherCancelIsSingleShot(t *testing.T) {
	d := newTestDispatcher(t)

	var count int
	cancelA, err := d.RegisterAddressCallback("AA:BB:CC:DD:EE:FF", func(adv.Advertisement) { count++ })
	if err != nil {
		t.Fatalf("RegisterAddressCallback: %v", err)
	}
	cancelB, err := d.RegisterAddressCallback("AA:BB:CC:DD:EE:FF", func(adv.Advertisement) { count++ })
	if err != nil {
		t.Fatalf("RegisterAddressCallback: %v", err)
	}

	if d.CallbackCount() != 2 {
		t.Fatalf("CallbackCount = %d, want 2", d.CallbackCount())
	}

	cancelA()
	cancelA() // no-op
	if d.CallbackCount() != 1 {
		t.Errorf("CallbackCount after double cancel = %d, want 1", d.CallbackCount())
	}

	d.Deliver(mkAdv("AA:BB:CC:DD:EE:FF", -50))
	if count != 1 {
		t.Errorf("count = %d, want 1 (only remaining callback invoked)", count)
	}

	cancelB()
	if d.CallbackCount() != 0 {
		t.Errorf("CallbackCount = %d, want 0", d.CallbackCount())
	}
}

func TestDispatcherCancelFromWithinDelivery(t *testing.T) {
	d := newTestDispatcher(t)

	var cancel func()
	var count int
	cancel, _ = d.RegisterAddressCallback("AA:BB:CC:DD:EE:FF", func(adv.Advertisement) {
		count++
		cancel()
	})

	d.Deliver(mkAdv("AA:BB:CC:DD:EE:FF", -50))
	d.Deliver(mkAdv("AA:BB:CC:DD:EE:FF", -51))

	if count != 1 {
		t.Errorf("count = %d, want 1 (callback removed itself)", count)
	}
}

func TestDispatcherShutdownDropsDeliveries(t *testing.T) {
	d := newTestDispatcher(t)

	var count int
	if _, err := d.RegisterAddressCallback("AA:BB:CC:DD:EE:FF", func(adv.Advertisement) { count++ }); err != nil {
		t.Fatalf("RegisterAddressCallback: %v", err)
	}

	d.Deliver(mkAdv("AA:BB:CC:DD:EE:FF", -50))
	d.Shutdown()
	d.Shutdown() // idempotent
	d.Deliver(mkAdv("AA:BB:CC:DD:EE:FF", -51))

	if !d.IsShuttingDown() {
		t.Error("IsShuttingDown = false after Shutdown")
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 (post-shutdown delivery dropped)", count)
	}
}

func TestRegisterNilHandler(t *testing.T) {
	d := newTestDispatcher(t)

	if _, err := d.RegisterCallback(Matcher{}, nil); err != ErrNilHandler {
		t.Errorf("RegisterCallback(nil) error = %v, want ErrNilHandler", err)
	}
	if _, err := d.RegisterAddressCallback("", func(adv.Advertisement) {}); err != ErrNoAddress {
		t.Errorf("RegisterAddressCallback(\"\") error = %v, want ErrNoAddress", err)
	}
}
