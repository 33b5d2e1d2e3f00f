package blecore_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blecore/blecore-go/pkg/adv"
	"github.com/blecore/blecore-go/pkg/coordinator"
	"github.com/blecore/blecore-go/pkg/scanner"
)

const (
	sensorAddr = "AA:BB:CC:DD:EE:FF"
	otherAddr  = "11:22:33:44:55:66"
)

// reading is the domain value type parsed from test advertisements.
type reading struct {
	Temperature float64
}

var keyTemp = coordinator.EntityKey{Key: "temperature"}

// parseTemp decodes the first two manufacturer data bytes as centidegrees.
func parseTemp(a adv.Advertisement) (*coordinator.DataUpdate[reading], error) {
	payload, ok := a.ManufacturerData[0x004C]
	if !ok || len(payload) < 2 {
		return nil, errors.New("missing temperature payload")
	}
	value := float64(int(payload[0])<<8|int(payload[1])) / 100
	return &coordinator.DataUpdate[reading]{
		Devices: map[string]coordinator.DeviceInfo{
			"": {Name: a.Name},
		},
		EntityDescriptions: map[coordinator.EntityKey]coordinator.EntityDescription{
			keyTemp: {Key: keyTemp, Name: "Temperature", Unit: "°C", DeviceClass: "temperature"},
		},
		EntityData: map[coordinator.EntityKey]reading{
			keyTemp: {Temperature: value},
		},
	}, nil
}

func tempAdv(address string, centi uint16) adv.Advertisement {
	return adv.Advertisement{
		Address:          address,
		Name:             "TestSensor",
		RSSI:             -58,
		ManufacturerData: map[uint16][]byte{0x004C: {byte(centi >> 8), byte(centi)}},
		Time:             time.Now(),
	}
}

func newStack(t *testing.T, timeout time.Duration) (*scanner.Dispatcher, *coordinator.Coordinator[reading]) {
	t.Helper()

	d, err := scanner.NewDispatcher(scanner.DefaultConfig(), nil)
	require.NoError(t, err)

	var tracker coordinator.UnavailabilityTracker = d.Tracker()
	if timeout > 0 {
		// Separate short-timeout tracker for availability tests; the
		// dispatcher still pokes its own tracker on every delivery.
		tracker = scanner.NewTracker(timeout, nil)
	}

	c, err := coordinator.New(coordinator.Config[reading]{
		Address:      sensorAddr,
		UpdateFunc:   parseTemp,
		Registrar:    d,
		Tracker:      tracker,
		ShuttingDown: d.IsShuttingDown,
	})
	require.NoError(t, err)
	return d, c
}

// TestE2E_AdvertisementFlow drives advertisements through the dispatcher
// and checks they land in coordinator state and listener fan-out.
func TestE2E_AdvertisementFlow(t *testing.T) {
	d, c := newStack(t, 0)

	var mu sync.Mutex
	var updates int
	cancel := c.AddListener(func(u *coordinator.DataUpdate[reading]) {
		mu.Lock()
		defer mu.Unlock()
		if u != nil {
			updates++
		}
	})
	defer cancel()

	d.Deliver(tempAdv(sensorAddr, 2150)) // 21.50 C
	d.Deliver(tempAdv(otherAddr, 9999))  // different device, ignored
	d.Deliver(tempAdv(sensorAddr, 2175))

	mu.Lock()
	got := updates
	mu.Unlock()
	assert.Equal(t, 2, got, "only this address's advertisements are processed")

	value, ok := c.GetEntityData(keyTemp)
	require.True(t, ok)
	assert.InDelta(t, 21.75, value.Temperature, 0.001)
	assert.True(t, c.Available())
	assert.Equal(t, "TestSensor", c.Name())
}

// TestE2E_EntityBindings materializes bindings through the dispatcher path
// and checks identity and live re-reads.
func TestE2E_EntityBindings(t *testing.T) {
	d, c := newStack(t, 0)

	var bindings []*coordinator.EntityBinding[reading]
	cancel := c.AddEntitiesListener(coordinator.NewEntityBinding[reading],
		func(batch []*coordinator.EntityBinding[reading]) {
			bindings = append(bindings, batch...)
			for _, b := range batch {
				b.Attach()
			}
		})
	defer cancel()

	d.Deliver(tempAdv(sensorAddr, 2000))
	d.Deliver(tempAdv(sensorAddr, 2100))

	require.Len(t, bindings, 1, "one binding per distinct entity key")
	b := bindings[0]
	defer b.Detach()

	assert.Equal(t, sensorAddr+"-temperature", b.UniqueID())
	assert.Equal(t, "Temperature", b.Name())
	assert.True(t, b.Available())

	value, ok := b.Value()
	require.True(t, ok)
	assert.InDelta(t, 21.00, value.Temperature, 0.001)
}

// TestE2E_AvailabilityTimeout goes through a real tracker with a short
// timeout: device appears, goes silent, becomes unavailable, recovers.
func TestE2E_AvailabilityTimeout(t *testing.T) {
	d, c := newStack(t, 60*time.Millisecond)

	var mu sync.Mutex
	var nilUpdates int
	cancel := c.AddListener(func(u *coordinator.DataUpdate[reading]) {
		mu.Lock()
		defer mu.Unlock()
		if u == nil {
			nilUpdates++
		}
	})
	defer cancel()

	d.Deliver(tempAdv(sensorAddr, 2150))
	require.True(t, c.Available())

	waitUntil(t, time.Second, func() bool { return !c.Present() })

	mu.Lock()
	got := nilUpdates
	mu.Unlock()
	assert.Equal(t, 1, got, "unavailability fans out one nil cycle")
	assert.False(t, c.Available())

	// Recovery: a fresh advertisement restores presence.
	d.Deliver(tempAdv(sensorAddr, 2150))
	assert.True(t, c.Available())
}

// TestE2E_ShutdownStopsWork verifies the teardown flag short-circuits
// update processing through the real dispatcher.
func TestE2E_ShutdownStopsWork(t *testing.T) {
	d, c := newStack(t, 0)

	var updates int
	cancel := c.AddListener(func(u *coordinator.DataUpdate[reading]) {
		if u != nil {
			updates++
		}
	})
	defer cancel()

	d.Deliver(tempAdv(sensorAddr, 2150))
	d.Shutdown()
	d.Deliver(tempAdv(sensorAddr, 2175))

	assert.Equal(t, 1, updates, "deliveries after shutdown are dropped")
}

func waitUntil(t *testing.T, deadline time.Duration, cond func() bool) {
	t.Helper()
	start := time.Now()
	for time.Since(start) < deadline {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
