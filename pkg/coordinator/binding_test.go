package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blecore/blecore-go/pkg/adv"
)

func TestBindingIdentityDeviceScoped(t *testing.T) {
	up := &fakeUpstream{}
	c := newTestCoordinator(t, up, nil, staticUpdate(&DataUpdate[testValue]{}))

	key := EntityKey{Key: "temperature"}
	b := NewEntityBinding(c, key, EntityDescription{Key: key})

	assert.Equal(t, testAddress, b.DeviceIdentifier())
	assert.Equal(t, testAddress+"-temperature", b.UniqueID())
}

func TestBindingIdentitySubDeviceScoped(t *testing.T) {
	up := &fakeUpstream{}
	c := newTestCoordinator(t, up, nil, staticUpdate(&DataUpdate[testValue]{}))

	key := EntityKey{Key: "temperature", DeviceID: "probe1"}
	b := NewEntityBinding(c, key, EntityDescription{Key: key})

	assert.Equal(t, testAddress+"-probe1", b.DeviceIdentifier())
	assert.Equal(t, testAddress+"-temperature-probe1", b.UniqueID())
}

func TestBindingNameResolution(t *testing.T) {
	up := &fakeUpstream{}
	key := EntityKey{Key: "temperature"}
	update := &DataUpdate[testValue]{
		Devices: map[string]DeviceInfo{"": {Name: "Outdoor Sensor"}},
	}
	c := newTestCoordinator(t, up, nil, staticUpdate(update))
	defer c.AddListener(func(*DataUpdate[testValue]) {})()

	b := NewEntityBinding(c, key, EntityDescription{Key: key})

	// Nothing accumulated yet: falls through to the coordinator name,
	// which is empty before the first advertisement.
	assert.Equal(t, "", b.Name())

	c.HandleAdvertisement(testAdv("ATC_1234"))
	assert.Equal(t, "Outdoor Sensor", b.Name(), "device descriptor name wins over advertised name")

	withDesc := NewEntityBinding(c, key, EntityDescription{Key: key, Name: "Temperature"})
	assert.Equal(t, "Temperature", withDesc.Name(), "description name wins over device name")

	update.EntityNames = map[EntityKey]string{key: "Backyard Temperature"}
	c.HandleAdvertisement(testAdv("ATC_1234"))
	assert.Equal(t, "Backyard Temperature", withDesc.Name(), "accumulated entity name wins")
}

func TestBindingAvailableDelegates(t *testing.T) {
	up := &fakeUpstream{}
	c := newTestCoordinator(t, up, nil, staticUpdate(&DataUpdate[testValue]{}))
	defer c.AddListener(func(*DataUpdate[testValue]) {})()

	key := EntityKey{Key: "temperature"}
	b := NewEntityBinding(c, key, EntityDescription{Key: key})

	assert.False(t, b.Available())
	c.HandleAdvertisement(testAdv("sensor"))
	assert.True(t, b.Available())
	c.HandleUnavailable(testAddress)
	assert.False(t, b.Available(), "binding is never available when its coordinator is not")
}

func TestBindingAttachDetachLifecycle(t *testing.T) {
	up := &fakeUpstream{}
	key := EntityKey{Key: "temperature"}
	c := newTestCoordinator(t, up, nil, staticUpdate(&DataUpdate[testValue]{
		EntityData: map[EntityKey]testValue{key: {21}},
	}))

	b := NewEntityBinding(c, key, EntityDescription{Key: key})
	var renders int
	b.OnRender(func() { renders++ })

	require.False(t, b.Attached())
	b.Attach()
	b.Attach() // no-op
	require.True(t, b.Attached())
	assert.Equal(t, 1, c.ListenerCount())
	assert.True(t, c.Running(), "attaching starts the upstream subscription")

	c.HandleAdvertisement(testAdv("sensor"))
	assert.Equal(t, 1, renders)

	value, ok := b.Value()
	require.True(t, ok)
	assert.Equal(t, testValue{21}, value)

	b.Detach()
	b.Detach() // underlying cancel invoked exactly once
	assert.False(t, b.Attached())
	assert.Zero(t, c.ListenerCount())
	assert.False(t, c.Running(), "detaching the only listener stops the subscription")

	c.HandleAdvertisement(testAdv("sensor"))
	assert.Equal(t, 1, renders, "no renders after detach")
}

func TestBindingContext(t *testing.T) {
	up := &fakeUpstream{}
	c := newTestCoordinator(t, up, nil, staticUpdate(&DataUpdate[testValue]{}))

	key := EntityKey{Key: "temperature"}
	b := NewEntityBinding(c, key, EntityDescription{Key: key})

	assert.Nil(t, b.Context())
	b.SetContext("host-token")
	assert.Equal(t, "host-token", b.Context())
}

func TestBindingRendersOnUnavailability(t *testing.T) {
	up := &fakeUpstream{}
	key := EntityKey{Key: "temperature"}
	c := newTestCoordinator(t, up, nil, staticUpdate(&DataUpdate[testValue]{}))

	b := NewEntityBinding(c, key, EntityDescription{Key: key})
	var renders int
	b.OnRender(func() { renders++ })
	b.Attach()
	defer b.Detach()

	c.HandleUnavailable(testAddress)
	assert.Equal(t, 1, renders, "unavailability triggers a re-render")
}

func TestEntityKeyString(t *testing.T) {
	assert.Equal(t, "temperature", EntityKey{Key: "temperature"}.String())
	assert.Equal(t, "temperature@probe1",
		EntityKey{Key: "temperature", DeviceID: "probe1"}.String())
}

func TestBindingValueMissing(t *testing.T) {
	up := &fakeUpstream{}
	c := newTestCoordinator(t, up, nil, func(adv.Advertisement) (*DataUpdate[testValue], error) {
		return &DataUpdate[testValue]{}, nil
	})

	key := EntityKey{Key: "temperature"}
	b := NewEntityBinding(c, key, EntityDescription{Key: key})

	_, ok := b.Value()
	assert.False(t, ok)
}
