package coordinator

import (
	"fmt"
	"sync"
)

// RenderFunc triggers a host re-render of one bound entity.
type RenderFunc func()

// BindingFactory constructs an EntityBinding for a newly seen entity key.
// Used with AddEntitiesListener.
type BindingFactory[T any] func(c *Coordinator[T], key EntityKey, desc EntityDescription) *EntityBinding[T]

// AddSink receives each batch of newly materialized bindings.
// Used with AddEntitiesListener.
type AddSink[T any] func(bindings []*EntityBinding[T])

// EntityBinding bridges one EntityKey's coordinator-owned state into a
// host presentation layer. It owns no state beyond the key, the
// coordinator reference, and an opaque per-instance context token: every
// read delegates to the coordinator.
type EntityBinding[T any] struct {
	coordinator *Coordinator[T]
	key         EntityKey
	description EntityDescription
	context     any

	uniqueID         string
	deviceIdentifier string

	mu     sync.Mutex
	render RenderFunc
	cancel func()
}

// NewEntityBinding creates a binding for key on c.
//
// Identity is derived from the coordinator address and the key: a binding
// for a sub-device gets device identifier "address-deviceID" and unique
// ID "address-key-deviceID"; a device-scoped binding gets identifier
// "address" and unique ID "address-key".
func NewEntityBinding[T any](c *Coordinator[T], key EntityKey, desc EntityDescription) *EntityBinding[T] {
	b := &EntityBinding[T]{
		coordinator: c,
		key:         key,
		description: desc,
	}
	if key.DeviceID != "" {
		b.deviceIdentifier = fmt.Sprintf("%s-%s", c.Address(), key.DeviceID)
		b.uniqueID = fmt.Sprintf("%s-%s-%s", c.Address(), key.Key, key.DeviceID)
	} else {
		b.deviceIdentifier = c.Address()
		b.uniqueID = fmt.Sprintf("%s-%s", c.Address(), key.Key)
	}
	return b
}

// Coordinator returns the owning coordinator.
func (b *EntityBinding[T]) Coordinator() *Coordinator[T] {
	return b.coordinator
}

// Key returns the bound entity key.
func (b *EntityBinding[T]) Key() EntityKey {
	return b.key
}

// Description returns the entity metadata the binding was created with.
func (b *EntityBinding[T]) Description() EntityDescription {
	return b.description
}

// UniqueID returns the binding's stable unique identifier.
func (b *EntityBinding[T]) UniqueID() string {
	return b.uniqueID
}

// DeviceIdentifier returns the identifier of the device (or sub-device)
// the binding belongs to.
func (b *EntityBinding[T]) DeviceIdentifier() string {
	return b.deviceIdentifier
}

// SetContext attaches an opaque per-instance token for the host's use.
func (b *EntityBinding[T]) SetContext(ctx any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.context = ctx
}

// Context returns the token set with SetContext, or nil.
func (b *EntityBinding[T]) Context() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.context
}

// OnRender sets the host re-render hook invoked on every update
// notification.
func (b *EntityBinding[T]) OnRender(fn RenderFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.render = fn
}

// Name resolves the binding's display name, in order: the accumulated
// per-entity name, the entity description name, the owning device
// descriptor's name, and finally the coordinator's advertised name.
func (b *EntityBinding[T]) Name() string {
	if name, ok := b.coordinator.GetEntityName(b.key); ok && name != "" {
		return name
	}
	if b.description.Name != "" {
		return b.description.Name
	}
	if info, ok := b.coordinator.GetDevice(b.key.DeviceID); ok && info.Name != "" {
		return info.Name
	}
	return b.coordinator.Name()
}

// Available delegates to the coordinator: a binding is never available
// when its coordinator is not.
func (b *EntityBinding[T]) Available() bool {
	return b.coordinator.Available()
}

// Value returns the current parsed value for the bound key.
func (b *EntityBinding[T]) Value() (T, bool) {
	return b.coordinator.GetEntityData(b.key)
}

// Attach subscribes the binding to its coordinator. The update payload is
// advisory only: the binding re-reads coordinator state on render rather
// than trusting it. Attaching an attached binding is a no-op.
func (b *EntityBinding[T]) Attach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return
	}
	b.cancel = b.coordinator.AddEntityKeyListener(b.handleUpdate, b.key)
}

// Detach removes the binding's subscription. The underlying cancel is
// invoked exactly once no matter how many times Detach is called.
func (b *EntityBinding[T]) Detach() {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Attached reports whether the binding currently holds a subscription.
func (b *EntityBinding[T]) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancel != nil
}

func (b *EntityBinding[T]) handleUpdate(*DataUpdate[T]) {
	b.mu.Lock()
	render := b.render
	b.mu.Unlock()

	if render != nil {
		render()
	}
}
