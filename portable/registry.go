// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package portable

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
)

// Kind tells how a type participates in the portable format.
type Kind uint8

const (
	// KindNative marks types implementing Portable.
	KindNative Kind = iota + 1
	// KindExternal marks foreign types encoded by a registered Serializer.
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindExternal:
		return "external"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// TypeDescriptor binds a type id to its behavior.
type TypeDescriptor struct {
	TypeID   int32
	Kind     Kind
	Type     reflect.Type
	Behavior Behavior

	serializer reflect.Type
}

func (d *TypeDescriptor) equivalent(o *TypeDescriptor) bool {
	return d.Kind == o.Kind && d.Type == o.Type && d.serializer == o.serializer
}

func (d *TypeDescriptor) String() string {
	if d.serializer != nil {
		return fmt.Sprintf("%s %v via %v", d.Kind, d.Type, d.serializer)
	}
	return fmt.Sprintf("%s %v", d.Kind, d.Type)
}

// Registry maps type ids to behaviors. Registration is expected to happen
// during initialization; after Freeze only equivalent re-registrations are
// accepted.
type Registry struct {
	mu     sync.RWMutex
	frozen atomic.Bool
	byID   map[int32]*TypeDescriptor
	byType map[reflect.Type]*TypeDescriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[int32]*TypeDescriptor),
		byType: make(map[reflect.Type]*TypeDescriptor),
	}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// RegisterPortable binds id to a native type produced by newFn.
func (r *Registry) RegisterPortable(id int32, newFn func() Portable) error {
	if newFn == nil {
		return errors.New("portable: nil factory")
	}
	sample := newFn()
	if sample == nil {
		return fmt.Errorf("portable: factory for type id %d returned nil", id)
	}
	if got := sample.TypeID(); got != id {
		return fmt.Errorf("portable: factory for type id %d produces %T reporting type id %d", id, sample, got)
	}
	return r.register(&TypeDescriptor{
		TypeID:   id,
		Kind:     KindNative,
		Type:     reflect.TypeOf(sample),
		Behavior: nativeBehavior{newFn: newFn},
	})
}

// Register binds id to the native type *T.
func Register[T any, PT interface {
	*T
	Portable
}](r *Registry, id int32) error {
	return r.RegisterPortable(id, func() Portable { return PT(new(T)) })
}

// MustRegister is like Register but panics on error. It is meant for init
// functions.
func MustRegister[T any, PT interface {
	*T
	Portable
}](r *Registry, id int32) {
	if err := Register[T, PT](r, id); err != nil {
		panic(err)
	}
}

func (r *Registry) register(d *TypeDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[d.TypeID]; ok {
		if existing.equivalent(d) {
			return nil
		}
		return &ConflictingRegistrationError{
			TypeID:    d.TypeID,
			Existing:  existing.String(),
			Requested: d.String(),
		}
	}
	if r.frozen.Load() {
		return fmt.Errorf("%w: type id %d", ErrRegistryFrozen, d.TypeID)
	}

	r.byID[d.TypeID] = d
	if _, ok := r.byType[d.Type]; !ok {
		r.byType[d.Type] = d
	}
	return nil
}

// Freeze ends the registration phase.
func (r *Registry) Freeze() {
	r.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Resolve returns the descriptor registered for id.
func (r *Registry) Resolve(id int32) (*TypeDescriptor, error) {
	r.mu.RLock()
	d, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnregisteredTypeError{TypeID: id}
	}
	return d, nil
}

// Bind returns the descriptor registered for the concrete type of v.
func (r *Registry) Bind(v any) (*TypeDescriptor, bool) {
	if v == nil {
		return nil, false
	}
	r.mu.RLock()
	d, ok := r.byType[reflect.TypeOf(v)]
	r.mu.RUnlock()
	return d, ok
}

// TypeIDs returns the registered ids in ascending order.
func (r *Registry) TypeIDs() []int32 {
	r.mu.RLock()
	ids := make([]int32, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
