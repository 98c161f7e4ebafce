// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package portable_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/gridclient/portable"
)

type otherSerializer struct{ PersonSerializer }

func TestRegisterIdempotent(t *testing.T) {
	reg := portable.NewRegistry()
	require.NoError(t, portable.Register[PortablePerson](reg, 100))
	require.NoError(t, portable.Register[PortablePerson](reg, 100))
	require.NoError(t, portable.RegisterExternal[*Person](reg, 101, PersonSerializer{}))
	require.NoError(t, portable.RegisterExternal[*Person](reg, 101, PersonSerializer{}))

	assert.Equal(t, []int32{100, 101}, reg.TypeIDs())
}

func TestRegisterConflict(t *testing.T) {
	reg := portable.NewRegistry()
	require.NoError(t, portable.RegisterExternal[*Person](reg, 100, PersonSerializer{}))

	err := portable.Register[PortablePerson](reg, 100)
	var cre *portable.ConflictingRegistrationError
	require.ErrorAs(t, err, &cre)
	assert.Equal(t, int32(100), cre.TypeID)

	err = portable.RegisterExternal[*Person](reg, 100, otherSerializer{})
	require.ErrorAs(t, err, &cre)
}

func TestRegisterFactoryTypeIDMismatch(t *testing.T) {
	reg := portable.NewRegistry()
	err := portable.Register[PortablePerson](reg, 7)
	require.Error(t, err)
	assert.NotContains(t, reg.TypeIDs(), int32(7))
}

func TestRegistryFreeze(t *testing.T) {
	reg := portable.NewRegistry()
	require.NoError(t, portable.Register[PortablePerson](reg, 100))
	reg.Freeze()
	assert.True(t, reg.Frozen())

	// Equivalent registrations stay idempotent after freeze.
	require.NoError(t, portable.Register[PortablePerson](reg, 100))

	err := portable.Register[Team](reg, 102)
	assert.ErrorIs(t, err, portable.ErrRegistryFrozen)

	_, err = reg.Resolve(102)
	var ute *portable.UnregisteredTypeError
	assert.ErrorAs(t, err, &ute)
}

func TestRegistryResolveAndBind(t *testing.T) {
	reg := newRegistry()

	d, err := reg.Resolve(101)
	require.NoError(t, err)
	assert.Equal(t, portable.KindExternal, d.Kind)

	d, ok := reg.Bind(&PortablePerson{})
	require.True(t, ok)
	assert.Equal(t, int32(100), d.TypeID)
	assert.Equal(t, portable.KindNative, d.Kind)

	_, ok = reg.Bind("nope")
	assert.False(t, ok)
}

func TestRegistryConcurrentLookups(t *testing.T) {
	reg := newRegistry()
	m := portable.NewMarshaller(reg)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(id int32) {
			defer wg.Done()
			data, err := m.Marshal(&PortablePerson{ID: id, Name: "p"})
			if !assert.NoError(t, err) {
				return
			}
			p, err := portable.UnmarshalAs[*PortablePerson](m, data)
			if assert.NoError(t, err) {
				assert.Equal(t, id, p.ID)
			}
		}(int32(i))
	}
	wg.Wait()
}
