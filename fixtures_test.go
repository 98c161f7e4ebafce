// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/gridclient"
	"github.com/luxfi/gridclient/internal/gridtest"
	"github.com/luxfi/gridclient/portable"
)

const (
	personTypeID  = 1
	accountTypeID = 2
)

// Person is a native portable type whose identity is its ID.
type Person struct {
	ID   int32
	Name string
}

func (*Person) TypeID() int32 { return personTypeID }

func (p *Person) WritePortable(w *portable.Writer) error {
	if err := w.WriteInt32("id", p.ID); err != nil {
		return err
	}
	return w.WriteString("name", p.Name)
}

func (p *Person) ReadPortable(r *portable.Reader) error {
	var err error
	if p.ID, err = r.ReadInt32("id"); err != nil {
		return err
	}
	p.Name, err = r.ReadString("name")
	return err
}

func (p *Person) HashCode() int32 { return p.ID }

func (p *Person) Equals(other portable.Portable) bool {
	o, ok := other.(*Person)
	return ok && o.ID == p.ID
}

// Account is a foreign type made portable by AccountSerializer.
type Account struct {
	Number  int64
	Balance float64
}

type AccountSerializer struct{}

func (AccountSerializer) TypeID(*Account) int32 { return accountTypeID }

func (AccountSerializer) WritePortable(a *Account, w *portable.Writer) error {
	if err := w.WriteInt64("number", a.Number); err != nil {
		return err
	}
	return w.WriteFloat64("balance", a.Balance)
}

func (AccountSerializer) ReadPortable(r *portable.Reader) (*Account, error) {
	var a Account
	var err error
	if a.Number, err = r.ReadInt64("number"); err != nil {
		return nil, err
	}
	if a.Balance, err = r.ReadFloat64("balance"); err != nil {
		return nil, err
	}
	return &a, nil
}

func (AccountSerializer) HashCode(a *Account) int32 { return int32(a.Number ^ a.Number>>32) }

func (AccountSerializer) Equals(a, b *Account) bool { return a.Number == b.Number }

func newRegistry(t testing.TB) *portable.Registry {
	t.Helper()
	reg := portable.NewRegistry()
	require.NoError(t, portable.Register[Person](reg, personTypeID))
	require.NoError(t, portable.RegisterExternal[*Account](reg, accountTypeID, AccountSerializer{}))
	return reg
}

// grid starts count nodes and a client over a "people" cache.
func grid(t *testing.T, count int, mutate func(*gridclient.Config), opts ...gridclient.ServerOption) ([]*gridtest.Node, gridclient.Client) {
	t.Helper()
	reg := newRegistry(t)
	nodes := gridtest.Cluster(t, count, reg, opts...)
	cfg := gridtest.Config(nodes, "people")
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := gridclient.Open(context.Background(), cfg,
		gridclient.WithRegistry(reg),
		gridclient.WithLogger(gridclient.NoopLogger()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return nodes, c
}

func nodeByID(nodes []*gridtest.Node, id string) *gridtest.Node {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
