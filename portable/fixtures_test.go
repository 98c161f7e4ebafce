// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package portable_test

import (
	"github.com/luxfi/gridclient/portable"
)

type PortablePerson struct {
	ID   int32
	Name string
}

func (p *PortablePerson) TypeID() int32 { return 100 }

func (p *PortablePerson) WritePortable(w *portable.Writer) error {
	if err := w.WriteString("name", p.Name); err != nil {
		return err
	}
	return w.WriteInt32("id", p.ID)
}

// ReadPortable reads the fields in the opposite order they were written.
func (p *PortablePerson) ReadPortable(r *portable.Reader) error {
	id, err := r.ReadInt32("id")
	if err != nil {
		return err
	}
	name, err := r.ReadString("name")
	if err != nil {
		return err
	}
	p.ID, p.Name = id, name
	return nil
}

func (p *PortablePerson) HashCode() int32 { return p.ID }

func (p *PortablePerson) Equals(other portable.Portable) bool {
	o, ok := other.(*PortablePerson)
	return ok && o.ID == p.ID
}

type Person struct {
	id   int32
	name string
}

type PersonSerializer struct{}

func (PersonSerializer) TypeID(*Person) int32 { return 101 }

func (PersonSerializer) WritePortable(p *Person, w *portable.Writer) error {
	if err := w.WriteInt32("id", p.id); err != nil {
		return err
	}
	return w.WriteString("name", p.name)
}

func (PersonSerializer) ReadPortable(r *portable.Reader) (*Person, error) {
	id, err := r.ReadInt32("id")
	if err != nil {
		return nil, err
	}
	name, err := r.ReadString("name")
	if err != nil {
		return nil, err
	}
	return &Person{id: id, name: name}, nil
}

func (PersonSerializer) HashCode(p *Person) int32 { return p.id }

func (PersonSerializer) Equals(a, b *Person) bool { return a.id == b.id }

type Team struct {
	Lead    *PortablePerson
	Deputy  *PortablePerson
	Members []string
}

func (t *Team) TypeID() int32 { return 102 }

func (t *Team) WritePortable(w *portable.Writer) error {
	if err := w.WritePortable("lead", t.Lead); err != nil {
		return err
	}
	if err := w.WritePortable("deputy", t.Deputy); err != nil {
		return err
	}
	return w.WriteStringArray("members", t.Members)
}

func (t *Team) ReadPortable(r *portable.Reader) error {
	var err error
	if t.Lead, err = portable.ReadPortableAs[*PortablePerson](r, "lead"); err != nil {
		return err
	}
	if t.Deputy, err = portable.ReadPortableAs[*PortablePerson](r, "deputy"); err != nil {
		return err
	}
	t.Members, err = r.ReadStringArray("members")
	return err
}

func (t *Team) HashCode() int32 { return t.Lead.HashCode() }

func (t *Team) Equals(other portable.Portable) bool {
	o, ok := other.(*Team)
	return ok && t.Lead.Equals(o.Lead)
}

func newRegistry() *portable.Registry {
	reg := portable.NewRegistry()
	portable.MustRegister[PortablePerson](reg, 100)
	portable.MustRegister[Team](reg, 102)
	if err := portable.RegisterExternal[*Person](reg, 101, PersonSerializer{}); err != nil {
		panic(err)
	}
	reg.Freeze()
	return reg
}
