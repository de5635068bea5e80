// Package stubcodec implements the two-pass stub graph codec (spec §4.2):
// packing interns strings/names/references in a mapping pass, then emits a
// bit-exact byte stream in a second pass; unpacking reverses the process,
// bounds-checking every reference.
package stubcodec

import (
	"fmt"

	"github.com/kestrelengine/scriptcore/internal/config"
	"github.com/kestrelengine/scriptcore/internal/diag"
	"github.com/kestrelengine/scriptcore/internal/stub"
)

// Pack serializes every stub reachable from root, breadth-first, into the
// on-disk format described in spec §6.
func Pack(a *stub.Arena, root stub.Ref) ([]byte, error) {
	m := newMapper(a)
	if err := m.visit(root); err != nil {
		return nil, err
	}

	e := newEmitter(m)

	// 1. Name table.
	e.U16(uint16(len(m.nameOrder)))
	for _, n := range m.nameOrder {
		writeLenPrefixedString(e, n)
	}

	// 2. String table.
	e.U16(uint16(len(m.stringOrder)))
	for _, s := range m.stringOrder {
		writeLenPrefixedString(e, s)
	}

	// 3. Stub count, including the null sentinel at index 0.
	e.U32(uint32(len(m.order)))

	// 4. Tag bytes, ordered by stub index.
	for i := 1; i < len(m.order); i++ {
		s := a.Get(m.order[i])
		e.U8(byte(s.Tag()))
	}

	// 5. Stub bodies, ordered by stub index.
	for i := 1; i < len(m.order); i++ {
		s := a.Get(m.order[i])
		c, ok := s.(stub.Codeable)
		if !ok {
			return nil, fmt.Errorf("stubcodec: stub %d (tag %s) has no codec", i, s.Tag())
		}
		c.WriteBody(e)
	}

	return e.buf, nil
}

// Unpack reconstructs an Arena and the root module reference from packed
// bytes, validating every index as it goes (spec §4.2 invariant).
func Unpack(data []byte) (*stub.Arena, stub.Ref, error) {
	r := &reader{buf: data}

	nameCount, err := r.U16()
	if err != nil {
		return nil, stub.NullRef, err
	}
	names := make([]string, nameCount)
	for i := range names {
		if names[i], err = readLenPrefixedString(r); err != nil {
			return nil, stub.NullRef, err
		}
	}
	r.names = names

	strCount, err := r.U16()
	if err != nil {
		return nil, stub.NullRef, err
	}
	strs := make([]string, strCount)
	for i := range strs {
		if strs[i], err = readLenPrefixedString(r); err != nil {
			return nil, stub.NullRef, err
		}
	}
	r.strs = strs

	stubCount, err := r.U32()
	if err != nil {
		return nil, stub.NullRef, err
	}
	if stubCount > config.MaxStubCount {
		return nil, stub.NullRef, fmt.Errorf("%s: stub count %d exceeds limit %d", diag.KindFormat, stubCount, config.MaxStubCount)
	}
	r.n = stubCount

	tags := make([]stub.Tag, stubCount)
	for i := 1; i < int(stubCount); i++ {
		b, err := r.U8()
		if err != nil {
			return nil, stub.NullRef, err
		}
		tags[i] = stub.Tag(b)
	}

	a := stub.NewArena()
	a.Reserve(int(stubCount))
	shells := make([]stub.Stub, stubCount)
	for i := 1; i < int(stubCount); i++ {
		sh, err := stub.NewShell(tags[i])
		if err != nil {
			return nil, stub.NullRef, err
		}
		shells[i] = sh
		a.SetAt(stub.Ref(i), sh)
	}

	for i := 1; i < int(stubCount); i++ {
		c, ok := shells[i].(stub.Codeable)
		if !ok {
			return nil, stub.NullRef, fmt.Errorf("stubcodec: stub %d (tag %s) has no codec", i, tags[i])
		}
		if err := c.ReadBody(r); err != nil {
			return nil, stub.NullRef, fmt.Errorf("stubcodec: reading stub %d (tag %s): %w", i, tags[i], err)
		}
	}

	stub.PostLoadAll(a)

	if stubCount <= 1 {
		return a, stub.NullRef, nil
	}
	// The root module is always stub index 1: Pack starts its BFS there.
	return a, stub.Ref(1), nil
}
