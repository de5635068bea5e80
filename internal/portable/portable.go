// Package portable implements the portable module container (spec §4.3):
// it owns a packed byte buffer and the linear arena reconstructed from it on
// load, and exposes the root module stub plus a flat list of its non-opcode
// stubs.
package portable

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kestrelengine/scriptcore/internal/stub"
	"github.com/kestrelengine/scriptcore/internal/stubcodec"
)

// Data is one loaded module: the durable packed buffer plus the arena
// reconstructed from it. Re-`Load`ing clears and rebuilds the arena from
// scratch rather than mutating one in place, so a partially-decoded buffer
// can never leave stale stubs behind.
type Data struct {
	// BuildID is a content-independent identifier stamped fresh by every
	// Pack and every Load call, so two loads of the same buffer carry
	// different ids. Nothing else in this module reads it.
	BuildID uuid.UUID

	Path string // depot or filesystem path this buffer was loaded from, for diagnostics

	buf   []byte
	arena *stub.Arena
	root  stub.Ref
}

// Pack serializes the module rooted at root within a into a new Data.
func Pack(a *stub.Arena, root stub.Ref, path string) (*Data, error) {
	buf, err := stubcodec.Pack(a, root)
	if err != nil {
		return nil, fmt.Errorf("portable: pack %s: %w", path, err)
	}
	return &Data{BuildID: uuid.New(), Path: path, buf: buf, arena: a, root: root}, nil
}

// Load reconstructs the arena from the durable buffer, discarding any
// previously reconstructed arena. Called once after reading buf from disk,
// and again on every reload.
func Load(buf []byte, path string) (*Data, error) {
	a, root, err := stubcodec.Unpack(buf)
	if err != nil {
		return nil, fmt.Errorf("portable: load %s: %w", path, err)
	}
	return &Data{BuildID: uuid.New(), Path: path, buf: buf, arena: a, root: root}, nil
}

// Bytes returns the durable packed buffer, suitable for writing to disk or
// shipping to a remote linking service.
func (d *Data) Bytes() []byte { return d.buf }

// Arena returns the reconstructed-on-load linear arena.
func (d *Data) Arena() *stub.Arena { return d.arena }

// Root returns the root module stub's reference.
func (d *Data) Root() stub.Ref { return d.root }

// Module resolves Root to its concrete *stub.ModuleStub.
func (d *Data) Module() (*stub.ModuleStub, bool) {
	return stub.AsModule(d.arena.Get(d.root))
}

// NonOpcodeStubs returns every stub in the arena whose tag is not Opcode, in
// arena index order. The linker does not use it: its symbol collection walks
// each module's files and their top-level stubs recursively.
func (d *Data) NonOpcodeStubs() []stub.Stub {
	all := d.arena.All()
	out := make([]stub.Stub, 0, len(all))
	for _, s := range all {
		if s == nil || s.Tag() == stub.TagOpcode {
			continue
		}
		out = append(out, s)
	}
	return out
}
