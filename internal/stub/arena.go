package stub

import "fmt"

// Ref is a dense index into an Arena's stub slab. Zero is the reserved null
// reference (spec §3/§6: "index 0 reserved for null"). Refs replace the
// original raw intra-arena pointers (spec §9 design note) so the graph
// stays relocatable and safe to reconstruct on every load.
type Ref uint32

// NullRef is the zero value, always invalid / absent.
const NullRef Ref = 0

// SourceLoc is a source location: a reference to a TagFile stub plus a line
// number. A zero File ref means "no known location".
type SourceLoc struct {
	File Ref
	Line int
}

// Base is embedded in every concrete stub struct. It carries the fields
// every stub kind has per spec §3: an owning back-reference, a source
// location, a flag set, and a simple name.
type Base struct {
	Owner Ref // nullable back-reference to the owning stub
	Loc   SourceLoc
	Flags Flag
	Name  string
}

// Arena owns every stub of one loaded module in a single append-only slab
// (spec §3: "all stubs of a loaded module are owned by that module's linear
// arena, allocated once, freed together"). Index 0 is always the null
// sentinel stub.
type Arena struct {
	stubs []Stub
}

// NewArena creates an arena with the null sentinel already in slot 0.
func NewArena() *Arena {
	return &Arena{stubs: []Stub{nil}}
}

// Add appends a stub and returns its Ref.
func (a *Arena) Add(s Stub) Ref {
	a.stubs = append(a.stubs, s)
	return Ref(len(a.stubs) - 1)
}

// Len returns the number of slots, including the null sentinel.
func (a *Arena) Len() int { return len(a.stubs) }

// Get resolves a Ref to its Stub, or nil for NullRef. A Ref whose index is
// out of bounds is a format error the caller must have already validated
// (see stubcodec); Get panics in that case since it indicates corrupted
// internal state rather than untrusted input.
func (a *Arena) Get(r Ref) Stub {
	if r == NullRef {
		return nil
	}
	if int(r) >= len(a.stubs) {
		panic(fmt.Sprintf("stub: ref %d out of bounds (len %d)", r, len(a.stubs)))
	}
	return a.stubs[r]
}

// InBounds reports whether r is NullRef or a valid index into the arena.
// stubcodec uses this to turn an out-of-range reference into a format error
// instead of a panic (spec §4.2 invariant).
func (a *Arena) InBounds(r Ref) bool {
	return r == NullRef || int(r) < len(a.stubs)
}

// All returns every stub in index order (index 0 is nil).
func (a *Arena) All() []Stub { return a.stubs }

// SetAt overwrites the stub at an already-allocated slot. Used by the
// codec's unpack path, which must allocate a shell for every index before
// any shell can reference another by index (back- and forward-references
// resolved uniformly, spec §4.2).
func (a *Arena) SetAt(r Ref, s Stub) {
	a.stubs[r] = s
}

// Reserve grows the arena to hold n stubs (including the null sentinel),
// filling new slots with nil shells to be set later via set.
func (a *Arena) Reserve(n int) {
	for len(a.stubs) < n {
		a.stubs = append(a.stubs, nil)
	}
}
