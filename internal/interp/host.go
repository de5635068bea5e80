package interp

import "github.com/kestrelengine/scriptcore/internal/diag"

// FaultKind enumerates the runtime faults the interpreter can raise (spec
// §7 "Runtime fault").
type FaultKind int

const (
	FaultNullDeref FaultKind = iota
	FaultDivByZero
	FaultBadCast
)

func (k FaultKind) String() string {
	switch k {
	case FaultNullDeref:
		return "null pointer dereference"
	case FaultDivByZero:
		return "division by zero"
	case FaultBadCast:
		return "bad dynamic cast"
	default:
		return "runtime fault"
	}
}

// Host is the engine-provided callback vtable the interpreter calls into
// for everything it does not own: object lifecycle, casts, enum/name
// conversions, property storage on a context object, and function
// dispatch (spec §6 "Host callback vtable"). A production embedder backs
// this with its live object model; tests back it with an in-memory fake
// (see interp_test.go).
type Host interface {
	// New allocates an object of the given host class id (ClassConst /
	// New opcodes).
	New(classID uint32) (Object, error)

	// ReadProperty and WriteProperty access a property at a byte offset on
	// a context object, honoring the external-buffer indirection non-struct
	// owners use (spec §4.7 "Context semantics").
	ReadProperty(ctx Object, offset uint16, external bool) (Value, error)
	WriteProperty(ctx Object, offset uint16, external bool, v Value) error

	// Call invokes a resolved host function directly (StaticFunc/
	// FinalFunc/InternalFunc). VirtualCall resolves funcID against self's
	// dynamic type before calling (VirtualFunc).
	Call(funcID uint32, self Object, args []Value) (Value, error)
	VirtualCall(funcID uint32, self Object, args []Value) (Value, error)

	// Casts and conversions (spec §6 "Reverse vtable ... dynamic casts,
	// class-to-name/string").
	DynamicCast(classID uint32, obj Object) (Object, bool)
	DynamicWeakCast(classID uint32, obj Object) (Object, bool)
	MetaCast(classID uint32, obj Object) (Object, bool)
	StrongToWeak(obj Object) Object
	WeakToStrong(obj Object) (Object, bool)
	ClassToName(obj Object) string
	ClassToString(obj Object) string
	ClassToBool(obj Object) bool

	EnumName(enumID uint32, value int64) (string, bool)
	EnumFromName(enumID uint32, name string) (int64, bool)

	// Fault reports a runtime fault at the current frame. If it returns
	// true the interpreter unwinds as if by a handled exception (returns
	// early from the current function); if false, the interpreter branches
	// to the compiler-provided fallback label when one exists, or
	// otherwise also returns early (spec §4.7 "Exception model").
	Fault(kind FaultKind, at diag.Location) (handled bool)
}
