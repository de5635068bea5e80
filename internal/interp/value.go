// Package interp implements the stack-frame interpreter (spec §4.7): the
// opcode dispatch loop that executes a CodeBlock's compact byte stream for
// one function call. It is the runtime counterpart to the AOT translator
// (package aot) -- both walk the same opcode stream, one by direct
// execution, the other by emitting equivalent C.
package interp

// Object is an opaque host-owned value: a scripted object instance, a
// strong or weak handle, or a struct instance. The interpreter never
// interprets its contents directly; every operation on it goes through the
// Host callback vtable (spec §6 "Host callback vtable"), matching how the
// original engine keeps object lifetime under the host's ownership model
// rather than the scripting core's (spec §1 non-goal: "no GC of script
// objects").
type Object interface{}

// structInstance is the interpreter's in-process representation of a
// compound (struct) value: a set of member cells addressed by the same
// byte offsets the linker assigned to the struct's properties. Go's memory
// model has no use for raw pointer arithmetic into a byte buffer the way
// the original native engine does, so StructMember/StructMemberRef address
// a cell in this map rather than a byte slice -- a faithful but
// memory-safe stand-in for "offset into a struct value" (see DESIGN.md).
type structInstance struct {
	fields map[uint16]*Value
}

func newStructInstance() *structInstance {
	return &structInstance{fields: make(map[uint16]*Value)}
}

func (s *structInstance) cell(offset uint16) *Value {
	c, ok := s.fields[offset]
	if !ok {
		c = &Value{}
		s.fields[offset] = c
	}
	return c
}

// Value is the interpreter's tagged runtime value. Every opcode family
// documented in spec §4.7 produces or consumes one; which field is
// meaningful is implicit in the opcode's width/kind, the same way the
// portable StubOpcode.Imm union (spec §3) is interpreted according to the
// opcode it belongs to.
type Value struct {
	U   uint64  // raw bits for bool/int/uint, masked to the operation's width
	F   float64 // canonical float storage for both Float (32-bit) and Double
	Str string  // NameConst/StringConst payload
	Obj Object  // class/struct instances, strong/weak handles
}

func boolVal(b bool) Value {
	if b {
		return Value{U: 1}
	}
	return Value{}
}

func (v Value) asBool() bool { return v.U != 0 }

// asInt sign-extends the low `width` bits of v.U to a full int64.
func (v Value) asInt(width int) int64 {
	switch width {
	case 8:
		return int64(int8(v.U))
	case 16:
		return int64(int16(v.U))
	case 32:
		return int64(int32(v.U))
	default:
		return int64(v.U)
	}
}

// asUint masks v.U down to `width` bits.
func (v Value) asUint(width int) uint64 {
	switch width {
	case 8:
		return v.U & 0xFF
	case 16:
		return v.U & 0xFFFF
	case 32:
		return v.U & 0xFFFFFFFF
	default:
		return v.U
	}
}

func intVal(x int64, width int) Value {
	return Value{U: maskWidth(uint64(x), width)}
}

func uintVal(x uint64, width int) Value {
	return Value{U: maskWidth(x, width)}
}

func maskWidth(x uint64, width int) uint64 {
	switch width {
	case 8:
		return x & 0xFF
	case 16:
		return x & 0xFFFF
	case 32:
		return x & 0xFFFFFFFF
	default:
		return x
	}
}

func floatVal(f float64, isDouble bool) Value {
	if !isDouble {
		f = float64(float32(f))
	}
	return Value{F: f}
}
