package codeblock

import (
	"github.com/kestrelengine/scriptcore/internal/hosttype"
	"github.com/kestrelengine/scriptcore/internal/stub"
)

// Resolver is implemented by the linker (spec §4.6: "a stub stub→host
// resolver"). The builder never touches the TypeRegistry or Host Type
// Insight directly; it only asks the resolver for the few facts it needs to
// lower one function.
type Resolver interface {
	Arena() *stub.Arena

	// Layout returns the host size/alignment/traits for a TypeDeclStub ref,
	// used to decide constructor/destructor filtering and opcode
	// specialization width.
	Layout(declRef stub.Ref) (hosttype.TypeInfo, bool)

	// PropertyOffset returns the byte offset of a PropertyStub already
	// materialized by linker phase 8, and whether it lives in an external
	// (out-of-object) buffer.
	PropertyOffset(propRef stub.Ref) (offset uint16, external bool)

	// FunctionID returns the stable numeric id of the host function a
	// StaticFunc/FinalFunc/VirtualFunc/InternalFunc opcode targets.
	FunctionID(fnRef stub.Ref) (uint32, bool)

	// ClassID returns the stable numeric id of a host class/struct, used by
	// New/DynamicCast/MetaCast/Constructor.
	ClassID(classRef stub.Ref) (uint32, bool)

	// EnumWidth returns the byte width (1/2/4/8) and signedness chosen for
	// a host enum during linker phase 8, used to specialize
	// Int32ToEnum/EnumToInt32/etc into the width-correct opcode.
	EnumWidth(enumRef stub.Ref) (width uint8, signed bool, ok bool)

	// FunctionArgEncodings returns the per-argument calling-encoding bytes
	// for a call target, derived from each argument's Ref/Out flag and its
	// type's traits (spec §4.6 "Function calls").
	FunctionArgEncodings(fnRef stub.Ref) ([]CallEncoding, bool)
}
