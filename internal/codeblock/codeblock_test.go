package codeblock

import (
	"testing"

	"github.com/kestrelengine/scriptcore/internal/hosttype"
	"github.com/kestrelengine/scriptcore/internal/stub"
)

// fakeResolver is a minimal Resolver backed by maps, standing in for the
// linker in these tests.
type fakeResolver struct {
	a           *stub.Arena
	layouts     map[stub.Ref]hosttype.TypeInfo
	propOffsets map[stub.Ref]uint16
	funcIDs     map[stub.Ref]uint32
	classIDs    map[stub.Ref]uint32
	enumWidths  map[stub.Ref]struct {
		width  uint8
		signed bool
	}
	argEncodings map[stub.Ref][]CallEncoding
}

func newFakeResolver(a *stub.Arena) *fakeResolver {
	return &fakeResolver{
		a:           a,
		layouts:     map[stub.Ref]hosttype.TypeInfo{},
		propOffsets: map[stub.Ref]uint16{},
		funcIDs:     map[stub.Ref]uint32{},
		classIDs:    map[stub.Ref]uint32{},
		enumWidths: map[stub.Ref]struct {
			width  uint8
			signed bool
		}{},
		argEncodings: map[stub.Ref][]CallEncoding{},
	}
}

func (f *fakeResolver) Arena() *stub.Arena { return f.a }

func (f *fakeResolver) Layout(declRef stub.Ref) (hosttype.TypeInfo, bool) {
	info, ok := f.layouts[declRef]
	return info, ok
}

func (f *fakeResolver) PropertyOffset(propRef stub.Ref) (uint16, bool) {
	return f.propOffsets[propRef], true
}

func (f *fakeResolver) FunctionID(fnRef stub.Ref) (uint32, bool) {
	id, ok := f.funcIDs[fnRef]
	return id, ok
}

func (f *fakeResolver) ClassID(classRef stub.Ref) (uint32, bool) {
	id, ok := f.classIDs[classRef]
	return id, ok
}

func (f *fakeResolver) EnumWidth(enumRef stub.Ref) (uint8, bool, bool) {
	w, ok := f.enumWidths[enumRef]
	return w.width, w.signed, ok
}

func (f *fakeResolver) FunctionArgEncodings(fnRef stub.Ref) ([]CallEncoding, bool) {
	e, ok := f.argEncodings[fnRef]
	return e, ok
}

// newOpcode appends a new OpcodeStub to the arena and returns its Ref.
func newOpcode(a *stub.Arena, op stub.OpKind) stub.Ref {
	return a.Add(&stub.OpcodeStub{Op: op})
}

func TestBuildSimpleArithmeticFunction(t *testing.T) {
	a := stub.NewArena()
	r := newFakeResolver(a)

	// int a; a = 1 + 2; return a;
	localDecl := a.Add(&stub.TypeDeclStub{Kind: stub.DeclEngine, EngineName: "int"})
	r.layouts[localDecl] = hosttype.TypeInfo{Size: 4, Align: 4}

	fn := &stub.FunctionStub{Base: stub.Base{Name: "add"}}

	ctor := newOpcode(a, stub.OpLocalCtor)
	a.Get(ctor).(*stub.OpcodeStub).Imm.U = 0
	a.Get(ctor).(*stub.OpcodeStub).Referenced = localDecl

	one := newOpcode(a, stub.OpIntConst1)
	a.Get(one).(*stub.OpcodeStub).Imm.U = 1

	two := newOpcode(a, stub.OpIntConst1)
	a.Get(two).(*stub.OpcodeStub).Imm.U = 2

	add := newOpcode(a, stub.OpAddInt32)

	store := newOpcode(a, stub.OpLocalVar)
	a.Get(store).(*stub.OpcodeStub).Imm.U = 0
	a.Get(store).(*stub.OpcodeStub).Referenced = localDecl

	assign := newOpcode(a, stub.OpAssignInt4)

	load := newOpcode(a, stub.OpLocalVar)
	a.Get(load).(*stub.OpcodeStub).Imm.U = 0
	a.Get(load).(*stub.OpcodeStub).Referenced = localDecl

	ret := newOpcode(a, stub.OpReturnLoad4)

	fn.Opcodes = []stub.Ref{ctor, one, two, add, store, assign, load, ret}

	cb, err := Build(fn, r, "add.fn")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cb.LocalSize != 4 || cb.LocalAlign != 4 {
		t.Fatalf("local layout = %d/%d, want 4/4", cb.LocalSize, cb.LocalAlign)
	}
	if len(cb.Locals) != 1 || cb.Locals[0].Offset != 0 {
		t.Fatalf("locals = %+v, want one slot at offset 0", cb.Locals)
	}
	if len(cb.Code) == 0 {
		t.Fatal("Code is empty")
	}
}

func TestBuildJumpDelta(t *testing.T) {
	a := stub.NewArena()
	r := newFakeResolver(a)
	fn := &stub.FunctionStub{Base: stub.Base{Name: "loop"}}

	label := newOpcode(a, stub.OpLabel)
	cond := newOpcode(a, stub.OpBoolTrue)
	jmp := newOpcode(a, stub.OpJumpIfFalse)
	a.Get(jmp).(*stub.OpcodeStub).Target = label
	nop := newOpcode(a, stub.OpNop)

	fn.Opcodes = []stub.Ref{label, cond, jmp, nop}

	cb, err := Build(fn, r, "loop.fn")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(cb.Code) == 0 {
		t.Fatal("Code is empty")
	}
}

func TestBuildUnresolvedJumpTargetErrors(t *testing.T) {
	a := stub.NewArena()
	r := newFakeResolver(a)
	fn := &stub.FunctionStub{Base: stub.Base{Name: "badjump"}}

	jmp := newOpcode(a, stub.OpJump)
	a.Get(jmp).(*stub.OpcodeStub).Target = stub.NullRef
	fn.Opcodes = []stub.Ref{jmp}

	if _, err := Build(fn, r, "bad.fn"); err == nil {
		t.Fatal("expected error for unresolved jump target")
	}
}

func TestFilterConstructDestructDropsZeroInitCtor(t *testing.T) {
	a := stub.NewArena()
	r := newFakeResolver(a)
	fn := &stub.FunctionStub{Base: stub.Base{Name: "f"}}

	declRef := a.Add(&stub.TypeDeclStub{Kind: stub.DeclEngine, EngineName: "int"})
	r.layouts[declRef] = hosttype.TypeInfo{
		Size: 4, Align: 4,
		Traits: hosttype.Traits{RequiresConstructor: false, ZeroInitConstructor: true},
	}

	ctor := newOpcode(a, stub.OpLocalCtor)
	a.Get(ctor).(*stub.OpcodeStub).Referenced = declRef
	a.Get(ctor).(*stub.OpcodeStub).Imm.U = 0

	ret := newOpcode(a, stub.OpReturnDirect)
	fn.Opcodes = []stub.Ref{ctor, ret}

	ops, _, err := specializeAndFilter(a, fn, r)
	if err != nil {
		t.Fatalf("specializeAndFilter: %v", err)
	}
	if len(ops) != 1 || ops[0].op != stub.OpReturnDirect {
		t.Fatalf("ctor was not dropped: %+v", ops)
	}
}

func TestSpecializeEnumToInt32(t *testing.T) {
	a := stub.NewArena()
	r := newFakeResolver(a)
	enumDecl := a.Add(&stub.EnumStub{Base: stub.Base{Name: "Color"}})
	r.enumWidths[enumDecl] = struct {
		width  uint8
		signed bool
	}{width: 1, signed: false}

	op := &stub.OpcodeStub{Op: stub.OpEnumToInt32, Referenced: enumDecl}
	got := specialize(op, r)
	if got != stub.OpExpandUnsigned8To32 {
		t.Fatalf("specialize(EnumToInt32, width=1,unsigned) = %v, want ExpandUnsigned8To32", got)
	}
}

func TestSpecializeInt32ToEnum(t *testing.T) {
	a := stub.NewArena()
	r := newFakeResolver(a)
	enumDecl := a.Add(&stub.EnumStub{Base: stub.Base{Name: "Color"}})
	r.enumWidths[enumDecl] = struct {
		width  uint8
		signed bool
	}{width: 1, signed: false}

	op := &stub.OpcodeStub{Op: stub.OpInt32ToEnum, Referenced: enumDecl}
	got := specialize(op, r)
	if got != stub.OpContract32To8 {
		t.Fatalf("specialize(Int32ToEnum, width=1) = %v, want Contract32To8", got)
	}
}

func TestDecodeOpIDRoundTrip(t *testing.T) {
	cases := []uint16{0, 1, 0x7F, 0x80, 0x81, 0x3FFF}
	for _, id := range cases {
		buf := appendOpID(nil, id)
		if len(buf) != idSize(id) {
			t.Fatalf("idSize(%d) = %d, appendOpID wrote %d bytes", id, idSize(id), len(buf))
		}
		got, n, ok := DecodeOpID(buf, 0)
		if !ok || got != id || n != len(buf) {
			t.Fatalf("DecodeOpID(append(%d)) = %d,%d,%v", id, got, n, ok)
		}
	}
}
