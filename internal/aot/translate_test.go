package aot

import (
	"strings"
	"testing"

	"github.com/kestrelengine/scriptcore/internal/codeblock"
	"github.com/kestrelengine/scriptcore/internal/hosttype"
	"github.com/kestrelengine/scriptcore/internal/registry"
	"github.com/kestrelengine/scriptcore/internal/stub"
)

// fakeResolver is the same minimal codeblock.Resolver stand-in the
// codeblock package's own tests use.
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
	argEncodings map[stub.Ref][]codeblock.CallEncoding
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
		argEncodings: map[stub.Ref][]codeblock.CallEncoding{},
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

func (f *fakeResolver) FunctionArgEncodings(fnRef stub.Ref) ([]codeblock.CallEncoding, bool) {
	e, ok := f.argEncodings[fnRef]
	return e, ok
}

func newOpcode(a *stub.Arena, op stub.OpKind) stub.Ref {
	return a.Add(&stub.OpcodeStub{Op: op})
}

// buildAddBlock builds the compiled form of the spec's canonical
// "int a; a = 1 + 2; return a;" function, the same shape
// internal/codeblock's own TestBuildSimpleArithmeticFunction exercises.
func buildAddBlock(t *testing.T) *codeblock.CodeBlock {
	t.Helper()
	a := stub.NewArena()
	r := newFakeResolver(a)

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

	fn.Opcodes = []stub.Ref{ctor, assign, store, add, one, two, ret, load}

	cb, err := codeblock.Build(fn, r, "add.fn")
	if err != nil {
		t.Fatalf("codeblock.Build: %v", err)
	}
	return cb
}

func TestTranslateFunctionEmitsCFunction(t *testing.T) {
	block := buildAddBlock(t)
	fn := &registry.HostFunction{
		Name:        "add",
		ParentClass: "Math",
		Block:       block,
		ReturnWidth: 32,
		ArgCount:    0,
		CodeHash:    0x1234,
	}

	src, err := TranslateFunction(fn, hosttype.NewReflectInsight())
	if err != nil {
		t.Fatalf("TranslateFunction: %v", err)
	}

	wantSig := "int32_t sc_fn_Math_add(void *this_, ScRtContext *rt) {"
	if !strings.Contains(src, wantSig) {
		t.Fatalf("generated source missing signature %q:\n%s", wantSig, src)
	}
	if !strings.Contains(src, "// generated from add.fn:0") {
		t.Fatalf("generated source missing origin comment:\n%s", src)
	}
	if !strings.Contains(src, "ScRtValue _local0 = {0};") {
		t.Fatalf("generated source missing local slot declaration:\n%s", src)
	}
}

func TestTranslateFunctionRequiresCompiledBlock(t *testing.T) {
	fn := &registry.HostFunction{Name: "nobody"}
	if _, err := TranslateFunction(fn, hosttype.NewReflectInsight()); err == nil {
		t.Fatal("expected an error for a function with no compiled code block")
	}
}

func TestFunctionNameQualifiesWithParentClass(t *testing.T) {
	fn := &registry.HostFunction{Name: "bar", ParentClass: "Foo"}
	if got, want := FunctionName(fn), "sc_fn_Foo_bar"; got != want {
		t.Fatalf("FunctionName = %q, want %q", got, want)
	}
	fn2 := &registry.HostFunction{Name: "bar"}
	if got, want := FunctionName(fn2), "sc_fn_bar"; got != want {
		t.Fatalf("FunctionName (no class) = %q, want %q", got, want)
	}
}

func TestForwarderName(t *testing.T) {
	if got, want := ForwarderName(7), "fn_7"; got != want {
		t.Fatalf("ForwarderName(7) = %q, want %q", got, want)
	}
}

func TestBuildModuleRegistersCodeHash(t *testing.T) {
	block := buildAddBlock(t)
	fn := &registry.HostFunction{
		Name:        "add",
		ParentClass: "Math",
		Block:       block,
		ReturnWidth: 32,
		CodeHash:    0xdeadbeef,
	}
	mod, err := BuildModule([]*registry.HostFunction{fn}, map[*registry.HostFunction]uint32{fn: 1}, hosttype.NewReflectInsight())
	if err != nil {
		t.Fatalf("BuildModule: %v", err)
	}
	if !strings.Contains(mod.Source, "0x00000000deadbeefULL") {
		t.Fatalf("generated module init missing registered code hash:\n%s", mod.Source)
	}
	if !strings.Contains(mod.Source, "sc_rt_register(reg, 1u, \"add\"") {
		t.Fatalf("generated module init missing registration call:\n%s", mod.Source)
	}
}
