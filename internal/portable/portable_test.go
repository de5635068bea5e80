package portable

import (
	"testing"

	"github.com/kestrelengine/scriptcore/internal/stub"
)

func buildModule() (*stub.Arena, stub.Ref) {
	a := stub.NewArena()
	fn := &stub.FunctionStub{Base: stub.Base{Name: "add"}}
	fnRef := a.Add(fn)
	file := &stub.FileStub{DepotPath: "math.script", TopLevel: []stub.Ref{fnRef}}
	fileRef := a.Add(file)
	mod := stub.NewModule("math")
	mod.Files = []stub.Ref{fileRef}
	modRef := a.Add(mod)
	return a, modRef
}

func TestPackLoadRoundTrip(t *testing.T) {
	a, modRef := buildModule()
	d, err := Pack(a, modRef, "math.smod")
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if d.BuildID.String() == "" {
		t.Fatalf("expected a non-empty build id")
	}

	d2, err := Load(d.Bytes(), "math.smod")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d2.BuildID == d.BuildID {
		t.Fatalf("expected reload to stamp a new build id")
	}
	mod, ok := d2.Module()
	if !ok || mod.Base().Name != "math" {
		t.Fatalf("Module() = %+v, %v", mod, ok)
	}
}

func TestNonOpcodeStubsExcludesOpcodes(t *testing.T) {
	a := stub.NewArena()
	op := a.Add(&stub.OpcodeStub{Op: stub.OpNop})
	fn := &stub.FunctionStub{Base: stub.Base{Name: "f"}, Opcodes: []stub.Ref{op}}
	fnRef := a.Add(fn)
	file := &stub.FileStub{TopLevel: []stub.Ref{fnRef}}
	fileRef := a.Add(file)
	mod := stub.NewModule("m")
	mod.Files = []stub.Ref{fileRef}
	modRef := a.Add(mod)

	d, err := Pack(a, modRef, "m.smod")
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	for _, s := range d.NonOpcodeStubs() {
		if s.Tag() == stub.TagOpcode {
			t.Fatalf("NonOpcodeStubs leaked an opcode stub: %+v", s)
		}
	}
}
