package stub

import "testing"

func buildSimpleModule(a *Arena) (modRef Ref, fnRef Ref) {
	file := &FileStub{DepotPath: "game/scripts/math.script"}
	fileRef := a.Add(file)
	file.Base.Loc.File = fileRef

	arg0 := &FunctionArgStub{Base: Base{Name: "a"}, Index: 0}
	arg0.TypeDecl = addEngineInt(a)
	arg0Ref := a.Add(arg0)

	arg1 := &FunctionArgStub{Base: Base{Name: "b"}, Index: 1}
	arg1.TypeDecl = addEngineInt(a)
	arg1Ref := a.Add(arg1)

	fn := &FunctionStub{Base: Base{Name: "add"}, ReturnType: addEngineInt(a), Args: []Ref{arg0Ref, arg1Ref}}
	fnRef = a.Add(fn)
	fn.Base.Owner = fileRef

	mod := NewModule("math")
	modRef = a.Add(mod)
	mod.Files = []Ref{fileRef}
	file.TopLevel = []Ref{fnRef}
	file.Base.Owner = modRef

	return modRef, fnRef
}

func addEngineInt(a *Arena) Ref {
	decl := &TypeDeclStub{Kind: DeclEngine, EngineName: "int32"}
	return a.Add(decl)
}

func TestFullyQualifiedName(t *testing.T) {
	a := NewArena()
	_, fnRef := buildSimpleModule(a)
	fn, _ := AsFunction(a.Get(fnRef))
	got := FullyQualifiedName(a, fn)
	if got != "add" {
		t.Fatalf("FullyQualifiedName() = %q, want %q", got, "add")
	}
}

func TestModulePostLoadLookup(t *testing.T) {
	a := NewArena()
	modRef, fnRef := buildSimpleModule(a)
	mod, _ := AsModule(a.Get(modRef))
	PostLoadAll(a)
	got, ok := mod.Lookup("add")
	if !ok || got != fnRef {
		t.Fatalf("Lookup(add) = (%v, %v), want (%v, true)", got, ok, fnRef)
	}
}

func TestCanonicalForm(t *testing.T) {
	a := NewArena()
	d1 := a.Add(&TypeDeclStub{Kind: DeclEngine, EngineName: "int32"})
	arr := a.Add(&TypeDeclStub{Kind: DeclDynamicArray, Inner: d1})
	if got, want := Canonical(a, arr), "array<int32>"; got != want {
		t.Fatalf("Canonical() = %q, want %q", got, want)
	}
}

func TestEnumMatchRequiresSameOptions(t *testing.T) {
	a := NewArena()
	mkEnum := func(vals map[string]int64) *EnumStub {
		e := &EnumStub{Base: Base{Name: "E"}}
		for name, v := range vals {
			or := a.Add(&EnumOptionStub{Base: Base{Name: name}, Value: v, HasValue: true})
			e.Options = append(e.Options, or)
		}
		return e
	}
	e1 := mkEnum(map[string]int64{"A": 1, "B": 2})
	e2 := mkEnum(map[string]int64{"A": 1, "B": 2})
	e3 := mkEnum(map[string]int64{"A": 1, "B": 3})

	if !Match(a, e1, e2) {
		t.Fatalf("expected matching enums to match")
	}
	if Match(a, e1, e3) {
		t.Fatalf("expected differing enum values to mismatch")
	}
}

func TestClassMatchChecksMembers(t *testing.T) {
	a := NewArena()
	prop := func(name string) Ref {
		return a.Add(&PropertyStub{Base: Base{Name: name}, TypeDecl: addEngineInt(a)})
	}
	c1 := &ClassStub{Base: Base{Name: "Foo"}, Members: []Ref{prop("x")}}
	c2 := &ClassStub{Base: Base{Name: "Foo"}, Members: []Ref{prop("x")}}
	c3 := &ClassStub{Base: Base{Name: "Foo"}, Members: []Ref{prop("y")}}

	if !Match(a, c1, c2) {
		t.Fatalf("expected same-member classes to match")
	}
	if Match(a, c1, c3) {
		t.Fatalf("expected differently-named members to mismatch")
	}
}

func TestPruneDropsUnreferencedTopLevel(t *testing.T) {
	a := NewArena()
	_, fnRef := buildSimpleModule(a)
	other := a.Add(&FunctionStub{Base: Base{Name: "unused"}})

	file := &FileStub{TopLevel: []Ref{fnRef, other}}
	used := map[Ref]bool{fnRef: true}
	removed := 0
	file.Prune(a, used, &removed)

	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if len(file.TopLevel) != 1 || file.TopLevel[0] != fnRef {
		t.Fatalf("TopLevel = %v, want [%v]", file.TopLevel, fnRef)
	}
}
