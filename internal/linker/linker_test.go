package linker

import (
	"reflect"
	"testing"

	"github.com/kestrelengine/scriptcore/internal/hosttype"
	"github.com/kestrelengine/scriptcore/internal/portable"
	"github.com/kestrelengine/scriptcore/internal/registry"
	"github.com/kestrelengine/scriptcore/internal/stub"
)

type gameObject struct {
	Transform [16]byte
}

func addEngineInt32(a *stub.Arena) stub.Ref {
	return a.Add(&stub.TypeDeclStub{Kind: stub.DeclEngine, EngineName: "int32"})
}

// buildPlayerModule builds a single-module fixture: an enum Color, and a
// class Player (native base GameObject) with a property Health and a method
// Heal(amount int32).
func buildPlayerModule(t *testing.T) *portable.Data {
	t.Helper()
	a := stub.NewArena()

	file := &stub.FileStub{DepotPath: "game/player.script"}
	fileRef := a.Add(file)
	file.Base.Loc.File = fileRef

	optRed := a.Add(&stub.EnumOptionStub{Base: stub.Base{Name: "Red"}})
	optGreen := a.Add(&stub.EnumOptionStub{Base: stub.Base{Name: "Green"}, Value: 1, HasValue: true})
	optBlue := a.Add(&stub.EnumOptionStub{Base: stub.Base{Name: "Blue"}, Value: 2, HasValue: true})
	colorEnum := &stub.EnumStub{Base: stub.Base{Name: "Color"}, Options: []stub.Ref{optRed, optGreen, optBlue}}
	colorRef := a.Add(colorEnum)
	colorEnum.Base.Owner = fileRef

	playerClass := &stub.ClassStub{Base: stub.Base{Name: "Player"}, EngineImportName: "GameObject"}
	playerRef := a.Add(playerClass)
	playerClass.Base.Owner = fileRef

	healthProp := &stub.PropertyStub{Base: stub.Base{Name: "Health"}, TypeDecl: addEngineInt32(a)}
	healthRef := a.Add(healthProp)
	healthProp.Base.Owner = playerRef

	healArg := &stub.FunctionArgStub{Base: stub.Base{Name: "amount"}, Index: 0, TypeDecl: addEngineInt32(a)}
	healArgRef := a.Add(healArg)

	healFn := &stub.FunctionStub{Base: stub.Base{Name: "Heal"}, Args: []stub.Ref{healArgRef}}
	healRef := a.Add(healFn)
	healFn.Base.Owner = playerRef

	playerClass.Members = []stub.Ref{healthRef, healRef}

	mod := stub.NewModule("game")
	modRef := a.Add(mod)
	mod.Files = []stub.Ref{fileRef}
	file.TopLevel = []stub.Ref{colorRef, playerRef}
	file.Base.Owner = modRef

	stub.PostLoadAll(a)

	data, err := portable.Pack(a, modRef, "game/player.module")
	if err != nil {
		t.Fatalf("portable.Pack: %v", err)
	}
	return data
}

func newTestInsight() *hosttype.ReflectInsight {
	in := hosttype.NewReflectInsight()
	in.Register("int32", reflect.TypeOf(int32(0)), "")
	in.Register("GameObject", reflect.TypeOf(gameObject{}), "")
	return in
}

func TestLoadCreatesClassEnumAndFunctionExports(t *testing.T) {
	insight := newTestInsight()
	reg := registry.New()
	l := New(insight, reg)

	bag, err := l.Load([]*portable.Data{buildPlayerModule(t)})
	if err != nil {
		t.Fatalf("Load failed: %v (%v)", err, bag.Diagnostics())
	}
	if bag.Fatal() {
		t.Fatalf("Load reported fatal diagnostics: %v", bag.Diagnostics())
	}

	color, ok := reg.LookupEnum("Color")
	if !ok {
		t.Fatal("Color enum was not created")
	}
	if len(color.Options) != 3 || color.Options[0].Value != 0 || color.Options[1].Value != 1 || color.Options[2].Value != 2 {
		t.Fatalf("unexpected Color options: %+v", color.Options)
	}
	if color.Signed {
		t.Fatal("Color should be unsigned (no negative options)")
	}

	player, ok := reg.LookupClass("Player")
	if !ok {
		t.Fatal("Player class was not created")
	}
	if player.NativeBase != "GameObject" {
		t.Fatalf("Player.NativeBase = %q, want GameObject", player.NativeBase)
	}
	if player.Size < uint32(reflect.TypeOf(gameObject{}).Size())+4 {
		t.Fatalf("Player.Size = %d, want at least native base size + int32 field", player.Size)
	}

	heal, ok := reg.LookupFunction("Heal", "Player")
	if !ok {
		t.Fatal("Heal function was not created")
	}
	if heal.Block == nil {
		t.Fatal("Heal function body was not compiled")
	}
}

func TestLoadUnknownNativeBaseFails(t *testing.T) {
	insight := newTestInsight()
	reg := registry.New()
	l := New(insight, reg)

	data := buildPlayerModule(t)
	a := data.Arena()
	mod, _ := stub.AsModule(a.Get(data.Root()))
	f, _ := stub.AsFile(a.Get(mod.Files[0]))
	for _, r := range f.TopLevel {
		if cls, ok := stub.AsClass(a.Get(r)); ok && cls.Name == "Player" {
			cls.EngineImportName = "NoSuchNativeType"
		}
	}
	rePacked, err := portable.Pack(a, data.Root(), data.Path)
	if err != nil {
		t.Fatalf("repack: %v", err)
	}

	_, err = l.Load([]*portable.Data{rePacked})
	if err == nil {
		t.Fatal("expected Load to fail for an unresolvable native base")
	}
}

func TestReloadPreservesRegistryIdentityAcrossRelink(t *testing.T) {
	insight := newTestInsight()
	reg := registry.New()
	l := New(insight, reg)

	data := buildPlayerModule(t)
	if _, err := l.Load([]*portable.Data{data}); err != nil {
		t.Fatalf("initial Load failed: %v", err)
	}
	player1, _ := reg.LookupClass("Player")
	gen1 := reg.Generation

	if _, err := l.Reload([]*portable.Data{buildPlayerModule(t)}); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	player2, ok := reg.LookupClass("Player")
	if !ok {
		t.Fatal("Player class missing after reload")
	}
	if player1 != player2 {
		t.Fatal("Player class identity was not preserved across reload")
	}
	if reg.Generation == gen1 {
		t.Fatal("Generation did not change across reload")
	}
}

func TestLoadCrossModuleImportExportResolves(t *testing.T) {
	insight := newTestInsight()

	// Module A exports struct Weapon { Damage int32 }.
	a1 := stub.NewArena()
	file1 := &stub.FileStub{DepotPath: "game/weapon.script"}
	file1Ref := a1.Add(file1)
	file1.Base.Loc.File = file1Ref

	weapon := &stub.ClassStub{Base: stub.Base{Name: "Weapon", Flags: stub.FlagStruct}}
	weaponRef := a1.Add(weapon)
	weapon.Base.Owner = file1Ref

	damage := &stub.PropertyStub{Base: stub.Base{Name: "Damage"}, TypeDecl: addEngineInt32(a1)}
	damageRef := a1.Add(damage)
	damage.Base.Owner = weaponRef
	weapon.Members = []stub.Ref{damageRef}

	mod1 := stub.NewModule("weapons")
	mod1Ref := a1.Add(mod1)
	mod1.Files = []stub.Ref{file1Ref}
	file1.TopLevel = []stub.Ref{weaponRef}
	file1.Base.Owner = mod1Ref
	stub.PostLoadAll(a1)

	dataA, err := portable.Pack(a1, mod1Ref, "game/weapons.module")
	if err != nil {
		t.Fatalf("pack module A: %v", err)
	}

	// Module B imports Weapon (struct, import-only) and exports a class
	// Inventory with a MainHand property of type class<Weapon>.
	a2 := stub.NewArena()
	file2 := &stub.FileStub{DepotPath: "game/inventory.script"}
	file2Ref := a2.Add(file2)
	file2.Base.Loc.File = file2Ref

	weaponImport := &stub.ClassStub{Base: stub.Base{Name: "Weapon", Flags: stub.FlagStruct | stub.FlagImport}}
	weaponImportRef := a2.Add(weaponImport)
	weaponImport.Base.Owner = file2Ref

	damageImport := &stub.PropertyStub{Base: stub.Base{Name: "Damage", Flags: stub.FlagImport}, TypeDecl: addEngineInt32(a2)}
	damageImportRef := a2.Add(damageImport)
	damageImport.Base.Owner = weaponImportRef
	weaponImport.Members = []stub.Ref{damageImportRef}

	weaponName := a2.Add(&stub.TypeNameStub{Base: stub.Base{Name: "Weapon"}})
	weaponTypeRef := a2.Add(&stub.TypeRefStub{Name: weaponName})
	mainHandDecl := a2.Add(&stub.TypeDeclStub{Kind: stub.DeclClassType, TypeRef: weaponTypeRef})

	inventory := &stub.ClassStub{Base: stub.Base{Name: "Inventory"}, EngineImportName: "GameObject"}
	inventoryRef := a2.Add(inventory)
	inventory.Base.Owner = file2Ref

	mainHand := &stub.PropertyStub{Base: stub.Base{Name: "MainHand"}, TypeDecl: mainHandDecl}
	mainHandRef := a2.Add(mainHand)
	mainHand.Base.Owner = inventoryRef
	inventory.Members = []stub.Ref{mainHandRef}

	mod2 := stub.NewModule("inventory")
	mod2Ref := a2.Add(mod2)
	mod2.Files = []stub.Ref{file2Ref}
	file2.TopLevel = []stub.Ref{weaponImportRef, inventoryRef}
	file2.Base.Owner = mod2Ref
	stub.PostLoadAll(a2)

	dataB, err := portable.Pack(a2, mod2Ref, "game/inventory.module")
	if err != nil {
		t.Fatalf("pack module B: %v", err)
	}

	reg := registry.New()
	l := New(insight, reg)
	bag, err := l.Load([]*portable.Data{dataA, dataB})
	if err != nil {
		t.Fatalf("Load failed: %v (%v)", err, bag.Diagnostics())
	}

	if _, ok := reg.LookupStruct("Weapon"); !ok {
		t.Fatal("Weapon struct was not created from its exporting module")
	}
	if _, ok := reg.LookupClass("Inventory"); !ok {
		t.Fatal("Inventory class was not created")
	}
}

// TestLoadUnresolvedImportFunctionFails is the negative half of the
// cross-module symbol scenario: module B imports Foo.bar from a purely
// scripted class Foo, but no module exporting Foo or Foo.bar is loaded, and
// Foo has no native base either. Linking must fail naming the unresolved
// member, not silently accept it.
func TestLoadUnresolvedImportFunctionFails(t *testing.T) {
	insight := newTestInsight()

	a := stub.NewArena()
	file := &stub.FileStub{DepotPath: "game/consumer.script"}
	fileRef := a.Add(file)
	file.Base.Loc.File = fileRef

	fooImport := &stub.ClassStub{Base: stub.Base{Name: "Foo", Flags: stub.FlagImport}}
	fooRef := a.Add(fooImport)
	fooImport.Base.Owner = fileRef

	barImport := &stub.FunctionStub{Base: stub.Base{Name: "bar", Flags: stub.FlagImport}, ReturnType: addEngineInt32(a)}
	barRef := a.Add(barImport)
	barImport.Base.Owner = fooRef
	fooImport.Members = []stub.Ref{barRef}

	mod := stub.NewModule("consumer")
	modRef := a.Add(mod)
	mod.Files = []stub.Ref{fileRef}
	file.TopLevel = []stub.Ref{fooRef}
	file.Base.Owner = modRef
	stub.PostLoadAll(a)

	data, err := portable.Pack(a, modRef, "game/consumer.module")
	if err != nil {
		t.Fatalf("portable.Pack: %v", err)
	}

	reg := registry.New()
	l := New(insight, reg)
	bag, err := l.Load([]*portable.Data{data})
	if err == nil {
		t.Fatal("expected Load to fail for an unresolved function import")
	}
	if !bag.Fatal() {
		t.Fatal("expected the diagnostic bag to be fatal")
	}
	found := false
	for _, d := range bag.Diagnostics() {
		if d.Message == `unresolved import "Foo.bar": no export, host type, or previously linked definition` {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an unresolved-import diagnostic naming Foo.bar, got: %v", bag.Diagnostics())
	}
}

// TestLoadSignatureMismatchAcrossModulesFails is the negative half of the
// signature-mismatch scenario: two modules each export a function named
// "compute" with incompatible argument modes. Linking must abort without
// mutating the registry, reporting both source locations.
func TestLoadSignatureMismatchAcrossModulesFails(t *testing.T) {
	insight := newTestInsight()

	buildComputeModule := func(path, depotPath string, byRef bool) *portable.Data {
		a := stub.NewArena()
		file := &stub.FileStub{DepotPath: depotPath}
		fileRef := a.Add(file)
		file.Base.Loc.File = fileRef

		argFlags := stub.Flag(0)
		if byRef {
			argFlags = stub.FlagRef
		}
		arg := &stub.FunctionArgStub{Base: stub.Base{Name: "x"}, Index: 0, TypeDecl: addEngineInt32(a), Flags: argFlags}
		argRef := a.Add(arg)

		fn := &stub.FunctionStub{Base: stub.Base{Name: "compute"}, Args: []stub.Ref{argRef}, ReturnType: addEngineInt32(a)}
		fnRef := a.Add(fn)
		fn.Base.Owner = stub.NullRef
		fn.Base.Loc.File = fileRef

		mod := stub.NewModule(path)
		modRef := a.Add(mod)
		mod.Files = []stub.Ref{fileRef}
		file.TopLevel = []stub.Ref{fnRef}
		file.Base.Owner = modRef
		stub.PostLoadAll(a)

		data, err := portable.Pack(a, modRef, path+".module")
		if err != nil {
			t.Fatalf("portable.Pack: %v", err)
		}
		return data
	}

	dataA := buildComputeModule("mathA", "game/mathA.script", false)
	dataB := buildComputeModule("mathB", "game/mathB.script", true)

	reg := registry.New()
	l := New(insight, reg)
	bag, err := l.Load([]*portable.Data{dataA, dataB})
	if err == nil {
		t.Fatal("expected Load to fail for a duplicate, signature-mismatched export")
	}
	if !bag.Fatal() {
		t.Fatal("expected the diagnostic bag to be fatal")
	}
	foundBothLocations := false
	for _, d := range bag.Diagnostics() {
		if d.At.File != "" && d.Also != nil && d.Also.File != "" {
			foundBothLocations = true
		}
	}
	if !foundBothLocations {
		t.Fatalf("expected a diagnostic carrying both modules' source locations, got: %v", bag.Diagnostics())
	}
	if _, ok := reg.LookupFunction("compute", ""); ok {
		t.Fatal("registry must not be mutated when Load aborts")
	}
}

// TestLoadCrossLoadFunctionArgCountMismatchFails exercises phase 7 directly:
// a function already linked into the registry by an earlier Load acts as
// the host-side definition for a later Load's import of the same name; an
// argument-count mismatch between the two must be rejected.
func TestLoadCrossLoadFunctionArgCountMismatchFails(t *testing.T) {
	insight := newTestInsight()
	reg := registry.New()

	buildModule := func(modName, depotPath string, argCount int, isImport bool) *portable.Data {
		a := stub.NewArena()
		file := &stub.FileStub{DepotPath: depotPath}
		fileRef := a.Add(file)
		file.Base.Loc.File = fileRef

		var args []stub.Ref
		for i := 0; i < argCount; i++ {
			arg := &stub.FunctionArgStub{Base: stub.Base{Name: "a"}, Index: i, TypeDecl: addEngineInt32(a)}
			args = append(args, a.Add(arg))
		}
		flags := stub.Flag(0)
		if isImport {
			flags = stub.FlagImport
		}
		fn := &stub.FunctionStub{Base: stub.Base{Name: "compute", Flags: flags}, Args: args, ReturnType: addEngineInt32(a)}
		fnRef := a.Add(fn)
		fn.Base.Owner = stub.NullRef

		mod := stub.NewModule(modName)
		modRef := a.Add(mod)
		mod.Files = []stub.Ref{fileRef}
		file.TopLevel = []stub.Ref{fnRef}
		file.Base.Owner = modRef
		stub.PostLoadAll(a)

		data, err := portable.Pack(a, modRef, modName+".module")
		if err != nil {
			t.Fatalf("portable.Pack: %v", err)
		}
		return data
	}

	first := New(insight, reg)
	if _, err := first.Load([]*portable.Data{buildModule("mathBase", "game/mathBase.script", 2, false)}); err != nil {
		t.Fatalf("first Load failed: %v", err)
	}
	if host, ok := reg.LookupFunction("compute", ""); !ok || host.ArgCount != 2 {
		t.Fatalf("compute was not registered with ArgCount=2: %+v", host)
	}

	second := New(insight, reg)
	bag, err := second.Load([]*portable.Data{buildModule("mathConsumer", "game/mathConsumer.script", 1, true)})
	if err == nil {
		t.Fatal("expected the second Load to fail on an argument-count mismatch")
	}
	found := false
	for _, d := range bag.Diagnostics() {
		if d.Message == `"compute" takes 1 argument(s), but the host function it resolves to takes 2` {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an argument-count mismatch diagnostic, got: %v", bag.Diagnostics())
	}
}
