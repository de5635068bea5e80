// Package linker implements the verifying linker (spec §4.5): it binds one
// or more portable modules to a host type system and a type registry,
// running the ten phases described there in order and aborting the whole
// load on the first hard error.
package linker

import (
	"fmt"
	"sync"

	"github.com/kestrelengine/scriptcore/internal/diag"
	"github.com/kestrelengine/scriptcore/internal/hosttype"
	"github.com/kestrelengine/scriptcore/internal/portable"
	"github.com/kestrelengine/scriptcore/internal/registry"
	"github.com/kestrelengine/scriptcore/internal/stub"
)

// Linker binds PortableData instances into a Registry against a host type
// Insight. A Linker instance is single-use per Load/Reload call; construct a
// fresh one (or call Load again) for each pass.
type Linker struct {
	Insight  hosttype.Insight
	Registry *registry.Registry

	// ParallelFunctions bounds how many function bodies phase 9 compiles
	// concurrently. Zero means unbounded.
	ParallelFunctions int

	bag        *diag.Bag
	symbols    map[string]*Symbol
	typeRefFQN map[site]string // TypeRefStub site -> resolved symbol FQN, see resolveTypeRef

	// propertyOffsets and scriptedSizes are filled by phase 8 (createExports)
	// and consulted by phase 9's linkResolver.
	propertyOffsets map[string]uint16
	scriptedSizes   map[string]layout

	// idMu guards funcIDs/classIDs, which phase 9 populates lazily and
	// concurrently across the compileFunctionBodies errgroup.
	idMu         sync.Mutex
	funcIDs      map[string]uint32
	classIDs     map[string]uint32
	idToFuncFQN  map[uint32]string
	idToClassFQN map[uint32]string
	nextFuncID   uint32
	nextClassID  uint32

	// diagMu guards bag writes from phase 9's concurrent function builds;
	// every other phase runs single-threaded and needs no lock.
	diagMu sync.Mutex

	mu sync.Mutex
}

// New creates a Linker targeting reg and resolving host types via insight.
func New(insight hosttype.Insight, reg *registry.Registry) *Linker {
	return &Linker{Insight: insight, Registry: reg, ParallelFunctions: 8}
}

// Load links modules into l.Registry, running phases 1-10 in order. On any
// hard error, nothing is committed: l.Registry is left untouched and Load
// returns the accumulated diagnostics.
func (l *Linker) Load(modules []*portable.Data) (*diag.Bag, error) {
	l.bag = &diag.Bag{}
	l.symbols = make(map[string]*Symbol)
	l.typeRefFQN = make(map[site]string)

	l.collectSymbols(modules)
	if l.bag.Fatal() {
		return l.bag, fmt.Errorf("link error: symbol collection failed")
	}

	l.validateParents()
	if l.bag.Fatal() {
		return l.bag, fmt.Errorf("link error: parent validation failed")
	}

	l.matchImportExport()
	if l.bag.Fatal() {
		return l.bag, fmt.Errorf("link error: import/export mismatch")
	}

	l.resolveAgainstHost()
	if l.bag.Fatal() {
		return l.bag, fmt.Errorf("link error: host resolution failed")
	}

	l.verifyTypeReferences(modules)
	if l.bag.Fatal() {
		return l.bag, fmt.Errorf("link error: type reference verification failed")
	}

	l.verifyPropertyCompatibility()
	l.verifyFunctionSignatureCompatibility()
	if l.bag.Fatal() {
		return l.bag, fmt.Errorf("link error: compatibility verification failed")
	}

	created := l.createExports()
	if l.bag.Fatal() {
		return l.bag, fmt.Errorf("link error: export creation failed")
	}

	if err := l.compileFunctionBodies(created); err != nil {
		return l.bag, err
	}
	if l.bag.Fatal() {
		return l.bag, fmt.Errorf("link error: function body compilation failed")
	}

	l.bindSpecialFunctions(created)

	return l.bag, nil
}

// Reload first links modules into a fresh shadow registry; if that fails it
// returns without touching l.Registry. On success it calls
// l.Registry.PrepareForReload and links the same modules into the live
// registry, so every class, struct, enum and function object that already
// existed keeps its identity.
func (l *Linker) Reload(modules []*portable.Data) (*diag.Bag, error) {
	shadow := registry.New()
	shadowLinker := New(l.Insight, shadow)
	shadowLinker.ParallelFunctions = l.ParallelFunctions

	bag, err := shadowLinker.Load(modules)
	if err != nil {
		return bag, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.Registry.PrepareForReload()
	return l.Load(modules)
}

func locOf(a *stub.Arena, b *stub.Base) diag.Location {
	loc := diag.Location{Line: b.Loc.Line}
	if f, ok := a.Get(b.Loc.File).(*stub.FileStub); ok {
		loc.File = f.DepotPath
	}
	return loc
}

// --- Phase 1: collect symbols ----------------------------------------------

func (l *Linker) collectSymbols(modules []*portable.Data) {
	for _, m := range modules {
		mod, ok := m.Module()
		if !ok {
			l.bag.Errorf(diag.KindLink, diag.Location{}, "module %s has no root module stub", m.Path)
			continue
		}
		a := m.Arena()
		l.walkFile(a, mod)
	}
}

func (l *Linker) walkFile(a *stub.Arena, mod *stub.ModuleStub) {
	for _, fr := range mod.Files {
		f, ok := stub.AsFile(a.Get(fr))
		if !ok {
			continue
		}
		for _, tr := range f.TopLevel {
			l.collectOne(a, tr)
		}
	}
}

func (l *Linker) collectOne(a *stub.Arena, r stub.Ref) {
	s := a.Get(r)
	if s == nil {
		return
	}
	switch v := s.(type) {
	case *stub.ClassStub:
		l.addSymbol(a, r, s)
		for _, mr := range v.Members {
			l.collectOne(a, mr)
		}
	case *stub.EnumStub:
		l.addSymbol(a, r, s)
	case *stub.FunctionStub:
		l.addSymbol(a, r, s)
	case *stub.PropertyStub:
		l.addSymbol(a, r, s)
	}
}

func (l *Linker) addSymbol(a *stub.Arena, r stub.Ref, s stub.Stub) {
	fqn := stub.FullyQualifiedName(a, s)
	sym, ok := l.symbols[fqn]
	if !ok {
		sym = &Symbol{FQN: fqn, Kind: s.Tag()}
		l.symbols[fqn] = sym
	}
	isExport := !s.Meta().Flags.Has(stub.FlagImport)
	if isExport && sym.Export != nil {
		first, _ := sym.anySite()
		also := locOf(a, s.Meta())
		l.bag.Add(diag.Diagnostic{
			Kind: diag.KindLink, Severity: diag.SeverityError,
			Message: fmt.Sprintf("%q is exported from more than one module", fqn),
			At:      locOf(first.arena, first.stub().Meta()), Also: &also,
		})
		return
	}
	sym.addSite(a, r, isExport)
}

// --- Phase 2: validate parents ----------------------------------------------

func (l *Linker) validateParents() {
	for _, sym := range l.symbols {
		if sym.Kind != stub.TagFunction && sym.Kind != stub.TagProperty {
			continue
		}
		sv, ok := sym.anySite()
		if !ok {
			continue
		}
		owner := sv.stub().Meta().Owner
		if owner == stub.NullRef {
			continue // a global function
		}
		ownerStub := sv.arena.Get(owner)
		if ownerStub == nil {
			continue
		}
		ownerFQN := stub.FullyQualifiedName(sv.arena, ownerStub)
		if _, ok := l.symbols[ownerFQN]; !ok {
			l.bag.Errorf(diag.KindLink, locOf(sv.arena, sv.stub().Meta()),
				"%q has no symbol for its owning class %q", sym.FQN, ownerFQN)
		}
	}
}

// --- Phase 3: match import/export -------------------------------------------

// matchImportExport compares every import site against the symbol's export
// by structural signature. Each side's nested type-decl refs are resolved
// within its own arena before comparison -- stub.Match assumes both stubs
// share one arena, which does not hold across modules, so signatures are
// compared as canonical strings instead (documented simplification of
// spec §4.5 phase 3).
func (l *Linker) matchImportExport() {
	for _, sym := range l.symbols {
		if sym.Export == nil || len(sym.Import) == 0 {
			continue
		}
		expSig := signatureOf(sym.Export.arena, sym.Export.stub())
		for _, imp := range sym.Import {
			impSig := signatureOf(imp.arena, imp.stub())
			if expSig != impSig {
				also := locOf(sym.Export.arena, sym.Export.stub().Meta())
				l.bag.Add(diag.Diagnostic{
					Kind: diag.KindLink, Severity: diag.SeverityError,
					Message: fmt.Sprintf("import of %q does not match its export (%s vs %s)", sym.FQN, impSig, expSig),
					At:      locOf(imp.arena, imp.stub().Meta()), Also: &also,
				})
			}
		}
	}
}

func signatureOf(a *stub.Arena, s stub.Stub) string {
	switch v := s.(type) {
	case *stub.FunctionStub:
		sig := stub.Canonical(a, v.ReturnType) + "("
		for i, ar := range v.Args {
			if i > 0 {
				sig += ","
			}
			arg, _ := stub.AsFunctionArg(a.Get(ar))
			if arg == nil {
				continue
			}
			sig += fmt.Sprintf("%s:%d", stub.Canonical(a, arg.TypeDecl), arg.Flags&(stub.FlagRef|stub.FlagOut|stub.FlagExplicit))
		}
		sig += fmt.Sprintf(")st=%d,op=%s,alias=%s", v.Flags&(stub.FlagStatic|stub.FlagOperator|stub.FlagCast|stub.FlagFinal), v.OperatorName, v.OpcodeAliasName)
		return sig
	case *stub.EnumStub:
		sig := "engine=" + v.EngineImportName
		for _, or := range v.Options {
			opt, _ := stub.AsEnumOption(a.Get(or))
			if opt != nil {
				sig += fmt.Sprintf(";%s=%d", opt.Name, opt.Value)
			}
		}
		return sig
	case *stub.PropertyStub:
		// FlagImport itself is excluded: it is exactly the bit that
		// distinguishes an import site from its export, not a compatibility
		// criterion between them.
		return fmt.Sprintf("%s;flags=%d", stub.Canonical(a, v.TypeDecl), v.Flags&stub.FlagConst)
	case *stub.ClassStub:
		sig := fmt.Sprintf("engine=%s;parent=%s", v.EngineImportName, v.ParentName)
		for _, mr := range v.Members {
			if ms := a.Get(mr); ms != nil {
				sig += ";" + ms.Meta().Name
			}
		}
		return sig
	default:
		return s.Meta().Name
	}
}

// --- Phase 4: resolve against host -------------------------------------------

func (l *Linker) resolveAgainstHost() {
	for _, sym := range l.symbols {
		if sym.Export != nil {
			continue
		}
		sv, _ := sym.anySite()
		name := sym.FQN
		if cls, ok := sv.stub().(*stub.ClassStub); ok && cls.EngineImportName != "" {
			name = cls.EngineImportName
		} else if en, ok := sv.stub().(*stub.EnumStub); ok && en.EngineImportName != "" {
			name = en.EngineImportName
		}
		switch sym.Kind {
		case stub.TagClass, stub.TagEnum:
			if _, ok := l.Insight.Lookup(name); !ok {
				l.bag.Errorf(diag.KindLink, locOf(sv.arena, sv.stub().Meta()),
					"%q has no export and no matching host type %q", sym.FQN, name)
			}
		case stub.TagFunction:
			l.resolveFunctionAgainstHost(sym, sv)
		case stub.TagProperty:
			l.resolvePropertyAgainstHost(sym, sv)
		}
	}
}

// ownerHostName returns the FQN of s's owning class/struct and, separately,
// the name that class is known to the host under -- its engine import name
// if it has one, its FQN otherwise.
func ownerHostName(a *stub.Arena, owner stub.Ref) (ownerFQN, hostName string, ok bool) {
	if owner == stub.NullRef {
		return "", "", false
	}
	ownerStub := a.Get(owner)
	if ownerStub == nil {
		return "", "", false
	}
	ownerFQN = stub.FullyQualifiedName(a, ownerStub)
	hostName = ownerFQN
	if cls, isClass := stub.AsClass(ownerStub); isClass && cls.EngineImportName != "" {
		hostName = cls.EngineImportName
	}
	return ownerFQN, hostName, true
}

// resolveFunctionAgainstHost implements phase 4 for a function symbol with
// no export in this batch: it is resolved if an earlier Load/Reload already
// registered a same-named function for the same owner (so this import binds
// to that previously linked definition), or if its owner is itself a known
// host type (native class members are not individually modeled by Host Type
// Insight, so their signatures can't be checked here -- phase 7 picks up
// the cases that can be). Anything else is an unresolved import.
func (l *Linker) resolveFunctionAgainstHost(sym *Symbol, sv site) {
	fn, ok := sv.stub().(*stub.FunctionStub)
	if !ok {
		return
	}
	ownerFQN, hostName, hasOwner := ownerHostName(sv.arena, fn.Meta().Owner)
	if _, ok := l.Registry.LookupFunction(fn.Meta().Name, ownerFQN); ok {
		return
	}
	if hasOwner {
		if _, ok := l.Insight.Lookup(hostName); ok {
			return
		}
	}
	l.bag.Errorf(diag.KindLink, locOf(sv.arena, sv.stub().Meta()),
		"unresolved import %q: no export, host type, or previously linked definition", sym.FQN)
}

// resolvePropertyAgainstHost implements phase 4 for a property symbol with
// no export in this batch: resolved only if its owning class/struct is
// itself a known host type, since an individual property has no registry
// entry of its own to fall back on (unlike a function, see
// resolveFunctionAgainstHost).
func (l *Linker) resolvePropertyAgainstHost(sym *Symbol, sv site) {
	prop, ok := sv.stub().(*stub.PropertyStub)
	if !ok {
		return
	}
	if _, hostName, hasOwner := ownerHostName(sv.arena, prop.Meta().Owner); hasOwner {
		if _, ok := l.Insight.Lookup(hostName); ok {
			return
		}
	}
	l.bag.Errorf(diag.KindLink, locOf(sv.arena, sv.stub().Meta()),
		"unresolved import %q: no export and no matching host type", sym.FQN)
}

// --- Phase 5: verify type references -----------------------------------------

func (l *Linker) verifyTypeReferences(modules []*portable.Data) {
	for _, m := range modules {
		a := m.Arena()
		for i, s := range a.All() {
			decl, ok := s.(*stub.TypeDeclStub)
			if !ok {
				continue
			}
			l.verifyTypeDecl(a, stub.Ref(i), decl)
		}
	}
}

func (l *Linker) verifyTypeDecl(a *stub.Arena, declRef stub.Ref, decl *stub.TypeDeclStub) {
	switch decl.Kind {
	case stub.DeclEngine:
		if _, ok := l.Insight.Lookup(decl.EngineName); !ok {
			l.bag.Errorf(diag.KindLink, locOf(a, decl.Meta()), "engine type %q is not known to the host", decl.EngineName)
		}
	case stub.DeclSimple, stub.DeclClassType, stub.DeclPtr, stub.DeclWeakPtr:
		trRef := decl.TypeRef
		tr, ok := stub.AsTypeRef(a.Get(trRef))
		if !ok {
			l.bag.Errorf(diag.KindLink, locOf(a, decl.Meta()), "type declaration has no type reference")
			return
		}
		if !l.resolveTypeRef(a, trRef, tr) {
			l.bag.Errorf(diag.KindLink, locOf(a, tr.Meta()), "unresolved type reference")
		}
	case stub.DeclDynamicArray, stub.DeclStaticArray:
		if inner, ok := stub.AsTypeDecl(a.Get(decl.Inner)); ok {
			l.verifyTypeDecl(a, decl.Inner, inner)
		} else {
			l.bag.Errorf(diag.KindLink, locOf(a, decl.Meta()), "array type has no inner type")
		}
	}
}

// resolveTypeRef records, keyed by tr's own site, the fully-qualified name
// of the class/enum symbol tr names. A TypeRefStub's Resolved field is only
// meaningful for same-arena targets (a plain Ref cannot address another
// module's arena), so cross-module resolution goes through this map instead
// -- layout lookups (typeDeclLayout) consult it by FQN, never by Resolved,
// keeping same-module and cross-module references uniform.
func (l *Linker) resolveTypeRef(a *stub.Arena, trRef stub.Ref, tr *stub.TypeRefStub) bool {
	name, ok := stub.AsTypeName(a.Get(tr.Name))
	if !ok {
		return false
	}
	sym, ok := l.symbols[name.Name]
	if !ok {
		return false
	}
	sv, ok := sym.anySite()
	if !ok {
		return false
	}
	if sv.arena == a {
		tr.Resolved = sv.ref
	}
	if l.typeRefFQN == nil {
		l.typeRefFQN = make(map[site]string)
	}
	l.typeRefFQN[site{arena: a, ref: trRef}] = sym.FQN
	return true
}

// --- Phase 6: verify property compatibility ---------------------------------

func (l *Linker) verifyPropertyCompatibility() {
	for _, sym := range l.symbols {
		if sym.Kind != stub.TagProperty || sym.Export != nil {
			continue
		}
		for _, imp := range sym.Import {
			prop, ok := imp.stub().(*stub.PropertyStub)
			if !ok {
				continue
			}
			decl, ok := stub.AsTypeDecl(imp.arena.Get(prop.TypeDecl))
			if !ok {
				continue
			}
			if decl.Kind == stub.DeclClassType {
				tr, _ := stub.AsTypeRef(imp.arena.Get(decl.TypeRef))
				if tr == nil {
					continue
				}
				refName, _ := stub.AsTypeName(imp.arena.Get(tr.Name))
				if refName == nil {
					continue
				}
				info, ok := l.Insight.Lookup(refName.Name)
				if ok && info.Meta != hosttype.MetaClassRef && info.Meta != hosttype.MetaClass {
					l.bag.Errorf(diag.KindLink, locOf(imp.arena, prop.Meta()),
						"property %q declared class<%s> but host type is %s", sym.FQN, refName.Name, info.Meta)
				}
			}
		}
	}
}

// --- Phase 7: function signature compatibility -------------------------------

// verifyFunctionSignatureCompatibility compares an import-only function
// against a same-named function an earlier Load/Reload already registered
// (the registry is this port's stand-in for "the host function definition"
// when that definition is itself a previously linked script, not a native
// one -- native host function signatures are not modeled by Host Type
// Insight at all, C4 describes types, not callables, so nothing can be
// checked there). Return type width and argument count must match; nothing
// to compare against means phase 4 either accepted it as a native host
// member or already reported it unresolved.
func (l *Linker) verifyFunctionSignatureCompatibility() {
	for _, sym := range l.symbols {
		if sym.Kind != stub.TagFunction || sym.Export != nil {
			continue
		}
		sv, ok := sym.anySite()
		if !ok {
			continue
		}
		fn, ok := sv.stub().(*stub.FunctionStub)
		if !ok {
			continue
		}
		ownerFQN, _, _ := ownerHostName(sv.arena, fn.Meta().Owner)
		host, ok := l.Registry.LookupFunction(fn.Meta().Name, ownerFQN)
		if !ok {
			continue
		}

		if argCount := len(fn.Args); argCount != host.ArgCount {
			l.bag.Errorf(diag.KindLink, locOf(sv.arena, fn.Meta()),
				"%q takes %d argument(s), but the host function it resolves to takes %d", sym.FQN, argCount, host.ArgCount)
			continue
		}

		returnWidth := 0
		if fn.ReturnType != stub.NullRef {
			if lay, ok := l.typeDeclLayout(sv.arena, fn.ReturnType, l.scriptedSizes); ok {
				returnWidth = int(lay.Size) * 8
			} else {
				continue // return type not yet sized; nothing to compare
			}
		}
		if returnWidth != host.ReturnWidth {
			l.bag.Errorf(diag.KindLink, locOf(sv.arena, fn.Meta()),
				"%q returns a %d-bit value, but the host function it resolves to returns %d bits", sym.FQN, returnWidth, host.ReturnWidth)
		}
	}
}
