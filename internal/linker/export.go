package linker

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelengine/scriptcore/internal/codeblock"
	"github.com/kestrelengine/scriptcore/internal/diag"
	"github.com/kestrelengine/scriptcore/internal/hosttype"
	"github.com/kestrelengine/scriptcore/internal/registry"
	"github.com/kestrelengine/scriptcore/internal/stub"
)

// layout is the size/alignment/traits the linker computes for a type
// reference, whether it resolves to a host-native type or a scripted
// class/struct whose size is still being recomputed to a fixed point.
type layout struct {
	Size  uint32
	Align uint32
	Traits hosttype.Traits
}

// exportedFunction pairs a collected symbol's export site with the host
// object the registry created for it, ready for phase 9 (compile bodies).
type exportedFunction struct {
	sym  *Symbol
	site site
	host *registry.HostFunction
}

// created accumulates the host objects phase 8 materializes, so phase 9/10
// can walk them without re-querying the registry.
type created struct {
	classes   map[string]*registry.HostClass
	structs   map[string]*registry.HostStruct
	enums     map[string]*registry.HostEnum
	functions []exportedFunction
}

func sortedSymbolNames(symbols map[string]*Symbol) []string {
	names := make([]string, 0, len(symbols))
	for n := range symbols {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func alignUp(v, align uint32) uint32 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

type enumOptionValue struct {
	Name  string
	Value int64
}

// computeEnumValues resolves the implicit-or-explicit 64-bit value of every
// option in declaration order (spec §3 "EnumOptionStub ... implicit:
// previous option's value + 1, starting at 0").
func computeEnumValues(a *stub.Arena, e *stub.EnumStub) []enumOptionValue {
	out := make([]enumOptionValue, 0, len(e.Options))
	var next int64
	for _, r := range e.Options {
		opt, ok := stub.AsEnumOption(a.Get(r))
		if !ok {
			continue
		}
		v := next
		if opt.HasValue {
			v = opt.Value
		}
		out = append(out, enumOptionValue{Name: opt.Meta().Name, Value: v})
		next = v + 1
	}
	return out
}

// enumWidth picks the smallest storage width (1/2/4/8 bytes) that holds
// every value, signed if any value is negative (spec §4.5 phase 8).
func enumWidth(values []enumOptionValue) (width uint8, signed bool) {
	var min, max int64
	for i, v := range values {
		if i == 0 || v.Value < min {
			min = v.Value
		}
		if i == 0 || v.Value > max {
			max = v.Value
		}
	}
	signed = min < 0
	switch {
	case signed && min >= -128 && max <= 127:
		return 1, true
	case signed && min >= -32768 && max <= 32767:
		return 2, true
	case signed && min >= -(1<<31) && max <= (1<<31)-1:
		return 4, true
	case signed:
		return 8, true
	case max <= 0xFF:
		return 1, false
	case max <= 0xFFFF:
		return 2, false
	case max <= 0xFFFFFFFF:
		return 4, false
	default:
		return 8, false
	}
}

// nativeBaseFor climbs a non-struct class's scripted parent chain looking
// for the nearest engine import name (spec §4.5 phase 8: "find the nearest
// native base in the inheritance chain"). class.ParentName is expected to
// already be the parent's fully-qualified symbol name, the same convention
// EngineImportName and OuterName use elsewhere in this IR.
func (l *Linker) nativeBaseFor(class *stub.ClassStub) (string, bool) {
	if class.EngineImportName != "" {
		return class.EngineImportName, true
	}
	parent := class.ParentName
	seen := make(map[string]bool)
	for parent != "" && !seen[parent] {
		seen[parent] = true
		sym, ok := l.symbols[parent]
		if !ok {
			return "", false
		}
		sv, ok := sym.anySite()
		if !ok {
			return "", false
		}
		pc, ok := sv.stub().(*stub.ClassStub)
		if !ok {
			return "", false
		}
		if pc.EngineImportName != "" {
			return pc.EngineImportName, true
		}
		parent = pc.ParentName
	}
	return "", false
}

// typeDeclLayout resolves a type-decl's effective host layout. scripted
// carries the in-progress fixed-point sizes of exported classes/structs
// (spec §4.5 phase 8: "iteratively recompute ... until a fixed point").
func (l *Linker) typeDeclLayout(a *stub.Arena, declRef stub.Ref, scripted map[string]layout) (layout, bool) {
	decl, ok := stub.AsTypeDecl(a.Get(declRef))
	if !ok {
		return layout{}, false
	}
	switch decl.Kind {
	case stub.DeclEngine:
		info, ok := l.Insight.Lookup(decl.EngineName)
		if !ok {
			return layout{}, false
		}
		return layout{Size: info.Size, Align: info.Align, Traits: info.Traits}, true

	case stub.DeclSimple:
		fqn, ok := l.typeRefFQN[site{arena: a, ref: decl.TypeRef}]
		if !ok {
			return layout{}, false
		}
		if lay, ok := scripted[fqn]; ok {
			return lay, true
		}
		if info, ok := l.Insight.Lookup(fqn); ok {
			return layout{Size: info.Size, Align: info.Align, Traits: info.Traits}, true
		}
		sym, ok := l.symbols[fqn]
		if !ok {
			return layout{}, false
		}
		sv, ok := sym.anySite()
		if !ok {
			return layout{}, false
		}
		importName := ""
		switch v := sv.stub().(type) {
		case *stub.EnumStub:
			importName = v.EngineImportName
		case *stub.ClassStub:
			importName = v.EngineImportName
		}
		if importName == "" {
			return layout{}, false
		}
		info, ok := l.Insight.Lookup(importName)
		if !ok {
			return layout{}, false
		}
		return layout{Size: info.Size, Align: info.Align, Traits: info.Traits}, true

	case stub.DeclClassType, stub.DeclPtr, stub.DeclWeakPtr:
		// Strong/weak handles and class references are opaque host-runtime
		// handles of fixed pointer size regardless of pointee (spec §4.4
		// meta-kinds StrongHandle/WeakHandle/ClassRef).
		traits := hosttype.Traits{SimpleCopyCompare: true, ZeroInitConstructor: true}
		if decl.Kind == stub.DeclPtr {
			traits.RequiresDestructor = true
		}
		return layout{Size: 8, Align: 8, Traits: traits}, true

	case stub.DeclDynamicArray:
		return layout{
			Size: 24, Align: 8,
			Traits: hosttype.Traits{RequiresDestructor: true, ZeroInitConstructor: true},
		}, true

	case stub.DeclStaticArray:
		inner, ok := l.typeDeclLayout(a, decl.Inner, scripted)
		if !ok {
			return layout{}, false
		}
		return layout{Size: inner.Size * decl.ArraySize, Align: inner.Align, Traits: inner.Traits}, true
	}
	return layout{}, false
}

// --- Phase 8: create exports -------------------------------------------------

func (l *Linker) createExports() *created {
	c := &created{
		classes:   make(map[string]*registry.HostClass),
		structs:   make(map[string]*registry.HostStruct),
		enums:     make(map[string]*registry.HostEnum),
		functions: nil,
	}
	names := sortedSymbolNames(l.symbols)

	for _, name := range names {
		sym := l.symbols[name]
		if sym.Export == nil {
			continue
		}
		switch sym.Kind {
		case stub.TagEnum:
			en, ok := sym.Export.stub().(*stub.EnumStub)
			if !ok {
				continue
			}
			values := computeEnumValues(sym.Export.arena, en)
			width, signed := enumWidth(values)
			host, d := l.Registry.CreateEnum(name, width, signed)
			if d != nil {
				l.bag.Add(*d)
			}
			host.Options = host.Options[:0]
			for _, v := range values {
				host.Options = append(host.Options, registry.EnumValue{Name: v.Name, Value: v.Value})
			}
			c.enums[name] = host

		case stub.TagClass:
			cls, ok := sym.Export.stub().(*stub.ClassStub)
			if !ok {
				continue
			}
			if cls.IsStruct() {
				host, d := l.Registry.CreateStruct(name)
				if d != nil {
					l.bag.Add(*d)
				}
				c.structs[name] = host
			} else {
				base, ok := l.nativeBaseFor(cls)
				if !ok {
					l.bag.Errorf(diag.KindLink, locOf(sym.Export.arena, cls.Meta()), "class %q has no native base in its inheritance chain", name)
					continue
				}
				if _, ok := l.Insight.Lookup(base); !ok {
					l.bag.Errorf(diag.KindLink, locOf(sym.Export.arena, cls.Meta()), "class %q has native base %q, which is not known to the host", name, base)
					continue
				}
				host, d := l.Registry.CreateClass(name, base)
				if d != nil {
					l.bag.Add(*d)
				}
				c.classes[name] = host
			}
		}
	}
	if l.bag.Fatal() {
		return c
	}

	l.fixupSizes(names, c)
	if l.bag.Fatal() {
		return c
	}

	for _, name := range names {
		sym := l.symbols[name]
		if sym.Export == nil || sym.Kind != stub.TagFunction {
			continue
		}
		fn, ok := sym.Export.stub().(*stub.FunctionStub)
		if !ok {
			continue
		}
		parentFQN := ""
		if owner := fn.Meta().Owner; owner != stub.NullRef {
			if ownerStub := sym.Export.arena.Get(owner); ownerStub != nil {
				parentFQN = stub.FullyQualifiedName(sym.Export.arena, ownerStub)
			}
		}
		host, d := l.Registry.CreateFunction(fn.Meta().Name, parentFQN)
		if d != nil {
			l.bag.Add(*d)
		}
		host.ArgCount = len(fn.Args)
		host.ReturnWidth = 0
		if fn.ReturnType != stub.NullRef {
			if lay, ok := l.typeDeclLayout(sym.Export.arena, fn.ReturnType, l.scriptedSizes); ok {
				host.ReturnWidth = int(lay.Size) * 8
			}
		}
		c.functions = append(c.functions, exportedFunction{sym: sym, site: *sym.Export, host: host})
	}

	return c
}

// fixupSizes iteratively recomputes struct/class sizes until no entry
// changes, since struct members may themselves be scripted structs and
// class layouts depend on scripted member sizes (spec §4.5 phase 8).
func (l *Linker) fixupSizes(names []string, c *created) {
	scripted := make(map[string]layout, len(c.classes)+len(c.structs))
	l.propertyOffsets = make(map[string]uint16)

	for iter := 0; iter < 64; iter++ {
		changed := false
		for _, name := range names {
			sym := l.symbols[name]
			if sym.Export == nil || sym.Kind != stub.TagClass {
				continue
			}
			cls, ok := sym.Export.stub().(*stub.ClassStub)
			if !ok {
				continue
			}
			var size, align uint32 = 0, 1
			if !cls.IsStruct() {
				if host, ok := c.classes[name]; ok {
					if info, ok := l.Insight.Lookup(host.NativeBase); ok {
						size, align = info.Size, info.Align
					}
				}
			}
			for _, mr := range cls.Members {
				prop, ok := sym.Export.arena.Get(mr).(*stub.PropertyStub)
				if !ok {
					continue
				}
				lay, ok := l.typeDeclLayout(sym.Export.arena, prop.TypeDecl, scripted)
				if !ok {
					continue
				}
				if lay.Align > align {
					align = lay.Align
				}
				size = alignUp(size, lay.Align)
				l.propertyOffsets[stub.FullyQualifiedName(sym.Export.arena, prop)] = uint16(size)
				size += lay.Size
			}
			size = alignUp(size, align)

			prev, had := scripted[name]
			if !had || prev.Size != size || prev.Align != align {
				scripted[name] = layout{Size: size, Align: align}
				changed = true
			}
			if host, ok := c.classes[name]; ok {
				host.Size, host.Align = size, align
			}
			if host, ok := c.structs[name]; ok {
				host.Size, host.Align = size, align
			}
		}
		if !changed {
			break
		}
	}
	l.scriptedSizes = scripted
}

// --- Phase 9: compile function bodies ----------------------------------------

// linkResolver implements codeblock.Resolver against the symbol table and
// host objects one linker pass has built, scoped to a single module arena
// (phase 9 runs one resolver per exported function, all sharing the same
// Linker).
type linkResolver struct {
	l *Linker
	a *stub.Arena
}

func (r *linkResolver) Arena() *stub.Arena { return r.a }

func (r *linkResolver) Layout(declRef stub.Ref) (hosttype.TypeInfo, bool) {
	lay, ok := r.l.typeDeclLayout(r.a, declRef, r.l.scriptedSizes)
	if !ok {
		return hosttype.TypeInfo{}, false
	}
	return hosttype.TypeInfo{Size: lay.Size, Align: lay.Align, Traits: lay.Traits}, true
}

func (r *linkResolver) PropertyOffset(propRef stub.Ref) (offset uint16, external bool) {
	s := r.a.Get(propRef)
	if s == nil {
		return 0, false
	}
	fqn := stub.FullyQualifiedName(r.a, s)
	offset = r.l.propertyOffsets[fqn]
	if owner := s.Meta().Owner; owner != stub.NullRef {
		if cls, ok := r.a.Get(owner).(*stub.ClassStub); ok {
			external = !cls.IsStruct()
		}
	}
	return offset, external
}

func (r *linkResolver) FunctionID(fnRef stub.Ref) (uint32, bool) {
	s := r.a.Get(fnRef)
	fn, ok := s.(*stub.FunctionStub)
	if !ok {
		return 0, false
	}
	return r.l.funcID(stub.FullyQualifiedName(r.a, fn))
}

func (r *linkResolver) ClassID(classRef stub.Ref) (uint32, bool) {
	s := r.a.Get(classRef)
	if s == nil {
		return 0, false
	}
	return r.l.classID(stub.FullyQualifiedName(r.a, s))
}

func (r *linkResolver) EnumWidth(enumRef stub.Ref) (uint8, bool, bool) {
	s := r.a.Get(enumRef)
	en, ok := s.(*stub.EnumStub)
	if !ok {
		return 0, false, false
	}
	host, ok := r.l.Registry.LookupEnum(stub.FullyQualifiedName(r.a, en))
	if !ok {
		return 0, false, false
	}
	return host.Width, host.Signed, true
}

func (r *linkResolver) FunctionArgEncodings(fnRef stub.Ref) ([]codeblock.CallEncoding, bool) {
	s := r.a.Get(fnRef)
	fn, ok := s.(*stub.FunctionStub)
	if !ok {
		return nil, false
	}
	encs := make([]codeblock.CallEncoding, len(fn.Args))
	for i, ar := range fn.Args {
		arg, ok := stub.AsFunctionArg(r.a.Get(ar))
		if !ok {
			continue
		}
		switch {
		case arg.Flags.Has(stub.FlagRef) || arg.Flags.Has(stub.FlagOut):
			encs[i] = codeblock.CallRef
		default:
			lay, ok := r.l.typeDeclLayout(r.a, arg.TypeDecl, r.l.scriptedSizes)
			if ok && lay.Traits.SimpleCopyCompare {
				encs[i] = codeblock.CallSimpleValue
			} else {
				encs[i] = codeblock.CallTypedValue
			}
		}
	}
	return encs, true
}

func (l *Linker) funcID(fqn string) (uint32, bool) {
	l.idMu.Lock()
	defer l.idMu.Unlock()
	if l.funcIDs == nil {
		l.funcIDs = make(map[string]uint32)
		l.idToFuncFQN = make(map[uint32]string)
	}
	if id, ok := l.funcIDs[fqn]; ok {
		return id, true
	}
	l.nextFuncID++
	l.funcIDs[fqn] = l.nextFuncID
	l.idToFuncFQN[l.nextFuncID] = fqn
	return l.nextFuncID, true
}

func (l *Linker) classID(fqn string) (uint32, bool) {
	l.idMu.Lock()
	defer l.idMu.Unlock()
	if l.classIDs == nil {
		l.classIDs = make(map[string]uint32)
		l.idToClassFQN = make(map[uint32]string)
	}
	if id, ok := l.classIDs[fqn]; ok {
		return id, true
	}
	l.nextClassID++
	l.classIDs[fqn] = l.nextClassID
	l.idToClassFQN[l.nextClassID] = fqn
	return l.nextClassID, true
}

// splitFQN divides a dotted fully-qualified name into its owning class (or
// struct) name and its own simple name, the inverse of
// stub.FullyQualifiedName for a one-level-nested member.
func splitFQN(fqn string) (parent, name string) {
	for i := len(fqn) - 1; i >= 0; i-- {
		if fqn[i] == '.' {
			return fqn[:i], fqn[i+1:]
		}
	}
	return "", fqn
}

// FunctionByID resolves a numeric function id (assigned by FunctionID
// during phase 9) back to the host function object it names, for the
// interpreter's StaticFunc/FinalFunc/VirtualFunc/InternalFunc dispatch
// (spec §4.7 "Function calls").
func (l *Linker) FunctionByID(id uint32) (*registry.HostFunction, bool) {
	l.idMu.Lock()
	fqn, ok := l.idToFuncFQN[id]
	l.idMu.Unlock()
	if !ok {
		return nil, false
	}
	parent, name := splitFQN(fqn)
	return l.Registry.LookupFunction(name, parent)
}

// ClassByID resolves a numeric class/struct id back to its host object
// (a *registry.HostClass or *registry.HostStruct), for the interpreter's
// New/DynamicCast/MetaCast/Constructor opcodes.
func (l *Linker) ClassByID(id uint32) (interface{}, bool) {
	l.idMu.Lock()
	fqn, ok := l.idToClassFQN[id]
	l.idMu.Unlock()
	if !ok {
		return nil, false
	}
	if c, ok := l.Registry.LookupClass(fqn); ok {
		return c, true
	}
	if s, ok := l.Registry.LookupStruct(fqn); ok {
		return s, true
	}
	return nil, false
}

// compileFunctionBodies runs the code block builder (C6) over every
// exported function, fanned out with a bounded errgroup since once phases
// 1-8 have finished each function's build is independent.
func (l *Linker) compileFunctionBodies(c *created) error {
	g, ctx := errgroup.WithContext(context.Background())
	if l.ParallelFunctions > 0 {
		g.SetLimit(l.ParallelFunctions)
	}

	for i := range c.functions {
		ef := &c.functions[i]
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			fn, ok := ef.site.stub().(*stub.FunctionStub)
			if !ok {
				return nil
			}
			filename := ""
			if f, ok := ef.site.arena.Get(fn.Meta().Loc.File).(*stub.FileStub); ok {
				filename = f.DepotPath
			}
			r := &linkResolver{l: l, a: ef.site.arena}
			block, err := codeblock.Build(fn, r, filename)
			if err != nil {
				l.diagMu.Lock()
				l.bag.Errorf(diag.KindLink, locOf(ef.site.arena, fn.Meta()), "%v", err)
				l.diagMu.Unlock()
				return nil
			}
			ef.host.Block = block
			ef.host.CodeHash = fn.CodeHash
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("link error: compiling function bodies: %w", err)
	}
	return nil
}

// --- Phase 10: bind special functions -----------------------------------------

// bindSpecialFunctions aliases each exported class/struct's constructor and
// destructor functions under well-known keys so the interpreter can invoke
// them without re-scanning flags (spec §4.5 phase 10).
func (l *Linker) bindSpecialFunctions(c *created) {
	bind := func(name string, functions map[string]*registry.HostFunction) {
		sym, ok := l.symbols[name]
		if !ok || sym.Export == nil {
			return
		}
		cls, ok := sym.Export.stub().(*stub.ClassStub)
		if !ok {
			return
		}
		for _, mr := range cls.Members {
			fn, ok := sym.Export.arena.Get(mr).(*stub.FunctionStub)
			if !ok {
				continue
			}
			if fn.Flags.Has(stub.FlagConstructor) {
				if host, ok := functions[fn.Meta().Name]; ok {
					functions["#construct"] = host
				}
			}
			if fn.Flags.Has(stub.FlagDestructor) {
				if host, ok := functions[fn.Meta().Name]; ok {
					functions["#destruct"] = host
				}
			}
		}
	}
	for name, host := range c.classes {
		bind(name, host.Functions)
	}
	for name, host := range c.structs {
		bind(name, host.Functions)
	}
}
