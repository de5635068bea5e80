package stub

// ModuleStub is the root of a compiled package (spec §3). It owns an
// ordered list of file-stubs and a list of imported-module stubs, and
// maintains a name -> stub map built by PostLoad.
type ModuleStub struct {
	Base
	Files   []Ref
	Imports []Ref

	byName map[string]Ref // rebuilt in PostLoad, not serialized
}

func NewModule(name string) *ModuleStub { return &ModuleStub{Base: Base{Name: name}} }

func (s *ModuleStub) Tag() Tag  { return TagModule }
func (s *ModuleStub) Meta() *Base { return &s.Base }

// Lookup resolves a top-level name within this module, after PostLoad.
func (s *ModuleStub) Lookup(name string) (Ref, bool) {
	r, ok := s.byName[name]
	return r, ok
}

func (s *ModuleStub) PostLoad(a *Arena) {
	s.byName = make(map[string]Ref, len(s.Files)*4)
	for _, fr := range s.Files {
		f, ok := a.Get(fr).(*FileStub)
		if !ok || f == nil {
			continue
		}
		for _, tr := range f.TopLevel {
			if top := a.Get(tr); top != nil {
				s.byName[top.Meta().Name] = tr
			}
		}
	}
}

// ModuleImportStub declares a dependency on another module by name.
type ModuleImportStub struct {
	Base
	// ResolvedModule is filled in by the linker once the named module has
	// been located; it is not part of the packed form.
	ResolvedModule Ref
}

func (s *ModuleImportStub) Tag() Tag  { return TagModuleImport }
func (s *ModuleImportStub) Meta() *Base { return &s.Base }

// FileStub carries the depot and absolute paths of one source file and owns
// the top-level stubs parsed from it.
type FileStub struct {
	Base
	DepotPath    string
	AbsolutePath string
	TopLevel     []Ref
}

func (s *FileStub) Tag() Tag  { return TagFile }
func (s *FileStub) Meta() *Base { return &s.Base }

// TypeNameStub wraps the unresolved, dotted textual name of a type
// reference as written in source, prior to link-time resolution.
type TypeNameStub struct {
	Base
}

func (s *TypeNameStub) Tag() Tag  { return TagTypeName }
func (s *TypeNameStub) Meta() *Base { return &s.Base }

// TypeRefStub is a by-name reference to a type stub, resolved to a concrete
// stub during linking (spec §3). Match compares the textual names of the two
// TypeNameStubs, not Ref values or the resolved stubs, since two modules may
// resolve the same name to different arenas.
type TypeRefStub struct {
	Base
	Name     Ref // TypeNameStub
	Resolved Ref // set by the linker: the ClassStub/EnumStub/etc this names
}

func (s *TypeRefStub) Tag() Tag  { return TagTypeRef }
func (s *TypeRefStub) Meta() *Base { return &s.Base }

func (s *TypeRefStub) Match(a *Arena, other Stub) bool {
	o, ok := other.(*TypeRefStub)
	if !ok {
		return false
	}
	an, _ := a.Get(s.Name).(*TypeNameStub)
	bn, _ := a.Get(o.Name).(*TypeNameStub)
	if an == nil || bn == nil {
		return an == bn
	}
	return an.Name == bn.Name
}

// DeclKind is the TypeDecl variant discriminator (spec §3).
type DeclKind byte

const (
	DeclSimple DeclKind = iota
	DeclEngine
	DeclClassType
	DeclPtr
	DeclWeakPtr
	DeclDynamicArray
	DeclStaticArray
)

// TypeDeclStub is a type expression (spec §3). TypeRef is populated for
// Simple/ClassType/Ptr/WeakPtr (a reference to the named type or class);
// EngineName is populated for Engine; Inner is populated for the two array
// variants, and ArraySize additionally for StaticArray.
type TypeDeclStub struct {
	Base
	Kind       DeclKind
	TypeRef    Ref
	EngineName string
	Inner      Ref
	ArraySize  uint32
}

func (s *TypeDeclStub) Tag() Tag  { return TagTypeDecl }
func (s *TypeDeclStub) Meta() *Base { return &s.Base }

// Canonical returns the recursive printable form used for type-decl
// equality (spec §8: "Two type-decls match iff their canonical printable
// forms are equal").
func Canonical(a *Arena, r Ref) string {
	if r == NullRef {
		return "<null>"
	}
	d, ok := a.Get(r).(*TypeDeclStub)
	if !ok {
		return "<invalid>"
	}
	switch d.Kind {
	case DeclSimple:
		return refName(a, d.TypeRef)
	case DeclEngine:
		return d.EngineName
	case DeclClassType:
		return "class<" + refName(a, d.TypeRef) + ">"
	case DeclPtr:
		return "ptr<" + refName(a, d.TypeRef) + ">"
	case DeclWeakPtr:
		return "weak<" + refName(a, d.TypeRef) + ">"
	case DeclDynamicArray:
		return "array<" + Canonical(a, d.Inner) + ">"
	case DeclStaticArray:
		return "array<" + Canonical(a, d.Inner) + "," + itoa(int(d.ArraySize)) + ">"
	default:
		return "<unknown-decl>"
	}
}

func refName(a *Arena, r Ref) string {
	tr, ok := a.Get(r).(*TypeRefStub)
	if !ok || tr == nil {
		return "<unresolved>"
	}
	if tr.Resolved != NullRef {
		return FullyQualifiedName(a, a.Get(tr.Resolved))
	}
	if n, ok := a.Get(tr.Name).(*TypeNameStub); ok {
		return n.Name
	}
	return "<unnamed>"
}

func (s *TypeDeclStub) Match(a *Arena, other Stub) bool {
	o, ok := other.(*TypeDeclStub)
	if !ok {
		return false
	}
	// Canonical() needs the Ref of self/other, not the stub; find it by
	// scanning isn't available here, so compare structurally field by field
	// instead -- equivalent to canonical-form equality for well-formed decls.
	if s.Kind != o.Kind {
		return false
	}
	switch s.Kind {
	case DeclEngine:
		return s.EngineName == o.EngineName
	case DeclStaticArray:
		if s.ArraySize != o.ArraySize {
			return false
		}
		fallthrough
	case DeclDynamicArray:
		return matchRef(a, s.Inner, o.Inner)
	default:
		return matchRef(a, s.TypeRef, o.TypeRef)
	}
}

func matchRef(a *Arena, x, y Ref) bool {
	if x == NullRef || y == NullRef {
		return x == y
	}
	xs, ys := a.Get(x), a.Get(y)
	if xs == nil || ys == nil {
		return xs == ys
	}
	if xs.Tag() != ys.Tag() {
		return false
	}
	m, ok := xs.(Matcher)
	if !ok {
		return true
	}
	return m.Match(a, ys)
}

// ClassStub describes a scripted class or struct (spec §3).
type ClassStub struct {
	Base
	ParentName       string // scripted superclass name, if any
	OuterName        string // enclosing class name, for nested types
	EngineImportName string
	Members          []Ref
	Derived          []Ref
}

func (s *ClassStub) Tag() Tag  { return TagClass }
func (s *ClassStub) Meta() *Base { return &s.Base }

// IsStruct reports whether this class is a value type (spec §3 invariant).
func (s *ClassStub) IsStruct() bool { return s.Flags.Has(FlagStruct) }

func (s *ClassStub) Match(a *Arena, other Stub) bool {
	o, ok := other.(*ClassStub)
	if !ok {
		return false
	}
	if s.EngineImportName != o.EngineImportName || s.ParentName != o.ParentName {
		return false
	}
	if len(s.Members) != len(o.Members) {
		return false
	}
	byName := make(map[string]Ref, len(o.Members))
	for _, m := range o.Members {
		if ms := a.Get(m); ms != nil {
			byName[ms.Meta().Name] = m
		}
	}
	for _, m := range s.Members {
		ms := a.Get(m)
		if ms == nil {
			continue
		}
		om, ok := byName[ms.Meta().Name]
		if !ok {
			return false
		}
		if !matchRef(a, m, om) {
			return false
		}
	}
	return true
}

// EnumStub describes a scripted enum (spec §3).
type EnumStub struct {
	Base
	Options          []Ref
	EngineImportName string

	byName map[string]Ref // rebuilt in PostLoad
}

func (s *EnumStub) Tag() Tag  { return TagEnum }
func (s *EnumStub) Meta() *Base { return &s.Base }

func (s *EnumStub) PostLoad(a *Arena) {
	s.byName = make(map[string]Ref, len(s.Options))
	for _, o := range s.Options {
		if os := a.Get(o); os != nil {
			s.byName[os.Meta().Name] = o
		}
	}
}

func (s *EnumStub) Lookup(name string) (Ref, bool) {
	r, ok := s.byName[name]
	return r, ok
}

func (s *EnumStub) Match(a *Arena, other Stub) bool {
	o, ok := other.(*EnumStub)
	if !ok || s.EngineImportName != o.EngineImportName {
		return false
	}
	if len(s.Options) != len(o.Options) {
		return false
	}
	want := make(map[string]int64, len(o.Options))
	for _, or := range o.Options {
		opt, ok := a.Get(or).(*EnumOptionStub)
		if !ok {
			return false
		}
		want[opt.Base.Name] = opt.Value
	}
	for _, sr := range s.Options {
		opt, ok := a.Get(sr).(*EnumOptionStub)
		if !ok {
			return false
		}
		v, ok := want[opt.Base.Name]
		if !ok || v != opt.Value {
			return false
		}
	}
	return true
}

// EnumOptionStub is one named enum value (spec §3). If HasValue is false
// the value is implicit: previous option's value + 1, starting at 0.
type EnumOptionStub struct {
	Base
	Value    int64
	HasValue bool
}

func (s *EnumOptionStub) Tag() Tag  { return TagEnumOption }
func (s *EnumOptionStub) Meta() *Base { return &s.Base }

// PropertyStub references a type-decl and an optional constant default.
type PropertyStub struct {
	Base
	TypeDecl Ref
	Default  Ref // ConstantValueStub, may be NullRef
}

func (s *PropertyStub) Tag() Tag  { return TagProperty }
func (s *PropertyStub) Meta() *Base { return &s.Base }

func (s *PropertyStub) Match(a *Arena, other Stub) bool {
	o, ok := other.(*PropertyStub)
	if !ok {
		return false
	}
	importFlags := Flag(FlagImport | FlagConst)
	if s.Flags&importFlags != o.Flags&importFlags {
		return false
	}
	return matchRef(a, s.TypeDecl, o.TypeDecl)
}

// FunctionStub describes a scripted function (spec §3).
type FunctionStub struct {
	Base
	ReturnType      Ref // TypeDeclStub, NullRef for void
	Args            []Ref
	OperatorName    string
	OpcodeAliasName string
	CastCost        int
	BaseFunction    Ref // linkage to base/parent function in inheritance chain
	Opcodes         []Ref
	CodeHash        uint64
}

func (s *FunctionStub) Tag() Tag  { return TagFunction }
func (s *FunctionStub) Meta() *Base { return &s.Base }

func (s *FunctionStub) Match(a *Arena, other Stub) bool {
	o, ok := other.(*FunctionStub)
	if !ok {
		return false
	}
	sigFlags := Flag(FlagStatic | FlagOperator | FlagCast | FlagFinal)
	if s.Flags&sigFlags != o.Flags&sigFlags {
		return false
	}
	if s.OpcodeAliasName != o.OpcodeAliasName {
		return false
	}
	if !matchRef(a, s.ReturnType, o.ReturnType) {
		return false
	}
	if len(s.Args) != len(o.Args) {
		return false
	}
	for i := range s.Args {
		sa, saok := a.Get(s.Args[i]).(*FunctionArgStub)
		oa, oaok := a.Get(o.Args[i]).(*FunctionArgStub)
		if !saok || !oaok {
			return false
		}
		argFlags := Flag(FlagRef | FlagOut | FlagExplicit)
		if sa.Flags&argFlags != oa.Flags&argFlags {
			return false
		}
		if !matchRef(a, sa.TypeDecl, oa.TypeDecl) {
			return false
		}
	}
	return true
}

// FunctionArgStub is one formal parameter (spec §3).
type FunctionArgStub struct {
	Base
	TypeDecl Ref
	Default  Ref // ConstantValueStub, may be NullRef
	Index    int
}

func (s *FunctionArgStub) Tag() Tag  { return TagFunctionArg }
func (s *FunctionArgStub) Meta() *Base { return &s.Base }

// ConstantStub is a declared named constant and its value.
type ConstantStub struct {
	Base
	TypeDecl Ref
	Value    Ref // ConstantValueStub
}

func (s *ConstantStub) Tag() Tag  { return TagConstant }
func (s *ConstantStub) Meta() *Base { return &s.Base }

// ValueKind discriminates ConstantValueStub's payload.
type ValueKind byte

const (
	ValueInteger ValueKind = iota
	ValueUnsigned
	ValueFloat
	ValueBool
	ValueString
	ValueName
	ValueCompound
)

// ConstantValueStub is a literal value (spec §3). Compound carries a
// type-decl plus an ordered list of sub-values.
type ConstantValueStub struct {
	Base
	Kind      ValueKind
	IntVal    int64
	UintVal   uint64
	FloatVal  float64
	BoolVal   bool
	StrVal    string // used for both ValueString and ValueName
	TypeDecl  Ref    // for ValueCompound
	SubValues []Ref  // for ValueCompound
}

func (s *ConstantValueStub) Tag() Tag  { return TagConstantValue }
func (s *ConstantValueStub) Meta() *Base { return &s.Base }

// ImmKind discriminates OpcodeStub's immediate operand.
type ImmKind byte

const (
	ImmNone ImmKind = iota
	ImmDouble
	ImmUint64
	ImmName
	ImmString
)

// Immediate is the union of double/uint64/name/string an opcode may carry
// (spec §3: "StubOpcode ... an immediate value (union of double, uint64,
// name, string)").
type Immediate struct {
	Kind ImmKind
	F    float64
	U    uint64
	S    string
}

// OpcodeStub is one portable opcode in a function's sequence (spec §3).
// Referenced may point at a variable/property/function/type/enum/class
// stub depending on Op; Target is set only for jump-carrying opcodes.
type OpcodeStub struct {
	Base
	Op         OpKind
	Referenced Ref
	Target     Ref
	Imm        Immediate
}

func (s *OpcodeStub) Tag() Tag  { return TagOpcode }
func (s *OpcodeStub) Meta() *Base { return &s.Base }
