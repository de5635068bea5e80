package stub

import "fmt"

// NewShell allocates a zero-valued stub of the given kind. Used by the
// codec's unpack path to build one shell per stub index before any shell's
// Read method runs, so references can resolve uniformly regardless of
// whether they point forward or backward in the table (spec §4.2).
func NewShell(tag Tag) (Stub, error) {
	switch tag {
	case TagModule:
		return &ModuleStub{}, nil
	case TagModuleImport:
		return &ModuleImportStub{}, nil
	case TagFile:
		return &FileStub{}, nil
	case TagTypeName:
		return &TypeNameStub{}, nil
	case TagTypeDecl:
		return &TypeDeclStub{}, nil
	case TagTypeRef:
		return &TypeRefStub{}, nil
	case TagClass:
		return &ClassStub{}, nil
	case TagConstant:
		return &ConstantStub{}, nil
	case TagConstantValue:
		return &ConstantValueStub{}, nil
	case TagEnum:
		return &EnumStub{}, nil
	case TagEnumOption:
		return &EnumOptionStub{}, nil
	case TagProperty:
		return &PropertyStub{}, nil
	case TagFunction:
		return &FunctionStub{}, nil
	case TagFunctionArg:
		return &FunctionArgStub{}, nil
	case TagOpcode:
		return &OpcodeStub{}, nil
	default:
		return nil, fmt.Errorf("stub: unknown tag %d", tag)
	}
}

// Downcast helpers -- "polymorphic accessors for safe downcasting" (§4.1).
// Each returns (value, ok) rather than panicking, since callers (the linker,
// the code block builder) routinely probe a Ref's concrete kind.

func AsModule(s Stub) (*ModuleStub, bool)             { v, ok := s.(*ModuleStub); return v, ok }
func AsModuleImport(s Stub) (*ModuleImportStub, bool) { v, ok := s.(*ModuleImportStub); return v, ok }
func AsFile(s Stub) (*FileStub, bool)                 { v, ok := s.(*FileStub); return v, ok }
func AsTypeName(s Stub) (*TypeNameStub, bool)         { v, ok := s.(*TypeNameStub); return v, ok }
func AsTypeDecl(s Stub) (*TypeDeclStub, bool)         { v, ok := s.(*TypeDeclStub); return v, ok }
func AsTypeRef(s Stub) (*TypeRefStub, bool)           { v, ok := s.(*TypeRefStub); return v, ok }
func AsClass(s Stub) (*ClassStub, bool)               { v, ok := s.(*ClassStub); return v, ok }
func AsConstant(s Stub) (*ConstantStub, bool)         { v, ok := s.(*ConstantStub); return v, ok }
func AsConstantValue(s Stub) (*ConstantValueStub, bool) {
	v, ok := s.(*ConstantValueStub)
	return v, ok
}
func AsEnum(s Stub) (*EnumStub, bool)             { v, ok := s.(*EnumStub); return v, ok }
func AsEnumOption(s Stub) (*EnumOptionStub, bool) { v, ok := s.(*EnumOptionStub); return v, ok }
func AsProperty(s Stub) (*PropertyStub, bool)     { v, ok := s.(*PropertyStub); return v, ok }
func AsFunction(s Stub) (*FunctionStub, bool)     { v, ok := s.(*FunctionStub); return v, ok }
func AsFunctionArg(s Stub) (*FunctionArgStub, bool) {
	v, ok := s.(*FunctionArgStub)
	return v, ok
}
func AsOpcode(s Stub) (*OpcodeStub, bool) { v, ok := s.(*OpcodeStub); return v, ok }

// Match compares two stubs for structural compatibility (spec §4.1). Kinds
// without a Matcher implementation are considered a match if their tags and
// names agree, which is sufficient for the leaf kinds (TypeName,
// FunctionArg, EnumOption, ConstantValue) that are always compared as part
// of their owner's Match instead of independently.
func Match(a *Arena, x, y Stub) bool {
	if x == nil || y == nil {
		return x == y
	}
	if x.Tag() != y.Tag() {
		return false
	}
	if m, ok := x.(Matcher); ok {
		return m.Match(a, y)
	}
	return x.Meta().Name == y.Meta().Name
}

// PostLoadAll rebuilds every stub's derived maps after deserialization
// (spec §4.2). Order does not matter: each kind only reaches into its own
// direct children.
func PostLoadAll(a *Arena) {
	for _, s := range a.All() {
		if s == nil {
			continue
		}
		if p, ok := s.(PostLoader); ok {
			p.PostLoad(a)
		}
	}
}
