// Package stub implements the portable stub graph (spec §3): the
// strongly-typed, serializable intermediate representation of a compiled
// script module. A Stub is a discriminated entity; concrete stub kinds are
// separate Go struct types sharing a common Base, dispatched on Tag rather
// than through a class hierarchy (spec §9 design note: "virtual dispatch
// across many stub subtypes" becomes a tagged sum plus small interfaces for
// the methods that actually need to vary per kind).
package stub

// Tag identifies which concrete stub kind a Stub value holds.
type Tag byte

const (
	TagNone Tag = iota
	TagModule
	TagModuleImport
	TagFile
	TagTypeName
	TagTypeDecl
	TagTypeRef
	TagClass
	TagConstant
	TagConstantValue
	TagEnum
	TagEnumOption
	TagProperty
	TagFunction
	TagFunctionArg
	TagOpcode
)

var tagNames = map[Tag]string{
	TagNone:          "None",
	TagModule:        "Module",
	TagModuleImport:  "ModuleImport",
	TagFile:          "File",
	TagTypeName:      "TypeName",
	TagTypeDecl:      "TypeDecl",
	TagTypeRef:       "TypeRef",
	TagClass:         "Class",
	TagConstant:      "Constant",
	TagConstantValue: "ConstantValue",
	TagEnum:          "Enum",
	TagEnumOption:    "EnumOption",
	TagProperty:      "Property",
	TagFunction:      "Function",
	TagFunctionArg:   "FunctionArg",
	TagOpcode:        "Opcode",
}

func (t Tag) String() string {
	if n, ok := tagNames[t]; ok {
		return n
	}
	return "Unknown"
}

// Flag is the StubFlag bit set (spec §3).
type Flag uint32

const (
	FlagNative Flag = 1 << iota
	FlagImport
	FlagStruct
	FlagClass
	FlagExplicit
	FlagUnsafe
	FlagAbstract
	FlagEditable
	FlagProtected
	FlagPrivate
	FlagInlined
	FlagConst
	FlagFinal
	FlagStatic
	FlagOverride
	FlagFunction
	FlagSignal
	FlagProperty
	FlagOperator
	FlagCast
	FlagOpcode
	FlagRef
	FlagOut
	FlagConstructor
	FlagDestructor
	FlagImportDependency
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }
