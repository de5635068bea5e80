// Package registry implements the type registry (spec §4.9): the
// process-lifetime home for host-side function, class, struct, and enum
// objects the linker materializes from scripted declarations. Object
// identity is stable for the life of the process -- entries are never
// freed, only cleared and reused across reload, so that native code holding
// a *HostFunction, *HostClass, *HostStruct, or *HostEnum pointer never needs
// to re-resolve it after a reload ("type pointers never change").
package registry

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kestrelengine/scriptcore/internal/codeblock"
	"github.com/kestrelengine/scriptcore/internal/diag"
)

// HostFunction is a created scripted (or previously-scripted) function
// object. Block is nil until the linker's code-block-builder phase runs.
type HostFunction struct {
	Name        string
	ParentClass string // empty for a global function
	Block       *codeblock.CodeBlock
	ReturnWidth int
	ArgCount    int

	// CodeHash mirrors the source stub's 64-bit code hash (spec §3
	// StubFunction). The AOT translator reports it back through the
	// module-init reverse vtable so the host can confirm the compiled
	// function still matches the scripted one it was built from (spec §8
	// scenario 6, "AOT parity").
	CodeHash uint64
}

// HostEnum is a created scripted enum type. Options is rebuilt by the
// linker on every load and cleared by PrepareForReload.
type HostEnum struct {
	Name    string
	Width   uint8
	Signed  bool
	Options []EnumValue
}

// EnumValue is one named option bound to a HostEnum during linking.
type EnumValue struct {
	Name  string
	Value int64
}

// HostClass is a created scripted (non-struct) class, anchored to a native
// base class found during linking.
type HostClass struct {
	Name       string
	NativeBase string
	Size       uint32
	Align      uint32
	Functions  map[string]*HostFunction
}

// HostStruct is a created scripted value type.
type HostStruct struct {
	Name      string
	Size      uint32
	Align     uint32
	Functions map[string]*HostFunction
}

// Registry owns every host object created for scripts across the lifetime
// of the process (spec §3 "TypeRegistry ... not destroyed").
type Registry struct {
	functions map[string]*HostFunction // keyed by buildFunctionID(name, parent)
	enums     map[string]*HostEnum
	classes   map[string]*HostClass
	structs   map[string]*HostStruct

	used map[interface{}]bool // objects already returned during the current load pass

	// Generation changes on every PrepareForReload call, giving callers a
	// cheap way to tell whether an object survived a reload without
	// depending on pointer equality across packages.
	Generation uuid.UUID
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		functions:  make(map[string]*HostFunction),
		enums:      make(map[string]*HostEnum),
		classes:    make(map[string]*HostClass),
		structs:    make(map[string]*HostStruct),
		used:       make(map[interface{}]bool),
		Generation: uuid.New(),
	}
}

func buildFunctionID(name, parent string) string {
	if parent == "" {
		return name
	}
	return parent + "_" + name
}

// CreateFunction returns the host function object for (name, parent class
// name, empty for global), creating it on first call. A second call for the
// same pair within the same load pass returns the same object alongside a
// duplicate-export diagnostic (spec §4.9).
func (r *Registry) CreateFunction(name, parentClass string) (*HostFunction, *diag.Diagnostic) {
	id := buildFunctionID(name, parentClass)
	if fn, ok := r.functions[id]; ok {
		if r.used[fn] {
			return fn, &diag.Diagnostic{
				Kind:     diag.KindLink,
				Severity: diag.SeverityError,
				Message:  fmt.Sprintf("function %q was already loaded from scripts, this is a duplicate export", id),
			}
		}
		r.used[fn] = true
		return fn, nil
	}

	fn := &HostFunction{Name: name, ParentClass: parentClass}
	r.functions[id] = fn
	r.used[fn] = true
	if parentClass != "" {
		if cls, ok := r.classes[parentClass]; ok {
			cls.Functions[name] = fn
		} else if st, ok := r.structs[parentClass]; ok {
			st.Functions[name] = fn
		}
	}
	return fn, nil
}

// CreateEnum returns the host enum object for name, creating it with the
// given storage width on first call.
func (r *Registry) CreateEnum(name string, width uint8, signed bool) (*HostEnum, *diag.Diagnostic) {
	if e, ok := r.enums[name]; ok {
		if r.used[e] {
			return e, &diag.Diagnostic{
				Kind:     diag.KindLink,
				Severity: diag.SeverityError,
				Message:  fmt.Sprintf("enum %q was already loaded from scripts, this is a duplicate export", name),
			}
		}
		r.used[e] = true
		return e, nil
	}

	e := &HostEnum{Name: name, Width: width, Signed: signed}
	r.enums[name] = e
	r.used[e] = true
	return e, nil
}

// CreateClass returns the host class object for name bound to nativeBase,
// creating it on first call.
func (r *Registry) CreateClass(name, nativeBase string) (*HostClass, *diag.Diagnostic) {
	if c, ok := r.classes[name]; ok {
		if r.used[c] {
			return c, &diag.Diagnostic{
				Kind:     diag.KindLink,
				Severity: diag.SeverityError,
				Message:  fmt.Sprintf("class %q was already loaded from scripts, this is a duplicate export", name),
			}
		}
		r.used[c] = true
		return c, nil
	}

	c := &HostClass{Name: name, NativeBase: nativeBase, Functions: make(map[string]*HostFunction)}
	r.classes[name] = c
	r.used[c] = true
	return c, nil
}

// CreateStruct returns the host struct object for name, creating it on
// first call.
func (r *Registry) CreateStruct(name string) (*HostStruct, *diag.Diagnostic) {
	if s, ok := r.structs[name]; ok {
		if r.used[s] {
			return s, &diag.Diagnostic{
				Kind:     diag.KindLink,
				Severity: diag.SeverityError,
				Message:  fmt.Sprintf("struct %q was already loaded from scripts, this is a duplicate export", name),
			}
		}
		r.used[s] = true
		return s, nil
	}

	s := &HostStruct{Name: name, Functions: make(map[string]*HostFunction)}
	r.structs[name] = s
	r.used[s] = true
	return s, nil
}

// LookupFunction, LookupEnum, LookupClass, LookupStruct are read-only
// accessors for the linker's host-resolution phase (spec §4.5 phase 4).
func (r *Registry) LookupFunction(name, parentClass string) (*HostFunction, bool) {
	fn, ok := r.functions[buildFunctionID(name, parentClass)]
	return fn, ok
}

func (r *Registry) LookupEnum(name string) (*HostEnum, bool) {
	e, ok := r.enums[name]
	return e, ok
}

func (r *Registry) LookupClass(name string) (*HostClass, bool) {
	c, ok := r.classes[name]
	return c, ok
}

func (r *Registry) LookupStruct(name string) (*HostStruct, bool) {
	s, ok := r.structs[name]
	return s, ok
}

// Functions returns every host function object currently registered, in
// no particular order. Used by `scriptc aot` (cmd/scriptc) to walk the full
// set of exported functions for a translation unit without the linker
// having to track that list separately.
func (r *Registry) Functions() []*HostFunction {
	out := make([]*HostFunction, 0, len(r.functions))
	for _, fn := range r.functions {
		out = append(out, fn)
	}
	return out
}

// PrepareForReload clears per-class function tables, enum option lists, and
// scripted sizes, but preserves every host object's identity so addresses
// already handed out elsewhere stay valid (spec §4.5 "reload ... preserves
// type-object identity").
func (r *Registry) PrepareForReload() {
	for _, c := range r.classes {
		c.Functions = make(map[string]*HostFunction)
		c.Size = 0
		c.Align = 0
	}
	for _, s := range r.structs {
		s.Functions = make(map[string]*HostFunction)
		s.Size = 0
		s.Align = 0
	}
	for _, f := range r.functions {
		f.Block = nil
	}
	for _, e := range r.enums {
		e.Options = nil
	}
	r.used = make(map[interface{}]bool)
	r.Generation = uuid.New()
}
