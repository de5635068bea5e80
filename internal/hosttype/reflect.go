package hosttype

import (
	"fmt"
	"reflect"
	"sync"
)

// ReflectInsight derives TypeInfo from live Go types registered by the
// embedding host, the way the engine's own runtime type system would be
// walked in-process. Registration is explicit (Register) rather than
// automatic package scanning: the host decides which of its Go types are
// script-visible.
type ReflectInsight struct {
	mu    sync.RWMutex
	types map[string]*TypeInfo
}

// NewReflectInsight returns an insight with no registered types.
func NewReflectInsight() *ReflectInsight {
	return &ReflectInsight{types: make(map[string]*TypeInfo)}
}

// Register derives a TypeInfo for t under name via reflection and makes it
// available to Lookup. baseClassName is the scripted base class name, empty
// for non-class types.
func (r *ReflectInsight) Register(name string, t reflect.Type, baseClassName string) *TypeInfo {
	info := reflectTypeInfo(name, t, baseClassName)
	r.mu.Lock()
	r.types[name] = info
	r.mu.Unlock()
	return info
}

// Lookup implements Insight.
func (r *ReflectInsight) Lookup(name string) (*TypeInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.types[name]
	return info, ok
}

func reflectTypeInfo(name string, t reflect.Type, baseClassName string) *TypeInfo {
	info := &TypeInfo{
		Name:          name,
		Size:          uint32(t.Size()),
		Align:         uint32(t.Align()),
		BaseClassName: baseClassName,
	}

	switch t.Kind() {
	case reflect.Struct:
		info.Meta = MetaClass
		info.Traits = structTraits(t)
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			info.Members = append(info.Members, Member{
				Name:     f.Name,
				TypeName: goTypeName(f.Type),
				Offset:   uint32(f.Offset),
			})
		}
	case reflect.Slice, reflect.Array:
		info.Meta = MetaArray
		info.InnerTypeName = goTypeName(t.Elem())
		if t.Kind() == reflect.Array {
			info.ArraySize = uint32(t.Len())
		}
	case reflect.Ptr:
		info.Meta = MetaStrongHandle
		info.InnerTypeName = goTypeName(t.Elem())
	default:
		info.Meta = MetaSimple
		info.Traits = Traits{SimpleCopyCompare: true, ZeroInitConstructor: true}
	}
	return info
}

// structTraits reports whether t's zero value is already fully constructed:
// false the moment any direct field is a map, channel, func or interface.
// Slice and pointer fields only clear SimpleCopyCompare, and nested struct
// fields are not inspected.
func structTraits(t reflect.Type) Traits {
	simple := true
	zeroOK := true
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i).Type
		switch f.Kind() {
		case reflect.Map, reflect.Chan, reflect.Func, reflect.Interface:
			simple, zeroOK = false, false
		case reflect.Slice, reflect.Ptr:
			simple = false
		}
	}
	return Traits{
		RequiresConstructor: !zeroOK,
		RequiresDestructor:  false, // the host's GC owns these; scripts never free them explicitly
		SimpleCopyCompare:   simple,
		ZeroInitConstructor: zeroOK,
	}
}

func goTypeName(t reflect.Type) string {
	if t.PkgPath() == "" {
		return t.String()
	}
	return fmt.Sprintf("%s.%s", t.PkgPath(), t.Name())
}
