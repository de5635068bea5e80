// Command hosttypegen captures a Host Type Insight snapshot (spec §4.4) for
// a set of Go packages by static analysis, loading them with
// golang.org/x/tools/go/packages and walking their exported types --
// the output is a serialized TypeInfo snapshot for
// internal/hosttype.SnapshotInsight rather than generated Go source, since
// the consumer (the linker / AOT translator) may be compiling for a target
// this process isn't running on.
package main

import (
	"fmt"
	"go/types"
	"os"

	"golang.org/x/tools/go/packages"

	"github.com/kestrelengine/scriptcore/internal/hosttype"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <out-file> <go-package>...\n", os.Args[0])
		os.Exit(2)
	}
	out := os.Args[1]
	pkgPaths := os.Args[2:]

	infos, err := capture(pkgPaths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hosttypegen: %v\n", err)
		os.Exit(1)
	}

	data, err := hosttype.EncodeSnapshot(infos)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hosttypegen: encode snapshot: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "hosttypegen: write %s: %v\n", out, err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "hosttypegen: wrote %d type(s) to %s\n", len(infos), out)
}

// capture loads pkgPaths with go/packages (mirroring Inspector.loadPackages)
// and walks every exported named type into a hosttype.TypeInfo using the gc
// amd64 size/alignment model, so the emitted snapshot matches what the
// eventual native build will actually lay out.
func capture(pkgPaths []string) ([]*hosttype.TypeInfo, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName |
			packages.NeedTypes |
			packages.NeedTypesInfo |
			packages.NeedSyntax |
			packages.NeedImports |
			packages.NeedDeps,
	}
	pkgs, err := packages.Load(cfg, pkgPaths...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}

	var errs []string
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			errs = append(errs, fmt.Sprintf("%s: %s", pkg.PkgPath, e.Msg))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("package errors:\n  %s", joinLines(errs))
	}

	sizes := types.SizesFor("gc", "amd64")
	if sizes == nil {
		sizes = &types.StdSizes{WordSize: 8, MaxAlign: 8}
	}

	var infos []*hosttype.TypeInfo
	seen := make(map[string]bool)
	for _, pkg := range pkgs {
		scope := pkg.Types.Scope()
		for _, name := range scope.Names() {
			obj, ok := scope.Lookup(name).(*types.TypeName)
			if !ok || !obj.Exported() {
				continue
			}
			qualified := pkg.PkgPath + "." + obj.Name()
			if seen[qualified] {
				continue
			}
			seen[qualified] = true
			infos = append(infos, typeInfoFor(qualified, obj.Type(), sizes))
		}
	}
	return infos, nil
}

func typeInfoFor(qualified string, t types.Type, sizes types.Sizes) *hosttype.TypeInfo {
	info := &hosttype.TypeInfo{Name: qualified}

	underlying := t.Underlying()
	switch u := underlying.(type) {
	case *types.Struct:
		info.Meta = hosttype.MetaClass
		info.Size = uint32(sizes.Sizeof(u))
		info.Align = uint32(sizes.Alignof(u))
		info.Traits = structTraits(u)

		fieldTypes := make([]types.Type, u.NumFields())
		for i := 0; i < u.NumFields(); i++ {
			fieldTypes[i] = u.Field(i).Type()
		}
		offsets := sizes.Offsetsof(fieldsOf(u))
		for i := 0; i < u.NumFields(); i++ {
			f := u.Field(i)
			if !f.Exported() {
				continue
			}
			info.Members = append(info.Members, hosttype.Member{
				Name:     f.Name(),
				TypeName: f.Type().String(),
				Offset:   uint32(offsets[i]),
			})
		}
	case *types.Array:
		info.Meta = hosttype.MetaArray
		info.InnerTypeName = u.Elem().String()
		info.ArraySize = uint32(u.Len())
		info.Size = uint32(sizes.Sizeof(u))
		info.Align = uint32(sizes.Alignof(u))
	case *types.Slice:
		info.Meta = hosttype.MetaArray
		info.InnerTypeName = u.Elem().String()
		info.Size = uint32(sizes.Sizeof(u))
		info.Align = uint32(sizes.Alignof(u))
	case *types.Pointer:
		info.Meta = hosttype.MetaStrongHandle
		info.InnerTypeName = u.Elem().String()
		info.Size = uint32(sizes.Sizeof(u))
		info.Align = uint32(sizes.Alignof(u))
	default:
		info.Meta = hosttype.MetaSimple
		info.Size = uint32(sizes.Sizeof(underlying))
		info.Align = uint32(sizes.Alignof(underlying))
		info.Traits = hosttype.Traits{SimpleCopyCompare: true, ZeroInitConstructor: true}
	}
	return info
}

func fieldsOf(s *types.Struct) []*types.Var {
	fields := make([]*types.Var, s.NumFields())
	for i := range fields {
		fields[i] = s.Field(i)
	}
	return fields
}

// structTraits mirrors hosttype.ReflectInsight's zero-value analysis, but
// over go/types instead of reflect.Type, so static capture and in-process
// reflection agree on the same host type.
func structTraits(s *types.Struct) hosttype.Traits {
	simple, zeroOK := true, true
	for i := 0; i < s.NumFields(); i++ {
		switch s.Field(i).Type().Underlying().(type) {
		case *types.Map, *types.Chan, *types.Signature, *types.Interface:
			simple, zeroOK = false, false
		case *types.Slice, *types.Pointer:
			simple = false
		}
	}
	return hosttype.Traits{
		RequiresConstructor: !zeroOK,
		SimpleCopyCompare:   simple,
		ZeroInitConstructor: zeroOK,
	}
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n  "
		}
		out += l
	}
	return out
}
