// Command scriptc is the build-time driver for the scripting runtime: it
// loads packed modules per a project manifest, links them, and optionally
// runs the AOT translator over the result. Subcommand dispatch is a manual
// os.Args switch rather than a third-party CLI framework, since the
// command set is small and fixed.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"google.golang.org/grpc"

	"github.com/kestrelengine/scriptcore/internal/aot"
	"github.com/kestrelengine/scriptcore/internal/aotcache"
	"github.com/kestrelengine/scriptcore/internal/config"
	"github.com/kestrelengine/scriptcore/internal/diag"
	"github.com/kestrelengine/scriptcore/internal/hosttype"
	"github.com/kestrelengine/scriptcore/internal/linker"
	"github.com/kestrelengine/scriptcore/internal/linksvc"
	"github.com/kestrelengine/scriptcore/internal/portable"
	"github.com/kestrelengine/scriptcore/internal/registry"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "link":
		err = runLink(os.Args[2:])
	case "aot":
		err = runAOT(os.Args[2:])
	case "servelink":
		err = runServeLink(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "scriptc: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: scriptc <command> [args]

commands:
  link <manifest.yaml>          load and link every module named by the manifest
  aot  <manifest.yaml> <outdir> link, then emit module.c for all functions and compile it to module.so
  servelink <addr>               run the remote linking gRPC service (internal/linksvc)
`)
}

// loadAndLink reads manifest, loads every packed module it names, and links
// them against either runtime reflection or a serialized snapshot
// (manifest.HostSnapshot), matching the two Host Type Insight
// implementations from spec §4.4.
func loadAndLink(manifestPath string) (*registry.Registry, *diag.Bag, error) {
	m, err := config.LoadManifest(manifestPath)
	if err != nil {
		return nil, nil, err
	}

	var insight hosttype.Insight
	if m.HostSnapshot != "" {
		data, rerr := os.ReadFile(m.HostSnapshot)
		if rerr != nil {
			return nil, nil, fmt.Errorf("reading host snapshot: %w", rerr)
		}
		snap, derr := hosttype.DecodeSnapshot(data)
		if derr != nil {
			return nil, nil, fmt.Errorf("decoding host snapshot: %w", derr)
		}
		insight = snap
	} else {
		insight = hosttype.NewReflectInsight()
	}

	var modules []*portable.Data
	for _, dir := range m.ModulePaths {
		entries, rerr := os.ReadDir(dir)
		if rerr != nil {
			return nil, nil, fmt.Errorf("reading module path %s: %w", dir, rerr)
		}
		for _, e := range entries {
			if e.IsDir() || len(e.Name()) < 6 || e.Name()[len(e.Name())-5:] != ".smod" {
				continue
			}
			path := dir + "/" + e.Name()
			buf, rerr := os.ReadFile(path)
			if rerr != nil {
				return nil, nil, fmt.Errorf("reading module %s: %w", path, rerr)
			}
			data, lerr := portable.Load(buf, path)
			if lerr != nil {
				return nil, nil, fmt.Errorf("loading module %s: %w", path, lerr)
			}
			modules = append(modules, data)
		}
	}

	reg := registry.New()
	l := linker.New(insight, reg)
	bag, linkErr := l.Load(modules)
	return reg, bag, linkErr
}

func runLink(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: scriptc link <manifest.yaml>")
	}
	_, bag, err := loadAndLink(args[0])
	if bag != nil {
		diag.Print(os.Stderr, bag.Sorted())
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "link ok")
	return nil
}

func runAOT(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: scriptc aot <manifest.yaml> <outdir>")
	}
	manifestPath, outDir := args[0], args[1]

	m, err := config.LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	if !m.EnableAOT {
		return fmt.Errorf("manifest %s does not enable AOT (enableAOT: true)", manifestPath)
	}

	reg, bag, err := loadAndLink(manifestPath)
	if bag != nil {
		diag.Print(os.Stderr, bag.Sorted())
	}
	if err != nil {
		return err
	}

	var insight hosttype.Insight
	if m.HostSnapshot != "" {
		data, rerr := os.ReadFile(m.HostSnapshot)
		if rerr != nil {
			return rerr
		}
		insight, err = hosttype.DecodeSnapshot(data)
		if err != nil {
			return err
		}
	} else {
		insight = hosttype.NewReflectInsight()
	}

	var cache *aotcache.Cache
	if m.AOTCacheDir != "" {
		cache, err = aotcache.Open(m.AOTCacheDir + "/aot.db")
		if err != nil {
			return err
		}
		defer cache.Close()
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	fns := reg.Functions()
	funcIDs := make(map[*registry.HostFunction]uint32, len(fns))
	for i, fn := range fns {
		funcIDs[fn] = uint32(i + 1)
	}

	mod, err := aot.BuildModule(fns, funcIDs, insight)
	if err != nil {
		return fmt.Errorf("aot translation: %w", err)
	}

	outPath := outDir + "/module.c"
	if err := os.WriteFile(outPath, []byte(mod.Source), 0o644); err != nil {
		return err
	}

	compiler, err := aot.SelectCompiler("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "scriptc: no native compiler available, wrote %s for manual build\n", outPath)
		return nil
	}
	soPath := outDir + "/module.so"
	if err := compiler.Compile(mod.Source, soPath); err != nil {
		return fmt.Errorf("compiling %s with %s: %w", outPath, compiler.Name(), err)
	}
	if cache != nil {
		for _, fn := range fns {
			if fn.Block == nil {
				continue
			}
			_ = cache.Put(aotcache.Entry{
				CodeHash:   fn.CodeHash,
				Qualified:  fn.ParentClass + "." + fn.Name,
				CSource:    mod.Source,
				ObjectPath: soPath,
				Compiler:   compiler.Name(),
				CreatedAt:  time.Now().Unix(),
			})
		}
	}
	fmt.Fprintf(os.Stdout, "wrote %s, compiled %s with %s\n", outPath, soPath, compiler.Name())
	return nil
}

func runServeLink(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: scriptc servelink <addr>")
	}
	lis, err := net.Listen("tcp", args[0])
	if err != nil {
		return fmt.Errorf("listening on %s: %w", args[0], err)
	}
	s := grpc.NewServer()
	linksvc.Register(s)
	fmt.Fprintf(os.Stdout, "scriptc: link service listening on %s\n", args[0])
	return s.Serve(lis)
}
