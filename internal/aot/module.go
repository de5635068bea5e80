package aot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kestrelengine/scriptcore/internal/hosttype"
	"github.com/kestrelengine/scriptcore/internal/registry"
)

// Module is one translation unit's worth of generated C, ready to hand to a
// NativeCompiler: every function in Functions plus a single init entry
// point the host calls after loading the resulting shared object.
type Module struct {
	Source string // full .c text, #include and all
	// InitSymbol is the C function name the host calls once after dlopen,
	// registering every translated function back into the engine.
	InitSymbol string
}

// preamble is emitted at the top of every generated translation unit. The
// real type/function declarations for ScRtContext, ScRtValue and every
// sc_rt_* helper live in a host-supplied header; generated code never
// redefines them, matching how the original's JIT output only ever calls
// back into engine vtables rather than re-implementing engine semantics.
const preamble = `#include <stdint.h>
#include <stddef.h>
#include "scriptcore_rt.h"

`

// BuildModule translates every function in fns into one C translation
// unit and emits a module-init function that reports each one back to the
// host via a reverse vtable -- the generated analogue of the registry's
// CreateFunction bookkeeping, so the host can resolve fn_N forwarders
// against the freshly compiled code without a second link pass.
func BuildModule(fns []*registry.HostFunction, funcIDs map[*registry.HostFunction]uint32, insight hosttype.Insight) (*Module, error) {
	var body strings.Builder
	body.WriteString(preamble)

	// Forward-declare every callee so call sites can reference fn_N before
	// its own translation unit position, regardless of iteration order.
	ids := make([]uint32, 0, len(funcIDs))
	for _, id := range funcIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Fprintf(&body, "extern ScRtValue %s(void *this_, ScRtValue *args, int argc);\n", ForwarderName(id))
	}
	body.WriteString("\n")

	names := make([]string, 0, len(fns))
	bySymbol := make(map[string]*registry.HostFunction, len(fns))
	for _, fn := range fns {
		sym := FunctionName(fn)
		names = append(names, sym)
		bySymbol[sym] = fn
	}
	sort.Strings(names)

	for _, sym := range names {
		fn := bySymbol[sym]
		src, err := TranslateFunction(fn, insight)
		if err != nil {
			return nil, err
		}
		body.WriteString(src)
		body.WriteString("\n")
	}

	initSym := "sc_module_init"
	fmt.Fprintf(&body, "void %s(ScRtRegistrar *reg) {\n", initSym)
	for _, sym := range names {
		fn := bySymbol[sym]
		id, ok := funcIDs[fn]
		if !ok {
			continue
		}
		fmt.Fprintf(&body, "  sc_rt_register(reg, %du, \"%s\", 0x%016xULL, (void*)%s);\n", id, fn.Name, fn.CodeHash, sym)
	}
	body.WriteString("}\n")

	return &Module{Source: body.String(), InitSymbol: initSym}, nil
}
