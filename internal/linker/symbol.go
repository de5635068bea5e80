package linker

import "github.com/kestrelengine/scriptcore/internal/stub"

// site pins a stub to the arena it lives in -- Refs are only dense indices
// within one module's arena, so cross-module bookkeeping needs the arena
// alongside the Ref (spec §4.5 phase 1: "a parallel table keyed by stub
// pointer", the Go equivalent of a pointer here being an (arena, ref) pair).
type site struct {
	arena *stub.Arena
	ref   stub.Ref
}

func (s site) stub() stub.Stub { return s.arena.Get(s.ref) }

// Symbol pairs a fully-qualified name with at most one defining (export)
// site and any number of import sites (spec §4.5 phase 1).
type Symbol struct {
	FQN    string
	Kind   stub.Tag
	Export *site
	Import []site
}

func (s *Symbol) addSite(a *stub.Arena, r stub.Ref, isExport bool) {
	sv := site{arena: a, ref: r}
	if isExport {
		s.Export = &sv
	} else {
		s.Import = append(s.Import, sv)
	}
}

// anySite returns a representative site for diagnostics when there is no
// export: the first import.
func (s *Symbol) anySite() (site, bool) {
	if s.Export != nil {
		return *s.Export, true
	}
	if len(s.Import) > 0 {
		return s.Import[0], true
	}
	return site{}, false
}
