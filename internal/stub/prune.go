package stub

// Prune drops sub-objects of s that are not reachable from the used set,
// incrementing *removed for each dropped Ref (spec §4.1: "used during
// module trimming for imports"). used maps every Ref that must be kept
// (typically: every export an importing module actually references, plus
// everything reachable from it) to true.
func Prune(a *Arena, s Stub, used map[Ref]bool, removed *int) {
	if p, ok := s.(Pruner); ok {
		p.Prune(a, used, removed)
	}
}

func (s *ModuleStub) Prune(a *Arena, used map[Ref]bool, removed *int) {
	kept := s.Files[:0]
	for _, fr := range s.Files {
		if used[fr] {
			kept = append(kept, fr)
			if f, ok := a.Get(fr).(*FileStub); ok {
				f.Prune(a, used, removed)
			}
		} else {
			*removed++
		}
	}
	s.Files = kept
}

func (s *FileStub) Prune(a *Arena, used map[Ref]bool, removed *int) {
	kept := s.TopLevel[:0]
	for _, r := range s.TopLevel {
		if used[r] {
			kept = append(kept, r)
		} else {
			*removed++
		}
	}
	s.TopLevel = kept
}

func (s *ClassStub) Prune(a *Arena, used map[Ref]bool, removed *int) {
	kept := s.Members[:0]
	for _, m := range s.Members {
		if used[m] {
			kept = append(kept, m)
		} else {
			*removed++
		}
	}
	s.Members = kept
}

func (s *EnumStub) Prune(a *Arena, used map[Ref]bool, removed *int) {
	// Enum options are never pruned individually: an imported enum must see
	// every option to remain a structural match (spec §4.5 phase 3).
	_ = a
	_ = used
	_ = removed
}
