package stub

// Stub is implemented by every concrete stub struct. Methods that only a
// few kinds need (matching, post-load map rebuilding, pruning) live in
// separate optional interfaces below and are reached with a type assertion,
// the same "small interface, checked with an assertion" shape the standard
// library uses for io.ReaderFrom/WriterTo rather than a single fat
// interface every kind must implement with no-op stubs.
type Stub interface {
	Tag() Tag
	Meta() *Base
}

// Matcher is implemented by stub kinds the linker structurally compares
// when reconciling an import against its export (spec §4.5 phase 3).
type Matcher interface {
	Match(a *Arena, other Stub) bool
}

// PostLoader is implemented by stub kinds that cache derived lookup maps
// which must be rebuilt after deserialization (spec §4.2: "call postLoad()
// on each [stub] to rebuild name maps").
type PostLoader interface {
	PostLoad(a *Arena)
}

// Pruner is implemented by stub kinds that own sub-objects that may need to
// be dropped when trimming an import-only view of a module (spec §4.1).
type Pruner interface {
	Prune(a *Arena, used map[Ref]bool, removed *int)
}

// FullyQualifiedName walks the owner chain of s and returns the
// dot-joined name (spec §3: "Fully qualified name is the dotted
// concatenation of owner chain names").
func FullyQualifiedName(a *Arena, s Stub) string {
	if s == nil {
		return ""
	}
	names := []string{s.Meta().Name}
	owner := s.Meta().Owner
	for owner != NullRef {
		os := a.Get(owner)
		if os == nil {
			break
		}
		// Module and File stubs don't contribute to the qualified name of
		// their children beyond the module's own top-level scope.
		if os.Tag() == TagModule || os.Tag() == TagFile {
			break
		}
		names = append([]string{os.Meta().Name}, names...)
		owner = os.Meta().Owner
	}
	out := names[0]
	for _, n := range names[1:] {
		out += "." + n
	}
	return out
}
