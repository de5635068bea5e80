package stubcodec

import "github.com/kestrelengine/scriptcore/internal/stub"

// mapper implements stub.Sink for pass 1 ("Mapping", spec §4.2): it assigns
// a dense index to every reachable stub, name, and string, but emits no
// bytes. Encountering an unvisited stub reference enqueues it for the
// breadth-first traversal driven by Pack.
type mapper struct {
	arena *stub.Arena

	index map[stub.Ref]uint32 // arena ref -> dense pack index (1-based)
	order []stub.Ref          // pack index -> arena ref; order[0] unused

	names     map[string]uint16
	nameOrder []string

	strings     map[string]uint16
	stringOrder []string

	queue []stub.Ref
}

func newMapper(a *stub.Arena) *mapper {
	return &mapper{
		arena:       a,
		index:       make(map[stub.Ref]uint32),
		order:       []stub.Ref{stub.NullRef},
		names:       map[string]uint16{"": 0},
		nameOrder:   []string{""},
		strings:     map[string]uint16{"": 0},
		stringOrder: []string{""},
	}
}

// visit assigns dense indices reachable from root via BFS, calling
// WriteBody against this mapper for every stub along the way.
func (m *mapper) visit(root stub.Ref) error {
	m.enqueue(root)
	for len(m.queue) > 0 {
		r := m.queue[0]
		m.queue = m.queue[1:]
		s := m.arena.Get(r)
		c, ok := s.(stub.Codeable)
		if !ok {
			continue
		}
		c.WriteBody(m)
	}
	return nil
}

func (m *mapper) enqueue(r stub.Ref) {
	if r == stub.NullRef {
		return
	}
	if _, ok := m.index[r]; ok {
		return
	}
	m.index[r] = uint32(len(m.order))
	m.order = append(m.order, r)
	m.queue = append(m.queue, r)
}

func (m *mapper) Ref(r stub.Ref)    { m.enqueue(r) }
func (m *mapper) Name(s string) {
	if _, ok := m.names[s]; ok {
		return
	}
	m.names[s] = uint16(len(m.nameOrder))
	m.nameOrder = append(m.nameOrder, s)
}
func (m *mapper) Str(s string) {
	if _, ok := m.strings[s]; ok {
		return
	}
	m.strings[s] = uint16(len(m.stringOrder))
	m.stringOrder = append(m.stringOrder, s)
}
func (m *mapper) U8(v uint8)     {}
func (m *mapper) U16(v uint16)   {}
func (m *mapper) U32(v uint32)   {}
func (m *mapper) U64(v uint64)   {}
func (m *mapper) I64(v int64)    {}
func (m *mapper) F64(v float64)  {}
func (m *mapper) Bool(v bool)    {}
