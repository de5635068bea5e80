package stubcodec

import (
	"encoding/binary"
	"math"

	"github.com/kestrelengine/scriptcore/internal/stub"
)

// emitter implements stub.Sink for pass 2 ("Emission", spec §4.2): it
// writes real bytes, using the name/string/ref index tables the mapper
// already built.
type emitter struct {
	names   map[string]uint16
	strings map[string]uint16
	index   map[stub.Ref]uint32
	buf     []byte
}

func newEmitter(m *mapper) *emitter {
	return &emitter{names: m.names, strings: m.strings, index: m.index}
}

func (e *emitter) Ref(r stub.Ref) {
	if r == stub.NullRef {
		e.U32(0)
		return
	}
	e.U32(e.index[r])
}

func (e *emitter) Name(s string) { e.U16(e.names[s]) }
func (e *emitter) Str(s string)  { e.U16(e.strings[s]) }

func (e *emitter) U8(v uint8) { e.buf = append(e.buf, v) }

func (e *emitter) U16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *emitter) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *emitter) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *emitter) I64(v int64) { e.U64(uint64(v)) }

func (e *emitter) F64(v float64) { e.U64(math.Float64bits(v)) }

func (e *emitter) Bool(v bool) {
	if v {
		e.U8(1)
	} else {
		e.U8(0)
	}
}

// writeLenPrefixedString writes a u16 byte-length followed by raw UTF-8
// bytes, the encoding used for both the name table and string table
// (spec §6 item 1/2).
func writeLenPrefixedString(e *emitter, s string) {
	e.U16(uint16(len(s)))
	e.buf = append(e.buf, s...)
}
