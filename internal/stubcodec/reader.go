package stubcodec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/kestrelengine/scriptcore/internal/diag"
	"github.com/kestrelengine/scriptcore/internal/stub"
)

// reader implements stub.Source for unpacking, reading against the
// already-decoded name/string tables and validating every reference
// against the stub count bound (spec §4.2 invariant: an out-of-range
// index is a hard format error).
type reader struct {
	buf   []byte
	pos   int
	names []string
	strs  []string
	n     uint32 // stub count, including the null sentinel

	file string // for diagnostics
}

func (r *reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("%s: truncated at offset %d, need %d more bytes", diag.KindFormat, r.pos, n)
	}
	return nil
}

func (r *reader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) U16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) I64() (int64, error) {
	v, err := r.U64()
	return int64(v), err
}

func (r *reader) F64() (float64, error) {
	v, err := r.U64()
	return math.Float64frombits(v), err
}

func (r *reader) Bool() (bool, error) {
	v, err := r.U8()
	return v != 0, err
}

func (r *reader) Ref() (stub.Ref, error) {
	v, err := r.U32()
	if err != nil {
		return stub.NullRef, err
	}
	if v >= r.n {
		return stub.NullRef, fmt.Errorf("%s: stub reference %d out of range (table has %d entries)", diag.KindFormat, v, r.n)
	}
	return stub.Ref(v), nil
}

func (r *reader) Name() (string, error) {
	idx, err := r.U16()
	if err != nil {
		return "", err
	}
	if int(idx) >= len(r.names) {
		return "", fmt.Errorf("%s: name index %d out of range (table has %d entries)", diag.KindFormat, idx, len(r.names))
	}
	return r.names[idx], nil
}

func (r *reader) Str() (string, error) {
	idx, err := r.U16()
	if err != nil {
		return "", err
	}
	if int(idx) >= len(r.strs) {
		return "", fmt.Errorf("%s: string index %d out of range (table has %d entries)", diag.KindFormat, idx, len(r.strs))
	}
	return r.strs[idx], nil
}

// readLenPrefixedString reads a u16 byte-length followed by that many raw
// bytes, the encoding used for name/string table entries (spec §6).
func readLenPrefixedString(r *reader) (string, error) {
	n, err := r.U16()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}
