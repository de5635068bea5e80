package interp

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/kestrelengine/scriptcore/internal/codeblock"
	"github.com/kestrelengine/scriptcore/internal/stub"
)

// readOp decodes the next opcode id from the stream at f.ip, advancing past
// it (spec §6 "Opcode byte stream": 1-or-2-byte continuation encoding,
// mirrored by codeblock.DecodeOpID which the builder's appendOpID produces).
func (f *Frame) readOp() (stub.OpKind, error) {
	id, n, ok := codeblock.DecodeOpID(f.Block.Code, f.ip)
	if !ok {
		return 0, fmt.Errorf("runtime fault: truncated opcode stream at offset %d", f.ip)
	}
	f.ip += n
	return stub.OpKind(id), nil
}

func (f *Frame) need(n int) error {
	if f.ip+n > len(f.Block.Code) {
		return fmt.Errorf("runtime fault: truncated operand at offset %d", f.ip)
	}
	return nil
}

func (f *Frame) readU8() (byte, error) {
	if err := f.need(1); err != nil {
		return 0, err
	}
	v := f.Block.Code[f.ip]
	f.ip++
	return v, nil
}

func (f *Frame) readU16() (uint16, error) {
	if err := f.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(f.Block.Code[f.ip:])
	f.ip += 2
	return v, nil
}

func (f *Frame) readU32() (uint32, error) {
	if err := f.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(f.Block.Code[f.ip:])
	f.ip += 4
	return v, nil
}

func (f *Frame) readU64() (uint64, error) {
	if err := f.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(f.Block.Code[f.ip:])
	f.ip += 8
	return v, nil
}

func (f *Frame) readF64() (float64, error) {
	bits, err := f.readU64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func (f *Frame) readLenPrefixed() (string, error) {
	n, err := f.readU16()
	if err != nil {
		return "", err
	}
	if err := f.need(int(n)); err != nil {
		return "", err
	}
	s := string(f.Block.Code[f.ip : f.ip+int(n)])
	f.ip += int(n)
	return s, nil
}

// readJumpDelta reads the 2-byte signed delta a Jump-shaped opcode carries
// and returns the absolute target offset, relative to the instruction
// pointer right after the field (spec §4.6 "a delta ... from the
// instruction pointer after the offset field").
func (f *Frame) readJumpDelta() (int, bool, error) {
	if err := f.need(2); err != nil {
		return 0, false, err
	}
	raw := binary.LittleEndian.Uint16(f.Block.Code[f.ip:])
	f.ip += 2
	if raw == 0x7FFF {
		return 0, false, nil // ContextFromPtr/PtrRef "no fallback" sentinel
	}
	delta := int(int16(raw))
	return f.ip + delta, true, nil
}

func (f *Frame) readOffset16() (uint16, error) { return f.readU16() }

func (f *Frame) readOffsetAndType() (uint16, uint32, error) {
	off, err := f.readU16()
	if err != nil {
		return 0, 0, err
	}
	tid, err := f.readU32()
	return off, tid, err
}

func (f *Frame) readClassID() (uint32, error) { return f.readU32() }

func (f *Frame) readClassIDAndMembers() (uint32, byte, error) {
	id, err := f.readU32()
	if err != nil {
		return 0, 0, err
	}
	n, err := f.readU8()
	return id, n, err
}

func (f *Frame) readFunctionCall() (uint32, []codeblock.CallEncoding, error) {
	fid, err := f.readU32()
	if err != nil {
		return 0, nil, err
	}
	argc, err := f.readU8()
	if err != nil {
		return 0, nil, err
	}
	encs := make([]codeblock.CallEncoding, argc)
	for i := range encs {
		b, err := f.readU8()
		if err != nil {
			return 0, nil, err
		}
		encs[i] = codeblock.CallEncoding(b)
	}
	return fid, encs, nil
}
