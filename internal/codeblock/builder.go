package codeblock

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/kestrelengine/scriptcore/internal/stub"
)

// resolvedOp is one opcode surviving the filter/specialization pass, with
// its effective (possibly substituted) kind.
type resolvedOp struct {
	ref stub.Ref
	op  stub.OpKind
	src *stub.OpcodeStub
}

// Build lowers fn's opcode sequence into a CodeBlock (spec §4.6).
func Build(fn *stub.FunctionStub, r Resolver, filename string) (*CodeBlock, error) {
	a := r.Arena()

	locals, localSize, localAlign, err := layoutLocals(a, fn, r)
	if err != nil {
		return nil, err
	}

	ops, refToIndex, err := specializeAndFilter(a, fn, r)
	if err != nil {
		return nil, err
	}

	offsets := make([]int, len(ops))
	pos := 0
	for i, o := range ops {
		offsets[i] = pos
		size, err := operandSize(o, r)
		if err != nil {
			return nil, err
		}
		pos += idSize(uint16(o.op)) + size
	}

	buf := make([]byte, 0, pos)
	var breakpoints []Breakpoint
	for i, o := range ops {
		buf = appendOpID(buf, uint16(o.op))
		shape := Shape(o.op)
		switch shape {
		case ShapeJump, ShapeJumpOptional:
			target, ok := refToIndex[o.src.Target]
			if !ok {
				if shape == ShapeJumpOptional {
					buf = binary.LittleEndian.AppendUint16(buf, 0x7FFF)
					break
				}
				return nil, fmt.Errorf("translation error: function %s: jump with unresolved target", fn.Meta().Name)
			}
			delta := offsets[target] - (offsets[i] + idSize(uint16(o.op)) + 2)
			if delta > 32767 || delta < -32768 {
				return nil, fmt.Errorf("translation error: function %s: jump delta %d exceeds 16-bit range, split the function", fn.Meta().Name, delta)
			}
			buf = binary.LittleEndian.AppendUint16(buf, uint16(int16(delta)))

		case ShapeU8:
			buf = append(buf, byte(o.src.Imm.U))
		case ShapeU16:
			buf = binary.LittleEndian.AppendUint16(buf, uint16(o.src.Imm.U))
		case ShapeU32:
			buf = binary.LittleEndian.AppendUint32(buf, uint32(o.src.Imm.U))
		case ShapeU64:
			buf = binary.LittleEndian.AppendUint64(buf, o.src.Imm.U)
		case ShapeF64:
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(o.src.Imm.F))
		case ShapeName, ShapeStr:
			buf = appendLenPrefixed(buf, o.src.Imm.S)

		case ShapeOffset16:
			off, err := operandOffset(a, o, locals, r)
			if err != nil {
				return nil, err
			}
			buf = binary.LittleEndian.AppendUint16(buf, off)

		case ShapeOffsetAndType:
			off, err := operandOffset(a, o, locals, r)
			if err != nil {
				return nil, err
			}
			buf = binary.LittleEndian.AppendUint16(buf, off)
			tid, _ := r.ClassID(o.src.Referenced)
			buf = binary.LittleEndian.AppendUint32(buf, tid)

		case ShapeClassID:
			id, _ := r.ClassID(o.src.Referenced)
			buf = binary.LittleEndian.AppendUint32(buf, id)

		case ShapeClassIDAndMembers:
			id, _ := r.ClassID(o.src.Referenced)
			buf = binary.LittleEndian.AppendUint32(buf, id)
			buf = append(buf, byte(o.src.Imm.U))

		case ShapeFunctionCall:
			fid, _ := r.FunctionID(o.src.Referenced)
			buf = binary.LittleEndian.AppendUint32(buf, fid)
			encs, _ := r.FunctionArgEncodings(o.src.Referenced)
			buf = append(buf, byte(len(encs)))
			for _, e := range encs {
				buf = append(buf, byte(e))
			}
		}

		if o.op == stub.OpBreakpoint {
			breakpoints = append(breakpoints, Breakpoint{
				Line:    o.src.Meta().Loc.Line,
				Offset:  uint32(offsets[i]),
				Enabled: true,
			})
		}
	}

	line := 0
	if len(fn.Opcodes) > 0 {
		if first := a.Get(fn.Opcodes[0]); first != nil {
			line = first.Meta().Loc.Line
		}
	}

	return &CodeBlock{
		Filename:    filename,
		Line:        line,
		Code:        buf,
		LocalSize:   localSize,
		LocalAlign:  localAlign,
		Locals:      locals.slice(),
		Breakpoints: breakpoints,
	}, nil
}

// localTable assigns each unique local ordinal a packed, aligned offset.
type localTable struct {
	order   []uint64
	offsets map[uint64]Local
}

func (t *localTable) slice() []Local {
	out := make([]Local, len(t.order))
	for i, ord := range t.order {
		out[i] = t.offsets[ord]
	}
	return out
}

func alignUp(v, align uint32) uint32 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// layoutLocals assigns a packed, aligned offset to every unique local
// variable ordinal (carried in OpcodeStub.Imm.U for Local* opcodes)
// encountered in fn's opcode sequence (spec §4.6 "Local layout").
func layoutLocals(a *stub.Arena, fn *stub.FunctionStub, r Resolver) (*localTable, uint32, uint32, error) {
	t := &localTable{offsets: make(map[uint64]Local)}
	var cursor, maxAlign uint32 = 0, 1

	for _, ref := range fn.Opcodes {
		op, ok := stub.AsOpcode(a.Get(ref))
		if !ok {
			continue
		}
		if op.Op != stub.OpLocalVar && op.Op != stub.OpLocalCtor && op.Op != stub.OpLocalDtor {
			continue
		}
		ord := op.Imm.U
		if _, seen := t.offsets[ord]; seen {
			continue
		}
		info, ok := r.Layout(op.Referenced)
		var size, align uint32 = 8, 8
		if ok {
			size, align = info.Size, info.Align
		}
		if align == 0 {
			align = 1
		}
		cursor = alignUp(cursor, align)
		t.offsets[ord] = Local{Offset: cursor, Size: size, Align: align}
		t.order = append(t.order, ord)
		cursor += size
		if align > maxAlign {
			maxAlign = align
		}
	}
	return t, alignUp(cursor, maxAlign), maxAlign, nil
}

// specializeAndFilter walks fn's opcodes in stream order, substituting
// width-specialized opcodes where the resolver's type information allows it
// and dropping constructor/destructor opcodes for types that need neither
// (spec §4.6 "Filter" and "Specialization"). It returns the surviving
// opcodes plus a map from original stub ref to its position in that list,
// used to resolve jump targets (always a retained Label).
func specializeAndFilter(a *stub.Arena, fn *stub.FunctionStub, r Resolver) ([]*resolvedOp, map[stub.Ref]int, error) {
	var out []*resolvedOp
	refToIndex := make(map[stub.Ref]int, len(fn.Opcodes))

	for _, ref := range fn.Opcodes {
		op, ok := stub.AsOpcode(a.Get(ref))
		if !ok {
			return nil, nil, fmt.Errorf("link error: function %s: opcode ref %d is not an opcode stub", fn.Meta().Name, ref)
		}

		if dropped := filterConstructDestruct(op, r); dropped {
			continue
		}

		effective := specialize(op, r)
		refToIndex[ref] = len(out)
		out = append(out, &resolvedOp{ref: ref, op: effective, src: op})
	}
	return out, refToIndex, nil
}

func filterConstructDestruct(op *stub.OpcodeStub, r Resolver) bool {
	switch op.Op {
	case stub.OpLocalCtor, stub.OpContextCtor, stub.OpContextExternalCtor:
		info, ok := r.Layout(op.Referenced)
		return ok && !info.Traits.RequiresConstructor && info.Traits.ZeroInitConstructor
	case stub.OpLocalDtor, stub.OpContextDtor, stub.OpContextExternalDtor:
		info, ok := r.Layout(op.Referenced)
		return ok && !info.Traits.RequiresDestructor
	default:
		return false
	}
}

// specialize substitutes a narrower opcode when the bound type's width is
// known, e.g. generic enum<->int conversions become the exact Expand/
// Contract pair for the enum's chosen storage width (seed scenario #2).
func specialize(op *stub.OpcodeStub, r Resolver) stub.OpKind {
	switch op.Op {
	case stub.OpTestEqualGeneric, stub.OpTestNotEqualGeneric:
		info, ok := r.Layout(op.Referenced)
		if !ok || !info.Traits.SimpleCopyCompare {
			return op.Op
		}
		eq := op.Op == stub.OpTestEqualGeneric
		switch info.Size {
		case 1:
			if eq {
				return stub.OpTestEqual1
			}
			return stub.OpTestNotEqual1
		case 2:
			if eq {
				return stub.OpTestEqual2
			}
			return stub.OpTestNotEqual2
		case 4:
			if eq {
				return stub.OpTestEqual4
			}
			return stub.OpTestNotEqual4
		case 8:
			if eq {
				return stub.OpTestEqual8
			}
			return stub.OpTestNotEqual8
		}
		return op.Op

	case stub.OpInt32ToEnum:
		width, _, ok := r.EnumWidth(op.Referenced)
		if !ok {
			return op.Op
		}
		switch width {
		case 1:
			return stub.OpContract32To8
		case 2:
			return stub.OpContract32To16
		default:
			return stub.OpPassthrough
		}

	case stub.OpInt64ToEnum:
		width, _, ok := r.EnumWidth(op.Referenced)
		if !ok {
			return op.Op
		}
		switch width {
		case 1:
			return stub.OpContract64To8
		case 2:
			return stub.OpContract64To16
		case 4:
			return stub.OpContract64To32
		default:
			return stub.OpPassthrough
		}

	case stub.OpEnumToInt32:
		width, signed, ok := r.EnumWidth(op.Referenced)
		if !ok {
			return op.Op
		}
		return widenTo32(width, signed)

	case stub.OpEnumToInt64:
		width, signed, ok := r.EnumWidth(op.Referenced)
		if !ok {
			return op.Op
		}
		return widenTo64(width, signed)

	default:
		return op.Op
	}
}

func widenTo32(width uint8, signed bool) stub.OpKind {
	switch width {
	case 1:
		if signed {
			return stub.OpExpandSigned8To32
		}
		return stub.OpExpandUnsigned8To32
	case 2:
		if signed {
			return stub.OpExpandSigned16To32
		}
		return stub.OpExpandUnsigned16To32
	default:
		return stub.OpPassthrough
	}
}

func widenTo64(width uint8, signed bool) stub.OpKind {
	switch width {
	case 1:
		if signed {
			return stub.OpExpandSigned8To64
		}
		return stub.OpExpandUnsigned8To64
	case 2:
		if signed {
			return stub.OpExpandSigned16To64
		}
		return stub.OpExpandUnsigned16To64
	case 4:
		if signed {
			return stub.OpExpandSigned32To64
		}
		return stub.OpExpandUnsigned32To64
	default:
		return stub.OpPassthrough
	}
}

// operandOffset resolves the 16-bit offset a memory/variable opcode encodes:
// a packed local slot, a function parameter index, or a property offset
// (linker-assigned during phase 8).
func operandOffset(a *stub.Arena, o *resolvedOp, locals *localTable, r Resolver) (uint16, error) {
	switch o.src.Op {
	case stub.OpLocalVar, stub.OpLocalCtor, stub.OpLocalDtor:
		local, ok := locals.offsets[o.src.Imm.U]
		if !ok {
			return 0, fmt.Errorf("link error: local ordinal %d has no layout entry", o.src.Imm.U)
		}
		return uint16(local.Offset), nil
	case stub.OpParamVar:
		arg, ok := stub.AsFunctionArg(a.Get(o.src.Referenced))
		if !ok {
			return 0, fmt.Errorf("link error: ParamVar does not reference a function argument")
		}
		return uint16(arg.Index), nil
	default:
		off, _ := r.PropertyOffset(o.src.Referenced)
		return off, nil
	}
}

// operandSize reports the number of operand bytes (excluding the opcode id
// itself) a resolved opcode will emit.
func operandSize(o *resolvedOp, r Resolver) (int, error) {
	switch Shape(o.op) {
	case ShapeNone:
		return 0, nil
	case ShapeJump, ShapeJumpOptional:
		return 2, nil
	case ShapeU8:
		return 1, nil
	case ShapeU16, ShapeOffset16:
		return 2, nil
	case ShapeU32, ShapeClassID:
		return 4, nil
	case ShapeU64, ShapeF64:
		return 8, nil
	case ShapeName, ShapeStr:
		return 2 + len(o.src.Imm.S), nil
	case ShapeOffsetAndType:
		return 2 + 4, nil
	case ShapeClassIDAndMembers:
		return 4 + 1, nil
	case ShapeFunctionCall:
		encs, _ := r.FunctionArgEncodings(o.src.Referenced)
		return 4 + 1 + len(encs), nil
	default:
		return 0, nil
	}
}
