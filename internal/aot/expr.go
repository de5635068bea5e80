package aot

import (
	"fmt"

	"github.com/kestrelengine/scriptcore/internal/codeblock"
	"github.com/kestrelengine/scriptcore/internal/stub"
)

// emitExpr decodes the next opcode and emits it as a C expression string,
// the AOT counterpart of interp.Frame.evalExpr.
func (t *translator) emitExpr() (string, error) {
	op, err := t.cur.readOp()
	if err != nil {
		return "", err
	}
	return t.emitExprOp(stub.OpKind(op))
}

// addressFamily reports whether op belongs to the dual-use memory/variable
// family (spec §4.7): evalAddr() consumes these for an lvalue, while
// encountering one directly as an expression auto-dereferences it.
func addressFamily(op stub.OpKind) bool {
	switch op {
	case stub.OpLocalVar, stub.OpContextVar, stub.OpContextExternalVar, stub.OpParamVar,
		stub.OpStructMember, stub.OpStructMemberRef, stub.OpThisObject, stub.OpThisStruct:
		return true
	default:
		return false
	}
}

func (t *translator) emitExprOp(op stub.OpKind) (string, error) {
	if addressFamily(op) {
		return t.emitAddrOp(op)
	}
	if isConversionOp(op) {
		return t.emitConvert(op)
	}
	if e, ok := arithTable[op]; ok {
		return t.emitBinary(e.sym, e.ty)
	}
	if e, ok := bitTable[op]; ok {
		return t.emitBitwise(op, e)
	}
	if e, ok := cmpTable[op]; ok {
		return t.emitCompare(e)
	}

	switch op {
	case stub.OpNull:
		return "NULL", nil
	case stub.OpBoolTrue:
		return "1", nil
	case stub.OpBoolFalse:
		return "0", nil
	case stub.OpIntOne:
		return "1", nil
	case stub.OpIntZero:
		return "0", nil
	case stub.OpIntConst1, stub.OpIntConst2, stub.OpIntConst4, stub.OpIntConst8:
		v, err := t.readConstWidth(op)
		return v, err
	case stub.OpUintConst1, stub.OpUintConst2, stub.OpUintConst4, stub.OpUintConst8:
		v, err := t.readConstWidth(op)
		return v, err
	case stub.OpFloatConst:
		v, err := t.cur.f64()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%gf", v), nil
	case stub.OpDoubleConst:
		v, err := t.cur.f64()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%g", v), nil
	case stub.OpNameConst, stub.OpStringConst:
		s, err := t.cur.str()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%q", s), nil
	case stub.OpEnumConst:
		id, member, err := t.cur.u32AndU8()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("sc_rt_enum_const(rt, %du, %d)", id, member), nil
	case stub.OpClassConst:
		id, err := t.cur.u32()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("sc_rt_class_const(rt, %du)", id), nil

	case stub.OpLoadInt1, stub.OpLoadInt2, stub.OpLoadInt4, stub.OpLoadInt8,
		stub.OpLoadUint1, stub.OpLoadUint2, stub.OpLoadUint4, stub.OpLoadUint8,
		stub.OpLoadFloat, stub.OpLoadDouble, stub.OpLoadStrongPtr, stub.OpLoadWeakPtr, stub.OpLoadAny:
		ad, err := t.emitAddr()
		if err != nil {
			return "", err
		}
		return ad, nil

	case stub.OpLogicNot:
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(!(%s))", v), nil

	case stub.OpLogicXor:
		l, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		r, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("((!!(%s)) != (!!(%s)))", l, r), nil

	case stub.OpLogicAnd, stub.OpLogicOr:
		// C's && and || already short-circuit, so the jump operand these
		// opcodes carry in the wire format is structurally redundant here;
		// it is still consumed (and ignored) to keep the cursor in sync.
		if _, _, err := t.cur.jumpTarget(); err != nil {
			return "", err
		}
		l, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		r, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		sym := "&&"
		if op == stub.OpLogicOr {
			sym = "||"
		}
		return fmt.Sprintf("((%s) %s (%s))", l, sym, r), nil

	case stub.OpMinInt32, stub.OpMaxInt32, stub.OpClampInt32, stub.OpAbsInt32, stub.OpSignInt32:
		return t.emitMathHelper(op)

	case stub.OpNegInt8, stub.OpNegInt16, stub.OpNegInt32, stub.OpNegInt64, stub.OpNegFloat, stub.OpNegDouble:
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(-(%s))", v), nil

	case stub.OpPreIncrement, stub.OpPostIncrement, stub.OpPreDecrement, stub.OpPostDecrement:
		return t.emitIncDec(op)

	case stub.OpNew:
		classID, err := t.cur.u32()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("sc_rt_new(rt, %du)", classID), nil

	case stub.OpConstructor:
		return t.emitConstructor()

	case stub.OpDynamicCast, stub.OpDynamicWeakCast, stub.OpMetaCast:
		classID, err := t.cur.u32()
		if err != nil {
			return "", err
		}
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		switch op {
		case stub.OpDynamicCast:
			return fmt.Sprintf("sc_rt_dynamic_cast(rt, %du, %s)", classID, v), nil
		case stub.OpDynamicWeakCast:
			return fmt.Sprintf("sc_rt_dynamic_weak_cast(rt, %du, %s)", classID, v), nil
		default:
			return fmt.Sprintf("sc_rt_meta_cast(rt, %du, %s)", classID, v), nil
		}

	case stub.OpStaticFunc, stub.OpFinalFunc, stub.OpVirtualFunc, stub.OpInternalFunc:
		return t.emitCall(op)

	default:
		return "", fmt.Errorf("aot: unhandled opcode %s", op)
	}
}

func (t *translator) readConstWidth(op stub.OpKind) (string, error) {
	switch op {
	case stub.OpIntConst1, stub.OpUintConst1:
		v, err := t.cur.u8()
		return fmt.Sprintf("%d", v), err
	case stub.OpIntConst2, stub.OpUintConst2:
		v, err := t.cur.u16()
		return fmt.Sprintf("%d", v), err
	case stub.OpIntConst4, stub.OpUintConst4:
		v, err := t.cur.u32()
		return fmt.Sprintf("%d", v), err
	default:
		v, err := t.cur.u64()
		return fmt.Sprintf("%dLL", v), err
	}
}

func (c *cursor) u32AndU8() (uint32, byte, error) {
	id, err := c.u32()
	if err != nil {
		return 0, 0, err
	}
	n, err := c.u8()
	return id, n, err
}

// emitConstructor builds an aggregate initializer from memberCount
// positionally-ordered child expressions, mirroring interp's
// evalConstructor (which builds a structInstance the same way).
func (t *translator) emitConstructor() (string, error) {
	classID, memberCount, err := t.cur.u32AndU8()
	if err != nil {
		return "", err
	}
	members := make([]string, 0, memberCount)
	for i := 0; i < int(memberCount); i++ {
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		members = append(members, v)
	}
	args := ""
	for i, m := range members {
		if i > 0 {
			args += ", "
		}
		args += m
	}
	return fmt.Sprintf("sc_rt_construct(rt, %du, %d, (ScRtValue[]){%s})", classID, memberCount, args), nil
}

func (t *translator) emitMathHelper(op stub.OpKind) (string, error) {
	switch op {
	case stub.OpMinInt32:
		a, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		b, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(((%s) < (%s)) ? (%s) : (%s))", a, b, a, b), nil
	case stub.OpMaxInt32:
		a, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		b, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(((%s) > (%s)) ? (%s) : (%s))", a, b, a, b), nil
	case stub.OpClampInt32:
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		lo, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		hi, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("sc_rt_clamp_i32(%s, %s, %s)", v, lo, hi), nil
	case stub.OpAbsInt32:
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(((%s) < 0) ? -(%s) : (%s))", v, v, v), nil
	default: // OpSignInt32
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(((%s) > 0) - ((%s) < 0))", v, v), nil
	}
}

// emitCall translates a function-call opcode into a forwarder invocation
// (fn_N(...)), reading the per-argument calling-encoding bytes to decide
// whether each argument is passed by address or by value.
func (t *translator) emitCall(op stub.OpKind) (string, error) {
	fid, err := t.cur.u32()
	if err != nil {
		return "", err
	}
	argc, err := t.cur.u8()
	if err != nil {
		return "", err
	}
	encs := make([]codeblock.CallEncoding, argc)
	for i := range encs {
		b, err := t.cur.u8()
		if err != nil {
			return "", err
		}
		encs[i] = codeblock.CallEncoding(b)
	}

	args := make([]string, 0, argc+1)
	switch op {
	case stub.OpVirtualFunc, stub.OpFinalFunc:
		args = append(args, "this_")
	default:
		args = append(args, "NULL")
	}
	for _, enc := range encs {
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		if enc == codeblock.CallRef {
			v = "&(" + v + ")"
		}
		args = append(args, v)
	}
	joined := ""
	for i, a := range args {
		if i > 0 {
			joined += ", "
		}
		joined += a
	}
	return fmt.Sprintf("%s(%s)", ForwarderName(fid), joined), nil
}
