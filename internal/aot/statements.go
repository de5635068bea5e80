package aot

import (
	"fmt"

	"github.com/kestrelengine/scriptcore/internal/codeblock"
	"github.com/kestrelengine/scriptcore/internal/stub"
)

// translateBody walks the block's top-level statement sequence, same loop
// shape as interp.Frame.run(), emitting one or more C statements per
// opcode into t.body. It walks the stream twice: the first pass only fills
// t.labels, so that the target of a backward jump already has a label name
// when the second pass reaches its offset and emits the text kept in t.body.
func (t *translator) translateBody(block *codeblock.CodeBlock) error {
	for pass := 0; pass < 2; pass++ {
		t.cur.ip, t.tmpN, t.cleanup = 0, 0, nil
		t.body.Reset()
		for t.cur.ip < len(block.Code) {
			start := t.cur.ip
			t.emitLabelIfAny(start)
			op, err := t.cur.readOp()
			if err != nil {
				return err
			}
			if err := t.emitStatement(stub.OpKind(op)); err != nil {
				return err
			}
		}
		// A label target at exactly end-of-stream (an empty fallthrough block)
		// still needs its goto target emitted.
		t.emitLabelIfAny(t.cur.ip)
	}
	return nil
}

func (t *translator) emitStatement(op stub.OpKind) error {
	switch op {
	case stub.OpNop, stub.OpLabel, stub.OpExit, stub.OpBreakpoint:
		return nil

	case stub.OpJump:
		target, _, err := t.cur.jumpTarget()
		if err != nil {
			return err
		}
		fmt.Fprintf(&t.body, "goto %s;\n", t.labelFor(target))
		return nil

	case stub.OpJumpIfFalse:
		target, _, err := t.cur.jumpTarget()
		if err != nil {
			return err
		}
		cond, err := t.emitExpr()
		if err != nil {
			return err
		}
		fmt.Fprintf(&t.body, "if (!(%s)) goto %s;\n", cond, t.labelFor(target))
		return nil

	case stub.OpContextFromValue, stub.OpContextFromRef:
		// Unconditional context shift: evaluate and discard, the following
		// statements already address through `this_` at the Go/interp layer;
		// in C they simply reuse `this_` since the generated function has no
		// separate context-stack representation.
		_, err := t.emitExpr()
		return err

	case stub.OpContextFromPtr, stub.OpContextFromPtrRef:
		target, hasFallback, err := t.cur.jumpTarget()
		if err != nil {
			return err
		}
		ptr, err := t.emitExpr()
		if err != nil {
			return err
		}
		tmp := t.newTemp()
		fmt.Fprintf(&t.body, "void *%s = (void*)(%s);\n", tmp, ptr)
		fmt.Fprintf(&t.body, "if (%s == NULL) {\n", tmp)
		fmt.Fprintf(&t.body, "  if (sc_rt_fault(rt, SC_FAULT_NULL_DEREF)) goto _cleanup;\n")
		if hasFallback {
			fmt.Fprintf(&t.body, "  else goto %s;\n", t.labelFor(target))
		}
		t.body.WriteString("}\n")
		return nil

	case stub.OpLocalCtor, stub.OpContextCtor, stub.OpContextExternalCtor:
		// Construction emits no C for any type: every local slot is
		// zero-initialised in the prologue, and no sc_rt_construct call is
		// generated, including for host types that need a constructor. The
		// matching Dtor opcode emits its sc_rt_destruct call inline.
		_, err := t.emitCtorDtorAddr(op)
		return err

	case stub.OpLocalDtor, stub.OpContextDtor, stub.OpContextExternalDtor:
		ad, err := t.emitCtorDtorAddr(op)
		if err != nil {
			return err
		}
		fmt.Fprintf(&t.body, "sc_rt_destruct(rt, &%s);\n", ad)
		return nil

	case stub.OpAssignInt1, stub.OpAssignInt2, stub.OpAssignInt4, stub.OpAssignInt8,
		stub.OpAssignUint1, stub.OpAssignUint2, stub.OpAssignUint4, stub.OpAssignUint8,
		stub.OpAssignFloat, stub.OpAssignDouble, stub.OpAssignAny:
		return t.emitAssign(op)

	case stub.OpCompoundAssignAdd, stub.OpCompoundAssignSub, stub.OpCompoundAssignMul,
		stub.OpCompoundAssignDiv, stub.OpCompoundAssignMod,
		stub.OpCompoundAnd, stub.OpCompoundOr, stub.OpCompoundXor, stub.OpCompoundShl, stub.OpCompoundShr:
		return t.emitCompoundAssign(op)

	case stub.OpReturnLoad1, stub.OpReturnLoad2, stub.OpReturnLoad4, stub.OpReturnLoad8:
		val, err := t.emitExpr()
		if err != nil {
			return err
		}
		fmt.Fprintf(&t.body, "return %s;\n", val)
		return nil

	case stub.OpReturnDirect, stub.OpReturnAny:
		val, err := t.emitExpr()
		if err != nil {
			return err
		}
		fmt.Fprintf(&t.body, "return %s;\n", val)
		return nil

	case stub.OpPreIncrement, stub.OpPostIncrement, stub.OpPreDecrement, stub.OpPostDecrement:
		expr, err := t.emitIncDec(op)
		if err != nil {
			return err
		}
		fmt.Fprintf(&t.body, "%s;\n", expr)
		return nil

	default:
		// Any expression opcode used as a bare statement: evaluate for its
		// side effect (typically a function call) and discard the result.
		expr, err := t.emitExprOp(op)
		if err != nil {
			return err
		}
		fmt.Fprintf(&t.body, "(void)(%s);\n", expr)
		return nil
	}
}

// emitCtorDtorAddr handles the Ctor/Dtor opcodes' own ShapeOffsetAndType
// operand (offset + host type id packed directly on the opcode, unlike
// LocalVar/ContextVar which only carry an offset), mirroring
// interp.Frame.addrForCtorDtor.
func (t *translator) emitCtorDtorAddr(op stub.OpKind) (string, error) {
	off, _, err := t.cur.offsetAndType()
	if err != nil {
		return "", err
	}
	switch op {
	case stub.OpLocalCtor, stub.OpLocalDtor:
		return localName(off), nil
	case stub.OpContextCtor, stub.OpContextDtor:
		return fmt.Sprintf("(*sc_rt_property_addr(rt, this_, %d, 0))", off), nil
	default:
		return fmt.Sprintf("(*sc_rt_property_addr(rt, this_, %d, 1))", off), nil
	}
}

func (t *translator) emitAssign(op stub.OpKind) error {
	dst, err := t.emitAddr()
	if err != nil {
		return err
	}
	val, err := t.emitExpr()
	if err != nil {
		return err
	}
	fmt.Fprintf(&t.body, "%s = %s;\n", dst, val)
	return nil
}

func (t *translator) emitCompoundAssign(op stub.OpKind) error {
	dst, err := t.emitAddr()
	if err != nil {
		return err
	}
	val, err := t.emitExpr()
	if err != nil {
		return err
	}
	var sym string
	switch op {
	case stub.OpCompoundAssignAdd:
		sym = "+="
	case stub.OpCompoundAssignSub:
		sym = "-="
	case stub.OpCompoundAssignMul:
		sym = "*="
	case stub.OpCompoundAssignDiv:
		sym = "/="
	case stub.OpCompoundAssignMod:
		sym = "%="
	}
	fmt.Fprintf(&t.body, "%s %s (int32_t)(%s);\n", dst, sym, val)
	return nil
}

func (t *translator) emitIncDec(op stub.OpKind) (string, error) {
	dst, err := t.emitAddr()
	if err != nil {
		return "", err
	}
	switch op {
	case stub.OpPreIncrement:
		return "++" + dst, nil
	case stub.OpPostIncrement:
		return dst + "++", nil
	case stub.OpPreDecrement:
		return "--" + dst, nil
	default:
		return dst + "--", nil
	}
}
