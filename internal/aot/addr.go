package aot

import (
	"fmt"

	"github.com/kestrelengine/scriptcore/internal/stub"
)

// emitAddr decodes the next opcode and emits its C lvalue text, the AOT
// counterpart of interp.Frame.evalAddr.
func (t *translator) emitAddr() (string, error) {
	op, err := t.cur.readOp()
	if err != nil {
		return "", err
	}
	return t.emitAddrOp(stub.OpKind(op))
}

// emitAddrOp emits the C lvalue for one of the dual-use memory/variable
// opcodes. Locals become named C stack variables, each declared once in the
// function prologue from the code block's local layout; context,
// external-context and struct-member storage round-trip through the
// runtime shim's property accessors since their real layout lives in
// host-owned memory the generated C never reaches into directly.
func (t *translator) emitAddrOp(op stub.OpKind) (string, error) {
	switch op {
	case stub.OpLocalVar:
		off, err := t.cur.u16()
		if err != nil {
			return "", err
		}
		return localName(off), nil

	case stub.OpParamVar:
		idx, err := t.cur.u16()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("arg%d", idx), nil

	case stub.OpContextVar, stub.OpContextExternalVar:
		off, err := t.cur.u16()
		if err != nil {
			return "", err
		}
		external := "0"
		if op == stub.OpContextExternalVar {
			external = "1"
		}
		return fmt.Sprintf("(*sc_rt_property_addr(rt, this_, %d, %s))", off, external), nil

	case stub.OpStructMember, stub.OpStructMemberRef:
		off, err := t.cur.u16()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(*sc_rt_member_addr(rt, this_, %d))", off), nil

	case stub.OpThisObject, stub.OpThisStruct:
		return "this_", nil

	default:
		return "", fmt.Errorf("aot: opcode %s is not an address", op)
	}
}

func (c *cursor) offsetAndType() (uint16, uint32, error) {
	off, err := c.u16()
	if err != nil {
		return 0, 0, err
	}
	tid, err := c.u32()
	return off, tid, err
}

// localName derives a stable C identifier for a local-variable slot offset.
// It only formats the name; TranslateFunction declares every local with a
// zero-initializer in the prologue.
func localName(offset uint16) string {
	return fmt.Sprintf("_local%d", offset)
}
