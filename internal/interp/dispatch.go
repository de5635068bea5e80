package interp

import (
	"fmt"

	"github.com/kestrelengine/scriptcore/internal/codeblock"
	"github.com/kestrelengine/scriptcore/internal/diag"
	"github.com/kestrelengine/scriptcore/internal/stub"
)

// Run executes block as a fresh call (spec §4.7 "Dispatch loop"). The
// opcode stream is a pre-order flattening of the function's statement/
// expression tree: a single instruction pointer walks it, and each
// opcode's handler recursively reads its own children straight off the
// stream at the current cursor -- there is no separate operand stack.
func Run(block *codeblock.CodeBlock, initial Object, params []Value, host Host, parent *Frame, debug *DebugInfo) (Value, error) {
	f := NewFrame(parent, initial, block, params, host, debug)
	return f.run()
}

func (f *Frame) run() (Value, error) {
	for f.ip < len(f.Block.Code) {
		start := f.ip
		op, err := f.readOp()
		if err != nil {
			return Value{}, err
		}
		if op == stub.OpExit {
			return Value{}, nil
		}
		ret, val, err := f.execStatement(op, start)
		if err != nil {
			return Value{}, err
		}
		if ret {
			return val, nil
		}
	}
	return Value{}, nil
}

func (f *Frame) loc() diag.Location {
	return diag.Location{File: f.Block.Filename, Line: f.Block.Line}
}

// execStatement handles the opcodes that only ever appear at statement
// position (control flow, construct/destruct, assignment, return,
// context-shift). Anything else is treated as an expression evaluated for
// its side effects alone, e.g. a bare function call.
func (f *Frame) execStatement(op stub.OpKind, start int) (ret bool, val Value, err error) {
	switch op {
	case stub.OpNop, stub.OpLabel:
		return false, Value{}, nil

	case stub.OpBreakpoint:
		if f.Debug != nil && f.Debug.OnBreakpoint != nil {
			for _, bp := range f.Block.Breakpoints {
				if bp.Enabled && int(bp.Offset) == start {
					f.Debug.OnBreakpoint(f, bp)
					break
				}
			}
		}
		return false, Value{}, nil

	case stub.OpJump:
		target, _, jerr := f.readJumpDelta()
		if jerr != nil {
			return false, Value{}, jerr
		}
		f.ip = target
		return false, Value{}, nil

	case stub.OpJumpIfFalse:
		target, _, jerr := f.readJumpDelta()
		if jerr != nil {
			return false, Value{}, jerr
		}
		cond, cerr := f.evalExpr()
		if cerr != nil {
			return false, Value{}, cerr
		}
		if !cond.asBool() {
			f.ip = target
		}
		return false, Value{}, nil

	case stub.OpLocalCtor, stub.OpContextCtor, stub.OpContextExternalCtor:
		ad, aerr := f.addrForCtorDtor(op)
		if aerr != nil {
			return false, Value{}, aerr
		}
		return false, Value{}, f.writeAddr(ad, Value{})

	case stub.OpLocalDtor, stub.OpContextDtor, stub.OpContextExternalDtor:
		// Host-owned destruction is a no-op in this interpreter: Go values
		// have no destructors, and the local/context cell is simply dropped
		// when the frame or owning object goes away.
		_, aerr := f.addrForCtorDtor(op)
		return false, Value{}, aerr

	case stub.OpAssignInt1, stub.OpAssignInt2, stub.OpAssignInt4, stub.OpAssignInt8,
		stub.OpAssignUint1, stub.OpAssignUint2, stub.OpAssignUint4, stub.OpAssignUint8,
		stub.OpAssignFloat, stub.OpAssignDouble, stub.OpAssignAny:
		return false, Value{}, f.execAssign(op)

	case stub.OpCompoundAssignAdd, stub.OpCompoundAssignSub, stub.OpCompoundAssignMul,
		stub.OpCompoundAssignDiv, stub.OpCompoundAssignMod,
		stub.OpCompoundAnd, stub.OpCompoundOr, stub.OpCompoundXor, stub.OpCompoundShl, stub.OpCompoundShr:
		return false, Value{}, f.execCompoundAssign(op)

	case stub.OpReturnLoad1, stub.OpReturnLoad2, stub.OpReturnLoad4, stub.OpReturnLoad8:
		v, cerr := f.evalExpr()
		if cerr != nil {
			return false, Value{}, cerr
		}
		w := returnWidth(op)
		return true, intVal(v.asInt(w), w), nil

	case stub.OpReturnDirect, stub.OpReturnAny:
		v, cerr := f.evalExpr()
		if cerr != nil {
			return false, Value{}, cerr
		}
		return true, v, nil

	case stub.OpContextFromValue, stub.OpContextFromRef:
		v, cerr := f.evalExpr()
		if cerr != nil {
			return false, Value{}, cerr
		}
		f.Active = v.Obj
		return false, Value{}, nil

	case stub.OpContextFromPtr, stub.OpContextFromPtrRef:
		return f.execContextFromPtr()

	default:
		if _, eerr := f.evalExprOp(op); eerr != nil {
			return false, Value{}, eerr
		}
		return false, Value{}, nil
	}
}

func returnWidth(op stub.OpKind) int {
	switch op {
	case stub.OpReturnLoad1:
		return 8
	case stub.OpReturnLoad2:
		return 16
	case stub.OpReturnLoad4:
		return 32
	default:
		return 64
	}
}

// execContextFromPtr implements spec §8 scenario 5: evaluate a
// pointer-producing expression, fault on null, and either unwind the frame
// or branch to the compiler-supplied fallback label depending on whether
// the host's fault handler claims the fault.
func (f *Frame) execContextFromPtr() (bool, Value, error) {
	target, hasFallback, jerr := f.readJumpDelta()
	if jerr != nil {
		return false, Value{}, jerr
	}
	v, cerr := f.evalExpr()
	if cerr != nil {
		return false, Value{}, cerr
	}
	if v.Obj == nil {
		handled := f.host.Fault(FaultNullDeref, f.loc())
		if handled {
			return true, Value{}, nil
		}
		if hasFallback {
			f.ip = target
			return false, Value{}, nil
		}
		return true, Value{}, nil
	}
	f.Active = v.Obj
	return false, Value{}, nil
}

func (f *Frame) addrForCtorDtor(op stub.OpKind) (addr, error) {
	off, _, err := f.readOffsetAndType()
	if err != nil {
		return addr{}, err
	}
	switch op {
	case stub.OpLocalCtor, stub.OpLocalDtor:
		return addr{kind: addrLocal, cell: f.localCell(uint32(off))}, nil
	case stub.OpContextCtor, stub.OpContextDtor:
		return addr{kind: addrContext, ctx: f.Active, offset: off}, nil
	default:
		return addr{kind: addrContextExternal, ctx: f.Active, offset: off}, nil
	}
}

func (f *Frame) execAssign(op stub.OpKind) error {
	ad, aerr := f.evalAddr()
	if aerr != nil {
		return aerr
	}
	v, verr := f.evalExpr()
	if verr != nil {
		return verr
	}
	if w, ok := assignWidth(op); ok {
		if op >= stub.OpAssignUint1 && op <= stub.OpAssignUint8 {
			v = uintVal(v.U, w)
		} else {
			v = intVal(v.asInt(w), w)
		}
	}
	return f.writeAddr(ad, v)
}

func assignWidth(op stub.OpKind) (int, bool) {
	switch op {
	case stub.OpAssignInt1, stub.OpAssignUint1:
		return 8, true
	case stub.OpAssignInt2, stub.OpAssignUint2:
		return 16, true
	case stub.OpAssignInt4, stub.OpAssignUint4:
		return 32, true
	case stub.OpAssignInt8, stub.OpAssignUint8:
		return 64, true
	default:
		return 0, false
	}
}

// execCompoundAssign covers both the Assignment-section compound
// arithmetic ops and the Bitwise-section compound ops. Neither carries a
// width operand, so they operate at a fixed 32-bit signed
// width -- the common case for script-level integer locals/properties.
func (f *Frame) execCompoundAssign(op stub.OpKind) error {
	ad, aerr := f.evalAddr()
	if aerr != nil {
		return aerr
	}
	cur, rerr := f.readAddr(ad)
	if rerr != nil {
		return rerr
	}
	rhs, verr := f.evalExpr()
	if verr != nil {
		return verr
	}

	const w = 32
	var result Value
	switch op {
	case stub.OpCompoundAssignAdd:
		result = intVal(cur.asInt(w)+rhs.asInt(w), w)
	case stub.OpCompoundAssignSub:
		result = intVal(cur.asInt(w)-rhs.asInt(w), w)
	case stub.OpCompoundAssignMul:
		result = intVal(cur.asInt(w)*rhs.asInt(w), w)
	case stub.OpCompoundAssignDiv:
		if rhs.asInt(w) == 0 {
			return f.divFault()
		}
		result = intVal(cur.asInt(w)/rhs.asInt(w), w)
	case stub.OpCompoundAssignMod:
		if rhs.asInt(w) == 0 {
			return f.divFault()
		}
		result = intVal(cur.asInt(w)%rhs.asInt(w), w)
	case stub.OpCompoundAnd:
		result = uintVal(cur.asUint(w)&rhs.asUint(w), w)
	case stub.OpCompoundOr:
		result = uintVal(cur.asUint(w)|rhs.asUint(w), w)
	case stub.OpCompoundXor:
		result = uintVal(cur.asUint(w)^rhs.asUint(w), w)
	case stub.OpCompoundShl:
		result = uintVal(cur.asUint(w)<<uint(rhs.asUint(w)&63), w)
	case stub.OpCompoundShr:
		result = uintVal(cur.asUint(w)>>uint(rhs.asUint(w)&63), w)
	}
	return f.writeAddr(ad, result)
}

func (f *Frame) divFault() error {
	handled := f.host.Fault(FaultDivByZero, f.loc())
	if handled {
		return nil
	}
	return fmt.Errorf("runtime fault: %s at %s", FaultDivByZero, f.loc())
}

// evalAddr reads the next opcode, which must be one of the address-
// producing variable/member/this opcodes, and resolves it to a storage
// location (spec §4.7 "Memory / variables").
func (f *Frame) evalAddr() (addr, error) {
	op, err := f.readOp()
	if err != nil {
		return addr{}, err
	}
	return f.evalAddrOp(op)
}

func (f *Frame) evalAddrOp(op stub.OpKind) (addr, error) {
	switch op {
	case stub.OpLocalVar:
		off, err := f.readOffset16()
		if err != nil {
			return addr{}, err
		}
		return addr{kind: addrLocal, cell: f.localCell(uint32(off))}, nil

	case stub.OpContextVar:
		off, err := f.readOffset16()
		if err != nil {
			return addr{}, err
		}
		return addr{kind: addrContext, ctx: f.Active, offset: off}, nil

	case stub.OpContextExternalVar:
		off, err := f.readOffset16()
		if err != nil {
			return addr{}, err
		}
		return addr{kind: addrContextExternal, ctx: f.Active, offset: off}, nil

	case stub.OpParamVar:
		off, err := f.readOffset16()
		if err != nil {
			return addr{}, err
		}
		return addr{kind: addrParam, offset: off}, nil

	case stub.OpStructMember, stub.OpStructMemberRef:
		off, err := f.readOffset16()
		if err != nil {
			return addr{}, err
		}
		owner, eerr := f.evalExpr()
		if eerr != nil {
			return addr{}, eerr
		}
		inst, ok := owner.Obj.(*structInstance)
		if !ok {
			return addr{}, fmt.Errorf("runtime fault: struct member access on non-struct value")
		}
		return addr{kind: addrStructMember, cell: inst.cell(off)}, nil

	case stub.OpThisObject, stub.OpThisStruct:
		return addr{kind: addrThis, ctx: f.Active}, nil

	default:
		return addr{}, fmt.Errorf("runtime fault: opcode %s is not an address", op)
	}
}

// evalExpr reads the next opcode and evaluates it as an expression.
func (f *Frame) evalExpr() (Value, error) {
	op, err := f.readOp()
	if err != nil {
		return Value{}, err
	}
	return f.evalExprOp(op)
}

// evalExprOp dispatches an already-decoded opcode as an expression,
// producing exactly one Value and consuming exactly its own operands plus
// however many child expressions its grammar position calls for.
func (f *Frame) evalExprOp(op stub.OpKind) (Value, error) {
	if isConversionOp(op) {
		return f.evalConvert(op)
	}
	if e, ok := arithTable[op]; ok {
		return f.evalArithOp(op, e)
	}
	if e, ok := bitTable[op]; ok {
		return f.evalBitOp(e)
	}
	if e, ok := cmpTable[op]; ok {
		a, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		b, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		return boolVal(evalCmp(e, a, b)), nil
	}

	switch op {
	case stub.OpNull:
		return Value{}, nil
	case stub.OpBoolTrue:
		return boolVal(true), nil
	case stub.OpBoolFalse:
		return boolVal(false), nil
	case stub.OpIntOne:
		return intVal(1, 32), nil
	case stub.OpIntZero:
		return intVal(0, 32), nil

	case stub.OpIntConst1:
		b, err := f.readU8()
		return intVal(int64(int8(b)), 8), err
	case stub.OpIntConst2:
		v, err := f.readU16()
		return intVal(int64(int16(v)), 16), err
	case stub.OpIntConst4:
		v, err := f.readU32()
		return intVal(int64(int32(v)), 32), err
	case stub.OpIntConst8:
		v, err := f.readU64()
		return intVal(int64(v), 64), err
	case stub.OpUintConst1:
		b, err := f.readU8()
		return uintVal(uint64(b), 8), err
	case stub.OpUintConst2:
		v, err := f.readU16()
		return uintVal(uint64(v), 16), err
	case stub.OpUintConst4:
		v, err := f.readU32()
		return uintVal(uint64(v), 32), err
	case stub.OpUintConst8:
		v, err := f.readU64()
		return uintVal(v, 64), err
	case stub.OpFloatConst:
		v, err := f.readF64()
		return floatVal(v, false), err
	case stub.OpDoubleConst:
		v, err := f.readF64()
		return floatVal(v, true), err
	case stub.OpNameConst, stub.OpStringConst:
		s, err := f.readLenPrefixed()
		return Value{Str: s}, err
	case stub.OpEnumConst:
		id, member, err := f.readClassIDAndMembers()
		return Value{Obj: enumTag{id: id, value: int64(member)}}, err
	case stub.OpClassConst:
		id, err := f.readClassID()
		return Value{U: uint64(id)}, err

	case stub.OpPreIncrement, stub.OpPostIncrement, stub.OpPreDecrement, stub.OpPostDecrement:
		return f.evalIncDec(op)

	case stub.OpLogicNot:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		return boolVal(!v.asBool()), nil
	case stub.OpLogicXor:
		a, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		b, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		return boolVal(a.asBool() != b.asBool()), nil
	case stub.OpLogicAnd, stub.OpLogicOr:
		return f.evalShortCircuit(op)

	case stub.OpTestEqualGeneric, stub.OpTestNotEqualGeneric:
		// Unresolved at build time (specialize() could not determine the
		// bound type's traits); fall back to raw bit equality.
		a, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		b, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		eq := a.U == b.U && a.F == b.F && a.Str == b.Str && a.Obj == b.Obj
		if op == stub.OpTestNotEqualGeneric {
			eq = !eq
		}
		return boolVal(eq), nil

	case stub.OpLocalVar, stub.OpContextVar, stub.OpContextExternalVar, stub.OpParamVar,
		stub.OpStructMember, stub.OpStructMemberRef, stub.OpThisObject, stub.OpThisStruct:
		ad, err := f.evalAddrOp(op)
		if err != nil {
			return Value{}, err
		}
		return f.readAddr(ad)

	case stub.OpLoadInt1, stub.OpLoadInt2, stub.OpLoadInt4, stub.OpLoadInt8,
		stub.OpLoadUint1, stub.OpLoadUint2, stub.OpLoadUint4, stub.OpLoadUint8,
		stub.OpLoadFloat, stub.OpLoadDouble, stub.OpLoadStrongPtr, stub.OpLoadWeakPtr, stub.OpLoadAny:
		return f.evalLoad(op)

	case stub.OpNew:
		id, err := f.readClassID()
		if err != nil {
			return Value{}, err
		}
		obj, nerr := f.host.New(id)
		if nerr != nil {
			return Value{}, nerr
		}
		return Value{Obj: obj}, nil

	case stub.OpConstructor:
		return f.evalConstructor()

	case stub.OpDynamicCast, stub.OpDynamicWeakCast:
		id, err := f.readClassID()
		if err != nil {
			return Value{}, err
		}
		v, verr := f.evalExpr()
		if verr != nil {
			return Value{}, verr
		}
		var obj Object
		var ok bool
		if op == stub.OpDynamicCast {
			obj, ok = f.host.DynamicCast(id, v.Obj)
		} else {
			obj, ok = f.host.DynamicWeakCast(id, v.Obj)
		}
		if !ok {
			return Value{}, nil
		}
		return Value{Obj: obj}, nil

	case stub.OpMetaCast:
		id, err := f.readClassID()
		if err != nil {
			return Value{}, err
		}
		v, verr := f.evalExpr()
		if verr != nil {
			return Value{}, verr
		}
		obj, ok := f.host.MetaCast(id, v.Obj)
		if !ok {
			handled := f.host.Fault(FaultBadCast, f.loc())
			if handled {
				return Value{}, nil
			}
			return Value{}, fmt.Errorf("runtime fault: %s at %s", FaultBadCast, f.loc())
		}
		return Value{Obj: obj}, nil

	case stub.OpStaticFunc, stub.OpFinalFunc, stub.OpVirtualFunc, stub.OpInternalFunc:
		return f.evalCall(op)

	default:
		return Value{}, fmt.Errorf("runtime fault: unhandled opcode %s", op)
	}
}

func (f *Frame) evalArithOp(op stub.OpKind, e arithEntry) (Value, error) {
	switch e.kind {
	case arNeg, arAbs, arSign:
		a, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		return evalArith(e, a, Value{}), nil
	case arClamp:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		lo, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		hi, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		return evalClamp(e, v, lo, hi), nil
	default:
		a, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		b, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		if isDivZero(e, b) {
			handled := f.host.Fault(FaultDivByZero, f.loc())
			if handled {
				return Value{}, nil
			}
			return Value{}, fmt.Errorf("runtime fault: %s at %s", FaultDivByZero, f.loc())
		}
		return evalArith(e, a, b), nil
	}
}

func (f *Frame) evalBitOp(e struct {
	width int
	kind  bitKind
}) (Value, error) {
	a, err := f.evalExpr()
	if err != nil {
		return Value{}, err
	}
	if e.kind == biNot {
		return evalBit(e, a, Value{}), nil
	}
	b, err := f.evalExpr()
	if err != nil {
		return Value{}, err
	}
	return evalBit(e, a, b), nil
}

func (f *Frame) evalShortCircuit(op stub.OpKind) (Value, error) {
	target, _, err := f.readJumpDelta()
	if err != nil {
		return Value{}, err
	}
	left, lerr := f.evalExpr()
	if lerr != nil {
		return Value{}, lerr
	}
	short := (op == stub.OpLogicAnd && !left.asBool()) || (op == stub.OpLogicOr && left.asBool())
	if short {
		f.ip = target
		return boolVal(left.asBool()), nil
	}
	right, rerr := f.evalExpr()
	if rerr != nil {
		return Value{}, rerr
	}
	return boolVal(right.asBool()), nil
}

func (f *Frame) evalIncDec(op stub.OpKind) (Value, error) {
	ad, err := f.evalAddr()
	if err != nil {
		return Value{}, err
	}
	cur, rerr := f.readAddr(ad)
	if rerr != nil {
		return Value{}, rerr
	}
	const w = 32
	delta := int64(1)
	if op == stub.OpPreDecrement || op == stub.OpPostDecrement {
		delta = -1
	}
	updated := intVal(cur.asInt(w)+delta, w)
	if werr := f.writeAddr(ad, updated); werr != nil {
		return Value{}, werr
	}
	if op == stub.OpPreIncrement || op == stub.OpPreDecrement {
		return updated, nil
	}
	return intVal(cur.asInt(w), w), nil
}

// evalConstructor builds a by-value compound instance in declaration order
// (spec §4.7 "Object lifecycle" -- Constructor). Unlike New, this never
// touches the Host: the result lives entirely in the interpreter, the same
// adaptation structInstance documents for struct-valued locals.
func (f *Frame) evalConstructor() (Value, error) {
	_, memberCount, err := f.readClassIDAndMembers()
	if err != nil {
		return Value{}, err
	}
	inst := newStructInstance()
	for i := 0; i < int(memberCount); i++ {
		v, verr := f.evalExpr()
		if verr != nil {
			return Value{}, verr
		}
		*inst.cell(uint16(i)) = v
	}
	return Value{Obj: inst}, nil
}

func (f *Frame) evalLoad(op stub.OpKind) (Value, error) {
	ad, err := f.evalAddr()
	if err != nil {
		return Value{}, err
	}
	v, rerr := f.readAddr(ad)
	if rerr != nil {
		return Value{}, rerr
	}
	switch op {
	case stub.OpLoadInt1:
		return intVal(v.asInt(8), 8), nil
	case stub.OpLoadInt2:
		return intVal(v.asInt(16), 16), nil
	case stub.OpLoadInt4:
		return intVal(v.asInt(32), 32), nil
	case stub.OpLoadInt8:
		return intVal(v.asInt(64), 64), nil
	case stub.OpLoadUint1:
		return uintVal(v.asUint(8), 8), nil
	case stub.OpLoadUint2:
		return uintVal(v.asUint(16), 16), nil
	case stub.OpLoadUint4:
		return uintVal(v.asUint(32), 32), nil
	case stub.OpLoadUint8:
		return uintVal(v.asUint(64), 64), nil
	default:
		// LoadFloat/LoadDouble/LoadStrongPtr/LoadWeakPtr/LoadAny: the cell
		// already carries the right representation (F or Obj); nothing to
		// mask.
		return v, nil
	}
}

func (f *Frame) evalCall(op stub.OpKind) (Value, error) {
	fid, encs, err := f.readFunctionCall()
	if err != nil {
		return Value{}, err
	}
	var self Object
	if op != stub.OpStaticFunc {
		selfVal, serr := f.evalExpr()
		if serr != nil {
			return Value{}, serr
		}
		self = selfVal.Obj
	}
	args := make([]Value, len(encs))
	for i, enc := range encs {
		if enc == codeblock.CallRef {
			ad, aerr := f.evalAddr()
			if aerr != nil {
				return Value{}, aerr
			}
			v, rerr := f.readAddr(ad)
			if rerr != nil {
				return Value{}, rerr
			}
			args[i] = v
			continue
		}
		v, verr := f.evalExpr()
		if verr != nil {
			return Value{}, verr
		}
		args[i] = v
	}
	if op == stub.OpVirtualFunc {
		return f.host.VirtualCall(fid, self, args)
	}
	return f.host.Call(fid, self, args)
}
