package interp

import "github.com/kestrelengine/scriptcore/internal/stub"

// enumTag rides along in a Value's Obj field for a value produced by
// EnumConst, carrying the host enum id forward to EnumToName/NameToEnum.
// Generic Int<->Enum conversions never need this: the builder's
// specialize() pass (codeblock/builder.go) already rewrites
// Int32ToEnum/EnumToInt32/Int64ToEnum/EnumToInt64 into plain width
// Expand/Contract opcodes once the enum's storage width is known, so the
// interpreter only ever sees those generic opcodes on the rare path where
// specialization could not resolve the enum (handled as a same-width
// passthrough below).
type enumTag struct {
	id    uint32
	value int64
}

// evalConvert handles every opcode in the spec §4.7 "Conversions" family.
// All of them read exactly one child expression and produce one Value.
func (f *Frame) evalConvert(op stub.OpKind) (Value, error) {
	switch op {
	case stub.OpPassthrough:
		return f.evalExpr()

	// Sign/zero extension: reinterpret the low `from` bits, re-store as
	// `to` (storage itself is already width-agnostic uint64, so these are
	// pure sign/zero-extend-then-mask operations).
	case stub.OpExpandSigned8To16, stub.OpExpandSigned8To32, stub.OpExpandSigned8To64,
		stub.OpExpandSigned16To32, stub.OpExpandSigned16To64, stub.OpExpandSigned32To64:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		from, to := expandWidths(op)
		return intVal(v.asInt(from), to), nil

	case stub.OpExpandUnsigned8To16, stub.OpExpandUnsigned8To32, stub.OpExpandUnsigned8To64,
		stub.OpExpandUnsigned16To32, stub.OpExpandUnsigned16To64, stub.OpExpandUnsigned32To64:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		from, to := expandWidths(op)
		return uintVal(v.asUint(from), to), nil

	case stub.OpContract64To32, stub.OpContract64To16, stub.OpContract64To8,
		stub.OpContract32To16, stub.OpContract32To8, stub.OpContract16To8:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		_, to := contractWidths(op)
		return uintVal(v.U, to), nil

	case stub.OpFloatToInt8, stub.OpFloatToInt16, stub.OpFloatToInt32, stub.OpFloatToInt64,
		stub.OpFloatToUint8, stub.OpFloatToUint16, stub.OpFloatToUint32, stub.OpFloatToUint64:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		w := floatToIntWidth(op)
		if isUnsignedFloatConv(op) {
			return uintVal(uint64(v.F), w), nil
		}
		return intVal(int64(v.F), w), nil

	case stub.OpIntToFloat8, stub.OpIntToFloat16, stub.OpIntToFloat32, stub.OpIntToFloat64,
		stub.OpUintToFloat8, stub.OpUintToFloat16, stub.OpUintToFloat32, stub.OpUintToFloat64:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		w := intToFloatWidth(op)
		if isUnsignedIntConv(op) {
			return floatVal(float64(v.asUint(w)), false), nil
		}
		return floatVal(float64(v.asInt(w)), false), nil

	case stub.OpFloatToDouble:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		return floatVal(v.F, true), nil

	case stub.OpDoubleToFloat:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		return floatVal(v.F, false), nil

	case stub.OpNumberToBool8, stub.OpNumberToBool16, stub.OpNumberToBool32, stub.OpNumberToBool64:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		return boolVal(v.U != 0), nil

	case stub.OpFloatToBool, stub.OpDoubleToBool:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		return boolVal(v.F != 0), nil

	case stub.OpNameToBool:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		return boolVal(v.Str != ""), nil

	case stub.OpClassToBool:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		if v.Obj == nil {
			return boolVal(false), nil
		}
		return boolVal(f.host.ClassToBool(v.Obj)), nil

	case stub.OpClassToName, stub.OpClassToString:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		if v.Obj == nil {
			return Value{}, nil
		}
		if op == stub.OpClassToName {
			return Value{Str: f.host.ClassToName(v.Obj)}, nil
		}
		return Value{Str: f.host.ClassToString(v.Obj)}, nil

	case stub.OpWeakToStrong:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		obj, _ := f.host.WeakToStrong(v.Obj)
		return Value{Obj: obj}, nil

	case stub.OpWeakToBool:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		_, ok := f.host.WeakToStrong(v.Obj)
		return boolVal(ok), nil

	case stub.OpStrongToWeak:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		return Value{Obj: f.host.StrongToWeak(v.Obj)}, nil

	case stub.OpStrongToBool:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		return boolVal(v.Obj != nil), nil

	case stub.OpEnumToInt32, stub.OpEnumToInt64:
		// Reached only when build-time specialization (codeblock/builder.go
		// specialize()) could not resolve the enum's width; fall back to a
		// width-preserving passthrough rather than guessing.
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		w := 32
		if op == stub.OpEnumToInt64 {
			w = 64
		}
		return intVal(v.asInt(w), w), nil

	case stub.OpInt32ToEnum, stub.OpInt64ToEnum:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		return v, nil

	case stub.OpEnumToName, stub.OpEnumToString:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		tag, ok := v.Obj.(enumTag)
		if !ok {
			return Value{}, nil
		}
		name, _ := f.host.EnumName(tag.id, tag.value)
		return Value{Str: name}, nil

	case stub.OpNameToEnum:
		v, err := f.evalExpr()
		if err != nil {
			return Value{}, err
		}
		return Value{Str: v.Str}, nil

	default:
		return Value{}, nil
	}
}

func expandWidths(op stub.OpKind) (from, to int) {
	switch op {
	case stub.OpExpandSigned8To16, stub.OpExpandUnsigned8To16:
		return 8, 16
	case stub.OpExpandSigned8To32, stub.OpExpandUnsigned8To32:
		return 8, 32
	case stub.OpExpandSigned8To64, stub.OpExpandUnsigned8To64:
		return 8, 64
	case stub.OpExpandSigned16To32, stub.OpExpandUnsigned16To32:
		return 16, 32
	case stub.OpExpandSigned16To64, stub.OpExpandUnsigned16To64:
		return 16, 64
	case stub.OpExpandSigned32To64, stub.OpExpandUnsigned32To64:
		return 32, 64
	default:
		return 0, 0
	}
}

func contractWidths(op stub.OpKind) (from, to int) {
	switch op {
	case stub.OpContract64To32:
		return 64, 32
	case stub.OpContract64To16:
		return 64, 16
	case stub.OpContract64To8:
		return 64, 8
	case stub.OpContract32To16:
		return 32, 16
	case stub.OpContract32To8:
		return 32, 8
	case stub.OpContract16To8:
		return 16, 8
	default:
		return 0, 0
	}
}

func floatToIntWidth(op stub.OpKind) int {
	switch op {
	case stub.OpFloatToInt8, stub.OpFloatToUint8:
		return 8
	case stub.OpFloatToInt16, stub.OpFloatToUint16:
		return 16
	case stub.OpFloatToInt32, stub.OpFloatToUint32:
		return 32
	default:
		return 64
	}
}

func isUnsignedFloatConv(op stub.OpKind) bool {
	switch op {
	case stub.OpFloatToUint8, stub.OpFloatToUint16, stub.OpFloatToUint32, stub.OpFloatToUint64:
		return true
	default:
		return false
	}
}

func intToFloatWidth(op stub.OpKind) int {
	switch op {
	case stub.OpIntToFloat8, stub.OpUintToFloat8:
		return 8
	case stub.OpIntToFloat16, stub.OpUintToFloat16:
		return 16
	case stub.OpIntToFloat32, stub.OpUintToFloat32:
		return 32
	default:
		return 64
	}
}

func isUnsignedIntConv(op stub.OpKind) bool {
	switch op {
	case stub.OpUintToFloat8, stub.OpUintToFloat16, stub.OpUintToFloat32, stub.OpUintToFloat64:
		return true
	default:
		return false
	}
}

func isConversionOp(op stub.OpKind) bool {
	switch op {
	case stub.OpExpandSigned8To16, stub.OpExpandSigned8To32, stub.OpExpandSigned8To64,
		stub.OpExpandSigned16To32, stub.OpExpandSigned16To64, stub.OpExpandSigned32To64,
		stub.OpExpandUnsigned8To16, stub.OpExpandUnsigned8To32, stub.OpExpandUnsigned8To64,
		stub.OpExpandUnsigned16To32, stub.OpExpandUnsigned16To64, stub.OpExpandUnsigned32To64,
		stub.OpContract64To32, stub.OpContract64To16, stub.OpContract64To8,
		stub.OpContract32To16, stub.OpContract32To8, stub.OpContract16To8,
		stub.OpFloatToInt8, stub.OpFloatToInt16, stub.OpFloatToInt32, stub.OpFloatToInt64,
		stub.OpFloatToUint8, stub.OpFloatToUint16, stub.OpFloatToUint32, stub.OpFloatToUint64,
		stub.OpIntToFloat8, stub.OpIntToFloat16, stub.OpIntToFloat32, stub.OpIntToFloat64,
		stub.OpUintToFloat8, stub.OpUintToFloat16, stub.OpUintToFloat32, stub.OpUintToFloat64,
		stub.OpFloatToDouble, stub.OpDoubleToFloat,
		stub.OpNumberToBool8, stub.OpNumberToBool16, stub.OpNumberToBool32, stub.OpNumberToBool64,
		stub.OpFloatToBool, stub.OpDoubleToBool, stub.OpNameToBool,
		stub.OpClassToBool, stub.OpClassToName, stub.OpClassToString,
		stub.OpWeakToStrong, stub.OpWeakToBool, stub.OpStrongToWeak, stub.OpStrongToBool,
		stub.OpEnumToInt32, stub.OpEnumToInt64, stub.OpEnumToName, stub.OpEnumToString,
		stub.OpInt32ToEnum, stub.OpInt64ToEnum, stub.OpNameToEnum, stub.OpPassthrough:
		return true
	default:
		return false
	}
}
