package aot

import (
	"fmt"

	"github.com/kestrelengine/scriptcore/internal/stub"
)

// emitConvert mirrors interp/convert.go's evalConvert, emitting the
// equivalent C cast/helper-call text for each opcode in the Conversions
// family instead of evaluating it.
func (t *translator) emitConvert(op stub.OpKind) (string, error) {
	switch op {
	case stub.OpPassthrough:
		return t.emitExpr()

	case stub.OpExpandSigned8To16, stub.OpExpandSigned8To32, stub.OpExpandSigned8To64,
		stub.OpExpandSigned16To32, stub.OpExpandSigned16To64, stub.OpExpandSigned32To64:
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		_, to := expandWidths(op)
		return fmt.Sprintf("((%s)(%s))", cType(to, false), v), nil

	case stub.OpExpandUnsigned8To16, stub.OpExpandUnsigned8To32, stub.OpExpandUnsigned8To64,
		stub.OpExpandUnsigned16To32, stub.OpExpandUnsigned16To64, stub.OpExpandUnsigned32To64:
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		_, to := expandWidths(op)
		return fmt.Sprintf("((u%s)(%s))", cType(to, false), v), nil

	case stub.OpContract64To32, stub.OpContract64To16, stub.OpContract64To8,
		stub.OpContract32To16, stub.OpContract32To8, stub.OpContract16To8:
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		_, to := contractWidths(op)
		return fmt.Sprintf("((%s)(%s))", cType(to, false), v), nil

	case stub.OpFloatToInt8, stub.OpFloatToInt16, stub.OpFloatToInt32, stub.OpFloatToInt64,
		stub.OpFloatToUint8, stub.OpFloatToUint16, stub.OpFloatToUint32, stub.OpFloatToUint64:
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		w := floatToIntWidth(op)
		ty := cType(w, false)
		if isUnsignedFloatConv(op) {
			ty = "u" + ty
		}
		return fmt.Sprintf("((%s)(%s))", ty, v), nil

	case stub.OpIntToFloat8, stub.OpIntToFloat16, stub.OpIntToFloat32, stub.OpIntToFloat64,
		stub.OpUintToFloat8, stub.OpUintToFloat16, stub.OpUintToFloat32, stub.OpUintToFloat64:
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		w := intToFloatWidth(op)
		return fmt.Sprintf("((%s)(%s))", cType(w, true), v), nil

	case stub.OpFloatToDouble:
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("((double)(%s))", v), nil

	case stub.OpDoubleToFloat:
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("((float)(%s))", v), nil

	case stub.OpNumberToBool8, stub.OpNumberToBool16, stub.OpNumberToBool32, stub.OpNumberToBool64,
		stub.OpFloatToBool, stub.OpDoubleToBool, stub.OpStrongToBool:
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("((%s) != 0)", v), nil

	case stub.OpNameToBool:
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(sc_rt_strlen(%s) != 0)", v), nil

	case stub.OpClassToBool:
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("sc_rt_class_to_bool(rt, %s)", v), nil

	case stub.OpClassToName:
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("sc_rt_class_to_name(rt, %s)", v), nil

	case stub.OpClassToString:
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("sc_rt_class_to_string(rt, %s)", v), nil

	case stub.OpWeakToStrong:
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("sc_rt_weak_to_strong(rt, %s)", v), nil

	case stub.OpWeakToBool:
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(sc_rt_weak_to_strong(rt, %s) != NULL)", v), nil

	case stub.OpStrongToWeak:
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("sc_rt_strong_to_weak(rt, %s)", v), nil

	case stub.OpEnumToInt32, stub.OpEnumToInt64:
		// Reached only when codeblock's build-time specialization could not
		// resolve the enum width; degrade to a width-preserving passthrough
		// rather than guessing, same fallback interp.convert.go takes.
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		w := 32
		if op == stub.OpEnumToInt64 {
			w = 64
		}
		return fmt.Sprintf("((%s)(%s))", cType(w, false), v), nil

	case stub.OpInt32ToEnum, stub.OpInt64ToEnum:
		return t.emitExpr()

	case stub.OpEnumToName, stub.OpEnumToString:
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("sc_rt_enum_name(rt, %s)", v), nil

	case stub.OpNameToEnum:
		return t.emitExpr()

	default:
		return "", fmt.Errorf("aot: unhandled conversion opcode %s", op)
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
