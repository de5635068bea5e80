package interp

import (
	"math"

	"github.com/kestrelengine/scriptcore/internal/stub"
)

type arithKind byte

const (
	arAdd arithKind = iota
	arSub
	arMul
	arDiv
	arMod
	arNeg
	arMin
	arMax
	arClamp
	arAbs
	arSign
)

type arithEntry struct {
	width   int
	signed  bool
	isFloat bool
	kind    arithKind
}

// arithTable maps every Arithmetic-section OpKind (spec §4.7) to its
// width/signedness/operation, so evalExpr's arithmetic case is one lookup
// plus one small typed computation instead of one case per opcode.
var arithTable = map[stub.OpKind]arithEntry{
	stub.OpAddInt8: {8, true, false, arAdd}, stub.OpAddUint8: {8, false, false, arAdd},
	stub.OpAddInt16: {16, true, false, arAdd}, stub.OpAddUint16: {16, false, false, arAdd},
	stub.OpAddInt32: {32, true, false, arAdd}, stub.OpAddUint32: {32, false, false, arAdd},
	stub.OpAddInt64: {64, true, false, arAdd}, stub.OpAddUint64: {64, false, false, arAdd},
	stub.OpAddFloat: {32, true, true, arAdd}, stub.OpAddDouble: {64, true, true, arAdd},

	stub.OpSubInt8: {8, true, false, arSub}, stub.OpSubUint8: {8, false, false, arSub},
	stub.OpSubInt16: {16, true, false, arSub}, stub.OpSubUint16: {16, false, false, arSub},
	stub.OpSubInt32: {32, true, false, arSub}, stub.OpSubUint32: {32, false, false, arSub},
	stub.OpSubInt64: {64, true, false, arSub}, stub.OpSubUint64: {64, false, false, arSub},
	stub.OpSubFloat: {32, true, true, arSub}, stub.OpSubDouble: {64, true, true, arSub},

	stub.OpMulInt8: {8, true, false, arMul}, stub.OpMulUint8: {8, false, false, arMul},
	stub.OpMulInt16: {16, true, false, arMul}, stub.OpMulUint16: {16, false, false, arMul},
	stub.OpMulInt32: {32, true, false, arMul}, stub.OpMulUint32: {32, false, false, arMul},
	stub.OpMulInt64: {64, true, false, arMul}, stub.OpMulUint64: {64, false, false, arMul},
	stub.OpMulFloat: {32, true, true, arMul}, stub.OpMulDouble: {64, true, true, arMul},

	stub.OpDivInt8: {8, true, false, arDiv}, stub.OpDivUint8: {8, false, false, arDiv},
	stub.OpDivInt16: {16, true, false, arDiv}, stub.OpDivUint16: {16, false, false, arDiv},
	stub.OpDivInt32: {32, true, false, arDiv}, stub.OpDivUint32: {32, false, false, arDiv},
	stub.OpDivInt64: {64, true, false, arDiv}, stub.OpDivUint64: {64, false, false, arDiv},
	stub.OpDivFloat: {32, true, true, arDiv}, stub.OpDivDouble: {64, true, true, arDiv},

	stub.OpModInt8: {8, true, false, arMod}, stub.OpModUint8: {8, false, false, arMod},
	stub.OpModInt16: {16, true, false, arMod}, stub.OpModUint16: {16, false, false, arMod},
	stub.OpModInt32: {32, true, false, arMod}, stub.OpModUint32: {32, false, false, arMod},
	stub.OpModInt64: {64, true, false, arMod}, stub.OpModUint64: {64, false, false, arMod},

	stub.OpNegInt8: {8, true, false, arNeg}, stub.OpNegInt16: {16, true, false, arNeg},
	stub.OpNegInt32: {32, true, false, arNeg}, stub.OpNegInt64: {64, true, false, arNeg},
	stub.OpNegFloat: {32, true, true, arNeg}, stub.OpNegDouble: {64, true, true, arNeg},

	stub.OpMinInt32: {32, true, false, arMin}, stub.OpMaxInt32: {32, true, false, arMax},
	stub.OpClampInt32: {32, true, false, arClamp}, stub.OpAbsInt32: {32, true, false, arAbs},
	stub.OpSignInt32: {32, true, false, arSign},
}

type bitKind byte

const (
	biAnd bitKind = iota
	biOr
	biXor
	biNot
	biShl
	biShr
	biSar
)

var bitTable = map[stub.OpKind]struct {
	width int
	kind  bitKind
}{
	stub.OpAnd8: {8, biAnd}, stub.OpAnd16: {16, biAnd}, stub.OpAnd32: {32, biAnd}, stub.OpAnd64: {64, biAnd},
	stub.OpOr8: {8, biOr}, stub.OpOr16: {16, biOr}, stub.OpOr32: {32, biOr}, stub.OpOr64: {64, biOr},
	stub.OpXor8: {8, biXor}, stub.OpXor16: {16, biXor}, stub.OpXor32: {32, biXor}, stub.OpXor64: {64, biXor},
	stub.OpNot8: {8, biNot}, stub.OpNot16: {16, biNot}, stub.OpNot32: {32, biNot}, stub.OpNot64: {64, biNot},
	stub.OpShl8: {8, biShl}, stub.OpShl16: {16, biShl}, stub.OpShl32: {32, biShl}, stub.OpShl64: {64, biShl},
	stub.OpShr8: {8, biShr}, stub.OpShr16: {16, biShr}, stub.OpShr32: {32, biShr}, stub.OpShr64: {64, biShr},
	stub.OpSar8: {8, biSar}, stub.OpSar16: {16, biSar}, stub.OpSar32: {32, biSar}, stub.OpSar64: {64, biSar},
}

type cmpKind byte

const (
	cmpEq cmpKind = iota
	cmpNe
	cmpLt
	cmpLe
	cmpGt
	cmpGe
)

type cmpEntry struct {
	width   int
	signed  bool
	isFloat bool
	kind    cmpKind
}

var cmpTable = map[stub.OpKind]cmpEntry{
	stub.OpTestEqual1: {8, false, false, cmpEq}, stub.OpTestNotEqual1: {8, false, false, cmpNe},
	stub.OpTestEqual2: {16, false, false, cmpEq}, stub.OpTestNotEqual2: {16, false, false, cmpNe},
	stub.OpTestEqual4: {32, false, false, cmpEq}, stub.OpTestNotEqual4: {32, false, false, cmpNe},
	stub.OpTestEqual8: {64, false, false, cmpEq}, stub.OpTestNotEqual8: {64, false, false, cmpNe},

	stub.OpTestSignedLess8: {8, true, false, cmpLt}, stub.OpTestSignedLessEq8: {8, true, false, cmpLe},
	stub.OpTestSignedGreater8: {8, true, false, cmpGt}, stub.OpTestSignedGreaterEq8: {8, true, false, cmpGe},
	stub.OpTestSignedLess16: {16, true, false, cmpLt}, stub.OpTestSignedLessEq16: {16, true, false, cmpLe},
	stub.OpTestSignedGreater16: {16, true, false, cmpGt}, stub.OpTestSignedGreaterEq16: {16, true, false, cmpGe},
	stub.OpTestSignedLess32: {32, true, false, cmpLt}, stub.OpTestSignedLessEq32: {32, true, false, cmpLe},
	stub.OpTestSignedGreater32: {32, true, false, cmpGt}, stub.OpTestSignedGreaterEq32: {32, true, false, cmpGe},
	stub.OpTestSignedLess64: {64, true, false, cmpLt}, stub.OpTestSignedLessEq64: {64, true, false, cmpLe},
	stub.OpTestSignedGreater64: {64, true, false, cmpGt}, stub.OpTestSignedGreaterEq64: {64, true, false, cmpGe},

	stub.OpTestUnsignedLess8: {8, false, false, cmpLt}, stub.OpTestUnsignedLessEq8: {8, false, false, cmpLe},
	stub.OpTestUnsignedGreater8: {8, false, false, cmpGt}, stub.OpTestUnsignedGreaterEq8: {8, false, false, cmpGe},
	stub.OpTestUnsignedLess16: {16, false, false, cmpLt}, stub.OpTestUnsignedLessEq16: {16, false, false, cmpLe},
	stub.OpTestUnsignedGreater16: {16, false, false, cmpGt}, stub.OpTestUnsignedGreaterEq16: {16, false, false, cmpGe},
	stub.OpTestUnsignedLess32: {32, false, false, cmpLt}, stub.OpTestUnsignedLessEq32: {32, false, false, cmpLe},
	stub.OpTestUnsignedGreater32: {32, false, false, cmpGt}, stub.OpTestUnsignedGreaterEq32: {32, false, false, cmpGe},
	stub.OpTestUnsignedLess64: {64, false, false, cmpLt}, stub.OpTestUnsignedLessEq64: {64, false, false, cmpLe},
	stub.OpTestUnsignedGreater64: {64, false, false, cmpGt}, stub.OpTestUnsignedGreaterEq64: {64, false, false, cmpGe},

	stub.OpTestFloat4Less: {32, true, true, cmpLt}, stub.OpTestFloat4LessEq: {32, true, true, cmpLe},
	stub.OpTestFloat4Greater: {32, true, true, cmpGt}, stub.OpTestFloat4GreaterEq: {32, true, true, cmpGe},
	stub.OpTestFloat4Equal: {32, true, true, cmpEq}, stub.OpTestFloat4NotEqual: {32, true, true, cmpNe},
	stub.OpTestFloat8Less: {64, true, true, cmpLt}, stub.OpTestFloat8LessEq: {64, true, true, cmpLe},
	stub.OpTestFloat8Greater: {64, true, true, cmpGt}, stub.OpTestFloat8GreaterEq: {64, true, true, cmpGe},
	stub.OpTestFloat8Equal: {64, true, true, cmpEq}, stub.OpTestFloat8NotEqual: {64, true, true, cmpNe},
}

func evalArith(e arithEntry, a, b Value) Value {
	if e.isFloat {
		var x, y float64 = a.F, b.F
		switch e.kind {
		case arAdd:
			return floatVal(x+y, e.width == 64)
		case arSub:
			return floatVal(x-y, e.width == 64)
		case arMul:
			return floatVal(x*y, e.width == 64)
		case arDiv:
			return floatVal(x/y, e.width == 64)
		case arNeg:
			return floatVal(-x, e.width == 64)
		}
		return Value{}
	}
	if e.signed {
		x, y := a.asInt(e.width), b.asInt(e.width)
		switch e.kind {
		case arAdd:
			return intVal(x+y, e.width)
		case arSub:
			return intVal(x-y, e.width)
		case arMul:
			return intVal(x*y, e.width)
		case arDiv:
			if y == 0 {
				return Value{}
			}
			return intVal(x/y, e.width)
		case arMod:
			if y == 0 {
				return Value{}
			}
			return intVal(x%y, e.width)
		case arNeg:
			return intVal(-x, e.width)
		case arMin:
			if x < y {
				return intVal(x, e.width)
			}
			return intVal(y, e.width)
		case arMax:
			if x > y {
				return intVal(x, e.width)
			}
			return intVal(y, e.width)
		case arAbs:
			if x < 0 {
				return intVal(-x, e.width)
			}
			return intVal(x, e.width)
		case arSign:
			switch {
			case x > 0:
				return intVal(1, e.width)
			case x < 0:
				return intVal(-1, e.width)
			default:
				return intVal(0, e.width)
			}
		}
		return Value{}
	}
	x, y := a.asUint(e.width), b.asUint(e.width)
	switch e.kind {
	case arAdd:
		return uintVal(x+y, e.width)
	case arSub:
		return uintVal(x-y, e.width)
	case arMul:
		return uintVal(x*y, e.width)
	case arDiv:
		if y == 0 {
			return Value{}
		}
		return uintVal(x/y, e.width)
	case arMod:
		if y == 0 {
			return Value{}
		}
		return uintVal(x%y, e.width)
	}
	return Value{}
}

// isDivZero reports whether a div/mod by zero would occur, so the
// caller can raise FaultDivByZero before evalArith silently returns zero.
func isDivZero(e arithEntry, b Value) bool {
	if e.kind != arDiv && e.kind != arMod {
		return false
	}
	if e.isFloat {
		return false // IEEE 754 defines Inf/NaN, no fault
	}
	if e.signed {
		return b.asInt(e.width) == 0
	}
	return b.asUint(e.width) == 0
}

func evalClamp(e arithEntry, v, lo, hi Value) Value {
	x, lov, hiv := v.asInt(e.width), lo.asInt(e.width), hi.asInt(e.width)
	if x < lov {
		x = lov
	}
	if x > hiv {
		x = hiv
	}
	return intVal(x, e.width)
}

func evalBit(e struct {
	width int
	kind  bitKind
}, a, b Value) Value {
	x, y := a.asUint(e.width), b.asUint(e.width)
	switch e.kind {
	case biAnd:
		return uintVal(x&y, e.width)
	case biOr:
		return uintVal(x|y, e.width)
	case biXor:
		return uintVal(x^y, e.width)
	case biNot:
		return uintVal(^x, e.width)
	case biShl:
		return uintVal(x<<uint(y&63), e.width)
	case biShr:
		return uintVal(x>>uint(y&63), e.width)
	case biSar:
		return intVal(a.asInt(e.width)>>uint(y&63), e.width)
	}
	return Value{}
}

func evalCmp(e cmpEntry, a, b Value) bool {
	if e.isFloat {
		x, y := a.F, b.F
		switch e.kind {
		case cmpEq:
			return x == y
		case cmpNe:
			return x != y
		case cmpLt:
			return x < y
		case cmpLe:
			return x <= y
		case cmpGt:
			return x > y
		case cmpGe:
			return x >= y
		}
		return false
	}
	if e.signed {
		x, y := a.asInt(e.width), b.asInt(e.width)
		switch e.kind {
		case cmpLt:
			return x < y
		case cmpLe:
			return x <= y
		case cmpGt:
			return x > y
		case cmpGe:
			return x >= y
		}
	}
	x, y := a.asUint(e.width), b.asUint(e.width)
	switch e.kind {
	case cmpEq:
		return x == y
	case cmpNe:
		return x != y
	case cmpLt:
		return x < y
	case cmpLe:
		return x <= y
	case cmpGt:
		return x > y
	case cmpGe:
		return x >= y
	}
	return false
}

// float32Bits and float64Bits return the IEEE 754 bit pattern of a Value's
// float payload; no conversion handler in convert.go calls them.
func float32Bits(v Value) uint32 { return math.Float32bits(float32(v.F)) }
func float64Bits(v Value) uint64 { return math.Float64bits(v.F) }
