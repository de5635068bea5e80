package aot

import (
	"fmt"

	"github.com/kestrelengine/scriptcore/internal/stub"
)

// arithEntry describes one binary arithmetic opcode's C operator and the
// scalar type its operands should be cast to before applying it, mirroring
// interp/arith.go's arithTable (same per-width/float/double shape).
type arithEntry struct {
	sym string
	ty  string
}

var arithTable = map[stub.OpKind]arithEntry{
	stub.OpAddInt8: {"+", "int8_t"}, stub.OpAddUint8: {"+", "uint8_t"},
	stub.OpAddInt16: {"+", "int16_t"}, stub.OpAddUint16: {"+", "uint16_t"},
	stub.OpAddInt32: {"+", "int32_t"}, stub.OpAddUint32: {"+", "uint32_t"},
	stub.OpAddInt64: {"+", "int64_t"}, stub.OpAddUint64: {"+", "uint64_t"},
	stub.OpAddFloat: {"+", "float"}, stub.OpAddDouble: {"+", "double"},

	stub.OpSubInt8: {"-", "int8_t"}, stub.OpSubUint8: {"-", "uint8_t"},
	stub.OpSubInt16: {"-", "int16_t"}, stub.OpSubUint16: {"-", "uint16_t"},
	stub.OpSubInt32: {"-", "int32_t"}, stub.OpSubUint32: {"-", "uint32_t"},
	stub.OpSubInt64: {"-", "int64_t"}, stub.OpSubUint64: {"-", "uint64_t"},
	stub.OpSubFloat: {"-", "float"}, stub.OpSubDouble: {"-", "double"},

	stub.OpMulInt8: {"*", "int8_t"}, stub.OpMulUint8: {"*", "uint8_t"},
	stub.OpMulInt16: {"*", "int16_t"}, stub.OpMulUint16: {"*", "uint16_t"},
	stub.OpMulInt32: {"*", "int32_t"}, stub.OpMulUint32: {"*", "uint32_t"},
	stub.OpMulInt64: {"*", "int64_t"}, stub.OpMulUint64: {"*", "uint64_t"},
	stub.OpMulFloat: {"*", "float"}, stub.OpMulDouble: {"*", "double"},

	stub.OpDivInt8: {"/", "int8_t"}, stub.OpDivUint8: {"/", "uint8_t"},
	stub.OpDivInt16: {"/", "int16_t"}, stub.OpDivUint16: {"/", "uint16_t"},
	stub.OpDivInt32: {"/", "int32_t"}, stub.OpDivUint32: {"/", "uint32_t"},
	stub.OpDivInt64: {"/", "int64_t"}, stub.OpDivUint64: {"/", "uint64_t"},
	stub.OpDivFloat: {"/", "float"}, stub.OpDivDouble: {"/", "double"},

	stub.OpModInt8: {"%", "int8_t"}, stub.OpModUint8: {"%", "uint8_t"},
	stub.OpModInt16: {"%", "int16_t"}, stub.OpModUint16: {"%", "uint16_t"},
	stub.OpModInt32: {"%", "int32_t"}, stub.OpModUint32: {"%", "uint32_t"},
	stub.OpModInt64: {"%", "int64_t"}, stub.OpModUint64: {"%", "uint64_t"},
}

func (t *translator) emitBinary(sym, ty string) (string, error) {
	l, err := t.emitExpr()
	if err != nil {
		return "", err
	}
	r, err := t.emitExpr()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("((%s)(%s) %s (%s)(%s))", ty, l, sym, ty, r), nil
}

// bitEntry mirrors interp/arith.go's bitTable.
type bitEntry struct {
	sym string
	ty  string
}

var bitTable = map[stub.OpKind]bitEntry{
	stub.OpAnd8: {"&", "uint8_t"}, stub.OpAnd16: {"&", "uint16_t"}, stub.OpAnd32: {"&", "uint32_t"}, stub.OpAnd64: {"&", "uint64_t"},
	stub.OpOr8: {"|", "uint8_t"}, stub.OpOr16: {"|", "uint16_t"}, stub.OpOr32: {"|", "uint32_t"}, stub.OpOr64: {"|", "uint64_t"},
	stub.OpXor8: {"^", "uint8_t"}, stub.OpXor16: {"^", "uint16_t"}, stub.OpXor32: {"^", "uint32_t"}, stub.OpXor64: {"^", "uint64_t"},
	stub.OpShl8: {"<<", "uint8_t"}, stub.OpShl16: {"<<", "uint16_t"}, stub.OpShl32: {"<<", "uint32_t"}, stub.OpShl64: {"<<", "uint64_t"},
	stub.OpShr8: {">>", "uint8_t"}, stub.OpShr16: {">>", "uint16_t"}, stub.OpShr32: {">>", "uint32_t"}, stub.OpShr64: {">>", "uint64_t"},
	stub.OpSar8: {">>", "int8_t"}, stub.OpSar16: {">>", "int16_t"}, stub.OpSar32: {">>", "int32_t"}, stub.OpSar64: {">>", "int64_t"},
}

func (t *translator) emitBitwise(op stub.OpKind, e bitEntry) (string, error) {
	if op == stub.OpNot8 || op == stub.OpNot16 || op == stub.OpNot32 || op == stub.OpNot64 {
		v, err := t.emitExpr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(~(%s)(%s))", e.ty, v), nil
	}
	return t.emitBinary(e.sym, e.ty)
}

func init() {
	// Not8/16/32/64 are unary, handled specially in emitBitwise above, but
	// still need an entry so emitExprOp's table lookup finds them.
	bitTable[stub.OpNot8] = bitEntry{"", "uint8_t"}
	bitTable[stub.OpNot16] = bitEntry{"", "uint16_t"}
	bitTable[stub.OpNot32] = bitEntry{"", "uint32_t"}
	bitTable[stub.OpNot64] = bitEntry{"", "uint64_t"}
}

// cmpEntry mirrors interp/arith.go's cmpTable.
type cmpEntry struct {
	sym string
	ty  string
}

var cmpTable = map[stub.OpKind]cmpEntry{
	stub.OpTestEqual1: {"==", "uint8_t"}, stub.OpTestEqual2: {"==", "uint16_t"},
	stub.OpTestEqual4: {"==", "uint32_t"}, stub.OpTestEqual8: {"==", "uint64_t"},
	stub.OpTestNotEqual1: {"!=", "uint8_t"}, stub.OpTestNotEqual2: {"!=", "uint16_t"},
	stub.OpTestNotEqual4: {"!=", "uint32_t"}, stub.OpTestNotEqual8: {"!=", "uint64_t"},

	stub.OpTestSignedLess8: {"<", "int8_t"}, stub.OpTestSignedLess16: {"<", "int16_t"},
	stub.OpTestSignedLess32: {"<", "int32_t"}, stub.OpTestSignedLess64: {"<", "int64_t"},
	stub.OpTestSignedLessEq8: {"<=", "int8_t"}, stub.OpTestSignedLessEq16: {"<=", "int16_t"},
	stub.OpTestSignedLessEq32: {"<=", "int32_t"}, stub.OpTestSignedLessEq64: {"<=", "int64_t"},
	stub.OpTestSignedGreater8: {">", "int8_t"}, stub.OpTestSignedGreater16: {">", "int16_t"},
	stub.OpTestSignedGreater32: {">", "int32_t"}, stub.OpTestSignedGreater64: {">", "int64_t"},
	stub.OpTestSignedGreaterEq8: {">=", "int8_t"}, stub.OpTestSignedGreaterEq16: {">=", "int16_t"},
	stub.OpTestSignedGreaterEq32: {">=", "int32_t"}, stub.OpTestSignedGreaterEq64: {">=", "int64_t"},

	stub.OpTestUnsignedLess8: {"<", "uint8_t"}, stub.OpTestUnsignedLess16: {"<", "uint16_t"},
	stub.OpTestUnsignedLess32: {"<", "uint32_t"}, stub.OpTestUnsignedLess64: {"<", "uint64_t"},
	stub.OpTestUnsignedLessEq8: {"<=", "uint8_t"}, stub.OpTestUnsignedLessEq16: {"<=", "uint16_t"},
	stub.OpTestUnsignedLessEq32: {"<=", "uint32_t"}, stub.OpTestUnsignedLessEq64: {"<=", "uint64_t"},
	stub.OpTestUnsignedGreater8: {">", "uint8_t"}, stub.OpTestUnsignedGreater16: {">", "uint16_t"},
	stub.OpTestUnsignedGreater32: {">", "uint32_t"}, stub.OpTestUnsignedGreater64: {">", "uint64_t"},
	stub.OpTestUnsignedGreaterEq8: {">=", "uint8_t"}, stub.OpTestUnsignedGreaterEq16: {">=", "uint16_t"},
	stub.OpTestUnsignedGreaterEq32: {">=", "uint32_t"}, stub.OpTestUnsignedGreaterEq64: {">=", "uint64_t"},

	stub.OpTestFloat4Less: {"<", "float"}, stub.OpTestFloat4LessEq: {"<=", "float"},
	stub.OpTestFloat4Greater: {">", "float"}, stub.OpTestFloat4GreaterEq: {">=", "float"},
	stub.OpTestFloat4Equal: {"==", "float"}, stub.OpTestFloat4NotEqual: {"!=", "float"},
	stub.OpTestFloat8Less: {"<", "double"}, stub.OpTestFloat8LessEq: {"<=", "double"},
	stub.OpTestFloat8Greater: {">", "double"}, stub.OpTestFloat8GreaterEq: {">=", "double"},
	stub.OpTestFloat8Equal: {"==", "double"}, stub.OpTestFloat8NotEqual: {"!=", "double"},

	// TestEqualGeneric/TestNotEqualGeneric are reached only when the builder
	// could not specialize them at compile time (see codeblock/builder.go
	// specialize()); degrade to a 32-bit-wide comparison, same fallback
	// interp.convert.go takes for the generic enum conversions.
	stub.OpTestEqualGeneric:    {"==", "int32_t"},
	stub.OpTestNotEqualGeneric: {"!=", "int32_t"},
}

func (t *translator) emitCompare(e cmpEntry) (string, error) {
	sym, err := t.emitBinary(e.sym, e.ty)
	if err != nil {
		return "", err
	}
	return sym, nil
}
