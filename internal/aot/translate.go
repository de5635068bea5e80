// Package aot implements the AOT-to-C translator (spec §4.8 / SPEC_FULL
// C8): it lowers a compiled CodeBlock into a standalone C function a native
// compiler can build into a shared object, for scripts hot enough to be
// worth skipping interpretation for.
//
// Grounded on the original engine's scriptJitFunctionWriterC.cpp: every
// temporary is named _tmpN and every jump target _lN. Destructor opcodes
// become inline sc_rt_destruct calls where they occur in the stream, and a
// single _cleanup label at function exit is the target the null-pointer
// fault path jumps to. Call sites are forwarded through fn_N, where N is the callee's import-table
// slot (its host function id), matching the original's per-call forwarder
// naming.
package aot

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/kestrelengine/scriptcore/internal/codeblock"
	"github.com/kestrelengine/scriptcore/internal/hosttype"
	"github.com/kestrelengine/scriptcore/internal/registry"
)

// cursor is a read-only walk over a CodeBlock's byte stream. It mirrors
// interp/decode.go's helpers but decodes into Go values used purely to
// drive C text generation, never to evaluate anything.
type cursor struct {
	code []byte
	ip   int
}

func (c *cursor) readOp() (uint16, error) {
	id, n, ok := codeblock.DecodeOpID(c.code, c.ip)
	if !ok {
		return 0, fmt.Errorf("aot: truncated opcode stream at offset %d", c.ip)
	}
	c.ip += n
	return id, nil
}

func (c *cursor) need(n int) error {
	if c.ip+n > len(c.code) {
		return fmt.Errorf("aot: truncated operand at offset %d", c.ip)
	}
	return nil
}

func (c *cursor) u8() (byte, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.code[c.ip]
	c.ip++
	return v, nil
}

func (c *cursor) u16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.code[c.ip:])
	c.ip += 2
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.code[c.ip:])
	c.ip += 4
	return v, nil
}

func (c *cursor) u64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(c.code[c.ip:])
	c.ip += 8
	return v, nil
}

func (c *cursor) f64() (float64, error) {
	bits, err := c.u64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func (c *cursor) str() (string, error) {
	n, err := c.u16()
	if err != nil {
		return "", err
	}
	if err := c.need(int(n)); err != nil {
		return "", err
	}
	s := string(c.code[c.ip : c.ip+int(n)])
	c.ip += int(n)
	return s, nil
}

// jumpTarget reads a Jump-shaped 2-byte delta and returns the absolute
// target byte offset, same arithmetic as interp's readJumpDelta.
func (c *cursor) jumpTarget() (target int, hasTarget bool, err error) {
	if err := c.need(2); err != nil {
		return 0, false, err
	}
	raw := binary.LittleEndian.Uint16(c.code[c.ip:])
	c.ip += 2
	if raw == 0x7FFF {
		return 0, false, nil
	}
	delta := int(int16(raw))
	return c.ip + delta, true, nil
}

// translator walks one CodeBlock and accumulates its C translation.
type translator struct {
	cur     cursor
	insight hosttype.Insight

	tmpN   int
	labelN int
	labels map[int]string // byte offset -> C label name, allocated on first reference

	cleanup []string // locals to destroy, in construction order; walked in reverse at the cleanup label

	body strings.Builder
}

func newTranslator(block *codeblock.CodeBlock, insight hosttype.Insight) *translator {
	return &translator{
		cur:     cursor{code: block.Code},
		insight: insight,
		labels:  make(map[int]string),
	}
}

func (t *translator) newTemp() string {
	t.tmpN++
	return fmt.Sprintf("_tmp%d", t.tmpN)
}

func (t *translator) labelFor(offset int) string {
	if name, ok := t.labels[offset]; ok {
		return name
	}
	t.labelN++
	name := fmt.Sprintf("_l%d", t.labelN)
	t.labels[offset] = name
	return name
}

// emitLabelIfAny emits a pending goto-target label at the current byte
// offset, if any jump already referenced it (forward or backward — C goto
// labels need not be declared ahead of use within a function).
func (t *translator) emitLabelIfAny(offset int) {
	if name, ok := t.labels[offset]; ok {
		fmt.Fprintf(&t.body, "%s:;\n", name)
	}
}

// sanitizeName maps a scripted function/class name to a valid C identifier
// fragment (spec names are already restricted to identifier-ish strings;
// this only guards against the rare module-qualified name with a dot).
func sanitizeName(s string) string {
	return strings.NewReplacer(".", "_", ":", "_", "-", "_").Replace(s)
}

// ForwarderName is the call-site forwarder name for a host function id,
// matching the original's fn_N import-table-slot naming.
func ForwarderName(funcID uint32) string {
	return fmt.Sprintf("fn_%d", funcID)
}

// FunctionName is the emitted C symbol for a scripted function.
func FunctionName(fn *registry.HostFunction) string {
	if fn.ParentClass != "" {
		return "sc_fn_" + sanitizeName(fn.ParentClass) + "_" + sanitizeName(fn.Name)
	}
	return "sc_fn_" + sanitizeName(fn.Name)
}

// cType returns the C scalar type for a given bit width, used for locals,
// return values, and cast targets.
func cType(width int, isFloat bool) string {
	if isFloat {
		if width == 32 {
			return "float"
		}
		return "double"
	}
	switch width {
	case 8:
		return "int8_t"
	case 16:
		return "int16_t"
	case 32:
		return "int32_t"
	default:
		return "int64_t"
	}
}

// TranslateFunction emits a complete C function for fn's compiled body.
// The emitted function has signature:
//
//	<ret> sc_fn_<name>(void *this_, ScRtContext *rt, <params...>)
//
// where ScRtContext is the host-supplied runtime shim (property access,
// fault reporting, object lifecycle) declared in scriptcore_rt.h — the
// generated source #includes that header and never inlines host semantics
// itself, matching how the original's JIT output calls back into the
// engine's vtables rather than re-implementing them in generated code.
func TranslateFunction(fn *registry.HostFunction, insight hosttype.Insight) (string, error) {
	if fn.Block == nil {
		return "", fmt.Errorf("aot: function %q has no compiled code block", fn.Name)
	}
	t := newTranslator(fn.Block, insight)

	if err := t.translateBody(fn.Block); err != nil {
		return "", fmt.Errorf("aot: translating %q: %w", fn.Name, err)
	}

	retType := cType(widthOr32(fn.ReturnWidth), false)
	if fn.ReturnWidth == 0 {
		retType = "void"
	}

	var out strings.Builder
	fmt.Fprintf(&out, "// generated from %s:%d\n", fn.Block.Filename, fn.Block.Line)
	fmt.Fprintf(&out, "%s %s(void *this_, ScRtContext *rt", retType, FunctionName(fn))
	for i := 0; i < fn.ArgCount; i++ {
		fmt.Fprintf(&out, ", ScRtValue arg%d", i)
	}
	out.WriteString(") {\n")
	// Every local gets a uniform ScRtValue slot, regardless of its scripted
	// type -- the same width-agnostic storage interp.Value gives the
	// interpreter, since the flat opcode stream doesn't carry per-local type
	// info this translator can use to pick a narrower C type.
	for _, l := range fn.Block.Locals {
		fmt.Fprintf(&out, "ScRtValue %s = {0};\n", localName(uint16(l.Offset)))
	}
	out.WriteString(t.body.String())
	// ContextFromPtr's handled-fault path emits `goto _cleanup`, so the label
	// is always present, whether or not any cleanup statements follow it.
	out.WriteString("_cleanup:;\n")
	for i := len(t.cleanup) - 1; i >= 0; i-- {
		out.WriteString(t.cleanup[i])
		out.WriteString("\n")
	}
	if retType != "void" {
		fmt.Fprintf(&out, "return (%s)0;\n", retType)
	}
	out.WriteString("}\n")
	return out.String(), nil
}

func widthOr32(w int) int {
	if w == 0 {
		return 32
	}
	return w
}
