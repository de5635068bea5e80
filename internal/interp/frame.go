package interp

import "github.com/kestrelengine/scriptcore/internal/codeblock"

// DebugInfo is attached to a Frame only when a debugger is attached, so
// normal execution never pays for it (grounded on
// scriptFunctionStackFrame.cpp's debug-info-pointer pattern, see
// SPEC_FULL.md "Supplemented features").
type DebugInfo struct {
	// OnBreakpoint is called whenever the dispatch loop crosses a
	// Breakpoint opcode whose table entry is enabled. The dispatch loop
	// ignores the returned value: execution continues after the hook
	// returns, whatever it reports.
	OnBreakpoint func(f *Frame, bp codeblock.Breakpoint) (stop bool)
}

// Frame is the interpreter's per-call execution state (spec §4.7 "Frame
// layout"). Local storage is modeled as a set of per-offset Value cells
// rather than a raw byte buffer -- see value.go's structInstance doc
// comment for why Go's memory model makes that the natural translation of
// "a contiguous, aligned, zero-initialized buffer".
type Frame struct {
	Parent  *Frame
	Initial Object // the `this` fixed for the life of the frame
	Active  Object // mutated by context-shift opcodes

	Block  *codeblock.CodeBlock
	Params []Value

	locals map[uint32]*Value
	Debug  *DebugInfo

	host Host
	ip   int
}

// NewFrame allocates a call frame for block, pre-populating a zero cell for
// every local the code block builder laid out (spec §4.7: "locally
// allocated zero-initialized local storage").
func NewFrame(parent *Frame, initial Object, block *codeblock.CodeBlock, params []Value, host Host, debug *DebugInfo) *Frame {
	f := &Frame{
		Parent:  parent,
		Initial: initial,
		Active:  initial,
		Block:   block,
		Params:  params,
		locals:  make(map[uint32]*Value, len(block.Locals)),
		Debug:   debug,
		host:    host,
	}
	for _, l := range block.Locals {
		f.locals[l.Offset] = &Value{}
	}
	return f
}

func (f *Frame) localCell(offset uint32) *Value {
	c, ok := f.locals[offset]
	if !ok {
		c = &Value{}
		f.locals[offset] = c
	}
	return c
}
