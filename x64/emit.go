package x64

import (
	"fmt"

	"github.com/colorfulnotion/dynarec/ir"
	"github.com/colorfulnotion/dynarec/log"
)

// EmitContext is what one per-opcode emitter sees: the assembler, the
// register allocator, and the state layout.
type EmitContext struct {
	Code     *Assembler
	RegAlloc *RegAlloc
	Layout   StateLayout
}

// EraseInstruction marks a pseudo-operation as consumed by its primary.
func (ctx *EmitContext) EraseInstruction(inst *ir.Inst) {
	inst.Erase()
}

type emitFunc func(ctx *EmitContext, inst *ir.Inst)

var emitTable = map[ir.Opcode]emitFunc{}

func registerEmitter(op ir.Opcode, fn emitFunc) {
	if emitTable[op] != nil {
		panic(fmt.Sprintf("x64: duplicate emitter for %s", op))
	}
	emitTable[op] = fn
}

var recognizedPseudos = []ir.Opcode{
	ir.GetCarryFromOp, ir.GetOverflowFromOp, ir.GetNZCVFromOp,
}

// EmitX64 lowers IR blocks to x86-64 machine code, one micro-instruction at a
// time.
type EmitX64 struct {
	cfg    Config
	layout StateLayout
}

func NewEmitX64(cfg Config) *EmitX64 {
	return &EmitX64{cfg: cfg, layout: DefaultLayout()}
}

// CompileBlock emits the block and returns the encoded bytes. The produced
// code expects the JIT state pointer as its first argument and preserves the
// guest-visible ordering of the IR.
func (e *EmitX64) CompileBlock(b *ir.Block) ([]byte, error) {
	code := NewAssembler(e.cfg)
	ra := NewRegAlloc(code, e.layout, e.cfg.SpillSlots)
	ctx := &EmitContext{Code: code, RegAlloc: ra, Layout: e.layout}

	// Block prologue: state pointer arrives in rdi (System V argument 0).
	code.MovRegReg(LocStatePtr.GPR().Reg(), RDI.Reg())

	for _, inst := range b.Insts() {
		if inst.Op.IsPseudo() {
			if !inst.Erased() {
				panic(fmt.Sprintf("x64: %s not consumed by its primary", inst))
			}
			continue
		}
		fn := emitTable[inst.Op]
		if fn == nil {
			return nil, fmt.Errorf("unknown opcode %s at %%%d", inst.Op, inst.Index)
		}
		fn(ctx, inst)

		for _, kind := range recognizedPseudos {
			if p := inst.AssociatedPseudo(kind); p != nil {
				panic(fmt.Sprintf("x64: %s left unconsumed on %%%d", kind, inst.Index))
			}
		}
		if inst.Op.ResultType() != ir.Void && !ra.Defined(inst) {
			panic(fmt.Sprintf("x64: %%%d emitted without a definition", inst.Index))
		}
		ra.EndOfAllocScope()
	}

	if n := ra.LiveValues(); n != 0 {
		panic(fmt.Sprintf("x64: %d values still live after block", n))
	}

	code.Ret()
	log.Debug(log.CodegenMonitoring, "compiled block",
		"insts", len(b.Insts()), "bytes", code.Len(), "live", ra.LiveValues())
	return code.Bytes(), nil
}

// Layout returns the JIT state layout the emitters compile against.
func (e *EmitX64) Layout() StateLayout {
	return e.layout
}
