package x64

import "github.com/colorfulnotion/dynarec/ir"

func init() {
	registerEmitter(ir.CountLeadingZeros32, emitCountLeadingZeros32)
	registerEmitter(ir.CountLeadingZeros64, emitCountLeadingZeros64)
	registerEmitter(ir.MaxSigned32, func(ctx *EmitContext, inst *ir.Inst) { emitMinMax(ctx, inst, 32, CCGE) })
	registerEmitter(ir.MaxSigned64, func(ctx *EmitContext, inst *ir.Inst) { emitMinMax(ctx, inst, 64, CCGE) })
	registerEmitter(ir.MaxUnsigned32, func(ctx *EmitContext, inst *ir.Inst) { emitMinMax(ctx, inst, 32, CCA) })
	registerEmitter(ir.MaxUnsigned64, func(ctx *EmitContext, inst *ir.Inst) { emitMinMax(ctx, inst, 64, CCA) })
	registerEmitter(ir.MinSigned32, func(ctx *EmitContext, inst *ir.Inst) { emitMinMax(ctx, inst, 32, CCLE) })
	registerEmitter(ir.MinSigned64, func(ctx *EmitContext, inst *ir.Inst) { emitMinMax(ctx, inst, 64, CCLE) })
	registerEmitter(ir.MinUnsigned32, func(ctx *EmitContext, inst *ir.Inst) { emitMinMax(ctx, inst, 32, CCB) })
	registerEmitter(ir.MinUnsigned64, func(ctx *EmitContext, inst *ir.Inst) { emitMinMax(ctx, inst, 64, CCB) })
}

// Both CLZ paths produce the operand width for a zero input: lzcnt by
// definition, the bsr path by mapping the undefined zero case through a
// sentinel.

func emitCountLeadingZeros32(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	if ctx.Code.CPUSupports(FeatureLZCNT) {
		source := ctx.RegAlloc.UseGpr(args[0]).Cvt32()
		result := ctx.RegAlloc.ScratchGpr().Cvt32()

		ctx.Code.LzcntRegReg(result, source)

		ctx.RegAlloc.DefineValue(inst, result)
	} else {
		source := ctx.RegAlloc.UseScratchGpr(args[0]).Cvt32()
		result := ctx.RegAlloc.ScratchGpr().Cvt32()

		// The result of a bsr of zero is undefined, but ZF is set after it.
		ctx.Code.BsrRegReg(result, source)
		ctx.Code.MovRegImm(source, 0xFFFFFFFF)
		ctx.Code.CmovCC(CCZ, result, source)
		ctx.Code.NegReg(result)
		ctx.Code.AddRegImm(result, 31)

		ctx.RegAlloc.DefineValue(inst, result)
	}
}

func emitCountLeadingZeros64(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	if ctx.Code.CPUSupports(FeatureLZCNT) {
		source := ctx.RegAlloc.UseGpr(args[0])
		result := ctx.RegAlloc.ScratchGpr()

		ctx.Code.LzcntRegReg(result, source)

		ctx.RegAlloc.DefineValue(inst, result)
	} else {
		source := ctx.RegAlloc.UseScratchGpr(args[0])
		result := ctx.RegAlloc.ScratchGpr()

		// The result of a bsr of zero is undefined, but ZF is set after it.
		ctx.Code.BsrRegReg(result, source)
		ctx.Code.MovRegImm(source.Cvt32(), 0xFFFFFFFF)
		ctx.Code.CmovCC(CCZ, result.Cvt32(), source.Cvt32())
		ctx.Code.NegReg(result.Cvt32())
		ctx.Code.AddRegImm(result.Cvt32(), 63)

		ctx.RegAlloc.DefineValue(inst, result)
	}
}

func emitMinMax(ctx *EmitContext, inst *ir.Inst, bitsize uint8, cc CC) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)

	x := ctx.RegAlloc.UseGpr(args[0]).ChangeBits(bitsize)
	y := ctx.RegAlloc.UseScratchGpr(args[1]).ChangeBits(bitsize)

	ctx.Code.CmpRegReg(x, y)
	ctx.Code.CmovCC(cc, y, x)

	ctx.RegAlloc.DefineValue(inst, y)
}
