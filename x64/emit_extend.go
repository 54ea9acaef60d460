package x64

import "github.com/colorfulnotion/dynarec/ir"

func init() {
	registerEmitter(ir.SignExtendByteToWord, emitSignExtendByteToWord)
	registerEmitter(ir.SignExtendHalfToWord, emitSignExtendHalfToWord)
	registerEmitter(ir.SignExtendByteToLong, emitSignExtendByteToLong)
	registerEmitter(ir.SignExtendHalfToLong, emitSignExtendHalfToLong)
	registerEmitter(ir.SignExtendWordToLong, emitSignExtendWordToLong)
	registerEmitter(ir.ZeroExtendByteToWord, emitZeroExtendByteToWord)
	registerEmitter(ir.ZeroExtendHalfToWord, emitZeroExtendHalfToWord)
	// x64 zeros the upper 32 bits on a 32-bit move, so the long forms reuse
	// the word forms.
	registerEmitter(ir.ZeroExtendByteToLong, emitZeroExtendByteToWord)
	registerEmitter(ir.ZeroExtendHalfToLong, emitZeroExtendHalfToWord)
	registerEmitter(ir.ZeroExtendWordToLong, emitZeroExtendWordToLong)
	registerEmitter(ir.ZeroExtendLongToQuad, emitZeroExtendLongToQuad)
	registerEmitter(ir.ByteReverseWord, emitByteReverseWord)
	registerEmitter(ir.ByteReverseHalf, emitByteReverseHalf)
	registerEmitter(ir.ByteReverseDual, emitByteReverseDual)
}

func emitSignExtendByteToWord(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	result := ctx.RegAlloc.UseScratchGpr(args[0])
	ctx.Code.MovsxRegReg(result.Cvt32(), result.Cvt8())
	ctx.RegAlloc.DefineValue(inst, result)
}

func emitSignExtendHalfToWord(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	result := ctx.RegAlloc.UseScratchGpr(args[0])
	ctx.Code.MovsxRegReg(result.Cvt32(), result.Cvt16())
	ctx.RegAlloc.DefineValue(inst, result)
}

func emitSignExtendByteToLong(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	result := ctx.RegAlloc.UseScratchGpr(args[0])
	ctx.Code.MovsxRegReg(result.Cvt64(), result.Cvt8())
	ctx.RegAlloc.DefineValue(inst, result)
}

func emitSignExtendHalfToLong(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	result := ctx.RegAlloc.UseScratchGpr(args[0])
	ctx.Code.MovsxRegReg(result.Cvt64(), result.Cvt16())
	ctx.RegAlloc.DefineValue(inst, result)
}

func emitSignExtendWordToLong(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	result := ctx.RegAlloc.UseScratchGpr(args[0])
	ctx.Code.MovsxdRegReg(result.Cvt64(), result.Cvt32())
	ctx.RegAlloc.DefineValue(inst, result)
}

func emitZeroExtendByteToWord(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	result := ctx.RegAlloc.UseScratchGpr(args[0])
	ctx.Code.MovzxRegReg(result.Cvt32(), result.Cvt8())
	ctx.RegAlloc.DefineValue(inst, result)
}

func emitZeroExtendHalfToWord(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	result := ctx.RegAlloc.UseScratchGpr(args[0])
	ctx.Code.MovzxRegReg(result.Cvt32(), result.Cvt16())
	ctx.RegAlloc.DefineValue(inst, result)
}

func emitZeroExtendWordToLong(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	result := ctx.RegAlloc.UseScratchGpr(args[0])
	ctx.Code.MovRegReg(result.Cvt32(), result.Cvt32()) // x64 zeros upper 32 bits on a 32-bit move
	ctx.RegAlloc.DefineValue(inst, result)
}

func emitZeroExtendLongToQuad(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	if args[0].IsInGpr() {
		source := ctx.RegAlloc.UseGpr(args[0])
		result := ctx.RegAlloc.ScratchXmm()
		ctx.Code.MovqXmmReg(result, source.Enc)
		ctx.RegAlloc.DefineValueXmm(inst, result)
	} else {
		result := ctx.RegAlloc.UseScratchXmm(args[0])
		ctx.Code.MovqXmmXmm(result, result)
		ctx.RegAlloc.DefineValueXmm(inst, result)
	}
}

func emitByteReverseWord(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	result := ctx.RegAlloc.UseScratchGpr(args[0]).Cvt32()
	ctx.Code.BswapReg(result)
	ctx.RegAlloc.DefineValue(inst, result)
}

func emitByteReverseHalf(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	result := ctx.RegAlloc.UseScratchGpr(args[0]).Cvt16()
	ctx.Code.RolRegImm(result, 8)
	ctx.RegAlloc.DefineValue(inst, result)
}

func emitByteReverseDual(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	result := ctx.RegAlloc.UseScratchGpr(args[0])
	ctx.Code.BswapReg(result)
	ctx.RegAlloc.DefineValue(inst, result)
}
