package x64

import "github.com/colorfulnotion/dynarec/ir"

func init() {
	registerEmitter(ir.Pack2x32To1x64, emitPack2x32To1x64)
	registerEmitter(ir.Pack2x64To1x128, emitPack2x64To1x128)
	registerEmitter(ir.LeastSignificantWord, emitLeastSignificant)
	registerEmitter(ir.LeastSignificantHalf, emitLeastSignificant)
	registerEmitter(ir.LeastSignificantByte, emitLeastSignificant)
	registerEmitter(ir.MostSignificantWord, emitMostSignificantWord)
	registerEmitter(ir.MostSignificantBit, emitMostSignificantBit)
	registerEmitter(ir.IsZero32, emitIsZero32)
	registerEmitter(ir.IsZero64, emitIsZero64)
	registerEmitter(ir.TestBit, emitTestBit)
	registerEmitter(ir.ExtractRegister32, func(ctx *EmitContext, inst *ir.Inst) { emitExtractRegister(ctx, inst, 32) })
	registerEmitter(ir.ExtractRegister64, func(ctx *EmitContext, inst *ir.Inst) { emitExtractRegister(ctx, inst, 64) })
}

func emitPack2x32To1x64(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	lo := ctx.RegAlloc.UseScratchGpr(args[0])
	hi := ctx.RegAlloc.UseScratchGpr(args[1])

	ctx.Code.ShlRegImm(hi, 32)
	ctx.Code.MovRegReg(lo.Cvt32(), lo.Cvt32()) // zero extend to 64 bits
	ctx.Code.OrRegReg(lo, hi)

	ctx.RegAlloc.DefineValue(inst, lo)
}

func emitPack2x64To1x128(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	lo := ctx.RegAlloc.UseGpr(args[0])
	hi := ctx.RegAlloc.UseGpr(args[1])
	result := ctx.RegAlloc.ScratchXmm()

	if ctx.Code.CPUSupports(FeatureSSE41) {
		ctx.Code.MovqXmmReg(result, lo.Enc)
		ctx.Code.PinsrqXmmRegImm(result, hi.Enc, 1)
	} else {
		tmp := ctx.RegAlloc.ScratchXmm()
		ctx.Code.MovqXmmReg(result, lo.Enc)
		ctx.Code.MovqXmmReg(tmp, hi.Enc)
		ctx.Code.PunpcklqdqXmmXmm(result, tmp)
	}

	ctx.RegAlloc.DefineValueXmm(inst, result)
}

// The low word/half/byte of a value is the value itself under the SSA
// binding; no host move is needed.
func emitLeastSignificant(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	ctx.RegAlloc.DefineValueFromArg(inst, args[0])
}

func emitMostSignificantWord(ctx *EmitContext, inst *ir.Inst) {
	carryInst := inst.AssociatedPseudo(ir.GetCarryFromOp)

	args := ctx.RegAlloc.GetArgumentInfo(inst)
	result := ctx.RegAlloc.UseScratchGpr(args[0])
	ctx.Code.ShrRegImm(result, 32)

	if carryInst != nil {
		carry := ctx.RegAlloc.ScratchGpr()
		ctx.Code.SetCC(CCB, carry.Cvt8())
		ctx.RegAlloc.DefineValue(carryInst, carry)
		ctx.EraseInstruction(carryInst)
	}

	ctx.RegAlloc.DefineValue(inst, result)
}

func emitMostSignificantBit(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	result := ctx.RegAlloc.UseScratchGpr(args[0]).Cvt32()
	ctx.Code.ShrRegImm(result, 31)
	ctx.RegAlloc.DefineValue(inst, result)
}

func emitIsZero32(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	result := ctx.RegAlloc.UseScratchGpr(args[0]).Cvt32()
	ctx.Code.TestRegReg(result, result)
	ctx.Code.SetCC(CCZ, result.Cvt8())
	ctx.Code.MovzxRegReg(result, result.Cvt8())
	ctx.RegAlloc.DefineValue(inst, result)
}

func emitIsZero64(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	result := ctx.RegAlloc.UseScratchGpr(args[0])
	ctx.Code.TestRegReg(result, result)
	ctx.Code.SetCC(CCZ, result.Cvt8())
	ctx.Code.MovzxRegReg(result.Cvt32(), result.Cvt8())
	ctx.RegAlloc.DefineValue(inst, result)
}

func emitTestBit(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	result := ctx.RegAlloc.UseScratchGpr(args[0])
	if !args[1].IsImmediate() {
		panic("x64: TestBit requires an immediate bit index")
	}
	ctx.Code.BtRegImm(result, args[1].GetImmediateU8())
	ctx.Code.SetCC(CCB, result.Cvt8())
	ctx.RegAlloc.DefineValue(inst, result)
}

func emitExtractRegister(ctx *EmitContext, inst *ir.Inst, bitsize uint8) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)

	result := ctx.RegAlloc.UseScratchGpr(args[0]).ChangeBits(bitsize)
	operand := ctx.RegAlloc.UseScratchGpr(args[1]).ChangeBits(bitsize)
	if !args[2].IsImmediate() {
		panic("x64: ExtractRegister requires an immediate lsb")
	}
	lsb := args[2].GetImmediateU8()

	ctx.Code.ShrdRegRegImm(result, operand, lsb)

	ctx.RegAlloc.DefineValue(inst, result)
}
