package x64

import "github.com/colorfulnotion/dynarec/ir"

func init() {
	registerEmitter(ir.And32, emitAnd32)
	registerEmitter(ir.And64, emitAnd64)
	registerEmitter(ir.Eor32, emitEor32)
	registerEmitter(ir.Eor64, emitEor64)
	registerEmitter(ir.Or32, emitOr32)
	registerEmitter(ir.Or64, emitOr64)
	registerEmitter(ir.Not32, emitNot32)
	registerEmitter(ir.Not64, emitNot64)
}

// The 32-bit forms always fold immediates; the 64-bit forms only when the
// immediate survives the host's sign-extending imm32 encoding.

func emitAnd32(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)

	result := ctx.RegAlloc.UseScratchGpr(args[0]).Cvt32()

	if args[1].IsImmediate() {
		ctx.Code.AndRegImm(result, args[1].GetImmediateU32())
	} else {
		opArg := ctx.RegAlloc.UseOpArg(args[1]).ChangeBits(32)
		ctx.Code.AndRegOp(result, opArg)
	}

	ctx.RegAlloc.DefineValue(inst, result)
}

func emitAnd64(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)

	result := ctx.RegAlloc.UseScratchGpr(args[0])

	if args[1].FitsInImmediateS32() {
		ctx.Code.AndRegImm(result, uint32(args[1].GetImmediateU64()))
	} else {
		opArg := ctx.RegAlloc.UseOpArg(args[1]).ChangeBits(64)
		ctx.Code.AndRegOp(result, opArg)
	}

	ctx.RegAlloc.DefineValue(inst, result)
}

func emitEor32(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)

	result := ctx.RegAlloc.UseScratchGpr(args[0]).Cvt32()

	if args[1].IsImmediate() {
		ctx.Code.XorRegImm(result, args[1].GetImmediateU32())
	} else {
		opArg := ctx.RegAlloc.UseOpArg(args[1]).ChangeBits(32)
		ctx.Code.XorRegOp(result, opArg)
	}

	ctx.RegAlloc.DefineValue(inst, result)
}

func emitEor64(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)

	result := ctx.RegAlloc.UseScratchGpr(args[0])

	if args[1].FitsInImmediateS32() {
		ctx.Code.XorRegImm(result, uint32(args[1].GetImmediateU64()))
	} else {
		opArg := ctx.RegAlloc.UseOpArg(args[1]).ChangeBits(64)
		ctx.Code.XorRegOp(result, opArg)
	}

	ctx.RegAlloc.DefineValue(inst, result)
}

func emitOr32(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)

	result := ctx.RegAlloc.UseScratchGpr(args[0]).Cvt32()

	if args[1].IsImmediate() {
		ctx.Code.OrRegImm(result, args[1].GetImmediateU32())
	} else {
		opArg := ctx.RegAlloc.UseOpArg(args[1]).ChangeBits(32)
		ctx.Code.OrRegOp(result, opArg)
	}

	ctx.RegAlloc.DefineValue(inst, result)
}

func emitOr64(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)

	result := ctx.RegAlloc.UseScratchGpr(args[0])

	if args[1].FitsInImmediateS32() {
		ctx.Code.OrRegImm(result, uint32(args[1].GetImmediateU64()))
	} else {
		opArg := ctx.RegAlloc.UseOpArg(args[1]).ChangeBits(64)
		ctx.Code.OrRegOp(result, opArg)
	}

	ctx.RegAlloc.DefineValue(inst, result)
}

func emitNot32(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)

	var result Reg
	if args[0].IsImmediate() {
		result = ctx.RegAlloc.ScratchGpr().Cvt32()
		ctx.Code.MovRegImm(result, uint64(^args[0].GetImmediateU32()))
	} else {
		result = ctx.RegAlloc.UseScratchGpr(args[0]).Cvt32()
		ctx.Code.NotReg(result)
	}
	ctx.RegAlloc.DefineValue(inst, result)
}

func emitNot64(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)

	var result Reg
	if args[0].IsImmediate() {
		result = ctx.RegAlloc.ScratchGpr()
		ctx.Code.MovRegImm(result, ^args[0].GetImmediateU64())
	} else {
		result = ctx.RegAlloc.UseScratchGpr(args[0])
		ctx.Code.NotReg(result)
	}
	ctx.RegAlloc.DefineValue(inst, result)
}
