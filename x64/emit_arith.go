package x64

import (
	"github.com/colorfulnotion/dynarec/ir"
)

func init() {
	registerEmitter(ir.Add32, func(ctx *EmitContext, inst *ir.Inst) { emitAdd(ctx, inst, 32) })
	registerEmitter(ir.Add64, func(ctx *EmitContext, inst *ir.Inst) { emitAdd(ctx, inst, 64) })
	registerEmitter(ir.Sub32, func(ctx *EmitContext, inst *ir.Inst) { emitSub(ctx, inst, 32) })
	registerEmitter(ir.Sub64, func(ctx *EmitContext, inst *ir.Inst) { emitSub(ctx, inst, 64) })
	registerEmitter(ir.Mul32, emitMul32)
	registerEmitter(ir.Mul64, emitMul64)
	registerEmitter(ir.UnsignedMultiplyHigh64, emitUnsignedMultiplyHigh64)
	registerEmitter(ir.SignedMultiplyHigh64, emitSignedMultiplyHigh64)
	registerEmitter(ir.UnsignedDiv32, func(ctx *EmitContext, inst *ir.Inst) { emitDiv(ctx, inst, 32, false) })
	registerEmitter(ir.UnsignedDiv64, func(ctx *EmitContext, inst *ir.Inst) { emitDiv(ctx, inst, 64, false) })
	registerEmitter(ir.SignedDiv32, func(ctx *EmitContext, inst *ir.Inst) { emitDiv(ctx, inst, 32, true) })
	registerEmitter(ir.SignedDiv64, func(ctx *EmitContext, inst *ir.Inst) { emitDiv(ctx, inst, 64, true) })
}

// doCarry acquires a register for the carry chain: readable carry-in, and
// somewhere to put the carry-out if one was requested.
func doCarry(ra *RegAlloc, carryIn *Argument, carryOut *ir.Inst) Reg {
	if carryIn.IsImmediate() {
		if carryOut != nil {
			return ra.ScratchGpr().Cvt8()
		}
		return Reg{}
	}
	if carryOut != nil {
		return ra.UseScratchGpr(carryIn).Cvt8()
	}
	return ra.UseGpr(carryIn).Cvt8()
}

// doNZCV reserves rax for the lahf/seto capture.
func doNZCV(code *Assembler, ra *RegAlloc, nzcvOut *ir.Inst) Reg {
	if nzcvOut == nil {
		return Reg{}
	}
	nzcv := ra.ScratchGpr(LocACC)
	code.XorRegReg(nzcv.Cvt32(), nzcv.Cvt32())
	return nzcv
}

func emitAdd(ctx *EmitContext, inst *ir.Inst, bitsize uint8) {
	carryInst := inst.AssociatedPseudo(ir.GetCarryFromOp)
	overflowInst := inst.AssociatedPseudo(ir.GetOverflowFromOp)
	nzcvInst := inst.AssociatedPseudo(ir.GetNZCVFromOp)

	args := ctx.RegAlloc.GetArgumentInfo(inst)
	carryIn := args[2]

	nzcv := doNZCV(ctx.Code, ctx.RegAlloc, nzcvInst)
	result := ctx.RegAlloc.UseScratchGpr(args[0]).ChangeBits(bitsize)
	carry := doCarry(ctx.RegAlloc, carryIn, carryInst)
	var overflow Reg
	if overflowInst != nil {
		overflow = ctx.RegAlloc.ScratchGpr().Cvt8()
	}

	if args[1].IsImmediate() && args[1].GetType() == ir.U32 {
		opArg := args[1].GetImmediateU32()
		if carryIn.IsImmediate() {
			if carryIn.GetImmediateU1() {
				ctx.Code.Stc()
				ctx.Code.AdcRegImm(result, opArg)
			} else {
				ctx.Code.AddRegImm(result, opArg)
			}
		} else {
			ctx.Code.BtRegImm(carry.Cvt32(), 0)
			ctx.Code.AdcRegImm(result, opArg)
		}
	} else {
		opArg := ctx.RegAlloc.UseOpArg(args[1]).ChangeBits(bitsize)
		if carryIn.IsImmediate() {
			if carryIn.GetImmediateU1() {
				ctx.Code.Stc()
				ctx.Code.AdcRegOp(result, opArg)
			} else {
				ctx.Code.AddRegOp(result, opArg)
			}
		} else {
			ctx.Code.BtRegImm(carry.Cvt32(), 0)
			ctx.Code.AdcRegOp(result, opArg)
		}
	}

	if nzcvInst != nil {
		ctx.Code.Lahf()
		ctx.Code.SetCC(CCO, Reg{RAX, 8}) // seto al
		ctx.RegAlloc.DefineValue(nzcvInst, nzcv)
		ctx.EraseInstruction(nzcvInst)
	}
	if carryInst != nil {
		ctx.Code.SetCC(CCB, carry)
		ctx.RegAlloc.DefineValue(carryInst, carry)
		ctx.EraseInstruction(carryInst)
	}
	if overflowInst != nil {
		ctx.Code.SetCC(CCO, overflow)
		ctx.RegAlloc.DefineValue(overflowInst, overflow)
		ctx.EraseInstruction(overflowInst)
	}

	ctx.RegAlloc.DefineValue(inst, result)
}

func emitSub(ctx *EmitContext, inst *ir.Inst, bitsize uint8) {
	carryInst := inst.AssociatedPseudo(ir.GetCarryFromOp)
	overflowInst := inst.AssociatedPseudo(ir.GetOverflowFromOp)
	nzcvInst := inst.AssociatedPseudo(ir.GetNZCVFromOp)

	args := ctx.RegAlloc.GetArgumentInfo(inst)
	carryIn := args[2]

	nzcv := doNZCV(ctx.Code, ctx.RegAlloc, nzcvInst)
	result := ctx.RegAlloc.UseScratchGpr(args[0]).ChangeBits(bitsize)
	carry := doCarry(ctx.RegAlloc, carryIn, carryInst)
	var overflow Reg
	if overflowInst != nil {
		overflow = ctx.RegAlloc.ScratchGpr().Cvt8()
	}

	// Note that the host carry flag is the inverse of the guest carry here:
	// guest C=1 on subtraction means no borrow.

	if args[1].IsImmediate() && args[1].GetType() == ir.U32 {
		opArg := args[1].GetImmediateU32()
		if carryIn.IsImmediate() {
			if carryIn.GetImmediateU1() {
				ctx.Code.SubRegImm(result, opArg)
			} else {
				ctx.Code.Stc()
				ctx.Code.SbbRegImm(result, opArg)
			}
		} else {
			ctx.Code.BtRegImm(carry.Cvt32(), 0)
			ctx.Code.Cmc()
			ctx.Code.SbbRegImm(result, opArg)
		}
	} else {
		opArg := ctx.RegAlloc.UseOpArg(args[1]).ChangeBits(bitsize)
		if carryIn.IsImmediate() {
			if carryIn.GetImmediateU1() {
				ctx.Code.SubRegOp(result, opArg)
			} else {
				ctx.Code.Stc()
				ctx.Code.SbbRegOp(result, opArg)
			}
		} else {
			ctx.Code.BtRegImm(carry.Cvt32(), 0)
			ctx.Code.Cmc()
			ctx.Code.SbbRegOp(result, opArg)
		}
	}

	if nzcvInst != nil {
		ctx.Code.Cmc()
		ctx.Code.Lahf()
		ctx.Code.SetCC(CCO, Reg{RAX, 8}) // seto al
		ctx.RegAlloc.DefineValue(nzcvInst, nzcv)
		ctx.EraseInstruction(nzcvInst)
	}
	if carryInst != nil {
		if nzcvInst != nil {
			// The cmc above already turned CF into the guest carry.
			ctx.Code.SetCC(CCB, carry)
		} else {
			ctx.Code.SetCC(CCNB, carry)
		}
		ctx.RegAlloc.DefineValue(carryInst, carry)
		ctx.EraseInstruction(carryInst)
	}
	if overflowInst != nil {
		ctx.Code.SetCC(CCO, overflow)
		ctx.RegAlloc.DefineValue(overflowInst, overflow)
		ctx.EraseInstruction(overflowInst)
	}

	ctx.RegAlloc.DefineValue(inst, result)
}

func emitMul32(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)

	result := ctx.RegAlloc.UseScratchGpr(args[0]).Cvt32()
	if args[1].IsImmediate() {
		ctx.Code.ImulRegRegImm(result, result, int32(args[1].GetImmediateU32()))
	} else {
		opArg := ctx.RegAlloc.UseOpArg(args[1]).ChangeBits(32)
		ctx.Code.ImulRegOp(result, opArg)
	}
	ctx.RegAlloc.DefineValue(inst, result)
}

func emitMul64(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)

	result := ctx.RegAlloc.UseScratchGpr(args[0])
	opArg := ctx.RegAlloc.UseOpArg(args[1]).ChangeBits(64)

	ctx.Code.ImulRegOp(result, opArg)

	ctx.RegAlloc.DefineValue(inst, result)
}

func emitUnsignedMultiplyHigh64(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)

	high := ctx.RegAlloc.ScratchGpr(LocDataHigh)
	ctx.RegAlloc.UseScratch(args[0], LocACC)
	opArg := ctx.RegAlloc.UseOpArg(args[1]).ChangeBits(64)
	ctx.Code.MulOp(opArg)

	ctx.RegAlloc.DefineValue(inst, high)
}

func emitSignedMultiplyHigh64(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)

	high := ctx.RegAlloc.ScratchGpr(LocDataHigh)
	ctx.RegAlloc.UseScratch(args[0], LocACC)
	opArg := ctx.RegAlloc.UseOpArg(args[1]).ChangeBits(64)
	ctx.Code.ImulOp(opArg)

	ctx.RegAlloc.DefineValue(inst, high)
}

// emitDiv lowers the division family. The guest defines division by zero to
// yield zero, so the quotient register is zeroed and the divide skipped for a
// zero divisor.
func emitDiv(ctx *EmitContext, inst *ir.Inst, bitsize uint8, signed bool) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)

	acc := ctx.RegAlloc.ScratchGpr(LocACC).ChangeBits(bitsize)
	ctx.RegAlloc.ScratchGpr(LocDataHigh)
	dividend := ctx.RegAlloc.UseGpr(args[0]).ChangeBits(bitsize)
	divisor := ctx.RegAlloc.UseGpr(args[1]).ChangeBits(bitsize)

	ctx.Code.InLocalLabel()

	ctx.Code.XorRegReg(acc.Cvt32(), acc.Cvt32())
	ctx.Code.TestRegReg(divisor, divisor)
	ctx.Code.Jcc(CCZ, ".end")
	ctx.Code.MovRegReg(acc, dividend)
	if signed {
		if bitsize == 32 {
			ctx.Code.Cdq()
		} else {
			ctx.Code.Cqo()
		}
		ctx.Code.IdivOp(RegOperand(divisor))
	} else {
		edx := LocDataHigh.GPR().Reg().Cvt32()
		ctx.Code.XorRegReg(edx, edx)
		ctx.Code.DivOp(RegOperand(divisor))
	}
	ctx.Code.L(".end")

	ctx.Code.OutLocalLabel()

	ctx.RegAlloc.DefineValue(inst, acc)
}
