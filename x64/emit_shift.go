package x64

import "github.com/colorfulnotion/dynarec/ir"

func init() {
	registerEmitter(ir.LogicalShiftLeft32, emitLogicalShiftLeft32)
	registerEmitter(ir.LogicalShiftLeft64, emitLogicalShiftLeft64)
	registerEmitter(ir.LogicalShiftRight32, emitLogicalShiftRight32)
	registerEmitter(ir.LogicalShiftRight64, emitLogicalShiftRight64)
	registerEmitter(ir.ArithmeticShiftRight32, emitArithmeticShiftRight32)
	registerEmitter(ir.ArithmeticShiftRight64, emitArithmeticShiftRight64)
	registerEmitter(ir.RotateRight32, emitRotateRight32)
	registerEmitter(ir.RotateRight64, emitRotateRight64)
	registerEmitter(ir.RotateRightExtended, emitRotateRightExtended)
}

// The guest uses the full low byte of a register shift count, while the host
// masks the count to 0x1F/0x3F, so every register path has to handle counts
// at and beyond the operand width itself. When a carry-out is requested, the
// carry-in operand is loaded so that a count of zero leaves it unchanged.

func emitLogicalShiftLeft32(ctx *EmitContext, inst *ir.Inst) {
	carryInst := inst.AssociatedPseudo(ir.GetCarryFromOp)

	args := ctx.RegAlloc.GetArgumentInfo(inst)
	operandArg := args[0]
	shiftArg := args[1]
	carryArg := args[2]

	if carryInst == nil {
		if shiftArg.IsImmediate() {
			result := ctx.RegAlloc.UseScratchGpr(operandArg).Cvt32()
			shift := shiftArg.GetImmediateU8()

			if shift <= 31 {
				ctx.Code.ShlRegImm(result, shift)
			} else {
				ctx.Code.XorRegReg(result, result)
			}

			ctx.RegAlloc.DefineValue(inst, result)
		} else {
			ctx.RegAlloc.Use(shiftArg, LocShiftCount)
			result := ctx.RegAlloc.UseScratchGpr(operandArg).Cvt32()
			zero := ctx.RegAlloc.ScratchGpr().Cvt32()
			cl := LocShiftCount.GPR().Reg().Cvt8()

			// The 32-bit shl masks the count by 0x1F; the guest does not,
			// so counts of 32 and above must produce zero.
			ctx.Code.ShlRegCL(result)
			ctx.Code.XorRegReg(zero, zero)
			ctx.Code.CmpRegImm(cl, 32)
			ctx.Code.CmovCC(CCNB, result, zero)

			ctx.RegAlloc.DefineValue(inst, result)
		}
	} else {
		if shiftArg.IsImmediate() {
			shift := shiftArg.GetImmediateU8()
			result := ctx.RegAlloc.UseScratchGpr(operandArg).Cvt32()
			carry := ctx.RegAlloc.UseScratchGpr(carryArg).Cvt32()

			if shift == 0 {
				// There is nothing more to do.
			} else if shift < 32 {
				ctx.Code.BtRegImm(carry, 0)
				ctx.Code.ShlRegImm(result, shift)
				ctx.Code.SetCC(CCB, carry.Cvt8())
			} else if shift > 32 {
				ctx.Code.XorRegReg(result, result)
				ctx.Code.XorRegReg(carry, carry)
			} else {
				ctx.Code.MovRegReg(carry, result)
				ctx.Code.XorRegReg(result, result)
				ctx.Code.AndRegImm(carry, 1)
			}

			ctx.RegAlloc.DefineValue(carryInst, carry)
			ctx.EraseInstruction(carryInst)
			ctx.RegAlloc.DefineValue(inst, result)
		} else {
			ctx.RegAlloc.Use(shiftArg, LocShiftCount)
			result := ctx.RegAlloc.UseScratchGpr(operandArg).Cvt32()
			carry := ctx.RegAlloc.UseScratchGpr(carryArg).Cvt32()
			cl := LocShiftCount.GPR().Reg().Cvt8()

			ctx.Code.InLocalLabel()

			ctx.Code.CmpRegImm(cl, 32)
			ctx.Code.Jcc(CCA, ".Rs_gt32")
			ctx.Code.Jcc(CCZ, ".Rs_eq32")
			// if (Rs & 0xFF < 32) {
			// Set CF for correct behaviour in the case when Rs & 0xFF == 0:
			// shl by zero preserves CF, so setc then reads the carry-in.
			ctx.Code.BtRegImm(carry, 0)
			ctx.Code.ShlRegCL(result)
			ctx.Code.SetCC(CCB, carry.Cvt8())
			ctx.Code.Jmp(".end")
			// } else if (Rs & 0xFF > 32) {
			ctx.Code.L(".Rs_gt32")
			ctx.Code.XorRegReg(result, result)
			ctx.Code.XorRegReg(carry, carry)
			ctx.Code.Jmp(".end")
			// } else if (Rs & 0xFF == 32) {
			ctx.Code.L(".Rs_eq32")
			ctx.Code.MovRegReg(carry, result)
			ctx.Code.AndRegImm(carry, 1)
			ctx.Code.XorRegReg(result, result)
			// }
			ctx.Code.L(".end")

			ctx.Code.OutLocalLabel()

			ctx.RegAlloc.DefineValue(carryInst, carry)
			ctx.EraseInstruction(carryInst)
			ctx.RegAlloc.DefineValue(inst, result)
		}
	}
}

func emitLogicalShiftLeft64(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	operandArg := args[0]
	shiftArg := args[1]

	if shiftArg.IsImmediate() {
		result := ctx.RegAlloc.UseScratchGpr(operandArg)
		shift := shiftArg.GetImmediateU8()

		if shift < 64 {
			ctx.Code.ShlRegImm(result, shift)
		} else {
			ctx.Code.XorRegReg(result.Cvt32(), result.Cvt32())
		}

		ctx.RegAlloc.DefineValue(inst, result)
	} else {
		ctx.RegAlloc.Use(shiftArg, LocShiftCount)
		result := ctx.RegAlloc.UseScratchGpr(operandArg)
		zero := ctx.RegAlloc.ScratchGpr()
		cl := LocShiftCount.GPR().Reg().Cvt8()

		ctx.Code.ShlRegCL(result)
		ctx.Code.XorRegReg(zero.Cvt32(), zero.Cvt32())
		ctx.Code.CmpRegImm(cl, 64)
		ctx.Code.CmovCC(CCNB, result, zero)

		ctx.RegAlloc.DefineValue(inst, result)
	}
}

func emitLogicalShiftRight32(ctx *EmitContext, inst *ir.Inst) {
	carryInst := inst.AssociatedPseudo(ir.GetCarryFromOp)

	args := ctx.RegAlloc.GetArgumentInfo(inst)
	operandArg := args[0]
	shiftArg := args[1]
	carryArg := args[2]

	if carryInst == nil {
		if shiftArg.IsImmediate() {
			result := ctx.RegAlloc.UseScratchGpr(operandArg).Cvt32()
			shift := shiftArg.GetImmediateU8()

			if shift <= 31 {
				ctx.Code.ShrRegImm(result, shift)
			} else {
				ctx.Code.XorRegReg(result, result)
			}

			ctx.RegAlloc.DefineValue(inst, result)
		} else {
			ctx.RegAlloc.Use(shiftArg, LocShiftCount)
			result := ctx.RegAlloc.UseScratchGpr(operandArg).Cvt32()
			zero := ctx.RegAlloc.ScratchGpr().Cvt32()
			cl := LocShiftCount.GPR().Reg().Cvt8()

			ctx.Code.ShrRegCL(result)
			ctx.Code.XorRegReg(zero, zero)
			ctx.Code.CmpRegImm(cl, 32)
			ctx.Code.CmovCC(CCNB, result, zero)

			ctx.RegAlloc.DefineValue(inst, result)
		}
	} else {
		if shiftArg.IsImmediate() {
			shift := shiftArg.GetImmediateU8()
			result := ctx.RegAlloc.UseScratchGpr(operandArg).Cvt32()
			carry := ctx.RegAlloc.UseScratchGpr(carryArg).Cvt32()

			if shift == 0 {
				// There is nothing more to do.
			} else if shift < 32 {
				ctx.Code.ShrRegImm(result, shift)
				ctx.Code.SetCC(CCB, carry.Cvt8())
			} else if shift == 32 {
				ctx.Code.BtRegImm(result, 31)
				ctx.Code.SetCC(CCB, carry.Cvt8())
				ctx.Code.MovRegImm(result, 0)
			} else {
				ctx.Code.XorRegReg(result, result)
				ctx.Code.XorRegReg(carry, carry)
			}

			ctx.RegAlloc.DefineValue(carryInst, carry)
			ctx.EraseInstruction(carryInst)
			ctx.RegAlloc.DefineValue(inst, result)
		} else {
			ctx.RegAlloc.Use(shiftArg, LocShiftCount)
			result := ctx.RegAlloc.UseScratchGpr(operandArg).Cvt32()
			carry := ctx.RegAlloc.UseScratchGpr(carryArg).Cvt32()
			cl := LocShiftCount.GPR().Reg().Cvt8()

			ctx.Code.InLocalLabel()

			ctx.Code.CmpRegImm(cl, 32)
			ctx.Code.Jcc(CCA, ".Rs_gt32")
			ctx.Code.Jcc(CCZ, ".Rs_eq32")
			// if (Rs & 0xFF == 0) goto end;
			ctx.Code.TestRegReg(cl, cl)
			ctx.Code.Jcc(CCZ, ".end")
			// if (Rs & 0xFF < 32) {
			ctx.Code.ShrRegCL(result)
			ctx.Code.SetCC(CCB, carry.Cvt8())
			ctx.Code.Jmp(".end")
			// } else if (Rs & 0xFF > 32) {
			ctx.Code.L(".Rs_gt32")
			ctx.Code.XorRegReg(result, result)
			ctx.Code.XorRegReg(carry, carry)
			ctx.Code.Jmp(".end")
			// } else if (Rs & 0xFF == 32) {
			ctx.Code.L(".Rs_eq32")
			ctx.Code.BtRegImm(result, 31)
			ctx.Code.SetCC(CCB, carry.Cvt8())
			ctx.Code.XorRegReg(result, result)
			// }
			ctx.Code.L(".end")

			ctx.Code.OutLocalLabel()

			ctx.RegAlloc.DefineValue(carryInst, carry)
			ctx.EraseInstruction(carryInst)
			ctx.RegAlloc.DefineValue(inst, result)
		}
	}
}

func emitLogicalShiftRight64(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	operandArg := args[0]
	shiftArg := args[1]

	if shiftArg.IsImmediate() {
		result := ctx.RegAlloc.UseScratchGpr(operandArg)
		shift := shiftArg.GetImmediateU8()

		if shift < 64 {
			ctx.Code.ShrRegImm(result, shift)
		} else {
			ctx.Code.XorRegReg(result.Cvt32(), result.Cvt32())
		}

		ctx.RegAlloc.DefineValue(inst, result)
	} else {
		ctx.RegAlloc.Use(shiftArg, LocShiftCount)
		result := ctx.RegAlloc.UseScratchGpr(operandArg)
		zero := ctx.RegAlloc.ScratchGpr()
		cl := LocShiftCount.GPR().Reg().Cvt8()

		ctx.Code.ShrRegCL(result)
		ctx.Code.XorRegReg(zero.Cvt32(), zero.Cvt32())
		ctx.Code.CmpRegImm(cl, 64)
		ctx.Code.CmovCC(CCNB, result, zero)

		ctx.RegAlloc.DefineValue(inst, result)
	}
}

func emitArithmeticShiftRight32(ctx *EmitContext, inst *ir.Inst) {
	carryInst := inst.AssociatedPseudo(ir.GetCarryFromOp)

	args := ctx.RegAlloc.GetArgumentInfo(inst)
	operandArg := args[0]
	shiftArg := args[1]
	carryArg := args[2]

	if carryInst == nil {
		if shiftArg.IsImmediate() {
			shift := shiftArg.GetImmediateU8()
			result := ctx.RegAlloc.UseScratchGpr(operandArg).Cvt32()

			// Every count above 31 behaves as 31 does.
			if shift > 31 {
				shift = 31
			}
			ctx.Code.SarRegImm(result, shift)

			ctx.RegAlloc.DefineValue(inst, result)
		} else {
			ctx.RegAlloc.UseScratch(shiftArg, LocShiftCount)
			result := ctx.RegAlloc.UseScratchGpr(operandArg).Cvt32()
			const31 := ctx.RegAlloc.ScratchGpr().Cvt32()
			ecx := LocShiftCount.GPR().Reg().Cvt32()

			// Saturate the count at 31 instead of letting sar mask it.
			ctx.Code.MovRegImm(const31, 31)
			ctx.Code.MovzxRegReg(ecx, ecx.Cvt8())
			ctx.Code.CmpRegImm(ecx, 31)
			ctx.Code.CmovCC(CCG, ecx, const31)
			ctx.Code.SarRegCL(result)

			ctx.RegAlloc.DefineValue(inst, result)
		}
	} else {
		if shiftArg.IsImmediate() {
			shift := shiftArg.GetImmediateU8()
			result := ctx.RegAlloc.UseScratchGpr(operandArg).Cvt32()
			carry := ctx.RegAlloc.UseScratchGpr(carryArg).Cvt8()

			if shift == 0 {
				// There is nothing more to do.
			} else if shift <= 31 {
				ctx.Code.SarRegImm(result, shift)
				ctx.Code.SetCC(CCB, carry)
			} else {
				ctx.Code.SarRegImm(result, 31)
				ctx.Code.BtRegImm(result, 31)
				ctx.Code.SetCC(CCB, carry)
			}

			ctx.RegAlloc.DefineValue(carryInst, carry)
			ctx.EraseInstruction(carryInst)
			ctx.RegAlloc.DefineValue(inst, result)
		} else {
			ctx.RegAlloc.Use(shiftArg, LocShiftCount)
			result := ctx.RegAlloc.UseScratchGpr(operandArg).Cvt32()
			carry := ctx.RegAlloc.UseScratchGpr(carryArg).Cvt8()
			cl := LocShiftCount.GPR().Reg().Cvt8()

			ctx.Code.InLocalLabel()

			ctx.Code.CmpRegImm(cl, 31)
			ctx.Code.Jcc(CCA, ".Rs_gt31")
			// if (Rs & 0xFF == 0) goto end;
			ctx.Code.TestRegReg(cl, cl)
			ctx.Code.Jcc(CCZ, ".end")
			// if (Rs & 0xFF <= 31) {
			ctx.Code.SarRegCL(result)
			ctx.Code.SetCC(CCB, carry)
			ctx.Code.Jmp(".end")
			// } else if (Rs & 0xFF > 31) {
			ctx.Code.L(".Rs_gt31")
			ctx.Code.SarRegImm(result, 31) // 31 produces the same results as anything above 31
			ctx.Code.BtRegImm(result, 31)
			ctx.Code.SetCC(CCB, carry)
			// }
			ctx.Code.L(".end")

			ctx.Code.OutLocalLabel()

			ctx.RegAlloc.DefineValue(carryInst, carry)
			ctx.EraseInstruction(carryInst)
			ctx.RegAlloc.DefineValue(inst, result)
		}
	}
}

func emitArithmeticShiftRight64(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	operandArg := args[0]
	shiftArg := args[1]

	if shiftArg.IsImmediate() {
		shift := shiftArg.GetImmediateU8()
		result := ctx.RegAlloc.UseScratchGpr(operandArg)

		if shift > 63 {
			shift = 63
		}
		ctx.Code.SarRegImm(result, shift)

		ctx.RegAlloc.DefineValue(inst, result)
	} else {
		ctx.RegAlloc.UseScratch(shiftArg, LocShiftCount)
		result := ctx.RegAlloc.UseScratchGpr(operandArg)
		const63 := ctx.RegAlloc.ScratchGpr()
		ecx := LocShiftCount.GPR().Reg().Cvt32()

		ctx.Code.MovRegImm(const63, 63)
		ctx.Code.MovzxRegReg(ecx, ecx.Cvt8())
		ctx.Code.CmpRegImm(ecx, 63)
		ctx.Code.CmovCC(CCG, ecx, const63.Cvt32())
		ctx.Code.SarRegCL(result)

		ctx.RegAlloc.DefineValue(inst, result)
	}
}

func emitRotateRight32(ctx *EmitContext, inst *ir.Inst) {
	carryInst := inst.AssociatedPseudo(ir.GetCarryFromOp)

	args := ctx.RegAlloc.GetArgumentInfo(inst)
	operandArg := args[0]
	shiftArg := args[1]
	carryArg := args[2]

	if carryInst == nil {
		if shiftArg.IsImmediate() {
			shift := shiftArg.GetImmediateU8()
			result := ctx.RegAlloc.UseScratchGpr(operandArg).Cvt32()

			ctx.Code.RorRegImm(result, shift&0x1F)

			ctx.RegAlloc.DefineValue(inst, result)
		} else {
			ctx.RegAlloc.Use(shiftArg, LocShiftCount)
			result := ctx.RegAlloc.UseScratchGpr(operandArg).Cvt32()

			// ror masks the count by 0x1F itself, which matches the guest
			// result.
			ctx.Code.RorRegCL(result)

			ctx.RegAlloc.DefineValue(inst, result)
		}
	} else {
		if shiftArg.IsImmediate() {
			shift := shiftArg.GetImmediateU8()
			result := ctx.RegAlloc.UseScratchGpr(operandArg).Cvt32()
			carry := ctx.RegAlloc.UseScratchGpr(carryArg).Cvt8()

			if shift == 0 {
				// There is nothing more to do.
			} else if shift&0x1F == 0 {
				ctx.Code.BtRegImm(result, 31)
				ctx.Code.SetCC(CCB, carry)
			} else {
				ctx.Code.RorRegImm(result, shift)
				ctx.Code.SetCC(CCB, carry)
			}

			ctx.RegAlloc.DefineValue(carryInst, carry)
			ctx.EraseInstruction(carryInst)
			ctx.RegAlloc.DefineValue(inst, result)
		} else {
			ctx.RegAlloc.UseScratch(shiftArg, LocShiftCount)
			result := ctx.RegAlloc.UseScratchGpr(operandArg).Cvt32()
			carry := ctx.RegAlloc.UseScratchGpr(carryArg).Cvt8()
			cl := LocShiftCount.GPR().Reg().Cvt8()
			ecx := LocShiftCount.GPR().Reg().Cvt32()

			ctx.Code.InLocalLabel()

			// if (Rs & 0xFF == 0) goto end;
			ctx.Code.TestRegReg(cl, cl)
			ctx.Code.Jcc(CCZ, ".end")

			ctx.Code.AndRegImm(ecx, 0x1F)
			ctx.Code.Jcc(CCZ, ".zero_1F")
			// if (Rs & 0x1F != 0) {
			ctx.Code.RorRegCL(result)
			ctx.Code.SetCC(CCB, carry)
			ctx.Code.Jmp(".end")
			// } else {
			ctx.Code.L(".zero_1F")
			ctx.Code.BtRegImm(result, 31)
			ctx.Code.SetCC(CCB, carry)
			// }
			ctx.Code.L(".end")

			ctx.Code.OutLocalLabel()

			ctx.RegAlloc.DefineValue(carryInst, carry)
			ctx.EraseInstruction(carryInst)
			ctx.RegAlloc.DefineValue(inst, result)
		}
	}
}

func emitRotateRight64(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	operandArg := args[0]
	shiftArg := args[1]

	if shiftArg.IsImmediate() {
		shift := shiftArg.GetImmediateU8()
		result := ctx.RegAlloc.UseScratchGpr(operandArg)

		ctx.Code.RorRegImm(result, shift&0x3F)

		ctx.RegAlloc.DefineValue(inst, result)
	} else {
		ctx.RegAlloc.Use(shiftArg, LocShiftCount)
		result := ctx.RegAlloc.UseScratchGpr(operandArg)

		// ror masks the count by 0x3F itself.
		ctx.Code.RorRegCL(result)

		ctx.RegAlloc.DefineValue(inst, result)
	}
}

func emitRotateRightExtended(ctx *EmitContext, inst *ir.Inst) {
	carryInst := inst.AssociatedPseudo(ir.GetCarryFromOp)

	args := ctx.RegAlloc.GetArgumentInfo(inst)

	result := ctx.RegAlloc.UseScratchGpr(args[0]).Cvt32()
	carry := ctx.RegAlloc.UseScratchGpr(args[1]).Cvt8()

	ctx.Code.BtRegImm(carry.Cvt32(), 0)
	ctx.Code.RcrReg1(result)

	if carryInst != nil {
		ctx.Code.SetCC(CCB, carry)

		ctx.RegAlloc.DefineValue(carryInst, carry)
		ctx.EraseInstruction(carryInst)
	}

	ctx.RegAlloc.DefineValue(inst, result)
}
