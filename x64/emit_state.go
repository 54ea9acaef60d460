package x64

import "github.com/colorfulnotion/dynarec/ir"

func init() {
	registerEmitter(ir.GetRegister, emitGetRegister)
	registerEmitter(ir.SetRegister, emitSetRegister)
	registerEmitter(ir.SetCpsrNZCV, emitSetCpsrNZCV)
}

func emitGetRegister(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	result := ctx.RegAlloc.ScratchGpr()

	ctx.Code.MovRegMem(result, ctx.Layout.RegMem(args[0].GetImmediateU8()))

	ctx.RegAlloc.DefineValue(inst, result)
}

func emitSetRegister(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	value := ctx.RegAlloc.UseGpr(args[1])

	ctx.Code.MovMemReg(ctx.Layout.RegMem(args[0].GetImmediateU8()), value)
}

// emitSetCpsrNZCV stores the packed guest flags. A value captured by
// GetNZCVFromOp arrives in the lahf/seto layout and is packed here; a u32
// operand is already in packed form.
func emitSetCpsrNZCV(ctx *EmitContext, inst *ir.Inst) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)

	if args[0].GetType() == ir.NZCV {
		value := ctx.RegAlloc.UseScratchGpr(args[0]).Cvt32()
		emitPackNZCV(ctx.Code, value)
		ctx.Code.MovMemReg(ctx.Layout.NzcvMem(), value)
		return
	}

	value := ctx.RegAlloc.UseGpr(args[0]).Cvt32()
	ctx.Code.MovMemReg(ctx.Layout.NzcvMem(), value)
}
