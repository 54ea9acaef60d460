package x64

import (
	"fmt"

	"github.com/colorfulnotion/dynarec/ir"
)

func init() {
	registerEmitter(ir.ConditionalSelect32, func(ctx *EmitContext, inst *ir.Inst) { emitConditionalSelect(ctx, inst, 32) })
	registerEmitter(ir.ConditionalSelect64, func(ctx *EmitContext, inst *ir.Inst) { emitConditionalSelect(ctx, inst, 64) })
	registerEmitter(ir.ConditionalSelectNZCV, func(ctx *EmitContext, inst *ir.Inst) { emitConditionalSelect(ctx, inst, 32) })
}

// emitConditionalSelect loads the packed guest flags from the JIT state,
// synthesizes the matching host flags, and folds the selection into a cmov.
func emitConditionalSelect(ctx *EmitContext, inst *ir.Inst, bitsize uint8) {
	args := ctx.RegAlloc.GetArgumentInfo(inst)
	nzcv := ctx.RegAlloc.ScratchGpr(LocACC).Cvt32()
	then := ctx.RegAlloc.UseGpr(args[1]).ChangeBits(bitsize)
	els := ctx.RegAlloc.UseScratchGpr(args[2]).ChangeBits(bitsize)

	ctx.Code.MovRegMem(nzcv, ctx.Layout.NzcvMem())
	emitRestoreNZCV(ctx.Code, nzcv)

	switch args[0].GetImmediateCond() {
	case ir.CondEQ: // z
		ctx.Code.CmovCC(CCZ, els, then)
	case ir.CondNE: // !z
		ctx.Code.CmovCC(CCNZ, els, then)
	case ir.CondCS: // c
		ctx.Code.CmovCC(CCB, els, then)
	case ir.CondCC: // !c
		ctx.Code.CmovCC(CCNB, els, then)
	case ir.CondMI: // n
		ctx.Code.CmovCC(CCS, els, then)
	case ir.CondPL: // !n
		ctx.Code.CmovCC(CCNS, els, then)
	case ir.CondVS: // v
		ctx.Code.CmovCC(CCO, els, then)
	case ir.CondVC: // !v
		ctx.Code.CmovCC(CCNO, els, then)
	case ir.CondHI: // c & !z
		ctx.Code.Cmc()
		ctx.Code.CmovCC(CCA, els, then)
	case ir.CondLS: // !c | z
		ctx.Code.Cmc()
		ctx.Code.CmovCC(CCNA, els, then)
	case ir.CondGE: // n == v
		ctx.Code.CmovCC(CCGE, els, then)
	case ir.CondLT: // n != v
		ctx.Code.CmovCC(CCL, els, then)
	case ir.CondGT: // !z & (n == v)
		ctx.Code.CmovCC(CCG, els, then)
	case ir.CondLE: // z | (n != v)
		ctx.Code.CmovCC(CCLE, els, then)
	case ir.CondAL, ir.CondNV:
		ctx.Code.MovRegReg(els, then)
	default:
		panic(fmt.Sprintf("x64: invalid cond %d", args[0].GetImmediateCond()))
	}

	ctx.RegAlloc.DefineValue(inst, els)
}
