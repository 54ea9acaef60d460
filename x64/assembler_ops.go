package x64

import "fmt"

// One method per host mnemonic the emitters need. Register widths ride on the
// Reg/Operand values, so one method covers the 16/32/64-bit forms.

// MovRegReg: mov dst, src (width taken from dst).
func (a *Assembler) MovRegReg(dst, src Reg) {
	a.checkWidth(dst, src)
	a.prefixRR(dst.Bits, src.Enc, dst.Enc)
	if dst.Bits == 8 {
		a.emit(0x88, modRM(0xC0, src.Enc, dst.Enc))
	} else {
		a.emit(0x89, modRM(0xC0, src.Enc, dst.Enc))
	}
}

// MovRegImm materializes an immediate, picking the shortest encoding that
// preserves the value at the register's width.
func (a *Assembler) MovRegImm(r Reg, imm uint64) {
	switch {
	case r.Bits == 32:
		if r.Enc >= 8 {
			a.emit(rexByte(false, false, false, true))
		}
		a.emit(0xB8 | byte(r.Enc&7))
		a.emitU32(uint32(imm))
	case r.Bits == 64 && imm <= 0xFFFFFFFF:
		// mov r32, imm32 zero-extends to 64 bits
		a.MovRegImm(r.Cvt32(), imm)
	case r.Bits == 64 && int64(imm) >= -2147483648 && int64(imm) <= 2147483647:
		a.emit(rexByte(true, false, false, r.Enc >= 8), 0xC7, modRM(0xC0, 0, r.Enc))
		a.emitU32(uint32(imm))
	case r.Bits == 64:
		a.emit(rexByte(true, false, false, r.Enc >= 8), 0xB8|byte(r.Enc&7))
		a.emitU64(imm)
	default:
		panic(fmt.Sprintf("x64: mov imm into %d-bit register", r.Bits))
	}
}

// MovRegMem: mov dst, [mem].
func (a *Assembler) MovRegMem(dst Reg, m Mem) {
	a.prefixRM(dst.Bits, dst.Enc, m)
	if dst.Bits == 8 {
		a.emit(0x8A)
	} else {
		a.emit(0x8B)
	}
	a.memOperand(dst.Enc, m)
}

// MovMemReg: mov [mem], src.
func (a *Assembler) MovMemReg(m Mem, src Reg) {
	a.prefixRM(src.Bits, src.Enc, m)
	if src.Bits == 8 {
		a.emit(0x88)
	} else {
		a.emit(0x89)
	}
	a.memOperand(src.Enc, m)
}

// MovzxRegReg: movzx dst, src8/16.
func (a *Assembler) MovzxRegReg(dst, src Reg) {
	a.extPrefix(dst, src)
	switch src.Bits {
	case 8:
		a.emit(0x0F, 0xB6, modRM(0xC0, dst.Enc, src.Enc))
	case 16:
		a.emit(0x0F, 0xB7, modRM(0xC0, dst.Enc, src.Enc))
	default:
		panic("x64: movzx source must be 8 or 16 bits")
	}
}

// MovsxRegReg: movsx dst, src8/16.
func (a *Assembler) MovsxRegReg(dst, src Reg) {
	a.extPrefix(dst, src)
	switch src.Bits {
	case 8:
		a.emit(0x0F, 0xBE, modRM(0xC0, dst.Enc, src.Enc))
	case 16:
		a.emit(0x0F, 0xBF, modRM(0xC0, dst.Enc, src.Enc))
	default:
		panic("x64: movsx source must be 8 or 16 bits")
	}
}

// MovsxdRegReg: movsxd dst64, src32.
func (a *Assembler) MovsxdRegReg(dst, src Reg) {
	a.emit(rexByte(true, dst.Enc >= 8, false, src.Enc >= 8), 0x63, modRM(0xC0, dst.Enc, src.Enc))
}

// extPrefix emits the REX prefix for movzx/movsx, forcing one for 8-bit
// sources that would otherwise select AH/CH/DH/BH.
func (a *Assembler) extPrefix(dst, src Reg) {
	w := dst.Bits == 64
	r := dst.Enc >= 8
	b := src.Enc >= 8
	need := w || r || b
	if src.Bits == 8 && src.Enc >= 4 && src.Enc < 8 {
		need = true
	}
	if need {
		a.emit(rexByte(w, r, false, b))
	}
}

// --- group-1 ALU ---

// alurr: r/m,r register form. op is the 32-bit opcode; the 8-bit form is op-1.
func (a *Assembler) alurr(op byte, dst, src Reg) {
	a.checkWidth(dst, src)
	a.prefixRR(dst.Bits, src.Enc, dst.Enc)
	if dst.Bits == 8 {
		op--
	}
	a.emit(op, modRM(0xC0, src.Enc, dst.Enc))
}

// aluro: r,r/m form for reg-or-mem sources. opRM is the r,r/m opcode.
func (a *Assembler) aluro(opRM byte, dst Reg, src Operand) {
	if !src.IsMem() {
		s := src.Reg()
		a.checkWidth(dst, s)
		a.prefixRR(dst.Bits, dst.Enc, s.Enc)
		a.emit(opRM, modRM(0xC0, dst.Enc, s.Enc))
		return
	}
	m := src.Mem()
	a.prefixRM(dst.Bits, dst.Enc, m)
	a.emit(opRM)
	a.memOperand(dst.Enc, m)
}

// aluri: r/m,imm form via the group-1 0x80/0x81/0x83 opcodes.
func (a *Assembler) aluri(digit byte, r Reg, imm int32) {
	a.prefixRR(r.Bits, 0, r.Enc)
	if r.Bits == 8 {
		a.emit(0x80, modRM(0xC0, GPR(digit), r.Enc), byte(imm))
		return
	}
	if imm >= -128 && imm <= 127 {
		a.emit(0x83, modRM(0xC0, GPR(digit), r.Enc), byte(imm))
	} else {
		a.emit(0x81, modRM(0xC0, GPR(digit), r.Enc))
		a.emitI32(imm)
	}
}

func (a *Assembler) AddRegReg(dst, src Reg)        { a.alurr(0x01, dst, src) }
func (a *Assembler) AddRegImm(r Reg, imm uint32)   { a.aluri(0, r, int32(imm)) }
func (a *Assembler) AddRegOp(dst Reg, op Operand)  { a.aluro(0x03, dst, op) }
func (a *Assembler) OrRegReg(dst, src Reg)         { a.alurr(0x09, dst, src) }
func (a *Assembler) OrRegImm(r Reg, imm uint32)    { a.aluri(1, r, int32(imm)) }
func (a *Assembler) OrRegOp(dst Reg, op Operand)   { a.aluro(0x0B, dst, op) }
func (a *Assembler) AdcRegImm(r Reg, imm uint32)   { a.aluri(2, r, int32(imm)) }
func (a *Assembler) AdcRegOp(dst Reg, op Operand)  { a.aluro(0x13, dst, op) }
func (a *Assembler) SbbRegImm(r Reg, imm uint32)   { a.aluri(3, r, int32(imm)) }
func (a *Assembler) SbbRegOp(dst Reg, op Operand)  { a.aluro(0x1B, dst, op) }
func (a *Assembler) AndRegReg(dst, src Reg)        { a.alurr(0x21, dst, src) }
func (a *Assembler) AndRegImm(r Reg, imm uint32)   { a.aluri(4, r, int32(imm)) }
func (a *Assembler) AndRegOp(dst Reg, op Operand)  { a.aluro(0x23, dst, op) }
func (a *Assembler) SubRegReg(dst, src Reg)        { a.alurr(0x29, dst, src) }
func (a *Assembler) SubRegImm(r Reg, imm uint32)   { a.aluri(5, r, int32(imm)) }
func (a *Assembler) SubRegOp(dst Reg, op Operand)  { a.aluro(0x2B, dst, op) }
func (a *Assembler) XorRegReg(dst, src Reg)        { a.alurr(0x31, dst, src) }
func (a *Assembler) XorRegImm(r Reg, imm uint32)   { a.aluri(6, r, int32(imm)) }
func (a *Assembler) XorRegOp(dst Reg, op Operand)  { a.aluro(0x33, dst, op) }
func (a *Assembler) CmpRegReg(left, right Reg)     { a.alurr(0x39, left, right) }
func (a *Assembler) CmpRegImm(r Reg, imm uint32)   { a.aluri(7, r, int32(imm)) }

// TestRegReg: test left, right.
func (a *Assembler) TestRegReg(left, right Reg) {
	a.checkWidth(left, right)
	a.prefixRR(left.Bits, right.Enc, left.Enc)
	if left.Bits == 8 {
		a.emit(0x84, modRM(0xC0, right.Enc, left.Enc))
	} else {
		a.emit(0x85, modRM(0xC0, right.Enc, left.Enc))
	}
}

// NotReg: not r (group 3 /2).
func (a *Assembler) NotReg(r Reg) {
	a.group3(2, r)
}

// NegReg: neg r (group 3 /3).
func (a *Assembler) NegReg(r Reg) {
	a.group3(3, r)
}

func (a *Assembler) group3(digit byte, r Reg) {
	a.prefixRR(r.Bits, 0, r.Enc)
	if r.Bits == 8 {
		a.emit(0xF6, modRM(0xC0, GPR(digit), r.Enc))
	} else {
		a.emit(0xF7, modRM(0xC0, GPR(digit), r.Enc))
	}
}

// --- shifts and rotates (group 2) ---

func (a *Assembler) shiftRI(digit byte, r Reg, imm uint8) {
	a.prefixRR(r.Bits, 0, r.Enc)
	if imm == 1 {
		a.emit(0xD1, modRM(0xC0, GPR(digit), r.Enc))
	} else {
		a.emit(0xC1, modRM(0xC0, GPR(digit), r.Enc), imm)
	}
}

func (a *Assembler) shiftRCL(digit byte, r Reg) {
	a.prefixRR(r.Bits, 0, r.Enc)
	a.emit(0xD3, modRM(0xC0, GPR(digit), r.Enc))
}

func (a *Assembler) RolRegImm(r Reg, imm uint8) { a.shiftRI(0, r, imm) }
func (a *Assembler) RorRegImm(r Reg, imm uint8) { a.shiftRI(1, r, imm) }
func (a *Assembler) RorRegCL(r Reg)             { a.shiftRCL(1, r) }
func (a *Assembler) ShlRegImm(r Reg, imm uint8) { a.shiftRI(4, r, imm) }
func (a *Assembler) ShlRegCL(r Reg)             { a.shiftRCL(4, r) }
func (a *Assembler) ShrRegImm(r Reg, imm uint8) { a.shiftRI(5, r, imm) }
func (a *Assembler) ShrRegCL(r Reg)             { a.shiftRCL(5, r) }
func (a *Assembler) SarRegImm(r Reg, imm uint8) { a.shiftRI(7, r, imm) }
func (a *Assembler) SarRegCL(r Reg)             { a.shiftRCL(7, r) }

// RcrReg1: rcr r, 1 (rotate through carry).
func (a *Assembler) RcrReg1(r Reg) {
	a.prefixRR(r.Bits, 0, r.Enc)
	a.emit(0xD1, modRM(0xC0, GPR(3), r.Enc))
}

// ShrdRegRegImm: shrd dst, src, imm8.
func (a *Assembler) ShrdRegRegImm(dst, src Reg, imm uint8) {
	a.checkWidth(dst, src)
	a.prefixRR(dst.Bits, src.Enc, dst.Enc)
	a.emit(0x0F, 0xAC, modRM(0xC0, src.Enc, dst.Enc), imm)
}

// BtRegImm: bt r, imm8.
func (a *Assembler) BtRegImm(r Reg, bit uint8) {
	a.prefixRR(r.Bits, GPR(4), r.Enc)
	a.emit(0x0F, 0xBA, modRM(0xC0, GPR(4), r.Enc), bit)
}

// --- flags ---

func (a *Assembler) Cmc()  { a.emit(0xF5) }
func (a *Assembler) Stc()  { a.emit(0xF9) }
func (a *Assembler) Lahf() { a.emit(0x9F) }
func (a *Assembler) Sahf() { a.emit(0x9E) }

// SetCC: setcc r8.
func (a *Assembler) SetCC(cc CC, r Reg) {
	if r.Bits != 8 {
		panic("x64: setcc needs an 8-bit register")
	}
	if r.Enc >= 4 {
		a.emit(rexByte(false, false, false, r.Enc >= 8))
	}
	a.emit(0x0F, 0x90|byte(cc), modRM(0xC0, 0, r.Enc))
}

// CmovCC: cmovcc dst, src.
func (a *Assembler) CmovCC(cc CC, dst, src Reg) {
	a.checkWidth(dst, src)
	a.prefixRR(dst.Bits, dst.Enc, src.Enc)
	a.emit(0x0F, 0x40|byte(cc), modRM(0xC0, dst.Enc, src.Enc))
}

// --- multiply / divide ---

// ImulRegOp: imul dst, r/m (two-operand form, low half).
func (a *Assembler) ImulRegOp(dst Reg, op Operand) {
	if !op.IsMem() {
		s := op.Reg()
		a.checkWidth(dst, s)
		a.prefixRR(dst.Bits, dst.Enc, s.Enc)
		a.emit(0x0F, 0xAF, modRM(0xC0, dst.Enc, s.Enc))
		return
	}
	m := op.Mem()
	a.prefixRM(dst.Bits, dst.Enc, m)
	a.emit(0x0F, 0xAF)
	a.memOperand(dst.Enc, m)
}

// ImulRegRegImm: imul dst, src, imm32.
func (a *Assembler) ImulRegRegImm(dst, src Reg, imm int32) {
	a.checkWidth(dst, src)
	a.prefixRR(dst.Bits, dst.Enc, src.Enc)
	if imm >= -128 && imm <= 127 {
		a.emit(0x6B, modRM(0xC0, dst.Enc, src.Enc), byte(imm))
	} else {
		a.emit(0x69, modRM(0xC0, dst.Enc, src.Enc))
		a.emitI32(imm)
	}
}

func (a *Assembler) group3Op(digit byte, op Operand) {
	if !op.IsMem() {
		a.group3(digit, op.Reg())
		return
	}
	m := op.Mem()
	a.prefixRM(m.Bits, 0, m)
	a.emit(0xF7)
	a.memOperand(GPR(digit), m)
}

// MulOp: mul r/m (unsigned, rdx:rax result).
func (a *Assembler) MulOp(op Operand) { a.group3Op(4, op) }

// ImulOp: imul r/m (one-operand signed form, rdx:rax result).
func (a *Assembler) ImulOp(op Operand) { a.group3Op(5, op) }

// DivOp: div r/m (unsigned divide of rdx:rax).
func (a *Assembler) DivOp(op Operand) { a.group3Op(6, op) }

// IdivOp: idiv r/m (signed divide of rdx:rax).
func (a *Assembler) IdivOp(op Operand) { a.group3Op(7, op) }

// Cdq: sign-extend eax into edx.
func (a *Assembler) Cdq() { a.emit(0x99) }

// Cqo: sign-extend rax into rdx.
func (a *Assembler) Cqo() { a.emit(0x48, 0x99) }

// --- bit scanning and byte order ---

// BswapReg: bswap r32/r64.
func (a *Assembler) BswapReg(r Reg) {
	w := r.Bits == 64
	if w || r.Enc >= 8 {
		a.emit(rexByte(w, false, false, r.Enc >= 8))
	}
	a.emit(0x0F, 0xC8|byte(r.Enc&7))
}

// BsrRegReg: bsr dst, src. The result is undefined for zero sources, but ZF
// is set, which the CLZ fallback relies on.
func (a *Assembler) BsrRegReg(dst, src Reg) {
	a.checkWidth(dst, src)
	a.prefixRR(dst.Bits, dst.Enc, src.Enc)
	a.emit(0x0F, 0xBD, modRM(0xC0, dst.Enc, src.Enc))
}

// LzcntRegReg: lzcnt dst, src (requires FeatureLZCNT).
func (a *Assembler) LzcntRegReg(dst, src Reg) {
	a.checkWidth(dst, src)
	a.emit(0xF3)
	w := dst.Bits == 64
	if w || dst.Enc >= 8 || src.Enc >= 8 {
		a.emit(rexByte(w, dst.Enc >= 8, false, src.Enc >= 8))
	}
	a.emit(0x0F, 0xBD, modRM(0xC0, dst.Enc, src.Enc))
}

// --- SSE ---

// MovqXmmReg: movq xmm, r64.
func (a *Assembler) MovqXmmReg(x XMM, r GPR) {
	a.emit(0x66, rexByte(true, x >= 8, false, r >= 8), 0x0F, 0x6E, modRM(0xC0, GPR(x), r))
}

// MovqXmmXmm: movq dst, src (zeroes the high lane of dst).
func (a *Assembler) MovqXmmXmm(dst, src XMM) {
	a.emit(0xF3)
	if dst >= 8 || src >= 8 {
		a.emit(rexByte(false, dst >= 8, false, src >= 8))
	}
	a.emit(0x0F, 0x7E, modRM(0xC0, GPR(dst), GPR(src)))
}

// MovqRegXmm: movq r64, xmm.
func (a *Assembler) MovqRegXmm(r GPR, x XMM) {
	a.emit(0x66, rexByte(true, x >= 8, false, r >= 8), 0x0F, 0x7E, modRM(0xC0, GPR(x), r))
}

// PinsrqXmmRegImm: pinsrq xmm, r64, lane (requires FeatureSSE41).
func (a *Assembler) PinsrqXmmRegImm(x XMM, r GPR, lane uint8) {
	a.emit(0x66, rexByte(true, x >= 8, false, r >= 8), 0x0F, 0x3A, 0x22, modRM(0xC0, GPR(x), r), lane)
}

// PunpcklqdqXmmXmm: punpcklqdq dst, src.
func (a *Assembler) PunpcklqdqXmmXmm(dst, src XMM) {
	a.emit(0x66)
	if dst >= 8 || src >= 8 {
		a.emit(rexByte(false, dst >= 8, false, src >= 8))
	}
	a.emit(0x0F, 0x6C, modRM(0xC0, GPR(dst), GPR(src)))
}

// --- misc ---

func (a *Assembler) Ret()  { a.emit(0xC3) }
func (a *Assembler) Nop()  { a.emit(0x90) }
func (a *Assembler) Int3() { a.emit(0xCC) }

func (a *Assembler) checkWidth(x, y Reg) {
	if x.Bits != y.Bits {
		panic(fmt.Sprintf("x64: operand width mismatch: %s vs %s", x, y))
	}
}
