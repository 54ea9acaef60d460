package x64

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"
)

// decodeAll decodes the assembled buffer and fails on anything x86asm cannot
// digest, so every encoder is at least well-formed.
func decodeAll(t *testing.T, code []byte) []x86asm.Inst {
	t.Helper()
	var insts []x86asm.Inst
	offset := 0
	for offset < len(code) {
		inst, err := x86asm.Decode(code[offset:], 64)
		require.NoErrorf(t, err, "undecodable byte %#02x at offset %d in\n%s", code[offset], offset, Disassemble(code))
		insts = append(insts, inst)
		offset += inst.Len
	}
	return insts
}

func TestAssemblerExactEncodings(t *testing.T) {
	cases := []struct {
		name string
		emit func(a *Assembler)
		want []byte
	}{
		{"mov rbx, rax", func(a *Assembler) { a.MovRegReg(RBX.Reg(), RAX.Reg()) }, []byte{0x48, 0x89, 0xC3}},
		{"mov ebx, eax", func(a *Assembler) { a.MovRegReg(RBX.Reg().Cvt32(), RAX.Reg().Cvt32()) }, []byte{0x89, 0xC3}},
		{"mov r10, r8", func(a *Assembler) { a.MovRegReg(R10.Reg(), R8.Reg()) }, []byte{0x4D, 0x89, 0xC2}},
		{"add eax, 1", func(a *Assembler) { a.AddRegImm(RAX.Reg().Cvt32(), 1) }, []byte{0x83, 0xC0, 0x01}},
		{"add rax, 0x1000", func(a *Assembler) { a.AddRegImm(RAX.Reg(), 0x1000) }, []byte{0x48, 0x81, 0xC0, 0x00, 0x10, 0x00, 0x00}},
		{"shl ecx, 5", func(a *Assembler) { a.ShlRegImm(RCX.Reg().Cvt32(), 5) }, []byte{0xC1, 0xE1, 0x05}},
		{"shl rdx, 1", func(a *Assembler) { a.ShlRegImm(RDX.Reg(), 1) }, []byte{0x48, 0xD1, 0xE2}},
		{"shr rsi, cl", func(a *Assembler) { a.ShrRegCL(RSI.Reg()) }, []byte{0x48, 0xD3, 0xEE}},
		{"rcr eax, 1", func(a *Assembler) { a.RcrReg1(RAX.Reg().Cvt32()) }, []byte{0xD1, 0xD8}},
		{"shrd eax, ebx, 4", func(a *Assembler) { a.ShrdRegRegImm(RAX.Reg().Cvt32(), RBX.Reg().Cvt32(), 4) }, []byte{0x0F, 0xAC, 0xD8, 0x04}},
		{"bt eax, 0", func(a *Assembler) { a.BtRegImm(RAX.Reg().Cvt32(), 0) }, []byte{0x0F, 0xBA, 0xE0, 0x00}},
		{"setb cl", func(a *Assembler) { a.SetCC(CCB, RCX.Reg().Cvt8()) }, []byte{0x0F, 0x92, 0xC1}},
		{"setb sil", func(a *Assembler) { a.SetCC(CCB, RSI.Reg().Cvt8()) }, []byte{0x40, 0x0F, 0x92, 0xC6}},
		{"seto al", func(a *Assembler) { a.SetCC(CCO, RAX.Reg().Cvt8()) }, []byte{0x0F, 0x90, 0xC0}},
		{"cmovz eax, ebx", func(a *Assembler) { a.CmovCC(CCZ, RAX.Reg().Cvt32(), RBX.Reg().Cvt32()) }, []byte{0x0F, 0x44, 0xC3}},
		{"lahf", func(a *Assembler) { a.Lahf() }, []byte{0x9F}},
		{"sahf", func(a *Assembler) { a.Sahf() }, []byte{0x9E}},
		{"cmc", func(a *Assembler) { a.Cmc() }, []byte{0xF5}},
		{"stc", func(a *Assembler) { a.Stc() }, []byte{0xF9}},
		{"cqo", func(a *Assembler) { a.Cqo() }, []byte{0x48, 0x99}},
		{"div rcx", func(a *Assembler) { a.DivOp(RegOperand(RCX.Reg())) }, []byte{0x48, 0xF7, 0xF1}},
		{"idiv ecx", func(a *Assembler) { a.IdivOp(RegOperand(RCX.Reg().Cvt32())) }, []byte{0xF7, 0xF9}},
		{"bswap rdx", func(a *Assembler) { a.BswapReg(RDX.Reg()) }, []byte{0x48, 0x0F, 0xCA}},
		{"bswap ebx", func(a *Assembler) { a.BswapReg(RBX.Reg().Cvt32()) }, []byte{0x0F, 0xCB}},
		{"lzcnt eax, ecx", func(a *Assembler) { a.LzcntRegReg(RAX.Reg().Cvt32(), RCX.Reg().Cvt32()) }, []byte{0xF3, 0x0F, 0xBD, 0xC1}},
		{"bsr eax, ecx", func(a *Assembler) { a.BsrRegReg(RAX.Reg().Cvt32(), RCX.Reg().Cvt32()) }, []byte{0x0F, 0xBD, 0xC1}},
		{"movsxd rax, eax", func(a *Assembler) { a.MovsxdRegReg(RAX.Reg(), RAX.Reg().Cvt32()) }, []byte{0x48, 0x63, 0xC0}},
		{"movzx eax, al", func(a *Assembler) { a.MovzxRegReg(RAX.Reg().Cvt32(), RAX.Reg().Cvt8()) }, []byte{0x0F, 0xB6, 0xC0}},
		{"movzx ecx, cl", func(a *Assembler) { a.MovzxRegReg(RCX.Reg().Cvt32(), RCX.Reg().Cvt8()) }, []byte{0x0F, 0xB6, 0xC9}},
		{"rol ax, 8", func(a *Assembler) { a.RolRegImm(RAX.Reg().Cvt16(), 8) }, []byte{0x66, 0xC1, 0xC0, 0x08}},
		{"mov eax, [r15+28]", func(a *Assembler) { a.MovRegMem(RAX.Reg().Cvt32(), Mem{Base: R15, Disp: 28, Bits: 32}) }, []byte{0x41, 0x8B, 0x47, 0x1C}},
		{"mov [r15+8], rcx", func(a *Assembler) { a.MovMemReg(Mem{Base: R15, Disp: 8, Bits: 64}, RCX.Reg()) }, []byte{0x49, 0x89, 0x4F, 0x08}},
		{"movq xmm1, rax", func(a *Assembler) { a.MovqXmmReg(XMM1, RAX) }, []byte{0x66, 0x48, 0x0F, 0x6E, 0xC8}},
		{"movq rax, xmm1", func(a *Assembler) { a.MovqRegXmm(RAX, XMM1) }, []byte{0x66, 0x48, 0x0F, 0x7E, 0xC8}},
		{"pinsrq xmm1, rdx, 1", func(a *Assembler) { a.PinsrqXmmRegImm(XMM1, RDX, 1) }, []byte{0x66, 0x48, 0x0F, 0x3A, 0x22, 0xCA, 0x01}},
		{"punpcklqdq xmm0, xmm1", func(a *Assembler) { a.PunpcklqdqXmmXmm(XMM0, XMM1) }, []byte{0x66, 0x0F, 0x6C, 0xC1}},
		{"movq xmm2, xmm3", func(a *Assembler) { a.MovqXmmXmm(XMM2, XMM3) }, []byte{0xF3, 0x0F, 0x7E, 0xD3}},
		{"not r9", func(a *Assembler) { a.NotReg(R9.Reg()) }, []byte{0x49, 0xF7, 0xD1}},
		{"neg eax", func(a *Assembler) { a.NegReg(RAX.Reg().Cvt32()) }, []byte{0xF7, 0xD8}},
		{"and al, 1", func(a *Assembler) { a.AndRegImm(RAX.Reg().Cvt8(), 1) }, []byte{0x80, 0xE0, 0x01}},
		{"add al, 0x7f", func(a *Assembler) { a.AddRegImm(RAX.Reg().Cvt8(), 0x7F) }, []byte{0x80, 0xC0, 0x7F}},
		{"cmp cl, 32", func(a *Assembler) { a.CmpRegImm(RCX.Reg().Cvt8(), 32) }, []byte{0x80, 0xF9, 0x20}},
		{"test cl, cl", func(a *Assembler) { a.TestRegReg(RCX.Reg().Cvt8(), RCX.Reg().Cvt8()) }, []byte{0x84, 0xC9}},
		{"imul eax, eax, 0x1081", func(a *Assembler) { a.ImulRegRegImm(RAX.Reg().Cvt32(), RAX.Reg().Cvt32(), 0x1081) }, []byte{0x69, 0xC0, 0x81, 0x10, 0x00, 0x00}},
		{"mul qword [r15+16]", func(a *Assembler) { a.MulOp(MemOperand(Mem{Base: R15, Disp: 16, Bits: 64})) }, []byte{0x49, 0xF7, 0x67, 0x10}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAssembler(Config{})
			tc.emit(a)
			assert.Equal(t, tc.want, a.Bytes())
			decodeAll(t, a.Bytes())
		})
	}
}

func TestAssemblerImmediates(t *testing.T) {
	a := NewAssembler(Config{})
	a.MovRegImm(RAX.Reg(), 42)
	a.MovRegImm(RBX.Reg(), 0xFFFFFFFFFFFFFFFF)
	a.MovRegImm(RCX.Reg().Cvt32(), 0xDEADBEEF)
	a.MovRegImm(R8.Reg(), 0x123456789A)

	insts := decodeAll(t, a.Bytes())
	require.Len(t, insts, 4)
	for _, inst := range insts {
		assert.Equal(t, x86asm.MOV, inst.Op)
	}
}

func TestAssemblerMemOperandForms(t *testing.T) {
	bases := []GPR{RAX, RBX, RSI, R8, R12, R13, R15}
	disps := []int32{0, 8, 127, 128, 4096}
	a := NewAssembler(Config{})
	n := 0
	for _, base := range bases {
		for _, disp := range disps {
			a.MovRegMem(RAX.Reg(), Mem{Base: base, Disp: disp, Bits: 64})
			a.MovMemReg(Mem{Base: base, Disp: disp, Bits: 64}, RCX.Reg())
			n += 2
		}
	}
	insts := decodeAll(t, a.Bytes())
	require.Len(t, insts, n)
	for _, inst := range insts {
		assert.Equal(t, x86asm.MOV, inst.Op)
	}
}

func TestAssemblerLocalLabels(t *testing.T) {
	a := NewAssembler(Config{})
	a.InLocalLabel()
	a.Jcc(CCZ, ".end")
	a.Nop()
	a.L(".end")
	a.OutLocalLabel()

	// jz rel32 over one nop
	assert.Equal(t, []byte{0x0F, 0x84, 0x01, 0x00, 0x00, 0x00, 0x90}, a.Bytes())
}

func TestAssemblerBackwardLabel(t *testing.T) {
	a := NewAssembler(Config{})
	a.InLocalLabel()
	a.L(".top")
	a.Nop()
	a.Jmp(".top")
	a.OutLocalLabel()

	// jmp rel32 back over itself and the nop
	assert.Equal(t, []byte{0x90, 0xE9, 0xFA, 0xFF, 0xFF, 0xFF}, a.Bytes())
}

func TestAssemblerUnresolvedLabelPanics(t *testing.T) {
	a := NewAssembler(Config{})
	a.InLocalLabel()
	a.Jmp(".nowhere")
	assert.Panics(t, func() { a.OutLocalLabel() })
}

func TestAssemblerWidthMismatchPanics(t *testing.T) {
	a := NewAssembler(Config{})
	assert.Panics(t, func() { a.MovRegReg(RAX.Reg(), RBX.Reg().Cvt32()) })
}
