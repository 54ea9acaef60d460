package x64

// Guest-flag capture and restore form one codec and live together in this
// file: the pack sequence below must stay the exact inverse of the
// lahf/seto capture the arithmetic emitters use, and the restore sequence the
// exact inverse of the pack.
//
// After `lahf; seto al`, eax holds N in bit 15, Z in bit 14, C in bit 8 and V
// in bit 0. The packed form keeps the guest nibble left-aligned in a 32-bit
// word: N bit 31, Z bit 30, C bit 29, V bit 28.

const (
	// captured-flag bits that matter: SF, ZF (AH bits 7,6), CF (AH bit 0),
	// OF (AL bit 0)
	nzcvCaptureMask = 0xC101
	// one multiply routes each captured bit to its packed position:
	// 15->31, 14->30, 8->29, 0->28
	nzcvPackMultiplier = 0x10210000
	// inverse direction for sahf: nibble bits 3..0 to SF (15), ZF (14),
	// CF (8) and OF staging in al bit 0
	nzcvRestoreMultiplier = 0x1081
)

// emitPackNZCV converts a captured lahf/seto word in r (32-bit) into the
// packed left-aligned form.
func emitPackNZCV(code *Assembler, r Reg) {
	code.AndRegImm(r, nzcvCaptureMask)
	code.ImulRegRegImm(r, r, nzcvPackMultiplier)
	code.AndRegImm(r, 0xF0000000)
}

// emitRestoreNZCV synthesizes host SF/ZF/CF/OF from a packed NZCV word. The
// register must be eax: sahf consumes AH, and the OF trick stages through AL.
func emitRestoreNZCV(code *Assembler, r Reg) {
	if r.Enc != RAX {
		panic("x64: NZCV restore requires eax")
	}
	code.ShrRegImm(r, 28)
	code.ImulRegRegImm(r, r, nzcvRestoreMultiplier)
	code.AndRegImm(r.Cvt8(), 1)
	code.AddRegImm(r.Cvt8(), 0x7F) // restore OF
	code.Sahf()                    // restore SF, ZF, CF
}
