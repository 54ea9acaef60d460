package x64

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/cpuid/v2"
)

// GPR is an x86-64 general-purpose register encoding.
type GPR uint8

const (
	RAX GPR = 0
	RCX GPR = 1
	RDX GPR = 2
	RBX GPR = 3
	RSP GPR = 4
	RBP GPR = 5
	RSI GPR = 6
	RDI GPR = 7
	R8  GPR = 8
	R9  GPR = 9
	R10 GPR = 10
	R11 GPR = 11
	R12 GPR = 12
	R13 GPR = 13
	R14 GPR = 14
	R15 GPR = 15
)

// XMM is an SSE register encoding.
type XMM uint8

const (
	XMM0 XMM = iota
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
	XMM8
	XMM9
	XMM10
	XMM11
	XMM12
	XMM13
	XMM14
	XMM15
)

// Reg is a register operand with an explicit operand width.
type Reg struct {
	Enc  GPR
	Bits uint8 // 8, 16, 32, 64
}

func (g GPR) Reg() Reg { return Reg{g, 64} }

// Cvt8/Cvt16/Cvt32/Cvt64 return the same register at another width.
func (r Reg) Cvt8() Reg  { return Reg{r.Enc, 8} }
func (r Reg) Cvt16() Reg { return Reg{r.Enc, 16} }
func (r Reg) Cvt32() Reg { return Reg{r.Enc, 32} }
func (r Reg) Cvt64() Reg { return Reg{r.Enc, 64} }

// ChangeBits returns the register at the given width.
func (r Reg) ChangeBits(bits uint8) Reg { return Reg{r.Enc, bits} }

func (r Reg) String() string {
	return fmt.Sprintf("%s.%d", gprNames[r.Enc], r.Bits)
}

// Mem is a [base + disp] memory operand.
type Mem struct {
	Base GPR
	Disp int32
	Bits uint8
}

// Operand is a register-or-memory host operand.
type Operand struct {
	isMem bool
	reg   Reg
	mem   Mem
}

func RegOperand(r Reg) Operand { return Operand{reg: r} }
func MemOperand(m Mem) Operand { return Operand{isMem: true, mem: m} }
func (o Operand) IsMem() bool  { return o.isMem }
func (o Operand) Reg() Reg     { return o.reg }
func (o Operand) Mem() Mem     { return o.mem }

// ChangeBits returns the operand at the given width.
func (o Operand) ChangeBits(bits uint8) Operand {
	if o.isMem {
		o.mem.Bits = bits
	} else {
		o.reg.Bits = bits
	}
	return o
}

func (o Operand) bits() uint8 {
	if o.isMem {
		return o.mem.Bits
	}
	return o.reg.Bits
}

// CC is an x86 condition-code nibble (the low nibble of Jcc/SETcc/CMOVcc
// opcodes).
type CC uint8

const (
	CCO  CC = 0x0 // overflow
	CCNO CC = 0x1
	CCB  CC = 0x2 // below / carry
	CCNB CC = 0x3 // not below / not carry
	CCZ  CC = 0x4
	CCNZ CC = 0x5
	CCNA CC = 0x6 // below or equal
	CCA  CC = 0x7 // above
	CCS  CC = 0x8 // sign
	CCNS CC = 0x9
	CCL  CC = 0xC // less (signed)
	CCGE CC = 0xD
	CCLE CC = 0xE
	CCG  CC = 0xF
)

// Feature is a host CPU capability the emitters may branch on.
type Feature uint8

const (
	FeatureSSE41 Feature = iota
	FeatureLZCNT
)

// Config carries backend options. Feature disables force the fallback paths
// regardless of what the host supports, which the tests rely on.
type Config struct {
	DisableSSE41 bool
	DisableLZCNT bool
	SpillSlots   int // 0 means the JitState default
}

// Assembler appends encoded x86-64 instructions to a code buffer and tracks
// local labels within an emitter region.
type Assembler struct {
	buf   []byte
	cfg   Config
	scope *labelScope
}

func NewAssembler(cfg Config) *Assembler {
	return &Assembler{cfg: cfg}
}

// Bytes returns the assembled code.
func (a *Assembler) Bytes() []byte {
	return a.buf
}

// Len returns the current write position.
func (a *Assembler) Len() int {
	return len(a.buf)
}

// CPUSupports answers host feature queries, honoring config overrides.
func (a *Assembler) CPUSupports(f Feature) bool {
	switch f {
	case FeatureSSE41:
		return !a.cfg.DisableSSE41 && cpuid.CPU.Supports(cpuid.SSE4)
	case FeatureLZCNT:
		return !a.cfg.DisableLZCNT && cpuid.CPU.Supports(cpuid.LZCNT)
	default:
		panic(fmt.Sprintf("x64: unknown feature %d", f))
	}
}

func (a *Assembler) emit(bytes ...byte) {
	a.buf = append(a.buf, bytes...)
}

func (a *Assembler) emitU32(v uint32) {
	a.buf = binary.LittleEndian.AppendUint32(a.buf, v)
}

func (a *Assembler) emitU64(v uint64) {
	a.buf = binary.LittleEndian.AppendUint64(a.buf, v)
}

func (a *Assembler) emitI32(v int32) {
	a.emitU32(uint32(v))
}

// rexByte builds a REX prefix: 0100WRXB.
func rexByte(w, r, x, b bool) byte {
	var prefix byte = 0x40
	if w {
		prefix |= 0x08
	}
	if r {
		prefix |= 0x04
	}
	if x {
		prefix |= 0x02
	}
	if b {
		prefix |= 0x01
	}
	return prefix
}

// prefixRR emits operand-size and REX prefixes for a reg(reg-field),
// rm(rm-field) register form of the given width. For 8-bit operands a REX is
// forced whenever either register needs the SPL/BPL/SIL/DIL encodings.
func (a *Assembler) prefixRR(bits uint8, reg, rm GPR) {
	if bits == 16 {
		a.emit(0x66)
	}
	w := bits == 64
	r := reg >= 8
	b := rm >= 8
	need := w || r || b
	if bits == 8 && (reg&7 >= 4 && reg < 8 || rm&7 >= 4 && rm < 8) {
		need = true
	}
	if need {
		a.emit(rexByte(w, r, false, b))
	}
}

// prefixRM emits prefixes for a reg, [mem] form.
func (a *Assembler) prefixRM(bits uint8, reg GPR, m Mem) {
	if bits == 16 {
		a.emit(0x66)
	}
	w := bits == 64
	r := reg >= 8
	b := m.Base >= 8
	need := w || r || b
	if bits == 8 && reg&7 >= 4 && reg < 8 {
		need = true
	}
	if need {
		a.emit(rexByte(w, r, false, b))
	}
}

// modRM builds a ModR/M byte: [mod:2][reg:3][rm:3]. mod is pre-shifted.
func modRM(mod byte, reg, rm GPR) byte {
	return mod | (byte(reg)&7)<<3 | byte(rm)&7
}

// memOperand emits ModR/M, SIB and displacement for [base + disp]. RSP/R12
// bases need a SIB byte; RBP/R13 bases cannot use the disp-less form.
func (a *Assembler) memOperand(reg GPR, m Mem) {
	base := m.Base
	disp := m.Disp
	if base&7 == 4 {
		switch {
		case disp == 0:
			a.emit(modRM(0x00, reg, RSP), 0x24)
		case disp >= -128 && disp <= 127:
			a.emit(modRM(0x40, reg, RSP), 0x24, byte(disp))
		default:
			a.emit(modRM(0x80, reg, RSP), 0x24)
			a.emitI32(disp)
		}
		return
	}
	switch {
	case disp == 0 && base&7 != 5:
		a.emit(modRM(0x00, reg, base))
	case disp >= -128 && disp <= 127:
		a.emit(modRM(0x40, reg, base), byte(disp))
	default:
		a.emit(modRM(0x80, reg, base))
		a.emitI32(disp)
	}
}

// --- local labels ---

type labelFixup struct {
	pos  int // offset of the rel32 field
	name string
}

type labelScope struct {
	prev   *labelScope
	labels map[string]int
	fixups []labelFixup
}

// InLocalLabel opens a local-label scope around one emitter region.
func (a *Assembler) InLocalLabel() {
	a.scope = &labelScope{prev: a.scope, labels: make(map[string]int)}
}

// OutLocalLabel resolves every reference made in the scope and closes it.
func (a *Assembler) OutLocalLabel() {
	s := a.scope
	if s == nil {
		panic("x64: OutLocalLabel without InLocalLabel")
	}
	for _, f := range s.fixups {
		target, ok := s.labels[f.name]
		if !ok {
			panic(fmt.Sprintf("x64: unresolved local label %q", f.name))
		}
		binary.LittleEndian.PutUint32(a.buf[f.pos:], uint32(int32(target-(f.pos+4))))
	}
	a.scope = s.prev
}

// L binds a local label at the current position.
func (a *Assembler) L(name string) {
	if a.scope == nil {
		panic("x64: label outside local-label scope")
	}
	if _, dup := a.scope.labels[name]; dup {
		panic(fmt.Sprintf("x64: duplicate local label %q", name))
	}
	a.scope.labels[name] = len(a.buf)
}

func (a *Assembler) labelRef(name string) {
	if a.scope == nil {
		panic("x64: label reference outside local-label scope")
	}
	a.scope.fixups = append(a.scope.fixups, labelFixup{pos: len(a.buf), name: name})
	a.emitU32(0)
}

// Jmp jumps to a local label (rel32 form).
func (a *Assembler) Jmp(name string) {
	a.emit(0xE9)
	a.labelRef(name)
}

// Jcc jumps to a local label if the condition holds (rel32 form).
func (a *Assembler) Jcc(cc CC, name string) {
	a.emit(0x0F, 0x80|byte(cc))
	a.labelRef(name)
}
