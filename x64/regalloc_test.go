package x64

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/dynarec/ir"
)

func newTestRegAlloc() *RegAlloc {
	return NewRegAlloc(NewAssembler(Config{}), DefaultLayout(), 0)
}

func TestRegAllocDoubleDefinePanics(t *testing.T) {
	b := ir.NewBlock()
	v := b.Append(ir.GetRegister, ir.Imm8(0))

	ra := newTestRegAlloc()
	r := ra.ScratchGpr()
	ra.DefineValue(v.Inst(), r)
	assert.Panics(t, func() { ra.DefineValue(v.Inst(), r) })
}

func TestRegAllocUseOfUndefinedPanics(t *testing.T) {
	b := ir.NewBlock()
	r0 := b.Append(ir.GetRegister, ir.Imm8(0))
	add := b.Append(ir.Add64, r0, r0, ir.Imm1(false))

	ra := newTestRegAlloc()
	args := ra.GetArgumentInfo(add.Inst())
	assert.Panics(t, func() { ra.UseGpr(args[0]) })
}

func TestRegAllocUsePastUseCountPanics(t *testing.T) {
	b := ir.NewBlock()
	r0 := b.Append(ir.GetRegister, ir.Imm8(0))
	use := b.Append(ir.Not64, r0)

	ra := newTestRegAlloc()
	ra.DefineValue(r0.Inst(), ra.ScratchGpr())
	ra.EndOfAllocScope()

	args := ra.GetArgumentInfo(use.Inst())
	ra.UseGpr(args[0])
	// A second emitter claiming the same operand again exceeds the use count.
	args2 := ra.GetArgumentInfo(use.Inst())
	assert.Panics(t, func() { ra.UseGpr(args2[0]) })
}

func TestRegAllocLockedLocationPanics(t *testing.T) {
	ra := newTestRegAlloc()
	ra.ScratchGpr(LocACC)
	assert.Panics(t, func() { ra.ScratchGpr(LocACC) })
}

func TestRegAllocScratchReleasedAtScopeEnd(t *testing.T) {
	ra := newTestRegAlloc()
	first := ra.ScratchGpr()
	ra.EndOfAllocScope()
	second := ra.ScratchGpr()
	assert.Equal(t, first.Enc, second.Enc)
}

func TestRegAllocValueDiesAfterLastUse(t *testing.T) {
	b := ir.NewBlock()
	r0 := b.Append(ir.GetRegister, ir.Imm8(0))
	use := b.Append(ir.Not64, r0)
	b.Append(ir.SetRegister, ir.Imm8(1), use) // keep the Not64 result live

	ra := newTestRegAlloc()
	ra.DefineValue(r0.Inst(), ra.ScratchGpr())
	ra.EndOfAllocScope()
	require.Equal(t, 1, ra.LiveValues())

	args := ra.GetArgumentInfo(use.Inst())
	got := ra.UseScratchGpr(args[0])
	ra.DefineValue(use.Inst(), got)
	ra.EndOfAllocScope()

	// r0 died with its last use; only the Not64 result remains live.
	assert.Equal(t, 1, ra.LiveValues())
}

func TestRegAllocLastUseHandsRegisterOver(t *testing.T) {
	b := ir.NewBlock()
	r0 := b.Append(ir.GetRegister, ir.Imm8(0))
	use := b.Append(ir.Not64, r0)

	ra := newTestRegAlloc()
	home := ra.ScratchGpr()
	ra.DefineValue(r0.Inst(), home)
	ra.EndOfAllocScope()

	args := ra.GetArgumentInfo(use.Inst())
	got := ra.UseScratchGpr(args[0])
	// Last use: no copy, the emitter may clobber the value's own register.
	assert.Equal(t, home.Enc, got.Enc)
}

func TestRegAllocCopiesWhenValueStillLive(t *testing.T) {
	b := ir.NewBlock()
	r0 := b.Append(ir.GetRegister, ir.Imm8(0))
	first := b.Append(ir.Not64, r0)
	b.Append(ir.Eor64, first, r0)

	ra := newTestRegAlloc()
	home := ra.ScratchGpr()
	ra.DefineValue(r0.Inst(), home)
	ra.EndOfAllocScope()

	args := ra.GetArgumentInfo(first.Inst())
	got := ra.UseScratchGpr(args[0])
	// r0 has another use pending, so the scratch must be a copy.
	assert.NotEqual(t, home.Enc, got.Enc)
}

func TestRegAllocUnusedArgConsumedAtScopeEnd(t *testing.T) {
	b := ir.NewBlock()
	r0 := b.Append(ir.GetRegister, ir.Imm8(0))
	shift := b.Append(ir.LogicalShiftLeft32, r0, ir.Imm8(1), ir.Imm1(false))
	_ = shift

	ra := newTestRegAlloc()
	ra.DefineValue(r0.Inst(), ra.ScratchGpr())
	ra.EndOfAllocScope()

	// The emitter looks at the operand list but acquires nothing.
	ra.GetArgumentInfo(shift.Inst())
	ra.EndOfAllocScope()

	assert.Equal(t, 0, ra.LiveValues())
}

func TestRegAllocSpillsWhenOutOfRegisters(t *testing.T) {
	b := ir.NewBlock()
	var insts []*ir.Inst
	for i := 0; i < len(gprAllocOrder)+2; i++ {
		v := b.Append(ir.GetRegister, ir.Imm8(uint8(i)))
		b.Append(ir.SetRegister, ir.Imm8(15), v) // keep each value live
		insts = append(insts, v.Inst())
	}

	code := NewAssembler(Config{})
	ra := NewRegAlloc(code, DefaultLayout(), 0)
	for _, inst := range insts {
		ra.DefineValue(inst, ra.ScratchGpr())
		ra.EndOfAllocScope()
	}
	// More live values than allocatable registers: something must have been
	// spilled, and every value must still be reachable.
	assert.Equal(t, len(insts), ra.LiveValues())
	assert.NotEmpty(t, code.Bytes())
}
