package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockUseCounts(t *testing.T) {
	b := NewBlock()
	r0 := b.Append(GetRegister, Imm8(0))
	sum := b.Append(Add32, r0, r0, Imm1(false))
	b.Append(SetRegister, Imm8(1), sum)

	assert.Equal(t, 2, r0.Inst().Uses())
	assert.Equal(t, 1, sum.Inst().Uses())
}

func TestBlockPseudoAssociation(t *testing.T) {
	b := NewBlock()
	r0 := b.Append(GetRegister, Imm8(0))
	sum := b.Append(Add32, r0, Imm32(1), Imm1(false))
	carry := b.Append(GetCarryFromOp, sum)
	overflow := b.Append(GetOverflowFromOp, sum)

	primary := sum.Inst()
	assert.Same(t, carry.Inst(), primary.AssociatedPseudo(GetCarryFromOp))
	assert.Same(t, overflow.Inst(), primary.AssociatedPseudo(GetOverflowFromOp))
	assert.Nil(t, primary.AssociatedPseudo(GetNZCVFromOp))

	// A pseudo attachment is not a use of the primary.
	assert.Equal(t, 0, primary.Uses())

	carry.Inst().Erase()
	assert.Nil(t, primary.AssociatedPseudo(GetCarryFromOp))
	assert.Panics(t, func() { carry.Inst().Erase() })
}

func TestBlockDuplicatePseudoPanics(t *testing.T) {
	b := NewBlock()
	r0 := b.Append(GetRegister, Imm8(0))
	sum := b.Append(Add32, r0, Imm32(1), Imm1(false))
	b.Append(GetCarryFromOp, sum)
	assert.Panics(t, func() { b.Append(GetCarryFromOp, sum) })
}

func TestBlockArityChecks(t *testing.T) {
	b := NewBlock()
	assert.Panics(t, func() { b.Append(Add32, Imm32(1), Imm32(2)) })
	assert.Panics(t, func() { b.Append(Not32) })
	assert.Panics(t, func() { b.Append(GetCarryFromOp, Imm32(1)) })
}

func TestValueImmediates(t *testing.T) {
	v := Imm32(0xFFFFFFFF)
	require.True(t, v.IsImmediate())
	assert.Equal(t, uint32(0xFFFFFFFF), v.ImmU32())

	w := Imm64(0xFFFFFFFF80000000)
	assert.True(t, w.FitsInImmediateS32())
	assert.True(t, Imm64(100).FitsInImmediateS32())
	x := Imm64(0x100000000)
	assert.False(t, x.FitsInImmediateS32())
	assert.False(t, Imm64(0xFFFFFFFF).FitsInImmediateS32())

	assert.Panics(t, func() { Imm32(1).ImmCond() })
	assert.Panics(t, func() { Value{}.Imm() })
}
