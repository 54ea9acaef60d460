package x64

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/dynarec/ir"
)

func compileOK(t *testing.T, cfg Config, build func(b *ir.Block)) []byte {
	t.Helper()
	b := ir.NewBlock()
	build(b)
	code, err := NewEmitX64(cfg).CompileBlock(b)
	require.NoError(t, err)
	require.NotEmpty(t, code)
	decodeAll(t, code)
	return code
}

// Every emitter of the integer data-processing family compiles, on both the
// preferred and the fallback feature paths. Sub32 and the MaxSigned64,
// MaxUnsigned32, MinSigned32 and MinUnsigned64 variants are not appended;
// their emitters are reached through the other widths and signedness.
func TestCompileAllOpcodes(t *testing.T) {
	configs := map[string]Config{
		"native":   {},
		"fallback": {DisableSSE41: true, DisableLZCNT: true},
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			compileOK(t, cfg, func(b *ir.Block) {
				r0 := b.Append(ir.GetRegister, ir.Imm8(0))
				r1 := b.Append(ir.GetRegister, ir.Imm8(1))

				w0 := b.Append(ir.LeastSignificantWord, r0)
				w1 := b.Append(ir.LeastSignificantWord, r1)

				packed := b.Append(ir.Pack2x32To1x64, w0, w1)
				b.Append(ir.Pack2x64To1x128, packed, r1)
				b.Append(ir.ZeroExtendLongToQuad, r0)

				msw := b.Append(ir.MostSignificantWord, packed)
				mswCarry := b.Append(ir.GetCarryFromOp, msw)
				b.Append(ir.SetRegister, ir.Imm8(2), b.Append(ir.ZeroExtendWordToLong, msw))
				b.Append(ir.SetRegister, ir.Imm8(3), mswCarry)

				half := b.Append(ir.LeastSignificantHalf, w0)
				byteV := b.Append(ir.LeastSignificantByte, w0)
				msb := b.Append(ir.MostSignificantBit, w0)
				zero32 := b.Append(ir.IsZero32, w0)
				zero64 := b.Append(ir.IsZero64, r0)
				tb := b.Append(ir.TestBit, r0, ir.Imm8(17))
				ext32 := b.Append(ir.ExtractRegister32, w0, w1, ir.Imm8(12))
				ext64 := b.Append(ir.ExtractRegister64, r0, r1, ir.Imm8(24))

				sum := b.Append(ir.Add32, w0, w1, ir.Imm1(false))
				sumC := b.Append(ir.GetCarryFromOp, sum)
				sumV := b.Append(ir.GetOverflowFromOp, sum)
				sumNZCV := b.Append(ir.GetNZCVFromOp, sum)
				b.Append(ir.SetCpsrNZCV, sumNZCV)

				diff := b.Append(ir.Sub64, r0, r1, sumC)
				diffC := b.Append(ir.GetCarryFromOp, diff)

				sel := b.Append(ir.ConditionalSelect32, ir.ImmCond(ir.CondGT), sum, ir.Imm32(5))
				sel64 := b.Append(ir.ConditionalSelect64, ir.ImmCond(ir.CondLS), r0, diff)
				selN := b.Append(ir.ConditionalSelectNZCV, ir.ImmCond(ir.CondAL), sel, sel)
				b.Append(ir.SetCpsrNZCV, selN)

				lsl := b.Append(ir.LogicalShiftLeft32, w0, ir.Imm8(3), ir.Imm1(false))
				lslC := b.Append(ir.GetCarryFromOp, lsl)
				lsrByte := b.Append(ir.LeastSignificantByte, w1)
				lsr := b.Append(ir.LogicalShiftRight32, w0, lsrByte, lslC)
				lsrC := b.Append(ir.GetCarryFromOp, lsr)
				asr := b.Append(ir.ArithmeticShiftRight32, w0, ir.Imm8(40), lsrC)
				ror := b.Append(ir.RotateRight32, asr, ir.Imm8(7), ir.Imm1(true))
				rorC := b.Append(ir.GetCarryFromOp, ror)
				rrx := b.Append(ir.RotateRightExtended, ror, rorC)
				_ = b.Append(ir.GetCarryFromOp, rrx)

				lsl64 := b.Append(ir.LogicalShiftLeft64, r0, ir.Imm8(5))
				lsr64 := b.Append(ir.LogicalShiftRight64, lsl64, lsrByte)
				asr64 := b.Append(ir.ArithmeticShiftRight64, lsr64, ir.Imm8(70))
				ror64 := b.Append(ir.RotateRight64, asr64, ir.Imm8(13))

				mul := b.Append(ir.Mul32, rrx, ir.Imm32(3))
				mul64 := b.Append(ir.Mul64, ror64, r1)
				mulhU := b.Append(ir.UnsignedMultiplyHigh64, mul64, r1)
				mulhS := b.Append(ir.SignedMultiplyHigh64, mulhU, r0)
				divU32 := b.Append(ir.UnsignedDiv32, mul, w1)
				divS32 := b.Append(ir.SignedDiv32, divU32, w0)
				divU64 := b.Append(ir.UnsignedDiv64, mulhS, r1)
				divS64 := b.Append(ir.SignedDiv64, divU64, r0)

				and32 := b.Append(ir.And32, divS32, ir.Imm32(0xFF00FF00))
				and64 := b.Append(ir.And64, divS64, ir.Imm64(0xFFFFFFFF00000000))
				eor32 := b.Append(ir.Eor32, and32, w1)
				eor64 := b.Append(ir.Eor64, and64, ir.Imm64(0x55))
				or32 := b.Append(ir.Or32, eor32, ir.Imm32(1))
				or64 := b.Append(ir.Or64, eor64, r1)
				not32 := b.Append(ir.Not32, or32)
				not64 := b.Append(ir.Not64, or64)

				seB2W := b.Append(ir.SignExtendByteToWord, byteV)
				seH2W := b.Append(ir.SignExtendHalfToWord, half)
				seB2L := b.Append(ir.SignExtendByteToLong, byteV)
				seH2L := b.Append(ir.SignExtendHalfToLong, half)
				seW2L := b.Append(ir.SignExtendWordToLong, not32)
				zeB2W := b.Append(ir.ZeroExtendByteToWord, byteV)
				zeH2W := b.Append(ir.ZeroExtendHalfToWord, half)
				zeB2L := b.Append(ir.ZeroExtendByteToLong, byteV)
				zeH2L := b.Append(ir.ZeroExtendHalfToLong, half)

				bswapW := b.Append(ir.ByteReverseWord, seB2W)
				bswapH := b.Append(ir.ByteReverseHalf, half)
				bswapD := b.Append(ir.ByteReverseDual, not64)

				clz32 := b.Append(ir.CountLeadingZeros32, bswapW)
				clz64 := b.Append(ir.CountLeadingZeros64, bswapD)

				maxS := b.Append(ir.MaxSigned32, clz32, seH2W)
				maxU := b.Append(ir.MaxUnsigned64, clz64, seW2L)
				minS := b.Append(ir.MinSigned64, maxU, seB2L)
				minU := b.Append(ir.MinUnsigned32, maxS, zeB2W)

				// Park every loose end in a guest register so the block ends
				// with an empty live set.
				sink32 := []ir.Value{msb, zero32, tb, ext32, sumV, sel, lsl, zeH2W, bswapH, minU, mul}
				acc := b.Append(ir.ZeroExtendWordToLong, b.Append(ir.LeastSignificantWord, r0))
				for _, v := range sink32 {
					wide := b.Append(ir.ZeroExtendWordToLong, v)
					acc = b.Append(ir.Add64, acc, wide, ir.Imm1(false))
				}
				sink64 := []ir.Value{zero64, ext64, diffC, sel64, lsr, zeB2L, zeH2L, seH2L, minS, rrx}
				for _, v := range sink64 {
					acc = b.Append(ir.Eor64, acc, v)
				}
				b.Append(ir.SetRegister, ir.Imm8(4), acc)
			})
		})
	}
}

func TestCompileUnconsumedPseudoPanics(t *testing.T) {
	b := ir.NewBlock()
	r0 := b.Append(ir.GetRegister, ir.Imm8(0))
	and := b.Append(ir.And64, r0, ir.Imm64(1))
	// And64's emitter produces no carry; the attached pseudo must trip the
	// dispatcher's hygiene check.
	b.Append(ir.GetCarryFromOp, and)
	b.Append(ir.SetRegister, ir.Imm8(1), and)

	assert.Panics(t, func() {
		NewEmitX64(Config{}).CompileBlock(b)
	})
}

func TestCompileTestBitNeedsImmediate(t *testing.T) {
	b := ir.NewBlock()
	r0 := b.Append(ir.GetRegister, ir.Imm8(0))
	bit := b.Append(ir.LeastSignificantByte, r0)
	tb := b.Append(ir.TestBit, r0, bit)
	b.Append(ir.SetRegister, ir.Imm8(1), tb)

	assert.Panics(t, func() {
		NewEmitX64(Config{}).CompileBlock(b)
	})
}

func TestCompileSpillsUnderPressure(t *testing.T) {
	// More simultaneously live values than allocatable registers forces the
	// allocator through its spill path.
	code := compileOK(t, Config{}, func(b *ir.Block) {
		var vals []ir.Value
		for i := 0; i < 24; i++ {
			r := b.Append(ir.GetRegister, ir.Imm8(uint8(i%8)))
			vals = append(vals, b.Append(ir.Add64, r, ir.Imm64(uint64(i)), ir.Imm1(false)))
		}
		acc := vals[0]
		for _, v := range vals[1:] {
			acc = b.Append(ir.Eor64, acc, v)
		}
		b.Append(ir.SetRegister, ir.Imm8(9), acc)
	})
	require.NotEmpty(t, code)
}
