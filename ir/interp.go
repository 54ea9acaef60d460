package ir

import (
	"fmt"
	"math/bits"

	"github.com/colorfulnotion/dynarec/log"
)

// State is the guest-visible machine state a block reads and writes. Nzcv
// holds the packed guest flag nibble left-aligned in a 32-bit word (N in bit
// 31, Z in 30, C in 29, V in 28).
type State struct {
	Regs [16]uint64
	Nzcv uint32
}

type interpAux struct {
	carry    uint64
	overflow uint64
	nzcv     uint32
}

// Interpret executes the block against st. It is the reference model the
// backend is validated against: every guest edge case (unmasked shift counts,
// carry polarity on subtraction, division by zero) is spelled out here in
// plain Go.
func Interpret(b *Block, st *State) {
	vals := make(map[*Inst]uint64, len(b.insts))
	vals128 := make(map[*Inst][2]uint64)
	aux := make(map[*Inst]*interpAux)

	arg := func(v Value) uint64 {
		if v.IsImmediate() {
			return v.Imm()
		}
		return vals[v.Inst()]
	}
	auxOf := func(primary *Inst) *interpAux {
		a := aux[primary]
		if a == nil {
			a = &interpAux{}
			aux[primary] = a
		}
		return a
	}

	for _, inst := range b.insts {
		log.Trace(log.IRMonitoring, "interpret", "inst", inst.String())
		switch inst.Op {
		case GetRegister:
			vals[inst] = st.Regs[inst.Arg(0).ImmU8()]
		case SetRegister:
			st.Regs[inst.Arg(0).ImmU8()] = arg(inst.Arg(1))
		case SetCpsrNZCV:
			st.Nzcv = uint32(arg(inst.Arg(0))) & 0xF0000000

		case GetCarryFromOp:
			vals[inst] = auxOf(inst.Arg(0).Inst()).carry
		case GetOverflowFromOp:
			vals[inst] = auxOf(inst.Arg(0).Inst()).overflow
		case GetNZCVFromOp:
			vals[inst] = uint64(auxOf(inst.Arg(0).Inst()).nzcv)

		case Pack2x32To1x64:
			vals[inst] = arg(inst.Arg(1))<<32 | arg(inst.Arg(0))&0xFFFFFFFF
		case Pack2x64To1x128:
			vals128[inst] = [2]uint64{arg(inst.Arg(0)), arg(inst.Arg(1))}
		case LeastSignificantWord:
			vals[inst] = arg(inst.Arg(0)) & 0xFFFFFFFF
		case MostSignificantWord:
			x := arg(inst.Arg(0))
			vals[inst] = x >> 32
			auxOf(inst).carry = x >> 31 & 1
		case LeastSignificantHalf:
			vals[inst] = arg(inst.Arg(0)) & 0xFFFF
		case LeastSignificantByte:
			vals[inst] = arg(inst.Arg(0)) & 0xFF
		case MostSignificantBit:
			vals[inst] = arg(inst.Arg(0)) >> 31 & 1
		case IsZero32:
			vals[inst] = b2u(uint32(arg(inst.Arg(0))) == 0)
		case IsZero64:
			vals[inst] = b2u(arg(inst.Arg(0)) == 0)
		case TestBit:
			vals[inst] = arg(inst.Arg(0)) >> inst.Arg(1).ImmU8() & 1
		case ExtractRegister32:
			lo := uint32(arg(inst.Arg(0)))
			hi := uint32(arg(inst.Arg(1)))
			lsb := inst.Arg(2).ImmU8() & 31
			if lsb == 0 {
				vals[inst] = uint64(lo)
			} else {
				vals[inst] = uint64(lo>>lsb | hi<<(32-lsb))
			}
		case ExtractRegister64:
			lo := arg(inst.Arg(0))
			hi := arg(inst.Arg(1))
			lsb := inst.Arg(2).ImmU8() & 63
			if lsb == 0 {
				vals[inst] = lo
			} else {
				vals[inst] = lo>>lsb | hi<<(64-lsb)
			}

		case ConditionalSelect32, ConditionalSelectNZCV:
			if inst.Arg(0).ImmCond().Holds(uint8(st.Nzcv >> 28)) {
				vals[inst] = arg(inst.Arg(1)) & 0xFFFFFFFF
			} else {
				vals[inst] = arg(inst.Arg(2)) & 0xFFFFFFFF
			}
		case ConditionalSelect64:
			if inst.Arg(0).ImmCond().Holds(uint8(st.Nzcv >> 28)) {
				vals[inst] = arg(inst.Arg(1))
			} else {
				vals[inst] = arg(inst.Arg(2))
			}

		case LogicalShiftLeft32:
			x := uint32(arg(inst.Arg(0)))
			s := uint8(arg(inst.Arg(1)))
			cin := arg(inst.Arg(2)) & 1
			r, c := lsl32(x, s, cin)
			vals[inst] = uint64(r)
			auxOf(inst).carry = c
		case LogicalShiftRight32:
			x := uint32(arg(inst.Arg(0)))
			s := uint8(arg(inst.Arg(1)))
			cin := arg(inst.Arg(2)) & 1
			r, c := lsr32(x, s, cin)
			vals[inst] = uint64(r)
			auxOf(inst).carry = c
		case ArithmeticShiftRight32:
			x := uint32(arg(inst.Arg(0)))
			s := uint8(arg(inst.Arg(1)))
			cin := arg(inst.Arg(2)) & 1
			r, c := asr32(x, s, cin)
			vals[inst] = uint64(r)
			auxOf(inst).carry = c
		case RotateRight32:
			x := uint32(arg(inst.Arg(0)))
			s := uint8(arg(inst.Arg(1)))
			cin := arg(inst.Arg(2)) & 1
			r, c := ror32(x, s, cin)
			vals[inst] = uint64(r)
			auxOf(inst).carry = c
		case RotateRightExtended:
			x := uint32(arg(inst.Arg(0)))
			cin := arg(inst.Arg(1)) & 1
			vals[inst] = uint64(uint32(cin)<<31 | x>>1)
			auxOf(inst).carry = uint64(x & 1)
		case LogicalShiftLeft64:
			x := arg(inst.Arg(0))
			if s := uint8(arg(inst.Arg(1))); s < 64 {
				vals[inst] = x << s
			} else {
				vals[inst] = 0
			}
		case LogicalShiftRight64:
			x := arg(inst.Arg(0))
			if s := uint8(arg(inst.Arg(1))); s < 64 {
				vals[inst] = x >> s
			} else {
				vals[inst] = 0
			}
		case ArithmeticShiftRight64:
			x := int64(arg(inst.Arg(0)))
			s := uint8(arg(inst.Arg(1)))
			if s > 63 {
				s = 63
			}
			vals[inst] = uint64(x >> s)
		case RotateRight64:
			vals[inst] = bits.RotateLeft64(arg(inst.Arg(0)), -int(arg(inst.Arg(1))&63))

		case Add32, Sub32:
			a := uint32(arg(inst.Arg(0)))
			b := uint32(arg(inst.Arg(1)))
			cin := arg(inst.Arg(2)) & 1
			if inst.Op == Sub32 {
				b = ^b
			}
			sum := uint64(a) + uint64(b) + cin
			r := uint32(sum)
			o := ((a^r)&(b^r))>>31&1 != 0
			vals[inst] = uint64(r)
			recordFlags(auxOf(inst), r>>31 == 1, r == 0, sum>>32 != 0, o)
		case Add64, Sub64:
			a := arg(inst.Arg(0))
			b := arg(inst.Arg(1))
			cin := arg(inst.Arg(2)) & 1
			if inst.Op == Sub64 {
				b = ^b
			}
			r, c := bits.Add64(a, b, cin)
			o := ((a^r)&(b^r))>>63&1 != 0
			vals[inst] = r
			recordFlags(auxOf(inst), r>>63 == 1, r == 0, c != 0, o)
		case Mul32:
			vals[inst] = uint64(uint32(arg(inst.Arg(0))) * uint32(arg(inst.Arg(1))))
		case Mul64:
			vals[inst] = arg(inst.Arg(0)) * arg(inst.Arg(1))
		case UnsignedMultiplyHigh64:
			hi, _ := bits.Mul64(arg(inst.Arg(0)), arg(inst.Arg(1)))
			vals[inst] = hi
		case SignedMultiplyHigh64:
			a := int64(arg(inst.Arg(0)))
			b := int64(arg(inst.Arg(1)))
			hi, _ := bits.Mul64(uint64(a), uint64(b))
			if a < 0 {
				hi -= uint64(b)
			}
			if b < 0 {
				hi -= uint64(a)
			}
			vals[inst] = hi
		case UnsignedDiv32:
			a := uint32(arg(inst.Arg(0)))
			b := uint32(arg(inst.Arg(1)))
			if b == 0 {
				vals[inst] = 0
			} else {
				vals[inst] = uint64(a / b)
			}
		case UnsignedDiv64:
			a := arg(inst.Arg(0))
			b := arg(inst.Arg(1))
			if b == 0 {
				vals[inst] = 0
			} else {
				vals[inst] = a / b
			}
		case SignedDiv32:
			a := int32(arg(inst.Arg(0)))
			b := int32(arg(inst.Arg(1)))
			if b == 0 {
				vals[inst] = 0
			} else {
				vals[inst] = uint64(uint32(a / b))
			}
		case SignedDiv64:
			a := int64(arg(inst.Arg(0)))
			b := int64(arg(inst.Arg(1)))
			if b == 0 {
				vals[inst] = 0
			} else {
				vals[inst] = uint64(a / b)
			}

		case And32:
			vals[inst] = (arg(inst.Arg(0)) & arg(inst.Arg(1))) & 0xFFFFFFFF
		case And64:
			vals[inst] = arg(inst.Arg(0)) & arg(inst.Arg(1))
		case Eor32:
			vals[inst] = (arg(inst.Arg(0)) ^ arg(inst.Arg(1))) & 0xFFFFFFFF
		case Eor64:
			vals[inst] = arg(inst.Arg(0)) ^ arg(inst.Arg(1))
		case Or32:
			vals[inst] = (arg(inst.Arg(0)) | arg(inst.Arg(1))) & 0xFFFFFFFF
		case Or64:
			vals[inst] = arg(inst.Arg(0)) | arg(inst.Arg(1))
		case Not32:
			vals[inst] = ^arg(inst.Arg(0)) & 0xFFFFFFFF
		case Not64:
			vals[inst] = ^arg(inst.Arg(0))

		case SignExtendByteToWord:
			vals[inst] = uint64(uint32(int32(int8(arg(inst.Arg(0))))))
		case SignExtendHalfToWord:
			vals[inst] = uint64(uint32(int32(int16(arg(inst.Arg(0))))))
		case SignExtendByteToLong:
			vals[inst] = uint64(int64(int8(arg(inst.Arg(0)))))
		case SignExtendHalfToLong:
			vals[inst] = uint64(int64(int16(arg(inst.Arg(0)))))
		case SignExtendWordToLong:
			vals[inst] = uint64(int64(int32(arg(inst.Arg(0)))))
		case ZeroExtendByteToWord, ZeroExtendByteToLong:
			vals[inst] = arg(inst.Arg(0)) & 0xFF
		case ZeroExtendHalfToWord, ZeroExtendHalfToLong:
			vals[inst] = arg(inst.Arg(0)) & 0xFFFF
		case ZeroExtendWordToLong:
			vals[inst] = arg(inst.Arg(0)) & 0xFFFFFFFF
		case ZeroExtendLongToQuad:
			vals128[inst] = [2]uint64{arg(inst.Arg(0)), 0}

		case ByteReverseWord:
			vals[inst] = uint64(bits.ReverseBytes32(uint32(arg(inst.Arg(0)))))
		case ByteReverseHalf:
			vals[inst] = uint64(bits.ReverseBytes16(uint16(arg(inst.Arg(0)))))
		case ByteReverseDual:
			vals[inst] = bits.ReverseBytes64(arg(inst.Arg(0)))

		case CountLeadingZeros32:
			vals[inst] = uint64(bits.LeadingZeros32(uint32(arg(inst.Arg(0)))))
		case CountLeadingZeros64:
			vals[inst] = uint64(bits.LeadingZeros64(arg(inst.Arg(0))))

		case MaxSigned32:
			vals[inst] = uint64(uint32(maxS64(int64(int32(arg(inst.Arg(0)))), int64(int32(arg(inst.Arg(1)))))))
		case MaxSigned64:
			vals[inst] = uint64(maxS64(int64(arg(inst.Arg(0))), int64(arg(inst.Arg(1)))))
		case MinSigned32:
			vals[inst] = uint64(uint32(-maxS64(-int64(int32(arg(inst.Arg(0)))), -int64(int32(arg(inst.Arg(1)))))))
		case MinSigned64:
			a, b := int64(arg(inst.Arg(0))), int64(arg(inst.Arg(1)))
			if b < a {
				a = b
			}
			vals[inst] = uint64(a)
		case MaxUnsigned32, MaxUnsigned64:
			a, b := arg(inst.Arg(0)), arg(inst.Arg(1))
			if inst.Op == MaxUnsigned32 {
				a &= 0xFFFFFFFF
				b &= 0xFFFFFFFF
			}
			if a > b {
				vals[inst] = a
			} else {
				vals[inst] = b
			}
		case MinUnsigned32, MinUnsigned64:
			a, b := arg(inst.Arg(0)), arg(inst.Arg(1))
			if inst.Op == MinUnsigned32 {
				a &= 0xFFFFFFFF
				b &= 0xFFFFFFFF
			}
			if a < b {
				vals[inst] = a
			} else {
				vals[inst] = b
			}

		default:
			panic(fmt.Sprintf("ir: interpreter does not implement %s", inst.Op))
		}
	}
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func maxS64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func recordFlags(a *interpAux, n, z, c, v bool) {
	a.carry = b2u(c)
	a.overflow = b2u(v)
	a.nzcv = uint32(b2u(n))<<31 | uint32(b2u(z))<<30 | uint32(b2u(c))<<29 | uint32(b2u(v))<<28
}

// Guest shift semantics. The count is the full low byte of the register; the
// carry-out depends on where the count falls relative to the operand width.

func lsl32(x uint32, s uint8, cin uint64) (uint32, uint64) {
	switch {
	case s == 0:
		return x, cin
	case s < 32:
		return x << s, uint64(x >> (32 - s) & 1)
	case s == 32:
		return 0, uint64(x & 1)
	default:
		return 0, 0
	}
}

func lsr32(x uint32, s uint8, cin uint64) (uint32, uint64) {
	switch {
	case s == 0:
		return x, cin
	case s < 32:
		return x >> s, uint64(x >> (s - 1) & 1)
	case s == 32:
		return 0, uint64(x >> 31)
	default:
		return 0, 0
	}
}

func asr32(x uint32, s uint8, cin uint64) (uint32, uint64) {
	switch {
	case s == 0:
		return x, cin
	case s < 32:
		return uint32(int32(x) >> s), uint64(x >> (s - 1) & 1)
	default:
		return uint32(int32(x) >> 31), uint64(x >> 31)
	}
}

func ror32(x uint32, s uint8, cin uint64) (uint32, uint64) {
	if s == 0 {
		return x, cin
	}
	r := bits.RotateLeft32(x, -int(s&31))
	return r, uint64(r >> 31)
}
