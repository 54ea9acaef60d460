package x64

import "unsafe"

// JitState is the per-thread state a compiled block runs against. R15 points
// at it for the whole block.
type JitState struct {
	Regs     [16]uint64 // guest general registers
	CpsrNzcv uint32     // packed guest flags, left-aligned (N bit 31 .. V bit 28)
	_        uint32
	Spill    [64]uint64 // register-allocator spill area
}

// DefaultSpillSlots is the spill capacity of JitState.
const DefaultSpillSlots = len(JitState{}.Spill)

// StateLayout describes where the emitters find state fields relative to the
// state pointer. Offsets come from here, never hard-coded in emitters.
type StateLayout struct {
	RegsOffset  int32
	NzcvOffset  int32
	SpillOffset int32
}

// DefaultLayout returns the layout of JitState.
func DefaultLayout() StateLayout {
	var js JitState
	return StateLayout{
		RegsOffset:  int32(unsafe.Offsetof(js.Regs)),
		NzcvOffset:  int32(unsafe.Offsetof(js.CpsrNzcv)),
		SpillOffset: int32(unsafe.Offsetof(js.Spill)),
	}
}

// RegMem returns the state slot of a guest register as a 64-bit operand.
func (l StateLayout) RegMem(n uint8) Mem {
	return Mem{Base: LocStatePtr.GPR(), Disp: l.RegsOffset + int32(n)*8, Bits: 64}
}

// NzcvMem returns the packed-NZCV state slot as a 32-bit operand.
func (l StateLayout) NzcvMem() Mem {
	return Mem{Base: LocStatePtr.GPR(), Disp: l.NzcvOffset, Bits: 32}
}
