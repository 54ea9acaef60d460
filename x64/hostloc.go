package x64

import "fmt"

// HostLoc is where an SSA value may live: a general-purpose register, a
// vector register, or a spill slot in the JIT state.
type HostLoc int

const (
	HostLocRAX HostLoc = iota
	HostLocRCX
	HostLocRDX
	HostLocRBX
	HostLocRSP
	HostLocRBP
	HostLocRSI
	HostLocRDI
	HostLocR8
	HostLocR9
	HostLocR10
	HostLocR11
	HostLocR12
	HostLocR13
	HostLocR14
	HostLocR15

	HostLocXMM0
	HostLocXMM1
	HostLocXMM2
	HostLocXMM3
	HostLocXMM4
	HostLocXMM5
	HostLocXMM6
	HostLocXMM7
	HostLocXMM8
	HostLocXMM9
	HostLocXMM10
	HostLocXMM11
	HostLocXMM12
	HostLocXMM13
	HostLocXMM14
	HostLocXMM15

	HostLocFirstSpill
)

// Fixed-role registers. These carry protocol meaning between the register
// allocator and specific host instructions; ordinary scratch acquisition
// avoids them unless requested.
const (
	LocACC        = HostLocRAX // mul/div accumulator, NZCV staging
	LocDataHigh   = HostLocRDX // mul/div high half
	LocShiftCount = HostLocRCX // variable shift count (cl)
	LocStatePtr   = HostLocR15 // per-thread JIT state pointer
)

func (l HostLoc) IsGPR() bool {
	return l >= HostLocRAX && l <= HostLocR15
}

func (l HostLoc) IsXMM() bool {
	return l >= HostLocXMM0 && l <= HostLocXMM15
}

func (l HostLoc) IsSpill() bool {
	return l >= HostLocFirstSpill
}

// GPR returns the register encoding of a GPR location.
func (l HostLoc) GPR() GPR {
	if !l.IsGPR() {
		panic(fmt.Sprintf("x64: %s is not a GPR", l))
	}
	return GPR(l)
}

// XMM returns the register encoding of a vector location.
func (l HostLoc) XMM() XMM {
	if !l.IsXMM() {
		panic(fmt.Sprintf("x64: %s is not an XMM", l))
	}
	return XMM(l - HostLocXMM0)
}

// SpillSlot returns the zero-based spill slot index.
func (l HostLoc) SpillSlot() int {
	if !l.IsSpill() {
		panic(fmt.Sprintf("x64: %s is not a spill slot", l))
	}
	return int(l - HostLocFirstSpill)
}

func hostLocOfGPR(g GPR) HostLoc { return HostLoc(g) }
func hostLocOfXMM(x XMM) HostLoc { return HostLocXMM0 + HostLoc(x) }

var gprNames = [16]string{
	"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

func (l HostLoc) String() string {
	switch {
	case l.IsGPR():
		return gprNames[l]
	case l.IsXMM():
		return fmt.Sprintf("xmm%d", int(l-HostLocXMM0))
	case l.IsSpill():
		return fmt.Sprintf("spill%d", l.SpillSlot())
	default:
		return fmt.Sprintf("hostloc(%d)", int(l))
	}
}

// gprAllocOrder lists the registers ordinary scratch acquisition may pick,
// least-special first. RSP and RBP frame the host stack, R15 holds the JIT
// state pointer, and R14 carries the goroutine pointer while the host runtime
// is Go, so none of those are allocatable. RAX, RCX and RDX come last so
// protocol acquisitions usually find them free.
var gprAllocOrder = []HostLoc{
	HostLocR10, HostLocR11, HostLocRBX, HostLocRSI, HostLocRDI,
	HostLocR8, HostLocR9, HostLocR12, HostLocR13,
	HostLocRDX, HostLocRCX, HostLocRAX,
}

var xmmAllocOrder = []HostLoc{
	HostLocXMM0, HostLocXMM1, HostLocXMM2, HostLocXMM3,
	HostLocXMM4, HostLocXMM5, HostLocXMM6, HostLocXMM7,
}
