package x64

import (
	"fmt"

	"github.com/colorfulnotion/dynarec/ir"
	"github.com/colorfulnotion/dynarec/log"
)

// Argument is a resolved view of one operand of the instruction being
// emitted.
type Argument struct {
	ra        *RegAlloc
	value     ir.Value
	allocated bool
}

func (arg *Argument) IsImmediate() bool             { return arg.value.IsImmediate() }
func (arg *Argument) GetType() ir.Type              { return arg.value.Type() }
func (arg *Argument) GetImmediateU1() bool          { return arg.value.ImmU1() }
func (arg *Argument) GetImmediateU8() uint8         { return arg.value.ImmU8() }
func (arg *Argument) GetImmediateU32() uint32       { return arg.value.ImmU32() }
func (arg *Argument) GetImmediateU64() uint64       { return arg.value.ImmU64() }
func (arg *Argument) GetImmediateCond() ir.CondCode { return arg.value.ImmCond() }
func (arg *Argument) FitsInImmediateS32() bool      { return arg.value.FitsInImmediateS32() }

// IsInGpr reports whether the argument's value currently lives in a GPR.
func (arg *Argument) IsInGpr() bool {
	if arg.IsImmediate() {
		return false
	}
	loc, ok := arg.ra.loc[arg.value.Inst()]
	return ok && loc.IsGPR()
}

type locInfo struct {
	values []*ir.Inst // SSA values bound here; index 0 is canonical
	locks  int
	scratch bool // acquired this emitter without a binding
}

func (li *locInfo) free() bool {
	return len(li.values) == 0 && li.locks == 0 && !li.scratch
}

// RegAlloc owns the SSA-value to host-location mapping for one block.
type RegAlloc struct {
	code   *Assembler
	layout StateLayout

	gprs   [16]locInfo
	xmms   [16]locInfo
	spills []locInfo

	loc         map[*ir.Inst]HostLoc
	remaining   map[*ir.Inst]int
	defined     map[*ir.Inst]bool
	pendingArgs []*Argument
}

func NewRegAlloc(code *Assembler, layout StateLayout, spillSlots int) *RegAlloc {
	if spillSlots <= 0 {
		spillSlots = DefaultSpillSlots
	}
	return &RegAlloc{
		code:      code,
		layout:    layout,
		spills:    make([]locInfo, spillSlots),
		loc:       make(map[*ir.Inst]HostLoc),
		remaining: make(map[*ir.Inst]int),
		defined:   make(map[*ir.Inst]bool),
	}
}

func (ra *RegAlloc) info(l HostLoc) *locInfo {
	switch {
	case l.IsGPR():
		return &ra.gprs[l]
	case l.IsXMM():
		return &ra.xmms[l-HostLocXMM0]
	case l.IsSpill():
		return &ra.spills[l.SpillSlot()]
	default:
		panic(fmt.Sprintf("x64: bad host location %d", int(l)))
	}
}

// GetArgumentInfo resolves the instruction's operand list. Operands the
// emitter never acquires still have their use consumed at the end of the
// allocation scope.
func (ra *RegAlloc) GetArgumentInfo(inst *ir.Inst) []*Argument {
	args := make([]*Argument, inst.NumArgs())
	for i := range args {
		args[i] = &Argument{ra: ra, value: inst.Arg(i)}
	}
	ra.pendingArgs = append(ra.pendingArgs, args...)
	return args
}

// --- acquisition protocol ---

// UseGpr materializes the argument into some GPR, read-only for this emitter.
func (ra *RegAlloc) UseGpr(arg *Argument) Reg {
	if arg.IsImmediate() {
		l := ra.allocGpr()
		ra.code.MovRegImm(l.GPR().Reg(), arg.value.Imm())
		li := ra.info(l)
		li.scratch = true
		li.locks++
		return l.GPR().Reg()
	}
	inst := ra.consume(arg)
	l := ra.realizeGpr(inst)
	ra.info(l).locks++
	return l.GPR().Reg()
}

// UseScratchGpr materializes the argument into a GPR the emitter may clobber.
func (ra *RegAlloc) UseScratchGpr(arg *Argument) Reg {
	if arg.IsImmediate() {
		l := ra.allocGpr()
		ra.code.MovRegImm(l.GPR().Reg(), arg.value.Imm())
		li := ra.info(l)
		li.scratch = true
		li.locks++
		return l.GPR().Reg()
	}
	inst := ra.consume(arg)
	cur := ra.realizeGpr(inst)
	if ra.remaining[inst] == 0 && len(ra.info(cur).values) == 1 {
		// Last use: hand the register over to the emitter.
		ra.unbind(inst)
		li := ra.info(cur)
		li.scratch = true
		li.locks++
		return cur.GPR().Reg()
	}
	l := ra.allocGpr()
	ra.code.MovRegReg(l.GPR().Reg(), cur.GPR().Reg())
	li := ra.info(l)
	li.scratch = true
	li.locks++
	return l.GPR().Reg()
}

// Use materializes the argument into a specific location, read-only.
func (ra *RegAlloc) Use(arg *Argument, want HostLoc) Reg {
	if arg.IsImmediate() {
		ra.makeFree(want)
		ra.code.MovRegImm(want.GPR().Reg(), arg.value.Imm())
		li := ra.info(want)
		li.scratch = true
		li.locks++
		return want.GPR().Reg()
	}
	inst := ra.consume(arg)
	cur, ok := ra.loc[inst]
	if !ok {
		panic(fmt.Sprintf("x64: use of undefined value %%%d", inst.Index))
	}
	if cur == want {
		ra.info(want).locks++
		return want.GPR().Reg()
	}
	ra.makeFree(want)
	cur = ra.loc[inst] // makeFree may have moved it
	ra.copyInto(inst, cur, want)
	li := ra.info(want)
	li.scratch = true // transient copy, not canonical
	li.locks++
	return want.GPR().Reg()
}

// UseScratch materializes the argument into a specific location the emitter
// may clobber.
func (ra *RegAlloc) UseScratch(arg *Argument, want HostLoc) Reg {
	if arg.IsImmediate() {
		ra.makeFree(want)
		ra.code.MovRegImm(want.GPR().Reg(), arg.value.Imm())
		li := ra.info(want)
		li.scratch = true
		li.locks++
		return want.GPR().Reg()
	}
	inst := ra.consume(arg)
	cur, ok := ra.loc[inst]
	if !ok {
		panic(fmt.Sprintf("x64: use of undefined value %%%d", inst.Index))
	}
	last := ra.remaining[inst] == 0
	if cur == want {
		li := ra.info(want)
		if !last || len(li.values) > 1 {
			// Live values survive the clobber: relocate the binding; the
			// bits themselves stay behind for the emitter.
			moved := ra.allocGprExcept(want)
			ra.code.MovRegReg(moved.GPR().Reg(), want.GPR().Reg())
			ra.moveAll(want, moved)
		} else {
			ra.unbind(inst)
		}
		li.scratch = true
		li.locks++
		return want.GPR().Reg()
	}
	ra.makeFree(want)
	cur = ra.loc[inst]
	ra.copyInto(inst, cur, want)
	li := ra.info(want)
	li.scratch = true
	li.locks++
	return want.GPR().Reg()
}

// UseOpArg yields a register or a directly addressable spill-slot operand.
// A memory operand is valid only for the immediately following host
// instruction.
func (ra *RegAlloc) UseOpArg(arg *Argument) Operand {
	if arg.IsImmediate() {
		return RegOperand(ra.UseGpr(arg))
	}
	inst := ra.consume(arg)
	cur, ok := ra.loc[inst]
	if !ok {
		panic(fmt.Sprintf("x64: use of undefined value %%%d", inst.Index))
	}
	if cur.IsSpill() {
		ra.info(cur).locks++
		return MemOperand(ra.spillMem(cur, 64))
	}
	l := ra.realizeGpr(inst)
	ra.info(l).locks++
	return RegOperand(l.GPR().Reg())
}

// ScratchGpr returns a fresh clobber register, optionally at a fixed location.
func (ra *RegAlloc) ScratchGpr(want ...HostLoc) Reg {
	var l HostLoc
	if len(want) > 0 {
		l = want[0]
		ra.makeFree(l)
	} else {
		l = ra.allocGpr()
	}
	li := ra.info(l)
	li.scratch = true
	li.locks++
	return l.GPR().Reg()
}

// ScratchXmm returns a fresh clobber vector register.
func (ra *RegAlloc) ScratchXmm() XMM {
	l := ra.allocXmm()
	li := ra.info(l)
	li.scratch = true
	li.locks++
	return l.XMM()
}

// UseScratchXmm materializes the argument into a clobberable vector register.
func (ra *RegAlloc) UseScratchXmm(arg *Argument) XMM {
	if arg.IsImmediate() {
		panic("x64: immediate cannot be materialized into an XMM")
	}
	inst := ra.consume(arg)
	cur, ok := ra.loc[inst]
	if !ok || !cur.IsXMM() {
		panic(fmt.Sprintf("x64: value %%%d is not in an XMM", inst.Index))
	}
	if ra.remaining[inst] == 0 && len(ra.info(cur).values) == 1 {
		ra.unbind(inst)
		li := ra.info(cur)
		li.scratch = true
		li.locks++
		return cur.XMM()
	}
	l := ra.allocXmm()
	ra.code.MovqXmmXmm(l.XMM(), cur.XMM())
	li := ra.info(l)
	li.scratch = true
	li.locks++
	return l.XMM()
}

// DefineValue binds the instruction's SSA output to the register.
func (ra *RegAlloc) DefineValue(inst *ir.Inst, r Reg) {
	ra.defineAt(inst, hostLocOfGPR(r.Enc))
}

// DefineValueXmm binds the instruction's SSA output to the vector register.
func (ra *RegAlloc) DefineValueXmm(inst *ir.Inst, x XMM) {
	ra.defineAt(inst, hostLocOfXMM(x))
}

// DefineValueFromArg aliases the instruction's output to an argument's value
// without emitting a host move.
func (ra *RegAlloc) DefineValueFromArg(inst *ir.Inst, arg *Argument) {
	if arg.IsImmediate() {
		l := ra.allocGpr()
		ra.code.MovRegImm(l.GPR().Reg(), arg.value.Imm())
		ra.defineAt(inst, l)
		return
	}
	src := ra.consume(arg)
	cur, ok := ra.loc[src]
	if !ok {
		panic(fmt.Sprintf("x64: use of undefined value %%%d", src.Index))
	}
	ra.markDefined(inst)
	if inst.Uses() == 0 {
		return
	}
	li := ra.info(cur)
	li.values = append(li.values, inst)
	ra.loc[inst] = cur
	ra.remaining[inst] = inst.Uses()
}

func (ra *RegAlloc) defineAt(inst *ir.Inst, l HostLoc) {
	ra.markDefined(inst)
	li := ra.info(l)
	if len(li.values) != 0 {
		panic(fmt.Sprintf("x64: define of %%%d into occupied %s", inst.Index, l))
	}
	li.scratch = false
	if inst.Uses() == 0 {
		return
	}
	li.values = append(li.values, inst)
	ra.loc[inst] = l
	ra.remaining[inst] = inst.Uses()
}

func (ra *RegAlloc) markDefined(inst *ir.Inst) {
	if ra.defined[inst] {
		panic(fmt.Sprintf("x64: %%%d defined twice", inst.Index))
	}
	ra.defined[inst] = true
	log.Trace(log.RegAllocMonitoring, "define", "inst", inst.String())
}

// Defined reports whether DefineValue has run for the instruction.
func (ra *RegAlloc) Defined(inst *ir.Inst) bool {
	return ra.defined[inst]
}

// EndOfAllocScope releases emitter-lifetime acquisitions: locks drop, scratch
// registers free, and values whose remaining-use count reached zero die.
func (ra *RegAlloc) EndOfAllocScope() {
	for _, arg := range ra.pendingArgs {
		if !arg.allocated && !arg.IsImmediate() {
			ra.consumeInst(arg.value.Inst())
		}
	}
	ra.pendingArgs = ra.pendingArgs[:0]

	release := func(l HostLoc) {
		li := ra.info(l)
		li.locks = 0
		kept := li.values[:0]
		for _, v := range li.values {
			if ra.remaining[v] > 0 {
				kept = append(kept, v)
			} else {
				delete(ra.loc, v)
				delete(ra.remaining, v)
			}
		}
		li.values = kept
		if len(li.values) == 0 {
			li.scratch = false
		}
	}
	for g := range ra.gprs {
		release(HostLoc(g))
	}
	for x := range ra.xmms {
		release(HostLocXMM0 + HostLoc(x))
	}
	for s := range ra.spills {
		release(HostLocFirstSpill + HostLoc(s))
	}
}

// LiveValues returns the number of values still bound, for the end-of-block
// hygiene check.
func (ra *RegAlloc) LiveValues() int {
	return len(ra.loc)
}

// --- internals ---

// consume decrements the remaining-use counter of the argument's defining
// instruction. An argument is acquired at most once per emitter.
func (ra *RegAlloc) consume(arg *Argument) *ir.Inst {
	inst := arg.value.Inst()
	if inst == nil {
		panic("x64: expected an SSA operand, got an immediate")
	}
	if arg.allocated {
		panic(fmt.Sprintf("x64: operand %%%d acquired twice", inst.Index))
	}
	arg.allocated = true
	ra.consumeInst(inst)
	return inst
}

func (ra *RegAlloc) consumeInst(inst *ir.Inst) {
	n, ok := ra.remaining[inst]
	if !ok {
		panic(fmt.Sprintf("x64: use of undefined value %%%d", inst.Index))
	}
	if n <= 0 {
		panic(fmt.Sprintf("x64: value %%%d used past its use count", inst.Index))
	}
	ra.remaining[inst] = n - 1
}

// realizeGpr makes sure the value sits in a GPR and returns that location.
func (ra *RegAlloc) realizeGpr(inst *ir.Inst) HostLoc {
	cur, ok := ra.loc[inst]
	if !ok {
		panic(fmt.Sprintf("x64: use of undefined value %%%d", inst.Index))
	}
	switch {
	case cur.IsGPR():
		return cur
	case cur.IsSpill():
		l := ra.allocGpr()
		ra.code.MovRegMem(l.GPR().Reg(), ra.spillMem(cur, 64))
		ra.rebind(inst, l)
		return l
	case cur.IsXMM():
		l := ra.allocGpr()
		ra.code.MovqRegXmm(l.GPR(), cur.XMM())
		ra.rebind(inst, l)
		return l
	default:
		panic("x64: unreachable")
	}
}

// allocGpr returns a free allocatable GPR, spilling if necessary.
func (ra *RegAlloc) allocGpr() HostLoc {
	return ra.allocGprExcept(-1)
}

func (ra *RegAlloc) allocGprExcept(except HostLoc) HostLoc {
	for _, l := range gprAllocOrder {
		if l != except && ra.info(l).free() {
			return l
		}
	}
	for _, l := range gprAllocOrder {
		li := ra.info(l)
		if l != except && li.locks == 0 && !li.scratch {
			ra.spill(l)
			return l
		}
	}
	panic("x64: out of host registers")
}

func (ra *RegAlloc) allocXmm() HostLoc {
	for _, l := range xmmAllocOrder {
		if ra.info(l).free() {
			return l
		}
	}
	for _, l := range xmmAllocOrder {
		li := ra.info(l)
		if li.locks == 0 && !li.scratch {
			ra.spillXmm(l)
			return l
		}
	}
	panic("x64: out of vector registers")
}

// makeFree evicts whatever occupies the location. Locked locations cannot be
// freed.
func (ra *RegAlloc) makeFree(l HostLoc) {
	li := ra.info(l)
	if li.free() {
		return
	}
	if li.locks > 0 {
		panic(fmt.Sprintf("x64: cannot free locked %s", l))
	}
	if li.scratch && len(li.values) == 0 {
		panic(fmt.Sprintf("x64: cannot free scratch %s", l))
	}
	ra.spill(l)
}

// spill moves the location's values elsewhere: a free register if one exists,
// a spill slot otherwise.
func (ra *RegAlloc) spill(l HostLoc) {
	li := ra.info(l)
	if len(li.values) == 0 {
		return
	}
	if dst := ra.freeGprExcept(l); dst >= 0 {
		ra.code.MovRegReg(dst.GPR().Reg(), l.GPR().Reg())
		ra.moveAll(l, dst)
		return
	}
	slot := ra.freeSpillSlot()
	ra.code.MovMemReg(ra.spillMem(slot, 64), l.GPR().Reg())
	ra.moveAll(l, slot)
	log.Trace(log.RegAllocMonitoring, "spill", "loc", l.String(), "slot", slot.String())
}

func (ra *RegAlloc) spillXmm(l HostLoc) {
	panic(fmt.Sprintf("x64: vector spill of %s not supported within one block", l))
}

func (ra *RegAlloc) freeGprExcept(except HostLoc) HostLoc {
	for _, c := range gprAllocOrder {
		if c != except && ra.info(c).free() {
			return c
		}
	}
	return -1
}

func (ra *RegAlloc) freeSpillSlot() HostLoc {
	for s := range ra.spills {
		l := HostLocFirstSpill + HostLoc(s)
		if ra.info(l).free() {
			return l
		}
	}
	panic("x64: out of spill slots")
}

func (ra *RegAlloc) moveAll(from, to HostLoc) {
	src := ra.info(from)
	dst := ra.info(to)
	dst.values = append(dst.values, src.values...)
	for _, v := range src.values {
		ra.loc[v] = to
	}
	src.values = nil
}

// rebind moves a value's binding (and any aliases sharing it) to a new
// location whose bits have already been put in place.
func (ra *RegAlloc) rebind(inst *ir.Inst, to HostLoc) {
	ra.moveAll(ra.loc[inst], to)
}

func (ra *RegAlloc) unbind(inst *ir.Inst) {
	l := ra.loc[inst]
	li := ra.info(l)
	kept := li.values[:0]
	for _, v := range li.values {
		if v != inst {
			kept = append(kept, v)
		}
	}
	li.values = kept
	delete(ra.loc, inst)
}

// copyInto copies a value into a (free) destination without disturbing the
// canonical binding.
func (ra *RegAlloc) copyInto(inst *ir.Inst, cur, want HostLoc) {
	switch {
	case cur.IsGPR():
		ra.code.MovRegReg(want.GPR().Reg(), cur.GPR().Reg())
	case cur.IsSpill():
		ra.code.MovRegMem(want.GPR().Reg(), ra.spillMem(cur, 64))
	default:
		panic(fmt.Sprintf("x64: cannot copy from %s", cur))
	}
}

func (ra *RegAlloc) spillMem(l HostLoc, bits uint8) Mem {
	return Mem{
		Base: LocStatePtr.GPR(),
		Disp: ra.layout.SpillOffset + int32(8*l.SpillSlot()),
		Bits: bits,
	}
}
