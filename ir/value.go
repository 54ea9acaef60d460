package ir

import "fmt"

// Value is either the output of an instruction or an immediate. The zero
// Value is invalid.
type Value struct {
	inst *Inst
	typ  Type
	imm  uint64
}

// Imm1 returns a u1 immediate.
func Imm1(v bool) Value {
	if v {
		return Value{typ: U1, imm: 1}
	}
	return Value{typ: U1}
}

// Imm8 returns a u8 immediate.
func Imm8(v uint8) Value {
	return Value{typ: U8, imm: uint64(v)}
}

// Imm32 returns a u32 immediate.
func Imm32(v uint32) Value {
	return Value{typ: U32, imm: uint64(v)}
}

// Imm64 returns a u64 immediate.
func Imm64(v uint64) Value {
	return Value{typ: U64, imm: v}
}

// ImmCond returns a condition-code immediate.
func ImmCond(c CondCode) Value {
	return Value{typ: Cond, imm: uint64(c)}
}

// Valid reports whether the value refers to anything at all.
func (v Value) Valid() bool {
	return v.inst != nil || v.typ != Void
}

// IsImmediate reports whether the value is a compile-time constant.
func (v Value) IsImmediate() bool {
	return v.inst == nil && v.typ != Void
}

// Inst returns the defining instruction, or nil for immediates.
func (v Value) Inst() *Inst {
	return v.inst
}

// Type returns the semantic type of the value.
func (v Value) Type() Type {
	if v.inst != nil {
		return v.inst.Op.ResultType()
	}
	return v.typ
}

func (v Value) String() string {
	if v.inst != nil {
		return fmt.Sprintf("%%%d", v.inst.Index)
	}
	if v.typ == Cond {
		return CondCode(v.imm).String()
	}
	return fmt.Sprintf("#%#x", v.imm)
}

// Imm returns the raw immediate bits. Panics if the value is not immediate.
func (v Value) Imm() uint64 {
	if !v.IsImmediate() {
		panic("ir: Imm called on non-immediate value")
	}
	return v.imm
}

// ImmU1 returns the immediate as a bool. Panics on non-u1.
func (v Value) ImmU1() bool {
	if v.Type() != U1 {
		panic(fmt.Sprintf("ir: expected u1 immediate, got %s", v.Type()))
	}
	return v.Imm() != 0
}

// ImmU8 returns the immediate as a byte.
func (v Value) ImmU8() uint8 {
	return uint8(v.Imm())
}

// ImmU32 returns the immediate as a uint32.
func (v Value) ImmU32() uint32 {
	return uint32(v.Imm())
}

// ImmU64 returns the immediate bits.
func (v Value) ImmU64() uint64 {
	return v.Imm()
}

// ImmCond returns the immediate as a condition code. Panics on other types.
func (v Value) ImmCond() CondCode {
	if v.Type() != Cond {
		panic(fmt.Sprintf("ir: expected cond immediate, got %s", v.Type()))
	}
	return CondCode(v.Imm())
}

// FitsInImmediateS32 reports whether an immediate is encodable as a
// sign-extended 32-bit host operand.
func (v Value) FitsInImmediateS32() bool {
	if !v.IsImmediate() {
		return false
	}
	s := int64(v.imm)
	return s >= -2147483648 && s <= 2147483647
}
