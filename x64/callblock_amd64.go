//go:build linux && amd64

package x64

import "unsafe"

// callBlock enters a compiled block with the System V AMD64 ABI: the state
// pointer travels in rdi and the block's prologue moves it into r15. The
// assembly trampoline preserves the host callee-saved registers.
//
//go:noescape
func callBlock(entry uintptr, state unsafe.Pointer)
