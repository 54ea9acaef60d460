//go:build linux && amd64

package x64

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/colorfulnotion/dynarec/log"
)

// CodeBlock owns one executable copy of a compiled block. The buffer is
// mapped writable for the copy and flipped to read-execute before it can run.
type CodeBlock struct {
	mem []byte
}

// NewCodeBlock maps the compiled bytes into executable memory.
func NewCodeBlock(code []byte) (*CodeBlock, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("empty code block")
	}
	mem, err := unix.Mmap(
		-1, 0, len(code),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap code block: %w", err)
	}
	copy(mem, code)
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(mem)
		return nil, fmt.Errorf("failed to mprotect code block: %w", err)
	}
	log.Debug(log.ExecMonitoring, "mapped code block", "bytes", len(code))
	return &CodeBlock{mem: mem}, nil
}

// Run executes the block against the given JIT state.
func (cb *CodeBlock) Run(st *JitState) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	callBlock(uintptr(unsafe.Pointer(&cb.mem[0])), unsafe.Pointer(st))
}

// Close unmaps the block.
func (cb *CodeBlock) Close() error {
	if cb.mem == nil {
		return nil
	}
	err := unix.Munmap(cb.mem)
	cb.mem = nil
	return err
}
