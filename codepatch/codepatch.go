// Package codepatch demonstrates the mmap/mprotect/mremap choreography a
// real static-branch code patcher performs, grounded on the reference
// implementation's write_kernel_text and on this corpus's own raw-syscall
// eBPF loader. It operates only against a process-owned anonymous scratch
// mapping, never real process text — rewriting the Go runtime's own
// compiled code has no stable ABI and is not something this package
// attempts. Use ktracepoint.AtomicBranch as the default Branch; reach for
// ScratchPatcher only to exercise or test the patch-backend contract
// itself.
//
//go:build linux && amd64

package codepatch

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const pageSize = 4096

// disabledByte and enabledByte are the two single-byte "programs" the
// scratch page holds: an unconditional fast-path return (0xC3, x86-64
// RET) versus a NOP standing in for a patched-in slow-path jump.
// ScratchPatcher only ever reads the first byte back in IsEnabled; it
// never executes the page.
const (
	disabledByte = 0xC3 // RET
	enabledByte  = 0x90 // NOP
)

// ScratchPatcher is a ktracepoint.Branch backed by a real
// mmap -> mprotect(RW) -> write -> mprotect(RX) -> mremap cycle against a
// scratch page, demonstrating the exact syscall sequence
// write_kernel_text performs without ever touching this process's real
// executable memory.
type ScratchPatcher struct {
	page []byte
}

// NewScratchPatcher allocates one page of anonymous, initially-executable
// memory and starts it in the disabled state.
func NewScratchPatcher() (*ScratchPatcher, error) {
	page, err := unix.Mmap(-1, 0, pageSize, unix.PROT_READ|unix.PROT_EXEC, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("codepatch: mmap scratch page: %w", err)
	}
	p := &ScratchPatcher{page: page}
	if err := p.write(disabledByte); err != nil {
		_ = unix.Munmap(page)
		return nil, err
	}
	return p, nil
}

// write performs the mprotect(RW) -> store -> mprotect(RX) -> mremap
// dance against the scratch page, landing b as its first byte. mremap
// with MREMAP_MAYMOVE is used even though the page never changes size,
// mirroring write_kernel_text's use of mremap to atomically swap the
// mapping in from the caller's perspective once the new bytes are in
// place.
func (p *ScratchPatcher) write(b byte) error {
	if err := unix.Mprotect(p.page, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("codepatch: mprotect RW: %w", err)
	}
	p.page[0] = b
	if err := unix.Mprotect(p.page, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("codepatch: mprotect RX: %w", err)
	}

	newPage, err := unix.Mremap(p.page, pageSize, unix.MREMAP_MAYMOVE)
	if err != nil {
		return fmt.Errorf("codepatch: mremap: %w", err)
	}
	p.page = newPage
	return nil
}

// Enable patches the scratch page to its "on" byte.
func (p *ScratchPatcher) Enable() error {
	return p.write(enabledByte)
}

// Disable patches the scratch page back to its "off" byte.
func (p *ScratchPatcher) Disable() error {
	return p.write(disabledByte)
}

// IsEnabled reads the scratch page's current byte back.
func (p *ScratchPatcher) IsEnabled() bool {
	return p.page[0] == enabledByte
}

// Close releases the scratch page's mapping.
func (p *ScratchPatcher) Close() error {
	return unix.Munmap(p.page)
}
