// Package vmm implements the kernel- and user-region page tables. Rather
// than walking a real multi-level x86 page directory, the simulated
// machine exposes a single flat table per region (a []uint64 of PTEs
// handed to hal.Machine.SetVMRegister); the encoding below is ours to
// define, not dictated by hardware.
package vmm

import "nucleus/kernel/mm/pmm"

// PTE is one page-table entry: a physical frame number plus permission
// flags, packed into a single word.
type PTE uint64

const (
	// FlagPresent marks the entry as mapped.
	FlagPresent PTE = 1 << 0
	// FlagRW marks the entry writable (and implicitly readable).
	FlagRW PTE = 1 << 1
	// FlagExec marks the entry executable (and implicitly readable).
	FlagExec PTE = 1 << 2

	flagBits   = 12
	flagMask   = PTE(1<<flagBits) - 1
	frameShift = flagBits
)

// HasFlags reports whether every bit in flags is set on the entry.
func (p PTE) HasFlags(flags PTE) bool {
	return p&flags == flags
}

// SetFlags returns p with flags set (in addition to whatever is already
// set).
func (p PTE) SetFlags(flags PTE) PTE {
	return p | (flags & flagMask)
}

// ClearFlags returns p with flags cleared.
func (p PTE) ClearFlags(flags PTE) PTE {
	return p &^ (flags & flagMask)
}

// Frame returns the physical frame this entry maps to.
func (p PTE) Frame() pmm.Frame {
	return pmm.Frame(p >> frameShift)
}

// WithFrame returns p with its frame field replaced by f, preserving flags.
func (p PTE) WithFrame(f pmm.Frame) PTE {
	return PTE(uint64(f)<<frameShift) | (p & flagMask)
}

// NewPTE builds a fresh entry mapping frame f with the given flags.
func NewPTE(f pmm.Frame, flags PTE) PTE {
	return PTE(uint64(f)<<frameShift) | (flags & flagMask)
}
