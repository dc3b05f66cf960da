package vmm

import (
	"nucleus/hal"
	"nucleus/kernel/kerr"
	"nucleus/kernel/mm/pmm"
)

// KernelRegionPages bounds the kernel's half of the address space. With no
// linker laying out a fixed kernel image here, the table is simply
// allocated at a fixed, generous size up front and grown logically within
// it.
const KernelRegionPages = 1 << 14

const (
	// KStackPage0 and KStackPage1 are the two fixed virtual pages backing
	// the currently-running kernel stack. Their PTEs are rewritten on
	// every context switch rather than remapped through the normal
	// brk path.
	KStackPage0 = KernelRegionPages - 2
	KStackPage1 = KernelRegionPages - 1
)

// KernelTable is the single Region0 page table shared by every kernel
// thread. There is exactly one of these per running kernel, unlike Region1
// tables, of which there is one per process.
type KernelTable struct {
	entries []PTE
	alloc   *pmm.Bitmap
	machine hal.Machine

	origBrk uint64
	brk     uint64
	preVM   bool
}

// NewKernelTable reserves textPages worth of identity-mapped frames for the
// kernel image and returns a table ready to be handed to the machine. It
// must be called before EnableVM ( pre-VM bootstrap path): every page
// it maps is claimed directly against the allocator via MarkUsed rather than
// Alloc, because the frame numbers are dictated by the identity mapping, not
// chosen by the allocator.
func NewKernelTable(alloc *pmm.Bitmap, machine hal.Machine, textPages uint64) *KernelTable {
	kt := &KernelTable{
		entries: make([]PTE, KernelRegionPages),
		alloc:   alloc,
		machine: machine,
		preVM:   true,
	}
	for p := uint64(0); p < textPages; p++ {
		alloc.MarkUsed(pmm.Frame(p))
		kt.entries[p] = NewPTE(pmm.Frame(p), FlagPresent|FlagExec|FlagRW)
	}
	kt.origBrk = textPages
	kt.brk = textPages
	kt.publish()
	return kt
}

func (kt *KernelTable) publish() {
	raw := make([]uint64, len(kt.entries))
	for i, e := range kt.entries {
		raw[i] = uint64(e)
	}
	kt.machine.SetVMRegister(hal.Region0, raw)
	kt.machine.FlushTLB(hal.Region0)
}

// EnableVM turns on translation for both regions and marks the kernel table
// as no longer in its pre-VM bootstrap phase, after which SetBrk enforces
// the ordinary shrink/grow invariants instead of the bootstrap-only ones.
func (kt *KernelTable) EnableVM() {
	kt.machine.EnableVM()
	kt.preVM = false
}

// Brk returns the current kernel break, in pages.
func (kt *KernelTable) Brk() uint64 { return kt.brk }

// SetBrk grows or shrinks the kernel heap to end at newBrk (exclusive,
// in pages), mapping or unmapping frames as needed. It implements
// set_kernel_brk: shrinking below the original boot break, or growing into
// (or within one page of) the kernel stack, is rejected without changing any
// state.
func (kt *KernelTable) SetBrk(newBrk uint64) *kerr.Error {
	if kt.preVM && newBrk < kt.brk {
		return kerr.New("vmm", "kernel break may not shrink during the pre-VM bootstrap", kerr.InvalidArgument)
	}
	if newBrk < kt.origBrk {
		return kerr.New("vmm", "kernel break may not shrink below the original boot break", kerr.InvalidArgument)
	}
	if newBrk+1 >= KStackPage0 {
		return kerr.New("vmm", "kernel break may not grow into the kernel stack", kerr.InvalidArgument)
	}

	switch {
	case newBrk > kt.brk:
		grown := make([]uint64, 0, newBrk-kt.brk)
		for p := kt.brk; p < newBrk; p++ {
			f := kt.alloc.Alloc()
			if !f.IsValid() {
				for _, gp := range grown {
					kt.alloc.Free(kt.entries[gp].Frame())
					kt.entries[gp] = 0
				}
				return kerr.New("vmm", "no free frames to grow kernel break", kerr.NoMemory)
			}
			kt.entries[p] = NewPTE(f, FlagPresent|FlagRW)
			grown = append(grown, p)
		}
	case newBrk < kt.brk:
		for p := newBrk; p < kt.brk; p++ {
			if kt.entries[p].HasFlags(FlagPresent) {
				kt.alloc.Free(kt.entries[p].Frame())
			}
			kt.entries[p] = 0
		}
	}
	kt.brk = newBrk
	kt.publish()
	return nil
}

// SetKernelStackFrames rewrites the two fixed kernel-stack PTEs to point at
// f0/f1 and republishes the table. Called once per context switch so the
// currently-running thread's stack pages always resolve through the same
// two virtual addresses.
func (kt *KernelTable) SetKernelStackFrames(f0, f1 pmm.Frame) {
	kt.entries[KStackPage0] = NewPTE(f0, FlagPresent|FlagRW)
	kt.entries[KStackPage1] = NewPTE(f1, FlagPresent|FlagRW)
	kt.publish()
}
