package vmm

import (
	"nucleus/kernel/kerr"
	"nucleus/kernel/mm/pmm"
)

// UserRegionPages bounds a process's Region1 address space. The top page is
// never mapped, so stack growth always has a sentinel to fault against.
const UserRegionPages = 1 << 16

// UserTable is one process's Region1 page table. Every PCB owns exactly
// one; it is published to the machine only while that PCB is the one
// running, via SetVMRegister(Region1, ...) in switchTo.
type UserTable struct {
	entries []PTE
	brk     uint64 // first unmapped page above the heap
	stackLo uint64 // lowest stack page; pages stackLo..UserRegionPages-2 are the stack
}

// NewUserTable returns an empty user table with nothing mapped.
func NewUserTable() *UserTable {
	return &UserTable{
		entries: make([]PTE, UserRegionPages),
		stackLo: UserRegionPages - 1,
	}
}

// Raw returns the table in the flat []uint64 form hal.Machine.SetVMRegister
// expects.
func (ut *UserTable) Raw() []uint64 {
	raw := make([]uint64, len(ut.entries))
	for i, e := range ut.entries {
		raw[i] = uint64(e)
	}
	return raw
}

// MapSegment implements hal.ProgramTarget. It allocates count fresh frames
// starting at vpage and maps them with the requested permissions. data is
// handed to writePages, which keeps none of it (see below).
func (ut *UserTable) MapSegment(alloc *pmm.Bitmap, vpage uint64, count int, writable, executable bool, data []byte) *kerr.Error {
	flags := PTE(FlagPresent)
	if writable {
		flags = flags.SetFlags(FlagRW)
	}
	if executable {
		flags = flags.SetFlags(FlagExec)
	}
	mapped := make([]uint64, 0, count)
	for i := 0; i < count; i++ {
		f := alloc.Alloc()
		if !f.IsValid() {
			for _, mp := range mapped {
				alloc.Free(ut.entries[mp].Frame())
				ut.entries[mp] = 0
			}
			return kerr.New("vmm", "no free frames to load program segment", kerr.NoMemory)
		}
		p := vpage + uint64(i)
		ut.entries[p] = NewPTE(f, flags)
		mapped = append(mapped, p)
	}
	ut.writePages(vpage, count, data)
	return nil
}

// writePages is a bookkeeping-only stand-in for copying bytes into physical
// memory: no machine in this repository keeps a physical RAM image, so the
// loaded bytes themselves are discarded once mapped.
func (ut *UserTable) writePages(vpage uint64, count int, data []byte) {
	_ = vpage
	_ = count
	_ = data
}

// SetBreak implements hal.ProgramTarget: it records where the heap begins
// following the segments LoadProgram just mapped.
func (ut *UserTable) SetBreak(vpage uint64) {
	ut.brk = vpage
}

// StackTop implements hal.ProgramTarget, returning the page just below the
// unmapped guard page at the top of the region.
func (ut *UserTable) StackTop() uint64 {
	return UserRegionPages - 2
}

// Brk returns the current user break, in pages.
func (ut *UserTable) Brk() uint64 { return ut.brk }

// StackLo returns the lowest stack page. A fresh table's stack is empty:
// StackLo is then the unmapped guard page at the top of the region.
func (ut *UserTable) StackLo() uint64 { return ut.stackLo }

// GrowBrk implements the user-space half of the Brk syscall:
// mapping or unmapping pages between the current break and newBrk. It
// refuses a break at or above the lowest stack page.
func (ut *UserTable) GrowBrk(alloc *pmm.Bitmap, newBrk uint64) *kerr.Error {
	if newBrk >= ut.stackLo {
		return kerr.New("vmm", "user break may not grow into the stack region", kerr.InvalidArgument)
	}
	switch {
	case newBrk > ut.brk:
		grown := make([]uint64, 0, newBrk-ut.brk)
		for p := ut.brk; p < newBrk; p++ {
			f := alloc.Alloc()
			if !f.IsValid() {
				for _, gp := range grown {
					alloc.Free(ut.entries[gp].Frame())
					ut.entries[gp] = 0
				}
				return kerr.New("vmm", "no free frames to grow user break", kerr.NoMemory)
			}
			ut.entries[p] = NewPTE(f, FlagPresent|FlagRW)
			grown = append(grown, p)
		}
	case newBrk < ut.brk:
		for p := newBrk; p < ut.brk; p++ {
			if ut.entries[p].HasFlags(FlagPresent) {
				alloc.Free(ut.entries[p].Frame())
			}
			ut.entries[p] = 0
		}
	}
	ut.brk = newBrk
	return nil
}

// GrowStackTo implements the automatic stack-growth path a memory trap takes
//: it maps every currently-unmapped page from faultPage up to (but
// not including) the lowest already-mapped stack page. It refuses to grow
// the stack down into the heap break.
func (ut *UserTable) GrowStackTo(alloc *pmm.Bitmap, faultPage uint64) *kerr.Error {
	if faultPage <= ut.brk {
		return kerr.New("vmm", "stack growth would collide with the heap break", kerr.Fatal)
	}
	if faultPage >= ut.stackLo {
		return nil // already mapped; not actually a growth request
	}
	grown := make([]uint64, 0, ut.stackLo-faultPage)
	for p := faultPage; p < ut.stackLo; p++ {
		f := alloc.Alloc()
		if !f.IsValid() {
			for _, gp := range grown {
				alloc.Free(ut.entries[gp].Frame())
				ut.entries[gp] = 0
			}
			return kerr.New("vmm", "no free frames to grow user stack", kerr.NoMemory)
		}
		ut.entries[p] = NewPTE(f, FlagPresent|FlagRW)
		grown = append(grown, p)
	}
	ut.stackLo = faultPage
	return nil
}

// Clone deep-copies every mapped page of ut into freshly allocated frames,
// the way Fork duplicates a process's entire address space. The
// simulated machine carries no physical byte contents to copy, so this only
// duplicates the mapping structure and consumes one fresh frame per mapped
// page from the allocator -- which is exactly the resource cost a real copy
// would have.
func (ut *UserTable) Clone(alloc *pmm.Bitmap) (*UserTable, *kerr.Error) {
	clone := NewUserTable()
	clone.brk = ut.brk
	clone.stackLo = ut.stackLo
	cloned := make([]uint64, 0, UserRegionPages)
	for p := 0; p < UserRegionPages; p++ {
		e := ut.entries[p]
		if !e.HasFlags(FlagPresent) {
			continue
		}
		f := alloc.Alloc()
		if !f.IsValid() {
			for _, cp := range cloned {
				alloc.Free(clone.entries[cp].Frame())
				clone.entries[cp] = 0
			}
			return nil, kerr.New("vmm", "no free frames to fork address space", kerr.NoMemory)
		}
		clone.entries[p] = e.WithFrame(f)
		cloned = append(cloned, uint64(p))
	}
	return clone, nil
}

// Destroy frees every frame ut has mapped. Called when a process exits and
// its address space is reclaimed.
func (ut *UserTable) Destroy(alloc *pmm.Bitmap) {
	for p := range ut.entries {
		if ut.entries[p].HasFlags(FlagPresent) {
			alloc.Free(ut.entries[p].Frame())
			ut.entries[p] = 0
		}
	}
}
