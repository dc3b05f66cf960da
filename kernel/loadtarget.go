package kernel

import (
	"nucleus/hal"
	"nucleus/kernel/mm/pmm"
)

// loadTarget adapts a PCB's UserTable to hal.ProgramTarget, so hal.Machine's
// LoadProgram can populate an address space without importing vmm. It is
// constructed fresh for each LoadProgram call (Boot's init load, and every
// Exec).
type loadTarget struct {
	pcb   *PCB
	alloc *pmm.Bitmap
}

func (lt *loadTarget) MapSegment(vpage uint64, count int, writable, executable bool, data []byte) error {
	if err := lt.pcb.User.MapSegment(lt.alloc, vpage, count, writable, executable, data); err != nil {
		return err
	}
	if vpage+uint64(count) > lt.pcb.LastUserDataPage {
		lt.pcb.LastUserDataPage = vpage + uint64(count)
	}
	return nil
}

func (lt *loadTarget) SetBreak(vpage uint64) {
	lt.pcb.User.SetBreak(vpage)
}

func (lt *loadTarget) StackTop() uint64 {
	top := lt.pcb.User.StackTop()
	lt.pcb.LastUserStackPage = top
	return top
}

var _ hal.ProgramTarget = (*loadTarget)(nil)
