package kernel

import "nucleus/kernel/mm"

// stackGrowthWindow is how far below the stack's lowest page (StackLo) a
// fault is still considered stack growth rather than a wild access.
const stackGrowthWindow = 2

// MemoryFault handles the TrapMemory vector. A fault above the heap break
// and within stackGrowthWindow pages below the stack's lowest page is
// treated as stack growth and satisfied by mapping the missing
// pages; anything else is an unrecoverable access and the faulting process
// is killed as if it had called Exit with a distinguished status.
func (k *Kernel) MemoryFault(caller *PCB, faultAddr uintptr) {
	faultPage := mm.PageFromAddress(faultAddr)
	stackLo := caller.User.StackLo()

	growthFloor := uint64(0)
	if stackLo > stackGrowthWindow {
		growthFloor = stackLo - stackGrowthWindow
	}

	if faultPage > caller.User.Brk() && faultPage >= growthFloor && faultPage < stackLo {
		if err := caller.User.GrowStackTo(k.alloc, faultPage); err == nil {
			caller.LastUserStackPage = caller.User.StackLo()
			return
		}
	}

	k.log.Warn("killing process on unrecoverable memory fault", "pid", caller.PID, "fault_page", faultPage)
	k.Exit(caller, memoryFaultExitStatus)
}

// memoryFaultExitStatus is the exit status a process killed by the memory
// trap reports to its parent's Wait, distinguishing it from a normal exit.
const memoryFaultExitStatus = -2
