package kernel

import "nucleus/hal"

// switchTo makes next the running process. It rewrites the two fixed
// kernel-stack page-table entries to next's frames, re-points the region-1
// page-table-base register at next's own address space and flushes its
// TLB, then calls through the machine's KernelContextSwitch with
// switchTrampoline, which is what actually saves/restores the opaque
// per-thread kernel context.
func (k *Kernel) switchTo(next *PCB) {
	prev := k.running
	k.running = next
	k.ktable.SetKernelStackFrames(next.KStack[0], next.KStack[1])
	k.machine.SetVMRegister(hal.Region1, next.User.Raw())
	k.machine.FlushTLB(hal.Region1)
	k.machine.KernelContextSwitch(switchTrampoline, prev, next)
}

// switchTrampoline is the generic kernel-context swap: save the outgoing
// context on whichever PCB was running, then hand back the incoming
// process's previously saved context (or its zero value, for a process
// that has never run before, which the machine interprets as "enter at
// the saved UserContext").
func switchTrampoline(outgoing hal.KernelContext, a, b any) hal.KernelContext {
	if a != nil {
		if prev, ok := a.(*PCB); ok && prev != nil {
			prev.KernelCtx = outgoing
		}
	}
	next := b.(*PCB)
	return next.KernelCtx
}

// cloneInto duplicates the calling process's kernel context into child, the
// way Fork gives the new process a kernel stack that will resume exactly
// where the parent's Fork call left off. Unlike switchTo, control
// does not leave the parent: this only seeds the child's saved context so a
// later switchTo(child) resumes it correctly.
func (k *Kernel) cloneInto(parent, child *PCB) {
	k.machine.KernelContextSwitch(cloneTrampoline, parent, child)
}

func cloneTrampoline(outgoing hal.KernelContext, a, b any) hal.KernelContext {
	parent := a.(*PCB)
	child := b.(*PCB)
	parent.KernelCtx = outgoing
	child.KernelCtx = outgoing
	return outgoing
}
