package kernel

import (
	"strconv"

	"nucleus/kernel/kerr"
	"nucleus/kernel/mm/vmm"
)

// Fork implements the Fork syscall: it duplicates the calling process's
// address space and kernel execution point into a brand-new PCB, which is
// placed on the ready queue. The parent returns the child's pid; the
// child starts from a copy of the parent's UserContext taken before the
// trap layer writes the parent's result, so the child's register 0 still
// holds SysFork, which is 0.
func (k *Kernel) Fork(parent *PCB) (int, *kerr.Error) {
	pid := k.allocPID()
	child, ok := NewPCB(pid, k.alloc)
	if !ok {
		k.retirePID(pid)
		return 0, kerr.New("kernel", "fork: no free frames for child kernel stack", kerr.NoMemory)
	}
	clone, err := parent.User.Clone(k.alloc)
	if err != nil {
		k.alloc.Free(child.KStack[0])
		k.alloc.Free(child.KStack[1])
		k.retirePID(pid)
		return 0, err
	}
	child.User = clone
	child.UserCtx = parent.UserCtx
	child.LastUserDataPage = parent.LastUserDataPage
	child.LastUserStackPage = parent.LastUserStackPage
	child.Parent = parent
	parent.Children = append(parent.Children, child)

	k.procs[pid] = child
	k.cloneInto(parent, child)
	k.ready.PushFront(child)
	return pid, nil
}

// Exec implements the Exec syscall: it discards the caller's current
// address space entirely and loads a fresh program image in its place.
// Open pipes/locks/cvars the process holds references to are untouched --
// only the address space and user execution point reset.
func (k *Kernel) Exec(caller *PCB, path string, argv []string) *kerr.Error {
	caller.User.Destroy(k.alloc)
	caller.User = vmm.NewUserTable()
	caller.LastUserDataPage = 0
	caller.LastUserStackPage = 0
	target := &loadTarget{pcb: caller, alloc: k.alloc}
	uctx, loadErr := k.machine.LoadProgram(path, argv, target)
	if loadErr != nil {
		return kerr.New("kernel", "exec: "+loadErr.Error(), kerr.Generic)
	}
	caller.UserCtx = uctx
	return nil
}

// Exit implements the Exit syscall: release any held lock, free the
// address space, orphan any children, and either free the PCB outright (if
// it has no parent left to reap it) or leave it marked exited in its
// parent's Children list for the parent's Wait to collect. init exiting halts the machine: there is no
// shell to hand control back to.
func (k *Kernel) Exit(caller *PCB, status int) {
	if caller.HeldLock != nil {
		k.forceRelease(caller, caller.HeldLock)
	}
	caller.User.Destroy(k.alloc)
	for _, child := range caller.Children {
		child.Parent = nil
	}
	caller.Children = nil
	caller.Exited = true
	caller.ExitStatus = status
	caller.Reason = ReasonDefunct

	if caller.PID == k.initPID {
		k.log.Info("init exited, halting machine", "status", status)
		k.machine.Abort("init exited with status " + strconv.Itoa(status))
		return
	}

	parent := caller.Parent
	if parent == nil {
		k.alloc.Free(caller.KStack[0])
		k.alloc.Free(caller.KStack[1])
		delete(k.procs, caller.PID)
		k.retirePID(caller.PID)
	} else if parent.Reason == ReasonWaitingChildren {
		parent.Reason = ReasonNone
		k.ready.PushFront(parent)
	}
	k.scheduleAway()
}

// Wait implements the Wait syscall: collect an already-exited child if one
// exists, freeing its kernel-stack frames and removing it from the process
// table; otherwise block until Exit wakes this process. It fails
// immediately if the caller has no children at all.
func (k *Kernel) Wait(caller *PCB) (pid int, status int, blocked bool, err *kerr.Error) {
	if len(caller.Children) == 0 {
		return 0, 0, false, kerr.New("kernel", "wait: no children", kerr.Precondition)
	}
	for i, child := range caller.Children {
		if !child.Exited {
			continue
		}
		caller.Children = append(caller.Children[:i:i], caller.Children[i+1:]...)
		delete(k.procs, child.PID)
		k.alloc.Free(child.KStack[0])
		k.alloc.Free(child.KStack[1])
		k.retirePID(child.PID)
		return child.PID, child.ExitStatus, false, nil
	}
	caller.Reason = ReasonWaitingChildren
	return 0, 0, true, nil
}

// Delay implements the Delay syscall: block the caller until at least
// clockTicks clock traps have elapsed since the call.
func (k *Kernel) Delay(caller *PCB, clockTicks int) (blocked bool, err *kerr.Error) {
	if clockTicks < 0 {
		return false, kerr.New("kernel", "delay: negative tick count", kerr.InvalidArgument)
	}
	if clockTicks == 0 {
		return false, nil
	}
	if caller.DelayUntil == 0 {
		caller.DelayUntil = k.ticks + uint64(clockTicks)
	}
	if k.ticks < caller.DelayUntil {
		caller.Reason = ReasonDelay
		return true, nil
	}
	caller.DelayUntil = 0
	return false, nil
}

// Brk implements the Brk syscall: grow or shrink the caller's heap break
// to end at newBrkPage.
func (k *Kernel) Brk(caller *PCB, newBrkPage uint64) *kerr.Error {
	return caller.User.GrowBrk(k.alloc, newBrkPage)
}

// GetPid implements the GetPid syscall.
func (k *Kernel) GetPid(caller *PCB) int {
	return caller.PID
}

func (k *Kernel) allocPID() int   { return k.machine.AllocPID() }
func (k *Kernel) retirePID(p int) { k.machine.RetirePID(p) }
