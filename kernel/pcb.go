package kernel

import (
	"nucleus/hal"
	"nucleus/kernel/mm/pmm"
	"nucleus/kernel/mm/vmm"
)

// Reason records why a PCB is not currently on the ready queue. A running or
// ready process always carries ReasonNone. ReasonPipeRead, ReasonLockAcquire,
// ReasonCvarWait and ReasonTtyRead name the wait queue the process is linked
// into; ReasonTtyWrite means it is either queued on the terminal's writers or
// waiting as the terminal's pending writer; ReasonDelay,
// ReasonWaitingChildren and ReasonDefunct link it into no queue.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonWaitingChildren
	ReasonDelay
	ReasonPipeRead
	ReasonLockAcquire
	ReasonCvarWait
	ReasonTtyRead
	ReasonTtyWrite
	ReasonDefunct
)

// PCB is the kernel's process control block. Every live process has exactly
// one; the idle process also has one, constructed specially by Boot.
type PCB struct {
	PID    int
	Parent *PCB // weak: does not keep the parent alive past its own exit
	Children []*PCB

	User      *vmm.UserTable
	UserCtx   hal.UserContext
	KernelCtx hal.KernelContext
	KStack    [2]pmm.Frame

	// LastUserDataPage and LastUserStackPage record the extent of the
	// process's loaded segments and stack. The memory-fault handler
	// classifies a faulting address by the UserTable's own Brk and StackLo,
	// and updates LastUserStackPage after growing the stack.
	LastUserDataPage  uint64
	LastUserStackPage uint64

	Reason Reason

	// DelayUntil is the tick count at which a ReasonDelay process becomes
	// ready again.
	DelayUntil uint64

	// ExitStatus and Exited record a defunct child's terminal state until
	// its parent collects it with Wait.
	ExitStatus int
	Exited     bool

	// HeldLock is non-nil while this process holds a lock it must
	// release automatically on exit.
	HeldLock *Lock

	// pendingSyscall is non-nil when this PCB blocked partway through a
	// syscall. Since the kernel never suspends a Go call stack mid
	// syscall (one goroutine, no per-process stacks), a blocked
	// syscall instead records its own arguments here and returns
	// immediately; the scheduler redispatches HandleSyscall with these
	// same args the next time this PCB is chosen to run, letting the
	// syscall pick up where its own state (Reason, and the fields below)
	// says it left off.
	pendingSyscall *TrapArgs

	// cvarResuming marks a CvarWait call that has already released its
	// lock and waited on the condition variable; the next dispatch must
	// reacquire the lock rather than repeat the release-and-wait step.
	cvarResuming bool

	// ttyRemaining/ttyInProgress track a TtyWrite's progress across
	// however many MaxLineLen()-sized chunks and TrapTTYTransmit
	// completions it takes to send the whole buffer.
	ttyRemaining  []byte
	ttyInProgress bool

	// qnext is the intrusive forward link used by Queue. A PCB is never
	// on more than one queue at a time, which is exactly what the
	// blocking-reason field above also guarantees.
	qnext *PCB
}

// NewPCB allocates a PCB with a fresh address space and two kernel-stack
// frames drawn from alloc. It does not enqueue the PCB anywhere; callers
// decide where a freshly created process starts its life.
func NewPCB(pid int, alloc *pmm.Bitmap) (*PCB, bool) {
	f0 := alloc.Alloc()
	if !f0.IsValid() {
		return nil, false
	}
	f1 := alloc.Alloc()
	if !f1.IsValid() {
		alloc.Free(f0)
		return nil, false
	}
	return &PCB{
		PID:    pid,
		User:   vmm.NewUserTable(),
		KStack: [2]pmm.Frame{f0, f1},
	}, true
}

// Blocked reports whether the PCB is off the ready queue for any reason.
func (p *PCB) Blocked() bool { return p.Reason != ReasonNone }
