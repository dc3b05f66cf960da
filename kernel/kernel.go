// Package kernel implements the teaching microkernel described by this
// repository: a paged virtual-memory model, a cooperative kernel-context
// scheduler, a trap-vector dispatcher, and the process/IPC/synchronization
// syscalls built on top of them. It talks to "hardware" exclusively through
// the hal.Machine interface, so the exact same kernel logic runs against a
// deterministic in-memory machine in tests and a real host machine in
// cmd/nucleus.
package kernel

import (
	"log/slog"

	"nucleus/hal"
	"nucleus/kernel/kerr"
	"nucleus/kernel/mm/pmm"
	"nucleus/kernel/mm/vmm"
)

// Error is the kernel's error value, re-exported from kerr so call sites
// outside this package can refer to kernel.Error directly.
type Error = kerr.Error

// Kernel holds every piece of global kernel state: the frame allocator, the
// single kernel page table, every process (by pid and via the ready
// queue), and the synchronization-object registries. There is exactly one
// per running machine.
type Kernel struct {
	machine hal.Machine
	log     *slog.Logger

	alloc   *pmm.Bitmap
	ktable  *vmm.KernelTable

	procs map[int]*PCB
	ready Queue

	locks   map[int]*Lock
	cvars   map[int]*Cvar
	pipes   map[int]*Pipe

	// nextLockID/nextCvarID/nextPipeID hand out ids from disjoint ranges
	// so an id alone identifies its object kind: locks are positive even
	// integers, condition variables are positive odd integers, and pipes
	// are negative integers counting down from -1.
	nextLockID int
	nextCvarID int
	nextPipeID int

	terminals []terminal

	ticks uint64

	idle    *PCB
	running *PCB

	initPID int
}

// BootConfig is the set of parameters Boot needs beyond what the machine
// itself reports.
type BootConfig struct {
	// InitProgram is the path the idle-adjacent "init" process loads.
	InitProgram string
	// InitArgv is argv passed to the init program.
	InitArgv []string
	// KernelTextPages is how many pages of the kernel region are
	// identity-mapped before EnableVM (the pre-VM bootstrap).
	KernelTextPages uint64
	// KernelHeapPages is how many pages beyond KernelTextPages to reserve
	// up front for kernel-side bookkeeping (per-terminal staging buffers,
	// syscall argument scratch space), grown via the kernel table's own
	// SetBrk during the pre-VM bootstrap.
	KernelHeapPages uint64
}

// Boot constructs a Kernel over machine, performs the pre-VM bootstrap,
// creates the idle process and the init process, enables virtual memory,
// and returns with init as the running process ready for its first
// KernelContextSwitch.
func Boot(m hal.Machine, log *slog.Logger, cfg BootConfig) (*Kernel, *kerr.Error) {
	if log == nil {
		log = slog.Default()
	}
	k := &Kernel{
		machine:    m,
		log:        log,
		alloc:      pmm.NewBitmap(m.TotalFrames()),
		procs:      make(map[int]*PCB),
		locks:      make(map[int]*Lock),
		cvars:      make(map[int]*Cvar),
		pipes:      make(map[int]*Pipe),
		terminals:  make([]terminal, m.TerminalCount()),
		nextLockID: 2,
		nextCvarID: 1,
		nextPipeID: -1,
	}
	k.ktable = vmm.NewKernelTable(k.alloc, m, cfg.KernelTextPages)
	if cfg.KernelHeapPages > 0 {
		if err := k.ktable.SetBrk(cfg.KernelTextPages + cfg.KernelHeapPages); err != nil {
			return nil, kerr.New("kernel", "boot: "+err.Error(), err.Code)
		}
	}

	idle, ok := NewPCB(m.AllocPID(), k.alloc)
	if !ok {
		return nil, kerr.New("kernel", "boot: no free frames for idle process", kerr.NoMemory)
	}
	k.idle = idle
	k.procs[idle.PID] = idle
	k.ktable.SetKernelStackFrames(idle.KStack[0], idle.KStack[1])

	init, ok := NewPCB(m.AllocPID(), k.alloc)
	if !ok {
		return nil, kerr.New("kernel", "boot: no free frames for init process", kerr.NoMemory)
	}
	target := &loadTarget{pcb: init, alloc: k.alloc}
	uctx, err := m.LoadProgram(cfg.InitProgram, cfg.InitArgv, target)
	if err != nil {
		return nil, kerr.New("kernel", "boot: "+err.Error(), kerr.Generic)
	}
	init.UserCtx = uctx
	k.procs[init.PID] = init
	k.running = init
	k.initPID = init.PID

	k.machine.SetVMRegister(hal.Region1, init.User.Raw())
	k.machine.FlushTLB(hal.Region1)
	k.ktable.EnableVM()
	k.log.Info("boot complete", "init_pid", init.PID, "idle_pid", idle.PID, "frames", k.alloc.Total())
	return k, nil
}

// Running returns the currently-running PCB.
func (k *Kernel) Running() *PCB { return k.running }

// Ticks returns the number of clock traps handled so far.
func (k *Kernel) Ticks() uint64 { return k.ticks }
