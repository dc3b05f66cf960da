// Package hal defines the interface through which the kernel talks to "the
// machine" -- hardware described by name and role rather than by ABI. Two
// implementations exist: sim (deterministic, in-process, used by every
// kernel test) and host (a real backend that loads ELF binaries and drives
// a real terminal).
package hal

// Region identifies one of the two halves of the virtual address space.
type Region int

const (
	// Region0 is the kernel-only half of the address space.
	Region0 Region = iota
	// Region1 is the user-only half of the address space.
	Region1
)

// TrapCode identifies which trap vector slot fired.
type TrapCode int

const (
	TrapKernel TrapCode = iota
	TrapClock
	TrapIllegal
	TrapMemory
	TrapMath
	TrapTTYReceive
	TrapTTYTransmit
	trapCount
)

// Regs is a snapshot of the general-purpose registers visible to user code:
// arguments arrive in 0..N and the return value is written back to
// register 0.
type Regs [8]int64

// UserContext is the hardware-saved state of a user-mode process: its
// registers plus whatever the machine needs to resume it (here, a single
// program counter/stack-pointer pair is enough since the simulated machine
// does not model a full ISA).
type UserContext struct {
	Regs Regs
	PC   uintptr
	SP   uintptr
}

// KernelContext is the opaque, machine-specific saved state of a kernel
// thread's execution point. The kernel never inspects its contents; it is
// produced and consumed only by KernelContextSwitch.
type KernelContext struct {
	// SP is the saved kernel stack pointer at the point of the switch.
	SP uintptr
	// PC is the point execution resumes at when this context is restored.
	PC uintptr
}

// Trampoline is a callback invoked by KernelContextSwitch. It receives the
// outgoing kernel context plus the two opaque arguments the caller supplied
// and returns the kernel context to install for the incoming thread.
type Trampoline func(outgoing KernelContext, a, b any) KernelContext

// FrameNumber is a physical memory frame index.
type FrameNumber uint64

// PageNumber is a virtual memory page index within one region.
type PageNumber uint64

// Machine is everything the kernel needs from "the hardware".
type Machine interface {
	// TotalFrames returns the number of physical frames available.
	TotalFrames() int

	// SetVMRegister points the page-table-base/length register for the
	// given region at table, described as a slice of raw PTE words the
	// machine interprets according to its own encoding.
	SetVMRegister(region Region, table []uint64)

	// FlushTLB invalidates all cached translations for region.
	FlushTLB(region Region)

	// EnableVM turns on address translation. Before this call the
	// machine runs with an identity mapping.
	EnableVM()
	// VMEnabled reports whether EnableVM has been called.
	VMEnabled() bool

	// KernelContextSwitch invokes trampoline with a fresh outgoing kernel
	// context and returns whatever trampoline computes for the incoming
	// side. This models the hardware-provided context-switch function at
	// the level the rest of the kernel actually needs: the bookkeeping of
	// which saved register window belongs to which process. The kernel
	// never suspends a Go call stack across this call -- a process that
	// blocks mid syscall records its own resumption state instead and is
	// redispatched by the scheduler, rather than relying on this call to
	// park it.
	KernelContextSwitch(trampoline Trampoline, a, b any) KernelContext

	// TtyTransmit asynchronously writes buf to terminal tty. Completion
	// is signaled later by a TrapTTYTransmit trap.
	TtyTransmit(tty int, buf []byte)
	// TtyReceive drains whatever input is currently queued for terminal
	// tty, up to maxlen bytes.
	TtyReceive(tty int, maxlen int) []byte
	// TerminalCount returns the number of terminals the machine exposes.
	TerminalCount() int
	// MaxLineLen returns the hardware's maximum single-transmit length.
	MaxLineLen() int

	// AllocPID returns a fresh, previously unused process id.
	AllocPID() int
	// RetirePID returns pid to the allocator's free pool.
	RetirePID(pid int)

	// LoadProgram loads the named program's image into addr space,
	// returning the UserContext execution should resume at. path/argv
	// are passed through from Exec/the boot configuration.
	LoadProgram(path string, argv []string, into ProgramTarget) (UserContext, error)

	// Abort halts the machine. It never returns.
	Abort(msg string)
}

// ProgramTarget is the minimal surface LoadProgram needs from a process's
// user address space: a callback per loadable segment. The kernel package
// supplies the concrete implementation (over its vm.UserTable) so that hal
// never needs to import the kernel's page-table types directly.
type ProgramTarget interface {
	// MapSegment maps count pages starting at virtual page vpage with
	// the given permissions and takes the segment's bytes in data. It
	// returns an error if a frame could not be allocated.
	MapSegment(vpage uint64, count int, writable, executable bool, data []byte) error
	// SetBreak records where the user-data break should start following
	// the loaded segments.
	SetBreak(vpage uint64)
	// StackTop returns the virtual page one below the top of the user
	// stack region, where LoadProgram should place argv.
	StackTop() uint64
}
