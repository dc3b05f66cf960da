// Package sim implements a deterministic, in-process hal.Machine used by
// every kernel test. It models terminals as plain byte queues the test
// feeds and inspects directly, and "loads" programs from an in-memory
// registry rather than an ELF file, since nothing in this package ever
// interprets real machine code.
package sim

import (
	"fmt"

	"nucleus/hal"
	"nucleus/kernel/mm"
)

// ProgramFunc builds a fresh user address space through target and returns
// the UserContext execution should begin at. Tests register these under a
// path name the way hal/host's LoadProgram resolves a path on disk.
type ProgramFunc func(target hal.ProgramTarget) (hal.UserContext, error)

// Machine is the deterministic in-memory hal.Machine.
type Machine struct {
	totalFrames int
	maxLineLen  int

	vmEnabled bool
	region0   []uint64
	region1   []uint64

	nextPID  int
	freePIDs []int

	terminals   []terminalState
	transmitted [][][]byte

	programs map[string]ProgramFunc

	aborted  bool
	abortMsg string
}

type terminalState struct {
	inbox []byte
}

// New returns a Machine with totalFrames physical frames and terminalCount
// terminals, each accepting transmits up to maxLineLen bytes at a time.
func New(totalFrames, terminalCount, maxLineLen int) *Machine {
	return &Machine{
		totalFrames: totalFrames,
		maxLineLen:  maxLineLen,
		terminals:   make([]terminalState, terminalCount),
		transmitted: make([][][]byte, terminalCount),
		programs:    make(map[string]ProgramFunc),
	}
}

// RegisterProgram makes fn loadable under path by LoadProgram.
func (m *Machine) RegisterProgram(path string, fn ProgramFunc) {
	m.programs[path] = fn
}

// Feed appends data to terminal tty's simulated input queue; a subsequent
// driver-issued TrapTTYReceive delivers it to the kernel.
func (m *Machine) Feed(tty int, data []byte) {
	m.terminals[tty].inbox = append(m.terminals[tty].inbox, data...)
}

// Transmitted returns every chunk TtyTransmit has sent to terminal tty, in
// order, for test assertions.
func (m *Machine) Transmitted(tty int) [][]byte {
	return m.transmitted[tty]
}

// Aborted reports whether Abort has been called, and with what message.
func (m *Machine) Aborted() (bool, string) {
	return m.aborted, m.abortMsg
}

func (m *Machine) TotalFrames() int { return m.totalFrames }

func (m *Machine) SetVMRegister(region hal.Region, table []uint64) {
	cp := append([]uint64(nil), table...)
	if region == hal.Region0 {
		m.region0 = cp
	} else {
		m.region1 = cp
	}
}

func (m *Machine) FlushTLB(hal.Region) {
	// No cached translations are modeled; every lookup would already go
	// through the freshly-published table.
}

func (m *Machine) EnableVM()        { m.vmEnabled = true }
func (m *Machine) VMEnabled() bool  { return m.vmEnabled }

func (m *Machine) KernelContextSwitch(trampoline hal.Trampoline, a, b any) hal.KernelContext {
	return trampoline(hal.KernelContext{}, a, b)
}

func (m *Machine) TtyTransmit(tty int, buf []byte) {
	m.transmitted[tty] = append(m.transmitted[tty], append([]byte(nil), buf...))
}

func (m *Machine) TtyReceive(tty int, maxlen int) []byte {
	t := &m.terminals[tty]
	n := maxlen
	if n > len(t.inbox) {
		n = len(t.inbox)
	}
	out := append([]byte(nil), t.inbox[:n]...)
	t.inbox = t.inbox[n:]
	return out
}

func (m *Machine) TerminalCount() int { return len(m.terminals) }
func (m *Machine) MaxLineLen() int    { return m.maxLineLen }

func (m *Machine) AllocPID() int {
	if n := len(m.freePIDs); n > 0 {
		pid := m.freePIDs[n-1]
		m.freePIDs = m.freePIDs[:n-1]
		return pid
	}
	m.nextPID++
	return m.nextPID
}

func (m *Machine) RetirePID(pid int) {
	m.freePIDs = append(m.freePIDs, pid)
}

func (m *Machine) LoadProgram(path string, argv []string, into hal.ProgramTarget) (hal.UserContext, error) {
	prog, ok := m.programs[path]
	if !ok {
		return hal.UserContext{}, fmt.Errorf("sim: no program registered at %q", path)
	}
	return prog(into)
}

func (m *Machine) Abort(msg string) {
	m.aborted = true
	m.abortMsg = msg
	panic("sim: machine aborted: " + msg)
}

// TrivialProgram returns a ProgramFunc that maps a single read/write/exec
// page at the bottom of the address space and starts execution at entry
// with the stack pointer at the top of the user region. It exists so tests
// have a minimal, reusable stand-in for "idle"/"init"-style programs
// without hand-writing MapSegment calls in every test.
func TrivialProgram(entry uintptr) ProgramFunc {
	return func(target hal.ProgramTarget) (hal.UserContext, error) {
		if err := target.MapSegment(0, 1, true, true, nil); err != nil {
			return hal.UserContext{}, err
		}
		target.SetBreak(1)
		top := target.StackTop()
		return hal.UserContext{PC: entry, SP: mm.AddressOfPage(top)}, nil
	}
}
