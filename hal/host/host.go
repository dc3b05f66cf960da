// Package host implements the real hal.Machine used by cmd/nucleus: it
// loads genuine ELF binaries, drives terminal 0 against the real
// controlling terminal in raw mode, and exits the host process on Abort.
//
// The kernel package's own single-goroutine invariant only covers
// kernel logic; the goroutines started here to pump terminal bytes in the
// background are outside that boundary by design -- they never touch a PCB,
// a queue, or a page table, only the byte buffers this package owns.
package host

import (
	"context"
	"debug/elf"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"nucleus/hal"
	"nucleus/kernel/mm"
)

// Machine is the real, host-backed hal.Machine.
type Machine struct {
	totalFrames int
	maxLineLen  int

	vmEnabled bool
	region0   []uint64
	region1   []uint64

	nextPID  int
	freePIDs []int

	mu        sync.Mutex
	terminals []hostTerminal

	rawFD    int
	rawState *term.State
}

type hostTerminal struct {
	inbox []byte
}

// New returns a host Machine with totalFrames physical frames and
// terminalCount terminals. Terminal 0 is wired to the process's real
// stdin/stdout; any further terminals are backed by in-memory queues, since
// a single host process only has one real controlling terminal.
func New(totalFrames, maxLineLen, terminalCount int) *Machine {
	return &Machine{
		totalFrames: totalFrames,
		maxLineLen:  maxLineLen,
		terminals:   make([]hostTerminal, terminalCount),
		nextPID:     os.Getpid(),
	}
}

// EnterRawMode puts the real controlling terminal (if stdin is one) into
// raw mode, so keystrokes reach terminal 0's TtyReceive byte-for-byte
// instead of being line-buffered by the OS.
func (m *Machine) EnterRawMode() error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	st, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("host: enter raw mode: %w", err)
	}
	m.rawFD = fd
	m.rawState = st
	return nil
}

// RestoreTerminal undoes EnterRawMode. Callers should defer it right after
// a successful EnterRawMode.
func (m *Machine) RestoreTerminal() error {
	if m.rawState == nil {
		return nil
	}
	return term.Restore(m.rawFD, m.rawState)
}

// PumpStdin starts a background goroutine, coordinated by an errgroup, that
// copies bytes from os.Stdin into terminal 0's inbox until ctx is canceled
// or stdin closes. Call Wait to block for its termination.
func (m *Machine) PumpStdin(ctx context.Context) *errgroup.Group {
	g, ctx := errgroup.WithContext(ctx)
	if len(m.terminals) == 0 {
		return g
	}
	g.Go(func() error {
		buf := make([]byte, 256)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				m.mu.Lock()
				m.terminals[0].inbox = append(m.terminals[0].inbox, buf[:n]...)
				m.mu.Unlock()
			}
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
		}
	})
	return g
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

func (m *Machine) FlushTLB(hal.Region) {}

func (m *Machine) EnableVM()       { m.vmEnabled = true }
func (m *Machine) VMEnabled() bool { return m.vmEnabled }

func (m *Machine) KernelContextSwitch(trampoline hal.Trampoline, a, b any) hal.KernelContext {
	return trampoline(hal.KernelContext{}, a, b)
}

// TtyTransmit writes directly to stdout for terminal 0 and completes
// synchronously; cmd/nucleus's driver loop delivers the corresponding
// TrapTTYTransmit on its next tick.
func (m *Machine) TtyTransmit(tty int, buf []byte) {
	if tty == 0 {
		os.Stdout.Write(buf)
		return
	}
	// Non-console terminals have no real sink in a single-process host;
	// the bytes are simply discarded after being "sent".
}

func (m *Machine) TtyReceive(tty int, maxlen int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
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

// LoadProgram loads an ELF64 binary's PT_LOAD segments into the target
// address space, the same program-header walk the Linux boot loader this
// kernel's wider example pack carries uses.
func (m *Machine) LoadProgram(path string, argv []string, into hal.ProgramTarget) (hal.UserContext, error) {
	f, err := elf.Open(path)
	if err != nil {
		return hal.UserContext{}, fmt.Errorf("host: open %s: %w", path, err)
	}
	defer f.Close()

	var maxPage uint64
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := io.ReadFull(prog.Open(), data); err != nil && err != io.EOF {
			return hal.UserContext{}, fmt.Errorf("host: read segment of %s: %w", path, err)
		}
		vpage := mm.PageFromAddress(uintptr(prog.Vaddr))
		count := mm.PageCount(uintptr(prog.Memsz))
		writable := prog.Flags&elf.PF_W != 0
		executable := prog.Flags&elf.PF_X != 0
		if err := into.MapSegment(vpage, int(count), writable, executable, data); err != nil {
			return hal.UserContext{}, err
		}
		if end := vpage + count; end > maxPage {
			maxPage = end
		}
	}
	into.SetBreak(maxPage)
	top := into.StackTop()
	return hal.UserContext{PC: uintptr(f.Entry), SP: mm.AddressOfPage(top)}, nil
}

// Abort halts the host process.
func (m *Machine) Abort(msg string) {
	fmt.Fprintln(os.Stderr, "nucleus: machine abort:", msg)
	os.Exit(1)
}
