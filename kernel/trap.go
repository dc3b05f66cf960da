package kernel

import (
	"nucleus/hal"
	"nucleus/kernel/kerr"
)

// SyscallNumber identifies which syscall a TrapKernel carries, written into
// UserContext.Regs[0] by user code before trapping.
type SyscallNumber int64

const (
	SysFork SyscallNumber = iota
	SysExec
	SysExit
	SysWait
	SysDelay
	SysBrk
	SysGetPid
	SysPipeInit
	SysPipeRead
	SysPipeWrite
	SysLockInit
	SysAcquire
	SysRelease
	SysCvarInit
	SysCvarSignal
	SysCvarBroadcast
	SysCvarWait
	SysReclaim
	SysTtyRead
	SysTtyWrite
)

// errCode maps a kerr.Code onto the single negative return-register
// convention every syscall shares: success is always >= 0.
func errCode(e *kerr.Error) int64 {
	if e == nil {
		return 0
	}
	switch e.Code {
	case kerr.NoMemory:
		return -2
	case kerr.InvalidArgument:
		return -3
	case kerr.Precondition:
		return -4
	case kerr.Fatal:
		return -5
	default:
		return -1
	}
}

func (k *Kernel) setResult(caller *PCB, value int64, err *kerr.Error) {
	if err != nil {
		caller.UserCtx.Regs[0] = errCode(err)
		return
	}
	caller.UserCtx.Regs[0] = value
}

// TrapArgs carries a syscall's arguments across the trap boundary. Regs
// holds the numeric arguments the way a real ABI would; Bytes/Path/Argv
// exist only because the simulated machine keeps no byte-addressable
// physical memory a trap handler could read a user buffer out of (see
// vmm.UserTable.MapSegment, which discards segment bytes once mapped) --
// the driver (hal/sim or hal/host) is responsible for collecting these from
// wherever it models user memory and attaching them here. A blocked
// syscall's TrapArgs are retained verbatim on the PCB and replayed by the
// scheduler once it is chosen to run again (see activate).
type TrapArgs struct {
	Regs  hal.Regs
	Bytes []byte
	Path  string
	Argv  []string
}

// block records that caller blocked partway through the syscall described
// by args and schedules a different process to run in its place.
func (k *Kernel) block(caller *PCB, args TrapArgs) {
	caller.pendingSyscall = &args
	k.scheduleAway()
}

// HandleSyscall dispatches a TrapKernel for the currently-running process.
// It returns a byte payload only for TtyRead, whose result the caller
// cannot fit into the register convention; every other syscall communicates
// its result purely through caller.UserCtx.Regs once this returns with the
// same process still running.
func (k *Kernel) HandleSyscall(args TrapArgs) []byte {
	caller := k.running

	switch SyscallNumber(args.Regs[0]) {
	case SysFork:
		pid, err := k.Fork(caller)
		k.setResult(caller, int64(pid), err)
	case SysExec:
		err := k.Exec(caller, args.Path, args.Argv)
		k.setResult(caller, 0, err)
	case SysExit:
		k.Exit(caller, int(args.Regs[1]))
	case SysWait:
		pid, status, blocked, err := k.Wait(caller)
		if blocked {
			k.block(caller, args)
			return nil
		}
		if err != nil {
			k.setResult(caller, -1, err)
			return nil
		}
		caller.UserCtx.Regs[0] = int64(pid)
		caller.UserCtx.Regs[1] = int64(status)
	case SysDelay:
		blocked, err := k.Delay(caller, int(args.Regs[1]))
		if blocked {
			k.block(caller, args)
			return nil
		}
		k.setResult(caller, 0, err)
	case SysBrk:
		err := k.Brk(caller, uint64(args.Regs[1]))
		k.setResult(caller, 0, err)
	case SysGetPid:
		caller.UserCtx.Regs[0] = int64(k.GetPid(caller))
	case SysPipeInit:
		caller.UserCtx.Regs[0] = int64(k.PipeInit())
	case SysPipeRead:
		n, blocked, err := k.PipeRead(caller, int(args.Regs[1]), int(args.Regs[2]))
		if blocked {
			k.block(caller, args)
			return nil
		}
		k.setResult(caller, int64(n), err)
	case SysPipeWrite:
		n, blocked, err := k.PipeWrite(caller, int(args.Regs[1]), args.Bytes)
		if blocked {
			k.block(caller, args)
			return nil
		}
		k.setResult(caller, int64(n), err)
	case SysLockInit:
		caller.UserCtx.Regs[0] = int64(k.LockInit())
	case SysAcquire:
		blocked, err := k.Acquire(caller, int(args.Regs[1]))
		if blocked {
			k.block(caller, args)
			return nil
		}
		k.setResult(caller, 0, err)
	case SysRelease:
		err := k.Release(caller, int(args.Regs[1]))
		k.setResult(caller, 0, err)
	case SysCvarInit:
		caller.UserCtx.Regs[0] = int64(k.CvarInit())
	case SysCvarSignal:
		err := k.CvarSignal(int(args.Regs[1]))
		k.setResult(caller, 0, err)
	case SysCvarBroadcast:
		err := k.CvarBroadcast(int(args.Regs[1]))
		k.setResult(caller, 0, err)
	case SysCvarWait:
		blocked, err := k.CvarWait(caller, int(args.Regs[1]), int(args.Regs[2]))
		if blocked {
			k.block(caller, args)
			return nil
		}
		k.setResult(caller, 0, err)
	case SysReclaim:
		err := k.Reclaim(int(args.Regs[1]))
		k.setResult(caller, 0, err)
	case SysTtyRead:
		data, blocked, err := k.TtyRead(caller, int(args.Regs[1]), int(args.Regs[2]))
		if blocked {
			k.block(caller, args)
			return nil
		}
		if err != nil {
			k.setResult(caller, -1, err)
			return nil
		}
		caller.UserCtx.Regs[0] = int64(len(data))
		return data
	case SysTtyWrite:
		blocked, err := k.TtyWrite(caller, int(args.Regs[1]), args.Bytes)
		if blocked {
			k.block(caller, args)
			return nil
		}
		k.setResult(caller, int64(len(args.Bytes)), err)
	default:
		caller.UserCtx.Regs[0] = -1
	}
	return nil
}
