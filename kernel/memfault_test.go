package kernel

import (
	"testing"

	"nucleus/kernel/mm"
)

func TestMemoryFaultGrowsStackWithinWindow(t *testing.T) {
	k, _ := newTestKernel(t, 256, 1)
	childPID, err := k.Fork(k.Running())
	if err != nil {
		t.Fatalf("fork: %v", err)
	}
	caller := k.procs[childPID]
	if err := k.Brk(caller, 4); err != nil {
		t.Fatalf("brk: %v", err)
	}

	stackLo := caller.User.StackLo()
	faultAddr := mm.AddressOfPage(stackLo - 2)

	k.MemoryFault(caller, faultAddr)

	if caller.Exited {
		t.Fatal("a fault within the stack growth window should not kill the process")
	}
	if caller.User.StackLo() != stackLo-2 {
		t.Fatalf("stack low: got %d, want %d", caller.User.StackLo(), stackLo-2)
	}
}

func TestMemoryFaultKillsBeyondGrowthWindow(t *testing.T) {
	k, _ := newTestKernel(t, 256, 1)
	childPID, err := k.Fork(k.Running())
	if err != nil {
		t.Fatalf("fork: %v", err)
	}
	caller := k.procs[childPID]
	if err := k.Brk(caller, 4); err != nil {
		t.Fatalf("brk: %v", err)
	}

	stackLo := caller.User.StackLo()
	faultAddr := mm.AddressOfPage(stackLo - 3)

	k.MemoryFault(caller, faultAddr)

	if !caller.Exited {
		t.Fatal("a fault three pages below the stack should kill the process, not grow it")
	}
	if caller.ExitStatus != memoryFaultExitStatus {
		t.Fatalf("exit status: got %d, want %d", caller.ExitStatus, memoryFaultExitStatus)
	}
}
