package kernel

import "testing"

func TestAcquireUncontended(t *testing.T) {
	k, _ := newTestKernel(t, 256, 1)
	caller := k.Running()
	id := k.LockInit()

	blocked, err := k.Acquire(caller, id)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if blocked {
		t.Fatal("uncontended acquire should not block")
	}
	if caller.HeldLock != k.locks[id] {
		t.Fatal("caller should now hold the lock")
	}
}

func TestAcquireBlocksOnContention(t *testing.T) {
	k, _ := newTestKernel(t, 256, 1)
	owner := k.Running()
	id := k.LockInit()
	if blocked, _ := k.Acquire(owner, id); blocked {
		t.Fatal("first acquire should succeed immediately")
	}

	waiterPID, err := k.Fork(owner)
	if err != nil {
		t.Fatalf("fork: %v", err)
	}
	waiter := k.procs[waiterPID]
	blocked, err := k.Acquire(waiter, id)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !blocked {
		t.Fatal("acquire on a held lock should block")
	}
	if waiter.Reason != ReasonLockAcquire {
		t.Fatalf("reason: got %v, want ReasonLockAcquire", waiter.Reason)
	}
}

func TestReleaseWakesLongestWaiter(t *testing.T) {
	k, _ := newTestKernel(t, 256, 1)
	owner := k.Running()
	id := k.LockInit()
	k.Acquire(owner, id)

	p1PID, _ := k.Fork(owner)
	p2PID, _ := k.Fork(owner)
	p1 := k.procs[p1PID]
	p2 := k.procs[p2PID]
	k.Acquire(p1, id)
	k.Acquire(p2, id)

	if err := k.Release(owner, id); err != nil {
		t.Fatalf("release: %v", err)
	}
	if p1.Reason != ReasonNone {
		t.Fatal("release should wake the longest-waiting acquirer (p1, FIFO order)")
	}
	if p2.Reason != ReasonLockAcquire {
		t.Fatal("p2 should still be waiting after only one release")
	}
}

func TestReleaseRejectsNonOwner(t *testing.T) {
	k, _ := newTestKernel(t, 256, 1)
	owner := k.Running()
	id := k.LockInit()
	other := &PCB{PID: 999}
	if err := k.Release(other, id); err == nil {
		t.Fatal("expected an error releasing a lock the caller does not hold")
	}
	_ = owner
}

func TestCvarWaitReleasesAndReacquires(t *testing.T) {
	k, _ := newTestKernel(t, 256, 1)
	caller := k.Running()
	lockID := k.LockInit()
	cvarID := k.CvarInit()
	k.Acquire(caller, lockID)

	blocked, err := k.CvarWait(caller, cvarID, lockID)
	if err != nil {
		t.Fatalf("cvar wait: %v", err)
	}
	if !blocked {
		t.Fatal("cvar wait should block until signaled")
	}
	if caller.HeldLock != nil {
		t.Fatal("cvar wait should release the lock while waiting")
	}

	if err := k.CvarSignal(cvarID); err != nil {
		t.Fatalf("signal: %v", err)
	}
	if caller.Reason != ReasonNone {
		t.Fatal("signal should wake the waiter")
	}

	// Redispatch: caller.cvarResuming is now true, so the next call
	// reacquires the lock instead of waiting again.
	blocked, err = k.CvarWait(caller, cvarID, lockID)
	if err != nil {
		t.Fatalf("cvar wait reacquire: %v", err)
	}
	if blocked {
		t.Fatal("reacquiring an uncontended lock should not block")
	}
	if caller.HeldLock != k.locks[lockID] {
		t.Fatal("caller should hold the lock again after cvar wait returns")
	}
}

func TestCvarBroadcastWakesEveryone(t *testing.T) {
	k, _ := newTestKernel(t, 256, 1)
	owner := k.Running()
	lockID := k.LockInit()
	cvarID := k.CvarInit()

	p1PID, _ := k.Fork(owner)
	p2PID, _ := k.Fork(owner)
	p1 := k.procs[p1PID]
	p2 := k.procs[p2PID]

	k.Acquire(p1, lockID)
	k.CvarWait(p1, cvarID, lockID)
	k.Acquire(p2, lockID)
	k.CvarWait(p2, cvarID, lockID)

	if err := k.CvarBroadcast(cvarID); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if p1.Reason != ReasonNone || p2.Reason != ReasonNone {
		t.Fatal("broadcast should wake every waiter")
	}
}

func TestReclaimRejectsLockInUse(t *testing.T) {
	k, _ := newTestKernel(t, 256, 1)
	caller := k.Running()
	id := k.LockInit()
	k.Acquire(caller, id)
	if err := k.Reclaim(id); err == nil {
		t.Fatal("expected reclaim of a held lock to fail")
	}
	k.Release(caller, id)
	if err := k.Reclaim(id); err != nil {
		t.Fatalf("reclaim after release: %v", err)
	}
}
