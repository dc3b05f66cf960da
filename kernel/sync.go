package kernel

import "nucleus/kernel/kerr"

// Lock is a simple mutual-exclusion lock.
type Lock struct {
	ID      int
	Owner   *PCB
	Waiting Queue
}

// Cvar is a condition variable, always used alongside a Lock the
// caller already holds.
type Cvar struct {
	ID      int
	Waiting Queue
}

// LockInit creates a new, initially-unheld lock and returns its id. Lock
// ids are positive even integers, so an id alone identifies it as a lock.
func (k *Kernel) LockInit() int {
	id := k.nextLockID
	k.nextLockID += 2
	k.locks[id] = &Lock{ID: id}
	return id
}

// CvarInit creates a new condition variable and returns its id. Cvar ids
// are positive odd integers, so an id alone identifies it as a cvar.
func (k *Kernel) CvarInit() int {
	id := k.nextCvarID
	k.nextCvarID += 2
	k.cvars[id] = &Cvar{ID: id}
	return id
}

// Acquire implements the Acquire syscall. If the lock is held, the
// caller is linked onto its wait queue and Acquire reports blocked so the
// trap layer can redispatch it once the lock is released.
func (k *Kernel) Acquire(caller *PCB, lockID int) (blocked bool, err *kerr.Error) {
	lock, ok := k.locks[lockID]
	if !ok {
		return false, kerr.New("kernel", "acquire: no such lock", kerr.InvalidArgument)
	}
	if lock.Owner != nil {
		caller.Reason = ReasonLockAcquire
		lock.Waiting.PushFront(caller)
		return true, nil
	}
	lock.Owner = caller
	caller.HeldLock = lock
	return false, nil
}

// Release implements the Release syscall: free the lock and, if anyone is
// waiting, wake the longest-waiting one so it can retry Acquire. Release
// itself never blocks.
func (k *Kernel) Release(caller *PCB, lockID int) *kerr.Error {
	lock, ok := k.locks[lockID]
	if !ok {
		return kerr.New("kernel", "release: no such lock", kerr.InvalidArgument)
	}
	if lock.Owner != caller {
		return kerr.New("kernel", "release: caller does not hold lock", kerr.Precondition)
	}
	caller.HeldLock = nil
	lock.Owner = nil
	k.wake(&lock.Waiting)
	return nil
}

// forceRelease is called when a process holding a lock exits without
// releasing it ( exit-time cleanup invariant).
func (k *Kernel) forceRelease(holder *PCB, lock *Lock) {
	holder.HeldLock = nil
	lock.Owner = nil
	k.wake(&lock.Waiting)
}

// wake moves the longest-waiting PCB in q back onto the ready queue. It
// does not hand over any resource directly; the woken process re-evaluates
// its own condition the next time it runs, which is always safe here since
// the kernel is never preempted mid-decision.
func (k *Kernel) wake(q *Queue) {
	if next := q.PopBack(); next != nil {
		next.Reason = ReasonNone
		k.ready.PushFront(next)
	}
}

// CvarWait implements CvarWait: release the held lock, block on the
// condition variable, and reacquire the lock before returning successfully
// -- the standard condition-variable contract. Because the kernel cannot
// suspend this call mid-wait, the reacquire step is detected on redispatch
// via caller.cvarResuming rather than by simply falling through a blocked
// Acquire call.
func (k *Kernel) CvarWait(caller *PCB, cvarID, lockID int) (blocked bool, err *kerr.Error) {
	if caller.cvarResuming {
		blocked, err = k.Acquire(caller, lockID)
		if !blocked {
			caller.cvarResuming = false
		}
		return blocked, err
	}

	cvar, ok := k.cvars[cvarID]
	if !ok {
		return false, kerr.New("kernel", "cvar_wait: no such condition variable", kerr.InvalidArgument)
	}
	if err := k.Release(caller, lockID); err != nil {
		return false, err
	}
	caller.Reason = ReasonCvarWait
	cvar.Waiting.PushFront(caller)
	caller.cvarResuming = true
	return true, nil
}

// CvarSignal wakes at most one waiter.
func (k *Kernel) CvarSignal(cvarID int) *kerr.Error {
	cvar, ok := k.cvars[cvarID]
	if !ok {
		return kerr.New("kernel", "cvar_signal: no such condition variable", kerr.InvalidArgument)
	}
	k.wake(&cvar.Waiting)
	return nil
}

// CvarBroadcast wakes every waiter.
func (k *Kernel) CvarBroadcast(cvarID int) *kerr.Error {
	cvar, ok := k.cvars[cvarID]
	if !ok {
		return kerr.New("kernel", "cvar_broadcast: no such condition variable", kerr.InvalidArgument)
	}
	for cvar.Waiting.Len() > 0 {
		k.wake(&cvar.Waiting)
	}
	return nil
}

// Reclaim implements the Reclaim syscall: it deletes a lock, cvar, or pipe
// by id, refusing to reclaim one that is still in use.
func (k *Kernel) Reclaim(id int) *kerr.Error {
	if lock, ok := k.locks[id]; ok {
		if lock.Owner != nil || lock.Waiting.Len() > 0 {
			return kerr.New("kernel", "reclaim: lock still in use", kerr.Precondition)
		}
		delete(k.locks, id)
		return nil
	}
	if cvar, ok := k.cvars[id]; ok {
		if cvar.Waiting.Len() > 0 {
			return kerr.New("kernel", "reclaim: condition variable still in use", kerr.Precondition)
		}
		delete(k.cvars, id)
		return nil
	}
	if pipe, ok := k.pipes[id]; ok {
		if pipe.readers.Len() > 0 {
			return kerr.New("kernel", "reclaim: pipe still in use", kerr.Precondition)
		}
		delete(k.pipes, id)
		return nil
	}
	return kerr.New("kernel", "reclaim: no such identifier", kerr.InvalidArgument)
}
