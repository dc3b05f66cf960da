package kernel

import "sort"

// Clock handles the periodic clock trap: advance the tick counter, wake
// every process whose Delay has elapsed, then yield the processor so the
// scheduler rotates to the next ready process.
func (k *Kernel) Clock() {
	k.ticks++

	var wake []int
	for pid, p := range k.procs {
		if p.Reason == ReasonDelay && p.DelayUntil <= k.ticks {
			wake = append(wake, pid)
		}
	}
	// Iteration order over k.procs is randomized; sorting keeps wakeup
	// order deterministic across runs when several delays expire on the
	// same tick.
	sort.Ints(wake)
	for _, pid := range wake {
		p := k.procs[pid]
		p.Reason = ReasonNone
		k.ready.PushFront(p)
	}

	k.Yield()
}
