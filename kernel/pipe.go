package kernel

import "nucleus/kernel/kerr"

// pipeCapacity is the fixed ring-buffer size backing every pipe.
const pipeCapacity = 4096

// Pipe is a fixed-capacity byte ring buffer. Readers block when it is
// empty; a write that would overflow the capacity fails outright rather
// than blocking or partially writing.
type Pipe struct {
	ID   int
	buf  []byte
	head int // next byte to read
	n    int // bytes currently buffered

	readers Queue
}

// PipeInit creates a new empty pipe and returns its id. Pipe ids are
// negative integers counting down from -1, so an id alone identifies it as
// a pipe.
func (k *Kernel) PipeInit() int {
	id := k.nextPipeID
	k.nextPipeID--
	k.pipes[id] = &Pipe{ID: id, buf: make([]byte, pipeCapacity)}
	return id
}

// PipeRead implements the PipeRead syscall: copy up to maxlen bytes
// out of the pipe, blocking while it is empty.
func (k *Kernel) PipeRead(caller *PCB, pipeID int, maxlen int) (n int, blocked bool, err *kerr.Error) {
	pipe, ok := k.pipes[pipeID]
	if !ok {
		return 0, false, kerr.New("kernel", "pipe_read: no such pipe", kerr.InvalidArgument)
	}
	if pipe.n == 0 {
		caller.Reason = ReasonPipeRead
		pipe.readers.PushFront(caller)
		return 0, true, nil
	}
	count := maxlen
	if count > pipe.n {
		count = pipe.n
	}
	pipe.head = (pipe.head + count) % len(pipe.buf)
	pipe.n -= count
	return count, false, nil
}

// PipeWrite implements the PipeWrite syscall: copy all of src into the
// pipe in one shot. If src would not fit in the pipe's current free space,
// nothing is written and an error is returned -- writes are all-or-nothing,
// never partial, and a full pipe never blocks the writer.
func (k *Kernel) PipeWrite(caller *PCB, pipeID int, src []byte) (n int, blocked bool, err *kerr.Error) {
	pipe, ok := k.pipes[pipeID]
	if !ok {
		return 0, false, kerr.New("kernel", "pipe_write: no such pipe", kerr.InvalidArgument)
	}
	if pipe.n+len(src) > len(pipe.buf) {
		return 0, false, kerr.New("kernel", "pipe_write: write would overflow pipe capacity", kerr.Precondition)
	}
	tail := (pipe.head + pipe.n) % len(pipe.buf)
	for i := range src {
		pipe.buf[(tail+i)%len(pipe.buf)] = src[i]
	}
	pipe.n += len(src)
	k.wake(&pipe.readers)
	return len(src), false, nil
}
