package kernel

import (
	"bytes"
	"testing"
)

func TestPipeReadBlocksWhenEmpty(t *testing.T) {
	k, _ := newTestKernel(t, 256, 1)
	reader := k.Running()
	id := k.PipeInit()

	n, blocked, err := k.PipeRead(reader, id, 8)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !blocked || n != 0 {
		t.Fatalf("expected a blocking empty read, got n=%d blocked=%v", n, blocked)
	}
	if reader.Reason != ReasonPipeRead {
		t.Fatalf("reason: got %v, want ReasonPipeRead", reader.Reason)
	}
}

func TestPipeWriteThenReadPreservesOrder(t *testing.T) {
	k, _ := newTestKernel(t, 256, 1)
	caller := k.Running()
	id := k.PipeInit()

	n, blocked, err := k.PipeWrite(caller, id, []byte("hello"))
	if err != nil || blocked {
		t.Fatalf("write: n=%d blocked=%v err=%v", n, blocked, err)
	}
	if n != 5 {
		t.Fatalf("write count: got %d, want 5", n)
	}

	data, blocked, err := k.PipeRead(caller, id, 16)
	if err != nil || blocked {
		t.Fatalf("read: blocked=%v err=%v", blocked, err)
	}
	if !bytes.Equal(data, []byte("hello")) {
		t.Fatalf("read data: got %q, want %q", data, "hello")
	}
}

func TestPipeWriteWakesBlockedReader(t *testing.T) {
	k, _ := newTestKernel(t, 256, 1)
	reader := k.Running()
	id := k.PipeInit()
	if _, blocked, _ := k.PipeRead(reader, id, 8); !blocked {
		t.Fatal("expected reader to block on an empty pipe")
	}

	writerPID, err := k.Fork(reader)
	if err != nil {
		t.Fatalf("fork: %v", err)
	}
	writer := k.procs[writerPID]
	if _, _, err := k.PipeWrite(writer, id, []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if reader.Reason != ReasonNone {
		t.Fatal("writing to the pipe should wake the blocked reader")
	}
}

func TestPipeWriteRejectsOverflowInsteadOfBlocking(t *testing.T) {
	k, _ := newTestKernel(t, 256, 1)
	caller := k.Running()
	id := k.PipeInit()
	full := bytes.Repeat([]byte{'a'}, pipeCapacity)

	n, blocked, err := k.PipeWrite(caller, id, full)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if blocked {
		t.Fatal("a write that exactly fills free space should not block")
	}
	if n != pipeCapacity {
		t.Fatalf("n: got %d, want %d", n, pipeCapacity)
	}

	n, blocked, err = k.PipeWrite(caller, id, []byte("more"))
	if err == nil {
		t.Fatal("writing to a full pipe should fail, not block or partially write")
	}
	if blocked || n != 0 {
		t.Fatalf("n=%d blocked=%v: a rejected write must not block or write anything", n, blocked)
	}
}
